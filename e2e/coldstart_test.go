//go:build e2e

package e2e

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openframe-oss/openframe-client/internal/bootstrap"
	"github.com/openframe-oss/openframe-client/internal/gateway"
	"github.com/openframe-oss/openframe-client/internal/identity"
)

// coldStartTests drives spec.md §8 scenario S1: an empty secured dir,
// registration returning {m1,c1,s1}, then auth returning {t1}.
func coldStartTests() {
	var (
		srv   *httptest.Server
		idSvc *identity.Service
		dir   string
	)

	BeforeEach(func() {
		dir = GinkgoT().TempDir()
		idSvc = identity.New(filepath.Join(dir, "identity.json"))

		srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.URL.Path {
			case "/register":
				json.NewEncoder(w).Encode(gateway.RegistrationResponse{
					MachineID: "m1", ClientID: "c1", ClientSecret: "s1",
				})
			case "/auth":
				json.NewEncoder(w).Encode(gateway.AuthResponse{AccessToken: "t1"})
			default:
				w.WriteHeader(http.StatusNotFound)
			}
		}))
		DeferCleanup(srv.Close)
	})

	It("registers then authenticates, persisting the full identity", func() {
		gw := gateway.New(srv.URL, nil)

		reg := bootstrap.NewRegistrationProcessor(gw, idSvc, bootstrap.StaticRegistrationKey("initial-key"), "1.0.0")
		Expect(reg.Process(context.Background())).To(Succeed())

		auth := bootstrap.NewAuthProcessor(gw, idSvc)
		Expect(auth.Process(context.Background())).To(Succeed())

		got, err := idSvc.Load()
		Expect(err).NotTo(HaveOccurred())
		Expect(got.MachineID).To(Equal("m1"))
		Expect(got.ClientID).To(Equal("c1"))
		Expect(got.ClientSecret).To(Equal("s1"))
		Expect(got.AccessToken).To(Equal("t1"))
		Expect(got.Bootstrapped()).To(BeTrue())
	})

	It("is a no-op on replay once the identity is already bootstrapped", func() {
		gw := gateway.New(srv.URL, nil)
		reg := bootstrap.NewRegistrationProcessor(gw, idSvc, bootstrap.StaticRegistrationKey("initial-key"), "1.0.0")
		auth := bootstrap.NewAuthProcessor(gw, idSvc)
		Expect(reg.Process(context.Background())).To(Succeed())
		Expect(auth.Process(context.Background())).To(Succeed())

		// A second pass must not re-contact the gateway at all: closing the
		// server here would fail the test if either processor dialed out.
		srv.Close()
		Expect(reg.Process(context.Background())).To(Succeed())
		Expect(auth.Process(context.Background())).To(Succeed())
	})
}
