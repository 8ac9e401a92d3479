//go:build e2e

package e2e

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/openframe-oss/openframe-client/internal/model"
	"github.com/openframe-oss/openframe-client/internal/placeholder"
	"github.com/openframe-oss/openframe-client/internal/platform/paths"
	"github.com/openframe-oss/openframe-client/internal/registry"
	"github.com/openframe-oss/openframe-client/internal/tool/install"
	"github.com/openframe-oss/openframe-client/internal/toolfiles"
)

type recordingSupervisor struct {
	mu    sync.Mutex
	count int
}

func (r *recordingSupervisor) RunNewTool(ctx context.Context, tool *model.InstalledTool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.count++
	return nil
}

type recordingPublisher struct {
	mu       sync.Mutex
	subjects []string
}

func (r *recordingPublisher) Publish(ctx context.Context, subject string, payload any) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subjects = append(r.subjects, subject)
	return nil
}

// toolInstallTests drives spec.md §8 scenario S2: the same tool
// installation message delivered twice must result in exactly one
// InstalledTool record, one binary download, one supervised task, and one
// toolconnection publish.
func toolInstallTests() {
	It("installs a tool exactly once across two identical messages", func() {
		root := GinkgoT().TempDir()
		p := paths.NewAt(filepath.Join(root, "app-support"), filepath.Join(root, "logs"))

		downloads := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			downloads++
			w.Write([]byte("rmm-agent-binary"))
		}))
		DeferCleanup(srv.Close)

		files := toolfiles.New(srv.URL, nil, func() string { return "" })
		reg := registry.New(filepath.Join(root, "installed_tools.json"))
		sup := &recordingSupervisor{}
		pub := &recordingPublisher{}
		svc := install.New(p, files, files, reg, placeholder.Context{}, sup, pub, "m1")

		msg := model.ToolInstallationMessage{
			ToolAgentID:    "rmm",
			Version:        "1.0",
			RunCommandArgs: []string{"--srv", "${client.serverUrl}"},
		}

		Expect(svc.Install(context.Background(), msg)).To(Succeed())
		Expect(svc.Install(context.Background(), msg)).To(Succeed())

		Expect(downloads).To(Equal(1))

		agentPath := p.AgentPath("rmm")
		info, err := os.Stat(agentPath)
		Expect(err).NotTo(HaveOccurred())
		if runtime.GOOS != "windows" {
			Expect(info.Mode().Perm()).To(Equal(os.FileMode(0755)))
		}

		_, ok, err := reg.Get("rmm")
		Expect(err).NotTo(HaveOccurred())
		Expect(ok).To(BeTrue())

		sup.mu.Lock()
		Expect(sup.count).To(Equal(1))
		sup.mu.Unlock()

		pub.mu.Lock()
		Expect(pub.subjects).To(Equal([]string{"machine.m1.toolconnection"}))
		pub.mu.Unlock()
	})
}
