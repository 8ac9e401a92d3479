//go:build e2e

// Package e2e exercises the bootstrap and tool-install flows end to end
// against fake HTTP collaborators, the way _examples/terassyi-tomei's e2e
// suite drives a real CLI binary against fake registries — here the
// collaborators are gateway/file-service httptest servers instead of a
// built binary, since the agent has no single "apply and inspect" CLI verb.
package e2e

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "openframe-client E2E Suite", Label("e2e"))
}

var _ = Describe("openframe-client E2E", Ordered, func() {
	Context("Cold Start", coldStartTests)
	Context("Tool Install Idempotence", toolInstallTests)
})
