package orchestrate

import (
	"testing"

	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"
)

func TestOrchestrateE2E(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Orchestrate End-to-End Suite")
}
