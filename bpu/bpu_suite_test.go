package bpu_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestBPU(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "BPU Suite")
}
