// Package scenarios_test hosts the ginkgo/gomega BDD specs for the
// higher-level, multi-component scenarios spec.md §8 names: behavior
// that cuts across query.Processor, the gateway, and the executor
// boundary, where a plain table-driven testify test would bury the
// narrative (what's being set up, what's being raced, what must still
// hold afterward) that these scenarios are specifically about.
// Everything narrower — one function's contract in isolation — stays
// in that package's own _test.go file with testify, matching this
// tree's existing split.
package scenarios_test

import (
	"testing"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func TestScenarios(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Query lifecycle scenarios (spec.md §8)")
}
