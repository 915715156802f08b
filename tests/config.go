// Package tests holds helpers shared by the end-to-end tests.
package tests

import (
	"os"
	"testing"
)

const e2eEnv = "HYPERDOT_E2E"

// SkipUnlessE2E skips tests that need the full pipeline and a database.
func SkipUnlessE2E(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping e2e test in short mode")
	}
	if os.Getenv(e2eEnv) == "" {
		t.Skipf("%s not set", e2eEnv)
	}
}
