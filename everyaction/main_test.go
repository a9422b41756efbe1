// ABOUTME: Package test entry point
// ABOUTME: Fails the run when a test leaves goroutines behind
package everyaction

import (
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
