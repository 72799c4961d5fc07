package chat

import (
	"testing"

	"go.uber.org/goleak"
)

// Every exchange started by a test must settle before the package finishes.
func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}
