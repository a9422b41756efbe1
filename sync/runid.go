// ABOUTME: Run identifiers for sync runs
// ABOUTME: Generates sortable ULIDs used to group journal entries
package sync

import (
	"math/rand"
	"time"

	"github.com/oklog/ulid/v2"
)

// NewRunID generates a new ULID identifying one sync run.
func NewRunID() string {
	entropy := ulid.Monotonic(rand.New(rand.NewSource(time.Now().UnixNano())), 0)
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy).String()
}
