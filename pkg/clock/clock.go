// Package clock provides the injectable time source used by the sync engine.
// Business logic never reads the wall clock directly; it receives a Clock so
// that window and weekday boundaries are deterministic under test.
package clock

import "time"

// Clock supplies the reference "now" for a reconciliation run.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// System returns a Clock backed by time.Now.
func System() Clock { return systemClock{} }

// Fixed returns a Clock that always reports t. Intended for tests.
func Fixed(t time.Time) Clock { return fixedClock{t} }

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }
