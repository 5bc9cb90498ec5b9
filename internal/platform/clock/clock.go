// Package clock abstracts "now" so deadline arithmetic is testable at exact
// boundary instants.
package clock

import "time"

type Clock interface {
	Now() time.Time
}

// System reads the host clock.
type System struct{}

func (System) Now() time.Time { return time.Now() }

// Fixed is a settable clock for tests.
type Fixed struct {
	t time.Time
}

func NewFixed(t time.Time) *Fixed { return &Fixed{t: t} }

func (f *Fixed) Now() time.Time { return f.t }

func (f *Fixed) Set(t time.Time) { f.t = t }

func (f *Fixed) Advance(d time.Duration) { f.t = f.t.Add(d) }
