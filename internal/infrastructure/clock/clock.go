// ABOUTME: Clock abstraction so reconnect backoff can be driven deterministically in tests
// ABOUTME: Real wraps the time package; Fake only advances when told to
package clock

import "time"

// Clock is the subset of the time package the stream client needs.
type Clock interface {
	Now() time.Time

	// After returns a channel that receives once d has elapsed. If d <= 0
	// the channel is ready immediately.
	After(d time.Duration) <-chan time.Time
}

// Real returns a Clock backed by the standard time package.
func Real() Clock { return realClock{} }

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

func (realClock) After(d time.Duration) <-chan time.Time { return time.After(d) }
