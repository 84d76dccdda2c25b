// internal/rematch/rematch.go
//
// Two-sided readiness handshake for replaying a finished match.
// Each side records its own request and the opponent's; once both are in,
// the onBothReady callback runs exactly once for the current cycle,
// whichever request arrived second. Reset starts a new cycle.
//
// A Coordinator is owned by one session event loop and is not safe for
// concurrent use.

package rematch

// Coordinator tracks one rematch cycle.
type Coordinator struct {
	local       bool
	remote      bool
	fired       bool
	onBothReady func()
}

// New returns a Coordinator that calls onBothReady when both sides agree.
func New(onBothReady func()) *Coordinator {
	return &Coordinator{onBothReady: onBothReady}
}

// RequestLocal records the local side's request. It reports false if the
// local side had already asked in this cycle.
func (c *Coordinator) RequestLocal() bool {
	if c.local {
		return false
	}
	c.local = true
	c.check()
	return true
}

// OnRemoteRequest records the opponent's request. It reports false for a
// duplicate request in this cycle.
func (c *Coordinator) OnRemoteRequest() bool {
	if c.remote {
		return false
	}
	c.remote = true
	c.check()
	return true
}

func (c *Coordinator) LocalRequested() bool  { return c.local }
func (c *Coordinator) RemoteRequested() bool { return c.remote }

// Reset clears both flags and arms the callback again.
func (c *Coordinator) Reset() {
	c.local, c.remote, c.fired = false, false, false
}

func (c *Coordinator) check() {
	if c.local && c.remote && !c.fired {
		c.fired = true
		if c.onBothReady != nil {
			c.onBothReady()
		}
	}
}
