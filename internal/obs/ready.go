package obs

import "sync/atomic"

var ready atomic.Bool

// SetReady flips the readiness gate. main sets it true once storage is
// reachable and false again when shutdown starts.
func SetReady(v bool) { ready.Store(v) }

// Ready reports whether the service should accept traffic.
func Ready() bool { return ready.Load() }
