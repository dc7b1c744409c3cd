package scheduler

// flightGuard is a non-blocking single-flight latch. A job holds it while
// running so overlapping ticks can be skipped instead of queued.
type flightGuard struct {
	ch chan struct{}
}

func newFlightGuard() *flightGuard {
	return &flightGuard{ch: make(chan struct{}, 1)}
}

// TryAcquire takes the latch without blocking. Returns false when a run
// already holds it.
func (g *flightGuard) TryAcquire() bool {
	select {
	case g.ch <- struct{}{}:
		return true
	default:
		return false
	}
}

// Release frees the latch. Must follow a successful TryAcquire.
func (g *flightGuard) Release() {
	<-g.ch
}
