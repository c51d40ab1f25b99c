package match

import (
	"context"
	"time"
)

// Run drives the match at the configured tick rate until ctx is cancelled or
// Stop is called. All match state is owned by this goroutine while it runs.
func (m *Match) Run(ctx context.Context) error {
	rate := m.tuning.Load().TickRateHz
	interval := time.Second / time.Duration(rate)
	dt := 1 / float64(rate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	defer m.closeObservers()

	var pending []Command
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stop:
			return nil
		case req := <-m.observerJoin:
			m.handleObserverJoin(req)
		case req := <-m.observerSub:
			m.handleObserverSubscribe(req)
		case id := <-m.observerLeave:
			m.handleObserverLeave(id)
		case cmd := <-m.inbox:
			pending = append(pending, cmd)
		case <-ticker.C:
			m.stepInternal(pending, dt)
			pending = pending[:0]
			// Follow tick rate changes from a tuning reload.
			if r := m.tuning.Load().TickRateHz; r != rate {
				rate = r
				interval = time.Second / time.Duration(rate)
				dt = 1 / float64(rate)
				ticker.Reset(interval)
			}
		}
	}
}

func (m *Match) Stop() { m.stopOnce.Do(func() { close(m.stop) }) }

func sendLatest(ch chan []byte, b []byte) {
	select {
	case ch <- b:
		return
	default:
	}
	// Drop one.
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- b:
	default:
	}
}
