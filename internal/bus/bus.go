package bus

import (
	"sync/atomic"
	"time"
)

// Bus is the MessageBus of spec §4.1: the four endpoints the event loop
// multiplexes with a single Poll call per iteration.
type Bus struct {
	TaskIn        Transport
	ResultsOut    Transport
	Command       Transport
	ManagerRouter Transport

	rotation atomic.Uint64
}

// New assembles a Bus from four already-constructed transports. Callers
// choose concrete transports (TCP for production, Memory for tests).
func New(taskIn, resultsOut, command, managerRouter Transport) *Bus {
	return &Bus{TaskIn: taskIn, ResultsOut: resultsOut, Command: command, ManagerRouter: managerRouter}
}

func (b *Bus) transport(e Endpoint) Transport {
	switch e {
	case TaskIn:
		return b.TaskIn
	case ResultsOut:
		return b.ResultsOut
	case Command:
		return b.Command
	case ManagerRouter:
		return b.ManagerRouter
	default:
		return nil
	}
}

// rotatedOrder returns AllEndpoints rotated by one position each call,
// so repeated Polls don't always check (and therefore always favor) the
// same endpoint first — spec §4.1's fairness requirement ("no
// starvation").
func (b *Bus) rotatedOrder() [len(AllEndpoints)]Endpoint {
	start := int(b.rotation.Add(1)) % len(AllEndpoints)
	var order [len(AllEndpoints)]Endpoint
	for i := range order {
		order[i] = AllEndpoints[(start+i)%len(AllEndpoints)]
	}
	return order
}

// Poll blocks until at least one endpoint has a frame ready to receive,
// or timeout elapses, whichever comes first. It returns every endpoint
// observed ready in this call, in a fairly-rotated order. A nil/empty
// result means the timeout elapsed with nothing ready — the only
// blocking operation in the whole event loop (spec §5).
func (b *Bus) Poll(timeout time.Duration) []Endpoint {
	order := b.rotatedOrder()

	ready := make(map[Endpoint]bool, len(order))
	for _, e := range order {
		select {
		case <-b.transport(e).Ready():
			ready[e] = true
		default:
		}
	}
	if len(ready) == 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()

		select {
		case <-b.TaskIn.Ready():
			ready[TaskIn] = true
		case <-b.ResultsOut.Ready():
			ready[ResultsOut] = true
		case <-b.Command.Ready():
			ready[Command] = true
		case <-b.ManagerRouter.Ready():
			ready[ManagerRouter] = true
		case <-timer.C:
			return nil
		}
		// One more non-blocking pass: don't starve siblings that became
		// ready in the same instant we woke up for another endpoint.
		for _, e := range order {
			if ready[e] {
				continue
			}
			select {
			case <-b.transport(e).Ready():
				ready[e] = true
			default:
			}
		}
	}

	out := make([]Endpoint, 0, len(ready))
	for _, e := range order {
		if ready[e] {
			out = append(out, e)
		}
	}
	return out
}

// Close tears down every endpoint. Spec §5: "sockets owned by loop, all
// closed at teardown."
func (b *Bus) Close() error {
	var firstErr error
	for _, t := range []Transport{b.TaskIn, b.ResultsOut, b.Command, b.ManagerRouter} {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
