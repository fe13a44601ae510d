package bus

// Memory is an in-process Transport backed by an inbox and a caller-
// supplied send function. It exists so tests (and an embedded client in
// the same process) can exercise the event loop without a real socket.
type Memory struct {
	in     *inbox
	sendFn func(Frame) error
}

// NewMemory creates a Memory transport. send is invoked for every
// outbound Frame; pass nil to discard sent frames (captured separately
// by a test via a closure instead).
func NewMemory(send func(Frame) error) *Memory {
	if send == nil {
		send = func(Frame) error { return nil }
	}
	return &Memory{in: newInbox(), sendFn: send}
}

// Inject feeds f into the transport's inbox, simulating a peer sending
// to the Interchange.
func (m *Memory) Inject(f Frame) { m.in.push(f) }

func (m *Memory) Ready() <-chan struct{} { return m.in.Ready() }
func (m *Memory) TryRecv() (Frame, bool) { return m.in.tryPop() }
func (m *Memory) Send(f Frame) error     { return m.sendFn(f) }
func (m *Memory) Close() error           { return nil }

var _ Transport = (*Memory)(nil)
