package bus

import (
	"crypto/tls"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

func listen(network, addr string, tlsConfig *tls.Config) (net.Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		ln = tls.NewListener(ln, tlsConfig)
	}
	return ln, nil
}

// PointToPoint is the Transport for task_in, results_out, and the
// command endpoint (spec §4.1): a single active connection at a time,
// no routing envelope. A new connection replaces whatever one preceded
// it, matching the "point-to-point" framing — the Interchange only ever
// expects one client.
type PointToPoint struct {
	mu       sync.Mutex
	listener net.Listener
	conn     net.Conn
	in       *inbox
}

// ListenPointToPoint starts accepting connections on addr for one of the
// point-to-point endpoints. tlsConfig may be nil (cert_dir unset).
func ListenPointToPoint(addr string, tlsConfig *tls.Config) (*PointToPoint, error) {
	ln, err := listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, err
	}
	p := &PointToPoint{listener: ln, in: newInbox()}
	go p.acceptLoop()
	return p, nil
}

func (p *PointToPoint) acceptLoop() {
	for {
		conn, err := p.listener.Accept()
		if err != nil {
			return
		}
		p.mu.Lock()
		if p.conn != nil {
			p.conn.Close()
		}
		p.conn = conn
		p.mu.Unlock()
		go p.readLoop(conn)
	}
}

func (p *PointToPoint) readLoop(conn net.Conn) {
	for {
		f, err := readFrame(conn)
		if err != nil {
			slog.Debug("point-to-point connection closed", "remote", conn.RemoteAddr(), "error", err)
			return
		}
		p.in.push(f)
	}
}

func (p *PointToPoint) Ready() <-chan struct{} { return p.in.Ready() }
func (p *PointToPoint) TryRecv() (Frame, bool) { return p.in.tryPop() }

func (p *PointToPoint) Send(f Frame) error {
	p.mu.Lock()
	conn := p.conn
	p.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("bus: no peer connected")
	}
	return writeFrame(conn, f)
}

func (p *PointToPoint) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		p.conn.Close()
	}
	return p.listener.Close()
}

// Router is the Transport for manager_router (spec §4.1): many Managers
// connect, each identified by an opaque identity; Send routes to one of
// them by the identity carried in f[0].
type Router struct {
	mu       sync.Mutex
	listener net.Listener
	conns    map[string]net.Conn
	in       *inbox
}

// ListenRouter starts accepting Manager connections on addr. tlsConfig
// may be nil (cert_dir unset).
func ListenRouter(addr string, tlsConfig *tls.Config) (*Router, error) {
	ln, err := listen("tcp", addr, tlsConfig)
	if err != nil {
		return nil, err
	}
	r := &Router{listener: ln, conns: make(map[string]net.Conn), in: newInbox()}
	go r.acceptLoop()
	return r, nil
}

func (r *Router) acceptLoop() {
	for {
		conn, err := r.listener.Accept()
		if err != nil {
			return
		}
		id := conn.RemoteAddr().String()
		r.mu.Lock()
		r.conns[id] = conn
		r.mu.Unlock()
		go r.readLoop(id, conn)
	}
}

func (r *Router) readLoop(id string, conn net.Conn) {
	defer func() {
		r.mu.Lock()
		delete(r.conns, id)
		r.mu.Unlock()
		conn.Close()
	}()
	for {
		parts, err := readFrame(conn)
		if err != nil {
			slog.Debug("manager connection closed", "manager_id", id, "error", err)
			return
		}
		envelope := make(Frame, 0, len(parts)+1)
		envelope = append(envelope, []byte(id))
		envelope = append(envelope, parts...)
		r.in.push(envelope)
	}
}

func (r *Router) Ready() <-chan struct{} { return r.in.Ready() }
func (r *Router) TryRecv() (Frame, bool) { return r.in.tryPop() }

func (r *Router) Send(f Frame) error {
	if len(f) == 0 {
		return fmt.Errorf("bus: router send requires a manager-identity part")
	}
	id := string(f[0])
	r.mu.Lock()
	conn, ok := r.conns[id]
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("bus: unknown manager connection %q", id)
	}
	return writeFrame(conn, f[1:])
}

func (r *Router) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, c := range r.conns {
		c.Close()
	}
	return r.listener.Close()
}

var (
	_ Transport = (*PointToPoint)(nil)
	_ Transport = (*Router)(nil)
)
