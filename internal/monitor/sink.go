package monitor

import (
	"fmt"
	"net"
)

// Sink is where encoded NODE_INFO events go. Spec §1 names
// "monitoring-backend semantics" an explicit Non-goal — Sink only needs
// to move bytes; what a hub does with them is out of scope here.
type Sink interface {
	Send(data []byte) error
	Close() error
}

// NopSink discards every event. Used when monitoring is disabled (hub
// address/port unset, spec §6) or in tests that don't care where events
// land.
type NopSink struct{}

func (NopSink) Send([]byte) error { return nil }
func (NopSink) Close() error      { return nil }

// UDPSink fires events at a hub over UDP: fire-and-forget fits spec
// §4.6's "failures never affect loop" better than a connection-oriented
// transport would, since there is nothing to reconnect or retry.
type UDPSink struct {
	conn *net.UDPConn
}

// NewUDPSink resolves addr (host:port, spec §6's hub_address/hub_zmq_port)
// and returns a ready-to-use sink.
func NewUDPSink(addr string) (*UDPSink, error) {
	raddr, err := net.ResolveUDPAddr("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("monitor: resolving hub address: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, fmt.Errorf("monitor: dialing hub: %w", err)
	}
	return &UDPSink{conn: conn}, nil
}

func (s *UDPSink) Send(data []byte) error {
	_, err := s.conn.Write(data)
	return err
}

func (s *UDPSink) Close() error { return s.conn.Close() }

var (
	_ Sink = NopSink{}
	_ Sink = (*UDPSink)(nil)
)
