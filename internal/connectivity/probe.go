package connectivity

import (
	"context"
	"net"
	"time"
)

// Probe answers whether the remote service is currently reachable.
type Probe interface {
	Online(ctx context.Context) bool
}

// DialProbe checks reachability with a TCP dial against the remote
// database host.
type DialProbe struct {
	// Addr is host:port of the remote service.
	Addr string

	// Timeout bounds each probe attempt.
	Timeout time.Duration
}

// NewDialProbe creates a probe against addr with a 3-second timeout.
func NewDialProbe(addr string) *DialProbe {
	return &DialProbe{Addr: addr, Timeout: 3 * time.Second}
}

// Online implements Probe.
func (p *DialProbe) Online(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: p.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// StaticProbe always reports a fixed state. Used with the in-memory
// gateway and in tests.
type StaticProbe bool

// Online implements Probe.
func (p StaticProbe) Online(context.Context) bool {
	return bool(p)
}
