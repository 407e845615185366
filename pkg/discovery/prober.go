// Package discovery probes the fixed LookinServer loopback port range for a
// listening in-app agent, without sending any protocol bytes.
package discovery

import (
	"context"
	"fmt"
	"net"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/isnine/lookinmcp/pkg/logger"
)

// DefaultPortRangeStart and DefaultPortRangeEnd bound the fixed set of
// loopback ports a LookinServer agent may be listening on.
const (
	DefaultPortRangeStart = 47164
	DefaultPortRangeEnd   = 47169
)

// DefaultPortRange returns the inclusive [47164, 47169] port range as a slice.
func DefaultPortRange() []int {
	return PortRange(DefaultPortRangeStart, DefaultPortRangeEnd)
}

// PortRange returns the inclusive range [start, end] as a slice of ports.
func PortRange(start, end int) []int {
	if end < start {
		return nil
	}
	ports := make([]int, 0, end-start+1)
	for p := start; p <= end; p++ {
		ports = append(ports, p)
	}
	return ports
}

// Dialer abstracts the liveness probe so tests can substitute a fake dialer
// without binding real sockets.
type Dialer interface {
	DialContext(ctx context.Context, network, address string) (net.Conn, error)
}

// Prober concurrently attempts TCP connects across a port range on
// 127.0.0.1, probing liveness only: no protocol bytes are ever sent.
type Prober struct {
	dialer Dialer
}

// New returns a Prober using the standard net.Dialer.
func New() *Prober {
	return &Prober{dialer: &net.Dialer{}}
}

// NewWithDialer returns a Prober using a caller-supplied Dialer, for tests.
func NewWithDialer(d Dialer) *Prober {
	return &Prober{dialer: d}
}

func (p *Prober) probe(ctx context.Context, port int, timeout time.Duration) bool {
	attemptCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	conn, err := p.dialer.DialContext(attemptCtx, "tcp", addr)
	if err != nil {
		return false
	}
	_ = conn.Close()
	return true
}

// FindFirst attempts a concurrent connect to every port in the range and
// returns the first one to succeed, cancelling all remaining in-flight
// attempts. It returns false if no port in the range is reachable within
// timeout.
func (p *Prober) FindFirst(ctx context.Context, ports []int, timeout time.Duration) (int, bool) {
	probeCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var g errgroup.Group
	var mu sync.Mutex
	found := -1

	for _, port := range ports {
		g.Go(func() error {
			if p.probe(probeCtx, port, timeout) {
				mu.Lock()
				if found == -1 {
					found = port
				}
				mu.Unlock()
				cancel()
			}
			return nil
		})
	}
	_ = g.Wait()

	if found == -1 {
		return 0, false
	}
	logger.Debugw("port probe found listener", "port", found)
	return found, true
}

// FindAll waits for every attempt in the range to complete and returns the
// successful ports sorted ascending.
func (p *Prober) FindAll(ctx context.Context, ports []int, timeout time.Duration) []int {
	var g errgroup.Group
	var mu sync.Mutex
	var open []int

	for _, port := range ports {
		g.Go(func() error {
			if p.probe(ctx, port, timeout) {
				mu.Lock()
				open = append(open, port)
				mu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Ints(open)
	return open
}
