// Package discovery advertises and resolves lockstep servers on the local
// network via mDNS, so a client can find server_ip without being told it
// out-of-band (§12's supplemented feature — the Rust original had no
// analogue). It is kept optional and separate from ServerCore/ClientCore's
// own handshake: neither core requires it to function.
package discovery

import (
	"context"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the mDNS service the engine advertises under, mirroring
// the teacher's own hardcoded "_can-server._tcp" convention.
const ServiceType = "_lockstep._tcp"

// Entry describes one discovered server.
type Entry struct {
	Instance string
	AddrIPv4 []net.IP
	Port     int
	Text     []string
}

// Advertise registers instance (defaulting to "lockstep-<hostname>" when
// empty) on the local network, advertising port. The returned stop func
// unregisters it; callers should defer it or tie it to ctx cancellation.
func Advertise(ctx context.Context, instance string, port int, meta []string) (stop func(), err error) {
	if instance == "" {
		host, _ := os.Hostname()
		instance = fmt.Sprintf("lockstep-%s", host)
	}
	svc, err := zeroconf.Register(instance, ServiceType, "local.", port, meta, nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: register: %w", err)
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
		case <-done:
		}
		svc.Shutdown()
	}()
	return func() {
		close(done)
		svc.Shutdown()
	}, nil
}

// Discover browses for lockstep servers for up to timeout and returns
// whatever entries answered in that window.
func Discover(ctx context.Context, timeout time.Duration) ([]Entry, error) {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return nil, fmt.Errorf("discovery: new resolver: %w", err)
	}

	browseCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	results := make(chan *zeroconf.ServiceEntry)
	if err := resolver.Browse(browseCtx, ServiceType, "local.", results); err != nil {
		return nil, fmt.Errorf("discovery: browse: %w", err)
	}

	var found []Entry
	for e := range results {
		found = append(found, Entry{
			Instance: e.Instance,
			AddrIPv4: e.AddrIPv4,
			Port:     e.Port,
			Text:     e.Text,
		})
	}
	return found, nil
}
