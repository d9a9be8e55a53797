package transport

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/grandcat/zeroconf"
)

const (
	// ServiceName is the mDNS service name without domain suffix.
	ServiceName = "_vitalsync._tcp"
	// ServiceDomain is the mDNS domain.
	ServiceDomain = "local."
	// ServiceToken identifies the advertising/browsing domain. Peers using
	// different tokens never discover each other.
	ServiceToken = "vitalsync-sync"
)

// advertise registers the local device on mDNS. Callers own the returned
// server and must Shutdown it.
func advertise(deviceID, deviceName string, port int) (*zeroconf.Server, error) {
	txt := []string{
		"token=" + ServiceToken,
		"device_id=" + deviceID,
	}

	server, err := zeroconf.Register(deviceName, ServiceName, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("register mDNS service: %w", err)
	}
	return server, nil
}

// browse streams matching peers to found until ctx is cancelled. Entries
// with a foreign token or our own device id are dropped.
func browse(ctx context.Context, selfDeviceID string, found chan<- Peer) error {
	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry, 8)
	go func() {
		for entry := range entries {
			peer, ok := peerFromEntry(entry)
			if !ok || peer.ID == selfDeviceID {
				continue
			}
			select {
			case found <- peer:
			case <-ctx.Done():
				return
			}
		}
	}()

	if err := resolver.Browse(ctx, ServiceName, ServiceDomain, entries); err != nil {
		return fmt.Errorf("browse mDNS service: %w", err)
	}
	return nil
}

func peerFromEntry(entry *zeroconf.ServiceEntry) (Peer, bool) {
	var token, deviceID string
	for _, txt := range entry.Text {
		if v, ok := strings.CutPrefix(txt, "token="); ok {
			token = v
		}
		if v, ok := strings.CutPrefix(txt, "device_id="); ok {
			deviceID = v
		}
	}
	if token != ServiceToken {
		return Peer{}, false
	}

	var ip net.IP
	if len(entry.AddrIPv4) > 0 {
		ip = entry.AddrIPv4[0]
	} else if len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0]
	} else {
		return Peer{}, false
	}

	return Peer{
		ID:   deviceID,
		Name: entry.Instance,
		Addr: net.JoinHostPort(ip.String(), fmt.Sprintf("%d", entry.Port)),
	}, true
}
