package rpc

import (
	"context"
	"net"
	"strconv"

	"github.com/paw-chain/prover/x/prover/types"
)

// DNSResolver expands host:port into one address per resolved IP, keeping
// the port. Multi-answer DNS records are the peer discovery mechanism.
type DNSResolver struct {
	Resolver *net.Resolver
}

// NewDNSResolver uses the system resolver.
func NewDNSResolver() *DNSResolver {
	return &DNSResolver{Resolver: net.DefaultResolver}
}

// Resolve implements coordinator.Resolver.
func (r *DNSResolver) Resolve(ctx context.Context, lookup string) ([]string, error) {
	host, portStr, err := net.SplitHostPort(lookup)
	if err != nil {
		return nil, types.ErrPeerLookup.Wrapf("invalid node lookup %q: %s", lookup, err)
	}
	if _, err := strconv.ParseUint(portStr, 10, 16); err != nil {
		return nil, types.ErrPeerLookup.Wrapf("invalid port: %s", portStr)
	}

	ips, err := r.Resolver.LookupHost(ctx, host)
	if err != nil {
		return nil, types.ErrPeerLookup.Wrapf("failed to resolve host %s: %s", host, err)
	}

	addrs := make([]string, 0, len(ips))
	for _, ip := range ips {
		addrs = append(addrs, net.JoinHostPort(ip, portStr))
	}
	return addrs, nil
}

// StaticResolver answers every lookup with a fixed address list.
type StaticResolver []string

// Resolve implements coordinator.Resolver.
func (r StaticResolver) Resolve(context.Context, string) ([]string, error) {
	return append([]string(nil), r...), nil
}
