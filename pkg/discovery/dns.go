package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/miekg/dns"
)

// DefaultLane is the lane stamped onto addresses recovered through DNS
// fallback, since a plain DNS record carries no lane attribute (spec §4.4
// step 6). It is the empty string: the glossary defines the default lane as
// the empty/absent lane, and every bucket/attribute comparison in this
// module treats "" as that bucket.
const DefaultLane = ""

// DNSResolver is the external collaborator C4 falls back to when the
// registry call fails or returns nothing (spec §6).
type DNSResolver interface {
	LookupSRV(ctx context.Context, name string) ([]InstanceAddress, error)
	LookupA(ctx context.Context, name string) ([]InstanceAddress, error)
}

// MiekgDNSResolver implements DNSResolver with github.com/miekg/dns against
// a configured set of nameservers, falling back to the host's
// /etc/resolv.conf when none are configured.
type MiekgDNSResolver struct {
	client      *dns.Client
	nameservers []string
}

// NewMiekgDNSResolver builds a resolver. With no nameservers given, it reads
// /etc/resolv.conf the way most Unix DNS clients do.
func NewMiekgDNSResolver(nameservers ...string) (*MiekgDNSResolver, error) {
	if len(nameservers) == 0 {
		cfg, err := dns.ClientConfigFromFile("/etc/resolv.conf")
		if err != nil {
			return nil, fmt.Errorf("reading resolv.conf: %w", err)
		}
		for _, server := range cfg.Servers {
			nameservers = append(nameservers, net.JoinHostPort(server, cfg.Port))
		}
	}
	if len(nameservers) == 0 {
		return nil, fmt.Errorf("no nameservers configured or discovered")
	}
	return &MiekgDNSResolver{client: new(dns.Client), nameservers: nameservers}, nil
}

func (r *MiekgDNSResolver) LookupSRV(ctx context.Context, name string) ([]InstanceAddress, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeSRV)

	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return nil, err
	}

	addrs := make([]InstanceAddress, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		srv, ok := rr.(*dns.SRV)
		if !ok {
			continue
		}
		addrs = append(addrs, InstanceAddress{
			Host: strings.TrimSuffix(srv.Target, "."),
			Port: int(srv.Port),
			Lane: DefaultLane,
		})
	}
	return addrs, nil
}

func (r *MiekgDNSResolver) LookupA(ctx context.Context, name string) ([]InstanceAddress, error) {
	msg := new(dns.Msg)
	msg.SetQuestion(dns.Fqdn(name), dns.TypeA)

	resp, err := r.exchange(ctx, msg)
	if err != nil {
		return nil, err
	}

	addrs := make([]InstanceAddress, 0, len(resp.Answer))
	for _, rr := range resp.Answer {
		a, ok := rr.(*dns.A)
		if !ok {
			continue
		}
		addrs = append(addrs, InstanceAddress{Host: a.A.String(), Lane: DefaultLane})
	}
	return addrs, nil
}

func (r *MiekgDNSResolver) exchange(ctx context.Context, msg *dns.Msg) (*dns.Msg, error) {
	var lastErr error
	for _, server := range r.nameservers {
		resp, _, err := r.client.ExchangeContext(ctx, msg, server)
		if err != nil {
			lastErr = err
			continue
		}
		return resp, nil
	}
	return nil, fmt.Errorf("dns query failed against all nameservers: %w", lastErr)
}
