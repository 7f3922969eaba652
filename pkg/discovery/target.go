package discovery

import (
	"strconv"
	"strings"

	"lanemesh/pkg/laneerror"
)

// Scheme is the resolver.Builder scheme this package registers with gRPC.
const Scheme = "cloud"

// Target is the parsed form of a cloud:///service.namespace[:port] dial
// target (grammar in spec §6).
type Target struct {
	Service   string
	Namespace string
	Port      int // 0 means "not specified in the target"
}

// ParseTarget parses the endpoint portion of a cloud:/// target (the
// resolver.Target's Endpoint, with the mandatory-empty authority already
// checked by the caller). Failure is laneerror.InvalidTarget (spec §6, §7).
func ParseTarget(endpoint string) (Target, error) {
	endpoint = strings.TrimPrefix(endpoint, "/")
	if endpoint == "" {
		return Target{}, laneerror.New(laneerror.InvalidTarget, "empty target endpoint")
	}

	rest := endpoint
	port := 0
	if idx := strings.LastIndex(endpoint, ":"); idx >= 0 {
		portStr := endpoint[idx+1:]
		p, err := strconv.Atoi(portStr)
		if err != nil || p <= 0 || p > 65535 {
			return Target{}, laneerror.New(laneerror.InvalidTarget, "invalid port %q", portStr)
		}
		port = p
		rest = endpoint[:idx]
	}

	dot := strings.Index(rest, ".")
	if dot <= 0 || dot == len(rest)-1 {
		return Target{}, laneerror.New(laneerror.InvalidTarget, "expected service.namespace, got %q", rest)
	}
	service, namespace := rest[:dot], rest[dot+1:]

	if !isValidServiceOrNamespace(service, false) {
		return Target{}, laneerror.New(laneerror.InvalidTarget, "invalid service name %q", service)
	}
	if !isValidServiceOrNamespace(namespace, true) {
		return Target{}, laneerror.New(laneerror.InvalidTarget, "invalid namespace %q", namespace)
	}

	return Target{Service: service, Namespace: namespace, Port: port}, nil
}

func isValidServiceOrNamespace(s string, allowDot bool) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		case r == '.' && allowDot:
		default:
			return false
		}
	}
	return true
}

// FullName is the "service.namespace" form registry lookups use.
func (t Target) FullName() string {
	return t.Service + "." + t.Namespace
}
