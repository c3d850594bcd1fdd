// Package auth carries the caller identity consumed by result gating. The
// principal is built by HTTP middleware from verified token claims; query
// code only reads it.
package auth

import (
	"context"
	"sort"
	"strings"
)

// Capability is a named permission granted to a principal.
type Capability string

// CapabilityPremium raises the maximum page size.
const CapabilityPremium Capability = "premium"

// Claim names read from verified tokens.
const (
	PlanClaim  = "plan"
	RolesClaim = "roles"
)

// Principal identifies the caller of one request.
type Principal struct {
	Subject      string
	Capabilities map[Capability]struct{}
}

// Anonymous is the principal of unauthenticated requests.
func Anonymous() Principal {
	return Principal{}
}

// NewPrincipal builds a principal with the given capabilities.
func NewPrincipal(subject string, capabilities ...Capability) Principal {
	p := Principal{Subject: subject, Capabilities: make(map[Capability]struct{}, len(capabilities))}
	for _, c := range capabilities {
		c = Capability(strings.ToLower(strings.TrimSpace(string(c))))
		if c != "" {
			p.Capabilities[c] = struct{}{}
		}
	}
	return p
}

// FromClaims maps token claims to a principal. The plan claim and every
// entry of the roles claim become capabilities.
func FromClaims(claims map[string]interface{}) Principal {
	subject, _ := claims["sub"].(string)

	var caps []Capability
	if plan, ok := claims[PlanClaim].(string); ok {
		caps = append(caps, Capability(plan))
	}
	switch roles := claims[RolesClaim].(type) {
	case string:
		for _, role := range strings.Fields(strings.ReplaceAll(roles, ",", " ")) {
			caps = append(caps, Capability(role))
		}
	case []string:
		for _, role := range roles {
			caps = append(caps, Capability(role))
		}
	case []interface{}:
		for _, item := range roles {
			if role, ok := item.(string); ok {
				caps = append(caps, Capability(role))
			}
		}
	}
	return NewPrincipal(subject, caps...)
}

// Has reports whether the principal holds c.
func (p Principal) Has(c Capability) bool {
	_, ok := p.Capabilities[c]
	return ok
}

// Authenticated reports whether the principal came from a verified token.
func (p Principal) Authenticated() bool {
	return p.Subject != ""
}

// CapabilityNames returns the capabilities in sorted order, for logs and
// span attributes.
func (p Principal) CapabilityNames() []string {
	names := make([]string, 0, len(p.Capabilities))
	for c := range p.Capabilities {
		names = append(names, string(c))
	}
	sort.Strings(names)
	return names
}

// Limits holds the plan-gated page size caps.
type Limits struct {
	FreeMaxLimit    int
	PremiumMaxLimit int
}

// MaxLimit returns the largest page size p may request.
func (l Limits) MaxLimit(p Principal) int {
	if p.Has(CapabilityPremium) {
		return l.PremiumMaxLimit
	}
	return l.FreeMaxLimit
}

type principalKey struct{}

// WithPrincipal stores p in ctx.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the request principal, or the anonymous
// principal when none was set.
func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Anonymous()
	}
	if p, ok := ctx.Value(principalKey{}).(Principal); ok {
		return p
	}
	return Anonymous()
}
