// Package identity resolves the authenticated principal presented by the
// transport layer into the fixed set of claims the connection tracking
// code needs. The rest of the server never inspects raw claim collections.
package identity

import (
	"net/http"
	"strings"
)

// Claim names as issued by the identity provider. The tenant is carried in
// the "oid" claim; the request host is never consulted for tenant resolution.
const (
	ClaimEmail   = "email"
	ClaimSubject = "sub"
	ClaimTenant  = "oid"
)

// Trusted headers set by the authenticating reverse proxy.
const (
	HeaderEmail   = "X-Auth-Email"
	HeaderSubject = "X-Auth-Subject"
	HeaderTenant  = "X-Auth-Tenant"
)

// Principal is the resolved identity of a connecting client
type Principal struct {
	Email   string
	Subject string
	Tenant  string
}

// Trackable reports whether the principal carries enough identity to be
// tracked in the connection registry. An untrackable principal may still
// hold a connection open; it just never receives routed notifications.
func (p Principal) Trackable() bool {
	return p.Subject != "" && p.Tenant != ""
}

// ClaimSet is a flat view of the principal's claims
type ClaimSet map[string]string

// FromClaims extracts a principal from a claim set. Claim names are matched
// case-insensitively, mirroring how the upstream identity provider issues them.
func FromClaims(claims ClaimSet) Principal {
	var p Principal
	for name, value := range claims {
		switch strings.ToLower(name) {
		case ClaimEmail:
			p.Email = value
		case ClaimSubject:
			p.Subject = value
		case ClaimTenant:
			p.Tenant = value
		}
	}
	return p
}

// FromHeader extracts a principal from trusted reverse-proxy headers.
// Authentication itself happens upstream; by the time a request reaches
// this server the headers are authoritative.
func FromHeader(h http.Header) Principal {
	return Principal{
		Email:   strings.TrimSpace(h.Get(HeaderEmail)),
		Subject: strings.TrimSpace(h.Get(HeaderSubject)),
		Tenant:  strings.TrimSpace(h.Get(HeaderTenant)),
	}
}
