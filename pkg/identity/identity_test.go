package identity

import (
	"net/http"
	"testing"
)

func TestFromClaims(t *testing.T) {
	p := FromClaims(ClaimSet{
		"email": "alice@example.com",
		"sub":   "alice",
		"oid":   "tenant-1",
	})

	if p.Email != "alice@example.com" {
		t.Errorf("Expected email alice@example.com, got %s", p.Email)
	}
	if p.Subject != "alice" {
		t.Errorf("Expected subject alice, got %s", p.Subject)
	}
	if p.Tenant != "tenant-1" {
		t.Errorf("Expected tenant tenant-1, got %s", p.Tenant)
	}
	if !p.Trackable() {
		t.Error("Principal with subject and tenant should be trackable")
	}
}

func TestFromClaimsCaseInsensitive(t *testing.T) {
	p := FromClaims(ClaimSet{
		"Email": "bob@example.com",
		"SUB":   "bob",
		"Oid":   "tenant-2",
	})

	if p.Subject != "bob" || p.Tenant != "tenant-2" || p.Email != "bob@example.com" {
		t.Errorf("Claim matching should be case-insensitive, got %+v", p)
	}
}

func TestTrackable(t *testing.T) {
	cases := []struct {
		name      string
		principal Principal
		want      bool
	}{
		{"both present", Principal{Subject: "s", Tenant: "t"}, true},
		{"missing subject", Principal{Tenant: "t"}, false},
		{"missing tenant", Principal{Subject: "s"}, false},
		{"anonymous", Principal{}, false},
	}

	for _, tc := range cases {
		if got := tc.principal.Trackable(); got != tc.want {
			t.Errorf("%s: Trackable() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

func TestFromHeader(t *testing.T) {
	h := http.Header{}
	h.Set(HeaderEmail, " carol@example.com ")
	h.Set(HeaderSubject, "carol")
	h.Set(HeaderTenant, "tenant-3")

	p := FromHeader(h)
	if p.Email != "carol@example.com" {
		t.Errorf("Expected trimmed email, got %q", p.Email)
	}
	if p.Subject != "carol" || p.Tenant != "tenant-3" {
		t.Errorf("Unexpected principal: %+v", p)
	}
}

func TestFromHeaderEmpty(t *testing.T) {
	p := FromHeader(http.Header{})
	if p.Trackable() {
		t.Error("Empty headers should not produce a trackable principal")
	}
}
