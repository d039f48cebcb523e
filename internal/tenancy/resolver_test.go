// ABOUTME: Tests for the tenant resolver chain and its built-in resolvers.
// ABOUTME: Covers try order, header/API-key lookup, subdomain rules, and JWT claims.

package tenancy

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

func staticLookup(table map[string]string) LookupFunc {
	return func(ctx context.Context, key string) (string, error) {
		return table[key], nil
	}
}

func TestChainFirstMatchWins(t *testing.T) {
	header := &HeaderResolver{
		HeaderName: "x-api-key",
		Lookup:     staticLookup(map[string]string{"sk-acme": "t-acme"}),
	}
	subdomain := &SubdomainResolver{
		RootDomain: "clawdesk.com",
		Lookup:     staticLookup(map[string]string{"acme": "t-acme-sub"}),
	}
	chain := NewChain([]Resolver{header, subdomain}, slog.Default())

	// Both resolvers would match; the first configured one wins.
	rc := tenant.RequestContext{
		Headers:  map[string]string{"x-api-key": "sk-acme"},
		Hostname: "acme.clawdesk.com",
	}
	id, err := chain.Resolve(context.Background(), rc)
	require.NoError(t, err)
	assert.Equal(t, "t-acme", id)

	// Without the header the chain falls through to the subdomain.
	id, err = chain.Resolve(context.Background(), tenant.RequestContext{Hostname: "acme.clawdesk.com"})
	require.NoError(t, err)
	assert.Equal(t, "t-acme-sub", id)
}

func TestChainNoMatch(t *testing.T) {
	chain := NewChain([]Resolver{
		&HeaderResolver{HeaderName: "x-api-key", Lookup: staticLookup(nil)},
	}, slog.Default())

	id, err := chain.Resolve(context.Background(), tenant.RequestContext{})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestChainResolverNames(t *testing.T) {
	chain := NewChain([]Resolver{
		&HeaderResolver{HeaderName: "x-api-key"},
		&SubdomainResolver{RootDomain: "clawdesk.com"},
		&ClaimResolver{ClaimName: "tenant_id"},
	}, slog.Default())
	assert.Equal(t, []string{"header", "subdomain", "claim"}, chain.ResolverNames())
}

func TestHeaderResolver(t *testing.T) {
	r := &HeaderResolver{
		HeaderName: "X-API-Key",
		Lookup:     staticLookup(map[string]string{"sk-1": "t-1"}),
	}

	// Headers are stored lowercase; the configured name may be mixed case.
	id, err := r.Resolve(context.Background(), tenant.RequestContext{
		Headers: map[string]string{"x-api-key": "sk-1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t-1", id)

	// Unknown key and absent header are both no-matches.
	id, err = r.Resolve(context.Background(), tenant.RequestContext{
		Headers: map[string]string{"x-api-key": "sk-unknown"},
	})
	require.NoError(t, err)
	assert.Empty(t, id)

	id, err = r.Resolve(context.Background(), tenant.RequestContext{})
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSubdomainResolver(t *testing.T) {
	r := &SubdomainResolver{
		RootDomain: "clawdesk.com",
		Lookup:     staticLookup(map[string]string{"acme": "t-acme"}),
	}

	tests := []struct {
		hostname string
		want     string
	}{
		{"acme.clawdesk.com", "t-acme"},
		{"ACME.clawdesk.com", "t-acme"},
		{"clawdesk.com", ""},       // root domain itself
		{"www.clawdesk.com", ""},   // www prefix
		{"10.0.0.1", ""},           // bare IP
		{"a.b.clawdesk.com", ""},   // multi-level subdomain
		{"acme.elsewhere.com", ""}, // different root domain
		{"ghost.clawdesk.com", ""}, // unknown subdomain
		{"", ""},
	}

	for _, tt := range tests {
		id, err := r.Resolve(context.Background(), tenant.RequestContext{Hostname: tt.hostname})
		require.NoError(t, err)
		assert.Equal(t, tt.want, id, "hostname %q", tt.hostname)
	}
}

func TestClaimResolver(t *testing.T) {
	r := &ClaimResolver{ClaimName: "tenant_id"}

	id, err := r.Resolve(context.Background(), tenant.RequestContext{
		Claims: map[string]any{"tenant_id": "t-7"},
	})
	require.NoError(t, err)
	assert.Equal(t, "t-7", id)

	// Missing, empty, and non-string claims are no-matches.
	for _, claims := range []map[string]any{
		nil,
		{"tenant_id": ""},
		{"tenant_id": 42},
		{"org_id": "t-7"},
	} {
		id, err := r.Resolve(context.Background(), tenant.RequestContext{Claims: claims})
		require.NoError(t, err)
		assert.Empty(t, id)
	}
}

func signToken(t *testing.T, secret []byte, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	require.NoError(t, err)
	return signed
}

func TestTokenClaimResolver(t *testing.T) {
	secret := []byte("test-secret")
	r := &TokenClaimResolver{Secret: secret, ClaimName: "tenant_id", Logger: slog.Default()}

	t.Run("valid token resolves", func(t *testing.T) {
		signed := signToken(t, secret, jwt.MapClaims{
			"tenant_id": "t-9",
			"exp":       time.Now().Add(time.Hour).Unix(),
		})
		id, err := r.Resolve(context.Background(), tenant.RequestContext{
			Headers: map[string]string{"authorization": "Bearer " + signed},
		})
		require.NoError(t, err)
		assert.Equal(t, "t-9", id)
	})

	t.Run("wrong secret is a no-match", func(t *testing.T) {
		signed := signToken(t, []byte("other-secret"), jwt.MapClaims{"tenant_id": "t-9"})
		id, err := r.Resolve(context.Background(), tenant.RequestContext{
			Headers: map[string]string{"authorization": "Bearer " + signed},
		})
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("expired token is a no-match", func(t *testing.T) {
		signed := signToken(t, secret, jwt.MapClaims{
			"tenant_id": "t-9",
			"exp":       time.Now().Add(-time.Hour).Unix(),
		})
		id, err := r.Resolve(context.Background(), tenant.RequestContext{
			Headers: map[string]string{"authorization": "Bearer " + signed},
		})
		require.NoError(t, err)
		assert.Empty(t, id)
	})

	t.Run("missing or malformed header is a no-match", func(t *testing.T) {
		for _, header := range []string{"", "Bearer ", "Basic abc", "garbage"} {
			id, err := r.Resolve(context.Background(), tenant.RequestContext{
				Headers: map[string]string{"authorization": header},
			})
			require.NoError(t, err)
			assert.Empty(t, id)
		}
	})
}
