// ABOUTME: Tenant identity resolution from request metadata.
// ABOUTME: Chain of resolvers tried in configured order, first match wins.

package tenancy

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/BlueBirdBack/claw-desk/internal/tenant"
)

// Resolver maps request metadata to a tenant id. An empty id with a nil
// error means "no match"; the chain moves on to the next resolver.
type Resolver interface {
	Name() string
	Resolve(ctx context.Context, rc tenant.RequestContext) (string, error)
}

// LookupFunc translates a resolved key (API key, subdomain) to a tenant id.
// It returns "" when the key is unknown.
type LookupFunc func(ctx context.Context, key string) (string, error)

// Chain tries each resolver in configured order and returns the first
// non-empty tenant id, or "" if none match.
type Chain struct {
	resolvers []Resolver
	logger    *slog.Logger
}

// NewChain creates a resolver chain. Order matters: it is the try order.
func NewChain(resolvers []Resolver, logger *slog.Logger) *Chain {
	return &Chain{
		resolvers: resolvers,
		logger:    logger.With("component", "resolver"),
	}
}

// Resolve runs the chain. A resolver error aborts the chain and propagates.
func (c *Chain) Resolve(ctx context.Context, rc tenant.RequestContext) (string, error) {
	for _, r := range c.resolvers {
		tenantID, err := r.Resolve(ctx, rc)
		if err != nil {
			return "", err
		}
		if tenantID != "" {
			c.logger.Debug("tenant resolved", "resolver", r.Name(), "tenant_id", tenantID)
			return tenantID, nil
		}
	}
	return "", nil
}

// ResolverNames lists the chain's resolver names in try order.
func (c *Chain) ResolverNames() []string {
	names := make([]string, len(c.resolvers))
	for i, r := range c.resolvers {
		names[i] = r.Name()
	}
	return names
}

// HeaderResolver resolves a tenant from a request header value, such as an
// X-API-Key, through a lookup function.
type HeaderResolver struct {
	HeaderName string
	Lookup     LookupFunc
}

func (r *HeaderResolver) Name() string { return "header" }

func (r *HeaderResolver) Resolve(ctx context.Context, rc tenant.RequestContext) (string, error) {
	value := rc.Header(strings.ToLower(r.HeaderName))
	if value == "" {
		return "", nil
	}
	return r.Lookup(ctx, value)
}

var ipRe = regexp.MustCompile(`^\d+\.\d+\.\d+\.\d+$`)

// SubdomainResolver resolves a tenant from a subdomain of the root domain,
// e.g. acme.clawdesk.com → "acme". The root domain itself, www, bare IPs,
// and multi-level subdomains never match.
type SubdomainResolver struct {
	RootDomain string
	Lookup     LookupFunc
}

func (r *SubdomainResolver) Name() string { return "subdomain" }

func (r *SubdomainResolver) Resolve(ctx context.Context, rc tenant.RequestContext) (string, error) {
	hostname := strings.ToLower(rc.Hostname)
	root := strings.ToLower(r.RootDomain)
	if hostname == "" {
		return "", nil
	}
	if hostname == root || hostname == "www."+root {
		return "", nil
	}
	if ipRe.MatchString(hostname) {
		return "", nil
	}

	suffix := "." + root
	if !strings.HasSuffix(hostname, suffix) {
		return "", nil
	}

	subdomain := strings.TrimSuffix(hostname, suffix)
	if subdomain == "" || strings.Contains(subdomain, ".") {
		return "", nil
	}

	return r.Lookup(ctx, subdomain)
}

// ClaimResolver resolves a tenant directly from pre-verified request claims.
type ClaimResolver struct {
	ClaimName string
}

func (r *ClaimResolver) Name() string { return "claim" }

func (r *ClaimResolver) Resolve(ctx context.Context, rc tenant.RequestContext) (string, error) {
	value, ok := rc.Claims[r.ClaimName].(string)
	if !ok || value == "" {
		return "", nil
	}
	return value, nil
}

// TokenClaimResolver resolves a tenant from a bearer JWT in the
// Authorization header, verified with an HS256 secret. An absent, malformed,
// or invalid token is a no-match, not an error: the chain keeps trying.
type TokenClaimResolver struct {
	Secret    []byte
	ClaimName string
	Logger    *slog.Logger
}

func (r *TokenClaimResolver) Name() string { return "token-claim" }

func (r *TokenClaimResolver) Resolve(ctx context.Context, rc tenant.RequestContext) (string, error) {
	header := rc.Header("authorization")
	tokenString, found := strings.CutPrefix(header, "Bearer ")
	if !found || tokenString == "" {
		return "", nil
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return r.Secret, nil
	})
	if err != nil || !token.Valid {
		if r.Logger != nil {
			r.Logger.Debug("bearer token rejected", "error", err)
		}
		return "", nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return "", nil
	}
	value, _ := claims[r.ClaimName].(string)
	return value, nil
}
