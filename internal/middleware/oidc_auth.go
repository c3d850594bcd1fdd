package middleware

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/oauth2"

	"estate-graphql/internal/auth"
	"estate-graphql/internal/logging"
	"estate-graphql/internal/observability"
)

// OIDCAuthConfig controls OIDC/JWKS validation behavior.
type OIDCAuthConfig struct {
	Enabled       bool
	IssuerURL     string
	Audience      string
	ClockSkew     time.Duration
	SkipTLSVerify bool
	// CAFile is an extra PEM bundle trusted when talking to the issuer.
	CAFile  string
	Metrics *observability.SecurityMetrics
}

// tokenVerifier checks a raw bearer token and returns its claims.
type tokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (map[string]interface{}, error)
}

type oidcVerifier struct {
	verifier *oidc.IDTokenVerifier
}

func (v oidcVerifier) Verify(ctx context.Context, rawToken string) (map[string]interface{}, error) {
	idToken, err := v.verifier.Verify(ctx, rawToken)
	if err != nil {
		return nil, err
	}
	claims := map[string]interface{}{}
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("failed to parse token claims: %w", err)
	}
	return claims, nil
}

// OIDCAuthMiddleware resolves the request principal from a Bearer token.
// Requests without a token run as the anonymous principal on the free plan;
// a token that fails verification is rejected with 401. When disabled every
// request is anonymous.
func OIDCAuthMiddleware(cfg OIDCAuthConfig, logger *logging.Logger) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		return func(next http.Handler) http.Handler { return next }, nil
	}
	if cfg.IssuerURL == "" || cfg.Audience == "" {
		return nil, errors.New("oidc auth enabled but issuer/audience not configured")
	}
	if cfg.ClockSkew == 0 {
		cfg.ClockSkew = 2 * time.Minute
	}

	issuerURL, err := url.Parse(cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid oidc issuer url: %w", err)
	}
	if issuerURL.Scheme != "https" {
		return nil, errors.New("oidc issuer url must use https")
	}
	if logger != nil && cfg.SkipTLSVerify {
		logger.Warn("oidc tls verification is disabled; enable only for local development",
			"issuer", cfg.IssuerURL,
		)
	}

	httpClient, err := newOIDCHTTPClient(cfg)
	if err != nil {
		return nil, err
	}
	ctx := oidc.ClientContext(context.Background(), httpClient)
	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize oidc provider: %w", err)
	}
	// Expiry is checked by validateTimeClaims so the configured skew applies.
	verifier := provider.Verifier(&oidc.Config{
		ClientID:        cfg.Audience,
		SkipExpiryCheck: true,
	})

	return principalMiddleware(oidcVerifier{verifier: verifier}, cfg), nil
}

func newOIDCHTTPClient(cfg OIDCAuthConfig) (*http.Client, error) {
	tlsConfig := &tls.Config{
		MinVersion:         tls.VersionTLS12,
		InsecureSkipVerify: cfg.SkipTLSVerify, //nolint:gosec // opt-in for local issuers
	}
	if cfg.CAFile != "" {
		pem, err := os.ReadFile(cfg.CAFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read oidc CA file: %w", err)
		}
		pool, err := x509.SystemCertPool()
		if err != nil || pool == nil {
			pool = x509.NewCertPool()
		}
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("failed to parse oidc CA file %q", cfg.CAFile)
		}
		tlsConfig.RootCAs = pool
	}

	return &http.Client{
		Transport: &http.Transport{TLSClientConfig: tlsConfig},
		Timeout:   10 * time.Second,
	}, nil
}

func principalMiddleware(verifier tokenVerifier, cfg OIDCAuthConfig) func(http.Handler) http.Handler {
	metrics := cfg.Metrics
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			endpoint := r.URL.Path
			logger := logging.FromContext(ctx)

			header := r.Header.Get("Authorization")
			if header == "" {
				next.ServeHTTP(w, r.WithContext(auth.WithPrincipal(ctx, auth.Anonymous())))
				return
			}

			if metrics != nil {
				metrics.RecordAuthAttempt(ctx, endpoint)
			}
			fail := func(reason, message string, err error) {
				if metrics != nil {
					metrics.RecordAuthFailure(ctx, endpoint, reason)
				}
				attrs := []any{
					slog.String("reason", reason),
					slog.String("endpoint", endpoint),
					slog.String("remote_addr", r.RemoteAddr),
				}
				if err != nil {
					attrs = append(attrs, slog.String("error", err.Error()))
				}
				logger.Warn("authentication failed", attrs...)
				writeUnauthorized(w, message)
			}

			tokenString := bearerToken(header)
			if tokenString == "" {
				fail("malformed_header", "malformed authorization header", nil)
				return
			}
			claims, err := verifier.Verify(ctx, tokenString)
			if err != nil {
				fail("token_verification_failed", "invalid token", err)
				return
			}
			if err := validateTimeClaims(claims, cfg.ClockSkew); err != nil {
				fail("time_validation_failed", "invalid token", err)
				return
			}

			principal := auth.FromClaims(claims)
			plan := "free"
			if principal.Has(auth.CapabilityPremium) {
				plan = string(auth.CapabilityPremium)
			}
			if metrics != nil {
				metrics.RecordAuthSuccess(ctx, endpoint, plan)
			}
			logger.Debug("authentication successful",
				slog.String("subject", principal.Subject),
				slog.String("plan", plan),
			)
			if span := trace.SpanFromContext(ctx); span.IsRecording() {
				span.SetAttributes(
					attribute.String("auth.subject", principal.Subject),
					attribute.String("auth.plan", plan),
					attribute.Bool("auth.authenticated", true),
				)
			}

			reqLogger := logger.WithFields(slog.String("subject", principal.Subject))
			ctx = logging.WithLogger(auth.WithPrincipal(ctx, principal), reqLogger)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func bearerToken(value string) string {
	parts := strings.SplitN(value, " ", 2)
	if len(parts) != 2 {
		return ""
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

func writeUnauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = fmt.Fprintf(w, `{"error":%q}`, message)
}

func validateTimeClaims(claims map[string]interface{}, skew time.Duration) error {
	now := time.Now()
	if exp, ok := numericDate(claims["exp"]); ok {
		if now.After(exp.Add(skew)) {
			return errors.New("token expired")
		}
	}
	if nbf, ok := numericDate(claims["nbf"]); ok {
		if now.Add(skew).Before(nbf) {
			return errors.New("token not valid yet")
		}
	}
	return nil
}

func numericDate(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case float64:
		return time.Unix(int64(v), 0), true
	case int64:
		return time.Unix(v, 0), true
	case int:
		return time.Unix(int64(v), 0), true
	case json.Number:
		parsed, err := v.Int64()
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	case string:
		parsed, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return time.Time{}, false
		}
		return time.Unix(parsed, 0), true
	default:
		return time.Time{}, false
	}
}
