package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SecurityMetrics counts authentication outcomes and rate limit rejections.
type SecurityMetrics struct {
	authAttempts  metric.Int64Counter
	authFailures  metric.Int64Counter
	authSuccesses metric.Int64Counter
	rateLimited   metric.Int64Counter
}

// InitSecurityMetrics initializes security-specific metrics
func InitSecurityMetrics() (*SecurityMetrics, error) {
	meter := otel.Meter("estate-graphql/security")

	authAttempts, err := meter.Int64Counter(
		"security.auth.attempts.total",
		metric.WithDescription("Total number of authentication attempts"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth attempts counter: %w", err)
	}

	authFailures, err := meter.Int64Counter(
		"security.auth.failures.total",
		metric.WithDescription("Total number of authentication failures"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth failures counter: %w", err)
	}

	authSuccesses, err := meter.Int64Counter(
		"security.auth.successes.total",
		metric.WithDescription("Total number of successful authentications by plan"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create auth successes counter: %w", err)
	}

	rateLimited, err := meter.Int64Counter(
		"security.rate_limited.total",
		metric.WithDescription("Total number of requests rejected by the rate limiter"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create rate limited counter: %w", err)
	}

	return &SecurityMetrics{
		authAttempts:  authAttempts,
		authFailures:  authFailures,
		authSuccesses: authSuccesses,
		rateLimited:   rateLimited,
	}, nil
}

// RecordAuthAttempt records an authentication attempt
func (m *SecurityMetrics) RecordAuthAttempt(ctx context.Context, endpoint string) {
	m.authAttempts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}

// RecordAuthFailure records a failed authentication attempt
func (m *SecurityMetrics) RecordAuthFailure(ctx context.Context, endpoint, reason string) {
	m.authFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("reason", reason),
	))
}

// RecordAuthSuccess records a successful authentication and the caller's plan.
func (m *SecurityMetrics) RecordAuthSuccess(ctx context.Context, endpoint, plan string) {
	m.authSuccesses.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("plan", plan),
	))
}

func (m *SecurityMetrics) RecordRateLimited(ctx context.Context, endpoint string) {
	m.rateLimited.Add(ctx, 1, metric.WithAttributes(
		attribute.String("endpoint", endpoint),
	))
}
