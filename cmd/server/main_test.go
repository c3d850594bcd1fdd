package main

import (
	"testing"

	"estate-graphql/internal/config"

	"github.com/stretchr/testify/assert"
)

func TestReportValidation(t *testing.T) {
	tests := []struct {
		name   string
		result *config.ValidationResult
		want   bool
	}{
		{name: "clean", result: &config.ValidationResult{}, want: true},
		{
			name: "warnings only",
			result: &config.ValidationResult{Warnings: []config.ValidationWarning{
				{Field: "server.auth.oidc_enabled", Message: "disabled"},
			}},
			want: true,
		},
		{
			name: "errors stop startup",
			result: &config.ValidationResult{Errors: []config.ValidationError{
				{Field: "server.limits.free_max_limit", Message: "must be at least 1"},
			}},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, reportValidation(tt.result))
		})
	}
}
