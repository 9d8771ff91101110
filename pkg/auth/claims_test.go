package auth

import (
	"context"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
)

func TestClaims_Property(t *testing.T) {
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-1"},
		TenantID:         "tenant-a",
		Email:            "ada@example.com",
		Name:             "Ada",
		Roles:            []string{"viewer", "analyst"},
	}

	tests := []struct {
		name   string
		want   any
		wantOK bool
	}{
		{"id", "user-1", true},
		{"sub", "user-1", true},
		{"EMAIL", "ada@example.com", true},
		{"name", "Ada", true},
		{"tenant_id", "tenant-a", true},
		{"roles", "viewer,analyst", true},
		{"region", nil, false}, // empty
		{"favourite_color", nil, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := claims.Property(tt.name)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}

	var nilClaims *Claims
	_, ok := nilClaims.Property("email")
	assert.False(t, ok)
}

func TestGetClaims(t *testing.T) {
	_, ok := GetClaims(context.Background())
	assert.False(t, ok)

	claims := &Claims{TenantID: "t"}
	got, ok := GetClaims(WithClaims(context.Background(), claims))
	assert.True(t, ok)
	assert.Same(t, claims, got)
}
