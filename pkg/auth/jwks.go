package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/MicahParks/keyfunc/v3"
	"github.com/golang-jwt/jwt/v5"
)

// ErrInvalidAudience is returned when a token is not addressed to this service.
var ErrInvalidAudience = errors.New("token audience does not include this service")

// signingMethods are the asymmetric algorithms accepted from JWKS issuers.
var signingMethods = []string{"RS256", "RS384", "RS512", "ES256", "ES384", "ES512"}

// JWKSClientInterface validates report viewer tokens.
type JWKSClientInterface interface {
	// ValidateToken returns the claims of a valid token, or an error when the
	// token is malformed, expired, mis-addressed or from an unknown issuer.
	ValidateToken(tokenString string) (*Claims, error)
	// Close releases any resources held by the client.
	Close()
}

// JWKSConfig contains configuration for the JWKS client.
type JWKSConfig struct {
	// EnableVerification controls whether JWT signatures are verified.
	// When false, tokens are parsed without verification (local development).
	EnableVerification bool
	// JWKSEndpoints maps accepted issuers to their JWKS URLs.
	JWKSEndpoints map[string]string
	// Audience, when set, must appear in the token's aud claim.
	Audience string
}

// JWKSClient validates tokens against the public keys of whitelisted issuers.
type JWKSClient struct {
	issuers map[string]keyfunc.Keyfunc
	config  *JWKSConfig
	parser  *jwt.Parser
}

// NewJWKSClient creates a JWKS client. With verification enabled it loads the
// key set of every configured issuer and fails if any cannot be loaded.
func NewJWKSClient(config *JWKSConfig) (*JWKSClient, error) {
	client := &JWKSClient{
		issuers: make(map[string]keyfunc.Keyfunc),
		config:  config,
		parser:  jwt.NewParser(jwt.WithValidMethods(signingMethods)),
	}

	if !config.EnableVerification {
		return client, nil
	}

	for issuer, jwksURL := range config.JWKSEndpoints {
		kf, err := keyfunc.NewDefaultCtx(context.Background(), []string{jwksURL})
		if err != nil {
			return nil, fmt.Errorf("failed to create JWKS client for %s: %w", issuer, err)
		}
		client.issuers[issuer] = kf
	}

	return client, nil
}

// ValidateToken parses tokenString and returns its claims.
func (c *JWKSClient) ValidateToken(tokenString string) (*Claims, error) {
	var (
		claims *Claims
		err    error
	)
	if c.config.EnableVerification {
		claims, err = c.parseVerified(tokenString)
	} else {
		claims, err = c.parseUnverified(tokenString)
	}
	if err != nil {
		return nil, err
	}

	if err := c.checkAudience(claims); err != nil {
		return nil, err
	}
	return claims, nil
}

func (c *JWKSClient) parseVerified(tokenString string) (*Claims, error) {
	token, err := c.parser.ParseWithClaims(tokenString, &Claims{}, c.keyForIssuer)
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

// keyForIssuer resolves the verification key from the JWKS of the token's
// issuer. Tokens from issuers outside JWKSEndpoints are rejected.
func (c *JWKSClient) keyForIssuer(token *jwt.Token) (any, error) {
	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}

	kf, ok := c.issuers[claims.Issuer]
	if !ok {
		return nil, fmt.Errorf("unauthorized issuer: %s", claims.Issuer)
	}
	return kf.KeyfuncCtx(context.Background())(token)
}

// parseUnverified reads claims without checking the signature or expiry.
func (c *JWKSClient) parseUnverified(tokenString string) (*Claims, error) {
	parser := jwt.NewParser(jwt.WithoutClaimsValidation())
	token, _, err := parser.ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, fmt.Errorf("failed to parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, errors.New("invalid claims type")
	}
	return claims, nil
}

func (c *JWKSClient) checkAudience(claims *Claims) error {
	if c.config.Audience == "" {
		return nil
	}
	if slices.Contains(claims.Audience, c.config.Audience) {
		return nil
	}
	return ErrInvalidAudience
}

// Close is a no-op; keyfunc v3 refreshes in a goroutine bound to the
// background context.
func (c *JWKSClient) Close() {}

var _ JWKSClientInterface = (*JWKSClient)(nil)
