// Package client provides Google API client setup from service-account
// credentials.
package client

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
)

// New creates an HTTP client authenticated with the service-account key file
// at the given path, scoped for the requested APIs.
func New(ctx context.Context, credentialsPath string, scope ...string) (*http.Client, error) {
	b, err := os.ReadFile(credentialsPath)
	if err != nil {
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}
	return NewFromJSON(ctx, b, scope...)
}

// NewFromJSON creates an HTTP client from service-account key JSON.
func NewFromJSON(ctx context.Context, credentialsJSON []byte, scope ...string) (*http.Client, error) {
	config, err := google.JWTConfigFromJSON(credentialsJSON, scope...)
	if err != nil {
		return nil, fmt.Errorf("parsing service account credentials: %w", err)
	}
	return config.Client(ctx), nil
}
