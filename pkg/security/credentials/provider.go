// Package credentials resolves configuration values that may reference
// secrets instead of carrying them in plaintext. A value is either
// literal, an environment reference ("env:NAME"), or an encrypted blob
// ("encrypted:BASE64") decrypted through gocloud.dev/secrets, which
// backs onto AWS, GCP, Azure, Vault or a local key.
package credentials

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
)

// ErrUnresolvable is returned when no resolver in a chain can handle a
// value.
var ErrUnresolvable = errors.New("unresolvable credential reference")

// Resolver turns a configuration value into its usable form.
type Resolver interface {
	// Resolve returns the plaintext for a value. Values the resolver
	// does not recognize pass through unchanged.
	Resolve(ctx context.Context, value string) (string, error)

	// Close releases backend resources.
	Close() error
}

// Static passes every value through unchanged. The zero value is ready
// to use.
type Static struct{}

func (Static) Resolve(_ context.Context, value string) (string, error) {
	return value, nil
}

func (Static) Close() error { return nil }

// envPrefix marks a value as an environment variable reference.
const envPrefix = "env:"

// Env resolves "env:NAME" references from the process environment and
// passes other values through.
type Env struct{}

func (Env) Resolve(_ context.Context, value string) (string, error) {
	if !strings.HasPrefix(value, envPrefix) {
		return value, nil
	}
	name := strings.TrimPrefix(value, envPrefix)
	resolved, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("environment variable %s is not set", name)
	}
	return resolved, nil
}

func (Env) Close() error { return nil }

// Chain applies resolvers in order, feeding each one's output to the
// next, so "env:NAME" can hold an "encrypted:..." blob.
type Chain struct {
	resolvers []Resolver
}

// NewChain builds a chain over the given resolvers.
func NewChain(resolvers ...Resolver) *Chain {
	return &Chain{resolvers: resolvers}
}

func (c *Chain) Resolve(ctx context.Context, value string) (string, error) {
	var err error
	for _, r := range c.resolvers {
		value, err = r.Resolve(ctx, value)
		if err != nil {
			return "", err
		}
	}
	return value, nil
}

func (c *Chain) Close() error {
	var errs []error
	for _, r := range c.resolvers {
		if err := r.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
