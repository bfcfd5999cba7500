// Package locator resolves logical service names to reachable base URLs.
package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"renewals/pkg/platform/sentinel"
)

// Resolver returns a base URL for a live instance of serviceName.
// Failures wrap sentinel.ErrUnavailable.
type Resolver interface {
	Resolve(ctx context.Context, serviceName string) (string, error)
}

// Static resolves from a fixed name to URL map.
type Static map[string]string

func (s Static) Resolve(_ context.Context, serviceName string) (string, error) {
	url, ok := s[serviceName]
	if !ok || url == "" {
		return "", fmt.Errorf("no static url for %s: %w", serviceName, sentinel.ErrUnavailable)
	}
	return strings.TrimRight(url, "/"), nil
}

// Chain tries each resolver in order and returns the first success.
type Chain []Resolver

func (c Chain) Resolve(ctx context.Context, serviceName string) (string, error) {
	var errs []error
	for _, r := range c {
		if r == nil {
			continue
		}
		url, err := r.Resolve(ctx, serviceName)
		if err == nil {
			return url, nil
		}
		if ctx.Err() != nil {
			return "", fmt.Errorf("resolve %s: %w: %w", serviceName, sentinel.ErrUnavailable, ctx.Err())
		}
		errs = append(errs, err)
	}
	if len(errs) == 0 {
		return "", fmt.Errorf("no resolvers for %s: %w", serviceName, sentinel.ErrUnavailable)
	}
	return "", errors.Join(errs...)
}
