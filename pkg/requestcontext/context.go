// Package requestcontext carries request-scoped values between middleware and
// the workflow services without importing net/http.
//
// Middleware writes the actor, request id, request time and client metadata;
// services read them for authorization, audit lines and timestamps. The outbox
// relay and tests build contexts directly with the With* functions.
package requestcontext

import (
	"context"
	"time"

	"renewals/pkg/domain"
)

type key int

const (
	actorKey key = iota
	requestIDKey
	requestTimeKey
	clientKey
)

// ClientMetadata describes the caller's connection. Label is the short
// "browser/os" form used in audit lines.
type ClientMetadata struct {
	IP        string
	UserAgent string
	Label     string
}

func value[T any](ctx context.Context, k key) (T, bool) {
	v, ok := ctx.Value(k).(T)
	return v, ok
}

// Actor returns the authenticated caller, or the zero Actor when unauthenticated.
func Actor(ctx context.Context) domain.Actor {
	a, _ := value[domain.Actor](ctx, actorKey)
	return a
}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorKey, actor)
}

func RequestID(ctx context.Context) string {
	id, _ := value[string](ctx, requestIDKey)
	return id
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time captured when the request arrived, so every timestamp
// written by one request agrees. Outside a request it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := value[time.Time](ctx, requestTimeKey); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}

func WithClientMetadata(ctx context.Context, md ClientMetadata) context.Context {
	return context.WithValue(ctx, clientKey, md)
}

func Metadata(ctx context.Context) ClientMetadata {
	md, _ := value[ClientMetadata](ctx, clientKey)
	return md
}

func ClientIP(ctx context.Context) string {
	return Metadata(ctx).IP
}

// Client is the parsed user-agent label, empty when unknown.
func Client(ctx context.Context) string {
	return Metadata(ctx).Label
}
