package notification

import (
	"context"
	"net/http"

	"renewals/internal/clients/upstream"
)

// WebhookEmitter posts events to the notification service webhook.
type WebhookEmitter struct {
	caller *upstream.Caller
}

func NewWebhookEmitter(caller *upstream.Caller) *WebhookEmitter {
	return &WebhookEmitter{caller: caller}
}

func (e *WebhookEmitter) Emit(ctx context.Context, event Event) error {
	return e.caller.Do(ctx, upstream.Request{
		Operation: "notify_webhook",
		Method:    http.MethodPost,
		Path:      "/api/v1/notify/webhook",
		Body:      event,
	}, nil)
}
