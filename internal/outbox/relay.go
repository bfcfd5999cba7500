package outbox

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"time"

	"renewals/internal/platform/config"
)

// RelayOptions tunes the relay. Zero values fall back to defaults.
type RelayOptions struct {
	PollInterval    time.Duration
	BatchSize       int
	LockTTL         time.Duration
	MaxAttempts     int
	MaxBackoff      time.Duration
	Jitter          time.Duration
	DispatchTimeout time.Duration
	LastErrorBytes  int
	DepthEvery      time.Duration

	Logger  *slog.Logger
	Metrics *Metrics
	Rand    *rand.Rand
	Clock   func() time.Time
}

// OptionsFromConfig maps the OUTBOX_* settings onto RelayOptions.
func OptionsFromConfig(cfg config.OutboxConfig) RelayOptions {
	return RelayOptions{
		PollInterval:    cfg.PollInterval,
		BatchSize:       cfg.BatchSize,
		LockTTL:         cfg.LockTTL,
		MaxAttempts:     cfg.MaxAttempts,
		MaxBackoff:      cfg.MaxBackoff,
		Jitter:          cfg.Jitter,
		DispatchTimeout: cfg.DispatchTimeout,
		LastErrorBytes:  cfg.LastErrorBytes,
	}
}

func (o *RelayOptions) setDefaults() {
	if o.PollInterval <= 0 {
		o.PollInterval = time.Second
	}
	if o.BatchSize <= 0 {
		o.BatchSize = 100
	}
	if o.LockTTL <= 0 {
		o.LockTTL = 60 * time.Second
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 25
	}
	if o.MaxBackoff <= 0 {
		o.MaxBackoff = 60 * time.Second
	}
	if o.DispatchTimeout <= 0 {
		o.DispatchTimeout = 30 * time.Second
	}
	if o.LastErrorBytes <= 0 {
		o.LastErrorBytes = 2048
	}
	if o.DepthEvery <= 0 {
		o.DepthEvery = 10 * time.Second
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	if o.Rand == nil {
		o.Rand = rand.New(rand.NewSource(time.Now().UnixNano())) //nolint:gosec
	}
	if o.Clock == nil {
		o.Clock = time.Now
	}
}

// Relay delivers claimed messages through a Dispatcher and records the outcome
// on both the message and the owning request.
type Relay struct {
	store      Store
	dispatcher Dispatcher
	recorder   SyncRecorder
	opts       RelayOptions
	kick       chan struct{}
}

func NewRelay(store Store, dispatcher Dispatcher, recorder SyncRecorder, opts RelayOptions) (*Relay, error) {
	if store == nil {
		return nil, errors.New("outbox relay: store is required")
	}
	if dispatcher == nil {
		return nil, errors.New("outbox relay: dispatcher is required")
	}
	opts.setDefaults()
	return &Relay{
		store:      store,
		dispatcher: dispatcher,
		recorder:   recorder,
		opts:       opts,
		kick:       make(chan struct{}, 1),
	}, nil
}

// Kick wakes the relay without waiting for the next poll. It never blocks.
func (r *Relay) Kick() {
	select {
	case r.kick <- struct{}{}:
	default:
	}
}

// Run competes for leadership and, once elected, polls until ctx is done.
// Cancellation is a clean shutdown and returns nil.
func (r *Relay) Run(ctx context.Context) error {
	for {
		release, ok, err := r.store.TryLead(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.opts.Logger.WarnContext(ctx, "outbox relay leader election failed", "error", err)
		}
		if ok {
			r.opts.Metrics.setLeader(true)
			r.opts.Logger.InfoContext(ctx, "outbox relay became leader")
			err := r.loop(ctx)
			release()
			r.opts.Metrics.setLeader(false)
			return err
		}
		r.opts.Metrics.setLeader(false)
		if !r.sleep(ctx, r.opts.PollInterval) {
			return nil
		}
	}
}

func (r *Relay) loop(ctx context.Context) error {
	ticker := time.NewTicker(r.opts.PollInterval)
	defer ticker.Stop()
	nextDepth := time.Time{}

	for {
		if now := time.Now(); now.After(nextDepth) {
			r.observeDepth(ctx)
			nextDepth = now.Add(r.opts.DepthEvery)
		}

		if _, err := r.ProcessOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.opts.Logger.WarnContext(ctx, "outbox relay tick failed", "error", err)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		case <-r.kick:
		}
	}
}

// ProcessOnce claims one batch and dispatches it. It returns the number of
// messages claimed.
func (r *Relay) ProcessOnce(ctx context.Context) (int, error) {
	now := r.opts.Clock()
	msgs, err := r.store.Claim(ctx, now, now.Add(-r.opts.LockTTL), r.opts.MaxAttempts, r.opts.BatchSize)
	if err != nil {
		return 0, err
	}
	for _, msg := range msgs {
		if ctx.Err() != nil {
			return len(msgs), ctx.Err()
		}
		r.deliver(ctx, msg)
	}
	return len(msgs), nil
}

func (r *Relay) deliver(ctx context.Context, msg Message) {
	dispatchCtx, cancel := context.WithTimeout(ctx, r.opts.DispatchTimeout)
	start := time.Now()
	err := r.dispatcher.Dispatch(dispatchCtx, msg)
	cancel()

	logger := r.opts.Logger.With(
		"message_id", msg.ID.String(),
		"topic", string(msg.Topic),
		"aggregate_type", string(msg.AggregateType),
		"aggregate_id", msg.AggregateID,
		"attempts", msg.Attempts,
	)

	if err == nil {
		r.opts.Metrics.observeDispatch(msg.Topic, "success", start)
		if err := r.store.MarkPublished(ctx, msg.ID); err != nil {
			logger.WarnContext(ctx, "outbox mark published failed", "error", err)
			return
		}
		if r.recorder != nil {
			if err := r.recorder.MarkSynced(ctx, msg.AggregateType, msg.AggregateID); err != nil {
				logger.WarnContext(ctx, "outbox sync status update failed", "error", err)
			}
		}
		logger.InfoContext(ctx, "outbox message delivered")
		return
	}

	r.opts.Metrics.observeDispatch(msg.Topic, "failure", start)
	lastErr := truncateError(err, r.opts.LastErrorBytes)

	if IsPermanent(err) || msg.Attempts >= r.opts.MaxAttempts {
		r.opts.Metrics.incDead(msg.Topic)
		if err := r.store.MarkDead(ctx, msg.ID, lastErr); err != nil {
			logger.WarnContext(ctx, "outbox mark dead failed", "error", err)
			return
		}
		if r.recorder != nil {
			if err := r.recorder.MarkSyncFailed(ctx, msg.AggregateType, msg.AggregateID, lastErr); err != nil {
				logger.WarnContext(ctx, "outbox sync status update failed", "error", err)
			}
		}
		logger.ErrorContext(ctx, "outbox message dead", "error", lastErr, "permanent", IsPermanent(err))
		return
	}

	next := r.opts.Clock().Add(backoff(msg.Attempts, r.opts.MaxBackoff) + jitter(r.opts.Rand, r.opts.Jitter))
	if err := r.store.MarkFailed(ctx, msg.ID, lastErr, next); err != nil {
		logger.WarnContext(ctx, "outbox mark failed failed", "error", err)
		return
	}
	logger.WarnContext(ctx, "outbox dispatch failed, will retry", "error", lastErr, "next_attempt_at", next)
}

func (r *Relay) observeDepth(ctx context.Context) {
	st, err := r.store.Stats(ctx)
	if err != nil {
		r.opts.Logger.DebugContext(ctx, "outbox depth query failed", "error", err)
		return
	}
	r.opts.Metrics.setDepth(st)
}

func (r *Relay) sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	case <-r.kick:
		return true
	}
}
