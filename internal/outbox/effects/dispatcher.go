package effects

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"renewals/internal/clients/resource"
	"renewals/internal/clients/upstream"
	"renewals/internal/outbox"
	"renewals/pkg/domain"
)

// ResourceWriter is the subset of the resource directory client the
// dispatcher writes through.
type ResourceWriter interface {
	UpdateDomainOperator(ctx context.Context, id domain.DomainID, operator domain.EmployeeID) error
	UpdateVapt(ctx context.Context, u resource.VaptUpdate) error
	UpdateIP(ctx context.Context, u resource.IPUpdate) error
}

// Dispatcher routes outbox topics to resource directory calls.
type Dispatcher struct {
	resources ResourceWriter
	logger    *slog.Logger
}

func NewDispatcher(resources ResourceWriter, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Dispatcher{resources: resources, logger: logger}
}

// Dispatch applies msg. Failures the directory will never accept (missing
// resource, rejected payload, undecodable message) are returned as permanent.
func (d *Dispatcher) Dispatch(ctx context.Context, msg outbox.Message) error {
	var err error
	switch msg.Topic {
	case outbox.TopicDomainOperator:
		var p DomainOperatorPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		err = d.resources.UpdateDomainOperator(ctx, p.DomainID, p.OperatorID)
	case outbox.TopicVaptUpdate:
		var p VaptUpdatePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		err = d.resources.UpdateVapt(ctx, resource.VaptUpdate{
			VaptID:    p.VaptID,
			NewExpiry: p.NewExpiry,
			NewReport: p.NewReport,
		})
	case outbox.TopicIPUpdate:
		var p IPUpdatePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		err = d.resources.UpdateIP(ctx, resource.IPUpdate{
			IPID:         p.IPID,
			NewAddresses: p.NewAddresses,
			NewExpiry:    p.NewExpiry,
			RenewalProof: p.RenewalProof,
		})
	default:
		return outbox.Permanent(fmt.Errorf("unknown outbox topic %q", msg.Topic))
	}
	if err == nil {
		return nil
	}

	d.logger.WarnContext(ctx, "resource directory write failed",
		"topic", string(msg.Topic),
		"aggregate_id", msg.AggregateID,
		"category", string(upstream.CategoryOf(err)),
		"error", err,
	)
	switch upstream.CategoryOf(err) {
	case upstream.CategoryNotFound, upstream.CategoryBadData:
		return outbox.Permanent(err)
	default:
		return err
	}
}

func decode(msg outbox.Message, v any) error {
	if err := json.Unmarshal(msg.Payload, v); err != nil {
		return outbox.Permanent(fmt.Errorf("decode %s payload: %w", msg.Topic, err))
	}
	return nil
}
