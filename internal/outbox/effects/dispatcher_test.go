package effects_test

//go:generate mockgen -source=dispatcher.go -destination=mocks/mocks.go -package=mocks ResourceWriter

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"renewals/internal/clients/resource"
	"renewals/internal/clients/upstream"
	"renewals/internal/outbox"
	"renewals/internal/outbox/effects"
	"renewals/internal/outbox/effects/mocks"
	"renewals/pkg/domain"
)

type DispatcherSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	resources  *mocks.MockResourceWriter
	dispatcher *effects.Dispatcher
	now        time.Time
}

func TestDispatcherSuite(t *testing.T) {
	suite.Run(t, new(DispatcherSuite))
}

func (s *DispatcherSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.resources = mocks.NewMockResourceWriter(s.ctrl)
	s.dispatcher = effects.NewDispatcher(s.resources, nil)
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
}

func (s *DispatcherSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *DispatcherSuite) TestDomainOperator() {
	msg, err := effects.DomainOperatorMessage(5, effects.DomainOperatorPayload{DomainID: 10, OperatorID: 43}, s.now)
	s.Require().NoError(err)
	s.Equal(outbox.AggregateTransfer, msg.AggregateType)
	s.Equal(int64(5), msg.AggregateID)

	s.resources.EXPECT().UpdateDomainOperator(gomock.Any(), domain.DomainID(10), domain.EmployeeID(43)).Return(nil)
	s.NoError(s.dispatcher.Dispatch(context.Background(), msg))
}

func (s *DispatcherSuite) TestVaptUpdate() {
	expiry := s.now.AddDate(1, 0, 0)
	msg, err := effects.VaptUpdateMessage(6, effects.VaptUpdatePayload{VaptID: 7, NewExpiry: expiry, NewReport: []byte("%PDF")}, s.now)
	s.Require().NoError(err)

	s.resources.EXPECT().UpdateVapt(gomock.Any(), resource.VaptUpdate{VaptID: 7, NewExpiry: expiry, NewReport: []byte("%PDF")}).Return(nil)
	s.NoError(s.dispatcher.Dispatch(context.Background(), msg))
}

func (s *DispatcherSuite) TestIPUpdateErrorClassification() {
	expiry := s.now.AddDate(1, 0, 0)
	payload := effects.IPUpdatePayload{IPID: 8, NewAddresses: []string{"10.0.0.1"}, NewExpiry: expiry, RenewalProof: []byte("proof")}
	msg, err := effects.IPUpdateMessage(9, payload, s.now)
	s.Require().NoError(err)

	s.Run("not found is permanent", func() {
		s.resources.EXPECT().UpdateIP(gomock.Any(), gomock.Any()).
			Return(upstream.NewError(upstream.CategoryNotFound, "workflow-service", "update_ip", "ip not found", nil))
		err := s.dispatcher.Dispatch(context.Background(), msg)
		s.True(outbox.IsPermanent(err))
	})

	s.Run("outage is retryable", func() {
		s.resources.EXPECT().UpdateIP(gomock.Any(), gomock.Any()).
			Return(upstream.NewError(upstream.CategoryOutage, "workflow-service", "update_ip", "503", nil))
		err := s.dispatcher.Dispatch(context.Background(), msg)
		s.Error(err)
		s.False(outbox.IsPermanent(err))
	})
}

func (s *DispatcherSuite) TestUndeliverableMessages() {
	s.Run("unknown topic", func() {
		err := s.dispatcher.Dispatch(context.Background(), outbox.Message{Topic: "resource.unknown"})
		s.True(outbox.IsPermanent(err))
	})

	s.Run("corrupt payload", func() {
		err := s.dispatcher.Dispatch(context.Background(), outbox.Message{
			Topic:   outbox.TopicVaptUpdate,
			Payload: json.RawMessage(`{"vapt_id":`),
		})
		s.True(outbox.IsPermanent(err))
	})
}

func TestSyncRecorder(t *testing.T) {
	type call struct {
		id     int64
		status domain.SyncStatus
		reason string
	}
	var calls []call
	rec := effects.NewSyncRecorder(map[outbox.AggregateType]effects.SyncFunc{
		outbox.AggregateIPRenewal: func(_ context.Context, id int64, status domain.SyncStatus, reason string) error {
			calls = append(calls, call{id, status, reason})
			return nil
		},
	})

	ctx := context.Background()
	if err := rec.MarkSynced(ctx, outbox.AggregateIPRenewal, 1); err != nil {
		t.Fatalf("mark synced: %v", err)
	}
	if err := rec.MarkSyncFailed(ctx, outbox.AggregateIPRenewal, 2, "ip not found"); err != nil {
		t.Fatalf("mark sync failed: %v", err)
	}
	if err := rec.MarkSynced(ctx, outbox.AggregateTransfer, 3); err == nil {
		t.Fatal("expected error for unrouted aggregate type")
	}
	if len(calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(calls))
	}
	if calls[1] != (call{2, domain.SyncFailed, "ip not found"}) {
		t.Fatalf("unexpected call %+v", calls[1])
	}
}
