package service_test

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks Store,StoreTx,Directory,Identity,Outbox,Kicker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"renewals/internal/clients/identity"
	"renewals/internal/clients/resource"
	"renewals/internal/clients/upstream"
	"renewals/internal/notification"
	notificationmocks "renewals/internal/notification/mocks"
	"renewals/internal/outbox"
	"renewals/internal/outbox/effects"
	"renewals/internal/transfer/models"
	"renewals/internal/transfer/service"
	"renewals/internal/transfer/service/mocks"
	"renewals/internal/transfer/store"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/testutil"
)

const (
	domainID   = domain.DomainID(10)
	operatorID = domain.EmployeeID(42)
	receiverID = domain.EmployeeID(43)
	approverID = domain.EmployeeID(7)
)

type ServiceSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	directory *mocks.MockDirectory
	identity  *mocks.MockIdentity
	kicker    *mocks.MockKicker
	notifier  *notificationmocks.MockEmitter
	store     *store.InMemoryStore
	outbox    *outbox.MemoryStore
	svc       *service.Service
	now       time.Time
}

func TestServiceSuite(t *testing.T) {
	suite.Run(t, new(ServiceSuite))
}

func (s *ServiceSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.directory = mocks.NewMockDirectory(s.ctrl)
	s.identity = mocks.NewMockIdentity(s.ctrl)
	s.kicker = mocks.NewMockKicker(s.ctrl)
	s.notifier = notificationmocks.NewMockEmitter(s.ctrl)
	s.store = store.NewInMemory()
	s.outbox = outbox.NewMemoryStore()
	s.now = time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	s.svc = service.New(s.store, s.store, s.directory, s.identity, s.outbox,
		service.WithKicker(s.kicker),
		service.WithNotifier(s.notifier),
	)
}

func (s *ServiceSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ServiceSuite) as(id domain.EmployeeID, role domain.Role) (context.Context, domain.Actor) {
	return testutil.ActorContext(int64(id), role, s.now), domain.Actor{ID: id, Role: role}
}

func (s *ServiceSuite) expectDomain() {
	s.directory.EXPECT().GetDomain(gomock.Any(), domainID).
		Return(&resource.Domain{ID: domainID, Name: "example.gov.in", DRM: operatorID, HOD: approverID}, nil)
}

func (s *ServiceSuite) expectUser(role domain.Role, id domain.EmployeeID) {
	s.identity.EXPECT().GetUser(gomock.Any(), role, id).Return(&identity.User{EmpNo: id, Role: role}, nil)
}

func (s *ServiceSuite) expectNotify(eventType notification.EventType) {
	s.notifier.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev notification.Event) error {
			s.Equal(eventType, ev.EventType)
			return nil
		})
}

func (s *ServiceSuite) createOpen() *models.Transfer {
	s.expectDomain()
	s.expectUser(domain.RoleDRM, operatorID)
	s.expectUser(domain.RoleDRM, receiverID)
	s.expectNotify(notification.EventTransferStarted)

	ctx, actor := s.as(operatorID, domain.RoleDRM)
	t, err := s.svc.Create(ctx, actor, service.CreateCommand{
		DomainID: domainID, FromID: operatorID, ToID: receiverID, Reason: "reorg", Proof: []byte("%PDF"),
	})
	s.Require().NoError(err)
	return t
}

func (s *ServiceSuite) TestCreate() {
	s.Run("persists an open transfer assigned to the domain approver", func() {
		t := s.createOpen()
		s.Equal(domain.TransferID(1), t.ID)
		s.Equal(approverID, t.ApproverID)
		s.False(t.Approved)
		s.Equal(domain.SyncNone, t.SyncStatus)
		s.Equal(domain.NoRemarks, t.ApproverRemarks)
		s.Equal(s.now, t.CreatedAt)
	})

	s.Run("second open transfer for the same domain conflicts", func() {
		ctx, actor := s.as(operatorID, domain.RoleDRM)
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: operatorID, ToID: receiverID, Proof: []byte("x")})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestCreateRejections() {
	ctx, actor := s.as(operatorID, domain.RoleDRM)

	s.Run("source equals destination", func() {
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: operatorID, ToID: operatorID})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("initiator is not the source", func() {
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: receiverID, ToID: operatorID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("domain missing", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).
			Return(nil, upstream.NewError(upstream.CategoryNotFound, "workflow-service", "get_domain", "404", nil))
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: operatorID, ToID: receiverID})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("directory unreachable", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).
			Return(nil, upstream.NewError(upstream.CategoryOutage, "workflow-service", "get_domain", "503", nil))
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: operatorID, ToID: receiverID})
		s.True(dErrors.HasCode(err, dErrors.CodeUnavailable))
	})

	s.Run("destination operator missing", func() {
		s.expectDomain()
		s.expectUser(domain.RoleDRM, operatorID)
		s.identity.EXPECT().GetUser(gomock.Any(), domain.RoleDRM, receiverID).
			Return(nil, upstream.NewError(upstream.CategoryNotFound, "user-management-service", "get_user", "404", nil))
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: operatorID, ToID: receiverID})
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("source is not the domain's operator", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).
			Return(&resource.Domain{ID: domainID, DRM: 99, HOD: approverID}, nil)
		s.expectUser(domain.RoleDRM, operatorID)
		s.expectUser(domain.RoleDRM, receiverID)
		_, err := s.svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, FromID: operatorID, ToID: receiverID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	list, err := s.store.ListByDomain(context.Background(), domainID)
	s.Require().NoError(err)
	s.Empty(list, "rejected creates must not persist anything")
}

func (s *ServiceSuite) TestApprove() {
	t := s.createOpen()

	s.Run("approves, enqueues the operator change and wakes the relay", func() {
		ctx, actor := s.as(approverID, domain.RoleHOD)
		s.expectUser(domain.RoleHOD, approverID)
		s.kicker.EXPECT().Kick()
		s.expectNotify(notification.EventTransferApproved)

		approved, err := s.svc.Approve(ctx, actor, t.ID, "")
		s.Require().NoError(err)
		s.True(approved.Approved)
		s.Equal(domain.SyncPending, approved.SyncStatus)
		s.Equal(domain.NoRemarks, approved.ApproverRemarks)
		s.Require().NotNil(approved.ApprovedAt)
		s.Equal(s.now, *approved.ApprovedAt)

		msgs := s.outbox.Messages()
		s.Require().Len(msgs, 1)
		s.Equal(outbox.TopicDomainOperator, msgs[0].Topic)
		s.Equal(int64(t.ID), msgs[0].AggregateID)
		var payload effects.DomainOperatorPayload
		s.Require().NoError(json.Unmarshal(msgs[0].Payload, &payload))
		s.Equal(effects.DomainOperatorPayload{DomainID: domainID, OperatorID: receiverID}, payload)
	})

	s.Run("second approval conflicts", func() {
		ctx, actor := s.as(approverID, domain.RoleHOD)
		_, err := s.svc.Approve(ctx, actor, t.ID, "again")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		s.Len(s.outbox.Messages(), 1)
	})
}

func (s *ServiceSuite) TestApproveRejections() {
	t := s.createOpen()

	s.Run("wrong approver is forbidden and nothing changes", func() {
		ctx, actor := s.as(99, domain.RoleHOD)
		_, err := s.svc.Approve(ctx, actor, t.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

		stored, err := s.store.FindByID(context.Background(), t.ID)
		s.Require().NoError(err)
		s.Equal(t, stored)
		s.Empty(s.outbox.Messages())
	})

	s.Run("unknown transfer", func() {
		ctx, actor := s.as(approverID, domain.RoleHOD)
		_, err := s.svc.Approve(ctx, actor, 404, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("approver no longer exists", func() {
		ctx, actor := s.as(approverID, domain.RoleHOD)
		s.identity.EXPECT().GetUser(gomock.Any(), domain.RoleHOD, approverID).
			Return(nil, upstream.NewError(upstream.CategoryNotFound, "user-management-service", "get_user", "404", nil))
		_, err := s.svc.Approve(ctx, actor, t.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
		s.Empty(s.outbox.Messages())
	})
}

func (s *ServiceSuite) approve(t *models.Transfer) {
	ctx, actor := s.as(approverID, domain.RoleHOD)
	s.expectUser(domain.RoleHOD, approverID)
	s.kicker.EXPECT().Kick()
	s.expectNotify(notification.EventTransferApproved)
	_, err := s.svc.Approve(ctx, actor, t.ID, "ok")
	s.Require().NoError(err)
}

func (s *ServiceSuite) TestSyncAndResync() {
	t := s.createOpen()
	s.approve(t)
	ctx, actor := s.as(approverID, domain.RoleHOD)

	s.Run("resync before failure conflicts", func() {
		_, err := s.svc.Resync(ctx, actor, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.Run("dead delivery marks the transfer failed and alerts the approver", func() {
		msg := s.outbox.Messages()[0]
		s.Require().NoError(s.outbox.MarkDead(ctx, msg.ID, "domain not found"))
		s.expectNotify(notification.EventSystemAlert)

		s.Require().NoError(s.svc.RecordSync(ctx, int64(t.ID), domain.SyncFailed, "domain not found"))
		stored, err := s.store.FindByID(ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(domain.SyncFailed, stored.SyncStatus)
		s.Equal("domain not found", stored.SyncError)
	})

	s.Run("only the approver may resync", func() {
		other, otherActor := s.as(operatorID, domain.RoleDRM)
		_, err := s.svc.Resync(other, otherActor, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("resync re-arms the dead message", func() {
		s.kicker.EXPECT().Kick()
		updated, err := s.svc.Resync(ctx, actor, t.ID)
		s.Require().NoError(err)
		s.Equal(domain.SyncPending, updated.SyncStatus)
		s.Empty(updated.SyncError)

		msgs := s.outbox.Messages()
		s.Require().Len(msgs, 1)
		s.Nil(msgs[0].DeadAt)
		s.Zero(msgs[0].Attempts)
	})

	s.Run("delivery completes the transfer", func() {
		s.expectNotify(notification.EventTransferFinished)
		s.Require().NoError(s.svc.RecordSync(ctx, int64(t.ID), domain.SyncSynced, ""))
		stored, err := s.store.FindByID(ctx, t.ID)
		s.Require().NoError(err)
		s.Equal(domain.SyncSynced, stored.SyncStatus)
	})
}

func (s *ServiceSuite) TestVisibility() {
	t := s.createOpen()

	for _, party := range []struct {
		id   domain.EmployeeID
		role domain.Role
	}{{operatorID, domain.RoleDRM}, {receiverID, domain.RoleDRM}, {approverID, domain.RoleHOD}} {
		ctx, actor := s.as(party.id, party.role)
		got, err := s.svc.Get(ctx, actor, t.ID)
		s.Require().NoError(err)
		s.Equal(t.ID, got.ID)

		list, err := s.svc.List(ctx, actor)
		s.Require().NoError(err)
		s.Len(list, 1)
	}

	s.Run("outsiders are refused", func() {
		ctx, actor := s.as(500, domain.RoleDRM)
		_, err := s.svc.Get(ctx, actor, t.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("roles without a transfer view see nothing", func() {
		ctx, actor := s.as(approverID, domain.RoleNetOps)
		list, err := s.svc.List(ctx, actor)
		s.Require().NoError(err)
		s.Empty(list)
	})

	s.Run("reads are stable", func() {
		ctx, actor := s.as(operatorID, domain.RoleDRM)
		first, err := s.svc.Get(ctx, actor, t.ID)
		s.Require().NoError(err)
		second, err := s.svc.Get(ctx, actor, t.ID)
		s.Require().NoError(err)
		s.Equal(first, second)
	})
}

func (s *ServiceSuite) TestStoreFailureIsInternal() {
	mockStore := mocks.NewMockStore(s.ctrl)
	svc := service.New(mockStore, mocks.NewMockStoreTx(s.ctrl), s.directory, s.identity, s.outbox)
	mockStore.EXPECT().FindByID(gomock.Any(), domain.TransferID(1)).Return(nil, errors.New("connection reset"))

	ctx, actor := s.as(approverID, domain.RoleHOD)
	_, err := svc.Approve(ctx, actor, 1, "")
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}
