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
	"renewals/internal/vaptrenewal/models"
	"renewals/internal/vaptrenewal/service"
	"renewals/internal/vaptrenewal/service/mocks"
	"renewals/internal/vaptrenewal/store"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/testutil"
)

const (
	domainID   = domain.DomainID(10)
	vaptID     = domain.VaptID(7)
	operatorID = domain.EmployeeID(42)
	approverID = domain.EmployeeID(9)
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
	expiry    time.Time
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
	s.expiry = s.now.AddDate(1, 0, 0)
	s.svc = service.New(s.store, s.store, s.directory, s.identity, s.outbox,
		service.WithKicker(s.kicker),
		service.WithNotifier(s.notifier),
	)
}

func (s *ServiceSuite) as(id domain.EmployeeID, role domain.Role) (context.Context, domain.Actor) {
	return testutil.ActorContext(int64(id), role, s.now), domain.Actor{ID: id, Role: role}
}

func (s *ServiceSuite) expectNotify(eventType notification.EventType) {
	s.notifier.EXPECT().Emit(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, ev notification.Event) error {
			s.Equal(eventType, ev.EventType)
			return nil
		})
}

func (s *ServiceSuite) expectLookups() {
	s.directory.EXPECT().GetDomain(gomock.Any(), domainID).
		Return(&resource.Domain{ID: domainID, Name: "example.gov.in", DRM: operatorID, HOD: approverID}, nil)
	s.directory.EXPECT().GetVapt(gomock.Any(), vaptID).
		Return(&resource.Vapt{ID: vaptID, DomainID: domainID, Report: []byte("old report")}, nil)
	s.identity.EXPECT().GetSupervisors(gomock.Any(), operatorID).
		Return(&identity.Supervisors{HOD: approverID, ARM: 11}, nil)
}

func (s *ServiceSuite) create() *models.Renewal {
	s.expectLookups()
	s.expectNotify(notification.EventVaptRenewalRequested)
	ctx, actor := s.as(operatorID, domain.RoleDRM)
	r, err := s.svc.Create(ctx, actor, service.CreateCommand{
		DomainID: domainID, VaptID: vaptID, NewReport: []byte("new report"), NewExpiry: s.expiry,
	})
	s.Require().NoError(err)
	return r
}

func (s *ServiceSuite) decide(approve bool, id domain.VaptRenewalID, remarks string) (*models.Renewal, error) {
	ctx, actor := s.as(approverID, domain.RoleHOD)
	cmd := service.DecisionCommand{DomainID: domainID, Remarks: remarks}
	if approve {
		return s.svc.Approve(ctx, actor, id, cmd)
	}
	return s.svc.Reject(ctx, actor, id, cmd)
}

func (s *ServiceSuite) TestCreate() {
	r := s.create()
	s.Equal(int64(1), r.Seq)
	s.Equal([]byte("old report"), r.PriorReport)
	s.Equal(approverID, r.ApproverID)
	s.Equal(models.StatusPending, r.Status)
	s.Equal(domain.NoRemarks, r.InitiatorRemarks)
}

func (s *ServiceSuite) TestCreateRejections() {
	ctx, actor := s.as(operatorID, domain.RoleDRM)
	cmd := service.CreateCommand{DomainID: domainID, VaptID: vaptID, NewReport: []byte("r"), NewExpiry: s.expiry}

	s.Run("vapt missing", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).Return(&resource.Domain{ID: domainID, DRM: operatorID, HOD: approverID}, nil)
		s.directory.EXPECT().GetVapt(gomock.Any(), vaptID).
			Return(nil, upstream.NewError(upstream.CategoryNotFound, "workflow-service", "get_vapt", "404", nil))
		_, err := s.svc.Create(ctx, actor, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	s.Run("vapt of another domain", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).Return(&resource.Domain{ID: domainID, DRM: operatorID, HOD: approverID}, nil)
		s.directory.EXPECT().GetVapt(gomock.Any(), vaptID).Return(&resource.Vapt{ID: vaptID, DomainID: 99}, nil)
		_, err := s.svc.Create(ctx, actor, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("initiator is not the domain operator", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).Return(&resource.Domain{ID: domainID, DRM: 1, HOD: approverID}, nil)
		s.directory.EXPECT().GetVapt(gomock.Any(), vaptID).Return(&resource.Vapt{ID: vaptID, DomainID: domainID}, nil)
		_, err := s.svc.Create(ctx, actor, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("no supervisors", func() {
		s.directory.EXPECT().GetDomain(gomock.Any(), domainID).Return(&resource.Domain{ID: domainID, DRM: operatorID, HOD: approverID}, nil)
		s.directory.EXPECT().GetVapt(gomock.Any(), vaptID).Return(&resource.Vapt{ID: vaptID, DomainID: domainID}, nil)
		s.identity.EXPECT().GetSupervisors(gomock.Any(), operatorID).Return(&identity.Supervisors{}, nil)
		_, err := s.svc.Create(ctx, actor, cmd)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})

	n, err := s.store.CountByResource(context.Background(), vaptID)
	s.Require().NoError(err)
	s.Zero(n)
}

func (s *ServiceSuite) TestApprove() {
	r := s.create()

	s.Run("domain mismatch is a bad request", func() {
		ctx, actor := s.as(approverID, domain.RoleHOD)
		_, err := s.svc.Approve(ctx, actor, r.ID, service.DecisionCommand{DomainID: 11})
		s.True(dErrors.HasCode(err, dErrors.CodeBadRequest))
	})

	s.Run("wrong approver is forbidden", func() {
		ctx, actor := s.as(10, domain.RoleHOD)
		_, err := s.svc.Approve(ctx, actor, r.ID, service.DecisionCommand{DomainID: domainID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
		s.Empty(s.outbox.Messages())
	})

	s.Run("approval enqueues the vapt update", func() {
		s.kicker.EXPECT().Kick()
		s.expectNotify(notification.EventVaptRenewalApproved)
		approved, err := s.decide(true, r.ID, "fine")
		s.Require().NoError(err)
		s.Equal(models.StatusApproved, approved.Status)
		s.Equal(domain.SyncPending, approved.SyncStatus)

		msgs := s.outbox.Messages()
		s.Require().Len(msgs, 1)
		s.Equal(outbox.TopicVaptUpdate, msgs[0].Topic)
		var payload effects.VaptUpdatePayload
		s.Require().NoError(json.Unmarshal(msgs[0].Payload, &payload))
		s.Equal(vaptID, payload.VaptID)
		s.Equal([]byte("new report"), payload.NewReport)
		s.True(s.expiry.Equal(payload.NewExpiry))
	})

	s.Run("approved renewals accept no further decisions", func() {
		_, err := s.decide(true, r.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
		_, err = s.decide(false, r.ID, "")
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})
}

func (s *ServiceSuite) TestRejectReviewApprove() {
	r := s.create()

	s.expectNotify(notification.EventVaptRenewalRejected)
	rejected, err := s.decide(false, r.ID, "report unsigned")
	s.Require().NoError(err)
	s.Equal(models.StatusRejected, rejected.Status)

	_, err = s.decide(false, r.ID, "")
	s.True(dErrors.HasCode(err, dErrors.CodeConflict), "second rejection")

	s.Run("only the initiator may resubmit", func() {
		ctx, actor := s.as(approverID, domain.RoleHOD)
		_, err := s.svc.Review(ctx, actor, r.ID, service.ReviewCommand{DomainID: domainID})
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("resubmission starts a new cycle", func() {
		later := s.now.Add(24 * time.Hour)
		ctx := testutil.ActorContext(int64(operatorID), domain.RoleDRM, later)
		s.expectNotify(notification.EventVaptRenewalReviewed)
		reviewed, err := s.svc.Review(ctx, domain.Actor{ID: operatorID, Role: domain.RoleDRM}, r.ID,
			service.ReviewCommand{DomainID: domainID, NewReport: []byte("signed report"), Remarks: "signed now"})
		s.Require().NoError(err)
		s.Equal(models.StatusPending, reviewed.Status)
		s.Equal(later, reviewed.CreatedAt)
		s.Equal("report unsigned", reviewed.ApproverRemarks)
		s.Equal("signed now", reviewed.InitiatorRemarks)
	})

	s.Run("review of a pending renewal conflicts", func() {
		ctx, actor := s.as(operatorID, domain.RoleDRM)
		_, err := s.svc.Review(ctx, actor, r.ID, service.ReviewCommand{DomainID: domainID})
		s.True(dErrors.HasCode(err, dErrors.CodeConflict))
	})

	s.kicker.EXPECT().Kick()
	s.expectNotify(notification.EventVaptRenewalApproved)
	approved, err := s.decide(true, r.ID, "")
	s.Require().NoError(err)
	s.Equal([]byte("signed report"), approved.NewReport)
}

func (s *ServiceSuite) TestSyncOutcomes() {
	r := s.create()
	s.kicker.EXPECT().Kick()
	s.expectNotify(notification.EventVaptRenewalApproved)
	_, err := s.decide(true, r.ID, "")
	s.Require().NoError(err)
	ctx, actor := s.as(approverID, domain.RoleHOD)

	s.expectNotify(notification.EventSystemAlert)
	s.Require().NoError(s.svc.RecordSync(ctx, int64(r.ID), domain.SyncFailed, "vapt not found"))

	s.Run("initiator cannot resync", func() {
		other, otherActor := s.as(operatorID, domain.RoleDRM)
		_, err := s.svc.Resync(other, otherActor, r.ID)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.kicker.EXPECT().Kick()
	resynced, err := s.svc.Resync(ctx, actor, r.ID)
	s.Require().NoError(err)
	s.Equal(domain.SyncPending, resynced.SyncStatus)
	s.Len(s.outbox.Messages(), 1)

	s.expectNotify(notification.EventVaptRenewed)
	s.Require().NoError(s.svc.RecordSync(ctx, int64(r.ID), domain.SyncSynced, ""))
	got, err := s.svc.Get(ctx, actor, r.ID)
	s.Require().NoError(err)
	s.Equal(domain.SyncSynced, got.SyncStatus)
}

func (s *ServiceSuite) TestResyncEnqueuesWhenMessageIsGone() {
	r := s.create()
	s.Require().NoError(s.store.SetSyncStatus(context.Background(), r.ID, domain.SyncFailed, "lost"))
	_, err := s.store.Update(context.Background(), r.ID,
		func(*models.Renewal) error { return nil },
		func(r *models.Renewal) { r.Status = models.StatusApproved })
	s.Require().NoError(err)

	ctx, actor := s.as(approverID, domain.RoleHOD)
	s.kicker.EXPECT().Kick()
	_, err = s.svc.Resync(ctx, actor, r.ID)
	s.Require().NoError(err)
	s.Len(s.outbox.Messages(), 1)
}

func (s *ServiceSuite) TestVisibility() {
	r := s.create()

	for _, id := range []domain.EmployeeID{operatorID, approverID} {
		ctx, actor := s.as(id, domain.RoleDRM)
		_, err := s.svc.Get(ctx, actor, r.ID)
		s.NoError(err)
	}
	ctx, actor := s.as(500, domain.RoleDRM)
	_, err := s.svc.Get(ctx, actor, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))

	ctx, actor = s.as(approverID, domain.RoleHOD)
	queue, err := s.svc.List(ctx, actor)
	s.Require().NoError(err)
	s.Len(queue, 1)
}

func (s *ServiceSuite) TestStoreFailureIsInternal() {
	mockStore := mocks.NewMockStore(s.ctrl)
	svc := service.New(mockStore, mocks.NewMockStoreTx(s.ctrl), s.directory, s.identity, s.outbox)
	mockStore.EXPECT().ListByResource(gomock.Any(), vaptID).Return(nil, errors.New("connection reset"))

	ctx, actor := s.as(operatorID, domain.RoleDRM)
	_, err := svc.Create(ctx, actor, service.CreateCommand{DomainID: domainID, VaptID: vaptID})
	s.True(dErrors.HasCode(err, dErrors.CodeInternal))
}

// Scenario: a second renewal for a VAPT whose previous one is still open.
func (s *ServiceSuite) TestOpenRenewalConflicts() {
	testutil.Given(s.T(), "a pending renewal for vapt 7", func(t *testing.T) {
		s.create()

		testutil.When(t, "the operator opens another", func(t *testing.T) {
			ctx, actor := s.as(operatorID, domain.RoleDRM)
			_, err := s.svc.Create(ctx, actor, service.CreateCommand{
				DomainID: domainID, VaptID: vaptID, NewReport: []byte("again"), NewExpiry: s.expiry,
			})

			testutil.Then(t, "it conflicts before any lookup", func(t *testing.T) {
				s.True(dErrors.HasCode(err, dErrors.CodeConflict))
			})
		})
	})
}
