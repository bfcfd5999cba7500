package service_test

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"renewals/internal/clients/identity"
	"renewals/internal/clients/resource"
	"renewals/internal/notification"
	"renewals/internal/outbox"
	"renewals/internal/transfer/service"
	"renewals/internal/transfer/service/mocks"
	"renewals/internal/transfer/store"
	"renewals/pkg/domain"
	dErrors "renewals/pkg/domain-errors"
	"renewals/pkg/testutil"
)

func TestTransferScenarios(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	testutil.Given(t, "an operator proposing a transfer to themself", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		transfers := store.NewInMemory()
		svc := service.New(transfers, transfers, mocks.NewMockDirectory(ctrl), mocks.NewMockIdentity(ctrl), outbox.NewMemoryStore())

		testutil.When(t, "the transfer is created", func(t *testing.T) {
			ctx := testutil.ActorContext(42, domain.RoleDRM, now)
			_, err := svc.Create(ctx, domain.Actor{ID: 42, Role: domain.RoleDRM}, service.CreateCommand{
				DomainID: domainID, FromID: 42, ToID: 42, Proof: []byte("p"),
			})

			testutil.Then(t, "it fails as an invalid argument and nothing is stored", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeBadRequest))
				list, err := transfers.ListByDomain(context.Background(), domainID)
				require.NoError(t, err)
				assert.Empty(t, list)
			})
		})
	})

	testutil.Given(t, "an open transfer assigned to approver 7", func(t *testing.T) {
		ctrl := gomock.NewController(t)
		directory := mocks.NewMockDirectory(ctrl)
		users := mocks.NewMockIdentity(ctrl)
		transfers := store.NewInMemory()
		ob := outbox.NewMemoryStore()
		svc := service.New(transfers, transfers, directory, users, ob,
			service.WithNotifier(notification.NewLogEmitter(slog.New(slog.DiscardHandler))))

		directory.EXPECT().GetDomain(gomock.Any(), domainID).
			Return(&resource.Domain{ID: domainID, DRM: operatorID, HOD: approverID}, nil)
		users.EXPECT().GetUser(gomock.Any(), domain.RoleDRM, gomock.Any()).
			Return(&identity.User{Role: domain.RoleDRM}, nil).Times(2)

		ctx := testutil.ActorContext(int64(operatorID), domain.RoleDRM, now)
		created, err := svc.Create(ctx, domain.Actor{ID: operatorID, Role: domain.RoleDRM}, service.CreateCommand{
			DomainID: domainID, FromID: operatorID, ToID: receiverID, Proof: []byte("p"),
		})
		require.NoError(t, err)

		testutil.When(t, "a different approver approves it", func(t *testing.T) {
			ctx := testutil.ActorContext(8, domain.RoleHOD, now)
			_, err := svc.Approve(ctx, domain.Actor{ID: 8, Role: domain.RoleHOD}, created.ID, "")

			testutil.Then(t, "it is refused and the store is unchanged", func(t *testing.T) {
				assert.True(t, dErrors.HasCode(err, dErrors.CodeForbidden))
				stored, err := transfers.FindByID(context.Background(), created.ID)
				require.NoError(t, err)
				assert.Equal(t, created, stored)
				assert.Empty(t, ob.Messages())
			})
		})
	})
}
