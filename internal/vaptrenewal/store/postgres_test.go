package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewals/internal/vaptrenewal/models"
	"renewals/internal/vaptrenewal/store"
	"renewals/pkg/domain"
)

func TestPostgresStoreWithSQLMock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	draft := models.Draft{DomainID: 10, VaptID: 7, Seq: 1, NewReport: []byte("r"), NewExpiry: now, InitiatorID: 42, ApproverID: 9}

	t.Run("create maps unique violation to conflict", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		r, err := models.NewRenewal(draft, now)
		require.NoError(t, err)
		mock.ExpectQuery("INSERT INTO vapt_renewals").WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, store.NewPostgres(db).Create(ctx, r), store.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("count", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("SELECT count").WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(3)))

		n, err := store.NewPostgres(db).CountByResource(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, int64(3), n)
	})

	t.Run("update of a missing row is not found and rolls back", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectBegin()
		mock.ExpectQuery("FOR UPDATE").WithArgs(int64(4)).WillReturnRows(sqlmock.NewRows([]string{"vapt_rnwl_id"}))
		mock.ExpectRollback()

		_, err = store.NewPostgres(db).Update(ctx, 4,
			func(*models.Renewal) error { return nil }, func(*models.Renewal) {})
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sync status on a missing row is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE vapt_renewals SET sync_status").WillReturnResult(sqlmock.NewResult(0, 0))
		assert.ErrorIs(t, store.NewPostgres(db).SetSyncStatus(ctx, 4, domain.SyncSynced, ""), store.ErrNotFound)
	})
}
