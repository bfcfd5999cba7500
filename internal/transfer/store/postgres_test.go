package store_test

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"renewals/internal/transfer/models"
	"renewals/internal/transfer/store"
	"renewals/pkg/domain"
)

func TestPostgresStoreWithSQLMock(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)

	t.Run("create maps unique violation to conflict", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tr, err := models.NewTransfer(10, 42, 43, 7, "", []byte("p"), now)
		require.NoError(t, err)
		mock.ExpectQuery("INSERT INTO transfers").
			WillReturnError(&pgconn.PgError{Code: "23505", ConstraintName: "transfers_one_open_per_domain"})

		err = store.NewPostgres(db).Create(ctx, tr)
		assert.ErrorIs(t, err, store.ErrConflict)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("create returns the generated id", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		tr, err := models.NewTransfer(10, 42, 43, 7, "", []byte("p"), now)
		require.NoError(t, err)
		mock.ExpectQuery("INSERT INTO transfers").
			WillReturnRows(sqlmock.NewRows([]string{"tt_id"}).AddRow(int64(31)))

		require.NoError(t, store.NewPostgres(db).Create(ctx, tr))
		assert.Equal(t, domain.TransferID(31), tr.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("find with no rows is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectQuery("FROM transfers WHERE tt_id").
			WithArgs(int64(5)).
			WillReturnRows(sqlmock.NewRows([]string{"tt_id"}))

		_, err = store.NewPostgres(db).FindByID(ctx, 5)
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("sync status on a missing row is not found", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		mock.ExpectExec("UPDATE transfers SET sync_status").
			WillReturnResult(sqlmock.NewResult(0, 0))

		err = store.NewPostgres(db).SetSyncStatus(ctx, 5, domain.SyncSynced, "")
		assert.ErrorIs(t, err, store.ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("list scans rows", func(t *testing.T) {
		db, mock, err := sqlmock.New()
		require.NoError(t, err)
		defer db.Close()

		cols := []string{"tt_id", "dm_id", "trns_frm", "trns_to", "hod_empno", "rsn_for_trns", "prf_upload",
			"hod_approved", "hod_remarks", "approved_at", "sync_status", "sync_error", "created_at", "updated_at"}
		mock.ExpectQuery("FROM transfers WHERE hod_empno").
			WithArgs(int64(7)).
			WillReturnRows(sqlmock.NewRows(cols).
				AddRow(int64(1), int64(10), int64(42), int64(43), int64(7), "reorg", []byte("p"),
					true, "ok", now, "SYNCED", nil, now, now))

		list, err := store.NewPostgres(db).ListByActor(ctx, domain.RoleHOD, 7)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].Approved)
		assert.Equal(t, domain.SyncSynced, list[0].SyncStatus)
		require.NotNil(t, list[0].ApprovedAt)
		assert.Equal(t, now, *list[0].ApprovedAt)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}
