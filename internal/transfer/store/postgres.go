package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"renewals/internal/platform/postgres"
	"renewals/internal/transfer/models"
	"renewals/pkg/domain"
	"renewals/pkg/platform/tx"
	"renewals/pkg/requestcontext"
)

const transferColumns = `tt_id, dm_id, trns_frm, trns_to, hod_empno, rsn_for_trns, prf_upload,
	hod_approved, hod_remarks, approved_at, sync_status, sync_error, created_at, updated_at`

// PostgresStore persists transfers in the transfers table. The partial unique
// index transfers_one_open_per_domain backs the one-open-transfer rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *PostgresStore) Create(ctx context.Context, t *models.Transfer) error {
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO transfers (dm_id, trns_frm, trns_to, hod_empno, rsn_for_trns, prf_upload,
			hod_approved, hod_remarks, approved_at, sync_status, sync_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING tt_id`,
		int64(t.DomainID), int64(t.FromID), int64(t.ToID), int64(t.ApproverID), t.Reason, t.Proof,
		t.Approved, t.ApproverRemarks, t.ApprovedAt, string(t.SyncStatus), nullString(t.SyncError), t.CreatedAt, t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("open transfer for domain %d: %w", t.DomainID, ErrConflict)
		}
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.TransferID) (*models.Transfer, error) {
	row := tx.Exec(ctx, s.db).QueryRowContext(ctx, `SELECT `+transferColumns+` FROM transfers WHERE tt_id = $1`, int64(id))
	t, err := scanTransfer(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("transfer %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find transfer: %w", err)
	}
	return t, nil
}

func (s *PostgresStore) ListByDomain(ctx context.Context, domainID domain.DomainID) ([]*models.Transfer, error) {
	return s.list(ctx, `SELECT `+transferColumns+` FROM transfers WHERE dm_id = $1 ORDER BY tt_id`, int64(domainID))
}

func (s *PostgresStore) ListByActor(ctx context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Transfer, error) {
	switch role {
	case domain.RoleHOD:
		return s.list(ctx, `SELECT `+transferColumns+` FROM transfers WHERE hod_empno = $1 ORDER BY tt_id`, int64(id))
	case domain.RoleDRM:
		return s.list(ctx, `SELECT `+transferColumns+` FROM transfers WHERE trns_frm = $1 OR trns_to = $1 ORDER BY tt_id`, int64(id))
	default:
		return []*models.Transfer{}, nil
	}
}

// Update locks the row with FOR UPDATE for the duration of validate and mutate.
// It opens its own transaction unless ctx already carries one.
func (s *PostgresStore) Update(ctx context.Context, id domain.TransferID, validate func(*models.Transfer) error, mutate func(*models.Transfer)) (*models.Transfer, error) {
	var updated *models.Transfer
	err := tx.Run(ctx, s.db, func(txCtx context.Context) error {
		exec := tx.Exec(txCtx, s.db)
		t, err := scanTransfer(exec.QueryRowContext(txCtx,
			`SELECT `+transferColumns+` FROM transfers WHERE tt_id = $1 FOR UPDATE`, int64(id)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("transfer %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("lock transfer: %w", err)
		}
		if err := validate(t); err != nil {
			return err
		}
		mutate(t)
		_, err = exec.ExecContext(txCtx, `
			UPDATE transfers
			   SET hod_approved = $2, hod_remarks = $3, approved_at = $4,
			       sync_status = $5, sync_error = $6, updated_at = $7
			 WHERE tt_id = $1`,
			int64(t.ID), t.Approved, t.ApproverRemarks, t.ApprovedAt,
			string(t.SyncStatus), nullString(t.SyncError), t.UpdatedAt)
		if err != nil {
			return fmt.Errorf("update transfer: %w", err)
		}
		updated = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) SetSyncStatus(ctx context.Context, id domain.TransferID, status domain.SyncStatus, syncErr string) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE transfers SET sync_status = $2, sync_error = $3, updated_at = $4 WHERE tt_id = $1`,
		int64(id), string(status), nullString(syncErr), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("set transfer sync status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("transfer %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Transfer, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Transfer, 0)
	for rows.Next() {
		t, err := scanTransfer(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTransfer(row scanner) (*models.Transfer, error) {
	var (
		t          models.Transfer
		id         int64
		domainID   int64
		from, to   int64
		approver   int64
		remarks    sql.NullString
		approvedAt sql.NullTime
		syncStatus string
		syncErr    sql.NullString
	)
	if err := row.Scan(&id, &domainID, &from, &to, &approver, &t.Reason, &t.Proof,
		&t.Approved, &remarks, &approvedAt, &syncStatus, &syncErr, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.ID = domain.TransferID(id)
	t.DomainID = domain.DomainID(domainID)
	t.FromID = domain.EmployeeID(from)
	t.ToID = domain.EmployeeID(to)
	t.ApproverID = domain.EmployeeID(approver)
	t.ApproverRemarks = remarks.String
	if approvedAt.Valid {
		at := approvedAt.Time
		t.ApprovedAt = &at
	}
	t.SyncStatus = domain.SyncStatus(syncStatus)
	t.SyncError = syncErr.String
	return &t, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
