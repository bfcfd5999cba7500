package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"renewals/internal/platform/postgres"
	"renewals/internal/vaptrenewal/models"
	"renewals/pkg/domain"
	"renewals/pkg/platform/tx"
	"renewals/pkg/requestcontext"
)

const renewalColumns = `vapt_rnwl_id, dm_id, vapt_id, rnwl_no, old_vapt_report, new_vapt_report,
	new_vapt_expiry_date, drm_empno_initiator, drm_remarks, hod_empno_approver, hod_remarks,
	status, aprvl_date, sync_status, sync_error, created_at, updated_at`

// PostgresStore persists renewals in vapt_renewals. The partial unique index
// vapt_renewals_one_open_per_vapt backs the one-open-renewal rule.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return tx.Run(ctx, s.db, fn)
}

func (s *PostgresStore) Create(ctx context.Context, r *models.Renewal) error {
	var id int64
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx, `
		INSERT INTO vapt_renewals (dm_id, vapt_id, rnwl_no, old_vapt_report, new_vapt_report,
			new_vapt_expiry_date, drm_empno_initiator, drm_remarks, hod_empno_approver, hod_remarks,
			status, aprvl_date, sync_status, sync_error, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		RETURNING vapt_rnwl_id`,
		int64(r.DomainID), int64(r.VaptID), r.Seq, r.PriorReport, r.NewReport,
		r.NewExpiry, int64(r.InitiatorID), r.InitiatorRemarks, int64(r.ApproverID), r.ApproverRemarks,
		string(r.Status), r.DecidedAt, string(r.SyncStatus), nullString(r.SyncError), r.CreatedAt, r.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("open renewal for vapt %d: %w", r.VaptID, ErrConflict)
		}
		return fmt.Errorf("insert vapt renewal: %w", err)
	}
	r.ID = domain.VaptRenewalID(id)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.VaptRenewalID) (*models.Renewal, error) {
	r, err := scanRenewal(tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+renewalColumns+` FROM vapt_renewals WHERE vapt_rnwl_id = $1`, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("vapt renewal %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find vapt renewal: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByResource(ctx context.Context, vaptID domain.VaptID) ([]*models.Renewal, error) {
	return s.list(ctx, `SELECT `+renewalColumns+` FROM vapt_renewals WHERE vapt_id = $1 ORDER BY vapt_rnwl_id`, int64(vaptID))
}

func (s *PostgresStore) CountByResource(ctx context.Context, vaptID domain.VaptID) (int64, error) {
	var n int64
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM vapt_renewals WHERE vapt_id = $1`, int64(vaptID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count vapt renewals: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Renewal, error) {
	switch role {
	case domain.RoleDRM:
		return s.list(ctx, `SELECT `+renewalColumns+` FROM vapt_renewals WHERE drm_empno_initiator = $1 ORDER BY vapt_rnwl_id`, int64(id))
	case domain.RoleHOD:
		return s.list(ctx, `SELECT `+renewalColumns+` FROM vapt_renewals WHERE hod_empno_approver = $1 ORDER BY vapt_rnwl_id`, int64(id))
	default:
		return []*models.Renewal{}, nil
	}
}

func (s *PostgresStore) Update(ctx context.Context, id domain.VaptRenewalID, validate func(*models.Renewal) error, mutate func(*models.Renewal)) (*models.Renewal, error) {
	var updated *models.Renewal
	err := tx.Run(ctx, s.db, func(txCtx context.Context) error {
		exec := tx.Exec(txCtx, s.db)
		r, err := scanRenewal(exec.QueryRowContext(txCtx,
			`SELECT `+renewalColumns+` FROM vapt_renewals WHERE vapt_rnwl_id = $1 FOR UPDATE`, int64(id)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("vapt renewal %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("lock vapt renewal: %w", err)
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		_, err = exec.ExecContext(txCtx, `
			UPDATE vapt_renewals
			   SET new_vapt_report = $2, new_vapt_expiry_date = $3, drm_remarks = $4, hod_remarks = $5,
			       status = $6, aprvl_date = $7, sync_status = $8, sync_error = $9,
			       created_at = $10, updated_at = $11
			 WHERE vapt_rnwl_id = $1`,
			int64(r.ID), r.NewReport, r.NewExpiry, r.InitiatorRemarks, r.ApproverRemarks,
			string(r.Status), r.DecidedAt, string(r.SyncStatus), nullString(r.SyncError),
			r.CreatedAt, r.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("open renewal for vapt %d: %w", r.VaptID, ErrConflict)
			}
			return fmt.Errorf("update vapt renewal: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) SetSyncStatus(ctx context.Context, id domain.VaptRenewalID, status domain.SyncStatus, syncErr string) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE vapt_renewals SET sync_status = $2, sync_error = $3, updated_at = $4 WHERE vapt_rnwl_id = $1`,
		int64(id), string(status), nullString(syncErr), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("set vapt renewal sync status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("vapt renewal %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Renewal, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list vapt renewals: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Renewal, 0)
	for rows.Next() {
		r, err := scanRenewal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan vapt renewal: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list vapt renewals: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRenewal(row scanner) (*models.Renewal, error) {
	var (
		r                     models.Renewal
		id, domainID, vaptID  int64
		initiator, approver   int64
		status, syncStatus    string
		hodRemarks, syncError sql.NullString
		decidedAt             sql.NullTime
	)
	if err := row.Scan(&id, &domainID, &vaptID, &r.Seq, &r.PriorReport, &r.NewReport,
		&r.NewExpiry, &initiator, &r.InitiatorRemarks, &approver, &hodRemarks,
		&status, &decidedAt, &syncStatus, &syncError, &r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = domain.VaptRenewalID(id)
	r.DomainID = domain.DomainID(domainID)
	r.VaptID = domain.VaptID(vaptID)
	r.InitiatorID = domain.EmployeeID(initiator)
	r.ApproverID = domain.EmployeeID(approver)
	r.ApproverRemarks = hodRemarks.String
	r.Status = models.Status(status)
	if decidedAt.Valid {
		at := decidedAt.Time
		r.DecidedAt = &at
	}
	r.SyncStatus = domain.SyncStatus(syncStatus)
	r.SyncError = syncError.String
	return &r, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
