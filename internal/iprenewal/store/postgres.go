package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"renewals/internal/iprenewal/models"
	"renewals/internal/platform/postgres"
	"renewals/pkg/domain"
	"renewals/pkg/platform/tx"
	"renewals/pkg/requestcontext"
)

const renewalColumns = `ip_rnwl_id, dm_id, ip_id, rnwl_no, prev_ip_addrs, new_ip_addrs, aprvl_pdf, rnwl_pdf,
	new_expiry_date, drm_empno_initiator, drm_remarks, hod_empno_approver, hod_remarks,
	netops_empno, netops_remarks, status, aprvl_date, rnwl_date, sync_status, sync_error,
	created_at, updated_at`

// PostgresStore persists renewals in ip_renewals. Address lists are TEXT[]
// columns bound through pq.Array.
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
		INSERT INTO ip_renewals (dm_id, ip_id, rnwl_no, prev_ip_addrs, aprvl_pdf,
			drm_empno_initiator, drm_remarks, hod_empno_approver, hod_remarks, netops_remarks,
			status, sync_status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		RETURNING ip_rnwl_id`,
		int64(r.DomainID), int64(r.IPID), r.Seq, pq.Array(r.PriorAddresses), r.ApprovalProof,
		int64(r.InitiatorID), r.InitiatorRemarks, int64(r.ApproverID), r.ApproverRemarks, r.ExecutorRemarks,
		string(r.Status), string(r.SyncStatus), r.CreatedAt, r.UpdatedAt,
	).Scan(&id)
	if err != nil {
		if postgres.IsUniqueViolation(err) {
			return fmt.Errorf("open renewal for ip %d: %w", r.IPID, ErrConflict)
		}
		return fmt.Errorf("insert ip renewal: %w", err)
	}
	r.ID = domain.IPRenewalID(id)
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.IPRenewalID) (*models.Renewal, error) {
	r, err := scanRenewal(tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT `+renewalColumns+` FROM ip_renewals WHERE ip_rnwl_id = $1`, int64(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ip renewal %d: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("find ip renewal: %w", err)
	}
	return r, nil
}

func (s *PostgresStore) ListByResource(ctx context.Context, ipID domain.IPID) ([]*models.Renewal, error) {
	return s.list(ctx, `SELECT `+renewalColumns+` FROM ip_renewals WHERE ip_id = $1 ORDER BY ip_rnwl_id`, int64(ipID))
}

func (s *PostgresStore) CountByResource(ctx context.Context, ipID domain.IPID) (int64, error) {
	var n int64
	err := tx.Exec(ctx, s.db).QueryRowContext(ctx,
		`SELECT count(*) FROM ip_renewals WHERE ip_id = $1`, int64(ipID)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count ip renewals: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) ListByActor(ctx context.Context, role domain.Role, id domain.EmployeeID) ([]*models.Renewal, error) {
	switch role {
	case domain.RoleDRM:
		return s.list(ctx, `SELECT `+renewalColumns+` FROM ip_renewals WHERE drm_empno_initiator = $1 ORDER BY ip_rnwl_id`, int64(id))
	case domain.RoleHOD:
		return s.list(ctx, `SELECT `+renewalColumns+` FROM ip_renewals WHERE hod_empno_approver = $1 ORDER BY ip_rnwl_id`, int64(id))
	case domain.RoleNetOps:
		return s.list(ctx, `SELECT `+renewalColumns+` FROM ip_renewals WHERE status = ANY($1) ORDER BY ip_rnwl_id`,
			pq.Array([]string{string(models.StatusApproved), string(models.StatusRenewed)}))
	default:
		return []*models.Renewal{}, nil
	}
}

func (s *PostgresStore) Update(ctx context.Context, id domain.IPRenewalID, validate func(*models.Renewal) error, mutate func(*models.Renewal)) (*models.Renewal, error) {
	var updated *models.Renewal
	err := tx.Run(ctx, s.db, func(txCtx context.Context) error {
		exec := tx.Exec(txCtx, s.db)
		r, err := scanRenewal(exec.QueryRowContext(txCtx,
			`SELECT `+renewalColumns+` FROM ip_renewals WHERE ip_rnwl_id = $1 FOR UPDATE`, int64(id)))
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return fmt.Errorf("ip renewal %d: %w", id, ErrNotFound)
			}
			return fmt.Errorf("lock ip renewal: %w", err)
		}
		if err := validate(r); err != nil {
			return err
		}
		mutate(r)
		_, err = exec.ExecContext(txCtx, `
			UPDATE ip_renewals
			   SET new_ip_addrs = $2, aprvl_pdf = $3, rnwl_pdf = $4, new_expiry_date = $5,
			       drm_remarks = $6, hod_remarks = $7, netops_empno = $8, netops_remarks = $9,
			       status = $10, aprvl_date = $11, rnwl_date = $12, sync_status = $13, sync_error = $14,
			       created_at = $15, updated_at = $16
			 WHERE ip_rnwl_id = $1`,
			int64(r.ID), pq.Array(r.NewAddresses), r.ApprovalProof, r.RenewalProof, r.NewExpiry,
			r.InitiatorRemarks, r.ApproverRemarks, nullEmployee(r.ExecutorID), r.ExecutorRemarks,
			string(r.Status), r.DecidedAt, r.CompletedAt, string(r.SyncStatus), nullString(r.SyncError),
			r.CreatedAt, r.UpdatedAt)
		if err != nil {
			if postgres.IsUniqueViolation(err) {
				return fmt.Errorf("open renewal for ip %d: %w", r.IPID, ErrConflict)
			}
			return fmt.Errorf("update ip renewal: %w", err)
		}
		updated = r
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *PostgresStore) SetSyncStatus(ctx context.Context, id domain.IPRenewalID, status domain.SyncStatus, syncErr string) error {
	res, err := tx.Exec(ctx, s.db).ExecContext(ctx,
		`UPDATE ip_renewals SET sync_status = $2, sync_error = $3, updated_at = $4 WHERE ip_rnwl_id = $1`,
		int64(id), string(status), nullString(syncErr), requestcontext.Now(ctx))
	if err != nil {
		return fmt.Errorf("set ip renewal sync status: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("ip renewal %d: %w", id, ErrNotFound)
	}
	return nil
}

func (s *PostgresStore) list(ctx context.Context, query string, args ...any) ([]*models.Renewal, error) {
	rows, err := tx.Exec(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list ip renewals: %w", err)
	}
	defer rows.Close()
	out := make([]*models.Renewal, 0)
	for rows.Next() {
		r, err := scanRenewal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ip renewal: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list ip renewals: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRenewal(row scanner) (*models.Renewal, error) {
	var (
		r                           models.Renewal
		id, domainID, ipID          int64
		initiator, approver         int64
		executor                    sql.NullInt64
		status, syncStatus          string
		hodRemarks, netopsRemarks   sql.NullString
		syncError                   sql.NullString
		newExpiry, decided, renewed sql.NullTime
	)
	if err := row.Scan(&id, &domainID, &ipID, &r.Seq, pq.Array(&r.PriorAddresses), pq.Array(&r.NewAddresses),
		&r.ApprovalProof, &r.RenewalProof, &newExpiry, &initiator, &r.InitiatorRemarks, &approver, &hodRemarks,
		&executor, &netopsRemarks, &status, &decided, &renewed, &syncStatus, &syncError,
		&r.CreatedAt, &r.UpdatedAt); err != nil {
		return nil, err
	}
	r.ID = domain.IPRenewalID(id)
	r.DomainID = domain.DomainID(domainID)
	r.IPID = domain.IPID(ipID)
	r.InitiatorID = domain.EmployeeID(initiator)
	r.ApproverID = domain.EmployeeID(approver)
	r.ExecutorID = domain.EmployeeID(executor.Int64)
	r.ApproverRemarks = hodRemarks.String
	r.ExecutorRemarks = netopsRemarks.String
	r.Status = models.Status(status)
	r.NewExpiry = timePtr(newExpiry)
	r.DecidedAt = timePtr(decided)
	r.CompletedAt = timePtr(renewed)
	r.SyncStatus = domain.SyncStatus(syncStatus)
	r.SyncError = syncError.String
	return &r, nil
}

func timePtr(t sql.NullTime) *time.Time {
	if !t.Valid {
		return nil
	}
	at := t.Time
	return &at
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullEmployee(id domain.EmployeeID) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(id), Valid: !id.IsNil()}
}
