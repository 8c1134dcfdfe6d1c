package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
)

const accountingColumns = "id, teacher_id, student_id, amount, status, created_at"

// AccountingRepository stores accounting entries. It holds no policy: the
// settlement and initialization rules live in the service layer.
type AccountingRepository struct {
	db *sqlx.DB
}

// NewAccountingRepository constructs an AccountingRepository.
func NewAccountingRepository(db *sqlx.DB) *AccountingRepository {
	return &AccountingRepository{db: db}
}

// LockTeacher serialises ledger writers of one teacher for the rest of the
// current transaction. Only PostgreSQL needs it; SQLite already has a single writer.
func (r *AccountingRepository) LockTeacher(ctx context.Context, teacherID string) error {
	q := conn(ctx, r.db)
	if q.DriverName() != "postgres" {
		return nil
	}
	if _, ok := txFromContext(ctx); !ok {
		return fmt.Errorf("lock teacher %s: advisory lock requires a transaction", teacherID)
	}
	if _, err := q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, teacherID); err != nil {
		return fmt.Errorf("lock teacher %s: %w", teacherID, err)
	}
	return nil
}

// Create inserts an entry, assigning id and timestamp when missing.
func (r *AccountingRepository) Create(ctx context.Context, entry *models.AccountingEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO accounting (id, teacher_id, student_id, amount, status, created_at)
		VALUES (:id, :teacher_id, :student_id, :amount, :status, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), query, entry); err != nil {
		return fmt.Errorf("create accounting entry: %w", err)
	}
	return nil
}

// ListPendingByTeacher returns the teacher's pending entries oldest first.
func (r *AccountingRepository) ListPendingByTeacher(ctx context.Context, teacherID string) ([]models.AccountingEntry, error) {
	status := models.EntryStatusPending
	return r.ListByTeacher(ctx, teacherID, &status)
}

// ListByTeacher returns the teacher's entries, optionally filtered by status,
// ordered by created_at then id.
func (r *AccountingRepository) ListByTeacher(ctx context.Context, teacherID string, status *models.EntryStatus) ([]models.AccountingEntry, error) {
	q := conn(ctx, r.db)
	query := `SELECT ` + accountingColumns + ` FROM accounting WHERE teacher_id = ?`
	args := []interface{}{teacherID}
	if status != nil {
		query += ` AND status = ?`
		args = append(args, *status)
	}
	query += ` ORDER BY created_at ASC, id ASC`

	var entries []models.AccountingEntry
	if err := sqlx.SelectContext(ctx, q, &entries, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("list accounting entries: %w", err)
	}
	return entries, nil
}

// UpdateAmount rewrites the amount of a pending entry.
func (r *AccountingRepository) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	q := conn(ctx, r.db)
	query := q.Rebind(`UPDATE accounting SET amount = ? WHERE id = ? AND status = 'pending'`)
	res, err := q.ExecContext(ctx, query, amount, id)
	if err != nil {
		return fmt.Errorf("update accounting amount: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes one entry.
func (r *AccountingRepository) Delete(ctx context.Context, id string) error {
	q := conn(ctx, r.db)
	if _, err := q.ExecContext(ctx, q.Rebind(`DELETE FROM accounting WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete accounting entry: %w", err)
	}
	return nil
}

// DeletePendingByTeacher removes every pending entry of the teacher.
func (r *AccountingRepository) DeletePendingByTeacher(ctx context.Context, teacherID string) (int, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`DELETE FROM accounting WHERE teacher_id = ? AND status = 'pending'`)
	return execCount(ctx, q, "delete pending entries", query, teacherID)
}

// DeleteNonPositivePending removes pending entries whose amount is zero or negative.
func (r *AccountingRepository) DeleteNonPositivePending(ctx context.Context, teacherID string) (int, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`DELETE FROM accounting WHERE teacher_id = ? AND status = 'pending' AND amount <= 0`)
	return execCount(ctx, q, "delete non-positive pending entries", query, teacherID)
}

// SumPending returns the teacher's pending total.
func (r *AccountingRepository) SumPending(ctx context.Context, teacherID string) (decimal.Decimal, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`SELECT COALESCE(SUM(amount), 0) FROM accounting WHERE teacher_id = ? AND status = 'pending'`)
	var total decimal.Decimal
	if err := sqlx.GetContext(ctx, q, &total, query, teacherID); err != nil {
		return decimal.Zero, fmt.Errorf("sum pending entries: %w", err)
	}
	return total, nil
}

// PendingTotalsByTeacher aggregates pending amounts and counts per teacher within
// the optional created_at range.
func (r *AccountingRepository) PendingTotalsByTeacher(ctx context.Context, period models.DateRange) ([]models.PendingAggregate, error) {
	q := conn(ctx, r.db)
	conditions := []string{"status = 'pending'"}
	var args []interface{}
	if period.From != nil {
		conditions = append(conditions, "created_at >= ?")
		args = append(args, period.From.UTC())
	}
	if period.To != nil {
		conditions = append(conditions, "created_at <= ?")
		args = append(args, period.To.UTC())
	}
	query := fmt.Sprintf(`SELECT teacher_id, '' AS student_id, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS entries
		FROM accounting WHERE %s GROUP BY teacher_id`, strings.Join(conditions, " AND "))

	var rows []models.PendingAggregate
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("aggregate pending by teacher: %w", err)
	}
	return rows, nil
}

// PendingTotalsByStudent aggregates a teacher's pending amounts per student.
func (r *AccountingRepository) PendingTotalsByStudent(ctx context.Context, teacherID string) ([]models.PendingAggregate, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`SELECT teacher_id, student_id, COALESCE(SUM(amount), 0) AS total, COUNT(*) AS entries
		FROM accounting WHERE teacher_id = ? AND status = 'pending'
		GROUP BY teacher_id, student_id ORDER BY student_id`)
	var rows []models.PendingAggregate
	if err := sqlx.SelectContext(ctx, q, &rows, query, teacherID); err != nil {
		return nil, fmt.Errorf("aggregate pending by student: %w", err)
	}
	return rows, nil
}

func execCount(ctx context.Context, q sqlx.ExecerContext, label, query string, args ...interface{}) (int, error) {
	res, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", label, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("%s rows affected: %w", label, err)
	}
	return int(n), nil
}
