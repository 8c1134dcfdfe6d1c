package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
)

const upsertFeeSettingQuery = `INSERT INTO teacher_accounting_settings (teacher_id, per_student_fee, updated_at)
VALUES (:teacher_id, :per_student_fee, :updated_at)
ON CONFLICT (teacher_id)
DO UPDATE SET per_student_fee = EXCLUDED.per_student_fee, updated_at = EXCLUDED.updated_at`

// FeeSettingRepository persists per-teacher default fees.
type FeeSettingRepository struct {
	db *sqlx.DB
}

// NewFeeSettingRepository constructs the repository.
func NewFeeSettingRepository(db *sqlx.DB) *FeeSettingRepository {
	return &FeeSettingRepository{db: db}
}

// Get fetches the setting of a teacher. sql.ErrNoRows means no default is configured.
func (r *FeeSettingRepository) Get(ctx context.Context, teacherID string) (*models.TeacherFeeSetting, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`SELECT teacher_id, per_student_fee, updated_at FROM teacher_accounting_settings WHERE teacher_id = ?`)
	var setting models.TeacherFeeSetting
	if err := sqlx.GetContext(ctx, q, &setting, query, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("get fee setting: %w", err)
	}
	return &setting, nil
}

// Upsert inserts or overwrites a teacher's default fee.
func (r *FeeSettingRepository) Upsert(ctx context.Context, setting *models.TeacherFeeSetting) error {
	setting.UpdatedAt = time.Now().UTC()
	if _, err := sqlx.NamedExecContext(ctx, conn(ctx, r.db), upsertFeeSettingQuery, setting); err != nil {
		return fmt.Errorf("upsert fee setting: %w", err)
	}
	return nil
}

// BulkUpsert writes the same fee for many teachers. Without an ambient
// transaction it opens its own so the batch lands atomically.
func (r *FeeSettingRepository) BulkUpsert(ctx context.Context, teacherIDs []string, fee decimal.Decimal) error {
	if len(teacherIDs) == 0 {
		return nil
	}
	if _, ok := txFromContext(ctx); ok {
		return r.bulkUpsert(ctx, conn(ctx, r.db), teacherIDs, fee)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bulk fee setting tx: %w", err)
	}
	if err := r.bulkUpsert(ctx, tx, teacherIDs, fee); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bulk fee setting tx: %w", err)
	}
	return nil
}

func (r *FeeSettingRepository) bulkUpsert(ctx context.Context, e sqlx.ExtContext, teacherIDs []string, fee decimal.Decimal) error {
	now := time.Now().UTC()
	for _, id := range teacherIDs {
		setting := models.TeacherFeeSetting{TeacherID: id, PerStudentFee: fee, UpdatedAt: now}
		if _, err := sqlx.NamedExecContext(ctx, e, upsertFeeSettingQuery, setting); err != nil {
			return fmt.Errorf("bulk upsert fee setting %s: %w", id, err)
		}
	}
	return nil
}
