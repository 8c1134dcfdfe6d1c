package repository

import (
	"context"
	"database/sql"
	"fmt"
	"sort"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
)

// TeacherDirectoryRepository resolves which ids are teachers. Role rows can drift
// from the data, so every teacher id referenced by students, accounting entries
// or fee settings counts as a teacher too.
type TeacherDirectoryRepository struct {
	db *sqlx.DB
}

// NewTeacherDirectoryRepository constructs the directory.
func NewTeacherDirectoryRepository(db *sqlx.DB) *TeacherDirectoryRepository {
	return &TeacherDirectoryRepository{db: db}
}

const teacherUniverseQuery = `SELECT id FROM users WHERE role = ?
UNION SELECT teacher_id FROM students WHERE teacher_id IS NOT NULL
UNION SELECT teacher_id FROM accounting
UNION SELECT teacher_id FROM teacher_accounting_settings`

// ListTeacherIDs returns the sorted set of teacher ids.
func (r *TeacherDirectoryRepository) ListTeacherIDs(ctx context.Context) ([]string, error) {
	q := conn(ctx, r.db)
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, q.Rebind(teacherUniverseQuery), models.RoleTeacher); err != nil {
		return nil, fmt.Errorf("list teacher ids: %w", err)
	}
	ids = compactIDs(ids)
	sort.Strings(ids)
	return ids, nil
}

// Names maps teacher ids to display names from the users table.
func (r *TeacherDirectoryRepository) Names(ctx context.Context, ids []string) (map[string]string, error) {
	return namesByIDs(ctx, conn(ctx, r.db), "users", ids)
}

// Lookup resolves one teacher. A teacher without a TEACHER profile row is still
// found when referenced by ledger data; its name falls back to the id. Unknown ids
// and users holding other roles return sql.ErrNoRows.
func (r *TeacherDirectoryRepository) Lookup(ctx context.Context, teacherID string) (*models.TeacherRef, error) {
	q := conn(ctx, r.db)
	var name string
	err := sqlx.GetContext(ctx, q, &name, q.Rebind(`SELECT full_name FROM users WHERE id = ? AND role = ? LIMIT 1`), teacherID, models.RoleTeacher)
	switch {
	case err == nil:
		return &models.TeacherRef{ID: teacherID, Name: name}, nil
	case err != sql.ErrNoRows:
		return nil, fmt.Errorf("lookup teacher: %w", err)
	}

	query := q.Rebind(`SELECT 1 FROM (` + teacherUniverseQuery + `) t WHERE t.id = ? LIMIT 1`)
	var found int
	if err := sqlx.GetContext(ctx, q, &found, query, models.RoleTeacher, teacherID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lookup teacher reference: %w", err)
	}
	return &models.TeacherRef{ID: teacherID, Name: teacherID}, nil
}

func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
