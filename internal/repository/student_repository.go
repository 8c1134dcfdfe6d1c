package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
)

// StudentRepository reads the student roster maintained by the student CRUD.
type StudentRepository struct {
	db *sqlx.DB
}

// NewStudentRepository constructs a StudentRepository.
func NewStudentRepository(db *sqlx.DB) *StudentRepository {
	return &StudentRepository{db: db}
}

// FindByID fetches a student.
func (r *StudentRepository) FindByID(ctx context.Context, id string) (*models.Student, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`SELECT id, full_name, teacher_id, active, created_at FROM students WHERE id = ?`)
	var student models.Student
	if err := sqlx.GetContext(ctx, q, &student, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find student: %w", err)
	}
	return &student, nil
}

// ListIDsByTeacher returns the ids of the teacher's current students.
func (r *StudentRepository) ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	q := conn(ctx, r.db)
	query := q.Rebind(`SELECT id FROM students WHERE teacher_id = ? ORDER BY created_at ASC, id ASC`)
	var ids []string
	if err := sqlx.SelectContext(ctx, q, &ids, query, teacherID); err != nil {
		return nil, fmt.Errorf("list student ids: %w", err)
	}
	return ids, nil
}

// CountByTeacher returns roster sizes keyed by teacher.
func (r *StudentRepository) CountByTeacher(ctx context.Context) ([]models.StudentCount, error) {
	const query = `SELECT teacher_id, COUNT(*) AS students FROM students WHERE teacher_id IS NOT NULL GROUP BY teacher_id`
	var rows []models.StudentCount
	if err := sqlx.SelectContext(ctx, conn(ctx, r.db), &rows, query); err != nil {
		return nil, fmt.Errorf("count students by teacher: %w", err)
	}
	return rows, nil
}

// NamesByIDs maps student ids to names. Unknown ids are absent from the map.
func (r *StudentRepository) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	return namesByIDs(ctx, conn(ctx, r.db), "students", ids)
}

type nameRow struct {
	ID       string `db:"id"`
	FullName string `db:"full_name"`
}

func namesByIDs(ctx context.Context, q sqlx.ExtContext, table string, ids []string) (map[string]string, error) {
	names := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return names, nil
	}
	query, args, err := sqlx.In(fmt.Sprintf(`SELECT id, full_name FROM %s WHERE id IN (?)`, table), ids)
	if err != nil {
		return nil, fmt.Errorf("build %s name query: %w", table, err)
	}
	var rows []nameRow
	if err := sqlx.SelectContext(ctx, q, &rows, q.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("load %s names: %w", table, err)
	}
	for _, row := range rows {
		names[row.ID] = row.FullName
	}
	return names, nil
}
