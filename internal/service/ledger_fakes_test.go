package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"path"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/noah-isme/tutor-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ledger-api/pkg/errors"
)

// memoryLedger is an in-memory stand-in for every ledger repository: entries,
// fee settings, the student roster and the teacher directory.
type memoryLedger struct {
	mu       sync.Mutex
	entries  map[string]models.AccountingEntry
	fees     map[string]models.TeacherFeeSetting
	students map[string]models.Student
	teachers map[string]string

	seq      int
	clock    time.Time
	failOn   map[string]error
	calls    map[string]int
	lockedBy []string
}

func newMemoryLedger() *memoryLedger {
	return &memoryLedger{
		entries:  map[string]models.AccountingEntry{},
		fees:     map[string]models.TeacherFeeSetting{},
		students: map[string]models.Student{},
		teachers: map[string]string{},
		failOn:   map[string]error{},
		calls:    map[string]int{},
		clock:    time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC),
	}
}

func (m *memoryLedger) hit(op string) error {
	m.calls[op]++
	return m.failOn[op]
}

func (m *memoryLedger) addTeacher(id, name string) {
	m.teachers[id] = name
}

func (m *memoryLedger) addStudent(id, name, teacherID string) {
	var teacher *string
	if teacherID != "" {
		t := teacherID
		teacher = &t
	}
	m.clock = m.clock.Add(time.Second)
	m.students[id] = models.Student{ID: id, FullName: name, TeacherID: teacher, Active: true, CreatedAt: m.clock}
}

// seed inserts a pending entry with a strictly increasing created_at.
func (m *memoryLedger) seed(id, teacherID, studentID, amount string) {
	m.clock = m.clock.Add(time.Minute)
	m.entries[id] = models.AccountingEntry{
		ID:        id,
		TeacherID: teacherID,
		StudentID: studentID,
		Amount:    decimal.RequireFromString(amount),
		Status:    models.EntryStatusPending,
		CreatedAt: m.clock,
	}
}

func (m *memoryLedger) snapshot() map[string]models.AccountingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[string]models.AccountingEntry, len(m.entries))
	for k, v := range m.entries {
		out[k] = v
	}
	return out
}

func (m *memoryLedger) byStatus(teacherID string, status models.EntryStatus) []models.AccountingEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.filter(teacherID, &status)
}

func (m *memoryLedger) filter(teacherID string, status *models.EntryStatus) []models.AccountingEntry {
	var out []models.AccountingEntry
	for _, e := range m.entries {
		if e.TeacherID != teacherID {
			continue
		}
		if status != nil && e.Status != *status {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memoryLedger) LockTeacher(ctx context.Context, teacherID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedBy = append(m.lockedBy, teacherID)
	return m.hit("LockTeacher")
}

func (m *memoryLedger) Create(ctx context.Context, entry *models.AccountingEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("Create:" + entry.TeacherID); err != nil {
		return err
	}
	if err := m.hit("Create"); err != nil {
		return err
	}
	m.seq++
	if entry.ID == "" {
		entry.ID = fmt.Sprintf("gen-%03d", m.seq)
	}
	m.clock = m.clock.Add(time.Minute)
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = m.clock
	}
	m.entries[entry.ID] = *entry
	return nil
}

func (m *memoryLedger) ListPendingByTeacher(ctx context.Context, teacherID string) ([]models.AccountingEntry, error) {
	status := models.EntryStatusPending
	return m.ListByTeacher(ctx, teacherID, &status)
}

func (m *memoryLedger) ListByTeacher(ctx context.Context, teacherID string, status *models.EntryStatus) ([]models.AccountingEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListByTeacher"); err != nil {
		return nil, err
	}
	return m.filter(teacherID, status), nil
}

func (m *memoryLedger) UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("UpdateAmount"); err != nil {
		return err
	}
	e, ok := m.entries[id]
	if !ok || e.Status != models.EntryStatusPending {
		return sql.ErrNoRows
	}
	e.Amount = amount
	m.entries[id] = e
	return nil
}

func (m *memoryLedger) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("Delete"); err != nil {
		return err
	}
	delete(m.entries, id)
	return nil
}

func (m *memoryLedger) DeletePendingByTeacher(ctx context.Context, teacherID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("DeletePendingByTeacher"); err != nil {
		return 0, err
	}
	n := 0
	for id, e := range m.entries {
		if e.TeacherID == teacherID && e.Status == models.EntryStatusPending {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryLedger) DeleteNonPositivePending(ctx context.Context, teacherID string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("DeleteNonPositivePending"); err != nil {
		return 0, err
	}
	n := 0
	for id, e := range m.entries {
		if e.TeacherID == teacherID && e.Status == models.EntryStatusPending && !e.Amount.IsPositive() {
			delete(m.entries, id)
			n++
		}
	}
	return n, nil
}

func (m *memoryLedger) SumPending(ctx context.Context, teacherID string) (decimal.Decimal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("SumPending"); err != nil {
		return decimal.Zero, err
	}
	total := decimal.Zero
	for _, e := range m.entries {
		if e.TeacherID == teacherID && e.Status == models.EntryStatusPending {
			total = total.Add(e.Amount)
		}
	}
	return total, nil
}

func (m *memoryLedger) PendingTotalsByTeacher(ctx context.Context, period models.DateRange) ([]models.PendingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("PendingTotalsByTeacher"); err != nil {
		return nil, err
	}
	agg := map[string]*models.PendingAggregate{}
	for _, e := range m.entries {
		if e.Status != models.EntryStatusPending {
			continue
		}
		if period.From != nil && e.CreatedAt.Before(*period.From) {
			continue
		}
		if period.To != nil && e.CreatedAt.After(*period.To) {
			continue
		}
		row, ok := agg[e.TeacherID]
		if !ok {
			row = &models.PendingAggregate{TeacherID: e.TeacherID}
			agg[e.TeacherID] = row
		}
		row.Total = row.Total.Add(e.Amount)
		row.Count++
	}
	out := make([]models.PendingAggregate, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	return out, nil
}

func (m *memoryLedger) PendingTotalsByStudent(ctx context.Context, teacherID string) ([]models.PendingAggregate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("PendingTotalsByStudent"); err != nil {
		return nil, err
	}
	agg := map[string]*models.PendingAggregate{}
	for _, e := range m.entries {
		if e.TeacherID != teacherID || e.Status != models.EntryStatusPending {
			continue
		}
		row, ok := agg[e.StudentID]
		if !ok {
			row = &models.PendingAggregate{TeacherID: teacherID, StudentID: e.StudentID}
			agg[e.StudentID] = row
		}
		row.Total = row.Total.Add(e.Amount)
		row.Count++
	}
	out := make([]models.PendingAggregate, 0, len(agg))
	for _, row := range agg {
		out = append(out, *row)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentID < out[j].StudentID })
	return out, nil
}

func (m *memoryLedger) Get(ctx context.Context, teacherID string) (*models.TeacherFeeSetting, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("GetFee"); err != nil {
		return nil, err
	}
	setting, ok := m.fees[teacherID]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &setting, nil
}

func (m *memoryLedger) Upsert(ctx context.Context, setting *models.TeacherFeeSetting) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("Upsert"); err != nil {
		return err
	}
	setting.UpdatedAt = m.clock
	m.fees[setting.TeacherID] = *setting
	return nil
}

func (m *memoryLedger) BulkUpsert(ctx context.Context, teacherIDs []string, fee decimal.Decimal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("BulkUpsert"); err != nil {
		return err
	}
	for _, id := range teacherIDs {
		m.fees[id] = models.TeacherFeeSetting{TeacherID: id, PerStudentFee: fee, UpdatedAt: m.clock}
	}
	return nil
}

func (m *memoryLedger) FindByID(ctx context.Context, id string) (*models.Student, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("FindStudent"); err != nil {
		return nil, err
	}
	student, ok := m.students[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &student, nil
}

func (m *memoryLedger) ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListIDsByTeacher"); err != nil {
		return nil, err
	}
	var ids []string
	for _, s := range m.students {
		if s.TeacherID != nil && *s.TeacherID == teacherID {
			ids = append(ids, s.ID)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryLedger) CountByTeacher(ctx context.Context) ([]models.StudentCount, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := map[string]int{}
	for _, s := range m.students {
		if s.TeacherID != nil {
			counts[*s.TeacherID]++
		}
	}
	out := make([]models.StudentCount, 0, len(counts))
	for id, n := range counts {
		out = append(out, models.StudentCount{TeacherID: id, Count: n})
	}
	return out, nil
}

func (m *memoryLedger) NamesByIDs(ctx context.Context, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := map[string]string{}
	for _, id := range ids {
		if s, ok := m.students[id]; ok {
			names[id] = s.FullName
		}
	}
	return names, nil
}

func (m *memoryLedger) universe() map[string]struct{} {
	ids := map[string]struct{}{}
	for id := range m.teachers {
		ids[id] = struct{}{}
	}
	for _, s := range m.students {
		if s.TeacherID != nil {
			ids[*s.TeacherID] = struct{}{}
		}
	}
	for _, e := range m.entries {
		ids[e.TeacherID] = struct{}{}
	}
	for id := range m.fees {
		ids[id] = struct{}{}
	}
	return ids
}

func (m *memoryLedger) ListTeacherIDs(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.hit("ListTeacherIDs"); err != nil {
		return nil, err
	}
	var ids []string
	for id := range m.universe() {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (m *memoryLedger) Lookup(ctx context.Context, teacherID string) (*models.TeacherRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if name, ok := m.teachers[teacherID]; ok {
		return &models.TeacherRef{ID: teacherID, Name: name}, nil
	}
	if _, ok := m.universe()[teacherID]; ok {
		return &models.TeacherRef{ID: teacherID, Name: teacherID}, nil
	}
	return nil, sql.ErrNoRows
}

func (m *memoryLedger) Names(ctx context.Context, ids []string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := map[string]string{}
	for _, id := range ids {
		if name, ok := m.teachers[id]; ok {
			names[id] = name
		}
	}
	return names, nil
}

// memoryTx restores the ledger to its state at the start of the unit of work
// when fn fails, mimicking a rolled back database transaction.
type memoryTx struct {
	ledger *memoryLedger
	begun  int
}

type memoryTxKey struct{}

func (t *memoryTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(memoryTxKey{}) != nil {
		return fn(ctx)
	}
	entries := t.ledger.snapshot()
	t.ledger.mu.Lock()
	t.begun++
	fees := make(map[string]models.TeacherFeeSetting, len(t.ledger.fees))
	for k, v := range t.ledger.fees {
		fees[k] = v
	}
	t.ledger.mu.Unlock()

	if err := fn(context.WithValue(ctx, memoryTxKey{}, true)); err != nil {
		t.ledger.mu.Lock()
		t.ledger.entries = entries
		t.ledger.fees = fees
		t.ledger.mu.Unlock()
		return err
	}
	return nil
}

type memoryCache struct {
	mu      sync.Mutex
	values  map[string][]byte
	deleted []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{values: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.values[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.values[key] = raw
	return nil
}

func (c *memoryCache) DeleteByPattern(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for key := range c.values {
		if ok, _ := path.Match(pattern, key); ok {
			delete(c.values, key)
			c.deleted = append(c.deleted, key)
		}
	}
	return nil
}

func (c *memoryCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.values[key]
	return ok
}
