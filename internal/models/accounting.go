package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// EntryStatus is the settlement state of an accounting entry.
type EntryStatus string

const (
	EntryStatusPending EntryStatus = "pending"
	EntryStatusPaid    EntryStatus = "paid"
)

// Valid reports whether the status is one the ledger stores.
func (s EntryStatus) Valid() bool {
	return s == EntryStatusPending || s == EntryStatusPaid
}

// AccountingEntry is one charge owed by a teacher to the administrator for a student.
// Pending entries are open debt; paid entries are receipts written when a payment
// clears the teacher's balance.
type AccountingEntry struct {
	ID        string          `db:"id" json:"id"`
	TeacherID string          `db:"teacher_id" json:"teacher_id"`
	StudentID string          `db:"student_id" json:"student_id"`
	Amount    decimal.Decimal `db:"amount" json:"amount"`
	Status    EntryStatus     `db:"status" json:"status"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}

// TeacherFeeSetting holds the default per-student fee of a teacher.
type TeacherFeeSetting struct {
	TeacherID     string          `db:"teacher_id" json:"teacher_id"`
	PerStudentFee decimal.Decimal `db:"per_student_fee" json:"per_student_fee"`
	UpdatedAt     time.Time       `db:"updated_at" json:"updated_at"`
}

// DateRange bounds reporting queries on created_at. Both ends are inclusive and optional.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether no bound is set.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// PendingAggregate is the pending total and count of one teacher (or teacher+student).
type PendingAggregate struct {
	TeacherID string          `db:"teacher_id"`
	StudentID string          `db:"student_id"`
	Total     decimal.Decimal `db:"total"`
	Count     int             `db:"entries"`
}

// StudentCount is the roster size of a teacher.
type StudentCount struct {
	TeacherID string `db:"teacher_id"`
	Count     int    `db:"students"`
}

// TeacherAccountingStats is the per-teacher line of the accounting overview.
type TeacherAccountingStats struct {
	TeacherID      string          `json:"teacher_id"`
	TeacherName    string          `json:"teacher_name"`
	StudentsCount  int             `json:"students_count"`
	TotalDue       decimal.Decimal `json:"total_due"`
	PendingEntries int             `json:"pending_entries"`
}

// StudentPendingBalance is a student's open balance under a teacher.
type StudentPendingBalance struct {
	StudentID      string          `json:"student_id"`
	StudentName    string          `json:"student_name"`
	PendingAmount  decimal.Decimal `json:"pending_amount"`
	PendingEntries int             `json:"pending_entries"`
}

// TeacherAccountingDetails is the drill-down of one teacher. Only students with
// open debt are listed and counted.
type TeacherAccountingDetails struct {
	TeacherID     string                  `json:"teacher_id"`
	TeacherName   string                  `json:"teacher_name"`
	StudentsCount int                     `json:"students_count"`
	TotalDue      decimal.Decimal         `json:"total_due"`
	PerStudentFee *decimal.Decimal        `json:"per_student_fee"`
	Students      []StudentPendingBalance `json:"students"`
}

// PaymentResult reports how a payment was distributed.
type PaymentResult struct {
	AppliedAmount          decimal.Decimal `json:"applied_amount"`
	RemainingUnapplied     decimal.Decimal `json:"remaining_unapplied"`
	UpdatedEntryIDs        []string        `json:"updated_entry_ids"`
	CreatedPaymentEntryIDs []string        `json:"created_payment_entry_ids"`
}

// InitializationResult counts the rows touched by a default fee initialization.
type InitializationResult struct {
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
}

// BulkInitializationResult aggregates an all-teachers initialization.
type BulkInitializationResult struct {
	TeacherIDs    []string `json:"teacher_ids"`
	TotalInserted int      `json:"total_inserted"`
	TotalDeleted  int      `json:"total_deleted"`
}

// DeletionResult counts rows removed by a bulk delete.
type DeletionResult struct {
	Deleted int `json:"deleted"`
}

// InitializationOptions tunes default fee initialization.
type InitializationOptions struct {
	OverwriteExisting bool `json:"overwrite_existing"`
}
