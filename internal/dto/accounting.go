package dto

import "github.com/noah-isme/tutor-ledger-api/internal/models"

// ApplyPaymentRequest records a payment received from a teacher.
type ApplyPaymentRequest struct {
	Amount float64 `json:"amount"`
}

// DefaultFeeRequest (re)initialises pending charges at a per-student fee. The fee
// is a pointer so an absent key is rejected while an explicit 0 is accepted.
type DefaultFeeRequest struct {
	PerStudentFee     *float64 `json:"per_student_fee" validate:"required"`
	OverwriteExisting bool     `json:"overwrite_existing"`
}

// SetFeeRequest changes a teacher's default fee without generating charges.
type SetFeeRequest struct {
	PerStudentFee *float64 `json:"per_student_fee" validate:"required"`
}

// ChargeRequest creates one pending charge for a student. TeacherID is resolved
// from the student record when omitted.
type ChargeRequest struct {
	StudentID string  `json:"student_id" validate:"required,max=64"`
	Amount    float64 `json:"amount"`
	TeacherID string  `json:"teacher_id,omitempty" validate:"omitempty,max=64"`
}

// AccountingStatsFilter holds the raw date range query of the stats endpoints.
type AccountingStatsFilter struct {
	From string `form:"from"`
	To   string `form:"to"`
}

// ChargeDefaultResponse reports whether a default fee charge was created.
type ChargeDefaultResponse struct {
	Charged bool                    `json:"charged"`
	Entry   *models.AccountingEntry `json:"entry,omitempty"`
}
