package models

import "time"

// AuditAction constants name the ledger mutations recorded in the audit trail.
const (
	AuditActionPaymentApply      = "ACCOUNTING_PAYMENT_APPLY"
	AuditActionPendingDelete     = "ACCOUNTING_PENDING_DELETE"
	AuditActionPendingCleanup    = "ACCOUNTING_PENDING_CLEANUP"
	AuditActionDefaultFeeInit    = "ACCOUNTING_DEFAULT_FEE_INIT"
	AuditActionDefaultFeeInitAll = "ACCOUNTING_DEFAULT_FEE_INIT_ALL"
	AuditActionFeeUpdate         = "ACCOUNTING_FEE_UPDATE"
	AuditActionChargeCreate      = "ACCOUNTING_CHARGE_CREATE"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}
