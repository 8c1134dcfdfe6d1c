package service

import (
	"context"
	"database/sql"
	"errors"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ledger-api/internal/dto"
	"github.com/noah-isme/tutor-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ledger-api/pkg/errors"
)

type ledgerEntryStore interface {
	LockTeacher(ctx context.Context, teacherID string) error
	Create(ctx context.Context, entry *models.AccountingEntry) error
	ListPendingByTeacher(ctx context.Context, teacherID string) ([]models.AccountingEntry, error)
	ListByTeacher(ctx context.Context, teacherID string, status *models.EntryStatus) ([]models.AccountingEntry, error)
	UpdateAmount(ctx context.Context, id string, amount decimal.Decimal) error
	Delete(ctx context.Context, id string) error
	DeletePendingByTeacher(ctx context.Context, teacherID string) (int, error)
	DeleteNonPositivePending(ctx context.Context, teacherID string) (int, error)
	SumPending(ctx context.Context, teacherID string) (decimal.Decimal, error)
}

type feeSettingStore interface {
	Get(ctx context.Context, teacherID string) (*models.TeacherFeeSetting, error)
	Upsert(ctx context.Context, setting *models.TeacherFeeSetting) error
	BulkUpsert(ctx context.Context, teacherIDs []string, fee decimal.Decimal) error
}

type studentRoster interface {
	FindByID(ctx context.Context, id string) (*models.Student, error)
	ListIDsByTeacher(ctx context.Context, teacherID string) ([]string, error)
}

// TeacherDirectory resolves which ids are teachers, independent of how roles are stored.
type TeacherDirectory interface {
	ListTeacherIDs(ctx context.Context) ([]string, error)
	Lookup(ctx context.Context, teacherID string) (*models.TeacherRef, error)
}

type txRunner interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type passthroughTx struct{}

func (passthroughTx) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// LedgerService owns every mutation of the teacher accounting ledger: payment
// settlement, default fee initialization, cleanup and charge creation. Each
// mutation of a teacher runs in one transaction under that teacher's lock.
type LedgerService struct {
	entries   ledgerEntryStore
	fees      feeSettingStore
	students  studentRoster
	directory TeacherDirectory
	tx        txRunner
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	locks     *teacherLocks
}

// NewLedgerService wires a LedgerService. tx may be nil, in which case every
// store call commits on its own.
func NewLedgerService(
	entries ledgerEntryStore,
	fees feeSettingStore,
	students studentRoster,
	directory TeacherDirectory,
	tx txRunner,
	cache *CacheService,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
) *LedgerService {
	if tx == nil {
		tx = passthroughTx{}
	}
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LedgerService{
		entries:   entries,
		fees:      fees,
		students:  students,
		directory: directory,
		tx:        tx,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		locks:     newTeacherLocks(),
	}
}

// ApplyTeacherPayment settles pending entries of the teacher oldest first. When
// the payment clears the teacher's whole pending balance, one paid receipt per
// settled student is written.
func (s *LedgerService) ApplyTeacherPayment(ctx context.Context, teacherID string, amount float64) (result *models.PaymentResult, err error) {
	defer s.observe("apply_payment", time.Now(), &err)

	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	payment, err := positiveAmount(amount)
	if err != nil {
		return nil, err
	}

	var run *settlement
	err = s.withTeacher(ctx, teacherID, func(ctx context.Context) error {
		run = newSettlement(payment)
		return s.settle(ctx, teacherID, run)
	})
	if err != nil {
		return nil, asStoreError(err, "failed to apply payment")
	}

	result = run.result(payment)
	applied, _ := result.AppliedAmount.Float64()
	s.metrics.RecordPayment(applied)
	s.metrics.RecordEntriesDeleted("settled", run.deleted)
	s.metrics.RecordEntriesDeleted("cleanup", run.cleaned)
	s.metrics.RecordEntriesInserted(string(models.EntryStatusPaid), len(result.CreatedPaymentEntryIDs))
	s.invalidate(ctx, teacherID)

	s.logger.Info("teacher payment applied",
		zap.String("teacher_id", teacherID),
		zap.String("amount", payment.String()),
		zap.String("applied", result.AppliedAmount.String()),
		zap.String("unapplied", result.RemainingUnapplied.String()),
		zap.Int("receipts", len(result.CreatedPaymentEntryIDs)),
	)
	return result, nil
}

func (s *LedgerService) settle(ctx context.Context, teacherID string, run *settlement) error {
	pending, err := s.entries.ListPendingByTeacher(ctx, teacherID)
	if err != nil {
		return appErrors.Store(err, "failed to load pending entries")
	}

	for _, entry := range pending {
		if !run.remaining.IsPositive() {
			break
		}
		if !entry.Amount.IsPositive() {
			continue
		}

		if run.remaining.GreaterThanOrEqual(entry.Amount) {
			if err := s.entries.Delete(ctx, entry.ID); err != nil {
				return appErrors.Store(err, "failed to settle pending entry")
			}
			run.deleted++
			run.record(entry.StudentID, entry.Amount)
			run.remaining = run.remaining.Sub(entry.Amount)
			continue
		}

		newAmount := entry.Amount.Sub(run.remaining)
		if newAmount.IsPositive() {
			if err := s.entries.UpdateAmount(ctx, entry.ID, newAmount); err != nil {
				return appErrors.Store(err, "failed to reduce pending entry")
			}
			run.updated = append(run.updated, entry.ID)
		} else {
			if err := s.entries.Delete(ctx, entry.ID); err != nil {
				return appErrors.Store(err, "failed to settle pending entry")
			}
			run.deleted++
		}
		run.record(entry.StudentID, run.remaining)
		run.remaining = decimal.Zero
		break
	}

	cleaned, err := s.entries.DeleteNonPositivePending(ctx, teacherID)
	if err != nil {
		return appErrors.Store(err, "failed to clean up pending entries")
	}
	run.cleaned = cleaned

	if len(run.students) == 0 {
		return nil
	}
	outstanding, err := s.entries.SumPending(ctx, teacherID)
	if err != nil {
		return appErrors.Store(err, "failed to read pending total")
	}
	if !outstanding.IsZero() {
		return nil
	}

	now := time.Now().UTC()
	for _, studentID := range run.students {
		receipt := &models.AccountingEntry{
			TeacherID: teacherID,
			StudentID: studentID,
			Amount:    run.settled[studentID],
			Status:    models.EntryStatusPaid,
			CreatedAt: now,
		}
		if err := s.entries.Create(ctx, receipt); err != nil {
			return appErrors.Store(err, "failed to record payment receipt")
		}
		run.receipts = append(run.receipts, receipt.ID)
	}
	return nil
}

// DeleteTeacherPending removes every pending entry of the teacher.
func (s *LedgerService) DeleteTeacherPending(ctx context.Context, teacherID string) (result *models.DeletionResult, err error) {
	defer s.observe("delete_pending", time.Now(), &err)

	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	var deleted int
	err = s.withTeacher(ctx, teacherID, func(ctx context.Context) error {
		n, err := s.entries.DeletePendingByTeacher(ctx, teacherID)
		if err != nil {
			return appErrors.Store(err, "failed to delete pending entries")
		}
		deleted = n
		return nil
	})
	if err != nil {
		return nil, asStoreError(err, "failed to delete pending entries")
	}

	s.metrics.RecordEntriesDeleted("reset", deleted)
	s.invalidate(ctx, teacherID)
	s.logger.Info("pending entries deleted", zap.String("teacher_id", teacherID), zap.Int("deleted", deleted))
	return &models.DeletionResult{Deleted: deleted}, nil
}

// CleanupZeroPending removes pending entries of the teacher whose amount is zero
// or negative. Running it twice deletes nothing the second time.
func (s *LedgerService) CleanupZeroPending(ctx context.Context, teacherID string) (result *models.DeletionResult, err error) {
	defer s.observe("cleanup", time.Now(), &err)

	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	var deleted int
	err = s.withTeacher(ctx, teacherID, func(ctx context.Context) error {
		n, err := s.entries.DeleteNonPositivePending(ctx, teacherID)
		if err != nil {
			return appErrors.Store(err, "failed to clean up pending entries")
		}
		deleted = n
		return nil
	})
	if err != nil {
		return nil, asStoreError(err, "failed to clean up pending entries")
	}

	if deleted > 0 {
		s.metrics.RecordEntriesDeleted("cleanup", deleted)
		s.invalidate(ctx, teacherID)
	}
	return &models.DeletionResult{Deleted: deleted}, nil
}

// InitializeDefaultFeeForTeacher stores the teacher's default fee and creates one
// pending entry per current student at that fee, optionally wiping the teacher's
// pending entries first.
func (s *LedgerService) InitializeDefaultFeeForTeacher(ctx context.Context, teacherID string, fee float64, opts models.InitializationOptions) (result *models.InitializationResult, err error) {
	defer s.observe("initialize_teacher", time.Now(), &err)

	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	perStudent, err := nonNegativeFee(fee)
	if err != nil {
		return nil, err
	}

	res, err := s.initializeTeacher(ctx, teacherID, perStudent, opts, true)
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, teacherID)
	return &res, nil
}

// InitializeDefaultFeeForAllTeachers applies the fee to every teacher known to the
// directory. Teachers are processed one after another; the first failure stops
// the run and is returned.
func (s *LedgerService) InitializeDefaultFeeForAllTeachers(ctx context.Context, fee float64, opts models.InitializationOptions) (result *models.BulkInitializationResult, err error) {
	defer s.observe("initialize_all", time.Now(), &err)

	perStudent, err := nonNegativeFee(fee)
	if err != nil {
		return nil, err
	}

	teacherIDs, err := s.directory.ListTeacherIDs(ctx)
	if err != nil {
		return nil, appErrors.Store(err, "failed to resolve teachers")
	}
	if teacherIDs == nil {
		teacherIDs = []string{}
	}
	result = &models.BulkInitializationResult{TeacherIDs: teacherIDs}
	if len(teacherIDs) == 0 {
		return result, nil
	}

	if err := s.fees.BulkUpsert(ctx, teacherIDs, perStudent); err != nil {
		return nil, appErrors.Store(err, "failed to store default fees")
	}
	defer s.invalidateAll(ctx)

	for _, teacherID := range teacherIDs {
		res, err := s.initializeTeacher(ctx, teacherID, perStudent, opts, false)
		if err != nil {
			s.logger.Error("default fee initialisation aborted",
				zap.String("teacher_id", teacherID),
				zap.Int("inserted_so_far", result.TotalInserted),
				zap.Error(err),
			)
			return nil, err
		}
		result.TotalInserted += res.Inserted
		result.TotalDeleted += res.Deleted
	}

	s.logger.Info("default fee initialised for all teachers",
		zap.Int("teachers", len(teacherIDs)),
		zap.String("fee", perStudent.String()),
		zap.Int("inserted", result.TotalInserted),
		zap.Int("deleted", result.TotalDeleted),
	)
	return result, nil
}

func (s *LedgerService) initializeTeacher(ctx context.Context, teacherID string, fee decimal.Decimal, opts models.InitializationOptions, storeFee bool) (models.InitializationResult, error) {
	var res models.InitializationResult
	err := s.withTeacher(ctx, teacherID, func(ctx context.Context) error {
		res = models.InitializationResult{}
		if storeFee {
			if err := s.fees.Upsert(ctx, &models.TeacherFeeSetting{TeacherID: teacherID, PerStudentFee: fee}); err != nil {
				return appErrors.Store(err, "failed to store default fee")
			}
		}

		if opts.OverwriteExisting {
			deleted, err := s.entries.DeletePendingByTeacher(ctx, teacherID)
			if err != nil {
				return appErrors.Store(err, "failed to delete pending entries")
			}
			res.Deleted = deleted
		}

		// Zero fees would only produce entries that cleanup deletes.
		if !fee.IsPositive() {
			return nil
		}

		studentIDs, err := s.students.ListIDsByTeacher(ctx, teacherID)
		if err != nil {
			return appErrors.Store(err, "failed to load students")
		}
		now := time.Now().UTC()
		for _, studentID := range studentIDs {
			entry := &models.AccountingEntry{
				TeacherID: teacherID,
				StudentID: studentID,
				Amount:    fee,
				Status:    models.EntryStatusPending,
				CreatedAt: now,
			}
			if err := s.entries.Create(ctx, entry); err != nil {
				return appErrors.Store(err, "failed to create pending entry")
			}
			res.Inserted++
		}
		return nil
	})
	if err != nil {
		return models.InitializationResult{}, asStoreError(err, "failed to initialise default fee")
	}

	s.metrics.RecordEntriesDeleted("reset", res.Deleted)
	s.metrics.RecordEntriesInserted(string(models.EntryStatusPending), res.Inserted)
	s.logger.Info("default fee initialised",
		zap.String("teacher_id", teacherID),
		zap.String("fee", fee.String()),
		zap.Bool("overwrite", opts.OverwriteExisting),
		zap.Int("inserted", res.Inserted),
		zap.Int("deleted", res.Deleted),
	)
	return res, nil
}

// AddAccountingCharge inserts one pending entry for a student. The teacher is taken
// from the request or, when absent, from the student record.
func (s *LedgerService) AddAccountingCharge(ctx context.Context, req dto.ChargeRequest) (entry *models.AccountingEntry, err error) {
	defer s.observe("add_charge", time.Now(), &err)

	req.StudentID = strings.TrimSpace(req.StudentID)
	req.TeacherID = strings.TrimSpace(req.TeacherID)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid charge payload")
	}
	amount, err := positiveAmount(req.Amount)
	if err != nil {
		return nil, err
	}

	teacherID := req.TeacherID
	if teacherID == "" {
		student, err := s.loadStudent(ctx, req.StudentID)
		if err != nil {
			return nil, err
		}
		teacherID = assignedTeacher(student)
		if teacherID == "" {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no teacher assigned to student")
		}
	}

	return s.createCharge(ctx, teacherID, req.StudentID, amount)
}

// ChargeStudentAtDefaultFee charges a newly enrolled student at the default fee
// of the student's teacher. It returns a nil entry when the teacher has no
// positive default fee.
func (s *LedgerService) ChargeStudentAtDefaultFee(ctx context.Context, studentID string) (entry *models.AccountingEntry, err error) {
	defer s.observe("charge_default", time.Now(), &err)

	if err := requireID(studentID, "student_id"); err != nil {
		return nil, err
	}
	student, err := s.loadStudent(ctx, studentID)
	if err != nil {
		return nil, err
	}
	teacherID := assignedTeacher(student)
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "no teacher assigned to student")
	}

	setting, err := s.fees.Get(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, appErrors.Store(err, "failed to load default fee")
	}
	if !setting.PerStudentFee.IsPositive() {
		return nil, nil
	}

	return s.createCharge(ctx, teacherID, studentID, setting.PerStudentFee)
}

func (s *LedgerService) createCharge(ctx context.Context, teacherID, studentID string, amount decimal.Decimal) (*models.AccountingEntry, error) {
	entry := &models.AccountingEntry{
		TeacherID: teacherID,
		StudentID: studentID,
		Amount:    amount,
		Status:    models.EntryStatusPending,
	}
	err := s.withTeacher(ctx, teacherID, func(ctx context.Context) error {
		if err := s.entries.Create(ctx, entry); err != nil {
			return appErrors.Store(err, "failed to create charge")
		}
		return nil
	})
	if err != nil {
		return nil, asStoreError(err, "failed to create charge")
	}

	s.metrics.RecordEntriesInserted(string(models.EntryStatusPending), 1)
	s.invalidate(ctx, teacherID)
	s.logger.Info("charge created",
		zap.String("teacher_id", teacherID),
		zap.String("student_id", studentID),
		zap.String("amount", amount.String()),
	)
	return entry, nil
}

// InitializeDefaultFee validates a default fee payload and initialises one teacher.
func (s *LedgerService) InitializeDefaultFee(ctx context.Context, teacherID string, req dto.DefaultFeeRequest) (*models.InitializationResult, error) {
	if err := s.validateFeePayload(req); err != nil {
		return nil, err
	}
	return s.InitializeDefaultFeeForTeacher(ctx, teacherID, *req.PerStudentFee, models.InitializationOptions{OverwriteExisting: req.OverwriteExisting})
}

// InitializeDefaultFeeForAll validates a default fee payload and initialises every teacher.
func (s *LedgerService) InitializeDefaultFeeForAll(ctx context.Context, req dto.DefaultFeeRequest) (*models.BulkInitializationResult, error) {
	if err := s.validateFeePayload(req); err != nil {
		return nil, err
	}
	return s.InitializeDefaultFeeForAllTeachers(ctx, *req.PerStudentFee, models.InitializationOptions{OverwriteExisting: req.OverwriteExisting})
}

// UpdateTeacherFee validates a fee payload and stores it without touching entries.
func (s *LedgerService) UpdateTeacherFee(ctx context.Context, teacherID string, req dto.SetFeeRequest) (*models.TeacherFeeSetting, error) {
	if err := s.validateFeePayload(req); err != nil {
		return nil, err
	}
	return s.SetTeacherFee(ctx, teacherID, *req.PerStudentFee)
}

func (s *LedgerService) validateFeePayload(req interface{}) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "per_student_fee is required")
	}
	return nil
}

// GetTeacherFee returns the teacher's default fee setting.
func (s *LedgerService) GetTeacherFee(ctx context.Context, teacherID string) (*models.TeacherFeeSetting, error) {
	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	setting, err := s.fees.Get(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no default fee configured")
		}
		return nil, appErrors.Store(err, "failed to load default fee")
	}
	return setting, nil
}

// SetTeacherFee stores the teacher's default fee without touching entries.
func (s *LedgerService) SetTeacherFee(ctx context.Context, teacherID string, fee float64) (*models.TeacherFeeSetting, error) {
	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	perStudent, err := nonNegativeFee(fee)
	if err != nil {
		return nil, err
	}
	setting := &models.TeacherFeeSetting{TeacherID: teacherID, PerStudentFee: perStudent}
	if err := s.fees.Upsert(ctx, setting); err != nil {
		return nil, appErrors.Store(err, "failed to store default fee")
	}
	s.invalidate(ctx, teacherID)
	return setting, nil
}

// ListTeacherEntries returns the teacher's entries oldest first, optionally
// restricted to one status.
func (s *LedgerService) ListTeacherEntries(ctx context.Context, teacherID, status string) ([]models.AccountingEntry, error) {
	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, err
	}
	var filter *models.EntryStatus
	if status != "" {
		st := models.EntryStatus(strings.ToLower(status))
		if !st.Valid() {
			return nil, appErrors.Clone(appErrors.ErrValidation, "status must be pending or paid")
		}
		filter = &st
	}
	entries, err := s.entries.ListByTeacher(ctx, teacherID, filter)
	if err != nil {
		return nil, appErrors.Store(err, "failed to list entries")
	}
	if entries == nil {
		entries = []models.AccountingEntry{}
	}
	return entries, nil
}

func (s *LedgerService) withTeacher(ctx context.Context, teacherID string, fn func(ctx context.Context) error) error {
	unlock := s.locks.lock(teacherID)
	defer unlock()

	return s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.entries.LockTeacher(ctx, teacherID); err != nil {
			return appErrors.Store(err, "failed to lock teacher ledger")
		}
		return fn(ctx)
	})
}

func (s *LedgerService) loadStudent(ctx context.Context, studentID string) (*models.Student, error) {
	student, err := s.students.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Store(err, "failed to load student")
	}
	return student, nil
}

func (s *LedgerService) invalidate(ctx context.Context, teacherID string) {
	if err := s.cache.InvalidateTeacher(ctx, teacherID); err != nil {
		s.logger.Warn("accounting cache invalidation failed", zap.String("teacher_id", teacherID), zap.Error(err))
	}
}

func (s *LedgerService) invalidateAll(ctx context.Context) {
	if err := s.cache.Invalidate(ctx, statsCachePrefix+"*", detailsCachePrefix+"*"); err != nil {
		s.logger.Warn("accounting cache invalidation failed", zap.Error(err))
	}
}

func (s *LedgerService) observe(operation string, start time.Time, err *error) {
	s.metrics.ObserveLedgerOperation(operation, *err, time.Since(start))
}

// settlement tracks one payment walk over the pending entries.
type settlement struct {
	remaining decimal.Decimal
	updated   []string
	receipts  []string
	students  []string
	settled   map[string]decimal.Decimal
	deleted   int
	cleaned   int
}

func newSettlement(amount decimal.Decimal) *settlement {
	return &settlement{remaining: amount, settled: make(map[string]decimal.Decimal)}
}

func (r *settlement) record(studentID string, amount decimal.Decimal) {
	if _, ok := r.settled[studentID]; !ok {
		r.students = append(r.students, studentID)
		r.settled[studentID] = decimal.Zero
	}
	r.settled[studentID] = r.settled[studentID].Add(amount)
}

func (r *settlement) result(payment decimal.Decimal) *models.PaymentResult {
	updated := r.updated
	if updated == nil {
		updated = []string{}
	}
	receipts := r.receipts
	if receipts == nil {
		receipts = []string{}
	}
	return &models.PaymentResult{
		AppliedAmount:          payment.Sub(r.remaining),
		RemainingUnapplied:     r.remaining,
		UpdatedEntryIDs:        updated,
		CreatedPaymentEntryIDs: receipts,
	}
}

// teacherLocks is a keyed mutex. Entries are dropped once no goroutine holds or
// waits for them.
type teacherLocks struct {
	mu    sync.Mutex
	locks map[string]*teacherLock
}

type teacherLock struct {
	mu   sync.Mutex
	refs int
}

func newTeacherLocks() *teacherLocks {
	return &teacherLocks{locks: make(map[string]*teacherLock)}
}

func (l *teacherLocks) lock(teacherID string) func() {
	l.mu.Lock()
	entry, ok := l.locks[teacherID]
	if !ok {
		entry = &teacherLock{}
		l.locks[teacherID] = entry
	}
	entry.refs++
	l.mu.Unlock()

	entry.mu.Lock()
	return func() {
		entry.mu.Unlock()
		l.mu.Lock()
		entry.refs--
		if entry.refs == 0 {
			delete(l.locks, teacherID)
		}
		l.mu.Unlock()
	}
}

func requireID(id, field string) error {
	if strings.TrimSpace(id) == "" {
		return appErrors.Clone(appErrors.ErrValidation, field+" is required")
	}
	return nil
}

func assignedTeacher(student *models.Student) string {
	if student == nil || student.TeacherID == nil {
		return ""
	}
	return strings.TrimSpace(*student.TeacherID)
}

// moneyPlaces matches the NUMERIC(12,2) ledger columns.
const moneyPlaces = 2

func positiveAmount(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return decimal.Zero, appErrors.Clone(appErrors.ErrInvalidAmount, "")
	}
	amount := decimal.NewFromFloat(v).Round(moneyPlaces)
	if !amount.IsPositive() {
		return decimal.Zero, appErrors.Clone(appErrors.ErrInvalidAmount, "amount rounds to zero cents")
	}
	return amount, nil
}

func nonNegativeFee(v float64) (decimal.Decimal, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) || v < 0 {
		return decimal.Zero, appErrors.Clone(appErrors.ErrInvalidFee, "")
	}
	return decimal.NewFromFloat(v).Round(moneyPlaces), nil
}

func asStoreError(err error, message string) error {
	var appErr *appErrors.Error
	if errors.As(err, &appErr) {
		return err
	}
	return appErrors.Store(err, message)
}
