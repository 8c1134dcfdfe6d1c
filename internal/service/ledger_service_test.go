package service

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/tutor-ledger-api/internal/dto"
	"github.com/noah-isme/tutor-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ledger-api/pkg/errors"
)

func newLedgerFixture(t *testing.T) (*LedgerService, *memoryLedger, *memoryTx) {
	t.Helper()
	store := newMemoryLedger()
	tx := &memoryTx{ledger: store}
	svc := NewLedgerService(store, store, store, store, tx, nil, NewMetricsService(), nil, nil)
	return svc, store, tx
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s got %s", want, got)
}

func TestApplyTeacherPaymentSettlesOldestFirst(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")

	res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 12)
	require.NoError(t, err)

	assertAmount(t, "12", res.AppliedAmount)
	assertAmount(t, "0", res.RemainingUnapplied)
	assert.Equal(t, []string{"e2"}, res.UpdatedEntryIDs)
	assert.Empty(t, res.CreatedPaymentEntryIDs)

	pending := store.byStatus("t1", models.EntryStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].ID)
	assertAmount(t, "3", pending[0].Amount)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPaid))
}

func TestApplyTeacherPaymentExactMatchDeletes(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")

	res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 10)
	require.NoError(t, err)

	assertAmount(t, "10", res.AppliedAmount)
	assert.Empty(t, res.UpdatedEntryIDs)
	assert.Empty(t, res.CreatedPaymentEntryIDs)

	pending := store.byStatus("t1", models.EntryStatusPending)
	require.Len(t, pending, 1)
	assert.Equal(t, "e2", pending[0].ID)
	assertAmount(t, "5", pending[0].Amount)
}

func TestApplyTeacherPaymentOverpaymentWritesReceipts(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")

	res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 20)
	require.NoError(t, err)

	assertAmount(t, "15", res.AppliedAmount)
	assertAmount(t, "5", res.RemainingUnapplied)
	assert.Len(t, res.CreatedPaymentEntryIDs, 2)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPending))

	paid := store.byStatus("t1", models.EntryStatusPaid)
	require.Len(t, paid, 2)
	byStudent := map[string]decimal.Decimal{}
	for _, e := range paid {
		byStudent[e.StudentID] = e.Amount
	}
	assertAmount(t, "10", byStudent["s1"])
	assertAmount(t, "5", byStudent["s2"])
}

func TestApplyTeacherPaymentReceiptPerDistinctStudent(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s1", "5")
	store.seed("e3", "t1", "s2", "2.50")

	res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 17.5)
	require.NoError(t, err)
	assertAmount(t, "17.5", res.AppliedAmount)
	assertAmount(t, "0", res.RemainingUnapplied)

	paid := store.byStatus("t1", models.EntryStatusPaid)
	require.Len(t, paid, 2)
	for _, e := range paid {
		switch e.StudentID {
		case "s1":
			assertAmount(t, "15", e.Amount)
		case "s2":
			assertAmount(t, "2.5", e.Amount)
		default:
			t.Fatalf("unexpected receipt for %s", e.StudentID)
		}
	}
}

func TestApplyTeacherPaymentNoReceiptsWhileDebtRemains(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")

	_, err := svc.ApplyTeacherPayment(context.Background(), "t1", 14.99)
	require.NoError(t, err)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPaid))

	pending := store.byStatus("t1", models.EntryStatusPending)
	require.Len(t, pending, 1)
	assertAmount(t, "0.01", pending[0].Amount)
}

func TestApplyTeacherPaymentSkipsNonPositiveEntries(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e0", "t1", "s0", "0")
	store.seed("e1", "t1", "s1", "10")

	res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 4)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, res.UpdatedEntryIDs)

	pending := store.byStatus("t1", models.EntryStatusPending)
	require.Len(t, pending, 1, "cleanup removes the zero entry")
	assertAmount(t, "6", pending[0].Amount)
}

func TestApplyTeacherPaymentWithoutPendingEntries(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)

	res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 50)
	require.NoError(t, err)
	assertAmount(t, "0", res.AppliedAmount)
	assertAmount(t, "50", res.RemainingUnapplied)
	assert.Empty(t, res.CreatedPaymentEntryIDs)
	assert.Empty(t, store.entries)
}

func TestApplyTeacherPaymentRejectsInvalidAmounts(t *testing.T) {
	for name, amount := range map[string]float64{
		"zero":     0,
		"negative": -5,
		"nan":      math.NaN(),
		"inf":      math.Inf(1),
		"sub cent": 0.004,
	} {
		t.Run(name, func(t *testing.T) {
			svc, store, tx := newLedgerFixture(t)
			store.seed("e1", "t1", "s1", "10")
			before := store.snapshot()

			_, err := svc.ApplyTeacherPayment(context.Background(), "t1", amount)
			require.Error(t, err)
			assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidAmount.Code))
			assert.Equal(t, before, store.snapshot())
			assert.Zero(t, store.calls["ListByTeacher"])
			assert.Zero(t, tx.begun)
		})
	}
}

func TestLedgerAmountsRoundToCents(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	ctx := context.Background()

	entry, err := svc.AddAccountingCharge(ctx, dto.ChargeRequest{StudentID: "s1", Amount: 10.456})
	require.NoError(t, err)
	assertAmount(t, "10.46", entry.Amount)

	res, err := svc.ApplyTeacherPayment(ctx, "t1", 10.4649)
	require.NoError(t, err)
	assertAmount(t, "10.46", res.AppliedAmount)
	assertAmount(t, "0", res.RemainingUnapplied)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPending))

	setting, err := svc.SetTeacherFee(ctx, "t1", 12.345)
	require.NoError(t, err)
	assertAmount(t, "12.35", setting.PerStudentFee)

	initRes, err := svc.InitializeDefaultFeeForTeacher(ctx, "t1", 7.001, models.InitializationOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, initRes.Inserted)
	pending := store.byStatus("t1", models.EntryStatusPending)
	require.Len(t, pending, 1)
	assertAmount(t, "7", pending[0].Amount)
}

func TestApplyTeacherPaymentRollsBackOnStoreFailure(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")
	before := store.snapshot()
	store.failOn["UpdateAmount"] = errors.New("connection reset")

	_, err := svc.ApplyTeacherPayment(context.Background(), "t1", 12)
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrStore.Code))
	assert.Equal(t, before, store.snapshot(), "the deleted first entry is restored")
}

func TestApplyTeacherPaymentLocksTeacher(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")

	_, err := svc.ApplyTeacherPayment(context.Background(), "t1", 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"t1"}, store.lockedBy)
}

func TestApplyTeacherPaymentConcurrentCallsConserveDebt(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	for i := 0; i < 20; i++ {
		store.seed(string(rune('a'+i)), "t1", "s1", "5")
	}

	var wg sync.WaitGroup
	var mu sync.Mutex
	applied := decimal.Zero
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := svc.ApplyTeacherPayment(context.Background(), "t1", 4)
			if err != nil {
				t.Error(err)
				return
			}
			mu.Lock()
			applied = applied.Add(res.AppliedAmount)
			mu.Unlock()
		}()
	}
	wg.Wait()

	assertAmount(t, "100", applied)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPending))
	paid := store.byStatus("t1", models.EntryStatusPaid)
	require.Len(t, paid, 1, "only the payment that cleared the balance writes a receipt")
}

func TestLedgerConservationAcrossChargesAndPayments(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.addStudent("s2", "Budi", "t1")
	ctx := context.Background()

	steps := []struct {
		charge  string
		amount  float64
		payment bool
	}{
		{charge: "s1", amount: 12.5},
		{charge: "s2", amount: 7},
		{payment: true, amount: 3.25},
		{charge: "s1", amount: 4},
		{payment: true, amount: 10},
		{payment: true, amount: 0.75},
		{charge: "s2", amount: 1.1},
		{payment: true, amount: 100},
	}

	charged := decimal.Zero
	applied := decimal.Zero
	for _, step := range steps {
		if step.payment {
			res, err := svc.ApplyTeacherPayment(ctx, "t1", step.amount)
			require.NoError(t, err)
			applied = applied.Add(res.AppliedAmount)
		} else {
			_, err := svc.AddAccountingCharge(ctx, dto.ChargeRequest{StudentID: step.charge, Amount: step.amount})
			require.NoError(t, err)
			charged = charged.Add(decimal.NewFromFloat(step.amount))
		}

		pendingTotal := decimal.Zero
		for _, e := range store.byStatus("t1", models.EntryStatusPending) {
			assert.True(t, e.Amount.IsPositive(), "pending entry %s has amount %s", e.ID, e.Amount)
			pendingTotal = pendingTotal.Add(e.Amount)
		}
		assertAmount(t, charged.Sub(applied).String(), pendingTotal)
	}
	assertAmount(t, "24.6", charged)
	assertAmount(t, "24.6", applied)
}

func TestDeleteTeacherPendingKeepsReceipts(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")
	store.seed("x1", "t2", "s3", "5")
	store.entries["p1"] = models.AccountingEntry{ID: "p1", TeacherID: "t1", StudentID: "s1", Amount: dec("3"), Status: models.EntryStatusPaid}

	res, err := svc.DeleteTeacherPending(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPending))
	assert.Len(t, store.byStatus("t1", models.EntryStatusPaid), 1)
	assert.Len(t, store.byStatus("t2", models.EntryStatusPending), 1)
}

func TestCleanupZeroPendingIsIdempotent(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "0")
	store.seed("e2", "t1", "s2", "-1")
	store.seed("e3", "t1", "s3", "5")

	res, err := svc.CleanupZeroPending(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Deleted)

	res, err = svc.CleanupZeroPending(context.Background(), "t1")
	require.NoError(t, err)
	assert.Equal(t, 0, res.Deleted)
	assert.Len(t, store.byStatus("t1", models.EntryStatusPending), 1)
}

func TestLedgerOperationsRequireTeacherID(t *testing.T) {
	svc, _, _ := newLedgerFixture(t)
	ctx := context.Background()

	_, err := svc.ApplyTeacherPayment(ctx, " ", 10)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	_, err = svc.DeleteTeacherPending(ctx, "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	_, err = svc.CleanupZeroPending(ctx, "")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
}

func TestInitializeDefaultFeeForTeacherIsRepeatable(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.addStudent("s2", "Budi", "t1")
	store.addStudent("s3", "Citra", "t2")
	ctx := context.Background()
	opts := models.InitializationOptions{OverwriteExisting: true}

	first, err := svc.InitializeDefaultFeeForTeacher(ctx, "t1", 20, opts)
	require.NoError(t, err)
	assert.Equal(t, models.InitializationResult{Inserted: 2, Deleted: 0}, *first)
	firstSet := store.byStatus("t1", models.EntryStatusPending)

	second, err := svc.InitializeDefaultFeeForTeacher(ctx, "t1", 20, opts)
	require.NoError(t, err)
	assert.Equal(t, models.InitializationResult{Inserted: 2, Deleted: 2}, *second)
	secondSet := store.byStatus("t1", models.EntryStatusPending)

	require.Len(t, secondSet, len(firstSet))
	for i := range secondSet {
		assert.Equal(t, firstSet[i].StudentID, secondSet[i].StudentID)
		assertAmount(t, "20", secondSet[i].Amount)
		assert.NotEqual(t, firstSet[i].ID, secondSet[i].ID)
	}
	assertAmount(t, "20", store.fees["t1"].PerStudentFee)
	assert.Empty(t, store.byStatus("t2", models.EntryStatusPending))
}

func TestInitializeDefaultFeeForTeacherAppendsWithoutOverwrite(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.seed("e1", "t1", "s1", "15")

	res, err := svc.InitializeDefaultFeeForTeacher(context.Background(), "t1", 20, models.InitializationOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Inserted)
	assert.Equal(t, 0, res.Deleted)
	assert.Len(t, store.byStatus("t1", models.EntryStatusPending), 2)
}

func TestInitializeDefaultFeeForTeacherWithoutStudents(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)

	res, err := svc.InitializeDefaultFeeForTeacher(context.Background(), "t9", 20, models.InitializationOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, models.InitializationResult{}, *res)
	assert.Empty(t, store.entries)
	assertAmount(t, "20", store.fees["t9"].PerStudentFee)
}

func TestInitializeDefaultFeeZeroFeeCreatesNoEntries(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.seed("e1", "t1", "s1", "15")

	res, err := svc.InitializeDefaultFeeForTeacher(context.Background(), "t1", 0, models.InitializationOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, models.InitializationResult{Inserted: 0, Deleted: 1}, *res)
	assert.Empty(t, store.byStatus("t1", models.EntryStatusPending))
	assert.True(t, store.fees["t1"].PerStudentFee.IsZero())
}

func TestInitializeDefaultFeeRejectsInvalidFee(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	for _, fee := range []float64{-1, math.NaN(), math.Inf(-1)} {
		_, err := svc.InitializeDefaultFeeForTeacher(context.Background(), "t1", fee, models.InitializationOptions{})
		require.Error(t, err)
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidFee.Code))

		_, err = svc.InitializeDefaultFeeForAllTeachers(context.Background(), fee, models.InitializationOptions{})
		assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidFee.Code))
	}
	assert.Empty(t, store.fees)
}

func TestInitializeDefaultFeeRollsBackTeacherOnFailure(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.seed("e1", "t1", "s1", "15")
	before := store.snapshot()
	store.failOn["Create"] = errors.New("disk full")

	_, err := svc.InitializeDefaultFeeForTeacher(context.Background(), "t1", 20, models.InitializationOptions{OverwriteExisting: true})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrStore.Code))
	assert.Equal(t, before, store.snapshot())
	_, stored := store.fees["t1"]
	assert.False(t, stored)
}

func TestInitializeDefaultFeeForAllTeachersResolvesUniverse(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addTeacher("t1", "Rina")
	store.addStudent("s1", "Ana", "t1")
	store.addStudent("s2", "Budi", "t2")
	store.addStudent("s3", "Citra", "t2")
	store.seed("e1", "t3", "s9", "4")

	res, err := svc.InitializeDefaultFeeForAllTeachers(context.Background(), 25, models.InitializationOptions{OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, []string{"t1", "t2", "t3"}, res.TeacherIDs)
	assert.Equal(t, 3, res.TotalInserted)
	assert.Equal(t, 1, res.TotalDeleted)
	for _, id := range res.TeacherIDs {
		assertAmount(t, "25", store.fees[id].PerStudentFee)
	}
	assert.Equal(t, 1, store.calls["BulkUpsert"])
	assert.Zero(t, store.calls["Upsert"])
}

func TestInitializeDefaultFeeForAllTeachersStopsAtFirstFailure(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.addStudent("s2", "Budi", "t2")
	store.addStudent("s3", "Citra", "t3")
	store.failOn["Create:t2"] = errors.New("constraint violation")

	_, err := svc.InitializeDefaultFeeForAllTeachers(context.Background(), 10, models.InitializationOptions{})
	require.Error(t, err)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrStore.Code))

	assert.Len(t, store.byStatus("t1", models.EntryStatusPending), 1)
	assert.Empty(t, store.byStatus("t2", models.EntryStatusPending))
	assert.Empty(t, store.byStatus("t3", models.EntryStatusPending))
}

func TestInitializeDefaultFeeForAllTeachersWithNoTeachers(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)

	res, err := svc.InitializeDefaultFeeForAllTeachers(context.Background(), 10, models.InitializationOptions{})
	require.NoError(t, err)
	require.NotNil(t, res.TeacherIDs)
	assert.Empty(t, res.TeacherIDs)
	assert.Zero(t, store.calls["BulkUpsert"])

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"teacher_ids":[]`)
}

func TestDefaultFeePayloadRequiresFee(t *testing.T) {
	svc, store, tx := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.seed("e1", "t1", "s1", "40")
	ctx := context.Background()

	_, err := svc.InitializeDefaultFee(ctx, "t1", dto.DefaultFeeRequest{OverwriteExisting: true})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	_, err = svc.InitializeDefaultFeeForAll(ctx, dto.DefaultFeeRequest{OverwriteExisting: true})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))
	_, err = svc.UpdateTeacherFee(ctx, "t1", dto.SetFeeRequest{})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	assert.Zero(t, tx.begun)
	assert.Empty(t, store.fees)
	pending := store.byStatus("t1", models.EntryStatusPending)
	require.Len(t, pending, 1)
	assertAmount(t, "40", pending[0].Amount)

	zero := 0.0
	res, err := svc.InitializeDefaultFee(ctx, "t1", dto.DefaultFeeRequest{PerStudentFee: &zero, OverwriteExisting: true})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Deleted)
	assert.True(t, store.fees["t1"].PerStudentFee.IsZero())

	fee := 15.0
	setting, err := svc.UpdateTeacherFee(ctx, "t1", dto.SetFeeRequest{PerStudentFee: &fee})
	require.NoError(t, err)
	assertAmount(t, "15", setting.PerStudentFee)
}

func TestAddAccountingChargeResolvesTeacherFromStudent(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")

	entry, err := svc.AddAccountingCharge(context.Background(), dto.ChargeRequest{StudentID: "s1", Amount: 30})
	require.NoError(t, err)
	assert.Equal(t, "t1", entry.TeacherID)
	assert.Equal(t, models.EntryStatusPending, entry.Status)
	assertAmount(t, "30", entry.Amount)
	assert.NotEmpty(t, entry.ID)
}

func TestAddAccountingChargeExplicitTeacher(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)

	entry, err := svc.AddAccountingCharge(context.Background(), dto.ChargeRequest{StudentID: "s1", TeacherID: "t5", Amount: 12})
	require.NoError(t, err)
	assert.Equal(t, "t5", entry.TeacherID)
	assert.Zero(t, store.calls["FindStudent"])
}

func TestAddAccountingChargeFailures(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("orphan", "Dewi", "")
	ctx := context.Background()

	_, err := svc.AddAccountingCharge(ctx, dto.ChargeRequest{StudentID: "s1", Amount: 0})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidAmount.Code))

	_, err = svc.AddAccountingCharge(ctx, dto.ChargeRequest{Amount: 10})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	_, err = svc.AddAccountingCharge(ctx, dto.ChargeRequest{StudentID: "missing", Amount: 10})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	_, err = svc.AddAccountingCharge(ctx, dto.ChargeRequest{StudentID: "orphan", Amount: 10})
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	assert.Empty(t, store.entries)
}

func TestChargeStudentAtDefaultFee(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.addStudent("s1", "Ana", "t1")
	store.addStudent("s2", "Budi", "t2")
	store.addStudent("s3", "Citra", "t3")
	store.fees["t1"] = models.TeacherFeeSetting{TeacherID: "t1", PerStudentFee: dec("25")}
	store.fees["t2"] = models.TeacherFeeSetting{TeacherID: "t2", PerStudentFee: decimal.Zero}
	ctx := context.Background()

	entry, err := svc.ChargeStudentAtDefaultFee(ctx, "s1")
	require.NoError(t, err)
	require.NotNil(t, entry)
	assertAmount(t, "25", entry.Amount)

	entry, err = svc.ChargeStudentAtDefaultFee(ctx, "s2")
	require.NoError(t, err)
	assert.Nil(t, entry, "zero fee charges nothing")

	entry, err = svc.ChargeStudentAtDefaultFee(ctx, "s3")
	require.NoError(t, err)
	assert.Nil(t, entry, "no fee configured")

	_, err = svc.ChargeStudentAtDefaultFee(ctx, "nobody")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	assert.Len(t, store.entries, 1)
}

func TestTeacherFeeAccessors(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	ctx := context.Background()

	_, err := svc.GetTeacherFee(ctx, "t1")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrNotFound.Code))

	setting, err := svc.SetTeacherFee(ctx, "t1", 17.5)
	require.NoError(t, err)
	assertAmount(t, "17.5", setting.PerStudentFee)

	got, err := svc.GetTeacherFee(ctx, "t1")
	require.NoError(t, err)
	assertAmount(t, "17.5", got.PerStudentFee)
	assert.Len(t, store.byStatus("t1", models.EntryStatusPending), 1, "entries untouched")

	_, err = svc.SetTeacherFee(ctx, "t1", -3)
	assert.True(t, appErrors.IsCode(err, appErrors.ErrInvalidFee.Code))
}

func TestListTeacherEntries(t *testing.T) {
	svc, store, _ := newLedgerFixture(t)
	store.seed("e1", "t1", "s1", "10")
	store.seed("e2", "t1", "s2", "5")
	_, err := svc.ApplyTeacherPayment(context.Background(), "t1", 15)
	require.NoError(t, err)
	store.seed("e3", "t1", "s1", "7")

	all, err := svc.ListTeacherEntries(context.Background(), "t1", "")
	require.NoError(t, err)
	assert.Len(t, all, 3)

	paid, err := svc.ListTeacherEntries(context.Background(), "t1", "PAID")
	require.NoError(t, err)
	assert.Len(t, paid, 2)

	_, err = svc.ListTeacherEntries(context.Background(), "t1", "void")
	assert.True(t, appErrors.IsCode(err, appErrors.ErrValidation.Code))

	none, err := svc.ListTeacherEntries(context.Background(), "t0", "pending")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)
}

func TestLedgerMutationsInvalidateReportCache(t *testing.T) {
	store := newMemoryLedger()
	cacheRepo := newMemoryCache()
	cache := NewCacheService(cacheRepo, nil, 0, nil, true)
	svc := NewLedgerService(store, store, store, store, &memoryTx{ledger: store}, cache, nil, nil, nil)
	ctx := context.Background()

	require.NoError(t, cacheRepo.Set(ctx, statsCacheKey(models.DateRange{}), []string{}, 0))
	require.NoError(t, cacheRepo.Set(ctx, detailsCacheKey("t1"), map[string]string{}, 0))
	require.NoError(t, cacheRepo.Set(ctx, detailsCacheKey("t2"), map[string]string{}, 0))
	store.seed("e1", "t1", "s1", "10")

	_, err := svc.ApplyTeacherPayment(ctx, "t1", 5)
	require.NoError(t, err)

	assert.False(t, cacheRepo.has(statsCacheKey(models.DateRange{})))
	assert.False(t, cacheRepo.has(detailsCacheKey("t1")))
	assert.True(t, cacheRepo.has(detailsCacheKey("t2")))
}

func TestTeacherLocksReleaseEntries(t *testing.T) {
	locks := newTeacherLocks()
	unlock := locks.lock("t1")
	assert.Len(t, locks.locks, 1)
	unlock()
	assert.Empty(t, locks.locks)
}
