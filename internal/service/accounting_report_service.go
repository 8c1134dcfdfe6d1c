package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/noah-isme/tutor-ledger-api/internal/dto"
	"github.com/noah-isme/tutor-ledger-api/internal/models"
	appErrors "github.com/noah-isme/tutor-ledger-api/pkg/errors"
	"github.com/noah-isme/tutor-ledger-api/pkg/export"
)

type reportEntryReader interface {
	PendingTotalsByTeacher(ctx context.Context, period models.DateRange) ([]models.PendingAggregate, error)
	PendingTotalsByStudent(ctx context.Context, teacherID string) ([]models.PendingAggregate, error)
}

type reportFeeReader interface {
	Get(ctx context.Context, teacherID string) (*models.TeacherFeeSetting, error)
}

type reportStudentReader interface {
	CountByTeacher(ctx context.Context) ([]models.StudentCount, error)
	NamesByIDs(ctx context.Context, ids []string) (map[string]string, error)
}

type reportTeacherDirectory interface {
	TeacherDirectory
	Names(ctx context.Context, ids []string) (map[string]string, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title string) ([]byte, error)
}

// AccountingReportConfig tunes report caching.
type AccountingReportConfig struct {
	CacheTTL time.Duration
}

// ExportFile is a rendered report ready for download.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}

// AccountingReportService derives read-only views of the ledger.
type AccountingReportService struct {
	entries   reportEntryReader
	fees      reportFeeReader
	students  reportStudentReader
	directory reportTeacherDirectory
	cache     *CacheService
	csv       csvRenderer
	pdf       pdfRenderer
	logger    *zap.Logger
	cfg       AccountingReportConfig
}

// NewAccountingReportService constructs the report service. Nil renderers
// default to the stock CSV and PDF exporters.
func NewAccountingReportService(
	entries reportEntryReader,
	fees reportFeeReader,
	students reportStudentReader,
	directory reportTeacherDirectory,
	cache *CacheService,
	csv csvRenderer,
	pdf pdfRenderer,
	cfg AccountingReportConfig,
	logger *zap.Logger,
) *AccountingReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &AccountingReportService{
		entries:   entries,
		fees:      fees,
		students:  students,
		directory: directory,
		cache:     cache,
		csv:       csv,
		pdf:       pdf,
		logger:    logger,
		cfg:       cfg,
	}
}

// ParseDateRange turns the raw from/to query into an inclusive range. Days are
// taken in UTC and to is moved to the last instant of its day.
func ParseDateRange(filter dto.AccountingStatsFilter) (models.DateRange, error) {
	var period models.DateRange
	if raw := strings.TrimSpace(filter.From); raw != "" {
		from, dateOnly, err := parseDay(raw)
		if err != nil {
			return period, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "from must be YYYY-MM-DD or RFC3339")
		}
		if dateOnly {
			from = startOfDay(from)
		}
		period.From = &from
	}
	if raw := strings.TrimSpace(filter.To); raw != "" {
		to, _, err := parseDay(raw)
		if err != nil {
			return period, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "to must be YYYY-MM-DD or RFC3339")
		}
		to = startOfDay(to).Add(24*time.Hour - time.Nanosecond)
		period.To = &to
	}
	if period.From != nil && period.To != nil && period.To.Before(*period.From) {
		return period, appErrors.Clone(appErrors.ErrValidation, "to must not be before from")
	}
	return period, nil
}

func parseDay(raw string) (time.Time, bool, error) {
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t.UTC(), true, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, false, err
	}
	return t.UTC(), false, nil
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ListTeacherAccountingStats lists every teacher with roster size, pending total
// and pending entry count. The boolean reports a cache hit.
func (s *AccountingReportService) ListTeacherAccountingStats(ctx context.Context, period models.DateRange) ([]models.TeacherAccountingStats, bool, error) {
	key := statsCacheKey(period)
	var cached []models.TeacherAccountingStats
	if hit := s.tryCache(ctx, key, &cached); hit {
		return cached, true, nil
	}

	teacherIDs, err := s.directory.ListTeacherIDs(ctx)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to resolve teachers")
	}
	names, err := s.directory.Names(ctx, teacherIDs)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to load teacher names")
	}
	counts, err := s.students.CountByTeacher(ctx)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to count students")
	}
	totals, err := s.entries.PendingTotalsByTeacher(ctx, period)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to aggregate pending entries")
	}

	studentsByTeacher := make(map[string]int, len(counts))
	for _, row := range counts {
		studentsByTeacher[row.TeacherID] = row.Count
	}
	totalsByTeacher := make(map[string]models.PendingAggregate, len(totals))
	for _, row := range totals {
		totalsByTeacher[row.TeacherID] = row
	}

	stats := make([]models.TeacherAccountingStats, 0, len(teacherIDs))
	for _, id := range teacherIDs {
		name := names[id]
		if name == "" {
			name = id
		}
		agg := totalsByTeacher[id]
		stats = append(stats, models.TeacherAccountingStats{
			TeacherID:      id,
			TeacherName:    name,
			StudentsCount:  studentsByTeacher[id],
			TotalDue:       agg.Total,
			PendingEntries: agg.Count,
		})
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if stats[i].TeacherName != stats[j].TeacherName {
			return stats[i].TeacherName < stats[j].TeacherName
		}
		return stats[i].TeacherID < stats[j].TeacherID
	})

	s.persistCache(ctx, key, stats)
	return stats, false, nil
}

// GetTeacherAccountingDetails returns the open balance of one teacher broken down
// by student. Students without open debt are left out of the list, the count and
// the total.
func (s *AccountingReportService) GetTeacherAccountingDetails(ctx context.Context, teacherID string) (*models.TeacherAccountingDetails, bool, error) {
	if err := requireID(teacherID, "teacher_id"); err != nil {
		return nil, false, err
	}
	key := detailsCacheKey(teacherID)
	var cached models.TeacherAccountingDetails
	if hit := s.tryCache(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	teacher, err := s.directory.Lookup(ctx, teacherID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, appErrors.Clone(appErrors.ErrNotFound, "teacher not found")
		}
		return nil, false, appErrors.Store(err, "failed to load teacher")
	}

	var perStudentFee *decimal.Decimal
	setting, err := s.fees.Get(ctx, teacherID)
	switch {
	case err == nil:
		fee := setting.PerStudentFee
		perStudentFee = &fee
	case !errors.Is(err, sql.ErrNoRows):
		return nil, false, appErrors.Store(err, "failed to load default fee")
	}

	rows, err := s.entries.PendingTotalsByStudent(ctx, teacherID)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to aggregate pending entries")
	}

	owing := make([]models.PendingAggregate, 0, len(rows))
	studentIDs := make([]string, 0, len(rows))
	for _, row := range rows {
		if !row.Total.IsPositive() || row.Count <= 0 {
			continue
		}
		owing = append(owing, row)
		studentIDs = append(studentIDs, row.StudentID)
	}
	names, err := s.students.NamesByIDs(ctx, studentIDs)
	if err != nil {
		return nil, false, appErrors.Store(err, "failed to load student names")
	}

	details := &models.TeacherAccountingDetails{
		TeacherID:     teacher.ID,
		TeacherName:   teacher.Name,
		TotalDue:      decimal.Zero,
		PerStudentFee: perStudentFee,
		Students:      make([]models.StudentPendingBalance, 0, len(owing)),
	}
	for _, row := range owing {
		name := names[row.StudentID]
		if name == "" {
			name = row.StudentID
		}
		details.Students = append(details.Students, models.StudentPendingBalance{
			StudentID:      row.StudentID,
			StudentName:    name,
			PendingAmount:  row.Total,
			PendingEntries: row.Count,
		})
		details.TotalDue = details.TotalDue.Add(row.Total)
	}
	details.StudentsCount = len(details.Students)

	s.persistCache(ctx, key, details)
	return details, false, nil
}

// ExportTeacherAccountingStats renders the stats overview as CSV or PDF.
func (s *AccountingReportService) ExportTeacherAccountingStats(ctx context.Context, period models.DateRange, format export.Format) (*ExportFile, error) {
	stats, _, err := s.ListTeacherAccountingStats(ctx, period)
	if err != nil {
		return nil, err
	}

	dataset := statsDataset(stats)
	var body []byte
	switch format {
	case export.FormatPDF:
		body, err = s.pdf.Render(dataset, statsTitle(period))
	default:
		format = export.FormatCSV
		body, err = s.csv.Render(dataset)
	}
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}

	return &ExportFile{
		Filename:    fmt.Sprintf("teacher-accounting-%s.%s", time.Now().UTC().Format("20060102"), format),
		ContentType: format.ContentType(),
		Body:        body,
	}, nil
}

var statsHeaders = []string{"teacher_id", "teacher_name", "students_count", "pending_entries", "total_due"}

func statsDataset(stats []models.TeacherAccountingStats) export.Dataset {
	rows := make([]map[string]string, 0, len(stats))
	total := decimal.Zero
	entries := 0
	students := 0
	for _, row := range stats {
		rows = append(rows, map[string]string{
			"teacher_id":      row.TeacherID,
			"teacher_name":    row.TeacherName,
			"students_count":  strconv.Itoa(row.StudentsCount),
			"pending_entries": strconv.Itoa(row.PendingEntries),
			"total_due":       row.TotalDue.StringFixed(2),
		})
		total = total.Add(row.TotalDue)
		entries += row.PendingEntries
		students += row.StudentsCount
	}
	return export.Dataset{
		Headers: statsHeaders,
		Rows:    rows,
		Footer: map[string]string{
			"teacher_name":    "TOTAL",
			"students_count":  strconv.Itoa(students),
			"pending_entries": strconv.Itoa(entries),
			"total_due":       total.StringFixed(2),
		},
	}
}

func statsTitle(period models.DateRange) string {
	title := "Teacher Accounting"
	switch {
	case period.From != nil && period.To != nil:
		title += fmt.Sprintf(" %s to %s", period.From.Format("2006-01-02"), period.To.Format("2006-01-02"))
	case period.From != nil:
		title += " from " + period.From.Format("2006-01-02")
	case period.To != nil:
		title += " until " + period.To.Format("2006-01-02")
	}
	return title
}

func (s *AccountingReportService) tryCache(ctx context.Context, key string, dest interface{}) bool {
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Warn("accounting cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *AccountingReportService) persistCache(ctx context.Context, key string, value interface{}) {
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("accounting cache write failed", zap.String("key", key), zap.Error(err))
	}
}
