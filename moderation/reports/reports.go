// Report ledger: per-content collection of reports from distinct
// reporters, aggregated to a single content-level review status.
//
// A content leaves the pending queue only when every report on it has
// been reviewed; one outstanding report keeps the whole content queued.
package reports

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/store"
)

const (
	ReasonSpam       = "spam"
	ReasonOffensive  = "offensive"
	ReasonHarassment = "harassment"
	ReasonSpoiler    = "spoiler"
	ReasonNSFW       = "nsfw"
	ReasonOffTopic   = "off_topic"
	ReasonOther      = "other"
)

var validReasons = map[string]bool{
	ReasonSpam:       true,
	ReasonOffensive:  true,
	ReasonHarassment: true,
	ReasonSpoiler:    true,
	ReasonNSFW:       true,
	ReasonOffTopic:   true,
	ReasonOther:      true,
}

func ValidReason(reason string) bool {
	return validReasons[reason]
}

var (
	ErrAlreadyReported   = errors.New("content already reported by this user")
	ErrSelfReport        = errors.New("users cannot report their own content")
	ErrContentDeleted    = errors.New("content has been deleted")
	ErrReportNotFound    = errors.New("no report by this user on this content")
	ErrInvalidReason     = errors.New("invalid report reason")
	ErrInvalidResolution = errors.New("resolution must be resolved or dismissed")
)

type Ledger struct {
	Contents store.ContentStore
	Logger   *slog.Logger
}

func NewLedger(contents store.ContentStore, logger *slog.Logger) *Ledger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ledger{
		Contents: contents,
		Logger:   logger,
	}
}

// File records a new report against a content. At most one pending report
// per (content, reporter) pair; a reporter may file again once their
// earlier report has been reviewed.
func (l *Ledger) File(ctx context.Context, contentID, reporterID uint, reason, notes string) (*models.Report, error) {
	if !ValidReason(reason) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReason, reason)
	}
	content, err := l.Contents.GetContent(ctx, contentID)
	if err != nil {
		return nil, err
	}
	if content.Deleted {
		return nil, ErrContentDeleted
	}
	if content.AuthorID == reporterID {
		return nil, ErrSelfReport
	}
	prev, err := l.Contents.LatestReportBy(ctx, contentID, reporterID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}
	if prev != nil && prev.Status == models.ReportStatusPending {
		return nil, ErrAlreadyReported
	}

	now := time.Now().UTC()
	report := &models.Report{
		ContentID:  contentID,
		ReporterID: reporterID,
		Reason:     reason,
		Notes:      notes,
		Status:     models.ReportStatusPending,
		CreatedAt:  now,
	}
	if err := l.Contents.CreateReport(ctx, report); err != nil {
		return nil, err
	}
	if _, err := l.Contents.AddReportCount(ctx, contentID, 1); err != nil {
		return nil, err
	}
	if err := l.Contents.SetReportStatus(ctx, contentID, models.ReportStatusPending, &now); err != nil {
		return nil, err
	}
	l.Logger.Info("report filed", "content", contentID, "reporter", reporterID, "reason", reason)
	return report, nil
}

// Resolve reviews one reporter's report and recomputes the content-level
// status. Returns the updated report and the content's new status.
func (l *Ledger) Resolve(ctx context.Context, contentID, reporterID uint, resolution, reviewer, notes string) (*models.Report, string, error) {
	if resolution != models.ReportStatusResolved && resolution != models.ReportStatusDismissed {
		return nil, "", fmt.Errorf("%w: %q", ErrInvalidResolution, resolution)
	}
	report, err := l.Contents.LatestReportBy(ctx, contentID, reporterID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", ErrReportNotFound
	}
	if err != nil {
		return nil, "", err
	}

	now := time.Now().UTC()
	report.Status = resolution
	report.ReviewedBy = reviewer
	report.ReviewedAt = &now
	if notes != "" {
		report.Notes = notes
	}
	if err := l.Contents.UpdateReport(ctx, report); err != nil {
		return nil, "", err
	}

	newStatus, err := l.recomputeStatus(ctx, contentID, resolution)
	if err != nil {
		return nil, "", err
	}
	l.Logger.Info("report reviewed", "content", contentID, "reporter", reporterID,
		"resolution", resolution, "contentStatus", newStatus)
	return report, newStatus, nil
}

// Queue lists contents awaiting review, most reports first.
func (l *Ledger) Queue(ctx context.Context, limit int) ([]models.Content, error) {
	return l.Contents.PendingContents(ctx, limit)
}

// All-or-nothing aggregation: the content resolves (to the last reviewed
// report's resolution) only when no report on it remains pending.
func (l *Ledger) recomputeStatus(ctx context.Context, contentID uint, lastResolution string) (string, error) {
	all, err := l.Contents.ListReports(ctx, contentID)
	if err != nil {
		return "", err
	}
	for _, r := range all {
		if r.Status == models.ReportStatusPending {
			return models.ReportStatusPending, nil
		}
	}
	if err := l.Contents.SetReportStatus(ctx, contentID, lastResolution, nil); err != nil {
		return "", err
	}
	return lastResolution, nil
}
