// Persistent storage interfaces for identities, platform accounts,
// moderation state, contents, reports, and the audit log.
//
// Counter mutations (warning counts, report counts) are expressed as
// store-level atomic increments so concurrent command invocations never
// lose updates; read-modify-write of counters is not part of this API.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/state"
)

var ErrNotFound = errors.New("record not found")

// Flag changes for a content row. Nil fields leave the column untouched.
// Applying a flag that is already set is harmless; idempotency conflicts
// are detected by the engine before the write.
type ContentDelta struct {
	SetPinned  *bool
	SetLocked  *bool
	SetDeleted *bool
	By         string
	At         time.Time
}

type AccountStore interface {
	CreateIdentity(ctx context.Context, ident *models.Identity) error
	GetIdentity(ctx context.Context, id uint) (*models.Identity, error)
	CreateAccount(ctx context.Context, acct *models.PlatformAccount) error
	// LookupAccount resolves one platform account row by its external
	// coordinates.
	LookupAccount(ctx context.Context, clientType, externalUserID string) (*models.PlatformAccount, error)
	// ListAccounts returns every platform account of a logical user.
	ListAccounts(ctx context.Context, identityID uint) ([]models.PlatformAccount, error)
	// GetState returns the moderation state row for an account. Accounts
	// with no row yet have clean (zero) state, not an error.
	GetState(ctx context.Context, accountID uint) (*models.ModerationState, error)
	// ApplyState applies one state delta to one account row and returns
	// the resulting row. The warning-count component is an atomic
	// store-side increment floored at zero.
	ApplyState(ctx context.Context, accountID uint, delta state.Delta) (*models.ModerationState, error)
}

type ContentStore interface {
	CreateContent(ctx context.Context, content *models.Content) error
	GetContent(ctx context.Context, id uint) (*models.Content, error)
	ApplyContent(ctx context.Context, id uint, delta ContentDelta) (*models.Content, error)
	// AddReportCount atomically adjusts the report counter, returning the
	// new value.
	AddReportCount(ctx context.Context, id uint, delta int) (int, error)
	SetReportStatus(ctx context.Context, id uint, status string, lastReportedAt *time.Time) error
	CreateReport(ctx context.Context, report *models.Report) error
	ListReports(ctx context.Context, contentID uint) ([]models.Report, error)
	// LatestReportBy returns the most recent report filed by one reporter
	// against one content, or ErrNotFound.
	LatestReportBy(ctx context.Context, contentID, reporterID uint) (*models.Report, error)
	UpdateReport(ctx context.Context, report *models.Report) error
	// PendingContents lists contents awaiting review: most reports first,
	// ties broken by most recent report.
	PendingContents(ctx context.Context, limit int) ([]models.Content, error)
}

type AuditStore interface {
	CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error
	ListAuditRecords(ctx context.Context, limit int) ([]models.AuditRecord, error)
}
