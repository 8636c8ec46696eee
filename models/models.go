package models

import (
	"time"

	"gorm.io/gorm"
)

// One logical person. A single identity may have accounts on several
// chat platforms; moderation state is tracked per platform account but
// must be kept in lock-step across all of them.
type Identity struct {
	gorm.Model
	Handle string `gorm:"uniqueIndex"`
}

// A single external-platform account row belonging to an Identity.
type PlatformAccount struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	IdentityID     uint   `gorm:"index"`
	ClientType     string `gorm:"index:idx_platform_account,unique"`
	ExternalUserID string `gorm:"index:idx_platform_account,unique"`
}

// Per-account moderation state row. All rows for one identity are
// updated together by the cross-platform applier.
type ModerationState struct {
	ID             uint `gorm:"primarykey"`
	UpdatedAt      time.Time
	AccountID      uint `gorm:"uniqueIndex"`
	WarningCount   int
	MuteUntil      *time.Time
	MutedBy        string
	Banned         bool
	BannedAt       *time.Time
	BannedBy       string
	ShadowBanned   bool
	ShadowBannedAt *time.Time
	ShadowBannedBy string
}

// Whether the mute is currently in effect.
func (s *ModerationState) Muted(now time.Time) bool {
	return s.MuteUntil != nil && s.MuteUntil.After(now)
}

const (
	ReportStatusNone      = "none"
	ReportStatusPending   = "pending"
	ReportStatusResolved  = "resolved"
	ReportStatusDismissed = "dismissed"
)

// A comment. Deletion is always soft: the row is never destroyed, only
// flagged, with audit fields recording who and when.
type Content struct {
	ID             uint `gorm:"primarykey"`
	CreatedAt      time.Time
	AuthorID       uint `gorm:"index"`
	Body           string
	Deleted        bool
	DeletedAt      *time.Time
	DeletedBy      string
	Pinned         bool
	PinnedAt       *time.Time
	PinnedBy       string
	Locked         bool
	LockedAt       *time.Time
	LockedBy       string
	ReportStatus   string `gorm:"index;default:none"`
	ReportCount    int
	LastReportedAt *time.Time
}

type Report struct {
	ID         uint `gorm:"primarykey"`
	CreatedAt  time.Time
	ContentID  uint `gorm:"index"`
	ReporterID uint `gorm:"index"`
	Reason     string
	Notes      string
	Status     string `gorm:"index;default:pending"`
	ReviewedBy string
	ReviewedAt *time.Time
}

// Written for every successful mutating moderation command.
type AuditRecord struct {
	ID        uint `gorm:"primarykey"`
	CreatedAt time.Time
	Action    string `gorm:"index"`
	ActorID   string `gorm:"index"`
	TargetID  string `gorm:"index"`
	Reason    string
	Notes     string
}

type ConfigEntry struct {
	ID        uint `gorm:"primarykey"`
	UpdatedAt time.Time
	Key       string `gorm:"uniqueIndex;column:key"`
	Value     string
}
