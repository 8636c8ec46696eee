package store

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/state"
)

// GormStore implements all three store interfaces over sqlite or
// postgres.
type GormStore struct {
	DB *gorm.DB
}

var _ AccountStore = (*GormStore)(nil)
var _ ContentStore = (*GormStore)(nil)
var _ AuditStore = (*GormStore)(nil)

func NewGormStore(db *gorm.DB) (*GormStore, error) {
	if err := db.AutoMigrate(
		&models.Identity{},
		&models.PlatformAccount{},
		&models.ModerationState{},
		&models.Content{},
		&models.Report{},
		&models.AuditRecord{},
	); err != nil {
		return nil, err
	}
	return &GormStore{DB: db}, nil
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

func (s *GormStore) CreateIdentity(ctx context.Context, ident *models.Identity) error {
	return s.DB.WithContext(ctx).Create(ident).Error
}

func (s *GormStore) GetIdentity(ctx context.Context, id uint) (*models.Identity, error) {
	var ident models.Identity
	if err := s.DB.WithContext(ctx).First(&ident, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &ident, nil
}

func (s *GormStore) CreateAccount(ctx context.Context, acct *models.PlatformAccount) error {
	return s.DB.WithContext(ctx).Create(acct).Error
}

func (s *GormStore) LookupAccount(ctx context.Context, clientType, externalUserID string) (*models.PlatformAccount, error) {
	var acct models.PlatformAccount
	err := s.DB.WithContext(ctx).
		Where("client_type = ? AND external_user_id = ?", clientType, externalUserID).
		First(&acct).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &acct, nil
}

func (s *GormStore) ListAccounts(ctx context.Context, identityID uint) ([]models.PlatformAccount, error) {
	var accts []models.PlatformAccount
	err := s.DB.WithContext(ctx).
		Where("identity_id = ?", identityID).
		Order("id").
		Find(&accts).Error
	return accts, err
}

func (s *GormStore) GetState(ctx context.Context, accountID uint) (*models.ModerationState, error) {
	var st models.ModerationState
	err := s.DB.WithContext(ctx).Where("account_id = ?", accountID).First(&st).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &models.ModerationState{AccountID: accountID}, nil
	}
	if err != nil {
		return nil, err
	}
	return &st, nil
}

// ApplyState translates a delta into targeted column updates. The warning
// count update is a single SQL expression (floored at zero) so concurrent
// warns against the same account never lose increments.
func (s *GormStore) ApplyState(ctx context.Context, accountID uint, delta state.Delta) (*models.ModerationState, error) {
	db := s.DB.WithContext(ctx)

	// ensure the row exists before the column update
	err := db.Where(models.ModerationState{AccountID: accountID}).
		FirstOrCreate(&models.ModerationState{AccountID: accountID}).Error
	if err != nil {
		return nil, err
	}

	updates := map[string]any{"updated_at": delta.At}
	if delta.AddWarnings != 0 {
		updates["warning_count"] = gorm.Expr(
			"CASE WHEN warning_count + ? < 0 THEN 0 ELSE warning_count + ? END",
			delta.AddWarnings, delta.AddWarnings,
		)
	}
	if delta.ClearMute {
		updates["mute_until"] = nil
		updates["muted_by"] = ""
	}
	if delta.SetMuteUntil != nil {
		updates["mute_until"] = *delta.SetMuteUntil
		updates["muted_by"] = delta.By
	}
	if delta.SetBanned != nil {
		updates["banned"] = *delta.SetBanned
		if *delta.SetBanned {
			updates["banned_at"] = delta.At
			updates["banned_by"] = delta.By
		} else {
			updates["banned_at"] = nil
			updates["banned_by"] = ""
		}
	}
	if delta.SetShadowBanned != nil {
		updates["shadow_banned"] = *delta.SetShadowBanned
		if *delta.SetShadowBanned {
			updates["shadow_banned_at"] = delta.At
			updates["shadow_banned_by"] = delta.By
		} else {
			updates["shadow_banned_at"] = nil
			updates["shadow_banned_by"] = ""
		}
	}

	err = db.Model(&models.ModerationState{}).
		Where("account_id = ?", accountID).
		Updates(updates).Error
	if err != nil {
		return nil, err
	}
	return s.GetState(ctx, accountID)
}

func (s *GormStore) CreateContent(ctx context.Context, content *models.Content) error {
	if content.ReportStatus == "" {
		content.ReportStatus = models.ReportStatusNone
	}
	return s.DB.WithContext(ctx).Create(content).Error
}

func (s *GormStore) GetContent(ctx context.Context, id uint) (*models.Content, error) {
	var content models.Content
	if err := s.DB.WithContext(ctx).First(&content, id).Error; err != nil {
		return nil, notFound(err)
	}
	return &content, nil
}

func (s *GormStore) ApplyContent(ctx context.Context, id uint, delta ContentDelta) (*models.Content, error) {
	updates := map[string]any{}
	if delta.SetPinned != nil {
		updates["pinned"] = *delta.SetPinned
		if *delta.SetPinned {
			updates["pinned_at"] = delta.At
			updates["pinned_by"] = delta.By
		} else {
			updates["pinned_at"] = nil
			updates["pinned_by"] = ""
		}
	}
	if delta.SetLocked != nil {
		updates["locked"] = *delta.SetLocked
		if *delta.SetLocked {
			updates["locked_at"] = delta.At
			updates["locked_by"] = delta.By
		} else {
			updates["locked_at"] = nil
			updates["locked_by"] = ""
		}
	}
	if delta.SetDeleted != nil {
		updates["deleted"] = *delta.SetDeleted
		if *delta.SetDeleted {
			updates["deleted_at"] = delta.At
			updates["deleted_by"] = delta.By
		} else {
			updates["deleted_at"] = nil
			updates["deleted_by"] = ""
		}
	}
	if len(updates) > 0 {
		res := s.DB.WithContext(ctx).Model(&models.Content{}).
			Where("id = ?", id).
			Updates(updates)
		if res.Error != nil {
			return nil, res.Error
		}
		if res.RowsAffected == 0 {
			return nil, ErrNotFound
		}
	}
	return s.GetContent(ctx, id)
}

func (s *GormStore) AddReportCount(ctx context.Context, id uint, delta int) (int, error) {
	res := s.DB.WithContext(ctx).Model(&models.Content{}).
		Where("id = ?", id).
		UpdateColumn("report_count", gorm.Expr(
			"CASE WHEN report_count + ? < 0 THEN 0 ELSE report_count + ? END",
			delta, delta,
		))
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}
	content, err := s.GetContent(ctx, id)
	if err != nil {
		return 0, err
	}
	return content.ReportCount, nil
}

func (s *GormStore) SetReportStatus(ctx context.Context, id uint, status string, lastReportedAt *time.Time) error {
	updates := map[string]any{"report_status": status}
	if lastReportedAt != nil {
		updates["last_reported_at"] = *lastReportedAt
	}
	res := s.DB.WithContext(ctx).Model(&models.Content{}).
		Where("id = ?", id).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) CreateReport(ctx context.Context, report *models.Report) error {
	if report.Status == "" {
		report.Status = models.ReportStatusPending
	}
	return s.DB.WithContext(ctx).Create(report).Error
}

func (s *GormStore) ListReports(ctx context.Context, contentID uint) ([]models.Report, error) {
	var reports []models.Report
	err := s.DB.WithContext(ctx).
		Where("content_id = ?", contentID).
		Order("id").
		Find(&reports).Error
	return reports, err
}

func (s *GormStore) LatestReportBy(ctx context.Context, contentID, reporterID uint) (*models.Report, error) {
	var report models.Report
	err := s.DB.WithContext(ctx).
		Where("content_id = ? AND reporter_id = ?", contentID, reporterID).
		Order("id DESC").
		First(&report).Error
	if err != nil {
		return nil, notFound(err)
	}
	return &report, nil
}

func (s *GormStore) UpdateReport(ctx context.Context, report *models.Report) error {
	res := s.DB.WithContext(ctx).Model(&models.Report{}).
		Where("id = ?", report.ID).
		Updates(map[string]any{
			"status":      report.Status,
			"notes":       report.Notes,
			"reviewed_by": report.ReviewedBy,
			"reviewed_at": report.ReviewedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) PendingContents(ctx context.Context, limit int) ([]models.Content, error) {
	var contents []models.Content
	q := s.DB.WithContext(ctx).
		Where("report_status = ?", models.ReportStatusPending).
		Order("report_count DESC, last_reported_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&contents).Error
	return contents, err
}

func (s *GormStore) CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	return s.DB.WithContext(ctx).Create(rec).Error
}

func (s *GormStore) ListAuditRecords(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	var recs []models.AuditRecord
	q := s.DB.WithContext(ctx).Order("id DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&recs).Error
	return recs, err
}
