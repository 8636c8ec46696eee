package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/state"
)

// MemStore is an in-process implementation of all three store interfaces,
// used by tests and by the daemon when no database is configured.
//
// FailState can be primed by tests to make ApplyState fail for specific
// accounts, to exercise cross-platform partial failure handling.
type MemStore struct {
	mu         sync.Mutex
	identities map[uint]models.Identity
	accounts   map[uint]models.PlatformAccount
	states     map[uint]models.ModerationState
	contents   map[uint]models.Content
	reports    map[uint]models.Report
	audit      []models.AuditRecord

	nextIdentityID uint
	nextAccountID  uint
	nextContentID  uint
	nextReportID   uint

	FailState map[uint]error
}

var _ AccountStore = (*MemStore)(nil)
var _ ContentStore = (*MemStore)(nil)
var _ AuditStore = (*MemStore)(nil)

func NewMemStore() *MemStore {
	return &MemStore{
		identities:     make(map[uint]models.Identity),
		accounts:       make(map[uint]models.PlatformAccount),
		states:         make(map[uint]models.ModerationState),
		contents:       make(map[uint]models.Content),
		reports:        make(map[uint]models.Report),
		FailState:      make(map[uint]error),
		nextIdentityID: 1,
		nextAccountID:  1,
		nextContentID:  1,
		nextReportID:   1,
	}
}

func (s *MemStore) CreateIdentity(ctx context.Context, ident *models.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ident.ID == 0 {
		ident.ID = s.nextIdentityID
		s.nextIdentityID++
	}
	if ident.CreatedAt.IsZero() {
		ident.CreatedAt = time.Now()
	}
	s.identities[ident.ID] = *ident
	return nil
}

func (s *MemStore) GetIdentity(ctx context.Context, id uint) (*models.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ident, ok := s.identities[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &ident, nil
}

func (s *MemStore) CreateAccount(ctx context.Context, acct *models.PlatformAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if acct.ID == 0 {
		acct.ID = s.nextAccountID
		s.nextAccountID++
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	s.accounts[acct.ID] = *acct
	return nil
}

func (s *MemStore) LookupAccount(ctx context.Context, clientType, externalUserID string) (*models.PlatformAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, acct := range s.accounts {
		if acct.ClientType == clientType && acct.ExternalUserID == externalUserID {
			out := acct
			return &out, nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemStore) ListAccounts(ctx context.Context, identityID uint) ([]models.PlatformAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.PlatformAccount
	for _, acct := range s.accounts {
		if acct.IdentityID == identityID {
			out = append(out, acct)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) GetState(ctx context.Context, accountID uint) (*models.ModerationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.states[accountID]
	if !ok {
		st = models.ModerationState{AccountID: accountID}
	}
	return &st, nil
}

func (s *MemStore) ApplyState(ctx context.Context, accountID uint, delta state.Delta) (*models.ModerationState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.FailState[accountID]; ok {
		return nil, err
	}
	cur, ok := s.states[accountID]
	if !ok {
		cur = models.ModerationState{AccountID: accountID}
	}
	next := state.Apply(cur, delta)
	s.states[accountID] = next
	return &next, nil
}

func (s *MemStore) CreateContent(ctx context.Context, content *models.Content) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if content.ID == 0 {
		content.ID = s.nextContentID
		s.nextContentID++
	}
	if content.CreatedAt.IsZero() {
		content.CreatedAt = time.Now()
	}
	if content.ReportStatus == "" {
		content.ReportStatus = models.ReportStatusNone
	}
	s.contents[content.ID] = *content
	return nil
}

func (s *MemStore) GetContent(ctx context.Context, id uint) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[id]
	if !ok {
		return nil, ErrNotFound
	}
	return &content, nil
}

func (s *MemStore) ApplyContent(ctx context.Context, id uint, delta ContentDelta) (*models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[id]
	if !ok {
		return nil, ErrNotFound
	}
	at := delta.At
	if delta.SetPinned != nil {
		content.Pinned = *delta.SetPinned
		if *delta.SetPinned {
			content.PinnedAt = &at
			content.PinnedBy = delta.By
		} else {
			content.PinnedAt = nil
			content.PinnedBy = ""
		}
	}
	if delta.SetLocked != nil {
		content.Locked = *delta.SetLocked
		if *delta.SetLocked {
			content.LockedAt = &at
			content.LockedBy = delta.By
		} else {
			content.LockedAt = nil
			content.LockedBy = ""
		}
	}
	if delta.SetDeleted != nil {
		content.Deleted = *delta.SetDeleted
		if *delta.SetDeleted {
			content.DeletedAt = &at
			content.DeletedBy = delta.By
		} else {
			content.DeletedAt = nil
			content.DeletedBy = ""
		}
	}
	s.contents[id] = content
	return &content, nil
}

func (s *MemStore) AddReportCount(ctx context.Context, id uint, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[id]
	if !ok {
		return 0, ErrNotFound
	}
	content.ReportCount += delta
	if content.ReportCount < 0 {
		content.ReportCount = 0
	}
	s.contents[id] = content
	return content.ReportCount, nil
}

func (s *MemStore) SetReportStatus(ctx context.Context, id uint, status string, lastReportedAt *time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	content, ok := s.contents[id]
	if !ok {
		return ErrNotFound
	}
	content.ReportStatus = status
	if lastReportedAt != nil {
		content.LastReportedAt = lastReportedAt
	}
	s.contents[id] = content
	return nil
}

func (s *MemStore) CreateReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if report.ID == 0 {
		report.ID = s.nextReportID
		s.nextReportID++
	}
	if report.CreatedAt.IsZero() {
		report.CreatedAt = time.Now()
	}
	s.reports[report.ID] = *report
	return nil
}

func (s *MemStore) ListReports(ctx context.Context, contentID uint) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Report
	for _, r := range s.reports {
		if r.ContentID == contentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *MemStore) LatestReportBy(ctx context.Context, contentID, reporterID uint) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var latest *models.Report
	for _, r := range s.reports {
		if r.ContentID == contentID && r.ReporterID == reporterID {
			r := r
			if latest == nil || r.ID > latest.ID {
				latest = &r
			}
		}
	}
	if latest == nil {
		return nil, ErrNotFound
	}
	return latest, nil
}

func (s *MemStore) UpdateReport(ctx context.Context, report *models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reports[report.ID]; !ok {
		return ErrNotFound
	}
	s.reports[report.ID] = *report
	return nil
}

func (s *MemStore) PendingContents(ctx context.Context, limit int) ([]models.Content, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Content
	for _, c := range s.contents {
		if c.ReportStatus == models.ReportStatusPending {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ReportCount != out[j].ReportCount {
			return out[i].ReportCount > out[j].ReportCount
		}
		ti, tj := time.Time{}, time.Time{}
		if out[i].LastReportedAt != nil {
			ti = *out[i].LastReportedAt
		}
		if out[j].LastReportedAt != nil {
			tj = *out[j].LastReportedAt
		}
		return ti.After(tj)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemStore) CreateAuditRecord(ctx context.Context, rec *models.AuditRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec.ID = uint(len(s.audit) + 1)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now()
	}
	s.audit = append(s.audit, *rec)
	return nil
}

func (s *MemStore) ListAuditRecords(ctx context.Context, limit int) ([]models.AuditRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.AuditRecord, len(s.audit))
	copy(out, s.audit)
	// newest first
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
