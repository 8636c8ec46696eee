package engine

import (
	"github.com/commentum/commentum/models"
)

// Structured result of one command. AppliedTo/Skipped name platform
// accounts as "clientType:externalUserId"; Skipped is only populated on
// cross-platform partial failure, so an operator can retry exactly the
// accounts that missed the write.
type Outcome struct {
	Success   bool                `json:"success"`
	Action    string              `json:"action"`
	Message   string              `json:"message"`
	AppliedTo []string            `json:"appliedTo,omitempty"`
	Skipped   []string            `json:"skipped,omitempty"`
	Notes     []string            `json:"notes,omitempty"`
	Audit     *models.AuditRecord `json:"audit,omitempty"`
	Queue     []models.Content    `json:"queue,omitempty"`
	Reports   []models.Report     `json:"reports,omitempty"`
}

func (o *Outcome) note(msg string) {
	o.Notes = append(o.Notes, msg)
}
