package engine

import (
	"context"
	"log/slog"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/state"
	"github.com/commentum/commentum/moderation/store"
)

// Per-account result of a cross-platform state change.
type AccountOutcome struct {
	AccountID      uint
	ClientType     string
	ExternalUserID string
	State          *models.ModerationState
	Err            error
}

func (o AccountOutcome) Ref() string {
	return o.ClientType + ":" + o.ExternalUserID
}

type FanoutResult struct {
	Applied []AccountOutcome
	Failed  []AccountOutcome
}

func (r *FanoutResult) AppliedRefs() []string {
	out := make([]string, 0, len(r.Applied))
	for _, a := range r.Applied {
		out = append(out, a.Ref())
	}
	return out
}

func (r *FanoutResult) FailedRefs() []string {
	out := make([]string, 0, len(r.Failed))
	for _, a := range r.Failed {
		out = append(out, a.Ref())
	}
	return out
}

// Highest post-write warning count across the accounts that were
// updated. Past partial failures can leave account rows skewed; the
// maximum is what escalation decisions key off, so a lagging account
// never masks a threshold crossing.
func (r *FanoutResult) MaxWarningCount() int {
	max := 0
	for _, a := range r.Applied {
		if a.State != nil && a.State.WarningCount > max {
			max = a.State.WarningCount
		}
	}
	return max
}

// State of the first successfully updated account, used as the canonical
// post-write view for escalation checks.
func (r *FanoutResult) CanonicalState() *models.ModerationState {
	for _, a := range r.Applied {
		if a.State != nil {
			return a.State
		}
	}
	return nil
}

// CrossPlatformApplier applies one moderation state delta to every
// platform account of a logical user. Every account is attempted; a
// failure on one never short-circuits the rest. The caller inspects the
// result and must report partial failure rather than claim success.
type CrossPlatformApplier struct {
	Accounts store.AccountStore
	Logger   *slog.Logger
}

func NewCrossPlatformApplier(accounts store.AccountStore, logger *slog.Logger) *CrossPlatformApplier {
	if logger == nil {
		logger = slog.Default()
	}
	return &CrossPlatformApplier{
		Accounts: accounts,
		Logger:   logger,
	}
}

func (a *CrossPlatformApplier) Apply(ctx context.Context, accounts []models.PlatformAccount, delta state.Delta) *FanoutResult {
	res := &FanoutResult{}
	for _, acct := range accounts {
		st, err := a.Accounts.ApplyState(ctx, acct.ID, delta)
		outcome := AccountOutcome{
			AccountID:      acct.ID,
			ClientType:     acct.ClientType,
			ExternalUserID: acct.ExternalUserID,
			State:          st,
			Err:            err,
		}
		if err != nil {
			a.Logger.Error("state write failed for platform account",
				"account", outcome.Ref(), "err", err)
			res.Failed = append(res.Failed, outcome)
			continue
		}
		res.Applied = append(res.Applied, outcome)
	}
	return res
}
