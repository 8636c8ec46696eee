// User moderation state transitions.
//
// Transitions are computed as pure deltas against a current state row and
// applied by the store layer (atomically for counters), so the same logic
// drives both the in-memory store and the SQL store. The engine fans one
// delta out across every platform account of an identity.
package state

import (
	"errors"
	"fmt"
	"time"

	"github.com/commentum/commentum/models"
)

// How long an automatic mute (warning-threshold escalation) lasts.
const AutoMuteDuration = 24 * time.Hour

var ErrNoWarnings = errors.New("no warnings to remove")

// Returned when a manual action is re-applied to a state that already has
// it. Carries who applied the existing state and when, so the caller can
// report it instead of re-applying side effects.
type AlreadyAppliedError struct {
	Action string
	By     string
	At     *time.Time
}

func (e *AlreadyAppliedError) Error() string {
	if e.At != nil {
		return fmt.Sprintf("already %s by %s at %s", e.Action, e.By, e.At.UTC().Format(time.RFC3339))
	}
	return fmt.Sprintf("already %s", e.Action)
}

// A state change to be applied to every platform account of one identity.
// Zero-value fields leave the corresponding column untouched; AddWarnings
// is applied as an atomic column increment, floored at zero.
type Delta struct {
	AddWarnings     int
	SetMuteUntil    *time.Time
	ClearMute       bool
	SetBanned       *bool
	SetShadowBanned *bool
	By              string
	At              time.Time
}

func boolp(v bool) *bool { return &v }

func Warn(by string, at time.Time) Delta {
	return Delta{AddWarnings: 1, By: by, At: at}
}

func Unwarn(cur *models.ModerationState, by string, at time.Time) (Delta, error) {
	if cur.WarningCount <= 0 {
		return Delta{}, ErrNoWarnings
	}
	return Delta{AddWarnings: -1, By: by, At: at}, nil
}

func Mute(by string, duration time.Duration, at time.Time) Delta {
	until := at.Add(duration)
	return Delta{SetMuteUntil: &until, By: by, At: at}
}

func Unmute(by string, at time.Time) Delta {
	return Delta{ClearMute: true, By: by, At: at}
}

// Ban and shadow ban are mutually exclusive at set time: setting one
// always clears the other. Re-requesting the state already in effect is a
// conflict carrying the original actor and timestamp.
func Ban(cur *models.ModerationState, by string, shadow bool, at time.Time) (Delta, error) {
	if shadow && cur.ShadowBanned {
		return Delta{}, &AlreadyAppliedError{Action: "shadow-banned", By: cur.ShadowBannedBy, At: cur.ShadowBannedAt}
	}
	if !shadow && cur.Banned {
		return Delta{}, &AlreadyAppliedError{Action: "banned", By: cur.BannedBy, At: cur.BannedAt}
	}
	return Delta{
		SetBanned:       boolp(!shadow),
		SetShadowBanned: boolp(shadow),
		By:              by,
		At:              at,
	}, nil
}

// Unban lifts everything: ban, shadow ban, and any active mute.
func Unban(by string, at time.Time) Delta {
	return Delta{
		SetBanned:       boolp(false),
		SetShadowBanned: boolp(false),
		ClearMute:       true,
		By:              by,
		At:              at,
	}
}

// Unshadowban clears only the shadow-ban bit.
func Unshadowban(by string, at time.Time) Delta {
	return Delta{SetShadowBanned: boolp(false), By: by, At: at}
}

// Apply computes the next state row. Store implementations that can do
// atomic column updates (SQL) should use those for WarningCount instead;
// this is the reference semantics and the in-memory path.
func Apply(cur models.ModerationState, d Delta) models.ModerationState {
	next := cur
	next.WarningCount += d.AddWarnings
	if next.WarningCount < 0 {
		next.WarningCount = 0
	}
	if d.ClearMute {
		next.MuteUntil = nil
		next.MutedBy = ""
	}
	if d.SetMuteUntil != nil {
		until := *d.SetMuteUntil
		next.MuteUntil = &until
		next.MutedBy = d.By
	}
	if d.SetBanned != nil {
		next.Banned = *d.SetBanned
		if *d.SetBanned {
			at := d.At
			next.BannedAt = &at
			next.BannedBy = d.By
		} else {
			next.BannedAt = nil
			next.BannedBy = ""
		}
	}
	if d.SetShadowBanned != nil {
		next.ShadowBanned = *d.SetShadowBanned
		if *d.SetShadowBanned {
			at := d.At
			next.ShadowBannedAt = &at
			next.ShadowBannedBy = d.By
		} else {
			next.ShadowBannedAt = nil
			next.ShadowBannedBy = ""
		}
	}
	next.UpdatedAt = d.At
	return next
}
