// Command engine: permission checks, state transitions, cross-platform
// fan-out, automatic escalation, audit, and notification for every
// moderation command.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/configstore"
	"github.com/commentum/commentum/moderation/countstore"
	"github.com/commentum/commentum/moderation/reports"
	"github.com/commentum/commentum/moderation/roles"
	"github.com/commentum/commentum/moderation/state"
	"github.com/commentum/commentum/moderation/store"
)

// Config keys read through the cached provider at evaluation time, so
// threshold changes take effect on the next command without a restart.
const (
	KeyWarnThreshold     = "escalation/warn_threshold"
	KeyMuteThreshold     = "escalation/mute_threshold"
	KeyBanThreshold      = "escalation/ban_threshold"
	KeyAutoBanDailyQuota = "escalation/auto_ban_daily_quota"
	KeyQueueLimit        = "review/default_queue_limit"
)

const (
	DefaultAutoBanDailyQuota = 50
	DefaultQueueLimit        = 25
)

// counter namespaces
const (
	counterAutoEscalation = "auto-escalation"
	counterModActions     = "mod-actions"
	counterReports        = "reports"
)

// actor recorded on automatic escalation writes
const systemActor = "system:auto-escalation"

type Engine struct {
	Logger   *slog.Logger
	Accounts store.AccountStore
	Contents store.ContentStore
	Audit    store.AuditStore
	Registry *roles.Registry
	Config   *configstore.Provider
	Counters countstore.CountStore
	Ledger   *reports.Ledger
	Applier  *CrossPlatformApplier
	Notifier Notifier

	// Per-command deadline. Zero means the caller's context rules.
	Timeout time.Duration
}

// actor with platform account resolved and role merged
type resolvedActor struct {
	Account  *models.PlatformAccount
	Identity uint
	Role     roles.Role
	Ref      string
}

// target user with every platform account and current state loaded
type resolvedTarget struct {
	Account  *models.PlatformAccount
	Identity uint
	Accounts []models.PlatformAccount
	Role     roles.Role
	// state of the account named in the command, read before any write
	State *models.ModerationState
	Ref   string
}

// ProcessCommand runs one validated command end to end. The returned
// outcome is non-nil whenever state was touched, even on error, so
// callers can report exactly which accounts were updated.
func (eng *Engine) ProcessCommand(ctx context.Context, cmd Command) (outcome *Outcome, err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			eng.Logger.Error("engine panic", "action", cmd.Action(), "panic", r)
			outcome = nil
			err = upstream(fmt.Errorf("internal failure processing %s", cmd.Action()))
		}
		code := "ok"
		if err != nil {
			code = string(classify(err).Code)
		}
		commandCount.WithLabelValues(cmd.Action(), code).Inc()
		commandDuration.WithLabelValues(cmd.Action()).Observe(time.Since(start).Seconds())
	}()

	if eng.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, eng.Timeout)
		defer cancel()
	}

	if verr := cmd.Validate(); verr != nil {
		return nil, invalidInput("%s", verr.Error())
	}

	switch c := cmd.(type) {
	case *WarnCommand:
		return eng.processWarn(ctx, c)
	case *UnwarnCommand:
		return eng.processUnwarn(ctx, c)
	case *MuteCommand:
		return eng.processMute(ctx, c)
	case *UnmuteCommand:
		return eng.processUnmute(ctx, c)
	case *BanCommand:
		return eng.processBan(ctx, c)
	case *UnbanCommand:
		return eng.processUnban(ctx, c)
	case *UnshadowbanCommand:
		return eng.processUnshadowban(ctx, c)
	case *PromoteCommand:
		return eng.processAssign(ctx, c.Actor, c, c.Target, c.Role, false)
	case *DemoteCommand:
		return eng.processAssign(ctx, c.Actor, c, c.Target, c.Role, true)
	case *PinCommand:
		return eng.processPin(ctx, c)
	case *LockCommand:
		return eng.processLock(ctx, c)
	case *DeleteCommand:
		return eng.processDelete(ctx, c)
	case *ReportCommand:
		return eng.processReport(ctx, c)
	case *ResolveCommand:
		return eng.processResolve(ctx, c)
	case *QueueCommand:
		return eng.processQueue(ctx, c)
	default:
		return nil, invalidInput("unhandled command type %T", cmd)
	}
}

func identityKey(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

// authorize resolves the actor's platform account, merges the
// webhook-claimed role with the registry's view of the same identity
// (higher of the two wins), and enforces the command's minimum role.
// Denials produce no audit record.
func (eng *Engine) authorize(ctx context.Context, actor Actor, cmd Command) (*resolvedActor, error) {
	acct, err := retryRead(ctx, func(ctx context.Context) (*models.PlatformAccount, error) {
		return eng.Accounts.LookupAccount(ctx, actor.ClientType, actor.UserID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("unknown actor %s", actor.Ref())
	}
	if err != nil {
		return nil, classify(err)
	}
	registryRole, err := eng.Registry.RoleOf(ctx, identityKey(acct.IdentityID))
	if err != nil {
		return nil, classify(err)
	}
	claimed := actor.Role
	if claimed == "" {
		claimed = roles.RoleUser
	}
	effective := roles.Max(claimed, registryRole)
	if effective.Rank() < cmd.MinRole().Rank() {
		eng.Logger.Info("command denied", "action", cmd.Action(), "actor", actor.Ref(), "role", effective)
		return nil, permissionDenied("%s requires at least %s; %s has %s",
			cmd.Action(), cmd.MinRole(), actor.Ref(), effective)
	}
	return &resolvedActor{
		Account:  acct,
		Identity: acct.IdentityID,
		Role:     effective,
		Ref:      actor.Ref(),
	}, nil
}

func (eng *Engine) resolveTarget(ctx context.Context, target UserRef) (*resolvedTarget, error) {
	acct, err := retryRead(ctx, func(ctx context.Context) (*models.PlatformAccount, error) {
		return eng.Accounts.LookupAccount(ctx, target.ClientType, target.UserID)
	})
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("unknown target %s", target.Ref())
	}
	if err != nil {
		return nil, classify(err)
	}
	accounts, err := eng.Accounts.ListAccounts(ctx, acct.IdentityID)
	if err != nil {
		return nil, classify(err)
	}
	role, err := eng.Registry.RoleOf(ctx, identityKey(acct.IdentityID))
	if err != nil {
		return nil, classify(err)
	}
	st, err := eng.Accounts.GetState(ctx, acct.ID)
	if err != nil {
		return nil, classify(err)
	}
	return &resolvedTarget{
		Account:  acct,
		Identity: acct.IdentityID,
		Accounts: accounts,
		Role:     role,
		State:    st,
		Ref:      target.Ref(),
	}, nil
}

func (eng *Engine) requireOutranks(act *resolvedActor, tgt *resolvedTarget, action string) error {
	if !roles.CanModerate(act.Role, tgt.Role) {
		eng.Logger.Info("command denied", "action", action, "actor", act.Ref, "target", tgt.Ref,
			"actorRole", act.Role, "targetRole", tgt.Role)
		return permissionDenied("%s (%s) cannot %s %s (%s)", act.Ref, act.Role, action, tgt.Ref, tgt.Role)
	}
	return nil
}

// fanoutError converts a partially or fully failed fan-out into the
// corresponding command error, after recording the per-account detail on
// the outcome. A partial failure still mutated the applied accounts, so
// it gets an audit record naming exactly which accounts took the write;
// a total failure mutated nothing and writes none.
func (eng *Engine) fanoutError(ctx context.Context, res *FanoutResult, out *Outcome, act *resolvedActor, targetRef, reason string) error {
	out.AppliedTo = res.AppliedRefs()
	out.Skipped = res.FailedRefs()
	if len(res.Failed) == 0 {
		return nil
	}
	fanoutFailureCount.Add(float64(len(res.Failed)))
	if len(res.Applied) == 0 {
		return upstream(fmt.Errorf("state write failed on all %d platform accounts", len(res.Failed)))
	}
	notes := fmt.Sprintf("partial failure: applied to %s; skipped %s",
		strings.Join(out.AppliedTo, ", "), strings.Join(out.Skipped, ", "))
	rec, aerr := eng.audit(ctx, out.Action, act.Ref, targetRef, reason, notes)
	if aerr != nil {
		out.note("audit record missing for this action")
	} else {
		out.Audit = rec
	}
	return partialFailure(fmt.Sprintf("applied to %d of %d platform accounts",
		len(res.Applied), len(res.Applied)+len(res.Failed)))
}

func (eng *Engine) thresholds(ctx context.Context) state.Thresholds {
	th := state.DefaultThresholds()
	var err error
	if th.Warn, err = eng.Config.GetInt(ctx, KeyWarnThreshold, state.DefaultWarnThreshold); err != nil {
		eng.Logger.Warn("threshold read failed, using default", "key", KeyWarnThreshold, "err", err)
	}
	if th.Mute, err = eng.Config.GetInt(ctx, KeyMuteThreshold, state.DefaultMuteThreshold); err != nil {
		eng.Logger.Warn("threshold read failed, using default", "key", KeyMuteThreshold, "err", err)
	}
	if th.Ban, err = eng.Config.GetInt(ctx, KeyBanThreshold, state.DefaultBanThreshold); err != nil {
		eng.Logger.Warn("threshold read failed, using default", "key", KeyBanThreshold, "err", err)
	}
	return th
}

// audit writes the record for a successful mutating command. A failed
// audit write surfaces as an upstream error: the state change already
// happened, so the caller gets the outcome plus an error rather than a
// silent gap in the log.
func (eng *Engine) audit(ctx context.Context, action, actorRef, targetRef, reason, notes string) (*models.AuditRecord, error) {
	rec := &models.AuditRecord{
		Action:   action,
		ActorID:  actorRef,
		TargetID: targetRef,
		Reason:   reason,
		Notes:    notes,
	}
	if err := eng.Audit.CreateAuditRecord(ctx, rec); err != nil {
		eng.Logger.Error("audit write failed", "action", action, "actor", actorRef, "err", err)
		return nil, upstream(fmt.Errorf("%s applied but audit write failed: %w", action, err))
	}
	return rec, nil
}

// finish is the shared tail of every successful mutating command: audit,
// per-moderator tally, notification.
func (eng *Engine) finish(ctx context.Context, out *Outcome, act *resolvedActor, targetRef, reason, notes string) (*Outcome, error) {
	rec, err := eng.audit(ctx, out.Action, act.Ref, targetRef, reason, notes)
	if err != nil {
		out.note("audit record missing for this action")
		return out, err
	}
	out.Audit = rec
	out.Success = true
	if cerr := eng.Counters.Increment(ctx, counterModActions, act.Ref); cerr != nil {
		eng.Logger.Warn("action tally failed", "actor", act.Ref, "err", cerr)
	}
	eng.notify(rec)
	return out, nil
}

// notify is fire and forget: delivery failures are logged and counted,
// never surfaced to the command issuer.
func (eng *Engine) notify(rec *models.AuditRecord) {
	if eng.Notifier == nil || rec == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := eng.Notifier.Send(ctx, rec); err != nil {
			notifyErrorCount.Inc()
			eng.Logger.Warn("notification delivery failed", "action", rec.Action, "err", err)
		}
	}()
}

func (eng *Engine) processWarn(ctx context.Context, c *WarnCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := &Outcome{Action: c.Action()}
	res := eng.Applier.Apply(ctx, tgt.Accounts, state.Warn(act.Ref, now))
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	count := res.MaxWarningCount()
	out.Message = fmt.Sprintf("warned %s (%d active warnings)", tgt.Ref, count)
	eng.escalate(ctx, tgt, count, c.Reason, out)
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

// escalate applies the automatic consequence of the target's new warning
// count. Escalation failures degrade to notes and log lines; the manual
// warn that triggered them already succeeded.
func (eng *Engine) escalate(ctx context.Context, tgt *resolvedTarget, count int, reason string, out *Outcome) {
	th := eng.thresholds(ctx)
	now := time.Now().UTC()
	switch state.Escalate(count, th) {
	case state.EscalateNotice:
		out.note(fmt.Sprintf("formal notice: %d warnings on record", count))
		escalationCount.WithLabelValues("notice").Inc()

	case state.EscalateMute:
		if tgt.State.Muted(now) || tgt.State.Banned || tgt.State.ShadowBanned {
			return
		}
		res := eng.Applier.Apply(ctx, tgt.Accounts, state.Mute(systemActor, state.AutoMuteDuration, now))
		if len(res.Failed) > 0 {
			out.note(fmt.Sprintf("automatic mute incomplete: %d accounts skipped", len(res.Failed)))
		}
		out.note(fmt.Sprintf("automatically muted for %s after %d warnings", state.AutoMuteDuration, count))
		escalationCount.WithLabelValues("mute").Inc()
		eng.recordEscalation(ctx, "auto-mute", tgt, fmt.Sprintf("Auto-mute after %d warnings: %s", count, reason))

	case state.EscalateBan:
		if tgt.State.Banned {
			return
		}
		used, err := eng.Counters.GetCount(ctx, counterAutoEscalation, "ban", countstore.PeriodDay)
		if err != nil {
			eng.Logger.Error("auto-ban quota read failed, suppressing auto-ban", "err", err)
			out.note("auto-ban suppressed: quota check unavailable")
			return
		}
		quota, err := eng.Config.GetInt(ctx, KeyAutoBanDailyQuota, DefaultAutoBanDailyQuota)
		if err != nil {
			eng.Logger.Warn("auto-ban quota config read failed, using default", "err", err)
		}
		if used >= quota {
			eng.Logger.Error("auto-ban suppressed: daily quota reached", "target", tgt.Ref, "quota", quota)
			out.note(fmt.Sprintf("auto-ban suppressed: daily quota of %d reached", quota))
			escalationCount.WithLabelValues("ban_suppressed").Inc()
			return
		}
		delta, derr := state.Ban(tgt.State, systemActor, false, now)
		if derr != nil {
			return
		}
		res := eng.Applier.Apply(ctx, tgt.Accounts, delta)
		if len(res.Failed) > 0 {
			out.note(fmt.Sprintf("automatic ban incomplete: %d accounts skipped", len(res.Failed)))
		}
		out.note(fmt.Sprintf("automatically banned after %d warnings", count))
		escalationCount.WithLabelValues("ban").Inc()
		if cerr := eng.Counters.IncrementPeriod(ctx, counterAutoEscalation, "ban", countstore.PeriodDay); cerr != nil {
			eng.Logger.Warn("auto-ban quota increment failed", "err", cerr)
		}
		eng.recordEscalation(ctx, "auto-ban", tgt, fmt.Sprintf("Auto-ban after %d warnings: %s", count, reason))
	}
}

func (eng *Engine) recordEscalation(ctx context.Context, action string, tgt *resolvedTarget, reason string) {
	rec, err := eng.audit(ctx, action, systemActor, tgt.Ref, reason, "")
	if err != nil {
		return
	}
	eng.notify(rec)
}

func (eng *Engine) processUnwarn(ctx context.Context, c *UnwarnCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	oldCount := tgt.State.WarningCount
	delta, derr := state.Unwarn(tgt.State, act.Ref, now)
	if derr != nil {
		return nil, classify(derr)
	}
	out := &Outcome{Action: c.Action()}
	res := eng.Applier.Apply(ctx, tgt.Accounts, delta)
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	newCount := res.MaxWarningCount()
	out.Message = fmt.Sprintf("removed one warning from %s (%d remaining)", tgt.Ref, newCount)
	if state.DroppedBelowTrigger(oldCount, newCount, eng.thresholds(ctx)) {
		out.note("warning count dropped below the auto-mute threshold; existing mutes and bans remain until lifted manually")
	}
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

func (eng *Engine) processMute(ctx context.Context, c *MuteCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	out := &Outcome{Action: c.Action()}
	if tgt.State.Muted(now) {
		out.note(fmt.Sprintf("previous mute (until %s) replaced", tgt.State.MuteUntil.UTC().Format(time.RFC3339)))
	}
	res := eng.Applier.Apply(ctx, tgt.Accounts, state.Mute(act.Ref, c.Duration, now))
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	out.Message = fmt.Sprintf("muted %s until %s", tgt.Ref, now.Add(c.Duration).Format(time.RFC3339))
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

func (eng *Engine) processUnmute(ctx context.Context, c *UnmuteCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if !tgt.State.Muted(now) {
		return nil, conflict(fmt.Errorf("%s is not muted", tgt.Ref))
	}
	out := &Outcome{Action: c.Action()}
	res := eng.Applier.Apply(ctx, tgt.Accounts, state.Unmute(act.Ref, now))
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	out.Message = fmt.Sprintf("unmuted %s", tgt.Ref)
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

func (eng *Engine) processBan(ctx context.Context, c *BanCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	delta, derr := state.Ban(tgt.State, act.Ref, c.Shadow, now)
	if derr != nil {
		return nil, classify(derr)
	}
	out := &Outcome{Action: c.Action()}
	if c.Shadow && tgt.State.Banned {
		out.note("existing ban converted to shadow ban")
	}
	if !c.Shadow && tgt.State.ShadowBanned {
		out.note("existing shadow ban converted to full ban")
	}
	res := eng.Applier.Apply(ctx, tgt.Accounts, delta)
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	if c.Shadow {
		out.Message = fmt.Sprintf("shadow-banned %s", tgt.Ref)
	} else {
		out.Message = fmt.Sprintf("banned %s", tgt.Ref)
	}
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

func (eng *Engine) processUnban(ctx context.Context, c *UnbanCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	if !tgt.State.Banned && !tgt.State.ShadowBanned {
		return nil, conflict(fmt.Errorf("%s is not banned", tgt.Ref))
	}
	now := time.Now().UTC()
	out := &Outcome{Action: c.Action()}
	if tgt.State.Muted(now) {
		out.note("active mute cleared as part of unban")
	}
	res := eng.Applier.Apply(ctx, tgt.Accounts, state.Unban(act.Ref, now))
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	out.Message = fmt.Sprintf("unbanned %s", tgt.Ref)
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

func (eng *Engine) processUnshadowban(ctx context.Context, c *UnshadowbanCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, c.Target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, c.Action()); err != nil {
		return nil, err
	}

	if !tgt.State.ShadowBanned {
		return nil, conflict(fmt.Errorf("%s is not shadow-banned", tgt.Ref))
	}
	now := time.Now().UTC()
	out := &Outcome{Action: c.Action()}
	res := eng.Applier.Apply(ctx, tgt.Accounts, state.Unshadowban(act.Ref, now))
	if ferr := eng.fanoutError(ctx, res, out, act, tgt.Ref, c.Reason); ferr != nil {
		return out, ferr
	}
	out.Message = fmt.Sprintf("lifted shadow ban on %s", tgt.Ref)
	return eng.finish(ctx, out, act, tgt.Ref, c.Reason, "")
}

// processAssign handles both promote and demote: same registry write,
// opposite direction checks.
func (eng *Engine) processAssign(ctx context.Context, actor Actor, cmd Command, target UserRef, newRole roles.Role, demote bool) (*Outcome, error) {
	act, err := eng.authorize(ctx, actor, cmd)
	if err != nil {
		return nil, err
	}
	tgt, err := eng.resolveTarget(ctx, target)
	if err != nil {
		return nil, err
	}
	if err := eng.requireOutranks(act, tgt, cmd.Action()); err != nil {
		return nil, err
	}
	if newRole.Rank() > act.Role.Rank() {
		return nil, permissionDenied("%s (%s) cannot grant a role above their own (%s)", act.Ref, act.Role, newRole)
	}
	if demote && newRole.Rank() >= tgt.Role.Rank() {
		return nil, conflict(fmt.Errorf("demote would not lower role: %s is %s", tgt.Ref, tgt.Role))
	}
	if !demote && newRole.Rank() <= tgt.Role.Rank() {
		return nil, conflict(fmt.Errorf("promote would not raise role: %s is already %s", tgt.Ref, tgt.Role))
	}

	if err := eng.Registry.Assign(ctx, identityKey(tgt.Identity), newRole); err != nil {
		return nil, classify(err)
	}
	out := &Outcome{Action: cmd.Action()}
	for _, acct := range tgt.Accounts {
		out.AppliedTo = append(out.AppliedTo, acct.ClientType+":"+acct.ExternalUserID)
	}
	out.Message = fmt.Sprintf("%s is now %s", tgt.Ref, newRole)
	return eng.finish(ctx, out, act, tgt.Ref, "", fmt.Sprintf("%s -> %s", tgt.Role, newRole))
}

func contentRef(id uint) string {
	return fmt.Sprintf("content:%d", id)
}

func (eng *Engine) processPin(ctx context.Context, c *PinCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	content, err := eng.Contents.GetContent(ctx, c.ContentID)
	if err != nil {
		return nil, classify(err)
	}
	if c.Unpin && !content.Pinned {
		return nil, conflict(fmt.Errorf("content %d is not pinned", c.ContentID))
	}
	if !c.Unpin && content.Pinned {
		return nil, conflict(&state.AlreadyAppliedError{Action: "pinned", By: content.PinnedBy, At: content.PinnedAt})
	}

	pinned := !c.Unpin
	if _, err := eng.Contents.ApplyContent(ctx, c.ContentID, store.ContentDelta{
		SetPinned: &pinned, By: act.Ref, At: time.Now().UTC(),
	}); err != nil {
		return nil, classify(err)
	}
	out := &Outcome{Action: c.Action(), Message: fmt.Sprintf("%s content %d", pastTense(c.Action()), c.ContentID)}
	return eng.finish(ctx, out, act, contentRef(c.ContentID), "", "")
}

func (eng *Engine) processLock(ctx context.Context, c *LockCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	content, err := eng.Contents.GetContent(ctx, c.ContentID)
	if err != nil {
		return nil, classify(err)
	}
	if c.Unlock && !content.Locked {
		return nil, conflict(fmt.Errorf("content %d is not locked", c.ContentID))
	}
	if !c.Unlock && content.Locked {
		return nil, conflict(&state.AlreadyAppliedError{Action: "locked", By: content.LockedBy, At: content.LockedAt})
	}

	locked := !c.Unlock
	if _, err := eng.Contents.ApplyContent(ctx, c.ContentID, store.ContentDelta{
		SetLocked: &locked, By: act.Ref, At: time.Now().UTC(),
	}); err != nil {
		return nil, classify(err)
	}
	out := &Outcome{Action: c.Action(), Message: fmt.Sprintf("%s content %d", pastTense(c.Action()), c.ContentID)}
	return eng.finish(ctx, out, act, contentRef(c.ContentID), "", "")
}

func (eng *Engine) processDelete(ctx context.Context, c *DeleteCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	content, err := eng.Contents.GetContent(ctx, c.ContentID)
	if err != nil {
		return nil, classify(err)
	}
	if content.Deleted {
		return nil, conflict(&state.AlreadyAppliedError{Action: "deleted", By: content.DeletedBy, At: content.DeletedAt})
	}
	authorRole, err := eng.Registry.RoleOf(ctx, identityKey(content.AuthorID))
	if err != nil {
		return nil, classify(err)
	}
	if !roles.CanModerate(act.Role, authorRole) {
		return nil, permissionDenied("%s (%s) cannot delete content authored by a %s", act.Ref, act.Role, authorRole)
	}

	deleted := true
	if _, err := eng.Contents.ApplyContent(ctx, c.ContentID, store.ContentDelta{
		SetDeleted: &deleted, By: act.Ref, At: time.Now().UTC(),
	}); err != nil {
		return nil, classify(err)
	}
	out := &Outcome{Action: c.Action(), Message: fmt.Sprintf("deleted content %d", c.ContentID)}
	return eng.finish(ctx, out, act, contentRef(c.ContentID), c.Reason, "")
}

func (eng *Engine) processReport(ctx context.Context, c *ReportCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	report, err := eng.Ledger.File(ctx, c.ContentID, act.Identity, c.Reason, c.Notes)
	if err != nil {
		return nil, classify(err)
	}
	if cerr := eng.Counters.Increment(ctx, counterReports, c.Reason); cerr != nil {
		eng.Logger.Warn("report tally failed", "err", cerr)
	}

	out := &Outcome{
		Action:  c.Action(),
		Message: fmt.Sprintf("report filed against content %d", c.ContentID),
		Reports: []models.Report{*report},
	}
	rec, aerr := eng.audit(ctx, c.Action(), act.Ref, contentRef(c.ContentID), c.Reason, c.Notes)
	if aerr != nil {
		out.note("audit record missing for this action")
		return out, aerr
	}
	out.Audit = rec
	out.Success = true
	eng.notify(rec)
	return out, nil
}

func (eng *Engine) processResolve(ctx context.Context, c *ResolveCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	reporter, err := eng.Accounts.LookupAccount(ctx, c.Reporter.ClientType, c.Reporter.UserID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, notFoundErr("unknown reporter %s", c.Reporter.Ref())
	}
	if err != nil {
		return nil, classify(err)
	}

	report, status, err := eng.Ledger.Resolve(ctx, c.ContentID, reporter.IdentityID, c.Resolution, act.Ref, c.Notes)
	if err != nil {
		return nil, classify(err)
	}
	out := &Outcome{
		Action:  c.Action(),
		Message: fmt.Sprintf("report by %s %s; content %d is now %s", c.Reporter.Ref(), c.Resolution, c.ContentID, status),
		Reports: []models.Report{*report},
	}
	return eng.finish(ctx, out, act, contentRef(c.ContentID), c.Resolution, c.Notes)
}

// processQueue is read-only: no audit record, no tally.
func (eng *Engine) processQueue(ctx context.Context, c *QueueCommand) (*Outcome, error) {
	act, err := eng.authorize(ctx, c.Actor, c)
	if err != nil {
		return nil, err
	}
	limit := c.Limit
	if limit <= 0 {
		if limit, err = eng.Config.GetInt(ctx, KeyQueueLimit, DefaultQueueLimit); err != nil {
			eng.Logger.Warn("queue limit config read failed, using default", "err", err)
		}
	}
	queue, err := eng.Ledger.Queue(ctx, limit)
	if err != nil {
		return nil, classify(err)
	}
	eng.Logger.Debug("review queue served", "moderator", act.Ref, "len", len(queue))
	return &Outcome{
		Action:  c.Action(),
		Success: true,
		Message: fmt.Sprintf("%d contents awaiting review", len(queue)),
		Queue:   queue,
	}, nil
}

func pastTense(action string) string {
	switch action {
	case "pin":
		return "pinned"
	case "unpin":
		return "unpinned"
	case "lock":
		return "locked"
	case "unlock":
		return "unlocked"
	default:
		return action
	}
}
