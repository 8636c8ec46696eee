package engine

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/roles"
	"github.com/commentum/commentum/moderation/state"
)

// standard cast for engine tests: a moderator, an admin (webhook-claimed
// role only), a super admin, and two plain users with multi-platform
// accounts
type cast struct {
	fix        *TestFixture
	mod        Actor
	admin      Actor
	superAdmin Actor
	bob        UserRef
	bobID      uint
	carol      Actor
	carolID    uint
}

func setupCast(t *testing.T) *cast {
	t.Helper()
	fix := EngineTestFixture()

	modID := fix.MustAddIdentity("mod", map[string]string{"telegram": "100"})
	fix.MustAssignRole(modID, roles.RoleModerator)

	// the admin is not in the registry; the webhook claim alone carries it
	fix.MustAddIdentity("admin", map[string]string{"telegram": "101"})

	rootID := fix.MustAddIdentity("root", map[string]string{"telegram": "102"})
	fix.MustAssignRole(rootID, roles.RoleSuperAdmin)

	bobID := fix.MustAddIdentity("bob", map[string]string{"telegram": "200", "discord": "300"})
	carolID := fix.MustAddIdentity("carol", map[string]string{"discord": "301"})

	return &cast{
		fix:        fix,
		mod:        Actor{ClientType: "telegram", UserID: "100"},
		admin:      Actor{ClientType: "telegram", UserID: "101", Role: roles.RoleAdmin},
		superAdmin: Actor{ClientType: "telegram", UserID: "102"},
		bob:        UserRef{ClientType: "telegram", UserID: "200"},
		bobID:      bobID,
		carol:      Actor{ClientType: "discord", UserID: "301"},
		carolID:    carolID,
	}
}

func commandCode(t *testing.T, err error) Code {
	t.Helper()
	var cmdErr *CommandError
	require.True(t, errors.As(err, &cmdErr), "expected CommandError, got %v", err)
	return cmdErr.Code
}

func (c *cast) bobState(t *testing.T) *models.ModerationState {
	t.Helper()
	acct, err := c.fix.Store.LookupAccount(context.Background(), "telegram", "200")
	require.NoError(t, err)
	st, err := c.fix.Store.GetState(context.Background(), acct.ID)
	require.NoError(t, err)
	return st
}

func TestWarnAppliesToAllAccounts(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	out, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.mod, Target: c.bob, Reason: "spam"})
	require.NoError(err)
	assert.True(out.Success)
	assert.Len(out.AppliedTo, 2, "both platform accounts updated")
	assert.Empty(out.Skipped)
	require.NotNil(out.Audit)
	assert.Equal("warn", out.Audit.Action)
	assert.Equal("telegram:100", out.Audit.ActorID)
	assert.Equal("telegram:200", out.Audit.TargetID)

	// both accounts carry the warning
	for _, ref := range []struct{ ct, id string }{{"telegram", "200"}, {"discord", "300"}} {
		acct, err := c.fix.Store.LookupAccount(ctx, ref.ct, ref.id)
		require.NoError(err)
		st, err := c.fix.Store.GetState(ctx, acct.ID)
		require.NoError(err)
		assert.Equal(1, st.WarningCount)
	}
}

func TestPermissionDeniedWritesNoAudit(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	// ban requires admin; the moderator is denied
	_, err := c.fix.Engine.ProcessCommand(ctx, &BanCommand{Actor: c.mod, Target: c.bob, Reason: "spam"})
	assert.Equal(CodePermissionDenied, commandCode(t, err))

	// a plain user cannot warn anyone
	_, err = c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.carol, Target: c.bob, Reason: "spam"})
	assert.Equal(CodePermissionDenied, commandCode(t, err))

	recs, err := c.fix.Store.ListAuditRecords(ctx, 0)
	require.NoError(err)
	assert.Empty(recs, "denials leave no audit trail")
}

func TestOutrankingRequired(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := setupCast(t)

	// a moderator cannot warn another moderator (equal rank)
	otherID := c.fix.MustAddIdentity("mod2", map[string]string{"telegram": "103"})
	c.fix.MustAssignRole(otherID, roles.RoleModerator)

	_, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{
		Actor: c.mod, Target: UserRef{ClientType: "telegram", UserID: "103"}, Reason: "spam",
	})
	assert.Equal(CodePermissionDenied, commandCode(t, err))

	// the admin outranks the moderator
	_, err = c.fix.Engine.ProcessCommand(ctx, &WarnCommand{
		Actor: c.admin, Target: UserRef{ClientType: "telegram", UserID: "103"}, Reason: "spam",
	})
	assert.NoError(err)
}

func TestWebhookRoleMergedWithRegistry(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := setupCast(t)

	// registry says moderator; a stale webhook claim of "user" must not
	// downgrade the actor
	out, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{
		Actor:  Actor{ClientType: "telegram", UserID: "100", Role: roles.RoleUser},
		Target: c.bob, Reason: "spam",
	})
	assert.NoError(err)
	assert.True(out.Success)
}

func TestWarnEscalation(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	warn := func() *Outcome {
		out, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.admin, Target: c.bob, Reason: "spam"})
		require.NoError(err)
		return out
	}

	warn()
	out := warn()
	assert.Empty(out.Notes, "below every threshold")

	// third warning: formal notice, no state change
	out = warn()
	require.Len(out.Notes, 1)
	assert.Contains(out.Notes[0], "formal notice")
	st := c.bobState(t)
	assert.Equal(3, st.WarningCount)
	assert.False(st.Muted(time.Now()))

	warn()

	// fifth warning: automatic 24h mute
	out = warn()
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[len(out.Notes)-1], "automatically muted")
	st = c.bobState(t)
	assert.Equal(5, st.WarningCount)
	assert.True(st.Muted(time.Now()))
	assert.Equal(systemActor, st.MutedBy)
	assert.False(st.Banned)

	// sixth warning: already muted, no second auto-mute note
	out = warn()
	for _, n := range out.Notes {
		assert.NotContains(n, "automatically muted")
	}

	for i := 7; i <= 9; i++ {
		warn()
	}

	// tenth warning: automatic ban
	out = warn()
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[len(out.Notes)-1], "automatically banned")
	st = c.bobState(t)
	assert.Equal(10, st.WarningCount)
	assert.True(st.Banned)
	assert.Equal(systemActor, st.BannedBy)

	// escalations are audited under the system actor
	recs, err := c.fix.Store.ListAuditRecords(ctx, 0)
	require.NoError(err)
	var autoActions []string
	for _, r := range recs {
		if r.ActorID == systemActor {
			autoActions = append(autoActions, r.Action)
		}
	}
	assert.ElementsMatch([]string{"auto-mute", "auto-ban"}, autoActions)
}

func TestAutoBanQuotaCircuitBreaker(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	require.NoError(c.fix.Config.Set(ctx, KeyBanThreshold, "1"))
	require.NoError(c.fix.Config.Set(ctx, KeyAutoBanDailyQuota, "0"))

	out, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.admin, Target: c.bob, Reason: "spam"})
	require.NoError(err)
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[len(out.Notes)-1], "auto-ban suppressed")
	assert.False(c.bobState(t).Banned, "quota exhausted, no automatic ban")
}

func TestUnwarnAdvisory(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	for i := 0; i < 5; i++ {
		_, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.admin, Target: c.bob, Reason: "spam"})
		require.NoError(err)
	}
	require.True(c.bobState(t).Muted(time.Now()))

	out, err := c.fix.Engine.ProcessCommand(ctx, &UnwarnCommand{Actor: c.admin, Target: c.bob})
	require.NoError(err)
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[0], "remain until lifted manually")

	st := c.bobState(t)
	assert.Equal(4, st.WarningCount)
	assert.True(st.Muted(time.Now()), "escalation is one-directional")

	// unwarn with nothing on record is a conflict
	c.fix.MustAddIdentity("dave", map[string]string{"telegram": "400"})
	_, err = c.fix.Engine.ProcessCommand(ctx, &UnwarnCommand{
		Actor: c.admin, Target: UserRef{ClientType: "telegram", UserID: "400"},
	})
	assert.Equal(CodeConflict, commandCode(t, err))
}

func TestMuteAndUnmute(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	_, err := c.fix.Engine.ProcessCommand(ctx, &MuteCommand{Actor: c.mod, Target: c.bob, Duration: time.Hour, Reason: "cool off"})
	require.NoError(err)
	assert.True(c.bobState(t).Muted(time.Now()))

	// a second mute replaces the window with a note
	out, err := c.fix.Engine.ProcessCommand(ctx, &MuteCommand{Actor: c.mod, Target: c.bob, Duration: 2 * time.Hour, Reason: "extend"})
	require.NoError(err)
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[0], "previous mute")

	_, err = c.fix.Engine.ProcessCommand(ctx, &UnmuteCommand{Actor: c.mod, Target: c.bob})
	require.NoError(err)
	assert.False(c.bobState(t).Muted(time.Now()))

	_, err = c.fix.Engine.ProcessCommand(ctx, &UnmuteCommand{Actor: c.mod, Target: c.bob})
	assert.Equal(CodeConflict, commandCode(t, err))
}

func TestBanIdempotencyConflict(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	_, err := c.fix.Engine.ProcessCommand(ctx, &BanCommand{Actor: c.admin, Target: c.bob, Reason: "abuse"})
	require.NoError(err)
	st := c.bobState(t)
	assert.True(st.Banned)
	assert.Equal("telegram:101", st.BannedBy)

	// re-banning reports who applied the existing ban
	_, err = c.fix.Engine.ProcessCommand(ctx, &BanCommand{Actor: c.admin, Target: c.bob, Reason: "abuse"})
	require.Error(err)
	assert.Equal(CodeConflict, commandCode(t, err))
	var applied *state.AlreadyAppliedError
	require.True(errors.As(err, &applied))
	assert.Equal("telegram:101", applied.By)
}

func TestBanShadowBanExclusive(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	_, err := c.fix.Engine.ProcessCommand(ctx, &BanCommand{Actor: c.admin, Target: c.bob, Reason: "abuse"})
	require.NoError(err)

	// converting to shadow ban clears the full ban
	out, err := c.fix.Engine.ProcessCommand(ctx, &BanCommand{Actor: c.admin, Target: c.bob, Shadow: true, Reason: "quieter"})
	require.NoError(err)
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[0], "converted to shadow ban")
	st := c.bobState(t)
	assert.False(st.Banned)
	assert.True(st.ShadowBanned)

	_, err = c.fix.Engine.ProcessCommand(ctx, &UnshadowbanCommand{Actor: c.admin, Target: c.bob})
	require.NoError(err)
	st = c.bobState(t)
	assert.False(st.ShadowBanned)

	_, err = c.fix.Engine.ProcessCommand(ctx, &UnshadowbanCommand{Actor: c.admin, Target: c.bob})
	assert.Equal(CodeConflict, commandCode(t, err))
}

func TestUnbanClearsMute(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	_, err := c.fix.Engine.ProcessCommand(ctx, &MuteCommand{Actor: c.admin, Target: c.bob, Duration: time.Hour, Reason: "x"})
	require.NoError(err)
	_, err = c.fix.Engine.ProcessCommand(ctx, &BanCommand{Actor: c.admin, Target: c.bob, Reason: "x"})
	require.NoError(err)

	out, err := c.fix.Engine.ProcessCommand(ctx, &UnbanCommand{Actor: c.admin, Target: c.bob})
	require.NoError(err)
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[0], "mute cleared")
	st := c.bobState(t)
	assert.False(st.Banned)
	assert.False(st.Muted(time.Now()))

	_, err = c.fix.Engine.ProcessCommand(ctx, &UnbanCommand{Actor: c.admin, Target: c.bob})
	assert.Equal(CodeConflict, commandCode(t, err))
}

func TestCrossPlatformPartialFailure(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	discord, err := c.fix.Store.LookupAccount(ctx, "discord", "300")
	require.NoError(err)
	c.fix.Store.FailState[discord.ID] = fmt.Errorf("connection refused")

	out, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.mod, Target: c.bob, Reason: "spam"})
	require.Error(err)
	assert.Equal(CodePartialFailure, commandCode(t, err))
	require.NotNil(out, "partial outcome reports which accounts were touched")
	assert.False(out.Success)
	assert.Equal([]string{"telegram:200"}, out.AppliedTo)
	assert.Equal([]string{"discord:300"}, out.Skipped)

	// the telegram account was genuinely mutated, so the partial write is
	// still audited, naming the applied and skipped accounts
	require.NotNil(out.Audit)
	recs, err := c.fix.Store.ListAuditRecords(ctx, 10)
	require.NoError(err)
	require.Len(recs, 1)
	assert.Equal("warn", recs[0].Action)
	assert.Contains(recs[0].Notes, "telegram:200")
	assert.Contains(recs[0].Notes, "discord:300")

	// all accounts failing is an upstream error, not a partial failure
	telegram, err := c.fix.Store.LookupAccount(ctx, "telegram", "200")
	require.NoError(err)
	c.fix.Store.FailState[telegram.ID] = fmt.Errorf("connection refused")
	out, err = c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.mod, Target: c.bob, Reason: "spam"})
	require.Error(err)
	assert.Equal(CodeUpstreamUnavailable, commandCode(t, err))
	assert.Empty(out.AppliedTo)

	// nothing was mutated, so nothing new in the audit log
	recs, err = c.fix.Store.ListAuditRecords(ctx, 10)
	require.NoError(err)
	assert.Len(recs, 1)
}

func TestPromoteDemote(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	out, err := c.fix.Engine.ProcessCommand(ctx, &PromoteCommand{Actor: c.superAdmin, Target: c.bob, Role: roles.RoleModerator})
	require.NoError(err)
	assert.True(out.Success)
	assert.Len(out.AppliedTo, 2, "role spans every platform account")

	role, err := c.fix.Registry.RoleOf(ctx, identityKey(c.bobID))
	require.NoError(err)
	assert.Equal(roles.RoleModerator, role)

	// freshly promoted, bob can now warn a plain user without any webhook claim
	_, err = c.fix.Engine.ProcessCommand(ctx, &WarnCommand{
		Actor:  Actor{ClientType: "telegram", UserID: "200"},
		Target: UserRef{ClientType: "discord", UserID: "301"},
		Reason: "spam",
	})
	assert.NoError(err)

	// promoting to the same tier is a conflict, not a silent no-op
	_, err = c.fix.Engine.ProcessCommand(ctx, &PromoteCommand{Actor: c.superAdmin, Target: c.bob, Role: roles.RoleModerator})
	assert.Equal(CodeConflict, commandCode(t, err))

	// the moderator cannot promote anyone
	_, err = c.fix.Engine.ProcessCommand(ctx, &PromoteCommand{Actor: c.mod, Target: c.bob, Role: roles.RoleAdmin})
	assert.Equal(CodePermissionDenied, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &DemoteCommand{Actor: c.superAdmin, Target: c.bob, Role: roles.RoleUser})
	require.NoError(err)
	role, err = c.fix.Registry.RoleOf(ctx, identityKey(c.bobID))
	require.NoError(err)
	assert.Equal(roles.RoleUser, role)

	// demoting a plain user has nowhere to go
	_, err = c.fix.Engine.ProcessCommand(ctx, &DemoteCommand{Actor: c.superAdmin, Target: c.bob, Role: roles.RoleUser})
	assert.Equal(CodeConflict, commandCode(t, err))
}

func TestContentCommands(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	contentID := c.fix.MustAddContent(c.carolID, "hot take")

	out, err := c.fix.Engine.ProcessCommand(ctx, &PinCommand{Actor: c.mod, ContentID: contentID})
	require.NoError(err)
	assert.True(out.Success)

	_, err = c.fix.Engine.ProcessCommand(ctx, &PinCommand{Actor: c.mod, ContentID: contentID})
	assert.Equal(CodeConflict, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &PinCommand{Actor: c.mod, ContentID: contentID, Unpin: true})
	require.NoError(err)
	_, err = c.fix.Engine.ProcessCommand(ctx, &PinCommand{Actor: c.mod, ContentID: contentID, Unpin: true})
	assert.Equal(CodeConflict, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &LockCommand{Actor: c.mod, ContentID: contentID})
	require.NoError(err)
	content, err := c.fix.Store.GetContent(ctx, contentID)
	require.NoError(err)
	assert.True(content.Locked)
	assert.Equal("telegram:100", content.LockedBy)

	_, err = c.fix.Engine.ProcessCommand(ctx, &DeleteCommand{Actor: c.mod, ContentID: contentID, Reason: "off topic"})
	require.NoError(err)
	content, err = c.fix.Store.GetContent(ctx, contentID)
	require.NoError(err)
	assert.True(content.Deleted)

	_, err = c.fix.Engine.ProcessCommand(ctx, &DeleteCommand{Actor: c.mod, ContentID: contentID, Reason: "again"})
	assert.Equal(CodeConflict, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &DeleteCommand{Actor: c.mod, ContentID: 999, Reason: "x"})
	assert.Equal(CodeNotFound, commandCode(t, err))
}

func TestDeleteChecksAuthorRole(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := setupCast(t)

	// content authored by an admin-ranked identity
	adminAuthorID := c.fix.MustAddIdentity("staff", map[string]string{"telegram": "500"})
	c.fix.MustAssignRole(adminAuthorID, roles.RoleAdmin)
	contentID := c.fix.MustAddContent(adminAuthorID, "announcement")

	_, err := c.fix.Engine.ProcessCommand(ctx, &DeleteCommand{Actor: c.mod, ContentID: contentID, Reason: "nope"})
	assert.Equal(CodePermissionDenied, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &DeleteCommand{Actor: c.superAdmin, ContentID: contentID, Reason: "stale"})
	assert.NoError(err)
}

func TestReportResolveQueueFlow(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	contentID := c.fix.MustAddContent(c.bobID, "spammy")

	out, err := c.fix.Engine.ProcessCommand(ctx, &ReportCommand{Actor: c.carol, ContentID: contentID, Reason: "spam", Notes: "link farm"})
	require.NoError(err)
	assert.True(out.Success)
	require.Len(out.Reports, 1)
	assert.Equal(models.ReportStatusPending, out.Reports[0].Status)

	// self reports are conflicts
	_, err = c.fix.Engine.ProcessCommand(ctx, &ReportCommand{
		Actor: Actor{ClientType: "telegram", UserID: "200"}, ContentID: contentID, Reason: "spam",
	})
	assert.Equal(CodeConflict, commandCode(t, err))

	// the queue shows the pending content
	out, err = c.fix.Engine.ProcessCommand(ctx, &QueueCommand{Actor: c.mod})
	require.NoError(err)
	require.Len(out.Queue, 1)
	assert.Equal(contentID, out.Queue[0].ID)

	// a plain user cannot read the queue
	_, err = c.fix.Engine.ProcessCommand(ctx, &QueueCommand{Actor: c.carol})
	assert.Equal(CodePermissionDenied, commandCode(t, err))

	out, err = c.fix.Engine.ProcessCommand(ctx, &ResolveCommand{
		Actor:     c.mod,
		ContentID: contentID,
		Reporter:  UserRef{ClientType: "discord", UserID: "301"},
		Resolution: models.ReportStatusResolved,
	})
	require.NoError(err)
	assert.True(out.Success)

	content, err := c.fix.Store.GetContent(ctx, contentID)
	require.NoError(err)
	assert.Equal(models.ReportStatusResolved, content.ReportStatus)

	out, err = c.fix.Engine.ProcessCommand(ctx, &QueueCommand{Actor: c.mod})
	require.NoError(err)
	assert.Empty(out.Queue)
}

func TestUnknownActorAndTarget(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := setupCast(t)

	_, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{
		Actor: Actor{ClientType: "telegram", UserID: "999", Role: roles.RoleAdmin}, Target: c.bob, Reason: "x",
	})
	assert.Equal(CodeNotFound, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &WarnCommand{
		Actor: c.mod, Target: UserRef{ClientType: "telegram", UserID: "999"}, Reason: "x",
	})
	assert.Equal(CodeNotFound, commandCode(t, err))
}

func TestValidationErrors(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()
	c := setupCast(t)

	_, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.mod, Target: c.bob})
	assert.Equal(CodeInvalidInput, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &MuteCommand{Actor: c.mod, Target: c.bob, Duration: -time.Hour})
	assert.Equal(CodeInvalidInput, commandCode(t, err))

	_, err = c.fix.Engine.ProcessCommand(ctx, &ReportCommand{Actor: c.carol, ContentID: 1, Reason: "rude"})
	assert.Equal(CodeInvalidInput, commandCode(t, err))
}

func TestConfigurableThresholds(t *testing.T) {
	assert := assert.New(t)
	require := require.New(t)
	ctx := context.Background()
	c := setupCast(t)

	require.NoError(c.fix.Config.Set(ctx, KeyMuteThreshold, "2"))

	_, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.mod, Target: c.bob, Reason: "spam"})
	require.NoError(err)
	out, err := c.fix.Engine.ProcessCommand(ctx, &WarnCommand{Actor: c.mod, Target: c.bob, Reason: "spam"})
	require.NoError(err)
	require.NotEmpty(out.Notes)
	assert.Contains(out.Notes[len(out.Notes)-1], "automatically muted")
	assert.True(c.bobState(t).Muted(time.Now()))
}
