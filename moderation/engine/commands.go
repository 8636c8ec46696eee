package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/commentum/commentum/moderation/roles"
)

// Who issued a command. The role is what the chat-client webhook claims;
// the engine merges it with the registry's view of the same identity
// before any permission check.
type Actor struct {
	ClientType string     `json:"clientType"`
	UserID     string     `json:"userId"`
	Role       roles.Role `json:"role"`
}

func (a Actor) Ref() string {
	return a.ClientType + ":" + a.UserID
}

func (a Actor) validate() error {
	if a.ClientType == "" || a.UserID == "" {
		return fmt.Errorf("actor requires clientType and userId")
	}
	if a.Role != "" && !a.Role.Valid() {
		return fmt.Errorf("unknown actor role: %q", a.Role)
	}
	return nil
}

// A platform-level reference to a target user.
type UserRef struct {
	ClientType string `json:"clientType"`
	UserID     string `json:"userId"`
}

func (u UserRef) Ref() string {
	return u.ClientType + ":" + u.UserID
}

func (u UserRef) validate() error {
	if u.ClientType == "" || u.UserID == "" {
		return fmt.Errorf("target requires clientType and userId")
	}
	return nil
}

// One strongly typed variant per command name, decoded and validated once
// at the boundary before reaching the engine.
type Command interface {
	Action() string
	// the minimum role required to even attempt the command; outranking
	// checks against the specific target come on top of this
	MinRole() roles.Role
	Validate() error
}

type WarnCommand struct {
	Actor  Actor
	Target UserRef
	Reason string
}

func (c *WarnCommand) Action() string      { return "warn" }
func (c *WarnCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *WarnCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if err := c.Target.validate(); err != nil {
		return err
	}
	if c.Reason == "" {
		return fmt.Errorf("warn requires a reason")
	}
	return nil
}

type UnwarnCommand struct {
	Actor  Actor
	Target UserRef
	Reason string
}

func (c *UnwarnCommand) Action() string      { return "unwarn" }
func (c *UnwarnCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *UnwarnCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	return c.Target.validate()
}

type MuteCommand struct {
	Actor    Actor
	Target   UserRef
	Duration time.Duration
	Reason   string
}

func (c *MuteCommand) Action() string      { return "mute" }
func (c *MuteCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *MuteCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if err := c.Target.validate(); err != nil {
		return err
	}
	if c.Duration <= 0 {
		return fmt.Errorf("mute requires a positive duration")
	}
	return nil
}

type UnmuteCommand struct {
	Actor  Actor
	Target UserRef
	Reason string
}

func (c *UnmuteCommand) Action() string      { return "unmute" }
func (c *UnmuteCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *UnmuteCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	return c.Target.validate()
}

// Covers both the "ban" and "shadowban" command names.
type BanCommand struct {
	Actor  Actor
	Target UserRef
	Shadow bool
	Reason string
}

func (c *BanCommand) Action() string {
	if c.Shadow {
		return "shadowban"
	}
	return "ban"
}
func (c *BanCommand) MinRole() roles.Role { return roles.RoleAdmin }
func (c *BanCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if err := c.Target.validate(); err != nil {
		return err
	}
	if c.Reason == "" {
		return fmt.Errorf("%s requires a reason", c.Action())
	}
	return nil
}

type UnbanCommand struct {
	Actor  Actor
	Target UserRef
	Reason string
}

func (c *UnbanCommand) Action() string      { return "unban" }
func (c *UnbanCommand) MinRole() roles.Role { return roles.RoleAdmin }
func (c *UnbanCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	return c.Target.validate()
}

type UnshadowbanCommand struct {
	Actor  Actor
	Target UserRef
	Reason string
}

func (c *UnshadowbanCommand) Action() string      { return "unshadowban" }
func (c *UnshadowbanCommand) MinRole() roles.Role { return roles.RoleAdmin }
func (c *UnshadowbanCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	return c.Target.validate()
}

type PromoteCommand struct {
	Actor  Actor
	Target UserRef
	Role   roles.Role
}

func (c *PromoteCommand) Action() string      { return "promote" }
func (c *PromoteCommand) MinRole() roles.Role { return roles.RoleSuperAdmin }
func (c *PromoteCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if err := c.Target.validate(); err != nil {
		return err
	}
	for _, r := range roles.AssignableRoles {
		if c.Role == r {
			return nil
		}
	}
	return fmt.Errorf("cannot promote to role %q", c.Role)
}

type DemoteCommand struct {
	Actor  Actor
	Target UserRef
	Role   roles.Role
}

func (c *DemoteCommand) Action() string      { return "demote" }
func (c *DemoteCommand) MinRole() roles.Role { return roles.RoleSuperAdmin }
func (c *DemoteCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if err := c.Target.validate(); err != nil {
		return err
	}
	for _, r := range roles.DemotableRoles {
		if c.Role == r {
			return nil
		}
	}
	return fmt.Errorf("cannot demote to role %q", c.Role)
}

type PinCommand struct {
	Actor     Actor
	ContentID uint
	Unpin     bool
}

func (c *PinCommand) Action() string {
	if c.Unpin {
		return "unpin"
	}
	return "pin"
}
func (c *PinCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *PinCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if c.ContentID == 0 {
		return fmt.Errorf("%s requires a contentId", c.Action())
	}
	return nil
}

type LockCommand struct {
	Actor     Actor
	ContentID uint
	Unlock    bool
}

func (c *LockCommand) Action() string {
	if c.Unlock {
		return "unlock"
	}
	return "lock"
}
func (c *LockCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *LockCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if c.ContentID == 0 {
		return fmt.Errorf("%s requires a contentId", c.Action())
	}
	return nil
}

type DeleteCommand struct {
	Actor     Actor
	ContentID uint
	Reason    string
}

func (c *DeleteCommand) Action() string      { return "delete" }
func (c *DeleteCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *DeleteCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if c.ContentID == 0 {
		return fmt.Errorf("delete requires a contentId")
	}
	if c.Reason == "" {
		return fmt.Errorf("delete requires a reason")
	}
	return nil
}

type ReportCommand struct {
	Actor     Actor
	ContentID uint
	Reason    string
	Notes     string
}

func (c *ReportCommand) Action() string      { return "report" }
func (c *ReportCommand) MinRole() roles.Role { return roles.RoleUser }
func (c *ReportCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if c.ContentID == 0 {
		return fmt.Errorf("report requires a contentId")
	}
	if c.Reason == "" {
		return fmt.Errorf("report requires a reason")
	}
	return nil
}

type ResolveCommand struct {
	Actor      Actor
	ContentID  uint
	Reporter   UserRef
	Resolution string
	Notes      string
}

func (c *ResolveCommand) Action() string      { return "resolve" }
func (c *ResolveCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *ResolveCommand) Validate() error {
	if err := c.Actor.validate(); err != nil {
		return err
	}
	if c.ContentID == 0 {
		return fmt.Errorf("resolve requires a contentId")
	}
	if err := c.Reporter.validate(); err != nil {
		return fmt.Errorf("resolve reporter: %w", err)
	}
	if c.Resolution == "" {
		return fmt.Errorf("resolve requires a resolution")
	}
	return nil
}

type QueueCommand struct {
	Actor Actor
	Limit int
}

func (c *QueueCommand) Action() string      { return "queue" }
func (c *QueueCommand) MinRole() roles.Role { return roles.RoleModerator }
func (c *QueueCommand) Validate() error {
	return c.Actor.validate()
}

// wire shapes for DecodeCommand
type userParams struct {
	Target   UserRef `json:"target"`
	Reason   string  `json:"reason"`
	Duration string  `json:"duration"`
	Role     string  `json:"role"`
}

type contentParams struct {
	ContentID  uint    `json:"contentId"`
	Reason     string  `json:"reason"`
	Notes      string  `json:"notes"`
	Reporter   UserRef `json:"reporter"`
	Resolution string  `json:"resolution"`
	Limit      int     `json:"limit"`
}

// DecodeCommand turns a webhook (action name, JSON params) pair into a
// typed command. Decode errors and unknown action names are invalid
// input; semantic validation happens in the engine via Validate.
func DecodeCommand(actor Actor, action string, params json.RawMessage) (Command, error) {
	if len(params) == 0 {
		params = json.RawMessage("{}")
	}
	decode := func(v any) error {
		if err := json.Unmarshal(params, v); err != nil {
			return fmt.Errorf("malformed params for %q: %w", action, err)
		}
		return nil
	}

	switch action {
	case "warn", "unwarn", "mute", "unmute", "ban", "shadowban", "unban", "unshadowban", "promote", "demote":
		var p userParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		switch action {
		case "warn":
			return &WarnCommand{Actor: actor, Target: p.Target, Reason: p.Reason}, nil
		case "unwarn":
			return &UnwarnCommand{Actor: actor, Target: p.Target, Reason: p.Reason}, nil
		case "mute":
			d, err := time.ParseDuration(p.Duration)
			if err != nil {
				return nil, fmt.Errorf("malformed mute duration %q: %w", p.Duration, err)
			}
			return &MuteCommand{Actor: actor, Target: p.Target, Duration: d, Reason: p.Reason}, nil
		case "unmute":
			return &UnmuteCommand{Actor: actor, Target: p.Target, Reason: p.Reason}, nil
		case "ban":
			return &BanCommand{Actor: actor, Target: p.Target, Shadow: false, Reason: p.Reason}, nil
		case "shadowban":
			return &BanCommand{Actor: actor, Target: p.Target, Shadow: true, Reason: p.Reason}, nil
		case "unban":
			return &UnbanCommand{Actor: actor, Target: p.Target, Reason: p.Reason}, nil
		case "unshadowban":
			return &UnshadowbanCommand{Actor: actor, Target: p.Target, Reason: p.Reason}, nil
		case "promote":
			role, err := roles.ParseRole(p.Role)
			if err != nil {
				return nil, err
			}
			return &PromoteCommand{Actor: actor, Target: p.Target, Role: role}, nil
		case "demote":
			role, err := roles.ParseRole(p.Role)
			if err != nil {
				return nil, err
			}
			return &DemoteCommand{Actor: actor, Target: p.Target, Role: role}, nil
		}
	case "pin", "unpin", "lock", "unlock", "delete", "report", "resolve", "queue":
		var p contentParams
		if err := decode(&p); err != nil {
			return nil, err
		}
		switch action {
		case "pin":
			return &PinCommand{Actor: actor, ContentID: p.ContentID}, nil
		case "unpin":
			return &PinCommand{Actor: actor, ContentID: p.ContentID, Unpin: true}, nil
		case "lock":
			return &LockCommand{Actor: actor, ContentID: p.ContentID}, nil
		case "unlock":
			return &LockCommand{Actor: actor, ContentID: p.ContentID, Unlock: true}, nil
		case "delete":
			return &DeleteCommand{Actor: actor, ContentID: p.ContentID, Reason: p.Reason}, nil
		case "report":
			return &ReportCommand{Actor: actor, ContentID: p.ContentID, Reason: p.Reason, Notes: p.Notes}, nil
		case "resolve":
			return &ResolveCommand{Actor: actor, ContentID: p.ContentID, Reporter: p.Reporter, Resolution: p.Resolution, Notes: p.Notes}, nil
		case "queue":
			return &QueueCommand{Actor: actor, Limit: p.Limit}, nil
		}
	}
	return nil, fmt.Errorf("unknown command: %q", action)
}
