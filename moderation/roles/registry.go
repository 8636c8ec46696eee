package roles

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/commentum/commentum/moderation/configstore"
)

// Config keys holding the membership sets, as JSON string arrays of
// identity keys.
const (
	KeyModerators  = "roles/moderator"
	KeyAdmins      = "roles/admin"
	KeySuperAdmins = "roles/super_admin"
	// read-only from here; owners are granted in deploy config
	KeyOwners = "roles/owner"
)

var setKeys = map[Role]string{
	RoleModerator:  KeyModerators,
	RoleAdmin:      KeyAdmins,
	RoleSuperAdmin: KeySuperAdmins,
}

// Registry maintains the mutually-exclusive membership of the privileged
// roles. An identity appears in at most one of the three assignable sets
// at any observation point; all three sets are rewritten in a single
// config transaction on every assignment.
type Registry struct {
	Config *configstore.Provider
	Logger *slog.Logger
}

func NewRegistry(config *configstore.Provider, logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		Config: config,
		Logger: logger,
	}
}

// Assign moves an identity into the membership set for role, removing it
// from the other privileged sets. Assigning RoleUser removes it from all
// three. Owner is rejected: it is granted out of band and never managed
// here.
//
// The rewrite of the three sets happens inside one config-store update:
// the current members are re-read in the same transaction that writes
// them back, never from the TTL cache, so concurrent assignments (from
// other goroutines or other processes) cannot erase each other.
func (r *Registry) Assign(ctx context.Context, identity string, role Role) error {
	if identity == "" {
		return fmt.Errorf("empty identity")
	}
	if role == RoleOwner {
		return fmt.Errorf("owner role is not assignable")
	}
	if !role.Valid() {
		return fmt.Errorf("unknown role: %q", role)
	}

	keys := []string{KeyModerators, KeyAdmins, KeySuperAdmins}
	err := r.Config.Update(ctx, keys, func(cur map[string]string) (map[string]string, error) {
		vals := make(map[string]string, len(setKeys))
		for setRole, key := range setKeys {
			members, err := parseSet(key, cur[key])
			if err != nil {
				return nil, err
			}
			members = slices.DeleteFunc(members, func(m string) bool { return m == identity })
			if setRole == role {
				members = append(members, identity)
			}
			raw, err := json.Marshal(members)
			if err != nil {
				return nil, err
			}
			vals[key] = string(raw)
		}
		return vals, nil
	})
	if err != nil {
		return fmt.Errorf("writing role sets: %w", err)
	}
	r.Logger.Info("role assigned", "identity", identity, "role", role)
	return nil
}

func (r *Registry) MembersOf(ctx context.Context, role Role) ([]string, error) {
	key, ok := setKeys[role]
	if !ok {
		if role == RoleOwner {
			key = KeyOwners
		} else {
			return nil, fmt.Errorf("role has no membership set: %q", role)
		}
	}
	return r.loadSet(ctx, key)
}

// RoleOf returns the current role of an identity, checking the highest
// set first. Identities in no set are plain users.
func (r *Registry) RoleOf(ctx context.Context, identity string) (Role, error) {
	for _, check := range []struct {
		key  string
		role Role
	}{
		{KeyOwners, RoleOwner},
		{KeySuperAdmins, RoleSuperAdmin},
		{KeyAdmins, RoleAdmin},
		{KeyModerators, RoleModerator},
	} {
		members, err := r.loadSet(ctx, check.key)
		if err != nil {
			return RoleUser, err
		}
		if slices.Contains(members, identity) {
			return check.role, nil
		}
	}
	return RoleUser, nil
}

// loadSet reads through the provider cache; fine for role lookups, where
// staleness is TTL-bounded, but never used by Assign.
func (r *Registry) loadSet(ctx context.Context, key string) ([]string, error) {
	raw, err := r.Config.Get(ctx, key)
	if errors.Is(err, configstore.ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	return parseSet(key, raw)
}

func parseSet(key, raw string) ([]string, error) {
	if raw == "" {
		return []string{}, nil
	}
	var members []string
	if err := json.Unmarshal([]byte(raw), &members); err != nil {
		return nil, fmt.Errorf("malformed role set %s: %w", key, err)
	}
	return members, nil
}
