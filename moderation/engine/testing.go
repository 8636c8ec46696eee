package engine

import (
	"context"
	"log/slog"
	"time"

	"github.com/commentum/commentum/models"
	"github.com/commentum/commentum/moderation/configstore"
	"github.com/commentum/commentum/moderation/countstore"
	"github.com/commentum/commentum/moderation/reports"
	"github.com/commentum/commentum/moderation/roles"
	"github.com/commentum/commentum/moderation/store"
)

// TestFixture wires an engine over in-memory stores. Intentionally
// exported, for use in other packages.
type TestFixture struct {
	Engine   *Engine
	Store    *store.MemStore
	Config   *configstore.Provider
	Registry *roles.Registry
	Counters countstore.CountStore
}

func EngineTestFixture() *TestFixture {
	logger := slog.Default()
	mem := store.NewMemStore()
	cache := configstore.NewMemCache(100, time.Hour)
	cfg := configstore.NewProvider(configstore.NewMemStore(), cache, logger)
	registry := roles.NewRegistry(cfg, logger)
	counters := countstore.NewMemCountStore()
	eng := &Engine{
		Logger:   logger,
		Accounts: mem,
		Contents: mem,
		Audit:    mem,
		Registry: registry,
		Config:   cfg,
		Counters: counters,
		Ledger:   reports.NewLedger(mem, logger),
		Applier:  NewCrossPlatformApplier(mem, logger),
	}
	return &TestFixture{
		Engine:   eng,
		Store:    mem,
		Config:   cfg,
		Registry: registry,
		Counters: counters,
	}
}

// MustAddIdentity registers a logical user with one platform account per
// (clientType, externalUserID) pair, returning the identity ID.
func (f *TestFixture) MustAddIdentity(handle string, accounts map[string]string) uint {
	ctx := context.Background()
	ident := &models.Identity{Handle: handle}
	if err := f.Store.CreateIdentity(ctx, ident); err != nil {
		panic(err)
	}
	for clientType, userID := range accounts {
		acct := &models.PlatformAccount{
			IdentityID:     ident.ID,
			ClientType:     clientType,
			ExternalUserID: userID,
		}
		if err := f.Store.CreateAccount(ctx, acct); err != nil {
			panic(err)
		}
	}
	return ident.ID
}

func (f *TestFixture) MustAssignRole(identityID uint, role roles.Role) {
	if err := f.Registry.Assign(context.Background(), identityKey(identityID), role); err != nil {
		panic(err)
	}
}

func (f *TestFixture) MustAddContent(authorID uint, body string) uint {
	c := &models.Content{AuthorID: authorID, Body: body}
	if err := f.Store.CreateContent(context.Background(), c); err != nil {
		panic(err)
	}
	return c.ID
}
