// Package memstore provides minimal in-memory stand-ins for the external
// persistence collaborators the core packages depend on (live-TV accounts
// and lineups, usenet mounts). A real deployment replaces these with a
// durable store; the database/migration stack to do so is explicitly out of
// scope for this module (see DESIGN.md).
package memstore

import (
	"sync"

	"github.com/relaycore/relaycore/models"
	"github.com/relaycore/relaycore/services/usenet"
)

// Accounts is an in-memory AccountLookup.
type Accounts struct {
	mu       sync.RWMutex
	accounts map[string]models.LiveAccount
}

// NewAccounts builds an Accounts store seeded with the given accounts.
func NewAccounts(seed []models.LiveAccount) *Accounts {
	a := &Accounts{accounts: make(map[string]models.LiveAccount, len(seed))}
	for _, acc := range seed {
		a.accounts[acc.ID] = acc
	}
	return a
}

func (a *Accounts) GetAccount(accountID string) (models.LiveAccount, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	acc, ok := a.accounts[accountID]
	return acc, ok
}

// Put registers or replaces an account.
func (a *Accounts) Put(acc models.LiveAccount) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.accounts[acc.ID] = acc
}

// Lineups is an in-memory LineupLookup.
type Lineups struct {
	mu      sync.RWMutex
	lineups map[string]models.LineupItem
}

// NewLineups builds an empty Lineups store.
func NewLineups() *Lineups {
	return &Lineups{lineups: make(map[string]models.LineupItem)}
}

func (l *Lineups) GetLineupItem(id string) (models.LineupItem, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	item, ok := l.lineups[id]
	return item, ok
}

// Put registers or replaces a lineup item.
func (l *Lineups) Put(item models.LineupItem) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lineups[item.ID] = item
}

// Mounts is an in-memory usenet.MountManager.
type Mounts struct {
	mu     sync.RWMutex
	mounts map[string]*usenet.MountInfo
}

// NewMounts builds an empty Mounts store.
func NewMounts() *Mounts {
	return &Mounts{mounts: make(map[string]*usenet.MountInfo)}
}

func (m *Mounts) GetMount(id string) (*usenet.MountInfo, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	mount, ok := m.mounts[id]
	return mount, ok
}

// TouchMount is a no-op in-memory placeholder for last-access bookkeeping;
// a durable store would bump an access timestamp here for GC purposes.
func (m *Mounts) TouchMount(id string) {}

// PutMount registers or replaces a mount, satisfying usenet.MountWriter so
// usenet.Service.IngestNzb can persist a freshly parsed mount directly.
func (m *Mounts) PutMount(mount *usenet.MountInfo) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mounts[mount.ID] = mount
}
