package store

import (
	"context"
	"sync"
	"time"

	"github.com/meshcore/trustengine/internal/identity"
)

// MemStore is an in-memory Store fake for tests: plain maps guarded by a
// single mutex, no persistence.
type MemStore struct {
	mu sync.Mutex

	identities map[string]identity.Identity    // key: userID+"\x00"+address
	trust      map[string]identity.TrustEntry  // key: userID+"\x00"+fpr
	userDef    map[string]string               // key: userID
	groups     map[string]GroupRow             // key: groupIdentity
	members    map[string]map[string]MemberRow // key: groupIdentity -> memberIdentity
	ownMember  map[string]map[string]OwnMembershipRow
	notified   map[string]bool // key: ownAddress+"\x00"+revokedFpr+"\x00"+peerUserID
	replace    map[string]ReplacementRow
	contacts   map[string]map[string]time.Time // key: ownAddress -> peerUserID -> lastSeen
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		identities: make(map[string]identity.Identity),
		trust:      make(map[string]identity.TrustEntry),
		userDef:    make(map[string]string),
		groups:     make(map[string]GroupRow),
		members:    make(map[string]map[string]MemberRow),
		ownMember:  make(map[string]map[string]OwnMembershipRow),
		notified:   make(map[string]bool),
		replace:    make(map[string]ReplacementRow),
		contacts:   make(map[string]map[string]time.Time),
	}
}

func idKey(userID, address string) string  { return userID + "\x00" + address }
func trustKey(userID, fpr string) string   { return userID + "\x00" + fpr }
func notifKey(addr, fpr, peer string) string { return addr + "\x00" + fpr + "\x00" + peer }

// memTx shares MemStore's locked map operations but defers nothing on
// Commit/Rollback — the in-memory fake has no write-ahead log to discard.
type memTx struct{ *MemStore }

func (t *memTx) Commit() error   { return nil }
func (t *memTx) Rollback() error { return nil }

func (s *MemStore) Begin(ctx context.Context) (Tx, error) {
	return &memTx{s}, nil
}

func (s *MemStore) UpdateIdentity(ctx context.Context, id identity.Identity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identities[idKey(id.UserID, id.Address)] = id
	return nil
}

func (s *MemStore) Myself(ctx context.Context, id identity.Identity) (identity.Identity, error) {
	id.Flags |= identity.FlagOwn
	if err := s.UpdateIdentity(ctx, id); err != nil {
		return identity.Identity{}, err
	}
	return s.GetIdentity(ctx, id.UserID, id.Address)
}

func (s *MemStore) SetIdentity(ctx context.Context, id identity.Identity) error {
	return s.UpdateIdentity(ctx, id)
}

func (s *MemStore) GetIdentity(ctx context.Context, userID, address string) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[idKey(userID, address)]
	if !ok {
		return identity.Identity{}, ErrNotFound
	}
	return id, nil
}

func (s *MemStore) GetIdentityByUserID(ctx context.Context, userID string) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.identities {
		if id.UserID == userID {
			return id, nil
		}
	}
	return identity.Identity{}, ErrNotFound
}

func (s *MemStore) GetIdentityByAddress(ctx context.Context, address string) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.identities {
		if id.Address == address {
			return id, nil
		}
	}
	return identity.Identity{}, ErrNotFound
}

func (s *MemStore) GetTrust(ctx context.Context, userID, fpr string) (identity.TrustEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.trust[trustKey(userID, fpr)]
	if !ok {
		return identity.TrustEntry{}, ErrNotFound
	}
	return t, nil
}

func (s *MemStore) SetTrust(ctx context.Context, t identity.TrustEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.trust[trustKey(t.UserID, t.KeyFingerprint)] = t
	return nil
}

func (s *MemStore) ListTrustForUser(ctx context.Context, userID string) ([]identity.TrustEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []identity.TrustEntry
	for _, t := range s.trust {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemStore) ListOwnIdentities(ctx context.Context) ([]identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []identity.Identity
	for _, id := range s.identities {
		if id.IsOwn() {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemStore) ListIdentitiesByFingerprint(ctx context.Context, fpr string) ([]identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []identity.Identity
	for _, id := range s.identities {
		if id.KeyFingerprint == fpr {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *MemStore) ClearTrust(ctx context.Context, userID, fpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.trust, trustKey(userID, fpr))
	return nil
}

func (s *MemStore) DefaultKey(ctx context.Context, userID, address string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.identities[idKey(userID, address)]
	if !ok || id.KeyFingerprint == "" {
		return "", false, nil
	}
	return id.KeyFingerprint, true, nil
}

func (s *MemStore) UserDefaultKey(ctx context.Context, userID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fpr, ok := s.userDef[userID]
	return fpr, ok, nil
}

func (s *MemStore) SetDefaultKey(ctx context.Context, userID, address, fpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.identities[idKey(userID, address)]; ok {
		id.KeyFingerprint = fpr
		s.identities[idKey(userID, address)] = id
	}
	s.userDef[userID] = fpr
	return nil
}

func (s *MemStore) ClearDefaultKey(ctx context.Context, userID, address, fpr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.userDef[userID] == fpr {
		delete(s.userDef, userID)
	}
	return nil
}

func (s *MemStore) RecentContacts(ctx context.Context, ownAddress string) ([]identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.contacts[ownAddress]
	var out []identity.Identity
	for peerUserID := range seen {
		for _, id := range s.identities {
			if id.UserID == peerUserID {
				out = append(out, id)
			}
		}
	}
	return out, nil
}

func (s *MemStore) HasContacted(ctx context.Context, peerUserID, ownAddress string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := s.contacts[ownAddress]
	if seen == nil {
		return false, nil
	}
	_, ok := seen[peerUserID]
	return ok, nil
}

// MarkContacted is a test helper letting callers seed the recent-contact
// ledger directly, since there's no inbound-message path in a fake store.
func (s *MemStore) MarkContacted(ownAddress, peerUserID string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.contacts[ownAddress] == nil {
		s.contacts[ownAddress] = make(map[string]time.Time)
	}
	s.contacts[ownAddress][peerUserID] = at
}

func (s *MemStore) CreateGroup(ctx context.Context, groupIdentity, manager string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[groupIdentity]; ok {
		return ErrAlreadyExists
	}
	s.groups[groupIdentity] = GroupRow{GroupIdentity: groupIdentity, Manager: manager, Active: true, CreatedAt: time.Time{}}
	return nil
}

func (s *MemStore) ExistsGroup(ctx context.Context, groupIdentity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.groups[groupIdentity]
	return ok, nil
}

func (s *MemStore) EnableGroup(ctx context.Context, groupIdentity string) error {
	return s.setGroupActive(groupIdentity, true)
}

func (s *MemStore) DisableGroup(ctx context.Context, groupIdentity string) error {
	return s.setGroupActive(groupIdentity, false)
}

func (s *MemStore) setGroupActive(groupIdentity string, active bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupIdentity]
	if !ok {
		return ErrGroupNotFound
	}
	g.Active = active
	s.groups[groupIdentity] = g
	return nil
}

func (s *MemStore) IsGroupActive(ctx context.Context, groupIdentity string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupIdentity]
	if !ok {
		return false, ErrGroupNotFound
	}
	return g.Active, nil
}

func (s *MemStore) GetGroupManager(ctx context.Context, groupIdentity string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupIdentity]
	if !ok {
		return "", ErrGroupNotFound
	}
	return g.Manager, nil
}

func (s *MemStore) GetGroup(ctx context.Context, groupIdentity string) (GroupRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.groups[groupIdentity]
	if !ok {
		return GroupRow{}, ErrGroupNotFound
	}
	return g, nil
}

func (s *MemStore) AddMember(ctx context.Context, groupIdentity, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.members[groupIdentity] == nil {
		s.members[groupIdentity] = make(map[string]MemberRow)
	}
	if _, ok := s.members[groupIdentity][member]; ok {
		return nil
	}
	s.members[groupIdentity][member] = MemberRow{GroupIdentity: groupIdentity, MemberIdentity: member, Joined: MemberInvited}
	return nil
}

func (s *MemStore) RemoveMember(ctx context.Context, groupIdentity, member string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.members[groupIdentity], member)
	return nil
}

func (s *MemStore) SetMemberJoined(ctx context.Context, groupIdentity, member string, state MemberState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.members[groupIdentity][member]
	if !ok {
		return ErrMemberNotFound
	}
	row.Joined = state
	row.UpdatedAt = time.Time{}
	s.members[groupIdentity][member] = row
	return nil
}

func (s *MemStore) GetMembers(ctx context.Context, groupIdentity string, activeOnly bool) ([]MemberRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []MemberRow
	for _, row := range s.members[groupIdentity] {
		if activeOnly && row.Joined != MemberJoined {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *MemStore) IsInvitedMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.members[groupIdentity][memberUserID]
	return ok && row.Joined == MemberInvited, nil
}

func (s *MemStore) IsActiveMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.members[groupIdentity][memberUserID]
	return ok && row.Joined == MemberJoined, nil
}

func (s *MemStore) AddOwnMembership(ctx context.Context, groupIdentity, manager, ownIdentity string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ownMember[groupIdentity] == nil {
		s.ownMember[groupIdentity] = make(map[string]OwnMembershipRow)
	}
	if _, ok := s.ownMember[groupIdentity][ownIdentity]; ok {
		return nil
	}
	s.ownMember[groupIdentity][ownIdentity] = OwnMembershipRow{
		GroupIdentity: groupIdentity, OwnIdentity: ownIdentity, Manager: manager, Joined: false, Active: true,
	}
	return nil
}

func (s *MemStore) SetOwnMembershipJoined(ctx context.Context, groupIdentity, ownIdentity string) error {
	return s.setOwnJoined(groupIdentity, ownIdentity, true)
}

func (s *MemStore) SetOwnMembershipLeft(ctx context.Context, groupIdentity, ownIdentity string) error {
	return s.setOwnJoined(groupIdentity, ownIdentity, false)
}

func (s *MemStore) setOwnJoined(groupIdentity, ownIdentity string, joined bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.ownMember[groupIdentity][ownIdentity]
	if !ok {
		return ErrMembershipNotFound
	}
	row.Joined = joined
	s.ownMember[groupIdentity][ownIdentity] = row
	return nil
}

func (s *MemStore) GetOwnMembership(ctx context.Context, groupIdentity, ownIdentity string) (OwnMembershipRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	row, ok := s.ownMember[groupIdentity][ownIdentity]
	if !ok {
		return OwnMembershipRow{}, ErrMembershipNotFound
	}
	return row, nil
}

func (s *MemStore) ListOwnMemberships(ctx context.Context, groupIdentity string) ([]OwnMembershipRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []OwnMembershipRow
	for _, row := range s.ownMember[groupIdentity] {
		out = append(out, row)
	}
	return out, nil
}

func (s *MemStore) SetNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notified[notifKey(ownAddress, revokedFpr, peerUserID)] = true
	return nil
}

func (s *MemStore) HasNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.notified[notifKey(ownAddress, revokedFpr, peerUserID)], nil
}

func (s *MemStore) SetReplacement(ctx context.Context, oldFpr, newFpr string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replace[oldFpr] = ReplacementRow{RevokedFpr: oldFpr, ReplacementFpr: newFpr, At: at}
	return nil
}

func (s *MemStore) GetReplacement(ctx context.Context, oldFpr string) (ReplacementRow, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.replace[oldFpr]
	return r, ok, nil
}
