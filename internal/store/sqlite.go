package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/meshcore/trustengine/internal/identity"
	"github.com/meshcore/trustengine/internal/logging"
)

var log = logging.Logger("store")

// querier is satisfied by both *sql.DB and *sql.Tx, letting the bulk of the
// query logic below run identically whether or not it's inside a Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS identities (
	user_id     TEXT NOT NULL,
	address     TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	display_name TEXT NOT NULL DEFAULT '',
	flags       INTEGER NOT NULL DEFAULT 0,
	comm_type   INTEGER NOT NULL DEFAULT 0,
	confirmed   INTEGER NOT NULL DEFAULT 0,
	default_key TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (user_id, address)
);

CREATE TABLE IF NOT EXISTS trust (
	user_id     TEXT NOT NULL,
	fingerprint TEXT NOT NULL,
	comm_type   INTEGER NOT NULL,
	confirmed   INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (user_id, fingerprint)
);

CREATE TABLE IF NOT EXISTS user_defaults (
	user_id     TEXT PRIMARY KEY,
	fingerprint TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS groups (
	group_identity TEXT PRIMARY KEY,
	manager        TEXT NOT NULL,
	active         INTEGER NOT NULL DEFAULT 1,
	created_at     DATETIME DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS members (
	group_identity  TEXT NOT NULL,
	member_identity TEXT NOT NULL,
	joined          INTEGER NOT NULL DEFAULT 0,
	updated_at      DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (group_identity, member_identity)
);

CREATE TABLE IF NOT EXISTS own_membership (
	group_identity TEXT NOT NULL,
	own_identity   TEXT NOT NULL,
	manager        TEXT NOT NULL,
	joined         INTEGER NOT NULL DEFAULT 0,
	active         INTEGER NOT NULL DEFAULT 1,
	PRIMARY KEY (group_identity, own_identity)
);

CREATE TABLE IF NOT EXISTS notified_contacts (
	own_address  TEXT NOT NULL,
	revoked_fpr  TEXT NOT NULL,
	peer_user_id TEXT NOT NULL,
	notified_at  DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (own_address, revoked_fpr, peer_user_id)
);

CREATE TABLE IF NOT EXISTS replacements (
	old_fpr TEXT PRIMARY KEY,
	new_fpr TEXT NOT NULL,
	at      DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS contacts_seen (
	own_address TEXT NOT NULL,
	peer_user_id TEXT NOT NULL,
	last_seen    DATETIME DEFAULT CURRENT_TIMESTAMP,
	PRIMARY KEY (own_address, peer_user_id)
);
`

// SQLStore is the sqlite-backed Store implementation: one struct around a
// *sql.DB with foreign keys, WAL mode and a busy timeout configured on open.
type SQLStore struct {
	db *sql.DB
}

// Open opens or creates the sqlite database under dir/trustengine.db.
func Open(dir string) (*SQLStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	path := filepath.Join(dir, "trustengine.db")

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec(`
		PRAGMA foreign_keys = ON;
		PRAGMA journal_mode = WAL;
		PRAGMA busy_timeout = 5000;
	`); err != nil {
		db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	log.Infof("store: opened %s", path)
	return &SQLStore{db: db}, nil
}

func (s *SQLStore) Close() error { return s.db.Close() }

func (s *SQLStore) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &sqlTx{q: tx, tx: tx}, nil
}

// --- Store method set, delegated to the shared q-based implementation ---

func (s *SQLStore) UpdateIdentity(ctx context.Context, id identity.Identity) error {
	return updateIdentity(ctx, s.db, id)
}
func (s *SQLStore) Myself(ctx context.Context, id identity.Identity) (identity.Identity, error) {
	return myself(ctx, s.db, id)
}
func (s *SQLStore) SetIdentity(ctx context.Context, id identity.Identity) error {
	return updateIdentity(ctx, s.db, id)
}
func (s *SQLStore) GetIdentity(ctx context.Context, userID, address string) (identity.Identity, error) {
	return getIdentity(ctx, s.db, userID, address)
}
func (s *SQLStore) GetIdentityByUserID(ctx context.Context, userID string) (identity.Identity, error) {
	return getIdentityByUserID(ctx, s.db, userID)
}
func (s *SQLStore) GetIdentityByAddress(ctx context.Context, address string) (identity.Identity, error) {
	return getIdentityByAddress(ctx, s.db, address)
}
func (s *SQLStore) GetTrust(ctx context.Context, userID, fpr string) (identity.TrustEntry, error) {
	return getTrust(ctx, s.db, userID, fpr)
}
func (s *SQLStore) ListTrustForUser(ctx context.Context, userID string) ([]identity.TrustEntry, error) {
	return listTrustForUser(ctx, s.db, userID)
}
func (s *SQLStore) ListOwnIdentities(ctx context.Context) ([]identity.Identity, error) {
	return listOwnIdentities(ctx, s.db)
}
func (s *SQLStore) ListIdentitiesByFingerprint(ctx context.Context, fpr string) ([]identity.Identity, error) {
	return listIdentitiesByFingerprint(ctx, s.db, fpr)
}
func (s *SQLStore) SetTrust(ctx context.Context, t identity.TrustEntry) error {
	return setTrust(ctx, s.db, t)
}
func (s *SQLStore) ClearTrust(ctx context.Context, userID, fpr string) error {
	return clearTrust(ctx, s.db, userID, fpr)
}
func (s *SQLStore) DefaultKey(ctx context.Context, userID, address string) (string, bool, error) {
	return defaultKey(ctx, s.db, userID, address)
}
func (s *SQLStore) UserDefaultKey(ctx context.Context, userID string) (string, bool, error) {
	return userDefaultKey(ctx, s.db, userID)
}
func (s *SQLStore) SetDefaultKey(ctx context.Context, userID, address, fpr string) error {
	return setDefaultKey(ctx, s.db, userID, address, fpr)
}
func (s *SQLStore) ClearDefaultKey(ctx context.Context, userID, address, fpr string) error {
	return clearDefaultKey(ctx, s.db, userID, address, fpr)
}
func (s *SQLStore) RecentContacts(ctx context.Context, ownAddress string) ([]identity.Identity, error) {
	return recentContacts(ctx, s.db, ownAddress)
}
func (s *SQLStore) HasContacted(ctx context.Context, peerUserID, ownAddress string) (bool, error) {
	return hasContacted(ctx, s.db, peerUserID, ownAddress)
}

func (s *SQLStore) CreateGroup(ctx context.Context, groupIdentity, manager string) error {
	return createGroup(ctx, s.db, groupIdentity, manager)
}
func (s *SQLStore) ExistsGroup(ctx context.Context, groupIdentity string) (bool, error) {
	return existsGroup(ctx, s.db, groupIdentity)
}
func (s *SQLStore) EnableGroup(ctx context.Context, groupIdentity string) error {
	return setGroupActive(ctx, s.db, groupIdentity, true)
}
func (s *SQLStore) DisableGroup(ctx context.Context, groupIdentity string) error {
	return setGroupActive(ctx, s.db, groupIdentity, false)
}
func (s *SQLStore) IsGroupActive(ctx context.Context, groupIdentity string) (bool, error) {
	return isGroupActive(ctx, s.db, groupIdentity)
}
func (s *SQLStore) GetGroupManager(ctx context.Context, groupIdentity string) (string, error) {
	return getGroupManager(ctx, s.db, groupIdentity)
}
func (s *SQLStore) GetGroup(ctx context.Context, groupIdentity string) (GroupRow, error) {
	return getGroup(ctx, s.db, groupIdentity)
}

func (s *SQLStore) AddMember(ctx context.Context, groupIdentity, member string) error {
	return addMember(ctx, s.db, groupIdentity, member)
}
func (s *SQLStore) RemoveMember(ctx context.Context, groupIdentity, member string) error {
	return removeMember(ctx, s.db, groupIdentity, member)
}
func (s *SQLStore) SetMemberJoined(ctx context.Context, groupIdentity, member string, state MemberState) error {
	return setMemberJoined(ctx, s.db, groupIdentity, member, state)
}
func (s *SQLStore) GetMembers(ctx context.Context, groupIdentity string, activeOnly bool) ([]MemberRow, error) {
	return getMembers(ctx, s.db, groupIdentity, activeOnly)
}
func (s *SQLStore) IsInvitedMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error) {
	return isMemberInState(ctx, s.db, groupIdentity, memberUserID, MemberInvited)
}
func (s *SQLStore) IsActiveMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error) {
	return isMemberInState(ctx, s.db, groupIdentity, memberUserID, MemberJoined)
}

func (s *SQLStore) AddOwnMembership(ctx context.Context, groupIdentity, manager, ownIdentity string) error {
	return addOwnMembership(ctx, s.db, groupIdentity, manager, ownIdentity)
}
func (s *SQLStore) SetOwnMembershipJoined(ctx context.Context, groupIdentity, ownIdentity string) error {
	return setOwnMembershipJoined(ctx, s.db, groupIdentity, ownIdentity, true)
}
func (s *SQLStore) SetOwnMembershipLeft(ctx context.Context, groupIdentity, ownIdentity string) error {
	return setOwnMembershipJoined(ctx, s.db, groupIdentity, ownIdentity, false)
}
func (s *SQLStore) GetOwnMembership(ctx context.Context, groupIdentity, ownIdentity string) (OwnMembershipRow, error) {
	return getOwnMembership(ctx, s.db, groupIdentity, ownIdentity)
}
func (s *SQLStore) ListOwnMemberships(ctx context.Context, groupIdentity string) ([]OwnMembershipRow, error) {
	return listOwnMemberships(ctx, s.db, groupIdentity)
}

func (s *SQLStore) SetNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) error {
	return setNotifiedContact(ctx, s.db, ownAddress, revokedFpr, peerUserID)
}
func (s *SQLStore) HasNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) (bool, error) {
	return hasNotifiedContact(ctx, s.db, ownAddress, revokedFpr, peerUserID)
}
func (s *SQLStore) SetReplacement(ctx context.Context, oldFpr, newFpr string, at time.Time) error {
	return setReplacement(ctx, s.db, oldFpr, newFpr, at)
}
func (s *SQLStore) GetReplacement(ctx context.Context, oldFpr string) (ReplacementRow, bool, error) {
	return getReplacement(ctx, s.db, oldFpr)
}

// sqlTx wraps a live *sql.Tx and satisfies Tx by reusing the same
// q-based query helpers SQLStore uses.
type sqlTx struct {
	q  querier
	tx *sql.Tx
}

func (t *sqlTx) Commit() error   { return t.tx.Commit() }
func (t *sqlTx) Rollback() error { return t.tx.Rollback() }

func (t *sqlTx) Begin(ctx context.Context) (Tx, error) {
	return nil, fmt.Errorf("store: nested transactions are not supported")
}
func (t *sqlTx) UpdateIdentity(ctx context.Context, id identity.Identity) error {
	return updateIdentity(ctx, t.q, id)
}
func (t *sqlTx) Myself(ctx context.Context, id identity.Identity) (identity.Identity, error) {
	return myself(ctx, t.q, id)
}
func (t *sqlTx) SetIdentity(ctx context.Context, id identity.Identity) error {
	return updateIdentity(ctx, t.q, id)
}
func (t *sqlTx) GetIdentity(ctx context.Context, userID, address string) (identity.Identity, error) {
	return getIdentity(ctx, t.q, userID, address)
}
func (t *sqlTx) GetIdentityByUserID(ctx context.Context, userID string) (identity.Identity, error) {
	return getIdentityByUserID(ctx, t.q, userID)
}
func (t *sqlTx) GetIdentityByAddress(ctx context.Context, address string) (identity.Identity, error) {
	return getIdentityByAddress(ctx, t.q, address)
}
func (t *sqlTx) GetTrust(ctx context.Context, userID, fpr string) (identity.TrustEntry, error) {
	return getTrust(ctx, t.q, userID, fpr)
}
func (t *sqlTx) ListTrustForUser(ctx context.Context, userID string) ([]identity.TrustEntry, error) {
	return listTrustForUser(ctx, t.q, userID)
}
func (t *sqlTx) ListOwnIdentities(ctx context.Context) ([]identity.Identity, error) {
	return listOwnIdentities(ctx, t.q)
}
func (t *sqlTx) ListIdentitiesByFingerprint(ctx context.Context, fpr string) ([]identity.Identity, error) {
	return listIdentitiesByFingerprint(ctx, t.q, fpr)
}
func (t *sqlTx) SetTrust(ctx context.Context, tr identity.TrustEntry) error {
	return setTrust(ctx, t.q, tr)
}
func (t *sqlTx) ClearTrust(ctx context.Context, userID, fpr string) error {
	return clearTrust(ctx, t.q, userID, fpr)
}
func (t *sqlTx) DefaultKey(ctx context.Context, userID, address string) (string, bool, error) {
	return defaultKey(ctx, t.q, userID, address)
}
func (t *sqlTx) UserDefaultKey(ctx context.Context, userID string) (string, bool, error) {
	return userDefaultKey(ctx, t.q, userID)
}
func (t *sqlTx) SetDefaultKey(ctx context.Context, userID, address, fpr string) error {
	return setDefaultKey(ctx, t.q, userID, address, fpr)
}
func (t *sqlTx) ClearDefaultKey(ctx context.Context, userID, address, fpr string) error {
	return clearDefaultKey(ctx, t.q, userID, address, fpr)
}
func (t *sqlTx) RecentContacts(ctx context.Context, ownAddress string) ([]identity.Identity, error) {
	return recentContacts(ctx, t.q, ownAddress)
}
func (t *sqlTx) HasContacted(ctx context.Context, peerUserID, ownAddress string) (bool, error) {
	return hasContacted(ctx, t.q, peerUserID, ownAddress)
}
func (t *sqlTx) CreateGroup(ctx context.Context, groupIdentity, manager string) error {
	return createGroup(ctx, t.q, groupIdentity, manager)
}
func (t *sqlTx) ExistsGroup(ctx context.Context, groupIdentity string) (bool, error) {
	return existsGroup(ctx, t.q, groupIdentity)
}
func (t *sqlTx) EnableGroup(ctx context.Context, groupIdentity string) error {
	return setGroupActive(ctx, t.q, groupIdentity, true)
}
func (t *sqlTx) DisableGroup(ctx context.Context, groupIdentity string) error {
	return setGroupActive(ctx, t.q, groupIdentity, false)
}
func (t *sqlTx) IsGroupActive(ctx context.Context, groupIdentity string) (bool, error) {
	return isGroupActive(ctx, t.q, groupIdentity)
}
func (t *sqlTx) GetGroupManager(ctx context.Context, groupIdentity string) (string, error) {
	return getGroupManager(ctx, t.q, groupIdentity)
}
func (t *sqlTx) GetGroup(ctx context.Context, groupIdentity string) (GroupRow, error) {
	return getGroup(ctx, t.q, groupIdentity)
}
func (t *sqlTx) AddMember(ctx context.Context, groupIdentity, member string) error {
	return addMember(ctx, t.q, groupIdentity, member)
}
func (t *sqlTx) RemoveMember(ctx context.Context, groupIdentity, member string) error {
	return removeMember(ctx, t.q, groupIdentity, member)
}
func (t *sqlTx) SetMemberJoined(ctx context.Context, groupIdentity, member string, state MemberState) error {
	return setMemberJoined(ctx, t.q, groupIdentity, member, state)
}
func (t *sqlTx) GetMembers(ctx context.Context, groupIdentity string, activeOnly bool) ([]MemberRow, error) {
	return getMembers(ctx, t.q, groupIdentity, activeOnly)
}
func (t *sqlTx) IsInvitedMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error) {
	return isMemberInState(ctx, t.q, groupIdentity, memberUserID, MemberInvited)
}
func (t *sqlTx) IsActiveMember(ctx context.Context, groupIdentity, memberUserID string) (bool, error) {
	return isMemberInState(ctx, t.q, groupIdentity, memberUserID, MemberJoined)
}
func (t *sqlTx) AddOwnMembership(ctx context.Context, groupIdentity, manager, ownIdentity string) error {
	return addOwnMembership(ctx, t.q, groupIdentity, manager, ownIdentity)
}
func (t *sqlTx) SetOwnMembershipJoined(ctx context.Context, groupIdentity, ownIdentity string) error {
	return setOwnMembershipJoined(ctx, t.q, groupIdentity, ownIdentity, true)
}
func (t *sqlTx) SetOwnMembershipLeft(ctx context.Context, groupIdentity, ownIdentity string) error {
	return setOwnMembershipJoined(ctx, t.q, groupIdentity, ownIdentity, false)
}
func (t *sqlTx) GetOwnMembership(ctx context.Context, groupIdentity, ownIdentity string) (OwnMembershipRow, error) {
	return getOwnMembership(ctx, t.q, groupIdentity, ownIdentity)
}
func (t *sqlTx) ListOwnMemberships(ctx context.Context, groupIdentity string) ([]OwnMembershipRow, error) {
	return listOwnMemberships(ctx, t.q, groupIdentity)
}
func (t *sqlTx) SetNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) error {
	return setNotifiedContact(ctx, t.q, ownAddress, revokedFpr, peerUserID)
}
func (t *sqlTx) HasNotifiedContact(ctx context.Context, ownAddress, revokedFpr, peerUserID string) (bool, error) {
	return hasNotifiedContact(ctx, t.q, ownAddress, revokedFpr, peerUserID)
}
func (t *sqlTx) SetReplacement(ctx context.Context, oldFpr, newFpr string, at time.Time) error {
	return setReplacement(ctx, t.q, oldFpr, newFpr, at)
}
func (t *sqlTx) GetReplacement(ctx context.Context, oldFpr string) (ReplacementRow, bool, error) {
	return getReplacement(ctx, t.q, oldFpr)
}

// --- shared query implementations, operating against a querier ---

func updateIdentity(ctx context.Context, q querier, id identity.Identity) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO identities (user_id, address, fingerprint, display_name, flags, comm_type, confirmed)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, address) DO UPDATE SET
			fingerprint  = excluded.fingerprint,
			display_name = CASE WHEN excluded.display_name = '' THEN identities.display_name ELSE excluded.display_name END,
			flags        = excluded.flags,
			comm_type    = excluded.comm_type,
			confirmed    = excluded.confirmed`,
		id.UserID, id.Address, id.KeyFingerprint, id.DisplayName, id.Flags, id.CommType, boolToInt(id.Confirmed),
	)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	return nil
}

func myself(ctx context.Context, q querier, id identity.Identity) (identity.Identity, error) {
	id.Flags |= identity.FlagOwn
	if err := updateIdentity(ctx, q, id); err != nil {
		return identity.Identity{}, err
	}
	return getIdentity(ctx, q, id.UserID, id.Address)
}

func getIdentityByUserID(ctx context.Context, q querier, userID string) (identity.Identity, error) {
	var id identity.Identity
	var confirmed int
	err := q.QueryRowContext(ctx, `
		SELECT user_id, address, fingerprint, display_name, flags, comm_type, confirmed
		FROM identities WHERE user_id = ? LIMIT 1`, userID,
	).Scan(&id.UserID, &id.Address, &id.KeyFingerprint, &id.DisplayName, &id.Flags, &id.CommType, &confirmed)
	if err == sql.ErrNoRows {
		return identity.Identity{}, ErrNotFound
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("get identity by user_id: %w", err)
	}
	id.Confirmed = confirmed != 0
	return id, nil
}

func getIdentityByAddress(ctx context.Context, q querier, address string) (identity.Identity, error) {
	var id identity.Identity
	var confirmed int
	err := q.QueryRowContext(ctx, `
		SELECT user_id, address, fingerprint, display_name, flags, comm_type, confirmed
		FROM identities WHERE address = ? LIMIT 1`, address,
	).Scan(&id.UserID, &id.Address, &id.KeyFingerprint, &id.DisplayName, &id.Flags, &id.CommType, &confirmed)
	if err == sql.ErrNoRows {
		return identity.Identity{}, ErrNotFound
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("get identity by address: %w", err)
	}
	id.Confirmed = confirmed != 0
	return id, nil
}

func getIdentity(ctx context.Context, q querier, userID, address string) (identity.Identity, error) {
	var id identity.Identity
	var confirmed int
	err := q.QueryRowContext(ctx, `
		SELECT user_id, address, fingerprint, display_name, flags, comm_type, confirmed
		FROM identities WHERE user_id = ? AND address = ?`, userID, address,
	).Scan(&id.UserID, &id.Address, &id.KeyFingerprint, &id.DisplayName, &id.Flags, &id.CommType, &confirmed)
	if err == sql.ErrNoRows {
		return identity.Identity{}, ErrNotFound
	}
	if err != nil {
		return identity.Identity{}, fmt.Errorf("get identity: %w", err)
	}
	id.Confirmed = confirmed != 0
	return id, nil
}

func getTrust(ctx context.Context, q querier, userID, fpr string) (identity.TrustEntry, error) {
	var t identity.TrustEntry
	var confirmed int
	err := q.QueryRowContext(ctx, `
		SELECT user_id, fingerprint, comm_type, confirmed FROM trust WHERE user_id = ? AND fingerprint = ?`,
		userID, fpr,
	).Scan(&t.UserID, &t.KeyFingerprint, &t.CommType, &confirmed)
	if err == sql.ErrNoRows {
		return identity.TrustEntry{}, ErrNotFound
	}
	if err != nil {
		return identity.TrustEntry{}, fmt.Errorf("get trust: %w", err)
	}
	t.Confirmed = confirmed != 0
	return t, nil
}

func setTrust(ctx context.Context, q querier, t identity.TrustEntry) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO trust (user_id, fingerprint, comm_type, confirmed) VALUES (?, ?, ?, ?)
		ON CONFLICT(user_id, fingerprint) DO UPDATE SET comm_type = excluded.comm_type, confirmed = excluded.confirmed`,
		t.UserID, t.KeyFingerprint, t.CommType, boolToInt(t.Confirmed),
	)
	if err != nil {
		return fmt.Errorf("set trust: %w", err)
	}
	return nil
}

func clearTrust(ctx context.Context, q querier, userID, fpr string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM trust WHERE user_id = ? AND fingerprint = ?`, userID, fpr)
	if err != nil {
		return fmt.Errorf("clear trust: %w", err)
	}
	return nil
}

func listTrustForUser(ctx context.Context, q querier, userID string) ([]identity.TrustEntry, error) {
	rows, err := q.QueryContext(ctx, `SELECT user_id, fingerprint, comm_type, confirmed FROM trust WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("list trust for user: %w", err)
	}
	defer rows.Close()
	var out []identity.TrustEntry
	for rows.Next() {
		var t identity.TrustEntry
		var confirmed int
		if err := rows.Scan(&t.UserID, &t.KeyFingerprint, &t.CommType, &confirmed); err != nil {
			return nil, fmt.Errorf("list trust for user: %w", err)
		}
		t.Confirmed = confirmed != 0
		out = append(out, t)
	}
	return out, rows.Err()
}

func listOwnIdentities(ctx context.Context, q querier) ([]identity.Identity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, address, fingerprint, display_name, flags, comm_type, confirmed
		FROM identities WHERE flags & 1 != 0`)
	if err != nil {
		return nil, fmt.Errorf("list own identities: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

func listIdentitiesByFingerprint(ctx context.Context, q querier, fpr string) ([]identity.Identity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT user_id, address, fingerprint, display_name, flags, comm_type, confirmed
		FROM identities WHERE fingerprint = ?`, fpr)
	if err != nil {
		return nil, fmt.Errorf("list identities by fingerprint: %w", err)
	}
	defer rows.Close()
	return scanIdentities(rows)
}

func scanIdentities(rows *sql.Rows) ([]identity.Identity, error) {
	var out []identity.Identity
	for rows.Next() {
		var id identity.Identity
		var confirmed int
		if err := rows.Scan(&id.UserID, &id.Address, &id.KeyFingerprint, &id.DisplayName, &id.Flags, &id.CommType, &confirmed); err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		id.Confirmed = confirmed != 0
		out = append(out, id)
	}
	return out, rows.Err()
}

func defaultKey(ctx context.Context, q querier, userID, address string) (string, bool, error) {
	var fpr string
	err := q.QueryRowContext(ctx, `SELECT default_key FROM identities WHERE user_id = ? AND address = ?`, userID, address).Scan(&fpr)
	if err == sql.ErrNoRows || fpr == "" {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("default key: %w", err)
	}
	return fpr, true, nil
}

func userDefaultKey(ctx context.Context, q querier, userID string) (string, bool, error) {
	var fpr string
	err := q.QueryRowContext(ctx, `SELECT fingerprint FROM user_defaults WHERE user_id = ?`, userID).Scan(&fpr)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("user default key: %w", err)
	}
	return fpr, true, nil
}

func setDefaultKey(ctx context.Context, q querier, userID, address, fpr string) error {
	if _, err := q.ExecContext(ctx, `UPDATE identities SET default_key = ? WHERE user_id = ? AND address = ?`, fpr, userID, address); err != nil {
		return fmt.Errorf("set default key: %w", err)
	}
	_, err := q.ExecContext(ctx, `
		INSERT INTO user_defaults (user_id, fingerprint) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET fingerprint = excluded.fingerprint`, userID, fpr)
	if err != nil {
		return fmt.Errorf("set user default key: %w", err)
	}
	return nil
}

func clearDefaultKey(ctx context.Context, q querier, userID, address, fpr string) error {
	if _, err := q.ExecContext(ctx, `
		UPDATE identities SET default_key = '' WHERE user_id = ? AND address = ? AND default_key = ?`,
		userID, address, fpr); err != nil {
		return fmt.Errorf("clear default key: %w", err)
	}
	if _, err := q.ExecContext(ctx, `DELETE FROM user_defaults WHERE user_id = ? AND fingerprint = ?`, userID, fpr); err != nil {
		return fmt.Errorf("clear user default key: %w", err)
	}
	return nil
}

func recentContacts(ctx context.Context, q querier, ownAddress string) ([]identity.Identity, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT i.user_id, i.address, i.fingerprint, i.display_name, i.flags, i.comm_type, i.confirmed
		FROM contacts_seen c JOIN identities i ON i.user_id = c.peer_user_id
		WHERE c.own_address = ? ORDER BY c.last_seen DESC`, ownAddress)
	if err != nil {
		return nil, fmt.Errorf("recent contacts: %w", err)
	}
	defer rows.Close()

	var out []identity.Identity
	for rows.Next() {
		var id identity.Identity
		var confirmed int
		if err := rows.Scan(&id.UserID, &id.Address, &id.KeyFingerprint, &id.DisplayName, &id.Flags, &id.CommType, &confirmed); err != nil {
			return nil, err
		}
		id.Confirmed = confirmed != 0
		out = append(out, id)
	}
	return out, rows.Err()
}

func hasContacted(ctx context.Context, q querier, peerUserID, ownAddress string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM contacts_seen WHERE peer_user_id = ? AND own_address = ?`, peerUserID, ownAddress).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has contacted: %w", err)
	}
	return true, nil
}

func createGroup(ctx context.Context, q querier, groupIdentity, manager string) error {
	_, err := q.ExecContext(ctx, `INSERT INTO groups (group_identity, manager, active) VALUES (?, ?, 1)`, groupIdentity, manager)
	if err != nil {
		return fmt.Errorf("create group: %w", err)
	}
	return nil
}

func existsGroup(ctx context.Context, q querier, groupIdentity string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `SELECT 1 FROM groups WHERE group_identity = ?`, groupIdentity).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("exists group: %w", err)
	}
	return true, nil
}

func setGroupActive(ctx context.Context, q querier, groupIdentity string, active bool) error {
	res, err := q.ExecContext(ctx, `UPDATE groups SET active = ? WHERE group_identity = ?`, boolToInt(active), groupIdentity)
	if err != nil {
		return fmt.Errorf("set group active: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrGroupNotFound
	}
	return nil
}

func isGroupActive(ctx context.Context, q querier, groupIdentity string) (bool, error) {
	var active int
	err := q.QueryRowContext(ctx, `SELECT active FROM groups WHERE group_identity = ?`, groupIdentity).Scan(&active)
	if err == sql.ErrNoRows {
		return false, ErrGroupNotFound
	}
	if err != nil {
		return false, fmt.Errorf("is group active: %w", err)
	}
	return active != 0, nil
}

func getGroupManager(ctx context.Context, q querier, groupIdentity string) (string, error) {
	var manager string
	err := q.QueryRowContext(ctx, `SELECT manager FROM groups WHERE group_identity = ?`, groupIdentity).Scan(&manager)
	if err == sql.ErrNoRows {
		return "", ErrGroupNotFound
	}
	if err != nil {
		return "", fmt.Errorf("get group manager: %w", err)
	}
	return manager, nil
}

func getGroup(ctx context.Context, q querier, groupIdentity string) (GroupRow, error) {
	var g GroupRow
	var active int
	var createdAt string
	err := q.QueryRowContext(ctx, `SELECT group_identity, manager, active, created_at FROM groups WHERE group_identity = ?`, groupIdentity).
		Scan(&g.GroupIdentity, &g.Manager, &active, &createdAt)
	if err == sql.ErrNoRows {
		return GroupRow{}, ErrGroupNotFound
	}
	if err != nil {
		return GroupRow{}, fmt.Errorf("get group: %w", err)
	}
	g.Active = active != 0
	g.CreatedAt, _ = time.Parse("2006-01-02 15:04:05", createdAt)
	return g, nil
}

func addMember(ctx context.Context, q querier, groupIdentity, member string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO members (group_identity, member_identity, joined) VALUES (?, ?, ?)
		ON CONFLICT(group_identity, member_identity) DO NOTHING`,
		groupIdentity, member, MemberInvited)
	if err != nil {
		return fmt.Errorf("add member: %w", err)
	}
	return nil
}

func removeMember(ctx context.Context, q querier, groupIdentity, member string) error {
	_, err := q.ExecContext(ctx, `DELETE FROM members WHERE group_identity = ? AND member_identity = ?`, groupIdentity, member)
	if err != nil {
		return fmt.Errorf("remove member: %w", err)
	}
	return nil
}

func setMemberJoined(ctx context.Context, q querier, groupIdentity, member string, state MemberState) error {
	res, err := q.ExecContext(ctx, `
		UPDATE members SET joined = ?, updated_at = CURRENT_TIMESTAMP
		WHERE group_identity = ? AND member_identity = ?`, state, groupIdentity, member)
	if err != nil {
		return fmt.Errorf("set member joined: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrMemberNotFound
	}
	return nil
}

func getMembers(ctx context.Context, q querier, groupIdentity string, activeOnly bool) ([]MemberRow, error) {
	query := `SELECT group_identity, member_identity, joined, updated_at FROM members WHERE group_identity = ?`
	if activeOnly {
		query += fmt.Sprintf(" AND joined = %d", MemberJoined)
	}
	rows, err := q.QueryContext(ctx, query, groupIdentity)
	if err != nil {
		return nil, fmt.Errorf("get members: %w", err)
	}
	defer rows.Close()

	var out []MemberRow
	for rows.Next() {
		var m MemberRow
		var updatedAt string
		if err := rows.Scan(&m.GroupIdentity, &m.MemberIdentity, &m.Joined, &updatedAt); err != nil {
			return nil, err
		}
		m.UpdatedAt, _ = time.Parse("2006-01-02 15:04:05", updatedAt)
		out = append(out, m)
	}
	return out, rows.Err()
}

func isMemberInState(ctx context.Context, q querier, groupIdentity, memberUserID string, state MemberState) (bool, error) {
	var joined MemberState
	err := q.QueryRowContext(ctx, `
		SELECT joined FROM members WHERE group_identity = ? AND member_identity = ?`, groupIdentity, memberUserID).Scan(&joined)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is member in state: %w", err)
	}
	return joined == state, nil
}

func addOwnMembership(ctx context.Context, q querier, groupIdentity, manager, ownIdentity string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO own_membership (group_identity, own_identity, manager, joined, active) VALUES (?, ?, ?, 0, 1)
		ON CONFLICT(group_identity, own_identity) DO NOTHING`, groupIdentity, ownIdentity, manager)
	if err != nil {
		return fmt.Errorf("add own membership: %w", err)
	}
	return nil
}

func setOwnMembershipJoined(ctx context.Context, q querier, groupIdentity, ownIdentity string, joined bool) error {
	_, err := q.ExecContext(ctx, `
		UPDATE own_membership SET joined = ? WHERE group_identity = ? AND own_identity = ?`,
		boolToInt(joined), groupIdentity, ownIdentity)
	if err != nil {
		return fmt.Errorf("set own membership joined: %w", err)
	}
	return nil
}

func getOwnMembership(ctx context.Context, q querier, groupIdentity, ownIdentity string) (OwnMembershipRow, error) {
	var r OwnMembershipRow
	var joined, active int
	err := q.QueryRowContext(ctx, `
		SELECT group_identity, own_identity, manager, joined, active
		FROM own_membership WHERE group_identity = ? AND own_identity = ?`, groupIdentity, ownIdentity).
		Scan(&r.GroupIdentity, &r.OwnIdentity, &r.Manager, &joined, &active)
	if err == sql.ErrNoRows {
		return OwnMembershipRow{}, ErrMembershipNotFound
	}
	if err != nil {
		return OwnMembershipRow{}, fmt.Errorf("get own membership: %w", err)
	}
	r.Joined = joined != 0
	r.Active = active != 0
	return r, nil
}

func listOwnMemberships(ctx context.Context, q querier, groupIdentity string) ([]OwnMembershipRow, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT group_identity, own_identity, manager, joined, active FROM own_membership WHERE group_identity = ?`, groupIdentity)
	if err != nil {
		return nil, fmt.Errorf("list own memberships: %w", err)
	}
	defer rows.Close()

	var out []OwnMembershipRow
	for rows.Next() {
		var r OwnMembershipRow
		var joined, active int
		if err := rows.Scan(&r.GroupIdentity, &r.OwnIdentity, &r.Manager, &joined, &active); err != nil {
			return nil, err
		}
		r.Joined = joined != 0
		r.Active = active != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

func setNotifiedContact(ctx context.Context, q querier, ownAddress, revokedFpr, peerUserID string) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO notified_contacts (own_address, revoked_fpr, peer_user_id) VALUES (?, ?, ?)
		ON CONFLICT(own_address, revoked_fpr, peer_user_id) DO NOTHING`, ownAddress, revokedFpr, peerUserID)
	if err != nil {
		return fmt.Errorf("set notified contact: %w", err)
	}
	return nil
}

func hasNotifiedContact(ctx context.Context, q querier, ownAddress, revokedFpr, peerUserID string) (bool, error) {
	var n int
	err := q.QueryRowContext(ctx, `
		SELECT 1 FROM notified_contacts WHERE own_address = ? AND revoked_fpr = ? AND peer_user_id = ?`,
		ownAddress, revokedFpr, peerUserID).Scan(&n)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("has notified contact: %w", err)
	}
	return true, nil
}

func setReplacement(ctx context.Context, q querier, oldFpr, newFpr string, at time.Time) error {
	_, err := q.ExecContext(ctx, `
		INSERT INTO replacements (old_fpr, new_fpr, at) VALUES (?, ?, ?)
		ON CONFLICT(old_fpr) DO UPDATE SET new_fpr = excluded.new_fpr, at = excluded.at`,
		oldFpr, newFpr, at)
	if err != nil {
		return fmt.Errorf("set replacement: %w", err)
	}
	return nil
}

func getReplacement(ctx context.Context, q querier, oldFpr string) (ReplacementRow, bool, error) {
	var r ReplacementRow
	var at string
	err := q.QueryRowContext(ctx, `SELECT old_fpr, new_fpr, at FROM replacements WHERE old_fpr = ?`, oldFpr).
		Scan(&r.RevokedFpr, &r.ReplacementFpr, &at)
	if err == sql.ErrNoRows {
		return ReplacementRow{}, false, nil
	}
	if err != nil {
		return ReplacementRow{}, false, fmt.Errorf("get replacement: %w", err)
	}
	r.At, _ = time.Parse("2006-01-02 15:04:05", at)
	return r, true, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
