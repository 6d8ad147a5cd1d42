// Package sqlite is a relational implementation of the protocol stores.
// Compare-and-set transitions are conditional UPDATE statements and
// uniqueness is enforced by the schema, so several processes can share the
// same database file.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// ErrNotFound is returned when a record is not in the store.
var ErrNotFound = fmt.Errorf("%w in sqlite store", types.ErrNotFound)

// Store is the sqlite backed store.
type Store struct {
	db     *sql.DB
	dbPath string
}

// Open opens (or creates) the database file anonclaims.db under dir.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}
	dbPath := filepath.Join(dir, "anonclaims.db")
	db, err := sql.Open("sqlite", dbPath+
		"?_pragma=journal_mode(WAL)"+
		"&_pragma=busy_timeout(5000)"+
		"&_pragma=synchronous(NORMAL)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &Store{db: db, dbPath: dbPath}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) DBPath() string {
	return s.dbPath
}

func nanos(t time.Time) int64 {
	return t.UnixNano()
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}

func bigText(b *types.BigInt) sql.NullString {
	if b == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: b.String(), Valid: true}
}

func parseBig(s sql.NullString) *types.BigInt {
	if !s.Valid {
		return nil
	}
	b, err := types.BigIntFromString(s.String)
	if err != nil {
		log.Warnw("invalid big number in database", "value", s.String)
		return nil
	}
	return b
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// commit commits tx unless ctx is done.
func commit(ctx context.Context, tx *sql.Tx) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return tx.Commit()
}

// Membership returns the membership of a public key.
func (s *Store) Membership(ctx context.Context, pubkey *types.BigInt) (*types.Membership, error) {
	m := &types.Membership{}
	var pk, commitment sql.NullString
	var args string
	var proof []byte
	var expiry, created int64
	err := s.db.QueryRowContext(ctx,
		`SELECT pubkey, group_id, provider, proof, proof_args, role, pubkey_expiry,
		        identity_commitment, created_at
		 FROM memberships WHERE pubkey = ?`, pubkey.String()).
		Scan(&pk, &m.GroupID, &m.Provider, &proof, &args, &m.Role, &expiry, &commitment, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	m.Pubkey = parseBig(pk)
	m.Proof = append(types.HexBytes(nil), proof...)
	m.IdentityCommitment = parseBig(commitment)
	m.PubkeyExpiry = fromNanos(expiry)
	m.CreatedAt = fromNanos(created)
	if err := json.Unmarshal([]byte(args), &m.ProofArgs); err != nil {
		return nil, fmt.Errorf("decode proof args: %w", err)
	}
	if len(m.ProofArgs) == 0 {
		m.ProofArgs = nil
	}
	return m, nil
}

// SetMembership stores a new membership, ErrMembershipExists if the public
// key has one.
func (s *Store) SetMembership(ctx context.Context, m *types.Membership) error {
	if m == nil || m.Pubkey == nil {
		return fmt.Errorf("%w: nil membership", types.ErrMalformedInput)
	}
	args, err := json.Marshal(m.ProofArgs)
	if err != nil {
		return err
	}
	if m.ProofArgs == nil {
		args = []byte("{}")
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO memberships (pubkey, group_id, provider, proof, proof_args, role,
		                          pubkey_expiry, identity_commitment, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (pubkey) DO NOTHING`,
		m.Pubkey.String(), m.GroupID, m.Provider, []byte(m.Proof), string(args), string(m.Role),
		nanos(m.PubkeyExpiry), bigText(m.IdentityCommitment), nanos(m.CreatedAt))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return types.ErrMembershipExists
	}
	return nil
}

// UpdateRole sets the role of a membership, false if it already had it.
func (s *Store) UpdateRole(ctx context.Context, pubkey *types.BigInt, role types.Role) (bool, error) {
	if !role.Valid() {
		return false, fmt.Errorf("%w: role %q", types.ErrMalformedInput, role)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE memberships SET role = ? WHERE pubkey = ? AND role <> ?`,
		string(role), pubkey.String(), string(role))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.Membership(ctx, pubkey); err != nil {
		return false, err
	}
	return false, nil
}

const claimColumns = `id, title, description, source_url, timestamp, anon_group_id,
	anon_group_provider, internal, likes, status, expires_at, vote_deadline, signature,
	ephemeral_pubkey, ephemeral_expiry`

type scanner interface {
	Scan(dest ...any) error
}

func scanClaim(row scanner) (*types.Claim, error) {
	c := &types.Claim{}
	var ts, expires, deadline, ephExpiry int64
	var internal int
	var sig, eph sql.NullString
	if err := row.Scan(&c.ID, &c.Title, &c.Description, &c.SourceURL, &ts, &c.AnonGroupID,
		&c.AnonGroupProvider, &internal, &c.Likes, &c.Status, &expires, &deadline, &sig,
		&eph, &ephExpiry); err != nil {
		return nil, err
	}
	c.Timestamp = fromNanos(ts)
	c.ExpiresAt = fromNanos(expires)
	c.VoteDeadline = fromNanos(deadline)
	c.Internal = internal == 1
	c.Signature = parseBig(sig)
	c.EphemeralPubkey = parseBig(eph)
	c.EphemeralPubkeyExpiry = fromNanos(ephExpiry)
	return c, nil
}

// Claim returns a claim by id.
func (s *Store) Claim(ctx context.Context, id string) (*types.Claim, error) {
	c, err := scanClaim(s.db.QueryRowContext(ctx,
		`SELECT `+claimColumns+` FROM claims WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return c, err
}

// SetClaim stores a new claim.
func (s *Store) SetClaim(ctx context.Context, c *types.Claim) error {
	if c == nil || c.ID == "" {
		return fmt.Errorf("%w: claim without id", types.ErrMalformedInput)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO claims (`+claimColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		c.ID, c.Title, c.Description, c.SourceURL, nanos(c.Timestamp), c.AnonGroupID,
		c.AnonGroupProvider, boolInt(c.Internal), c.Likes, string(c.Status), nanos(c.ExpiresAt),
		nanos(c.VoteDeadline), bigText(c.Signature), bigText(c.EphemeralPubkey),
		nanos(c.EphemeralPubkeyExpiry))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: claim %s already exists", types.ErrMalformedInput, c.ID)
	}
	return nil
}

// UpdateClaimStatus moves a claim from expected to next with a conditional
// update. It returns false when the claim is not in the expected status.
func (s *Store) UpdateClaimStatus(ctx context.Context, id string, expected, next types.ClaimStatus) (bool, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE claims SET status = ? WHERE id = ? AND status = ?`,
		string(next), id, string(expected))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 1 {
		return true, nil
	}
	if _, err := s.Claim(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

// ResolveClaim reads the tally of a claim in the expected status and moves
// it to the status decide returns, in one transaction that holds the write
// lock from its first statement, so no vote commits in between. It returns
// "" when the claim left the expected status or decide returned "".
func (s *Store) ResolveClaim(ctx context.Context, id string, expected types.ClaimStatus,
	decide func(types.Tally) types.ClaimStatus,
) (types.ClaimStatus, types.Tally, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", types.Tally{}, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = status WHERE id = ? AND status = ?`, id, string(expected))
	if err != nil {
		return "", types.Tally{}, err
	}
	if n, err := res.RowsAffected(); err != nil {
		return "", types.Tally{}, err
	} else if n == 0 {
		return "", types.Tally{}, claimExists(ctx, tx, id)
	}
	tally, err := tallyOf(ctx, tx, id)
	if err != nil {
		return "", types.Tally{}, err
	}
	next := decide(tally)
	if next == "" {
		return "", tally, nil
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE claims SET status = ? WHERE id = ?`, string(next), id); err != nil {
		return "", tally, err
	}
	if err := commit(ctx, tx); err != nil {
		return "", tally, err
	}
	return next, tally, nil
}

func claimExists(ctx context.Context, tx *sql.Tx, id string) error {
	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM claims WHERE id = ?`, id).Scan(&n); err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("claim %s: %w", id, ErrNotFound)
	}
	return nil
}

// ExpiredClaims returns the pending or active claims whose deadline is not
// after now.
func (s *Store) ExpiredClaims(ctx context.Context, now time.Time) ([]*types.Claim, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+claimColumns+` FROM claims
		 WHERE status IN (?, ?) AND vote_deadline <= ?
		 ORDER BY vote_deadline`,
		string(types.ClaimPending), string(types.ClaimActive), nanos(now))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var claims []*types.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		claims = append(claims, c)
	}
	return claims, rows.Err()
}

// Claims lists the claims matching the filter with their tallies.
func (s *Store) Claims(ctx context.Context, filter types.ClaimFilter) ([]*types.ClaimWithTally, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		where = append(where, "c.status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.GroupID != "" {
		where = append(where, "c.anon_group_id = ?")
		args = append(args, filter.GroupID)
	}
	where = append(where, "(c.internal = 0 OR c.anon_group_id = ?)")
	args = append(args, filter.InternalGroup)

	order := "c.timestamp DESC, c.id DESC"
	if filter.SortBy == types.SortByVoteCount {
		order = "COUNT(v.id) DESC, " + order
	}
	query := `SELECT ` + prefixColumns("c.", claimColumns) + `,
		COALESCE(SUM(v.vote = 'up'), 0) AS up, COALESCE(SUM(v.vote = 'down'), 0) AS down
		FROM claims c LEFT JOIN votes v ON v.claim_id = c.id
		WHERE ` + strings.Join(where, " AND ") + `
		GROUP BY c.id ORDER BY ` + order
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []*types.ClaimWithTally{}
	for rows.Next() {
		var up, down uint64
		c, err := scanClaim(rowWithTally{rows, &up, &down})
		if err != nil {
			return nil, err
		}
		list = append(list, &types.ClaimWithTally{Claim: c, Votes: types.Tally{Up: up, Down: down}})
	}
	return list, rows.Err()
}

// rowWithTally scans the claim columns followed by the two tally columns.
type rowWithTally struct {
	rows     *sql.Rows
	up, down *uint64
}

func (r rowWithTally) Scan(dest ...any) error {
	return r.rows.Scan(append(dest, r.up, r.down)...)
}

func prefixColumns(prefix, columns string) string {
	cols := strings.Split(columns, ",")
	for i, c := range cols {
		cols[i] = prefix + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

// ReserveNullifier reserves (scope, nullifier) and stores the vote, when
// given, in the same transaction. A vote needs its claim pending with the
// deadline after the vote time, otherwise ErrVotingClosed.
func (s *Store) ReserveNullifier(ctx context.Context, scope string, nullifier *types.BigInt, vote *types.Vote) error {
	if nullifier == nil {
		return fmt.Errorf("%w: nil nullifier", types.ErrMalformedInput)
	}
	if vote != nil {
		if vote.ClaimID != scope {
			return fmt.Errorf("%w: vote for %s reserved in scope %s", types.ErrMalformedInput, vote.ClaimID, scope)
		}
		if !vote.Choice.Valid() {
			return fmt.Errorf("%w: vote choice %q", types.ErrMalformedInput, vote.Choice)
		}
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var voteID sql.NullString
	if vote != nil {
		voteID = sql.NullString{String: vote.ID, Valid: true}
		// the no-op update takes the write lock before anything is read
		res, err := tx.ExecContext(ctx,
			`UPDATE claims SET status = status WHERE id = ? AND status = ? AND vote_deadline > ?`,
			scope, string(types.ClaimPending), nanos(vote.CreatedAt))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			if err := claimExists(ctx, tx, scope); err != nil {
				return err
			}
			return fmt.Errorf("%w: claim %s is not open", types.ErrVotingClosed, scope)
		}
	}
	res, err := tx.ExecContext(ctx,
		`INSERT INTO nullifiers (scope, nullifier, vote_id) VALUES (?, ?, ?)
		 ON CONFLICT (scope, nullifier) DO NOTHING`,
		scope, nullifier.String(), voteID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: nullifier already used for %s", types.ErrDuplicateVote, scope)
	}

	if vote != nil {
		res, err := tx.ExecContext(ctx,
			`INSERT INTO votes (id, claim_id, voter_pubkey, role, vote, nullifier, created_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT (claim_id, voter_pubkey) DO NOTHING`,
			vote.ID, vote.ClaimID, vote.VoterPubkey.String(), string(vote.Role), string(vote.Choice),
			bigText(vote.Nullifier), nanos(vote.CreatedAt))
		if err != nil {
			return err
		}
		if n, err := res.RowsAffected(); err != nil {
			return err
		} else if n == 0 {
			return fmt.Errorf("%w: public key already voted %s", types.ErrDuplicateVote, scope)
		}
	}
	return commit(ctx, tx)
}

// HasNullifier reports whether (scope, nullifier) is reserved.
func (s *Store) HasNullifier(ctx context.Context, scope string, nullifier *types.BigInt) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM nullifiers WHERE scope = ? AND nullifier = ?`,
		scope, nullifier.String()).Scan(&n)
	return n > 0, err
}

// Tally returns the vote count of a claim.
func (s *Store) Tally(ctx context.Context, claimID string) (types.Tally, error) {
	return tallyOf(ctx, s.db, claimID)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func tallyOf(ctx context.Context, q rowQuerier, claimID string) (types.Tally, error) {
	var t types.Tally
	err := q.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(vote = 'up'), 0), COALESCE(SUM(vote = 'down'), 0)
		 FROM votes WHERE claim_id = ?`, claimID).Scan(&t.Up, &t.Down)
	return t, err
}

func scanVote(row scanner) (*types.Vote, error) {
	v := &types.Vote{}
	var voter, nullifier sql.NullString
	var created int64
	if err := row.Scan(&v.ID, &v.ClaimID, &voter, &v.Role, &v.Choice, &nullifier, &created); err != nil {
		return nil, err
	}
	v.VoterPubkey = parseBig(voter)
	v.Nullifier = parseBig(nullifier)
	v.CreatedAt = fromNanos(created)
	return v, nil
}

const voteColumns = `id, claim_id, voter_pubkey, role, vote, nullifier, created_at`

// Votes lists the votes of a claim, oldest first.
func (s *Store) Votes(ctx context.Context, claimID string) ([]*types.Vote, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE claim_id = ? ORDER BY created_at, id`, claimID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	votes := []*types.Vote{}
	for rows.Next() {
		v, err := scanVote(rows)
		if err != nil {
			return nil, err
		}
		votes = append(votes, v)
	}
	return votes, rows.Err()
}

// VoteByVoter returns the vote a public key cast on a claim.
func (s *Store) VoteByVoter(ctx context.Context, claimID string, pubkey *types.BigInt) (*types.Vote, error) {
	v, err := scanVote(s.db.QueryRowContext(ctx,
		`SELECT `+voteColumns+` FROM votes WHERE claim_id = ? AND voter_pubkey = ?`,
		claimID, pubkey.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return v, err
}

func likeTable(target types.LikeTarget) (string, error) {
	switch target {
	case types.LikeTargetClaim:
		return "claims", nil
	case types.LikeTargetMessage:
		return "messages", nil
	}
	return "", fmt.Errorf("%w: like target %q", types.ErrMalformedInput, target)
}

// ToggleLike likes or unlikes a target and adjusts its counter.
func (s *Store) ToggleLike(ctx context.Context, target types.LikeTarget, id string, pubkey *types.BigInt) (bool, error) {
	table, err := likeTable(target)
	if err != nil {
		return false, err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+table+` WHERE id = ?`, id).Scan(&exists); err != nil {
		return false, err
	}
	if exists == 0 {
		return false, ErrNotFound
	}
	res, err := tx.ExecContext(ctx,
		`DELETE FROM likes WHERE target = ? AND target_id = ? AND pubkey = ?`,
		string(target), id, pubkey.String())
	if err != nil {
		return false, err
	}
	removed, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	liked := removed == 0
	if liked {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO likes (target, target_id, pubkey) VALUES (?, ?, ?)`,
			string(target), id, pubkey.String()); err != nil {
			return false, err
		}
		_, err = tx.ExecContext(ctx, `UPDATE `+table+` SET likes = likes + 1 WHERE id = ?`, id)
	} else {
		_, err = tx.ExecContext(ctx, `UPDATE `+table+` SET likes = MAX(likes - 1, 0) WHERE id = ?`, id)
	}
	if err != nil {
		return false, err
	}
	if err := commit(ctx, tx); err != nil {
		return false, err
	}
	return liked, nil
}

// HasLiked reports whether a public key likes a target.
func (s *Store) HasLiked(ctx context.Context, target types.LikeTarget, id string, pubkey *types.BigInt) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM likes WHERE target = ? AND target_id = ? AND pubkey = ?`,
		string(target), id, pubkey.String()).Scan(&n)
	return n > 0, err
}

const messageColumns = `id, anon_group_id, anon_group_provider, text, timestamp, internal, likes,
	signature, ephemeral_pubkey, ephemeral_expiry`

func scanMessage(row scanner) (*types.Message, error) {
	m := &types.Message{}
	var ts, ephExpiry int64
	var internal int
	var sig, eph sql.NullString
	if err := row.Scan(&m.ID, &m.AnonGroupID, &m.AnonGroupProvider, &m.Text, &ts, &internal,
		&m.Likes, &sig, &eph, &ephExpiry); err != nil {
		return nil, err
	}
	m.Timestamp = fromNanos(ts)
	m.Internal = internal == 1
	m.Signature = parseBig(sig)
	m.EphemeralPubkey = parseBig(eph)
	m.EphemeralPubkeyExpiry = fromNanos(ephExpiry)
	return m, nil
}

// Message returns a message by id.
func (s *Store) Message(ctx context.Context, id string) (*types.Message, error) {
	m, err := scanMessage(s.db.QueryRowContext(ctx,
		`SELECT `+messageColumns+` FROM messages WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return m, err
}

// SetMessage stores a new message.
func (s *Store) SetMessage(ctx context.Context, m *types.Message) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: message without id", types.ErrMalformedInput)
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO messages (`+messageColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT (id) DO NOTHING`,
		m.ID, m.AnonGroupID, m.AnonGroupProvider, m.Text, nanos(m.Timestamp), boolInt(m.Internal),
		m.Likes, bigText(m.Signature), bigText(m.EphemeralPubkey), nanos(m.EphemeralPubkeyExpiry))
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("%w: message %s already exists", types.ErrMalformedInput, m.ID)
	}
	return nil
}

// Messages lists the messages of a group, newest first.
func (s *Store) Messages(ctx context.Context, groupID string, internal bool, limit int) ([]*types.Message, error) {
	query := `SELECT ` + messageColumns + ` FROM messages
		WHERE (? = '' OR anon_group_id = ?) AND (internal = 0 OR ?)
		ORDER BY timestamp DESC, id DESC`
	args := []any{groupID, groupID, boolInt(internal)}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	msgs := []*types.Message{}
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}

// SetGroupAllowed adds or removes a group from the validator allow-list.
func (s *Store) SetGroupAllowed(ctx context.Context, groupID string, allowed bool) error {
	var err error
	if allowed {
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO allowed_groups (group_id) VALUES (?) ON CONFLICT DO NOTHING`, groupID)
	} else {
		_, err = s.db.ExecContext(ctx, `DELETE FROM allowed_groups WHERE group_id = ?`, groupID)
	}
	return err
}

// IsGroupAllowed reports whether members of a group may become validators.
func (s *Store) IsGroupAllowed(ctx context.Context, groupID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM allowed_groups WHERE group_id = ?`, groupID).Scan(&n)
	return n > 0, err
}

// AllowedGroups returns the allow-list, sorted.
func (s *Store) AllowedGroups(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT group_id FROM allowed_groups ORDER BY group_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	groups := []string{}
	for rows.Next() {
		var g string
		if err := rows.Scan(&g); err != nil {
			return nil, err
		}
		groups = append(groups, g)
	}
	return groups, rows.Err()
}
