package storage

import (
	"context"
	"fmt"
	"sort"

	"github.com/vocdoni/anonclaims/types"
)

// ToggleLike likes or unlikes a claim or a message on behalf of a public
// key and adjusts the like counter of the target. It returns whether the
// target is liked after the call.
func (s *Storage) ToggleLike(ctx context.Context, target types.LikeTarget, id string, pubkey *types.BigInt) (bool, error) {
	var prefix []byte
	var record interface{ likes() *uint64 }
	switch target {
	case types.LikeTargetClaim:
		prefix, record = claimPrefix, &likeableClaim{}
	case types.LikeTargetMessage:
		prefix, record = messagePrefix, &likeableMessage{}
	default:
		return false, fmt.Errorf("%w: like target %q", types.ErrMalformedInput, target)
	}

	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	if err := s.getRecord(prefix, []byte(id), record); err != nil {
		return false, err
	}
	lkey := withPrefix(likePrefix, compositeKey(string(target), id, pubkey.String()))
	liked, err := s.exists(nil, lkey)
	if err != nil {
		return false, err
	}

	wTx := s.db.WriteTx()
	defer wTx.Discard()
	counter := record.likes()
	if liked {
		if *counter > 0 {
			*counter--
		}
		err = wTx.Delete(lkey)
	} else {
		*counter++
		err = wTx.Set(lkey, marker)
	}
	if err != nil {
		return false, err
	}
	val, err := encodeRecord(record)
	if err != nil {
		return false, err
	}
	if err := wTx.Set(withPrefix(prefix, []byte(id)), val); err != nil {
		return false, err
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	if err := wTx.Commit(); err != nil {
		return false, err
	}
	return !liked, nil
}

// HasLiked reports whether a public key likes a target.
func (s *Storage) HasLiked(_ context.Context, target types.LikeTarget, id string, pubkey *types.BigInt) (bool, error) {
	return s.exists(likePrefix, compositeKey(string(target), id, pubkey.String()))
}

type likeableClaim struct{ types.Claim }

func (c *likeableClaim) likes() *uint64 { return &c.Likes }

type likeableMessage struct{ types.Message }

func (m *likeableMessage) likes() *uint64 { return &m.Likes }

// Message returns a message by id.
func (s *Storage) Message(_ context.Context, id string) (*types.Message, error) {
	m := &types.Message{}
	if err := s.getRecord(messagePrefix, []byte(id), m); err != nil {
		return nil, err
	}
	return m, nil
}

// SetMessage stores a new message.
func (s *Storage) SetMessage(ctx context.Context, m *types.Message) error {
	if m == nil || m.ID == "" {
		return fmt.Errorf("%w: message without id", types.ErrMalformedInput)
	}
	s.globalLock.Lock()
	defer s.globalLock.Unlock()
	found, err := s.exists(messagePrefix, []byte(m.ID))
	if err != nil {
		return err
	}
	if found {
		return fmt.Errorf("%w: message %s already exists", types.ErrMalformedInput, m.ID)
	}
	return s.setRecord(ctx, messagePrefix, []byte(m.ID), m)
}

// Messages lists the messages of a group, newest first. Internal messages
// are only included if internal is true.
func (s *Storage) Messages(_ context.Context, groupID string, internal bool, limit int) ([]*types.Message, error) {
	msgs := []*types.Message{}
	if err := iterate(s, messagePrefix, nil, func(m *types.Message) bool {
		if (groupID == "" || m.AnonGroupID == groupID) && (!m.Internal || internal) {
			msgs = append(msgs, m)
		}
		return true
	}); err != nil {
		return nil, err
	}
	SortMessages(msgs)
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[:limit]
	}
	return msgs, nil
}

// SortMessages orders messages newest first.
func SortMessages(msgs []*types.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if !msgs[i].Timestamp.Equal(msgs[j].Timestamp) {
			return msgs[i].Timestamp.After(msgs[j].Timestamp)
		}
		return msgs[i].ID > msgs[j].ID
	})
}

// SetGroupAllowed adds or removes a group from the validator allow-list.
func (s *Storage) SetGroupAllowed(ctx context.Context, groupID string, allowed bool) error {
	wTx := s.db.WriteTx()
	defer wTx.Discard()
	key := withPrefix(allowListPrefix, []byte(groupID))
	var err error
	if allowed {
		err = wTx.Set(key, marker)
	} else {
		err = wTx.Delete(key)
	}
	if err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return wTx.Commit()
}

// IsGroupAllowed reports whether members of a group may become validators.
func (s *Storage) IsGroupAllowed(_ context.Context, groupID string) (bool, error) {
	return s.exists(allowListPrefix, []byte(groupID))
}

// AllowedGroups returns the allow-list, sorted.
func (s *Storage) AllowedGroups(_ context.Context) ([]string, error) {
	groups := []string{}
	if err := s.db.Iterate(allowListPrefix, func(k, _ []byte) bool {
		groups = append(groups, string(k))
		return true
	}); err != nil {
		return nil, err
	}
	sort.Strings(groups)
	return groups, nil
}
