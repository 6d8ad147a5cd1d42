package lifecycle

import (
	"context"
	"fmt"

	"github.com/vocdoni/anonclaims/log"
	"github.com/vocdoni/anonclaims/types"
	"github.com/vocdoni/anonclaims/verifier"
)

// DefaultMessagesLimit bounds a message listing without explicit limit.
const DefaultMessagesLimit = 100

// ToggleLike likes or unlikes a claim or a message for a registered caller
// and returns whether it is liked afterwards.
func (m *Manager) ToggleLike(ctx context.Context, target types.LikeTarget, id string, caller *types.BigInt) (bool, error) {
	if !target.Valid() || id == "" {
		return false, fmt.Errorf("%w: like target %q %q", types.ErrMalformedInput, target, id)
	}
	if _, err := m.membership(ctx, caller); err != nil {
		return false, err
	}
	return m.store.ToggleLike(ctx, target, id, caller)
}

// PostMessage stores a message signed by a registered member of the
// message group.
func (m *Manager) PostMessage(ctx context.Context, msg *types.Message) (*types.Message, error) {
	if msg == nil || msg.ID == "" || msg.Text == "" {
		return nil, fmt.Errorf("%w: message needs an id and a text", types.ErrMalformedInput)
	}
	now := m.Now()
	mb, err := m.author(ctx, msg.Signed(), now)
	if err != nil {
		return nil, err
	}
	if msg.AnonGroupID != mb.GroupID || msg.AnonGroupProvider != mb.Provider {
		return nil, fmt.Errorf("%w: message group %s does not match the membership", types.ErrUnauthorized, msg.AnonGroupID)
	}
	ok, err := m.codec.VerifyAt(msg, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: message %s", types.ErrInvalidSignature, msg.ID)
	}
	stored := *msg
	stored.Likes = 0
	if err := m.store.SetMessage(ctx, &stored); err != nil {
		return nil, err
	}
	log.Debugw("message posted", "messageID", stored.ID, "group", stored.AnonGroupID)
	return &stored, nil
}

// GetMessage returns a message. Internal messages are only visible to
// members of the message group.
func (m *Manager) GetMessage(ctx context.Context, id string, caller *types.BigInt) (*types.Message, error) {
	msg, err := m.store.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	if msg.Internal {
		if err := m.checkGroupMember(ctx, caller, msg.AnonGroupID); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// ListMessages lists the messages of a group, newest first. Internal ones
// are included only for members of the group.
func (m *Manager) ListMessages(ctx context.Context, groupID string, caller *types.BigInt, limit int) ([]*types.Message, error) {
	if groupID == "" {
		return nil, fmt.Errorf("%w: missing group", types.ErrMalformedInput)
	}
	if limit <= 0 {
		limit = DefaultMessagesLimit
	}
	internal := caller != nil && m.checkGroupMember(ctx, caller, groupID) == nil
	return m.store.Messages(ctx, groupID, internal, limit)
}

// VerifyMessage runs the verification pipeline over a stored message and
// the membership of its author.
func (m *Manager) VerifyMessage(ctx context.Context, id string) (*verifier.Result, error) {
	msg, err := m.store.Message(ctx, id)
	if err != nil {
		return nil, err
	}
	author, err := m.store.Membership(ctx, msg.EphemeralPubkey)
	if err != nil {
		return nil, fmt.Errorf("author of message %s: %w", id, err)
	}
	return m.pipeline.VerifyAt(ctx, msg, author, m.Now()), nil
}

func (m *Manager) checkGroupMember(ctx context.Context, caller *types.BigInt, groupID string) error {
	mb, err := m.membership(ctx, caller)
	if err != nil {
		return err
	}
	if mb.GroupID != groupID {
		return fmt.Errorf("%w: not a member of group %s", types.ErrUnauthorized, groupID)
	}
	return nil
}
