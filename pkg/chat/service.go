package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/pebble"

	"croptalk/pkg/logger"
	"croptalk/pkg/models"
	"croptalk/pkg/store"
	"croptalk/pkg/telemetry"
	"croptalk/pkg/utils"
	"croptalk/pkg/validation"
)

// Service is the server half of the messaging core. All mutation flows
// through it: it validates input, serializes writes per conversation and
// delegates the atomic append+index update to the store.
type Service struct {
	locks lockPool
}

func NewService() *Service {
	return &Service{}
}

// SendRequest carries a composed message. Exactly one of ConversationID
// and Counterparty must be set; Counterparty starts (or continues) the
// pair conversation with the sender.
type SendRequest struct {
	ConversationID string `json:"conversation_id,omitempty"`
	Counterparty   string `json:"counterparty,omitempty"`
	Sender         string `json:"sender"`
	Content        string `json:"content"`
}

// ConversationView is the viewer-relative row rendered in conversation
// lists.
type ConversationView struct {
	ID           string           `json:"id"`
	Counterparty string           `json:"counterparty"`
	LastMessage  *LastMessageView `json:"last_message,omitempty"`
	Unread       int              `json:"unread"`
	UpdatedTS    int64            `json:"updated_ts"`
}

// LastMessageView carries the denormalized preview with the sender
// resolved relative to the viewer.
type LastMessageView struct {
	Content        string `json:"content"`
	TS             int64  `json:"ts"`
	SenderIsViewer bool   `json:"sender_is_viewer"`
}

// Send validates and persists a composed message. The append and the
// conversation snapshot update are one atomic unit; two near-simultaneous
// sends for the same conversation are serialized by a per-conversation
// lock so the snapshot can never end up older than the last append.
func (s *Service) Send(ctx context.Context, req SendRequest) (models.Message, error) {
	var msg models.Message
	if err := ctx.Err(); err != nil {
		return msg, err
	}
	if err := validation.ValidateID("sender", req.Sender); err != nil {
		telemetry.SendsRejected.WithLabelValues("validation").Inc()
		return msg, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if err := validation.ValidateContent(req.Content); err != nil {
		telemetry.SendsRejected.WithLabelValues("validation").Inc()
		return msg, fmt.Errorf("%w: %v", ErrValidation, err)
	}

	convID, receiver, err := s.resolveTarget(req)
	if err != nil {
		return msg, err
	}

	lock := s.locks.get(convID)
	lock.Lock()
	defer lock.Unlock()

	msg = models.Message{
		ID:             utils.GenMessageID(),
		ConversationID: convID,
		Sender:         req.Sender,
		Receiver:       receiver,
		Content:        req.Content,
		TS:             time.Now().UTC().UnixNano(),
	}
	if _, err := store.AppendMessage(msg); err != nil {
		return models.Message{}, err
	}
	return msg, nil
}

// resolveTarget maps a SendRequest to the conversation id and receiver.
// An explicit conversation id must already exist and include the sender;
// a counterparty id derives the stable pair conversation, creating it
// lazily on first send.
func (s *Service) resolveTarget(req SendRequest) (string, string, error) {
	if req.ConversationID != "" {
		conv, err := store.GetConversation(req.ConversationID)
		if err != nil {
			if errors.Is(err, pebble.ErrNotFound) {
				telemetry.SendsRejected.WithLabelValues("not_found").Inc()
				return "", "", fmt.Errorf("%w: conversation %s", ErrNotFound, req.ConversationID)
			}
			return "", "", err
		}
		receiver := conv.Other(req.Sender)
		if receiver == "" {
			telemetry.SendsRejected.WithLabelValues("validation").Inc()
			return "", "", fmt.Errorf("%w: sender is not a participant", ErrValidation)
		}
		return conv.ID, receiver, nil
	}
	if err := validation.ValidateID("counterparty", req.Counterparty); err != nil {
		telemetry.SendsRejected.WithLabelValues("validation").Inc()
		return "", "", fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if req.Counterparty == req.Sender {
		telemetry.SendsRejected.WithLabelValues("validation").Inc()
		return "", "", fmt.Errorf("%w: cannot message yourself", ErrValidation)
	}
	return utils.PairConversationID(req.Sender, req.Counterparty), req.Counterparty, nil
}

// RebuildConversation recomputes a conversation row's snapshot and
// unread counts from its message log and rewrites the row when they
// differ. It holds the conversation's write lock for the whole
// read-recompute-write cycle, so a concurrent send or read-marking can
// never be overwritten with stale values. Reports whether the row was
// rewritten.
func (s *Service) RebuildConversation(convID string) (bool, error) {
	lock := s.locks.get(convID)
	lock.Lock()
	defer lock.Unlock()

	conv, err := store.GetConversation(convID)
	if err != nil {
		return false, err
	}
	msgs, err := store.ListMessagesSince(convID, "", 0)
	if err != nil {
		return false, err
	}

	unread := map[string]int{}
	var last *models.LastMessage
	updated := conv.CreatedTS
	for i := range msgs {
		m := &msgs[i]
		if !m.Read {
			unread[m.Receiver]++
		}
		last = &models.LastMessage{ID: m.ID, Content: m.Content, Sender: m.Sender, TS: m.TS}
		if m.TS > updated {
			updated = m.TS
		}
	}

	if snapshotMatches(conv, last, unread) {
		return false, nil
	}

	logger.Warn("conversation_diverged",
		"conversation", convID,
		"stored_unread", conv.Unread,
		"computed_unread", unread)

	conv.LastMessage = last
	conv.Unread = unread
	if updated > conv.UpdatedTS {
		conv.UpdatedTS = updated
	}
	if err := store.SaveConversation(conv); err != nil {
		return false, err
	}
	return true, nil
}

func snapshotMatches(conv models.Conversation, last *models.LastMessage, unread map[string]int) bool {
	switch {
	case conv.LastMessage == nil && last != nil:
		return false
	case conv.LastMessage != nil && last == nil:
		return false
	case conv.LastMessage != nil && *conv.LastMessage != *last:
		return false
	}
	for _, p := range conv.Participants {
		if conv.Unread[p] != unread[p] {
			return false
		}
	}
	return true
}

// Conversations returns the viewer's conversation list, most recently
// active first.
func (s *Service) Conversations(ctx context.Context, viewer string) ([]ConversationView, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := validation.ValidateID("viewer", viewer); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	convs, err := store.ListConversationsForUser(viewer)
	if err != nil {
		return nil, err
	}
	out := make([]ConversationView, 0, len(convs))
	for _, c := range convs {
		v := ConversationView{
			ID:           c.ID,
			Counterparty: c.Other(viewer),
			Unread:       c.Unread[viewer],
			UpdatedTS:    c.UpdatedTS,
		}
		if c.LastMessage != nil {
			v.LastMessage = &LastMessageView{
				Content:        c.LastMessage.Content,
				TS:             c.LastMessage.TS,
				SenderIsViewer: c.LastMessage.Sender == viewer,
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// Messages returns a conversation's messages oldest to newest, restricted
// to ids strictly after the cursor when afterID is set.
func (s *Service) Messages(ctx context.Context, convID, viewer, afterID string, limit int) ([]models.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conv, err := store.GetConversation(convID)
	if err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return nil, fmt.Errorf("%w: conversation %s", ErrNotFound, convID)
		}
		return nil, err
	}
	if viewer != "" && !conv.Has(viewer) {
		return nil, fmt.Errorf("%w: viewer is not a participant", ErrValidation)
	}
	return store.ListMessagesSince(convID, afterID, limit)
}

// MarkRead flips read flags for messages addressed to the viewer up to
// and including uptoID and returns the viewer's remaining unread count.
// Idempotent and monotone: repeated or stale invocations are no-ops.
func (s *Service) MarkRead(ctx context.Context, convID, viewer, uptoID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if err := validation.ValidateID("viewer", viewer); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if strings.TrimSpace(uptoID) == "" {
		return 0, fmt.Errorf("%w: upto message id is required", ErrValidation)
	}

	lock := s.locks.get(convID)
	lock.Lock()
	defer lock.Unlock()

	if _, err := store.MarkReadUpTo(convID, viewer, uptoID); err != nil {
		if errors.Is(err, pebble.ErrNotFound) {
			return 0, fmt.Errorf("%w: conversation %s", ErrNotFound, convID)
		}
		return 0, err
	}
	conv, err := store.GetConversation(convID)
	if err != nil {
		return 0, err
	}
	unread := conv.Unread[viewer]
	if unread < 0 {
		// never persisted; recounts cannot go negative
		logger.Error("negative_unread_count", "conversation", convID, "viewer", viewer, "unread", unread)
		unread = 0
	}
	return unread, nil
}
