package store

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/cockroachdb/pebble"

	"croptalk/pkg/logger"
	"croptalk/pkg/models"
	"croptalk/pkg/telemetry"
)

// Key layout:
//   conv:<convID>:meta          -> Conversation JSON
//   conv:<convID>:msg:<msgID>   -> Message JSON
//   user:<userID>:conv:<convID> -> convID
//
// Message ids are zero-padded timestamp+sequence strings, so iterating the
// msg prefix yields messages oldest to newest. Participant ids may not
// contain ":" (enforced by validation), so key parsing is unambiguous.

var db *pebble.DB

// dbPath remembers where the store was opened, for diagnostics.
var dbPath string

// Open opens (or creates) a Pebble database at the given path and keeps a
// global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func convMetaKey(convID string) []byte {
	return []byte("conv:" + convID + ":meta")
}

func msgKey(convID, msgID string) []byte {
	return []byte("conv:" + convID + ":msg:" + msgID)
}

func msgPrefix(convID string) []byte {
	return []byte("conv:" + convID + ":msg:")
}

func userConvKey(userID, convID string) []byte {
	return []byte("user:" + userID + ":conv:" + convID)
}

// AppendMessage writes the message, the updated conversation row and both
// participants' membership index entries in a single synced batch, so a
// message is never visible without its index update (and vice versa).
// The conversation is created lazily on the first message between a pair.
// The caller is responsible for serializing appends per conversation.
func AppendMessage(msg models.Message) (models.Conversation, error) {
	var conv models.Conversation
	if db == nil {
		return conv, fmt.Errorf("pebble not opened; call store.Open first")
	}

	existing, err := GetConversation(msg.ConversationID)
	switch {
	case err == nil:
		conv = existing
	case errors.Is(err, pebble.ErrNotFound):
		a, b := msg.Sender, msg.Receiver
		if b < a {
			a, b = b, a
		}
		conv = models.Conversation{
			ID:           msg.ConversationID,
			Participants: [2]string{a, b},
			Unread:       map[string]int{},
			CreatedTS:    msg.TS,
		}
	default:
		return conv, err
	}

	conv.LastMessage = &models.LastMessage{
		ID:      msg.ID,
		Content: msg.Content,
		Sender:  msg.Sender,
		TS:      msg.TS,
	}
	if conv.Unread == nil {
		conv.Unread = map[string]int{}
	}
	conv.Unread[msg.Receiver]++
	conv.UpdatedTS = msg.TS

	mb, err := json.Marshal(msg)
	if err != nil {
		return conv, fmt.Errorf("failed to marshal message: %w", err)
	}
	cb, err := json.Marshal(conv)
	if err != nil {
		return conv, fmt.Errorf("failed to marshal conversation: %w", err)
	}

	batch := db.NewBatch()
	defer batch.Close()
	if err := batch.Set(msgKey(msg.ConversationID, msg.ID), mb, nil); err != nil {
		return conv, err
	}
	if err := batch.Set(convMetaKey(conv.ID), cb, nil); err != nil {
		return conv, err
	}
	for _, p := range conv.Participants {
		if err := batch.Set(userConvKey(p, conv.ID), []byte(conv.ID), nil); err != nil {
			return conv, err
		}
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("append_message_failed", "conversation", msg.ConversationID, "id", msg.ID, "error", err)
		return conv, err
	}
	telemetry.MessagesAppended.Inc()
	logger.Info("message_appended", "conversation", msg.ConversationID, "id", msg.ID, "receiver", msg.Receiver)
	return conv, nil
}

// ListMessagesSince returns messages for a conversation ordered oldest to
// newest. When afterID is non-empty only messages with id strictly
// greater than afterID are returned. A limit of 0 means no limit.
func ListMessagesSince(convID, afterID string, limit int) ([]models.Message, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := msgPrefix(convID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	start := prefix
	if afterID != "" {
		start = msgKey(convID, afterID)
	}
	out := []models.Message{}
	for iter.SeekGE(start); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		// strictly after the cursor
		if afterID != "" && bytes.Equal(iter.Key(), msgKey(convID, afterID)) {
			continue
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			logger.Error("invalid_stored_message", "key", string(iter.Key()), "error", err)
			return nil, fmt.Errorf("invalid message JSON: %w", err)
		}
		out = append(out, m)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, iter.Error()
}

// MarkReadUpTo flips read=true on messages addressed to viewerID with id
// <= uptoID and, in the same synced batch, rewrites the conversation
// row's unread count for the viewer to the number of still-unread
// messages addressed to them. Idempotent: re-invoking with the same or an
// earlier id changes nothing. Returns the number of messages flipped.
func MarkReadUpTo(convID, viewerID, uptoID string) (int, error) {
	if db == nil {
		return 0, fmt.Errorf("pebble not opened; call store.Open first")
	}
	conv, err := GetConversation(convID)
	if err != nil {
		return 0, err
	}

	prefix := msgPrefix(convID)
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	batch := db.NewBatch()
	defer batch.Close()

	flipped := 0
	remaining := 0
	upto := msgKey(convID, uptoID)
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		var m models.Message
		if err := json.Unmarshal(iter.Value(), &m); err != nil {
			return 0, fmt.Errorf("invalid message JSON: %w", err)
		}
		if m.Receiver != viewerID || m.Read {
			continue
		}
		if bytes.Compare(iter.Key(), upto) <= 0 {
			m.Read = true
			mb, err := json.Marshal(m)
			if err != nil {
				return 0, err
			}
			if err := batch.Set(append([]byte(nil), iter.Key()...), mb, nil); err != nil {
				return 0, err
			}
			flipped++
		} else {
			remaining++
		}
	}
	if err := iter.Error(); err != nil {
		return 0, err
	}
	if flipped == 0 && conv.Unread[viewerID] == remaining {
		return 0, nil
	}

	if conv.Unread == nil {
		conv.Unread = map[string]int{}
	}
	conv.Unread[viewerID] = remaining
	cb, err := json.Marshal(conv)
	if err != nil {
		return 0, err
	}
	if err := batch.Set(convMetaKey(convID), cb, nil); err != nil {
		return 0, err
	}
	if err := batch.Commit(pebble.Sync); err != nil {
		logger.Error("mark_read_failed", "conversation", convID, "viewer", viewerID, "error", err)
		return 0, err
	}
	if flipped > 0 {
		telemetry.ReadsMarked.Add(float64(flipped))
	}
	logger.Info("messages_marked_read", "conversation", convID, "viewer", viewerID, "count", flipped, "unread", remaining)
	return flipped, nil
}

// GetConversation returns the stored conversation row. The error is
// pebble.ErrNotFound when no such conversation exists.
func GetConversation(convID string) (models.Conversation, error) {
	var conv models.Conversation
	if db == nil {
		return conv, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get(convMetaKey(convID))
	if err != nil {
		return conv, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, &conv); err != nil {
		return conv, fmt.Errorf("invalid conversation JSON: %w", err)
	}
	return conv, nil
}

// SaveConversation overwrites a conversation row. Used by the reconcile
// job; the normal write path goes through AppendMessage and MarkReadUpTo.
func SaveConversation(conv models.Conversation) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(conv)
	if err != nil {
		return err
	}
	return db.Set(convMetaKey(conv.ID), b, pebble.Sync)
}

// ListConversationsForUser returns the user's conversations ordered by
// UpdatedTS descending (most recently active first).
func ListConversationsForUser(userID string) ([]models.Conversation, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("user:" + userID + ":conv:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	out := []models.Conversation{}
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		if !bytes.HasPrefix(iter.Key(), prefix) {
			break
		}
		convID := string(iter.Value())
		conv, err := GetConversation(convID)
		if err != nil {
			logger.Warn("membership_without_conversation", "user", userID, "conversation", convID)
			continue
		}
		out = append(out, conv)
	}
	if err := iter.Error(); err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].UpdatedTS > out[j].UpdatedTS })
	return out, nil
}

// ListConversationIDs returns the ids of all stored conversations.
func ListConversationIDs() ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	prefix := []byte("conv:")
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	for iter.SeekGE(prefix); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		if !strings.HasPrefix(k, "conv:") {
			break
		}
		if strings.HasSuffix(k, ":meta") {
			out = append(out, strings.TrimSuffix(strings.TrimPrefix(k, "conv:"), ":meta"))
		}
	}
	return out, iter.Error()
}

// ListKeys returns all keys that start with the given prefix. An empty
// prefix returns every key. Used by the inspect tool.
func ListKeys(prefix string) ([]string, error) {
	if db == nil {
		return nil, fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	var out []string
	pfx := []byte(prefix)
	for iter.SeekGE(pfx); iter.Valid(); iter.Next() {
		if len(pfx) > 0 && !bytes.HasPrefix(iter.Key(), pfx) {
			break
		}
		out = append(out, string(append([]byte(nil), iter.Key()...)))
	}
	return out, iter.Error()
}

// GetKey returns the raw value for the given key. Used by the inspect tool.
func GetKey(key string) (string, error) {
	if db == nil {
		return "", fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err != nil {
		return "", err
	}
	defer closer.Close()
	return string(v), nil
}
