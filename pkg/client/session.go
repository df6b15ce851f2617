package client

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"croptalk/pkg/chat"
	"croptalk/pkg/logger"
	"croptalk/pkg/models"
)

// Session holds one viewer's messaging state: the conversation list, the
// currently open thread and the in-flight bookkeeping that keeps polls
// and sends from stepping on each other. All state sits behind one
// mutex; the poller's tickers and user-triggered sends are goroutines
// multiplexed over it.
type Session struct {
	svc    Service
	viewer string

	mu    sync.Mutex
	convs []chat.ConversationView

	openID string
	thread []models.Message
	seen   map[string]struct{}
	// lastID is the thread-poll cursor: the highest message id merged so
	// far. Advancing it only on merge keeps re-fetches idempotent.
	lastID string

	listInFlight bool
	// pollSeq numbers thread polls; pollToken holds the in-flight poll's
	// number, 0 when none. A completion clears only its own token, so a
	// late completion for a deselected conversation can never free the
	// slot a newer poll holds.
	pollSeq   uint64
	pollToken uint64
	// sending tracks in-flight sends per conversation so repeated key
	// events cannot create duplicate messages.
	sending map[string]bool

	// markReadTimeout bounds the fire-and-forget reconciliation calls.
	markReadTimeout time.Duration
}

// NewSession returns a Session for the given viewer.
func NewSession(svc Service, viewer string) *Session {
	return &Session{
		svc:             svc,
		viewer:          viewer,
		seen:            map[string]struct{}{},
		sending:         map[string]bool{},
		markReadTimeout: 10 * time.Second,
	}
}

// Viewer returns the session's viewer id.
func (s *Session) Viewer() string { return s.viewer }

// Conversations returns a copy of the last known conversation list.
func (s *Session) Conversations() []chat.ConversationView {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]chat.ConversationView, len(s.convs))
	copy(out, s.convs)
	return out
}

// Thread returns a copy of the open conversation's messages.
func (s *Session) Thread() []models.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Message, len(s.thread))
	copy(out, s.thread)
	return out
}

// Open returns the id of the open conversation, or "".
func (s *Session) Open() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.openID
}

// RefreshList fetches the viewer's conversation list and replaces the
// local copy wholesale. A refresh is skipped while a previous one is
// unresolved; a failed refresh keeps the last known good list.
func (s *Session) RefreshList(ctx context.Context) error {
	s.mu.Lock()
	if s.listInFlight {
		s.mu.Unlock()
		return nil
	}
	s.listInFlight = true
	s.mu.Unlock()

	convs, err := s.svc.Conversations(ctx, s.viewer)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.listInFlight = false
	if err != nil {
		logger.Warn("conversation_list_poll_failed", "viewer", s.viewer, "error", err)
		return err
	}
	s.convs = convs
	return nil
}

// Select opens a conversation: the previous thread state is discarded,
// the full thread is fetched and unread messages are reconciled. Any
// late poll results for the previously open conversation will be
// discarded by conversation-id comparison.
func (s *Session) Select(ctx context.Context, convID string) error {
	s.mu.Lock()
	s.openID = convID
	s.thread = nil
	s.seen = map[string]struct{}{}
	s.lastID = ""
	s.pollToken = 0
	s.mu.Unlock()

	return s.PollThread(ctx)
}

// Deselect closes the open conversation. In-flight reconciliations are
// left to complete; their effects are idempotent.
func (s *Session) Deselect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openID = ""
	s.thread = nil
	s.seen = map[string]struct{}{}
	s.lastID = ""
}

// PollThread fetches the open conversation's tail (messages strictly
// after the cursor) and merges it dedup-by-id. A poll is skipped while a
// previous one is unresolved. Results arriving after the selection
// changed are discarded, keyed by conversation id rather than timer
// identity.
func (s *Session) PollThread(ctx context.Context) error {
	s.mu.Lock()
	if s.openID == "" || s.pollToken != 0 {
		s.mu.Unlock()
		return nil
	}
	convID := s.openID
	cursor := s.lastID
	s.pollSeq++
	token := s.pollSeq
	s.pollToken = token
	s.mu.Unlock()

	msgs, err := s.svc.MessagesSince(ctx, convID, s.viewer, cursor)

	s.mu.Lock()
	if s.pollToken == token {
		s.pollToken = 0
	}
	if s.openID != convID {
		// stale completion for a deselected conversation
		s.mu.Unlock()
		return nil
	}
	if err != nil {
		s.mu.Unlock()
		logger.Warn("thread_poll_failed", "conversation", convID, "error", err)
		return err
	}
	s.mergeLocked(msgs)
	upto := s.highestInboundLocked()
	s.mu.Unlock()

	if upto != "" {
		s.reconcileReads(convID, upto)
	}
	return nil
}

// Send submits composed content to the open conversation. Blank content
// is rejected locally without a network call; a second send while one is
// in flight returns ErrBusy. On success the confirmed message is merged
// into the thread (dedup against any concurrent poll) and the
// conversation list is refreshed out of band. On failure nothing is
// appended, so the caller's compose state survives for manual retry.
func (s *Session) Send(ctx context.Context, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, fmt.Errorf("%w: content is empty", chat.ErrValidation)
	}

	s.mu.Lock()
	convID := s.openID
	if convID == "" {
		s.mu.Unlock()
		return models.Message{}, fmt.Errorf("%w: no conversation selected", chat.ErrNotFound)
	}
	if s.sending[convID] {
		s.mu.Unlock()
		return models.Message{}, chat.ErrBusy
	}
	s.sending[convID] = true
	s.mu.Unlock()

	msg, err := s.svc.Send(ctx, chat.SendRequest{
		ConversationID: convID,
		Sender:         s.viewer,
		Content:        content,
	})

	s.mu.Lock()
	s.sending[convID] = false
	if err != nil {
		s.mu.Unlock()
		return models.Message{}, err
	}
	if s.openID == convID {
		s.mergeLocked([]models.Message{msg})
	}
	s.mu.Unlock()

	// out-of-band refresh so the sender's own list shows the new snapshot
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.markReadTimeout)
		defer cancel()
		_ = s.RefreshList(ctx)
	}()
	return msg, nil
}

// SendTo starts (or continues) the pair conversation with counterparty
// and selects it. Used for "message the seller" entry points that have
// no conversation id yet.
func (s *Session) SendTo(ctx context.Context, counterparty, content string) (models.Message, error) {
	if strings.TrimSpace(content) == "" {
		return models.Message{}, fmt.Errorf("%w: content is empty", chat.ErrValidation)
	}
	msg, err := s.svc.Send(ctx, chat.SendRequest{
		Counterparty: counterparty,
		Sender:       s.viewer,
		Content:      content,
	})
	if err != nil {
		return models.Message{}, err
	}
	if err := s.Select(ctx, msg.ConversationID); err != nil {
		logger.Warn("select_after_send_failed", "conversation", msg.ConversationID, "error", err)
	}
	return msg, nil
}

// mergeLocked inserts messages into the thread, deduplicating by id and
// keeping id order (ids sort by creation time). Callers hold s.mu.
func (s *Session) mergeLocked(msgs []models.Message) {
	added := false
	for _, m := range msgs {
		if _, ok := s.seen[m.ID]; ok {
			continue
		}
		s.seen[m.ID] = struct{}{}
		s.thread = append(s.thread, m)
		if m.ID > s.lastID {
			s.lastID = m.ID
		}
		added = true
	}
	if added {
		sort.SliceStable(s.thread, func(i, j int) bool { return s.thread[i].ID < s.thread[j].ID })
	}
}

// highestInboundLocked returns the highest id in the thread addressed to
// the viewer, or "" when nothing inbound is visible. Callers hold s.mu.
func (s *Session) highestInboundLocked() string {
	for i := len(s.thread) - 1; i >= 0; i-- {
		if s.thread[i].Receiver == s.viewer {
			return s.thread[i].ID
		}
	}
	return ""
}

// reconcileReads marks messages read up to uptoID. Fire-and-forget: the
// call completes even if the viewer switches away, which is harmless
// because the server operation is idempotent and monotone. Only messages
// addressed to the viewer are affected.
func (s *Session) reconcileReads(convID, uptoID string) {
	go s.markReadNow(convID, uptoID)
}

// markReadNow performs one reconciliation round-trip and folds the
// returned unread count back into local state when still relevant.
func (s *Session) markReadNow(convID, uptoID string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.markReadTimeout)
	defer cancel()
	unread, err := s.svc.MarkRead(ctx, convID, s.viewer, uptoID)
	if err != nil {
		logger.Warn("mark_read_failed", "conversation", convID, "error", err)
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.convs {
		if s.convs[i].ID == convID {
			s.convs[i].Unread = unread
		}
	}
	if s.openID == convID {
		for i := range s.thread {
			if s.thread[i].Receiver == s.viewer && s.thread[i].ID <= uptoID {
				s.thread[i].Read = true
			}
		}
	}
}
