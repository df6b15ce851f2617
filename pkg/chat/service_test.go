package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"croptalk/pkg/logger"
	"croptalk/pkg/store"
	"croptalk/pkg/utils"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	logger.Init()
	require.NoError(t, store.Open(t.TempDir()))
	t.Cleanup(func() { _ = store.Close() })
	return NewService()
}

func TestSendRejectsBlankContent(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	for _, content := range []string{"", "   ", "\n\t "} {
		_, err := svc.Send(ctx, SendRequest{Sender: "alice", Counterparty: "bob", Content: content})
		require.ErrorIs(t, err, ErrValidation)
	}

	// nothing was written
	convs, err := svc.Conversations(ctx, "alice")
	require.NoError(t, err)
	require.Empty(t, convs)
}

func TestSendRejectsSelfMessage(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Send(context.Background(), SendRequest{Sender: "alice", Counterparty: "alice", Content: "hi me"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestSendToUnknownConversation(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.Send(context.Background(), SendRequest{
		ConversationID: "alice~bob",
		Sender:         "alice",
		Content:        "hello?",
	})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestSendByCounterpartyCreatesAndContinues(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, SendRequest{Sender: "alice", Counterparty: "bob", Content: "first"})
	require.NoError(t, err)
	require.Equal(t, utils.PairConversationID("bob", "alice"), msg.ConversationID)
	require.Equal(t, "bob", msg.Receiver)

	// explicit conversation id now works from either side
	reply, err := svc.Send(ctx, SendRequest{ConversationID: msg.ConversationID, Sender: "bob", Content: "second"})
	require.NoError(t, err)
	require.Equal(t, "alice", reply.Receiver)

	// outsiders cannot post into it
	_, err = svc.Send(ctx, SendRequest{ConversationID: msg.ConversationID, Sender: "mallory", Content: "intruding"})
	require.ErrorIs(t, err, ErrValidation)
}

func TestMessagesViewerMustParticipate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	msg, err := svc.Send(ctx, SendRequest{Sender: "alice", Counterparty: "bob", Content: "hi"})
	require.NoError(t, err)

	_, err = svc.Messages(ctx, msg.ConversationID, "mallory", "", 0)
	require.ErrorIs(t, err, ErrValidation)

	_, err = svc.Messages(ctx, "nope~such", "alice", "", 0)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestMarkReadRequiresUptoID(t *testing.T) {
	svc := newTestService(t)

	_, err := svc.MarkRead(context.Background(), "alice~bob", "bob", "  ")
	require.ErrorIs(t, err, ErrValidation)
}

// Full exchange between a seller and a buyer: list rows, unread counts
// and read marking behave as each side would see them.
func TestSellerBuyerExchange(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()

	m1, err := svc.Send(ctx, SendRequest{Sender: "buyer", Counterparty: "seller", Content: "Do you deliver on weekends?"})
	require.NoError(t, err)
	m2, err := svc.Send(ctx, SendRequest{ConversationID: m1.ConversationID, Sender: "buyer", Content: "Also, is the honey raw?"})
	require.NoError(t, err)

	// the seller's list shows one conversation with two unread
	rows, err := svc.Conversations(ctx, "seller")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Equal(t, "buyer", rows[0].Counterparty)
	require.Equal(t, 2, rows[0].Unread)
	require.NotNil(t, rows[0].LastMessage)
	require.Equal(t, m2.Content, rows[0].LastMessage.Content)
	require.False(t, rows[0].LastMessage.SenderIsViewer)

	// the buyer sees the same row with zero unread and their own preview
	rows, err = svc.Conversations(ctx, "buyer")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	require.Zero(t, rows[0].Unread)
	require.True(t, rows[0].LastMessage.SenderIsViewer)

	// seller opens the thread and marks it read
	msgs, err := svc.Messages(ctx, m1.ConversationID, "seller", "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	unread, err := svc.MarkRead(ctx, m1.ConversationID, "seller", msgs[len(msgs)-1].ID)
	require.NoError(t, err)
	require.Zero(t, unread)

	// a cursor at m1 returns only m2
	tail, err := svc.Messages(ctx, m1.ConversationID, "seller", m1.ID, 0)
	require.NoError(t, err)
	require.Len(t, tail, 1)
	require.Equal(t, m2.ID, tail[0].ID)

	// seller replies; buyer now has one unread
	reply, err := svc.Send(ctx, SendRequest{ConversationID: m1.ConversationID, Sender: "seller", Content: "Raw and local. Saturday works."})
	require.NoError(t, err)

	rows, err = svc.Conversations(ctx, "buyer")
	require.NoError(t, err)
	require.Equal(t, 1, rows[0].Unread)
	require.Equal(t, reply.Content, rows[0].LastMessage.Content)
}
