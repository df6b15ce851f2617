package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"croptalk/pkg/logger"
	"croptalk/pkg/models"
	"croptalk/pkg/utils"
)

func openTestStore(t *testing.T) {
	t.Helper()
	logger.Init()
	dir := t.TempDir()
	require.NoError(t, Open(dir))
	t.Cleanup(func() { _ = Close() })
}

func newMessage(sender, receiver, content string) models.Message {
	return models.Message{
		ID:             utils.GenMessageID(),
		ConversationID: utils.PairConversationID(sender, receiver),
		Sender:         sender,
		Receiver:       receiver,
		Content:        content,
		TS:             time.Now().UTC().UnixNano(),
	}
}

func TestAppendCreatesConversationLazily(t *testing.T) {
	openTestStore(t)

	msg := newMessage("alice", "bob", "Is this still available?")
	conv, err := AppendMessage(msg)
	require.NoError(t, err)

	require.Equal(t, utils.PairConversationID("bob", "alice"), conv.ID)
	require.Equal(t, [2]string{"alice", "bob"}, conv.Participants)
	require.Equal(t, 1, conv.Unread["bob"])
	require.Equal(t, 0, conv.Unread["alice"])
	require.NotNil(t, conv.LastMessage)
	require.Equal(t, msg.Content, conv.LastMessage.Content)

	// stored row matches the returned one
	stored, err := GetConversation(conv.ID)
	require.NoError(t, err)
	require.Equal(t, conv.Unread, stored.Unread)
	require.Equal(t, *conv.LastMessage, *stored.LastMessage)

	// both participants can discover it
	for _, u := range []string{"alice", "bob"} {
		convs, err := ListConversationsForUser(u)
		require.NoError(t, err)
		require.Len(t, convs, 1)
		require.Equal(t, conv.ID, convs[0].ID)
	}
}

func TestListMessagesOrderingAndCursor(t *testing.T) {
	openTestStore(t)

	var ids []string
	for _, text := range []string{"one", "two", "three", "four"} {
		m := newMessage("alice", "bob", text)
		_, err := AppendMessage(m)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	convID := utils.PairConversationID("alice", "bob")

	msgs, err := ListMessagesSince(convID, "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 4)
	for i, m := range msgs {
		require.Equal(t, ids[i], m.ID, "messages must come back oldest to newest")
	}

	// cursor is strictly-after
	tail, err := ListMessagesSince(convID, ids[1], 0)
	require.NoError(t, err)
	require.Len(t, tail, 2)
	require.Equal(t, ids[2], tail[0].ID)
	require.Equal(t, ids[3], tail[1].ID)

	// cursor at the last message yields nothing
	empty, err := ListMessagesSince(convID, ids[3], 0)
	require.NoError(t, err)
	require.Empty(t, empty)

	// limit caps the page
	page, err := ListMessagesSince(convID, "", 2)
	require.NoError(t, err)
	require.Len(t, page, 2)
}

func TestMarkReadUpToIsIdempotent(t *testing.T) {
	openTestStore(t)

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		m := newMessage("alice", "bob", text)
		_, err := AppendMessage(m)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	convID := utils.PairConversationID("alice", "bob")

	conv, err := GetConversation(convID)
	require.NoError(t, err)
	require.Equal(t, 3, conv.Unread["bob"])

	flipped, err := MarkReadUpTo(convID, "bob", ids[2])
	require.NoError(t, err)
	require.Equal(t, 3, flipped)

	conv, err = GetConversation(convID)
	require.NoError(t, err)
	require.Equal(t, 0, conv.Unread["bob"])

	msgs, err := ListMessagesSince(convID, "", 0)
	require.NoError(t, err)
	for _, m := range msgs {
		require.True(t, m.Read)
	}

	// second call with the same id is a no-op
	flipped, err = MarkReadUpTo(convID, "bob", ids[2])
	require.NoError(t, err)
	require.Zero(t, flipped)

	// earlier id is also a no-op
	flipped, err = MarkReadUpTo(convID, "bob", ids[0])
	require.NoError(t, err)
	require.Zero(t, flipped)
}

func TestMarkReadUpToLeavesLaterMessagesUnread(t *testing.T) {
	openTestStore(t)

	var ids []string
	for _, text := range []string{"a", "b", "c"} {
		m := newMessage("alice", "bob", text)
		_, err := AppendMessage(m)
		require.NoError(t, err)
		ids = append(ids, m.ID)
	}
	convID := utils.PairConversationID("alice", "bob")

	flipped, err := MarkReadUpTo(convID, "bob", ids[0])
	require.NoError(t, err)
	require.Equal(t, 1, flipped)

	conv, err := GetConversation(convID)
	require.NoError(t, err)
	require.Equal(t, 2, conv.Unread["bob"], "unread must equal the count of still-unread messages")
}

func TestMarkReadNeverTouchesOwnMessages(t *testing.T) {
	openTestStore(t)

	out := newMessage("alice", "bob", "hello")
	_, err := AppendMessage(out)
	require.NoError(t, err)
	in := newMessage("bob", "alice", "hi back")
	_, err = AppendMessage(in)
	require.NoError(t, err)
	convID := utils.PairConversationID("alice", "bob")

	// alice marks up to the newest message; only the inbound one flips
	flipped, err := MarkReadUpTo(convID, "alice", in.ID)
	require.NoError(t, err)
	require.Equal(t, 1, flipped)

	msgs, err := ListMessagesSince(convID, "", 0)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	require.False(t, msgs[0].Read, "alice's own message stays unread for bob")
	require.True(t, msgs[1].Read)

	conv, err := GetConversation(convID)
	require.NoError(t, err)
	require.Equal(t, 1, conv.Unread["bob"])
	require.Equal(t, 0, conv.Unread["alice"])
}

func TestListConversationsMostRecentFirst(t *testing.T) {
	openTestStore(t)

	_, err := AppendMessage(newMessage("alice", "bob", "first thread"))
	require.NoError(t, err)
	_, err = AppendMessage(newMessage("alice", "carol", "second thread"))
	require.NoError(t, err)
	_, err = AppendMessage(newMessage("bob", "alice", "bump"))
	require.NoError(t, err)

	convs, err := ListConversationsForUser("alice")
	require.NoError(t, err)
	require.Len(t, convs, 2)
	require.Equal(t, utils.PairConversationID("alice", "bob"), convs[0].ID)
	require.Equal(t, utils.PairConversationID("alice", "carol"), convs[1].ID)
}

func TestSnapshotTracksLatestAppend(t *testing.T) {
	openTestStore(t)

	_, err := AppendMessage(newMessage("alice", "bob", "older"))
	require.NoError(t, err)
	latest := newMessage("bob", "alice", "newest")
	conv, err := AppendMessage(latest)
	require.NoError(t, err)

	require.Equal(t, "newest", conv.LastMessage.Content)
	require.Equal(t, latest.ID, conv.LastMessage.ID)
	require.Equal(t, latest.TS, conv.UpdatedTS)
}
