package client

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"chat-sync/internal/events"
	"chat-sync/internal/models"
)

func msg(id, chatID string, at time.Time) models.Message {
	return models.Message{
		ID: id, ChatID: chatID, SenderID: "u1", Kind: models.KindMessage,
		Content: "hello " + id, SentAt: at,
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	view := NewConversationView("chat-1")
	ev := events.NewMessage(msg("m1", "chat-1", time.Now()), "")

	view.Apply(ev)
	view.Apply(ev)

	require.Len(t, view.Messages(), 1)
}

func TestApplyIgnoresOtherRooms(t *testing.T) {
	view := NewConversationView("chat-1")
	view.Apply(events.NewMessage(msg("m1", "chat-2", time.Now()), ""))
	assert.Empty(t, view.Messages())
}

func TestOrderIsStableRegardlessOfArrival(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var evs []*events.Event
	for i := 0; i < 20; i++ {
		evs = append(evs, events.NewMessage(msg(string(rune('a'+i)), "chat-1", base.Add(time.Duration(i)*time.Second)), ""))
	}

	sorted := NewConversationView("chat-1")
	for _, ev := range evs {
		sorted.Apply(ev)
	}

	shuffled := NewConversationView("chat-1")
	rand.New(rand.NewSource(42)).Shuffle(len(evs), func(i, j int) { evs[i], evs[j] = evs[j], evs[i] })
	for _, ev := range evs {
		shuffled.Apply(ev)
	}

	require.Equal(t, sorted.Messages(), shuffled.Messages())
	msgs := sorted.Messages()
	for i := 1; i < len(msgs); i++ {
		assert.False(t, msgs[i].SentAt.Before(msgs[i-1].SentAt), "messages out of order at %d", i)
	}
}

func TestBackfillAndStreamConverge(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	m1 := msg("m1", "chat-1", base)
	m2 := msg("m2", "chat-1", base.Add(time.Second))
	m3 := msg("m3", "chat-1", base.Add(2*time.Second))

	view := NewConversationView("chat-1")
	// m2 arrives live, then a REST page that overlaps it.
	view.Apply(events.NewMessage(m2, ""))
	view.Backfill([]models.Message{m1, m2, m3})

	msgs := view.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m3", msgs[2].ID)
}

func TestOptimisticMessageIsReplacedByConfirmation(t *testing.T) {
	view := NewConversationView("chat-1")
	now := time.Now().UTC()

	view.AddOptimistic("tok-1", models.Message{
		ID: "pending:tok-1", ChatID: "chat-1", SenderID: "u1",
		Kind: models.KindMessage, Content: "hi", SentAt: now,
	})
	require.Len(t, view.Messages(), 1)

	confirmed := msg("m1", "chat-1", now.Add(100*time.Millisecond))
	view.Apply(events.NewMessage(confirmed, "tok-1"))

	msgs := view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)
}

func TestEditUpdatesInPlace(t *testing.T) {
	view := NewConversationView("chat-1")
	original := msg("m1", "chat-1", time.Now())
	view.Apply(events.NewMessage(original, ""))

	editedAt := time.Now().UTC()
	edited := original
	edited.Content = "edited"
	edited.EditedAt = &editedAt
	view.Apply(events.NewMessageUpdated(edited))

	got, ok := view.Message("m1")
	require.True(t, ok)
	assert.Equal(t, "edited", got.Content)
	require.NotNil(t, got.EditedAt)
}

func TestDeleteTombstonesAndWinsOverEdit(t *testing.T) {
	view := NewConversationView("chat-1")
	original := msg("m1", "chat-1", time.Now())
	view.Apply(events.NewMessage(original, ""))

	deletedAt := time.Now().UTC()
	view.Apply(events.NewMessageDeleted("chat-1", "m1", deletedAt))

	// A stale edit arriving after the tombstone must not resurrect it.
	edited := original
	edited.Content = "too late"
	view.Apply(events.NewMessageUpdated(edited))

	got, ok := view.Message("m1")
	require.True(t, ok)
	assert.True(t, got.Deleted())
	assert.Empty(t, got.Content)
	require.Len(t, view.Messages(), 1, "tombstone keeps its place in the sequence")
}

func TestReactionsAreReplacedWholesale(t *testing.T) {
	view := NewConversationView("chat-1")
	view.Apply(events.NewMessage(msg("m1", "chat-1", time.Now()), ""))

	first := []models.Reaction{{UserID: "u1", Username: "alice", Emoji: "👍"}}
	view.Apply(events.NewReactionChanged("chat-1", "m1", first))

	// The authoritative list shrank; the local copy must shrink with it.
	view.Apply(events.NewReactionChanged("chat-1", "m1", []models.Reaction{}))

	got, ok := view.Message("m1")
	require.True(t, ok)
	assert.Empty(t, got.Reactions)
}

func TestReadReceiptsAccumulateOncePerUser(t *testing.T) {
	view := NewConversationView("chat-1")
	view.Apply(events.NewMessage(msg("m1", "chat-1", time.Now()), ""))

	readAt := time.Now().UTC()
	view.Apply(events.NewMessagesRead("chat-1", []string{"m1"}, "u2", "bob", readAt))
	view.Apply(events.NewMessagesRead("chat-1", []string{"m1"}, "u2", "bob", readAt.Add(time.Second)))
	view.Apply(events.NewMessagesRead("chat-1", []string{"m1"}, "u3", "carol", readAt))

	got, ok := view.Message("m1")
	require.True(t, ok)
	require.Len(t, got.ReadBy, 2)
}

func TestTypingSetTracksStartAndStop(t *testing.T) {
	view := NewConversationView("chat-1")

	view.Apply(events.NewTyping("chat-1", "u2", "bob", true))
	assert.Equal(t, []string{"bob"}, view.TypingUsers())

	view.Apply(events.NewTyping("chat-1", "u2", "bob", false))
	assert.Empty(t, view.TypingUsers())
}

func TestTypingClearedByIncomingMessage(t *testing.T) {
	view := NewConversationView("chat-1")
	view.Apply(events.NewTyping("chat-1", "u1", "alice", true))

	view.Apply(events.NewMessage(msg("m1", "chat-1", time.Now()), ""))
	assert.Empty(t, view.TypingUsers())
}

func TestMembershipSystemMessageShowsInline(t *testing.T) {
	view := NewConversationView("chat-1")
	sys := models.Message{
		ID: "s1", ChatID: "chat-1", SenderID: "u2", Kind: models.KindSystem,
		Content: "bob joined the chat", SentAt: time.Now(),
	}
	user := models.Participant{ChatID: "chat-1", UserID: "u2", Username: "bob"}
	view.Apply(events.NewMembership("chat-1", true, user, &sys))

	msgs := view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, models.KindSystem, msgs[0].Kind)
}

func TestPollStateKeepsLatestSnapshot(t *testing.T) {
	view := NewConversationView("chat-1")
	state := models.PollState{
		PollID: "p1", MessageID: "m1", TotalVotes: 3,
		Options: []models.PollOption{{ID: "o1", Text: "go", Votes: 3}},
	}
	view.Apply(events.NewPollVoteUpdated("chat-1", state, "u2"))

	got, ok := view.Poll("p1")
	require.True(t, ok)
	assert.Equal(t, 3, got.TotalVotes)
}

func TestMissedEventsConvergeAfterResync(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	var all []models.Message
	var evs []*events.Event
	for i := 0; i < 10; i++ {
		m := msg(string(rune('a'+i)), "chat-1", base.Add(time.Duration(i)*time.Second))
		all = append(all, m)
		evs = append(evs, events.NewMessage(m, ""))
	}

	online := NewConversationView("chat-1")
	for _, ev := range evs {
		online.Apply(ev)
	}

	// Flaky view sees the first three events, goes dark, then resyncs with
	// a REST page that overlaps what it already has.
	flaky := NewConversationView("chat-1")
	for _, ev := range evs[:3] {
		flaky.Apply(ev)
	}
	flaky.Backfill(all)

	require.Equal(t, online.Messages(), flaky.Messages())
}

func TestOldestCursor(t *testing.T) {
	view := NewConversationView("chat-1")
	assert.True(t, view.OldestCursor().IsZero())

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view.Backfill([]models.Message{msg("m2", "chat-1", base.Add(time.Hour)), msg("m1", "chat-1", base)})
	assert.Equal(t, base, view.OldestCursor())
}

func TestRemoveOptimisticRollsBackProvisionalEntry(t *testing.T) {
	view := NewConversationView("chat-1")
	view.AddOptimistic("tok-1", models.Message{
		ID: "pending:tok-1", ChatID: "chat-1", SenderID: "u1",
		Kind: models.KindMessage, Content: "hello", SentAt: time.Now(),
	})
	require.Len(t, view.Messages(), 1)

	view.RemoveOptimistic("tok-1")
	assert.Empty(t, view.Messages())

	// Rolling back twice is harmless.
	view.RemoveOptimistic("tok-1")
	assert.Empty(t, view.Messages())
}

func TestConfirmOptimisticThenEchoDoesNotDuplicate(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view := NewConversationView("chat-1")
	view.AddOptimistic("tok-1", models.Message{
		ID: "pending:tok-1", ChatID: "chat-1", SenderID: "u1",
		Kind: models.KindMessage, Content: "hello", SentAt: base,
	})

	confirmed := msg("m1", "chat-1", base)
	view.ConfirmOptimistic("tok-1", confirmed)

	msgs := view.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "m1", msgs[0].ID)

	// The stream echo carrying the same token arrives later.
	view.Apply(events.NewMessage(confirmed, "tok-1"))
	require.Len(t, view.Messages(), 1)
}

func TestBackfillKeepsTombstoneContentBlank(t *testing.T) {
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	view := NewConversationView("chat-1")
	view.Apply(events.NewMessage(msg("m1", "chat-1", base), ""))
	view.Apply(events.NewMessageDeleted("chat-1", "m1", base.Add(time.Minute)))

	got, ok := view.Message("m1")
	require.True(t, ok)
	require.True(t, got.Deleted())
	require.Empty(t, got.Content)

	// A fetched copy that still carries the original text must not make
	// the hidden content resurface.
	deletedAt := base.Add(time.Minute)
	stale := msg("m1", "chat-1", base)
	stale.DeletedAt = &deletedAt
	view.Backfill([]models.Message{stale})

	got, ok = view.Message("m1")
	require.True(t, ok)
	assert.True(t, got.Deleted())
	assert.Empty(t, got.Content)
}
