package client

import (
	"sort"
	"sync"
	"time"

	"chat-sync/internal/events"
	"chat-sync/internal/models"
)

// typingTTL is the failsafe after which a typing indicator expires locally
// even if the stop event was lost.
const typingTTL = 2 * time.Second

// ConversationView is the client-side materialized state of one chat. It
// converges to the server's view regardless of the order or multiplicity of
// the event stream: events are deduplicated by id, messages keep a stable
// sort by sent_at, deletions take precedence over any later edit, and
// reaction lists are replaced wholesale with the server's snapshot.
type ConversationView struct {
	mu sync.Mutex

	chatID   string
	messages []models.Message
	byID     map[string]int

	// seen caches applied event ids so a re-delivered event is a no-op.
	seen map[string]struct{}

	// pending maps client tokens to the provisional message inserted by
	// AddOptimistic, so the confirming broadcast replaces rather than
	// duplicates it.
	pending map[string]string

	typing map[string]typingEntry

	polls map[string]models.PollState
}

type typingEntry struct {
	username string
	since    time.Time
}

// NewConversationView builds an empty view for one chat.
func NewConversationView(chatID string) *ConversationView {
	return &ConversationView{
		chatID:  chatID,
		byID:    make(map[string]int),
		seen:    make(map[string]struct{}),
		pending: make(map[string]string),
		typing:  make(map[string]typingEntry),
		polls:   make(map[string]models.PollState),
	}
}

// ChatID returns the chat this view tracks.
func (v *ConversationView) ChatID() string {
	return v.chatID
}

// AddOptimistic inserts a provisional message keyed by the client token, to
// be replaced when the server's confirming event arrives with that token.
func (v *ConversationView) AddOptimistic(token string, msg models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pending[token] = msg.ID
	v.insertLocked(msg)
}

// ConfirmOptimistic swaps the provisional entry for token with the server's
// confirmed record, typically the response body of the POST that created
// it. The stream echo carrying the same id later is folded in as usual.
func (v *ConversationView) ConfirmOptimistic(token string, msg models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if tempID, ok := v.pending[token]; ok {
		v.removeLocked(tempID)
		delete(v.pending, token)
	}
	v.insertLocked(msg)
}

// RemoveOptimistic rolls back the provisional entry for token after the
// write failed, so the view never shows a message the server rejected.
func (v *ConversationView) RemoveOptimistic(token string) {
	v.mu.Lock()
	defer v.mu.Unlock()
	tempID, ok := v.pending[token]
	if !ok {
		return
	}
	v.removeLocked(tempID)
	delete(v.pending, token)
}

// Apply folds one event into the view. Events for other rooms and already
// seen event ids are ignored. Applying the same event twice leaves the view
// unchanged.
func (v *ConversationView) Apply(ev *events.Event) {
	if ev == nil || ev.RoomID != v.chatID {
		return
	}
	v.mu.Lock()
	defer v.mu.Unlock()

	if _, ok := v.seen[ev.ID]; ok {
		return
	}
	v.seen[ev.ID] = struct{}{}

	switch data := ev.Data.(type) {
	case *events.MessagePayload:
		if data.ClientToken != "" {
			if tempID, ok := v.pending[data.ClientToken]; ok {
				v.removeLocked(tempID)
				delete(v.pending, data.ClientToken)
			}
		}
		v.insertLocked(data.Message)
		delete(v.typing, data.Message.SenderID)

	case *events.MessageUpdatedPayload:
		v.updateLocked(data.Message)

	case *events.MessageDeletedPayload:
		if i, ok := v.byID[data.MessageID]; ok {
			at := data.DeletedAt
			v.messages[i].DeletedAt = &at
			v.messages[i].Content = ""
		}

	case *events.MessagesReadPayload:
		for _, id := range data.MessageIDs {
			i, ok := v.byID[id]
			if !ok {
				continue
			}
			v.addReceiptLocked(i, models.ReadReceipt{
				MessageID: id,
				UserID:    data.UserID,
				Username:  data.Username,
				ReadAt:    data.ReadAt,
			})
		}

	case *events.TypingPayload:
		if ev.Type == events.TypeTyping {
			v.typing[data.UserID] = typingEntry{username: data.Username, since: time.Now()}
		} else {
			delete(v.typing, data.UserID)
		}

	case *events.MembershipPayload:
		if data.Message != nil {
			v.insertLocked(*data.Message)
		}
		delete(v.typing, data.User.UserID)

	case *events.ReactionChangedPayload:
		if i, ok := v.byID[data.MessageID]; ok {
			v.messages[i].Reactions = data.Reactions
		}

	case *events.PollVotePayload:
		v.polls[data.State.PollID] = data.State
	}
}

// Backfill merges a page of history fetched over REST. Records already
// present keep their place; tombstoned or edited copies from the server win
// over local state since REST is authoritative.
func (v *ConversationView) Backfill(msgs []models.Message) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for _, msg := range msgs {
		// Deleted rows stay tombstones: their content never resurfaces,
		// no matter what the fetched copy carries.
		if msg.Deleted() {
			msg.Content = ""
		}
		if i, ok := v.byID[msg.ID]; ok {
			v.messages[i] = msg
			continue
		}
		v.insertLocked(msg)
	}
}

// Messages returns the ordered message list, oldest first.
func (v *ConversationView) Messages() []models.Message {
	v.mu.Lock()
	defer v.mu.Unlock()
	out := make([]models.Message, len(v.messages))
	copy(out, v.messages)
	return out
}

// Message returns one message by id.
func (v *ConversationView) Message(id string) (models.Message, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	i, ok := v.byID[id]
	if !ok {
		return models.Message{}, false
	}
	return v.messages[i], true
}

// Poll returns the latest tally snapshot seen for a poll.
func (v *ConversationView) Poll(pollID string) (models.PollState, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	state, ok := v.polls[pollID]
	return state, ok
}

// TypingUsers returns who is currently typing, pruning entries older than
// the failsafe TTL in case a stop event was lost.
func (v *ConversationView) TypingUsers() []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	cutoff := time.Now().Add(-typingTTL)
	names := make([]string, 0, len(v.typing))
	for userID, entry := range v.typing {
		if entry.since.Before(cutoff) {
			delete(v.typing, userID)
			continue
		}
		names = append(names, entry.username)
	}
	sort.Strings(names)
	return names
}

// OldestCursor returns the sent_at of the oldest loaded message, for use as
// the before cursor when paging further back. The zero time means the view
// is empty.
func (v *ConversationView) OldestCursor() time.Time {
	v.mu.Lock()
	defer v.mu.Unlock()
	if len(v.messages) == 0 {
		return time.Time{}
	}
	return v.messages[0].SentAt
}

// insertLocked places msg in sent_at order, with the id as tiebreak so two
// clients that saw the same events agree on ordering.
func (v *ConversationView) insertLocked(msg models.Message) {
	if i, ok := v.byID[msg.ID]; ok {
		// Keep a local tombstone over a stale copy.
		if v.messages[i].Deleted() && !msg.Deleted() {
			return
		}
		v.messages[i] = msg
		return
	}
	i := sort.Search(len(v.messages), func(i int) bool {
		if v.messages[i].SentAt.Equal(msg.SentAt) {
			return v.messages[i].ID >= msg.ID
		}
		return v.messages[i].SentAt.After(msg.SentAt)
	})
	v.messages = append(v.messages, models.Message{})
	copy(v.messages[i+1:], v.messages[i:])
	v.messages[i] = msg
	v.reindexLocked(i)
}

func (v *ConversationView) updateLocked(msg models.Message) {
	i, ok := v.byID[msg.ID]
	if !ok {
		v.insertLocked(msg)
		return
	}
	if v.messages[i].Deleted() {
		return
	}
	// Preserve locally accumulated receipts and reactions unless the
	// update carries fresher copies.
	if msg.ReadBy == nil {
		msg.ReadBy = v.messages[i].ReadBy
	}
	if msg.Reactions == nil {
		msg.Reactions = v.messages[i].Reactions
	}
	v.messages[i] = msg
}

func (v *ConversationView) removeLocked(id string) {
	i, ok := v.byID[id]
	if !ok {
		return
	}
	v.messages = append(v.messages[:i], v.messages[i+1:]...)
	delete(v.byID, id)
	v.reindexLocked(i)
}

func (v *ConversationView) addReceiptLocked(i int, receipt models.ReadReceipt) {
	for _, existing := range v.messages[i].ReadBy {
		if existing.UserID == receipt.UserID {
			return
		}
	}
	v.messages[i].ReadBy = append(v.messages[i].ReadBy, receipt)
}

func (v *ConversationView) reindexLocked(from int) {
	for i := from; i < len(v.messages); i++ {
		v.byID[v.messages[i].ID] = i
	}
}
