package conversation

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBegin_NewConversation(t *testing.T) {
	s := NewStore(10)

	ex, err := s.Begin("", "", "hello")
	require.NoError(t, err)
	assert.NotEmpty(t, ex.ConversationID)
	assert.NotEmpty(t, ex.PromptID)
	assert.NotEmpty(t, ex.ReplyID)
	assert.NotEqual(t, ex.PromptID, ex.ReplyID)
	assert.Empty(t, ex.History)

	// Nothing is remembered until the turn is committed
	assert.Equal(t, 0, s.Len())
}

func TestBegin_UnknownConversation(t *testing.T) {
	s := NewStore(10)

	_, err := s.Begin("nope", "", "hello")
	assert.ErrorIs(t, err, ErrConversationNotFound)
}

func TestCommit_ContinuesFromLatest(t *testing.T) {
	s := NewStore(10)

	first, err := s.Begin("", "", "What is Go?")
	require.NoError(t, err)
	first.Commit("A programming language.")
	assert.Equal(t, 1, s.Len())

	second, err := s.Begin(first.ConversationID, "", "Who made it?")
	require.NoError(t, err)
	require.Len(t, second.History, 2)
	assert.Equal(t, RoleUser, second.History[0].Role)
	assert.Equal(t, "What is Go?", second.History[0].Text)
	assert.Equal(t, RoleAssistant, second.History[1].Role)
	assert.Equal(t, "A programming language.", second.History[1].Text)
	assert.Equal(t, first.ReplyID, second.History[1].ID)
}

func TestBegin_BranchFromParent(t *testing.T) {
	s := NewStore(10)

	first, err := s.Begin("", "", "one")
	require.NoError(t, err)
	first.Commit("1")

	second, err := s.Begin(first.ConversationID, first.ReplyID, "two")
	require.NoError(t, err)
	second.Commit("2")

	// Branch off the first answer again, ignoring the second turn
	branch, err := s.Begin(first.ConversationID, first.ReplyID, "two again")
	require.NoError(t, err)
	require.Len(t, branch.History, 2)
	assert.Equal(t, "1", branch.History[1].Text)

	// Continuing without a parent follows the most recent turn
	latest, err := s.Begin(first.ConversationID, "", "three")
	require.NoError(t, err)
	require.Len(t, latest.History, 4)
	assert.Equal(t, "2", latest.History[3].Text)
}

func TestBegin_UnknownParent(t *testing.T) {
	s := NewStore(10)

	first, err := s.Begin("", "", "one")
	require.NoError(t, err)
	first.Commit("1")

	_, err = s.Begin(first.ConversationID, "missing", "two")
	assert.ErrorIs(t, err, ErrParentNotFound)
}

func TestCommit_EvictsLeastRecentlyUsed(t *testing.T) {
	s := NewStore(2)

	a, _ := s.Begin("", "", "a")
	a.Commit("a")
	b, _ := s.Begin("", "", "b")
	b.Commit("b")

	// Touch a so that b becomes the oldest
	_, err := s.Begin(a.ConversationID, "", "again")
	require.NoError(t, err)

	c, _ := s.Begin("", "", "c")
	c.Commit("c")

	assert.Equal(t, 2, s.Len())
	_, err = s.Begin(b.ConversationID, "", "b?")
	assert.ErrorIs(t, err, ErrConversationNotFound)
	_, err = s.Begin(a.ConversationID, "", "a?")
	assert.NoError(t, err)
}

func TestStore_ConcurrentCommits(t *testing.T) {
	s := NewStore(1000)

	root, err := s.Begin("", "", "root")
	require.NoError(t, err)
	root.Commit("root")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ex, err := s.Begin(root.ConversationID, root.ReplyID, "q")
			if err != nil {
				t.Error(err)
				return
			}
			ex.Commit("a")
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, s.Len())
}

func TestSettle_PartialAnswerCanBeContinued(t *testing.T) {
	s := NewStore(10)

	ex, err := s.Begin("", "", "hi")
	require.NoError(t, err)
	ex.Settle("par")

	next, err := s.Begin(ex.ConversationID, ex.ReplyID, "follow up")
	require.NoError(t, err)
	require.Len(t, next.History, 2)
	assert.Equal(t, "par", next.History[1].Text)
}

func TestSettle_NothingStreamed(t *testing.T) {
	s := NewStore(10)

	ex, err := s.Begin("", "", "hi")
	require.NoError(t, err)
	ex.Settle("")
	assert.Equal(t, 0, s.Len())
}

func TestCommit_OnlyOnce(t *testing.T) {
	s := NewStore(10)

	ex, err := s.Begin("", "", "hi")
	require.NoError(t, err)
	ex.Commit("hello")
	ex.Settle("hel")

	next, err := s.Begin(ex.ConversationID, "", "again")
	require.NoError(t, err)
	require.Len(t, next.History, 2)
	assert.Equal(t, "hello", next.History[1].Text)
}
