package tree

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuoteReplies(t *testing.T) {
	replies := []Quote{
		{ID: 10, ParentID: 0, Username: "alice", Content: "first"},
		{ID: 11, ParentID: 10, Username: "bob", Content: "agreed"},
		{ID: 12, ParentID: 11, Username: "carol", Content: "me too"},
		{ID: 13, ParentID: 99, Username: "dave", Content: "parent gone"},
	}

	got := QuoteReplies(replies)

	assert.Equal(t, "first", got[0].Content)
	assert.Equal(t, "回复@alice: agreed {alice first}", got[1].Content)
	// Quotes are built from the undecorated parent.
	assert.Equal(t, "回复@bob: me too {bob agreed}", got[2].Content)
	assert.Equal(t, "parent gone", got[3].Content)
}

func TestQuoteRepliesDoesNotMutateInput(t *testing.T) {
	replies := []Quote{
		{ID: 1, Username: "alice", Content: "hi"},
		{ID: 2, ParentID: 1, Username: "bob", Content: "hello"},
	}

	_ = QuoteReplies(replies)

	assert.Equal(t, "hello", replies[1].Content)
}

func TestQuoteRepliesTruncatesLongParents(t *testing.T) {
	long := strings.Repeat("字", excerptRunes+10)
	got := QuoteReplies([]Quote{
		{ID: 1, Username: "alice", Content: long},
		{ID: 2, ParentID: 1, Username: "bob", Content: "ok"},
	})

	assert.Contains(t, got[1].Content, strings.Repeat("字", excerptRunes)+"…}")
	assert.NotContains(t, got[1].Content, strings.Repeat("字", excerptRunes+1))
}
