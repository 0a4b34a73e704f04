package tree

import (
	"fmt"
)

const excerptRunes = 64

// Quote is the part of a reply the quoting pass reads and rewrites.
type Quote struct {
	ID       uint
	ParentID uint
	Username string
	Content  string
}

// QuoteReplies returns copies of replies where every reply answering another reply in
// the same slice gets the parent's author and an excerpt of its content prepended.
// The input slice is left untouched.
func QuoteReplies(replies []Quote) []Quote {
	byID := make(map[uint]Quote, len(replies))
	for _, r := range replies {
		byID[r.ID] = r
	}

	out := make([]Quote, len(replies))
	for i, r := range replies {
		out[i] = r
		if r.ParentID == 0 {
			continue
		}
		parent, ok := byID[r.ParentID]
		if !ok || parent.ID == r.ID {
			continue
		}
		out[i].Content = fmt.Sprintf("回复@%s: %s {%s %s}",
			parent.Username, r.Content, parent.Username, excerpt(parent.Content))
	}
	return out
}

func excerpt(s string) string {
	runes := []rune(s)
	if len(runes) <= excerptRunes {
		return s
	}
	return string(runes[:excerptRunes]) + "…"
}
