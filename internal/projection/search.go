package projection

import (
	"strings"
	"time"

	rm "progression/internal/projection/models"
	pstrings "progression/pkg/platform/strings"
)

const defaultSearchLimit = 50

// DateOfBirthLayouts are the date formats accepted in a search.
var DateOfBirthLayouts = []string{
	time.DateOnly,
	"02/01/2006",
	"02-01-2006",
	"2 Jan 2006",
	"02 January 2006",
}

// ParseQuery splits free text into name or URN terms and an optional date of
// birth. The longest run of words that parses as a date wins.
func ParseQuery(text string, limit int) rm.SearchQuery {
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	words := strings.Fields(text)
	q := rm.SearchQuery{Limit: limit}

	for n := 3; n >= 1 && q.DateOfBirth == nil; n-- {
		for i := 0; i+n <= len(words); i++ {
			dob, ok := ParseDateOfBirth(strings.Join(words[i:i+n], " "))
			if !ok {
				continue
			}
			q.DateOfBirth = &dob
			words = append(words[:i:i], words[i+n:]...)
			break
		}
	}
	q.Terms = Tokens(strings.Join(words, " "))
	if len(q.Terms) == 0 {
		q.Terms = nil
	}
	return q
}

// ParseDateOfBirth tries every accepted layout.
func ParseDateOfBirth(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range DateOfBirthLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// Matches reports whether an entry satisfies the query.
func Matches(e rm.SearchEntry, q rm.SearchQuery) bool {
	if q.Empty() {
		return false
	}
	if q.DateOfBirth != nil {
		if e.DateOfBirth == nil || !sameDay(*e.DateOfBirth, *q.DateOfBirth) {
			return false
		}
	}
	tokens := make(map[string]struct{}, len(e.Tokens))
	for _, t := range pstrings.DedupeAndTrimLower(e.Tokens) {
		tokens[t] = struct{}{}
	}
	for _, term := range q.Terms {
		if _, ok := tokens[term]; !ok {
			return false
		}
	}
	return true
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.UTC().Date()
	by, bm, bd := b.UTC().Date()
	return ay == by && am == bm && ad == bd
}
