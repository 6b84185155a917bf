package client

import (
	"sort"
	"strings"
)

// SearchLimit caps autocomplete results
const SearchLimit = 20

const (
	rankExact = iota
	rankPrefix
	rankContains
)

// Search filters entries by a case-insensitive substring over the company
// name, the stored name index and contact fields, then ranks exact name
// matches first, name prefix matches second and the rest alphabetically.
// The name is folded here so entries carrying an index written by an older
// folding rule still match.
func Search(entries []*Client, text string, limit int) []*Client {
	q := NameIndex(text)
	if q == "" {
		return []*Client{}
	}

	type hit struct {
		entry *Client
		key   string
		rank  int
	}
	var hits []hit
	for _, c := range entries {
		idx := NameIndex(c.Name)
		switch {
		case idx == q:
			hits = append(hits, hit{c, idx, rankExact})
		case strings.HasPrefix(idx, q):
			hits = append(hits, hit{c, idx, rankPrefix})
		case strings.Contains(idx, q) || strings.Contains(c.NameIndex, q) || contactMatches(c, q):
			hits = append(hits, hit{c, idx, rankContains})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].rank != hits[j].rank {
			return hits[i].rank < hits[j].rank
		}
		return hits[i].key < hits[j].key
	})

	if limit > 0 && len(hits) > limit {
		hits = hits[:limit]
	}
	out := make([]*Client, len(hits))
	for i, h := range hits {
		out[i] = h.entry
	}
	return out
}

func contactMatches(c *Client, q string) bool {
	for _, ct := range c.Contacts {
		for _, field := range []string{ct.PersonName, ct.Phone, ct.Email, ct.Department, ct.Position} {
			if field != "" && strings.Contains(NameIndex(field), q) {
				return true
			}
		}
	}
	return false
}
