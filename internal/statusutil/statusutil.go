package statusutil

import (
	"sort"
	"strings"
	"unicode"

	"taskboard/internal/model"
)

// Normalize folds a status name into its lookup key: trimmed, lowercased, with runs of
// whitespace or hyphens collapsed into a single underscore ("In Progress" -> "in_progress").
func Normalize(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return ""
	}
	var b strings.Builder
	b.Grow(len(name))
	pendingSep := false
	for _, r := range name {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			pendingSep = true
			continue
		}
		if pendingSep && b.Len() > 0 {
			b.WriteByte('_')
		}
		pendingSep = false
		b.WriteRune(r)
	}
	return b.String()
}

// RankTable maps normalized status names to canonical column positions.
type RankTable map[string]int

func DefaultRanks() RankTable {
	return RankTable{
		"backlog":     0,
		"pending":     1,
		"todo":        1,
		"waiting":     2,
		"in_progress": 3,
		"doing":       3,
		"in_review":   4,
		"review":      4,
		"on_hold":     5,
		"completed":   6,
		"done":        6,
		"cancelled":   7,
	}
}

func (t RankTable) Rank(name string) (int, bool) {
	if t == nil {
		return 0, false
	}
	r, ok := t[Normalize(name)]
	return r, ok
}

// Rules holds the status conventions the board relies on.
type Rules struct {
	Ranks   RankTable
	Final   map[string]bool
	Waiting string
}

func DefaultRules() Rules {
	return Rules{
		Ranks:   DefaultRanks(),
		Final:   map[string]bool{"completed": true, "done": true, "cancelled": true},
		Waiting: "waiting",
	}
}

// NewRules builds rules from config values; empty inputs fall back to the defaults.
func NewRules(ranks map[string]int, final []string, waiting string) Rules {
	r := DefaultRules()
	if len(ranks) > 0 {
		r.Ranks = RankTable{}
		for k, v := range ranks {
			if nk := Normalize(k); nk != "" {
				r.Ranks[nk] = v
			}
		}
	}
	if len(final) > 0 {
		r.Final = map[string]bool{}
		for _, f := range final {
			if nf := Normalize(f); nf != "" {
				r.Final[nf] = true
			}
		}
	}
	if w := Normalize(waiting); w != "" {
		r.Waiting = w
	}
	return r
}

func (r Rules) IsFinal(s model.Status) bool {
	if s.IsFinal {
		return true
	}
	return r.IsFinalName(s.Name) || (s.Slug != "" && r.IsFinalName(s.Slug))
}

func (r Rules) IsFinalName(name string) bool {
	return r.Final[Normalize(name)]
}

func (r Rules) IsWaitingName(name string) bool {
	n := Normalize(name)
	return n != "" && n == Normalize(r.Waiting)
}

// RankOf returns the column position of s: its explicit rank, or the table entry for its
// name (then slug). ok is false for statuses the table does not know.
func (r Rules) RankOf(s model.Status) (int, bool) {
	if s.Rank != nil {
		return *s.Rank, true
	}
	if v, ok := r.Ranks.Rank(s.Name); ok {
		return v, true
	}
	if s.Slug != "" {
		return r.Ranks.Rank(s.Slug)
	}
	return 0, false
}

// Compare orders statuses: ranked before unranked, then by rank, then by id.
func (r Rules) Compare(a, b model.Status) int {
	ra, oka := r.RankOf(a)
	rb, okb := r.RankOf(b)
	switch {
	case oka && !okb:
		return -1
	case !oka && okb:
		return 1
	case oka && okb && ra != rb:
		if ra < rb {
			return -1
		}
		return 1
	}
	return CompareIDs(a.ID, b.ID)
}

func (r Rules) Sort(statuses []model.Status) {
	sort.SliceStable(statuses, func(i, j int) bool {
		return r.Compare(statuses[i], statuses[j]) < 0
	})
}

// CompareIDs compares ids numerically when both are decimal, lexically otherwise.
func CompareIDs(a, b model.ID) int {
	sa := strings.TrimSpace(string(a))
	sb := strings.TrimSpace(string(b))
	if isDecimal(sa) && isDecimal(sb) {
		sa = strings.TrimLeft(sa, "0")
		sb = strings.TrimLeft(sb, "0")
		if len(sa) != len(sb) {
			if len(sa) < len(sb) {
				return -1
			}
			return 1
		}
	}
	return strings.Compare(sa, sb)
}

func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
