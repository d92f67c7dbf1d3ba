package store

import (
	"errors"

	"taskboard/internal/model"
)

// Ranked is a task id with its stored rank in one column. An empty rank means the task
// has never been ordered locally.
type Ranked struct {
	ID   model.ID
	Rank string
}

// PlanPlacement assigns ranks so that final, the desired column order, sorts correctly
// after the task at movedIdx was dropped there.
//
// It first tries to rank only the moved task between its neighbors. When the neighbors
// are unranked or their ranks are unusable (duplicates, no space), it re-ranks the
// smallest window around the drop point whose outer bounds are usable. If any other task
// in the column is unranked, or no window works, the whole column is ranked in order.
func PlanPlacement(final []Ranked, movedIdx int) (map[model.ID]string, error) {
	if len(final) == 0 {
		return map[model.ID]string{}, nil
	}
	if movedIdx < 0 || movedIdx >= len(final) {
		return nil, errors.New("moved index out of range")
	}
	for i, r := range final {
		if i != movedIdx && normRank(r.Rank) == "" {
			return rankSequence(final, 0, len(final)-1, "", "", nil)
		}
	}

	taken := takenRanks(final, map[int]bool{movedIdx: true})
	if r, ok := rankAt(taken, final, movedIdx); ok {
		if r == normRank(final[movedIdx].Rank) {
			return map[model.ID]string{}, nil
		}
		return map[model.ID]string{final[movedIdx].ID: r}, nil
	}

	lo, hi := usableWindow(final, movedIdx)
	lower, upper := "", ""
	if lo > 0 {
		lower = final[lo-1].Rank
	}
	if hi+1 < len(final) {
		upper = final[hi+1].Rank
	}
	skip := map[int]bool{}
	for i := lo; i <= hi; i++ {
		skip[i] = true
	}
	if out, err := rankSequence(final, lo, hi, lower, upper, takenRanks(final, skip)); err == nil {
		return out, nil
	}
	return rankSequence(final, 0, len(final)-1, "", "", nil)
}

func rankSequence(final []Ranked, lo, hi int, lower, upper string, taken map[string]bool) (map[model.ID]string, error) {
	if taken == nil {
		taken = map[string]bool{}
	}
	out := make(map[model.ID]string, hi-lo+1)
	cur := lower
	for i := lo; i <= hi; i++ {
		r, err := RankBetweenUnique(taken, cur, upper)
		if err != nil {
			return nil, err
		}
		taken[r] = true
		out[final[i].ID] = r
		cur = r
	}
	return out, nil
}

func takenRanks(final []Ranked, skip map[int]bool) map[string]bool {
	taken := map[string]bool{}
	for i, r := range final {
		if skip[i] {
			continue
		}
		if n := normRank(r.Rank); n != "" {
			taken[n] = true
		}
	}
	return taken
}

// rankAt ranks final[idx] between its immediate neighbors; ok is false when they leave
// no room.
func rankAt(taken map[string]bool, final []Ranked, idx int) (string, bool) {
	lower, upper := "", ""
	if idx > 0 {
		lower = normRank(final[idx-1].Rank)
	}
	if idx+1 < len(final) {
		upper = normRank(final[idx+1].Rank)
	}
	if lower != "" && upper != "" && lower >= upper {
		return "", false
	}
	r, err := RankBetweenUnique(taken, lower, upper)
	if err != nil {
		return "", false
	}
	return r, true
}

// usableWindow finds the smallest [lo, hi] around idx whose outer bounds are open or
// strictly increasing. Windows growing to the right are tried first.
func usableWindow(final []Ranked, idx int) (lo, hi int) {
	usable := func(lo, hi int) bool {
		if lo == 0 || hi == len(final)-1 {
			return true
		}
		lower, upper := normRank(final[lo-1].Rank), normRank(final[hi+1].Rank)
		if lower >= upper {
			return false
		}
		_, err := RankBetween(lower, upper)
		return err == nil
	}
	for size := 1; size <= len(final); size++ {
		first := idx - size + 1
		if first < 0 {
			first = 0
		}
		last := idx
		if last+size > len(final) {
			last = len(final) - size
		}
		for lo := last; lo >= first; lo-- {
			if usable(lo, lo+size-1) {
				return lo, lo + size - 1
			}
		}
	}
	return 0, len(final) - 1
}
