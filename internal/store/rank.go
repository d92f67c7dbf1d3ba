package store

import (
	"errors"
	"strings"
)

// Ranks are lowercase base36 strings compared lexicographically. A new rank is always
// placed strictly between two neighbors, so reordering one task never rewrites the rest
// of its column.
const rankAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

const (
	rankMin = 0
	rankMax = len(rankAlphabet) - 1
)

var (
	ErrRankOrder   = errors.New("rank bounds out of order")
	ErrRankNoSpace = errors.New("no rank fits between bounds")
	errRankChar    = errors.New("invalid rank character")
)

func digitOf(c byte) (int, bool) {
	i := strings.IndexByte(rankAlphabet, c)
	return i, i >= 0
}

func normRank(r string) string { return strings.ToLower(strings.TrimSpace(r)) }

// RankBetween returns a rank r with lo < r < hi. Either bound may be empty, meaning
// unbounded on that side.
func RankBetween(lo, hi string) (string, error) {
	lo, hi = normRank(lo), normRank(hi)
	if lo != "" && hi != "" && lo >= hi {
		return "", ErrRankOrder
	}
	fits := func(r string) bool {
		return r != "" && (lo == "" || lo < r) && (hi == "" || r < hi)
	}

	out := make([]byte, 0, 8)
	for i := 0; i < 256; i++ {
		dl, dh := rankMin, rankMax
		if i < len(lo) {
			d, ok := digitOf(lo[i])
			if !ok {
				return "", errRankChar
			}
			dl = d
		}
		if i < len(hi) {
			d, ok := digitOf(hi[i])
			if !ok {
				return "", errRankChar
			}
			dh = d
		}
		switch {
		case dl == dh:
			out = append(out, rankAlphabet[dl])
		case dh-dl > 1:
			out = append(out, rankAlphabet[dl+(dh-dl)/2])
			if r := string(out); fits(r) {
				return r, nil
			}
			// hi extends lo by a zero digit ("y" vs "y0"): nothing sorts in between.
			return "", ErrRankNoSpace
		default:
			// Adjacent digits: any extension of lo still sorts below hi.
			if r := lo + "0"; fits(r) {
				return r, nil
			}
			return "", ErrRankNoSpace
		}
	}
	return "", ErrRankNoSpace
}

// RankBetweenUnique is RankBetween that also avoids every rank in taken (normalized keys).
// On a collision the lower bound moves up to the colliding rank and the search repeats.
func RankBetweenUnique(taken map[string]bool, lo, hi string) (string, error) {
	lo, hi = normRank(lo), normRank(hi)
	for i := 0; i < 256; i++ {
		r, err := RankBetween(lo, hi)
		if err != nil {
			return "", err
		}
		if !taken[r] {
			return r, nil
		}
		lo = r
	}
	return "", ErrRankNoSpace
}
