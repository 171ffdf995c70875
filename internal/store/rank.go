package store

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Ranks are lowercase base36 strings ordered lexicographically. A new rank can always be
// placed before, after, or (usually) between two existing ones without touching them.

const (
	rankAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"
	rankBase     = len(rankAlphabet)
	maxRankLen   = 256
)

var ErrNoRankSpace = errors.New("no space between ranks")

func normalizeRank(r string) string { return strings.ToLower(strings.TrimSpace(r)) }

func rankDigit(c byte) int { return strings.IndexByte(rankAlphabet, c) }

func checkRank(r string) error {
	for i := 0; i < len(r); i++ {
		if rankDigit(r[i]) < 0 {
			return fmt.Errorf("invalid rank %q", r)
		}
	}
	return nil
}

// RankBetween returns a rank strictly between lo and hi. Either bound may be empty
// (unbounded). It fails with ErrNoRankSpace when hi is lo followed only by zeros
// ("y" and "y0"), since nothing sorts between those.
func RankBetween(lo, hi string) (string, error) {
	lo, hi = normalizeRank(lo), normalizeRank(hi)
	if err := checkRank(lo); err != nil {
		return "", err
	}
	if err := checkRank(hi); err != nil {
		return "", err
	}
	if lo != "" && hi != "" && lo >= hi {
		return "", fmt.Errorf("rank bounds out of order: %q >= %q", lo, hi)
	}

	out := make([]byte, 0, len(lo)+2)
	open := hi == "" // once set, the result is already below hi
	for i := 0; i < maxRankLen; i++ {
		a := 0
		if i < len(lo) {
			a = rankDigit(lo[i])
		}
		b := rankBase
		if !open {
			if i >= len(hi) {
				return "", ErrNoRankSpace
			}
			b = rankDigit(hi[i])
		}
		switch {
		case b-a >= 2:
			out = append(out, rankAlphabet[(a+b)/2])
			return string(out), nil
		case b-a == 1:
			out = append(out, rankAlphabet[a])
			open = true
		default:
			out = append(out, rankAlphabet[a])
		}
	}
	return "", errors.New("unable to compute rank between")
}

func RankAfter(r string) (string, error)  { return RankBetween(r, "") }
func RankBefore(r string) (string, error) { return RankBetween("", r) }

// RankBetweenUnique is RankBetween avoiding every rank in taken (normalized keys).
func RankBetweenUnique(taken map[string]bool, lo, hi string) (string, error) {
	lo = normalizeRank(lo)
	for i := 0; i < maxRankLen; i++ {
		r, err := RankBetween(lo, hi)
		if err != nil {
			return "", err
		}
		if !taken[r] {
			return r, nil
		}
		lo = r
	}
	return "", errors.New("unable to find unique rank")
}

// SeedRanks assigns evenly spaced, fixed-width ranks to ids in order.
func SeedRanks(ids []string) map[string]string {
	out := make(map[string]string, len(ids))
	if len(ids) == 0 {
		return out
	}
	const step = 36
	width := len(strconv.FormatInt(int64((len(ids)+1)*step), rankBase))
	for i, id := range ids {
		r := strconv.FormatInt(int64((i+1)*step), rankBase)
		out[id] = strings.Repeat("0", width-len(r)) + r
	}
	return out
}
