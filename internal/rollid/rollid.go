// Package rollid derives identifiers for short ends spun off a parent roll.
package rollid

import (
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"
)

// NextShortEndID returns the identifier for a short end cut from parent.
//
// A single trailing letter on parent is dropped to form the base, so "TX004a"
// and "TX004" share the base "TX004"; a one-letter parent leaves an empty base,
// so its short ends are single letters. Existing ids made of the base followed by
// letters count as used suffixes (case-insensitive). The first unused letter
// a..z is appended to the base; once all 26 are taken the id becomes
// base + "x" + n. The result is never a member of existing.
func NextShortEndID(existing map[string]struct{}, parent string) string {
	base := baseOf(parent)
	used := usedSuffixes(existing, base)

	for c := 'a'; c <= 'z'; c++ {
		if _, taken := used[string(c)]; taken {
			continue
		}
		candidate := base + string(c)
		if _, clash := existing[candidate]; !clash {
			return candidate
		}
	}

	for n := len(used) + 1; ; n++ {
		candidate := base + "x" + strconv.Itoa(n)
		if _, clash := existing[candidate]; !clash {
			return candidate
		}
	}
}

func baseOf(parent string) string {
	last, size := utf8.DecodeLastRuneInString(parent)
	if size == 0 || !unicode.IsLetter(last) {
		return parent
	}
	return parent[:len(parent)-size]
}

func usedSuffixes(existing map[string]struct{}, base string) map[string]struct{} {
	pattern := regexp.MustCompile(`^` + regexp.QuoteMeta(base) + `(\p{L}+)$`)
	used := make(map[string]struct{})
	for id := range existing {
		if m := pattern.FindStringSubmatch(id); m != nil {
			used[strings.ToLower(m[1])] = struct{}{}
		}
	}
	return used
}
