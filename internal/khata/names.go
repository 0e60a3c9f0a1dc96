// names.go - Compare handwritten names against roster names

package khata

import (
	"fmt"
	"regexp"
	"strings"
)

// NameMismatchThreshold is the similarity (0-100) below which a found row's
// name is reported as differing from the roster
const NameMismatchThreshold = 60.0

var (
	nameHonorifics = []string{
		"মোঃ", "মো:", "মোহাম্মদ", "মোসাম্মৎ", "মোছাঃ", "মোসাঃ", "শ্রী", "শ্রীমতী",
		"md.", "md", "mst.", "mst", "mohammad", "muhammad",
	}
	nonNameChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}]+`)
	spaceRuns    = regexp.MustCompile(`\s+`)
)

// normalizeName lowercases, drops honorifics and punctuation
func normalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	name = nonNameChars.ReplaceAllString(name, " ")

	words := strings.Fields(name)
	kept := words[:0]
	for _, w := range words {
		if !isHonorific(w) {
			kept = append(kept, w)
		}
	}
	return spaceRuns.ReplaceAllString(strings.Join(kept, " "), " ")
}

func isHonorific(word string) bool {
	for _, h := range nameHonorifics {
		if strings.TrimRight(h, ".:ঃ") == strings.TrimRight(word, ".:ঃ") {
			return true
		}
	}
	return false
}

// NameSimilarity scores two names 0-100 by edit distance over runes
func NameSimilarity(a, b string) float64 {
	a, b = normalizeName(a), normalizeName(b)
	if a == b {
		return 100.0
	}
	ra, rb := []rune(a), []rune(b)
	maxLen := len(ra)
	if len(rb) > maxLen {
		maxLen = len(rb)
	}
	if maxLen == 0 {
		return 0.0
	}
	similarity := (1.0 - float64(levenshtein(ra, rb))/float64(maxLen)) * 100.0
	if similarity < 0 {
		return 0
	}
	return similarity
}

func levenshtein(a, b []rune) int {
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// NameMismatches lists found rows whose khata name reads differently from
// the roster entry the roll resolved to. They are warnings, not errors.
func NameMismatches(rows []MatchedMark) []string {
	var out []string
	for _, row := range rows {
		if row.Status != StatusFound || row.Student == nil {
			continue
		}
		if NameSimilarity(row.Name, row.Student.Name) < NameMismatchThreshold {
			out = append(out, fmt.Sprintf("রোল %s: খাতায় নাম %q, তালিকায় %q", row.RollNumber, row.Name, row.Student.Name))
		}
	}
	return out
}
