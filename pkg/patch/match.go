package patch

import (
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// FindAllOccurrences returns every index at which needle appears as a
// contiguous run of lines in haystack, in ascending order. An empty needle
// never matches.
func FindAllOccurrences(haystack, needle []string) []int {
	if len(needle) == 0 || len(needle) > len(haystack) {
		return nil
	}
	var hits []int
	for i := 0; i+len(needle) <= len(haystack); i++ {
		matched := true
		for j := range needle {
			if haystack[i+j] != needle[j] {
				matched = false
				break
			}
		}
		if matched {
			hits = append(hits, i)
		}
	}
	return hits
}

// locateEdit resolves where an edit applies in lines.
//
// Every occurrence of the anchor selects block positions: the occurrence of
// before that contains the anchor line, or else the occurrences that start
// after it and before the next anchor. When that span holds none, the first
// occurrence further down is used. When before is empty the position is the
// line right after the anchor. The returned positions are distinct and
// ascending; the caller treats zero or several of them as a failure.
func locateEdit(lines []string, anchor string, before []string) (anchorHits, positions []int) {
	anchorHits = FindAllOccurrences(lines, []string{anchor})
	if len(anchorHits) == 0 {
		return nil, nil
	}
	if len(before) == 0 {
		positions = make([]int, 0, len(anchorHits))
		for _, hit := range anchorHits {
			positions = append(positions, hit+1)
		}
		return anchorHits, positions
	}

	blocks := FindAllOccurrences(lines, before)
	seen := make(map[int]bool, len(blocks))
	for i, hit := range anchorHits {
		limit := len(lines)
		if i+1 < len(anchorHits) {
			limit = anchorHits[i+1]
		}
		for _, position := range blocksForAnchor(blocks, hit, limit, len(before)) {
			if seen[position] {
				continue
			}
			seen[position] = true
			positions = append(positions, position)
		}
	}
	sort.Ints(positions)
	return anchorHits, positions
}

func blocksForAnchor(blocks []int, anchor, limit, size int) []int {
	var following []int
	for _, start := range blocks {
		if start <= anchor && anchor < start+size {
			return []int{start}
		}
		if start <= anchor {
			continue
		}
		if start >= limit {
			if len(following) == 0 {
				return []int{start}
			}
			break
		}
		following = append(following, start)
	}
	return following
}

func normalizeLine(line string) string {
	if line == "" {
		return ""
	}
	var builder strings.Builder
	builder.Grow(len(line))
	for _, r := range line {
		if unicode.IsSpace(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return builder.String()
}

func normalizeLines(lines []string) []string {
	normalized := make([]string, len(lines))
	for i, line := range lines {
		normalized[i] = normalizeLine(line)
	}
	return normalized
}

func splice[T any](target []T, index, deleteCount int, replacement []T) []T {
	result := make([]T, 0, len(target)-deleteCount+len(replacement))
	result = append(result, target[:index]...)
	result = append(result, replacement...)
	result = append(result, target[index+deleteCount:]...)
	return result
}

// closestLine returns the 1-based line whose neighbourhood best matches
// pattern according to a bitap fuzzy search, or 0 when nothing is close.
func closestLine(lines []string, pattern string) int {
	text := strings.Join(lines, "\n")
	pattern = strings.TrimSpace(pattern)
	if text == "" || pattern == "" {
		return 0
	}
	matcher := diffmatchpatch.New()
	for len(pattern) > matcher.MatchMaxBits {
		_, size := utf8.DecodeLastRuneInString(pattern)
		pattern = pattern[:len(pattern)-size]
	}
	matcher.MatchDistance = len(text)
	idx := matcher.MatchMain(text, pattern, 0)
	if idx < 0 {
		return 0
	}
	if idx > len(text) {
		idx = len(text)
	}
	return strings.Count(text[:idx], "\n") + 1
}
