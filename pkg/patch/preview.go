package patch

import (
	"fmt"
	"strings"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// previewContext is how many unchanged lines are kept on each side of a
// change before the rest of the run is folded.
const previewContext = 3

const devNull = "/dev/null"

// RenderPreview renders changes as a line diff per file, headed by
// "--- old" and "+++ new" lines.
func RenderPreview(changes []FileChange) string {
	var out strings.Builder
	for index, change := range changes {
		if index > 0 {
			out.WriteString("\n")
		}
		from, to := change.Path, change.Path
		switch change.Kind {
		case ChangeAdd:
			from = devNull
		case ChangeDelete:
			to = devNull
		case ChangeModify:
			if change.From != "" {
				from = change.From
			}
		}
		fmt.Fprintf(&out, "--- %s\n+++ %s\n", from, to)
		writeLineDiff(&out, change.Before, change.After)
	}
	return out.String()
}

func writeLineDiff(out *strings.Builder, before, after string) {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(ensureTrailingNewline(before), ensureTrailingNewline(after))
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	for index, diff := range diffs {
		text := diffLines(diff.Text)
		switch diff.Type {
		case diffmatchpatch.DiffInsert:
			writePrefixed(out, "+", text)
		case diffmatchpatch.DiffDelete:
			writePrefixed(out, "-", text)
		default:
			writeEqual(out, text, index == 0, index == len(diffs)-1)
		}
	}
}

// writeEqual keeps the lines of an unchanged run that border a change and
// folds the rest into a single "..." line.
func writeEqual(out *strings.Builder, lines []string, first, last bool) {
	head, tail := previewContext, previewContext
	if first {
		head = 0
	}
	if last {
		tail = 0
	}
	if len(lines) <= head+tail+1 {
		writePrefixed(out, " ", lines)
		return
	}
	writePrefixed(out, " ", lines[:head])
	out.WriteString("...\n")
	writePrefixed(out, " ", lines[len(lines)-tail:])
}

func writePrefixed(out *strings.Builder, prefix string, lines []string) {
	for _, line := range lines {
		out.WriteString(prefix)
		out.WriteString(line)
		out.WriteString("\n")
	}
}

func diffLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func ensureTrailingNewline(text string) string {
	if text == "" || strings.HasSuffix(text, "\n") {
		return text
	}
	return text + "\n"
}
