package patch

import (
	"reflect"
	"testing"
)

func TestParseAddUpdateDelete(t *testing.T) {
	t.Parallel()

	ops, err := Parse(patchText(
		"*** Begin Patch",
		"*** Add File: a.txt",
		"+hello",
		"+world",
		"*** Update File: b.txt",
		"*** Move to: c.txt",
		"@@ bar",
		" bar",
		"-baz",
		"+qux",
		"*** Delete File: d.txt",
		"*** End Patch",
	))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(ops) != 3 {
		t.Fatalf("unexpected operation count: %d", len(ops))
	}

	add := ops[0]
	if add.Type != OperationAdd || add.Path != "a.txt" || add.Content != "hello\nworld" || add.Line != 2 {
		t.Fatalf("unexpected add operation: %+v", add)
	}

	update := ops[1]
	if update.Type != OperationUpdate || update.Path != "b.txt" || update.MovePath != "c.txt" {
		t.Fatalf("unexpected update operation: %+v", update)
	}
	if len(update.Edits) != 1 {
		t.Fatalf("unexpected edit count: %d", len(update.Edits))
	}
	edit := update.Edits[0]
	if edit.Anchor != "bar" || edit.Line != 7 {
		t.Fatalf("unexpected edit header: %+v", edit)
	}
	if !reflect.DeepEqual(edit.Context, []string{"bar"}) ||
		!reflect.DeepEqual(edit.Removed, []string{"baz"}) ||
		!reflect.DeepEqual(edit.Added, []string{"qux"}) {
		t.Fatalf("unexpected edit body: %+v", edit)
	}
	if !reflect.DeepEqual(edit.before(), []string{"bar", "baz"}) || !reflect.DeepEqual(edit.after(), []string{"bar", "qux"}) {
		t.Fatalf("unexpected before/after: %#v / %#v", edit.before(), edit.after())
	}
	if !reflect.DeepEqual(edit.RawLines, []string{"@@ bar", " bar", "-baz", "+qux"}) {
		t.Fatalf("unexpected raw lines: %#v", edit.RawLines)
	}

	if ops[2].Type != OperationDelete || ops[2].Path != "d.txt" {
		t.Fatalf("unexpected delete operation: %+v", ops[2])
	}
}

func TestParseMultipleEditGroups(t *testing.T) {
	t.Parallel()

	ops, err := Parse(patchText(
		"*** Begin Patch",
		"*** Update File: main.go",
		"@@ func a() {",
		"-\treturn 1",
		"+\treturn 2",
		"",
		"@@ func b() {",
		"-\treturn 3",
		"+\treturn 4",
		"*** End of File",
		"*** End Patch",
	))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	edits := ops[0].Edits
	if len(edits) != 2 {
		t.Fatalf("unexpected edit count: %d", len(edits))
	}
	if edits[0].Anchor != "func a() {" || edits[1].Anchor != "func b() {" {
		t.Fatalf("unexpected anchors: %q %q", edits[0].Anchor, edits[1].Anchor)
	}
	if len(edits[0].Lines) != 2 {
		t.Fatalf("trailing blank line should not become context: %#v", edits[0].Lines)
	}
}

func TestParseBlankLineInsideEditBecomesContext(t *testing.T) {
	t.Parallel()

	ops, err := Parse(patchText(
		"*** Begin Patch",
		"*** Update File: notes.md",
		"@@ # Title",
		"-first",
		"",
		"-second",
		"+merged",
		"*** End Patch",
	))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := []string{"first", "", "second"}
	if got := ops[0].Edits[0].before(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected before block: %#v", got)
	}
}

func TestParseMissingEndReportsLastLine(t *testing.T) {
	t.Parallel()

	_, err := Parse(patchText("*** Begin Patch", "*** Update File: a.txt", "@@ a", "-a", "+b", ""))
	pe := requireKind(t, err, KindMalformedPatch)
	if pe.Line != 5 || pe.Text != "+b" {
		t.Fatalf("unexpected location: line %d text %q", pe.Line, pe.Text)
	}
}

func TestParseKeepsWhitespaceOnlyBodyLines(t *testing.T) {
	t.Parallel()

	ops, err := Parse(patchText("*** Begin Patch", "*** Update File: a.go", "@@ {", "\t", "-x", "*** End Patch"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	want := []string{"\t", "x"}
	if got := ops[0].Edits[0].before(); !reflect.DeepEqual(got, want) {
		t.Fatalf("unexpected before block: %#v", got)
	}
}

func TestParseToleratesSurroundingBlankLinesAndCRLF(t *testing.T) {
	t.Parallel()

	ops, err := Parse("\r\n*** Begin Patch\r\n*** Add File: a.txt\r\n+one\r\n*** End Patch\r\n\r\n")
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(ops) != 1 || ops[0].Content != "one" {
		t.Fatalf("unexpected operations: %+v", ops)
	}
}

func TestParseEmptyPatch(t *testing.T) {
	t.Parallel()

	ops, err := Parse(patchText("*** Begin Patch", "*** End Patch"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if len(ops) != 0 {
		t.Fatalf("expected no operations, got %+v", ops)
	}
}

func TestParseAddWithoutLinesIsEmptyFile(t *testing.T) {
	t.Parallel()

	ops, err := Parse(patchText("*** Begin Patch", "*** Add File: empty.txt", "*** End Patch"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	if ops[0].Content != "" {
		t.Fatalf("expected empty content, got %q", ops[0].Content)
	}
}

func TestParseMalformed(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name  string
		input string
		line  int
	}{
		{"missing begin", patchText("*** Add File: a.txt", "+x", "*** End Patch"), 1},
		{"empty input", "", 1},
		{"missing end before trailing blanks", patchText("*** Begin Patch", "*** Add File: a.txt", "+x", "", ""), 3},
		{"missing end", patchText("*** Begin Patch", "*** Add File: a.txt", "+x"), 3},
		{"nested begin", patchText("*** Begin Patch", "*** Begin Patch", "*** End Patch"), 2},
		{"content after end", patchText("*** Begin Patch", "*** End Patch", "junk"), 3},
		{"content before directive", patchText("*** Begin Patch", "+x", "*** End Patch"), 2},
		{"add line without plus", patchText("*** Begin Patch", "*** Add File: a.txt", "x", "*** End Patch"), 3},
		{"add blank line", patchText("*** Begin Patch", "*** Add File: a.txt", "+x", "", "+y", "*** End Patch"), 4},
		{"missing path", patchText("*** Begin Patch", "*** Add File:", "*** End Patch"), 2},
		{"unknown directive", patchText("*** Begin Patch", "*** Copy File: a", "*** End Patch"), 2},
		{"update without edits", patchText("*** Begin Patch", "*** Update File: a.txt", "*** End Patch"), 2},
		{"move only", patchText("*** Begin Patch", "*** Update File: a.txt", "*** Move to: b.txt", "*** End Patch"), 2},
		{"move outside update", patchText("*** Begin Patch", "*** Delete File: a.txt", "*** Move to: b.txt", "*** End Patch"), 3},
		{"move after edit", patchText("*** Begin Patch", "*** Update File: a.txt", "@@ x", "-x", "*** Move to: b.txt", "*** End Patch"), 5},
		{"duplicate move", patchText("*** Begin Patch", "*** Update File: a.txt", "*** Move to: b", "*** Move to: c", "@@ x", "-x", "*** End Patch"), 4},
		{"empty anchor", patchText("*** Begin Patch", "*** Update File: a.txt", "@@", "-x", "*** End Patch"), 3},
		{"edit lines before anchor", patchText("*** Begin Patch", "*** Update File: a.txt", "-x", "*** End Patch"), 3},
		{"context only edit", patchText("*** Begin Patch", "*** Update File: a.txt", "@@ x", " x", "*** End Patch"), 3},
		{"bad edit line", patchText("*** Begin Patch", "*** Update File: a.txt", "@@ x", "x", "*** End Patch"), 4},
		{"delete with body", patchText("*** Begin Patch", "*** Delete File: a.txt", "-x", "*** End Patch"), 3},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			ops, err := Parse(tc.input)
			pe := requireKind(t, err, KindMalformedPatch)
			if ops != nil {
				t.Fatalf("expected no operations, got %+v", ops)
			}
			if pe.Line != tc.line {
				t.Fatalf("unexpected line: got %d want %d (%v)", pe.Line, tc.line, err)
			}
		})
	}
}
