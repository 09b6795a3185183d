package patch

import "strings"

const (
	beginMarker      = "*** Begin Patch"
	endMarker        = "*** End Patch"
	endOfFileMarker  = "*** End of File"
	addFilePrefix    = "*** Add File:"
	updateFilePrefix = "*** Update File:"
	deleteFilePrefix = "*** Delete File:"
	moveToPrefix     = "*** Move to:"
	directivePrefix  = "*** "
	editPrefix       = "@@"
	noNewlineMarker  = `\ No newline at end of file`
)

// LineKind identifies what a raw patch line means based on its leading
// characters.
type LineKind int

const (
	// LineOther is any line the grammar has no meaning for.
	LineOther LineKind = iota
	LineBlank
	LineBegin
	LineEnd
	LineAddFile
	LineUpdateFile
	LineDeleteFile
	LineMoveTo
	LineEndOfFile
	// LineUnknownDirective is a "*** " line that is not part of the grammar.
	LineUnknownDirective
	LineEditHeader
	LineContext
	LineRemoved
	LineAdded
	LineNoNewline
)

var lineKindNames = map[LineKind]string{
	LineOther:            "other",
	LineBlank:            "blank",
	LineBegin:            "begin",
	LineEnd:              "end",
	LineAddFile:          "add-file",
	LineUpdateFile:       "update-file",
	LineDeleteFile:       "delete-file",
	LineMoveTo:           "move-to",
	LineEndOfFile:        "end-of-file",
	LineUnknownDirective: "unknown-directive",
	LineEditHeader:       "edit-header",
	LineContext:          "context",
	LineRemoved:          "removed",
	LineAdded:            "added",
	LineNoNewline:        "no-newline",
}

func (k LineKind) String() string {
	if name, ok := lineKindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Line is a classified patch line. Value holds the payload after the marker:
// the path for file directives, the anchor for "@@" headers and the line
// text for context, removed and added lines.
type Line struct {
	Kind  LineKind
	Value string
}

// Classify maps a single raw line (without its terminator) to its kind.
// Directive and marker lines tolerate trailing whitespace; body lines are
// dispatched on their first byte and keep everything after it verbatim, as
// do "@@" anchors.
func Classify(raw string) Line {
	if raw == "" {
		return Line{Kind: LineBlank}
	}
	head := strings.TrimRight(raw, " \t")
	switch {
	case head == beginMarker:
		return Line{Kind: LineBegin}
	case head == endMarker:
		return Line{Kind: LineEnd}
	case head == endOfFileMarker:
		return Line{Kind: LineEndOfFile}
	case strings.HasPrefix(head, directivePrefix):
		return classifyDirective(head)
	case strings.HasPrefix(raw, editPrefix):
		return Line{Kind: LineEditHeader, Value: anchorText(raw)}
	}

	switch raw[0] {
	case '+':
		return Line{Kind: LineAdded, Value: raw[1:]}
	case '-':
		return Line{Kind: LineRemoved, Value: raw[1:]}
	case ' ':
		return Line{Kind: LineContext, Value: raw[1:]}
	}
	if head == "" {
		// Whitespace-only lines keep their text so an edit group can still
		// match a file line made of the same whitespace.
		return Line{Kind: LineBlank, Value: raw}
	}
	if raw == noNewlineMarker {
		return Line{Kind: LineNoNewline}
	}
	return Line{Kind: LineOther, Value: raw}
}

// anchorText drops the "@@" marker and a single separator space. The rest,
// indentation included, is the exact line to look for.
func anchorText(raw string) string {
	rest := strings.TrimRight(raw[len(editPrefix):], "\r")
	rest, _ = strings.CutPrefix(rest, " ")
	return rest
}

func classifyDirective(head string) Line {
	directives := []struct {
		prefix string
		kind   LineKind
	}{
		{addFilePrefix, LineAddFile},
		{updateFilePrefix, LineUpdateFile},
		{deleteFilePrefix, LineDeleteFile},
		{moveToPrefix, LineMoveTo},
	}
	for _, d := range directives {
		if rest, ok := strings.CutPrefix(head, d.prefix); ok {
			return Line{Kind: d.kind, Value: strings.TrimSpace(rest)}
		}
	}
	return Line{Kind: LineUnknownDirective, Value: head}
}

func splitLines(input string) []string {
	normalized := strings.ReplaceAll(input, "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	return strings.Split(normalized, "\n")
}
