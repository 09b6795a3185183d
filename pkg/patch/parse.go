package patch

import (
	"fmt"
	"strings"
)

// OperationType identifies the kind of change described by a patch operation.
type OperationType string

const (
	// OperationAdd represents an "*** Add File" directive.
	OperationAdd OperationType = "add"
	// OperationUpdate represents an "*** Update File" directive.
	OperationUpdate OperationType = "update"
	// OperationDelete represents an "*** Delete File" directive.
	OperationDelete OperationType = "delete"
)

// Operation describes one file-level instruction contained in a patch.
//
// Content is only meaningful for adds; MovePath and Edits only for updates.
type Operation struct {
	Type     OperationType `json:"type"`
	Path     string        `json:"path"`
	MovePath string        `json:"movePath,omitempty"`
	Content  string        `json:"content,omitempty"`
	Edits    []Edit        `json:"edits,omitempty"`
	// Line is the 1-based line of the directive in the patch text.
	Line int `json:"line"`
}

// EditLine is one body line of an edit group in declared order.
type EditLine struct {
	Kind LineKind `json:"-"`
	Text string   `json:"text"`
}

// Edit is one "@@"-introduced change within an update.
type Edit struct {
	Anchor  string   `json:"anchor"`
	Removed []string `json:"removed,omitempty"`
	Added   []string `json:"added,omitempty"`
	Context []string `json:"context,omitempty"`

	// Lines keeps context, removed and added lines interleaved as declared.
	Lines []EditLine `json:"-"`
	// RawLines is the header plus body exactly as written, for diagnostics.
	RawLines []string `json:"-"`
	Line     int      `json:"line"`
}

// before returns the lines the edit expects to find, in file order. Edits
// built without Lines fall back to the removed block alone.
func (e Edit) before() []string {
	if len(e.Lines) == 0 {
		return e.Removed
	}
	var out []string
	for _, line := range e.Lines {
		if line.Kind == LineContext || line.Kind == LineRemoved {
			out = append(out, line.Text)
		}
	}
	return out
}

// after returns the lines that replace before().
func (e Edit) after() []string {
	if len(e.Lines) == 0 {
		return e.Added
	}
	var out []string
	for _, line := range e.Lines {
		if line.Kind == LineContext || line.Kind == LineAdded {
			out = append(out, line.Text)
		}
	}
	return out
}

type parseState int

const (
	stateBeforeBegin parseState = iota
	stateBetween
	stateAdd
	stateUpdateHeader
	stateUpdateBody
	stateDelete
	stateAfterEnd
)

// parser is the line scanner behind Parse. The state is the directive (or
// edit group) currently being filled.
type parser struct {
	state      parseState
	operations []Operation
	current    *Operation
	addLines   []string
	edit       *Edit
	// pendingBlanks holds empty lines inside an edit group that only become
	// context lines if another body line follows them.
	pendingBlanks []string
	// lastLine and lastText locate the last non-blank line seen, for
	// reporting a patch that ends without its terminator.
	lastLine int
	lastText string
}

// Parse converts patch text into an ordered slice of operations. Structural
// problems are reported as *Error with Kind KindMalformedPatch, carrying the
// 1-based line number and raw text of the offending line.
func Parse(input string) ([]Operation, error) {
	lines := splitLines(input)
	p := &parser{}
	for index, raw := range lines {
		if err := p.feed(index+1, raw); err != nil {
			return nil, err
		}
	}
	switch p.state {
	case stateBeforeBegin:
		return nil, malformed(1, lines[0], "missing *** Begin Patch marker")
	case stateAfterEnd:
		return p.operations, nil
	default:
		return nil, malformed(p.lastLine, p.lastText, "missing *** End Patch terminator")
	}
}

func (p *parser) feed(number int, raw string) error {
	line := Classify(raw)
	if line.Kind != LineBlank {
		p.lastLine, p.lastText = number, raw
	}

	switch p.state {
	case stateBeforeBegin:
		switch line.Kind {
		case LineBlank:
			return nil
		case LineBegin:
			p.state = stateBetween
			return nil
		}
		return malformed(number, raw, "patch must start with *** Begin Patch")
	case stateAfterEnd:
		if line.Kind == LineBlank {
			return nil
		}
		return malformed(number, raw, "unexpected content after *** End Patch")
	}

	switch line.Kind {
	case LineBegin:
		return malformed(number, raw, "nested *** Begin Patch")
	case LineEnd:
		if err := p.flush(); err != nil {
			return err
		}
		p.state = stateAfterEnd
		return nil
	case LineAddFile, LineUpdateFile, LineDeleteFile:
		if err := p.flush(); err != nil {
			return err
		}
		return p.open(number, raw, line)
	case LineUnknownDirective:
		return malformed(number, raw, "unsupported patch directive")
	case LineMoveTo:
		if p.state != stateUpdateHeader {
			return malformed(number, raw, "*** Move to: must directly follow *** Update File")
		}
	}

	switch p.state {
	case stateAdd:
		if line.Kind != LineAdded {
			return malformed(number, raw, `add file lines must start with "+"`)
		}
		p.addLines = append(p.addLines, line.Value)
		return nil
	case stateDelete:
		if line.Kind == LineBlank {
			return nil
		}
		return malformed(number, raw, "delete file takes no body lines")
	case stateUpdateHeader, stateUpdateBody:
		return p.feedUpdate(number, raw, line)
	default:
		if line.Kind == LineBlank {
			return nil
		}
		return malformed(number, raw, "content appeared before a file directive")
	}
}

func (p *parser) open(number int, raw string, line Line) error {
	if line.Value == "" {
		return malformed(number, raw, "file directive is missing a path")
	}
	op := &Operation{Path: line.Value, Line: number}
	switch line.Kind {
	case LineAddFile:
		op.Type = OperationAdd
		p.state = stateAdd
	case LineUpdateFile:
		op.Type = OperationUpdate
		p.state = stateUpdateHeader
	default:
		op.Type = OperationDelete
		p.state = stateDelete
	}
	p.current = op
	p.addLines = nil
	return nil
}

func (p *parser) feedUpdate(number int, raw string, line Line) error {
	switch line.Kind {
	case LineMoveTo:
		if p.current.MovePath != "" {
			return malformed(number, raw, "duplicate *** Move to: directive")
		}
		if line.Value == "" {
			return malformed(number, raw, "*** Move to: is missing a path")
		}
		p.current.MovePath = line.Value
		return nil
	case LineEditHeader:
		if err := p.flushEdit(); err != nil {
			return err
		}
		if strings.TrimSpace(line.Value) == "" {
			return malformed(number, raw, "edit group anchor must not be empty")
		}
		p.edit = &Edit{Anchor: line.Value, Line: number, RawLines: []string{raw}}
		p.state = stateUpdateBody
		return nil
	case LineNoNewline, LineEndOfFile:
		if p.edit != nil {
			p.edit.RawLines = append(p.edit.RawLines, raw)
		}
		return nil
	case LineBlank:
		if p.edit != nil {
			p.pendingBlanks = append(p.pendingBlanks, raw)
		}
		return nil
	case LineContext, LineRemoved, LineAdded:
		if p.edit == nil {
			return malformed(number, raw, "edit lines must follow an @@ anchor line")
		}
		for _, blank := range p.pendingBlanks {
			p.edit.push(LineContext, blank, blank)
		}
		p.pendingBlanks = nil
		p.edit.push(line.Kind, line.Value, raw)
		return nil
	}
	return malformed(number, raw, `edit lines must start with " ", "-" or "+"`)
}

func (e *Edit) push(kind LineKind, text, raw string) {
	e.Lines = append(e.Lines, EditLine{Kind: kind, Text: text})
	e.RawLines = append(e.RawLines, raw)
	switch kind {
	case LineContext:
		e.Context = append(e.Context, text)
	case LineRemoved:
		e.Removed = append(e.Removed, text)
	case LineAdded:
		e.Added = append(e.Added, text)
	}
}

func (p *parser) flushEdit() error {
	p.pendingBlanks = nil
	if p.edit == nil {
		return nil
	}
	edit := p.edit
	p.edit = nil
	if len(edit.Removed) == 0 && len(edit.Added) == 0 {
		return malformed(edit.Line, edit.RawLines[0], "edit group must add or remove at least one line")
	}
	p.current.Edits = append(p.current.Edits, *edit)
	return nil
}

func (p *parser) flush() error {
	if p.current == nil {
		return nil
	}
	op := p.current
	switch op.Type {
	case OperationAdd:
		op.Content = strings.Join(p.addLines, "\n")
	case OperationUpdate:
		if err := p.flushEdit(); err != nil {
			return err
		}
		if len(op.Edits) == 0 {
			return malformed(op.Line, fmt.Sprintf("%s %s", updateFilePrefix, op.Path), "update requires at least one @@ edit group")
		}
	}
	p.operations = append(p.operations, *op)
	p.current = nil
	p.addLines = nil
	p.state = stateBetween
	return nil
}
