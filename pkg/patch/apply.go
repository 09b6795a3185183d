package patch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	"github.com/asynkron/chatpatch/internal/logging"
)

// Options configure how edit groups are matched against file content.
type Options struct {
	// IgnoreWhitespace retries an edit that has no exact match with all
	// whitespace stripped from both sides. The retry is still all-or-nothing.
	IgnoreWhitespace bool
}

// ResolveFunc maps a path as written in the patch to the name used with the
// FileSystem. Returning an error rejects the operation with KindSecurity.
type ResolveFunc func(declared string) (string, error)

// ApplierOptions configure an Applier.
type ApplierOptions struct {
	Options
	Resolve ResolveFunc
	// DryRun routes every mutation to an in-memory overlay so the underlying
	// file system is only read.
	DryRun bool
	Logger logging.Logger
}

// ChangeKind is the category a file change is reported under.
type ChangeKind string

const (
	ChangeAdd    ChangeKind = "A"
	ChangeModify ChangeKind = "M"
	ChangeDelete ChangeKind = "D"
)

// FileChange records the content of one file before and after an operation.
type FileChange struct {
	Kind ChangeKind
	// Path is the declared path, the move target for moved files.
	Path string
	// From is the declared source path of a move.
	From   string
	Before string
	After  string
}

// Result lists the declared paths touched by Apply, per category, in the
// order the operations ran.
type Result struct {
	Added    []string
	Modified []string
	Deleted  []string
	Changes  []FileChange
}

func (r *Result) record(change FileChange) {
	switch change.Kind {
	case ChangeAdd:
		r.Added = append(r.Added, change.Path)
	case ChangeModify:
		r.Modified = append(r.Modified, change.Path)
	case ChangeDelete:
		r.Deleted = append(r.Deleted, change.Path)
	}
	r.Changes = append(r.Changes, change)
}

// Empty reports whether no file was touched.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

// Summary renders one line per non-empty category.
func (r Result) Summary() string {
	var lines []string
	if len(r.Added) > 0 {
		lines = append(lines, "Added: "+strings.Join(r.Added, ", "))
	}
	if len(r.Modified) > 0 {
		lines = append(lines, "Modified: "+strings.Join(r.Modified, ", "))
	}
	if len(r.Deleted) > 0 {
		lines = append(lines, "Deleted: "+strings.Join(r.Deleted, ", "))
	}
	if len(lines) == 0 {
		return "No changes applied"
	}
	return strings.Join(lines, "\n")
}

// Applier executes parsed operations against a FileSystem.
type Applier struct {
	fs      FileSystem
	resolve ResolveFunc
	options Options
	log     logging.Logger
}

// NewApplier builds an Applier. Without a Resolve function paths are only
// cleaned, so callers exposing the applier to untrusted patches should pass a
// sandboxing resolver.
func NewApplier(fsys FileSystem, opts ApplierOptions) *Applier {
	if opts.DryRun {
		fsys = NewOverlayFileSystem(fsys)
	}
	resolve := opts.Resolve
	if resolve == nil {
		resolve = cleanPath
	}
	return &Applier{
		fs:      fsys,
		resolve: resolve,
		options: opts.Options,
		log:     logging.OrNoOp(opts.Logger),
	}
}

func cleanPath(declared string) (string, error) {
	if strings.TrimSpace(declared) == "" {
		return "", errors.New("invalid patch path")
	}
	return filepath.Clean(declared), nil
}

// Apply runs operations strictly in order, each against the current state of
// the file system. It stops at the first failure; the returned Result then
// lists the operations that completed before it.
func (a *Applier) Apply(ctx context.Context, operations []Operation) (Result, error) {
	var result Result
	for index, op := range operations {
		log := a.log.WithFields(
			logging.Field("operation", index+1),
			logging.Field("type", string(op.Type)),
			logging.Field("path", op.Path),
		)
		if err := ctx.Err(); err != nil {
			return result, fmt.Errorf("patch: operation %d: %w", index+1, err)
		}
		change, err := a.applyOperation(ctx, op)
		if err != nil {
			var pe *Error
			if errors.As(err, &pe) && pe.Operation == 0 {
				pe.Operation = index + 1
			}
			log.Error(ctx, "operation failed", err)
			return result, err
		}
		result.record(change)
		log.Debug(ctx, "operation applied")
	}
	a.log.Info(ctx, "patch applied",
		logging.Field("added", len(result.Added)),
		logging.Field("modified", len(result.Modified)),
		logging.Field("deleted", len(result.Deleted)),
	)
	return result, nil
}

func (a *Applier) applyOperation(ctx context.Context, op Operation) (FileChange, error) {
	switch op.Type {
	case OperationAdd:
		return a.applyAdd(op)
	case OperationDelete:
		return a.applyDelete(op)
	case OperationUpdate:
		return a.applyUpdate(ctx, op)
	default:
		return FileChange{}, &Error{Kind: KindMalformedPatch, Path: op.Path, Message: fmt.Sprintf("unsupported operation type %q", op.Type)}
	}
}

func (a *Applier) applyAdd(op Operation) (FileChange, error) {
	target, err := a.resolvePath(op.Path)
	if err != nil {
		return FileChange{}, err
	}
	exists, err := a.fs.Exists(target)
	if err != nil {
		return FileChange{}, ioError(op.Path, "stat", err)
	}
	if exists {
		return FileChange{}, &Error{Kind: KindFileAlreadyExists, Path: op.Path, Message: "file already exists"}
	}
	if err := a.fs.WriteFile(target, []byte(op.Content)); err != nil {
		return FileChange{}, ioError(op.Path, "write", err)
	}
	return FileChange{Kind: ChangeAdd, Path: op.Path, After: op.Content}, nil
}

func (a *Applier) applyDelete(op Operation) (FileChange, error) {
	target, err := a.resolvePath(op.Path)
	if err != nil {
		return FileChange{}, err
	}
	content, err := a.readExisting(op.Path, target)
	if err != nil {
		return FileChange{}, err
	}
	if err := a.fs.Remove(target); err != nil {
		return FileChange{}, ioError(op.Path, "delete", err)
	}
	return FileChange{Kind: ChangeDelete, Path: op.Path, Before: string(content)}, nil
}

func (a *Applier) applyUpdate(ctx context.Context, op Operation) (FileChange, error) {
	if len(op.Edits) == 0 {
		return FileChange{}, &Error{Kind: KindMalformedPatch, Path: op.Path, Message: "update has no edit groups"}
	}
	source, err := a.resolvePath(op.Path)
	if err != nil {
		return FileChange{}, err
	}
	destination := source
	if op.MovePath != "" {
		if destination, err = a.resolvePath(op.MovePath); err != nil {
			return FileChange{}, err
		}
	}

	original, err := a.readExisting(op.Path, source)
	if err != nil {
		return FileChange{}, err
	}
	moving := destination != source
	if moving {
		exists, err := a.fs.Exists(destination)
		if err != nil {
			return FileChange{}, ioError(op.MovePath, "stat", err)
		}
		if exists {
			return FileChange{}, &Error{Kind: KindMoveTargetExists, Path: op.MovePath, Message: fmt.Sprintf("cannot move %s: destination already exists", op.Path)}
		}
	}

	buffer := newLineBuffer(string(original))
	statuses := make([]EditStatus, 0, len(op.Edits))
	for index, edit := range op.Edits {
		if err := ctx.Err(); err != nil {
			return FileChange{}, err
		}
		number := index + 1
		if err := buffer.apply(edit, a.options); err != nil {
			return FileChange{}, enhanceEditError(err, op, edit, number, statuses, string(original))
		}
		statuses = append(statuses, EditStatus{Number: number, Status: editApplied})
	}

	updated := buffer.String()
	change := FileChange{Kind: ChangeModify, Path: op.Path, Before: string(original), After: updated}
	if !moving {
		if err := a.fs.WriteFile(source, []byte(updated)); err != nil {
			return FileChange{}, ioError(op.Path, "write", err)
		}
		return change, nil
	}

	if err := a.fs.WriteFile(destination, []byte(updated)); err != nil {
		return FileChange{}, ioError(op.MovePath, "write", err)
	}
	if err := a.fs.Remove(source); err != nil {
		return FileChange{}, ioError(op.Path, "remove after move", err)
	}
	change.Path = op.MovePath
	change.From = op.Path
	return change, nil
}

func (a *Applier) resolvePath(declared string) (string, error) {
	resolved, err := a.resolve(declared)
	if err != nil {
		return "", &Error{Kind: KindSecurity, Path: declared, Message: "path rejected", Err: err}
	}
	return resolved, nil
}

func (a *Applier) readExisting(declared, name string) ([]byte, error) {
	content, err := a.fs.ReadFile(name)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, &Error{Kind: KindFileNotFound, Path: declared, Message: "file does not exist"}
	}
	if err != nil {
		return nil, ioError(declared, "read", err)
	}
	return content, nil
}

func ioError(path, action string, err error) *Error {
	return &Error{Kind: KindIO, Path: path, Message: "failed to " + action, Err: err}
}

// lineBuffer is the in-memory state of a file during an update. Edits are
// applied to it one after another; the file is written once at the end.
//
// Each line keeps its own terminator so files mixing "\n" and "\r\n" split
// into real lines and unchanged lines round-trip byte for byte. Inserted
// lines use the file's majority terminator.
type lineBuffer struct {
	lines []string
	ends  []string
	eol   string
}

func newLineBuffer(content string) *lineBuffer {
	crlf := strings.Count(content, "\r\n")
	eol := "\n"
	if crlf > strings.Count(content, "\n")-crlf {
		eol = "\r\n"
	}
	segments := strings.Split(content, "\n")
	b := &lineBuffer{
		lines: make([]string, len(segments)),
		ends:  make([]string, len(segments)),
		eol:   eol,
	}
	for i, segment := range segments {
		if i == len(segments)-1 {
			b.lines[i] = segment
			break
		}
		if text, ok := strings.CutSuffix(segment, "\r"); ok {
			b.lines[i], b.ends[i] = text, "\r\n"
			continue
		}
		b.lines[i], b.ends[i] = segment, "\n"
	}
	return b
}

func (b *lineBuffer) String() string {
	var builder strings.Builder
	for i, line := range b.lines {
		builder.WriteString(line)
		builder.WriteString(b.ends[i])
	}
	return builder.String()
}

// replace swaps count lines at index for replacement. Replacement lines reuse
// the terminators of the lines they replace, position by position.
func (b *lineBuffer) replace(index, count int, replacement []string) {
	ends := make([]string, len(replacement))
	for i := range ends {
		ends[i] = b.eol
		if i < count {
			ends[i] = b.ends[index+i]
		}
	}
	b.lines = splice(b.lines, index, count, replacement)
	b.ends = splice(b.ends, index, count, ends)
	last := len(b.ends) - 1
	for i := range b.ends {
		switch {
		case i == last:
			b.ends[i] = ""
		case b.ends[i] == "":
			b.ends[i] = b.eol
		}
	}
}

// apply locates edit in the current buffer and splices it in place.
func (b *lineBuffer) apply(edit Edit, opts Options) error {
	before := edit.before()
	anchorHits, positions := locateEdit(b.lines, edit.Anchor, before)
	if len(positions) == 0 && opts.IgnoreWhitespace {
		anchorHits, positions = locateEdit(normalizeLines(b.lines), normalizeLine(edit.Anchor), normalizeLines(before))
	}

	switch {
	case len(anchorHits) == 0:
		return &Error{
			Kind:    KindEditNotFound,
			Message: "anchor line not found",
			Hint:    b.hint(edit.Anchor),
		}
	case len(positions) == 0:
		return &Error{
			Kind:    KindEditNotFound,
			Message: "no match for the removed/context lines after the anchor",
			Hint:    b.hint(strings.Join(before, "\n")),
		}
	case len(positions) > 1:
		return &Error{
			Kind:    KindAmbiguousEdit,
			Message: fmt.Sprintf("edit matches %d locations (lines %s)", len(positions), formatLineNumbers(positions)),
		}
	}

	b.replace(positions[0], len(before), edit.after())
	return nil
}

func (b *lineBuffer) hint(pattern string) string {
	line := closestLine(b.lines, pattern)
	if line == 0 || line > len(b.lines) {
		return ""
	}
	return fmt.Sprintf("closest match near line %d: %q", line, b.lines[line-1])
}

func formatLineNumbers(positions []int) string {
	numbers := make([]string, len(positions))
	for i, position := range positions {
		numbers[i] = fmt.Sprintf("%d", position+1)
	}
	return strings.Join(numbers, ", ")
}

func enhanceEditError(err error, op Operation, edit Edit, number int, applied []EditStatus, original string) *Error {
	var pe *Error
	if !errors.As(err, &pe) {
		pe = &Error{Kind: KindIO, Message: err.Error()}
	}
	pe.Path = op.Path
	pe.Edit = number
	pe.Anchor = edit.Anchor

	status := editNoMatch
	if pe.Kind == KindAmbiguousEdit {
		status = editMultiple
	}
	statuses := append([]EditStatus{}, applied...)
	pe.EditStatuses = append(statuses, EditStatus{Number: number, Status: status})
	pe.FailedEdit = &FailedEdit{Number: number, RawLines: append([]string(nil), edit.RawLines...)}
	pe.OriginalContent = original
	return pe
}
