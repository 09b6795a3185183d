package patch

import (
	"fmt"
	"strings"
)

// ErrorKind classifies patch failures.
type ErrorKind string

const (
	KindMalformedPatch    ErrorKind = "MALFORMED_PATCH"
	KindFileNotFound      ErrorKind = "FILE_NOT_FOUND"
	KindFileAlreadyExists ErrorKind = "FILE_ALREADY_EXISTS"
	KindEditNotFound      ErrorKind = "EDIT_NOT_FOUND"
	KindAmbiguousEdit     ErrorKind = "AMBIGUOUS_EDIT"
	KindMoveTargetExists  ErrorKind = "MOVE_TARGET_EXISTS"
	KindSecurity          ErrorKind = "SECURITY"
	// KindIO wraps unexpected file system failures (permissions, disk full).
	KindIO ErrorKind = "IO"
)

// Sentinels for errors.Is. They match any *Error of the same kind.
var (
	ErrMalformedPatch    = &Error{Kind: KindMalformedPatch}
	ErrFileNotFound      = &Error{Kind: KindFileNotFound}
	ErrFileAlreadyExists = &Error{Kind: KindFileAlreadyExists}
	ErrEditNotFound      = &Error{Kind: KindEditNotFound}
	ErrAmbiguousEdit     = &Error{Kind: KindAmbiguousEdit}
	ErrMoveTargetExists  = &Error{Kind: KindMoveTargetExists}
	ErrSecurity          = &Error{Kind: KindSecurity}
)

// EditStatus tracks how an edit group fared while applying an update.
type EditStatus struct {
	Number int    `json:"number"`
	Status string `json:"status"`
}

const (
	editApplied  = "applied"
	editNoMatch  = "no-match"
	editMultiple = "ambiguous"
)

// FailedEdit stores the raw lines of the edit group that could not be applied.
type FailedEdit struct {
	Number   int      `json:"number"`
	RawLines []string `json:"rawLines"`
}

// Error is the structured failure returned by Parse and Apply.
type Error struct {
	Kind    ErrorKind
	Message string

	// Path is the path as written in the patch.
	Path string
	// Operation is the 1-based index of the failing operation (apply only).
	Operation int
	// Edit is the 1-based index of the failing edit group within an update.
	Edit   int
	Anchor string

	// Line and Text locate parse failures in the patch text.
	Line int
	Text string

	// Hint points at the closest fuzzy location when an edit was not found.
	// It is informational only and never applied.
	Hint string

	EditStatuses    []EditStatus
	FailedEdit      *FailedEdit
	OriginalContent string

	Err error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	parts := []string{string(e.Kind)}
	if e.Path != "" {
		parts = append(parts, e.Path)
	}
	if e.Line > 0 {
		parts = append(parts, fmt.Sprintf("line %d", e.Line))
	}
	if e.Edit > 0 {
		label := fmt.Sprintf("edit %d", e.Edit)
		if e.Anchor != "" {
			label += fmt.Sprintf(" (@@ %s)", e.Anchor)
		}
		parts = append(parts, label)
	}
	message := e.Message
	if message == "" {
		message = "patch error"
	}
	if e.Text != "" {
		message += fmt.Sprintf(": %q", e.Text)
	}
	if e.Err != nil {
		message += ": " + e.Err.Error()
	}
	parts = append(parts, message)
	return strings.Join(parts, ": ")
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// Is reports whether target is a patch error of the same kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok || e == nil || t == nil {
		return false
	}
	return t.Kind == e.Kind
}

func malformed(line int, text, message string) *Error {
	return &Error{Kind: KindMalformedPatch, Line: line, Text: text, Message: message}
}

func describeEditStatuses(statuses []EditStatus) string {
	if len(statuses) == 0 {
		return ""
	}
	var applied []string
	var failed string
	for _, status := range statuses {
		if status.Status == editApplied {
			applied = append(applied, fmt.Sprintf("%d", status.Number))
			continue
		}
		if failed != "" {
			continue
		}
		if status.Status == editMultiple {
			failed = fmt.Sprintf("Ambiguous match for edit %d.", status.Number)
		} else {
			failed = fmt.Sprintf("No match for edit %d.", status.Number)
		}
	}

	parts := make([]string, 0, 2)
	if len(applied) > 0 {
		parts = append(parts, fmt.Sprintf("Edits applied: %s.", strings.Join(applied, ", ")))
	}
	if failed != "" {
		parts = append(parts, failed)
	}
	return strings.Join(parts, "\n")
}

// FormatError renders an error into a multi-line diagnostic that a human or
// model can use to correct and resubmit the patch. Edit failures include the
// offending edit group and the full content of the target file.
func FormatError(err error) string {
	if err == nil {
		return "Unknown error occurred."
	}
	pe, ok := err.(*Error)
	if !ok {
		return err.Error()
	}
	if pe.Kind != KindEditNotFound && pe.Kind != KindAmbiguousEdit {
		return pe.Error()
	}

	displayPath := pe.Path
	if displayPath == "" {
		displayPath = "unknown file"
	}
	if !strings.HasPrefix(displayPath, "./") && !strings.HasPrefix(displayPath, "/") {
		displayPath = "./" + displayPath
	}

	parts := []string{pe.Error()}
	if summary := describeEditStatuses(pe.EditStatuses); summary != "" {
		parts = append(parts, "", summary)
	}
	if pe.FailedEdit != nil && len(pe.FailedEdit.RawLines) > 0 {
		parts = append(parts, "", "Offending edit:")
		parts = append(parts, strings.Join(pe.FailedEdit.RawLines, "\n"))
	}
	if pe.Hint != "" {
		parts = append(parts, "", "Hint: "+pe.Hint)
	}
	if pe.OriginalContent != "" {
		parts = append(parts, "", fmt.Sprintf("Full content of file: %s::::", displayPath), pe.OriginalContent)
	}
	return strings.Join(parts, "\n")
}
