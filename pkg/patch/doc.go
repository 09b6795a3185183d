// Package patch parses and applies "*** Begin Patch" documents.
//
// A patch is a line-oriented envelope of file directives (Add, Update,
// Delete, with an optional Move for updates). Parse turns the text into an
// ordered slice of Operations; an Applier executes them against a FileSystem
// one at a time. Every edit group must locate exactly one place in its target
// file, otherwise the operation fails before anything is written. Writes are
// atomic per file, not per patch: when an operation fails, files touched by
// earlier operations of the same patch keep their new content.
package patch
