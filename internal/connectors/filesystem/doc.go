// Package filesystem loads repository files from a local snapshot.
//
// The Loader walks the snapshot in lexical order, applies exclusion rules
// (directory names, extensions, doublestar globs, .gitignore), refuses
// symlinks and oversized files, and decodes the rest with the plaintext
// decoder. The Watcher reports file changes for watch mode.
package filesystem
