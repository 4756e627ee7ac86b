// Package normalisers turns raw file bytes into text the chunker can use.
//
// The plaintext decoder is the only normaliser: repository files are source
// code and text formats, so extraction is a charset problem rather than a
// format problem.
package normalisers
