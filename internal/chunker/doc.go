// Package chunker splits extracted text into overlapping segments for embedding.
//
// The default Recursive chunker prefers paragraph, line, sentence and word
// boundaries, in that order, and only cuts mid-word when no boundary fits.
// Segments record how many leading runes repeat the previous segment, so the
// original text can be rebuilt exactly with domain.ReconstructText.
//
// Sizes are measured in runes.
package chunker
