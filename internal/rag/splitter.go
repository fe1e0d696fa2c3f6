package rag

import (
	"strings"
	"unicode/utf8"
)

// Default chunking parameters for knowledge-base documents.
const (
	DefaultChunkSize    = 500
	DefaultChunkOverlap = 20
)

// DefaultSeparators are tried in order: paragraphs, lines, words, characters.
var DefaultSeparators = []string{"\n\n", "\n", " ", ""}

// Splitter cuts text into chunks of at most ChunkSize characters, preferring
// the earliest separator that occurs in the text and recursing into pieces
// that are still too long. Consecutive chunks share up to ChunkOverlap
// characters. Separators stay attached to the start of the piece they precede.
type Splitter struct {
	ChunkSize    int
	ChunkOverlap int
	Separators   []string
}

// NewSplitter returns a Splitter with the default parameters.
func NewSplitter() *Splitter {
	return &Splitter{
		ChunkSize:    DefaultChunkSize,
		ChunkOverlap: DefaultChunkOverlap,
		Separators:   DefaultSeparators,
	}
}

// Split returns the non-empty, whitespace-trimmed chunks of text.
func (s *Splitter) Split(text string) []string {
	seps := s.Separators
	if len(seps) == 0 {
		seps = DefaultSeparators
	}
	return s.split(text, seps)
}

func (s *Splitter) split(text string, separators []string) []string {
	separator := separators[len(separators)-1]
	var rest []string
	for i, sep := range separators {
		if sep == "" {
			separator = sep
			break
		}
		if strings.Contains(text, sep) {
			separator = sep
			rest = separators[i+1:]
			break
		}
	}

	var chunks, good []string
	for _, piece := range splitKeepSeparator(text, separator) {
		if charLen(piece) < s.ChunkSize {
			good = append(good, piece)
			continue
		}
		if len(good) > 0 {
			chunks = append(chunks, s.merge(good)...)
			good = nil
		}
		if len(rest) == 0 {
			chunks = append(chunks, piece)
		} else {
			chunks = append(chunks, s.split(piece, rest)...)
		}
	}
	if len(good) > 0 {
		chunks = append(chunks, s.merge(good)...)
	}
	return chunks
}

// merge packs pieces into chunks no longer than ChunkSize, carrying up to
// ChunkOverlap characters of trailing pieces into the next chunk.
func (s *Splitter) merge(pieces []string) []string {
	var docs, current []string
	total := 0

	for _, p := range pieces {
		n := charLen(p)
		if total+n > s.ChunkSize && len(current) > 0 {
			if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
				docs = append(docs, doc)
			}
			for total > s.ChunkOverlap || (total+n > s.ChunkSize && total > 0) {
				total -= charLen(current[0])
				current = current[1:]
			}
		}
		current = append(current, p)
		total += n
	}

	if doc := strings.TrimSpace(strings.Join(current, "")); doc != "" {
		docs = append(docs, doc)
	}
	return docs
}

func splitKeepSeparator(text, sep string) []string {
	var out []string
	if sep == "" {
		for _, r := range text {
			out = append(out, string(r))
		}
		return out
	}

	parts := strings.Split(text, sep)
	if parts[0] != "" {
		out = append(out, parts[0])
	}
	for _, p := range parts[1:] {
		out = append(out, sep+p)
	}
	return out
}

func charLen(s string) int {
	return utf8.RuneCountInString(s)
}
