// Package chunker splits extracted document text into overlapping,
// position-tracked segments.
//
// Text is cut on blank-line boundaries and paragraphs are never split, so a
// single paragraph longer than MaxChunkSize becomes one oversized segment.
// Positions and sizes are counted in characters (runes), not bytes.
package chunker

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	MaxChunkSize = 2000
	ChunkOverlap = 200
)

var paragraphSeparator = regexp.MustCompile(`\n\s*\n`)

// Segment is one chunk of text. EndPosition is inclusive.
type Segment struct {
	Index         int
	Content       string
	StartPosition int
	EndPosition   int
}

type splitter struct {
	segments []Segment
	buf      []rune
	start    int
	// fresh is false while buf holds only the overlap carried from the previous segment.
	fresh bool
}

// Split turns text into ordered segments indexed from 0. Adjacent segments
// share up to ChunkOverlap characters.
func Split(text string) []Segment {
	s := &splitter{}
	position := 0

	bounds := paragraphSeparator.FindAllStringIndex(text, -1)
	prev := 0
	for i := 0; i <= len(bounds); i++ {
		var paragraph string
		sepLen := 0
		if i < len(bounds) {
			paragraph = text[prev:bounds[i][0]]
			sepLen = utf8.RuneCountInString(text[bounds[i][0]:bounds[i][1]])
			prev = bounds[i][1]
		} else {
			paragraph = text[prev:]
		}
		advance := utf8.RuneCountInString(paragraph) + sepLen

		trimmed := []rune(strings.TrimSpace(paragraph))
		if len(trimmed) == 0 {
			position += advance
			continue
		}

		if s.fresh && len(s.buf)+len(trimmed) > MaxChunkSize {
			s.emit(position - 1)
			s.seedOverlap(position)
		}
		s.append(trimmed, position)
		position += advance
	}

	if s.fresh {
		s.emit(utf8.RuneCountInString(text) - 1)
	}
	return s.segments
}

func (s *splitter) append(paragraph []rune, position int) {
	if len(s.buf) == 0 {
		s.start = position
	} else {
		s.buf = append(s.buf, '\n', '\n')
	}
	s.buf = append(s.buf, paragraph...)
	s.fresh = true
}

func (s *splitter) emit(end int) {
	content := strings.TrimSpace(string(s.buf))
	if content == "" {
		return
	}
	s.segments = append(s.segments, Segment{
		Index:         len(s.segments),
		Content:       content,
		StartPosition: s.start,
		EndPosition:   end,
	})
}

func (s *splitter) seedOverlap(position int) {
	tail := s.buf
	if len(tail) > ChunkOverlap {
		tail = tail[len(tail)-ChunkOverlap:]
	}
	seed := []rune(strings.TrimLeftFunc(string(tail), unicode.IsSpace))
	s.buf = seed
	s.start = position - len(seed)
	if s.start < 0 {
		s.start = 0
	}
	s.fresh = false
}
