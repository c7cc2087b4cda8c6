// Package segment converts raw documents into ordered text chunks suitable
// for embedding.
package segment

import (
	"strings"
	"unicode"
)

// Chunk is one piece of segmented document text. Index is the chunk's
// position within the document.
type Chunk struct {
	Text  string
	Index int
}

// Segmenter splits a document into an ordered sequence of text chunks.
// Empty or unparseable input yields zero chunks; that is not an error.
type Segmenter interface {
	Segment(content string) []Chunk
}

// Config controls segmentation. Sizes are in words.
type Config struct {
	Strategy     string // "sentence" or "fixed"
	TargetWords  int    // flush a chunk once it reaches this size
	MaxWords     int    // hard limit; longer sentences are split by words
	OverlapWords int    // words carried over between fixed-size windows
}

// TextSegmenter implements Segmenter over plain text.
type TextSegmenter struct {
	cfg Config
}

// New creates a TextSegmenter, applying defaults for unset fields.
func New(cfg Config) *TextSegmenter {
	if cfg.Strategy == "" {
		cfg.Strategy = "sentence"
	}
	if cfg.TargetWords <= 0 {
		cfg.TargetWords = 256
	}
	if cfg.MaxWords <= 0 {
		cfg.MaxWords = 512
	}
	if cfg.OverlapWords < 0 {
		cfg.OverlapWords = 0
	}
	if cfg.OverlapWords >= cfg.TargetWords {
		cfg.OverlapWords = cfg.TargetWords / 4
	}
	return &TextSegmenter{cfg: cfg}
}

// Segment splits content according to the configured strategy.
func (s *TextSegmenter) Segment(content string) []Chunk {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil
	}
	var texts []string
	switch s.cfg.Strategy {
	case "fixed":
		texts = s.fixedWindows(content)
	default:
		texts = s.bySentences(content)
	}
	chunks := make([]Chunk, 0, len(texts))
	for _, t := range texts {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		chunks = append(chunks, Chunk{Text: t, Index: len(chunks)})
	}
	return chunks
}

// fixedWindows slides a word window of TargetWords with OverlapWords carried
// between consecutive windows.
func (s *TextSegmenter) fixedWindows(content string) []string {
	words := strings.Fields(content)
	if len(words) == 0 {
		return nil
	}
	step := s.cfg.TargetWords - s.cfg.OverlapWords
	if step <= 0 {
		step = 1
	}
	var out []string
	for i := 0; i < len(words); i += step {
		end := i + s.cfg.TargetWords
		if end > len(words) {
			end = len(words)
		}
		out = append(out, strings.Join(words[i:end], " "))
		if end == len(words) {
			break
		}
	}
	return out
}

// bySentences groups sentences until TargetWords is reached. A single
// sentence longer than MaxWords is split into fixed word windows.
func (s *TextSegmenter) bySentences(content string) []string {
	var out []string
	var current []string
	currentWords := 0

	flush := func() {
		if len(current) > 0 {
			out = append(out, strings.Join(current, " "))
			current = nil
			currentWords = 0
		}
	}

	for _, sentence := range splitSentences(content) {
		n := len(strings.Fields(sentence))
		if n > s.cfg.MaxWords {
			flush()
			out = append(out, s.fixedWindows(sentence)...)
			continue
		}
		if currentWords+n > s.cfg.MaxWords {
			flush()
		}
		current = append(current, sentence)
		currentWords += n
		if currentWords >= s.cfg.TargetWords {
			flush()
		}
	}
	flush()
	return out
}

// splitSentences splits text on sentence-ending punctuation followed by
// whitespace. Paragraph breaks always terminate a sentence.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	emit := func() {
		s := strings.TrimSpace(current.String())
		if s != "" {
			sentences = append(sentences, s)
		}
		current.Reset()
	}

	runes := []rune(text)
	for i, r := range runes {
		if r == '\n' && i+1 < len(runes) && runes[i+1] == '\n' {
			emit()
			continue
		}
		current.WriteRune(r)
		switch r {
		case '.', '!', '?', '。', '！', '？':
			if i+1 >= len(runes) || unicode.IsSpace(runes[i+1]) {
				emit()
			}
		}
	}
	emit()
	return sentences
}

var _ Segmenter = (*TextSegmenter)(nil)
