package processor

import (
	"strings"

	"github.com/xhad/fullstackgpt/internal/models"
)

// ProcessorConfig sizes are counted in runes.
type ProcessorConfig struct {
	ChunkSize    int
	ChunkOverlap int
	Separator    string
}

type Processor struct {
	config ProcessorConfig
}

func NewWithConfig(config ProcessorConfig) Processor {
	if config.ChunkSize <= 0 {
		config.ChunkSize = 1000
	}
	if config.ChunkOverlap < 0 || config.ChunkOverlap >= config.ChunkSize {
		config.ChunkOverlap = config.ChunkSize / 5
	}
	if config.Separator == "" {
		config.Separator = "\n"
	}

	return Processor{
		config: config,
	}
}

func (p Processor) Config() ProcessorConfig {
	return p.config
}

// Process splits every document and tags each chunk with its document's origin.
func (p Processor) Process(docs []models.RawDocument) []models.Chunk {
	var chunks []models.Chunk

	for _, doc := range docs {
		for i, span := range p.spans([]rune(doc.Content)) {
			chunks = append(chunks, models.Chunk{
				Text:      span.text,
				Source:    doc.Metadata.Origin,
				Timestamp: doc.Metadata.Timestamp,
				Index:     i,
				Offset:    span.start,
			})
		}
	}

	return chunks
}

// Split returns the chunk texts for a single string.
func (p Processor) Split(text string) []string {
	spans := p.spans([]rune(text))
	out := make([]string, len(spans))
	for i, s := range spans {
		out[i] = s.text
	}
	return out
}

// Join reverses Split by dropping the overlap prefix of every chunk after the first.
func (p Processor) Join(chunks []string) string {
	var b strings.Builder
	for i, c := range chunks {
		if i == 0 {
			b.WriteString(c)
			continue
		}
		r := []rune(c)
		if len(r) > p.config.ChunkOverlap {
			b.WriteString(string(r[p.config.ChunkOverlap:]))
		}
	}
	return b.String()
}

type span struct {
	start int
	text  string
}

// spans walks the text in windows of at most ChunkSize runes. Each window after
// the first starts exactly ChunkOverlap runes before the previous one ended.
func (p Processor) spans(text []rune) []span {
	size, overlap := p.config.ChunkSize, p.config.ChunkOverlap
	if len(text) == 0 {
		return nil
	}

	sep := []rune(p.config.Separator)
	var out []span

	for start := 0; ; {
		end := start + size
		if end >= len(text) {
			out = append(out, span{start: start, text: string(text[start:])})
			return out
		}

		lowest := start + max(overlap+1, size/2)
		if cut := lastSeparatorEnd(text, sep, lowest, end); cut > 0 {
			end = cut
		}

		out = append(out, span{start: start, text: string(text[start:end])})
		start = end - overlap
	}
}

// lastSeparatorEnd returns the index just past the last separator that ends
// within [lowest, end], or -1.
func lastSeparatorEnd(text, sep []rune, lowest, end int) int {
	if len(sep) == 0 {
		return -1
	}
	for cut := end; cut >= lowest && cut >= len(sep); cut-- {
		if runesEqual(text[cut-len(sep):cut], sep) {
			return cut
		}
	}
	return -1
}

func runesEqual(a, b []rune) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
