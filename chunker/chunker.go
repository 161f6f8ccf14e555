// Package chunker converts uploaded document bytes into ordered text
// chunks for extraction. Pages are split on form feeds, then each page is
// broken into model-sized pieces with langchaingo's recursive character
// splitter.
package chunker

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

// Chunk is one unit of text fed to the extraction model
type Chunk struct {
	Text       string `json:"text"`
	PageLabel  string `json:"page_label"`  // e.g. "p. 3"
	SourceFile string `json:"source_file"` // file the chunk came from
}

// Chunker converts file bytes into ordered text chunks
type Chunker interface {
	ToChunks(data []byte, fileName string) ([]Chunk, error)
}

const (
	// DefaultChunkSize is the target chunk size in characters
	DefaultChunkSize = 4000
	// DefaultChunkOverlap keeps sentence context across chunk boundaries
	DefaultChunkOverlap = 200
)

// TextChunker splits plain-text documents. Page boundaries are form feeds
// (\f); documents without form feeds are treated as a single page.
type TextChunker struct {
	splitter textsplitter.RecursiveCharacter
}

// NewTextChunker creates a TextChunker with the given chunk size and
// overlap; zero values select the defaults.
func NewTextChunker(chunkSize, chunkOverlap int) *TextChunker {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = DefaultChunkOverlap
	}
	return &TextChunker{
		splitter: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
		),
	}
}

// ToChunks converts file bytes into ordered chunks tagged with page labels
func (c *TextChunker) ToChunks(data []byte, fileName string) ([]Chunk, error) {
	text := strings.TrimSpace(string(data))
	if text == "" {
		return nil, errors.Newf("file %s contains no text", fileName)
	}

	pages := strings.Split(text, "\f")

	var chunks []Chunk
	for pageIdx, page := range pages {
		page = strings.TrimSpace(page)
		if page == "" {
			continue
		}

		pieces, err := c.splitter.SplitText(page)
		if err != nil {
			return nil, errors.Wrapf(err, "split page %d of %s", pageIdx+1, fileName)
		}

		for _, piece := range pieces {
			piece = strings.TrimSpace(piece)
			if piece == "" {
				continue
			}
			chunks = append(chunks, Chunk{
				Text:       piece,
				PageLabel:  fmt.Sprintf("p. %d", pageIdx+1),
				SourceFile: fileName,
			})
		}
	}

	if len(chunks) == 0 {
		return nil, errors.Newf("file %s produced no chunks", fileName)
	}

	return chunks, nil
}
