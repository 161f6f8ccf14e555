package pipeline

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/anuraag-saini/fireqsp-share-sub000/ai"
	"github.com/anuraag-saini/fireqsp-share-sub000/chunker"
	"github.com/anuraag-saini/fireqsp-share-sub000/errors"
)

const (
	// ClassifyTimeout bounds the one-shot domain classification call.
	ClassifyTimeout = 1 * time.Minute

	// classifySampleChunks is how many leading chunks the classifier reads.
	classifySampleChunks = 3

	// classifySampleRunes caps the text sent per sampled chunk.
	classifySampleRunes = 1500
)

// Classifier detects the disease or therapeutic area of a document set from
// its first few chunks. The label specializes extraction prompts and seeds
// the extraction title; a misread label degrades quality, not correctness.
type Classifier struct {
	client ai.Client
	logger *zap.SugaredLogger
}

// NewClassifier creates a domain classifier.
func NewClassifier(client ai.Client, logger *zap.SugaredLogger) *Classifier {
	return &Classifier{client: client, logger: logger}
}

// Classify returns a short lowercase disease label for the sampled chunks.
func (c *Classifier) Classify(ctx context.Context, chunks []chunker.Chunk) (string, error) {
	if len(chunks) == 0 {
		return "", errors.New("no chunks to classify")
	}

	sample := chunks
	if len(sample) > classifySampleChunks {
		sample = sample[:classifySampleChunks]
	}

	var b strings.Builder
	for _, ch := range sample {
		text := ch.Text
		if runes := []rune(text); len(runes) > classifySampleRunes {
			text = string(runes[:classifySampleRunes])
		}
		b.WriteString(text)
		b.WriteString("\n\n")
	}

	ctx, cancel := context.WithTimeout(ctx, ClassifyTimeout)
	defer cancel()

	resp, err := c.client.Chat(ctx, ai.ChatRequest{
		SystemPrompt: classifyPrompt,
		UserPrompt:   b.String(),
		Temperature:  ai.Float64(0.0),
	})
	if err != nil {
		return "", errors.Wrap(err, "classification call failed")
	}

	label := normalizeLabel(resp.Content)
	if label == "" {
		return "", errors.New("classifier returned an empty label")
	}

	c.logger.Infow("Classified document domain", "disease_type", label)
	return label, nil
}

// normalizeLabel reduces a model answer to a single short lowercase line.
func normalizeLabel(s string) string {
	line := strings.TrimSpace(s)
	if idx := strings.IndexByte(line, '\n'); idx >= 0 {
		line = line[:idx]
	}
	line = strings.Trim(line, `"'.`)
	line = strings.ToLower(strings.TrimSpace(line))
	if len(line) > 80 {
		line = line[:80]
	}
	return line
}
