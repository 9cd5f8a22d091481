package speech

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"
)

// MaxChunkChars bounds each synthesis request. The cut is a raw character
// boundary, not sentence-aware; the provider tolerates mid-sentence starts.
const MaxChunkChars = 3000

// Synthesizer turns one text chunk into a streamed audio body.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (io.ReadCloser, error)
}

// SplitText cuts text into consecutive chunks of at most max characters.
// Concatenating the chunks reproduces the input exactly.
func SplitText(text string, max int) []string {
	if max <= 0 {
		max = MaxChunkChars
	}
	runes := []rune(text)
	var chunks []string
	for start := 0; start < len(runes); start += max {
		end := start + max
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}
	return chunks
}

// Relay streams synthesized audio for arbitrarily long text into a single
// outbound stream.
type Relay struct {
	synth Synthesizer
	log   *zap.SugaredLogger
}

func NewRelay(synth Synthesizer, log *zap.SugaredLogger) *Relay {
	return &Relay{synth: synth, log: log}
}

// Stream synthesizes each chunk in strict input order and pipes the audio
// into w. Chunk N+1 is not requested until chunk N's stream has fully
// drained; the per-chunk streams are independent and must be concatenated
// in order for valid audio framing. Returns the bytes written so the caller
// can tell a pre-stream failure (no bytes sent, headers still free) from a
// mid-stream one.
func (r *Relay) Stream(ctx context.Context, text string, w io.Writer, flush func()) (int64, error) {
	if text == "" {
		return 0, errors.New("text cannot be empty")
	}
	chunks := SplitText(text, MaxChunkChars)
	var written int64
	for i, chunk := range chunks {
		body, err := r.synth.Synthesize(ctx, chunk)
		if err != nil {
			return written, fmt.Errorf("synthesize chunk %d/%d: %w", i+1, len(chunks), err)
		}
		n, copyErr := io.Copy(w, body)
		body.Close()
		written += n
		if flush != nil {
			flush()
		}
		if copyErr != nil {
			return written, fmt.Errorf("relay chunk %d/%d: %w", i+1, len(chunks), copyErr)
		}
	}
	return written, nil
}
