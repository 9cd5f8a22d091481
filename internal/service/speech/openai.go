package speech

import (
	"context"
	"fmt"
	"io"

	"github.com/pearcircuitmike/replicate-codex/internal/config"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// OpenAISynthesizer streams mp3 audio from the OpenAI speech endpoint.
type OpenAISynthesizer struct {
	client openai.Client
	model  openai.SpeechModel
	voice  openai.AudioSpeechNewParamsVoice
}

func NewOpenAISynthesizer(cfg config.SpeechConfig) *OpenAISynthesizer {
	model := openai.SpeechModel(cfg.Model)
	if model == "" {
		model = openai.SpeechModelTTS1
	}
	voice := openai.AudioSpeechNewParamsVoice(cfg.Voice)
	if voice == "" {
		voice = openai.AudioSpeechNewParamsVoiceAlloy
	}
	return &OpenAISynthesizer{
		client: openai.NewClient(option.WithAPIKey(cfg.APIKey)),
		model:  model,
		voice:  voice,
	}
}

// Synthesize requests streamed synthesis for one chunk. The caller owns the
// returned body and must drain it fully before requesting the next chunk.
func (s *OpenAISynthesizer) Synthesize(ctx context.Context, text string) (io.ReadCloser, error) {
	res, err := s.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Model:          s.model,
		Voice:          s.voice,
		Input:          text,
		ResponseFormat: openai.AudioSpeechNewParamsResponseFormatMP3,
	})
	if err != nil {
		return nil, fmt.Errorf("speech synthesis: %w", err)
	}
	return res.Body, nil
}
