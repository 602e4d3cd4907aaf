package transcribe

import (
	"context"
	"errors"
	"fmt"

	openai "github.com/sashabaranov/go-openai"

	"whisperd/internal/models"
)

// OpenAIWhisper sends the normalized waveform to the hosted transcription
// API instead of a local GPU. The accelerator index is accepted for
// interface symmetry; the remote service owns its own hardware, so only the
// sampler's view of the slot carries meaning for such deployments.
type OpenAIWhisper struct {
	client *openai.Client
}

func NewOpenAIWhisper(apiKey string) (*OpenAIWhisper, error) {
	if apiKey == "" {
		return nil, errors.New("openai transcriber backend requires an API key")
	}
	return &OpenAIWhisper{client: openai.NewClient(apiKey)}, nil
}

func (o *OpenAIWhisper) Check(ctx context.Context) error {
	if o.client == nil {
		return errors.New("openai client not configured")
	}
	return nil
}

func (o *OpenAIWhisper) Transcribe(ctx context.Context, gpuIndex int, wavPath, model, language string) (*Output, error) {
	_ = gpuIndex

	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    openai.Whisper1,
		FilePath: wavPath,
		Language: language,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	segments := make([]models.Segment, 0, len(resp.Segments))
	tokenTotal := 0
	for _, seg := range resp.Segments {
		tokenTotal += len(seg.Tokens)
		segments = append(segments, models.Segment{
			ID:     seg.ID,
			Start:  seg.Start,
			End:    seg.End,
			Text:   seg.Text,
			Tokens: seg.Tokens,
		})
	}

	text := PostprocessText(resp.Text)
	if text == "" {
		tokenTotal = 0
	}
	return &Output{Text: text, Segments: segments, TokenCount: tokenTotal}, nil
}
