package speech

import (
	"context"
	"fmt"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
)

type googleSynth struct {
	client       *texttospeech.Client
	languageCode string
}

// NewGoogleSynth returns a synthesizer backed by the Google Cloud
// Text-to-Speech API, rendering MP3. Voice names follow the Cloud TTS
// catalogue (e.g. en-GB-Standard-B).
func NewGoogleSynth(ctx context.Context, languageCode string) (Synthesizer, func() error, error) {
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("create texttospeech client: %w", err)
	}
	return &googleSynth{client: client, languageCode: languageCode}, client.Close, nil
}

func (g *googleSynth) Synthesize(ctx context.Context, text, voice string) (Clip, error) {
	req := texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: g.languageCode,
			SsmlGender:   texttospeechpb.SsmlVoiceGender_NEUTRAL,
			Name:         voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding: texttospeechpb.AudioEncoding_MP3,
		},
	}

	resp, err := g.client.SynthesizeSpeech(ctx, &req)
	if err != nil {
		return Clip{}, fmt.Errorf("synthesize speech: %w", err)
	}
	return Clip{Audio: resp.AudioContent, Format: "mp3"}, nil
}
