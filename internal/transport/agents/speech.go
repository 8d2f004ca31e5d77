package agents

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
)

// SpeechClient talks to the speech collaborator (STT and TTS).
type SpeechClient struct {
	httpClient
}

// NewSpeechClient creates a speech client.
func NewSpeechClient(baseURL string, client *http.Client) *SpeechClient {
	return &SpeechClient{newHTTPClient(baseURL, client)}
}

// TranscribeAudio converts spoken audio into text.
func (c *SpeechClient) TranscribeAudio(ctx context.Context, audio []byte) (string, error) {
	req := struct {
		AudioB64 string `json:"audio_b64"`
	}{AudioB64: base64.StdEncoding.EncodeToString(audio)}

	var resp struct {
		Text string `json:"text"`
	}
	if err := c.postJSON(ctx, "/transcribe", req, &resp); err != nil {
		return "", fmt.Errorf("transcribe audio: %w", err)
	}
	return resp.Text, nil
}

// SynthesizeSpeech converts answer text into spoken audio.
func (c *SpeechClient) SynthesizeSpeech(ctx context.Context, text string) ([]byte, error) {
	req := struct {
		Text string `json:"text"`
	}{Text: text}

	var resp struct {
		AudioB64 string `json:"audio_b64"`
	}
	if err := c.postJSON(ctx, "/speech", req, &resp); err != nil {
		return nil, fmt.Errorf("synthesize speech: %w", err)
	}
	audio, err := base64.StdEncoding.DecodeString(resp.AudioB64)
	if err != nil {
		return nil, &DecodeError{Err: err}
	}
	return audio, nil
}
