// Package media holds the opaque image-analysis and speech-transcription
// capabilities. Both are external collaborators from the conversation core's
// point of view; the built-in implementations validate payloads and
// acknowledge them, and richer backends can replace them behind the same
// interfaces.
package media

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
)

// Analyzer describes image or screen content.
type Analyzer interface {
	// Describe takes a data-URL-encoded image and returns a textual
	// description of it.
	Describe(ctx context.Context, dataURL string) (string, error)
}

// Transcriber converts recorded speech to text.
type Transcriber interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}

// BasicAnalyzer validates the payload and acknowledges it.
type BasicAnalyzer struct{}

// Describe checks that the payload is a decodable data URL and acknowledges
// the image.
func (BasicAnalyzer) Describe(_ context.Context, dataURL string) (string, error) {
	if err := validateDataURL(dataURL); err != nil {
		return "", err
	}
	return "Image received and processed", nil
}

func validateDataURL(dataURL string) error {
	if !strings.HasPrefix(dataURL, "data:") {
		return fmt.Errorf("payload is not a data URL")
	}
	_, payload, ok := strings.Cut(dataURL, ";base64,")
	if !ok {
		return fmt.Errorf("payload is not base64-encoded")
	}
	if _, err := base64.StdEncoding.DecodeString(payload); err != nil {
		return fmt.Errorf("failed to decode image payload: %w", err)
	}
	return nil
}

// StubTranscriber acknowledges audio uploads without transcribing them.
type StubTranscriber struct{}

// Transcribe reports that speech processing is not available yet.
func (StubTranscriber) Transcribe(_ context.Context, _ []byte) (string, error) {
	return "Speech processing not yet implemented", nil
}
