package media_test

import (
	"context"
	"testing"

	"github.com/traeworks/assistant/internal/media"
)

func TestBasicAnalyzerDescribe(t *testing.T) {
	tests := []struct {
		name    string
		dataURL string
		want    string
		wantErr bool
	}{
		{
			name:    "Valid data URL",
			dataURL: "data:image/png;base64,eA==",
			want:    "Image received and processed",
		},
		{
			name:    "Not a data URL",
			dataURL: "https://example.com/image.png",
			wantErr: true,
		},
		{
			name:    "Missing base64 marker",
			dataURL: "data:image/png,raw",
			wantErr: true,
		},
		{
			name:    "Invalid base64 payload",
			dataURL: "data:image/png;base64,!!not-base64!!",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := media.BasicAnalyzer{}.Describe(context.Background(), tt.dataURL)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Describe() error = nil, want failure")
				}
				return
			}
			if err != nil {
				t.Fatalf("Describe() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("Describe() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestStubTranscriber(t *testing.T) {
	got, err := media.StubTranscriber{}.Transcribe(context.Background(), []byte("audio"))
	if err != nil {
		t.Fatalf("Transcribe() error = %v", err)
	}
	if got != "Speech processing not yet implemented" {
		t.Errorf("Transcribe() = %q, want stub notice", got)
	}
}
