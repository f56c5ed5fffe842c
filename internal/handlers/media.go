package handlers

import (
	"encoding/base64"
	"io"
	"log/slog"
	"net/http"
)

// maxUploadBytes bounds multipart uploads held in memory.
const maxUploadBytes = 32 << 20

type uploadImageResponse struct {
	Description string `json:"description"`
	ImageData   string `json:"image_data"`
}

type speechToTextResponse struct {
	Text string `json:"text"`
}

func (m Main) readUpload(w http.ResponseWriter, r *http.Request) ([]byte, bool) {
	if r.Method != http.MethodPost {
		m.logger.Error("Method not allowed", slog.String("method", r.Method))
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return nil, false
	}

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		m.logger.Error("Invalid multipart form", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "Invalid multipart form: "+err.Error(), http.StatusBadRequest)
		return nil, false
	}

	file, _, err := r.FormFile("file")
	if err != nil {
		m.logger.Error("File is required", slog.String(errLoggerKey, err.Error()))
		http.Error(w, "File is required", http.StatusBadRequest)
		return nil, false
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		m.logger.Error("Failed to read upload", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return nil, false
	}
	return data, true
}

// HandleUploadImage accepts an image upload, echoes it back as a data URL, and
// attaches the analyzer's description. Analysis failure degrades to a notice
// rather than an error, matching the chat path's behavior.
func (m Main) HandleUploadImage(w http.ResponseWriter, r *http.Request) {
	data, ok := m.readUpload(w, r)
	if !ok {
		return
	}

	dataURL := "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(data)

	description, err := m.analyzer.Describe(r.Context(), dataURL)
	if err != nil {
		m.logger.Error("Failed to analyze image", slog.String(errLoggerKey, err.Error()))
		description = "Unable to process image"
	}

	m.writeJSON(w, http.StatusOK, uploadImageResponse{
		Description: description,
		ImageData:   dataURL,
	})
}

// HandleSpeechToText accepts an audio upload and returns its transcription.
func (m Main) HandleSpeechToText(w http.ResponseWriter, r *http.Request) {
	data, ok := m.readUpload(w, r)
	if !ok {
		return
	}

	text, err := m.transcriber.Transcribe(r.Context(), data)
	if err != nil {
		m.logger.Error("Failed to transcribe audio", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	m.writeJSON(w, http.StatusOK, speechToTextResponse{Text: text})
}
