// Package chat implements the conversation core: bounded context construction
// from history and the end-to-end orchestration of a chat request.
package chat

import (
	"fmt"
	"strings"

	"github.com/traeworks/assistant/internal/models"
)

// contextWindow is the number of trailing messages supplied to the model as
// conversational memory.
const contextWindow = 10

const (
	imageAnnotation  = "\n[User shared an image]"
	screenAnnotation = "\n[User shared screen content]"
)

// BuildContext formats the trailing window of history as newline-joined
// "<Role>: <content>" lines in chronological order. An empty history yields an
// empty string. Multimodal flags append a fixed annotation line each, image
// before screen.
func BuildContext(history []models.Message, flags models.MultimodalFlags) string {
	if len(history) > contextWindow {
		history = history[len(history)-contextWindow:]
	}

	lines := make([]string, 0, len(history))
	for _, msg := range history {
		role := "User"
		if msg.Role == models.RoleAssistant {
			role = "Assistant"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, msg.Content))
	}
	context := strings.Join(lines, "\n")

	if flags.Image {
		context += imageAnnotation
	}
	if flags.Screen {
		context += screenAnnotation
	}
	return context
}

// FullPrompt joins the system instruction, conversation context, and the new
// user prompt into the final generation input.
func FullPrompt(systemPrompt, context, prompt string) string {
	return systemPrompt + "\n\n" + context + "\n\n" + prompt
}
