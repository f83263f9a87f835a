package answer

import (
	"context"
	"fmt"
	"strings"
)

// Generator answers a question from the supplied document context.
type Generator interface {
	Answer(ctx context.Context, question, context string) (string, error)
}

// BuildPrompt renders the single prompt template shared by all strategies.
func BuildPrompt(question, docContext string) string {
	return fmt.Sprintf("Context: %s\nQuestion: %s\nAnswer:", docContext, question)
}

// GenerationError wraps a failure reported by the model backend. Its
// message is the backend's own error text.
type GenerationError struct {
	Err error
}

func (e *GenerationError) Error() string {
	return e.Err.Error()
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// stripToAnswer drops everything up to and including the last "Answer:"
// marker, which local models tend to echo back.
func stripToAnswer(output string) string {
	if idx := strings.LastIndex(output, "Answer:"); idx >= 0 {
		output = output[idx+len("Answer:"):]
	}
	return strings.TrimSpace(output)
}
