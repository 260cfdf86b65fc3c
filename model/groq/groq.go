// Package groq targets Groq's OpenAI compatible chat completions endpoint.
package groq

import (
	"os"

	"github.com/hupe1980/agentflow/model/openai"
)

const (
	// DefaultBaseURL is Groq's OpenAI compatible API root.
	DefaultBaseURL = "https://api.groq.com/openai/v1/"
	// DefaultModel is the Llama 3.1 70B model served by Groq.
	DefaultModel = "llama-3.1-70b-versatile"
)

// Options configure the Groq model adapter.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	APIKey      string // falls back to GROQ_API_KEY
	BaseURL     string
	MaxRetries  int
}

// NewModel creates a Groq backed model.Model.
func NewModel(optFns ...func(o *Options)) *openai.Model {
	opts := Options{
		Model:       DefaultModel,
		Temperature: 0,
		MaxTokens:   4096,
		APIKey:      os.Getenv("GROQ_API_KEY"),
		BaseURL:     DefaultBaseURL,
		MaxRetries:  2,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	return openai.NewModel(func(o *openai.Options) {
		o.Model = opts.Model
		o.Temperature = opts.Temperature
		o.MaxCompletionTokens = opts.MaxTokens
		o.APIKey = opts.APIKey
		o.BaseURL = opts.BaseURL
		o.MaxRetries = opts.MaxRetries
		o.Provider = "groq"
	})
}
