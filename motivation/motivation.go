// Package motivation produces short motivational messages through a
// generative model, with canned fallbacks when the model is unavailable.
package motivation

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

const defaultModel = "gemini-2.0-flash"

var errNoAPIKey = errors.New("no API key configured")

// Request carries the user context the prompt is built from.
type Request struct {
	Name   string
	Tone   string
	Intake int64
	Goal   int64
	Streak int64
}

type generateFunc func(ctx context.Context, prompt string) (string, error)

// Client wraps the model behind a single Message call that cannot fail.
type Client struct {
	generate generateFunc
}

// New builds a Client backed by the Gemini API.  An empty API key is not an
// error here; it just means every call takes the fallback path.
func New(ctx context.Context, apiKey string) (*Client, error) {
	if apiKey == "" {
		return &Client{
			generate: func(context.Context, string) (string, error) {
				return "", errNoAPIKey
			},
		}, nil
	}

	genaiClient, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey})
	if err != nil {
		return nil, fmt.Errorf("while creating Gemini client: %w", err)
	}

	return &Client{
		generate: func(ctx context.Context, prompt string) (string, error) {
			var b strings.Builder
			for resp, err := range genaiClient.Models.GenerateContentStream(ctx, defaultModel, genai.Text(prompt), nil) {
				if err != nil {
					return "", fmt.Errorf("while streaming model response: %w", err)
				}
				b.WriteString(resp.Text())
			}
			return b.String(), nil
		},
	}, nil
}

// Message returns a motivational message for the user.  One model attempt,
// no retry; any failure (missing key, network, quota, empty response) yields
// a canned fallback interpolating the user's name.  Never returns an error.
func (c *Client) Message(ctx context.Context, req Request) string {
	name := req.Name
	if name == "" {
		name = "there"
	}

	text, err := c.generate(ctx, buildPrompt(req, name))
	if err == nil {
		if msg := stripQuotes(text); msg != "" {
			return msg
		}
	}

	return fallback(name, req.Streak)
}

func buildPrompt(req Request, name string) string {
	var progress float64
	if req.Goal > 0 {
		progress = float64(req.Intake) / float64(req.Goal) * 100
	}

	tone := req.Tone
	if tone == "" {
		tone = "encouraging"
	}

	return fmt.Sprintf(
		"Write one short %s sentence (under 25 words) motivating %s to keep drinking water. "+
			"They have logged %dml of their %dml daily goal (%.0f%%) and are on a %d-day streak. "+
			"No emojis, no hashtags.",
		tone, name, req.Intake, req.Goal, progress, req.Streak)
}

func stripQuotes(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	return strings.TrimSpace(s)
}

var fallbacks = []string{
	"Keep going, %s, every glass counts!",
	"Nice work so far, %s. Top up that bottle and keep your streak alive!",
	"%s, your body will thank you for the next glass. Small sips, big wins!",
}

func fallback(name string, streak int64) string {
	if streak < 0 {
		streak = 0
	}
	return fmt.Sprintf(fallbacks[streak%int64(len(fallbacks))], name)
}
