// Package intel wraps the external language-model capability behind two
// calls: intent classification and reply generation. The pipeline treats
// any failure here as recoverable and falls back to fixed text.
package intel

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nexshop/storebot/internal/config"
	"github.com/nexshop/storebot/internal/store"
)

// ErrUnavailable wraps classifier/generator failures (network, auth,
// timeout). Callers check with errors.Is.
var ErrUnavailable = errors.New("intelligence unavailable")

// Client is the external intelligence capability. Classify returns the
// matched intent label, or "" when the message matches none of the
// examples. Generate produces a reply grounded on the rendered store
// context.
type Client interface {
	Classify(ctx context.Context, message string, examples []store.TrainingExample) (string, error)
	Generate(ctx context.Context, message, storeContext string) (string, error)
}

// New builds the configured provider client.
func New(cfg config.ProviderConfig) (Client, error) {
	switch cfg.Type {
	case "anthropic":
		return newAnthropicClient(cfg), nil
	case "openai", "":
		return newOpenAIClient(cfg), nil
	default:
		return nil, fmt.Errorf("unknown provider type %q", cfg.Type)
	}
}

const noneLabel = "NONE"

// parseIntent normalizes a raw classifier completion into a canonical
// intent label. Empty output and the explicit NONE marker both mean "no
// intent". Labels are lowercased so a model answering "Shipping" matches
// a corpus row stored as "shipping".
func parseIntent(raw string) string {
	label := strings.TrimSpace(raw)
	label = strings.Trim(label, "\"'`")
	if label == "" || strings.EqualFold(label, noneLabel) {
		return ""
	}
	// Models occasionally answer in a sentence; keep only the first token.
	if idx := strings.IndexAny(label, " \n\t"); idx > 0 {
		label = label[:idx]
	}
	return strings.ToLower(label)
}
