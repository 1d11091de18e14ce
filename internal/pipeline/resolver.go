// Package pipeline resolves inbound customer messages to reply text:
// cache lookup, then intent classification against the training corpus,
// then stored-response selection or grounded generation with feedback
// write-back. The caller always gets a usable reply; internal failures
// degrade to fixed fallback text.
package pipeline

import (
	"context"
	"errors"
	"log"
	"math/rand/v2"

	"github.com/nexshop/storebot/internal/intel"
	"github.com/nexshop/storebot/internal/store"
	"github.com/nexshop/storebot/internal/storectx"
)

const (
	// ClarifyFallback is returned when classification finds no intent.
	// Never cached, so a later training update can change the answer.
	ClarifyFallback = "I don't understand, could you rephrase?"

	// ApologyFallback is returned when a pipeline step fails outright.
	ApologyFallback = "Sorry, I couldn't process that right now. Please try again in a moment."
)

// Storage is the slice of the persistence layer the resolver touches.
type Storage interface {
	LookupCachedResponse(tenantID, queryText string) (*store.CachedResponse, error)
	UpsertCachedResponse(tenantID, queryText, responseText string) error
	BumpCacheUsage(tenantID, queryText string) error
	ListTrainingExamples(tenantID string) ([]store.TrainingExample, error)
	GetTrainingExample(tenantID, intent string) (*store.TrainingExample, error)
	AppendTrainingFeedback(tenantID, intent, utterance, reply string) error
}

// ContextLoader assembles the store snapshot handed to generation.
type ContextLoader interface {
	Load(tenantID string) (*storectx.Snapshot, error)
}

type Resolver struct {
	storage Storage
	ctx     ContextLoader
	intel   intel.Client

	// pick selects an index in [0, n); replaced in tests.
	pick func(n int) int
}

func NewResolver(storage Storage, ctxLoader ContextLoader, client intel.Client) *Resolver {
	return &Resolver{
		storage: storage,
		ctx:     ctxLoader,
		intel:   client,
		pick:    rand.IntN,
	}
}

// Resolve maps one inbound message to reply text. It never returns an
// error: classifier, generator, context and persistence failures are
// logged and degrade to fallback text.
func (r *Resolver) Resolve(ctx context.Context, tenantID, message string) string {
	normalized := store.NormalizeQuery(message)
	if normalized == "" {
		return ClarifyFallback
	}

	if cached, err := r.storage.LookupCachedResponse(tenantID, normalized); err == nil {
		// Usage accounting is best effort and off the reply path.
		go func() {
			if err := r.storage.BumpCacheUsage(tenantID, normalized); err != nil {
				log.Printf("[pipeline] cache usage bump failed for %s: %v", tenantID, err)
			}
		}()
		return cached.ResponseText
	} else if !errors.Is(err, store.ErrNotFound) {
		log.Printf("[pipeline] cache lookup failed for %s: %v", tenantID, err)
	}

	examples, err := r.storage.ListTrainingExamples(tenantID)
	if err != nil {
		log.Printf("[pipeline] training corpus load failed for %s: %v", tenantID, err)
		return ApologyFallback
	}

	intent, err := r.intel.Classify(ctx, message, examples)
	if err != nil {
		log.Printf("[pipeline] classify failed for %s: %v", tenantID, err)
		return ApologyFallback
	}
	if intent == "" {
		return ClarifyFallback
	}

	if reply, ok := r.storedResponse(tenantID, intent); ok {
		return reply
	}

	return r.generate(ctx, tenantID, intent, message, normalized)
}

// storedResponse picks a uniform-random member of the intent's predefined
// response pool, when one exists.
func (r *Resolver) storedResponse(tenantID, intent string) (string, bool) {
	ex, err := r.storage.GetTrainingExample(tenantID, intent)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("[pipeline] training lookup failed for %s/%s: %v", tenantID, intent, err)
		}
		return "", false
	}
	if len(ex.Responses) == 0 {
		return "", false
	}
	return ex.Responses[r.pick(len(ex.Responses))], true
}

func (r *Resolver) generate(ctx context.Context, tenantID, intent, message, normalized string) string {
	snap, err := r.ctx.Load(tenantID)
	if err != nil {
		log.Printf("[pipeline] context load failed for %s: %v", tenantID, err)
		return ApologyFallback
	}

	reply, err := r.intel.Generate(ctx, message, snap.Render())
	if err != nil {
		log.Printf("[pipeline] generate failed for %s: %v", tenantID, err)
		return ApologyFallback
	}

	// Feedback loop: the generated answer seeds the training corpus and
	// the cache. Both writes are best effort.
	if err := r.storage.AppendTrainingFeedback(tenantID, intent, message, reply); err != nil {
		log.Printf("[pipeline] feedback write failed for %s/%s: %v", tenantID, intent, err)
	}
	if err := r.storage.UpsertCachedResponse(tenantID, normalized, reply); err != nil {
		log.Printf("[pipeline] cache write failed for %s: %v", tenantID, err)
	}
	return reply
}
