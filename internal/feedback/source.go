package feedback

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"speakwise-feedback/internal/backend"
	"speakwise-feedback/internal/cache"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

// listGenerationKey holds a value that is part of every list cache key.
// Replacing it orphans all cached lists at once.
const listGenerationKey = "feedback-list-generation"

// Source lists feedback records for the caller carried in the context,
// caching each caller's list until the ttl passes or any feedback changes.
type Source struct {
	store  backend.Store
	cache  cache.Cache
	ttl    time.Duration
	logger echo.Logger
}

func NewSource(store backend.Store, c cache.Cache, ttl time.Duration, logger echo.Logger) *Source {
	return &Source{store: store, cache: c, ttl: ttl, logger: logger}
}

// List returns the records visible to the caller.
func (s *Source) List(ctx context.Context) ([]backend.FeedbackRecord, error) {
	var key string
	if s.cache != nil && s.ttl > 0 {
		key = listCacheKey(s.generation(ctx), backend.TokenFrom(ctx))

		var records []backend.FeedbackRecord
		ok, err := cache.GetJSON(ctx, s.cache, key, &records)
		if err != nil {
			s.logger.Warnf("reading cached feedback list: %v", err)
		} else if ok {
			return records, nil
		}
	}

	records, err := s.store.ListFeedback(ctx)
	if err != nil {
		if backend.IsTransient(err) {
			return nil, newError(ErrTransient, "We could not load feedback right now. Please try again.", err)
		}
		return nil, newError(ErrInvalidSubmission, "Feedback could not be loaded.", err)
	}

	if s.cache != nil && s.ttl > 0 {
		if err := cache.SetJSON(ctx, s.cache, key, records, s.ttl); err != nil {
			s.logger.Warnf("caching feedback list: %v", err)
		}
	}
	return records, nil
}

// Invalidate drops every caller's cached list. It is called after a
// submission or an edit, which may come from a different caller than the
// ones holding cached lists.
func (s *Source) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, listGenerationKey, []byte(uuid.NewString()), 0); err != nil {
		s.logger.Warnf("dropping cached feedback lists: %v", err)
	}
}

func (s *Source) generation(ctx context.Context) string {
	gen, ok, err := s.cache.Get(ctx, listGenerationKey)
	if err != nil {
		s.logger.Warnf("reading feedback list generation: %v", err)
	}
	if !ok {
		return "0"
	}
	return string(gen)
}

// listCacheKey never embeds the raw bearer token.
func listCacheKey(generation, token string) string {
	sum := sha256.Sum256([]byte(token))
	return "feedback-list:" + generation + ":" + hex.EncodeToString(sum[:])
}
