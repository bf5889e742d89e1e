package feedback

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"speakwise-feedback/internal/backend"
	"speakwise-feedback/internal/cache"

	"github.com/labstack/echo/v4"
	"golang.org/x/sync/errgroup"
)

// SessionSummary is the human readable description of a rated session.
type SessionSummary struct {
	Title       string `json:"title"`
	EventName   string `json:"event_name"`
	EventDate   string `json:"event_date"`
	Placeholder bool   `json:"placeholder"`

	// degraded marks a summary built while part of the lookup failed. It is
	// served but not cached, so the next request retries.
	degraded bool
}

// Strategy tries to resolve one session id.
type Strategy func(ctx context.Context, sessionID int) (SessionSummary, error)

// Resolver turns session ids into summaries. Every id always gets a summary:
// strategies are tried in order and a deterministic placeholder is used when
// all of them fail.
type Resolver struct {
	store       backend.Store
	cache       cache.Cache
	ttl         time.Duration
	concurrency int
	strategies  []Strategy
	logger      echo.Logger
	report      func(error)
}

// NewResolver creates a Resolver caching resolved summaries in c for ttl.
// c may be nil to disable caching.
func NewResolver(store backend.Store, c cache.Cache, ttl time.Duration, concurrency int, logger echo.Logger) *Resolver {
	if concurrency < 1 {
		concurrency = 1
	}
	r := &Resolver{
		store:       store,
		cache:       c,
		ttl:         ttl,
		concurrency: concurrency,
		logger:      logger,
		report:      func(error) {},
	}
	r.strategies = []Strategy{r.fromTalk}
	return r
}

// SetErrorReporter installs fn to receive unexpected resolution failures.
func (r *Resolver) SetErrorReporter(fn func(error)) {
	if fn != nil {
		r.report = fn
	}
}

// Resolve returns a summary for every distinct id. Lookups run in parallel
// and fail independently.
func (r *Resolver) Resolve(ctx context.Context, ids []int) map[int]SessionSummary {
	unique := uniqueIDs(ids)
	out := make(map[int]SessionSummary, len(unique))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(r.concurrency)
	for _, id := range unique {
		g.Go(func() error {
			summary := r.resolveOne(ctx, id)

			mu.Lock()
			out[id] = summary
			mu.Unlock()
			return nil
		})
	}
	// resolveOne never fails; a failed lookup becomes a placeholder.
	_ = g.Wait()

	return out
}

func (r *Resolver) resolveOne(ctx context.Context, id int) SessionSummary {
	key := summaryCacheKey(id)

	if r.cache != nil {
		var cached SessionSummary
		ok, err := cache.GetJSON(ctx, r.cache, key, &cached)
		if err != nil {
			r.logger.Warnf("reading cached summary for session %d: %v", id, err)
		} else if ok {
			enrichmentTotal.WithLabelValues("cached").Inc()
			return cached
		}
	}

	for _, strategy := range r.strategies {
		summary, err := strategy(ctx, id)
		if err != nil {
			r.logFailure(id, err)
			continue
		}

		if r.cache != nil && !summary.degraded {
			if err := cache.SetJSON(ctx, r.cache, key, summary, r.ttl); err != nil {
				r.logger.Warnf("caching summary for session %d: %v", id, err)
			}
		}
		enrichmentTotal.WithLabelValues("resolved").Inc()
		return summary
	}

	enrichmentTotal.WithLabelValues("placeholder").Inc()
	return PlaceholderSummary(id)
}

// fromTalk resolves the talk and, when the talk only references its event
// by id, the event. A failed event lookup degrades to a generic event name
// and the summary is left out of the cache.
func (r *Resolver) fromTalk(ctx context.Context, id int) (SessionSummary, error) {
	talk, err := r.store.GetTalk(ctx, id)
	if err != nil {
		return SessionSummary{}, err
	}

	summary := SessionSummary{
		Title:     talk.Title,
		EventName: genericEventName,
		EventDate: unknownEventDate,
	}
	if summary.Title == "" {
		summary.Title = fmt.Sprintf("Session #%d", id)
	}

	event := talk.Event
	if (event == nil || event.Name == "") && talk.EventID > 0 {
		event, err = r.store.GetEvent(ctx, talk.EventID)
		if err != nil {
			r.logFailure(id, fmt.Errorf("event %d: %w", talk.EventID, err))
			summary.degraded = true
			event = nil
		}
	}

	if event != nil {
		if event.Name != "" {
			summary.EventName = event.Name
		}
		if event.Date != "" {
			summary.EventDate = event.Date
		}
	}
	return summary, nil
}

func (r *Resolver) logFailure(id int, err error) {
	if backend.IsNotFound(err) {
		r.logger.Debugf("session %d not resolvable: %v", id, err)
		return
	}
	r.logger.Warnf("resolving session %d failed: %v", id, err)
	r.report(err)
}

func summaryCacheKey(id int) string {
	return fmt.Sprintf("session-summary:%d", id)
}

func uniqueIDs(ids []int) []int {
	seen := make(map[int]struct{}, len(ids))
	unique := make([]int, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		unique = append(unique, id)
	}
	sort.Ints(unique)
	return unique
}
