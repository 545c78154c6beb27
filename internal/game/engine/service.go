package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/cory-johannsen/d20sheet/internal/game/character"
	"github.com/cory-johannsen/d20sheet/internal/game/item"
	"github.com/cory-johannsen/d20sheet/internal/game/sheet"
)

// SheetUpdate is the persisted outcome of a pass.
type SheetUpdate struct {
	PassID  uuid.UUID
	Values  map[string]float64
	Removed []string
	HP      character.Pool
}

// DocumentStore loads character documents and persists pass results.
type DocumentStore interface {
	Load(ctx context.Context, id string) (*character.Character, error)
	SaveSheet(ctx context.Context, id string, u SheetUpdate) error
	CreateItems(ctx context.Context, id string, items []item.Item) error
	DeleteItems(ctx context.Context, id string, itemIDs []string) error
}

// SheetCache stores computed results keyed by document fingerprint. Any
// error from Get is treated as a miss.
type SheetCache interface {
	Get(ctx context.Context, key string) (*Result, error)
	Set(ctx context.Context, key string, r *Result) error
}

// RetryPolicy bounds store retries. Backoff is the first wait; later waits
// grow exponentially with jitter.
type RetryPolicy struct {
	Attempts int
	Backoff  time.Duration
}

// DefaultRetryPolicy is used when no policy is configured.
var DefaultRetryPolicy = RetryPolicy{Attempts: 3, Backoff: 100 * time.Millisecond}

// Service runs passes against a DocumentStore. Concurrent updates of the
// same character share one in-flight pass.
type Service struct {
	engine      *Engine
	store       DocumentStore
	cache       SheetCache
	retry       RetryPolicy
	concurrency int
	logger      *zap.Logger
	group       singleflight.Group
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithCache enables the computed-sheet cache.
func WithCache(c SheetCache) ServiceOption { return func(s *Service) { s.cache = c } }

// WithRetry sets the store retry policy.
func WithRetry(p RetryPolicy) ServiceOption { return func(s *Service) { s.retry = p } }

// WithConcurrency bounds the passes UpdateAll runs at once.
func WithConcurrency(n int) ServiceOption { return func(s *Service) { s.concurrency = n } }

// NewService returns a Service.
//
// Precondition: eng, store and logger must be non-nil.
func NewService(eng *Engine, store DocumentStore, logger *zap.Logger, opts ...ServiceOption) *Service {
	if eng == nil || store == nil || logger == nil {
		panic("engine.NewService: precondition violated: engine, store and logger must be non-nil")
	}
	s := &Service{engine: eng, store: store, logger: logger, retry: DefaultRetryPolicy, concurrency: 4}
	for _, opt := range opts {
		opt(s)
	}
	if s.retry.Attempts < 1 {
		s.retry.Attempts = 1
	}
	if s.concurrency < 1 {
		s.concurrency = 1
	}
	return s
}

// Update recomputes and persists character id. A call made while a pass
// for id is in flight receives that pass's result.
func (s *Service) Update(ctx context.Context, id string) (*Result, error) {
	v, err, shared := s.group.Do(id, func() (any, error) {
		return s.update(ctx, id)
	})
	if shared {
		s.logger.Debug("update coalesced", zap.String("character", id))
	}
	if err != nil {
		return nil, err
	}
	return v.(*Result), nil
}

func (s *Service) update(ctx context.Context, id string) (*Result, error) {
	c, err := s.store.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading character %q: %w", id, err)
	}
	var master *character.Character
	if c.MasterID != "" {
		master, err = s.store.Load(ctx, c.MasterID)
		if err != nil {
			s.logger.Warn("master unavailable",
				zap.String("character", id), zap.String("master", c.MasterID), zap.Error(err))
			master = nil
		}
	}

	if s.cache != nil {
		key, err := Fingerprint(c, master)
		if err == nil {
			if res, err := s.cache.Get(ctx, key); err == nil {
				s.logger.Debug("sheet cache hit", zap.String("character", id))
				return res, nil
			}
		}
	}

	res, err := s.engine.Recompute(ctx, Input{Character: c, Master: master})
	if err != nil {
		return nil, err
	}
	if !res.FeatureSync.Empty() {
		if err := s.applyFeatureSync(ctx, id, res.FeatureSync); err != nil {
			return nil, err
		}
		c = ApplyFeatureSync(c, res.FeatureSync)
		if res, err = s.engine.Recompute(ctx, Input{Character: c, Master: master}); err != nil {
			return nil, err
		}
	}

	hp := character.Pool{
		Base:  c.HP.Base,
		Value: res.HPValue,
		Max:   res.Sheet.Get(sheet.At(sheet.HPMax)),
	}
	u := SheetUpdate{PassID: res.PassID, Values: res.Values, Removed: res.Removed, HP: hp}
	if err := s.withRetry(ctx, "save sheet", func(ctx context.Context) error {
		return s.store.SaveSheet(ctx, id, u)
	}); err != nil {
		return nil, err
	}

	if s.cache != nil {
		persisted := c.Clone()
		persisted.Derived = res.Values
		persisted.HP = hp
		if key, err := Fingerprint(persisted, master); err == nil {
			if err := s.cache.Set(ctx, key, res); err != nil {
				s.logger.Warn("sheet cache write failed", zap.String("character", id), zap.Error(err))
			}
		}
	}
	return res, nil
}

func (s *Service) applyFeatureSync(ctx context.Context, id string, fs FeatureSync) error {
	if len(fs.Create) > 0 {
		items := make([]item.Item, len(fs.Create))
		for i, f := range fs.Create {
			items[i] = f
		}
		if err := s.withRetry(ctx, "create feature items", func(ctx context.Context) error {
			return s.store.CreateItems(ctx, id, items)
		}); err != nil {
			return err
		}
	}
	if len(fs.Delete) > 0 {
		if err := s.withRetry(ctx, "delete feature items", func(ctx context.Context) error {
			return s.store.DeleteItems(ctx, id, fs.Delete)
		}); err != nil {
			return err
		}
	}
	s.logger.Info("features synced",
		zap.String("character", id),
		zap.Int("created", len(fs.Create)),
		zap.Int("deleted", len(fs.Delete)),
	)
	return nil
}

// withRetry runs fn up to the policy's attempt count with exponential
// backoff between attempts, stopping early when ctx ends.
func (s *Service) withRetry(ctx context.Context, op string, fn func(context.Context) error) error {
	attempts := max(s.retry.Attempts, 1)
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = s.retry.Backoff
	b.MaxInterval = max(s.retry.Backoff*time.Duration(attempts), b.InitialInterval)

	attempt := 0
	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return struct{}{}, nil
		}
		s.logger.Warn("store operation failed",
			zap.String("op", op), zap.Int("attempt", attempt), zap.Error(err))
		if ctx.Err() != nil {
			return struct{}{}, backoff.Permanent(err)
		}
		return struct{}{}, err
	},
		backoff.WithBackOff(b),
		backoff.WithMaxTries(uint(attempts)),
	)
	switch {
	case err == nil:
		return nil
	case ctx.Err() != nil:
		return fmt.Errorf("%s: %w", op, ctx.Err())
	}
	return fmt.Errorf("%s after %d attempt(s): %w", op, attempt, err)
}

// UpdateAll updates every id with bounded concurrency. Failures do not stop
// the batch; they are joined into the returned error.
func (s *Service) UpdateAll(ctx context.Context, ids []string) (map[string]*Result, error) {
	var (
		mu      sync.Mutex
		results = make(map[string]*Result, len(ids))
		errs    []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for _, id := range ids {
		g.Go(func() error {
			res, err := s.Update(gctx, id)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				errs = append(errs, fmt.Errorf("character %q: %w", id, err))
				return nil
			}
			results[id] = res
			return nil
		})
	}
	_ = g.Wait()
	return results, errors.Join(errs...)
}

// Fingerprint is a content hash of everything a pass reads: the document,
// its items and the master's persisted values.
func Fingerprint(c, master *character.Character) (string, error) {
	doc, err := character.MarshalDocument(c)
	if err != nil {
		return "", err
	}
	items, err := json.Marshal(item.Wrap(c.Items))
	if err != nil {
		return "", err
	}
	h := sha256.New()
	h.Write(doc)
	h.Write(items)
	if master != nil {
		m, err := json.Marshal(master.Derived)
		if err != nil {
			return "", err
		}
		h.Write(m)
	}
	return c.ID + ":" + hex.EncodeToString(h.Sum(nil)), nil
}
