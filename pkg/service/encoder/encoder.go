package encoder

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	"github.com/secmon-lab/esr/pkg/domain/model"
	"github.com/secmon-lab/esr/pkg/service/synthesizer"
	"github.com/secmon-lab/esr/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Sentinel errors for the encoder
var (
	ErrAllBackendsFailed = goerr.New("all backends failed to store")
	ErrNoBackends        = goerr.New("at least one backend is required")
)

// Encoder fans every write out to every registered backend and every
// recall in from all of them. There is no routing: store everywhere,
// synthesize on recall. The backend set is fixed at construction.
type Encoder struct {
	backends map[string]interfaces.Backend
	timeout  time.Duration
	synth    *synthesizer.Synthesizer

	mu    sync.Mutex
	stats stats
}

type stats struct {
	totalStores  uint64
	totalRecalls uint64
	perBackend   map[string]*backendStats
}

type backendStats struct {
	stores        uint64
	storeFailures uint64
	recalls       uint64
	recallMisses  uint64
	timeouts      uint64
}

const defaultTimeout = 3 * time.Second

type Option func(*Encoder)

// WithTimeout bounds each individual backend call. One slow backend can
// never stall the whole fan-out beyond this limit.
func WithTimeout(d time.Duration) Option {
	return func(e *Encoder) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// New creates an Encoder over an explicit backend set. The set must not be
// empty; registering backends is the caller's responsibility (no ambient
// global registry).
func New(backends map[string]interfaces.Backend, opts ...Option) (*Encoder, error) {
	if len(backends) == 0 {
		return nil, ErrNoBackends
	}

	e := &Encoder{
		backends: backends,
		timeout:  defaultTimeout,
		synth:    synthesizer.New(),
		stats: stats{
			perBackend: make(map[string]*backendStats, len(backends)),
		},
	}
	for name := range backends {
		e.stats.perBackend[name] = &backendStats{}
	}
	for _, opt := range opts {
		opt(e)
	}

	return e, nil
}

// BackendNames returns the names of all registered backends
func (e *Encoder) BackendNames() []string {
	names := make([]string, 0, len(e.backends))
	for name := range e.backends {
		names = append(names, name)
	}
	return names
}

// StoreEverywhere writes the value to all backends concurrently. The
// returned map always has one entry per backend recording success or
// failure. The store is overall-successful if at least one backend
// accepted it; ErrAllBackendsFailed is returned only when every backend
// failed.
func (e *Encoder) StoreEverywhere(ctx context.Context, key string, value []byte, metadata map[string]string) (map[string]bool, error) {
	e.mu.Lock()
	e.stats.totalStores++
	e.mu.Unlock()

	results := make(map[string]bool, len(e.backends))
	var resultMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for name, backend := range e.backends {
		g.Go(func() error {
			ok := e.storeOne(ctx, name, backend, key, value, metadata)

			resultMu.Lock()
			results[name] = ok
			resultMu.Unlock()

			e.mu.Lock()
			if ok {
				e.stats.perBackend[name].stores++
			} else {
				e.stats.perBackend[name].storeFailures++
			}
			e.mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	succeeded := 0
	for _, ok := range results {
		if ok {
			succeeded++
		}
	}

	logging.From(ctx).Debug("store fan-out complete",
		"key", key,
		"succeeded", succeeded,
		"backends", len(e.backends),
	)

	if succeeded == 0 {
		return results, goerr.Wrap(ErrAllBackendsFailed, "store rejected by every backend", goerr.V("key", key))
	}
	return results, nil
}

// storeOne runs a single backend store with timeout and panic isolation.
// Any failure is converted into false; nothing propagates.
func (e *Encoder) storeOne(ctx context.Context, name string, backend interfaces.Backend, key string, value []byte, metadata map[string]string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Warn("backend panicked on store", "backend", name, "panic", r)
			ok = false
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	if err := backend.Store(callCtx, key, value, metadata); err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			e.recordTimeout(name)
		}
		logging.From(ctx).Debug("backend store failed", "backend", name, "key", key, "error", err)
		return false
	}
	return true
}

// RecallFromEverywhere retrieves the key from all backends concurrently
// and merges whatever responses arrive within the timeout window. Slow or
// failed backends are simply absent from the result set.
func (e *Encoder) RecallFromEverywhere(ctx context.Context, key string) *model.SynthesisResult {
	e.mu.Lock()
	e.stats.totalRecalls++
	e.mu.Unlock()

	var responses []model.MemoryResponse
	var responseMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for name, backend := range e.backends {
		g.Go(func() error {
			resp := e.retrieveOne(ctx, name, backend, key)

			e.mu.Lock()
			if resp != nil {
				e.stats.perBackend[name].recalls++
			} else {
				e.stats.perBackend[name].recallMisses++
			}
			e.mu.Unlock()

			if resp != nil {
				responseMu.Lock()
				responses = append(responses, *resp)
				responseMu.Unlock()
			}
			return nil
		})
	}
	_ = g.Wait()

	result := e.synth.Synthesize(responses)

	logging.From(ctx).Debug("recall fan-out complete",
		"key", key,
		"responded", len(responses),
		"status", result.Status,
		"contradictions", len(result.Contradictions),
	)

	return result
}

// retrieveOne runs a single backend retrieve with timeout and panic
// isolation. Absence and failure both yield nil.
func (e *Encoder) retrieveOne(ctx context.Context, name string, backend interfaces.Backend, key string) (resp *model.MemoryResponse) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Warn("backend panicked on retrieve", "backend", name, "panic", r)
			resp = nil
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	value, err := backend.Retrieve(callCtx, key)
	if err != nil {
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			e.recordTimeout(name)
		}
		if !errors.Is(err, interfaces.ErrNotFound) {
			logging.From(ctx).Debug("backend retrieve failed", "backend", name, "key", key, "error", err)
		}
		return nil
	}

	return &model.MemoryResponse{
		Content:       value,
		SourceBackend: name,
		Confidence:    1.0,
		RetrievalTime: time.Since(start),
	}
}

// SearchEverywhere fans a query out to every search-capable backend and
// returns the raw responses. Backends without the Searcher capability are
// skipped; searching is best-effort and failures are dropped.
func (e *Encoder) SearchEverywhere(ctx context.Context, query string, limit int) []model.MemoryResponse {
	var responses []model.MemoryResponse
	var responseMu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	for name, backend := range e.backends {
		searcher, ok := backend.(interfaces.Searcher)
		if !ok {
			continue
		}

		g.Go(func() error {
			results := e.searchOne(ctx, name, searcher, query, limit)
			if len(results) == 0 {
				return nil
			}

			responseMu.Lock()
			responses = append(responses, results...)
			responseMu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	return responses
}

func (e *Encoder) searchOne(ctx context.Context, name string, searcher interfaces.Searcher, query string, limit int) (responses []model.MemoryResponse) {
	defer func() {
		if r := recover(); r != nil {
			logging.From(ctx).Warn("backend panicked on search", "backend", name, "panic", r)
			responses = nil
		}
	}()

	callCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	values, err := searcher.Search(callCtx, query, limit)
	if err != nil {
		if !errors.Is(err, interfaces.ErrSearchUnsupported) {
			logging.From(ctx).Debug("backend search failed", "backend", name, "query", query, "error", err)
		}
		return nil
	}

	elapsed := time.Since(start)
	for _, value := range values {
		responses = append(responses, model.MemoryResponse{
			Content:       value,
			SourceBackend: name,
			Confidence:    1.0,
			RetrievalTime: elapsed,
		})
	}
	return responses
}

// Close releases backends that hold external resources
func (e *Encoder) Close() error {
	var errs []error
	for name, backend := range e.backends {
		if closer, ok := backend.(interfaces.Closer); ok {
			if err := closer.Close(); err != nil {
				errs = append(errs, goerr.Wrap(err, "failed to close backend", goerr.V("backend", name)))
			}
		}
	}
	return errors.Join(errs...)
}

func (e *Encoder) recordTimeout(name string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.stats.perBackend[name].timeouts++
}
