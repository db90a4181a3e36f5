package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"time"

	"card-optimiser/internal/cache"
	"card-optimiser/internal/models"
)

// Dataset names the three catalog documents.
type Dataset string

const (
	DatasetCards  Dataset = "cards"
	DatasetRules  Dataset = "rules"
	DatasetOffers Dataset = "offers"
)

// State tracks a dataset through the load lifecycle.
type State string

const (
	StateUnloaded State = "unloaded"
	StateLoading  State = "loading"
	StateLoaded   State = "loaded"
	StateFailed   State = "failed"
)

// Source records where a dataset was ultimately loaded from.
type Source string

const (
	SourceRemote  Source = "remote"
	SourceCache   Source = "cache"
	SourceBundled Source = "bundled"
)

var bundledFiles = map[Dataset]string{
	DatasetCards:  "cards.json",
	DatasetRules:  "reward_rules.json",
	DatasetOffers: "offers.json",
}

// LoaderOptions configures a catalog loader.
type LoaderOptions struct {
	CardsURL   string
	RulesURL   string
	OffersURL  string
	BundledDir string
	Cache      cache.Cache   // optional write-through cache for remote payloads
	CacheTTL   time.Duration // TTL for cached payloads
	Client     *http.Client  // optional, defaults to a 10s-timeout client
}

// Loader resolves each dataset through the fallback chain
// remote URL -> cached copy -> bundled file. A dataset whose remote fetch
// fails is retried through the later links rather than surfaced as an error;
// only a fully exhausted chain fails the load.
type Loader struct {
	opts   LoaderOptions
	client *http.Client

	mu     sync.Mutex
	states map[Dataset]State
}

// LoadResult reports the source each dataset resolved to.
type LoadResult struct {
	Cards  Source
	Rules  Source
	Offers Source
}

// NewLoader creates a catalog loader.
func NewLoader(opts LoaderOptions) *Loader {
	client := opts.Client
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &Loader{
		opts:   opts,
		client: client,
		states: map[Dataset]State{
			DatasetCards:  StateUnloaded,
			DatasetRules:  StateUnloaded,
			DatasetOffers: StateUnloaded,
		},
	}
}

// State returns the current lifecycle state of a dataset.
func (l *Loader) State(ds Dataset) State {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.states[ds]
}

func (l *Loader) setState(ds Dataset, st State) {
	l.mu.Lock()
	l.states[ds] = st
	l.mu.Unlock()
}

// Load resolves all three datasets and builds a snapshot.
func (l *Loader) Load(ctx context.Context) (*Snapshot, LoadResult, error) {
	var result LoadResult

	var cards []models.Card
	src, err := l.loadDataset(ctx, DatasetCards, l.opts.CardsURL, &cards)
	if err != nil {
		return nil, result, fmt.Errorf("load cards: %w", err)
	}
	result.Cards = src

	var rules []models.RewardRule
	src, err = l.loadDataset(ctx, DatasetRules, l.opts.RulesURL, &rules)
	if err != nil {
		return nil, result, fmt.Errorf("load reward rules: %w", err)
	}
	result.Rules = src

	var offers []models.Offer
	src, err = l.loadDataset(ctx, DatasetOffers, l.opts.OffersURL, &offers)
	if err != nil {
		return nil, result, fmt.Errorf("load offers: %w", err)
	}
	result.Offers = src

	return NewSnapshot(cards, rules, offers), result, nil
}

// loadDataset walks the fallback chain for one dataset and unmarshals the
// first payload that parses. A payload that fetches but does not parse falls
// through to the next link.
func (l *Loader) loadDataset(ctx context.Context, ds Dataset, url string, dest interface{}) (Source, error) {
	l.setState(ds, StateLoading)

	if url != "" {
		if data, err := l.fetchRemote(ctx, url); err == nil {
			if err := json.Unmarshal(data, dest); err == nil {
				l.cachePut(ctx, ds, data)
				l.setState(ds, StateLoaded)
				return SourceRemote, nil
			}
		}
	}

	if l.opts.Cache != nil {
		if data, err := l.opts.Cache.Get(ctx, cacheKey(ds)); err == nil {
			if err := json.Unmarshal(data, dest); err == nil {
				l.setState(ds, StateLoaded)
				return SourceCache, nil
			}
		}
	}

	data, err := os.ReadFile(filepath.Join(l.opts.BundledDir, bundledFiles[ds]))
	if err != nil {
		l.setState(ds, StateFailed)
		return "", fmt.Errorf("bundled %s: %w", ds, err)
	}
	if err := json.Unmarshal(data, dest); err != nil {
		l.setState(ds, StateFailed)
		return "", fmt.Errorf("parse bundled %s: %w", ds, err)
	}
	l.setState(ds, StateLoaded)
	return SourceBundled, nil
}

func (l *Loader) fetchRemote(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, 4<<20))
}

// cachePut writes a fetched payload back to the cache. Best effort: a cache
// failure never fails a load that already has the data in hand.
func (l *Loader) cachePut(ctx context.Context, ds Dataset, data []byte) {
	if l.opts.Cache == nil {
		return
	}
	_ = l.opts.Cache.Set(ctx, cacheKey(ds), data, l.opts.CacheTTL)
}

func cacheKey(ds Dataset) string {
	return "catalog:" + string(ds)
}
