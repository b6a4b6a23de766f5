package occurrence

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"path/filepath"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/nicheflow/nicheflow/internal/errors"
	"github.com/nicheflow/nicheflow/internal/logging"
	"github.com/nicheflow/nicheflow/pkg/frame"
	"github.com/nicheflow/nicheflow/pkg/geo"
	"github.com/nicheflow/nicheflow/pkg/stage"
)

// Package-level logger specific to the GBIF service
var (
	logger          *slog.Logger
	serviceLevelVar = new(slog.LevelVar) // Dynamic level control
	closeLogger     func() error
)

func init() {
	var err error
	logFilePath := filepath.Join("logs", "gbif.log")
	serviceLevelVar.Set(slog.LevelDebug)

	logger, closeLogger, err = logging.NewFileLogger(logFilePath, "gbif", serviceLevelVar)
	if err != nil {
		// Fallback: log the error and disable service file logging
		log.Printf("Failed to initialize gbif file logger at %s: %v. Service logging disabled.", logFilePath, err)
		fbHandler := slog.NewJSONHandler(io.Discard, &slog.HandlerOptions{Level: serviceLevelVar})
		logger = slog.New(fbHandler).With("service", "gbif")
		closeLogger = func() error { return nil }
	}
}

// GBIFConfig holds configuration for the GBIF occurrence client.
type GBIFConfig struct {
	// Species is the scientific name queried for.
	Species string
	// BaseURL of the GBIF API; defaults to the public instance.
	BaseURL string
	// Timeout for each HTTP request.
	Timeout time.Duration
	// CacheTTL for fetched pages.
	CacheTTL time.Duration
	// RateLimitMS is the minimum spacing between requests in milliseconds.
	RateLimitMS int
	// PageSize is the per-request record limit (GBIF caps it at 300).
	PageSize int
	// MaxPages bounds pagination; 0 means fetch until endOfRecords.
	MaxPages int
}

// DefaultGBIFConfig returns the default client configuration.
func DefaultGBIFConfig() GBIFConfig {
	return GBIFConfig{
		BaseURL:     "https://api.gbif.org/v1",
		Timeout:     30 * time.Second,
		CacheTTL:    24 * time.Hour,
		RateLimitMS: 200,
		PageSize:    300,
		MaxPages:    10,
	}
}

// gbifPage is one page of the GBIF occurrence search response.
type gbifPage struct {
	Offset       int          `json:"offset"`
	Limit        int          `json:"limit"`
	EndOfRecords bool         `json:"endOfRecords"`
	Count        int          `json:"count"`
	Results      []gbifRecord `json:"results"`
}

type gbifRecord struct {
	ScientificName   string   `json:"scientificName"`
	DecimalLongitude *float64 `json:"decimalLongitude"`
	DecimalLatitude  *float64 `json:"decimalLatitude"`
	BasisOfRecord    string   `json:"basisOfRecord"`
	IndividualCount  *float64 `json:"individualCount"`
}

// GBIF is an occurrence stage backed by the GBIF occurrence search API.
// Every returned record is a presence.
type GBIF struct {
	cfg        GBIFConfig
	httpClient *http.Client
	cache      *cache.Cache
	mu         sync.Mutex
	lastReq    time.Time
}

// NewGBIF creates a new GBIF client stage, filling config defaults.
func NewGBIF(cfg GBIFConfig) *GBIF {
	def := DefaultGBIFConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = def.CacheTTL
	}
	if cfg.RateLimitMS == 0 {
		cfg.RateLimitMS = def.RateLimitMS
	}
	if cfg.PageSize <= 0 || cfg.PageSize > 300 {
		cfg.PageSize = def.PageSize
	}
	if cfg.MaxPages < 0 {
		cfg.MaxPages = def.MaxPages
	}

	g := &GBIF{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		cache:      cache.New(cfg.CacheTTL, cfg.CacheTTL*2),
	}

	logger.Info("GBIF client initialized",
		"base_url", cfg.BaseURL,
		"species", cfg.Species,
		"cache_ttl", cfg.CacheTTL,
		"rate_limit_ms", cfg.RateLimitMS)

	return g
}

func (g *GBIF) Name() string { return "gbif" }

// Fetch retrieves all georeferenced occurrences of the configured species
// within the extent, paginating until endOfRecords or MaxPages.
func (g *GBIF) Fetch(ctx context.Context, extent geo.Extent) (*frame.OccurrenceTable, error) {
	if g.cfg.Species == "" {
		return nil, errors.Newf("gbif stage requires a species name").
			Component("occurrence").
			Category(errors.CategoryConfiguration).
			Build()
	}

	cacheKey := fmt.Sprintf("%s|%s", g.cfg.Species, extent)
	if cached, found := g.cache.Get(cacheKey); found {
		logger.Debug("occurrence cache hit", "key", cacheKey)
		table := cached.(*frame.OccurrenceTable)
		return cloneTable(table), nil
	}

	table := frame.NewOccurrenceTable(g.cfg.PageSize)
	offset := 0
	skipped := 0
	for page := 0; g.cfg.MaxPages == 0 || page < g.cfg.MaxPages; page++ {
		p, err := g.fetchPage(ctx, extent, offset)
		if err != nil {
			return nil, err
		}

		for _, rec := range p.Results {
			if rec.DecimalLongitude == nil || rec.DecimalLatitude == nil {
				skipped++
				continue
			}
			lon, lat := *rec.DecimalLongitude, *rec.DecimalLatitude
			if !extent.Contains(lon, lat) {
				skipped++
				continue
			}
			value := 1.0
			if rec.IndividualCount != nil && *rec.IndividualCount > 0 {
				value = *rec.IndividualCount
			}
			table.Append(frame.Record{Value: value, Type: frame.TypePresence, Lon: lon, Lat: lat})
		}

		if p.EndOfRecords {
			break
		}
		// A page that does not advance the offset would repeat forever.
		if p.Limit <= 0 {
			logger.Warn("GBIF page reported a non-positive limit, stopping pagination",
				"species", g.cfg.Species,
				"offset", offset)
			break
		}
		offset += p.Limit
	}

	logger.Info("GBIF fetch complete",
		"species", g.cfg.Species,
		"records", table.Len(),
		"skipped", skipped)

	g.cache.Set(cacheKey, cloneTable(table), cache.DefaultExpiration)
	return table, nil
}

// fetchPage performs one rate-limited occurrence search request.
func (g *GBIF) fetchPage(ctx context.Context, extent geo.Extent, offset int) (*gbifPage, error) {
	g.throttle()

	params := url.Values{}
	params.Set("scientificName", g.cfg.Species)
	params.Set("hasCoordinate", "true")
	params.Set("decimalLongitude", fmt.Sprintf("%v,%v", extent.West, extent.East))
	params.Set("decimalLatitude", fmt.Sprintf("%v,%v", extent.South, extent.North))
	params.Set("limit", fmt.Sprintf("%d", g.cfg.PageSize))
	params.Set("offset", fmt.Sprintf("%d", offset))

	reqURL := g.cfg.BaseURL + "/occurrence/search?" + params.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, errors.New(err).Component("occurrence").Category(errors.CategoryNetwork).Build()
	}

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, errors.Newf("GBIF request failed: %w", err).
			Component("occurrence").
			Category(errors.CategoryNetwork).
			Context("offset", offset).
			Timing("occurrence-search", time.Since(start)).
			Build()
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, errors.Newf("GBIF returned status %d: %s", resp.StatusCode, body).
			Component("occurrence").
			Category(errors.CategoryNetwork).
			Context("status", resp.StatusCode).
			Build()
	}

	var page gbifPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return nil, errors.Newf("failed to decode GBIF response: %w", err).
			Component("occurrence").
			Category(errors.CategoryFileParsing).
			Build()
	}

	logger.Debug("fetched GBIF page",
		"offset", page.Offset,
		"results", len(page.Results),
		"end_of_records", page.EndOfRecords,
		"duration_ms", time.Since(start).Milliseconds())

	return &page, nil
}

// throttle enforces the configured minimum spacing between requests.
func (g *GBIF) throttle() {
	g.mu.Lock()
	defer g.mu.Unlock()

	minGap := time.Duration(g.cfg.RateLimitMS) * time.Millisecond
	if wait := minGap - time.Since(g.lastReq); wait > 0 {
		time.Sleep(wait)
	}
	g.lastReq = time.Now()
}

// Close releases client resources.
func (g *GBIF) Close() {
	g.cache.Flush()
}

func cloneTable(t *frame.OccurrenceTable) *frame.OccurrenceTable {
	out := frame.NewOccurrenceTable(t.Len())
	out.Rows = append(out.Rows, t.Rows...)
	return out
}

// Source returns the stage's literal source form with the effective
// configuration baked in.
func (g *GBIF) Source() (stage.SourceForm, error) {
	return stage.SourceForm{
		Imports: []string{
			"github.com/nicheflow/nicheflow/pkg/stage",
			"github.com/nicheflow/nicheflow/pkg/stages/occurrence",
		},
		Decl: fmt.Sprintf(`func newOccurrenceStage() stage.Occurrence {
	return occurrence.NewGBIF(occurrence.GBIFConfig{Species: %q, BaseURL: %q, PageSize: %d, MaxPages: %d})
}`, g.cfg.Species, g.cfg.BaseURL, g.cfg.PageSize, g.cfg.MaxPages),
	}, nil
}
