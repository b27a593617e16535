// Package predict runs the collect, encode and model steps for one form or
// a batch of forms.
package predict

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/kartoza/laptop-pricer/internal/collector"
	"github.com/kartoza/laptop-pricer/internal/encoder"
	"github.com/kartoza/laptop-pricer/internal/laptop"
	"github.com/kartoza/laptop-pricer/internal/regressor"
	"github.com/kartoza/laptop-pricer/internal/schema"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"golang.org/x/text/number"
)

var (
	// ErrPrediction reports a model failure or a non-finite price.
	ErrPrediction = errors.New("prediction failed")
	// ErrNoModel reports a service started without a price model.
	ErrNoModel = errors.New("no price model loaded")
)

// Options tune a Service. Zero values pick the defaults.
type Options struct {
	Catalog   laptop.Catalog
	CacheSize int
	Workers   int
	Locale    string
	Prefix    string
	Logger    *zap.Logger
}

// Service is immutable after construction and safe for concurrent use.
type Service struct {
	schema    *schema.Schema
	catalog   laptop.Catalog
	collector *collector.Collector
	encoder   *encoder.Encoder
	model     regressor.Predictor
	cache     *lru.Cache[string, float64]
	workers   int
	printer   *message.Printer
	prefix    string
	logger    *zap.Logger
}

// Result is one prediction.
type Result struct {
	ID         uuid.UUID                  `json:"id"`
	Price      float64                    `json:"price"`
	Rounded    decimal.Decimal            `json:"rounded"`
	Display    string                     `json:"display"`
	Resolution collector.ResolutionSource `json:"resolution"`
	Notices    []collector.Notice         `json:"notices,omitempty"`
	Cached     bool                       `json:"cached"`
	Features   []encoder.Feature          `json:"features,omitempty"`
}

// Encoding is a form encoded without calling the model.
type Encoding struct {
	Vector     encoder.Vector             `json:"vector"`
	Features   []encoder.Feature          `json:"features"`
	Resolution collector.ResolutionSource `json:"resolution"`
	Notices    []collector.Notice         `json:"notices,omitempty"`
}

// NewService binds model to s. A nil model is allowed; Predict then
// returns ErrNoModel while Encode keeps working.
func NewService(s *schema.Schema, model regressor.Predictor, opts Options) (*Service, error) {
	enc, err := encoder.New(s)
	if err != nil {
		return nil, err
	}
	if model != nil {
		if err := regressor.Prepare(model, s.Columns()); err != nil {
			return nil, fmt.Errorf("model does not fit the feature schema: %w", err)
		}
	}

	catalog := opts.Catalog
	if catalog == nil {
		catalog = laptop.DefaultCatalog()
	}
	workers := opts.Workers
	if workers < 1 {
		workers = 4
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	locale := opts.Locale
	if locale == "" {
		locale = "en"
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("invalid display locale %q: %w", locale, err)
	}

	svc := &Service{
		schema:    s,
		catalog:   catalog,
		collector: collector.New(catalog),
		encoder:   enc,
		model:     model,
		workers:   workers,
		printer:   message.NewPrinter(tag),
		prefix:    opts.Prefix,
		logger:    logger,
	}
	if opts.CacheSize > 0 {
		svc.cache, err = lru.New[string, float64](opts.CacheSize)
		if err != nil {
			return nil, err
		}
	}
	return svc, nil
}

// Schema is the bound feature layout.
func (s *Service) Schema() *schema.Schema {
	return s.schema
}

// Catalog is the set of offered options.
func (s *Service) Catalog() laptop.Catalog {
	return s.catalog
}

// HasModel reports whether predictions are available.
func (s *Service) HasModel() bool {
	return s.model != nil
}

// ModelInfo describes the loaded model, or nil.
func (s *Service) ModelInfo() map[string]interface{} {
	if s.model == nil {
		return nil
	}
	return s.model.Info()
}

// CacheLen is the number of cached predictions.
func (s *Service) CacheLen() int {
	if s.cache == nil {
		return 0
	}
	return s.cache.Len()
}

// Encode collects and encodes f.
func (s *Service) Encode(f collector.Form) (*Encoding, error) {
	capture, vec, err := s.encode(f)
	if err != nil {
		return nil, err
	}
	return &Encoding{
		Vector:     vec,
		Features:   vec.Named(s.schema.Columns()),
		Resolution: capture.Resolution,
		Notices:    capture.Notices,
	}, nil
}

// Predict collects and encodes f, then asks the model for a price.
func (s *Service) Predict(f collector.Form) (*Result, error) {
	capture, vec, err := s.encode(f)
	if err != nil {
		return nil, err
	}

	price, cached, err := s.evaluate(vec)
	if err != nil {
		return nil, err
	}

	rounded := decimal.NewFromFloat(price).Round(2)
	res := &Result{
		ID:         uuid.New(),
		Price:      price,
		Rounded:    rounded,
		Display:    s.format(rounded),
		Resolution: capture.Resolution,
		Notices:    capture.Notices,
		Cached:     cached,
		Features:   vec.Named(s.schema.Columns()),
	}
	s.logger.Debug("prediction",
		zap.String("id", res.ID.String()),
		zap.Float64("price", price),
		zap.Bool("cached", cached),
		zap.String("resolution_source", string(capture.Resolution.Source)),
		zap.Int("notices", len(capture.Notices)),
	)
	return res, nil
}

// PredictBatch predicts every form with bounded concurrency. Results keep
// the order of forms. The first failure cancels the rest.
func (s *Service) PredictBatch(ctx context.Context, forms []collector.Form) ([]*Result, error) {
	results := make([]*Result, len(forms))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)

	for i, f := range forms {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			res, err := s.Predict(f)
			if err != nil {
				return fmt.Errorf("form %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (s *Service) encode(f collector.Form) (collector.Capture, encoder.Vector, error) {
	capture, err := s.collector.Collect(f)
	if err != nil {
		return capture, nil, err
	}
	vec, err := s.encoder.Encode(capture.Input)
	if err != nil {
		return capture, nil, err
	}
	return capture, vec, nil
}

func (s *Service) evaluate(vec encoder.Vector) (float64, bool, error) {
	if s.model == nil {
		return 0, false, ErrNoModel
	}

	var key string
	if s.cache != nil {
		key = vectorKey(vec)
		if price, ok := s.cache.Get(key); ok {
			return price, true, nil
		}
	}

	price, err := s.model.Predict(vec)
	if err != nil {
		return 0, false, fmt.Errorf("%w: %w", ErrPrediction, err)
	}
	if math.IsNaN(price) || math.IsInf(price, 0) {
		return 0, false, fmt.Errorf("%w: model returned %v", ErrPrediction, price)
	}

	if s.cache != nil {
		s.cache.Add(key, price)
	}
	return price, false, nil
}

func (s *Service) format(d decimal.Decimal) string {
	return s.prefix + s.printer.Sprint(number.Decimal(d.InexactFloat64(), number.Scale(2)))
}

// vectorKey is exact: two vectors share a key only if every float has the
// same bits.
func vectorKey(vec encoder.Vector) string {
	buf := make([]byte, 8*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint64(buf[8*i:], math.Float64bits(v))
	}
	return string(buf)
}
