package predict

import (
	"fmt"

	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/laptop"
	"github.com/kartoza/laptop-pricer/internal/registry"
	"github.com/kartoza/laptop-pricer/internal/regressor"
	"github.com/kartoza/laptop-pricer/internal/schema"
	"go.uber.org/zap"
)

// LoadSchema reads a schema file, or the bundled schema when path is empty.
func LoadSchema(path string, catalog laptop.Catalog) (*schema.Schema, error) {
	def := schema.DefaultDefinition()
	if path != "" {
		var err error
		if def, err = schema.LoadDefinition(path); err != nil {
			return nil, err
		}
	}
	return schema.New(def, catalog)
}

// LoadModel reads the configured model. It returns a nil predictor and no
// error when no model is configured.
func LoadModel(m config.ModelConfig) (regressor.Predictor, error) {
	if m.FromRegistry() {
		store, err := registry.Open(m.Registry)
		if err != nil {
			return nil, err
		}
		defer store.Close()

		var a *registry.Artifact
		if m.Version > 0 {
			a, err = store.Get(m.Name, m.Version)
		} else {
			a, err = store.Latest(m.Name)
		}
		if err != nil {
			return nil, err
		}
		p, err := regressor.Decode(a.Kind, a.Payload)
		if err != nil {
			return nil, fmt.Errorf("%s v%d: %w", a.Name, a.Version, err)
		}
		return p, nil
	}

	if m.Path == "" {
		return nil, nil
	}
	if m.Kind != "" {
		p, err := regressor.LoadFile(m.Path)
		if err != nil {
			return nil, err
		}
		if p.Kind() != m.Kind {
			return nil, fmt.Errorf("%w: %s holds a %s model, configured as %s",
				regressor.ErrUnsupportedModel, m.Path, p.Kind(), m.Kind)
		}
		return p, nil
	}
	return regressor.LoadFile(m.Path)
}

// Build assembles a service from configuration. A missing model is logged
// and tolerated; a model that disagrees with the schema is an error.
func Build(cfg config.Config, logger *zap.Logger) (*Service, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	catalog := laptop.DefaultCatalog()

	s, err := LoadSchema(cfg.SchemaPath, catalog)
	if err != nil {
		return nil, err
	}
	for _, col := range s.Unrepresented() {
		logger.Warn("offered option has no model column and encodes as the all-zero baseline",
			zap.String("column", col))
	}

	model, err := LoadModel(cfg.Model)
	if err != nil {
		return nil, err
	}

	svc, err := NewService(s, model, Options{
		Catalog:   catalog,
		CacheSize: cfg.Cache.Size,
		Workers:   cfg.Batch.Workers,
		Locale:    cfg.Display.Locale,
		Prefix:    cfg.Display.Prefix,
		Logger:    logger,
	})
	if err != nil {
		return nil, err
	}
	if model == nil {
		logger.Warn("no price model configured; predictions are unavailable")
	} else {
		logger.Info("price model loaded", zap.Any("model", model.Info()))
	}
	return svc, nil
}
