package main

import (
	"context"
	"fmt"

	"github.com/PabloGalante/resq-agent/internal/adapters/classifier"
	"github.com/PabloGalante/resq-agent/internal/adapters/geocode"
	"github.com/PabloGalante/resq-agent/internal/adapters/llm"
	firestorestore "github.com/PabloGalante/resq-agent/internal/adapters/storage/firestore"
	memstore "github.com/PabloGalante/resq-agent/internal/adapters/storage/memory"
	sqlitestore "github.com/PabloGalante/resq-agent/internal/adapters/storage/sqlite"
	"github.com/PabloGalante/resq-agent/internal/app/priority"
	"github.com/PabloGalante/resq-agent/internal/config"
	"github.com/PabloGalante/resq-agent/internal/domain"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

func loadConfig() (*config.Config, error) {
	return config.Load(v)
}

// openCaseStore returns the configured case store and its closer.
func openCaseStore(ctx context.Context, cfg *config.Config) (domain.CaseStore, func() error, error) {
	log := observability.Logger()
	noop := func() error { return nil }

	switch cfg.StorageBackend {
	case "sqlite":
		log.Info("using sqlite storage", "path", cfg.SQLitePath)
		st, err := sqlitestore.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return st, st.Close, nil
	case "firestore":
		log.Info("using firestore storage", "project", cfg.GCPProjectID)
		st, err := firestorestore.NewStore(ctx, cfg.GCPProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("initializing firestore store: %w", err)
		}
		return st, st.Close, nil
	default:
		log.Info("using in-memory storage")
		return memstore.NewCaseStore(), noop, nil
	}
}

func newGenerator(ctx context.Context, cfg *config.Config) (llm.Generator, error) {
	log := observability.Logger()

	switch cfg.LLMProvider {
	case "vertex":
		log.Info("using vertex llm", "project", cfg.GCPProjectID, "model", cfg.ModelName)
		return llm.NewVertexClient(ctx, cfg.GCPProjectID, cfg.GCPLocation, cfg.ModelName)
	case "ollama":
		log.Info("using ollama llm", "url", cfg.OllamaURL, "model", cfg.OllamaModel)
		return llm.NewOllamaClient(cfg.OllamaURL, cfg.OllamaModel, cfg.ExtractTimeout), nil
	default:
		log.Info("using mock llm")
		return llm.NewMockLLM(), nil
	}
}

func newZeroShot(cfg *config.Config) domain.ZeroShotClassifier {
	if cfg.ClassifierURL == "" {
		observability.Logger().Info("no zero-shot endpoint configured, using keyword rules only")
		return nil
	}
	var opts []classifier.Option
	if cfg.ClassifierToken != "" {
		opts = append(opts, classifier.WithToken(cfg.ClassifierToken))
	}
	return classifier.NewZeroShot(cfg.ClassifierURL, opts...)
}

func newClassifier(cfg *config.Config) *priority.Classifier {
	return priority.NewClassifier(newZeroShot(cfg), cfg.ClassifyTimeout)
}

func newGeocoder(cfg *config.Config) domain.Geocoder {
	if cfg.GeocoderURL == "" {
		return nil
	}
	return geocode.NewNominatim(cfg.GeocoderURL, cfg.GeocoderUserAgent, cfg.GeocodeTimeout)
}
