package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/PabloGalante/resq-agent/internal/adapters/http"
	"github.com/PabloGalante/resq-agent/internal/adapters/llm"
	memstore "github.com/PabloGalante/resq-agent/internal/adapters/storage/memory"
	"github.com/PabloGalante/resq-agent/internal/adapters/telephony"
	"github.com/PabloGalante/resq-agent/internal/app/dialogue"
	"github.com/PabloGalante/resq-agent/internal/app/dispatch"
	"github.com/PabloGalante/resq-agent/internal/app/locate"
	"github.com/PabloGalante/resq-agent/internal/app/triage"
	"github.com/PabloGalante/resq-agent/internal/observability"
)

func serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Answer calls and serve the dispatch dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			log := observability.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cases, closeCases, err := openCaseStore(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeCases()

			gen, err := newGenerator(ctx, cfg)
			if err != nil {
				return err
			}
			policy := llm.RetryPolicy{Attempts: cfg.RetryAttempts, Backoff: cfg.RetryBackoff}
			extractor := llm.NewExtractor(gen, cfg.LLMProvider, policy)

			resolver := locate.NewResolver(newGeocoder(cfg), cfg.GeocodeTimeout)
			engine := dialogue.NewEngine(extractor,
				dialogue.WithResolver(resolver),
				dialogue.WithExtractTimeout(cfg.ExtractTimeout),
			)
			classifier := newClassifier(cfg)
			sessions := memstore.NewSessionStore()
			hub := httpadapter.NewHub(0)

			renderer := telephony.NewRenderer()
			if cfg.PublicURL != "" {
				renderer.RespondPath = cfg.PublicURL + "/respond"
			}

			handler := httpadapter.NewServer(httpadapter.Config{
				Triage:     triage.NewService(engine, classifier, sessions, cases, resolver, hub),
				Dispatch:   dispatch.NewService(cases, sessions, hub),
				Classifier: classifier,
				Hub:        hub,
				Renderer:   renderer,
			})

			srv := &http.Server{
				Addr:              ":" + cfg.Port,
				Handler:           handler,
				ReadHeaderTimeout: 10 * time.Second,
			}

			g, gctx := errgroup.WithContext(ctx)
			g.Go(func() error {
				log.Info("resq listening", "addr", srv.Addr, "mode", string(cfg.Mode), "storage", cfg.StorageBackend)
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			})
			g.Go(func() error {
				<-gctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				log.Info("shutting down")
				return srv.Shutdown(shutdownCtx)
			})
			return g.Wait()
		},
	}
	cmd.Flags().String("port", "3001", "listen port")
	_ = v.BindPFlag("port", cmd.Flags().Lookup("port"))
	return cmd
}
