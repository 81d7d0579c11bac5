package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"

	"github.com/secmon-lab/esr/pkg/cli/config"
	httpctrl "github.com/secmon-lab/esr/pkg/controller/http"
	"github.com/secmon-lab/esr/pkg/domain/interfaces"
	"github.com/secmon-lab/esr/pkg/service/encoder"
	"github.com/secmon-lab/esr/pkg/usecase"
	"github.com/secmon-lab/esr/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdServe() *cli.Command {
	var addr string
	var backendCfg config.Backend
	var cacheCfg config.Cache
	var metabolismCfg config.Metabolism
	var geminiCfg config.Gemini

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("ESR_ADDR"),
			Destination: &addr,
		},
	}
	flags = append(flags, backendCfg.Flags()...)
	flags = append(flags, cacheCfg.Flags()...)
	flags = append(flags, metabolismCfg.Flags()...)
	flags = append(flags, geminiCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			// Build the optional embedder first; the chromem backend needs it
			var embedder interfaces.Embedder
			geminiEmbedder, err := geminiCfg.Configure(ctx)
			if err != nil {
				return goerr.Wrap(err, "failed to configure Gemini embedder")
			}
			if geminiEmbedder != nil {
				embedder = geminiEmbedder
				logging.Default().Info("Gemini embedder enabled")
			} else {
				logging.Default().Info("Gemini not configured, semantic search degrades to substring matching")
			}

			backends, err := backendCfg.Configure(ctx, embedder)
			if err != nil {
				return goerr.Wrap(err, "failed to configure backends")
			}

			enc, err := encoder.New(backends, encoder.WithTimeout(backendCfg.Timeout()))
			if err != nil {
				return goerr.Wrap(err, "failed to create encoder")
			}
			defer func() {
				if err := enc.Close(); err != nil {
					logging.Default().Error("failed to close backends", "error", err.Error())
				}
			}()

			uc := usecase.New(enc, usecase.WithCache(cacheCfg.Configure()))

			httpOpts := []httpctrl.Options{}
			worker := metabolismCfg.Configure(uc)
			if metabolismCfg.Enabled() {
				worker.Start(ctx)
				defer worker.Stop()
				httpOpts = append(httpOpts, httpctrl.WithMetabolism(worker))
			} else {
				logging.Default().Info("metabolism process disabled")
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Setup signal handling for graceful shutdown
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server",
					"addr", addr,
					"backends", enc.BackendNames(),
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			select {
			case err := <-errCh:
				return err
			case sig := <-sigCh:
				logging.Default().Info("Received shutdown signal", "signal", sig)

				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}

				logging.Default().Info("Server shutdown completed")
				return nil
			}
		},
	}
}
