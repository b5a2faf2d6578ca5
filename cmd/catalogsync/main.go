package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/davicafu/catalogsync/internal/app"
	"github.com/davicafu/catalogsync/internal/config"
	"github.com/davicafu/catalogsync/pkg/logger"
)

type rootOptions struct {
	seed bool
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "catalogsync",
		Short: "Catálogo de juegos con outbox transaccional y proyecciones autorreparables",
	}
	cmd.PersistentFlags().BoolVar(&opts.seed, "seed", false, "carga el catálogo inicial si el almacén está vacío")

	cmd.AddCommand(
		newComponentCommand(opts, "api", "Sirve la API HTTP y /health", app.ComponentAPI),
		newComponentCommand(opts, "relay", "Drena el outbox hacia el transporte", app.ComponentRelay),
		newComponentCommand(opts, "project", "Consume eventos y actualiza las proyecciones", app.ComponentProjector),
		newComponentCommand(opts, "reconcile", "Detecta y repara la deriva de las proyecciones", app.ComponentReconciler),
		newComponentCommand(opts, "all", "Ejecuta todos los componentes en un proceso", app.AllComponents()...),
	)
	return cmd
}

func newComponentCommand(opts *rootOptions, use, short string, components ...app.Component) *cobra.Command {
	return &cobra.Command{
		Use:           use,
		Short:         short,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd.Context(), opts, components)
		},
	}
}

func run(ctx context.Context, opts *rootOptions, components []app.Component) error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	if err := logger.Init(cfg.LogLevel); err != nil {
		return err
	}
	log := logger.Logger()
	defer log.Sync() // flush buffers al salir

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Error("❌ Arranque fallido", zap.Error(err))
		return err
	}
	defer a.Close()

	if opts.seed {
		if _, err := a.Seed(ctx); err != nil {
			return err
		}
	}

	log.Info("▶️ Componentes en marcha", zap.Any("components", components), zap.String("deployment", cfg.Deployment))
	return a.Run(ctx, components...)
}
