package cli

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	liveproxy "github.com/go-mizu/liveproxy"
	"github.com/go-mizu/liveproxy/sqlstore"
	"github.com/go-mizu/liveproxy/wsrelay"
)

func newServeCmd() *cobra.Command {
	var addr, dbPath, path, secret string

	c := &cobra.Command{
		Use:   "serve",
		Short: "Start the demo proxy and websocket relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Addr = addr
			}
			if dbPath != "" {
				cfg.DBPath = dbPath
			}
			if path != "" {
				cfg.Path = path
			}
			if secret != "" {
				cfg.JWTSecret = secret
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	c.Flags().StringVar(&addr, "addr", "", "HTTP listen address (overrides config)")
	c.Flags().StringVar(&dbPath, "db", "", "DuckDB database file (overrides config)")
	c.Flags().StringVar(&path, "path", "", "Proxy document path (overrides config)")
	c.Flags().StringVar(&secret, "secret", "", "JWT signing secret (overrides config)")
	return c
}

func runServe(ctx context.Context, cfg Config) error {
	ui := NewUI()
	ui.Header(iconServer, "Starting liveproxy demo")
	ui.Blank()

	start := time.Now()
	store, err := sqlstore.Open(cfg.DBPath)
	if err != nil {
		ui.Error("Failed to open database: " + err.Error())
		return err
	}
	defer store.Close()

	proxy, err := liveproxy.Create(ctx, store, cfg.Path, liveproxy.Options{
		DefaultValue: map[string]any{},
	})
	if err != nil {
		ui.Error("Failed to create proxy: " + err.Error())
		return err
	}
	defer proxy.Destroy(context.Background())

	relay := wsrelay.NewRelay(proxy, []byte(cfg.JWTSecret), nil)
	defer relay.Close(context.Background())

	mux := http.NewServeMux()
	mux.Handle("/live", relay)

	httpSrv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ui.Success("Proxy ready", time.Since(start))
	ui.Info("Address", cfg.Addr)
	ui.Info("Database", cfg.DBPath)
	ui.Info("Path", cfg.Path)
	ui.Blank()
	ui.Hint("Press Ctrl+C to stop")
	ui.Blank()

	serverErr := make(chan error, 1)
	go func() { serverErr <- httpSrv.ListenAndServe() }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-sigCh:
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpSrv.Shutdown(shutdownCtx)
	case err := <-serverErr:
		if err == http.ErrServerClosed {
			return nil
		}
		return err
	}
}
