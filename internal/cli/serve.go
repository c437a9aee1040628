package cli

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/skratchdot/open-golang/open"
	"github.com/spf13/cobra"

	"github.com/Regdarim/arni-worker/internal/api"
	"github.com/Regdarim/arni-worker/internal/config"
	"github.com/Regdarim/arni-worker/internal/kv"
	log "github.com/Regdarim/arni-worker/internal/logging"
)

var (
	servePort int
	serveOpen bool
	serveDev  bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the worker HTTP server",
	Long: `Start the HTTP server. Loads configuration, connects the key-value
backend selected by the DSN, and serves until interrupted.`,
	Run: func(c *cobra.Command, args []string) {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			log.Fatalf("Failed to load config: %v", err)
		}
		if servePort != 0 {
			cfg.Port = servePort
		}

		log.SetDebug(cfg.Debug)
		if err := log.ConfigureLogOutput(cfg.LoggingToFile, cfg.LogDir); err != nil {
			log.Fatalf("Failed to configure log output: %v", err)
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		var store kv.Store
		if serveDev {
			log.Infof("serve: using in-memory store (--dev)")
			store = kv.NewMemoryStore()
		} else {
			dsn, err := config.ParseDSN(cfg.KVDSN)
			if err != nil {
				log.Fatalf("Invalid KV DSN: %v", err)
			}
			store, err = kv.NewStore(ctx, dsn)
			if err != nil {
				log.Fatalf("Failed to open KV store: %v", err)
			}
		}
		if store != nil {
			defer store.Close()
		} else {
			log.Warnf("serve: no KV store bound, stateful endpoints will fail")
		}

		server := api.New(cfg, store, cfgFile)

		if serveOpen {
			url := fmt.Sprintf("http://localhost:%d/", cfg.Port)
			go func() {
				time.Sleep(300 * time.Millisecond)
				if err := open.Run(url); err != nil {
					log.Debugf("serve: open %s: %v", url, err)
				}
			}()
		}

		if err := server.Run(ctx); err != nil {
			log.Fatalf("Server error: %v", err)
		}
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "server port (overrides config)")
	serveCmd.Flags().BoolVar(&serveOpen, "open", false, "open the dashboard in a browser")
	serveCmd.Flags().BoolVar(&serveDev, "dev", false, "use an in-memory store")
	rootCmd.AddCommand(serveCmd)
}
