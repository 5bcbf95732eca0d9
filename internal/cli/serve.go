package cli

import (
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/nexus-hq/nexusd/internal/api"
	"github.com/nexus-hq/nexusd/internal/app/access"
	"github.com/nexus-hq/nexusd/internal/app/billing"
	"github.com/nexus-hq/nexusd/internal/app/ledger"
	"github.com/nexus-hq/nexusd/internal/app/nexus"
	"github.com/nexus-hq/nexusd/internal/app/privops"
	"github.com/nexus-hq/nexusd/internal/app/pulse"
	"github.com/nexus-hq/nexusd/internal/app/streak"
	"github.com/nexus-hq/nexusd/internal/app/vault"
	"github.com/nexus-hq/nexusd/internal/daemon"
	"github.com/nexus-hq/nexusd/internal/infra/sqlite"
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().Bool("metrics", true, "Expose the Prometheus /metrics endpoint")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the nexusd HTTP server",
	Long:  `Start the HTTP API server backed by the local SQLite store.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfgPath, _ := cmd.Flags().GetString("config")
	if cfgPath == "" {
		home, _ := os.UserHomeDir()
		cfgPath = filepath.Join(home, ".nexusd", "config.toml")
	}
	cfg, err := daemon.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	if err := os.MkdirAll(cfg.Storage.Dir, 0700); err != nil {
		return fmt.Errorf("create storage directory: %w", err)
	}
	db, err := sqlite.Open(cfg.Storage.Dir)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer db.Close()

	policy := access.NewPolicy(db)
	ops := privops.New(db, policy)
	streaks := streak.New(db, ops)
	sessions := pulse.New(db, policy, streaks)
	ledgerSvc := ledger.New(db, policy, ops)
	vaultEng := vault.New(db)
	reconciler := billing.New(billing.Config{
		SigningSecret:  cfg.Billing.SigningSecret,
		RenewalCredits: cfg.Billing.RenewalCredits,
		ProProduct:     cfg.Billing.ProProduct,
		Products:       cfg.Billing.Topups,
	}, db)
	collab := nexus.New(db, policy)

	srv := api.NewServer(db, sessions, ledgerSvc, vaultEng, reconciler, collab, streaks)
	if metrics, _ := cmd.Flags().GetBool("metrics"); metrics {
		srv.EnableMetrics()
	}
	if cfg.Digest.Secret != "" {
		srv.SetDigestSecret(cfg.Digest.Secret)
	}

	addr := net.JoinHostPort(cfg.API.Host, strconv.Itoa(cfg.API.Port))
	log.Printf("nexusd %s listening on http://%s", Version, addr)
	return http.ListenAndServe(addr, srv.Handler())
}
