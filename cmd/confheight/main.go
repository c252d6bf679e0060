// Command confheight runs the confirmation-height processor as a
// standalone worker against a bbolt-backed block store.
package main

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/mezonai/confheight/confheight"
	"github.com/mezonai/confheight/config"
	"github.com/mezonai/confheight/elections"
	"github.com/mezonai/confheight/ledger"
	"github.com/mezonai/confheight/logx"
	"github.com/mezonai/confheight/monitoring"
	"github.com/mezonai/confheight/store"
	"github.com/spf13/cobra"
)

var (
	dbPath     string
	configPath string
	metricsAddr string
)

var rootCmd = &cobra.Command{
	Use:   "confheight",
	Short: "Confirmation height processor",
	Long:  "Worker that advances per-account confirmation heights against a block store.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the confirmation-height worker until interrupted",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&dbPath, "db", "./data/confheight.bbolt", "path to the bbolt block store")
	serveCmd.Flags().StringVar(&configPath, "config", "", "path to an .ini config file (defaults used if empty)")
	serveCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9102", "address to serve /metrics on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := config.Defaults()
	if configPath != "" {
		loaded, err := config.Load(configPath)
		if err != nil {
			return err
		}
		cfg = loaded
	}

	s, err := store.Open(store.BackendBolt, dbPath)
	if err != nil {
		return err
	}
	defer s.Close()

	metrics := monitoring.New()
	sched := elections.NewInProcessScheduler()
	p := confheight.NewProcessor(s, sched, metrics, cfg)

	p.OnCemented(func(account ledger.Account, hash ledger.Hash, height uint64) {
		logx.Info("CONFHEIGHT", fmt.Sprintf("cemented: account=%s hash=%s height=%d", account, hash, height))
	})

	mux := http.NewServeMux()
	monitoring.RegisterHandler(mux)
	go func() {
		if err := http.ListenAndServe(metricsAddr, mux); err != nil {
			logx.Error("METRICS", fmt.Sprintf("metrics server stopped: %v", err))
		}
	}()

	p.Start()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logx.Info("CONFHEIGHT", "shutting down")
	p.Stop()
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		logx.Error("CMD", fmt.Sprintf("command execution failed: %v", err))
		os.Exit(1)
	}
}
