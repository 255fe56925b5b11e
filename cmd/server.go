package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/zotseek/zotseek/internal/server"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the HTTP server",
	Long: `Starts an HTTP server exposing search, status, and sync endpoints,
plus a WebSocket stream of sync progress.`,
	RunE: runServer,
}

func init() {
	serverCmd.Flags().Int("port", 0, "listen port (overrides config)")
	serverCmd.Flags().Bool("allow-all-origins", false, "allow all CORS origins (dev mode)")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	a, err := openApp()
	if err != nil {
		return err
	}
	defer a.Close()

	port, _ := cmd.Flags().GetInt("port")
	if port == 0 {
		port = a.cfg.Server.Port
	}
	allowAll, _ := cmd.Flags().GetBool("allow-all-origins")

	srv := server.New(server.Config{
		Port:     port,
		AllowAll: allowAll || a.cfg.Server.AllowAll,
	}, a.searcher, a.syncer, a.store, a.fingerprints, a.states)
	a.syncer.SetProgress(srv.ProgressFunc())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}
