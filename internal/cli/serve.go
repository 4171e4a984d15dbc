package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/expstack/expstack/internal/engine"
	"github.com/expstack/expstack/internal/server"
)

var port int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Start the expstack HTTP server.

The server provides:
  - Assignment endpoint for resolving variants
  - Beacon endpoint for tracking events
  - Token-protected results and export endpoints
  - Health check endpoint

Example:
  expstack serve --port 8080`,
	RunE: runServe,
}

func init() {
	defaultPort := 8080
	if p := os.Getenv("EXPSTACK_PORT"); p != "" {
		if parsed, err := strconv.Atoi(p); err == nil {
			defaultPort = parsed
		}
	}

	serveCmd.Flags().IntVarP(&port, "port", "p", defaultPort, "port to listen on")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withEngine(func(eng *engine.Engine) error {
		// Token file path (alongside database)
		tokenFile := filepath.Join(filepath.Dir(dbPath), ".expstack-token")

		srv := server.New(eng, port, tokenFile)
		if err := srv.Start(); err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	})
}
