package main

import (
	"github.com/spf13/cobra"

	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/dispatch"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/server"
	"github.com/mohamedelhariry00/AI-Powered-Job-Recommendation-System/internal/server/ratelimit"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server exposing recommendation, search, aggregation, ingestion and event endpoints.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides server.port)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Server.Port
	if servePort > 0 {
		port = servePort
	}
	rl := a.cfg.Server.RateLimit
	srv := server.New(server.Config{
		Port:         port,
		ReadTimeout:  a.cfg.Server.ReadTimeout,
		WriteTimeout: a.cfg.Server.WriteTimeout,
		RateLimit:    ratelimit.FromSettings(rl.Enabled, rl.Limit, rl.Window, rl.Burst, rl.Allowlist, rl.Denylist),
		Logger:       a.log,
	}, dispatch.New(a.svc))
	return srv.Start()
}
