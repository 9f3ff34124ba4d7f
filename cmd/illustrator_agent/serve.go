package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/course-illustrator/internal/server"
)

var (
	serveConfigPath string
	servePort       int
	serveVerbose    bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the REST API server",
	Long:  `Start an HTTP server that exposes REST endpoints for image resolution, sessions, and administrative ban/purge operations.`,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveConfigPath, "config", "", "Path to config.json file (values can be overridden by other flags)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (default 8080, or the config file value)")
	serveCmd.Flags().BoolVarP(&serveVerbose, "verbose", "v", false, "Print detailed debug information")
	rootCmd.AddCommand(serveCmd)
}

func runServe(_ *cobra.Command, _ []string) error {
	cfg, err := loadMergedConfig(serveConfigPath)
	if err != nil {
		return err
	}
	if servePort != 0 {
		cfg.Port = servePort
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if serveVerbose {
		cfg.Verbose = true
	}

	components, err := buildStack(context.Background(), cfg)
	if err != nil {
		return fmt.Errorf("failed to assemble components: %w", err)
	}

	srv := server.New(server.Config{
		Port:      cfg.Port,
		Resolver:  components.resolver,
		Preloader: components.preloader,
		Sessions:  components.sessions,
		Bans:      components.bans,
		DB:        components.database,
		Verbose:   cfg.Verbose,
	})

	return srv.Start()
}
