package cli

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mocksmith/mocksmith/pkg/config"
	"github.com/mocksmith/mocksmith/pkg/engine"
	"github.com/mocksmith/mocksmith/pkg/logging"
)

// serveFlags holds the flag values bound to the serve command.
type serveFlags struct {
	configFile string
	port       int
	host       string
	handlerDir string
	specFile   string
	watch      bool
	logLevel   string
	logFormat  string
}

var serveFlagVals serveFlags

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the mock server (foreground)",
	Long: `Start the mock server. Handler files under the handler directory are
compiled and registered at startup; while the server runs, file changes
are picked up and swapped in without a restart.`,
	Example: `  # Serve ./handlers on the default port
  mocksmith serve

  # Serve a different tree against a contract
  mocksmith serve --handler-dir ./api --spec openapi.yaml --port 3000

  # Load settings from a file; flags still win
  mocksmith serve --config mocksmith.yaml --log-level debug`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := resolveConfig(cmd, &serveFlagVals)
		if err != nil {
			return err
		}
		return runServe(cfg)
	},
}

func init() {
	f := &serveFlagVals
	serveCmd.Flags().StringVarP(&f.configFile, "config", "c", "", "Path to server configuration file")
	serveCmd.Flags().IntVarP(&f.port, "port", "p", 0, "HTTP listen port")
	serveCmd.Flags().StringVar(&f.host, "host", "", "Bind address (default all interfaces)")
	serveCmd.Flags().StringVarP(&f.handlerDir, "handler-dir", "d", "", "Handler source tree root")
	serveCmd.Flags().StringVarP(&f.specFile, "spec", "s", "", "OpenAPI contract file")
	serveCmd.Flags().BoolVar(&f.watch, "watch", true, "Hot-reload handler files on change")
	serveCmd.Flags().StringVar(&f.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	serveCmd.Flags().StringVar(&f.logFormat, "log-format", "", "Log format: text or json")
}

// resolveConfig layers defaults, then the config file, then any flag
// the user set explicitly.
func resolveConfig(cmd *cobra.Command, f *serveFlags) (*config.ServerConfiguration, error) {
	cfg := config.DefaultServerConfiguration()
	if f.configFile != "" {
		loaded, err := config.LoadFile(f.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = f.port
	}
	if flags.Changed("host") {
		cfg.Host = f.host
	}
	if flags.Changed("handler-dir") {
		cfg.HandlerDir = f.handlerDir
	}
	if flags.Changed("spec") {
		cfg.SpecFile = f.specFile
	}
	if flags.Changed("watch") {
		cfg.Watch = f.watch
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = f.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func runServe(cfg *config.ServerConfiguration) error {
	log := logging.New(logging.Config{
		Level:  logging.ParseLevel(cfg.LogLevel),
		Format: logging.ParseFormat(cfg.LogFormat),
	})

	srv, err := engine.NewServer(cfg, engine.WithLogger(log))
	if err != nil {
		return err
	}
	if err := srv.Start(); err != nil {
		return err
	}
	fmt.Printf("mocksmith listening on port %d (handlers: %s)\n", srv.Port(), cfg.HandlerDir)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	fmt.Println("\nShutting down...")

	return srv.Stop()
}
