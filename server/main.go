package server

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"confsync/pkg/config"
	"confsync/pkg/logger"
	"confsync/pkg/storage"
)

func Main() {
	// Check for help flag early before instance check
	if len(os.Args) > 1 && (os.Args[len(os.Args)-1] == "-h" || os.Args[len(os.Args)-1] == "--help") {
		fs := flag.NewFlagSet("confsyncd", flag.ContinueOnError)
		fs.String("addr", ":8080", "Server address")
		fs.String("config", "", "Config file path (optional)")
		fs.String("cert", "", "TLS certificate file (leave empty for HTTP behind nginx)")
		fs.String("key", "", "TLS key file (leave empty for HTTP behind nginx)")
		fs.Bool("tls", false, "Enable TLS (use false when behind nginx)")
		fs.String("admin-token", "", "Bearer token for the admin API (empty disables auth)")
		fs.String("db-type", "", "Database type: sqlite, mysql or postgres")
		fs.String("db-dsn", "", "Database connection string")
		fs.String("log-level", "info", "Log level: debug, info, warn, error")
		fs.String("log-format", "text", "Log format: text or json")
		printHelp(fs)
		return
	}

	// Handle subcommands: start|stop|restart|status (default: start)
	command := "start"
	if len(os.Args) > 1 {
		first := os.Args[1]
		if first == "start" || first == "stop" || first == "restart" || first == "status" {
			command = first
			// Remove subcommand from args before flag parsing
			os.Args = append([]string{os.Args[0]}, os.Args[2:]...)
		}
	}

	instanceMgr := NewInstanceManager()

	if command != "start" {
		switch command {
		case "status":
			if running, pid := instanceMgr.IsRunning(); running {
				fmt.Printf("Server running (PID %d)\n", pid)
			} else {
				fmt.Println("Server not running")
			}
			return
		case "stop":
			if err := instanceMgr.Kill(); err != nil {
				fmt.Printf("Stop failed: %v\n", err)
			} else {
				fmt.Println("Server stopped")
			}
			return
		case "restart":
			_ = instanceMgr.Kill() // Ignore error; may not be running
			fmt.Println("Restarting server...")
		}
	}

	// Enforce single instance before starting
	if command == "start" {
		if running, pid := instanceMgr.IsRunning(); running {
			fmt.Printf("Server already running (PID %d)\n", pid)
			return
		}
	}

	addr := flag.String("addr", ":8080", "Server address")
	configPath := flag.String("config", "", "Config file path (optional)")
	certFile := flag.String("cert", "", "TLS certificate file (leave empty for HTTP behind nginx)")
	keyFile := flag.String("key", "", "TLS key file (leave empty for HTTP behind nginx)")
	useTLS := flag.Bool("tls", false, "Enable TLS (use false when behind nginx)")
	adminToken := flag.String("admin-token", "", "Bearer token for the admin API (empty disables auth)")
	dbType := flag.String("db-type", "", "Database type: sqlite, mysql or postgres")
	dbDSN := flag.String("db-dsn", "", "Database connection string")
	logLevel := flag.String("log-level", "info", "Log level: debug, info, warn, error")
	logFormat := flag.String("log-format", "text", "Log format: text or json")
	flag.Parse()

	logger.Init(logger.LogLevel(*logLevel), *logFormat)
	log := logger.Get()

	log.Info("server starting", "version", "1.0.0")

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.ErrorWithErr("failed to load configuration", err)
		return
	}

	// Override config with command-line flags if provided
	if *addr != ":8080" {
		cfg.Address = *addr
	}
	if *certFile != "" {
		cfg.TLS.CertFile = *certFile
	}
	if *keyFile != "" {
		cfg.TLS.KeyFile = *keyFile
	}
	if *useTLS {
		cfg.TLS.Enabled = true
	}
	if *adminToken != "" {
		cfg.Admin.Token = *adminToken
	}
	if *dbType != "" {
		cfg.Database.Type = *dbType
	}
	if *dbDSN != "" {
		cfg.Database.DSN = *dbDSN
	}

	if err := cfg.Validate(); err != nil {
		log.ErrorWithErr("invalid configuration", err)
		return
	}

	log.Info("configuration loaded", "address", cfg.Address, "database", cfg.Database.Type, "tls", cfg.TLS.Enabled)

	store, err := storage.NewStore(cfg.Database)
	if err != nil {
		log.ErrorWithErr("failed to initialize storage", err)
		return
	}
	defer store.Close()

	srv := NewServer(cfg, store, log)

	// Write PID file for instance management
	if err := instanceMgr.WritePID(); err != nil {
		log.Warn("failed to write PID file", "error", err)
	}
	defer instanceMgr.RemovePID()

	if cfg.Admin.Token == "" {
		log.Warn("admin API authentication disabled", "hint", "set ADMIN_TOKEN or -admin-token")
	}

	// Setup signal handling for graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM, syscall.SIGQUIT)

	errorChan := make(chan error, 1)
	go func() {
		if err := srv.Start(); err != nil {
			errorChan <- err
		}
	}()

	log.Info("server is running", "press", "Ctrl+C to stop")

	select {
	case sig := <-sigChan:
		log.Info("received signal", "signal", sig.String())
		log.Info("shutting down server gracefully")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.ErrorWithErr("error during shutdown", err)
		}
		log.Info("server stopped")
		return

	case err := <-errorChan:
		if err != nil {
			log.ErrorWithErr("server encountered fatal error", err)
		}
		log.Info("server stopped")
		return
	}
}

// printHelp displays help information for the server
func printHelp(fs *flag.FlagSet) {
	fmt.Print(`Configuration Sync Server - Usage:

Commands:
  start              Start the server (default if no command given)
  stop               Stop the running server
  restart            Restart the server
  status             Show server status

Flags:
`)
	fs.PrintDefaults()
	fmt.Print(`
Examples:
  ./bin/confsyncd                                 # Start on default port 8080
  ./bin/confsyncd -addr 127.0.0.1:8081            # Start on custom port
  ./bin/confsyncd -db-type postgres -db-dsn "..." # Use a postgres store
  ./bin/confsyncd stop                            # Stop the server
  ./bin/confsyncd status                          # Check if server is running
`)
}
