package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/jugalmahida/prodevscore/internal/config"
	"github.com/jugalmahida/prodevscore/internal/server"
	"github.com/jugalmahida/prodevscore/internal/storage"
	"github.com/jugalmahida/prodevscore/internal/version"
)

func main() {
	// Handle version command before anything else (for CI testing)
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("prodevscored %s\n", version.Version)
		return
	}

	var (
		dbPath     = flag.String("db", storage.DefaultDBPath(), "path to sqlite database")
		configPath = flag.String("config", config.GlobalConfigPath(), "path to config file")
		addr       = flag.String("addr", "", "listen address (overrides config)")
		backend    = flag.String("backend", "", "backend API base URL (overrides config)")
		staticDir  = flag.String("static", "", "front-end build directory (overrides config)")
	)
	flag.Parse()

	log.SetFlags(log.Ldate | log.Ltime | log.Lshortfile)
	log.Println("Starting prodevscored...")

	// Load configuration from specified path
	cfg, err := config.LoadFrom(*configPath)
	if err != nil {
		log.Printf("Warning: failed to load config from %s: %v", *configPath, err)
		cfg = config.DefaultConfig()
	}

	// Apply flag overrides
	if *addr != "" {
		cfg.ListenAddr = *addr
	}
	if *backend != "" {
		cfg.BackendURL = *backend
	}
	if *staticDir != "" {
		cfg.StaticDir = *staticDir
	}

	// Open review history database
	db, err := storage.Open(*dbPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	log.Printf("Database: %s", *dbPath)
	log.Printf("Backend: %s (events: %s)", cfg.BackendURL, cfg.WebsocketURL())

	srv := server.NewServer(db, cfg)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Printf("Received signal %v, shutting down...", sig)
		if err := srv.Stop(); err != nil {
			log.Printf("Shutdown error: %v", err)
		}
		os.Exit(0)
	}()

	// Start server (blocks until shutdown)
	if err := srv.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
