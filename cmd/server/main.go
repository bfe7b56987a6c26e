//go:build !js && !wasm

package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/himanishpuri/TapAlign/internal/config"
	"github.com/himanishpuri/TapAlign/pkg/logger"
	"github.com/himanishpuri/TapAlign/pkg/tapalign"
)

var (
	cfg            *config.Config
	port           int
	allowedOrigins string
)

func init() {
	if err := config.LoadEnv(); err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	cfg = config.Register(flag.CommandLine)
	flag.IntVar(&port, "port", 8080, "HTTP server port")
	flag.StringVar(&allowedOrigins, "origins", "*", "Comma-separated list of allowed CORS origins (use * for all)")
}

// parseOrigins splits the -origins flag
func parseOrigins(s string) []string {
	if strings.TrimSpace(s) == "*" {
		return []string{"*"}
	}
	var origins []string
	for _, o := range strings.Split(s, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

func main() {
	flag.Parse()

	if err := cfg.ApplyLogLevel(); err != nil {
		logger.Fatalf("Invalid configuration: %v", err)
	}
	log := logger.GetLogger().WithPrefix("[server]")

	schema, err := cfg.Schema()
	if err != nil {
		log.Fatalf("Invalid schema: %v", err)
	}
	opts, err := cfg.Options()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	service, err := tapalign.NewService(append(opts, tapalign.WithLogger(log))...)
	if err != nil {
		log.Fatalf("Failed to create service: %v", err)
	}
	defer service.Close()

	server := NewServer(service, &ServerConfig{
		Port:           port,
		DBPath:         cfg.DBPath,
		TempDir:        cfg.TempDir,
		Workers:        cfg.Workers,
		Schema:         schema,
		AllowedOrigins: parseOrigins(allowedOrigins),
	}, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		log.Errorf("Server failed: %v", err)
		service.Close()
		os.Exit(1)
	}
}
