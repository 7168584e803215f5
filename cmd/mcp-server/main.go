// Command mcp-server runs the standalone labsense MCP server over stdio.
// It needs no external databases: the catalog comes from the builtin data
// or an optional SQLite file, and feedback persists to SQLite under the
// data directory.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/labsense-server/internal/config"
	"github.com/labsense-server/internal/mcp"
	"github.com/labsense-server/internal/setup"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "setup" {
		if err := setup.NewCLI().Run(os.Args[2:]); err != nil {
			log.Fatalf("Setup failed: %v", err)
		}
		return
	}

	cfg := config.LoadLiteConfig()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigChan
		cancel()
	}()

	server, err := mcp.NewServer(ctx, cfg)
	if err != nil {
		log.Fatalf("Failed to initialize MCP server: %v", err)
	}
	defer server.Close()

	if err := server.Run(ctx); err != nil {
		log.Fatalf("MCP server failed: %v", err)
	}
}
