package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

func main() {
	readOnly := flag.Bool("read-only", false, "reject mutating operations and restrict execute_sql to read statements")
	flag.Parse()

	applyEnvOverrides()

	logger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sessions := NewSessionManager(logger)
	defer sessions.Logout()

	gateway := NewGateway(sessions, logger, *readOnly)
	dispatcher := NewDispatcher(gateway)
	srv := newMCPServer(dispatcher, gateway, logger)

	logger.Info("server started", "name", ServerName, "version", ServerVersion, "read_only", *readOnly)

	if err := srv.Run(ctx, &mcp.StdioTransport{}); err != nil {
		if errors.Is(err, context.Canceled) {
			logger.Info("server shutdown")
			return
		}
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

// applyEnvOverrides adjusts runtime limits from the environment.
func applyEnvOverrides() {
	if v := os.Getenv("MCP_QUERY_TIMEOUT"); v != "" {
		if seconds, err := strconv.Atoi(v); err == nil && seconds > 0 {
			QueryTimeout = time.Duration(seconds) * time.Second
		}
	}
	if v := os.Getenv("MCP_MAX_ROWS"); v != "" {
		if rows, err := strconv.Atoi(v); err == nil && rows > 0 {
			MaxResultRows = rows
		}
	}
}
