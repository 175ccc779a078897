package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/antariksh/spacebot/internal/api"
	"github.com/antariksh/spacebot/internal/bus"
	"github.com/antariksh/spacebot/internal/config"
	"github.com/antariksh/spacebot/internal/gateway"
	"github.com/antariksh/spacebot/internal/session"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local host (foreground)",
	Long: `Start the local host: the informational pages, the /api/chat relay
to the remote assistant, and an MCP server on stdio.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe()
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running host",
	RunE: func(cmd *cobra.Command, args []string) error {
		return stopServe()
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show spacebot status",
	RunE: func(cmd *cobra.Command, args []string) error {
		return showStatus()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(stopCmd)
	rootCmd.AddCommand(statusCmd)
}

func pidFilePath(dataDir string) string {
	return filepath.Join(dataDir, "spacebot.pid")
}

func writePIDFile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())), 0o644)
}

func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(strings.TrimSpace(string(data)))
}

func removePIDFile(path string) {
	os.Remove(path)
}

func runServe() error {
	fmt.Fprintf(os.Stderr, "spacebot version %s\n", version)

	cfg, log, err := loadRuntime()
	if err != nil {
		return err
	}

	// Refuse to start twice. A live health endpoint on our port means
	// another instance owns it.
	pidPath := pidFilePath(cfg.Storage.DataDir)
	healthURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", cfg.Server.Port)
	healthClient := &http.Client{Timeout: 2 * time.Second}
	if resp, err := healthClient.Get(healthURL); err == nil {
		resp.Body.Close()
		if pid, pidErr := readPIDFile(pidPath); pidErr == nil {
			printWarning("spacebot is already running (PID %d)", pid)
			return fmt.Errorf("already running (PID %d)", pid)
		}
		printWarning("spacebot is already running on port %d", cfg.Server.Port)
		return fmt.Errorf("already running on port %d", cfg.Server.Port)
	}
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("writing PID file: %w", err)
	}
	defer removePIDFile(pidPath)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := session.Open(cfg.Storage.DataDir, log)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer func() {
		if err := store.Close(); err != nil {
			log.Warn("closing store", "error", err)
		}
	}()

	b := bus.New(log)
	defer b.Close()

	mgr, err := session.NewManager(cfg.Storage.DataDir, b, log)
	if err != nil {
		return err
	}

	gw := gateway.New(cfg.Gateway.BaseURL)

	// One-time reachability probe. The host still starts when the remote
	// service is down; chat requests will carry the failure detail.
	if _, err := gw.Health(ctx); err != nil {
		log.Warn("assistant service unreachable at startup", "url", cfg.Gateway.BaseURL, "error", err)
	} else {
		log.Info("assistant service reachable", "url", cfg.Gateway.BaseURL)
	}

	handler := api.NewHandler(api.Deps{Gateway: gw, Log: log})
	addr := fmt.Sprintf("127.0.0.1:%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: handler,
	}

	mcpSrv := api.NewMCPServer(api.MCPDeps{
		Sessions: mgr,
		Store:    store,
		Gateway:  gw,
	})
	stdioSrv := server.NewStdioServer(mcpSrv)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		fmt.Fprintf(os.Stderr, "spacebot listening on %s\n", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := stdioSrv.Listen(gctx, os.Stdin, os.Stdout); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("mcp server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		if err := session.WatchIdentity(gctx, mgr, log); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("identity watcher: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		fmt.Fprintln(os.Stderr, "shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func stopServe() error {
	cfg, _, err := loadRuntime()
	if err != nil {
		return err
	}

	pidPath := pidFilePath(cfg.Storage.DataDir)
	pid, err := readPIDFile(pidPath)
	if err != nil {
		printError("spacebot is not running (no PID file)")
		return fmt.Errorf("not running: %w", err)
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		printError("could not find process %d", pid)
		return err
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		printError("could not stop spacebot (PID %d): %v", pid, err)
		removePIDFile(pidPath)
		return err
	}

	printSuccess("Sent stop signal to spacebot (PID %d)", pid)
	return nil
}

func showStatus() error {
	cfg, err := config.Load()
	if err != nil {
		printError("config error: %v", err)
		return nil
	}

	client := &http.Client{Timeout: 2 * time.Second}

	// Local host.
	hostURL := fmt.Sprintf("http://127.0.0.1:%d/api/health", cfg.Server.Port)
	if resp, err := client.Get(hostURL); err != nil {
		printStatus("Host", "stopped")
	} else {
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			printStatus("Host", "running on port %d", cfg.Server.Port)
		} else {
			printStatus("Host", "error (HTTP %d)", resp.StatusCode)
		}
	}

	// Remote assistant service.
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := gateway.New(cfg.Gateway.BaseURL).Health(ctx); err != nil {
		printStatus("Assistant", "unreachable at %s", cfg.Gateway.BaseURL)
	} else {
		printStatus("Assistant", "reachable at %s", cfg.Gateway.BaseURL)
	}

	// Identity.
	quiet := slog.New(slog.NewTextHandler(io.Discard, nil))
	if mgr, mgrErr := session.NewManager(cfg.Storage.DataDir, nil, quiet); mgrErr == nil {
		if id, ok := mgr.Current(); ok {
			printStatus("Identity", "%s", id.Email)
		} else {
			printStatus("Identity", "not logged in")
		}
	}

	printStatus("Data dir", "%s", cfg.Storage.DataDir)
	return nil
}
