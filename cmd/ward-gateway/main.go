// ABOUTME: Entry point for the ward-gateway tool server
// ABOUTME: Spawns backend tool processes and serves the authenticated RPC surface

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/ward-gateway/internal/auth"
	"github.com/2389/ward-gateway/internal/authz"
	"github.com/2389/ward-gateway/internal/config"
	"github.com/2389/ward-gateway/internal/process"
	"github.com/2389/ward-gateway/internal/proxy"
	"github.com/2389/ward-gateway/internal/server"
	"github.com/2389/ward-gateway/internal/store"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
                         _                 _
 __      ____ _ _ __ __| |      __ _  __ _| |_ _____      ____ _ _   _
 \ \ /\ / / _' | '__/ _' |_____/ _' |/ _' | __/ _ \ \ /\ / / _' | | | |
  \ V  V / (_| | | | (_| |_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
   \_/\_/ \__,_|_|  \__,_|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                                |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: WARD_CONFIG env var > XDG_CONFIG_HOME/ward/gateway.yaml > ~/.config/ward/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("WARD_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml" // fallback
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "ward", "gateway.yaml")
}

// getDataPath returns the path to the ward data directory.
// Priority: XDG_DATA_HOME/ward > ~/.local/share/ward
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "ward")
}

func main() {
	if len(os.Args) < 2 {
		fmt.Println("Usage: ward-gateway <command>")
		fmt.Println()
		fmt.Println("Commands:")
		fmt.Println("  serve                 Start the gateway server")
		fmt.Println("  init                  Create a starter config file")
		fmt.Println("  token --sub ID        Mint a JWT for an agent")
		fmt.Println("  health                Check gateway health")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "token":
		err = runToken()
	case "health":
		err = runHealth(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	// Print banner
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	// Version info
	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	// Setup logger
	logger := setupLogger(cfg.Logging)

	// Startup info
	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Config:   %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:     %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Policy:   %s\n", cfg.ControlPlane.URL)
	green.Print("    ▶ ")
	fmt.Printf("Servers:  %d configured\n", len(cfg.Servers))
	fmt.Println()

	logger.Info("starting ward-gateway",
		"config", configPath,
		"http_addr", cfg.Server.HTTPAddr,
		"servers", len(cfg.Servers),
	)

	// Audit store; no database path keeps the audit log in memory only
	var auditStore store.AuditStore
	if cfg.Database.Path != "" {
		sqliteStore, err := store.NewSQLiteStore(cfg.Database.Path, logger)
		if err != nil {
			return fmt.Errorf("opening audit store: %w", err)
		}
		auditStore = sqliteStore
	} else {
		logger.Warn("no database.path configured, audit log is in-memory only")
		auditStore = store.NewMemoryStore()
	}
	defer auditStore.Close()

	// Decision cache
	cache := authz.NewCache(cfg.Cache.MaxEntries)
	defer cache.Close()

	// Control plane adapter
	adapter := authz.NewHTTPAdapter(authz.HTTPAdapterConfig{
		URL:      cfg.ControlPlane.URL,
		Token:    cfg.ControlPlane.Token,
		KernelID: cfg.Kernel.KernelID,
		Timeout:  cfg.ControlPlane.Timeout,
	})

	// Backend process manager
	manager := process.NewManager(process.ManagerConfig{
		Logger:         logger,
		RequestTimeout: cfg.Process.RequestTimeout,
		StopGrace:      cfg.Process.StopGrace,
	})
	defer manager.StopAll()

	for name, backend := range cfg.Servers {
		if err := manager.Spawn(name, backend); err != nil {
			return fmt.Errorf("spawning server %q: %w", name, err)
		}
		logger.Info("backend started",
			"server", name,
			"command", backend.Command,
			"prefix", backend.ToolPrefix,
		)
	}

	// Proxy and HTTP surface
	p := proxy.New(proxy.Config{
		Servers: cfg.Servers,
		Sender:  manager,
		Adapter: adapter,
		Cache:   cache,
		Audit:   auditStore,
		Logger:  logger,
		Version: version,
	})

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))

	srv, err := server.NewServer(server.Config{
		Proxy:    p,
		Verifier: verifier,
		Logger:   logger,
		Version:  version,
	})
	if err != nil {
		return fmt.Errorf("creating server: %w", err)
	}

	httpServer := &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", cfg.Server.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutting down")
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown failed", "error", err)
	}

	return nil
}

// runInit writes a starter config with a random JWT secret.
func runInit() error {
	configPath := getConfigPath()
	dataPath := getDataPath()
	dbPath := filepath.Join(dataPath, "gateway.db")

	green := color.New(color.FgGreen)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("config already exists: %s", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.MkdirAll(dataPath, 0755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	configContent := fmt.Sprintf(`# ward-gateway configuration
# Generated by ward-gateway init

server:
  http_addr: "localhost:8080"

control_plane:
  url: "https://policy.example.com"
  token: "${WARD_CONTROL_PLANE_TOKEN}"
  timeout: "10s"

database:
  path: "%s"

auth:
  jwt_secret: "%s"

servers:
  fs:
    command: "mcp-fs-server"
    tool_prefix: "fs."
  web:
    command: "mcp-web-server"
    args: ["--readonly"]
    tool_prefix: "web."

process:
  request_timeout: "30s"
  stop_grace: "5s"

logging:
  level: "info"
  format: "text"
`, dbPath, jwtSecret)

	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println("  Edit the control_plane and servers sections, then run: ward-gateway serve")
	return nil
}

// runToken mints a JWT signed with the configured secret.
// Supports both "--sub value" and "--sub=value" formats.
func runToken() error {
	var sub, tenant string
	args := os.Args[2:]
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--sub":
			if i+1 >= len(args) {
				return fmt.Errorf("--sub requires a value")
			}
			sub = args[i+1]
			i++
		case strings.HasPrefix(arg, "--sub="):
			sub = strings.TrimPrefix(arg, "--sub=")
		case arg == "--tenant":
			if i+1 >= len(args) {
				return fmt.Errorf("--tenant requires a value")
			}
			tenant = args[i+1]
			i++
		case strings.HasPrefix(arg, "--tenant="):
			tenant = strings.TrimPrefix(arg, "--tenant=")
		case strings.HasPrefix(arg, "-"):
			return fmt.Errorf("unknown flag: %s", arg)
		default:
			return fmt.Errorf("unexpected argument: %s", arg)
		}
	}

	if sub == "" {
		return fmt.Errorf("--sub flag is required")
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	verifier := auth.NewJWTVerifier([]byte(cfg.Auth.JWTSecret))
	token, err := verifier.Generate(auth.Identity{
		Actor:    authz.Actor{Type: authz.ActorAgent, ID: sub},
		TenantID: tenant,
	}, 24*time.Hour)
	if err != nil {
		return fmt.Errorf("generating token: %w", err)
	}

	fmt.Println(token)
	return nil
}

func runHealth(ctx context.Context) error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/healthz", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}

	fmt.Println("healthy")
	return nil
}

func setupLogger(cfg config.LoggingConfig) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = &colorHandler{
			level: level,
		}
	}

	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder

	// Format timestamp
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	// Colorize level
	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	// Print message
	buf.WriteString(r.Message)

	// Print handler-level attrs first (from WithAttrs)
	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}

	// Print record attrs
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	fmt.Print(buf.String())
	return nil
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{
		level:  h.level,
		attrs:  newAttrs,
		groups: h.groups,
	}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{
		level:  h.level,
		attrs:  h.attrs,
		groups: newGroups,
	}
}
