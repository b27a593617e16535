package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/logging"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"github.com/kartoza/laptop-pricer/internal/server"
	webview "github.com/webview/webview_go"
	"go.uber.org/zap"
)

var version = "dev"

func main() {
	// Parse command-line flags
	port := flag.Int("port", 0, "HTTP server port (default 8080)")
	configPath := flag.String("config", "", "YAML configuration file")
	modelPath := flag.String("model", "", "Model artifact (linear or XGBoost JSON)")
	registryPath := flag.String("registry", "", "sqlite model registry")
	modelName := flag.String("model-name", "", "Model name in the registry")
	schemaPath := flag.String("schema", "", "Feature schema YAML (defaults to the bundled schema)")
	headless := flag.Bool("headless", false, "Run in headless mode (no GUI window)")
	showVersion := flag.Bool("version", false, "Show version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Printf("Laptop Pricer v%s\n", version)
		os.Exit(0)
	}

	// Resolve configuration:
	// 1. Explicit flags take priority
	// 2. Then the config file
	// 3. Then a saved model pack, when no model is configured
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	cfg.Version = version
	if *port != 0 {
		cfg.Port = *port
	}
	if *modelPath != "" {
		cfg.Model = config.ModelConfig{Path: *modelPath}
	}
	if *registryPath != "" {
		cfg.Model.Registry = *registryPath
	}
	if *modelName != "" {
		cfg.Model.Name = *modelName
	}
	if *schemaPath != "" {
		cfg.SchemaPath = *schemaPath
	}

	logger, err := logging.New(cfg.Log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	if cfg.Model.Path == "" && !cfg.Model.FromRegistry() {
		settings, err := config.LoadSettings()
		if err != nil {
			logger.Warn("could not load settings", zap.Error(err))
		} else if settings.ModelPackPath != "" {
			if _, err := os.Stat(settings.ModelPackPath); err == nil {
				cfg = cfg.WithModelPack(settings.ModelPackPath)
				logger.Info("using model pack", zap.String("path", settings.ModelPackPath))
			} else {
				logger.Warn("saved model pack path no longer exists", zap.String("path", settings.ModelPackPath))
			}
		}
	}

	// Find an available port (try up to 10 ports starting from the requested one)
	availablePort, err := findAvailablePort(cfg.Port, 10)
	if err != nil {
		logger.Fatal("failed to find available port", zap.Error(err))
	}
	if availablePort != cfg.Port {
		logger.Info("port in use, using another", zap.Int("requested", cfg.Port), zap.Int("port", availablePort))
	}
	cfg.Port = availablePort

	svc, err := predict.Build(cfg, logger)
	if err != nil {
		logger.Fatal("failed to load model", zap.Error(err))
	}

	logger.Info("starting", zap.String("version", version), zap.Int("port", cfg.Port))

	// Create and start the server
	srv, err := server.New(cfg, svc, logger)
	if err != nil {
		logger.Fatal("failed to create server", zap.Error(err))
	}

	// Graceful shutdown on SIGINT/SIGTERM
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// Start server in background
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for server to be ready
	serverURL := fmt.Sprintf("http://localhost:%d", cfg.Port)
	waitForServer(logger, serverURL, 10*time.Second)

	if *headless {
		// Headless mode: wait for signal or error
		select {
		case err := <-errCh:
			if err != nil {
				logger.Fatal("server error", zap.Error(err))
			}
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			if err := srv.Stop(); err != nil {
				logger.Error("error during shutdown", zap.Error(err))
			}
		}
		return
	}

	// GUI mode: open embedded WebView window
	logger.Info("opening application window")
	w := webview.New(false)
	defer w.Destroy()

	w.SetTitle("Laptop Price Predictor")
	w.SetSize(1100, 760, webview.HintNone)
	w.Navigate(serverURL)

	// When the webview window closes, shut down the server
	go func() {
		select {
		case err := <-errCh:
			if err != nil {
				logger.Error("server error", zap.Error(err))
			}
		case sig := <-stop:
			logger.Info("shutting down", zap.String("signal", sig.String()))
			w.Terminate()
		}
	}()

	// Run blocks until the window is closed
	w.Run()

	logger.Info("window closed, shutting down server")
	if err := srv.Stop(); err != nil {
		logger.Error("error during shutdown", zap.Error(err))
	}
}

// waitForServer polls until the server is accepting connections
func waitForServer(logger *zap.Logger, url string, timeout time.Duration) {
	addr := url[len("http://"):]
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		conn, err := net.DialTimeout("tcp", addr, 500*time.Millisecond)
		if err == nil {
			conn.Close()
			return
		}
		time.Sleep(100 * time.Millisecond)
	}
	logger.Warn("server may not be ready", zap.String("url", url))
}

// findAvailablePort finds an available port, starting from the given port.
// If the port is in use, it tries subsequent ports up to maxAttempts times.
func findAvailablePort(startPort int, maxAttempts int) (int, error) {
	for i := 0; i < maxAttempts; i++ {
		port := startPort + i
		addr := fmt.Sprintf(":%d", port)
		listener, err := net.Listen("tcp", addr)
		if err == nil {
			listener.Close()
			return port, nil
		}
	}
	return 0, fmt.Errorf("no available port found after %d attempts starting from %d", maxAttempts, startPort)
}
