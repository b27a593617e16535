// Command laptop-tui prices a laptop from a terminal form.
package main

import (
	"flag"
	"fmt"
	"os"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/kartoza/laptop-pricer/internal/config"
	"github.com/kartoza/laptop-pricer/internal/logging"
	"github.com/kartoza/laptop-pricer/internal/predict"
	"github.com/kartoza/laptop-pricer/internal/tui"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "YAML configuration file")
	modelPath := flag.String("model", "", "Model artifact (linear or XGBoost JSON)")
	registryPath := flag.String("registry", "", "sqlite model registry")
	modelName := flag.String("model-name", "", "Model name in the registry")
	schemaPath := flag.String("schema", "", "Feature schema YAML (defaults to the bundled schema)")
	logFile := flag.String("log-file", "", "Write logs to this file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
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
	if *logFile != "" {
		cfg.Log.File = *logFile
	}

	// The terminal belongs to the form, so logs only go to a file.
	logger := zap.NewNop()
	if cfg.Log.File != "" {
		cfg.Log.FileOnly = true
		if logger, err = logging.New(cfg.Log); err != nil {
			fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
			os.Exit(1)
		}
	}
	defer logger.Sync()

	svc, err := predict.Build(cfg, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading model: %v\n", err)
		os.Exit(1)
	}

	p := tea.NewProgram(tui.New(svc), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
