package main

import (
	"context"
	"fmt"
	"os"

	flags "github.com/jessevdk/go-flags"

	"github.com/netboot-tools/pxe-supervisor/pkg/config"
	"github.com/netboot-tools/pxe-supervisor/pkg/logging"
	"github.com/netboot-tools/pxe-supervisor/pkg/supervisor"
)

type flagOptions struct {
	LogLevel  string `long:"log-level" description:"log level: debug, info, warn, error (overrides PXE_LOG_LEVEL)"`
	LogFormat string `long:"log-format" description:"log format: console or json (overrides PXE_LOG_FORMAT)"`
}

func main() {
	var opts flagOptions
	parser := flags.NewParser(&opts, flags.HelpFlag)
	_, err := parser.ParseArgs(os.Args[1:])
	if err != nil {
		fmt.Printf("Command line flags parsing failed: %v\n", err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Configuration rejected: %v\n", err)
		os.Exit(1)
	}
	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.LogFormat != "" {
		cfg.LogFormat = opts.LogFormat
	}

	logger, err := logging.NewZapLogger(logging.ZapOptions{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
	})
	if err != nil {
		fmt.Printf("Logger setup failed: %v\n", err)
		os.Exit(1)
	}

	logger.Infof("Starting PXE supervisor...")

	sup, err := supervisor.New(cfg, logger)
	if err != nil {
		logger.Errorf("Failed to create supervisor: %v", err)
		os.Exit(1)
	}

	os.Exit(sup.Run(context.Background()))
}
