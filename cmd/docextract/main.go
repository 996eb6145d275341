// Copyright 2026 Phillip Cloud
// Licensed under the Apache License, Version 2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"

	"github.com/docextract/docextract/internal/config"
	"github.com/docextract/docextract/internal/logging"
	"github.com/docextract/docextract/internal/orchestrator"
	"github.com/docextract/docextract/internal/tools"
)

func main() {
	runDir, outputDir, runLogPath, err := parseArgs(os.Args[1:])
	if err != nil {
		fail("parse args", err)
	}

	// The positional CLI arguments are the authoritative run-scoped paths;
	// setting them as env vars lets config.Load's normal override layer
	// apply them without duplicating its validation logic here.
	os.Setenv("INPUT_DIR", runDir)
	os.Setenv("OUTPUT_DIR", outputDir)
	os.Setenv("RUN_LOG", runLogPath)

	cfg, err := config.Load()
	if err != nil {
		fail("load config", err)
	}

	log := logging.New(logging.ParseLevel(cfg.Logging.Level), runLogPath)
	defer log.Close()

	for _, w := range cfg.Warnings {
		log.Warn("%s", w)
	}
	log.Info("run starting: input=%s output=%s combined-chunk budget=%s", runDir, outputDir, humanize.Bytes(uint64(cfg.Output.MaxCombinedBytes)))

	adapters := orchestrator.Adapters{
		TextExtractor:     tools.ExecTextExtractor{},
		Rasterizer:        tools.ExecRasterizer{},
		OcrEngine:         tools.ExecOcrEngine{},
		LegacyConverter:   tools.ExecLegacyDocConverter{},
		PortfolioDetacher: tools.ExecPortfolioDetacher{},
	}

	ctx := context.Background()
	if err := orchestrator.Run(ctx, log, cfg, adapters, runDir, outputDir, cfg.Paths.WorkDir); err != nil {
		fail("run", err)
	}
}

func parseArgs(args []string) (runDir, outputDir, runLogPath string, err error) {
	if len(args) == 1 && (args[0] == "-h" || args[0] == "--help") {
		printHelp()
		os.Exit(0)
	}
	if len(args) != 3 {
		return "", "", "", fmt.Errorf("expected exactly 3 arguments: <run_dir> <output_dir> <run_log_path>, got %d", len(args))
	}
	return args[0], args[1], args[2], nil
}

func printHelp() {
	fmt.Fprintln(os.Stdout, "docextract - tiered document text extraction pipeline")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Usage:")
	fmt.Fprintln(os.Stdout, "  docextract <run_dir> <output_dir> <run_log_path>")
	fmt.Fprintln(os.Stdout, "")
	fmt.Fprintln(os.Stdout, "Configuration is read from the XDG config file and environment overrides;")
	fmt.Fprintln(os.Stdout, "see the [cascade]/[output]/[paths]/[logging] sections documented there.")
}

func fail(context string, err error) {
	fmt.Fprintf(os.Stderr, "docextract: %s: %v\n", context, err)
	os.Exit(1)
}
