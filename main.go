package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/google/pjflate/config"
	"github.com/google/pjflate/decompressor"
)

func main() {
	cfg, err := config.NewConfig()
	if err != nil {
		fmt.Println("ERROR: ", err)
		os.Exit(1)
	}

	if cfg.CLI.Debug {
		logrus.Info("debug mode enabled")
		logrus.SetLevel(logrus.DebugLevel)
	}

	// Progress and summary lines go to stderr so stdout stays usable as the
	// decompressed output stream.
	logrus.SetOutput(os.Stderr)

	if !cfg.CLI.Quiet {
		displayConfig(cfg)
	}

	shutdownCtx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	d, err := decompressor.New(cfg)
	if err != nil {
		logrus.Errorf("unable to create decompressor: %s", err)
		os.Exit(1)
	}

	if err := d.Run(shutdownCtx); err != nil {
		logrus.Errorf("error during decompressor run: %s", err)
		os.Exit(1)
	}
}

func displayConfig(cfg *config.Config) {
	if cfg == nil {
		return
	}

	logrus.Info("pjflate settings:")
	logrus.Info("  [CLI]")
	logrus.Infof("  version: %s", config.VERSION)
	logrus.Infof("  debug: %v", cfg.CLI.Debug)
	logrus.Infof("  config file: %s", cfg.CLI.ConfigFile)
	logrus.Infof("  input: %s", cfg.CLI.Input)
	logrus.Infof("  output: %s", cfg.CLI.Output)
	logrus.Infof("  overwrite: %v", cfg.CLI.Overwrite)
	logrus.Infof("  quiet: %v", cfg.CLI.Quiet)
	logrus.Info("")
	logrus.Info("  [CONFIG]")
	logrus.Infof("  io.chunk_size: %d", cfg.TOML.IO.ChunkSize)
	logrus.Infof("  report.interval: %s", cfg.TOML.Interval())
}
