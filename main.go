package main

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/michaeljclark/glxsync/app"
	"github.com/michaeljclark/glxsync/config"
	"github.com/michaeljclark/glxsync/logging"
)

// exitUsage is the exit code for usage errors and fatal setup failures.
const exitUsage = 9

func usage(name string, rate float64) {
	fmt.Fprintf(os.Stderr, "\nusage: %s [options]\n\n"+
		"-h, --help              print this help message\n"+
		"-d, --debug             enable debug messages\n"+
		"-t, --trace             enable trace messages\n"+
		"-n, --no-sync           disable frame synchronization\n"+
		"-f, --frame-rate <fps>  target frame rate (default %.2f)\n\n",
		name, rate)
	os.Exit(exitUsage)
}

func matchOption(arg, opt, longopt string) bool {
	return arg == opt || arg == longopt
}

func parseArgs(cfg *config.Config, name string, args []string) {
	help := false
	for i := 0; i < len(args); i++ {
		switch {
		case matchOption(args[i], "-h", "--help"):
			help = true
		case matchOption(args[i], "-t", "--trace"):
			cfg.Trace = true
			cfg.Debug = true
		case matchOption(args[i], "-d", "--debug"):
			cfg.Debug = true
		case matchOption(args[i], "-n", "--no-sync"):
			cfg.NoSync = true
		case matchOption(args[i], "-f", "--frame-rate") && i+1 < len(args):
			rate, err := strconv.ParseFloat(args[i+1], 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid frame rate: %s\n", args[i+1])
				help = true
			}
			cfg.FrameRate = rate
			i++
		default:
			fmt.Fprintf(os.Stderr, "unknown option: %s\n", args[i])
			help = true
		}
	}
	if help {
		usage(name, config.DefaultFrameRate)
	}
}

func main() {
	// optional .env for the GLXSYNC_* overrides
	_ = godotenv.Load()

	name := filepath.Base(os.Args[0])

	cfg := config.DefaultConfig()
	if err := cfg.FromEnv(); err != nil {
		fmt.Fprintf(os.Stderr, "environment: %v\n", err)
		os.Exit(exitUsage)
	}
	parseArgs(cfg, name, os.Args[1:])
	_ = cfg.Validate()
	if cfg.Title == "" {
		cfg.Title = name
	}

	level := slog.Leveler(slog.LevelInfo)
	switch {
	case cfg.Trace:
		level = logging.LevelTrace
	case cfg.Debug:
		level = slog.LevelDebug
	}
	logger := logging.New(level)

	a, err := app.New(cfg, logger)
	if err != nil {
		logger.Error("setup failed", "error", err)
		os.Exit(exitUsage)
	}
	defer a.Close()

	if err := a.Run(); err != nil {
		logger.Error("render loop failed", "error", err)
		os.Exit(exitUsage)
	}
}
