package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/obralens/obralens/cmd"
	"github.com/obralens/obralens/internal/conf"
	"github.com/obralens/obralens/internal/logging"
)

func main() {
	settings, err := conf.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	level := logging.ParseLevel(settings.Main.Log.Level)
	logging.Init(level)

	if settings.Main.Log.Enabled {
		fileLogger, closeLog, err := logging.NewFileLogger(
			settings.Main.Log.Path, settings.Main.Name, level,
			logging.FileRotation{
				MaxSizeMB:  settings.Main.Log.MaxSizeMB,
				MaxBackups: settings.Main.Log.MaxBackups,
				MaxAgeDays: settings.Main.Log.MaxAgeDays,
			})
		if err != nil {
			fmt.Fprintf(os.Stderr, "log file error: %v\n", err)
			os.Exit(1)
		}
		defer func() { _ = closeLog() }()
		slog.SetDefault(fileLogger)
	}

	if err := cmd.RootCommand(settings).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
