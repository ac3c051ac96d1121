package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"

	ldf "github.com/fribdaq/ldfcore/pkg"
)

func newLogger() SlogLogger {
	opts := &slog.HandlerOptions{Level: slog.LevelDebug}
	handlerStdOut := NewHandler(os.Stdout, opts)
	handlerStdErr := slog.NewJSONHandler(os.Stderr, opts)
	return SlogLogger{
		InfoLog:  slog.New(handlerStdOut),
		ErrorLog: slog.New(handlerStdErr),
	}
}

func main() {
	configFilename := flag.String("config", "", "Configuration file path")
	flag.Parse()

	logger := newLogger()

	configuration, err := ldf.LoadConfiguration(*configFilename)
	if err != nil {
		logger.Error(fmt.Sprintf("error reading configuration file: %v", err), "main")
		os.Exit(1)
	}
	if configuration.Verbosity > 0 {
		logger.Info(fmt.Sprintf("reading configuration file: %s", *configFilename), "main")
	}

	cfg, err := loadModuleConfig(configuration, logger)
	if err != nil {
		logger.Error(fmt.Sprintf("error loading module configuration: %v", err), "main")
		os.Exit(1)
	}

	if len(configuration.InputFiles) == 0 {
		logger.Error("no input_files configured", "main")
		os.Exit(1)
	}

	seq := ldf.NewSequencer(configuration.InputFiles, cfg, logger)
	defer seq.Close()

	encoder := json.NewEncoder(os.Stdout)

	spillsBuffered := 0
	for {
		state, err := seq.Next()
		if err != nil {
			logger.Error(fmt.Sprintf("error parsing: %v", err), "main")
			os.Exit(1)
		}
		if state == ldf.SeqReceiving {
			spillsBuffered++
		}

		if spillsBuffered >= configuration.NumConcurrentSpills || state == ldf.SeqComplete {
			for _, hit := range seq.Flush() {
				if err := encoder.Encode(hit); err != nil {
					logger.Error(fmt.Sprintf("error writing hit: %v", err), "main")
					os.Exit(1)
				}
			}
			spillsBuffered = 0
		}

		if state == ldf.SeqComplete {
			break
		}
	}

	stats := seq.Stats()
	logger.Info(fmt.Sprintf("run complete: %d spills, %d good chunks, %d missing chunks",
		stats.SpillsParsed, stats.GoodChunks, stats.MissingChunks), "main")
}

func loadModuleConfig(configuration ldf.Configuration, logger SlogLogger) (ldf.ModuleConfig, error) {
	if configuration.ModuleConfigFile != "" {
		return ldf.LoadModuleConfigFile(configuration.ModuleConfigFile)
	}
	if configuration.DBHost == "" {
		return nil, nil
	}
	db, err := ldf.ConnectModuleConfigDB(configuration.DBUser, configuration.DBPass, configuration.DBHost, configuration.DBName)
	if err != nil {
		return nil, fmt.Errorf("connecting to module configuration database: %w", err)
	}
	defer db.Close()

	logger.Info("loading module configuration from database", "main")
	return ldf.LoadModuleConfigFromDB(db, 0)
}
