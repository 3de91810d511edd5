// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "askd",
		Usage: "Asynchronous question answering over streaming LLM engines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
				EnvVars: []string{"LOG_LEVEL"},
			},
			&cli.StringFlag{
				Name:    "log-file",
				Usage:   "Also append logs to this file",
				EnvVars: []string{"LOG_FILE"},
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Load environment variables from this file before reading flags",
				Value: ".env",
			},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			serveCmd(),
			askCmd(),
			statsCmd(),
		},
	}
}

// setup loads the env file and installs the default logger.
func setup(c *cli.Context) error {
	if path := c.String("env-file"); path != "" {
		if err := godotenv.Load(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return setupLogger(c)
}

func setupLogger(c *cli.Context) error {
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		return err
	}

	var out io.Writer = os.Stderr
	path := c.String("log-file")
	if path != "" {
		f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("failed to open log file: %w", err)
		}
		if c.App.Metadata == nil {
			c.App.Metadata = make(map[string]interface{})
		}
		c.App.Metadata[logFileKey] = f
		out = io.MultiWriter(os.Stderr, f)
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	logger.Debug("logger configured", "level", level, "file", path)

	return nil
}

const logFileKey = "log-file"

// teardown closes the log file opened by setupLogger. Later log lines go
// to stderr only.
func teardown(c *cli.Context) error {
	f, ok := c.App.Metadata[logFileKey].(*os.File)
	if !ok {
		return nil
	}
	delete(c.App.Metadata, logFileKey)
	level, err := parseLevel(c.String("log-level"))
	if err != nil {
		level = slog.LevelInfo
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	return f.Close()
}

func parseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return 0, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", strings.ToLower(s))
	}
}
