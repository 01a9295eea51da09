// Licensed to the Apache Software Foundation (ASF) under one or more
// contributor license agreements.  See the NOTICE file distributed with
// this work for additional information regarding copyright ownership.
// The ASF licenses this file to You under the Apache License, Version 2.0
// (the "License"); you may not use this file except in compliance with
// the License.  You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package cmd holds the localrunner commands.
package cmd

import (
	"os"
	"strings"

	"github.com/apache/beam/localrunner/internal/errors"
	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"
)

var (
	logLevel string
	logKind  string

	Root = &cobra.Command{
		Use:               "localrunner",
		Short:             "localrunner executes pipelines in the current process",
		PersistentPreRunE: configureLogging,
		SilenceUsage:      true,
	}
)

func init() {
	Root.AddCommand(runCmd, modeCmd)
	Root.PersistentFlags().StringVar(&logLevel, "log_level", "info", "Logging level: debug, info, warn or error.")
	Root.PersistentFlags().StringVar(&logKind, "log_kind", "text", "Logging format: text or json.")
	addPipelineFlags(runCmd)
	addPipelineFlags(modeCmd)
}

func configureLogging(cmd *cobra.Command, _ []string) error {
	level := new(slog.LevelVar)
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(logLevel) {
	case "debug":
		level.Set(slog.LevelDebug)
		opts.AddSource = true
	case "info":
		level.Set(slog.LevelInfo)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		return errors.InvalidArgumentf("invalid --log_level %q, must be debug, info, warn or error", logLevel)
	}

	var h slog.Handler
	switch strings.ToLower(logKind) {
	case "text":
		h = slog.NewTextHandler(os.Stderr, opts)
	case "json":
		h = slog.NewJSONHandler(os.Stderr, opts)
	default:
		return errors.InvalidArgumentf("invalid --log_kind %q, must be text or json", logKind)
	}
	slog.SetDefault(slog.New(h))
	return nil
}
