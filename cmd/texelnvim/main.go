// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelnvim/main.go
// Summary: Terminal front end for Neovim's remote UI.
// Usage: Run `texelnvim [flags] [file...]` to spawn an embedded editor, or
// pass -listen to attach to a running one.

package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/framegrace/texelnvim/config"
	clientrt "github.com/framegrace/texelnvim/internal/runtime/client"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	cfg := config.System()
	if err := config.Err(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v (using defaults)\n", err)
	}

	fs := flag.NewFlagSet("texelnvim", flag.ContinueOnError)
	editor := fs.String("nvim", cfg.GetString("editor", "path", "nvim"), "Editor binary spawned with --embed")
	editorArgs := fs.String("nvim-args", strings.Join(cfg.GetStringSlice("editor", "args", nil), " "), "Extra arguments for the spawned editor")
	listen := fs.String("listen", cfg.GetString("editor", "listen", ""), "Attach to a running editor (socket path or host:port)")
	width := fs.Int("width", cfg.GetInt("ui", "width", 0), "Override the advertised grid width")
	height := fs.Int("height", cfg.GetInt("ui", "height", 0), "Override the advertised grid height")
	tracePath := fs.String("trace", cfg.GetString("trace", "path", ""), "Record editor notifications to this sqlite file")
	panicLog := fs.String("panic-log", "", "File to append panic stack traces (default: logs/panic.log)")
	if err := fs.Parse(args); err != nil {
		if err == flag.ErrHelp {
			return nil
		}
		return err
	}

	resolvedTrace, err := config.ResolveTracePath(*tracePath)
	if err != nil {
		return fmt.Errorf("resolve trace path: %w", err)
	}

	if *panicLog == "" && cfg.GetBool("log", "panic", true) {
		if dir, err := config.LogDir(); err == nil {
			*panicLog = filepath.Join(dir, "panic.log")
		}
	}

	return clientrt.Run(clientrt.Options{
		EditorPath:     *editor,
		EditorArgs:     strings.Fields(*editorArgs),
		Listen:         *listen,
		Files:          fs.Args(),
		Width:          *width,
		Height:         *height,
		Extensions:     cfg.UIExtensions(),
		ResizeDebounce: time.Duration(cfg.GetInt("ui", "resize_debounce_ms", 50)) * time.Millisecond,
		PanicLog:       *panicLog,
		TracePath:      resolvedTrace,
	})
}
