// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: internal/runtime/client/app.go
// Summary: Terminal front end for an attached editor.
// Usage: Embedded by the texelnvim binary; Run blocks until the editor exits.
// Notes: The event loop owns the screen. Frames arrive from the controller,
// tcell events from the poll goroutine.

package clientruntime

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/gdamore/tcell/v2"

	"github.com/framegrace/texelnvim/client"
	"github.com/framegrace/texelnvim/config"
	"github.com/framegrace/texelnvim/internal/trace"
)

const (
	defaultResizeDebounce = 50 * time.Millisecond
	connectTimeout        = 10 * time.Second
)

// Options configures the front end.
type Options struct {
	// EditorPath is the binary spawned with --embed when Listen is empty.
	EditorPath string
	EditorArgs []string
	// Listen dials a running editor (unix socket path or host:port).
	Listen string
	// Files are opened once the UI is attached.
	Files []string
	// Width and Height override the terminal size when positive.
	Width, Height  int
	Extensions     []string
	ResizeDebounce time.Duration
	PanicLog       string
	TracePath      string
}

func Run(opts Options) error {
	panicLogger := NewPanicLogger(opts.PanicLog)
	defer panicLogger.Recover("run")

	logFile, err := setupLogging()
	if err != nil {
		fmt.Fprintf(os.Stderr, "logging disabled: %v\n", err)
	} else {
		defer logFile.Close()
	}

	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("create screen failed: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("init screen failed: %w", err)
	}
	panicLogger.SetCleanup(screen.Fini)
	defer screen.Fini()
	screen.EnablePaste()
	screen.EnableMouse()
	defer screen.DisableMouse()

	width, height := screen.Size()
	if opts.Width > 0 {
		width = opts.Width
	}
	if opts.Height > 0 {
		height = opts.Height
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	transport, err := openTransport(ctx, opts)
	if err != nil {
		return fmt.Errorf("start editor failed: %w", err)
	}

	ctrlOpts := client.ControllerOptions{Width: width, Height: height, Extensions: opts.Extensions}
	if opts.TracePath != "" {
		rec, err := trace.Open(opts.TracePath)
		if err != nil {
			log.Printf("trace disabled: %v", err)
		} else {
			defer rec.Close()
			ctrlOpts.Tap = rec.Record
			log.Printf("Recording editor notifications to %s", opts.TracePath)
		}
	}

	ctrl, err := client.Connect(ctx, transport, ctrlOpts)
	if err != nil {
		return fmt.Errorf("connect failed: %w", err)
	}
	defer ctrl.Disconnect()

	for _, path := range opts.Files {
		if err := ctrl.Open(ctx, path); err != nil {
			log.Printf("open %s failed: %v", path, err)
		}
	}

	return runLoop(screen, ctrl, newUIState(ctrl, opts.ResizeDebounce, panicLogger))
}

// runLoop renders frames and forwards terminal events until the session
// ends. A clean editor exit returns nil.
func runLoop(screen tcell.Screen, ctrl *client.Controller, state *uiState) error {
	stop := make(chan struct{})
	events := pollEvents(screen, stop, state.panics)
	defer func() {
		close(stop)
		screen.PostEventWait(tcell.NewEventInterrupt(nil))
	}()

	applyFrame(state, screen, ctrl.Frame())
	render(state, screen)

	for {
		select {
		case f := <-ctrl.Frames():
			applyFrame(state, screen, f)
			render(state, screen)
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if !handleScreenEvent(ev, state, screen) {
				return nil
			}
		case <-ctrl.Done():
			var ended *client.SessionEndedError
			if err := ctrl.Err(); errors.As(err, &ended) && ended.Cause != nil {
				return err
			}
			log.Printf("Editor exited")
			return nil
		}
	}
}

func openTransport(ctx context.Context, opts Options) (client.Transport, error) {
	if opts.Listen != "" {
		log.Printf("Dialing editor at %s", opts.Listen)
		return client.DialSocket(ctx, opts.Listen)
	}
	path := opts.EditorPath
	if path == "" {
		path = "nvim"
	}
	args := append([]string{"--embed"}, opts.EditorArgs...)
	cmd := exec.Command(path, args...)
	cmd.Stderr = log.Writer()
	log.Printf("Spawning %s %v", path, args)
	return client.NewStdioTransport(cmd)
}

func setupLogging() (*os.File, error) {
	logDir, err := config.LogDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(logDir, 0o750); err != nil {
		return nil, err
	}
	logPath := filepath.Join(logDir, "texelnvim.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, err
	}
	log.SetOutput(file)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)
	return file, nil
}
