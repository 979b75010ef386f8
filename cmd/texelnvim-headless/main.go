// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: cmd/texelnvim-headless/main.go
// Summary: Headless remote UI client that prints composed frames as text.
// Usage: Used in CI and scripted checks to drive an editor without a tcell
// screen, or to replay a recorded trace with -replay.

package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/mattn/go-runewidth"
	"golang.org/x/term"

	"github.com/framegrace/texelnvim/client"
	"github.com/framegrace/texelnvim/internal/trace"
)

func main() {
	listen := flag.String("listen", "", "Attach to a running editor (socket path or host:port)")
	nvim := flag.String("nvim", "nvim", "Editor binary spawned with --embed when -listen is empty")
	cols := flag.Int("cols", 0, "Advertised grid columns (default: terminal width or 80)")
	rows := flag.Int("rows", 0, "Advertised grid rows (default: terminal height or 24)")
	tracePath := flag.String("trace", "", "Record editor notifications to this sqlite file")
	replayPath := flag.String("replay", "", "Print the final frame of a recorded trace and exit")
	cmds := flag.String("cmd", "", "Ex commands to run after attaching, separated by ';'")
	frames := flag.Int("frames", 0, "Exit after printing N frames (0 runs until the editor exits)")
	quit := flag.Bool("quit", false, "Quit the editor once the first frame was printed")
	flag.Parse()

	logger := log.New(os.Stderr, "[headless] ", log.LstdFlags|log.Lmicroseconds)

	if *replayPath != "" {
		if err := replay(*replayPath, os.Stdout); err != nil {
			logger.Fatalf("replay failed: %v", err)
		}
		return
	}

	width, height := terminalSize(*cols, *rows)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	transport, err := openTransport(ctx, *listen, *nvim, flag.Args())
	if err != nil {
		logger.Fatalf("start editor failed: %v", err)
	}

	opts := client.ControllerOptions{Width: width, Height: height, Extensions: []string{"ext_multigrid"}}
	if *tracePath != "" {
		rec, err := trace.Open(*tracePath)
		if err != nil {
			logger.Fatalf("open trace: %v", err)
		}
		defer rec.Close()
		opts.Tap = rec.Record
	}

	ctrl, err := client.Connect(ctx, transport, opts)
	if err != nil {
		logger.Fatalf("connect failed: %v", err)
	}
	defer ctrl.Disconnect()
	logger.Printf("attached to channel %d at %dx%d (options %v)", ctrl.API().ChannelID, width, height, ctrl.UIOptions())

	for _, cmd := range splitCommands(*cmds) {
		if err := ctrl.Command(ctx, cmd); err != nil {
			logger.Printf("command %q failed: %v", cmd, err)
		}
	}

	sigC := make(chan os.Signal, 1)
	signal.Notify(sigC, syscall.SIGINT, syscall.SIGTERM)

	printed := 0
	for {
		select {
		case f := <-ctrl.Frames():
			printFrame(os.Stdout, f, width, height)
			printed++
			if *quit {
				qctx, qcancel := context.WithTimeout(context.Background(), 2*time.Second)
				if err := ctrl.Quit(qctx); err != nil {
					logger.Printf("quit failed: %v", err)
				}
				qcancel()
				*quit = false
			}
			if *frames > 0 && printed >= *frames {
				logger.Printf("exiting after %d frames", printed)
				return
			}
		case sig := <-sigC:
			logger.Printf("received signal %v, detaching", sig)
			return
		case <-ctrl.Done():
			logger.Printf("exiting: frames=%d (%v)", printed, ctrl.Err())
			return
		}
	}
}

func terminalSize(cols, rows int) (int, int) {
	width, height := 80, 24
	if w, h, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 && h > 0 {
		width, height = w, h
	}
	if cols > 0 {
		width = cols
	}
	if rows > 0 {
		height = rows
	}
	return width, height
}

func openTransport(ctx context.Context, listen, nvim string, args []string) (client.Transport, error) {
	if listen != "" {
		return client.DialSocket(ctx, listen)
	}
	cmd := exec.Command(nvim, append([]string{"--embed"}, args...)...)
	cmd.Stderr = os.Stderr
	return client.NewStdioTransport(cmd)
}

func splitCommands(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ";") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func replay(path string, w io.Writer) error {
	entries, err := trace.Load(path)
	if err != nil {
		return err
	}
	f, err := trace.Replay(entries, client.NewModel())
	if f != nil {
		width, height := frameSize(f)
		printFrame(w, f, width, height)
	}
	return err
}

// frameSize is the size of the default grid, or 0x0 before one exists.
func frameSize(f *client.Frame) (int, int) {
	if g := f.Grid(client.DefaultGrid); g != nil {
		return g.Width, g.Height
	}
	return 0, 0
}

func printFrame(w io.Writer, f *client.Frame, width, height int) {
	fmt.Fprintf(w, "--- frame %d mode=%s cursor=%d:%d,%d title=%q\n",
		f.Seq, f.Mode.Name, f.Cursor.Grid, f.Cursor.Row, f.Cursor.Col, f.Title)
	for _, line := range compose(f, width, height) {
		fmt.Fprintln(w, line)
	}
}

// compose flattens the visible grids into text rows, later placements
// covering earlier ones.
func compose(f *client.Frame, width, height int) []string {
	if width <= 0 || height <= 0 {
		return nil
	}
	buf := make([][]string, height)
	for y := range buf {
		buf[y] = make([]string, width)
		for x := range buf[y] {
			buf[y][x] = " "
		}
	}
	for _, p := range f.Windows {
		g := f.Grid(p.Grid)
		if g == nil {
			continue
		}
		for r := 0; r < g.Height && r < p.Height; r++ {
			y := p.Row + r
			if y < 0 || y >= height {
				continue
			}
			for c, cell := range g.RowCells(r) {
				x := p.Col + c
				if c >= p.Width || x < 0 || x >= width {
					continue
				}
				buf[y][x] = cell.Text
			}
		}
	}
	out := make([]string, height)
	for y, row := range buf {
		var sb strings.Builder
		for _, text := range row {
			sb.WriteString(text)
		}
		out[y] = strings.TrimRight(runewidth.Truncate(sb.String(), width, ""), " ")
	}
	return out
}
