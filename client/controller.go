// Copyright © 2025 Texelation contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
//
// File: client/controller.go
// Summary: Session controller: attach handshake, model task and input surface.
// Usage: Connect over a Transport, render Frames, forward input, Disconnect.
// Notes: The model task is the only writer of UI state. Any fatal error ends
// the controller with a single *SessionEndedError.

package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"github.com/gdamore/tcell/v2"
	"golang.org/x/sync/errgroup"

	"github.com/framegrace/texelnvim/protocol"
)

// ErrUnsupportedEditor is returned by Connect when the editor cannot
// provide the line-based grid protocol.
var ErrUnsupportedEditor = errors.New("client: editor lacks ext_linegrid")

// ControllerOptions configures the attach handshake.
type ControllerOptions struct {
	Width  int
	Height int
	// Extensions lists optional UI extensions to request, e.g.
	// "ext_multigrid". Ones the editor does not advertise are skipped.
	Extensions []string
	// Tap observes every inbound notification.
	Tap NotificationTap
}

// APIVersion is the editor version reported by nvim_get_api_info.
type APIVersion struct {
	Major    int
	Minor    int
	Patch    int
	APILevel int
}

// APIInfo is what the editor reported during the handshake.
type APIInfo struct {
	ChannelID int
	Version   APIVersion
	UIOptions []string
}

// SessionEndedError is the single terminal signal of a controller. Cause
// is nil when the editor exited or the session was disconnected locally.
type SessionEndedError struct {
	Cause error
}

func (e *SessionEndedError) Error() string {
	if e.Cause == nil {
		return "session ended: connection closed"
	}
	return "session ended: " + e.Cause.Error()
}

func (e *SessionEndedError) Unwrap() error {
	return e.Cause
}

// Controller owns the session and model of one attached editor.
type Controller struct {
	session *Session
	model   *Model
	api     APIInfo
	ui      map[string]interface{}
	frames  chan *Frame
	done    chan struct{}

	mu  sync.Mutex
	err error
}

// Connect attaches a UI of the requested size over transport. On failure
// the transport is closed.
func Connect(ctx context.Context, transport Transport, opts ControllerOptions) (*Controller, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("client: invalid ui size %dx%d", opts.Width, opts.Height)
	}
	session := NewSession(transport)
	redraw := session.Subscribe(protocol.RedrawMethod)
	if opts.Tap != nil {
		session.SetTap(opts.Tap)
	}
	c := &Controller{
		session: session,
		model:   NewModel(),
		frames:  make(chan *Frame, 1),
		done:    make(chan struct{}),
	}
	c.model.OnFlush(c.offerFrame)
	session.Start()

	group, gctx := errgroup.WithContext(context.Background())
	group.Go(func() error { return c.runModel(redraw) })
	group.Go(func() error {
		select {
		case <-session.Done():
			return session.Err()
		case <-gctx.Done():
			return nil
		}
	})
	go func() {
		err := group.Wait()
		c.finish(err)
	}()

	if err := c.handshake(ctx, opts); err != nil {
		_ = session.Close()
		<-c.done
		return nil, err
	}
	return c, nil
}

func (c *Controller) handshake(ctx context.Context, opts ControllerOptions) error {
	res, err := c.session.Call(ctx, "nvim_get_api_info")
	if err != nil {
		return fmt.Errorf("nvim_get_api_info: %w", err)
	}
	info, err := parseAPIInfo(res)
	if err != nil {
		return err
	}
	c.api = info
	ui, err := negotiateUIOptions(info.UIOptions, opts.Extensions)
	if err != nil {
		return err
	}
	c.ui = ui
	log.Printf("attaching to editor %d.%d.%d (api %d, channel %d) at %dx%d",
		info.Version.Major, info.Version.Minor, info.Version.Patch, info.Version.APILevel,
		info.ChannelID, opts.Width, opts.Height)
	if _, err := c.session.Call(ctx, "nvim_ui_attach", int64(opts.Width), int64(opts.Height), ui); err != nil {
		return fmt.Errorf("nvim_ui_attach: %w", err)
	}
	return nil
}

func parseAPIInfo(res interface{}) (APIInfo, error) {
	arr, ok := protocol.ToArray(res)
	if !ok || len(arr) < 2 {
		return APIInfo{}, protocol.Malformedf("api info is %T", res)
	}
	var info APIInfo
	info.ChannelID, _ = protocol.ToInt(arr[0])
	meta, ok := protocol.ToMap(arr[1])
	if !ok {
		return APIInfo{}, protocol.Malformedf("api metadata is %T", arr[1])
	}
	if version, ok := protocol.ToMap(meta["version"]); ok {
		info.Version.Major, _ = protocol.ToInt(version["major"])
		info.Version.Minor, _ = protocol.ToInt(version["minor"])
		info.Version.Patch, _ = protocol.ToInt(version["patch"])
		info.Version.APILevel, _ = protocol.ToInt(version["api_level"])
	}
	if opts, ok := protocol.ToArray(meta["ui_options"]); ok {
		for _, o := range opts {
			if name, ok := protocol.ToString(o); ok {
				info.UIOptions = append(info.UIOptions, name)
			}
		}
	}
	return info, nil
}

// negotiateUIOptions builds the nvim_ui_attach options map. ext_linegrid
// and rgb are always requested.
func negotiateUIOptions(advertised, requested []string) (map[string]interface{}, error) {
	available := make(map[string]bool, len(advertised))
	for _, name := range advertised {
		available[name] = true
	}
	if !available["ext_linegrid"] {
		return nil, ErrUnsupportedEditor
	}
	opts := map[string]interface{}{"rgb": true, "ext_linegrid": true}
	for _, name := range requested {
		if name == "rgb" || name == "ext_linegrid" {
			continue
		}
		if !available[name] {
			log.Printf("editor does not support ui option %s; skipping", name)
			continue
		}
		opts[name] = true
	}
	return opts, nil
}

// runModel is the single owner of UI state mutation.
func (c *Controller) runModel(redraw <-chan []interface{}) error {
	for params := range redraw {
		events, err := protocol.DecodeRedraw(params)
		if err == nil {
			err = c.model.Apply(events)
		}
		if err != nil {
			c.session.shutdown(err)
			_ = c.session.transport.Close()
			return err
		}
	}
	return nil
}

func (c *Controller) offerFrame(f *Frame) {
	select {
	case c.frames <- f:
		return
	default:
	}
	select {
	case <-c.frames:
	default:
	}
	select {
	case c.frames <- f:
	default:
	}
}

func (c *Controller) finish(cause error) {
	if errors.Is(cause, context.Canceled) {
		cause = nil
	}
	c.mu.Lock()
	c.err = &SessionEndedError{Cause: cause}
	c.mu.Unlock()
	log.Printf("editor session finished: %v", c.err)
	close(c.done)
}

// API returns what the editor reported at attach time.
func (c *Controller) API() APIInfo {
	return c.api
}

// UIOptions returns the options the UI was attached with, sorted.
func (c *Controller) UIOptions() []string {
	out := make([]string, 0, len(c.ui))
	for name := range c.ui {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// Frame returns the latest flushed frame.
func (c *Controller) Frame() *Frame {
	return c.model.Frame()
}

// Frames delivers newly flushed frames. Only the latest unread frame is
// kept; a slow reader skips intermediate ones.
func (c *Controller) Frames() <-chan *Frame {
	return c.frames
}

// Done is closed when the session has ended.
func (c *Controller) Done() <-chan struct{} {
	return c.done
}

// Err is nil while the session is alive and a *SessionEndedError after.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// Alive reports whether input is still accepted.
func (c *Controller) Alive() bool {
	select {
	case <-c.done:
		return false
	default:
		return c.session.Alive()
	}
}

// Disconnect closes the connection and waits for the tasks to stop.
func (c *Controller) Disconnect() error {
	err := c.session.Close()
	<-c.done
	return err
}

// Send delivers an encoded input notification.
func (c *Controller) Send(in Input) error {
	return c.session.Notify(in.Method, in.Args...)
}

// Key forwards a key press. Keys without editor notation are logged and
// dropped.
func (c *Controller) Key(mods tcell.ModMask, key tcell.Key, r rune) error {
	in, err := EncodeKey(mods, key, r)
	if errors.Is(err, ErrUnmappableKey) {
		log.Printf("dropping key: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	return c.Send(in)
}

// Mouse forwards a mouse event at a grid-relative position.
func (c *Controller) Mouse(button MouseButton, action MouseAction, grid, row, col int, mods tcell.ModMask) error {
	in, err := EncodeMouse(button, action, grid, row, col, mods)
	if errors.Is(err, ErrUnmappableMouse) {
		log.Printf("dropping mouse event: %v", err)
		return nil
	}
	if err != nil {
		return err
	}
	return c.Send(in)
}

// TryResize asks the editor to resize the UI. The model changes only when
// the editor answers with grid_resize.
func (c *Controller) TryResize(ctx context.Context, width, height int) error {
	_, err := c.session.Call(ctx, "nvim_ui_try_resize", int64(width), int64(height))
	return err
}

// TryResizeGrid asks for a single grid to be resized (multigrid only).
func (c *Controller) TryResizeGrid(ctx context.Context, grid, width, height int) error {
	_, err := c.session.Call(ctx, "nvim_ui_try_resize_grid", int64(grid), int64(width), int64(height))
	return err
}

// ErrPasteAborted reports that the editor cancelled a paste.
var ErrPasteAborted = errors.New("client: paste aborted by editor")

// Paste sends text as a single bracketed paste.
func (c *Controller) Paste(ctx context.Context, text string) error {
	res, err := c.session.Call(ctx, "nvim_paste", text, true, int64(-1))
	if err != nil {
		return err
	}
	if ok, _ := protocol.ToBool(res); !ok {
		return ErrPasteAborted
	}
	return nil
}

// Command runs an Ex command.
func (c *Controller) Command(ctx context.Context, cmd string) error {
	_, err := c.session.Call(ctx, "nvim_command", cmd)
	return err
}

// Open edits path in the current window.
func (c *Controller) Open(ctx context.Context, path string) error {
	cmd := map[string]interface{}{"cmd": "edit", "args": []interface{}{path}}
	_, err := c.session.Call(ctx, "nvim_cmd", cmd, map[string]interface{}{})
	return err
}

// Quit asks the editor to exit. Losing the connection while doing so
// counts as success.
func (c *Controller) Quit(ctx context.Context) error {
	err := c.Command(ctx, "qa")
	if errors.Is(err, ErrDisconnected) {
		return nil
	}
	return err
}
