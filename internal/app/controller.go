// Package app is the application state controller. It owns State and
// processes every inbound message (bucket events, host commands, auth
// signals) one at a time, to completion, in arrival order.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yash-srivastava19/canopy/internal/auth"
	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/command"
	"github.com/yash-srivastava19/canopy/internal/dialog"
	"github.com/yash-srivastava19/canopy/internal/display"
	"github.com/yash-srivastava19/canopy/internal/filter"
	"github.com/yash-srivastava19/canopy/internal/notes"
	"github.com/yash-srivastava19/canopy/internal/settings"
	"github.com/yash-srivastava19/canopy/internal/telemetry"
	"github.com/yash-srivastava19/canopy/internal/transport"
)

// SettingsStore persists user settings.
type SettingsStore interface {
	Load() (settings.Settings, error)
	Save(settings.Settings) error
}

type Options struct {
	Notes     bucket.Bucket[notes.Note]
	Tags      bucket.Bucket[notes.Tag]
	Auth      auth.Client // nil means never authorized
	Transport transport.Transport
	Settings  SettingsStore
	Telemetry *telemetry.Recorder
	Dialogs   *dialog.Registry

	SearchMode filter.Mode
	// ExportPath is where exportZipArchive writes when the command names
	// no path.
	ExportPath string
	Logger     *slog.Logger
}

type Controller struct {
	notes     bucket.Bucket[notes.Note]
	tags      bucket.Bucket[notes.Tag]
	transport transport.Transport
	settings  SettingsStore
	telemetry *telemetry.Recorder
	registry  *dialog.Registry
	auth      *auth.Handler
	router    *command.Router
	logger    *slog.Logger

	mode       filter.Mode
	exportPath string

	state State
	inbox chan any

	ctx    context.Context
	cancel context.CancelFunc
	group  *errgroup.Group
	once   sync.Once
}

func New(opts Options) (*Controller, error) {
	if opts.Notes == nil || opts.Tags == nil {
		return nil, errors.New("app: note and tag buckets are required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Transport == nil {
		opts.Transport = transport.NoOp{}
	}
	if opts.Telemetry == nil {
		opts.Telemetry = telemetry.New(opts.Logger)
	}
	if opts.Dialogs == nil {
		opts.Dialogs = dialog.NewRegistry()
	}
	if opts.SearchMode == "" {
		opts.SearchMode = filter.ModeTokens
	}

	st := settings.Defaults()
	if opts.Settings != nil {
		loaded, err := opts.Settings.Load()
		if err != nil {
			opts.Logger.Warn("app: load settings, using defaults", "err", err)
		} else {
			st = loaded
		}
	}

	c := &Controller{
		notes:      opts.Notes,
		tags:       opts.Tags,
		transport:  opts.Transport,
		settings:   opts.Settings,
		telemetry:  opts.Telemetry,
		registry:   opts.Dialogs,
		auth:       auth.NewHandler(opts.Auth, opts.Telemetry, opts.Logger),
		logger:     opts.Logger,
		mode:       opts.SearchMode,
		exportPath: opts.ExportPath,
		state:      NewState(st),
		inbox:      make(chan any, 256),
		ctx:        context.Background(),
	}

	router, err := command.NewRouter(c.tables(), opts.Logger)
	if err != nil {
		return nil, fmt.Errorf("app: build router: %w", err)
	}
	c.router = router
	return c, nil
}

// Init acquires the bucket subscriptions and starts the pumps feeding the
// inbox, announces settings and runs the auth handler once. Everything
// acquired here is released by Shutdown.
func (c *Controller) Init(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	c.ctx, c.cancel, c.group = gctx, cancel, g

	noteSub, err := c.notes.Subscribe(gctx)
	if err != nil {
		cancel()
		return fmt.Errorf("app: subscribe notes: %w", err)
	}
	tagSub, err := c.tags.Subscribe(gctx)
	if err != nil {
		noteSub.Close()
		cancel()
		return fmt.Errorf("app: subscribe tags: %w", err)
	}

	g.Go(func() error { return c.pumpNotes(gctx, noteSub) })
	g.Go(func() error { return c.pumpTags(gctx, tagSub) })
	if sigs := c.auth.Signals(); sigs != nil {
		g.Go(func() error { return c.pumpAuth(gctx, sigs) })
	}
	if cmds := c.transport.Commands(); cmds != nil {
		g.Go(func() error { return c.pumpCommands(gctx, cmds) })
	}

	c.emitSettings()
	c.checkAuth()
	c.telemetry.Record("application_opened")
	return nil
}

// Inbox delivers messages for Handle. Hosts that run their own loop read
// from it instead of calling Run.
func (c *Controller) Inbox() <-chan any {
	return c.inbox
}

// Run handles inbox messages until ctx is done or a fatal error occurs.
func (c *Controller) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg := <-c.inbox:
			if err := c.Handle(msg); err != nil {
				return err
			}
		}
	}
}

// Shutdown cancels the pumps, waits for them and for running exports.
func (c *Controller) Shutdown() error {
	var err error
	c.once.Do(func() {
		if c.cancel == nil {
			return
		}
		c.cancel()
		if gerr := c.group.Wait(); gerr != nil && !errors.Is(gerr, context.Canceled) {
			err = gerr
		}
		c.router.Wait()
	})
	return err
}

// Handle applies one message. The only error it returns is a fatal one:
// an open dialog of an unregistered kind.
func (c *Controller) Handle(msg any) error {
	switch m := msg.(type) {
	case loadNotesMsg:
		c.loadNotes()
	case loadTagsMsg:
		c.loadTags()
	case noteUpdatedMsg:
		c.noteUpdated(m)
	case authSignalMsg:
		c.logger.Debug("app: auth signal", "signal", m.signal)
		c.checkAuth()
	case commandMsg:
		if c.admit(m.payload) {
			c.router.DispatchRaw(c.ctx, m.payload)
		}
	default:
		c.logger.Debug("app: unknown message", "type", fmt.Sprintf("%T", msg))
	}
	_, err := c.Dialogs()
	return err
}

// admit screens payloads from the transport. A showDialog naming a kind the
// registry does not know is dropped so a remote sender cannot stop the host.
func (c *Controller) admit(payload []byte) bool {
	cmd, err := command.Parse(payload)
	if err != nil || cmd.Action != "showDialog" {
		return true
	}
	d, ok := dialogArg(cmd)
	if !ok {
		return true
	}
	if _, err := c.registry.Lookup(d.Type); err != nil {
		c.logger.Warn("app: dropped dialog from transport", "dialog", d.Type)
		return false
	}
	return true
}

// Dispatch runs a command from the local host (the TUI) on the caller's
// goroutine, which must be the one calling Handle.
func (c *Controller) Dispatch(cmd command.Command) error {
	c.router.Dispatch(c.ctx, cmd)
	_, err := c.Dialogs()
	return err
}

// State returns a snapshot. Callers must not modify it.
func (c *Controller) State() State {
	return c.state
}

// Visible is the filtered, sorted note list.
func (c *Controller) Visible() []notes.Note {
	return filter.Apply(c.state.Notes, c.filterOptions())
}

// Display is the note display capability derived from settings.
func (c *Controller) Display() display.Options {
	return c.state.Settings.Display()
}

// Dialogs returns the open dialogs, failing with dialog.ErrUnregistered if
// any of them cannot be rendered.
func (c *Controller) Dialogs() ([]dialog.Dialog, error) {
	if err := c.registry.Validate(c.state.Dialogs); err != nil {
		return nil, err
	}
	return c.state.Dialogs, nil
}

// Registry exposes the dialog kinds for renderers.
func (c *Controller) Registry() *dialog.Registry {
	return c.registry
}

// ToolbarOutsideClick handles a click that landed outside the toolbar.
// Open dialogs take priority; otherwise a click outside the open
// navigation panel closes it.
func (c *Controller) ToolbarOutsideClick(insideNavigation bool) {
	if len(c.state.Dialogs) > 0 {
		return
	}
	if c.state.ShowNavigation && !insideNavigation {
		c.state.ShowNavigation = false
	}
}

func (c *Controller) filterOptions() filter.Options {
	return c.state.FilterOptions(c.mode)
}

// post hands msg to the inbox, giving up when ctx is done.
func (c *Controller) post(ctx context.Context, msg any) error {
	select {
	case c.inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Controller) checkAuth() {
	status, account := c.auth.Changed()
	if status != auth.StatusAuthorized {
		c.resetAuth()
		return
	}
	c.state.Auth = auth.StatusAuthorized
	if account != "" && account != c.state.Settings.AccountName {
		c.updateSettings(func(s *settings.Settings) { s.AccountName = account })
	}
	c.loadNotes()
	c.loadTags()
}

func (c *Controller) resetAuth() {
	c.state.Auth = auth.StatusUnauthorized
	c.state.Notes = nil
	c.state.Tags = nil
	c.state.Selected = nil
	c.state.Tag = nil
	c.state.Revisions = nil
	c.state.Dialogs = nil
	c.state.PreviousIndex = 0
}

func (c *Controller) emitSettings() {
	if err := c.transport.Send("settingsUpdate", c.state.Settings); err != nil {
		c.logger.Warn("app: send settingsUpdate", "err", err)
	}
}

// updateSettings applies fn, persists the result and tells the host.
func (c *Controller) updateSettings(fn func(*settings.Settings)) {
	fn(&c.state.Settings)
	if c.settings != nil {
		if err := c.settings.Save(c.state.Settings); err != nil {
			c.logger.Error("app: save settings", "err", err)
		}
	}
	c.emitSettings()
}
