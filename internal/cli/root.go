package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/yash-srivastava19/canopy/internal/command"
	"github.com/yash-srivastava19/canopy/internal/config"
	"github.com/yash-srivastava19/canopy/internal/transport"
	"github.com/yash-srivastava19/canopy/internal/ui"
)

type rootOptions struct {
	debug bool
}

// BuildInfo is stamped in by the linker.
type BuildInfo struct {
	Version string
	Commit  string
	Date    string
}

// NewRoot builds the canopy command tree.
func NewRoot(info BuildInfo) *cobra.Command {
	o := &rootOptions{}
	root := &cobra.Command{
		Use:   "canopy",
		Short: "canopy: plain markdown notes in the terminal",
		Long: `canopy keeps notes as markdown files and shows them in a terminal UI.
Run without arguments for the TUI, or use the sub-commands.`,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !term.IsTerminal(int(os.Stdout.Fd())) {
				return cmd.Help()
			}
			return runTUI(cmd.Context(), o, info)
		},
	}
	root.PersistentFlags().BoolVar(&o.debug, "debug", false, "Log at debug level.")

	addList(root, o)
	addSearch(root, o)
	addShow(root, o)
	addNew(root, o)
	addToday(root, o)
	addAppend(root, o)
	addEdit(root, o)
	addTrash(root, o)
	addHistory(root, o)
	addTags(root, o)
	addStats(root, o)
	addExport(root, o)
	addServe(root, o)
	addSend(root)
	addLogin(root, o)
	addLogout(root, o)
	addVersion(root, info)
	return root
}

// Execute runs the command tree with a context cancelled on SIGINT/SIGTERM.
func Execute(info BuildInfo) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRoot(info).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, color.RedString("canopy: %v", err))
		return 1
	}
	return 0
}

func runTUI(ctx context.Context, o *rootOptions, info BuildInfo) error {
	r, err := openRuntime(o, logToFile)
	if err != nil {
		return err
	}
	defer r.Close()
	ensureWelcome(ctx, r)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ctl, local, err := r.host(ctx, r.cfg.Socket)
	if err != nil {
		return err
	}
	defer ctl.Shutdown()

	opts := ui.Options{Controller: ctl, Editor: r.cfg.Editor, Version: info.Version}
	if local != nil {
		opts.SignIn = local.SignIn
	}
	model := ui.New(ctx, opts)
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return model.Err()
}

func addServe(topLevel *cobra.Command, o *rootOptions) {
	var socket string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the controller headless behind a unix socket.",
		Example: `
canopy serve --socket /tmp/canopy.sock
`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			r, err := openRuntime(o, logService)
			if err != nil {
				return err
			}
			defer r.Close()
			if socket == "" {
				socket = r.cfg.Socket
			}
			if socket == "" {
				return errors.New("no socket: pass --socket or set transport.socket")
			}
			r.logger.Info("serving", "socket", socket)

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			ctl, _, err := r.host(ctx, socket)
			if err != nil {
				return err
			}
			runErr := ctl.Run(ctx)
			cancel()
			if err := ctl.Shutdown(); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "Unix socket path (default from config).")
	topLevel.AddCommand(cmd)
}

func addSend(topLevel *cobra.Command) {
	var (
		socket string
		wait   time.Duration
	)
	cmd := &cobra.Command{
		Use:   "send <action> [key=json ...]",
		Short: "Send a command to a running canopy.",
		Example: `
canopy send selectTag tag='"work"'
canopy send '{"action":"search","query":"todo"}'
canopy send exportZipArchive --wait 2s
`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			payload, err := buildPayload(args)
			if err != nil {
				return err
			}
			if socket == "" {
				cfg, err := config.Load()
				if err != nil {
					return err
				}
				socket = cfg.Socket
			}
			if socket == "" {
				return errors.New("no socket: pass --socket or set transport.socket")
			}

			var replies func(transport.Envelope)
			ctx := cmd.Context()
			if wait > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, wait)
				defer cancel()
				replies = func(env transport.Envelope) {
					data, _ := json.Marshal(env.Payload)
					fmt.Printf("%s %s\n", color.CyanString(env.Channel), data)
				}
			}
			return transport.Dial(ctx, socket, payload, replies)
		},
	}
	cmd.Flags().StringVar(&socket, "socket", "", "Unix socket path.")
	cmd.Flags().DurationVar(&wait, "wait", 0, "Print notifications for this long after sending.")
	topLevel.AddCommand(cmd)
}

// buildPayload accepts either a raw JSON object or an action followed by
// key=value pairs. Values that are not valid JSON are sent as strings.
func buildPayload(args []string) ([]byte, error) {
	if len(args) == 1 && strings.HasPrefix(strings.TrimSpace(args[0]), "{") {
		if _, err := command.Parse([]byte(args[0])); err != nil {
			return nil, err
		}
		return []byte(args[0]), nil
	}
	kv := make([]any, 0, 2*(len(args)-1))
	for _, a := range args[1:] {
		k, v, ok := strings.Cut(a, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("argument %q is not key=value", a)
		}
		var val any = v
		if json.Valid([]byte(v)) {
			val = json.RawMessage(v)
		}
		kv = append(kv, k, val)
	}
	return json.Marshal(command.New(args[0], kv...))
}
