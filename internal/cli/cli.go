// Package cli implements the chatpatch command line.
package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asynkron/chatpatch/internal/config"
	"github.com/asynkron/chatpatch/internal/logging"
	"github.com/asynkron/chatpatch/internal/tui"
	"github.com/asynkron/chatpatch/internal/ui"
	"github.com/asynkron/chatpatch/pkg/patch"
	"github.com/asynkron/chatpatch/pkg/sandbox"
)

// Exit codes returned by Run.
const (
	ExitOK      = 0
	ExitFailure = 1
	ExitUsage   = 2
)

// usageError marks errors caused by how the command was invoked.
type usageError struct{ err error }

func (e usageError) Error() string { return e.err.Error() }
func (e usageError) Unwrap() error { return e.err }

// errReported is returned once the failure has already been printed.
var errReported = errors.New("reported")

// confirmFunc shows the review screen. Tests replace it.
type confirmFunc func(ctx context.Context, title, preview string, in io.Reader, out io.Writer) (bool, error)

type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	confirm confirmFunc

	cfg    config.Config
	log    logging.Logger
	styles *ui.Styles
	errs   *ui.Styles

	// persistent flag values
	root     string
	logLevel string
	noColor  bool
}

// Run executes the command line and returns a POSIX-style exit code.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	return run(ctx, args, stdin, stdout, stderr, tui.Confirm)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer, confirm confirmFunc) int {
	if stdin == nil {
		stdin = strings.NewReader("")
	}
	if stdout == nil {
		stdout = io.Discard
	}
	if stderr == nil {
		stderr = io.Discard
	}

	if err := config.LoadDotEnv(); err != nil {
		fmt.Fprintln(stderr, err)
		return ExitFailure
	}

	a := &app{stdin: stdin, stdout: stdout, stderr: stderr, confirm: confirm}
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(logging.WithTraceID(ctx, logging.NewTraceID()))
	if err == nil {
		return ExitOK
	}
	if errors.Is(err, errReported) {
		return ExitFailure
	}
	var usage usageError
	if errors.As(err, &usage) || strings.HasPrefix(err.Error(), "unknown command") {
		fmt.Fprintf(stderr, "error: %v\n", err)
		fmt.Fprintf(stderr, "Run '%s --help' for usage.\n", root.CommandPath())
		return ExitUsage
	}
	fmt.Fprintln(stderr, a.errorStyles().Failure(err))
	return ExitFailure
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatpatch",
		Short: "Apply *** Begin Patch documents to a directory tree",
		Long: `chatpatch parses and applies the patch format emitted by coding assistants:
add, update (with optional move) and delete file directives wrapped in
*** Begin Patch / *** End Patch. Every path is confined to the root directory.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError{err}
	})

	flags := root.PersistentFlags()
	flags.StringVar(&a.root, "root", "", "directory every patch path is confined to (default: $"+config.EnvRoot+" or the working directory)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error (default: $"+config.EnvLogLevel+" or warn)")
	flags.BoolVar(&a.noColor, "no-color", false, "disable coloured output")

	root.AddCommand(a.applyCommand(), a.parseCommand(), a.toolCommand())
	return root
}

// setup resolves configuration from the environment and persistent flags.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(os.LookupEnv)
	if err != nil {
		return usageError{err}
	}
	if cmd.Flags().Changed("root") {
		cfg.Root = a.root
	}
	if cmd.Flags().Changed("log-level") {
		level, err := logging.ParseLevel(a.logLevel)
		if err != nil {
			return usageError{err}
		}
		cfg.LogLevel = level
	}
	if a.noColor {
		cfg.NoColor = true
	}
	if cfg.Root == "" {
		wd, err := os.Getwd()
		if err != nil {
			return fmt.Errorf("failed to determine working directory: %w", err)
		}
		cfg.Root = wd
	}
	if err := sandbox.CheckRoot(cfg.Root); err != nil {
		return usageError{fmt.Errorf("invalid root: %w", err)}
	}

	a.cfg = cfg
	a.log = logging.NewConsole(cfg.LogLevel, a.stderr, cfg.NoColor)
	a.styles = ui.New(a.stdout, cfg.NoColor)
	a.errs = ui.New(a.stderr, cfg.NoColor)
	a.log.Debug(cmd.Context(), "command started", logging.Field("command", cmd.Name()))
	return nil
}

func (a *app) errorStyles() *ui.Styles {
	if a.errs == nil {
		return ui.New(a.stderr, true)
	}
	return a.errs
}

// readInput returns the named file, or stdin for "-" and no argument.
func (a *app) readInput(args []string, index int) (string, error) {
	if len(args) <= index || args[index] == "-" {
		data, err := io.ReadAll(a.stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[index])
	if err != nil {
		return "", fmt.Errorf("read %s: %w", args[index], err)
	}
	return string(data), nil
}

func (a *app) reportFailure(result patch.Result, err error) error {
	if !result.Empty() {
		fmt.Fprintln(a.stderr, "Applied before the failure:")
		fmt.Fprintln(a.stderr, a.errs.Summary(result))
	}
	fmt.Fprintln(a.stderr, a.errs.Failure(err))
	return errReported
}

func (a *app) parseCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "parse [FILE|-]",
		Short: "Parse a patch and print its operations as JSON",
		Args:  usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := a.readInput(args, 0)
			if err != nil {
				return err
			}
			operations, err := patch.Parse(text)
			if err != nil {
				return a.reportFailure(patch.Result{}, err)
			}
			if operations == nil {
				operations = []patch.Operation{}
			}
			data, err := json.MarshalIndent(operations, "", "  ")
			if err != nil {
				return fmt.Errorf("encode operations: %w", err)
			}
			fmt.Fprintln(a.stdout, string(data))
			return nil
		},
	}
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError{err}
		}
		return nil
	}
}
