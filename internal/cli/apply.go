package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/asynkron/chatpatch/internal/logging"
	"github.com/asynkron/chatpatch/pkg/patch"
)

type applyFlags struct {
	ignoreWhitespace bool
	dryRun           bool
	confirm          bool
}

func (a *app) applyCommand() *cobra.Command {
	var flags applyFlags
	cmd := &cobra.Command{
		Use:   "apply [FILE|-]",
		Short: "Apply a patch inside the root directory",
		Long: `Apply reads a patch from FILE, or from stdin when FILE is "-" or omitted,
and applies its operations in order. Each file is written atomically; when an
operation fails, the files changed by earlier operations keep their changes.`,
		Example: `  chatpatch apply change.patch
  git show HEAD:change.patch | chatpatch apply --dry-run
  chatpatch apply --confirm --root ./service change.patch`,
		Args: usageArgs(cobra.MaximumNArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if flags.confirm && (len(args) == 0 || args[0] == "-") {
				return usageError{errors.New("--confirm needs the patch in a file; stdin is used for the review screen")}
			}
			if flags.confirm && flags.dryRun {
				return usageError{errors.New("--confirm and --dry-run cannot be combined")}
			}
			text, err := a.readInput(args, 0)
			if err != nil {
				return err
			}
			return a.apply(cmd, text, flags)
		},
	}
	cmd.Flags().BoolVarP(&flags.ignoreWhitespace, "ignore-whitespace", "w", false, "retry unmatched edits with whitespace ignored")
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "show what would change without writing")
	cmd.Flags().BoolVar(&flags.confirm, "confirm", false, "review the diff and confirm before writing")
	return cmd
}

func (a *app) apply(cmd *cobra.Command, text string, flags applyFlags) error {
	ctx := cmd.Context()
	operations, err := patch.Parse(text)
	if err != nil {
		return a.reportFailure(patch.Result{}, err)
	}

	options := a.cfg.Options()
	if flags.ignoreWhitespace {
		options.IgnoreWhitespace = true
	}
	newApplier := func(dryRun bool) *patch.Applier {
		return patch.NewApplier(patch.NewOSFileSystem(), patch.ApplierOptions{
			Options: options,
			Resolve: patch.SandboxResolver(a.cfg.Root),
			DryRun:  dryRun,
			Logger:  a.log,
		})
	}

	if flags.dryRun || flags.confirm {
		preview, err := newApplier(true).Apply(ctx, operations)
		if err != nil {
			return a.reportFailure(patch.Result{}, err)
		}
		diff := patch.RenderPreview(preview.Changes)
		if flags.dryRun {
			if diff != "" {
				fmt.Fprintln(a.stdout, a.styles.Preview(diff))
			}
			fmt.Fprintln(a.stdout, a.styles.Summary(preview))
			return nil
		}

		title := fmt.Sprintf("Apply %d operation(s) under %s?", len(operations), a.cfg.Root)
		approved, err := a.confirm(ctx, title, diff, a.stdin, a.stdout)
		if err != nil {
			return err
		}
		if !approved {
			a.log.Info(ctx, "patch declined")
			fmt.Fprintln(a.stderr, "Cancelled; no changes applied")
			return errReported
		}
	}

	result, err := newApplier(false).Apply(ctx, operations)
	if err != nil {
		return a.reportFailure(result, err)
	}
	a.log.Debug(ctx, "apply finished", logging.Field("operations", len(operations)))
	fmt.Fprintln(a.stdout, a.styles.Summary(result))
	return nil
}
