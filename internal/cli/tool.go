package cli

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/asynkron/chatpatch/internal/tools"
)

func (a *app) toolCommand() *cobra.Command {
	var (
		list             bool
		dryRun           bool
		ignoreWhitespace bool
	)
	cmd := &cobra.Command{
		Use:   "tool NAME [JSON|-]",
		Short: "Call a chat tool with JSON arguments",
		Long: `Tool runs one of the chat tools (chat_patch, chat_write, chat_edit,
chat_batch) with a JSON object of arguments, read from stdin when JSON is "-"
or omitted. Use --list to print the available tools.`,
		Example: `  chatpatch tool --list
  chatpatch tool chat_write '{"filePath":"notes.md","content":"# Notes\n"}'
  chatpatch tool chat_patch - < request.json`,
		Args: usageArgs(func(cmd *cobra.Command, args []string) error {
			if list {
				return cobra.NoArgs(cmd, args)
			}
			return cobra.RangeArgs(1, 2)(cmd, args)
		}),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := tools.NewOSEnv(a.cfg.Root)
			if err != nil {
				return err
			}
			env.Options = a.cfg.Options()
			if ignoreWhitespace {
				env.Options.IgnoreWhitespace = true
			}
			env.DryRun = dryRun
			env.Logger = a.log
			env.BatchLimit = a.cfg.BatchLimit

			registry, err := tools.NewDefaultRegistry(env)
			if err != nil {
				return err
			}
			if list {
				a.listTools(registry)
				return nil
			}
			if !registry.Has(args[0]) {
				return usageError{fmt.Errorf("unknown tool %q (see --list)", args[0])}
			}

			raw, err := a.readInput(args, 1)
			if err != nil {
				return err
			}
			var params map[string]any
			if err := json.Unmarshal([]byte(raw), &params); err != nil {
				return usageError{fmt.Errorf("tool arguments must be a JSON object: %w", err)}
			}

			output, err := registry.Call(cmd.Context(), args[0], params)
			if err != nil {
				fmt.Fprintln(a.stderr, a.errs.Failure(err))
				return errReported
			}
			fmt.Fprintln(a.stdout, output)
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list the available tools")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "route file changes to an in-memory overlay")
	cmd.Flags().BoolVarP(&ignoreWhitespace, "ignore-whitespace", "w", false, "retry unmatched patch edits with whitespace ignored")
	return cmd
}

func (a *app) listTools(registry *tools.Registry) {
	for _, tool := range registry.Tools() {
		summary, _, _ := strings.Cut(tool.Description(), "\n")
		fmt.Fprintf(a.stdout, "%-12s %s\n", tool.Name(), summary)
	}
}
