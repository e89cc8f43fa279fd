package cli

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/google/shlex"
	"github.com/spf13/cobra"
)

const prompt = "ftsc> "

func newShellCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Read parse, compile and query commands interactively",
		Long: `shell reads one command per line and splits it like a POSIX shell, so
expressions containing spaces or phrases are quoted:

  ftsc> query -s a:doc '"quarterly report" -draft'
  ftsc> compile 'cat OR dog'

The backend given by --corpus or --remote is opened once and reused.
Type exit or quit to leave.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShell(cmd, a)
		},
	}
}

func runShell(cmd *cobra.Command, a *app) error {
	out := cmd.OutOrStdout()
	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		fmt.Fprint(out, prompt)
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			return nil
		}
		words, err := shlex.Split(line)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}

		// Fresh commands per line so flags from one line do not leak into the next.
		sub := &cobra.Command{Use: "", SilenceUsage: true, SilenceErrors: true}
		sub.AddCommand(newParseCmd(), newCompileCmd(a), newQueryCmd(a))
		sub.SetArgs(words)
		sub.SetOut(out)
		sub.SetErr(out)
		if err := sub.ExecuteContext(cmd.Context()); err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
		}
	}
}
