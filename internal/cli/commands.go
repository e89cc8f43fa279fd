package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/internal/fts/compiler"
	"github.com/Adithya-Monish-Kumar-K/fts-query-platform/pkg/proto"
)

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <expression>",
		Short: "Print the parse tree of an expression",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tree, err := compiler.Parse(strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), tree.String())
			return nil
		},
	}
}

func newCompileCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "compile <expression>",
		Short: "Print the constraint an expression compiles to",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.compiler()
			if err != nil {
				return err
			}
			resp, err := b.Compile(cmd.Context(), proto.CompileRequest{Query: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Constraint)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func newQueryCmd(a *app) *cobra.Command {
	var (
		req    proto.QueryRequest
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "query <expression>",
		Short: "Run an expression and print one page of rows",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := a.connect()
			if err != nil {
				return err
			}
			req.Query = strings.Join(args, " ")
			page, err := b.Query(cmd.Context(), req)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), page)
			}
			return writePage(cmd.OutOrStdout(), page)
		},
	}
	cmd.Flags().StringArrayVarP(&req.Selectors, "selector", "s", nil, "selector as alias or alias:source (repeatable)")
	cmd.Flags().StringVarP(&req.Field, "field", "f", "", "field to search: text, title or body")
	cmd.Flags().IntVar(&req.Skip, "skip", 0, "rows to skip")
	cmd.Flags().IntVarP(&req.Limit, "limit", "n", 0, "rows per page (0 uses the default)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writePage(w io.Writer, page *proto.QueryPage) error {
	fmt.Fprintf(w, "constraint: %s\n", page.Constraint)
	if len(page.Rows) == 0 {
		fmt.Fprintln(w, "No results found.")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	header := []string{"#", "ID", "SCORE"}
	if len(page.Selectors) > 1 {
		header = append(header, page.Selectors...)
	}
	fmt.Fprintln(tw, strings.Join(header, "\t"))
	for _, row := range page.Rows {
		cells := []string{
			fmt.Sprint(page.Start + row.Index),
			row.ID,
			fmt.Sprintf("%.4f", row.Score),
		}
		if len(page.Selectors) > 1 {
			names := make([]string, 0, len(row.Selectors))
			for name := range row.Selectors {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				cells = append(cells, fmt.Sprintf("%.4f", row.Selectors[name].Score))
			}
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	if page.HasMore {
		next := page.Start + len(page.Rows) + page.Filtered
		fmt.Fprintf(w, "more rows available (use --skip %d)\n", next)
	}
	return nil
}
