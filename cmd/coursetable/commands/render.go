package commands

import (
	"io"
	"os"

	"coursetable/internal/listing"
	"coursetable/internal/render"
	"coursetable/pkg/serviceutil"

	"github.com/spf13/cobra"
)

var (
	renderTerm   *string
	renderFrom   *string
	renderFormat *string
	renderOut    *string
)

func init() {
	renderTerm = renderCmd.Flags().String("term", "", "The term to list, defaults to the current term.")
	renderFrom = renderCmd.Flags().String("from", "", "List every term from this one up to --term.")
	renderFormat = renderCmd.Flags().String("format", string(render.FORMAT_TEXT), "Either html or text.")
	renderOut = renderCmd.Flags().String("out", "", "The file to write to, defaults to stdout.")
	rootCmd.AddCommand(renderCmd)
}

var renderCmd = &cobra.Command{
	Use:   "render <curriculum> [--term <term>] [--from <term>] [--format html|text] [--out <file>]",
	Short: "Renders the course listing of a curriculum from its snapshots.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		a := newApp(cmd.Context(), nil)
		defer a.close()

		t, err := termFlag(*renderTerm, a.clock)
		if err != nil {
			serviceutil.Fatal("failed to parse --term", err)
		}
		opts := listing.Options{Term: t}
		if *renderFrom != "" {
			from, err := parseTerm(*renderFrom)
			if err != nil {
				serviceutil.Fatal("failed to parse --from", err)
			}
			opts.From = &from
		}
		format, err := render.ParseFormat(*renderFormat)
		if err != nil {
			serviceutil.Fatal("invalid --format", err)
		}

		cur, err := a.cfg.Curriculum(args[0])
		if err != nil {
			serviceutil.Fatal("failed to resolve curriculum", err)
		}

		var w io.Writer = os.Stdout
		if *renderOut != "" {
			f, err := os.Create(*renderOut)
			if err != nil {
				serviceutil.Fatal("failed to create output file", err)
			}
			defer f.Close()
			w = f
		}

		err = a.pipeline.Render(cmd.Context(), cur, opts, format, w)
		if err != nil {
			serviceutil.Fatal("failed to render listing", err)
		}
	},
}
