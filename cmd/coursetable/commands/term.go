package commands

import (
	"fmt"
	"os"

	"coursetable/internal/components/chrono"
	"coursetable/internal/term"
	"coursetable/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(termCmd)
}

var termCmd = &cobra.Command{
	Use:   "term [<term>...]",
	Short: "Prints ids and names of terms and their distance to the current term.",
	Run: func(cmd *cobra.Command, args []string) {
		location, err := chrono.LoadLocation("")
		if err != nil {
			serviceutil.Fatal("failed to load timezone", err)
		}
		current, err := term.ForDate(chrono.NewStandardTime(location).Now())
		if err != nil {
			serviceutil.Fatal("failed to determine current term", err)
		}
		if len(args) == 0 {
			args = []string{fmt.Sprint(current.Int())}
		}

		t := table.NewWriter()
		t.SetStyle(table.StyleRounded)
		t.AppendHeader(table.Row{"Id", "Name", "Distance to " + current.Name()})
		for _, arg := range args {
			id, err := parseTerm(arg)
			if err != nil {
				serviceutil.Fatal("failed to parse term", err)
			}
			t.AppendRow(table.Row{id.Int(), id.Name(), term.Distance(id, current)})
		}
		fmt.Fprintln(os.Stdout, t.Render())
	},
}
