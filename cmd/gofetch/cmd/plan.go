package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofetch/internal/fetch"
	"github.com/dbsmedya/gofetch/internal/query"
	"github.com/dbsmedya/gofetch/internal/schema"
)

var (
	planModel   string
	planQueries []string
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show how query expressions resolve across models",
	Long: `Plan parses each query expression and walks its steps over the model
references, showing which model every step lands on and which key the
fetch tree would use to load it.

Example:
  gofetch plan --model Job -q "site.name" -q "notes[open=1].id{count}"`,
	RunE: runPlan,
}

func init() {
	rootCmd.AddCommand(planCmd)

	planCmd.Flags().StringVarP(&planModel, "model", "m", "", "Model the expressions start from (required)")
	planCmd.Flags().StringArrayVarP(&planQueries, "query", "q", nil, "Query expression (repeatable)")
	_ = planCmd.MarkFlagRequired("model")
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, _, reg, err := setup(false)
	if err != nil {
		return err
	}

	s, ok := reg.Lookup(planModel)
	if !ok {
		return fmt.Errorf("unknown model %q", planModel)
	}

	queries := append(append([]string(nil), planQueries...), args...)
	if len(queries) == 0 {
		return fmt.Errorf("no query expressions given")
	}

	parser := query.NewParser(query.NewSelectors(fetch.HooksFromConfig(cfg.Engine).Selectors))

	printHeader("Plan: %s", s.Name)
	for _, q := range queries {
		seq, err := parser.Parse(q)
		if err != nil {
			printFailure("%s: %v", q, err)
			return err
		}
		fmt.Fprintln(outputWriter)
		printSection(seq.String())
		printTable([]string{"#", "STEP", "KIND", "MODEL", "FIELD", "INDEX"}, planSteps(s, seq))
	}
	return nil
}

// planSteps resolves each step of seq starting at s. Steps past a plain
// field are shown without a model.
func planSteps(s *schema.Schema, seq *query.Sequence) [][]string {
	rows := make([][]string, 0, len(seq.Steps))
	current := s
	for i, step := range seq.Steps {
		row := []string{fmt.Sprint(i + 1), step.String(), "", "", "", ""}
		if current == nil {
			row[2] = "value"
			rows = append(rows, row)
			continue
		}

		if current.Kind(step.Field) == schema.KindComputed {
			c, _ := current.Computed(step.Field)
			row[2] = "computed"
			row[3] = current.Name
			row[4] = strings.Join(c.Fields, " ")
			rows = append(rows, row)
			current = nil
			continue
		}

		info := current.Info(step.Field)
		row[2] = info.Kind.String()
		row[4] = info.Field
		if info.IsReference() {
			row[3] = info.Model
			row[5] = info.Index
			current = info.Target
		} else {
			row[3] = current.Name
			current = nil
		}
		rows = append(rows, row)
	}
	return rows
}
