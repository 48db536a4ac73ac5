package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofetch/internal/schema"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate configuration and model references",
	Long: `Validate checks the configuration file and registers every model,
then prints the models and the references between them.

Checks performed:
  - Configuration syntax and required fields
  - Unique model and field names
  - Every reference names a defined model
  - Engine switches (key order, backward reference naming, alias pattern)

No database connection is made.

Example:
  gofetch validate --config gofetch.yaml`,
	RunE: runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	_, _, reg, err := setup(false)
	if err != nil {
		printFailure("Validation failed: %v", err)
		return err
	}

	printHeader("Configuration: %s", GetConfigFile())
	printModels(reg)
	fmt.Fprintln(outputWriter)
	printReferences(reg)
	fmt.Fprintln(outputWriter)

	printOK("%d models validated", len(reg.Schemas()))
	return nil
}

func printModels(reg *schema.Registry) {
	printSection("Models")
	rows := make([][]string, 0)
	for _, s := range reg.Schemas() {
		rows = append(rows, []string{
			s.Name,
			s.Aka,
			strings.Join(s.IDFields, ","),
			fmt.Sprint(len(s.Fields)),
			strings.Join(s.Calendar(), ","),
			strings.Join(s.Edges(), ","),
		})
	}
	printTable([]string{"MODEL", "AKA", "KEY", "FIELDS", "CALENDAR", "EDGES"}, rows)
}

func printReferences(reg *schema.Registry) {
	printSection("References")
	g := reg.Graph()
	rows := make([][]string, 0)
	for _, e := range g.AllEdges() {
		from, ok := reg.Lookup(e.From)
		if !ok {
			continue
		}
		for _, meta := range g.GetEdgeMeta(e.From, e.To) {
			info := from.Info(meta.Field)
			rows = append(rows, []string{e.From, meta.Field, e.To, meta.Property, info.Inverse})
		}
	}
	if len(rows) == 0 {
		fmt.Fprintln(outputWriter, "  (none)")
		return
	}
	printTable([]string{"FROM", "FIELD", "TO", "PROPERTY", "INVERSE"}, rows)
}
