package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofetch/internal/similar"
)

var (
	rangesModel  string
	rangesMin    string
	rangesMax    string
	rangesParams []string
)

var rangesCmd = &cobra.Command{
	Use:   "ranges",
	Short: "Show the calendar decomposition of a range request",
	Long: `Ranges splits a request over a calendar range into the fewest
sub-requests aligned to whole years, months or days of a time-partitioned
model. Bounds are numbers shaped like the model's calendar fields, e.g.
2020, 202011 or 20201101.

Example:
  gofetch ranges --model Monthly --min 201911 --max 202102 --param amount=10`,
	RunE: runRanges,
}

func init() {
	rootCmd.AddCommand(rangesCmd)

	rangesCmd.Flags().StringVarP(&rangesModel, "model", "m", "", "Time-partitioned model (required)")
	rangesCmd.Flags().StringVar(&rangesMin, "min", "", "Range lower bound (required)")
	rangesCmd.Flags().StringVar(&rangesMax, "max", "", "Range upper bound (required)")
	rangesCmd.Flags().StringArrayVarP(&rangesParams, "param", "p", nil, "Request param key=value (repeatable)")
	_ = rangesCmd.MarkFlagRequired("model")
	_ = rangesCmd.MarkFlagRequired("min")
	_ = rangesCmd.MarkFlagRequired("max")
}

func runRanges(cmd *cobra.Command, args []string) error {
	_, _, reg, err := setup(false)
	if err != nil {
		return err
	}

	s, ok := reg.Lookup(rangesModel)
	if !ok {
		return fmt.Errorf("unknown model %q", rangesModel)
	}
	names := s.Calendar()
	if len(names) == 0 {
		return fmt.Errorf("model %s has no calendar fields", s.Name)
	}

	params, err := parseParams(rangesParams)
	if err != nil {
		return err
	}
	rng, err := parseRange(rangesMin, rangesMax)
	if err != nil {
		return err
	}

	sets, err := similar.Decompose(params, names, rng)
	if err != nil {
		return fmt.Errorf("failed to decompose range: %w", err)
	}

	printHeader("Ranges: %s %v..%v", s.Name, rng.Min, rng.Max)
	rows := make([][]string, len(sets))
	for i, set := range sets {
		rows[i] = []string{fmt.Sprint(i + 1), formatParams(set)}
	}
	printTable([]string{"#", "PARAMS"}, rows)
	fmt.Fprintln(outputWriter)
	printOK("%d requests", len(sets))
	return nil
}
