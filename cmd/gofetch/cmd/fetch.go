package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/gofetch/internal/config"
	"github.com/dbsmedya/gofetch/internal/database"
	"github.com/dbsmedya/gofetch/internal/fetch"
	"github.com/dbsmedya/gofetch/internal/logger"
	"github.com/dbsmedya/gofetch/internal/schema"
	"github.com/dbsmedya/gofetch/internal/transport"
)

var (
	fetchModel  string
	fetchParams []string
	fetchFields []string
	fetchMin    string
	fetchMax    string
)

var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Resolve a fetch tree against the source database",
	Long: `Fetch loads the records of a model selected by params, follows every
dependent field across model references and prints the resolved records
together with the fetch tree that loaded them.

Params are key=value pairs; a comma separated value selects any of the
listed values. A key may be a query expression ("site.name=North").

Example:
  gofetch fetch --model Job --param state=open --field site.name --field notes.id{count}
  gofetch fetch --model Monthly --min 201911 --max 202102`,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchModel, "model", "m", "", "Root model (required)")
	fetchCmd.Flags().StringArrayVarP(&fetchParams, "param", "p", nil, "Request param key=value (repeatable)")
	fetchCmd.Flags().StringArrayVarP(&fetchFields, "field", "f", nil, "Dependent field expression (repeatable)")
	fetchCmd.Flags().StringVar(&fetchMin, "min", "", "Range lower bound")
	fetchCmd.Flags().StringVar(&fetchMax, "max", "", "Range upper bound")
	_ = fetchCmd.MarkFlagRequired("model")
}

func runFetch(cmd *cobra.Command, args []string) error {
	cfg, log, reg, err := setup(true)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	opts, err := fetchOptions()
	if err != nil {
		return err
	}

	ctx, stop := database.SetupSignalHandler(context.Background(), func(sig os.Signal) {
		log.Warnw("Interrupted, aborting fetch", "signal", sig.String())
	})
	defer stop()

	dbManager := database.NewManager(cfg, log)
	if err := dbManager.Connect(ctx); err != nil {
		return err
	}
	defer dbManager.Close()

	mysql, err := transport.NewMySQL(dbManager.Source, cfg, reg, log)
	if err != nil {
		return fmt.Errorf("failed to create transport: %w", err)
	}

	engine, err := newEngine(cfg, reg, mysql, log)
	if err != nil {
		return err
	}
	return fetchAndPrint(ctx, engine, opts)
}

// fetchOptions builds the root node options from the command flags.
func fetchOptions() (fetch.ExpeditorOptions, error) {
	params, err := parseParams(fetchParams)
	if err != nil {
		return fetch.ExpeditorOptions{}, err
	}
	rng, err := parseRange(fetchMin, fetchMax)
	if err != nil {
		return fetch.ExpeditorOptions{}, err
	}
	return fetch.ExpeditorOptions{
		Model:  fetchModel,
		Params: params,
		Fields: append([]string(nil), fetchFields...),
		Range:  rng,
		Name:   "cli",
	}, nil
}

// newEngine wires the MySQL transport into a fetch engine as both the
// request transport and the extra record resolver.
func newEngine(cfg *config.Config, reg *schema.Registry, mysql *transport.MySQL, log *logger.Logger) (*fetch.Engine, error) {
	return fetch.NewEngine(fetch.Options{
		Registry:     reg,
		Transport:    mysql,
		Extra:        mysql,
		Hooks:        fetch.HooksFromConfig(cfg.Engine),
		SimilarLimit: cfg.Engine.SimilarLimit,
		ChunkSize:    cfg.Engine.ChunkSize,
		Log:          log,
	})
}

// fetchAndPrint resolves the root node and prints its records and tree.
func fetchAndPrint(ctx context.Context, engine *fetch.Engine, opts fetch.ExpeditorOptions) error {
	data, x, err := engine.Load(ctx, opts)
	if err != nil {
		printFailure("Fetch failed: %v", err)
		return err
	}

	printHeader("Fetch: %s", x.Model())
	if len(opts.Params) > 0 {
		fmt.Fprintf(outputWriter, "Params: %s\n", formatParams(opts.Params))
	}
	if opts.Range != nil {
		fmt.Fprintf(outputWriter, "Range: %v..%v\n", opts.Range.Min, opts.Range.Max)
	}
	fmt.Fprintln(outputWriter)

	printSection("Records")
	printRecords(engine, x.Schema(), data, opts.Fields)
	fmt.Fprintln(outputWriter)

	printSection("Tree")
	printTree(x, 0)
	fmt.Fprintln(outputWriter)

	if x.State() == fetch.StateAborted {
		printFailure("Fetch aborted")
		return nil
	}
	printOK("%d records", len(data))
	return nil
}

// printRecords prints one row per record: declared fields first, then the
// requested dependent fields.
func printRecords(engine *fetch.Engine, s *schema.Schema, data []*schema.Record, fields []string) {
	header := make([]string, 0, len(s.Fields)+len(fields))
	for _, f := range s.Fields {
		header = append(header, f.Name)
	}
	var extra []string
	for _, f := range fields {
		if !s.HasField(f) {
			extra = append(extra, f)
		}
	}
	header = append(header, extra...)

	exec := engine.Executor()
	rows := make([][]string, 0, len(data))
	for _, rec := range data {
		row := make([]string, 0, len(header))
		for _, f := range s.Fields {
			row = append(row, display(rec.Value(f.Name)))
		}
		for _, f := range extra {
			v, err := exec.Get(rec, f)
			if err != nil {
				row = append(row, "!"+err.Error())
				continue
			}
			row = append(row, display(v))
		}
		rows = append(rows, row)
	}
	printTable(header, rows)
}

// printTree prints x and its children depth first.
func printTree(x *fetch.Expeditor, depth int) {
	label := x.Model()
	if !x.IsRoot() {
		label = x.Field() + " -> " + x.Model()
	}
	detail := []string{x.State().String(), fmt.Sprintf("%d records", len(x.Data()))}
	if fields := x.Fields(); len(fields) > 0 {
		detail = append(detail, "fields: "+strings.Join(fields, ", "))
	}
	if n := len(x.Previous()); n > 0 {
		detail = append(detail, fmt.Sprintf("%d replaced", n))
	}
	fmt.Fprintf(outputWriter, "%s%s (%s)\n", strings.Repeat("  ", depth+1), label, strings.Join(detail, "; "))
	for _, c := range x.Children() {
		printTree(c, depth+1)
	}
}
