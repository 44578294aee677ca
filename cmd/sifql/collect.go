package main

import (
	"context"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/accumulators"
	"github.com/spf13/cobra"
)

type collectFlags struct {
	columns       []string
	count         bool
	limit         int
	compression   string
	sharedStorage bool
	timeout       time.Duration
}

func init() {
	flags := &collectFlags{}
	cmd := &cobra.Command{
		Use:   "collect [flags] URI...",
		Short: "Collect rows from JSON lines files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCollect(cmd, flags, args)
		},
	}
	cmd.Flags().StringSliceVarP(&flags.columns, "column", "c", nil, "columns to output as path[:type], e.g. details.age:integer")
	cmd.Flags().BoolVar(&flags.count, "count", false, "output count(*) instead of the rows")
	cmd.Flags().IntVar(&flags.limit, "limit", -1, "maximum number of rows to output")
	cmd.Flags().StringVar(&flags.compression, "compression", "", "compression of the files, e.g. gzip")
	cmd.Flags().BoolVar(&flags.sharedStorage, "shared", false, "split the files between the routed nodes")
	cmd.Flags().DurationVar(&flags.timeout, "timeout", time.Minute, "maximum time to wait for all rows")
	rootCmd.AddCommand(cmd)
}

func runCollect(cmd *cobra.Command, flags *collectFlags, uris []string) error {
	n, logger, err := startNode()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer n.Stop(5 * time.Second)

	phase := &sifql.FileURICollectPhase{
		PhaseDescriptor: sifql.PhaseDescriptor{
			JobID:                 newJobID(),
			Name:                  "collect",
			Routing:               sifql.NewRouting(map[string]map[string][]int{n.ID(): {}}),
			MaxRowGranularity:     sifql.DocGranularity,
			UnorderedLimitAllowed: true,
		},
		URIs:          uris,
		Compression:   flags.compression,
		SharedStorage: flags.sharedStorage,
	}
	var header []string
	for _, def := range flags.columns {
		ref, err := parseColumn(n.Types(), def)
		if err != nil {
			return err
		}
		phase.Outputs = append(phase.Outputs, ref)
		header = append(header, ref.Column.FQN())
	}
	if flags.count {
		phase.Projections = []sifql.Projection{&sifql.AggregationProjection{Aggregations: []sifql.Aggregation{{
			Ident: sifql.FunctionIdent{Name: accumulators.CountName},
			From:  sifql.IterStep,
			To:    sifql.FinalStep,
		}}}}
		header = []string{"count(*)"}
	}
	if flags.limit >= 0 {
		limit := flags.limit
		phase.Limit = &limit
	}

	ctx, cancel := context.WithTimeout(context.Background(), flags.timeout)
	defer cancel()
	start := time.Now()
	rows, err := run(ctx, n, phase)
	if err != nil {
		return err
	}
	render(cmd.OutOrStdout(), header, rows, time.Since(start))
	return nil
}
