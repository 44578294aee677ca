package main

import (
	"context"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/datasource/sys"
	"github.com/go-sif/sifql/types"
	"github.com/spf13/cobra"
)

func init() {
	var columns []string
	cmd := &cobra.Command{
		Use:   "node",
		Short: "Show the system row of the local node",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNode(cmd, columns)
		},
	}
	cmd.Flags().StringSliceVarP(&columns, "column", "c", sys.Columns(), "columns of "+sys.NodesTable+" to output")
	rootCmd.AddCommand(cmd)
}

func runNode(cmd *cobra.Command, columns []string) error {
	n, logger, err := startNode()
	if err != nil {
		return err
	}
	defer logger.Sync()
	defer n.Stop(5 * time.Second)

	phase := &sifql.RoutedCollectPhase{
		PhaseDescriptor: sifql.PhaseDescriptor{
			JobID:             newJobID(),
			Name:              "node",
			Routing:           sifql.NewRouting(map[string]map[string][]int{n.ID(): {}}),
			MaxRowGranularity: sifql.NodeGranularity,
		},
		HandlerName: sys.NodesTable,
	}
	for _, c := range columns {
		phase.Outputs = append(phase.Outputs, &sifql.Reference{
			Table:       sys.NodesTable,
			Column:      sifql.NewColumnIdent(c),
			Type:        types.String,
			Granularity: sifql.NodeGranularity,
		})
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	start := time.Now()
	rows, err := run(ctx, n, phase)
	if err != nil {
		return err
	}
	render(cmd.OutOrStdout(), columns, rows, time.Since(start))
	return nil
}
