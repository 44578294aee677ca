package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-sif/sifql"
	"github.com/go-sif/sifql/cluster"
	"github.com/go-sif/sifql/config"
	serrors "github.com/go-sif/sifql/errors"
	"github.com/go-sif/sifql/logging"
	"github.com/go-sif/sifql/receivers"
	"github.com/go-sif/sifql/types"
	uuid "github.com/gofrs/uuid"
	"github.com/olekukonko/tablewriter"
	"go.uber.org/zap"
)

var (
	configPath string
	nodeID     string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to a configuration file")
	rootCmd.PersistentFlags().StringVar(&nodeID, "node-id", "local", "id of the local node, unless configured otherwise")
}

// startNode creates the local node from the configuration file and the environment
func startNode() (*cluster.Node, *zap.Logger, error) {
	opts, err := config.LoadWithDefaults(configPath, map[string]interface{}{"node_id": nodeID})
	if err != nil {
		return nil, nil, err
	}
	level, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	logger, err := logging.NewLogger(level, opts.Development)
	if err != nil {
		return nil, nil, err
	}
	n, err := cluster.CreateNode(opts, logger)
	if err != nil {
		return nil, nil, err
	}
	return n, logger, nil
}

// run executes phase on n and waits for all of its rows
func run(ctx context.Context, n *cluster.Node, phase sifql.CollectPhase) ([]sifql.ArrayRow, error) {
	jobCtx := n.NewJob(phase.Descriptor().JobID)
	defer jobCtx.Close()
	sink := receivers.NewCollectingRowReceiver(0)
	if err := n.Collect(phase, sink, jobCtx); err != nil {
		return nil, err
	}
	rows, err := sink.Result(ctx)
	if err != nil && ctx.Err() != nil {
		jobCtx.Kill(serrors.KilledByClient)
	}
	return rows, err
}

// parseColumn parses a column definition of the form path[:type]
func parseColumn(typs *types.Registry, def string) (*sifql.Reference, error) {
	path, typeName := def, types.String.Name()
	if idx := strings.LastIndex(def, ":"); idx >= 0 {
		path, typeName = def[:idx], def[idx+1:]
	}
	t, ok := typs.LookupName(strings.ToLower(typeName))
	if !ok {
		return nil, fmt.Errorf("Unknown type %s in column %s", typeName, def)
	}
	return sifql.NewReference(path, t), nil
}

func newJobID() uuid.UUID {
	return uuid.Must(uuid.NewV4())
}

func render(w io.Writer, header []string, rows []sifql.ArrayRow, elapsed time.Duration) {
	table := tablewriter.NewWriter(w)
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)
	table.SetHeader(header)
	for _, row := range rows {
		cells := make([]string, len(row))
		for i, v := range row {
			if v == nil {
				cells[i] = "NULL"
			} else {
				cells[i] = fmt.Sprintf("%v", v)
			}
		}
		table.Append(cells)
	}
	table.Render()
	plural := "s"
	if len(rows) == 1 {
		plural = ""
	}
	fmt.Fprintf(w, "(%d row%s in %s)\n", len(rows), plural, elapsed.Round(time.Microsecond))
}
