// Package cli contains the Cobra commands of the snowflake tool.
package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emadnahed/flakeid/internal/config"
	"github.com/emadnahed/flakeid/internal/idgen"
)

const (
	defaultMaxRetries   = 3
	defaultMaxClockWait = time.Second
)

// NewRoot constructs the root command and registers every subcommand.
func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:           "snowflake",
		Short:         "Generate and analyze snowflake IDs",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().Int64("node", -1, "node ID (0-1023); defaults to SNOWFLAKE_NODE_ID or a hash of the host name")

	root.AddCommand(
		newGenerateCommand(),
		newInspectCommand(),
		newBenchCommand(),
		newInfoCommand(),
	)
	return root
}

// newGenerator builds a generator for the node selected by --node, falling
// back to the environment configuration.
func newGenerator(cmd *cobra.Command) (*idgen.RetryingGenerator, uint16, error) {
	nodeID, err := cmd.Flags().GetInt64("node")
	if err != nil {
		return nil, 0, err
	}

	maxRetries, maxWait := defaultMaxRetries, defaultMaxClockWait
	if !cmd.Flags().Changed("node") {
		cfg, err := config.Load()
		if err != nil {
			return nil, 0, err
		}
		nodeID, err = cfg.ResolveNodeID(idgen.LocalNodeID)
		if err != nil {
			return nil, 0, err
		}
		maxRetries, maxWait = cfg.Snowflake.MaxRetries, cfg.Snowflake.MaxClockWait
	}

	base, err := idgen.NewSnowflakeGenerator(nodeID)
	if err != nil {
		return nil, 0, fmt.Errorf("node %d: %w", nodeID, err)
	}
	return idgen.NewRetryingGenerator(base, maxRetries, maxWait), base.NodeID(), nil
}
