// Package commands implements the kflow command line.
package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/go-logr/logr"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/birdayz/kflow/koperator"
	"github.com/birdayz/kflow/operators"
	klog "github.com/birdayz/kflow/pkg/log"
)

type globals struct {
	logLevel string
	zlog     *zerolog.Logger
}

// Execute runs the root command.
func Execute(ctx context.Context, version string) error {
	return newRootCommand(version).ExecuteContext(ctx)
}

func newRootCommand(version string) *cobra.Command {
	g := &globals{}

	rootCmd := &cobra.Command{
		Use:          "kflow",
		Short:        "Run streaming dataflow programs",
		Version:      version,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if g.logLevel != "" {
				os.Setenv(klog.LevelEnv, g.logLevel)
			}
			g.zlog = klog.New()
		},
	}
	rootCmd.PersistentFlags().StringVar(&g.logLevel, "log-level", "", "log level (overrides "+klog.LevelEnv+")")

	rootCmd.AddCommand(newValidateCommand(g))
	rootCmd.AddCommand(newRunCommand(g))
	rootCmd.AddCommand(newTypesCommand())
	rootCmd.AddCommand(newBridgeCommand(g))
	rootCmd.AddCommand(newSnapshotCommand(g))

	return rootCmd
}

func (g *globals) logr() logr.Logger {
	if g.zlog == nil {
		return logr.Discard()
	}
	return klog.Logr(g.zlog).WithName("kflow")
}

func registry() *koperator.Registry {
	return operators.NewRegistry()
}

func readDescription(path string) ([]byte, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read description: %w", err)
	}
	return b, nil
}
