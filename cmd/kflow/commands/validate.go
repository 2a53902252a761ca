package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/birdayz/kflow"
)

var errInvalid = errors.New("invalid")

func newValidateCommand(g *globals) *cobra.Command {
	var operator bool

	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a program description",
		Long: `Validate a JSON or YAML program description and report every problem
found, each with the location it refers to.`,
		Example: `  kflow validate program.json
  kflow validate --operator operator.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := readDescription(args[0])
			if err != nil {
				return err
			}

			if operator {
				err = kflow.ValidateOperator(b, registry())
			} else {
				err = kflow.Validate(b, registry())
			}
			if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}

			findings := multierr.Errors(err)
			for _, e := range findings {
				fmt.Fprintln(cmd.OutOrStdout(), e)
			}
			g.zlog.Debug().Int("findings", len(findings)).Str("file", args[0]).Msg("Validation failed")
			return fmt.Errorf("%s: %w", args[0], errInvalid)
		},
	}

	cmd.Flags().BoolVar(&operator, "operator", false, "validate a single operator object")
	return cmd
}

func newTypesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "types",
		Short: "List the registered operator types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, t := range registry().Types() {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}
