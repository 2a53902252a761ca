package commands

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/birdayz/kflow"
	"github.com/birdayz/kflow/internal/checkpoint"
	"github.com/birdayz/kflow/kstore"
)

func newSnapshotCommand(g *globals) *cobra.Command {
	var storeSpec string

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage program snapshots in a store",
		Long: `Manage program snapshots. The store is selected with --store:

  file:<dir>     one checkpoint file per program
  pebble:<dir>   pebble database
  sqlite:<path>  sqlite database`,
	}
	cmd.PersistentFlags().StringVar(&storeSpec, "store", "file:snapshots", "snapshot store")

	withStore := func(run func(cmd *cobra.Command, args []string, store kstore.Store) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) (err error) {
			store, err := openStore(cmd.Context(), storeSpec)
			if err != nil {
				return err
			}
			defer func() {
				err = multierr.Append(err, store.Close())
			}()
			return run(cmd, args, store)
		}
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored program ids",
		Args:  cobra.NoArgs,
		RunE: withStore(func(cmd *cobra.Command, args []string, store kstore.Store) error {
			ids, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			for _, id := range ids {
				fmt.Fprintln(cmd.OutOrStdout(), id)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <id>",
		Short: "Restore a snapshot and describe the program",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store kstore.Store) error {
			data, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			p, err := kflow.Restore(data, registry(), kflow.WithLogr(g.logr()))
			if err != nil {
				return err
			}
			d := p.Description()
			w := cmd.OutOrStdout()
			fmt.Fprintf(w, "id:        %s\n", args[0])
			fmt.Fprintf(w, "title:     %s\n", d.Title)
			fmt.Fprintf(w, "size:      %d bytes\n", len(data))
			fmt.Fprintf(w, "entry:     %s\n", d.EntryOperator)
			for _, od := range d.Operators {
				fmt.Fprintf(w, "operator:  %s (%s)\n", od.ID, od.Type)
			}
			return nil
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a stored snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: withStore(func(cmd *cobra.Command, args []string, store kstore.Store) error {
			return store.Delete(cmd.Context(), args[0])
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "import <id> <file>",
		Short: "Store the snapshot file written by run --save under id",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store kstore.Store) error {
			data, err := checkpoint.NewFile(args[1]).Read()
			if err != nil {
				return err
			}
			if _, err := kflow.Restore(data, registry()); err != nil {
				return fmt.Errorf("%s: %w", args[1], err)
			}
			return store.Put(cmd.Context(), args[0], data)
		}),
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "export <id> <file>",
		Short: "Write a stored snapshot to a file usable with run --restore",
		Args:  cobra.ExactArgs(2),
		RunE: withStore(func(cmd *cobra.Command, args []string, store kstore.Store) error {
			data, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return checkpoint.NewFile(args[1]).Write(data)
		}),
	})

	return cmd
}
