package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func NewMetaCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Read or write store metadata",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get <key>",
		Short: "Print a metadata value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			value, ok, err := a.store.GetMeta(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("meta key %q is not set", args[0])
			}
			return emit(rootOpts, cmd.OutOrStdout(), map[string]string{args[0]: value}, func(w io.Writer) {
				printf(w, "%s\n", value)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "set <key> <value>",
		Short: "Write a metadata value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.store.SetMeta(cmd.Context(), args[0], args[1])
		},
	})

	return cmd
}
