package cli

import (
	"io"
	"time"

	"github.com/spf13/cobra"
)

func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Show mutations waiting to be pushed",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "size",
		Short: "Print the number of pending mutations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			n, err := a.enqueuer.QueueSize(cmd.Context())
			if err != nil {
				return err
			}
			return emit(rootOpts, cmd.OutOrStdout(), map[string]int{"queueSize": n}, func(w io.Writer) {
				printf(w, "%d\n", n)
			})
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List pending mutations in push order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			items, err := a.enqueuer.ListQueue(cmd.Context())
			if err != nil {
				return err
			}
			return emit(rootOpts, cmd.OutOrStdout(), items, func(w io.Writer) {
				for _, m := range items {
					created := time.UnixMilli(m.CreatedAt).UTC().Format(time.RFC3339)
					printf(w, "%s  %-14s  %s  attempts=%d  last_error=%s\n", m.ID, m.Type, created, m.Attempts, orDash(m.LastError))
				}
			})
		},
	})

	return cmd
}
