package cli

import (
	"io"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/models"
	"github.com/spf13/cobra"
)

func NewDroppedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "dropped",
		Short: "Review mutations the booking API rejected for good",
	}

	var all bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List dropped mutations, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			var letters []models.DeadLetter
			if all {
				letters, err = a.feedback.History(cmd.Context())
			} else {
				letters, err = a.feedback.Pending(cmd.Context())
			}
			if err != nil {
				return err
			}

			return emit(rootOpts, cmd.OutOrStdout(), letters, func(w io.Writer) {
				for _, d := range letters {
					dropped := time.UnixMilli(d.DroppedAt).UTC().Format(time.RFC3339)
					printf(w, "%s  %s  %s  %s  status=%d  %s\n", d.ID, dropped, d.Type, d.Code, d.Status, orDash(d.Message))
				}
			})
		},
	}
	list.Flags().BoolVar(&all, "all", false, "include acknowledged entries")
	cmd.AddCommand(list)

	cmd.AddCommand(&cobra.Command{
		Use:   "ack <id>",
		Short: "Mark a dropped mutation as seen",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			return a.feedback.Acknowledge(cmd.Context(), args[0])
		},
	})

	return cmd
}
