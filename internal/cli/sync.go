package cli

import (
	"io"

	"github.com/Guizzs26/go-pos-sync/internal/service"
	"github.com/spf13/cobra"
)

func NewSyncCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Push queued mutations to the booking API",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "once",
		Short: "Make at most one push attempt",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, false)
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "cycle",
		Short: "Push until the queue is empty or a push fails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSync(cmd, rootOpts, true)
		},
	})

	return cmd
}

func runSync(cmd *cobra.Command, opts *RootOptions, full bool) error {
	a, err := openApp(opts)
	if err != nil {
		return err
	}
	defer a.Close()

	var res service.CycleResult
	if full {
		res, err = a.reconciler.ProcessSyncCycle(cmd.Context(), opts.APIBase)
	} else {
		res, err = a.reconciler.ProcessSyncOnce(cmd.Context(), opts.APIBase)
	}

	// a drain cut short by an error still reports what it got done
	printErr := emit(opts, cmd.OutOrStdout(), res, func(w io.Writer) {
		printf(w, "pushed=%d dropped=%d failures=%d remaining=%d\n", res.Pushed, res.Dropped, res.Failures, res.Remaining)
		if res.AuthExpired {
			printf(w, "session expired: refresh POS_ACCESS_TOKEN or pass --token before the next sync\n")
		}
		for _, d := range res.DroppedErrors {
			printf(w, "dropped %s: %s %s\n", d.OutboxID, d.Code, d.Message)
		}
		if res.LastError != nil && res.Failures > 0 {
			printf(w, "halted on %s: %s %s\n", res.LastError.OutboxID, res.LastError.Code, res.LastError.Message)
		}
	})
	if err != nil {
		return err
	}
	return printErr
}
