package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/Guizzs26/go-pos-sync/internal/service"
	"github.com/spf13/cobra"
)

type EnqueueBookingOptions struct {
	*RootOptions
	Customer string
	Start    string
	End      string
	Hours    int
	Players  int
	Room     string
}

func NewEnqueueCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "enqueue",
		Short: "Record a local change and queue it for the booking API",
	}
	cmd.AddCommand(newEnqueueBookingCommand(rootOpts))
	cmd.AddCommand(newEnqueueRoomStatusCommand(rootOpts))
	return cmd
}

func newEnqueueBookingCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &EnqueueBookingOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "booking",
		Short: "Create a booking locally and queue its create",
		Long: `Create a booking locally and queue its create.

Example:
  posctl enqueue booking --customer "Ada" --start 2026-10-20T14:00:00Z --hours 2`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return enqueueBooking(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Customer, "customer", "", "customer name")
	cmd.Flags().StringVar(&opts.Start, "start", "", "start time (RFC 3339)")
	cmd.Flags().StringVar(&opts.End, "end", "", "end time (RFC 3339); overrides --hours")
	cmd.Flags().IntVar(&opts.Hours, "hours", 1, "duration in hours when --end is not given")
	cmd.Flags().IntVar(&opts.Players, "players", 0, "number of players")
	cmd.Flags().StringVar(&opts.Room, "room", "", "remote room id")
	_ = cmd.MarkFlagRequired("customer")
	_ = cmd.MarkFlagRequired("start")

	return cmd
}

func enqueueBooking(cmd *cobra.Command, opts *EnqueueBookingOptions) error {
	start, err := time.Parse(time.RFC3339, opts.Start)
	if err != nil {
		return fmt.Errorf("invalid --start: %w", err)
	}
	end := start.Add(time.Duration(opts.Hours) * time.Hour)
	if opts.End != "" {
		if end, err = time.Parse(time.RFC3339, opts.End); err != nil {
			return fmt.Errorf("invalid --end: %w", err)
		}
	}
	if !end.After(start) {
		return fmt.Errorf("booking must end after it starts")
	}

	a, err := openApp(opts.RootOptions)
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.enqueuer.EnqueueBooking(cmd.Context(), service.BookingInput{
		CustomerName: opts.Customer,
		StartsAt:     start,
		EndsAt:       end,
		Players:      opts.Players,
		RoomID:       opts.Room,
	})
	if err != nil {
		return err
	}

	return emit(opts.RootOptions, cmd.OutOrStdout(), res, func(w io.Writer) {
		printf(w, "booking %s queued as %s (%d pending)\n", res.BookingID, res.OutboxID, res.QueueSize)
	})
}

func newEnqueueRoomStatusCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "room-status <room-id> <status>",
		Short: "Queue a room status change",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(rootOpts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.enqueuer.EnqueueRoomStatus(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			return emit(rootOpts, cmd.OutOrStdout(), res, func(w io.Writer) {
				printf(w, "room %s -> %s queued as %s (%d pending, %d replaced)\n", args[0], args[1], res.OutboxID, res.QueueSize, res.Superseded)
			})
		},
	}
}
