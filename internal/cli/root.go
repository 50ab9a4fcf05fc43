package cli

import (
	"fmt"
	"slices"

	"github.com/Guizzs26/go-pos-sync/internal/config"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands
type RootOptions struct {
	Config  *config.Config
	Verbose bool
	Format  string // "json" | "text"
	DataDir string
	APIBase string
	Token   string
}

var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command of posctl
func NewRootCommand(cfg *config.Config) *cobra.Command {
	opts := &RootOptions{Config: cfg}

	cmd := &cobra.Command{
		Use:   "posctl",
		Short: "Inspect and drive the POS offline sync queue",
		Long: `posctl works on the terminal's local store: it queues bookings while
offline, shows what is still waiting, and pushes the queue to the booking API.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !slices.Contains(ValidFormats, opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "log at debug level")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.DataDir, "data-dir", cfg.DataDir, "directory holding the local store")
	cmd.PersistentFlags().StringVar(&opts.APIBase, "api", cfg.APIBaseURL, "booking API base URL")
	cmd.PersistentFlags().StringVar(&opts.Token, "token", cfg.AccessToken, "access token for the booking API")

	cmd.AddCommand(NewEnqueueCommand(opts))
	cmd.AddCommand(NewQueueCommand(opts))
	cmd.AddCommand(NewSyncCommand(opts))
	cmd.AddCommand(NewMetaCommand(opts))
	cmd.AddCommand(NewDroppedCommand(opts))
	cmd.AddCommand(NewAuthCommand(opts))

	return cmd
}
