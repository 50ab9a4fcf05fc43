package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

func NewAuthCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage the refresh token kept in the OS credential store",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "login-token [token]",
		Short: "Store a refresh token (read from stdin when omitted)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			token := ""
			if len(args) == 1 {
				token = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && err != io.EOF {
					return fmt.Errorf("failed to read token: %w", err)
				}
				token = line
			}
			token = strings.TrimSpace(token)
			if token == "" {
				return fmt.Errorf("empty token")
			}

			session := newSession(rootOpts, newLogger(rootOpts))
			if err := session.SaveRefreshToken(token); err != nil {
				return fmt.Errorf("failed to store refresh token: %w", err)
			}
			printf(cmd.OutOrStdout(), "refresh token stored\n")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "logout",
		Short: "Forget the stored refresh token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := newSession(rootOpts, newLogger(rootOpts))
			session.ClearRefreshToken()
			printf(cmd.OutOrStdout(), "signed out\n")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Report whether a refresh token is stored",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			session := newSession(rootOpts, newLogger(rootOpts))
			_, ok := session.LoadRefreshToken()
			status := map[string]bool{
				"refreshToken": ok,
				"accessToken":  session.AccessToken() != "",
			}
			return emit(rootOpts, cmd.OutOrStdout(), status, func(w io.Writer) {
				printf(w, "refresh token: %t\naccess token: %t\n", ok, status["accessToken"])
			})
		},
	})

	return cmd
}
