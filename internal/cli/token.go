package cli

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/congo-pay/congo_points/internal/account"
	"github.com/congo-pay/congo_points/internal/auth"
)

// NewTokenCommand creates the token command, which signs a caller token.
func NewTokenCommand(rootOpts *RootOptions) *cobra.Command {
	var (
		accountFlag string
		secret      string
		ttl         time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign an access token for an account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := account.Parse(accountFlag)
			if err != nil {
				return fmt.Errorf("--account: %w", err)
			}
			if secret == "" {
				secret = os.Getenv("JWT_SECRET")
			}
			token, err := auth.NewTokens(secret).Sign(id, ttl)
			if err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), rootOpts, map[string]string{
				"account": id.String(),
				"token":   token,
			}, token)
		},
	}

	cmd.Flags().StringVar(&accountFlag, "account", "", "SS58 or 0x-hex account id")
	cmd.Flags().StringVar(&secret, "secret", "", "signing secret (defaults to JWT_SECRET)")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("account")
	return cmd
}
