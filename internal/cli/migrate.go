package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/congo-pay/congo_points/internal/infra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	var databaseURL string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending ledger schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if databaseURL == "" {
				databaseURL = os.Getenv("DATABASE_URL")
			}
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}
			if err := infra.Migrate(databaseURL); err != nil {
				return err
			}
			return write(cmd.OutOrStdout(), rootOpts, map[string]string{"status": "migrated"}, "migrations applied")
		},
	}

	cmd.Flags().StringVar(&databaseURL, "database-url", "", "postgres url (defaults to DATABASE_URL)")
	return cmd
}
