package cli

import (
	"github.com/spf13/cobra"

	"github.com/congo-pay/congo_points/internal/account"
)

// NewAddressCommand creates the address command, which converts between SS58
// and hex renderings of an account id.
func NewAddressCommand(rootOpts *RootOptions) *cobra.Command {
	var prefix uint8

	cmd := &cobra.Command{
		Use:   "address <ss58|hex>",
		Short: "Show the SS58 and hex forms of an account id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := account.Parse(args[0])
			if err != nil {
				return err
			}
			ss58 := account.Encode(id, prefix)
			return write(cmd.OutOrStdout(), rootOpts, map[string]any{
				"ss58":   ss58,
				"hex":    id.Hex(),
				"prefix": prefix,
			}, ss58, id.Hex())
		},
	}

	cmd.Flags().Uint8Var(&prefix, "prefix", account.GenericPrefix, "SS58 network prefix (0-63)")
	return cmd
}
