package cli

import (
	"encoding/json"
	"fmt"

	"github.com/LeJamon/goOfferd/internal/core/identity"
	"github.com/spf13/cobra"
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key",
	Long: `Generate a secp256k1 key pair and print it with the identity it signs for.
Keep the private key secret; pass it to "offerd rpc --key" to sign requests.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		kp, err := identity.GenerateKeyPair()
		if err != nil {
			return fmt.Errorf("failed to generate key: %w", err)
		}
		data, err := json.MarshalIndent(map[string]string{
			"identity":    kp.ID().String(),
			"public_key":  kp.PublicKeyHex(),
			"private_key": kp.PrivateKeyHex(),
		}, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)
}
