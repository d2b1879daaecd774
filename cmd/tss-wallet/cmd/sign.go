package cmd

import (
	"encoding/hex"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tsswallet/tss-wallet/engine/wallet/rest"
	"github.com/tsswallet/tss-wallet/model/tss"
)

var (
	flagKeyIndex  uint32
	flagSignature string
)

var signCmd = &cobra.Command{
	Use:   "sign <message>",
	Short: "Sign the SHA-256 digest of message",
	Args:  cobra.ExactArgs(1),
	RunE:  sign,
}

var verifyCmd = &cobra.Command{
	Use:   "verify <message>",
	Short: "Verify a signature over the SHA-256 digest of message",
	Args:  cobra.ExactArgs(1),
	RunE:  verify,
}

func init() {
	rootCmd.AddCommand(signCmd, verifyCmd)

	for _, c := range []*cobra.Command{signCmd, verifyCmd} {
		c.Flags().Uint32Var(&flagKeyIndex, "key-index", tss.RootIndex, "index of the key, 0 for the root key")
	}
	verifyCmd.Flags().StringVar(&flagSignature, "signature", "", "hex encoded signature r || s")
	_ = verifyCmd.MarkFlagRequired("signature")
}

func sign(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	return withWallet(func(node *walletNode) error {
		result, err := node.registry.Sign(ctx, []byte(args[0]), flagKeyIndex)
		if err != nil {
			return err
		}
		var sig rest.Signature
		sig.Build(result)
		return printJSON(sig)
	})
}

func verify(cmd *cobra.Command, args []string) error {
	raw, err := hex.DecodeString(flagSignature)
	if err != nil {
		return fmt.Errorf("invalid signature: %w", err)
	}
	signature, err := tss.SignatureFromBytes(raw)
	if err != nil {
		return err
	}

	return withWallet(func(node *walletNode) error {
		valid, err := node.registry.Verify([]byte(args[0]), signature, flagKeyIndex)
		if err != nil {
			return err
		}
		return printJSON(rest.Verification{
			KeyIndex:     flagKeyIndex,
			SignatureHex: signature.String(),
			Valid:        valid,
		})
	})
}
