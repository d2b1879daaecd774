package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tsswallet/tss-wallet/engine/wallet/rest"
	"github.com/tsswallet/tss-wallet/module/metrics"
)

var (
	flagRegenerate bool
	flagLabel      string
	flagIndex      int64
	flagOverwrite  bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the key-set and prepare it for signing",
	RunE:  keygen,
}

var deriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Derive a child key from the root key",
	RunE:  derive,
}

var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List the root key and all child keys",
	RunE:  keys,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the phase states and stored artifacts of the key-set",
	RunE:  status,
}

var deleteCmd = &cobra.Command{
	Use:   "delete",
	Short: "Delete the key-set with all child keys and checkpoints",
	RunE:  deleteAll,
}

var deleteChildCmd = &cobra.Command{
	Use:   "delete-child <index>",
	Short: "Delete the child key at index",
	Args:  cobra.ExactArgs(1),
	RunE:  deleteChild,
}

func init() {
	rootCmd.AddCommand(keygenCmd, deriveCmd, keysCmd, statusCmd, deleteCmd, deleteChildCmd)

	keygenCmd.Flags().BoolVar(&flagRegenerate, "regenerate", false, "replace an existing key-set")

	deriveCmd.Flags().StringVar(&flagLabel, "label", "", "label of the child key")
	deriveCmd.Flags().Int64Var(&flagIndex, "index", -1, "index of the child key, the smallest free index if negative")
	deriveCmd.Flags().BoolVar(&flagOverwrite, "overwrite", false, "replace an existing child key at index")
}

func noopMetrics() *metrics.NoopCollector {
	return metrics.NewNoopCollector()
}

func keygen(cmd *cobra.Command, args []string) error {
	ctx, cancel := commandContext()
	defer cancel()

	return withWallet(func(node *walletNode) error {
		info, err := node.registry.GenerateKeys(ctx, flagRegenerate)
		if err != nil {
			return err
		}
		// prepare the remaining phases so that the first signature is fast
		err = node.registry.RunAuxInfo(ctx)
		if err != nil {
			return err
		}
		err = node.registry.RunPresign(ctx, info.Index)
		if err != nil {
			return err
		}

		var key rest.Key
		key.Build(info)
		return printJSON(key)
	})
}

func derive(cmd *cobra.Command, args []string) error {
	var index *uint32
	if flagIndex >= 0 {
		if flagIndex > int64(^uint32(0)) {
			return fmt.Errorf("index %d out of range", flagIndex)
		}
		i := uint32(flagIndex)
		index = &i
	}

	return withWallet(func(node *walletNode) error {
		info, err := node.registry.DeriveChild(index, flagLabel, flagOverwrite)
		if err != nil {
			return err
		}
		var key rest.Key
		key.Build(info)
		return printJSON(key)
	})
}

func keys(cmd *cobra.Command, args []string) error {
	return withWallet(func(node *walletNode) error {
		infos, err := node.registry.ListKeys()
		if err != nil {
			return err
		}
		keys := make([]rest.Key, len(infos))
		for i := range infos {
			keys[i].Build(&infos[i])
		}
		return printJSON(keys)
	})
}

func status(cmd *cobra.Command, args []string) error {
	return withWallet(func(node *walletNode) error {
		status, err := node.registry.Status()
		if err != nil {
			return err
		}
		var response rest.Status
		response.Build(status)
		return printJSON(response)
	})
}

func deleteAll(cmd *cobra.Command, args []string) error {
	return withWallet(func(node *walletNode) error {
		err := node.registry.DeleteAll()
		if err != nil {
			return err
		}
		log.Info().Str("keyset", node.orchestrator.Config().KeySet).Msg("key-set deleted")
		return nil
	})
}

func deleteChild(cmd *cobra.Command, args []string) error {
	index, err := strconv.ParseUint(args[0], 10, 32)
	if err != nil {
		return fmt.Errorf("invalid key index %q: %w", args[0], err)
	}

	return withWallet(func(node *walletNode) error {
		return node.registry.DeleteChild(uint32(index))
	})
}
