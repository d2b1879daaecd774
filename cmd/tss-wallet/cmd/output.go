package cmd

import (
	"encoding/json"
	"fmt"
	"os"
)

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) error {
	encoded, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("could not encode output: %w", err)
	}
	_, err = fmt.Fprintln(os.Stdout, string(encoded))
	return err
}

// withWallet opens the wallet without metrics, runs fn and closes the wallet.
func withWallet(fn func(node *walletNode) error) (err error) {
	node, err := openWallet(noopMetrics())
	if err != nil {
		return err
	}
	defer func() {
		closeErr := node.Close()
		if err == nil {
			err = closeErr
		}
	}()
	return fn(node)
}
