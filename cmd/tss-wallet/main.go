package main

import (
	"github.com/tsswallet/tss-wallet/cmd/tss-wallet/cmd"
)

func main() {
	cmd.Execute()
}
