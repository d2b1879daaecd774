package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	moduletss "github.com/tsswallet/tss-wallet/module/tss"
)

const envPrefix = "TSSW"

var (
	flagConfig string
	log        zerolog.Logger
)

var rootCmd = &cobra.Command{
	Use:   "tss-wallet",
	Short: "Threshold ECDSA wallet running every signing party in one process",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initLogger()
	},
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "c", "", "path to a yaml configuration file")
	addWalletFlags(rootCmd.PersistentFlags())
	_ = viper.BindPFlags(rootCmd.PersistentFlags())

	log = zerolog.New(zerolog.NewConsoleWriter()).With().Timestamp().Logger()

	cobra.OnInitialize(initConfig)
}

// addWalletFlags registers the options shared by every command. Each flag
// can also be set from the configuration file or a TSSW_ prefixed
// environment variable.
func addWalletFlags(flags *pflag.FlagSet) {
	defaults := moduletss.DefaultConfig()
	flags.String("datadir", "./tss-wallet-data", "directory of the checkpoint database")
	flags.String("keyset", defaults.KeySet, "id of the key-set to operate on")
	flags.Int("parties", defaults.Parties, "number of participants (N)")
	flags.Int("threshold", defaults.Threshold, "number of participants required to sign (t)")
	flags.Duration("timeout", 5*time.Minute, "timeout of a single command, 0 for none")
	flags.String("loglevel", "info", "level for logging output")
	flags.Int("workers", 2, "number of background jobs run concurrently")
	flags.Int("retained-jobs", moduletss.DefaultRetainedJobs, "number of finished background jobs kept for polling")
}

func initConfig() {
	viper.SetEnvPrefix(envPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if flagConfig == "" {
		return
	}
	viper.SetConfigFile(flagConfig)
	if err := viper.ReadInConfig(); err != nil {
		fmt.Printf("could not read config file %s: %v\n", flagConfig, err)
		os.Exit(1)
	}
}

func initLogger() error {
	level, err := zerolog.ParseLevel(strings.ToLower(viper.GetString("loglevel")))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log = log.Level(level)
	return nil
}

// walletConfig returns the orchestrator configuration from flags, config
// file and environment.
func walletConfig() moduletss.Config {
	return moduletss.Config{
		KeySet:    viper.GetString("keyset"),
		Parties:   viper.GetInt("parties"),
		Threshold: viper.GetInt("threshold"),
	}
}
