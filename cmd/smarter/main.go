package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/smarter-sh/smarter/pkg/log"
)

var (
	// Version information (set via ldflags during build)
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "smarter",
	Short: "Smarter - declarative resource management for SaaS chatbots",
	Long: `Smarter manages platform resources through declarative YAML
manifests. Describe the desired state of a chatbot, plugin, SQL
connection or secret, apply it, and the platform reconciles the
persisted state to match.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		log.Init(log.Config{
			Level:      log.Level(viper.GetString("log_level")),
			JSONOutput: viper.GetBool("json_logs"),
		})
	},
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"Smarter version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	viper.SetEnvPrefix("SMARTER")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	viper.SetDefault("host", "http://127.0.0.1:8000")
	viper.SetDefault("listen_addr", "127.0.0.1:8000")
	viper.SetDefault("data_dir", defaultDataDir())
	viper.SetDefault("log_level", "info")
	viper.SetDefault("json_logs", false)

	rootCmd.PersistentFlags().String("host", viper.GetString("host"), "Server base URL")
	rootCmd.PersistentFlags().String("api-key", "", "API key (or SMARTER_API_KEY)")
	viper.BindPFlag("host", rootCmd.PersistentFlags().Lookup("host"))
	viper.BindPFlag("api_key", rootCmd.PersistentFlags().Lookup("api-key"))

	rootCmd.AddCommand(serverCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(describeCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(deployCmd)
	rootCmd.AddCommand(undeployCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(manifestCmd)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./smarter-data"
	}
	return home + "/.smarter"
}
