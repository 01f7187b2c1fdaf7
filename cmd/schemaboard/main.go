package main

import (
	"errors"
	"os"

	"github.com/MarcoPoloResearchLab/schemaboard/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile string
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "schemaboard",
		Short: "Schema diagram sessions backed by a local and a remote store",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
		SilenceUsage: true,
	}

	setupFlags(rootCmd)

	rootCmd.AddCommand(newServeCommand(), newListCommand(), newOpenCommand(), newTemplateCommand())
	return rootCmd
}

func setupFlags(cmd *cobra.Command) {
	config.ApplyDefaults(viper.GetViper())
	defaults := config.NewViper()
	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Path to configuration file")
	cmd.PersistentFlags().String("http-address", defaults.GetString("http.address"), "HTTP listen address")
	cmd.PersistentFlags().String("database-path", defaults.GetString("database.path"), "Remote service SQLite database path")
	cmd.PersistentFlags().String("local-path", defaults.GetString("local.path"), "On-device diagram store path")
	cmd.PersistentFlags().String("remote-url", defaults.GetString("remote.url"), "Remote diagram service base URL")
	cmd.PersistentFlags().Duration("remote-timeout", defaults.GetDuration("remote.timeout"), "Remote request timeout")
	cmd.PersistentFlags().String("gist-api-url", defaults.GetString("gist.api_url"), "Gist API base URL")
	cmd.PersistentFlags().String("gist-token", "", "Gist API token (overrides env)")
	cmd.PersistentFlags().Bool("autosave", defaults.GetBool("session.autosave"), "Save edited sessions automatically")
	cmd.PersistentFlags().String("log-level", defaults.GetString("log.level"), "Log level (debug, info, warn, error)")

	bindFlag(cmd, "http.address", "http-address")
	bindFlag(cmd, "database.path", "database-path")
	bindFlag(cmd, "local.path", "local-path")
	bindFlag(cmd, "remote.url", "remote-url")
	bindFlag(cmd, "remote.timeout", "remote-timeout")
	bindFlag(cmd, "gist.api_url", "gist-api-url")
	bindFlag(cmd, "gist.token", "gist-token")
	bindFlag(cmd, "session.autosave", "autosave")
	bindFlag(cmd, "log.level", "log-level")
}

func bindFlag(cmd *cobra.Command, key, flag string) {
	if err := viper.BindPFlag(key, cmd.PersistentFlags().Lookup(flag)); err != nil {
		panic(err)
	}
}

func initConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	}

	if err := viper.ReadInConfig(); err != nil {
		var configNotFound viper.ConfigFileNotFoundError
		if cfgFile != "" && errors.As(err, &configNotFound) {
			return err
		}
	}

	return nil
}
