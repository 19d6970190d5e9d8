package cli

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/foliohq/folio/internal/config"
)

var (
	cfgFile    string
	dataDir    string
	appVersion string // set in Execute, used by serve for the API document
)

// Execute creates the root command tree and runs it.
func Execute(version, commit, date string) error {
	appVersion = version
	rootCmd := newRootCmd(version, commit, date)
	return rootCmd.Execute()
}

func newRootCmd(version, commit, date string) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "folio",
		Short: "Portfolio content API with admin authentication",
		Long: `Folio serves a portfolio's public content API and the admin endpoints that manage it.

Admins authenticate with email and password and receive a signed session token,
delivered both in the response body and as an HttpOnly cookie. Login attempts
are rate limited per email (or per IP) over a sliding window.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return initConfig()
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./folio.yaml or ~/.folio/folio.yaml)")
	cmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory for the SQLite store (default: ~/.folio)")
	viper.BindPFlag("data_dir", cmd.PersistentFlags().Lookup("data-dir"))

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newVersionCmd(version, commit, date))
	cmd.AddCommand(newAdminCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

func initConfig() error {
	config.Bind(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
		return viper.ReadInConfig()
	}

	viper.SetConfigName("folio")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("$HOME/.folio")
	viper.ReadInConfig() // Ignore error - config file is optional
	return nil
}
