package commands

import (
	"github.com/spf13/cobra"

	"github.com/tendermint/dasync/config"
	"github.com/tendermint/dasync/libs/log"
	tmos "github.com/tendermint/dasync/libs/os"
)

// MakeInitCommand returns the command that writes the default config file.
func MakeInitCommand(conf *config.Config, logger log.Logger) *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize the home directory with a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			configFile := config.ConfigFile(conf.RootDir)
			if tmos.FileExists(configFile) {
				logger.Info("Found config file", "path", configFile)
				return nil
			}
			if err := config.WriteConfigFile(conf.RootDir, conf); err != nil {
				return err
			}
			logger.Info("Generated config file", "path", configFile)
			return nil
		},
	}
}
