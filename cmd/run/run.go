package run

import (
	"github.com/spf13/cobra"

	"github.com/robosight/visionlink/config"
	"github.com/robosight/visionlink/tools"
)

var (
	configFile = tools.GetenvDefault(config.EnvPrefix+"CONFIG", "config.yaml")
	Cmd        = &cobra.Command{
		Use:   "run",
		Short: "Run the camera-side client or the stub detector",
		Args:  cobra.NoArgs,
	}
)

func init() {
	Cmd.PersistentFlags().StringVarP(&configFile, "config", "c", configFile, "path of config file")
	Cmd.AddCommand(clientCmd)
	Cmd.AddCommand(serverCmd)
}
