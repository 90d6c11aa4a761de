package main

import (
	"github.com/spf13/cobra"

	"go_irimager/core"
)

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "irimager",
		Short:         "Capture frames from an infrared camera through the irimager SDK",
		Version:       core.GetVersionInfo(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	root.PersistentFlags().StringVar(&a.configPath, "config", "", "YAML config file (default: $IRIMAGER_CONFIG_FILE)")
	root.PersistentFlags().BoolVar(&a.devMode, "dev", false, "development logging (colored console, debug level)")

	root.AddCommand(
		newRunCmd(a),
		newSnapshotCmd(a),
		newBurstCmd(a),
		newStatusCmd(a),
		newCheckCmd(a),
		newPalettesCmd(),
		newPaletteCmd(a),
		newShutterCmd(a),
		newDaemonCmd(a),
		newLiveViewCmd(),
		newServiceCmd(a),
		newVersionCmd(),
	)
	return root
}

// withSetup runs fn after loading configuration and the logger.
func withSetup(a *app, fn func(cmd *cobra.Command, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		if err := a.setup(); err != nil {
			return err
		}
		return fn(cmd, args)
	}
}
