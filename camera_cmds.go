package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go_irimager/irimager"
)

func newPalettesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "palettes",
		Short: "List the palettes the SDK supports",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
			fmt.Fprintln(w, "ID\tNAME")
			for _, p := range irimager.Palettes() {
				fmt.Fprintf(w, "%d\t%s\n", int32(p), p)
			}
			return w.Flush()
		},
	}
}

func newPaletteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "palette <name|id>",
		Short: "Set the palette used for false-color images",
		Args:  cobra.ExactArgs(1),
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			p, err := irimager.ParsePalette(args[0])
			if err != nil {
				return err
			}
			return withCamera(a, func(im *irimager.Imager) error {
				if err := im.SetPalette(p); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "palette set to %s (%d)", p, int32(p))
				return nil
			})
		}),
	}
}

func newShutterCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "shutter <auto|manual|trigger>",
		Short: "Set the shutter mode or trigger a flag cycle",
		Args:  cobra.ExactArgs(1),
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			action := strings.ToLower(args[0])
			if action == "trigger" {
				return withCamera(a, func(im *irimager.Imager) error {
					if err := im.TriggerShutterFlag(); err != nil {
						return err
					}
					printOK(cmd.OutOrStdout(), "shutter flag triggered")
					return nil
				})
			}

			mode, err := irimager.ParseShutterMode(action)
			if err != nil {
				return err
			}
			return withCamera(a, func(im *irimager.Imager) error {
				if err := im.SetShutterMode(mode); err != nil {
					return err
				}
				printOK(cmd.OutOrStdout(), "shutter mode set to %s", mode)
				return nil
			})
		}),
	}
}

func newDaemonCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Manage the imager daemon used by the TCP transport",
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "launch",
			Short: "Start the daemon",
			Args:  cobra.NoArgs,
			RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
				return withSDK(a, func(im *irimager.Imager) error {
					if err := im.LaunchDaemon(); err != nil {
						return err
					}
					printOK(cmd.OutOrStdout(), "daemon launched")
					return nil
				})
			}),
		},
		&cobra.Command{
			Use:   "kill",
			Short: "Stop the daemon",
			Args:  cobra.NoArgs,
			RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
				return withSDK(a, func(im *irimager.Imager) error {
					if err := im.KillDaemon(); err != nil {
						return err
					}
					printOK(cmd.OutOrStdout(), "daemon stopped")
					return nil
				})
			}),
		},
		&cobra.Command{
			Use:   "status",
			Short: "Report whether the daemon is running",
			Args:  cobra.NoArgs,
			RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
				return withSDK(a, func(im *irimager.Imager) error {
					running, err := im.DaemonRunning()
					if err != nil {
						return err
					}
					if running {
						printOK(cmd.OutOrStdout(), "daemon is running")
					} else {
						fmt.Fprintf(cmd.OutOrStdout(), "%s daemon is not running\n", color.YellowString("○"))
					}
					return nil
				})
			}),
		},
	)
	return cmd
}

// withCamera connects, runs fn and releases the camera.
func withCamera(a *app, fn func(im *irimager.Imager) error) error {
	im, launched, err := a.openCamera()
	if err != nil {
		return err
	}
	defer a.release(im, launched)
	return fn(im)
}

// withSDK loads the SDK without opening a camera session, which the daemon
// calls do not need.
func withSDK(a *app, fn func(im *irimager.Imager) error) error {
	im, err := a.loadImager(a.cfg.SDKPath, irimager.WithLogger(a.logger.Zap().Named("irimager")))
	if err != nil {
		return err
	}
	defer im.Close()
	return fn(im)
}

func printOK(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, "%s %s\n", color.GreenString("✓"), fmt.Sprintf(format, args...))
}
