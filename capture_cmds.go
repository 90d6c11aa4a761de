package main

import (
	"context"
	"fmt"
	"io"
	"math"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"go_irimager/capture"
)

func newSnapshotCmd(a *app) *cobra.Command {
	var outDir string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Capture one frame and write thermal and palette PNGs",
		Args:  cobra.NoArgs,
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			if outDir == "" {
				outDir = a.cfg.OutputDir
			}
			return runSnapshot(cmd.Context(), a, outDir, cmd.OutOrStdout())
		}),
	}
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (default: IRIMAGER_OUTPUT_DIR)")
	return cmd
}

func runSnapshot(ctx context.Context, a *app, outDir string, out io.Writer) error {
	cam, launched, err := a.openCamera()
	if err != nil {
		return err
	}
	defer a.release(cam, launched)

	snapshots := capture.NewSnapshotWriter(outDir, a.cfg.SnapshotScale, true, true)
	rec := capture.NewRecorder(cam, a.logger, a.recorderOptions(), capture.WithSnapshots(snapshots))
	if _, err := rec.Start(ctx); err != nil {
		return err
	}
	defer rec.End(context.WithoutCancel(ctx), "snapshot")

	c, err := rec.Capture(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "%s %s  %s\n", color.GreenString("✓"), c.Thermal.Size, describeTemps(c))
	if c.ThermalPath != "" {
		fmt.Fprintf(out, "  thermal: %s\n", c.ThermalPath)
	}
	if c.PalettePath != "" {
		fmt.Fprintf(out, "  palette: %s\n", c.PalettePath)
	}
	return nil
}

func newBurstCmd(a *app) *cobra.Command {
	var count int
	var noStore bool
	cmd := &cobra.Command{
		Use:   "burst",
		Short: "Capture N frames back to back into one session",
		Args:  cobra.NoArgs,
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			return runBurst(cmd.Context(), a, count, !noStore, cmd.OutOrStdout(), cmd.ErrOrStderr())
		}),
	}
	cmd.Flags().IntVarP(&count, "count", "n", 10, "number of frames")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "do not record the session in the capture store")
	return cmd
}

func runBurst(ctx context.Context, a *app, n int, useStore bool, out, progress io.Writer) error {
	if n <= 0 {
		return fmt.Errorf("burst count must be positive, got %d", n)
	}

	cam, launched, err := a.openCamera()
	if err != nil {
		return err
	}
	defer a.release(cam, launched)

	options := []capture.Option{capture.WithSnapshots(a.snapshotWriter())}
	if useStore && a.cfg.DatabasePath != "" {
		st, err := openStore(a.cfg.DatabasePath, a.logger)
		if err != nil {
			return err
		}
		defer st.Close(context.WithoutCancel(ctx))
		options = append(options, capture.WithStore(st.repo))
	}

	rec := capture.NewRecorder(cam, a.logger, a.recorderOptions(), options...)
	sessionID, err := rec.Start(ctx)
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(n,
		progressbar.OptionSetDescription("Capturing"),
		progressbar.OptionSetWriter(progress),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	captures, err := rec.Burst(ctx, n, func(done, total int) {
		bar.Set(done)
	})
	bar.Finish()

	reason := "burst"
	if err != nil {
		reason = "error: " + err.Error()
	}
	rec.End(context.WithoutCancel(ctx), reason)
	if err != nil {
		return fmt.Errorf("burst stopped after %d of %d frames: %w", len(captures), n, err)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	retries := 0
	for _, c := range captures {
		lo = min(lo, c.Stats.MinC)
		hi = max(hi, c.Stats.MaxC)
		retries += c.Attempts - 1
	}
	fmt.Fprintf(out, "%s %d frames in session %s\n", color.GreenString("✓"), len(captures), sessionID)
	fmt.Fprintf(out, "  range %.1f°C to %.1f°C, %d retries\n", lo, hi, retries)
	return nil
}
