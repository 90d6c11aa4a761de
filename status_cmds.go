package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"go_irimager/core"
	"go_irimager/core/validation"
	"go_irimager/db"
	"go_irimager/irimager"
	"go_irimager/liveview"
)

func newStatusCmd(a *app) *cobra.Command {
	var limit int
	var session string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configuration, daemon state and recent capture sessions",
		Args:  cobra.NoArgs,
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			return runStatus(cmd.Context(), a, limit, session, cmd.OutOrStdout())
		}),
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 5, "number of sessions and frames to list")
	cmd.Flags().StringVar(&session, "session", "", "show one session by ID with its latest frames")
	return cmd
}

func runStatus(ctx context.Context, a *app, limit int, session string, out io.Writer) error {
	heading := color.New(color.FgCyan, color.Bold)

	heading.Fprintln(out, "Configuration")
	fmt.Fprintf(out, "  %s\n", a.cfg.Describe())
	logLine := "  log file " + a.logger.LogFilePath()
	if a.logger.LogFilePath() == "" {
		logLine = "  log file disabled"
	}
	if a.logger.IsDevelopment() {
		logLine += ", development console"
	}
	fmt.Fprintln(out, logLine)

	if a.cfg.Transport == core.TransportTCP {
		heading.Fprintln(out, "Daemon")
		err := withSDK(a, func(im *irimager.Imager) error {
			running, err := im.DaemonRunning()
			if err != nil {
				return err
			}
			if running {
				fmt.Fprintf(out, "  %s running\n", color.GreenString("✓"))
			} else {
				fmt.Fprintf(out, "  %s not running\n", color.YellowString("○"))
			}
			return nil
		})
		if err != nil {
			fmt.Fprintf(out, "  %s %v\n", color.RedString("✗"), err)
		}
	}

	heading.Fprintln(out, "Capture store")
	path := a.cfg.DatabasePath
	if path == "" {
		fmt.Fprintln(out, "  disabled")
		return nil
	}
	info, err := os.Stat(path)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintf(out, "  %s (not created yet)\n", path)
		return nil
	}
	if err != nil {
		return err
	}

	version, dirty, err := db.MigrationVersion(path)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %s, %s, schema v%d", path, core.FormatBytes(info.Size()), version)
	if dirty {
		fmt.Fprint(out, color.RedString(" (dirty)"))
	}
	fmt.Fprintln(out)
	if version < db.SchemaVersion {
		fmt.Fprintf(out, "  %s schema is behind v%d; run a capture to migrate\n", color.YellowString("!"), db.SchemaVersion)
		return nil
	}

	database, err := db.NewDatabase(path)
	if err != nil {
		return err
	}
	defer database.Close()
	repo := db.NewRepository(database, nil)

	if session != "" {
		return printSession(ctx, repo, session, limit, out)
	}

	total, err := repo.CountFrames(ctx, "")
	if err != nil {
		return err
	}
	sessions, err := repo.ListSessions(ctx, limit)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "  %d frames stored\n", total)
	if len(sessions) == 0 {
		return nil
	}

	heading.Fprintln(out, "Recent sessions")
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "  ID\tSTARTED\tTRANSPORT\tFRAMES\tRANGE\tEND")
	for _, s := range sessions {
		tempRange := "-"
		if lo, hi, ok, err := repo.TemperatureRange(ctx, s.ID); err == nil && ok {
			tempRange = fmt.Sprintf("%.1f to %.1f°C", lo, hi)
		}
		end := s.EndReason
		if s.Open() {
			end = color.GreenString("open")
		}
		fmt.Fprintf(w, "  %s\t%s\t%s\t%d\t%s\t%s\n",
			s.ID,
			s.StartedAt.Local().Format("2006-01-02 15:04:05"),
			s.Transport,
			s.FrameCount,
			tempRange,
			end,
		)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	frames, err := repo.RecentFrames(ctx, "", limit)
	if err != nil {
		return err
	}
	heading.Fprintln(out, "Latest frames")
	return printFrames(out, frames)
}

// printSession shows one stored session and its latest frames.
func printSession(ctx context.Context, repo *db.Repository, id string, limit int, out io.Writer) error {
	s, err := repo.GetSession(ctx, id)
	if err != nil {
		return fmt.Errorf("session %s: %w", id, err)
	}

	color.New(color.FgCyan, color.Bold).Fprintln(out, "Session "+s.ID)
	fmt.Fprintf(out, "  %s %s, thermal %s, palette %s\n", s.Transport, s.Target, s.ThermalSize, s.PaletteSize)
	fmt.Fprintf(out, "  started %s\n", s.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if s.Open() {
		fmt.Fprintf(out, "  %s, %d frames\n", color.GreenString("open"), s.FrameCount)
	} else {
		fmt.Fprintf(out, "  ended %s (%s), %d frames\n",
			s.EndedAt.Local().Format("2006-01-02 15:04:05"), s.EndReason, s.FrameCount)
	}

	frames, err := repo.RecentFrames(ctx, s.ID, limit)
	if err != nil {
		return err
	}
	return printFrames(out, frames)
}

func printFrames(out io.Writer, frames []db.Frame) error {
	if len(frames) == 0 {
		fmt.Fprintln(out, "  no frames")
		return nil
	}
	w := tabwriter.NewWriter(out, 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "  SESSION\tSEQ\tCAPTURED\tMIN\tMAX\tHOTSPOT\tATTEMPTS")
	for _, f := range frames {
		fmt.Fprintf(w, "  %s\t%d\t%s\t%.1f°C\t%.1f°C\t(%d,%d)\t%d\n",
			shortID(f.SessionID),
			f.Seq,
			f.CapturedAt.Local().Format("15:04:05.000"),
			f.Stats.MinC,
			f.Stats.MaxC,
			f.Stats.HotX, f.Stats.HotY,
			f.Attempts,
		)
	}
	return w.Flush()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func newCheckCmd(a *app) *cobra.Command {
	var camera, failFast, quiet bool
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run preflight checks for the SDK, output directory, daemon and live view",
		Args:  cobra.NoArgs,
		RunE: withSetup(a, func(cmd *cobra.Command, args []string) error {
			suite := validation.NewValidationSuite(a.cfg).
				WithOutput(cmd.OutOrStdout()).
				WithTimeout(timeout).
				WithFailFast(failFast).
				WithShowProgress(!quiet)
			if camera {
				suite = suite.WithCameraCheck(a.cameraSizes)
			}

			result := suite.Validate(cmd.Context())
			if quiet && result.Success {
				fmt.Fprintln(cmd.OutOrStdout(), result.Summary())
			}
			if !result.Success {
				if err := result.GetFirstError(); err != nil {
					return err
				}
				return errors.New(result.Summary())
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&camera, "camera", false, "also open a camera session and read the frame sizes")
	cmd.Flags().BoolVar(&failFast, "fail-fast", false, "stop at the first failed check")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "print only the summary line")
	cmd.Flags().DurationVar(&timeout, "timeout", 10*time.Second, "timeout for network and camera checks")
	return cmd
}

// cameraSizes opens a session, reads both frame sizes and releases it.
func (a *app) cameraSizes(ctx context.Context) (string, error) {
	im, launched, err := a.openCamera()
	if err != nil {
		return "", err
	}
	defer a.release(im, launched)

	thermal, err := im.ThermalSize()
	if err != nil {
		return "", err
	}
	palette, err := im.PaletteSize()
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("thermal %s, palette %s", thermal, palette), nil
}

func newLiveViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "liveview",
		Short: "Live view helpers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for IRIMAGER_LIVEVIEW_PASSWORD_HASH",
		Long:  "Hashes the password given as an argument, or the first line of stdin.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = strings.TrimRight(line, "\r\n")
			}

			hash, err := liveview.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	})
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "irimager %s\n", core.GetVersionInfo())
		},
	}
}
