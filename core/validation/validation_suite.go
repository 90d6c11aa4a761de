package validation

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"

	"go_irimager/core"
)

// ValidationStep represents a single validation step with its status.
type ValidationStep struct {
	Name    string
	Status  StepStatus
	Message string
	Error   error
	Latency time.Duration
}

// StepStatus represents the status of a validation step.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepRunning
	StepPassed
	StepFailed
	StepWarning
	StepSkipped
)

// String returns the string representation of a step status.
func (s StepStatus) String() string {
	switch s {
	case StepPending:
		return "pending"
	case StepRunning:
		return "running"
	case StepPassed:
		return "passed"
	case StepFailed:
		return "failed"
	case StepWarning:
		return "warning"
	case StepSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// SuiteResult represents the complete result of validation suite execution.
type SuiteResult struct {
	Steps       []ValidationStep
	TotalSteps  int
	PassedSteps int
	FailedSteps int
	Warnings    int
	Duration    time.Duration
	Success     bool
}

// CameraCheckFunc opens a camera session, reads one size and tears it down. It
// is supplied by the caller so this package stays free of SDK loading.
type CameraCheckFunc func(ctx context.Context) (string, error)

// ValidationSuite runs the preflight checks for a capture run: SDK
// library, output directory, disk space, daemon reachability, live view
// credentials and, optionally, a real camera session.
type ValidationSuite struct {
	cfg          *core.Config
	output       io.Writer
	connectivity *ConnectivityChecker
	cameraCheck  CameraCheckFunc
	timeout      time.Duration
	showProgress bool
	failFast     bool
}

// NewValidationSuite creates a new ValidationSuite for cfg with default settings.
func NewValidationSuite(cfg *core.Config) *ValidationSuite {
	return &ValidationSuite{
		cfg:          cfg,
		output:       os.Stdout,
		connectivity: NewConnectivityChecker(),
		timeout:      10 * time.Second,
		showProgress: true,
	}
}

// WithOutput sets the output writer for progress messages.
func (s *ValidationSuite) WithOutput(w io.Writer) *ValidationSuite {
	s.output = w
	return s
}

// WithTimeout sets the timeout for network and camera checks.
func (s *ValidationSuite) WithTimeout(timeout time.Duration) *ValidationSuite {
	s.timeout = timeout
	s.connectivity.WithTimeout(timeout)
	return s
}

// WithShowProgress enables or disables progress output.
func (s *ValidationSuite) WithShowProgress(show bool) *ValidationSuite {
	s.showProgress = show
	return s
}

// WithFailFast stops validation on first failure if enabled.
func (s *ValidationSuite) WithFailFast(failFast bool) *ValidationSuite {
	s.failFast = failFast
	return s
}

// WithCameraCheck adds a final step that opens a real camera session.
func (s *ValidationSuite) WithCameraCheck(fn CameraCheckFunc) *ValidationSuite {
	s.cameraCheck = fn
	return s
}

type check struct {
	name string
	// run returns a step with Status left at StepRunning to mean "decide from err".
	run func(ctx context.Context) ValidationStep
}

// Validate runs all checks in sequence with progress output.
func (s *ValidationSuite) Validate(ctx context.Context) SuiteResult {
	startTime := time.Now()

	if s.showProgress {
		s.printHeader("IR Imager Preflight")
	}

	checks := []check{
		{"SDK Library", s.checkLibrary},
		{"Output Directory", s.checkOutputDir},
		{"Disk Space", s.checkDiskSpace},
		{"Daemon Connectivity", s.checkDaemon},
		{"Live View Credentials", s.checkLiveView},
		{"Camera Session", s.checkCamera},
	}

	steps := make([]ValidationStep, 0, len(checks))
	for _, c := range checks {
		if c.name == "Camera Session" && !s.hasAllPassed(steps) {
			step := ValidationStep{Name: c.name, Status: StepSkipped, Message: "Skipped due to earlier failures"}
			if s.cameraCheck == nil {
				step.Message = "No camera check configured"
			}
			steps = append(steps, s.finish(step))
			continue
		}
		step := s.runStep(ctx, c)
		steps = append(steps, step)
		if s.failFast && step.Status == StepFailed {
			break
		}
	}

	result := s.buildResult(steps, startTime)
	if s.showProgress {
		s.printSummary(result)
	}
	return result
}

func (s *ValidationSuite) checkLibrary(ctx context.Context) ValidationStep {
	if err := CheckFileExists(s.cfg.SDKPath); err != nil {
		return ValidationStep{Message: err.Error(), Error: core.ErrSDKNotFound(s.cfg.SDKPath)}
	}
	return ValidationStep{Message: s.cfg.SDKPath}
}

func (s *ValidationSuite) checkOutputDir(ctx context.Context) ValidationStep {
	if err := CheckDirWritable(s.cfg.OutputDir); err != nil {
		return ValidationStep{Message: "Not writable", Error: err}
	}
	return ValidationStep{Message: s.cfg.OutputDir}
}

func (s *ValidationSuite) checkDiskSpace(ctx context.Context) ValidationStep {
	info, err := GetDiskSpace(s.cfg.OutputDir)
	if err != nil {
		return ValidationStep{Status: StepWarning, Message: "Could not determine free space", Error: err}
	}
	msg := fmt.Sprintf("%s free (%.0f%% used)", core.FormatBytes(info.Free), info.UsedPercent)
	if info.Free < MinCaptureSpace {
		return ValidationStep{Message: msg, Error: &DiskSpaceError{Path: info.Path, Required: MinCaptureSpace, Available: info.Free}}
	}
	return ValidationStep{Message: msg}
}

func (s *ValidationSuite) checkDaemon(ctx context.Context) ValidationStep {
	if s.cfg.Transport != core.TransportTCP {
		return ValidationStep{Status: StepSkipped, Message: "USB transport"}
	}
	res := s.connectivity.CheckDaemon(ctx, s.cfg.TCPHost, s.cfg.TCPPort)
	step := ValidationStep{Message: res.Message, Error: res.Error}
	if res.Reachable {
		step.Message = fmt.Sprintf("%s (latency: %v)", res.Message, res.Latency.Round(time.Millisecond))
	} else if s.cfg.LaunchDaemon {
		// The run will start the daemon itself.
		step.Status = StepWarning
		step.Message = res.Message + ", will be launched"
	}
	return step
}

func (s *ValidationSuite) checkLiveView(ctx context.Context) ValidationStep {
	if s.cfg.LiveViewAddr == "" {
		return ValidationStep{Status: StepSkipped, Message: "Live view disabled"}
	}
	if err := CheckPasswordHash(s.cfg.LiveViewPasswordHash); err != nil {
		return ValidationStep{Message: "Invalid password hash", Error: err}
	}
	if s.cfg.LiveViewPasswordHash == "" {
		return ValidationStep{Status: StepWarning, Message: "No password set, live view is open"}
	}
	return ValidationStep{Message: "bcrypt hash ok"}
}

func (s *ValidationSuite) checkCamera(ctx context.Context) ValidationStep {
	if s.cameraCheck == nil {
		return ValidationStep{Status: StepSkipped, Message: "No camera check configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	msg, err := s.cameraCheck(ctx)
	return ValidationStep{Message: msg, Error: err}
}

// runStep executes a validation step with timing and progress output.
func (s *ValidationSuite) runStep(ctx context.Context, c check) ValidationStep {
	if s.showProgress {
		s.printStepStart(c.name)
	}

	startTime := time.Now()
	step := c.run(ctx)
	step.Name = c.name
	step.Latency = time.Since(startTime)

	if step.Status == StepPending || step.Status == StepRunning {
		if step.Error != nil {
			step.Status = StepFailed
		} else {
			step.Status = StepPassed
		}
	}

	if s.showProgress {
		s.printStep(step)
	}
	return step
}

func (s *ValidationSuite) finish(step ValidationStep) ValidationStep {
	if s.showProgress {
		s.printStep(step)
	}
	return step
}

// hasAllPassed checks that no step has failed.
func (s *ValidationSuite) hasAllPassed(steps []ValidationStep) bool {
	for _, step := range steps {
		if step.Status == StepFailed {
			return false
		}
	}
	return true
}

// buildResult creates a SuiteResult from completed steps.
func (s *ValidationSuite) buildResult(steps []ValidationStep, startTime time.Time) SuiteResult {
	result := SuiteResult{
		Steps:      steps,
		TotalSteps: len(steps),
		Duration:   time.Since(startTime),
		Success:    true,
	}

	for _, step := range steps {
		switch step.Status {
		case StepPassed:
			result.PassedSteps++
		case StepFailed:
			result.FailedSteps++
			result.Success = false
		case StepWarning:
			result.Warnings++
		}
	}
	return result
}

func (s *ValidationSuite) printHeader(title string) {
	fmt.Fprintln(s.output)
	color.New(color.FgCyan, color.Bold).Fprintf(s.output, "━━━ %s ━━━\n", title)
	fmt.Fprintln(s.output)
}

func (s *ValidationSuite) printStepStart(name string) {
	fmt.Fprintf(s.output, "  ◌ %s...", name)
}

// printStep prints a completed validation step with status indicator.
func (s *ValidationSuite) printStep(step ValidationStep) {
	var icon string
	var clr *color.Color

	switch step.Status {
	case StepPassed:
		icon, clr = "✓", color.New(color.FgGreen)
	case StepFailed:
		icon, clr = "✗", color.New(color.FgRed)
	case StepWarning:
		icon, clr = "!", color.New(color.FgYellow)
	case StepSkipped:
		icon, clr = "○", color.New(color.FgHiBlack)
	default:
		icon, clr = "?", color.New(color.FgWhite)
	}

	fmt.Fprintf(s.output, "\r")
	clr.Fprintf(s.output, "  %s %s", icon, step.Name)
	if step.Message != "" {
		color.New(color.FgHiBlack).Fprintf(s.output, " - %s", step.Message)
	}
	fmt.Fprintln(s.output)

	if step.Status == StepFailed && step.Error != nil {
		color.New(color.FgRed).Fprintf(s.output, "    └─ %s\n", step.Error.Error())
	}
}

func (s *ValidationSuite) printSummary(result SuiteResult) {
	fmt.Fprintln(s.output)

	if result.Success {
		successColor := color.New(color.FgGreen, color.Bold)
		successColor.Fprintf(s.output, "━━━ Preflight Passed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d/%d checks passed in %v)",
			result.PassedSteps, result.TotalSteps, result.Duration.Round(time.Millisecond))
		successColor.Fprintln(s.output, " ━━━")
	} else {
		failColor := color.New(color.FgRed, color.Bold)
		failColor.Fprintf(s.output, "━━━ Preflight Failed ")
		color.New(color.FgHiBlack).Fprintf(s.output, "(%d passed, %d failed)",
			result.PassedSteps, result.FailedSteps)
		failColor.Fprintln(s.output, " ━━━")
	}

	fmt.Fprintln(s.output)
}

// GetFirstError returns the first error from failed steps, or nil if all passed.
func (r SuiteResult) GetFirstError() error {
	for _, step := range r.Steps {
		if step.Status == StepFailed && step.Error != nil {
			return step.Error
		}
	}
	return nil
}

// Summary returns a human-readable summary string.
func (r SuiteResult) Summary() string {
	var sb strings.Builder
	if r.Success {
		sb.WriteString("Preflight passed: ")
	} else {
		sb.WriteString("Preflight failed: ")
	}
	fmt.Fprintf(&sb, "%d/%d checks passed", r.PassedSteps, r.TotalSteps)
	if r.FailedSteps > 0 {
		fmt.Fprintf(&sb, ", %d failed", r.FailedSteps)
	}
	if r.Warnings > 0 {
		fmt.Fprintf(&sb, ", %d warnings", r.Warnings)
	}
	fmt.Fprintf(&sb, " (took %v)", r.Duration.Round(time.Millisecond))
	return sb.String()
}
