package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"go_irimager/core"
)

const (
	serviceName = "irimager"
	// serviceStopTimeout bounds how long Stop waits for the capture loop.
	serviceStopTimeout = 30 * time.Second
)

// program runs the capture loop under the system service manager
// (Windows SCM, systemd or launchd).
type program struct {
	app    *app
	cancel context.CancelFunc
	done   chan struct{}
}

// Start is called by the service manager and must not block.
func (p *program) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})

	go func() {
		defer close(p.done)
		if err := runCapture(ctx, p.app); err != nil {
			p.app.logger.Error("service capture failed", zap.Error(err))
			// Exit non-zero so the service manager applies its restart policy.
			if ctx.Err() == nil {
				p.app.close()
				os.Exit(core.ExitCodeFor(err))
			}
		}
	}()
	return nil
}

// Stop cancels the capture loop and waits for cleanup to finish.
func (p *program) Stop(s service.Service) error {
	if p.cancel == nil {
		return nil
	}
	p.cancel()

	select {
	case <-p.done:
		return nil
	case <-time.After(serviceStopTimeout):
		return fmt.Errorf("timeout waiting for capture to stop")
	}
}

// serviceConfig describes the installed service. args are passed to the
// binary on start, after which it runs the capture loop.
func serviceConfig(args []string, workDir string) *service.Config {
	return &service.Config{
		Name:             serviceName,
		DisplayName:      "IR Imager Capture",
		Description:      "Captures thermal and palette frames from an infrared camera through the irimager SDK",
		Arguments:        args,
		WorkingDirectory: workDir,
		Option: service.KeyValue{
			// Windows
			"StartType": "automatic",
			// systemd
			"Restart": "on-failure",
		},
	}
}

// installArgs returns the arguments the service manager starts the binary
// with: the run command plus an absolute --config when one was given.
func installArgs(configPath string) ([]string, error) {
	args := []string{"run"}
	if configPath == "" {
		return args, nil
	}
	abs, err := filepath.Abs(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}
	return append(args, "--config", abs), nil
}

// runService hands control to the service manager, which calls Start and
// Stop on the program.
func runService(a *app) error {
	s, err := service.New(&program{app: a}, serviceConfig(nil, ""))
	if err != nil {
		return fmt.Errorf("failed to create service: %w", err)
	}
	if err := s.Run(); err != nil {
		return fmt.Errorf("service run failed: %w", err)
	}
	return nil
}

func newServiceCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control the capture loop as a system service",
	}

	for _, action := range service.ControlAction {
		cmd.AddCommand(&cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the %s service", action, serviceName),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				s, err := newControlService(a)
				if err != nil {
					return err
				}
				if err := service.Control(s, action); err != nil {
					return fmt.Errorf("service %s failed: %w", action, err)
				}
				printOK(cmd.OutOrStdout(), "service %s succeeded", action)
				return nil
			},
		})
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: fmt.Sprintf("Show the %s service status", serviceName),
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := newControlService(a)
			if err != nil {
				return err
			}
			status, err := s.Status()
			if errors.Is(err, service.ErrNotInstalled) {
				fmt.Fprintln(cmd.OutOrStdout(), "Service is not installed")
				return nil
			}
			if err != nil {
				return fmt.Errorf("failed to get service status: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), describeServiceStatus(status))
			return nil
		},
	})
	return cmd
}

func newControlService(a *app) (service.Service, error) {
	args, err := installArgs(a.configPath)
	if err != nil {
		return nil, err
	}
	workDir, err := os.Getwd()
	if err != nil {
		return nil, err
	}
	s, err := service.New(&program{app: a}, serviceConfig(args, workDir))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return s, nil
}

func describeServiceStatus(status service.Status) string {
	switch status {
	case service.StatusRunning:
		return "Service is running"
	case service.StatusStopped:
		return "Service is stopped"
	default:
		return "Service status unknown"
	}
}
