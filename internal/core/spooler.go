package core

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type SpoolerConfig struct {
	Command       string
	StatusCommand string
	Destination   string
	MediaWidth    float64
	MediaHeight   float64
}

type SpoolerStatus struct {
	Destination string
	State       string
	Enabled     bool
	CanPrint    bool
	Raw         string
	LastChecked time.Time
}

type commandRunner func(ctx context.Context, name string, args ...string) ([]byte, error)

func execRunner(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// SpoolerPrinter submits documents to CUPS through lp and checks the
// destination queue with lpstat before each job.
type SpoolerPrinter struct {
	cfg    SpoolerConfig
	run    commandRunner
	logger *zap.Logger

	mu         sync.RWMutex
	lastStatus *SpoolerStatus
}

func NewSpoolerPrinter(cfg SpoolerConfig, logger *zap.Logger) *SpoolerPrinter {
	if cfg.Command == "" {
		cfg.Command = "lp"
	}
	if cfg.StatusCommand == "" {
		cfg.StatusCommand = "lpstat"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SpoolerPrinter{cfg: cfg, run: execRunner, logger: logger}
}

func (p *SpoolerPrinter) mediaOption(paperSize string) string {
	if strings.EqualFold(paperSize, "custom") {
		return fmt.Sprintf("media=Custom.%gx%g", p.cfg.MediaWidth, p.cfg.MediaHeight)
	}
	return "media=" + paperSize
}

func (p *SpoolerPrinter) args(documentPath string, opts PrintOptions) []string {
	var args []string
	if p.cfg.Destination != "" {
		args = append(args, "-d", p.cfg.Destination)
	}
	if opts.Silent {
		args = append(args, "-s")
	}
	if opts.PaperSize != "" {
		args = append(args, "-o", p.mediaOption(opts.PaperSize))
	}
	switch strings.ToLower(opts.Orientation) {
	case "landscape":
		args = append(args, "-o", "landscape")
	case "portrait":
		args = append(args, "-o", "portrait")
	}
	switch strings.ToLower(opts.Scale) {
	case "noscale":
		args = append(args, "-o", "print-scaling=none")
	case "fit":
		args = append(args, "-o", "fit-to-page")
	case "shrink":
		args = append(args, "-o", "print-scaling=auto")
	}
	return append(args, "--", documentPath)
}

// Print fails with ErrPrinterOffline when the destination queue is disabled
// and with ErrSpoolerRejected, carrying lp's output, when lp fails.
func (p *SpoolerPrinter) Print(ctx context.Context, documentPath string, opts PrintOptions) error {
	if p.cfg.Destination != "" {
		status, err := p.CheckStatus(ctx)
		if err != nil {
			return err
		}
		if !status.CanPrint {
			return ErrPrinterOffline
		}
	}

	args := p.args(documentPath, opts)
	p.logger.Debug("submitting to spooler", zap.String("command", p.cfg.Command), zap.Strings("args", args))

	out, err := p.run(ctx, p.cfg.Command, args...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%w: %v", ErrSpoolerRejected, ctxErr)
		}
		msg := strings.TrimSpace(string(out))
		if msg == "" {
			msg = err.Error()
		}
		return fmt.Errorf("%w: %s", ErrSpoolerRejected, msg)
	}
	return nil
}

// CheckStatus asks lpstat about the configured destination.
func (p *SpoolerPrinter) CheckStatus(ctx context.Context) (*SpoolerStatus, error) {
	status := &SpoolerStatus{Destination: p.cfg.Destination, LastChecked: time.Now()}

	args := []string{"-p"}
	if p.cfg.Destination != "" {
		args = append(args, p.cfg.Destination)
	}
	out, err := p.run(ctx, p.cfg.StatusCommand, args...)
	status.Raw = strings.TrimSpace(string(out))
	if err != nil {
		status.State = "unknown"
		p.setStatus(status)
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return status, fmt.Errorf("%w: status check timed out", ErrPrinterOffline)
		}
		msg := status.Raw
		if msg == "" {
			msg = err.Error()
		}
		return status, fmt.Errorf("%w: %s", ErrPrinterOffline, msg)
	}

	parseLpstat(status)
	p.setStatus(status)
	return status, nil
}

// parseLpstat reads lines such as
//
//	printer Label is idle.  enabled since Tue 01 Oct 2024 10:00:00
//	printer Label disabled since Tue 01 Oct 2024 10:00:00 -
func parseLpstat(status *SpoolerStatus) {
	text := strings.ToLower(status.Raw)
	status.Enabled = !strings.Contains(text, "disabled")
	switch {
	case !status.Enabled:
		status.State = "disabled"
	case strings.Contains(text, "now printing"):
		status.State = "printing"
	case strings.Contains(text, "is idle"):
		status.State = "idle"
	default:
		status.State = "unknown"
	}
	status.CanPrint = status.Enabled
}

func (p *SpoolerPrinter) setStatus(status *SpoolerStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()

	old := "unknown"
	if p.lastStatus != nil {
		old = p.lastStatus.State
	}
	if old != status.State {
		p.logger.Info("printer status changed",
			zap.String("destination", status.Destination),
			zap.String("old", old),
			zap.String("new", status.State))
	}
	p.lastStatus = status
}

// LastStatus returns the most recent status check, or nil.
func (p *SpoolerPrinter) LastStatus() *SpoolerStatus {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.lastStatus == nil {
		return nil
	}
	s := *p.lastStatus
	return &s
}
