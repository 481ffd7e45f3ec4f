// Package sandbox runs planner-generated Go scripts against a dataset
// snapshot inside a yaegi interpreter.
//
// Every call gets a fresh interpreter that can see only the snapshot (as the
// package-level variable df), the analyst/stats helpers and an allow-listed
// subset of the standard library. Nothing from os, net, syscall, unsafe or
// reflect is bound, so scripts cannot touch the host.
package sandbox

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/traefik/yaegi/interp"
	"golang.org/x/sync/semaphore"

	"analyst/internal/dataset"
	"analyst/internal/logging"
)

// EmptyOutputDiagnostic is the failure text for a clean run that printed nothing.
const EmptyOutputDiagnostic = "CRITICAL: The script ran without errors but produced no output. Create a new script."

// Observation is the result of one execution.
type Observation struct {
	Succeeded bool
	Output    string // captured stdout, meaningful when Succeeded
	ErrorText string // failure description, meaningful when !Succeeded
	Duration  time.Duration
}

// Text is the string threaded forward: the output on success, the error text
// otherwise.
func (o Observation) Text() string {
	if o.Succeeded {
		return o.Output
	}
	return o.ErrorText
}

// Config bounds script execution.
type Config struct {
	Timeout         time.Duration
	MaxOutputBytes  int
	MaxConcurrent   int
	AllowedPackages []string
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		MaxOutputBytes:  64 * 1024,
		MaxConcurrent:   4,
		AllowedPackages: DefaultAllowedPackages(),
	}
}

// Sandbox executes scripts. It is safe for concurrent use; the number of
// simultaneous evaluations across all callers is bounded.
type Sandbox struct {
	cfg     Config
	allowed map[string]bool
	stdlib  interp.Exports
	sem     *semaphore.Weighted
}

// New creates a sandbox. Zero config fields fall back to DefaultConfig and
// blocked packages are dropped from the allow-list.
func New(cfg Config) *Sandbox {
	def := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.MaxOutputBytes <= 0 {
		cfg.MaxOutputBytes = def.MaxOutputBytes
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = def.MaxConcurrent
	}
	if cfg.AllowedPackages == nil {
		cfg.AllowedPackages = def.AllowedPackages
	}

	allowed := make(map[string]bool, len(cfg.AllowedPackages)+1)
	for _, pkg := range cfg.AllowedPackages {
		if Blocked(pkg) {
			logging.SandboxWarn("ignoring blocked package %q in allow-list", pkg)
			continue
		}
		allowed[pkg] = true
	}
	// fmt must be bound for scripts to print at all.
	allowed["fmt"] = true

	return &Sandbox{
		cfg:     cfg,
		allowed: allowed,
		stdlib:  stdlibSymbols(allowed),
		sem:     semaphore.NewWeighted(int64(cfg.MaxConcurrent)),
	}
}

// Config returns the effective configuration.
func (s *Sandbox) Config() Config { return s.cfg }

// Execute evaluates code once against a private copy of frame. It never
// returns an error: every failure is described by the Observation.
func (s *Sandbox) Execute(ctx context.Context, code string, frame *dataset.Frame) Observation {
	start := time.Now()
	obs := s.execute(ctx, code, frame)
	obs.Duration = time.Since(start)

	if obs.Succeeded {
		logging.SandboxDebug("script succeeded in %v (%d bytes of output)", obs.Duration, len(obs.Output))
	} else {
		logging.Sandbox("script failed in %v: %s", obs.Duration, firstLine(obs.ErrorText))
	}
	return obs
}

func (s *Sandbox) execute(ctx context.Context, code string, frame *dataset.Frame) Observation {
	src, err := prepare(code, s.allowed)
	if err != nil {
		return failed(err.Error())
	}

	if err := s.sem.Acquire(ctx, 1); err != nil {
		return failed(fmt.Sprintf("sandbox unavailable: %v", err))
	}
	defer s.sem.Release(1)

	ctx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	snapshot := frame.Clone()
	snapshot.SetDisplay(dataset.FullDisplay())

	stdout := &cappedBuffer{limit: s.cfg.MaxOutputBytes}
	var stderr bytes.Buffer

	i := interp.New(interp.Options{Stdout: stdout, Stderr: &stderr})
	if err := i.Use(s.stdlib); err != nil {
		return failed(fmt.Sprintf("failed to load stdlib: %v", err))
	}
	if err := i.Use(hostSymbols(snapshot)); err != nil {
		return failed(fmt.Sprintf("failed to load dataset bindings: %v", err))
	}

	_, err = i.EvalWithContext(ctx, src)
	switch {
	case errors.Is(ctx.Err(), context.DeadlineExceeded):
		// The abandoned evaluation may still be writing; leave its buffers alone.
		return failed(fmt.Sprintf("script timed out after %v", s.cfg.Timeout))
	case err != nil:
		return failed(withStderr(describe(err), &stderr))
	case strings.TrimSpace(stderr.String()) != "":
		return failed(strings.TrimSpace(stderr.String()))
	}

	out := stdout.String()
	if strings.TrimSpace(out) == "" {
		return failed(EmptyOutputDiagnostic)
	}
	return Observation{Succeeded: true, Output: out}
}

func failed(text string) Observation {
	return Observation{ErrorText: text}
}

// describe renders an evaluation error. Panics carry the recovered value,
// which is what the planner needs to see.
func describe(err error) string {
	var p interp.Panic
	if errors.As(err, &p) {
		return fmt.Sprintf("panic: %v", p.Value)
	}
	return err.Error()
}

func withStderr(msg string, stderr *bytes.Buffer) string {
	if s := strings.TrimSpace(stderr.String()); s != "" {
		return msg + "\n" + s
	}
	return msg
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

// cappedBuffer keeps the first limit bytes and drops the rest, remembering
// that it did.
type cappedBuffer struct {
	buf       bytes.Buffer
	limit     int
	truncated bool
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	room := c.limit - c.buf.Len()
	if room <= 0 {
		c.truncated = c.truncated || len(p) > 0
		return len(p), nil
	}
	if len(p) > room {
		c.buf.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}
	return c.buf.Write(p)
}

func (c *cappedBuffer) String() string {
	if !c.truncated {
		return c.buf.String()
	}
	return fmt.Sprintf("%s\n... [output truncated at %d bytes]\n", c.buf.String(), c.limit)
}
