// Package refcalc adapts an external reference tax calculator executable to
// the validator contract. The engine never learns it is talking to a
// subprocess: timeouts, crashes and malformed output all surface as ordinary
// validator failures.
package refcalc

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"time"

	"taxval/domain/consensus"
	"taxval/domain/core"
	"taxval/internal"
)

// request is the JSON document written to the calculator's stdin
type request struct {
	Case     string         `json:"case"`
	Inputs   map[string]any `json:"inputs"`
	Variable string         `json:"variable"`
	Year     int            `json:"year"`
}

// response is the JSON document expected on stdout. Exactly one of value and
// error should be populated.
type response struct {
	Value *float64 `json:"value"`
	Error string   `json:"error,omitempty"`
}

// Config describes one external calculator
type Config struct {
	Name    string
	Type    consensus.ValidatorType
	Command string
	Args    []string
	// Timeout bounds each invocation; expiry becomes a validator failure,
	// never a fatal engine error.
	Timeout time.Duration
	// Variables the calculator handles; empty means all.
	Variables []core.VariableKey
}

// Validator shells out to the configured executable once per call
type Validator struct {
	cfg       Config
	variables map[core.VariableKey]struct{}
	logger    *internal.Logger
}

// New creates a subprocess-backed validator
func New(cfg Config) (*Validator, error) {
	if cfg.Command == "" {
		return nil, fmt.Errorf("refcalc: command is required")
	}
	if cfg.Type == "" {
		cfg.Type = consensus.TypeReference
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	vars := make(map[core.VariableKey]struct{}, len(cfg.Variables))
	for _, v := range cfg.Variables {
		vars[v] = struct{}{}
	}
	return &Validator{
		cfg:       cfg,
		variables: vars,
		logger:    internal.DefaultLogger.WithComponent("RefCalc"),
	}, nil
}

// Name identifies the validator in results and logs
func (v *Validator) Name() string { return v.cfg.Name }

// Type declares the validator's authority class
func (v *Validator) Type() consensus.ValidatorType { return v.cfg.Type }

// SupportsVariable reports declared coverage; an unrestricted calculator
// claims everything.
func (v *Validator) SupportsVariable(variable core.VariableKey) bool {
	if len(v.variables) == 0 {
		return true
	}
	_, ok := v.variables[variable]
	return ok
}

// Validate runs the calculator once for the given case and variable
func (v *Validator) Validate(ctx context.Context, tc consensus.TestCase, variable core.VariableKey, year int) consensus.ValidatorResult {
	payload, err := json.Marshal(request{
		Case:     tc.Name,
		Inputs:   tc.Inputs,
		Variable: variable.String(),
		Year:     year,
	})
	if err != nil {
		return consensus.NewFailure(v.cfg.Name, v.cfg.Type, fmt.Errorf("encode request: %w", err))
	}

	callCtx, cancel := context.WithTimeout(ctx, v.cfg.Timeout)
	defer cancel()

	cmd := exec.CommandContext(callCtx, v.cfg.Command, v.cfg.Args...)
	cmd.Stdin = bytes.NewReader(payload)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	runErr := cmd.Run()
	elapsed := time.Since(start)

	if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
		v.logger.Warn("%s timed out after %s on case %q", v.cfg.Name, v.cfg.Timeout, tc.Name)
		return consensus.NewFailure(v.cfg.Name, v.cfg.Type,
			fmt.Errorf("calculator timed out after %s", v.cfg.Timeout))
	}
	if runErr != nil {
		return consensus.NewFailure(v.cfg.Name, v.cfg.Type,
			fmt.Errorf("calculator exited abnormally: %w (stderr: %s)", runErr, stderr.String()))
	}

	var resp response
	if err := json.Unmarshal(stdout.Bytes(), &resp); err != nil {
		return consensus.NewFailure(v.cfg.Name, v.cfg.Type,
			fmt.Errorf("malformed calculator output: %w", err))
	}
	if resp.Error != "" {
		return consensus.NewFailure(v.cfg.Name, v.cfg.Type, errors.New(resp.Error))
	}
	if resp.Value == nil {
		return consensus.NewFailure(v.cfg.Name, v.cfg.Type,
			errors.New("calculator returned neither value nor error"))
	}

	result := consensus.NewSuccess(v.cfg.Name, v.cfg.Type, *resp.Value)
	result.Metadata = map[string]any{
		"backend":    "subprocess",
		"command":    v.cfg.Command,
		"elapsed_ms": elapsed.Milliseconds(),
	}
	return result
}
