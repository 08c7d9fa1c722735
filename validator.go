// Package wasmvalid validates WebAssembly binary modules: it decodes a
// module's structure, checks it against a configurable feature set and
// resource limits, and hands every function body off to a caller-supplied
// collaborator for opcode-level validation, which this package does not
// itself implement.
package wasmvalid

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/wazvalid/wasmvalid/internal/binary"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

// FuncBodyValidator validates one function body's opcode stream against the
// ValidatorResources snapshot produced at the module's freeze point. Its
// operator and type-stack rules are not part of this package: Validate
// only owns decoding the module's structure and handing bodies off in
// parallel, per function-index order, to whatever FuncBodyValidator the
// caller installs.
type FuncBodyValidator interface {
	ValidateFunc(resources *wasm.ValidatorResources, body wasm.FuncBody) error
}

// FuncBodyValidatorFunc adapts a plain function to FuncBodyValidator.
type FuncBodyValidatorFunc func(resources *wasm.ValidatorResources, body wasm.FuncBody) error

func (f FuncBodyValidatorFunc) ValidateFunc(resources *wasm.ValidatorResources, body wasm.FuncBody) error {
	return f(resources, body)
}

// acceptAllFuncBodies is the default FuncBodyValidator: every body is
// accepted without inspecting its bytes. Installing a real one via
// Validator.WithFuncBodyValidator is the caller's responsibility.
var acceptAllFuncBodies FuncBodyValidator = FuncBodyValidatorFunc(
	func(*wasm.ValidatorResources, wasm.FuncBody) error { return nil },
)

// Validator validates WebAssembly binary modules against a Config. A
// Validator built by NewValidator is safe for concurrent use by multiple
// goroutines calling Validate.
type Validator struct {
	cfg *Config
	fv  FuncBodyValidator
}

// NewValidator returns a Validator using cfg, or NewConfig()'s defaults if
// cfg is nil.
func NewValidator(cfg *Config) *Validator {
	if cfg == nil {
		cfg = NewConfig()
	}
	return &Validator{cfg: cfg, fv: acceptAllFuncBodies}
}

// WithFuncBodyValidator installs fv as the collaborator Validate hands
// every function body to once the module's structure is frozen. It returns
// v for chaining.
func (v *Validator) WithFuncBodyValidator(fv FuncBodyValidator) *Validator {
	if fv == nil {
		fv = acceptAllFuncBodies
	}
	v.fv = fv
	return v
}

// Validate decides whether data is a well-formed WebAssembly binary module
// under v's configured feature set and limits. Module-level structure
// (sections, types, imports, indices, initializer expressions) is checked
// single-threaded, in one pass over data. Once that pass reaches the code
// section's first byte, the module snapshot freezes; after the whole
// module has been decoded, every function body is handed to v's
// FuncBodyValidator concurrently across
// v.cfg.workerCount goroutines (runtime.GOMAXPROCS(0) if unset). Validate
// reports the error from the lowest function index deterministically,
// regardless of which worker goroutine finishes first.
func (v *Validator) Validate(ctx context.Context, data []byte) error {
	logger := v.cfg.logger
	mv := wasm.NewModuleValidator(v.cfg.features, v.cfg.limits)
	mv.SetLogger(logger)

	tasks, err := binary.DecodeModule(data, mv)
	if err != nil {
		return wrapInternalError(err)
	}
	if logger != nil {
		logger.WithField("functions", len(tasks)).Debug("worker pool dispatched")
	}
	if len(tasks) == 0 {
		return nil
	}

	resources := mv.Resources()
	if err := v.validateFuncBodies(ctx, resources, tasks); err != nil {
		return err
	}
	if logger != nil {
		logger.Debug("module valid")
	}
	return nil
}

// validateFuncBodies runs tasks through v.fv across a bounded worker pool,
// then returns the lowest-indexed task's error, if any. tasks arrive
// already ordered by function index, so the first non-nil entry in errs is
// always the lowest-indexed failure.
func (v *Validator) validateFuncBodies(ctx context.Context, resources *wasm.ValidatorResources, tasks []wasm.FuncBody) error {
	workers := v.cfg.workerCount
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	if workers > len(tasks) {
		workers = len(tasks)
	}

	g, gctx := errgroup.WithContext(ctx)
	sem := make(chan struct{}, workers)
	errs := make([]error, len(tasks))
	for i, task := range tasks {
		i, task := i, task
		g.Go(func() error {
			select {
			case sem <- struct{}{}:
			case <-gctx.Done():
				return gctx.Err()
			}
			defer func() { <-sem }()
			if err := v.fv.ValidateFunc(resources, task); err != nil {
				errs[i] = err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return wrapInternalError(err)
	}
	for i, e := range errs {
		if e != nil {
			return wrapInternalError(e).withFunctionIndex(int(tasks[i].Index))
		}
	}
	return nil
}

// Validate is a package-level convenience that validates data under
// NewConfig()'s defaults.
func Validate(ctx context.Context, data []byte) error {
	return NewValidator(nil).Validate(ctx, data)
}
