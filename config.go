package wasmvalid

import (
	"github.com/sirupsen/logrus"

	"github.com/wazvalid/wasmvalid/api"
	"github.com/wazvalid/wasmvalid/internal/wasm"
)

// Config controls a Validator's behavior, with the default implementation
// as NewConfig. It follows the immutable-clone style rather than
// functional options: each With* method returns a new Config rather than mutating the
// receiver, so a base Config can be safely shared and specialized.
type Config struct {
	features    api.CoreFeatures
	limits      wasm.Limits
	workerCount int
	logger      *logrus.Logger
}

// NewConfig returns the default Config: CoreFeaturesV2, the package's
// default resource limits, one validation worker per available CPU, and
// logging disabled.
func NewConfig() *Config {
	return &Config{
		features:    api.CoreFeaturesV2,
		limits:      wasm.DefaultLimits(),
		workerCount: 0, // 0 means "let the worker pool pick runtime.GOMAXPROCS".
	}
}

// clone ensures all fields are copied even if a future field is a
// reference type, so a With* call never aliases the receiver's state.
func (c *Config) clone() *Config {
	cp := *c
	return &cp
}

// WithFeatures replaces the enabled feature set entirely. Use
// api.CoreFeaturesV1/V2/V3/GC as a starting point and SetEnabled to
// adjust individual proposals.
func (c *Config) WithFeatures(features api.CoreFeatures) *Config {
	ret := c.clone()
	ret.features = features
	return ret
}

// WithMaxTypes overrides the maximum number of types (across all rec
// groups) a module may declare.
func (c *Config) WithMaxTypes(max int) *Config {
	ret := c.clone()
	ret.limits.MaxTypes = max
	return ret
}

// WithMaxTypeSize overrides the global declared-type complexity ceiling.
func (c *Config) WithMaxTypeSize(max uint64) *Config {
	ret := c.clone()
	ret.limits.MaxTypeSize = max
	return ret
}

// WithWorkerCount overrides how many goroutines the parallel function-body
// validation pool uses. A value of 0 lets the pool choose
// runtime.GOMAXPROCS(0) at Validate time.
func (c *Config) WithWorkerCount(n int) *Config {
	ret := c.clone()
	ret.workerCount = n
	return ret
}

// WithLogger installs a structured logger. Validate emits Debug-level
// entries at phase transitions (section entered, freeze point reached,
// worker pool dispatched) when a logger is installed; nil (the default)
// disables this entirely, including the cost of formatting the fields.
func (c *Config) WithLogger(logger *logrus.Logger) *Config {
	ret := c.clone()
	ret.logger = logger
	return ret
}
