package carvekit

import (
	"errors"
	"fmt"
)

// ConfigError records a rejected configuration value - a bad io_strategy
// name, a block_size smaller than the pattern set's required overlap, a
// FileTypeSpec that fails pattern.FileTypeSpec.Validate, a pattern
// fingerprint collision from pattern.BuildIndex. Grounded on
// filekit.PathError's category-tagged-struct idiom: a typed field set
// callers can switch on with errors.As, rather than a bag of sentinel
// errors.
type ConfigError struct {
	Field string
	Value any
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("carvekit: config %s=%v: %v", e.Field, e.Value, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IOError records a failure reading from a Source or writing carved
// output - a network read against input/sftp or input/s3 timing out, a
// local file disappearing mid-run, a destination directory that isn't
// writable.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("carvekit: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

// ComputeError records a Match Engine or Validator Framework failure that
// isn't a validation verdict - a Searcher error other than
// search.MatchBufferOverflowError (which the engine treats as non-fatal),
// or the run's context being cancelled during the match or validation
// stage. It is distinct from a
// validate.Validation carrying Verdict: Invalid, which is a normal
// carving outcome, not an error (§7): a candidate that doesn't validate is
// reported, not failed.
type ComputeError struct {
	Stage string
	Err   error
}

func (e *ComputeError) Error() string {
	return fmt.Sprintf("carvekit: %s: %v", e.Stage, e.Err)
}

func (e *ComputeError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is (or wraps) a *ConfigError.
func IsConfigError(err error) bool {
	var e *ConfigError
	return errors.As(err, &e)
}

// IsIOError reports whether err is (or wraps) an *IOError.
func IsIOError(err error) bool {
	var e *IOError
	return errors.As(err, &e)
}

// IsComputeError reports whether err is (or wraps) a *ComputeError.
func IsComputeError(err error) bool {
	var e *ComputeError
	return errors.As(err, &e)
}
