package carvekit

import (
	"errors"

	"github.com/gobeaver/beaver-kit/config"

	"github.com/Will-Banksy/carvekit/pairing"
	"github.com/Will-Banksy/carvekit/pattern"
	"github.com/Will-Banksy/carvekit/validate"
)

var (
	errPositive          = errors.New("must be positive")
	errBlockSizeTooSmall = errors.New("block_size must be at least 2x the longest registered header/footer pattern")
)

// Config is the run-level configuration §6 names: block_size and
// cluster_size govern the Streaming Reader and bi-fragment reconstruction,
// FileTypes is the loaded signature set (EnvConfig.Resolve narrows it by
// ExtensionFilter; NewEngine uses FileTypes as given), IOStrategy selects the registered ioblock.Source driver, UseGPU
// selects the PFAC-simulation backend over the plain CPU-AC one, and
// MaxMatchesPerDispatch bounds each search.PFACSearcher's output buffer.
type Config struct {
	BlockSize   int
	ClusterSize int

	FileTypes       []pattern.FileTypeSpec
	ExtensionFilter string

	IOStrategy            string
	UseGPU                bool
	MaxMatchesPerDispatch int

	// OnEvent, if set, is called for each structured lifecycle event the
	// engine emits (block read, dispatch overflow, candidate validated,
	// stage cancelled) - a plain func value rather than an interface,
	// matching filekit.Option's idiom. Wiring this to log/slog or anything
	// else is the caller's job; carvekit pulls in no logging library of
	// its own, the same way the teacher doesn't.
	OnEvent func(Event)
}

// EventKind names the lifecycle point an Event describes.
type EventKind int

const (
	EventBlockRead EventKind = iota
	EventDispatchOverflow
	EventCandidateValidated
	EventStageCancelled
)

func (k EventKind) String() string {
	switch k {
	case EventBlockRead:
		return "block_read"
	case EventDispatchOverflow:
		return "dispatch_overflow"
	case EventCandidateValidated:
		return "candidate_validated"
	case EventStageCancelled:
		return "stage_cancelled"
	default:
		return "unknown"
	}
}

// Event is one structured lifecycle notification an Engine run emits
// through Config.OnEvent. Fields outside of Kind are populated only when
// relevant to that kind; zero values mean "not applicable".
type Event struct {
	Kind EventKind

	// BlockOffset/BlockLen are set for EventBlockRead.
	BlockOffset uint64
	BlockLen    int

	// Dropped is set for EventDispatchOverflow: how many matches a
	// dispatch found past its output buffer's capacity.
	Dropped int

	// Candidate/Validation are set for EventCandidateValidated.
	Candidate  *pairing.CarveCandidate
	Validation *validate.Validation

	// Stage is set for EventStageCancelled ("match" or "validate").
	Stage string
}

func (cfg *Config) emit(ev Event) {
	if cfg.OnEvent != nil {
		cfg.OnEvent(ev)
	}
}

// DefaultBlockSize and DefaultClusterSize are §6's stated defaults.
const (
	DefaultBlockSize             = 1 << 20 // 1 MiB
	DefaultClusterSize           = 4096
	DefaultMaxMatchesPerDispatch = 4096
)

// EnvConfig holds the subset of Config that is plain scalars - the parts
// beaver-kit config.Load can populate straight from the process
// environment, mirroring filekit.Config's env tag idiom. FileTypes isn't
// representable as a flat env var and is loaded separately (by whatever
// deserializes the file_types configuration source) and merged in.
type EnvConfig struct {
	BlockSize             int    `env:"CARVEKIT_BLOCK_SIZE,default:1048576"`
	ClusterSize           int    `env:"CARVEKIT_CLUSTER_SIZE,default:4096"`
	IOStrategy            string `env:"CARVEKIT_IO_STRATEGY,default:buffered"`
	UseGPU                bool   `env:"CARVEKIT_USE_GPU,default:false"`
	MaxMatchesPerDispatch int    `env:"CARVEKIT_MAX_MATCHES_PER_DISPATCH,default:4096"`
	ExtensionFilter       string `env:"CARVEKIT_EXTENSION_FILTER"`
}

// LoadEnvConfig reads an EnvConfig from the process environment.
func LoadEnvConfig() (*EnvConfig, error) {
	cfg := &EnvConfig{}
	if err := config.Load(cfg); err != nil {
		return nil, &ConfigError{Field: "env", Err: err}
	}
	return cfg, nil
}

// Resolve combines e with a loaded FileTypeSpec set into a full Config,
// applying ExtensionFilter (pattern.FilterByExtension) when set and
// validating the block_size >= 2*max_pattern_length constraint §4.3
// states as advisory for ioblock.NewReader but mandatory here, since a
// violation here is a configuration mistake worth rejecting outright
// rather than silently under-performing.
func (e *EnvConfig) Resolve(types []pattern.FileTypeSpec) (*Config, error) {
	cfg := &Config{
		BlockSize:             e.BlockSize,
		ClusterSize:           e.ClusterSize,
		FileTypes:             types,
		ExtensionFilter:       e.ExtensionFilter,
		IOStrategy:            e.IOStrategy,
		UseGPU:                e.UseGPU,
		MaxMatchesPerDispatch: e.MaxMatchesPerDispatch,
	}

	if cfg.ExtensionFilter != "" {
		filtered, err := pattern.FilterByExtension(cfg.FileTypes, cfg.ExtensionFilter)
		if err != nil {
			return nil, &ConfigError{Field: "extension_filter", Value: cfg.ExtensionFilter, Err: err}
		}
		cfg.FileTypes = filtered
	}

	if cfg.BlockSize <= 0 {
		return nil, &ConfigError{Field: "block_size", Value: cfg.BlockSize, Err: errPositive}
	}
	if cfg.ClusterSize <= 0 {
		return nil, &ConfigError{Field: "cluster_size", Value: cfg.ClusterSize, Err: errPositive}
	}

	maxPat := pattern.MaxPatternLength(cfg.FileTypes)
	if cfg.BlockSize < 2*maxPat {
		return nil, &ConfigError{Field: "block_size", Value: cfg.BlockSize, Err: errBlockSizeTooSmall}
	}

	return cfg, nil
}
