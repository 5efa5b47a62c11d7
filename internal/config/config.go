// Package config resolves the sentence-splitter configuration from defaults,
// an optional YAML file, an optional .env file, SENTSPLIT_* environment
// variables and command-line flags, in increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/jamesainslie/go-sentsplit/internal/input"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SENTSPLIT"

// Flag names double as viper keys and, upper-cased with '-' replaced by
// '_', as environment variable suffixes.
const (
	KeyEncoding   = "encoding"
	KeyModelName  = "spacy-model-name"
	KeyBufferSize = "buffer-size"
	KeyNProcess   = "n-process"
	KeyUseGPU     = "use-gpu"
	KeyModelDir   = "model-dir"
	KeyORTLibrary = "onnxruntime-library"
	KeyThreshold  = "threshold"
	KeyLogLevel   = "log-level"
	KeyNoProgress = "no-progress"
)

// Defaults.
const (
	DefaultEncoding  = "utf-8"
	DefaultModelName = "en_core_web_sm"
	DefaultNProcess  = -1
	DefaultLogLevel  = "warn"
)

// ErrInvalidArgument is returned for flag, environment or config file values
// that fail validation.
var ErrInvalidArgument = errors.New("invalid argument")

// GPUPolicy selects whether inference may or must run on a GPU.
type GPUPolicy string

// GPU policies.
const (
	GPUNo      GPUPolicy = "no"
	GPUPrefer  GPUPolicy = "prefer"
	GPURequire GPUPolicy = "require"
)

// String implements pflag.Value.
func (p *GPUPolicy) String() string { return string(*p) }

// Set implements pflag.Value; it rejects anything but no, prefer and require.
func (p *GPUPolicy) Set(s string) error {
	switch GPUPolicy(s) {
	case GPUNo, GPUPrefer, GPURequire:
		*p = GPUPolicy(s)
		return nil
	}
	return fmt.Errorf("must be one of %q, %q, %q", GPUNo, GPUPrefer, GPURequire)
}

// Type implements pflag.Value.
func (p *GPUPolicy) Type() string { return "string" }

// Config is the resolved run configuration. It is built once and not
// mutated afterwards.
type Config struct {
	// Path is the input file, or "-" for standard input.
	Path       string    `mapstructure:"-" validate:"required"`
	Encoding   string    `mapstructure:"encoding" validate:"required"`
	ModelName  string    `mapstructure:"spacy-model-name" validate:"required"`
	BufferSize int       `mapstructure:"buffer-size" validate:"gte=0"` // 0 means the pipeline default
	NProcess   int       `mapstructure:"n-process" validate:"gte=-1,ne=0"`
	UseGPU     GPUPolicy `mapstructure:"use-gpu" validate:"oneof=no prefer require"`
	ModelDir   string    `mapstructure:"model-dir"`
	ORTLibrary string    `mapstructure:"onnxruntime-library"`
	Threshold  float64   `mapstructure:"threshold" validate:"gte=0,lt=1"`
	LogLevel   string    `mapstructure:"log-level" validate:"oneof=debug info warn error"`
	NoProgress bool      `mapstructure:"no-progress"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		Path:      input.Stdin,
		Encoding:  DefaultEncoding,
		ModelName: DefaultModelName,
		NProcess:  DefaultNProcess,
		UseGPU:    GPUNo,
		ModelDir:  DefaultModelDir(),
		LogLevel:  DefaultLogLevel,
	}
}

// DefaultModelDir returns $XDG_CACHE_HOME/sentsplit/models, or a path
// relative to the working directory when no cache directory is known.
func DefaultModelDir() string {
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(".sentsplit", "models")
	}
	return filepath.Join(dir, "sentsplit", "models")
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks c and returns an error wrapping ErrInvalidArgument that
// names every offending field.
func (c Config) Validate() error {
	var errs []error

	if err := getValidator().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return fmt.Errorf("%w: %w", ErrInvalidArgument, err)
		}
		for _, fe := range verrs {
			errs = append(errs, fmt.Errorf("%s: %s", fieldFlag(fe.StructField()), describe(fe)))
		}
	}
	if _, err := input.LookupEncoding(c.Encoding); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", KeyEncoding, err))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidArgument, errors.Join(errs...))
}

func fieldFlag(field string) string {
	switch field {
	case "Path":
		return "path"
	case "Encoding":
		return KeyEncoding
	case "ModelName":
		return KeyModelName
	case "BufferSize":
		return KeyBufferSize
	case "NProcess":
		return KeyNProcess
	case "UseGPU":
		return KeyUseGPU
	case "Threshold":
		return KeyThreshold
	case "LogLevel":
		return KeyLogLevel
	}
	return strings.ToLower(field)
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "oneof":
		return fmt.Sprintf("must be one of %s, got %v", strings.ReplaceAll(fe.Param(), " ", ", "), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", fe.Param(), fe.Value())
	case "ne":
		return fmt.Sprintf("must not be %s", fe.Param())
	}
	return fmt.Sprintf("failed %s validation", fe.Tag())
}

// RegisterFlags defines one flag per configuration key on fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String(KeyEncoding, d.Encoding, "text encoding of the input")
	fs.String(KeyModelName, d.ModelName, "sentence model: a built-in name, a directory under --model-dir, or a model directory path")
	fs.Int(KeyBufferSize, 0, "documents per batch (default 1000)")
	fs.Int(KeyNProcess, d.NProcess, "worker count; -1 uses every CPU, or 1 on a GPU")
	policy := d.UseGPU
	fs.Var(&policy, KeyUseGPU, "run the model on a GPU: no, prefer or require")
	fs.String(KeyModelDir, d.ModelDir, "directory searched for models by name")
	fs.String(KeyORTLibrary, "", "path to the ONNX Runtime shared library")
	fs.Float64(KeyThreshold, 0, "boundary probability threshold for SaT models (default: the model's)")
	fs.String(KeyLogLevel, d.LogLevel, "log level: debug, info, warn or error")
	fs.Bool(KeyNoProgress, false, "disable the progress bar")
}

// NewViper returns a viper instance that reads SENTSPLIT_* environment
// variables and falls back to the values of flags.
func NewViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("binding flags: %w", err)
		}
	}
	return v, nil
}

// LoadOptions names the optional files read by Load.
type LoadOptions struct {
	// ConfigFile is a YAML file; empty skips it.
	ConfigFile string
	// EnvFile is a dotenv file; a missing file is ignored.
	EnvFile string
}

// Load resolves a Config for path from v, which should come from NewViper.
// Variables already present in the environment win over the env file.
func Load(v *viper.Viper, path string, opts LoadOptions) (Config, error) {
	if opts.ConfigFile != "" {
		v.SetConfigFile(opts.ConfigFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("%w: reading config file %s: %w", ErrInvalidArgument, opts.ConfigFile, err)
		}
	}
	if err := loadDotEnv(opts.EnvFile); err != nil {
		return Config{}, fmt.Errorf("%w: loading %s: %w", ErrInvalidArgument, opts.EnvFile, err)
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("%w: %w", ErrInvalidArgument, err)
	}
	cfg.Path = path
	if cfg.ModelDir == "" {
		cfg.ModelDir = DefaultModelDir()
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// loadDotEnv loads path into the environment. A missing file is not an
// error, so .env files stay optional.
func loadDotEnv(path string) error {
	if path == "" {
		return nil
	}
	err := godotenv.Load(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}
