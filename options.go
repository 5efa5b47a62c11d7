package sentsplit

import (
	"log/slog"
	"runtime"

	"github.com/jamesainslie/go-sentsplit/inference"
)

// DefaultThreshold is the SaT boundary probability threshold.
const DefaultThreshold = 0.025

// Option configures a Segmenter.
type Option func(*config)

type config struct {
	threshold      float32
	poolSize       int
	device         inference.Device
	intraOpThreads int
	logger         *slog.Logger
}

func defaultConfig() config {
	return config{
		threshold: DefaultThreshold,
		poolSize:  runtime.NumCPU(),
		device:    inference.CPU,
		logger:    slog.Default(),
	}
}

// WithThreshold sets the boundary detection threshold (default: 0.025).
// Values outside (0, 1) are ignored.
func WithThreshold(t float32) Option {
	return func(c *config) {
		if t > 0 && t < 1 {
			c.threshold = t
		}
	}
}

// WithPoolSize sets the ONNX session pool size (default: runtime.NumCPU()).
func WithPoolSize(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.poolSize = n
		}
	}
}

// WithDevice selects the execution provider (default: inference.CPU).
func WithDevice(d inference.Device) Option {
	return func(c *config) {
		c.device = d
	}
}

// WithIntraOpThreads caps ONNX Runtime threads per session. Useful when
// several sessions share the CPU.
func WithIntraOpThreads(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.intraOpThreads = n
		}
	}
}

// WithLogger sets the logger (default: slog.Default()).
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}
