// Package inference provides ONNX Runtime integration for SaT model inference.
package inference

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortEnvOnce  sync.Once
	ortEnvErr   error
	libraryMu   sync.Mutex
	libraryPath string
)

// ErrSessionClosed is returned by Infer after Close.
var ErrSessionClosed = errors.New("inference: session is closed")

// SetLibraryPath sets the ONNX Runtime shared library to load. It only has
// an effect before the first session or probe initializes the runtime.
func SetLibraryPath(path string) {
	libraryMu.Lock()
	defer libraryMu.Unlock()
	libraryPath = path
}

// initORT initializes ONNX Runtime environment once.
func initORT() error {
	ortEnvOnce.Do(func() {
		libraryMu.Lock()
		path := libraryPath
		libraryMu.Unlock()

		if path != "" {
			ort.SetSharedLibraryPath(path)
		}
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// Device selects the execution provider for a session.
type Device int

const (
	CPU Device = iota
	CUDA
)

func (d Device) String() string {
	switch d {
	case CPU:
		return "cpu"
	case CUDA:
		return "cuda"
	default:
		return "Device(" + strconv.Itoa(int(d)) + ")"
	}
}

// SessionOptions configures NewSession.
type SessionOptions struct {
	Device Device
	// DeviceID is the CUDA device ordinal.
	DeviceID int
	// IntraOpThreads caps ONNX Runtime's per-session thread pool; 0 keeps
	// the runtime default.
	IntraOpThreads int
}

// Session wraps an ONNX Runtime session for SaT inference.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from a model file.
func NewSession(modelPath string, opts SessionOptions) (*Session, error) {
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	if opts.IntraOpThreads > 0 {
		if err := options.SetIntraOpNumThreads(opts.IntraOpThreads); err != nil {
			return nil, fmt.Errorf("setting intra-op threads: %w", err)
		}
	}
	if opts.Device == CUDA {
		if err := appendCUDA(options, opts.DeviceID); err != nil {
			return nil, err
		}
	}

	// Input/output names from model inspection
	inputNames := []string{"input_ids", "attention_mask"}
	outputNames := []string{"logits"}

	session, err := ort.NewDynamicAdvancedSession(
		modelPath,
		inputNames,
		outputNames,
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Infer runs the model on tokenized input, returns per-token logits.
func (s *Session) Infer(ctx context.Context, inputIDs, attentionMask []int64) ([]float32, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	batchSize := int64(1)
	seqLen := int64(len(inputIDs))

	inputIDsTensor, err := ort.NewTensor(ort.NewShape(batchSize, seqLen), inputIDs)
	if err != nil {
		return nil, fmt.Errorf("creating input_ids tensor: %w", err)
	}
	defer func() { _ = inputIDsTensor.Destroy() }()

	attentionMaskTensor, err := ort.NewTensor(ort.NewShape(batchSize, seqLen), attentionMask)
	if err != nil {
		return nil, fmt.Errorf("creating attention_mask tensor: %w", err)
	}
	defer func() { _ = attentionMaskTensor.Destroy() }()

	inputs := []ort.Value{inputIDsTensor, attentionMaskTensor}
	// nil entries are allocated by Run
	outputs := []ort.Value{nil}

	if err := s.session.Run(inputs, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}

	if outputs[0] == nil {
		return nil, errors.New("no output produced")
	}
	defer func() { _ = outputs[0].Destroy() }()

	logitsTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("unexpected output tensor type %T", outputs[0])
	}

	outputData := logitsTensor.GetData()
	if int64(len(outputData)) < seqLen {
		return nil, fmt.Errorf("model returned %d logits for %d tokens", len(outputData), seqLen)
	}
	logits := make([]float32, seqLen)
	copy(logits, outputData[:seqLen])

	return logits, nil
}

// Close releases ONNX resources.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.session != nil {
		return s.session.Destroy()
	}
	return nil
}
