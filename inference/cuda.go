package inference

import (
	"fmt"
	"strconv"

	ort "github.com/yalue/onnxruntime_go"
)

// appendCUDA attaches the CUDA execution provider to options.
func appendCUDA(options *ort.SessionOptions, deviceID int) error {
	cuda, err := ort.NewCUDAProviderOptions()
	if err != nil {
		return fmt.Errorf("creating CUDA provider options: %w", err)
	}
	defer func() { _ = cuda.Destroy() }()

	if err := cuda.Update(map[string]string{"device_id": strconv.Itoa(deviceID)}); err != nil {
		return fmt.Errorf("configuring CUDA provider: %w", err)
	}
	if err := options.AppendExecutionProviderCUDA(cuda); err != nil {
		return fmt.Errorf("appending CUDA provider: %w", err)
	}
	return nil
}

// ProbeCUDA reports whether the loaded ONNX Runtime can attach the CUDA
// execution provider. A nil error means GPU inference is available.
func ProbeCUDA() error {
	if err := initORT(); err != nil {
		return fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	return appendCUDA(options, 0)
}
