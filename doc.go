// Package sentsplit provides sentence boundary detection for documents.
//
// Two model families implement [Model]:
//
//   - [Segmenter] runs wtpsplit/SaT ONNX models through ONNX Runtime,
//     on CPU or CUDA.
//   - [RuleSegmenter] splits on terminal punctuation and keeps known
//     abbreviations inside their sentence. It needs no model files.
//
// # Quick Start
//
//	seg, err := sentsplit.New("model.onnx", "sentencepiece.bpe.model")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer seg.Close()
//
//	spans, err := seg.Sentences(ctx, "Hello world. How are you?")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, s := range spans {
//	    fmt.Println(strings.TrimSpace(s.Text))
//	}
//
// # Thread Safety
//
// Both segmenters are safe for concurrent use. Segmenter manages an
// internal pool of ONNX sessions, configurable via WithPoolSize.
//
// # Model Files
//
// Download from HuggingFace:
//   - Model: https://huggingface.co/segment-any-text/sat-1l-sm/resolve/main/model_optimized.onnx
//   - Tokenizer: https://huggingface.co/xlm-roberta-base/resolve/main/sentencepiece.bpe.model
package sentsplit
