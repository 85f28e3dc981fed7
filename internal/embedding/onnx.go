//go:build cgo
// +build cgo

package embedding

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/hyperjump/recall/pkg/utils"
	ort "github.com/yalue/onnxruntime_go"
)

const defaultONNXMaxTokens = 256

// Graph names expected in sentence-embedding exports with a pooled output.
var (
	onnxInputNames  = []string{"input_ids", "attention_mask", "token_type_ids"}
	onnxOutputNames = []string{"output"}
)

// onnxIO is the fixed set of tensors bound to a session. Inference rewrites
// the input buffers in place and reads the pooled output back.
type onnxIO struct {
	inputIDs      *ort.Tensor[int64]
	attentionMask *ort.Tensor[int64]
	tokenTypeIDs  *ort.Tensor[int64]
	output        *ort.Tensor[float32]
}

func newONNXIO(maxTokens, dimensions int) (*onnxIO, error) {
	io := &onnxIO{}
	seq := ort.NewShape(1, int64(maxTokens))
	var err error
	if io.inputIDs, err = ort.NewEmptyTensor[int64](seq); err != nil {
		return nil, fmt.Errorf("allocate input_ids: %w", err)
	}
	if io.attentionMask, err = ort.NewEmptyTensor[int64](seq); err != nil {
		io.destroy()
		return nil, fmt.Errorf("allocate attention_mask: %w", err)
	}
	if io.tokenTypeIDs, err = ort.NewEmptyTensor[int64](seq); err != nil {
		io.destroy()
		return nil, fmt.Errorf("allocate token_type_ids: %w", err)
	}
	if io.output, err = ort.NewEmptyTensor[float32](ort.NewShape(1, int64(dimensions))); err != nil {
		io.destroy()
		return nil, fmt.Errorf("allocate output: %w", err)
	}
	return io, nil
}

func (io *onnxIO) inputs() []ort.ArbitraryTensor {
	return []ort.ArbitraryTensor{io.inputIDs, io.attentionMask, io.tokenTypeIDs}
}

func (io *onnxIO) load(ids, mask, types []int64) {
	copy(io.inputIDs.GetData(), ids)
	copy(io.attentionMask.GetData(), mask)
	copy(io.tokenTypeIDs.GetData(), types)
}

func (io *onnxIO) destroy() {
	for _, t := range []*ort.Tensor[int64]{io.inputIDs, io.attentionMask, io.tokenTypeIDs} {
		if t != nil {
			_ = t.Destroy()
		}
	}
	if io.output != nil {
		_ = io.output.Destroy()
	}
	*io = onnxIO{}
}

// ONNXEmbedder runs a local sentence-embedding model through ONNX Runtime.
// The session takes one row at a time so calls are serialized.
type ONNXEmbedder struct {
	mu         sync.Mutex
	session    *ort.AdvancedSession
	io         *onnxIO
	tokenizer  Tokenizer
	dimensions int
	maxTokens  int
}

// NewONNXEmbedder loads modelPath. The onnxruntime shared library must be
// resolvable by the loader.
func NewONNXEmbedder(modelPath string, dimensions, maxTokens int) (*ONNXEmbedder, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("onnx embedder needs positive dimensions, got %d", dimensions)
	}
	if maxTokens <= 0 {
		maxTokens = defaultONNXMaxTokens
	}
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize onnx runtime: %w", err)
		}
	}

	io, err := newONNXIO(maxTokens, dimensions)
	if err != nil {
		return nil, err
	}
	session, err := ort.NewAdvancedSession(modelPath, onnxInputNames, onnxOutputNames,
		io.inputs(), []ort.ArbitraryTensor{io.output}, nil)
	if err != nil {
		io.destroy()
		return nil, fmt.Errorf("load onnx model %s: %w", modelPath, err)
	}

	return &ONNXEmbedder{
		session:    session,
		io:         io,
		tokenizer:  &SimpleTokenizer{},
		dimensions: dimensions,
		maxTokens:  maxTokens,
	}, nil
}

func (e *ONNXEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.infer(text)
}

func (e *ONNXEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vec, err := e.infer(text)
		if err != nil {
			return nil, fmt.Errorf("batch item %d: %w", i, err)
		}
		out = append(out, vec)
	}
	return out, nil
}

// infer must be called with mu held.
func (e *ONNXEmbedder) infer(text string) ([]float32, error) {
	if e.session == nil {
		return nil, errors.New("onnx embedder is closed")
	}
	e.io.load(e.tokenizer.Tokenize(text, e.maxTokens))
	if err := e.session.Run(); err != nil {
		return nil, fmt.Errorf("onnx inference: %w", err)
	}
	raw := e.io.output.GetData()
	if len(raw) < e.dimensions {
		return nil, ErrEmptyEmbedding
	}
	return utils.NormalizedCopy(raw[:e.dimensions]), nil
}

func (e *ONNXEmbedder) Dimensions() int { return e.dimensions }

func (e *ONNXEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	var err error
	if e.session != nil {
		err = e.session.Destroy()
		e.session = nil
	}
	if e.io != nil {
		e.io.destroy()
		e.io = nil
	}
	return err
}
