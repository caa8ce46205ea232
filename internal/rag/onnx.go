package rag

import (
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

// CrossEncoder runs the ONNX pair-classification model. Input: batched
// (query, document) encodings; output: one relevance logit per pair.
type CrossEncoder struct {
	modelPath string
	maxSeqLen int

	mu          sync.Mutex
	initialized bool
}

// NewCrossEncoder initializes the ONNX runtime for the given model. The
// runtime environment is global; initialization happens once per process.
func NewCrossEncoder(modelPath string, maxSeqLen int) (*CrossEncoder, error) {
	if !ort.IsInitialized() {
		if err := ort.InitializeEnvironment(); err != nil {
			return nil, fmt.Errorf("initialize ONNX runtime: %w", err)
		}
	}

	return &CrossEncoder{
		modelPath:   modelPath,
		maxSeqLen:   maxSeqLen,
		initialized: true,
	}, nil
}

// ScorePairs runs inference on a batch of encoded pairs and returns one
// relevance logit per pair, in input order.
func (c *CrossEncoder) ScorePairs(encodings []*PairEncoding) ([]float64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.initialized {
		return nil, fmt.Errorf("cross-encoder not initialized")
	}

	batchSize := len(encodings)
	if batchSize == 0 {
		return nil, nil
	}
	seqLen := c.maxSeqLen

	flatInputIDs := make([]int64, batchSize*seqLen)
	flatAttentionMask := make([]int64, batchSize*seqLen)
	flatTokenTypeIDs := make([]int64, batchSize*seqLen)

	for i, enc := range encodings {
		if len(enc.InputIDs) != seqLen {
			return nil, fmt.Errorf("encoding %d has length %d, want %d", i, len(enc.InputIDs), seqLen)
		}
		copy(flatInputIDs[i*seqLen:(i+1)*seqLen], enc.InputIDs)
		copy(flatAttentionMask[i*seqLen:(i+1)*seqLen], enc.AttentionMask)
		copy(flatTokenTypeIDs[i*seqLen:(i+1)*seqLen], enc.TokenTypeIDs)
	}

	inputShape := ort.NewShape(int64(batchSize), int64(seqLen))

	inputIDsTensor, err := ort.NewTensor(inputShape, flatInputIDs)
	if err != nil {
		return nil, fmt.Errorf("create input_ids tensor: %w", err)
	}
	defer inputIDsTensor.Destroy()

	attentionMaskTensor, err := ort.NewTensor(inputShape, flatAttentionMask)
	if err != nil {
		return nil, fmt.Errorf("create attention_mask tensor: %w", err)
	}
	defer attentionMaskTensor.Destroy()

	tokenTypeTensor, err := ort.NewTensor(inputShape, flatTokenTypeIDs)
	if err != nil {
		return nil, fmt.Errorf("create token_type_ids tensor: %w", err)
	}
	defer tokenTypeTensor.Destroy()

	// Sequence-classification head: [batch, 1] logits.
	outputShape := ort.NewShape(int64(batchSize), 1)
	outputData := make([]float32, batchSize)
	outputTensor, err := ort.NewTensor(outputShape, outputData)
	if err != nil {
		return nil, fmt.Errorf("create output tensor: %w", err)
	}
	defer outputTensor.Destroy()

	session, err := ort.NewAdvancedSession(
		c.modelPath,
		[]string{"input_ids", "attention_mask", "token_type_ids"},
		[]string{"logits"},
		[]ort.ArbitraryTensor{inputIDsTensor, attentionMaskTensor, tokenTypeTensor},
		[]ort.ArbitraryTensor{outputTensor},
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("create ONNX session: %w", err)
	}
	defer session.Destroy()

	if err := session.Run(); err != nil {
		return nil, fmt.Errorf("ONNX inference failed: %w", err)
	}

	logits := outputTensor.GetData()
	scores := make([]float64, batchSize)
	for i := range scores {
		scores[i] = float64(logits[i])
	}
	return scores, nil
}

// Close marks the encoder as released. The global runtime environment is left
// alone; it is torn down only at process exit.
func (c *CrossEncoder) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.initialized = false
	return nil
}
