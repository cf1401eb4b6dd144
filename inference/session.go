// Package inference runs a box detector exported to ONNX and turns its output
// into mapeval detections.
package inference

import (
	"context"
	"fmt"
	"os"
	"sync"

	ort "github.com/yalue/onnxruntime_go"
)

var (
	ortEnvOnce sync.Once
	ortEnvErr  error
)

// initORT initializes ONNX Runtime environment once. A non-empty library path
// is only honoured by the first call.
func initORT(library string) error {
	ortEnvOnce.Do(func() {
		if library != "" {
			ort.SetSharedLibraryPath(library)
		}
		ortEnvErr = ort.InitializeEnvironment()
	})
	return ortEnvErr
}

// SessionConfig names the model file and its tensors.
type SessionConfig struct {
	ModelPath string
	// Library is the onnxruntime shared library; empty uses the platform default.
	Library      string
	InputName    string
	BoxesOutput  string
	ScoresOutput string
}

func (c SessionConfig) withDefaults() SessionConfig {
	if c.InputName == "" {
		c.InputName = "images"
	}
	if c.BoxesOutput == "" {
		c.BoxesOutput = "boxes"
	}
	if c.ScoresOutput == "" {
		c.ScoresOutput = "scores"
	}
	return c
}

// Input is one image as a CHW float tensor with batch size 1.
type Input struct {
	Data   []float32
	Height int
	Width  int
}

// Output holds the raw model boxes, in input pixel coordinates, and their
// scores.
type Output struct {
	Boxes  [][4]float32
	Scores []float32
}

// Runner executes the detector on one input. Session and Pool implement it.
type Runner interface {
	Run(ctx context.Context, in Input) (*Output, error)
}

// Session wraps an ONNX Runtime session. Run calls are serialized.
type Session struct {
	session *ort.DynamicAdvancedSession
	mu      sync.Mutex
	closed  bool
}

// NewSession creates a new ONNX session from a model file.
func NewSession(cfg SessionConfig) (*Session, error) {
	cfg = cfg.withDefaults()

	if _, err := os.Stat(cfg.ModelPath); err != nil {
		return nil, fmt.Errorf("model file: %w", err)
	}

	if err := initORT(cfg.Library); err != nil {
		return nil, fmt.Errorf("initializing ONNX runtime: %w", err)
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, fmt.Errorf("creating session options: %w", err)
	}
	defer func() { _ = options.Destroy() }()

	session, err := ort.NewDynamicAdvancedSession(
		cfg.ModelPath,
		[]string{cfg.InputName},
		[]string{cfg.BoxesOutput, cfg.ScoresOutput},
		options,
	)
	if err != nil {
		return nil, fmt.Errorf("creating session: %w", err)
	}

	return &Session{session: session}, nil
}

// Run feeds a [1,3,H,W] tensor and returns the decoded boxes and scores.
func (s *Session) Run(ctx context.Context, in Input) (*Output, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	if want := 3 * in.Height * in.Width; len(in.Data) != want || want == 0 {
		return nil, fmt.Errorf("input has %d values, want 3x%dx%d", len(in.Data), in.Height, in.Width)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrSessionClosed
	}

	input, err := ort.NewTensor(ort.NewShape(1, 3, int64(in.Height), int64(in.Width)), in.Data)
	if err != nil {
		return nil, fmt.Errorf("creating input tensor: %w", err)
	}
	defer func() { _ = input.Destroy() }()

	// nil entries are allocated by Run since N is only known afterwards
	outputs := []ort.Value{nil, nil}
	if err := s.session.Run([]ort.Value{input}, outputs); err != nil {
		return nil, fmt.Errorf("running inference: %w", err)
	}
	for _, o := range outputs {
		if o != nil {
			defer func() { _ = o.Destroy() }()
		}
	}

	return decodeOutputs(outputs[0], outputs[1])
}

func decodeOutputs(boxesVal, scoresVal ort.Value) (*Output, error) {
	if boxesVal == nil || scoresVal == nil {
		return nil, fmt.Errorf("no output produced")
	}
	boxesT, ok := boxesVal.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: boxes are not float32", ErrOutputShape)
	}
	scoresT, ok := scoresVal.(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("%w: scores are not float32", ErrOutputShape)
	}
	return unpack(boxesT.GetData(), scoresT.GetData())
}

// unpack splits flat model output into boxes and scores. Batch dimensions of
// size 1 do not change the flat layout, so only the counts are checked.
func unpack(boxes, scores []float32) (*Output, error) {
	if len(boxes) != 4*len(scores) {
		return nil, fmt.Errorf("%w: %d box values for %d scores", ErrOutputShape, len(boxes), len(scores))
	}

	out := &Output{
		Boxes:  make([][4]float32, len(scores)),
		Scores: make([]float32, len(scores)),
	}
	copy(out.Scores, scores)
	for i := range out.Boxes {
		copy(out.Boxes[i][:], boxes[4*i:4*i+4])
	}
	return out, nil
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
