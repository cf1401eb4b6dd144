package inference

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"
)

const testModelPath = "../testdata/detector.onnx"

func testSessionConfig() SessionConfig {
	return SessionConfig{ModelPath: testModelPath, Library: os.Getenv("ONNXRUNTIME_LIB")}
}

// openTestSession skips the test when the model or the runtime is missing.
func openTestSession(t *testing.T) *Session {
	t.Helper()

	if _, err := os.Stat(testModelPath); err != nil {
		t.Skipf("Skipping: model not available at %s", testModelPath)
	}

	session, err := NewSession(testSessionConfig())
	if err != nil {
		if isORTUnavailableError(err) {
			t.Skipf("Skipping: ONNX runtime not available: %v", err)
		}
		t.Fatalf("NewSession failed: %v", err)
	}
	return session
}

func testInput() Input {
	const h, w = 64, 64
	data := make([]float32, 3*h*w)
	for i := range data {
		data[i] = 0.5
	}
	return Input{Data: data, Height: h, Width: w}
}

func TestNewSession_FileNotFound(t *testing.T) {
	_, err := NewSession(SessionConfig{ModelPath: "../testdata/nonexistent.onnx"})
	if err == nil {
		t.Error("expected error for non-existent file")
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("expected os.ErrNotExist, got: %v", err)
	}
}

func TestSession_Run(t *testing.T) {
	session := openTestSession(t)
	defer func() { _ = session.Close() }()

	out, err := session.Run(context.Background(), testInput())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	if len(out.Boxes) != len(out.Scores) {
		t.Errorf("%d boxes for %d scores", len(out.Boxes), len(out.Scores))
	}
}

func TestSession_Run_BadInput(t *testing.T) {
	session := openTestSession(t)
	defer func() { _ = session.Close() }()

	_, err := session.Run(context.Background(), Input{Data: make([]float32, 5), Height: 2, Width: 2})
	if err == nil {
		t.Error("expected error for mismatched input size")
	}
}

func TestSession_Run_ContextCancellation(t *testing.T) {
	session := openTestSession(t)
	defer func() { _ = session.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := session.Run(ctx, testInput())
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
}

func TestSession_Run_ContextTimeout(t *testing.T) {
	session := openTestSession(t)
	defer func() { _ = session.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), -time.Second)
	defer cancel()

	_, err := session.Run(ctx, testInput())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected context.DeadlineExceeded error, got: %v", err)
	}
}

func TestSession_Close_Idempotent(t *testing.T) {
	session := openTestSession(t)

	if err := session.Close(); err != nil {
		t.Errorf("first Close failed: %v", err)
	}
	if err := session.Close(); err != nil {
		t.Errorf("second Close failed: %v", err)
	}
}

func TestSession_Run_AfterClose(t *testing.T) {
	session := openTestSession(t)

	if err := session.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	_, err := session.Run(context.Background(), testInput())
	if !errors.Is(err, ErrSessionClosed) {
		t.Errorf("expected ErrSessionClosed, got %v", err)
	}
}

// isORTUnavailableError checks if the error indicates ONNX runtime is not available.
func isORTUnavailableError(err error) bool {
	if err == nil {
		return false
	}
	errStr := err.Error()
	return strings.Contains(errStr, "onnxruntime") ||
		strings.Contains(errStr, "shared library") ||
		strings.Contains(errStr, "dylib") ||
		strings.Contains(errStr, ".so") ||
		strings.Contains(errStr, ".dll") ||
		strings.Contains(errStr, "not found") ||
		strings.Contains(errStr, "cannot open") ||
		strings.Contains(errStr, "initializing ONNX runtime")
}
