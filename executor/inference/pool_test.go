package inference

import (
	"errors"
	"os"
	"testing"

	"github.com/brensch/snekenv/convert"
)

type fakeClient struct {
	id     float32
	calls  int
	closed bool
	stats  RuntimeStats
}

func (f *fakeClient) Predict(convert.Observation) ([]float32, error) {
	f.calls++
	return []float32{f.id, 0, 0, 0}, nil
}

func (f *fakeClient) Stats() RuntimeStats { return f.stats }

func (f *fakeClient) Close() error {
	f.closed = true
	return nil
}

func TestOnnxPool_RoundRobin(t *testing.T) {
	a := &fakeClient{id: 1}
	b := &fakeClient{id: 2}
	p := &OnnxPool{clients: []predictCloser{a, b}}

	var got []float32
	for i := 0; i < 4; i++ {
		out, err := p.Predict(convert.Observation{})
		if err != nil {
			t.Fatalf("Predict: %v", err)
		}
		got = append(got, out[0])
	}
	want := []float32{1, 2, 1, 2}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("call %d went to client %v want %v", i, got[i], want[i])
		}
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if !a.closed || !b.closed {
		t.Fatalf("pool did not close all clients")
	}
}

func TestOnnxPool_Stats(t *testing.T) {
	p := &OnnxPool{clients: []predictCloser{
		&fakeClient{stats: RuntimeStats{TotalBatches: 2, TotalItems: 10, TotalRunNanos: 4e6, LastBatchSize: 3, QueueLen: 1}},
		&fakeClient{stats: RuntimeStats{TotalBatches: 2, TotalItems: 6, TotalRunNanos: 0, LastBatchSize: 5, QueueLen: 2}},
	}}
	st := p.Stats()
	if st.TotalItems != 16 || st.QueueLen != 3 || st.LastBatchSize != 5 {
		t.Fatalf("stats=%+v", st)
	}
	if st.AvgBatchSize != 4 || st.AvgRunMs != 1 {
		t.Fatalf("avg batch=%f run=%f want 4/1", st.AvgBatchSize, st.AvgRunMs)
	}
}

func TestOnnxPool_Empty(t *testing.T) {
	p := &OnnxPool{}
	if _, err := p.Predict(convert.Observation{}); !errors.Is(err, ErrNoClients) {
		t.Fatalf("err=%v want ErrNoClients", err)
	}
}

// TestOnnxClient_Model runs a real model when SNEKENV_TEST_MODEL points at
// one and the runtime library can be loaded.
func TestOnnxClient_Model(t *testing.T) {
	modelPath := os.Getenv("SNEKENV_TEST_MODEL")
	if modelPath == "" {
		t.Skip("SNEKENV_TEST_MODEL not set")
	}
	if err := InitRuntime(); err != nil {
		t.Skipf("onnx runtime unavailable: %v", err)
	}

	c, err := NewOnnxClient(modelPath)
	if err != nil {
		t.Fatalf("NewOnnxClient: %v", err)
	}
	defer c.Close()

	out, err := c.Predict(convert.Observation{0.5, 0.5, 0.25, 0.75})
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(out) != PolicySize {
		t.Fatalf("policy len=%d want %d", len(out), PolicySize)
	}
	if st := c.Stats(); st.TotalItems != 1 {
		t.Fatalf("stats items=%d want 1", st.TotalItems)
	}
}

func TestNewOnnxClient_MissingModel(t *testing.T) {
	if _, err := NewOnnxClient("does/not/exist.onnx"); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("err=%v want os.ErrNotExist", err)
	}
}
