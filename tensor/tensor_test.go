package tensor

import (
	"math"
	"testing"
)

func TestNewValidatesShape(t *testing.T) {
	tests := []struct {
		name    string
		shape   []int
		data    []float32
		wantErr bool
	}{
		{"valid 3D", []int{2, 3, 4}, nil, false},
		{"empty shape", []int{}, nil, true},
		{"zero dim", []int{2, 0, 4}, nil, true},
		{"negative dim", []int{-1, 3}, nil, true},
		{"data length mismatch", []int{2, 2}, []float32{1, 2, 3}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.shape, tt.data)
			if (err != nil) != tt.wantErr {
				t.Errorf("New(%v) error = %v, wantErr %v", tt.shape, err, tt.wantErr)
			}
		})
	}
}

func TestStridesRowMajor(t *testing.T) {
	ts, err := New([]int{2, 3, 4}, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	want := []int{12, 4, 1}
	for i, s := range want {
		if ts.Strides[i] != s {
			t.Errorf("stride %d = %d, want %d", i, ts.Strides[i], s)
		}
	}
	if ts.NumElems != 24 {
		t.Errorf("NumElems = %d, want 24", ts.NumElems)
	}
}

func TestItem(t *testing.T) {
	s, err := New([]int{1}, []float32{3.5})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	v, err := s.Item()
	if err != nil {
		t.Fatalf("Item failed: %v", err)
	}
	if v != 3.5 {
		t.Errorf("Item = %v, want 3.5", v)
	}

	m, _ := Zeros([]int{2, 2})
	if _, err := m.Item(); err == nil {
		t.Error("Item on multi-element tensor should fail")
	}
}

func TestScaleInPlace(t *testing.T) {
	a, _ := New([]int{2, 2}, []float32{1, 2, 3, 4})
	ScaleInPlace(a, 0.5)
	want := []float32{0.5, 1, 1.5, 2}
	for i, v := range want {
		if a.Data[i] != v {
			t.Errorf("element %d = %v, want %v", i, a.Data[i], v)
		}
	}
}

func TestConcatTime(t *testing.T) {
	a, _ := New([]int{1, 2, 2}, []float32{1, 2, 3, 4})
	b, _ := New([]int{1, 1, 2}, []float32{5, 6})

	out, err := ConcatTime(a, b)
	if err != nil {
		t.Fatalf("ConcatTime failed: %v", err)
	}
	if !shapesEqual(out.Shape, []int{1, 3, 2}) {
		t.Fatalf("ConcatTime shape = %v, want [1 3 2]", out.Shape)
	}
	want := []float32{1, 2, 3, 4, 5, 6}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("element %d = %v, want %v", i, out.Data[i], v)
		}
	}
}

func TestSliceTimeTail(t *testing.T) {
	ts, _ := New([]int{2, 3, 1}, []float32{1, 2, 3, 4, 5, 6})
	out, err := SliceTimeTail(ts, 2)
	if err != nil {
		t.Fatalf("SliceTimeTail failed: %v", err)
	}
	want := []float32{2, 3, 5, 6}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("element %d = %v, want %v", i, out.Data[i], v)
		}
	}
}

// Channel tiling must repeat the per-step value pattern, so an output with one
// channel widened to four channels carries each original value four times.
func TestTileChannels(t *testing.T) {
	ts, _ := New([]int{1, 2, 1}, []float32{7, 9})
	out, err := TileChannels(ts, 4)
	if err != nil {
		t.Fatalf("TileChannels failed: %v", err)
	}
	if !shapesEqual(out.Shape, []int{1, 2, 4}) {
		t.Fatalf("TileChannels shape = %v, want [1 2 4]", out.Shape)
	}
	want := []float32{7, 7, 7, 7, 9, 9, 9, 9}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("element %d = %v, want %v", i, out.Data[i], v)
		}
	}
}

func TestRepeatLastStep(t *testing.T) {
	ts, _ := New([]int{1, 2, 2}, []float32{1, 2, 3, 4})
	out, err := RepeatLastStep(ts, 2)
	if err != nil {
		t.Fatalf("RepeatLastStep failed: %v", err)
	}
	want := []float32{1, 2, 3, 4, 3, 4, 3, 4}
	for i, v := range want {
		if out.Data[i] != v {
			t.Errorf("element %d = %v, want %v", i, out.Data[i], v)
		}
	}

	same, _ := RepeatLastStep(ts, 0)
	if !shapesEqual(same.Shape, ts.Shape) {
		t.Errorf("RepeatLastStep(0) shape = %v, want %v", same.Shape, ts.Shape)
	}
}

func TestConcatSamples(t *testing.T) {
	a, _ := New([]int{2, 1, 1}, []float32{1, 2})
	b, _ := New([]int{1, 1, 1}, []float32{3})
	out, err := ConcatSamples([]*Tensor{a, b})
	if err != nil {
		t.Fatalf("ConcatSamples failed: %v", err)
	}
	if !shapesEqual(out.Shape, []int{3, 1, 1}) {
		t.Fatalf("ConcatSamples shape = %v, want [3 1 1]", out.Shape)
	}
}

func TestAccumulateGrad(t *testing.T) {
	p, _ := Zeros([]int{2})
	p.SetRequiresGrad(true)

	g, _ := New([]int{2}, []float32{1, 2})
	if err := p.AccumulateGrad(g); err != nil {
		t.Fatalf("AccumulateGrad failed: %v", err)
	}
	if err := p.AccumulateGrad(g); err != nil {
		t.Fatalf("AccumulateGrad failed: %v", err)
	}
	if p.Grad().Data[1] != 4 {
		t.Errorf("accumulated grad = %v, want 4", p.Grad().Data[1])
	}

	ZeroGrad([]*Tensor{p})
	if p.Grad().Data[0] != 0 || p.Grad().Data[1] != 0 {
		t.Error("ZeroGrad did not reset gradients")
	}
}

func TestIsFinite(t *testing.T) {
	ok, _ := New([]int{2}, []float32{1, 2})
	if !IsFinite(ok) {
		t.Error("finite tensor reported non-finite")
	}
	bad, _ := New([]int{2}, []float32{1, float32(math.NaN())})
	if IsFinite(bad) {
		t.Error("NaN tensor reported finite")
	}
}

func TestFlattenBatchTime(t *testing.T) {
	ts, _ := Zeros([]int{4, 3, 2})
	flat, err := FlattenBatchTime(ts)
	if err != nil {
		t.Fatalf("FlattenBatchTime failed: %v", err)
	}
	if !shapesEqual(flat.Shape, []int{12, 2}) {
		t.Errorf("flattened shape = %v, want [12 2]", flat.Shape)
	}
}
