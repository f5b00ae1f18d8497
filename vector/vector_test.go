package vector

import (
	"math"
	"testing"
)

func TestCosineSimilarity(t *testing.T) {
	cases := []struct {
		name string
		a, b []float32
		want float32
	}{
		{"identical", []float32{1, 0, 0}, []float32{1, 0, 0}, 1},
		{"orthogonal", []float32{1, 0, 0}, []float32{0, 1, 0}, 0},
		{"opposite", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1},
		{"scale invariant", []float32{2, 0, 0}, []float32{5, 0, 0}, 1},
		{"length mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0},
		{"zero vector", []float32{0, 0, 0}, []float32{1, 0, 0}, 0},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			got := CosineSimilarity(c.a, c.b)
			if math.Abs(float64(got-c.want)) > 1e-6 {
				t.Errorf("CosineSimilarity = %f, want %f", got, c.want)
			}
		})
	}
}

func TestNormalize(t *testing.T) {
	v := Normalize([]float32{3, 4})
	if math.Abs(float64(v[0])-0.6) > 1e-6 || math.Abs(float64(v[1])-0.8) > 1e-6 {
		t.Errorf("unexpected normalized vector %v", v)
	}
}

func TestRecordClone(t *testing.T) {
	rec := &Record{ID: "a", Vector: []float32{1, 2}, Metadata: map[string]string{"k": "v"}}
	clone := rec.Clone()
	clone.Vector[0] = 9
	clone.Metadata["k"] = "changed"
	if rec.Vector[0] != 1 || rec.Metadata["k"] != "v" {
		t.Error("clone must not share backing storage with the original")
	}
}
