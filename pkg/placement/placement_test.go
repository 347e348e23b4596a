package placement

import (
	"math"
	"testing"

	"github.com/chazu/fasten/pkg/attach"
	"github.com/chazu/fasten/pkg/kernel"
	v3 "github.com/deadsy/sdfx/vec/v3"
)

func near(a, b [3]float64) bool {
	for i := range 3 {
		if math.Abs(a[i]-b[i]) > 1e-9 {
			return false
		}
	}
	return true
}

func TestCompute(t *testing.T) {
	hole := &attach.Feature{
		Kind:        attach.ElementEdge,
		Origin:      v3.Vec{X: 10, Y: 5, Z: 3},
		Normal:      v3.Vec{Z: 2},
		InnerRadius: 3,
	}
	tests := []struct {
		name   string
		f      *attach.Feature
		invert bool
		offset float64
		want   kernel.Placement
	}{
		{
			name: "on surface",
			f:    hole,
			want: kernel.Placement{Origin: [3]float64{10, 5, 3}, Axis: [3]float64{0, 0, 1}},
		},
		{
			name:   "offset along normal",
			f:      hole,
			offset: 2,
			want:   kernel.Placement{Origin: [3]float64{10, 5, 5}, Axis: [3]float64{0, 0, 1}},
		},
		{
			name:   "inverted with offset",
			f:      hole,
			invert: true,
			offset: 2,
			want:   kernel.Placement{Origin: [3]float64{10, 5, 1}, Axis: [3]float64{0, 0, -1}},
		},
		{
			name: "zero normal falls back to +Z",
			f:    &attach.Feature{Origin: v3.Vec{X: 1}},
			want: kernel.Placement{Origin: [3]float64{1, 0, 0}, Axis: [3]float64{0, 0, 1}},
		},
		{
			name:   "side face",
			f:      &attach.Feature{Kind: attach.ElementFace, Normal: v3.Vec{X: -1}},
			offset: 1.5,
			want:   kernel.Placement{Origin: [3]float64{-1.5, 0, 0}, Axis: [3]float64{-1, 0, 0}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Compute(tt.f, tt.invert, tt.offset)
			if !ok {
				t.Fatal("Compute() ok = false")
			}
			if !near(got.Origin, tt.want.Origin) || !near(got.Axis, tt.want.Axis) {
				t.Errorf("Compute() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestComputeWithoutTarget(t *testing.T) {
	if _, ok := Compute(nil, true, 5); ok {
		t.Error("Compute(nil) ok = true, want false")
	}
}
