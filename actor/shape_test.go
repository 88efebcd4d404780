package actor

import (
	"math"
	"testing"

	"github.com/go-gl/mathgl/mgl64"
)

// Helper functions
func vec3Equal(a, b mgl64.Vec3, tolerance float64) bool {
	return math.Abs(a.X()-b.X()) < tolerance &&
		math.Abs(a.Y()-b.Y()) < tolerance &&
		math.Abs(a.Z()-b.Z()) < tolerance
}

func floatEqual(a, b, tolerance float64) bool {
	return math.Abs(a-b) < tolerance
}

// Helper function to compare 3x3 matrices
func mat3Equal(a, b mgl64.Mat3, tolerance float64) bool {
	for i := 0; i < 3; i++ {
		for j := 0; j < 3; j++ {
			if math.Abs(a.At(i, j)-b.At(i, j)) >= tolerance {
				return false
			}
		}
	}
	return true
}

// ========== INERTIA MATRIX TESTS ==========
func TestBoxComputeInertia(t *testing.T) {
	tests := []struct {
		name         string
		box          *Box
		mass         float64
		expectedDiag mgl64.Vec3 // diagonal elements (ix, iy, iz)
	}{
		{
			name:         "unit cube",
			box:          &Box{HalfExtents: mgl64.Vec3{1, 1, 1}},
			mass:         12.0,                // m/12 = 1.0
			expectedDiag: mgl64.Vec3{8, 8, 8}, // (2*2 + 2*2, 2*2 + 2*2, 2*2 + 2*2)
		},
		{
			name:         "rectangular box 2x3x4",
			box:          &Box{HalfExtents: mgl64.Vec3{2, 3, 4}},
			mass:         12.0,
			expectedDiag: mgl64.Vec3{100, 80, 52}, // (m/12)*(3²+4²), (m/12)*(2²+4²), (m/12)*(2²+3²)
		},
		{
			name:         "thin box",
			box:          &Box{HalfExtents: mgl64.Vec3{0.1, 5, 0.1}},
			mass:         60.0,
			expectedDiag: mgl64.Vec3{500.2, 0.4, 500.2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.box.ComputeInertia(tt.mass)

			// Off-diagonal terms must be zero
			if !floatEqual(result.At(0, 1), 0.0, 1e-9) || !floatEqual(result.At(0, 2), 0.0, 1e-9) ||
				!floatEqual(result.At(1, 0), 0.0, 1e-9) || !floatEqual(result.At(1, 2), 0.0, 1e-9) ||
				!floatEqual(result.At(2, 0), 0.0, 1e-9) || !floatEqual(result.At(2, 1), 0.0, 1e-9) {
				t.Errorf("ComputeInertia() returned non-diagonal matrix: %v", result)
			}

			// Diagonal terms
			if !vec3Equal(result.Diag(), tt.expectedDiag, 1e-6) {
				t.Errorf("ComputeInertia() diagonal = %v, want %v", result.Diag(), tt.expectedDiag)
			}
		})
	}
}

func TestSphereComputeInertia(t *testing.T) {
	tests := []struct {
		name      string
		sphere    *Sphere
		mass      float64
		expectedI float64 // identical on all axes
	}{
		{
			name:      "unit sphere",
			sphere:    &Sphere{Radius: 1.0},
			mass:      5.0,
			expectedI: (2.0 / 5.0) * 5.0 * 1.0 * 1.0, // 2
		},
		{
			name:      "sphere radius 2",
			sphere:    &Sphere{Radius: 2.0},
			mass:      10.0,
			expectedI: (2.0 / 5.0) * 10.0 * 4.0, // 16
		},
		{
			name:      "small sphere",
			sphere:    &Sphere{Radius: 0.5},
			mass:      1.0,
			expectedI: (2.0 / 5.0) * 1.0 * 0.25, // 0.1
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := tt.sphere.ComputeInertia(tt.mass)

			// Diagonal matrix with identical terms
			expectedMat := mgl64.Mat3{
				tt.expectedI, 0, 0,
				0, tt.expectedI, 0,
				0, 0, tt.expectedI,
			}

			for i := 0; i < 3; i++ {
				for j := 0; j < 3; j++ {
					if !floatEqual(result.At(i, j), expectedMat.At(i, j), 1e-9) {
						t.Errorf("ComputeInertia()[%d][%d] = %v, want %v", i, j, result.At(i, j), expectedMat.At(i, j))
					}
				}
			}
		})
	}
}

// ========== MASS TESTS ==========
func TestComputeMass(t *testing.T) {
	tests := []struct {
		name    string
		shape   ShapeInterface
		density float64
		want    float64
	}{
		{"unit cube", &Box{HalfExtents: mgl64.Vec3{0.5, 0.5, 0.5}}, 3.0, 3.0},
		{"box 2x4x6", &Box{HalfExtents: mgl64.Vec3{1, 2, 3}}, 1.0, 48.0},
		{"unit sphere", &Sphere{Radius: 1.0}, 1.0, 4.0 / 3.0 * math.Pi},
		{"zero radius sphere", &Sphere{Radius: 0.0}, 1.0, 0.0},
		{"zero density", &Box{HalfExtents: mgl64.Vec3{1, 1, 1}}, 0.0, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.shape.ComputeMass(tt.density); !floatEqual(got, tt.want, 1e-9) {
				t.Errorf("ComputeMass() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestShapeType(t *testing.T) {
	if (&Box{}).Type() != ShapeTypeBox {
		t.Errorf("Box.Type() = %v, want ShapeTypeBox", (&Box{}).Type())
	}
	if (&Sphere{}).Type() != ShapeTypeSphere {
		t.Errorf("Sphere.Type() = %v, want ShapeTypeSphere", (&Sphere{}).Type())
	}
}
