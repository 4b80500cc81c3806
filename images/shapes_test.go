package images

import (
	"image"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

// rect is shorthand for a Box given by its corners.
func rect(x1, y1, x2, y2 float32) Box {
	return Box{Left: x1, Top: y1, Width: x2 - x1, Height: y2 - y1}
}

// TestIoU_Correctness validates the IoU implementation against known test cases
func TestIoU_Correctness(t *testing.T) {
	tests := []struct {
		name     string
		r1       Box
		r2       Box
		expected float32
		epsilon  float32
	}{
		{
			name:     "Identical boxes",
			r1:       rect(0, 0, 100, 100),
			r2:       rect(0, 0, 100, 100),
			expected: 1.0,
			epsilon:  0.001,
		},
		{
			name:     "No overlap",
			r1:       rect(0, 0, 100, 100),
			r2:       rect(200, 200, 300, 300),
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Touching edges",
			r1:       rect(0, 0, 100, 100),
			r2:       rect(100, 0, 200, 100),
			expected: 0.0,
			epsilon:  0.001,
		},
		{
			name:     "Half overlap",
			r1:       rect(0, 0, 100, 100),
			r2:       rect(50, 50, 150, 150),
			expected: 0.142857, // 2500 / 17500
			epsilon:  0.001,
		},
		{
			name:     "Small overlap",
			r1:       rect(0, 0, 100, 100),
			r2:       rect(90, 90, 190, 190),
			expected: 0.005025, // 100 / 19900
			epsilon:  0.001,
		},
		{
			name:     "One inside other",
			r1:       rect(0, 0, 100, 100),
			r2:       rect(25, 25, 75, 75),
			expected: 0.25,
			epsilon:  0.001,
		},
		{
			name:     "Sub-pixel overlap",
			r1:       rect(0, 0, 1.5, 1),
			r2:       rect(0.5, 0, 2, 1),
			expected: 0.5, // 1 / 2
			epsilon:  0.001,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.InDelta(t, tt.expected, result, float64(tt.epsilon))

			// IoU(A, B) must equal IoU(B, A).
			assert.InDelta(t, result, CalculateIoU(tt.r2, tt.r1), float64(tt.epsilon), "IoU not symmetric")
			assert.InDelta(t, result, tt.r1.IoU(tt.r2), float64(tt.epsilon))
		})
	}
}

// TestIoU_vs_ImageRectangle compares our implementation against image.Rectangle
func TestIoU_vs_ImageRectangle(t *testing.T) {
	testCases := []struct {
		name string
		r1   image.Rectangle
		r2   image.Rectangle
	}{
		{"No overlap", image.Rect(0, 0, 100, 100), image.Rect(200, 200, 300, 300)},
		{"Partial overlap", image.Rect(0, 0, 100, 100), image.Rect(50, 50, 150, 150)},
		{"Full overlap", image.Rect(50, 50, 150, 150), image.Rect(50, 50, 150, 150)},
		{"One inside other", image.Rect(0, 0, 100, 100), image.Rect(25, 25, 75, 75)},
		{"Large boxes", image.Rect(0, 0, 1920, 1080), image.Rect(960, 540, 1920, 1080)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			customResult := CalculateIoU(BoxFromRectangle(tc.r1), BoxFromRectangle(tc.r2))
			imageResult := imageRectangleIoU(tc.r1, tc.r2)

			if math.Abs(float64(customResult-imageResult)) > 0.0001 {
				t.Errorf("Results differ: custom=%v, image.Rectangle=%v", customResult, imageResult)
			}
		})
	}
}

// imageRectangleIoU implements IoU using Go's standard library image.Rectangle
func imageRectangleIoU(r1, r2 image.Rectangle) float32 {
	intersect := r1.Intersect(r2)
	if intersect.Empty() {
		return 0.0
	}

	intersectArea := intersect.Dx() * intersect.Dy()
	r1Area := r1.Dx() * r1.Dy()
	r2Area := r2.Dx() * r2.Dy()
	union := r1Area + r2Area - intersectArea

	return float32(intersectArea) / float32(union)
}

// TestIoU_EdgeCases tests edge cases and boundary conditions
func TestIoU_EdgeCases(t *testing.T) {
	tests := []struct {
		name string
		r1   Box
		r2   Box
	}{
		{"Zero area box 1", rect(0, 0, 0, 0), rect(0, 0, 100, 100)},
		{"Zero area box 2", rect(0, 0, 100, 100), rect(50, 50, 50, 50)},
		{"Both zero area", rect(0, 0, 0, 0), rect(10, 10, 10, 10)},
		{"Negative coordinates", rect(-100, -100, 0, 0), rect(-50, -50, 50, 50)},
		{"Negative extent", Box{Left: 10, Top: 10, Width: -5, Height: -5}, rect(0, 0, 20, 20)},
		{"Single pixel", rect(0, 0, 1, 1), rect(0, 0, 1, 1)},
		{"Very large coordinates", rect(0, 0, 999999, 999999), rect(500000, 500000, 999999, 999999)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := CalculateIoU(tt.r1, tt.r2)
			assert.GreaterOrEqual(t, result, float32(0))
			assert.LessOrEqual(t, result, float32(1))

			reverse := CalculateIoU(tt.r2, tt.r1)
			assert.GreaterOrEqual(t, reverse, float32(0))
			assert.LessOrEqual(t, reverse, float32(1))
		})
	}
}

func TestBoxFromCenter(t *testing.T) {
	b := BoxFromCenter(50, 40, 20, 10)
	assert.Equal(t, Box{Left: 40, Top: 35, Width: 20, Height: 10}, b)
	assert.Equal(t, float32(60), b.Right())
	assert.Equal(t, float32(45), b.Bottom())
	assert.Equal(t, float32(200), b.Area())

	flipped := BoxFromCenter(50, 40, -20, -10)
	assert.Equal(t, b, flipped)
}

func TestBox_Clip(t *testing.T) {
	frame := Size{Width: 100, Height: 50}

	tests := []struct {
		name     string
		in       Box
		expected Box
	}{
		{"Inside", rect(10, 10, 20, 20), rect(10, 10, 20, 20)},
		{"Overflows right and bottom", rect(90, 40, 120, 70), rect(90, 40, 100, 50)},
		{"Negative origin", rect(-10, -5, 10, 5), rect(0, 0, 10, 5)},
		{"Entirely outside", rect(200, 200, 220, 220), rect(100, 50, 100, 50)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.in.Clip(frame)
			assert.Equal(t, tt.expected, got)
			assert.GreaterOrEqual(t, got.Left, float32(0))
			assert.LessOrEqual(t, got.Right(), float32(frame.Width))
			assert.LessOrEqual(t, got.Bottom(), float32(frame.Height))
		})
	}
}

func TestBox_Rectangle(t *testing.T) {
	b := Box{Left: 10.4, Top: 9.6, Width: 20.2, Height: 5}
	assert.Equal(t, image.Rect(10, 10, 31, 15), b.Rectangle())
	assert.Equal(t, Box{Left: 10, Top: 10, Width: 21, Height: 5}, BoxFromRectangle(b.Rectangle()))
}

func TestBox_Scale(t *testing.T) {
	b := rect(10, 20, 30, 60).Scale(2, 0.5)
	assert.Equal(t, rect(20, 10, 60, 30), b)
}

func TestSize(t *testing.T) {
	assert.True(t, Size{Width: 1, Height: 1}.Valid())
	assert.False(t, Size{Width: 0, Height: 1}.Valid())
	assert.False(t, Size{Width: 4, Height: -1}.Valid())
	assert.Equal(t, "640x480", Size{Width: 640, Height: 480}.String())
	assert.Equal(t, Size{Width: 30, Height: 20}, SizeOf(image.Rect(10, 10, 40, 30)))
}
