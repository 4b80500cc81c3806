package postprocess

import (
	"math"
	"math/rand"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-plates/images"
)

var square = images.Size{Width: 640, Height: 640}

func defaultParams() Params {
	return Params{
		InputSize:           square,
		ImageSize:           square,
		ConfidenceThreshold: 0.5,
		NMS:                 NMSConfig{IoUThreshold: 0.4},
	}
}

// row builds an anchor row with an objectness column and optional class scores.
func row(cx, cy, w, h, conf float32, classes ...float32) []float32 {
	return append([]float32{cx, cy, w, h, conf}, classes...)
}

func TestPostProcess_OverlappingPairSuppressed(t *testing.T) {
	// 100x100 boxes offset by 25px: IoU = 7500 / 12500 = 0.6.
	anchors := [][]float32{
		row(75, 50, 100, 100, 0.8),
		row(50, 50, 100, 100, 0.9),
	}

	results, err := PostProcess(anchors, defaultParams())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0.9), results[0].Score)
	assert.Equal(t, images.Box{Left: 0, Top: 0, Width: 100, Height: 100}, results[0].Box)
}

func TestPostProcess_DisjointPairKept(t *testing.T) {
	// 100x100 boxes offset by 80px: IoU = 2000 / 18000 ≈ 0.11.
	anchors := [][]float32{
		row(130, 50, 100, 100, 0.8),
		row(50, 50, 100, 100, 0.9),
	}
	require.InDelta(t, 0.111, images.CalculateIoU(
		images.BoxFromCenter(130, 50, 100, 100),
		images.BoxFromCenter(50, 50, 100, 100),
	), 0.001)

	results, err := PostProcess(anchors, defaultParams())
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, float32(0.9), results[0].Score)
	assert.Equal(t, float32(0.8), results[1].Score)
}

func TestPostProcess_AllBelowThreshold(t *testing.T) {
	anchors := [][]float32{
		row(50, 50, 10, 10, 0.1),
		row(80, 80, 10, 10, 0.49),
		row(90, 90, 10, 10, float32(math.NaN())),
	}

	results, err := PostProcess(anchors, defaultParams())
	require.NoError(t, err)
	assert.NotNil(t, results)
	assert.Empty(t, results)
}

func TestPostProcess_InvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		anchors [][]float32
		mutate  func(*Params)
	}{
		{name: "empty anchors", anchors: [][]float32{}},
		{name: "nil anchors", anchors: nil},
		{
			name:    "ragged rows",
			anchors: [][]float32{row(1, 1, 1, 1, 0.9, 0.1), row(1, 1, 1, 1, 0.9)},
		},
		{
			name:    "rows too short",
			anchors: [][]float32{{1, 1, 1, 1}},
		},
		{
			name:    "zero input width",
			anchors: [][]float32{row(1, 1, 1, 1, 0.9)},
			mutate:  func(p *Params) { p.InputSize.Width = 0 },
		},
		{
			name:    "negative image height",
			anchors: [][]float32{row(1, 1, 1, 1, 0.9)},
			mutate:  func(p *Params) { p.ImageSize.Height = -10 },
		},
		{
			name:    "confidence threshold out of range",
			anchors: [][]float32{row(1, 1, 1, 1, 0.9)},
			mutate:  func(p *Params) { p.ConfidenceThreshold = 1 },
		},
		{
			name:    "nms threshold out of range",
			anchors: [][]float32{row(1, 1, 1, 1, 0.9)},
			mutate:  func(p *Params) { p.NMS.IoUThreshold = 0 },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := defaultParams()
			if tt.mutate != nil {
				tt.mutate(&p)
			}
			results, err := PostProcess(tt.anchors, p)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput), "expected ErrInvalidInput, got %v", err)
			assert.Nil(t, results)
		})
	}
}

func TestDecode_ScaleInvariance(t *testing.T) {
	anchors := [][]float32{row(123.25, 77.5, 40.5, 20.25, 0.75)}

	results, err := Decode(anchors, defaultParams())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, images.BoxFromCenter(123.25, 77.5, 40.5, 20.25), results[0].Box)
}

func TestDecode_IndependentAxisScaling(t *testing.T) {
	p := defaultParams()
	p.ImageSize = images.Size{Width: 1280, Height: 480}

	results, err := Decode([][]float32{row(320, 320, 64, 64, 0.9)}, p)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.InDelta(t, 576, results[0].Box.Left, 1e-3)
	assert.InDelta(t, 216, results[0].Box.Top, 1e-3)
	assert.InDelta(t, 128, results[0].Box.Width, 1e-3)
	assert.InDelta(t, 48, results[0].Box.Height, 1e-3)
}

func TestDecode_ClipsToImage(t *testing.T) {
	results, err := Decode([][]float32{row(630, 5, 40, 40, 0.9)}, defaultParams())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, images.Box{Left: 610, Top: 0, Width: 30, Height: 25}, results[0].Box)
}

func TestDecode_DropsDegenerateBoxes(t *testing.T) {
	tests := []struct {
		name   string
		anchor []float32
	}{
		{"Entirely off the image", row(2000, 2000, 50, 50, 0.95)},
		{"Left of the image", row(-500, 100, 50, 50, 0.9)},
		{"Zero width", row(100, 100, 0, 20, 0.9)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := Decode([][]float32{tt.anchor}, defaultParams())
			require.NoError(t, err)
			assert.Empty(t, results)
		})
	}
}

func TestPostProcess_NegativeExtentDuplicateSuppressed(t *testing.T) {
	anchors := [][]float32{
		row(2000, 2000, 50, 50, 0.95),
		row(-500, 100, 50, 50, 0.9),
		row(100, 100, -40, 20, 0.85),
		row(100, 100, 40, 20, 0.8),
	}

	results, err := PostProcess(anchors, defaultParams())
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, float32(0.85), results[0].Score)
	assert.Equal(t, images.Box{Left: 80, Top: 90, Width: 40, Height: 20}, results[0].Box)
}

func TestDecode_ClassAssignment(t *testing.T) {
	t.Run("argmax of class scores, first maximum wins", func(t *testing.T) {
		results, err := Decode([][]float32{row(50, 50, 10, 10, 0.9, 0.1, 0.7, 0.7)}, defaultParams())
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 1, results[0].Class)
		assert.Equal(t, float32(0.9), results[0].Score)
	})

	t.Run("placeholder without class scores", func(t *testing.T) {
		p := defaultParams()
		p.PlaceholderClass = 3
		results, err := Decode([][]float32{row(50, 50, 10, 10, 0.9)}, p)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 3, results[0].Class)
	})

	t.Run("no objectness column", func(t *testing.T) {
		p := defaultParams()
		p.NoObjectness = true
		results, err := Decode([][]float32{
			{50, 50, 10, 10, 0.2, 0.9, 0.3},
			{90, 90, 10, 10, 0.2, 0.1, 0.3},
		}, p)
		require.NoError(t, err)
		require.Len(t, results, 1)
		assert.Equal(t, 1, results[0].Class)
		assert.Equal(t, float32(0.9), results[0].Score)
	})
}

func TestApplyGreedyNMS_TiesKeepAnchorOrder(t *testing.T) {
	box := images.Box{Left: 10, Top: 10, Width: 50, Height: 50}
	in := []Result{
		{Box: box, Score: 0.7, Class: 0},
		{Box: box, Score: 0.7, Class: 1},
	}

	out := ApplyGreedyNMS(in, NMSConfig{IoUThreshold: 0.5})
	require.Len(t, out, 1)
	assert.Equal(t, 0, out[0].Class)
}

func TestApplyGreedyNMS_DoesNotReorderInput(t *testing.T) {
	in := []Result{
		{Box: images.Box{Width: 10, Height: 10}, Score: 0.6},
		{Box: images.Box{Left: 100, Width: 10, Height: 10}, Score: 0.9},
	}
	snapshot := append([]Result(nil), in...)

	out := ApplyGreedyNMS(in, NMSConfig{IoUThreshold: 0.5})
	assert.Equal(t, snapshot, in)
	require.Len(t, out, 2)
	assert.Equal(t, float32(0.9), out[0].Score)
}

func TestApplyGreedyNMS_ClassAware(t *testing.T) {
	box := images.Box{Left: 0, Top: 0, Width: 40, Height: 40}
	in := []Result{
		{Box: box, Score: 0.9, Class: 0},
		{Box: box, Score: 0.8, Class: 1},
		{Box: box, Score: 0.7, Class: 0},
	}

	assert.Len(t, ApplyGreedyNMS(in, NMSConfig{IoUThreshold: 0.5}), 1)

	out := ApplyGreedyNMS(in, NMSConfig{IoUThreshold: 0.5, ClassAware: true})
	require.Len(t, out, 2)
	assert.Equal(t, 0, out[0].Class)
	assert.Equal(t, 1, out[1].Class)
}

func TestApplyGreedyNMS_Empty(t *testing.T) {
	out := ApplyGreedyNMS(nil, NMSConfig{IoUThreshold: 0.5})
	assert.NotNil(t, out)
	assert.Empty(t, out)
}

// TestPostProcess_Properties checks the output invariants over random tensors.
func TestPostProcess_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for iter := 0; iter < 50; iter++ {
		const numClasses = 3
		anchors := make([][]float32, 200)
		for i := range anchors {
			r := row(
				rng.Float32()*640,
				rng.Float32()*640,
				8+rng.Float32()*120,
				8+rng.Float32()*120,
				rng.Float32(),
			)
			for c := 0; c < numClasses; c++ {
				r = append(r, rng.Float32())
			}
			anchors[i] = r
		}

		p := defaultParams()
		p.ImageSize = images.Size{Width: 1920, Height: 1080}
		p.ConfidenceThreshold = 0.3 + rng.Float32()*0.5
		p.NMS.IoUThreshold = 0.2 + rng.Float32()*0.6

		results, err := PostProcess(anchors, p)
		require.NoError(t, err)

		for i, r := range results {
			assert.GreaterOrEqual(t, r.Score, p.ConfidenceThreshold)
			assert.GreaterOrEqual(t, r.Box.Left, float32(0))
			assert.GreaterOrEqual(t, r.Box.Top, float32(0))
			assert.LessOrEqual(t, r.Box.Right(), float32(p.ImageSize.Width)+1e-3)
			assert.LessOrEqual(t, r.Box.Bottom(), float32(p.ImageSize.Height)+1e-3)
			assert.Less(t, r.Class, numClasses)
			assert.Positive(t, r.Box.Area())

			if i > 0 {
				assert.LessOrEqual(t, r.Score, results[i-1].Score, "results must be in descending score order")
			}
			for j := i + 1; j < len(results); j++ {
				assert.Less(t, images.CalculateIoU(r.Box, results[j].Box), p.NMS.IoUThreshold)
			}
		}

		// Suppressing survivors again changes nothing.
		assert.Equal(t, results, ApplyGreedyNMS(results, p.NMS))
	}
}

func TestAnchorsFromTensor(t *testing.T) {
	data := []float32{1, 2, 3, 4, 5, 6}

	t.Run("rows layout", func(t *testing.T) {
		rows, err := AnchorsFromTensor(data, []int{1, 2, 3}, LayoutRows)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 2, 3}, {4, 5, 6}}, rows)
	})

	t.Run("channels layout", func(t *testing.T) {
		rows, err := AnchorsFromTensor(data, []int{1, 3, 2}, LayoutChannels)
		require.NoError(t, err)
		assert.Equal(t, [][]float32{{1, 3, 5}, {2, 4, 6}}, rows)
		assert.Equal(t, []float32{1, 2, 3, 4, 5, 6}, data, "input buffer must not be modified")
	})

	t.Run("rows do not alias each other", func(t *testing.T) {
		rows, err := AnchorsFromTensor(data, []int{2, 3}, LayoutRows)
		require.NoError(t, err)
		assert.Len(t, rows[0], 3)
		assert.Equal(t, 3, cap(rows[0]))
	})

	errorCases := []struct {
		name   string
		shape  []int
		layout Layout
	}{
		{"size mismatch", []int{1, 4, 2}, LayoutRows},
		{"three real dimensions", []int{2, 1, 3}, LayoutRows},
		{"one dimension", []int{6}, LayoutRows},
		{"unknown layout", []int{2, 3}, Layout("diagonal")},
	}
	for _, tc := range errorCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := AnchorsFromTensor(data, tc.shape, tc.layout)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidInput))
		})
	}
}

// BenchmarkPostProcess decodes a full 8400-anchor output with one class.
func BenchmarkPostProcess(b *testing.B) {
	rng := rand.New(rand.NewSource(7))
	anchors := make([][]float32, 8400)
	for i := range anchors {
		anchors[i] = []float32{
			rng.Float32() * 640, rng.Float32() * 640,
			rng.Float32()*120 + 8, rng.Float32()*60 + 8,
			rng.Float32(), 1,
		}
	}
	p := Params{
		InputSize:           images.Size{Width: 640, Height: 640},
		ImageSize:           images.Size{Width: 1920, Height: 1080},
		ConfidenceThreshold: 0.5,
		NMS:                 NMSConfig{IoUThreshold: 0.4},
	}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := PostProcess(anchors, p); err != nil {
			b.Fatal(err)
		}
	}
}
