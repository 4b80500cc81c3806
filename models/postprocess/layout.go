package postprocess

import (
	"github.com/pkg/errors"
	"gorgonia.org/tensor"
)

// Layout names the axis order of a detector's output tensor.
type Layout string

const (
	// LayoutRows is [batch, anchors, attributes], one contiguous row per anchor.
	LayoutRows Layout = "rows"
	// LayoutChannels is [batch, attributes, anchors], as exported by YOLOv8.
	LayoutChannels Layout = "channels"
)

// AnchorsFromTensor splits a flat output buffer into anchor rows.
//
// A leading batch dimension of 1 is accepted and dropped. Channel-major output
// is transposed first; the caller's buffer is never modified, so it is safe to
// pass an onnxruntime output tensor's backing slice.
//
// Arguments:
//   - data: The flat output buffer.
//   - shape: The tensor shape, [1, a, b] or [a, b].
//   - layout: The axis order of shape.
//
// Returns:
//   - [][]float32: One row per anchor.
//   - error: ErrInvalidInput when the shape does not describe data.
func AnchorsFromTensor(data []float32, shape []int, layout Layout) ([][]float32, error) {
	dims := shape
	for len(dims) > 2 && dims[0] == 1 {
		dims = dims[1:]
	}
	if len(dims) != 2 {
		return nil, errors.Wrapf(ErrInvalidInput, "output shape %v is not two dimensional", shape)
	}
	if dims[0] <= 0 || dims[1] <= 0 || dims[0]*dims[1] != len(data) {
		return nil, errors.Wrapf(ErrInvalidInput, "output shape %v does not match %d values", shape, len(data))
	}

	var (
		flat           []float32
		anchors, attrs int
	)
	switch layout {
	case LayoutRows, "":
		anchors, attrs = dims[0], dims[1]
		flat = data
	case LayoutChannels:
		attrs, anchors = dims[0], dims[1]
		transposed, err := transpose(data, attrs, anchors)
		if err != nil {
			return nil, err
		}
		flat = transposed
	default:
		return nil, errors.Wrapf(ErrInvalidInput, "unknown layout %q", layout)
	}

	rows := make([][]float32, anchors)
	for i := range rows {
		start := i * attrs
		rows[i] = flat[start : start+attrs : start+attrs]
	}
	return rows, nil
}

// transpose returns a rows x cols buffer as cols x rows.
func transpose(data []float32, rows, cols int) ([]float32, error) {
	backing := make([]float32, len(data))
	copy(backing, data)

	t := tensor.New(tensor.WithShape(rows, cols), tensor.WithBacking(backing))
	if err := t.T(); err != nil {
		return nil, errors.Wrap(err, "failed to transpose output tensor")
	}
	if err := t.Transpose(); err != nil {
		return nil, errors.Wrap(err, "failed to materialize transposed output tensor")
	}

	out, ok := t.Data().([]float32)
	if !ok {
		return nil, errors.Errorf("unexpected tensor backing %T", t.Data())
	}
	return out, nil
}
