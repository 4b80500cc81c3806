package ocr

import (
	"bytes"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTone returns a w x h image whose left half is dark and right half light.
func twoTone(w, h int, dark, light uint8) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, w, h))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.Gray{Y: dark}}, image.Point{}, draw.Src)
	draw.Draw(img, image.Rect(w/2, 0, w, h), &image.Uniform{C: color.Gray{Y: light}}, image.Point{}, draw.Src)
	return img
}

func TestOtsuLevel(t *testing.T) {
	tests := []struct {
		name        string
		dark, light uint8
	}{
		{name: "black and white", dark: 0, light: 255},
		{name: "low contrast", dark: 90, light: 140},
		{name: "bright", dark: 200, light: 250},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := OtsuLevel(twoTone(20, 10, tt.dark, tt.light))
			assert.GreaterOrEqual(t, level, tt.dark)
			assert.Less(t, level, tt.light)
		})
	}
}

func TestOtsuLevel_Uniform(t *testing.T) {
	img := image.NewGray(image.Rect(0, 0, 8, 8))
	assert.Equal(t, uint8(0), OtsuLevel(img))
}

func TestBinarize(t *testing.T) {
	src := image.NewRGBA(image.Rect(0, 0, 40, 20))
	draw.Draw(src, src.Bounds(), &image.Uniform{C: color.RGBA{R: 20, G: 20, B: 30, A: 255}}, image.Point{}, draw.Src)
	draw.Draw(src, image.Rect(20, 0, 40, 20), &image.Uniform{C: color.RGBA{R: 230, G: 220, B: 210, A: 255}}, image.Point{}, draw.Src)

	out := Binarize(src)
	require.Equal(t, src.Bounds(), out.Bounds())

	for _, v := range out.Pix {
		assert.True(t, v == 0 || v == 255, "pixel %d is not binary", v)
	}
	// Away from the edge the halves keep their polarity.
	assert.Equal(t, uint8(0), out.GrayAt(5, 10).Y)
	assert.Equal(t, uint8(255), out.GrayAt(35, 10).Y)
}

func TestEncodePNG(t *testing.T) {
	img := twoTone(6, 4, 0, 255)

	data, err := EncodePNG(img)
	require.NoError(t, err)

	decoded, err := png.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, img.Bounds(), decoded.Bounds())
	r, _, _, _ := decoded.At(5, 0).RGBA()
	assert.Equal(t, uint32(0xffff), r)
}
