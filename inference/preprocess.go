package inference

import (
	"image"

	"github.com/nfnt/resize"
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-plates/images"
)

// PrepareInput fills dst with img stretched to size, as planar RGB scaled to
// [0, 1]. This matches OpenCV's blobFromImage(img, 1/255, size, swapRB=true).
//
// Arguments:
//   - img: The image to prepare.
//   - dst: The destination buffer, at least 3*size.Width*size.Height long.
//   - size: The network input size.
//
// Returns:
//   - error: An error if dst is too small or size is not positive.
func PrepareInput(img image.Image, dst []float32, size images.Size) error {
	if !size.Valid() {
		return errors.Errorf("invalid input size %s", size)
	}
	channelSize := size.Width * size.Height
	if len(dst) < channelSize*3 {
		return errors.Errorf("destination tensor only holds %d floats, needs %d (make sure it's the right shape!)",
			len(dst), channelSize*3)
	}
	red := dst[0:channelSize]
	green := dst[channelSize : channelSize*2]
	blue := dst[channelSize*2 : channelSize*3]

	resized := resize.Resize(uint(size.Width), uint(size.Height), img, resize.Bilinear)
	bounds := resized.Bounds()

	i := 0
	for y := 0; y < size.Height; y++ {
		for x := 0; x < size.Width; x++ {
			r, g, b, _ := resized.At(bounds.Min.X+x, bounds.Min.Y+y).RGBA()
			red[i] = float32(r>>8) / 255.0
			green[i] = float32(g>>8) / 255.0
			blue[i] = float32(b>>8) / 255.0
			i++
		}
	}
	return nil
}
