package capture

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"

	"golang.org/x/image/draw"

	"github.com/dkeye/LiveVoice/internal/domain"
)

// EncodeStill downscales img by scale in each dimension and compresses it
// as JPEG at quality (1-100).
func EncodeStill(img image.Image, scale float64, quality int) (domain.VideoSample, error) {
	b := img.Bounds()
	if b.Empty() {
		return domain.VideoSample{}, fmt.Errorf("%w: empty frame", domain.ErrEncodingUnsupported)
	}
	w := max(int(float64(b.Dx())*scale), 1)
	h := max(int(float64(b.Dy())*scale), 1)

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, draw.Src, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return domain.VideoSample{}, fmt.Errorf("jpeg encode: %w", err)
	}
	return domain.VideoSample{
		MimeType: domain.MimeJPEG,
		Data:     buf.Bytes(),
		Width:    w,
		Height:   h,
	}, nil
}
