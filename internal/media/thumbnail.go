package media

import (
	"bytes"
	"image"
	_ "image/gif"
	_ "image/png"

	"github.com/disintegration/imaging"
)

const thumbnailWidth = 320

// Thumbnail decodes an image and re-encodes it as a JPEG at most 320px wide.
func Thumbnail(data []byte) ([]byte, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	if img.Bounds().Dx() > thumbnailWidth {
		img = imaging.Resize(img, thumbnailWidth, 0, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
