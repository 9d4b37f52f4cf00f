package finger

import (
	"bytes"
	"encoding/base64"

	"github.com/disintegration/imaging"
	"github.com/gabriel-vasile/mimetype"
	"github.com/pkg/errors"
)

// ThumbHeight is the tallest preview rendered for a selected file.
const ThumbHeight = 192

// Thumbnail renders data as a PNG data URI no taller than ThumbHeight.
func Thumbnail(data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", errors.Wrap(err, "decode image")
	}
	if img.Bounds().Dy() > ThumbHeight {
		img = imaging.Resize(img, 0, ThumbHeight, imaging.Lanczos)
	}
	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return "", errors.Wrap(err, "encode thumbnail")
	}
	return DataURI("image/png", buf.Bytes()), nil
}

// RawPreview is the fallback when the file cannot be decoded: the bytes
// themselves under their sniffed MIME type.
func RawPreview(data []byte) string {
	return DataURI(mimetype.Detect(data).String(), data)
}

func DataURI(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

// backendPreview wraps the base64 input image echoed by upload-single.
func backendPreview(b64 string) string {
	if b64 == "" {
		return ""
	}
	return "data:image/bmp;base64," + b64
}
