package fetch

import (
	"bytes"
	"image"

	// Register decoders so DecodeConfig can read dimensions from the formats
	// providers actually serve.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
)

// ImageInfo describes a fetched image asset.
type ImageInfo struct {
	ByteSize int
	Width    int
	Height   int
	Format   string
}

// DecodeImageInfo reads byte size and pixel dimensions from raw image bytes.
// Unknown formats still report byte size; width/height stay zero.
func DecodeImageInfo(body []byte) ImageInfo {
	info := ImageInfo{ByteSize: len(body)}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(body))
	if err != nil {
		return info
	}
	info.Width = cfg.Width
	info.Height = cfg.Height
	info.Format = format
	return info
}
