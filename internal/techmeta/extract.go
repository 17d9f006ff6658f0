package techmeta

import (
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
)

var formatNames = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
}

var compressionSchemes = map[string]string{
	"jpeg": "JPEG",
	"png":  "Deflate",
	"gif":  "LZW",
}

// Extract reads the image header from r and returns the technical tags it
// can determine. Content that is not a decodable image yields an empty bag.
func Extract(r io.Reader) map[string]any {
	bag := map[string]any{}

	cfg, format, err := image.DecodeConfig(r)
	if err != nil {
		return bag
	}

	bag["image_width"] = cfg.Width
	bag["image_height"] = cfg.Height
	if name, ok := formatNames[format]; ok {
		bag["format_name"] = name
	}
	if c, ok := compressionSchemes[format]; ok {
		bag["compression_scheme"] = c
	}
	if spp, cs := colorInfo(cfg.ColorModel); spp > 0 {
		bag["samples_per_pixel"] = spp
		bag["color_space"] = cs
	}
	return bag
}

func colorInfo(m color.Model) (int, string) {
	switch m {
	case color.GrayModel, color.Gray16Model:
		return 1, "Grayscale"
	case color.RGBAModel, color.RGBA64Model, color.NRGBAModel, color.NRGBA64Model:
		return 3, "RGB"
	case color.YCbCrModel:
		return 3, "YCbCr"
	case color.CMYKModel:
		return 4, "CMYK"
	}
	if _, ok := m.(color.Palette); ok {
		return 1, "Palette"
	}
	return 0, ""
}
