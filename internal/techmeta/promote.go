// Package techmeta turns free-form technical tag bags into the typed
// technical columns of a file association.
//
// Known tags are promoted into models.TechnicalMetadata; every other tag is
// returned untouched in the remainder bag so that it can be stored verbatim.
package techmeta

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/archivia/internal/server/models"
)

type setter func(t *models.TechnicalMetadata, v any) bool

func intSetter(dst func(*models.TechnicalMetadata) *int) setter {
	return func(t *models.TechnicalMetadata, v any) bool {
		n, ok := toInt(v)
		if ok {
			*dst(t) = n
		}
		return ok
	}
}

func stringSetter(dst func(*models.TechnicalMetadata) *string) setter {
	return func(t *models.TechnicalMetadata, v any) bool {
		s, ok := toString(v)
		if ok {
			*dst(t) = s
		}
		return ok
	}
}

// Tags recognised by Promote. EXIF-style names are aliases of typed fields.
var known = map[string]setter{
	"image_width":               intSetter(func(t *models.TechnicalMetadata) *int { return &t.ImageWidth }),
	"image_height":              intSetter(func(t *models.TechnicalMetadata) *int { return &t.ImageHeight }),
	"samples_per_pixel":         intSetter(func(t *models.TechnicalMetadata) *int { return &t.SamplesPerPixel }),
	"x_sampling_frequency":      intSetter(func(t *models.TechnicalMetadata) *int { return &t.XSamplingFrequency }),
	"y_sampling_frequency":      intSetter(func(t *models.TechnicalMetadata) *int { return &t.YSamplingFrequency }),
	"bits_per_sample":           bitsPerSample,
	"compression_scheme":        stringSetter(func(t *models.TechnicalMetadata) *string { return &t.CompressionScheme }),
	"color_space":               stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ColorSpace }),
	"sampling_frequency_unit":   stringSetter(func(t *models.TechnicalMetadata) *string { return &t.SamplingFrequencyUnit }),
	"format_name":               stringSetter(func(t *models.TechnicalMetadata) *string { return &t.FormatName }),
	"byte_order":                stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ByteOrder }),
	"orientation":               stringSetter(func(t *models.TechnicalMetadata) *string { return &t.Orientation }),
	"icc_profile_name":          stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ICCProfileName }),
	"scanner_manufacturer":      stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScannerManufacturer }),
	"scanner_model_name":        stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScannerModelName }),
	"scanning_software_name":    stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScanningSoftwareName }),
	"scanning_software_version": stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScanningSoftwareVersion }),
	"date_time_created":         dateTimeCreated,
	"Image Make":                stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScannerManufacturer }),
	"Image Model":               stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScannerModelName }),
	"Image Software":            stringSetter(func(t *models.TechnicalMetadata) *string { return &t.ScanningSoftwareName }),
	"EXIF DateTimeOriginal":     dateTimeCreated,
}

// Promote splits bag into typed technical metadata and the remainder. A
// known tag whose value cannot be converted stays in the remainder. The input
// map is not modified.
func Promote(bag map[string]any) (models.TechnicalMetadata, map[string]any) {
	var tech models.TechnicalMetadata
	rest := make(map[string]any)

	for _, k := range sortedKeys(bag) {
		v := bag[k]
		if set, ok := known[k]; ok && set(&tech, v) {
			continue
		}
		rest[k] = v
	}
	if len(rest) == 0 {
		rest = nil
	}
	return tech, rest
}

// Merge overlays the non-zero fields of src onto dst.
func Merge(dst *models.TechnicalMetadata, src models.TechnicalMetadata) {
	mergeInt := func(d *int, s int) {
		if s != 0 {
			*d = s
		}
	}
	mergeString := func(d *string, s string) {
		if s != "" {
			*d = s
		}
	}
	mergeInt(&dst.ImageWidth, src.ImageWidth)
	mergeInt(&dst.ImageHeight, src.ImageHeight)
	mergeInt(&dst.SamplesPerPixel, src.SamplesPerPixel)
	mergeInt(&dst.XSamplingFrequency, src.XSamplingFrequency)
	mergeInt(&dst.YSamplingFrequency, src.YSamplingFrequency)
	mergeString(&dst.BitsPerSample, src.BitsPerSample)
	mergeString(&dst.CompressionScheme, src.CompressionScheme)
	mergeString(&dst.ColorSpace, src.ColorSpace)
	mergeString(&dst.SamplingFrequencyUnit, src.SamplingFrequencyUnit)
	mergeString(&dst.FormatName, src.FormatName)
	mergeString(&dst.ByteOrder, src.ByteOrder)
	mergeString(&dst.Orientation, src.Orientation)
	mergeString(&dst.ICCProfileName, src.ICCProfileName)
	mergeString(&dst.ScannerManufacturer, src.ScannerManufacturer)
	mergeString(&dst.ScannerModelName, src.ScannerModelName)
	mergeString(&dst.ScanningSoftwareName, src.ScanningSoftwareName)
	mergeString(&dst.ScanningSoftwareVersion, src.ScanningSoftwareVersion)
	if src.DateTimeCreated != nil {
		dst.DateTimeCreated = src.DateTimeCreated
	}
}

func bitsPerSample(t *models.TechnicalMetadata, v any) bool {
	switch x := v.(type) {
	case []any:
		parts := make([]string, 0, len(x))
		for _, e := range x {
			n, ok := toInt(e)
			if !ok {
				return false
			}
			parts = append(parts, strconv.Itoa(n))
		}
		t.BitsPerSample = strings.Join(parts, ",")
		return len(parts) > 0
	case []int:
		parts := make([]string, 0, len(x))
		for _, n := range x {
			parts = append(parts, strconv.Itoa(n))
		}
		t.BitsPerSample = strings.Join(parts, ",")
		return len(parts) > 0
	}
	if n, ok := toInt(v); ok {
		t.BitsPerSample = strconv.Itoa(n)
		return true
	}
	return stringSetter(func(t *models.TechnicalMetadata) *string { return &t.BitsPerSample })(t, v)
}

var dateLayouts = []string{time.RFC3339, "2006:01:02 15:04:05", "2006-01-02T15:04:05", "2006:01:02"}

func dateTimeCreated(t *models.TechnicalMetadata, v any) bool {
	if t.DateTimeCreated != nil {
		return false
	}
	switch x := v.(type) {
	case time.Time:
		t.DateTimeCreated = &x
		return true
	case string:
		for _, layout := range dateLayouts {
			if ts, err := time.Parse(layout, strings.TrimSpace(x)); err == nil {
				t.DateTimeCreated = &ts
				return true
			}
		}
	}
	return false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int32:
		return int(x), true
	case int64:
		return int(x), true
	case float64:
		if x != float64(int(x)) {
			return 0, false
		}
		return int(x), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(x))
		return n, err == nil
	}
	return 0, false
}

func toString(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		s := strings.TrimSpace(x)
		return s, s != ""
	case fmt.Stringer:
		return x.String(), true
	case int, int64, float64:
		return fmt.Sprint(x), true
	}
	return "", false
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
