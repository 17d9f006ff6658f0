package models

import (
	"time"

	"github.com/dmitrijs2005/archivia/internal/categorize"
)

// File describes stored bytes. Identical content uploaded by the same owner
// under the same category shares one File and one object.
type File struct {
	ID          string
	OwnerID     string
	Filename    string
	ContentType string
	Size        int64
	// ContentHash is the sha256 of the content, hex encoded.
	ContentHash string
	StorageKey  string
	// UploadCompleted is false from the start of a chunked upload until its
	// content is attached to a document.
	UploadCompleted bool
	CreatedAt       time.Time
}

// DocumentFile links a document to a file, carrying per-file archival
// attributes and technical metadata.
type DocumentFile struct {
	ID             string
	DocumentID     string
	FileID         string
	Category       categorize.Category
	Use            categorize.Use
	SequenceNumber int
	Label          string
	Checksum       string
	ChecksumType   string
	Tech           TechnicalMetadata
	// RawMetadata holds every extracted tag that has no typed column.
	RawMetadata map[string]any
	CreatedAt   time.Time
}

// TechnicalMetadata holds the image attributes promoted to typed columns.
// Zero values mean unknown.
type TechnicalMetadata struct {
	ImageWidth              int        `json:"image_width,omitempty"`
	ImageHeight             int        `json:"image_height,omitempty"`
	BitsPerSample           string     `json:"bits_per_sample,omitempty"`
	SamplesPerPixel         int        `json:"samples_per_pixel,omitempty"`
	CompressionScheme       string     `json:"compression_scheme,omitempty"`
	ColorSpace              string     `json:"color_space,omitempty"`
	XSamplingFrequency      int        `json:"x_sampling_frequency,omitempty"`
	YSamplingFrequency      int        `json:"y_sampling_frequency,omitempty"`
	SamplingFrequencyUnit   string     `json:"sampling_frequency_unit,omitempty"`
	FormatName              string     `json:"format_name,omitempty"`
	ByteOrder               string     `json:"byte_order,omitempty"`
	Orientation             string     `json:"orientation,omitempty"`
	ICCProfileName          string     `json:"icc_profile_name,omitempty"`
	ScannerManufacturer     string     `json:"scanner_manufacturer,omitempty"`
	ScannerModelName        string     `json:"scanner_model_name,omitempty"`
	ScanningSoftwareName    string     `json:"scanning_software_name,omitempty"`
	ScanningSoftwareVersion string     `json:"scanning_software_version,omitempty"`
	DateTimeCreated         *time.Time `json:"date_time_created,omitempty"`
}
