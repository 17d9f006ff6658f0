// Package models defines the records kept in the three stores and the merged
// read model built from them.
package models

import "time"

// Document is the platform record of an archival document, kept in the
// relational store.
type Document struct {
	ID        string
	LogicalID string
	OwnerID   string
	// MetadataRef is the metadata store id, empty until the metadata record
	// has been committed.
	MetadataRef string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// DocumentSummary is a listing row.
type DocumentSummary struct {
	Document
	FileCount int
}

// DocumentView is the merged state of one document across all stores. It is
// the input of the archival XML encoder.
type DocumentView struct {
	Document Document
	// Metadata is nil when the metadata record could not be found.
	Metadata *Metadata
	Files    []ViewFile
}

// ViewFile pairs an association with the stored file it points to.
type ViewFile struct {
	Association DocumentFile
	File        File
}

// Title returns the metadata title, or "" when no metadata is attached.
func (v *DocumentView) Title() string {
	if v.Metadata == nil {
		return ""
	}
	return v.Metadata.Title
}
