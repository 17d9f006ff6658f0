package models

import "time"

// SchemaVersion is the ECO-MiC version written to new metadata records.
const SchemaVersion = "1.1"

// Record status values of the METS header.
const (
	RecordStatusComplete   = "COMPLETE"
	RecordStatusMinimum    = "MINIMUM"
	RecordStatusReferenced = "REFERENCED"
)

// DefaultProfile is the METS profile used when none is given.
const DefaultProfile = "http://www.iccu.sbn.it/metaAG1.pdf"

// Metadata is the archival description of a document, kept in the metadata
// store.
type Metadata struct {
	ID            string `bson:"-" json:"id,omitempty"`
	SchemaVersion string `bson:"schema_version" json:"schema_version"`
	LogicalID     string `bson:"logical_id" json:"logical_id"`
	PlatformRef   string `bson:"platform_document_id" json:"platform_document_id"`
	OwnerID       string `bson:"owner_id" json:"owner_id"`

	ConservativeID          string `bson:"conservative_id,omitempty" json:"conservative_id,omitempty"`
	ConservativeIDAuthority string `bson:"conservative_id_authority,omitempty" json:"conservative_id_authority,omitempty"`

	Title          string `bson:"title,omitempty" json:"title,omitempty"`
	Description    string `bson:"description,omitempty" json:"description,omitempty"`
	TypeOfResource string `bson:"type_of_resource,omitempty" json:"type_of_resource,omitempty"`

	Archive   *ArchiveInfo   `bson:"archive,omitempty" json:"archive,omitempty"`
	Temporal  *TemporalInfo  `bson:"temporal,omitempty" json:"temporal,omitempty"`
	Agents    *AgentsInfo    `bson:"agents,omitempty" json:"agents,omitempty"`
	Rights    *RightsInfo    `bson:"rights,omitempty" json:"rights,omitempty"`
	Technical *TechnicalInfo `bson:"technical,omitempty" json:"technical,omitempty"`
	Physical  *PhysicalInfo  `bson:"physical,omitempty" json:"physical,omitempty"`
	Header    *Header        `bson:"mets_header,omitempty" json:"mets_header,omitempty"`

	Location string   `bson:"location,omitempty" json:"location,omitempty"`
	Language string   `bson:"language,omitempty" json:"language,omitempty"`
	Subjects []string `bson:"subjects,omitempty" json:"subjects,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

type ArchiveInfo struct {
	Name         string `bson:"name,omitempty" json:"name,omitempty"`
	Contact      string `bson:"contact,omitempty" json:"contact,omitempty"`
	FundName     string `bson:"fund_name,omitempty" json:"fund_name,omitempty"`
	SeriesName   string `bson:"series_name,omitempty" json:"series_name,omitempty"`
	FolderNumber string `bson:"folder_number,omitempty" json:"folder_number,omitempty"`
}

type TemporalInfo struct {
	DateFrom string `bson:"date_from,omitempty" json:"date_from,omitempty"`
	DateTo   string `bson:"date_to,omitempty" json:"date_to,omitempty"`
	Period   string `bson:"period,omitempty" json:"period,omitempty"`
}

// AgentInfo is a producer or creator. Type is "corporate" or "personal".
type AgentInfo struct {
	Name string `bson:"name,omitempty" json:"name,omitempty"`
	Type string `bson:"type,omitempty" json:"type,omitempty"`
	Role string `bson:"role,omitempty" json:"role,omitempty"`
}

type AgentsInfo struct {
	Producer *AgentInfo `bson:"producer,omitempty" json:"producer,omitempty"`
	Creator  *AgentInfo `bson:"creator,omitempty" json:"creator,omitempty"`
}

type RightsInfo struct {
	LicenseURL      string `bson:"license_url,omitempty" json:"license_url,omitempty"`
	RightsStatement string `bson:"rights_statement,omitempty" json:"rights_statement,omitempty"`
	// Category is COPYRIGHTED, PUBLIC DOMAIN or CONTRACTUAL.
	Category   string `bson:"category,omitempty" json:"category,omitempty"`
	Holder     string `bson:"holder,omitempty" json:"holder,omitempty"`
	Constraint string `bson:"constraint,omitempty" json:"constraint,omitempty"`
}

type TechnicalInfo struct {
	ImageProducer       string `bson:"image_producer,omitempty" json:"image_producer,omitempty"`
	ScannerManufacturer string `bson:"scanner_manufacturer,omitempty" json:"scanner_manufacturer,omitempty"`
	ScannerModel        string `bson:"scanner_model,omitempty" json:"scanner_model,omitempty"`
}

type PhysicalInfo struct {
	DocumentType      string `bson:"document_type,omitempty" json:"document_type,omitempty"`
	TotalPages        int    `bson:"total_pages,omitempty" json:"total_pages,omitempty"`
	PhysicalForm      string `bson:"physical_form,omitempty" json:"physical_form,omitempty"`
	ExtentDescription string `bson:"extent_description,omitempty" json:"extent_description,omitempty"`
}

// Header holds the METS header attributes. RecordStatus is one of the
// RecordStatus constants.
type Header struct {
	RecordStatus string `bson:"record_status,omitempty" json:"record_status,omitempty"`
	Profile      string `bson:"profile,omitempty" json:"profile,omitempty"`
}

// ValidRecordStatus reports whether s is an accepted header status.
func ValidRecordStatus(s string) bool {
	switch s {
	case RecordStatusComplete, RecordStatusMinimum, RecordStatusReferenced:
		return true
	}
	return false
}
