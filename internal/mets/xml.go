package mets

import "encoding/xml"

// Namespaces written on the root element.
const (
	NamespaceMETS       = "http://www.loc.gov/METS/"
	NamespaceMODS       = "http://www.loc.gov/mods/v3"
	NamespaceMIX        = "http://www.loc.gov/mix/v20"
	NamespaceMETSRights = "http://cosimo.stanford.edu/sdr/metsrights/"
	NamespaceXLink      = "http://www.w3.org/1999/xlink"
	NamespaceXSI        = "http://www.w3.org/2001/XMLSchema-instance"
	NamespaceRaw        = "urn:archivia:raw-metadata"

	schemaLocation = "http://www.loc.gov/METS/ http://www.loc.gov/standards/mets/mets.xsd " +
		"http://www.loc.gov/mix/v20 http://www.loc.gov/standards/mix/mix20/mix20.xsd " +
		"http://www.loc.gov/mods/v3 http://www.loc.gov/mods/v3/mods-3-7.xsd " +
		"http://cosimo.stanford.edu/sdr/metsrights/ https://www.loc.gov/standards/rights/METSRights.xsd"
)

// Element names carry their prefix; encoding/xml writes them verbatim and the
// prefixes are bound by the xmlns attributes on the root.

type metsRoot struct {
	XMLName        xml.Name `xml:"mets:mets"`
	XMLNSMETS      string   `xml:"xmlns:mets,attr"`
	XMLNSMODS      string   `xml:"xmlns:mods,attr"`
	XMLNSMIX       string   `xml:"xmlns:mix,attr"`
	XMLNSRights    string   `xml:"xmlns:metsrights,attr"`
	XMLNSXLink     string   `xml:"xmlns:xlink,attr"`
	XMLNSXSI       string   `xml:"xmlns:xsi,attr"`
	XMLNSRaw       string   `xml:"xmlns:raw,attr,omitempty"`
	SchemaLocation string   `xml:"xsi:schemaLocation,attr"`
	Profile        string   `xml:"PROFILE,attr,omitempty"`

	Header    metsHdr   `xml:"mets:metsHdr"`
	DmdSec    dmdSec    `xml:"mets:dmdSec"`
	AmdSec    *amdSec   `xml:"mets:amdSec,omitempty"`
	FileSec   *fileSec  `xml:"mets:fileSec,omitempty"`
	StructMap structMap `xml:"mets:structMap"`
}

type metsHdr struct {
	CreateDate   string  `xml:"CREATEDATE,attr,omitempty"`
	LastModDate  string  `xml:"LASTMODDATE,attr,omitempty"`
	RecordStatus string  `xml:"RECORDSTATUS,attr"`
	Agents       []agent `xml:"mets:agent"`
}

type agent struct {
	Role string `xml:"ROLE,attr"`
	Type string `xml:"TYPE,attr"`
	Name string `xml:"mets:name"`
	Note string `xml:"mets:note,omitempty"`
}

type dmdSec struct {
	ID     string   `xml:"ID,attr"`
	Status string   `xml:"STATUS,attr,omitempty"`
	Wrap   modsWrap `xml:"mets:mdWrap"`
}

type modsWrap struct {
	MDType string `xml:"MDTYPE,attr"`
	Mods   mods   `xml:"mets:xmlData>mods:mods"`
}

type mods struct {
	Identifiers     []modsIdentifier     `xml:"mods:identifier"`
	TitleInfo       *modsTitleInfo       `xml:"mods:titleInfo,omitempty"`
	TypeOfResource  string               `xml:"mods:typeOfResource,omitempty"`
	Abstract        string               `xml:"mods:abstract,omitempty"`
	Names           []modsName           `xml:"mods:name"`
	OriginInfo      *modsOriginInfo      `xml:"mods:originInfo,omitempty"`
	Language        *modsLanguage        `xml:"mods:language,omitempty"`
	Physical        *modsPhysical        `xml:"mods:physicalDescription,omitempty"`
	Subjects        []modsSubject        `xml:"mods:subject"`
	RelatedItem     *modsRelatedItem     `xml:"mods:relatedItem,omitempty"`
	AccessCondition *modsAccessCondition `xml:"mods:accessCondition,omitempty"`
}

type modsIdentifier struct {
	Type  string `xml:"type,attr"`
	Value string `xml:",chardata"`
}

type modsTitleInfo struct {
	Title string `xml:"mods:title"`
}

type modsName struct {
	Type     string    `xml:"type,attr"`
	NamePart string    `xml:"mods:namePart"`
	Role     *modsRole `xml:"mods:role,omitempty"`
}

type modsRole struct {
	RoleTerm modsText `xml:"mods:roleTerm"`
}

type modsText struct {
	Type  string `xml:"type,attr,omitempty"`
	Value string `xml:",chardata"`
}

type modsDate struct {
	Point string `xml:"point,attr,omitempty"`
	Value string `xml:",chardata"`
}

type modsOriginInfo struct {
	DateCreated []modsDate `xml:"mods:dateCreated"`
	DateOther   *modsText  `xml:"mods:dateOther,omitempty"`
}

type modsLanguage struct {
	Term modsLanguageTerm `xml:"mods:languageTerm"`
}

type modsLanguageTerm struct {
	Type      string `xml:"type,attr"`
	Authority string `xml:"authority,attr"`
	Value     string `xml:",chardata"`
}

type modsPhysical struct {
	Form   *modsForm `xml:"mods:form,omitempty"`
	Extent string    `xml:"mods:extent,omitempty"`
}

type modsForm struct {
	Authority string `xml:"authority,attr"`
	Value     string `xml:",chardata"`
}

type modsSubject struct {
	Topic      string `xml:"mods:topic,omitempty"`
	Geographic string `xml:"mods:geographic,omitempty"`
}

type modsRelatedItem struct {
	Type       string          `xml:"type,attr"`
	TitleInfo  *modsTitleInfo  `xml:"mods:titleInfo,omitempty"`
	Identifier *modsIdentifier `xml:"mods:identifier,omitempty"`
	Part       *modsPart       `xml:"mods:part,omitempty"`
}

type modsPart struct {
	Details []modsDetail `xml:"mods:detail"`
}

type modsDetail struct {
	Type    string `xml:"type,attr"`
	Caption string `xml:"mods:caption"`
	Title   string `xml:"mods:title,omitempty"`
	Number  string `xml:"mods:number,omitempty"`
}

type modsAccessCondition struct {
	Type  string `xml:"type,attr"`
	Href  string `xml:"xlink:href,attr,omitempty"`
	Value string `xml:",chardata"`
}

type amdSec struct {
	ID       string    `xml:"ID,attr"`
	RightsMD *rightsMD `xml:"mets:rightsMD,omitempty"`
	TechMD   []techMD  `xml:"mets:techMD"`
}

type rightsMD struct {
	ID   string     `xml:"ID,attr"`
	Wrap rightsWrap `xml:"mets:mdWrap"`
}

type rightsWrap struct {
	MDType      string            `xml:"MDTYPE,attr"`
	OtherMDType string            `xml:"OTHERMDTYPE,attr"`
	Declaration rightsDeclaration `xml:"mets:xmlData>metsrights:RightsDeclaration"`
}

type rightsDeclaration struct {
	Category string         `xml:"RIGHTSCATEGORY,attr"`
	Holder   *rightsHolder  `xml:"metsrights:RightsHolder,omitempty"`
	Context  *rightsContext `xml:"metsrights:Context,omitempty"`
}

type rightsHolder struct {
	Name string `xml:"metsrights:RightsHolderName"`
}

type rightsContext struct {
	Class       string `xml:"CONTEXTCLASS,attr"`
	Constraints string `xml:"metsrights:Constraints>metsrights:ConstraintDescription"`
}

type techMD struct {
	ID   string  `xml:"ID,attr"`
	Wrap mixWrap `xml:"mets:mdWrap"`
}

type mixWrap struct {
	MDType      string `xml:"MDTYPE,attr"`
	OtherMDType string `xml:"OTHERMDTYPE,attr"`
	Mix         mix    `xml:"mets:xmlData>mix:mix"`
}

type mix struct {
	Basic      mixBasicObject `xml:"mix:BasicDigitalObjectInformation"`
	Image      *mixBasicImage `xml:"mix:BasicImageInformation,omitempty"`
	Capture    *mixCapture    `xml:"mix:ImageCaptureMetadata,omitempty"`
	Assessment *mixAssessment `xml:"mix:ImageAssessmentMetadata,omitempty"`
	Extension  *mixExtension  `xml:"mix:Extension,omitempty"`
}

type mixBasicObject struct {
	FileSize          int64  `xml:"mix:fileSize"`
	FormatName        string `xml:"mix:FormatDesignation>mix:formatName,omitempty"`
	ByteOrder         string `xml:"mix:byteOrder,omitempty"`
	CompressionScheme string `xml:"mix:Compression>mix:compressionScheme,omitempty"`
}

type mixBasicImage struct {
	Characteristics mixImageCharacteristics `xml:"mix:BasicImageCharacteristics"`
}

type mixImageCharacteristics struct {
	Width       int             `xml:"mix:imageWidth,omitempty"`
	Height      int             `xml:"mix:imageHeight,omitempty"`
	Photometric *mixPhotometric `xml:"mix:PhotometricInterpretation,omitempty"`
}

type mixPhotometric struct {
	ColorSpace     string `xml:"mix:colorSpace,omitempty"`
	ICCProfileName string `xml:"mix:ColorProfile>mix:IccProfile>mix:iccProfileName,omitempty"`
}

type mixCapture struct {
	General     *mixGeneralCapture `xml:"mix:GeneralCaptureInformation,omitempty"`
	Scanner     *mixScanner        `xml:"mix:ScannerCapture,omitempty"`
	Orientation string             `xml:"mix:orientation,omitempty"`
}

type mixGeneralCapture struct {
	DateTimeCreated string `xml:"mix:dateTimeCreated,omitempty"`
	ImageProducer   string `xml:"mix:imageProducer,omitempty"`
}

type mixScanner struct {
	Manufacturer string       `xml:"mix:scannerManufacturer,omitempty"`
	ModelName    string       `xml:"mix:ScannerModel>mix:scannerModelName,omitempty"`
	Software     *mixSoftware `xml:"mix:ScanningSystemSoftware,omitempty"`
}

type mixSoftware struct {
	Name    string `xml:"mix:scanningSoftwareName"`
	Version string `xml:"mix:scanningSoftwareVersionNo,omitempty"`
}

type mixAssessment struct {
	Spatial *mixSpatial       `xml:"mix:SpatialMetrics,omitempty"`
	Color   *mixColorEncoding `xml:"mix:ImageColorEncoding,omitempty"`
}

type mixSpatial struct {
	Unit string `xml:"mix:samplingFrequencyUnit,omitempty"`
	X    int    `xml:"mix:xSamplingFrequency>mix:numerator,omitempty"`
	Y    int    `xml:"mix:ySamplingFrequency>mix:numerator,omitempty"`
}

type mixColorEncoding struct {
	BitsPerSample   *mixBitsPerSample `xml:"mix:BitsPerSample,omitempty"`
	SamplesPerPixel int               `xml:"mix:samplesPerPixel,omitempty"`
}

type mixBitsPerSample struct {
	Value string `xml:"mix:bitsPerSampleValue"`
	Unit  string `xml:"mix:bitsPerSampleUnit"`
}

type mixExtension struct {
	Properties []rawProperty `xml:"raw:property"`
}

type rawProperty struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type fileSec struct {
	Groups []fileGrp `xml:"mets:fileGrp"`
}

type fileGrp struct {
	Use   string     `xml:"USE,attr"`
	Files []metsFile `xml:"mets:file"`
}

type metsFile struct {
	ID           string `xml:"ID,attr"`
	MimeType     string `xml:"MIMETYPE,attr"`
	Size         int64  `xml:"SIZE,attr"`
	AdmID        string `xml:"ADMID,attr"`
	Checksum     string `xml:"CHECKSUM,attr,omitempty"`
	ChecksumType string `xml:"CHECKSUMTYPE,attr,omitempty"`
	FLocat       fLocat `xml:"mets:FLocat"`
}

type fLocat struct {
	LocType string `xml:"LOCTYPE,attr"`
	Href    string `xml:"xlink:href,attr"`
}

type structMap struct {
	Type   string `xml:"TYPE,attr"`
	Folder div    `xml:"mets:div"`
}

type div struct {
	Type  string `xml:"TYPE,attr"`
	Order string `xml:"ORDER,attr,omitempty"`
	Label string `xml:"LABEL,attr,omitempty"`
	DmdID string `xml:"DMDID,attr,omitempty"`
	AdmID string `xml:"ADMID,attr,omitempty"`
	Fptrs []fptr `xml:"mets:fptr"`
	Divs  []div  `xml:"mets:div"`
}

type fptr struct {
	FileID string `xml:"FILEID,attr"`
}
