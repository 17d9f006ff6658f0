// Package mets serializes a merged document view as METS XML following the
// ECO-MiC profile: MODS descriptive metadata, METSRights, one MIX block per
// file, a file section grouped by use and a physical structure map.
package mets

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/archivia/internal/categorize"
	"github.com/dmitrijs2005/archivia/internal/server/models"
)

const (
	// DmdID is the id of the single descriptive section.
	DmdID = "dmd01"

	creatorAgent    = "Archivia Digital Archive System"
	defaultRights   = "COPYRIGHTED"
	defaultMimeType = "application/octet-stream"
	dateLayout      = "2006-01-02T15:04:05"
)

// Encode renders view as an indented METS document. The output depends only
// on view: timestamps come from the records, never from the clock.
func Encode(view *models.DocumentView) ([]byte, error) {
	if view == nil {
		return nil, errors.New("mets: nil document view")
	}

	md := view.Metadata
	if md == nil {
		md = &models.Metadata{}
	}
	files := sortedFiles(view.Files)

	root := metsRoot{
		XMLNSMETS:      NamespaceMETS,
		XMLNSMODS:      NamespaceMODS,
		XMLNSMIX:       NamespaceMIX,
		XMLNSRights:    NamespaceMETSRights,
		XMLNSXLink:     NamespaceXLink,
		XMLNSXSI:       NamespaceXSI,
		SchemaLocation: schemaLocation,
		Profile:        models.DefaultProfile,
		Header:         header(&view.Document, md),
		DmdSec: dmdSec{
			ID:     DmdID,
			Status: "referenced",
			Wrap:   modsWrap{MDType: "MODS", Mods: descriptive(&view.Document, md)},
		},
		AmdSec:  administrative(view.Document.ID, md, files),
		FileSec: fileSection(files, FilePaths(files)),
	}
	root.StructMap = structure(md.Title, root.AmdSec, files)
	if md.Header != nil && md.Header.Profile != "" {
		root.Profile = md.Header.Profile
	}
	for _, vf := range files {
		if len(rawProperties(vf.Association.RawMetadata)) > 0 {
			root.XMLNSRaw = NamespaceRaw
			break
		}
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(root); err != nil {
		return nil, fmt.Errorf("mets: encode: %w", err)
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

func formatDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateLayout)
}

// sortedFiles orders associations by sequence number, then use class, then id.
func sortedFiles(in []models.ViewFile) []models.ViewFile {
	out := slices.Clone(in)
	rank := map[categorize.Use]int{}
	for i, u := range categorize.UseOrder {
		rank[u] = i
	}
	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i].Association, out[j].Association
		if a.SequenceNumber != b.SequenceNumber {
			return a.SequenceNumber < b.SequenceNumber
		}
		if ra, rb := rank[a.Category.Use()], rank[b.Category.Use()]; ra != rb {
			return ra < rb
		}
		return a.ID < b.ID
	})
	return out
}

func header(doc *models.Document, md *models.Metadata) metsHdr {
	h := metsHdr{
		CreateDate:   formatDate(doc.CreatedAt),
		LastModDate:  formatDate(doc.UpdatedAt),
		RecordStatus: models.RecordStatusComplete,
		Agents:       []agent{{Role: "CREATOR", Type: "ORGANIZATION", Name: creatorAgent}},
	}
	if md.Header != nil && models.ValidRecordStatus(md.Header.RecordStatus) {
		h.RecordStatus = md.Header.RecordStatus
	}
	if md.Archive != nil && md.Archive.Name != "" {
		custodian := agent{Role: "CUSTODIAN", Type: "ORGANIZATION", Name: md.Archive.Name}
		if md.Archive.Contact != "" {
			custodian.Note = "Contact: " + md.Archive.Contact
		}
		h.Agents = append(h.Agents, custodian)
	}
	return h
}

func descriptive(doc *models.Document, md *models.Metadata) mods {
	var m mods

	logicalID := doc.LogicalID
	if logicalID == "" {
		logicalID = md.LogicalID
	}
	if logicalID != "" {
		m.Identifiers = append(m.Identifiers, modsIdentifier{Type: "logicalId", Value: logicalID})
	}
	if md.ConservativeID != "" {
		m.Identifiers = append(m.Identifiers, modsIdentifier{Type: "conservativeId", Value: md.ConservativeID})
	}
	if md.ConservativeIDAuthority != "" {
		m.Identifiers = append(m.Identifiers, modsIdentifier{Type: "conservativeIdAuthority", Value: md.ConservativeIDAuthority})
	}
	m.Identifiers = append(m.Identifiers, modsIdentifier{Type: "relationId", Value: "representation"})

	if md.Title != "" {
		m.TitleInfo = &modsTitleInfo{Title: md.Title}
	}
	m.TypeOfResource = md.TypeOfResource
	m.Abstract = md.Description

	if md.Agents != nil {
		if n, ok := name(md.Agents.Producer, "corporate"); ok {
			m.Names = append(m.Names, n)
		}
		if n, ok := name(md.Agents.Creator, "personal"); ok {
			m.Names = append(m.Names, n)
		}
	}

	m.OriginInfo = originInfo(md.Temporal)

	if md.Language != "" {
		m.Language = &modsLanguage{Term: modsLanguageTerm{Type: "code", Authority: "iso639-2b", Value: md.Language}}
	}

	m.Physical = physical(md.Physical)

	for _, s := range SplitSubjects(md.Subjects) {
		m.Subjects = append(m.Subjects, modsSubject{Topic: s})
	}
	if md.Location != "" {
		m.Subjects = append(m.Subjects, modsSubject{Geographic: md.Location})
	}

	m.RelatedItem = hierarchy(md.Archive, md.ConservativeID)

	if r := md.Rights; r != nil && (r.LicenseURL != "" || r.RightsStatement != "") {
		// the statement is the text; a bare license URL stands in for it
		text := r.RightsStatement
		if text == "" {
			text = r.LicenseURL
		}
		m.AccessCondition = &modsAccessCondition{
			Type:  "use and reproduction",
			Href:  r.LicenseURL,
			Value: text,
		}
	}
	return m
}

func name(a *models.AgentInfo, defaultType string) (modsName, bool) {
	if a == nil || a.Name == "" {
		return modsName{}, false
	}
	n := modsName{Type: a.Type, NamePart: a.Name}
	if n.Type == "" {
		n.Type = defaultType
	}
	if a.Role != "" {
		n.Role = &modsRole{RoleTerm: modsText{Type: "text", Value: a.Role}}
	}
	return n, true
}

func originInfo(t *models.TemporalInfo) *modsOriginInfo {
	if t == nil || (t.DateFrom == "" && t.DateTo == "" && t.Period == "") {
		return nil
	}
	o := &modsOriginInfo{}
	switch {
	case t.DateFrom != "" && t.DateTo != "":
		o.DateCreated = []modsDate{{Point: "start", Value: t.DateFrom}, {Point: "end", Value: t.DateTo}}
	case t.DateFrom != "":
		o.DateCreated = []modsDate{{Value: t.DateFrom}}
	case t.DateTo != "":
		o.DateCreated = []modsDate{{Value: t.DateTo}}
	}
	if t.Period != "" {
		o.DateOther = &modsText{Type: "period", Value: t.Period}
	}
	return o
}

func physical(p *models.PhysicalInfo) *modsPhysical {
	if p == nil || (p.PhysicalForm == "" && p.ExtentDescription == "" && p.TotalPages <= 0) {
		return nil
	}
	d := &modsPhysical{}
	if p.PhysicalForm != "" {
		d.Form = &modsForm{Authority: "gmd", Value: p.PhysicalForm}
	}
	switch {
	case p.ExtentDescription != "":
		d.Extent = p.ExtentDescription
	case p.TotalPages > 0:
		d.Extent = fmt.Sprintf("%d pages", p.TotalPages)
	}
	return d
}

// SplitSubjects flattens subject entries that hold several terms separated
// by commas or semicolons. Blank terms are dropped.
func SplitSubjects(subjects []string) []string {
	var out []string
	for _, s := range subjects {
		for _, term := range strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ';' }) {
			if term = strings.TrimSpace(term); term != "" {
				out = append(out, term)
			}
		}
	}
	return out
}

func hierarchy(a *models.ArchiveInfo, conservativeID string) *modsRelatedItem {
	if a == nil || (a.FundName == "" && a.SeriesName == "" && a.FolderNumber == "") {
		return nil
	}
	item := &modsRelatedItem{Type: "host"}
	if a.FundName != "" {
		item.TitleInfo = &modsTitleInfo{Title: a.FundName}
		if conservativeID != "" {
			item.Identifier = &modsIdentifier{Type: "collection", Value: conservativeID}
		}
	}
	if a.SeriesName != "" || a.FolderNumber != "" {
		part := &modsPart{}
		if a.SeriesName != "" {
			part.Details = append(part.Details, modsDetail{Type: "series", Caption: "Series", Title: a.SeriesName})
		}
		if a.FolderNumber != "" {
			part.Details = append(part.Details, modsDetail{Type: "folder", Caption: "Folder", Number: a.FolderNumber})
		}
		item.Part = part
	}
	return item
}

// administrative returns nil when there is neither a rights declaration nor
// any file to describe.
func administrative(docID string, md *models.Metadata, files []models.ViewFile) *amdSec {
	sec := &amdSec{ID: "amd_" + docID}

	if r := md.Rights; r != nil && (r.Category != "" || r.Holder != "" || r.Constraint != "") {
		decl := rightsDeclaration{Category: r.Category}
		if decl.Category == "" {
			decl.Category = defaultRights
		}
		if r.Holder != "" {
			decl.Holder = &rightsHolder{Name: r.Holder}
		}
		if r.Constraint != "" {
			decl.Context = &rightsContext{Class: "GENERAL PUBLIC", Constraints: r.Constraint}
		}
		sec.RightsMD = &rightsMD{
			ID:   "rights_" + docID,
			Wrap: rightsWrap{MDType: "OTHER", OtherMDType: "METSRIGHTS", Declaration: decl},
		}
	}

	for _, vf := range files {
		sec.TechMD = append(sec.TechMD, techMD{
			ID:   techID(vf),
			Wrap: mixWrap{MDType: "OTHER", OtherMDType: "MIX", Mix: technical(vf, md.Technical)},
		})
	}
	if sec.RightsMD == nil && len(sec.TechMD) == 0 {
		return nil
	}
	return sec
}

func fileID(vf models.ViewFile) string { return "file_" + vf.Association.ID }
func techID(vf models.ViewFile) string { return "tech_" + vf.Association.ID }

func technical(vf models.ViewFile, doc *models.TechnicalInfo) mix {
	t := vf.Association.Tech

	m := mix{Basic: mixBasicObject{
		FileSize:          vf.File.Size,
		FormatName:        t.FormatName,
		ByteOrder:         t.ByteOrder,
		CompressionScheme: t.CompressionScheme,
	}}
	if m.Basic.FormatName == "" {
		m.Basic.FormatName = vf.File.ContentType
	}

	colorSpace := t.ColorSpace
	if colorSpace == "" && t.BitsPerSample != "" {
		colorSpace = "RGB"
	}
	if t.ImageWidth > 0 || t.ImageHeight > 0 || colorSpace != "" || t.ICCProfileName != "" {
		c := mixImageCharacteristics{Width: t.ImageWidth, Height: t.ImageHeight}
		if colorSpace != "" || t.ICCProfileName != "" {
			c.Photometric = &mixPhotometric{ColorSpace: colorSpace, ICCProfileName: t.ICCProfileName}
		}
		m.Image = &mixBasicImage{Characteristics: c}
	}

	m.Capture = capture(t, doc)

	var a mixAssessment
	if t.XSamplingFrequency > 0 || t.YSamplingFrequency > 0 {
		a.Spatial = &mixSpatial{Unit: t.SamplingFrequencyUnit, X: t.XSamplingFrequency, Y: t.YSamplingFrequency}
	}
	if t.BitsPerSample != "" || t.SamplesPerPixel > 0 {
		a.Color = &mixColorEncoding{SamplesPerPixel: t.SamplesPerPixel}
		if t.BitsPerSample != "" {
			a.Color.BitsPerSample = &mixBitsPerSample{Value: t.BitsPerSample, Unit: "integer"}
		}
	}
	if a.Spatial != nil || a.Color != nil {
		m.Assessment = &a
	}

	if props := rawProperties(vf.Association.RawMetadata); len(props) > 0 {
		m.Extension = &mixExtension{Properties: props}
	}
	return m
}

func capture(t models.TechnicalMetadata, doc *models.TechnicalInfo) *mixCapture {
	manufacturer, model, producer := t.ScannerManufacturer, t.ScannerModelName, ""
	if doc != nil {
		if manufacturer == "" {
			manufacturer = doc.ScannerManufacturer
		}
		if model == "" {
			model = doc.ScannerModel
		}
		producer = doc.ImageProducer
	}

	c := &mixCapture{Orientation: t.Orientation}
	if t.DateTimeCreated != nil || producer != "" {
		c.General = &mixGeneralCapture{ImageProducer: producer}
		if t.DateTimeCreated != nil {
			c.General.DateTimeCreated = t.DateTimeCreated.UTC().Format(dateLayout)
		}
	}
	if manufacturer != "" || model != "" || t.ScanningSoftwareName != "" {
		c.Scanner = &mixScanner{Manufacturer: manufacturer, ModelName: model}
		if t.ScanningSoftwareName != "" {
			c.Scanner.Software = &mixSoftware{Name: t.ScanningSoftwareName, Version: t.ScanningSoftwareVersion}
		}
	}
	if c.General == nil && c.Scanner == nil && c.Orientation == "" {
		return nil
	}
	return c
}

// rawProperties renders the tag bag sorted by name. Tags with an empty
// name or a blank value are left out.
func rawProperties(raw map[string]any) []rawProperty {
	var props []rawProperty
	for _, k := range slices.Sorted(maps.Keys(raw)) {
		if v := rawValue(raw[k]); k != "" && strings.TrimSpace(v) != "" {
			props = append(props, rawProperty{Name: k, Value: v})
		}
	}
	return props
}

func rawValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case nil:
		return "null"
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprint(v)
	}
	return string(b)
}

func fileSection(files []models.ViewFile, paths map[string]string) *fileSec {
	if len(files) == 0 {
		return nil
	}
	groups := map[categorize.Use][]metsFile{}
	for _, vf := range files {
		a := vf.Association
		f := metsFile{
			ID:       fileID(vf),
			MimeType: vf.File.ContentType,
			Size:     vf.File.Size,
			AdmID:    techID(vf),
			FLocat: fLocat{
				LocType: "URL",
				Href:    locationHref(paths[vf.File.ID]),
			},
		}
		if f.MimeType == "" {
			f.MimeType = defaultMimeType
		}
		if a.Checksum != "" && a.ChecksumType != "" {
			f.Checksum, f.ChecksumType = a.Checksum, a.ChecksumType
		}
		use := a.Category.Use()
		groups[use] = append(groups[use], f)
	}

	sec := &fileSec{}
	for _, use := range categorize.UseOrder {
		if fs, ok := groups[use]; ok {
			sec.Groups = append(sec.Groups, fileGrp{Use: string(use), Files: fs})
		}
	}
	return sec
}

func structure(title string, amd *amdSec, files []models.ViewFile) structMap {
	folder := div{Type: "folder", Label: title, DmdID: DmdID}
	if amd != nil {
		folder.AdmID = amd.ID
	}

	for _, vf := range files {
		seq := vf.Association.SequenceNumber
		n := len(folder.Divs)
		if n == 0 || folder.Divs[n-1].Order != strconv.Itoa(seq) {
			folder.Divs = append(folder.Divs, div{Type: "page", Order: strconv.Itoa(seq)})
			n++
		}
		page := &folder.Divs[n-1]
		if page.Label == "" {
			page.Label = vf.Association.Label
		}
		page.Fptrs = append(page.Fptrs, fptr{FileID: fileID(vf)})
	}
	return structMap{Type: "PHYSICAL", Folder: folder}
}
