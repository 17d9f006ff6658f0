package models

// MetadataPatch is a partial update of a metadata record. Nil fields are left
// unchanged.
type MetadataPatch struct {
	ConservativeID          *string `json:"conservative_id,omitempty"`
	ConservativeIDAuthority *string `json:"conservative_id_authority,omitempty"`
	Title                   *string `json:"title,omitempty"`
	Description             *string `json:"description,omitempty"`
	TypeOfResource          *string `json:"type_of_resource,omitempty"`

	Archive   *ArchiveInfo   `json:"archive,omitempty"`
	Temporal  *TemporalInfo  `json:"temporal,omitempty"`
	Agents    *AgentsInfo    `json:"agents,omitempty"`
	Rights    *RightsInfo    `json:"rights,omitempty"`
	Technical *TechnicalInfo `json:"technical,omitempty"`
	Physical  *PhysicalInfo  `json:"physical,omitempty"`
	Header    *Header        `json:"mets_header,omitempty"`

	Location *string   `json:"location,omitempty"`
	Language *string   `json:"language,omitempty"`
	Subjects *[]string `json:"subjects,omitempty"`
}

// Fields returns the set fields keyed by their metadata store names.
func (p MetadataPatch) Fields() map[string]any {
	f := map[string]any{}
	setString := func(name string, v *string) {
		if v != nil {
			f[name] = *v
		}
	}
	setString("conservative_id", p.ConservativeID)
	setString("conservative_id_authority", p.ConservativeIDAuthority)
	setString("title", p.Title)
	setString("description", p.Description)
	setString("type_of_resource", p.TypeOfResource)
	setString("location", p.Location)
	setString("language", p.Language)

	if p.Archive != nil {
		f["archive"] = p.Archive
	}
	if p.Temporal != nil {
		f["temporal"] = p.Temporal
	}
	if p.Agents != nil {
		f["agents"] = p.Agents
	}
	if p.Rights != nil {
		f["rights"] = p.Rights
	}
	if p.Technical != nil {
		f["technical"] = p.Technical
	}
	if p.Physical != nil {
		f["physical"] = p.Physical
	}
	if p.Header != nil {
		f["mets_header"] = p.Header
	}
	if p.Subjects != nil {
		f["subjects"] = *p.Subjects
	}
	return f
}

// Empty reports whether the patch changes nothing.
func (p MetadataPatch) Empty() bool {
	return len(p.Fields()) == 0
}

// Apply writes the set fields of p into m.
func (m *Metadata) Apply(p MetadataPatch) {
	apply := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	apply(&m.ConservativeID, p.ConservativeID)
	apply(&m.ConservativeIDAuthority, p.ConservativeIDAuthority)
	apply(&m.Title, p.Title)
	apply(&m.Description, p.Description)
	apply(&m.TypeOfResource, p.TypeOfResource)
	apply(&m.Location, p.Location)
	apply(&m.Language, p.Language)

	if p.Archive != nil {
		m.Archive = p.Archive
	}
	if p.Temporal != nil {
		m.Temporal = p.Temporal
	}
	if p.Agents != nil {
		m.Agents = p.Agents
	}
	if p.Rights != nil {
		m.Rights = p.Rights
	}
	if p.Technical != nil {
		m.Technical = p.Technical
	}
	if p.Physical != nil {
		m.Physical = p.Physical
	}
	if p.Header != nil {
		m.Header = p.Header
	}
	if p.Subjects != nil {
		m.Subjects = *p.Subjects
	}
}
