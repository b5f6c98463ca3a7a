// Package visibility decides what each viewer may see of a consultant profile and
// produces the PII-free projection shown to everyone else.
package visibility

import (
	"strings"
	"unicode/utf8"

	"skillmap/pkg/ontology"
)

// Viewer identifies who is looking. A nil *Viewer is an anonymous visitor.
type Viewer struct {
	UserID         string
	Role           ontology.Role
	OrganizationID string
}

// ShouldMask reports whether profile must be redacted for viewer. Owners see everything,
// partner roles see their own organization's profiles, and everyone else sees masks.
func ShouldMask(profile *ontology.Profile, viewer *Viewer) bool {
	if viewer == nil {
		return true
	}
	switch viewer.Role {
	case ontology.RoleOwner:
		return false
	case ontology.RolePartnerAdmin, ontology.RolePartnerUser:
		return profile.OrganizationID != viewer.OrganizationID
	}
	return true
}

// MaskName renders a name as "A* Y*****": the first name shrinks to its initial plus one
// asterisk, or a lone asterisk when empty, and the last name keeps its initial followed by one asterisk per remaining rune.
func MaskName(first, last string) string {
	return maskFirst(first) + " " + maskLast(last)
}

func maskFirst(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return "*"
	}
	return strings.ToUpper(string(r)) + "*"
}

func maskLast(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if size == 0 {
		return ""
	}
	return strings.ToUpper(string(r)) + strings.Repeat("*", utf8.RuneCountInString(s)-1)
}

// MaskProfile projects a profile onto the fields safe to show without identifying the
// consultant. Contact details, location, organization and experiences are dropped.
func MaskProfile(p *ontology.Profile) *ontology.MaskedProfile {
	return &ontology.MaskedProfile{
		ID:             p.ID,
		DisplayName:    MaskName(p.FirstName, p.LastName),
		Title:          p.Title,
		SeniorityYears: p.SeniorityYears,
		WorkScope:      p.WorkScope,
		Summary:        p.Summary,
		Tags:           p.TagKeys(),
		Score:          p.Score,
		CreatedAt:      p.CreatedAt,
		UpdatedAt:      p.UpdatedAt,
	}
}

// DefaultClientLabel replaces client names whose sector is unknown.
const DefaultClientLabel = "Gizli Müşteri"

var sectorLabels = map[string]string{
	"pharmaceutical": "İlaç Sektörü",
	"ecommerce":      "E-ticaret",
	"automotive":     "Otomotiv",
	"finance":        "Finans",
	"retail":         "Perakende",
	"healthcare":     "Sağlık",
	"manufacturing":  "İmalat",
	"energy":         "Enerji",
	"telecom":        "Telekomünikasyon",
	"banking":        "Bankacılık",
}

// SectorLabel returns the generic label shown in place of a client from sector.
func SectorLabel(sector string) string {
	if label, ok := sectorLabels[strings.ToLower(strings.TrimSpace(sector))]; ok {
		return label
	}
	return DefaultClientLabel
}

// MaskExperience returns a copy of e whose client name is replaced by its sector label
// when mask is true. An absent client name stays absent.
func MaskExperience(e ontology.Experience, mask bool) ontology.Experience {
	if !mask || e.ClientName == nil {
		return e
	}
	sector := ""
	if e.ClientSector != nil {
		sector = *e.ClientSector
	}
	label := SectorLabel(sector)
	e.ClientName = &label
	return e
}

// MaskExperiences applies MaskExperience to each element, returning a new slice.
func MaskExperiences(experiences []ontology.Experience, mask bool) []ontology.Experience {
	out := make([]ontology.Experience, len(experiences))
	for i, e := range experiences {
		out[i] = MaskExperience(e, mask)
	}
	return out
}

// View returns the representation of a single profile appropriate for viewer. Unmasked
// views carry experiences as stored; the caller's profile is not modified.
func View(p *ontology.Profile, viewer *Viewer) ontology.ProfileView {
	if ShouldMask(p, viewer) {
		return MaskProfile(p)
	}
	return p
}

// Apply maps every profile to its view for viewer, preserving order.
func Apply(profiles []*ontology.Profile, viewer *Viewer) []ontology.ProfileView {
	out := make([]ontology.ProfileView, 0, len(profiles))
	for _, p := range profiles {
		out = append(out, View(p, viewer))
	}
	return out
}
