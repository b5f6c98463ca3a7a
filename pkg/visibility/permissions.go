package visibility

import "skillmap/pkg/ontology"

func CanViewFullProfile(profile *ontology.Profile, viewer *Viewer) bool {
	return !ShouldMask(profile, viewer)
}

// CanEditProfile: owners edit any profile, partner admins edit their own organization's.
func CanEditProfile(profile *ontology.Profile, viewer *Viewer) bool {
	return CanEditOrganizationProfiles(profile.OrganizationID, viewer)
}

func CanDeleteProfile(profile *ontology.Profile, viewer *Viewer) bool {
	return CanEditProfile(profile, viewer)
}

// CanEditOrganizationProfiles reports whether viewer may create or change profiles that
// belong to organizationID.
func CanEditOrganizationProfiles(organizationID string, viewer *Viewer) bool {
	if viewer == nil {
		return false
	}
	switch viewer.Role {
	case ontology.RoleOwner:
		return true
	case ontology.RolePartnerAdmin:
		return viewer.OrganizationID == organizationID
	}
	return false
}

func CanManagePartners(viewer *Viewer) bool { return isOwner(viewer) }

func CanManageTags(viewer *Viewer) bool { return isOwner(viewer) }

func CanViewContactRequests(viewer *Viewer) bool { return isOwner(viewer) }

func CanHandleContactRequests(viewer *Viewer) bool { return isOwner(viewer) }

func CanViewAuditLogs(viewer *Viewer) bool { return isOwner(viewer) }

// CanManageUsers reports whether viewer may create or remove users of organizationID.
func CanManageUsers(organizationID string, viewer *Viewer) bool {
	return CanEditOrganizationProfiles(organizationID, viewer)
}

func isOwner(viewer *Viewer) bool {
	return viewer != nil && viewer.Role == ontology.RoleOwner
}
