package model

type Authority string

const (
	AuthorityMember     Authority = "member"
	AuthorityOrgAdmin   Authority = "org_admin"
	AuthoritySuperAdmin Authority = "super_admin"
)

// Actor is the identity context of a caller.
type Actor struct {
	ID             string    `json:"id"`
	OrganizationID string    `json:"organization_id"`
	Authority      Authority `json:"authority"`
}

// CanManage reports whether the actor may approve, reject or administratively
// cancel reservations on resources owned by orgID.
func (a Actor) CanManage(orgID string) bool {
	switch a.Authority {
	case AuthoritySuperAdmin:
		return true
	case AuthorityOrgAdmin:
		return a.OrganizationID != "" && a.OrganizationID == orgID
	}
	return false
}
