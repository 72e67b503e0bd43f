package models

import "time"

// Permissions is the capability set of a principal after the admin
// override has been folded in.
type Permissions struct {
	Admin      bool
	Read       bool
	Write      bool
	ReadHidden bool
}

// Principal is the authenticated caller, backed by an API key.
type Principal struct {
	ID          uint
	Name        string
	Description string
	Admin       bool
	Read        bool
	Write       bool
	ReadHidden  bool
	Active      bool
	CreatedAt   time.Time
	LastUsedAt  *time.Time
}

// EffectivePermissions returns the principal's capabilities with admin
// implying every other flag. Inactive or nil principals have none.
func (p *Principal) EffectivePermissions() Permissions {
	if p == nil || !p.Active {
		return Permissions{}
	}
	return Permissions{
		Admin:      p.Admin,
		Read:       p.Admin || p.Read,
		Write:      p.Admin || p.Write,
		ReadHidden: p.Admin || p.ReadHidden,
	}
}
