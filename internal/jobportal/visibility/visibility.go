// Package visibility decides whether hidden companies are part of a
// caller's view and applies that decision to queries joining companies.
package visibility

import (
	"github.com/gartstein/jobportal/internal/jobportal/models"
	"gorm.io/gorm"
)

// MayReadHidden reports whether p may see hidden companies. A nil principal may not.
func MayReadHidden(p *models.Principal) bool {
	return p.EffectivePermissions().ReadHidden
}

// Apply restricts tx to visible companies unless p may read hidden ones.
// tx must already join the companies table.
func Apply(tx *gorm.DB, p *models.Principal) *gorm.DB {
	if MayReadHidden(p) {
		return tx
	}
	return tx.Where("companies.hidden = ?", false)
}
