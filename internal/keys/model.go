package keys

import "time"

// LicenseKey is a persisted single-use key.
type LicenseKey struct {
	ID         string     `gorm:"column:id;primaryKey;size:64;not null"`
	Key        string     `gorm:"column:license_key;size:32;not null;uniqueIndex:idx_license_keys_key"`
	IsRedeemed bool       `gorm:"column:is_redeemed;not null;default:false"`
	RedeemedAt *time.Time `gorm:"column:redeemed_at"`
	CreatedAt  time.Time  `gorm:"column:created_at;autoCreateTime"`
}

// TableName provides the explicit table binding for GORM.
func (LicenseKey) TableName() string {
	return "license_keys"
}
