package models

import "time"

// TechnicianStatus gates login; only active accounts may authenticate.
type TechnicianStatus string

const (
	TechnicianActive          TechnicianStatus = "active"
	TechnicianPendingApproval TechnicianStatus = "pending_approval"
	TechnicianInactive        TechnicianStatus = "inactive"
	TechnicianRejected        TechnicianStatus = "rejected"
)

// Technician is a provisioned service-technician account.
//
// Credential invariants: IsTemporaryPassword implies
// TemporaryPasswordExpires is set and MustChangePassword is true until the
// temporary credential is redeemed. PasswordResetToken and
// PasswordResetExpires are set and cleared together.
type Technician struct {
	ID                       string
	Name                     string
	Surname                  string
	Email                    string
	Phone                    string
	Specialization           string
	PasswordHash             string
	Status                   TechnicianStatus
	IsTemporaryPassword      bool
	TemporaryPasswordExpires *time.Time
	MustChangePassword       bool
	PasswordResetToken       *string
	PasswordResetExpires     *time.Time
	CreatedAt                time.Time
}
