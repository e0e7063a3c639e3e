package models

import "time"

// Admin is a back-office account. Admins are provisioned out of band and
// share only the password-reset machinery with technicians.
type Admin struct {
	ID                   string
	Email                string
	PasswordHash         string
	PasswordResetToken   *string
	PasswordResetExpires *time.Time
	CreatedAt            time.Time
}
