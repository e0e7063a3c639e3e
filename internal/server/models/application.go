// Package models holds the persistent row types shared by repositories and
// services.
package models

import "time"

// ApplicationStatus is the lifecycle state of a technician application.
type ApplicationStatus string

const (
	StatusPending   ApplicationStatus = "pending"
	StatusReviewing ApplicationStatus = "reviewing"
	StatusApproved  ApplicationStatus = "approved"
	StatusRejected  ApplicationStatus = "rejected"
)

// Terminal reports whether the status admits no further transitions.
func (s ApplicationStatus) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// PersonalInfo is the applicant's identity section.
type PersonalInfo struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Location string `json:"location"`
}

// ProfessionalInfo describes the applicant's trade profile.
type ProfessionalInfo struct {
	Specialization  string `json:"specialization"`
	YearsExperience int    `json:"yearsExperience"`
	Certifications  string `json:"certifications"`
	Availability    string `json:"availability"`
	ToolsEquipment  string `json:"toolsEquipment"`
}

// Background covers education and prior work.
type Background struct {
	Education   string `json:"education"`
	WorkHistory string `json:"workHistory"`
	References  string `json:"references"`
}

// AdditionalInfo holds the free-form extras of a submission.
type AdditionalInfo struct {
	Skills             string `json:"skills"`
	Languages          string `json:"languages"`
	TransportAvailable bool   `json:"transportAvailable"`
}

// DocHandle is an opaque reference to an uploaded document in the blob
// store. It is owned exclusively by the application until explicitly
// deleted.
type DocHandle struct {
	PublicID     string    `json:"publicId"`
	URL          string    `json:"url"`
	ResourceType string    `json:"resourceType"`
	Format       string    `json:"format"`
	Bytes        int64     `json:"bytes"`
	CreatedAt    time.Time `json:"createdAt"`
}

// ApplicationDocuments groups the staged documents of one submission.
// CV is always present post-creation; the motivation letter is optional.
type ApplicationDocuments struct {
	CV               DocHandle   `json:"cv"`
	Diplomas         []DocHandle `json:"diplomas"`
	MotivationLetter *DocHandle  `json:"motivationLetter"`
}

// Application is a technician candidacy record progressing through
// pending/reviewing/approved/rejected. TechnicianID is non-nil iff the
// application was approved and provisioning completed.
type Application struct {
	ID           string
	ApplicantID  string
	Personal     PersonalInfo
	Professional ProfessionalInfo
	Background   Background
	Additional   AdditionalInfo
	Documents    ApplicationDocuments
	Status       ApplicationStatus
	AdminNotes   string
	TechnicianID *string
	SubmittedAt  time.Time
	UpdatedAt    time.Time
}
