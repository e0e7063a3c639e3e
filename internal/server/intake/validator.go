// Package intake validates, sanitizes, and stages incoming technician
// applications: field validation on the four submission sections and the
// upload-with-compensation saga for their documents.
package intake

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/ateliertech/portal/internal/server/models"
)

const maxFreeTextLen = 1000

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

	// French numbers: 06/07 mobiles, 01-05/08/09 landlines, and the
	// +33/33 international forms of either.
	phoneMobileRe        = regexp.MustCompile(`^0[67]\d{8}$`)
	phoneLandlineRe      = regexp.MustCompile(`^0[1-5]\d{8}$|^0[89]\d{8}$`)
	phoneInternationalRe = regexp.MustCompile(`^(?:\+33|33)[1-9]\d{8}$`)

	phoneSeparatorsRe = regexp.MustCompile(`[\s.\-]`)

	whitespaceRunRe = regexp.MustCompile(`\s+`)
)

// Submission is the raw four-section payload of an application, before
// sanitization.
type Submission struct {
	Personal     models.PersonalInfo     `json:"personalInfo"`
	Professional models.ProfessionalInfo `json:"professionalInfo"`
	Background   models.Background       `json:"background"`
	Additional   models.AdditionalInfo   `json:"additionalInfo"`
}

// ValidationResult reports per-field problems for UI feedback.
type ValidationResult struct {
	Valid  bool     `json:"isValid"`
	Errors []string `json:"errors,omitempty"`
}

// ValidateSubmission checks the submission fields and returns a sanitized
// copy alongside the result. The input is not modified. No side effects.
func ValidateSubmission(sub Submission) (Submission, ValidationResult) {
	var errs []string

	sub.Personal.FullName = sanitize(sub.Personal.FullName)
	sub.Personal.Email = strings.ToLower(sanitize(sub.Personal.Email))
	sub.Personal.Phone = sanitize(sub.Personal.Phone)
	sub.Personal.Location = sanitize(sub.Personal.Location)
	sub.Professional.Specialization = sanitize(sub.Professional.Specialization)
	sub.Professional.Certifications = sanitize(sub.Professional.Certifications)
	sub.Professional.Availability = sanitize(sub.Professional.Availability)
	sub.Professional.ToolsEquipment = sanitize(sub.Professional.ToolsEquipment)
	sub.Background.Education = sanitize(sub.Background.Education)
	sub.Background.WorkHistory = sanitize(sub.Background.WorkHistory)
	sub.Background.References = sanitize(sub.Background.References)
	sub.Additional.Skills = sanitize(sub.Additional.Skills)
	sub.Additional.Languages = sanitize(sub.Additional.Languages)

	if len(strings.TrimSpace(sub.Personal.FullName)) < 2 {
		errs = append(errs, "personalInfo.fullName: must be at least 2 characters")
	}
	if !emailRe.MatchString(sub.Personal.Email) {
		errs = append(errs, "personalInfo.email: invalid e-mail address")
	}
	if !validFrenchPhone(sub.Personal.Phone) {
		errs = append(errs, "personalInfo.phone: invalid French phone number")
	}
	if strings.TrimSpace(sub.Personal.Location) == "" {
		errs = append(errs, "personalInfo.location: required")
	}
	if len(strings.TrimSpace(sub.Professional.Specialization)) < 2 {
		errs = append(errs, "professionalInfo.specialization: must be at least 2 characters")
	}
	if sub.Professional.YearsExperience < 0 {
		errs = append(errs, "professionalInfo.yearsExperience: must be >= 0")
	}

	return sub, ValidationResult{Valid: len(errs) == 0, Errors: errs}
}

// ApplicantID derives the submission's public identifier:
// "<millis>_<lowercased full name, whitespace runs collapsed to one underscore>".
func ApplicantID(submittedAtMillis int64, fullName string) string {
	name := strings.ToLower(strings.TrimSpace(fullName))
	name = whitespaceRunRe.ReplaceAllString(name, "_")
	return strconv.FormatInt(submittedAtMillis, 10) + "_" + name
}

func validFrenchPhone(phone string) bool {
	p := phoneSeparatorsRe.ReplaceAllString(phone, "")
	return phoneMobileRe.MatchString(p) ||
		phoneLandlineRe.MatchString(p) ||
		phoneInternationalRe.MatchString(p)
}

// sanitize strips angle brackets, trims surrounding whitespace, and
// truncates to the free-text limit. The limit counts runes, not bytes, so
// accented text is never cut mid-character.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, "<", "")
	s = strings.ReplaceAll(s, ">", "")
	if utf8.RuneCountInString(s) > maxFreeTextLen {
		s = string([]rune(s)[:maxFreeTextLen])
	}
	return s
}
