package intake

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/ateliertech/portal/internal/server/models"
	"github.com/stretchr/testify/require"
)

func validSubmission() Submission {
	return Submission{
		Personal: models.PersonalInfo{
			FullName: "Jean Dupont",
			Email:    "Jean.Dupont@Example.com",
			Phone:    "0612345678",
			Location: "Lyon",
		},
		Professional: models.ProfessionalInfo{
			Specialization:  "Réparation PC portables",
			YearsExperience: 3,
		},
	}
}

func TestValidateSubmission_Valid(t *testing.T) {
	sanitized, res := ValidateSubmission(validSubmission())
	require.True(t, res.Valid, "errors: %v", res.Errors)
	require.Equal(t, "jean.dupont@example.com", sanitized.Personal.Email, "email must be lower-cased")
}

func TestValidateSubmission_FieldErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Submission)
		want   string
	}{
		{"short name", func(s *Submission) { s.Personal.FullName = "J" }, "fullName"},
		{"bad email", func(s *Submission) { s.Personal.Email = "not-an-email" }, "email"},
		{"bad phone", func(s *Submission) { s.Personal.Phone = "12345" }, "phone"},
		{"missing location", func(s *Submission) { s.Personal.Location = "  " }, "location"},
		{"short specialization", func(s *Submission) { s.Professional.Specialization = "x" }, "specialization"},
		{"negative experience", func(s *Submission) { s.Professional.YearsExperience = -1 }, "yearsExperience"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			sub := validSubmission()
			tc.mutate(&sub)
			_, res := ValidateSubmission(sub)
			require.False(t, res.Valid)
			found := false
			for _, e := range res.Errors {
				if strings.Contains(e, tc.want) {
					found = true
				}
			}
			require.True(t, found, "expected an error mentioning %q, got %v", tc.want, res.Errors)
		})
	}
}

func TestValidateSubmission_PhoneForms(t *testing.T) {
	valid := []string{
		"0612345678", "0712345678", // mobiles
		"0112345678", "0512345678", "0812345678", "0912345678", // landlines
		"+33612345678", "33612345678", // international
		"06 12 34 56 78", "06.12.34.56.78", "06-12-34-56-78", // separators
	}
	invalid := []string{
		"0012345678", "061234567", "06123456789", "+34612345678", "+330612345678",
	}

	for _, p := range valid {
		sub := validSubmission()
		sub.Personal.Phone = p
		_, res := ValidateSubmission(sub)
		require.True(t, res.Valid, "expected %q to be accepted: %v", p, res.Errors)
	}
	for _, p := range invalid {
		sub := validSubmission()
		sub.Personal.Phone = p
		_, res := ValidateSubmission(sub)
		require.False(t, res.Valid, "expected %q to be rejected", p)
	}
}

func TestValidateSubmission_SanitizesAngleBracketsAndTruncates(t *testing.T) {
	sub := validSubmission()
	sub.Background.Education = "<script>alert(1)</script>" + strings.Repeat("a", 2000)

	sanitized, res := ValidateSubmission(sub)
	require.True(t, res.Valid)
	require.NotContains(t, sanitized.Background.Education, "<")
	require.NotContains(t, sanitized.Background.Education, ">")
	require.LessOrEqual(t, len(sanitized.Background.Education), 1000)
}

func TestValidateSubmission_TruncatesOnRuneBoundary(t *testing.T) {
	sub := validSubmission()
	sub.Background.Education = strings.Repeat("é", 1500)

	sanitized, res := ValidateSubmission(sub)
	require.True(t, res.Valid)
	require.True(t, utf8.ValidString(sanitized.Background.Education),
		"truncation must not produce invalid UTF-8")
	require.Equal(t, 1000, utf8.RuneCountInString(sanitized.Background.Education))
}

func TestApplicantID(t *testing.T) {
	require.Equal(t, "1700000000000_jean_dupont", ApplicantID(1700000000000, "Jean Dupont"))
	require.Equal(t, "1700000000000_jean_marc_dupont", ApplicantID(1700000000000, "  Jean  Marc\tDupont "))
}
