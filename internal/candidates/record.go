package candidates

import (
	"fmt"
	"strings"
)

// Missing is shown in place of empty fields. It is never stored.
const Missing = "Not available"

const descriptionLength = 100

// Record is a single résumé as kept by the record store.
type Record struct {
	ID         string `json:"id" mapstructure:"id" validate:"required"`
	Name       string `json:"name" mapstructure:"name"`
	Summary    string `json:"summary" mapstructure:"summary"`
	Skills     string `json:"skills" mapstructure:"skills"`
	Languages  string `json:"languages" mapstructure:"languages"`
	Experience string `json:"experience" mapstructure:"experience"`
	Location   string `json:"location" mapstructure:"location"`
	Education  string `json:"education" mapstructure:"education"`
	Email      string `json:"email" mapstructure:"email"`
	Phone      string `json:"phone" mapstructure:"phone"`
}

// Normalize trims every field in place.
func (r *Record) Normalize() {
	fields := []*string{
		&r.ID, &r.Name, &r.Summary, &r.Skills, &r.Languages,
		&r.Experience, &r.Location, &r.Education, &r.Email, &r.Phone,
	}
	for _, f := range fields {
		*f = strings.TrimSpace(*f)
	}
}

// OrMissing returns the value or the Missing placeholder when it is blank.
func OrMissing(value string) string {
	if strings.TrimSpace(value) == "" {
		return Missing
	}
	return value
}

// DisplayName returns the candidate name or a placeholder that still identifies the record.
func (r *Record) DisplayName() string {
	if r.Name == "" {
		return fmt.Sprintf("Unnamed (%s)", r.ID)
	}
	return r.Name
}

// Render builds the text that gets embedded for the record.
func Render(r *Record) string {
	var b strings.Builder
	fmt.Fprintf(&b, "SUMMARY: %s\n", r.Summary)
	fmt.Fprintf(&b, "LANGUAGES: %s\n", r.Languages)
	fmt.Fprintf(&b, "SKILLS: %s\n", r.Skills)
	fmt.Fprintf(&b, "EXPERIENCE: %s\n", r.Experience)
	fmt.Fprintf(&b, "LOCATION: %s\n", r.Location)
	fmt.Fprintf(&b, "EDUCATION: %s", r.Education)
	return b.String()
}

// Description is a short preview of the rendered record.
func Description(r *Record) string {
	text := strings.Join(strings.Fields(Render(r)), " ")
	runes := []rune(text)
	if len(runes) <= descriptionLength {
		return text
	}
	return string(runes[:descriptionLength]) + "..."
}
