package sequence

import (
	"errors"
	"fmt"
	"strings"

	"cadence.app/outreach/internal/model"
)

var (
	ErrMalformedTemplate = errors.New("malformed template")
	ErrMissingField      = errors.New("missing template field")
)

type fieldFunc func(lead model.Lead, campaign model.Campaign) string

var templateFields = map[string]fieldFunc{
	"first_name":    func(l model.Lead, _ model.Campaign) string { return l.FirstName },
	"last_name":     func(l model.Lead, _ model.Campaign) string { return l.LastName },
	"full_name":     func(l model.Lead, _ model.Campaign) string { return l.FullName() },
	"company_name":  func(l model.Lead, _ model.Campaign) string { return l.CompanyName },
	"company":       func(l model.Lead, _ model.Campaign) string { return l.CompanyName },
	"title":         func(l model.Lead, _ model.Campaign) string { return l.Title },
	"position":      func(l model.Lead, _ model.Campaign) string { return l.Title },
	"location":      func(l model.Lead, _ model.Campaign) string { return l.Location },
	"industry":      func(l model.Lead, _ model.Campaign) string { return l.Industry },
	"campaign_name": func(_ model.Lead, c model.Campaign) string { return c.Name },
}

// Render substitutes {{field}} placeholders with lead and campaign data.
// {{field|fallback}} uses fallback when the field is empty. An unknown
// field or an unbalanced brace pair is ErrMalformedTemplate; an empty field
// without a fallback is ErrMissingField.
func Render(tpl string, lead model.Lead, campaign model.Campaign) (string, error) {
	var b strings.Builder
	rest := tpl
	for {
		open := strings.Index(rest, "{{")
		if open < 0 {
			if strings.Contains(rest, "}}") {
				return "", fmt.Errorf("%w: unmatched }}", ErrMalformedTemplate)
			}
			b.WriteString(rest)
			break
		}
		if strings.Contains(rest[:open], "}}") {
			return "", fmt.Errorf("%w: unmatched }}", ErrMalformedTemplate)
		}
		b.WriteString(rest[:open])

		rest = rest[open+2:]
		end := strings.Index(rest, "}}")
		if end < 0 {
			return "", fmt.Errorf("%w: unclosed {{", ErrMalformedTemplate)
		}
		expr := rest[:end]
		rest = rest[end+2:]
		if strings.Contains(expr, "{{") {
			return "", fmt.Errorf("%w: nested {{", ErrMalformedTemplate)
		}

		value, err := resolve(expr, lead, campaign)
		if err != nil {
			return "", err
		}
		b.WriteString(value)
	}
	return b.String(), nil
}

func resolve(expr string, lead model.Lead, campaign model.Campaign) (string, error) {
	name, fallback, hasFallback := strings.Cut(expr, "|")
	name = strings.TrimSpace(name)
	field, ok := templateFields[name]
	if !ok {
		return "", fmt.Errorf("%w: unknown placeholder %q", ErrMalformedTemplate, name)
	}
	if v := strings.TrimSpace(field(lead, campaign)); v != "" {
		return v, nil
	}
	if hasFallback {
		return strings.TrimSpace(fallback), nil
	}
	return "", fmt.Errorf("%w: %s", ErrMissingField, name)
}

// CheckTemplate reports template syntax errors without lead data.
func CheckTemplate(tpl string) error {
	sample := model.Lead{
		FirstName:   "x",
		LastName:    "x",
		CompanyName: "x",
		Title:       "x",
		Location:    "x",
		Industry:    "x",
	}
	_, err := Render(tpl, sample, model.Campaign{Name: "x"})
	return err
}

// truncateNote shortens a connection note to max runes.
func truncateNote(note string, max int) string {
	r := []rune(note)
	if max <= 3 || len(r) <= max {
		return note
	}
	return string(r[:max-3]) + "..."
}
