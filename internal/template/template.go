// Package template renders message content by substituting {field}
// placeholders with recipient-specific values.
package template

import (
	"strings"
)

// Render replaces every {key} in tmpl with the matching value from data.
// Placeholders without a value are left in place so a half-configured
// template is visible in the output rather than silently blanked.
func Render(tmpl string, data map[string]string) string {
	result := tmpl
	for k, v := range data {
		result = strings.ReplaceAll(result, "{"+k+"}", v)
	}
	return result
}

// FirstName extracts a first name from a full name for the common
// {first_name} placeholder.
func FirstName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if i := strings.IndexByte(name, ' '); i > 0 {
		return name[:i]
	}
	return name
}
