package auth

import "strings"

// AdminChecker answers whether an identity holds the administrator role.
// Admin identities come from configuration, never from a compiled-in
// literal.
type AdminChecker struct {
	emails map[string]bool
}

// NewAdminChecker builds a checker from the configured admin email list.
// Comparison is case-insensitive on the email address.
func NewAdminChecker(adminEmails []string) *AdminChecker {
	emails := make(map[string]bool, len(adminEmails))
	for _, e := range adminEmails {
		e = strings.ToLower(strings.TrimSpace(e))
		if e != "" {
			emails[e] = true
		}
	}
	return &AdminChecker{emails: emails}
}

// IsAdmin reports whether the identity is a designated administrator.
func (c *AdminChecker) IsAdmin(id Identity) bool {
	if id.Email == "" {
		return false
	}
	return c.emails[strings.ToLower(id.Email)]
}
