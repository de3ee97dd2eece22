// Package auth implements the gateway's single registration-time check:
// exact membership in a configured token set. There is no JWT, OAuth, or
// LDAP here — the retrieval pack's internal/middleware/auth/{jwt,oauth,
// saml,ldap}.go back HTTP routes this gateway does not have; see
// DESIGN.md for why they are not wired.
package auth

// Validator checks a presented token against a fixed set.
type Validator struct {
	tokens map[string]struct{}
}

// NewValidator builds a Validator from the configured token list. An empty
// list means every token is rejected.
func NewValidator(tokens []string) *Validator {
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return &Validator{tokens: set}
}

// Validate reports whether token is an exact match for a configured token.
func (v *Validator) Validate(token string) bool {
	if token == "" {
		return false
	}
	_, ok := v.tokens[token]
	return ok
}
