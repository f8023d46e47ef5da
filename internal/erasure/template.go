package erasure

import (
	"errors"
	"fmt"
	"strings"
)

const (
	// PlayerIDPlaceholder is replaced with the subject user id.
	PlayerIDPlaceholder = "{playerId}"
	// legacyUserIDPlaceholder is accepted for rules written against older deployments.
	legacyUserIDPlaceholder = "{userId}"
)

// ErrTemplateSyntax rejects a template with braces other than a known placeholder.
var ErrTemplateSyntax = errors.New("erasure: invalid template syntax")

// ValidateTemplate reports ErrTemplateSyntax for templates that InstantiateTemplate would reject.
func ValidateTemplate(template string) error {
	_, err := InstantiateTemplate(template, "1")
	return err
}

// InstantiateTemplate replaces every placeholder in template with playerID.
func InstantiateTemplate(template, playerID string) (string, error) {
	if playerID == "" || strings.ContainsAny(playerID, "{}") {
		return "", fmt.Errorf("%w: invalid player id %q", ErrTemplateSyntax, playerID)
	}
	var b strings.Builder
	b.Grow(len(template) + len(playerID))
	for i := 0; i < len(template); {
		switch template[i] {
		case '{':
			end := strings.IndexByte(template[i:], '}')
			if end < 0 {
				return "", fmt.Errorf("%w: unclosed '{' at offset %d", ErrTemplateSyntax, i)
			}
			token := template[i : i+end+1]
			if token != PlayerIDPlaceholder && token != legacyUserIDPlaceholder {
				return "", fmt.Errorf("%w: unknown placeholder %s", ErrTemplateSyntax, token)
			}
			b.WriteString(playerID)
			i += end + 1
		case '}':
			return "", fmt.Errorf("%w: unmatched '}' at offset %d", ErrTemplateSyntax, i)
		default:
			b.WriteByte(template[i])
			i++
		}
	}
	return b.String(), nil
}
