package glossary

import (
	"fmt"
	"strings"
)

// Placeholder ties a masking token to the translation it stands for.
type Placeholder struct {
	Token       string
	Translation string
}

// Placeholders lists the tokens assigned by one Mask call, in glossary order.
type Placeholders []Placeholder

// Token returns the placeholder used for the entry at index i.
func Token(i int) string {
	return fmt.Sprintf("__GLOSSARY_%d__", i)
}

// Mask replaces every case-insensitive occurrence of each matching term with
// its placeholder. Terms are visited in glossary order, so an earlier term
// claims overlapping text first.
func (g Glossary) Mask(text string) (string, Placeholders) {
	masked := text
	var placeholders Placeholders
	for i, entry := range g.entries {
		if entry.re == nil || !entry.re.MatchString(masked) {
			continue
		}
		token := Token(i)
		masked = entry.re.ReplaceAllLiteralString(masked, token)
		placeholders = append(placeholders, Placeholder{Token: token, Translation: entry.Translation})
	}
	return masked, placeholders
}

// Restore swaps each token for its translation by exact substring match.
// Tokens the translator mangled are left as they are.
func (p Placeholders) Restore(text string) string {
	restored := text
	for _, placeholder := range p {
		restored = strings.ReplaceAll(restored, placeholder.Token, placeholder.Translation)
	}
	return restored
}
