package naming

import (
	"unicode"

	"github.com/jinzhu/inflection"
)

// Pluralize returns the plural of a PascalCase type name. Only the last
// word is inflected, so "MovieSeries" keeps its prefix and "StudioPerson"
// becomes "StudioPeople". PluralOverrides win over inflection.
func (n *Namer) Pluralize(typeName string) string {
	if override, ok := n.config.PluralOverrides[typeName]; ok {
		return override
	}
	cut := lastWordStart(typeName)
	return typeName[:cut] + inflection.Plural(typeName[cut:])
}

// lastWordStart returns the byte offset of the final PascalCase word. Runs
// of capitals such as the "DVD" in "DVDRelease" stay with the word that
// follows them.
func lastWordStart(s string) int {
	runes := []rune(s)
	start := 0
	for i := 1; i < len(runes); i++ {
		if !unicode.IsUpper(runes[i]) {
			continue
		}
		prevLower := !unicode.IsUpper(runes[i-1])
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if prevLower || nextLower {
			start = i
		}
	}
	return len(string(runes[:start]))
}
