package step

import "strings"

// IsValidStepFile reports whether text looks like a STEP file: it has a line
// naming ISO-10303-21, at least one line starting with '#', and a line
// containing ENDSEC.
func IsValidStepFile(text string) bool {
	var hasHeader, hasEntities, hasEnd bool
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "ISO-10303-21") {
			hasHeader = true
		}
		if strings.HasPrefix(line, "#") {
			hasEntities = true
		}
		if strings.Contains(line, "ENDSEC") {
			hasEnd = true
		}
	}
	return hasHeader && hasEntities && hasEnd
}
