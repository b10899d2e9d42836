package step

import (
	"strings"
)

// Header holds the values of the HEADER section of a STEP file.
type Header struct {
	Description         []string
	Name                string
	TimeStamp           string
	Author              []string
	Organization        []string
	PreprocessorVersion string
	OriginatingSystem   string
	Schemas             []string
}

// ReadHeader extracts FILE_DESCRIPTION, FILE_NAME and FILE_SCHEMA from the
// HEADER section. Missing records leave the corresponding fields empty.
func ReadHeader(text string) Header {
	var h Header
	start := strings.Index(text, "HEADER;")
	if start < 0 {
		return h
	}
	section := text[start+len("HEADER;"):]
	if i := strings.Index(section, "ENDSEC"); i >= 0 {
		section = section[:i]
	}
	for _, stmt := range splitStatements(section) {
		open := strings.Index(stmt, "(")
		end := strings.LastIndex(stmt, ")")
		if open < 0 || end < open {
			continue
		}
		name := strings.TrimSpace(stmt[:open])
		params := SplitParameters(stmt[open+1 : end])
		switch name {
		case "FILE_DESCRIPTION":
			if len(params) > 0 {
				h.Description = stringList(params[0])
			}
		case "FILE_NAME":
			for i, p := range params {
				switch i {
				case 0:
					h.Name = Unquote(p)
				case 1:
					h.TimeStamp = Unquote(p)
				case 2:
					h.Author = stringList(p)
				case 3:
					h.Organization = stringList(p)
				case 4:
					h.PreprocessorVersion = Unquote(p)
				case 5:
					h.OriginatingSystem = Unquote(p)
				}
			}
		case "FILE_SCHEMA":
			if len(params) > 0 {
				h.Schemas = stringList(params[0])
			}
		}
	}
	return h
}

// splitStatements splits text on semicolons outside quoted strings.
func splitStatements(text string) []string {
	var (
		out      []string
		current  strings.Builder
		inString bool
	)
	for _, r := range text {
		switch {
		case r == '\'':
			inString = !inString
			current.WriteRune(r)
		case r == ';' && !inString:
			if s := strings.TrimSpace(current.String()); s != "" {
				out = append(out, s)
			}
			current.Reset()
		default:
			current.WriteRune(r)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		out = append(out, s)
	}
	return out
}

// stringList parses a parenthesised list of quoted strings, dropping empty ones.
func stringList(param string) []string {
	param = strings.TrimSpace(param)
	param = strings.TrimPrefix(param, "(")
	param = strings.TrimSuffix(param, ")")
	var out []string
	for _, p := range SplitParameters(param) {
		if s := Unquote(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}
