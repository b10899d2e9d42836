package step

import (
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
)

// paramLexer tokenises the body of an entity parameter list.
// String handles STEP's doubled-quote escape; a lone Quote is an
// unterminated string and switches the splitter into string mode.
var paramLexer = lexer.MustSimple([]lexer.SimpleRule{
	{Name: "String", Pattern: `'(?:[^']|'')*'`},
	{Name: "Quote", Pattern: `'`},
	{Name: "LParen", Pattern: `\(`},
	{Name: "RParen", Pattern: `\)`},
	{Name: "Comma", Pattern: `,`},
	{Name: "Whitespace", Pattern: `\s+`},
	{Name: "Text", Pattern: `[^'(),\s]+`},
})

var (
	tokQuote  = paramLexer.Symbols()["Quote"]
	tokLParen = paramLexer.Symbols()["LParen"]
	tokRParen = paramLexer.Symbols()["RParen"]
	tokComma  = paramLexer.Symbols()["Comma"]
)

// SplitParameters splits a parameter list into its top-level, comma separated
// tokens. Commas only split at nesting depth zero and outside quoted strings.
// Tokens are trimmed; a trailing empty token is dropped.
func SplitParameters(params string) []string {
	lex, err := paramLexer.LexString("", params)
	if err != nil {
		return trimmedSingle(params)
	}
	tokens, err := lexer.ConsumeAll(lex)
	if err != nil {
		return trimmedSingle(params)
	}

	var (
		result   []string
		current  strings.Builder
		depth    int
		inString bool
	)
	for _, tok := range tokens {
		if tok.EOF() {
			break
		}
		switch {
		case tok.Type == tokQuote:
			inString = !inString
			current.WriteString(tok.Value)
		case inString:
			current.WriteString(tok.Value)
		case tok.Type == tokLParen:
			depth++
			current.WriteString(tok.Value)
		case tok.Type == tokRParen:
			depth--
			current.WriteString(tok.Value)
		case tok.Type == tokComma && depth == 0:
			result = append(result, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteString(tok.Value)
		}
	}
	if s := strings.TrimSpace(current.String()); s != "" {
		result = append(result, s)
	}
	return result
}

func trimmedSingle(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return []string{s}
}

// Unquote returns the contents of a quoted STEP string with doubled quotes
// collapsed. Values that are not quoted are returned unchanged.
func Unquote(s string) string {
	if len(s) >= 2 && s[0] == '\'' && s[len(s)-1] == '\'' {
		return strings.ReplaceAll(s[1:len(s)-1], "''", "'")
	}
	return s
}
