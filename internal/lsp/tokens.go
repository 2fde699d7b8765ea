package lsp

import (
	"strings"
	"unicode"
)

// SemanticToken is one entry of an LSP semantic-tokens response: Line and
// StartChar are 0-based, TokenType indexes SemanticTokenTypes.
type SemanticToken struct {
	Line           uint32
	StartChar      uint32
	Length         uint32
	TokenType      int
	TokenModifiers int
}

var patternKeywords = map[string]bool{
	"for": true, "if": true, "in": true, "seq": true, "par": true,
}

// collectSemanticTokens tokenizes text line by line using the same
// vocabulary internal/pattern's lexer recognizes: keywords, identifiers,
// numbers, and operator/punctuation runs. A line beginning with "#" is
// classified as a single comment token.
func collectSemanticTokens(text string) []SemanticToken {
	var tokens []SemanticToken

	for lineNo, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") {
			start := strings.Index(line, "#")
			tokens = append(tokens, SemanticToken{
				Line: uint32(lineNo), StartChar: uint32(start), Length: uint32(len(line) - start),
				TokenType: indexOf("comment", SemanticTokenTypes),
			})
			continue
		}
		tokens = append(tokens, tokenizeLine(line, lineNo)...)
	}

	return tokens
}

func tokenizeLine(line string, lineNo int) []SemanticToken {
	var tokens []SemanticToken
	runes := []rune(line)
	i := 0
	for i < len(runes) {
		r := runes[i]
		switch {
		case unicode.IsSpace(r):
			i++
		case unicode.IsLetter(r):
			j := i + 1
			for j < len(runes) && (unicode.IsLetter(runes[j]) || unicode.IsDigit(runes[j]) || runes[j] == '_') {
				j++
			}
			word := string(runes[i:j])
			kind := "variable"
			if patternKeywords[word] {
				kind = "keyword"
			}
			tokens = append(tokens, SemanticToken{Line: uint32(lineNo), StartChar: uint32(i), Length: uint32(j - i), TokenType: indexOf(kind, SemanticTokenTypes)})
			i = j
		case unicode.IsDigit(r):
			j := i + 1
			for j < len(runes) && unicode.IsDigit(runes[j]) {
				j++
			}
			tokens = append(tokens, SemanticToken{Line: uint32(lineNo), StartChar: uint32(i), Length: uint32(j - i), TokenType: indexOf("number", SemanticTokenTypes)})
			i = j
		case r == '_':
			tokens = append(tokens, SemanticToken{Line: uint32(lineNo), StartChar: uint32(i), Length: 1, TokenType: indexOf("keyword", SemanticTokenTypes)})
			i++
		case strings.ContainsRune("+-*/%<>=!#", r):
			j := i + 1
			for j < len(runes) && strings.ContainsRune("+-*/%<>=!", runes[j]) {
				j++
			}
			tokens = append(tokens, SemanticToken{Line: uint32(lineNo), StartChar: uint32(i), Length: uint32(j - i), TokenType: indexOf("operator", SemanticTokenTypes)})
			i = j
		default:
			i++
		}
	}
	return tokens
}

func indexOf(target string, list []string) int {
	for i, v := range list {
		if v == target {
			return i
		}
	}
	return -1
}
