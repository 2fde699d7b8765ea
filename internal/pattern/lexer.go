// Package pattern implements the pattern matcher: a terse grammar of
// identifiers, the wildcard `_`, a handful of statement/expression forms,
// and a trailing occurrence selector `#k`, resolved against a loopir.Proc
// into a cursor.Cursor.
package pattern

import "github.com/alecthomas/participle/v2/lexer"

// Lexer tokenizes the pattern mini-language: identifiers, the wildcard,
// integers, a small fixed set of keywords/punctuation, and the occurrence
// selector.
var Lexer = lexer.MustStateful(lexer.Rules{
	"Root": {
		{"Whitespace", `[ \t\r\n]+`, nil},
		{"Keyword", `\b(for|if|in|seq|par)\b`, nil},
		{"Wildcard", `_`, nil},
		{"Ident", `[a-zA-Z][a-zA-Z0-9_]*`, nil},
		{"Number", `[0-9]+`, nil},
		{"Hash", `#`, nil},
		{"Operator", `(<=|>=|==|!=|\+=|-=|&&|\|\||[-+*/%<>=])`, nil},
		{"Punct", `[\[\]():,.]`, nil},
	},
})
