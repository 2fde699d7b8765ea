package pattern

import (
	"fmt"

	"github.com/alecthomas/participle/v2"
)

var queryParser = buildParser()

func buildParser() *participle.Parser[Query] {
	p, err := participle.Build[Query](
		participle.Lexer(Lexer),
		participle.Elide("Whitespace"),
		participle.UseLookahead(5),
	)
	if err != nil {
		panic(fmt.Errorf("pattern: failed to build parser: %w", err))
	}
	return p
}

// Parse compiles a pattern source string into a Query.
func Parse(src string) (*Query, error) {
	return queryParser.ParseString("<pattern>", src)
}
