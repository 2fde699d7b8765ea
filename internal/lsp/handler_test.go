package lsp_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"exo/internal/lsp"
)

func TestTextDocumentSemanticTokensFull(t *testing.T) {
	handler := lsp.NewHandler()
	uri := protocol.DocumentUri("file:///session.exosched")

	err := handler.TextDocumentDidOpen(&glsp.Context{}, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:  uri,
			Text: "for i in _: _\n# a comment\nx = _\n",
		},
	})
	require.NoError(t, err)

	tokens, err := handler.TextDocumentSemanticTokensFull(&glsp.Context{}, &protocol.SemanticTokensParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: uri},
	})
	require.NoError(t, err)
	require.NotNil(t, tokens)
	require.NotEmpty(t, tokens.Data)

	decoded, err := decodeSemanticTokens(tokens.Data)
	require.NoError(t, err)

	byType := map[string]int{}
	for _, tok := range decoded {
		byType[tok.Type]++
	}
	require.Greater(t, byType["keyword"], 0)
	require.Greater(t, byType["comment"], 0)
	require.Greater(t, byType["variable"], 0)
}

func TestTextDocumentDidOpenReportsUnmatchedPattern(t *testing.T) {
	handler := lsp.NewHandler()
	var published []protocol.Diagnostic
	ctx := &glsp.Context{
		Notify: func(method string, params any) {
			if p, ok := params.(*protocol.PublishDiagnosticsParams); ok {
				published = p.Diagnostics
			}
		},
	}

	err := handler.TextDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{
			URI:  protocol.DocumentUri("file:///bad.exosched"),
			Text: "for nonexistent in _: _\n",
		},
	})
	require.NoError(t, err)
	require.NotEmpty(t, published)
}

type decodedToken struct {
	Line, Char, Length uint32
	Type               string
}

func decodeSemanticTokens(raw []uint32) ([]decodedToken, error) {
	if len(raw)%5 != 0 {
		return nil, fmt.Errorf("raw token data length %d is not a multiple of 5", len(raw))
	}
	var decoded []decodedToken
	var line, char uint32
	for i := 0; i < len(raw); i += 5 {
		deltaLine, deltaStart, length, typeIdx := raw[i], raw[i+1], raw[i+2], raw[i+3]
		if deltaLine == 0 {
			char += deltaStart
		} else {
			line += deltaLine
			char = deltaStart
		}
		decoded = append(decoded, decodedToken{Line: line, Char: char, Length: length, Type: lsp.SemanticTokenTypes[typeIdx]})
	}
	return decoded, nil
}
