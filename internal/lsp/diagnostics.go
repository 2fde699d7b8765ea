package lsp

import (
	"strings"

	protocol "github.com/tliron/glsp/protocol_3_16"

	"exo/internal/api"
)

// lintScript treats each non-blank, non-comment line of text as a
// pattern-language query and resolves it against proc, turning a
// resolution failure into one diagnostic spanning the whole line. A line
// starting with "#" is a comment and is skipped.
func lintScript(proc *api.Procedure, text string) []protocol.Diagnostic {
	var diagnostics []protocol.Diagnostic

	for i, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" || strings.HasPrefix(trimmed, "#") {
			continue
		}
		if _, err := proc.Find(trimmed); err != nil {
			diagnostics = append(diagnostics, protocol.Diagnostic{
				Range: protocol.Range{
					Start: protocol.Position{Line: uint32(i), Character: 0},
					End:   protocol.Position{Line: uint32(i), Character: uint32(len(line))},
				},
				Severity: ptrSeverity(protocol.DiagnosticSeverityError),
				Source:   ptrString("exo-schedule"),
				Message:  err.Error(),
			})
		}
	}

	return diagnostics
}
