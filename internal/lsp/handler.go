package lsp

import (
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"exo/internal/api"
	"exo/internal/loopir"
)

// SemanticTokenTypes is the legend advertised to the client: every
// category collectSemanticTokens assigns a pattern-language token to.
var SemanticTokenTypes = []string{
	"keyword",
	"variable",
	"number",
	"operator",
	"comment",
}

// SemanticTokenModifiers is empty; the pattern mini-language has no
// notion of declaration/readonly/etc to tag.
var SemanticTokenModifiers = []string{}

// Handler implements the LSP server methods for a scheduling session: a
// document is a sequence of pattern-language queries run one per line
// against a fixed seed procedure, and a line that fails to resolve to a
// cursor is reported as a diagnostic.
type Handler struct {
	mu      sync.RWMutex
	content map[string]string
	proc    *api.Procedure
}

// NewHandler creates a Handler rooted at a small built-in seed procedure.
func NewHandler() *Handler {
	return &Handler{
		content: make(map[string]string),
		proc:    api.New(seedProc()),
	}
}

// seedProc is the procedure every scheduling-session document is matched
// against. It is deliberately small: the handler's job is to surface
// pattern/precondition failures, not to host a real kernel library.
func seedProc() *loopir.Proc {
	const n = 8
	return loopir.NewProc("kernel", []loopir.Arg{
		loopir.A("A", loopir.Array(loopir.TypeF32, loopir.CI(n))),
		loopir.A("B", loopir.Array(loopir.TypeF32, loopir.CI(n))),
	}, nil, []loopir.Stmt{
		loopir.ForAllS("i", loopir.CI(n),
			loopir.AssignS("B", []loopir.Expr{loopir.RD("i")}, loopir.RD("A", loopir.RD("i")))),
	})
}

// Initialize advertises the server's capabilities.
func (h *Handler) Initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Println("exo-lsp Initialize called")

	return &protocol.InitializeResult{
		Capabilities: protocol.ServerCapabilities{
			TextDocumentSync: &protocol.TextDocumentSyncOptions{
				OpenClose: ptrBool(true),
				Change:    ptrSyncKind(protocol.TextDocumentSyncKindFull),
			},
			CompletionProvider: &protocol.CompletionOptions{
				ResolveProvider: ptrBool(false),
			},
			SemanticTokensProvider: &protocol.SemanticTokensOptions{
				Legend: protocol.SemanticTokensLegend{
					TokenTypes:     SemanticTokenTypes,
					TokenModifiers: SemanticTokenModifiers,
				},
				Full: ptrBool(true),
			},
		},
	}, nil
}

// Initialized is a no-op acknowledgment.
func (h *Handler) Initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	log.Println("exo-lsp initialized")
	return nil
}

// Shutdown is a no-op acknowledgment.
func (h *Handler) Shutdown(ctx *glsp.Context) error {
	log.Println("exo-lsp shutdown")
	return nil
}

// TextDocumentDidOpen records the document and publishes its diagnostics.
func (h *Handler) TextDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	h.lint(ctx, params.TextDocument.URI, params.TextDocument.Text)
	return nil
}

// TextDocumentDidChange re-lints the document against its latest text.
func (h *Handler) TextDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	if len(params.ContentChanges) == 0 {
		return nil
	}
	change, ok := params.ContentChanges[len(params.ContentChanges)-1].(protocol.TextDocumentContentChangeEventWhole)
	if !ok {
		return fmt.Errorf("exo-lsp: only whole-document sync is supported")
	}
	h.lint(ctx, params.TextDocument.URI, change.Text)
	return nil
}

// TextDocumentDidClose forgets the document.
func (h *Handler) TextDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return err
	}
	h.mu.Lock()
	delete(h.content, path)
	h.mu.Unlock()
	return nil
}

// TextDocumentCompletion returns no completions; the pattern language is
// small enough that editors get little value from it today.
func (h *Handler) TextDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	return &protocol.CompletionList{IsIncomplete: false, Items: []protocol.CompletionItem{}}, nil
}

// TextDocumentSemanticTokensFull tokenizes the stored document text.
func (h *Handler) TextDocumentSemanticTokensFull(ctx *glsp.Context, params *protocol.SemanticTokensParams) (*protocol.SemanticTokens, error) {
	path, err := uriToPath(params.TextDocument.URI)
	if err != nil {
		return nil, err
	}
	h.mu.RLock()
	text := h.content[path]
	h.mu.RUnlock()

	tokens := collectSemanticTokens(text)
	var data []uint32
	var prevLine, prevStart uint32
	for _, tok := range tokens {
		deltaLine := tok.Line - prevLine
		deltaStart := tok.StartChar
		if deltaLine == 0 {
			deltaStart = tok.StartChar - prevStart
		}
		data = append(data, deltaLine, deltaStart, tok.Length, uint32(tok.TokenType), uint32(tok.TokenModifiers))
		prevLine, prevStart = tok.Line, tok.StartChar
	}
	return &protocol.SemanticTokens{Data: data}, nil
}

// lint stores text under uri's path and publishes diagnostics for it.
func (h *Handler) lint(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	path, err := uriToPath(uri)
	if err != nil {
		log.Println("exo-lsp: bad uri:", err)
		return
	}
	h.mu.Lock()
	h.content[path] = text
	h.mu.Unlock()

	diagnostics := lintScript(h.proc, text)
	sendDiagnosticNotification(ctx, uri, diagnostics)
}

func uriToPath(rawURI protocol.DocumentUri) (string, error) {
	u, err := url.Parse(string(rawURI))
	if err != nil {
		return "", fmt.Errorf("invalid URI %s: %w", rawURI, err)
	}
	path := u.Path
	if runtime.GOOS == "windows" && strings.HasPrefix(path, "/") && len(path) > 3 && path[2] == ':' {
		path = path[1:]
	}
	return filepath.FromSlash(path), nil
}

func sendDiagnosticNotification(ctx *glsp.Context, uri protocol.DocumentUri, diagnostics []protocol.Diagnostic) {
	payload, err := json.MarshalIndent(diagnostics, "", "  ")
	if err != nil {
		log.Println("exo-lsp: failed to marshal diagnostics:", err)
		return
	}
	log.Println("exo-lsp: sending diagnostics:", string(payload))
	if ctx == nil || ctx.Notify == nil {
		return
	}
	ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, &protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnostics,
	})
}

func ptrBool(b bool) *bool { return &b }

func ptrSyncKind(k protocol.TextDocumentSyncKind) *protocol.TextDocumentSyncKind { return &k }

func ptrSeverity(s protocol.DiagnosticSeverity) *protocol.DiagnosticSeverity { return &s }

func ptrString(s string) *string { return &s }
