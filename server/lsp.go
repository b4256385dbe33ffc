package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"
	"unicode/utf16"

	"github.com/tliron/commonlog"
	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"
	glspserver "github.com/tliron/glsp/server"

	"github.com/chazu/stackowey/vm"

	_ "github.com/tliron/commonlog/simple"
)

const lspName = "stackowey-lsp"

// Commands accepted by workspace/executeCommand.
const (
	CommandRun         = "stackowey.run"
	CommandDisassemble = "stackowey.disassemble"
)

const (
	defaultRunSteps = 100000
	runTimeout      = 5 * time.Second // per stackowey.run, on top of the step limit
)

var log = commonlog.GetLogger("stackowey.lsp")

// LspServer bridges LSP editor features to a Stackowey interpreter via
// VMWorker.
type LspServer struct {
	worker   *VMWorker
	maxSteps int

	mu   sync.Mutex
	docs map[string]string // URI → full document content

	handler protocol.Handler
	server  *glspserver.Server
	version string
}

// RunResult is the reply to a stackowey.run command.
type RunResult struct {
	Output    string   `json:"output"`
	Steps     int      `json:"steps"`
	Halted    bool     `json:"halted"`
	Stack     []uint64 `json:"stack"`
	Error     string   `json:"error,omitempty"`
	ErrorCode int      `json:"errorCode,omitempty"`
}

// NewLSP creates a new LSP server wrapping interp. Runs requested by the
// editor stop after maxSteps steps; a negative value falls back to the
// default limit.
func NewLSP(interp *vm.Interpreter, maxSteps int) *LspServer {
	if maxSteps < 0 {
		maxSteps = defaultRunSteps
	}
	s := &LspServer{
		worker:   NewVMWorker(interp),
		maxSteps: maxSteps,
		docs:     make(map[string]string),
		version:  "0.1.0",
	}

	s.handler = protocol.Handler{
		Initialize:  s.initialize,
		Initialized: s.initialized,
		Shutdown:    s.shutdown,
		SetTrace:    s.setTrace,

		TextDocumentDidOpen:   s.textDocumentDidOpen,
		TextDocumentDidChange: s.textDocumentDidChange,
		TextDocumentDidClose:  s.textDocumentDidClose,

		TextDocumentCompletion: s.textDocumentCompletion,
		TextDocumentHover:      s.textDocumentHover,

		WorkspaceExecuteCommand: s.workspaceExecuteCommand,
	}

	s.server = glspserver.NewServer(&s.handler, lspName, false)

	return s
}

// Run starts the LSP server on stdio. Blocks until the client disconnects.
func (s *LspServer) Run() error {
	return s.server.RunStdio()
}

// --- LSP lifecycle handlers ---

func (s *LspServer) initialize(ctx *glsp.Context, params *protocol.InitializeParams) (any, error) {
	log.Info("Stackowey LSP initializing")

	capabilities := s.handler.CreateServerCapabilities()

	syncKind := protocol.TextDocumentSyncKindFull
	capabilities.TextDocumentSync = &protocol.TextDocumentSyncOptions{
		OpenClose: boolPtr(true),
		Change:    &syncKind,
	}

	capabilities.CompletionProvider = &protocol.CompletionOptions{}
	capabilities.HoverProvider = true
	capabilities.ExecuteCommandProvider = &protocol.ExecuteCommandOptions{
		Commands: []string{CommandRun, CommandDisassemble},
	}

	return protocol.InitializeResult{
		Capabilities: capabilities,
		ServerInfo: &protocol.InitializeResultServerInfo{
			Name:    lspName,
			Version: &s.version,
		},
	}, nil
}

func (s *LspServer) initialized(ctx *glsp.Context, params *protocol.InitializedParams) error {
	return nil
}

func (s *LspServer) shutdown(ctx *glsp.Context) error {
	s.worker.Stop()
	return nil
}

func (s *LspServer) setTrace(ctx *glsp.Context, params *protocol.SetTraceParams) error {
	return nil
}

// --- Document synchronization ---

func (s *LspServer) textDocumentDidOpen(ctx *glsp.Context, params *protocol.DidOpenTextDocumentParams) error {
	uri := params.TextDocument.URI
	text := params.TextDocument.Text

	s.setDocument(uri, text)
	s.publishDiagnostics(ctx, uri, text)
	return nil
}

func (s *LspServer) textDocumentDidChange(ctx *glsp.Context, params *protocol.DidChangeTextDocumentParams) error {
	uri := params.TextDocument.URI

	// With Full sync, the last change event contains the full text
	if len(params.ContentChanges) > 0 {
		last := params.ContentChanges[len(params.ContentChanges)-1]
		if whole, ok := last.(protocol.TextDocumentContentChangeEventWhole); ok {
			s.setDocument(uri, whole.Text)
			s.publishDiagnostics(ctx, uri, whole.Text)
		}
	}
	return nil
}

func (s *LspServer) textDocumentDidClose(ctx *glsp.Context, params *protocol.DidCloseTextDocumentParams) error {
	uri := params.TextDocument.URI

	s.mu.Lock()
	delete(s.docs, string(uri))
	s.mu.Unlock()

	// Clear diagnostics for the closed document
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: []protocol.Diagnostic{},
	})
	return nil
}

func (s *LspServer) setDocument(uri protocol.DocumentUri, text string) {
	s.mu.Lock()
	s.docs[string(uri)] = text
	s.mu.Unlock()
}

func (s *LspServer) document(uri protocol.DocumentUri) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	text, ok := s.docs[string(uri)]
	return text, ok
}

// --- Language features ---

func (s *LspServer) textDocumentCompletion(ctx *glsp.Context, params *protocol.CompletionParams) (any, error) {
	if _, ok := s.document(params.TextDocument.URI); !ok {
		return nil, nil
	}
	return completionItems(), nil
}

func (s *LspServer) textDocumentHover(ctx *glsp.Context, params *protocol.HoverParams) (*protocol.Hover, error) {
	text, ok := s.document(params.TextDocument.URI)
	if !ok {
		return nil, nil
	}
	return hover(text, params.Position), nil
}

func (s *LspServer) workspaceExecuteCommand(ctx *glsp.Context, params *protocol.ExecuteCommandParams) (any, error) {
	if len(params.Arguments) == 0 {
		return nil, fmt.Errorf("%s: missing document URI argument", params.Command)
	}
	uri, ok := params.Arguments[0].(string)
	if !ok {
		return nil, fmt.Errorf("%s: document URI must be a string", params.Command)
	}
	text, ok := s.document(protocol.DocumentUri(uri))
	if !ok {
		return nil, fmt.Errorf("%s: document %s is not open", params.Command, uri)
	}

	switch params.Command {
	case CommandRun:
		var input string
		if len(params.Arguments) > 1 {
			input, _ = params.Arguments[1].(string)
		}
		log.Infof("running %s", uri)
		return s.worker.Do(func(v *vm.Interpreter) any {
			return s.run(v, text, input)
		})
	case CommandDisassemble:
		_, rest, _ := vm.SplitDirective(text)
		return vm.ParseLenient(rest).Disassemble(), nil
	default:
		return nil, fmt.Errorf("unknown command %q", params.Command)
	}
}

// --- Interpreter-backed logic (called on worker goroutine) ---

// run loads text leniently into v, queues input and runs it under the step
// limit.
func (s *LspServer) run(v *vm.Interpreter, text, input string) RunResult {
	directive, rest, ok := vm.SplitDirective(text)
	if !ok {
		directive = vm.DefaultDirective
	}
	if err := v.SetDirective(directive); err != nil {
		return RunResult{Error: err.Error(), ErrorCode: vm.KindOf(err).Code()}
	}
	v.SetFriendlySourceCode(rest)
	if input != "" {
		v.QueueInput(input)
	}

	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	steps, err := v.RunContext(ctx, s.maxSteps)

	result := RunResult{
		Output: v.TakeOutput(),
		Steps:  steps,
		Halted: v.Halted(),
		Stack:  v.Stack(),
	}
	if err != nil {
		log.Warningf("run failed after %d steps: %s", steps, err)
		result.Error = err.Error()
		result.ErrorCode = vm.KindOf(err).Code()
	}
	return result
}

// --- Diagnostics ---

func (s *LspServer) publishDiagnostics(ctx *glsp.Context, uri protocol.DocumentUri, text string) {
	go ctx.Notify(protocol.ServerTextDocumentPublishDiagnostics, protocol.PublishDiagnosticsParams{
		URI:         uri,
		Diagnostics: diagnose(text),
	})
}

// diagnose checks text the way the strict loader does and reports problems
// against document lines.
func diagnose(text string) []protocol.Diagnostic {
	diagnostics := []protocol.Diagnostic{}

	_, rest, hasDirective := vm.SplitDirective(text)
	offset := 0
	if hasDirective {
		offset = 1
	}
	lines := strings.Split(text, "\n")

	p, err := vm.ParseStrict(rest)
	if err != nil {
		var verr *vm.Error
		if !errors.As(err, &verr) || verr.Row < 0 {
			return append(diagnostics, newDiagnostic(protocol.DiagnosticSeverityError, 0, 0, 0, err.Error()))
		}
		line := verr.Row + offset
		var lineText string
		if line < len(lines) {
			lineText = lines[line]
		}
		start := utf16Offset(lineText, verr.Col)
		end := utf16Offset(lineText, len([]rune(lineText)))
		return append(diagnostics, newDiagnostic(protocol.DiagnosticSeverityError, line, start, end, verr.Msg))
	}

	if p.Empty() {
		return append(diagnostics, newDiagnostic(protocol.DiagnosticSeverityError, offset, 0, 0,
			"the playfield has no cells"))
	}
	if !hasTerminator(p) {
		diagnostics = append(diagnostics, newDiagnostic(protocol.DiagnosticSeverityInformation, offset, 0, 0,
			"no 9 or ? in the playfield; the program only stops at the step limit"))
	}
	return diagnostics
}

func hasTerminator(p *vm.Playfield) bool {
	for _, row := range p.Rows() {
		if strings.ContainsAny(row, string([]rune{rune(vm.OpHalt), rune(vm.OpIn)})) {
			return true
		}
	}
	return false
}

func newDiagnostic(severity protocol.DiagnosticSeverity, line int, start, end uint32, msg string) protocol.Diagnostic {
	source := lspName
	return protocol.Diagnostic{
		Range: protocol.Range{
			Start: protocol.Position{Line: uint32(line), Character: start},
			End:   protocol.Position{Line: uint32(line), Character: end},
		},
		Severity: &severity,
		Source:   &source,
		Message:  msg,
	}
}

// --- Hover and completion ---

func hover(text string, pos protocol.Position) *protocol.Hover {
	lines := strings.Split(text, "\n")
	if int(pos.Line) >= len(lines) {
		return nil
	}
	line := lines[pos.Line]

	_, _, hasDirective := vm.SplitDirective(text)
	if hasDirective && pos.Line == 0 {
		return markdownHover("**directive line**\n\nNot part of the playfield.")
	}

	runes := []rune(line)
	col := runeIndex(line, pos.Character)
	if col >= len(runes) || runes[col] == ' ' {
		return nil
	}

	row := int(pos.Line)
	if hasDirective {
		row--
	}
	op := vm.Opcode(runes[col])
	if !op.Known() {
		return markdownHover(fmt.Sprintf("`%c` **NOP** at (%d,%d)\n\nDoes nothing.", runes[col], row, col))
	}
	info := op.Info()
	doc := info.Doc
	if op.IsDigit() {
		doc += "\n\nOctal digit literal. `8` and `9` are commands."
	}
	return markdownHover(fmt.Sprintf("`%c` **%s** at (%d,%d)\n\n%s\n\n%s",
		runes[col], info.Name, row, col, doc, stackEffect(info)))
}

func stackEffect(info vm.OpcodeInfo) string {
	count := func(n int) string {
		if n < 0 {
			return "varies"
		}
		return fmt.Sprint(n)
	}
	return fmt.Sprintf("pops %s, pushes %s", count(info.Pops), count(info.Pushes))
}

func markdownHover(value string) *protocol.Hover {
	return &protocol.Hover{
		Contents: protocol.MarkupContent{
			Kind:  protocol.MarkupKindMarkdown,
			Value: value,
		},
	}
}

func completionItems() []protocol.CompletionItem {
	ops := vm.AllOpcodes()
	items := make([]protocol.CompletionItem, 0, len(ops))
	kind := protocol.CompletionItemKindOperator
	for _, op := range ops {
		info := op.Info()
		label := string(rune(op))
		detail := info.Name
		items = append(items, protocol.CompletionItem{
			Label:         label,
			Kind:          &kind,
			Detail:        &detail,
			Documentation: info.Doc,
			InsertText:    &label,
		})
	}
	return items
}

// --- Text position helpers ---

// runeIndex converts a UTF-16 character offset into a rune index within line.
func runeIndex(line string, char uint32) int {
	var units uint32
	i := 0
	for _, r := range line {
		if units >= char {
			return i
		}
		units += uint32(utf16.RuneLen(r))
		i++
	}
	return i
}

// utf16Offset converts a rune index within line into a UTF-16 offset.
func utf16Offset(line string, col int) uint32 {
	var units uint32
	i := 0
	for _, r := range line {
		if i >= col {
			break
		}
		units += uint32(utf16.RuneLen(r))
		i++
	}
	return units
}

func boolPtr(b bool) *bool {
	return &b
}
