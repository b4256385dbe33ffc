package server

import (
	"strings"
	"testing"
	"time"

	"github.com/tliron/glsp"
	protocol "github.com/tliron/glsp/protocol_3_16"

	"github.com/chazu/stackowey/vm"
)

func newTestLSP(t *testing.T, maxSteps int) *LspServer {
	t.Helper()
	s := NewLSP(newTestInterpreter(t), maxSteps)
	t.Cleanup(s.worker.Stop)
	return s
}

// notifyRecorder captures notifications sent through a glsp.Context.
func notifyRecorder() (*glsp.Context, <-chan protocol.PublishDiagnosticsParams) {
	ch := make(chan protocol.PublishDiagnosticsParams, 4)
	ctx := &glsp.Context{
		Notify: func(method string, params any) {
			if method == protocol.ServerTextDocumentPublishDiagnostics {
				ch <- params.(protocol.PublishDiagnosticsParams)
			}
		},
	}
	return ctx, ch
}

func waitDiagnostics(t *testing.T, ch <-chan protocol.PublishDiagnosticsParams) protocol.PublishDiagnosticsParams {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("no diagnostics published")
		return protocol.PublishDiagnosticsParams{}
	}
}

// ---------------------------------------------------------------------------
// Diagnostics
// ---------------------------------------------------------------------------

func TestDiagnose_CleanProgram(t *testing.T) {
	if d := diagnose("12+!9"); len(d) != 0 {
		t.Errorf("diagnostics = %+v, want none", d)
	}
}

func TestDiagnose_RaggedRow(t *testing.T) {
	d := diagnose("#!/bin/true\n123\n12345")
	if len(d) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(d))
	}
	got := d[0]
	if got.Range.Start.Line != 2 {
		t.Errorf("line = %d, want 2", got.Range.Start.Line)
	}
	if got.Range.Start.Character != 3 || got.Range.End.Character != 5 {
		t.Errorf("range = %d..%d, want 3..5", got.Range.Start.Character, got.Range.End.Character)
	}
	if *got.Severity != protocol.DiagnosticSeverityError {
		t.Errorf("severity = %d, want error", *got.Severity)
	}
	if !strings.Contains(got.Message, "too rough") {
		t.Errorf("message = %q", got.Message)
	}
}

func TestDiagnose_EmptyPlayfield(t *testing.T) {
	d := diagnose("\n\n")
	if len(d) != 1 || *d[0].Severity != protocol.DiagnosticSeverityError {
		t.Errorf("diagnostics = %+v, want one error", d)
	}
}

func TestDiagnose_NoTerminator(t *testing.T) {
	d := diagnose("1.")
	if len(d) != 1 {
		t.Fatalf("diagnostics = %d, want 1", len(d))
	}
	if *d[0].Severity != protocol.DiagnosticSeverityInformation {
		t.Errorf("severity = %d, want information", *d[0].Severity)
	}
	if d := diagnose("?."); len(d) != 0 {
		t.Errorf("? should count as a way to stop, got %+v", d)
	}
}

func TestLSP_DidOpenPublishesDiagnostics(t *testing.T) {
	s := newTestLSP(t, -1)
	ctx, ch := notifyRecorder()

	err := s.textDocumentDidOpen(ctx, &protocol.DidOpenTextDocumentParams{
		TextDocument: protocol.TextDocumentItem{URI: "file:///a.sw", Text: "12\n3"},
	})
	if err != nil {
		t.Fatal(err)
	}
	p := waitDiagnostics(t, ch)
	if p.URI != "file:///a.sw" || len(p.Diagnostics) != 1 {
		t.Errorf("published %+v", p)
	}

	err = s.textDocumentDidChange(ctx, &protocol.DidChangeTextDocumentParams{
		TextDocument: protocol.VersionedTextDocumentIdentifier{
			TextDocumentIdentifier: protocol.TextDocumentIdentifier{URI: "file:///a.sw"},
		},
		ContentChanges: []any{protocol.TextDocumentContentChangeEventWhole{Text: "12\n39"}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := waitDiagnostics(t, ch); len(p.Diagnostics) != 0 {
		t.Errorf("diagnostics after fix = %+v, want none", p.Diagnostics)
	}
	if text, _ := s.document("file:///a.sw"); text != "12\n39" {
		t.Errorf("stored text = %q", text)
	}

	err = s.textDocumentDidClose(ctx, &protocol.DidCloseTextDocumentParams{
		TextDocument: protocol.TextDocumentIdentifier{URI: "file:///a.sw"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if p := waitDiagnostics(t, ch); len(p.Diagnostics) != 0 {
		t.Errorf("close should clear diagnostics, got %+v", p.Diagnostics)
	}
	if _, ok := s.document("file:///a.sw"); ok {
		t.Error("document should be removed after close")
	}
}

// ---------------------------------------------------------------------------
// Hover and completion
// ---------------------------------------------------------------------------

func hoverText(h *protocol.Hover) string {
	if h == nil {
		return ""
	}
	return h.Contents.(protocol.MarkupContent).Value
}

func TestHover(t *testing.T) {
	tests := []struct {
		name string
		text string
		pos  protocol.Position
		want string
	}{
		{"opcode", "12+!9", protocol.Position{Line: 0, Character: 2}, "**ADD** at (0,2)"},
		{"variable effect", "?9", protocol.Position{Line: 0, Character: 0}, "pushes varies"},
		{"directive", "#!/bin/true\n 9", protocol.Position{Line: 0, Character: 3}, "directive line"},
		{"row below directive", "#!/bin/true\n 9", protocol.Position{Line: 1, Character: 1}, "**HALT** at (0,1)"},
		{"digit literal", "59", protocol.Position{Line: 0, Character: 0}, "Octal digit literal"},
		{"unknown character", "x9", protocol.Position{Line: 0, Character: 0}, "**NOP**"},
		{"surrogate pair", "😀+", protocol.Position{Line: 0, Character: 2}, "**ADD** at (0,1)"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := hoverText(hover(tc.text, tc.pos))
			if !strings.Contains(got, tc.want) {
				t.Errorf("hover = %q, want it to contain %q", got, tc.want)
			}
		})
	}
}

func TestHover_Nothing(t *testing.T) {
	for _, pos := range []protocol.Position{
		{Line: 0, Character: 1},  // space
		{Line: 0, Character: 10}, // past the end
		{Line: 5, Character: 0},  // past the last line
	} {
		if h := hover("9 9", pos); h != nil {
			t.Errorf("hover at %+v = %q, want nil", pos, hoverText(h))
		}
	}
}

func TestCompletionItems(t *testing.T) {
	items := completionItems()
	if len(items) != len(vm.AllOpcodes()) {
		t.Fatalf("items = %d, want %d", len(items), len(vm.AllOpcodes()))
	}
	found := false
	for _, item := range items {
		if item.Label == "%" {
			found = true
			if *item.Detail != "JUMP" {
				t.Errorf("%% detail = %q, want JUMP", *item.Detail)
			}
		}
	}
	if !found {
		t.Error("completion is missing %")
	}
}

func TestUTF16Conversions(t *testing.T) {
	line := "a😀b"
	if got := runeIndex(line, 3); got != 2 {
		t.Errorf("runeIndex = %d, want 2", got)
	}
	if got := utf16Offset(line, 2); got != 3 {
		t.Errorf("utf16Offset = %d, want 3", got)
	}
	if got := utf16Offset(line, 10); got != 4 {
		t.Errorf("utf16Offset past end = %d, want 4", got)
	}
}

func TestBoolPtr(t *testing.T) {
	if p := boolPtr(true); p == nil || !*p {
		t.Error("boolPtr(true) should point at true")
	}
}

// ---------------------------------------------------------------------------
// workspace/executeCommand
// ---------------------------------------------------------------------------

func execute(t *testing.T, s *LspServer, command string, args ...any) (any, error) {
	t.Helper()
	return s.workspaceExecuteCommand(&glsp.Context{}, &protocol.ExecuteCommandParams{
		Command:   command,
		Arguments: args,
	})
}

func TestExecuteRun(t *testing.T) {
	s := newTestLSP(t, -1)
	s.setDocument("file:///a.sw", "12+!9")

	result, err := execute(t, s, CommandRun, "file:///a.sw")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := result.(RunResult)
	if r.Output != "\x03" || r.Steps != 5 || !r.Halted {
		t.Errorf("result = %+v", r)
	}
	if len(r.Stack) != 1 || r.Stack[0] != vm.Seed {
		t.Errorf("stack = %v, want [%d]", r.Stack, vm.Seed)
	}
	if r.Error != "" {
		t.Errorf("unexpected error %q", r.Error)
	}
}

func TestExecuteRunWithInput(t *testing.T) {
	s := newTestLSP(t, -1)
	s.setDocument("file:///a.sw", "#!/bin/true\n?.!9")

	result, err := execute(t, s, CommandRun, "file:///a.sw", "A")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if r := result.(RunResult); r.Output != "A" {
		t.Errorf("output = %q, want %q", r.Output, "A")
	}
}

func TestExecuteRunStepLimit(t *testing.T) {
	s := newTestLSP(t, 50)
	s.setDocument("file:///loop.sw", "1.")

	result, err := execute(t, s, CommandRun, "file:///loop.sw")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := result.(RunResult)
	if r.Steps != 50 || r.Halted {
		t.Errorf("steps = %d, halted = %t, want 50, false", r.Steps, r.Halted)
	}
}

func TestExecuteRunReportsEngineError(t *testing.T) {
	s := newTestLSP(t, -1)
	s.setDocument("file:///empty.sw", "\n\n")

	result, err := execute(t, s, CommandRun, "file:///empty.sw")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	r := result.(RunResult)
	if r.ErrorCode != vm.ErrSyntax.Code() || r.Error == "" {
		t.Errorf("result = %+v, want E_SYNTAX", r)
	}
}

func TestExecuteDisassemble(t *testing.T) {
	s := newTestLSP(t, -1)
	s.setDocument("file:///a.sw", "#!/bin/true\n12\n9")

	result, err := execute(t, s, CommandDisassemble, "file:///a.sw")
	if err != nil {
		t.Fatalf("disassemble: %v", err)
	}
	listing := result.(string)
	if !strings.Contains(listing, "2x2") || !strings.Contains(listing, "HALT") {
		t.Errorf("listing = %q", listing)
	}
}

func TestExecuteErrors(t *testing.T) {
	s := newTestLSP(t, -1)
	s.setDocument("file:///a.sw", "9")

	if _, err := execute(t, s, CommandRun); err == nil {
		t.Error("expected error without arguments")
	}
	if _, err := execute(t, s, CommandRun, 42); err == nil {
		t.Error("expected error for non-string URI")
	}
	if _, err := execute(t, s, CommandRun, "file:///missing.sw"); err == nil {
		t.Error("expected error for a document that is not open")
	}
	if _, err := execute(t, s, "stackowey.fly", "file:///a.sw"); err == nil {
		t.Error("expected error for an unknown command")
	}
}
