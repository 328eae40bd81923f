package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"ziabot/internal/ai"
)

type stubCompleter struct {
	outputs []string
	err     error
	failAt  int

	calls []stubCall
}

type stubCall struct {
	model    string
	messages []ai.ChatMessage
}

func (s *stubCompleter) Complete(_ context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error) {
	s.calls = append(s.calls, stubCall{model: cfg.Model, messages: messages})
	if s.err != nil && len(s.calls) == s.failAt {
		return "", s.err
	}
	idx := len(s.calls) - 1
	if idx < len(s.outputs) {
		return s.outputs[idx], nil
	}
	return fmt.Sprintf("output %d", idx+1), nil
}

func testPromptContext() PromptContext {
	return PromptContext{
		Query:       "what is 2+2",
		Timestamp:   time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
		History:     "no previous conversation",
		FileContext: "no relevant file content",
	}
}

func testModels() ModelSet {
	return ModelSet{
		Default:     "model-default",
		Analyst:     "model-analyst",
		Synthesizer: "model-synth",
		Architect:   "model-arch",
	}
}

func TestParseMode(t *testing.T) {
	cases := []struct {
		raw     string
		want    Mode
		wantErr bool
	}{
		{"", ModeDefault, false},
		{"default", ModeDefault, false},
		{"reason", ModeReason, false},
		{"Reason", ModeReason, false},
		{"turbo", "", true},
	}
	for _, tc := range cases {
		got, err := ParseMode(tc.raw)
		if tc.wantErr {
			if err == nil {
				t.Fatalf("ParseMode(%q): expected error", tc.raw)
			}
			continue
		}
		if err != nil {
			t.Fatalf("ParseMode(%q): %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("ParseMode(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestBuildStagesDefaultMode(t *testing.T) {
	stages, err := BuildStages(ModeDefault, testModels(), testPromptContext())
	if err != nil {
		t.Fatalf("build stages: %v", err)
	}
	if len(stages) != 1 {
		t.Fatalf("expected 1 stage, got %d", len(stages))
	}
	if stages[0].Role != "Expert Assistant" {
		t.Fatalf("unexpected role %q", stages[0].Role)
	}
	if stages[0].Model != "model-default" {
		t.Fatalf("unexpected model %q", stages[0].Model)
	}
	for _, want := range []string{"what is 2+2", "no previous conversation", "no relevant file content"} {
		if !strings.Contains(stages[0].Instructions, want) {
			t.Fatalf("instructions missing %q:\n%s", want, stages[0].Instructions)
		}
	}
}

func TestBuildStagesReasonModeOrder(t *testing.T) {
	stages, err := BuildStages(ModeReason, testModels(), testPromptContext())
	if err != nil {
		t.Fatalf("build stages: %v", err)
	}
	wantRoles := []string{"Conceptual Analyst", "Practical Synthesizer", "Solution Architect"}
	if len(stages) != len(wantRoles) {
		t.Fatalf("expected %d stages, got %d", len(wantRoles), len(stages))
	}
	wantModels := []string{"model-analyst", "model-synth", "model-arch"}
	for i := range stages {
		if stages[i].Role != wantRoles[i] {
			t.Fatalf("stage %d role = %q, want %q", i, stages[i].Role, wantRoles[i])
		}
		if stages[i].Model != wantModels[i] {
			t.Fatalf("stage %d model = %q, want %q", i, stages[i].Model, wantModels[i])
		}
		if stages[i].Goal == "" || stages[i].Persona == "" || stages[i].ExpectedOutput == "" {
			t.Fatalf("stage %d has an empty descriptor field", i)
		}
	}
}

func TestRunnerDefaultModeSingleInvocation(t *testing.T) {
	stub := &stubCompleter{outputs: []string{"  four  "}}
	runner := NewRunner(stub, "https://llm.example", "key")

	stages, err := BuildStages(ModeDefault, testModels(), testPromptContext())
	if err != nil {
		t.Fatalf("build stages: %v", err)
	}
	result, err := runner.Run(context.Background(), stages)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stub.calls) != 1 {
		t.Fatalf("expected exactly 1 inference call, got %d", len(stub.calls))
	}
	if result.Reply != "four" {
		t.Fatalf("reply = %q, want trimmed stage output", result.Reply)
	}
}

func TestRunnerReasonModeThreeCallsInOrder(t *testing.T) {
	stub := &stubCompleter{outputs: []string{"analysis", "insights", "final answer"}}
	runner := NewRunner(stub, "https://llm.example", "key")

	stages, err := BuildStages(ModeReason, testModels(), testPromptContext())
	if err != nil {
		t.Fatalf("build stages: %v", err)
	}
	result, err := runner.Run(context.Background(), stages)
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(stub.calls) != 3 {
		t.Fatalf("expected exactly 3 inference calls, got %d", len(stub.calls))
	}
	wantModels := []string{"model-analyst", "model-synth", "model-arch"}
	for i, call := range stub.calls {
		if call.model != wantModels[i] {
			t.Fatalf("call %d used model %q, want %q", i, call.model, wantModels[i])
		}
	}
	if result.Reply != "final answer" {
		t.Fatalf("reply = %q, want final stage output", result.Reply)
	}
}

func TestRunnerFeedsPriorOutputsForward(t *testing.T) {
	stub := &stubCompleter{outputs: []string{"analysis text", "insight text", "done"}}
	runner := NewRunner(stub, "https://llm.example", "key")

	stages, _ := BuildStages(ModeReason, testModels(), testPromptContext())
	if _, err := runner.Run(context.Background(), stages); err != nil {
		t.Fatalf("run: %v", err)
	}

	secondPrompt := stub.calls[1].messages[1].Content
	if !strings.Contains(secondPrompt, "analysis text") {
		t.Fatalf("second stage prompt missing first stage output:\n%s", secondPrompt)
	}
	thirdPrompt := stub.calls[2].messages[1].Content
	if !strings.Contains(thirdPrompt, "analysis text") || !strings.Contains(thirdPrompt, "insight text") {
		t.Fatalf("third stage prompt missing prior outputs:\n%s", thirdPrompt)
	}
}

func TestRunnerStageFailureAborts(t *testing.T) {
	wantErr := errors.New("rate limited")
	stub := &stubCompleter{outputs: []string{"analysis"}, err: wantErr, failAt: 2}
	runner := NewRunner(stub, "https://llm.example", "key")

	stages, _ := BuildStages(ModeReason, testModels(), testPromptContext())
	_, err := runner.Run(context.Background(), stages)
	if err == nil {
		t.Fatal("expected pipeline failure")
	}
	if !errors.Is(err, wantErr) {
		t.Fatalf("error does not wrap stage error: %v", err)
	}
	if len(stub.calls) != 2 {
		t.Fatalf("pipeline continued after failed stage: %d calls", len(stub.calls))
	}
	if !strings.Contains(err.Error(), "Practical Synthesizer") {
		t.Fatalf("error does not name failing stage: %v", err)
	}
}
