package agent

import (
	"context"
	"fmt"
	"strings"

	"ziabot/internal/ai"
)

// Completer is the inference collaborator a pipeline runs against. The
// production implementation is ai.OpenAICompatibleClient; tests substitute
// a stub to verify stage order without network calls.
type Completer interface {
	Complete(ctx context.Context, cfg ai.ChatConfig, messages []ai.ChatMessage) (string, error)
}

type StageResult struct {
	Role   string `json:"role"`
	Model  string `json:"model"`
	Output string `json:"output"`
}

type Result struct {
	Reply  string
	Stages []StageResult
}

// Runner executes a stage list strictly sequentially, feeding each stage's
// output into the next stage's prompt. The last stage's output is the reply.
type Runner struct {
	completer Completer
	baseURL   string
	apiKey    string
}

func NewRunner(completer Completer, baseURL, apiKey string) *Runner {
	return &Runner{
		completer: completer,
		baseURL:   baseURL,
		apiKey:    apiKey,
	}
}

func (r *Runner) Run(ctx context.Context, stages []Stage) (*Result, error) {
	if len(stages) == 0 {
		return nil, fmt.Errorf("empty stage list")
	}

	result := &Result{Stages: make([]StageResult, 0, len(stages))}
	for i, stage := range stages {
		messages := []ai.ChatMessage{
			{Role: "system", Content: stage.Persona + " Your goal: " + stage.Goal},
			{Role: "user", Content: stagePrompt(stage, result.Stages)},
		}

		output, err := r.completer.Complete(ctx, ai.ChatConfig{
			BaseURL: r.baseURL,
			APIKey:  r.apiKey,
			Model:   stage.Model,
		}, messages)
		if err != nil {
			return nil, fmt.Errorf("stage %d (%s) failed: %w", i+1, stage.Role, err)
		}

		result.Stages = append(result.Stages, StageResult{
			Role:   stage.Role,
			Model:  stage.Model,
			Output: output,
		})
	}

	result.Reply = strings.TrimSpace(result.Stages[len(result.Stages)-1].Output)
	return result, nil
}

func stagePrompt(stage Stage, prior []StageResult) string {
	var b strings.Builder
	b.WriteString(stage.Instructions)
	for _, p := range prior {
		fmt.Fprintf(&b, "\n\nOutput from %s:\n%s", p.Role, p.Output)
	}
	fmt.Fprintf(&b, "\n\nExpected output: %s", stage.ExpectedOutput)
	return b.String()
}
