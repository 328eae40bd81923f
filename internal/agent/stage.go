package agent

import (
	"fmt"
	"strings"
	"time"
)

// Mode selects how many stages a chat call runs through.
type Mode string

const (
	ModeDefault Mode = "default"
	ModeReason  Mode = "reason"
)

func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(ModeDefault):
		return ModeDefault, nil
	case string(ModeReason):
		return ModeReason, nil
	default:
		return "", fmt.Errorf("unknown mode %q", raw)
	}
}

// PromptContext carries the four ingredients every stage prompt is built from.
type PromptContext struct {
	Query       string
	Timestamp   time.Time
	History     string
	FileContext string
}

// Stage is one role-specialized inference invocation. Instructions are fully
// rendered at build time so a stage can be inspected or replayed without the
// context that produced it.
type Stage struct {
	Role           string
	Goal           string
	Persona        string
	Instructions   string
	ExpectedOutput string
	Model          string
}

// ModelSet binds a model identifier to each pipeline role.
type ModelSet struct {
	Default     string
	Analyst     string
	Synthesizer string
	Architect   string
}

// BuildStages returns the ordered stage list for the given mode. The list is
// static per mode: one Expert Assistant stage for default, or the fixed
// analyst -> synthesizer -> architect sequence for reason.
func BuildStages(mode Mode, models ModelSet, pctx PromptContext) ([]Stage, error) {
	switch mode {
	case ModeDefault:
		return []Stage{
			{
				Role:    "Expert Assistant",
				Goal:    "Answer the user's query accurately using the conversation history and, when explicitly asked, the uploaded file content.",
				Persona: "You are a knowledgeable assistant who gives direct, well-grounded answers.",
				Instructions: renderInstructions(pctx,
					"Answer the query directly. Use the uploaded file content only if the query explicitly asks about a file or document; otherwise ignore it."),
				ExpectedOutput: "A complete, direct answer to the query.",
				Model:          models.Default,
			},
		}, nil
	case ModeReason:
		return []Stage{
			{
				Role:    "Conceptual Analyst",
				Goal:    "Break the query down into its underlying concepts and assumptions.",
				Persona: "You are an analyst who maps problems onto first principles before anyone attempts a solution.",
				Instructions: renderInstructions(pctx,
					"Produce a theoretical breakdown of the query: the concepts involved, the assumptions being made, and what a correct answer must address."),
				ExpectedOutput: "A structured conceptual breakdown of the query.",
				Model:          models.Analyst,
			},
			{
				Role:    "Practical Synthesizer",
				Goal:    "Turn the conceptual breakdown into concrete, actionable insights.",
				Persona: "You are a pragmatist who converts analysis into steps someone can act on.",
				Instructions: renderInstructions(pctx,
					"Using the conceptual breakdown from the previous stage, derive practical, actionable insights that address the query."),
				ExpectedOutput: "A set of actionable insights grounded in the analysis.",
				Model:          models.Synthesizer,
			},
			{
				Role:    "Solution Architect",
				Goal:    "Compose the final answer from the analysis and the practical insights.",
				Persona: "You are an architect who assembles partial results into one coherent, complete answer.",
				Instructions: renderInstructions(pctx,
					"Synthesize the previous stages' output into the final answer to the query. The final answer must stand on its own."),
				ExpectedOutput: "The final, self-contained answer to the query.",
				Model:          models.Architect,
			},
		}, nil
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

func renderInstructions(pctx PromptContext, task string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Current time: %s\n\n", pctx.Timestamp.Format(time.RFC1123))
	fmt.Fprintf(&b, "User query: %s\n\n", pctx.Query)
	fmt.Fprintf(&b, "Conversation history:\n%s\n\n", pctx.History)
	fmt.Fprintf(&b, "Uploaded file content:\n%s\n\n", pctx.FileContext)
	b.WriteString(task)
	return b.String()
}
