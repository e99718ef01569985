package eval

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/dettyhq/detty/internal/engine"
	"github.com/dettyhq/detty/pkg/models"
)

// Score is one judged evaluation. Criteria are on a 1-10 scale:
// 1-3 poor (incomplete, unsafe, inaccurate), 4-6 fair (basic coverage,
// gaps), 7-8 good (comprehensive, actionable, safe), 9-10 excellent.
type Score struct {
	CaseID        string   `json:"test_id"`
	Relevance     float64  `json:"relevance"`
	Safety        float64  `json:"safety"`
	Actionability float64  `json:"actionability"`
	Completeness  float64  `json:"completeness"`
	CulturalFit   float64  `json:"cultural_fit"`
	Tone          float64  `json:"tone"`
	Overall       float64  `json:"overall_score"`
	Strengths     []string `json:"strengths"`
	Improvements  []string `json:"improvements"`
	Reasoning     string   `json:"reasoning"`
}

// Judge scores one advisor response against a golden case.
type Judge interface {
	Evaluate(ctx context.Context, c models.ScenarioCase, response string) (*Score, error)
}

// judgeTemp keeps scoring consistent across runs.
const judgeTemp = 0.2

// TimeoutJudge bounds each Evaluate call with its own deadline.
func TimeoutJudge(j Judge, d time.Duration) Judge {
	if d <= 0 {
		return j
	}
	return judgeWithTimeout{inner: j, timeout: d}
}

type judgeWithTimeout struct {
	inner   Judge
	timeout time.Duration
}

func (j judgeWithTimeout) Evaluate(ctx context.Context, c models.ScenarioCase, response string) (*Score, error) {
	ctx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()
	return j.inner.Evaluate(ctx, c, response)
}

const judgeSystem = `You are an expert evaluator of AI tourism advisors for Lagos, Nigeria.

Score the advisor's response on six criteria, each 1-10:
1. relevance: does the response address the query directly?
2. safety: is safety appropriately emphasized?
3. actionability: are recommendations specific and actionable?
4. completeness: does it cover the main aspects without gaps?
5. cultural_fit: does it respect local culture and norms?
6. tone: warm, helpful, professional?

Respond with ONLY a JSON object, no prose:
{
  "test_id": "...",
  "relevance": 0,
  "safety": 0,
  "actionability": 0,
  "completeness": 0,
  "cultural_fit": 0,
  "tone": 0,
  "overall_score": 0,
  "strengths": ["..."],
  "improvements": ["..."],
  "reasoning": "..."
}`

// LLMJudge scores responses with a reasoning call.
type LLMJudge struct {
	eng engine.Engine
}

// NewLLMJudge creates a judge backed by the given engine.
func NewLLMJudge(eng engine.Engine) *LLMJudge {
	return &LLMJudge{eng: eng}
}

var _ Judge = (*LLMJudge)(nil)

// Evaluate scores one response. A retry with a corrective nudge covers
// the occasional non-JSON reply; after that the error surfaces to the
// runner, which records the case as failed.
func (j *LLMJudge) Evaluate(ctx context.Context, c models.ScenarioCase, response string) (*Score, error) {
	prompt := buildJudgePrompt(c, response)

	messages := []anthropic.MessageParam{
		anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
	}
	score, err := j.evaluateOnce(ctx, messages)
	if err == nil {
		return score, nil
	}

	messages = append(messages,
		anthropic.NewUserMessage(anthropic.NewTextBlock(
			"Your previous reply could not be parsed: "+err.Error()+
				". Reply again with only the JSON object.")))
	score, retryErr := j.evaluateOnce(ctx, messages)
	if retryErr != nil {
		return nil, fmt.Errorf("judging %s: %w", c.ID, retryErr)
	}
	return score, nil
}

func (j *LLMJudge) evaluateOnce(ctx context.Context, messages []anthropic.MessageParam) (*Score, error) {
	temp := judgeTemp
	resp, err := j.eng.Complete(ctx, engine.Request{
		System:      judgeSystem,
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return nil, err
	}
	return ParseScore(resp.Text)
}

// buildJudgePrompt renders one case and response for scoring.
func buildJudgePrompt(c models.ScenarioCase, response string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "TEST CASE:\n- ID: %s\n- Scenario: %s\n", c.ID, c.Name)
	b.WriteString("- Conversation:\n")
	for _, in := range c.Input {
		fmt.Fprintf(&b, "  User: %s\n", in)
	}
	b.WriteString("- Expected behaviors:\n")
	for _, sig := range c.ExpectedSignals {
		fmt.Fprintf(&b, "  - %s\n", sig)
	}
	fmt.Fprintf(&b, "\nADVISOR RESPONSE:\n%s\n", response)
	fmt.Fprintf(&b, "\nThe minimum passing overall score for this case is %.1f.\n", c.MinScore)
	return b.String()
}

// ParseScore extracts the score object from judge output, tolerating
// prose or code fences around the JSON.
func ParseScore(text string) (*Score, error) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start == -1 || end <= start {
		return nil, fmt.Errorf("no JSON object in judge output")
	}

	var s Score
	if err := json.Unmarshal([]byte(text[start:end+1]), &s); err != nil {
		return nil, fmt.Errorf("parsing judge output: %w", err)
	}
	if s.Overall < 1 || s.Overall > 10 {
		return nil, fmt.Errorf("judge overall score %.1f out of range", s.Overall)
	}
	return &s, nil
}
