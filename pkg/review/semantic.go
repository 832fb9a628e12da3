package review

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/maestrohq/maestro/pkg/llm"
)

// semanticSystem instructs the model to act as a reviewer and emit only
// the JSON score object.
const semanticSystem = `You are a rigorous marketing quality reviewer.
Score the submitted deliverable on each dimension from 0 (unusable) to 10
(exceptional). Respond with a single JSON object and nothing else, mapping
each dimension name to {"score": <number>, "rationale": "<one sentence>"}.
Dimensions: completeness, clarity, actionability, data_driven,
technical_accuracy, brand_alignment, creativity.`

// semanticDimension is one parsed entry of the model's score object.
type semanticDimension struct {
	Score     float64 `json:"score"`
	Rationale string  `json:"rationale"`
}

// scoreSemantic asks the model to score the content. The JSON is parsed
// leniently: the first {...} span in the response is used, and missing
// dimensions default to the neutral score. Any failure returns an error
// so the caller can fall back to structural scoring.
func scoreSemantic(ctx context.Context, client llm.Client, model string, content string, maxTokens int) (Scores, map[string]string, error) {
	resp, err := client.CreateMessage(ctx, &llm.Request{
		Model:  model,
		System: semanticSystem,
		Messages: []llm.Message{
			{Role: llm.RoleUser, Content: "Deliverable to review:\n\n" + content},
		},
		MaxTokens: maxTokens,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("semantic scoring call: %w", err)
	}

	raw := extractJSONObject(resp.Content)
	if raw == "" {
		return nil, nil, fmt.Errorf("semantic scoring: no JSON object in response")
	}

	var parsed map[string]semanticDimension
	if err := json.Unmarshal([]byte(raw), &parsed); err != nil {
		return nil, nil, fmt.Errorf("semantic scoring: parsing scores: %w", err)
	}

	scores := Scores{}
	rationales := make(map[string]string)
	for _, dim := range Dimensions {
		if entry, ok := parsed[dim]; ok {
			scores[dim] = clamp(entry.Score)
			if entry.Rationale != "" {
				rationales[dim] = entry.Rationale
			}
		} else {
			scores[dim] = neutralScore
		}
	}
	return scores, rationales, nil
}

// extractJSONObject returns the first balanced {...} span in s, or "".
// Models often wrap the object in prose or a code fence despite
// instructions.
func extractJSONObject(s string) string {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return ""
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1]
			}
		}
	}
	return ""
}
