package services

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pushp314/shiplog-backend/internal/models"
	"github.com/pushp314/shiplog-backend/pkg/jsonrepair"
	"github.com/pushp314/shiplog-backend/pkg/logger"
)

// TokenUsage reports prompt/completion token counts for one model call
type TokenUsage struct {
	Prompt     int
	Completion int
}

// ChangelogAI is the language-model collaborator consumed by the generation
// pipeline: one call categorizes commits, one synthesizes the changelog.
type ChangelogAI interface {
	AnalyzeCommits(ctx context.Context, commits []Commit) ([]models.CommitAnalysis, TokenUsage, error)
	SynthesizeChangelog(ctx context.Context, analyses []models.CommitAnalysis, opts models.GenerationOptions, repoName string) (*models.GeneratedChangelog, TokenUsage, error)
}

var ErrEmptySynthesis = errors.New("model returned a changelog with no sections")

// LLMClient calls an OpenAI-compatible chat completions endpoint
type LLMClient struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
}

func NewLLMClient(baseURL, apiKey, model string) *LLMClient {
	return &LLMClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		http:    &http.Client{Timeout: 120 * time.Second},
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *LLMClient) complete(ctx context.Context, system, user string) (string, TokenUsage, error) {
	reqBody := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
		Temperature: 0.2,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", TokenUsage{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", TokenUsage{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", TokenUsage{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", TokenUsage{}, fmt.Errorf("llm api failed with status: %d", resp.StatusCode)
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", TokenUsage{}, err
	}
	if len(result.Choices) == 0 {
		return "", TokenUsage{}, errors.New("llm api returned no choices")
	}

	logger.Info().
		Str("model", c.model).
		Dur("latency", time.Since(start)).
		Int("completion_tokens", result.Usage.CompletionTokens).
		Msg("LLM call completed")

	usage := TokenUsage{
		Prompt:     result.Usage.PromptTokens,
		Completion: result.Usage.CompletionTokens,
	}
	return result.Choices[0].Message.Content, usage, nil
}

// AnalyzeCommits asks the model to categorize each commit and normalizes the
// result so every element carries the full set of fields.
func (c *LLMClient) AnalyzeCommits(ctx context.Context, commits []Commit) ([]models.CommitAnalysis, TokenUsage, error) {
	var b strings.Builder
	for _, commit := range commits {
		fmt.Fprintf(&b, "- sha: %s | author: %s | message: %s\n", commit.SHA, commit.Author, firstLine(commit.Message))
	}

	system := "You are a release engineer categorizing git commits. Respond with a JSON array only, no prose and no markdown."
	user := fmt.Sprintf(`Categorize each of the following commits.

Commits:
%s
Respond with a JSON array where each element has exactly this shape:
[{"sha": "abc1234", "type": "feature|fix|breaking|improvement|docs|refactor|security|chore", "description": "one sentence, user-readable", "impact": "major|minor|patch", "breakingChange": false, "affectedComponents": ["api"], "userFacing": true, "confidence": 0.9}]

Return one element per commit, in the same order.`, b.String())

	raw, usage, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, usage, err
	}

	var elements []json.RawMessage
	if err := jsonrepair.Decode(raw, &elements); err != nil {
		return nil, usage, fmt.Errorf("parsing commit analyses: %w", err)
	}

	analyses := make([]models.CommitAnalysis, 0, len(elements))
	for i, el := range elements {
		fallbackSHA := ""
		if i < len(commits) {
			fallbackSHA = commits[i].SHA
		}
		analyses = append(analyses, normalizeAnalysis(el, fallbackSHA))
	}
	return analyses, usage, nil
}

// SynthesizeChangelog asks the model to assemble the categorized commits
// into a structured changelog document.
func (c *LLMClient) SynthesizeChangelog(ctx context.Context, analyses []models.CommitAnalysis, opts models.GenerationOptions, repoName string) (*models.GeneratedChangelog, TokenUsage, error) {
	analysesJSON, err := json.Marshal(analyses)
	if err != nil {
		return nil, TokenUsage{}, err
	}

	audience := "software developers"
	if opts.Audience == "endusers" {
		audience = "end users of the product"
	}
	grouping := "by change type (Features, Bug Fixes, Breaking Changes, ...)"
	if opts.GroupBy == "component" {
		grouping = "by affected component"
	}

	system := "You are a technical writer producing release notes. Respond with a single JSON object only, no prose and no markdown."
	user := fmt.Sprintf(`Write a changelog for the repository %q from these categorized commits:

%s

Group changes %s. Write for %s.%s

Respond with a JSON object of exactly this shape:
{"version": "1.4.0", "title": "short release title", "summary": "2-3 sentence overview", "sections": [{"title": "Features", "changes": [{"description": "...", "type": "feature", "impact": "minor", "breaking": false, "commitShas": ["abc1234"]}]}], "metadata": {"totalCommits": 0, "contributors": 0, "breakingChanges": 0, "features": 0, "bugFixes": 0, "confidence": 0.9}}`,
		repoName, analysesJSON, grouping, audience, internalNote(opts))

	raw, usage, err := c.complete(ctx, system, user)
	if err != nil {
		return nil, usage, err
	}

	var content models.GeneratedChangelog
	if err := jsonrepair.Decode(raw, &content); err != nil {
		return nil, usage, fmt.Errorf("parsing synthesized changelog: %w", err)
	}
	if len(content.Sections) == 0 {
		return nil, usage, ErrEmptySynthesis
	}

	normalizeChangelog(&content)
	return &content, usage, nil
}

func internalNote(opts models.GenerationOptions) string {
	if opts.IncludeInternal {
		return ""
	}
	return " Omit purely internal changes (chores, refactors, tests) unless they are breaking."
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

var validChangeTypes = map[string]bool{
	models.ChangeTypeFeature:     true,
	models.ChangeTypeFix:         true,
	models.ChangeTypeBreaking:    true,
	models.ChangeTypeImprovement: true,
	models.ChangeTypeDocs:        true,
	models.ChangeTypeRefactor:    true,
	models.ChangeTypeSecurity:    true,
	models.ChangeTypeChore:       true,
}

// normalizeAnalysis fills documented defaults for absent fields and coerces
// wrong-typed ones; malformed model output degrades, it never crashes.
func normalizeAnalysis(el json.RawMessage, fallbackSHA string) models.CommitAnalysis {
	var fields map[string]interface{}
	if err := json.Unmarshal(el, &fields); err != nil {
		fields = map[string]interface{}{}
	}

	a := models.CommitAnalysis{
		SHA:                asString(fields["sha"], fallbackSHA),
		Type:               asString(fields["type"], models.ChangeTypeChore),
		Description:        asString(fields["description"], ""),
		Impact:             asString(fields["impact"], ""),
		BreakingChange:     asBool(fields["breakingChange"]),
		AffectedComponents: asStringSlice(fields["affectedComponents"]),
		UserFacing:         asBool(fields["userFacing"]),
		Confidence:         asFloat(fields["confidence"], 0.5),
	}

	if !validChangeTypes[a.Type] {
		a.Type = models.ChangeTypeChore
	}
	if a.Type == models.ChangeTypeBreaking {
		a.BreakingChange = true
	}
	a.Impact = normalizeImpact(a.Impact, a.Type, a.BreakingChange)
	if a.Confidence < 0 {
		a.Confidence = 0
	}
	if a.Confidence > 1 {
		a.Confidence = 1
	}
	return a
}

func normalizeChangelog(content *models.GeneratedChangelog) {
	if content.Title == "" {
		content.Title = "Release " + content.Version
	}
	for si := range content.Sections {
		for ci := range content.Sections[si].Changes {
			ch := &content.Sections[si].Changes[ci]
			if !validChangeTypes[ch.Type] {
				ch.Type = models.ChangeTypeChore
			}
			if ch.Type == models.ChangeTypeBreaking {
				ch.Breaking = true
			}
			ch.Impact = normalizeImpact(ch.Impact, ch.Type, ch.Breaking)
		}
	}
}

// normalizeImpact validates the model's impact or derives one from the
// category: breaking changes are major, features minor, everything else patch.
func normalizeImpact(impact, changeType string, breaking bool) string {
	switch impact {
	case models.ImpactMajor, models.ImpactMinor, models.ImpactPatch:
		return impact
	}
	switch {
	case breaking || changeType == models.ChangeTypeBreaking:
		return models.ImpactMajor
	case changeType == models.ChangeTypeFeature:
		return models.ImpactMinor
	default:
		return models.ImpactPatch
	}
}

func asString(v interface{}, def string) string {
	if s, ok := v.(string); ok && s != "" {
		return s
	}
	return def
}

func asBool(v interface{}) bool {
	b, _ := v.(bool)
	return b
}

func asFloat(v interface{}, def float64) float64 {
	if f, ok := v.(float64); ok {
		return f
	}
	return def
}

func asStringSlice(v interface{}) []string {
	items, ok := v.([]interface{})
	if !ok {
		return []string{}
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
