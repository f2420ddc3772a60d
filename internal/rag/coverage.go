package rag

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"juris-ai/internal/llm"
)

// Coverage statuses returned by a judge.
const (
	CoverageComplete = "COMPLETE"
	CoverageGaps     = "GAPS"
)

// completeCoveragePct closes the loop even when the judge reports
// GAPS but nearly everything is covered.
const completeCoveragePct = 95

// CoverageReport is a judge's verdict on whether the answer covers
// every part of the question.
type CoverageReport struct {
	Status         string   `json:"status"`
	CoveragePct    int      `json:"coverage_pct"`
	MissingAspects []string `json:"missing_aspects"`
	GapQueries     []string `json:"gap_queries"`
}

// Complete reports whether the loop should stop retrieving.
func (r CoverageReport) Complete() bool {
	return r.Status == CoverageComplete || r.CoveragePct >= completeCoveragePct
}

// CoverageJudge decides whether a draft answer fully addresses the
// question. The judgment strategy is pluggable; the default asks an
// LLM for a structured verdict.
type CoverageJudge interface {
	Check(ctx context.Context, question, answer string) (CoverageReport, error)
}

// LLMCoverageJudge implements CoverageJudge with a JSON-mode chat
// completion.
type LLMCoverageJudge struct {
	llm LLMClient
}

// NewLLMCoverageJudge creates an LLMCoverageJudge.
func NewLLMCoverageJudge(client LLMClient) *LLMCoverageJudge {
	return &LLMCoverageJudge{llm: client}
}

// Check asks the model whether every aspect of the question was
// answered with evidence.
func (j *LLMCoverageJudge) Check(ctx context.Context, question, answer string) (CoverageReport, error) {
	raw, err := j.llm.Chat(ctx, []llm.Message{
		{Role: "system", Content: "Kontrollo mbulimin e përgjigjes juridike."},
		{Role: "user", Content: BuildCoveragePrompt(question, answer)},
	}, llm.ChatParams{
		Temperature:  0.1,
		MaxTokens:    400,
		ResponseJSON: true,
	})
	if err != nil {
		return CoverageReport{}, fmt.Errorf("coverage check failed: %w", err)
	}

	var report CoverageReport
	if err := json.Unmarshal([]byte(strings.TrimSpace(raw)), &report); err != nil {
		return CoverageReport{}, fmt.Errorf("coverage verdict unparsable: %w", err)
	}
	if report.Status == "" {
		report.Status = CoverageComplete
	}
	return report, nil
}
