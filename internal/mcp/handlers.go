package mcp

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/labsense-server/internal/domain"
	"github.com/labsense-server/internal/feedback"
)

// EvaluateLabsParams defines parameters for the evaluate_labs tool.
type EvaluateLabsParams struct {
	Readings []domain.Reading       `json:"readings"`
	Profile  *domain.PatientProfile `json:"profile,omitempty"`
}

// EvaluateLabsResult is the result of the evaluate_labs tool.
type EvaluateLabsResult struct {
	Signals            *domain.ClinicalSignals `json:"signals"`
	CatalogFingerprint string                  `json:"catalog_fingerprint"`
}

// ListRulesParams defines parameters for the list_rules tool.
type ListRulesParams struct{}

// ListRulesResult is the result of the list_rules tool.
type ListRulesResult struct {
	Fingerprint string        `json:"fingerprint"`
	Rules       []domain.Rule `json:"rules"`
}

// GetFindingParams defines parameters for the get_finding tool.
type GetFindingParams struct {
	FindingID string `json:"finding_id"`
}

// GetFindingResult is the result of the get_finding tool.
type GetFindingResult struct {
	Finding    domain.Finding     `json:"finding"`
	Conditions []domain.Condition `json:"conditions"`
	Actions    []domain.Action    `json:"actions"`
}

// SubmitFeedbackParams defines parameters for the submit_feedback tool.
type SubmitFeedbackParams struct {
	FindingID    string `json:"finding_id"`
	Helpful      bool   `json:"helpful"`
	EvaluationID string `json:"evaluation_id,omitempty"`
	Notes        string `json:"notes,omitempty"`
}

// SubmitFeedbackResult is the result of the submit_feedback tool.
type SubmitFeedbackResult struct {
	ID string `json:"id"`
}

func (s *Server) handleEvaluateLabs(ctx context.Context, req *mcp.CallToolRequest, params EvaluateLabsParams) (*mcp.CallToolResult, EvaluateLabsResult, error) {
	s.logger.WithField("tool", "evaluate_labs").Debug("Tool invoked")

	if len(params.Readings) == 0 {
		return errorResult("at least one reading is required"), EvaluateLabsResult{}, nil
	}

	signals, err := s.evaluator.Evaluate(ctx, params.Readings, params.Profile)
	if err != nil {
		return errorResult(fmt.Sprintf("evaluation failed: %v", err)), EvaluateLabsResult{}, nil
	}

	result := EvaluateLabsResult{
		Signals:            signals,
		CatalogFingerprint: s.provider.Snapshot().Fingerprint(),
	}
	summary := fmt.Sprintf("Evaluated %d readings: %d findings, %d conditions, %d actions",
		len(params.Readings), len(signals.Findings), len(signals.Conditions), len(signals.Actions))

	return textResult(summary), result, nil
}

func (s *Server) handleListRules(ctx context.Context, req *mcp.CallToolRequest, params ListRulesParams) (*mcp.CallToolResult, ListRulesResult, error) {
	s.logger.WithField("tool", "list_rules").Debug("Tool invoked")

	snapshot := s.provider.Snapshot()
	result := ListRulesResult{
		Fingerprint: snapshot.Fingerprint(),
		Rules:       snapshot.Rules(),
	}
	return textResult(fmt.Sprintf("Catalog holds %d rules", len(result.Rules))), result, nil
}

func (s *Server) handleGetFinding(ctx context.Context, req *mcp.CallToolRequest, params GetFindingParams) (*mcp.CallToolResult, GetFindingResult, error) {
	s.logger.WithField("tool", "get_finding").Debug("Tool invoked")

	if params.FindingID == "" {
		return errorResult("finding_id is required"), GetFindingResult{}, nil
	}

	snapshot := s.provider.Snapshot()
	finding, ok := snapshot.Finding(params.FindingID)
	if !ok {
		return errorResult(fmt.Sprintf("unknown finding id %q", params.FindingID)), GetFindingResult{}, nil
	}

	result := GetFindingResult{
		Finding:    finding,
		Conditions: []domain.Condition{},
		Actions:    []domain.Action{},
	}
	seenActions := make(map[string]struct{})
	for _, condID := range snapshot.ConditionsFor(finding.ID) {
		cond, ok := snapshot.Condition(condID)
		if !ok {
			continue
		}
		result.Conditions = append(result.Conditions, cond)
		for _, actID := range snapshot.ActionsFor(condID) {
			if _, dup := seenActions[actID]; dup {
				continue
			}
			seenActions[actID] = struct{}{}
			if act, ok := snapshot.Action(actID); ok {
				result.Actions = append(result.Actions, act)
			}
		}
	}

	return textResult(fmt.Sprintf("%s: %s finding with %d linked conditions",
		finding.ID, finding.Severity, len(result.Conditions))), result, nil
}

func (s *Server) handleSubmitFeedback(ctx context.Context, req *mcp.CallToolRequest, params SubmitFeedbackParams) (*mcp.CallToolResult, SubmitFeedbackResult, error) {
	s.logger.WithField("tool", "submit_feedback").Debug("Tool invoked")

	if params.FindingID == "" {
		return errorResult("finding_id is required"), SubmitFeedbackResult{}, nil
	}
	if _, ok := s.provider.Snapshot().Finding(params.FindingID); !ok {
		return errorResult(fmt.Sprintf("unknown finding id %q", params.FindingID)), SubmitFeedbackResult{}, nil
	}

	entry := &feedback.Feedback{
		EvaluationID: params.EvaluationID,
		FindingID:    params.FindingID,
		Helpful:      params.Helpful,
		Notes:        params.Notes,
	}
	if err := s.feedbackStore.Save(ctx, entry); err != nil {
		return errorResult(fmt.Sprintf("failed to save feedback: %v", err)), SubmitFeedbackResult{}, nil
	}

	return textResult(fmt.Sprintf("Feedback recorded for %s", params.FindingID)),
		SubmitFeedbackResult{ID: entry.ID}, nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func errorResult(message string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: message},
		},
		IsError: true,
	}
}
