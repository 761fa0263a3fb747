package main

import (
	"context"
	"fmt"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"go.uber.org/zap"

	"github.com/patrickwarner/trustsafety/internal/api"
	"github.com/patrickwarner/trustsafety/internal/db"
	"github.com/patrickwarner/trustsafety/internal/escalation"
	"github.com/patrickwarner/trustsafety/internal/models"
	"github.com/patrickwarner/trustsafety/internal/moderation"
	"github.com/patrickwarner/trustsafety/internal/suspension"
)

type QueueInput struct {
	Limit int `json:"limit,omitempty" jsonschema:"maximum number of pending reports to return (default 50)"`
}

type QueueOutput struct {
	Items []models.QueueItem `json:"items"`
}

type UserInput struct {
	UserID string `json:"user_id" jsonschema:"the user to look up"`
}

type UserOutput struct {
	UserID           string                    `json:"user_id"`
	SuspensionState  models.SuspensionKind     `json:"suspension_state"`
	SuspendedUntil   *time.Time                `json:"suspended_until,omitempty"`
	SuspensionReason string                    `json:"suspension_reason,omitempty"`
	Suggestion       escalation.Suggestion     `json:"suggestion"`
	Actions          []models.ModerationAction `json:"actions"`
}

type ActionInput struct {
	Action         string             `json:"action" jsonschema:"one of dismiss, remove_content, warn, suspend, ban, lift_suspension"`
	TargetUserID   string             `json:"target_user_id" jsonschema:"the user the action applies to"`
	ReportID       string             `json:"report_id,omitempty" jsonschema:"the report being resolved, if any"`
	Content        *models.ContentRef `json:"content,omitempty" jsonschema:"content to remove when no report is given"`
	Notes          string             `json:"notes,omitempty" jsonschema:"reason shown to the user; required for warn, suspend and ban"`
	Days           int                `json:"days,omitempty" jsonschema:"suspension length in days, 1 to 3650"`
	IdempotencyKey string             `json:"idempotency_key,omitempty" jsonschema:"repeat a call with the same key to avoid acting twice"`
}

type ActionOutput struct {
	Action models.ModerationAction `json:"action"`
}

// moderatorTools implements the MCP tools. Every action is attributed to
// moderatorID.
type moderatorTools struct {
	moderatorID string
	store       db.Store
	queue       *api.Queue
	ledger      *escalation.Ledger
	guard       *suspension.Guard
	executor    *moderation.Executor
	logger      *zap.Logger
}

func (t *moderatorTools) register(server *mcp.Server) {
	mcp.AddTool(server, &mcp.Tool{
		Name:        "moderation_queue",
		Description: "List pending user reports with reporter, target user and content preview, oldest first",
	}, t.Queue)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "review_user",
		Description: "Show a user's suspension status, violation-based suggested action and recent moderation history",
	}, t.ReviewUser)
	mcp.AddTool(server, &mcp.Tool{
		Name:        "take_action",
		Description: "Apply a moderation decision: dismiss, remove_content, warn, suspend, ban or lift_suspension",
	}, t.TakeAction)
}

func (t *moderatorTools) Queue(ctx context.Context, req *mcp.CallToolRequest, in QueueInput) (*mcp.CallToolResult, QueueOutput, error) {
	items, err := t.queue.Pending(ctx, in.Limit)
	if err != nil {
		return nil, QueueOutput{}, err
	}
	if items == nil {
		items = []models.QueueItem{}
	}
	return nil, QueueOutput{Items: items}, nil
}

func (t *moderatorTools) ReviewUser(ctx context.Context, req *mcp.CallToolRequest, in UserInput) (*mcp.CallToolResult, UserOutput, error) {
	if in.UserID == "" {
		return nil, UserOutput{}, fmt.Errorf("user_id is required")
	}
	st, err := t.guard.Status(ctx, in.UserID)
	if err != nil {
		return nil, UserOutput{}, err
	}
	sug, err := t.ledger.Suggest(ctx, in.UserID)
	if err != nil {
		return nil, UserOutput{}, err
	}
	acts, err := t.store.ListActions(ctx, in.UserID, 20)
	if err != nil {
		return nil, UserOutput{}, err
	}
	if acts == nil {
		acts = []models.ModerationAction{}
	}
	kind, until, reason := st.Fields()
	out := UserOutput{UserID: in.UserID, SuspensionState: kind, SuspendedUntil: until, Suggestion: sug, Actions: acts}
	if reason != nil {
		out.SuspensionReason = *reason
	}
	return nil, out, nil
}

func (t *moderatorTools) TakeAction(ctx context.Context, req *mcp.CallToolRequest, in ActionInput) (*mcp.CallToolResult, ActionOutput, error) {
	act, err := t.executor.Execute(ctx, models.ActionType(in.Action), moderation.Request{
		ModeratorID:    t.moderatorID,
		TargetUserID:   in.TargetUserID,
		ReportID:       in.ReportID,
		Content:        in.Content,
		Notes:          in.Notes,
		Days:           in.Days,
		IdempotencyKey: in.IdempotencyKey,
	})
	if err != nil {
		t.logger.Info("moderation tool call rejected", zap.String("action", in.Action), zap.Error(err))
		return nil, ActionOutput{}, err
	}
	return nil, ActionOutput{Action: act}, nil
}
