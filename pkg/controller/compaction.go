package controller

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nstogner/cortex/pkg/domain"
	"github.com/nstogner/cortex/pkg/model"
	"github.com/nstogner/cortex/pkg/store"
)

const (
	// DefaultCompactionThreshold is the fraction of the max context window at which
	// the session is compacted. 0.6 means compact when usage reaches 60%.
	DefaultCompactionThreshold = 0.6

	// minCompactionEvents is the shortest compacted view worth summarizing.
	minCompactionEvents = 10
)

// ErrEmptySummary is returned when the model produces no compaction summary.
var ErrEmptySummary = errors.New("model returned empty compaction summary")

const compactionPrompt = "You are summarizing a conversation history for context compaction. " +
	"Create a dense, comprehensive summary of the following conversation that preserves:\n" +
	"- Key decisions and outcomes\n" +
	"- Tools that were called and what they returned\n" +
	"- Current state of any ongoing tasks\n" +
	"- Any instructions or preferences the user expressed\n\n" +
	"Be thorough but concise. This summary will replace the original messages.\n\n" +
	"CONVERSATION TO SUMMARIZE:\n"

// checkAndCompact compacts the session when its compacted view is estimated to
// exceed the session's threshold of the model's context window.
func (c *Controller) checkAndCompact(ctx context.Context, sess *domain.Session, modelName string) error {
	events, err := c.sessions.Events(ctx, sess.ID, 0)
	if err != nil {
		return fmt.Errorf("loading events for compaction: %w", err)
	}
	if len(events) < minCompactionEvents {
		return nil
	}

	threshold := sess.CompactionThreshold
	if threshold <= 0 {
		threshold = DefaultCompactionThreshold
	}

	models, err := c.provider.List(ctx)
	if err != nil {
		return fmt.Errorf("listing models for compaction check: %w", err)
	}
	maxTokens := 0
	for _, m := range models {
		if m.ID == modelName {
			maxTokens = m.MaxTokens
			break
		}
	}
	if maxTokens == 0 {
		return nil
	}

	tokens := CountEventTokens(events)
	if float64(tokens) < float64(maxTokens)*threshold {
		return nil
	}

	slog.Info("Session compaction triggered",
		"sessionID", sess.ID,
		"estimatedTokens", tokens,
		"maxTokens", maxTokens,
		"threshold", threshold,
	)
	return c.compact(ctx, sess.ID, modelName, events)
}

// compactionSplit returns how many leading events to summarize: about half,
// never separating a tool_call from its tool_result.
func compactionSplit(events []domain.Event) int {
	split := len(events) / 2
	for split > 0 {
		if events[split].Kind == domain.EventToolResult || events[split-1].Kind == domain.EventToolCall {
			split--
			continue
		}
		break
	}
	return split
}

func (c *Controller) compact(ctx context.Context, sessionID, modelName string, events []domain.Event) error {
	split := compactionSplit(events)
	if split <= 1 {
		return nil
	}

	var sb strings.Builder
	sb.WriteString(compactionPrompt)
	for _, e := range events[:split] {
		fmt.Fprintf(&sb, "[%s] %s\n", e.Kind, e.Content)
	}

	msg, err := model.Generate(ctx, c.provider, model.Request{
		Model:        modelName,
		Instructions: "You are a conversation summarizer.",
		Messages:     []model.Message{model.TextMessage(domain.RoleUser, sb.String())},
	})
	if err != nil {
		return fmt.Errorf("calling model for compaction: %w", err)
	}
	summary := strings.TrimSpace(msg.Text())
	if summary == "" {
		return ErrEmptySummary
	}
	last := events[len(events)-1].ID
	err = c.sessions.Compact(ctx, sessionID, last, compactionNote(summary, events[split:]))
	if errors.Is(err, store.ErrStaleCompaction) {
		slog.Info("Skipping compaction, session changed while summarizing", "sessionID", sessionID)
		return nil
	}
	return err
}

// compactionNote carries the summary plus the unsummarized tail verbatim, since
// reads after compaction start at the note.
func compactionNote(summary string, kept []domain.Event) string {
	var sb strings.Builder
	sb.WriteString("CONVERSATION SUMMARY:\n")
	sb.WriteString(summary)
	if len(kept) > 0 {
		sb.WriteString("\n\nRECENT CONVERSATION:\n")
		for _, e := range kept {
			fmt.Fprintf(&sb, "[%s] %s\n", e.Kind, e.Content)
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}
