// Package conversations keeps short per-session transcripts so follow-up
// questions can lean on what was already asked. The pipeline itself is
// stateless; the manager sits between the session layer and the repository.
package conversations

import (
	"context"
	"strings"

	"github.com/telmi-agent/server/internal/agent/model"
	logx "github.com/telmi-agent/server/pkg/logger"
)

type Manager struct {
	repo     model.ConversationRepository
	maxTurns int
}

func NewManager(repo model.ConversationRepository, cfg model.ConversationConfig) *Manager {
	maxTurns := cfg.MaxTurns
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Manager{repo: repo, maxTurns: maxTurns}
}

// Record stores the outcome of a run under the question as the user typed
// it, not the contextualized form. Persistence failures are logged and
// swallowed: losing a transcript entry must not fail the answer.
func (m *Manager) Record(ctx context.Context, conversationID, question string, state *model.WorkflowState) {
	if m.repo == nil || conversationID == "" || state == nil {
		return
	}
	exchange := model.Exchange{
		Question:  question,
		Answer:    state.FinalResponse,
		Route:     state.Route,
		Failed:    state.Failed,
		Timestamp: state.StartedAt,
	}
	if err := m.repo.AddExchange(ctx, conversationID, exchange); err != nil {
		logx.Warn().
			Str("component", "conversations").
			Str("conversationID", conversationID).
			Err(err).
			Msg("failed to record exchange")
	}
}

// ContextualQuestion prepends the recent transcript to a follow-up question
// so the analyzer can resolve references like "et pour Brest ?". With no
// history it returns the question unchanged.
func (m *Manager) ContextualQuestion(ctx context.Context, conversationID, question string) string {
	if m.repo == nil || conversationID == "" {
		return question
	}
	history, err := m.repo.LoadHistory(ctx, conversationID)
	if err != nil {
		logx.Warn().
			Str("component", "conversations").
			Str("conversationID", conversationID).
			Err(err).
			Msg("failed to load history, continuing without context")
		return question
	}
	recent := trimTail(history.Exchanges, m.maxTurns)
	if len(recent) == 0 {
		return question
	}

	var b strings.Builder
	b.WriteString("<conversation_context>\n")
	for _, e := range recent {
		if e.Question == "" {
			continue
		}
		b.WriteString("Question(" + e.Question + ")\n")
		if !e.Failed && e.Answer != "" {
			b.WriteString("Answer(" + firstLine(e.Answer) + ")\n")
		}
	}
	b.WriteString("</conversation_context>\n")
	b.WriteString("<current_question>\n")
	b.WriteString(question + "\n")
	b.WriteString("</current_question>")
	return b.String()
}

// Clear drops the transcript for a conversation.
func (m *Manager) Clear(ctx context.Context, conversationID string) error {
	if m.repo == nil || conversationID == "" {
		return nil
	}
	return m.repo.ClearHistory(ctx, conversationID)
}

func trimTail(exchanges []model.Exchange, max int) []model.Exchange {
	if len(exchanges) <= max {
		return exchanges
	}
	return exchanges[len(exchanges)-max:]
}

// firstLine keeps transcripts compact: answers are full markdown documents,
// only the headline matters for context.
func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 200 {
		s = s[:200]
	}
	return strings.TrimSpace(s)
}
