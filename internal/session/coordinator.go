// Package session implements the session resume coordinator: the
// pause/resume protocol over session state and system-initiated reminder
// delivery through the external conversational runtime.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/oumacare/ancare/internal/models"
	"github.com/oumacare/ancare/internal/store"
)

// Runtime is the external conversational runtime. It turns a message into a
// reply; everything else about the agent is outside this engine.
type Runtime interface {
	Send(ctx context.Context, message, userID, sessionID string) (string, error)
}

// FallbackReply is the single user-visible failure string for the chat path.
// Internal error detail is logged, never surfaced to the patient.
const FallbackReply = "I apologize, but I encountered an error. Please try again or contact support if the issue persists."

// systemReminderTag wraps engine-authored reminders so the runtime delivers
// them without requesting confirmation.
const systemReminderTag = "[SYSTEM REMINDER] Deliver the following message to the patient now, without asking for confirmation:"

// DeliveryResult is the structured outcome of a system-initiated reminder
// delivery. Runtime failures are folded in here, never propagated to the
// scheduler.
type DeliveryResult struct {
	SessionID         string `json:"session_id"`
	SessionExisted    bool   `json:"session_existed"`
	ReminderDelivered bool   `json:"reminder_delivered"`
	AgentResponse     string `json:"agent_response,omitempty"`
	Error             string `json:"error,omitempty"`
}

// Coordinator resolves sessions for users, runs the pause/resume protocol,
// and hands system-authored messages to the runtime.
type Coordinator struct {
	memory  *store.MemoryService
	runtime Runtime
	now     func() time.Time
}

// CoordinatorOption configures a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithClock overrides the clock, for tests.
func WithClock(now func() time.Time) CoordinatorOption {
	return func(c *Coordinator) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCoordinator creates a coordinator over the given memory service and
// conversational runtime.
func NewCoordinator(memory *store.MemoryService, runtime Runtime, opts ...CoordinatorOption) *Coordinator {
	c := &Coordinator{memory: memory, runtime: runtime, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pause marks a session paused, recording the reason and the topic under
// discussion so the conversation can be picked up later. Fails with
// models.ErrSessionNotFound if the session does not exist.
func (c *Coordinator) Pause(userID, sessionID, reason, lastTopic string) error {
	sess := c.memory.GetSession(userID, sessionID)
	if sess == nil {
		return fmt.Errorf("%w: %s/%s", models.ErrSessionNotFound, userID, sessionID)
	}

	now := c.now()
	sess.State.Pause = &models.PauseInfo{Reason: reason, Since: now, LastTopic: lastTopic}
	sess.UpdatedAt = now

	slog.Info("session paused", "userID", userID, "sessionID", sessionID, "reason", reason, "last_topic", lastTopic)
	return c.memory.AddSessionToMemory(sess)
}

// Resume clears a session's pause tag and returns a human-readable resume
// context built from the recorded topic and the elapsed pause duration.
// Fails with models.ErrSessionNotPaused if the session is not paused.
func (c *Coordinator) Resume(userID, sessionID string) (string, error) {
	sess := c.memory.GetSession(userID, sessionID)
	if sess == nil {
		return "", fmt.Errorf("%w: %s/%s", models.ErrSessionNotFound, userID, sessionID)
	}
	if !sess.State.Paused() {
		return "", fmt.Errorf("%w: %s/%s", models.ErrSessionNotPaused, userID, sessionID)
	}

	pause := sess.State.Pause
	now := c.now()
	elapsed := now.Sub(pause.Since)

	resumeContext := fmt.Sprintf("Resuming conversation paused %s ago.", formatDuration(elapsed))
	if pause.LastTopic != "" {
		resumeContext = fmt.Sprintf("%s We were discussing: %s.", resumeContext, pause.LastTopic)
	}

	sess.State.Pause = nil
	sess.UpdatedAt = now
	if err := c.memory.AddSessionToMemory(sess); err != nil {
		return "", err
	}

	slog.Info("session resumed", "userID", userID, "sessionID", sessionID, "paused_for", elapsed)
	return resumeContext, nil
}

// HandleIncoming processes one inbound patient turn. A paused session is
// resumed first and the resume context is prepended to the message before it
// reaches the runtime, so the agent never silently loses track of why the
// conversation stalled. Runtime failures fold into the generic fallback
// reply; the session log is persisted either way.
func (c *Coordinator) HandleIncoming(ctx context.Context, userID, sessionID, text string) (string, error) {
	if userID == "" {
		return "", models.ErrEmptyUserID
	}

	now := c.now()
	sess := c.memory.GetSession(userID, sessionID)
	if sess == nil {
		sess = models.NewSession(c.memory.App(), userID, sessionID, now)
		slog.Info("created new session", "userID", userID, "sessionID", sessionID)
	}

	forwarded := text
	if sess.State.Paused() {
		resumeContext, err := c.Resume(userID, sessionID)
		if err != nil {
			slog.Error("failed to resume paused session", "userID", userID, "sessionID", sessionID, "error", err)
		} else {
			forwarded = resumeContext + "\n\n" + text
			// Resume persisted a cleared pause tag; reload to build on it.
			sess = c.memory.GetSession(userID, sessionID)
		}
	}

	sess.AppendEvent(models.RolePatient, text, now)

	reply, err := c.runtime.Send(ctx, forwarded, userID, sessionID)
	if err != nil {
		slog.Error("runtime call failed for inbound turn", "userID", userID, "sessionID", sessionID, "error", err)
		reply = FallbackReply
	}

	sess.AppendEvent(models.RoleAgent, reply, c.now())
	if err := c.memory.AddSessionToMemory(sess); err != nil {
		slog.Error("failed to persist session after turn", "userID", userID, "sessionID", sessionID, "error", err)
	}
	return reply, nil
}

// ResumeSessionForReminder delivers a system-authored reminder into the
// user's most recent session, synthesizing a new one when none exists and
// createIfMissing is set. All failures are folded into the returned result.
func (c *Coordinator) ResumeSessionForReminder(ctx context.Context, userID, reminderMessage string, createIfMissing bool) DeliveryResult {
	now := c.now()

	sess := c.memory.LatestSession(userID)
	existed := sess != nil
	if sess == nil {
		if !createIfMissing {
			slog.Warn("no session for user and creation disabled", "userID", userID)
			return DeliveryResult{Error: models.ErrNoSessionForUser.Error()}
		}
		sessionID := fmt.Sprintf("reminder_%s", now.Format("20060102_150405"))
		sess = models.NewSession(c.memory.App(), userID, sessionID, now)
		slog.Info("created session for reminder delivery", "userID", userID, "sessionID", sessionID)
	}

	sess.State.SystemInitiated = true
	t := now
	sess.State.LastReminderTime = &t
	sess.AppendEvent(models.RoleSystem, reminderMessage, now)

	wrapped := fmt.Sprintf("%s\n\n%s", systemReminderTag, reminderMessage)

	reply, err := c.runtime.Send(ctx, wrapped, userID, sess.SessionID)
	if err != nil {
		slog.Error("reminder delivery failed", "userID", userID, "sessionID", sess.SessionID, "error", err)
		// Keep the system event so the attempt is visible in the log.
		if perr := c.memory.AddSessionToMemory(sess); perr != nil {
			slog.Error("failed to persist session after delivery failure", "userID", userID, "error", perr)
		}
		return DeliveryResult{
			SessionID:      sess.SessionID,
			SessionExisted: existed,
			Error:          err.Error(),
		}
	}

	sess.AppendEvent(models.RoleAgent, reply, c.now())
	if err := c.memory.AddSessionToMemory(sess); err != nil {
		slog.Error("failed to persist session after reminder delivery", "userID", userID, "error", err)
	}

	slog.Info("reminder delivered", "userID", userID, "sessionID", sess.SessionID, "session_existed", existed)
	return DeliveryResult{
		SessionID:         sess.SessionID,
		SessionExisted:    existed,
		ReminderDelivered: true,
		AgentResponse:     reply,
	}
}

// Deliver adapts the coordinator to the reminder delivery-handler interface.
// A failed delivery is reported as an error so the checker can count it; the
// checker isolates it from the rest of the batch.
func (c *Coordinator) Deliver(ctx context.Context, rem models.Reminder) error {
	result := c.ResumeSessionForReminder(ctx, rem.Record.Phone, rem.Message, true)
	if !result.ReminderDelivered {
		return fmt.Errorf("%w: %s", models.ErrReminderNotDelivered, result.Error)
	}
	return nil
}

// formatDuration renders an elapsed pause coarsely for the resume context.
func formatDuration(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "moments"
	case d < time.Hour:
		m := int(d.Minutes())
		if m == 1 {
			return "1 minute"
		}
		return fmt.Sprintf("%d minutes", m)
	case d < 24*time.Hour:
		h := int(d.Hours())
		if h == 1 {
			return "1 hour"
		}
		return fmt.Sprintf("%d hours", h)
	default:
		days := int(d.Hours() / 24)
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
}
