// Package notify pushes proposed-action review requests to a Slack channel.
// Notification failures are logged and never block the approval pipeline.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/slack-go/slack"

	"github.com/ninjaos/autopilot/internal/config"
	"github.com/ninjaos/autopilot/internal/store"
)

const postTimeout = 10 * time.Second

// SlackNotifier posts medium and high risk proposed actions for review.
// Low-risk actions stay quiet.
type SlackNotifier struct {
	api     *slack.Client
	channel string
}

// NewSlackNotifier returns nil when no token is configured; callers treat a
// nil notifier as disabled.
func NewSlackNotifier(cfg config.NotifyConfig) *SlackNotifier {
	token := strings.TrimSpace(cfg.SlackToken)
	channel := strings.TrimSpace(cfg.SlackChannel)
	if token == "" || channel == "" {
		return nil
	}
	return &SlackNotifier{api: slack.New(token), channel: channel}
}

// ActionProposed is wired as an approval OnPropose hook.
func (n *SlackNotifier) ActionProposed(a *store.AgentAction) {
	if n == nil {
		return
	}
	if a.RiskLevel == store.RiskLow {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), postTimeout)
	defer cancel()

	text := fmt.Sprintf("*%s* proposed by `%s` (risk: %s)\n> %s\nApprove with `autopilot actions approve %s`",
		a.ActionType, a.AgentName, a.RiskLevel, a.ProposedContent, a.ActionID)
	_, _, err := n.api.PostMessageContext(ctx, n.channel, slack.MsgOptionText(text, false))
	if err != nil {
		slog.Warn("Slack notification failed", "action", a.ActionID, "error", err)
		return
	}
	slog.Debug("Reviewer notified", "action", a.ActionID, "channel", n.channel)
}
