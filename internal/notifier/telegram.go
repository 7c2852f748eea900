package notifier

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-telegram/bot"
	botmodels "github.com/go-telegram/bot/models"
	"github.com/sirupsen/logrus"

	"github.com/akeroyd/covnet/internal/config"
	"github.com/akeroyd/covnet/internal/models"
)

// TelegramNotifier pushes contagion alerts to a monitoring chat. All
// sends run off the request path; a dead bot never blocks or fails an
// assessment.
type TelegramNotifier struct {
	bot       *bot.Bot
	chatID    int64
	threshold float64
	logger    *logrus.Logger
}

// NewTelegramNotifier creates a notifier from config. Returns nil when
// alerting is disabled or the token/chat id is missing, and callers
// treat a nil notifier as a no-op.
func NewTelegramNotifier(cfg config.TelegramConfig, threshold float64, logger *logrus.Logger) (*TelegramNotifier, error) {
	if !cfg.Enabled || cfg.BotToken == "" || cfg.ChatID == "" {
		return nil, nil
	}

	chatID, err := strconv.ParseInt(cfg.ChatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram chat id: %w", err)
	}

	b, err := bot.New(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize telegram bot: %w", err)
	}

	return &TelegramNotifier{
		bot:       b,
		chatID:    chatID,
		threshold: threshold,
		logger:    logger,
	}, nil
}

// NotifyAssessment sends an alert when an assessment's cascade
// probability clears the configured threshold.
func (n *TelegramNotifier) NotifyAssessment(assessment *models.ContagionAssessment) {
	if n == nil || assessment.CascadeProbability < n.threshold {
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		message := formatAssessmentMessage(assessment)
		_, err := n.bot.SendMessage(ctx, &bot.SendMessageParams{
			ChatID:    n.chatID,
			Text:      message,
			ParseMode: botmodels.ParseModeMarkdown,
		})
		if err != nil {
			n.logger.WithError(err).Warn("Failed to send contagion alert")
			return
		}
		n.logger.WithField("source", assessment.SourceCovenantID).Info("Contagion alert sent")
	}()
}

func formatAssessmentMessage(assessment *models.ContagionAssessment) string {
	var sb strings.Builder
	sb.WriteString("🚨 *Contagion Alert*\n\n")
	sb.WriteString(fmt.Sprintf("Source covenant: `%s`\n", assessment.SourceCovenantID))
	sb.WriteString(fmt.Sprintf("Cascade probability: *%.0f%%*\n", assessment.CascadeProbability))
	sb.WriteString(fmt.Sprintf("Covenants at risk: %d across %d facilities\n",
		assessment.CovenantsAtRisk, assessment.FacilitiesAtRisk))
	if assessment.ExpectedTimelinePeriods > 0 {
		sb.WriteString(fmt.Sprintf("Expected timeline: ~%.1f periods\n", assessment.ExpectedTimelinePeriods))
	}

	limit := 3
	if len(assessment.Affected) < limit {
		limit = len(assessment.Affected)
	}
	if limit > 0 {
		sb.WriteString("\nTop exposures:\n")
		for _, affected := range assessment.Affected[:limit] {
			sb.WriteString(fmt.Sprintf("• `%s` (%s) — %.0f%% in ~%.1f periods\n",
				affected.CovenantID, affected.Tier, affected.Probability, affected.HorizonPeriods))
		}
	}
	return sb.String()
}
