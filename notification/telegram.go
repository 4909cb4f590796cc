// Package notification provides implementations for various notification services
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"slices"
	"strings"
	"time"

	"github.com/quantwise/chartsync/core"
	tb "gopkg.in/tucnak/telebot.v2"
)

const pollingTimeout = 10 * time.Second

// Settings holds the Telegram bot credentials and the authorized users.
type Settings struct {
	Token string
	Users []int
}

// Telegram implements the core.NotifierWithStart interface
type Telegram struct {
	settings    Settings
	storage     core.RunStorage
	defaultMenu *tb.ReplyMarkup
	client      *tb.Bot
	log         core.Logger
}

// NewTelegram creates and initializes a new Telegram service
func NewTelegram(storage core.RunStorage, settings Settings, log core.Logger) (core.NotifierWithStart, error) {
	menu := &tb.ReplyMarkup{ResizeReplyKeyboard: true}
	poller := &tb.LongPoller{Timeout: pollingTimeout}
	userMiddleware := newAuthMiddleware(poller, settings, log)

	client, err := tb.NewBot(tb.Settings{
		ParseMode: tb.ModeMarkdown,
		Token:     settings.Token,
		Poller:    userMiddleware,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}

	setupKeyboard(menu)
	if err := setupCommands(client); err != nil {
		return nil, fmt.Errorf("failed to set commands: %w", err)
	}

	bot := &Telegram{
		settings:    settings,
		storage:     storage,
		client:      client,
		defaultMenu: menu,
		log:         log,
	}

	client.Handle("/help", bot.HelpHandle)
	client.Handle("/results", bot.ResultsHandle)

	return bot, nil
}

// newAuthMiddleware creates a middleware to validate authorized users
func newAuthMiddleware(poller *tb.LongPoller, settings Settings, log core.Logger) *tb.MiddlewarePoller {
	return tb.NewMiddlewarePoller(poller, func(u *tb.Update) bool {
		if u.Message == nil || u.Message.Sender == nil {
			log.Error("message or sender is nil ", u)
			return false
		}

		if slices.Contains(settings.Users, int(u.Message.Sender.ID)) {
			return true
		}

		log.Error("unauthorized user ", u.Message.Sender.ID)
		return false
	})
}

// setupKeyboard configures the reply keyboard layout
func setupKeyboard(menu *tb.ReplyMarkup) {
	var (
		resultsBtn = menu.Text("/results")
		helpBtn    = menu.Text("/help")
	)

	menu.Reply(
		menu.Row(resultsBtn, helpBtn),
	)
}

// setupCommands configures available bot commands
func setupCommands(client *tb.Bot) error {
	return client.SetCommands([]tb.Command{
		{Text: "/help", Description: "Display help instructions"},
		{Text: "/results", Description: "Summary of the latest backtest"},
	})
}

// Start begins the Telegram bot and notifies all authorized users
func (t *Telegram) Start() {
	go t.client.Start()
	t.sendMessageWithOptions("Chart synchronizer initialized.", t.defaultMenu)
}

// Notification methods
// -------------------

// Notify sends a message to all authorized users
func (t *Telegram) Notify(text string) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, text)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification")
		}
	}
}

// sendMessageWithOptions sends a message to all authorized users with additional options
func (t *Telegram) sendMessageWithOptions(text string, options ...any) {
	for _, user := range t.settings.Users {
		_, err := t.client.Send(&tb.User{ID: int64(user)}, text, options...)
		if err != nil {
			t.log.WithError(err).Error("failed to send notification with options")
		}
	}
}

// sendMessage sends a message to a specific user
func (t *Telegram) sendMessage(to *tb.User, text string, options ...any) {
	_, err := t.client.Send(to, text, options...)
	if err != nil {
		t.log.WithError(err).Error("failed to send message")
	}
}

// Command handlers
// ---------------

// HelpHandle displays available commands
func (t *Telegram) HelpHandle(m *tb.Message) {
	commands, err := t.client.GetCommands()
	if err != nil {
		t.log.WithError(err).Error("failed to get commands")
		t.OnError(err)
		return
	}

	lines := make([]string, 0, len(commands))
	for _, command := range commands {
		lines = append(lines, fmt.Sprintf("/%s - %s", command.Text, command.Description))
	}

	t.sendMessage(m.Sender, strings.Join(lines, "\n"))
}

// ResultsHandle shows the most recently stored backtest run
func (t *Telegram) ResultsHandle(m *tb.Message) {
	runs, err := t.storage.Runs(context.Background())
	if err != nil {
		t.log.WithError(err).Error("failed to fetch runs")
		t.OnError(err)
		return
	}

	if len(runs) == 0 {
		t.sendMessage(m.Sender, "No backtests registered.")
		return
	}

	t.sendMessage(m.Sender, formatRun(runs[len(runs)-1]))
}

// Event handlers
// -------------

// OnBacktest notifies users about a completed backtest
func (t *Telegram) OnBacktest(run *core.BacktestRun) {
	t.Notify("📊 BACKTEST COMPLETE\n-----\n" + formatRun(run))
}

// OnError notifies users about errors
func (t *Telegram) OnError(err error) {
	var sb strings.Builder
	sb.WriteString("🛑 ERROR\n")
	sb.WriteString("-----\n")
	sb.WriteString(err.Error())

	t.Notify(sb.String())
}

// formatRun renders one stored run as a Telegram message
func formatRun(run *core.BacktestRun) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*TICKER*: `%s`\n", run.Ticker)
	fmt.Fprintf(&sb, "*RANGE*: `%s` → `%s`\n", run.StartDate, run.EndDate)

	var result core.BacktestResult
	if err := json.Unmarshal(run.Result, &result); err != nil {
		sb.WriteString("_result unavailable_")
		return sb.String()
	}

	fmt.Fprintf(&sb, "*TRADES*: `%d`\n", len(result.TradeHistory))
	fmt.Fprintf(&sb, "*RETURN*: `%s`\n", statText(result.TotalReturn, "%.2f %%"))
	fmt.Fprintf(&sb, "*WIN RATE*: `%s`\n", statText(result.WinRate, "%.1f %%"))
	fmt.Fprintf(&sb, "*PROFIT FACTOR*: `%s`\n", statText(result.ProfitFactor, "%.3f"))
	fmt.Fprintf(&sb, "*SHARPE*: `%s`\n", statText(result.SharpeRatio, "%.2f"))
	fmt.Fprintf(&sb, "*MAX DRAWDOWN*: `%s`", statText(result.MaxDrawdown, "%.1f %%"))

	return sb.String()
}

func statText(s core.Stat, format string) string {
	if math.IsNaN(float64(s)) {
		return "N/A"
	}
	return fmt.Sprintf(format, float64(s))
}
