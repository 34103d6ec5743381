// Package notify posts run summaries to operators. A nil Notifier disables
// notifications; failures here never affect the run result.
package notify

import (
	"errors"
	"fmt"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "fbdownloader/pkg/logx"
)

// RunSummary describes one finished download run.
type RunSummary struct {
	Accounts int
	Jobs     int
	Took     time.Duration
	Err      error
}

type Notifier interface {
	RunFinished(s RunSummary)
}

// Telegram posts one message per finished run to a fixed chat.
type Telegram struct {
	bot  *tele.Bot
	chat *tele.Chat
	log  logx.Logger
}

func NewTelegram(token string, chatID int64, log logx.Logger) (*Telegram, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if chatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	// Send-only: no poller, no handler registration.
	b, err := tele.NewBot(tele.Settings{Token: token})
	if err != nil {
		return nil, err
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Telegram{bot: b, chat: &tele.Chat{ID: chatID}, log: log}, nil
}

func (t *Telegram) RunFinished(s RunSummary) {
	var msg string
	if s.Err != nil {
		msg = fmt.Sprintf("❌ facebook download failed after %s (%d accounts, %d jobs): %v",
			s.Took.Round(time.Second), s.Accounts, s.Jobs, s.Err)
	} else {
		msg = fmt.Sprintf("✅ facebook download finished in %s (%d accounts, %d jobs)",
			s.Took.Round(time.Second), s.Accounts, s.Jobs)
	}
	if _, err := t.bot.Send(t.chat, msg, &tele.SendOptions{DisableWebPagePreview: true}); err != nil {
		t.log.Warn("telegram notification failed", logx.Err(err))
	}
}
