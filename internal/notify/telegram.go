package notify

import (
	"context"
	"errors"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"
)

// TelegramConfig configures the Telegram channel.
type TelegramConfig struct {
	Token  string
	ChatID int64
}

// telegramMessageLimit is the Bot API cap per message.
const telegramMessageLimit = 4096

type sender interface {
	Send(to tele.Recipient, what interface{}, opts ...interface{}) (*tele.Message, error)
}

// TelegramChannel delivers the plain-text digest to one chat.
type TelegramChannel struct {
	bot    sender
	chatID int64
}

func NewTelegramChannel(cfg TelegramConfig) (*TelegramChannel, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat_id is empty")
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: 10 * time.Second},
	})
	if err != nil {
		return nil, err
	}
	return &TelegramChannel{bot: b, chatID: cfg.ChatID}, nil
}

func (c *TelegramChannel) Name() string { return "telegram" }

func (c *TelegramChannel) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	for _, chunk := range splitMessage(msg.Text, telegramMessageLimit) {
		if _, err := c.bot.Send(tele.ChatID(c.chatID), chunk, &tele.SendOptions{
			DisableWebPagePreview: true,
		}); err != nil {
			return err
		}
	}
	return nil
}

// splitMessage breaks text on line boundaries so no chunk exceeds the
// limit. A single oversized line is hard-split.
func splitMessage(text string, limit int) []string {
	if len(text) <= limit {
		return []string{text}
	}

	var chunks []string
	var cur strings.Builder
	for _, line := range strings.Split(text, "\n") {
		for len(line) > limit {
			chunks = append(chunks, flushChunk(&cur), line[:limit])
			line = line[limit:]
		}
		if cur.Len()+len(line)+1 > limit {
			chunks = append(chunks, flushChunk(&cur))
		}
		if cur.Len() > 0 {
			cur.WriteByte('\n')
		}
		cur.WriteString(line)
	}
	if cur.Len() > 0 {
		chunks = append(chunks, cur.String())
	}

	out := chunks[:0]
	for _, c := range chunks {
		if strings.TrimSpace(c) != "" {
			out = append(out, c)
		}
	}
	return out
}

func flushChunk(b *strings.Builder) string {
	s := b.String()
	b.Reset()
	return s
}
