// Package telegram provides a Telegram bot channel for CodeHelper.
package telegram

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"github.com/jxucoder/codehelper/pkg/channel"
)

// maxMessageLen is Telegram's limit for a single text message.
const maxMessageLen = 4096

// sender is the part of *tgbotapi.BotAPI used to reply.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Bot is the Telegram bot for CodeHelper.
type Bot struct {
	api    *tgbotapi.BotAPI
	sender sender
	runner channel.Runner
	logger *zap.Logger
}

// NewBot creates a new Telegram bot.
func NewBot(token string, runner channel.Runner, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("creating Telegram bot: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	logger.Info("telegram bot authorized", zap.String("username", api.Self.UserName))

	return &Bot{
		api:    api,
		sender: api,
		runner: runner,
		logger: logger,
	}, nil
}

// Name returns the channel name.
func (b *Bot) Name() string { return "telegram" }

// Run starts the long-polling loop. Blocks until ctx is canceled.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30

	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("telegram bot listening for messages")

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.Message != nil {
				go b.handleMessage(ctx, update.Message)
			}
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	chatID := msg.Chat.ID

	switch command(text) {
	case "start", "help":
		b.sendHelp(chatID, msg.MessageID)
		return
	}

	req, err := channel.ParseRequest(text)
	if err != nil {
		b.sendText(chatID, msg.MessageID, channel.Usage)
		return
	}

	b.sendChatAction(chatID)

	result, err := b.runner.Run(ctx, req)
	if err != nil {
		b.logger.Warn("telegram task failed",
			zap.Int64("chat_id", chatID),
			zap.String("task", string(req.TaskType)),
			zap.Error(err),
		)
	}
	b.sendText(chatID, msg.MessageID, channel.ReplyText(result, err))
}

// command returns the lower-cased command word of a "/cmd@bot ..." message.
func command(text string) string {
	fields := strings.Fields(text)
	if len(fields) == 0 || !strings.HasPrefix(fields[0], "/") {
		return ""
	}
	cmd := strings.ToLower(strings.TrimPrefix(fields[0], "/"))
	if at := strings.Index(cmd, "@"); at >= 0 {
		cmd = cmd[:at]
	}
	return cmd
}

func (b *Bot) sendHelp(chatID int64, replyTo int) {
	b.sendReply(chatID, replyTo, ""+
		"*CodeHelper* \\- explain, fix, convert and document code\\.\n\n"+
		"Put the task on the first line and the code below it:\n"+
		"`/explain go \\-\\- focus on the loop`\n"+
		"`/fix python`\n"+
		"`/document typescript`\n"+
		"`/convert python go`\n\n"+
		"/help \\- Show this message")
}

func (b *Bot) sendChatAction(chatID int64) {
	action := tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)
	b.sender.Send(action)
}

// sendText sends model output as plain text, split to fit Telegram's limit.
// Only the first chunk is threaded as a reply.
func (b *Bot) sendText(chatID int64, replyTo int, text string) {
	for i, chunk := range channel.Chunk(text, maxMessageLen) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		if i == 0 {
			msg.ReplyToMessageID = replyTo
		}
		if _, err := b.sender.Send(msg); err != nil {
			b.logger.Warn("telegram send failed", zap.Int64("chat_id", chatID), zap.Error(err))
			return
		}
	}
}

// sendReply sends a MarkdownV2 message, falling back to plain text.
func (b *Bot) sendReply(chatID int64, replyTo int, text string) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyToMessageID = replyTo
	msg.ParseMode = tgbotapi.ModeMarkdownV2

	if _, err := b.sender.Send(msg); err != nil {
		b.logger.Warn("telegram markdown send failed", zap.Error(err))
		msg.ParseMode = ""
		msg.Text = stripMarkdown(text)
		b.sender.Send(msg)
	}
}

func stripMarkdown(s string) string {
	r := strings.NewReplacer(
		"\\*", "*", "\\_", "_", "\\[", "[", "\\]", "]",
		"\\(", "(", "\\)", ")", "\\~", "~", "\\`", "`",
		"\\>", ">", "\\#", "#", "\\+", "+", "\\-", "-",
		"\\=", "=", "\\|", "|", "\\{", "{", "\\}", "}",
		"\\.", ".", "\\!", "!",
	)
	return r.Replace(s)
}
