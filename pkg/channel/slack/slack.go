// Package slack provides a Slack bot channel for CodeHelper using Socket Mode.
package slack

import (
	"context"
	"log"
	"regexp"
	"strings"

	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"
	"go.uber.org/zap"

	"github.com/jxucoder/codehelper/pkg/channel"
)

// maxMessageLen keeps replies well under Slack's per-message text limit.
const maxMessageLen = 3900

// poster is the part of *slack.Client used to reply.
type poster interface {
	PostMessage(channelID string, options ...slack.MsgOption) (string, string, error)
}

// Bot is the Slack Socket Mode bot for CodeHelper.
type Bot struct {
	api          poster
	socketClient *socketmode.Client
	runner       channel.Runner
	logger       *zap.Logger
}

// NewBot creates a new Slack Socket Mode bot.
func NewBot(botToken, appToken string, runner channel.Runner, logger *zap.Logger) *Bot {
	if logger == nil {
		logger = zap.NewNop()
	}

	api := slack.New(
		botToken,
		slack.OptionAppLevelToken(appToken),
	)

	socketClient := socketmode.New(
		api,
		socketmode.OptionLog(log.New(zap.NewStdLog(logger).Writer(), "slack-socketmode: ", 0)),
	)

	return &Bot{
		api:          api,
		socketClient: socketClient,
		runner:       runner,
		logger:       logger,
	}
}

// Name returns the channel name.
func (b *Bot) Name() string { return "slack" }

// Run connects to Slack via Socket Mode and processes events.
func (b *Bot) Run(ctx context.Context) error {
	go b.eventLoop(ctx)
	b.logger.Info("slack bot connecting via Socket Mode")
	return b.socketClient.RunContext(ctx)
}

func (b *Bot) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-b.socketClient.Events:
			if !ok {
				return
			}
			b.handleEvent(ctx, evt)
		}
	}
}

func (b *Bot) handleEvent(ctx context.Context, evt socketmode.Event) {
	switch evt.Type {
	case socketmode.EventTypeConnecting:
		b.logger.Info("slack connecting")
	case socketmode.EventTypeConnected:
		b.logger.Info("slack connected")
	case socketmode.EventTypeConnectionError:
		b.logger.Warn("slack connection error, will retry")
	case socketmode.EventTypeEventsAPI:
		eventsAPIEvent, ok := evt.Data.(slackevents.EventsAPIEvent)
		if !ok {
			return
		}
		b.socketClient.Ack(*evt.Request)

		if eventsAPIEvent.Type == slackevents.CallbackEvent {
			if ev, ok := eventsAPIEvent.InnerEvent.Data.(*slackevents.AppMentionEvent); ok {
				go b.handleMention(ctx, ev)
			}
		}
	case socketmode.EventTypeInteractive:
		b.socketClient.Ack(*evt.Request)
	}
}

func (b *Bot) handleMention(ctx context.Context, ev *slackevents.AppMentionEvent) {
	text := mentionText(ev.Text)

	threadTS := ev.TimeStamp
	if ev.ThreadTimeStamp != "" {
		threadTS = ev.ThreadTimeStamp
	}

	req, err := channel.ParseRequest(text)
	if err != nil {
		b.postThread(ev.Channel, threadTS, "```"+channel.Usage+"```")
		return
	}

	result, err := b.runner.Run(ctx, req)
	if err != nil {
		b.logger.Warn("slack task failed",
			zap.String("channel", ev.Channel),
			zap.String("task", string(req.TaskType)),
			zap.Error(err),
		)
	}
	for _, chunk := range channel.Chunk(channel.ReplyText(result, err), maxMessageLen) {
		b.postThread(ev.Channel, threadTS, chunk)
	}
}

var mentionPattern = regexp.MustCompile(`<@[A-Z0-9]+(\|[^>]*)?>`)

// slackUnescape reverses the HTML escaping Slack applies to message text.
var slackUnescape = strings.NewReplacer("&lt;", "<", "&gt;", ">", "&amp;", "&")

// mentionText strips bot mentions and Slack's escaping from a message.
func mentionText(text string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	return strings.TrimSpace(slackUnescape.Replace(text))
}

func (b *Bot) postThread(channelID, threadTS, text string) {
	_, _, err := b.api.PostMessage(channelID,
		slack.MsgOptionText(text, false),
		slack.MsgOptionTS(threadTS),
	)
	if err != nil {
		b.logger.Warn("slack post failed", zap.String("channel", channelID), zap.Error(err))
	}
}
