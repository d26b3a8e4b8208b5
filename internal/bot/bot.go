// Package bot wires the Telegram transport to the digest pipeline.
package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"newshive/internal/config"
	"newshive/internal/logger"
	"newshive/internal/pipeline"
)

// sentArticle remembers what a delivered message was about so reaction
// callbacks can resolve it later.
type sentArticle struct {
	url  string
	tags []string
}

// Bot runs the Telegram long-polling loop and routes updates to the
// command handler.
type Bot struct {
	api     *tgbotapi.BotAPI
	handler *CommandHandler
	cfg     config.Telegram

	mu   sync.Mutex
	sent map[int]sentArticle // message ID -> article, for reaction callbacks
}

// New connects to the Telegram API.
func New(cfg config.Telegram, handler *CommandHandler) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	return &Bot{
		api:     api,
		handler: handler,
		cfg:     cfg,
		sent:    make(map[int]sentArticle),
	}, nil
}

// Run polls for updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	logger.Info("bot started", "username", b.api.Self.UserName)

	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = b.cfg.PollTimeout
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	}
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID
	chatID := msg.Chat.ID

	switch msg.Command() {
	case "start":
		b.sendText(chatID, b.handler.HandleStart(userID))
	case "help":
		b.sendText(chatID, b.handler.HandleHelp())
	case "digest":
		b.sendDigest(ctx, chatID, userID)
	case "settings":
		b.sendText(chatID, b.handler.HandleSettings(userID, msg.CommandArguments()))
	case "search":
		b.sendText(chatID, b.handler.HandleSearch(msg.CommandArguments()))
	case "stats":
		b.sendText(chatID, b.handler.HandleStats())
	default:
		b.sendText(chatID, "Unknown command. Try /help.")
	}
}

func (b *Bot) sendDigest(ctx context.Context, chatID, userID int64) {
	b.sendText(chatID, "Putting your digest together...")

	deliveries, errText := b.handler.HandleDigest(ctx, userID)
	if errText != "" {
		b.sendText(chatID, errText)
		return
	}

	for _, delivery := range deliveries {
		b.sendDelivery(chatID, delivery)
	}
}

// sendDelivery sends each chunk in order, attaching the rating buttons to
// the last one.
func (b *Bot) sendDelivery(chatID int64, delivery pipeline.Delivery) {
	for i, chunk := range delivery.Messages {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdownV2

		last := i == len(delivery.Messages)-1
		if last {
			msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
				tgbotapi.NewInlineKeyboardRow(
					tgbotapi.NewInlineKeyboardButtonData("👍", "like"),
					tgbotapi.NewInlineKeyboardButtonData("👎", "dislike"),
				),
			)
		}

		sent, err := b.api.Send(msg)
		if err != nil {
			logger.Warn("failed to send message", "chat_id", chatID, "error", err)
			continue
		}
		if last {
			b.mu.Lock()
			b.sent[sent.MessageID] = sentArticle{url: delivery.URL, tags: delivery.Tags}
			b.mu.Unlock()
		}
	}
}

func (b *Bot) handleCallback(query *tgbotapi.CallbackQuery) {
	if query.Message == nil {
		return
	}

	b.mu.Lock()
	article, ok := b.sent[query.Message.MessageID]
	b.mu.Unlock()

	ack := ""
	if ok {
		ack = b.handler.HandleReaction(query.From.ID, query.Data, article.url, article.tags)
	}
	if ack == "" {
		ack = "Thanks!"
	}

	callback := tgbotapi.NewCallback(query.ID, ack)
	if _, err := b.api.Request(callback); err != nil {
		logger.Warn("failed to answer callback", "error", err)
	}
}

func (b *Bot) sendText(chatID int64, text string) {
	if text == "" {
		return
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := b.api.Send(msg); err != nil {
		logger.Warn("failed to send message", "chat_id", chatID, "error", err)
	}
}
