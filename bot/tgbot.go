package bot

import (
	"FrappeBot/entity"
	"FrappeBot/internal/lib/sl"
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"github.com/PaulSonOfLars/gotgbot/v2/ext"
	"github.com/PaulSonOfLars/gotgbot/v2/ext/handlers"
)

const recentOrders = 5

// Operations is what the ops chat can ask of the service.
type Operations interface {
	ListOrders(query entity.OrderQuery) ([]entity.Order, error)
	ResetConversation(ctx context.Context, phone string) error
}

// TgBot is the operators' Telegram channel: it receives log alerts and
// answers a few commands from the admin chat. Its own logger must not
// forward to Telegram.
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
	ops         Operations
}

func NewTgBot(botName, apiKey string, adminId int64, log *slog.Logger) (*TgBot, error) {
	tgBot := &TgBot{
		log:         log.With(sl.Module("tgbot")),
		adminId:     adminId,
		botUsername: botName,
	}

	api, err := tgbotapi.NewBot(apiKey, nil)
	if err != nil {
		return nil, fmt.Errorf("creating api instance: %v", err)
	}
	tgBot.api = api

	return tgBot, nil
}

func (t *TgBot) SetOperations(ops Operations) {
	t.ops = ops
}

// Start polls for updates until ctx is done.
func (t *TgBot) Start(ctx context.Context) error {
	dispatcher := ext.NewDispatcher(&ext.DispatcherOpts{
		Error: func(b *tgbotapi.Bot, ctx *ext.Context, err error) ext.DispatcherAction {
			t.log.With(sl.Err(err)).Warn("handling telegram update")
			return ext.DispatcherActionNoop
		},
		MaxRoutines: ext.DefaultMaxRoutines,
	})
	updater := ext.NewUpdater(dispatcher, nil)

	dispatcher.AddHandler(handlers.NewCommand("start", t.handleStart))
	dispatcher.AddHandler(handlers.NewCommand("pedidos", t.handleOrders))
	dispatcher.AddHandler(handlers.NewCommand("reiniciar", t.handleReset))

	err := updater.StartPolling(t.api, &ext.PollingOpts{
		DropPendingUpdates: true,
		GetUpdatesOpts: &tgbotapi.GetUpdatesOpts{
			Timeout: 9,
			RequestOpts: &tgbotapi.RequestOpts{
				Timeout: time.Second * 10,
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to start polling: %w", err)
	}
	t.log.Info("alert bot started", slog.String("username", t.botUsername))

	<-ctx.Done()
	return updater.Stop()
}

// SendMessage posts an alert to the admin chat.
func (t *TgBot) SendMessage(msg string) {
	t.plainResponse(t.adminId, msg)
}

func (t *TgBot) handleStart(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatID := ctx.EffectiveChat.Id
	t.plainResponse(chatID, fmt.Sprintf("Chat id: %d", chatID))
	return nil
}

func (t *TgBot) handleOrders(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatID := ctx.EffectiveChat.Id
	if chatID != t.adminId || t.ops == nil {
		return nil
	}
	orders, err := t.ops.ListOrders(entity.OrderQuery{Limit: recentOrders})
	if err != nil {
		t.plainResponse(chatID, "No se pudieron leer los pedidos: "+err.Error())
		return nil
	}
	t.plainResponse(chatID, formatOrders(orders))
	return nil
}

func (t *TgBot) handleReset(_ *tgbotapi.Bot, ctx *ext.Context) error {
	chatID := ctx.EffectiveChat.Id
	if chatID != t.adminId || t.ops == nil {
		return nil
	}
	args := strings.Fields(ctx.EffectiveMessage.Text)
	if len(args) < 2 {
		t.plainResponse(chatID, "Uso: /reiniciar 5215512345678")
		return nil
	}
	if err := t.ops.ResetConversation(context.Background(), args[1]); err != nil {
		t.plainResponse(chatID, "Error: "+err.Error())
		return nil
	}
	t.plainResponse(chatID, "Conversación reiniciada: +"+args[1])
	return nil
}

func formatOrders(orders []entity.Order) string {
	if len(orders) == 0 {
		return "Sin pedidos."
	}
	var b strings.Builder
	for i, o := range orders {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "%s +%s\n%s · $%.2f · %s",
			o.Timestamp.Format("02/01 15:04"), o.From, o.PaymentMethod, o.Total, o.Status)
	}
	return b.String()
}

func (t *TgBot) plainResponse(chatId int64, text string) {
	sanitized := sanitize(text)
	if sanitized == "" {
		t.log.With(
			slog.Int64("id", chatId),
		).Debug("empty message")
		return
	}

	_, err := t.api.SendMessage(chatId, sanitized, &tgbotapi.SendMessageOpts{
		ParseMode: "MarkdownV2",
	})
	if err != nil {
		t.log.With(
			slog.Int64("id", chatId),
		).Warn("sending message", sl.Err(err))
		_, err = t.api.SendMessage(chatId, text, &tgbotapi.SendMessageOpts{})
		if err != nil {
			t.log.With(
				slog.Int64("id", chatId),
			).Error("sending plain message", sl.Err(err))
		}
	}
}

// sanitize escapes the characters MarkdownV2 reserves.
func sanitize(input string) string {
	const reservedChars = "\\`_{}#+-.!|()[]=>~"

	var b strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			b.WriteRune('\\')
		}
		b.WriteRune(char)
	}
	return b.String()
}
