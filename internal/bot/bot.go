package bot

import (
	"context"
	"log/slog"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"fuelbot/internal/session"
)

// Bot runs the Telegram long-polling loop and feeds updates to the Handler.
type Bot struct {
	api      *tgbotapi.BotAPI
	handler  *Handler
	sessions *session.Store
	logger   *slog.Logger
	keyboard tgbotapi.ReplyKeyboardMarkup
}

// New connects to the Telegram API with the given token.
func New(token string, handler *Handler, sessions *session.Store, logger *slog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}

	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonPurchase),
			tgbotapi.NewKeyboardButton(ButtonVehicleRefuel),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonGeneratorRefuel),
			tgbotapi.NewKeyboardButton(ButtonGeneratorInfo),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonBalance),
			tgbotapi.NewKeyboardButton(ButtonHistory),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(ButtonTemplates),
		),
	)
	keyboard.ResizeKeyboard = true

	return &Bot{
		api:      api,
		handler:  handler,
		sessions: sessions,
		logger:   logger.With("component", "telegram"),
		keyboard: keyboard,
	}, nil
}

// Run polls for updates until ctx is canceled. Updates are handled in their
// own goroutines; the per-user session lock serializes events for the same
// user so step transitions cannot interleave.
func (b *Bot) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("bot started", "username", b.api.Self.UserName)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			b.logger.Info("bot stopped")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.Message == nil || update.Message.From == nil {
				continue
			}
			go b.handleMessage(ctx, update.Message)
		}
	}
}

// handleMessage converts one Telegram message to an Event, runs the dialog
// and sends the replies. A panic in the dialog discards the user's session
// and never takes down the polling loop.
func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	userID := msg.From.ID

	b.sessions.Lock(userID)
	defer b.sessions.Unlock(userID)

	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("panic in message handler", "user", userID, "panic", r)
			b.sessions.Clear(userID)
			b.send(msg.Chat.ID, Reply{Text: replyWriteFailed})
		}
	}()

	ev := b.toEvent(msg)
	for _, reply := range b.handler.Handle(ctx, ev) {
		b.send(msg.Chat.ID, reply)
	}
}

func (b *Bot) toEvent(msg *tgbotapi.Message) Event {
	ev := Event{
		UserID: msg.From.ID,
		User:   displayName(msg.From),
		Text:   msg.Text,
	}

	// A photo message carries its text in the caption.
	if ev.Text == "" {
		ev.Text = msg.Caption
	}

	if msg.IsCommand() {
		ev.Command = msg.Command()
		ev.Args = strings.Fields(msg.CommandArguments())
	}

	if len(msg.Photo) > 0 {
		// The last size is the largest.
		fileID := msg.Photo[len(msg.Photo)-1].FileID
		url, err := b.api.GetFileDirectURL(fileID)
		if err != nil {
			b.logger.Warn("photo file lookup failed", "user", msg.From.ID, "error", err)
		} else {
			ev.PhotoURL = url
		}
	}

	return ev
}

func (b *Bot) send(chatID int64, reply Reply) {
	out := tgbotapi.NewMessage(chatID, reply.Text)
	if reply.Keyboard {
		out.ReplyMarkup = b.keyboard
	}
	if _, err := b.api.Send(out); err != nil {
		b.logger.Error("send failed", "chat", chatID, "error", err)
	}
}

func displayName(u *tgbotapi.User) string {
	if u.UserName != "" {
		return u.UserName
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}
