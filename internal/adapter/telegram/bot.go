package telegram

import (
	"context"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"nutribot/internal/config"
	"nutribot/internal/domain"
	"nutribot/internal/usecase/chat"
)

const (
	chunkSize      = 2048
	typingInterval = 4 * time.Second

	busyText        = "Still thinking about your last question, hang on."
	otherChatText   = "This assistant is already talking to someone else."
	accessDenied    = "access denied"
	unknownFeedback = "That message is gone."
	emptyReplyText  = "(no answer)"
	documentName    = "response.md"
)

// Session is what the bot needs from the session controller.
type Session interface {
	Submit(ctx context.Context, text string) bool
	Like(id string) bool
	Dislike(id string) bool
	Messages() []domain.Message
	Message(id string) (domain.Message, bool)
	IsPending() bool
	ShowSuggestions() bool
}

type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot exposes one session over Telegram. The session binds to the first
// chat that writes to the bot.
type Bot struct {
	api     botAPI
	cfg     config.TelegramConfig
	session Session

	mu      sync.Mutex
	chatID  int64
	replyTo int
	// sent maps assistant message ids to the telegram message carrying their buttons.
	sent map[string]int
}

func NewBot(cfg config.TelegramConfig, session Session) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		return nil, errors.Wrap(err, "connect to telegram")
	}
	log.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return newBot(api, cfg, session), nil
}

func newBot(api botAPI, cfg config.TelegramConfig, session Session) *Bot {
	return &Bot{
		api:     api,
		cfg:     cfg,
		session: session,
		sent:    make(map[string]int),
	}
}

func (b *Bot) Run(ctx context.Context, events <-chan domain.Event) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	defer b.api.StopReceivingUpdates()

	typing := time.NewTicker(typingInterval)
	defer typing.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return errors.New("telegram updates channel closed")
			}
			b.handleUpdate(ctx, update)
		case e, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			b.handleEvent(e)
		case <-typing.C:
			if b.session.IsPending() {
				b.sendTyping()
			}
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(update.CallbackQuery)
	case update.Message != nil && update.Message.From != nil:
		b.handleMessage(ctx, update.Message)
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if !isAllowedUser(msg.From.ID, b.cfg) {
		b.sendText(msg.Chat.ID, msg.MessageID, accessDenied, nil)
		return
	}
	if !b.bindChat(msg.Chat.ID) {
		b.sendText(msg.Chat.ID, msg.MessageID, otherChatText, nil)
		return
	}

	if msg.IsCommand() {
		switch msg.Command() {
		case "start", "help":
			b.sendWelcome(msg.Chat.ID)
		default:
			b.sendText(msg.Chat.ID, msg.MessageID, "Unknown command. Just ask me about food.", nil)
		}
		return
	}

	if !b.session.Submit(ctx, msg.Text) {
		if b.session.IsPending() {
			b.sendText(msg.Chat.ID, msg.MessageID, busyText, nil)
		}
		return
	}

	b.mu.Lock()
	b.replyTo = msg.MessageID
	b.mu.Unlock()
}

func (b *Bot) handleCallback(cq *tgbotapi.CallbackQuery) {
	answer := ""
	defer func() {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, answer)); err != nil {
			log.Warn().Err(err).Msg("failed to answer callback query")
		}
	}()

	if cq.From == nil || !isAllowedUser(cq.From.ID, b.cfg) {
		answer = accessDenied
		return
	}

	action, id, ok := parseCallbackData(cq.Data)
	if !ok {
		answer = unknownFeedback
		return
	}

	var changed bool
	switch action {
	case actionLike:
		changed = b.session.Like(id)
	case actionDislike:
		changed = b.session.Dislike(id)
	}
	if !changed {
		answer = unknownFeedback
		return
	}

	m, _ := b.session.Message(id)
	switch {
	case m.Liked:
		answer = "Glad it helped!"
	case m.Disliked:
		answer = "Thanks, noted."
	}
	b.updateKeyboard(m)
}

func (b *Bot) handleEvent(e domain.Event) {
	switch e.Type {
	case domain.EventPendingChanged:
		if b.session.IsPending() {
			b.sendTyping()
		}
	case domain.EventMessageAppended:
		if e.Message == nil || !e.Message.IsAssistant() {
			return
		}
		b.deliver(*e.Message)
	}
}

// deliver sends an assistant message to the bound chat with feedback buttons
// on its last chunk.
func (b *Bot) deliver(m domain.Message) {
	b.mu.Lock()
	chatID, replyTo := b.chatID, b.replyTo
	_, done := b.sent[m.ID]
	b.mu.Unlock()
	if chatID == 0 || done {
		return
	}

	content := m.Content
	if strings.TrimSpace(content) == "" {
		content = emptyReplyText
	}
	keyboard := feedbackKeyboard(m)

	var id int
	if shouldSendAsFile(content) {
		var err error
		if id, err = b.sendAsFile(chatID, replyTo, content, keyboard); err != nil {
			log.Warn().Err(err).Str("message_id", m.ID).Msg("failed to send reply as file, sending text")
			id = b.sendText(chatID, replyTo, content, keyboard)
		}
	} else {
		id = b.sendText(chatID, replyTo, content, keyboard)
	}
	if id != 0 {
		b.mu.Lock()
		b.sent[m.ID] = id
		b.mu.Unlock()
	}
}

func (b *Bot) updateKeyboard(m domain.Message) {
	b.mu.Lock()
	chatID := b.chatID
	messageID, ok := b.sent[m.ID]
	b.mu.Unlock()
	if !ok {
		return
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, feedbackKeyboard(m))
	if _, err := b.api.Request(edit); err != nil {
		log.Warn().Err(err).Str("message_id", m.ID).Msg("failed to update feedback buttons")
	}
}

func (b *Bot) sendWelcome(chatID int64) {
	msgs := b.session.Messages()
	if len(msgs) == 0 {
		return
	}
	welcome := msgs[0]

	if b.session.ShowSuggestions() {
		rows := make([][]tgbotapi.KeyboardButton, 0, len(chat.QuickSuggestions))
		for _, s := range chat.QuickSuggestions {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(s)))
		}
		keyboard := tgbotapi.NewReplyKeyboard(rows...)
		keyboard.OneTimeKeyboard = true
		keyboard.ResizeKeyboard = true
		b.sendText(chatID, 0, welcome.Content, keyboard)
		return
	}
	b.sendText(chatID, 0, welcome.Content, nil)
}

func (b *Bot) bindChat(chatID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.chatID == 0 {
		b.chatID = chatID
		log.Info().Int64("chat_id", chatID).Msg("session bound to chat")
	}
	return b.chatID == chatID
}

// sendText sends text in chunks, attaching markup to the last one, and
// returns the telegram id of that last chunk (0 on failure).
func (b *Bot) sendText(chatID int64, replyTo int, text string, markup interface{}) int {
	chunks := splitText(text, chunkSize)
	lastID := 0
	for idx, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if idx == 0 && replyTo != 0 {
			msg.ReplyToMessageID = replyTo
		}
		if idx == len(chunks)-1 && markup != nil {
			msg.ReplyMarkup = markup
		}

		sent, err := b.api.Send(msg)
		if err != nil {
			// model output is not always valid telegram markdown
			msg.ParseMode = ""
			sent, err = b.api.Send(msg)
		}
		if err != nil {
			log.Warn().Err(err).Int64("chat_id", chatID).Msg("failed to send reply")
			return 0
		}
		lastID = sent.MessageID
	}
	return lastID
}

// sendAsFile sends content as a markdown document and returns its telegram id.
func (b *Bot) sendAsFile(chatID int64, replyTo int, content string, markup interface{}) (int, error) {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{
		Name:  documentName,
		Bytes: []byte(content),
	})
	if replyTo != 0 {
		doc.ReplyToMessageID = replyTo
	}
	doc.ReplyMarkup = markup

	sent, err := b.api.Send(doc)
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func shouldSendAsFile(text string) bool {
	return len([]rune(text)) > chunkSize
}

func (b *Bot) sendTyping() {
	b.mu.Lock()
	chatID := b.chatID
	b.mu.Unlock()
	if chatID == 0 {
		return
	}
	if _, err := b.api.Request(tgbotapi.NewChatAction(chatID, tgbotapi.ChatTyping)); err != nil {
		log.Debug().Err(err).Msg("failed to send chat action")
	}
}

func isAllowedUser(userID int64, cfg config.TelegramConfig) bool {
	for _, id := range cfg.AdminUserIDs {
		if id == userID {
			return true
		}
	}

	if len(cfg.AllowedUserIDs) == 0 {
		return true
	}

	for _, id := range cfg.AllowedUserIDs {
		if id == userID {
			return true
		}
	}

	return false
}

func splitText(text string, chunkSize int) []string {
	if chunkSize <= 0 {
		return []string{text}
	}

	runes := []rune(text)
	if len(runes) <= chunkSize {
		return []string{text}
	}

	chunks := make([]string, 0, len(runes)/chunkSize+1)
	for start := 0; start < len(runes); start += chunkSize {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
	}

	return chunks
}
