package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nutribot/internal/adapter/memory"
	"nutribot/internal/config"
	"nutribot/internal/domain"
	"nutribot/internal/usecase/chat"
)

type fakeAPI struct {
	mu            sync.Mutex
	sent          []tgbotapi.Chattable
	requests      []tgbotapi.Chattable
	nextID        int
	failDocuments bool
}

func (f *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := c.(tgbotapi.DocumentConfig); ok && f.failDocuments {
		return tgbotapi.Message{}, errors.New("upload rejected")
	}
	f.sent = append(f.sent, c)
	f.nextID++
	return tgbotapi.Message{MessageID: 1000 + f.nextID}, nil
}

func (f *fakeAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return make(chan tgbotapi.Update)
}

func (f *fakeAPI) StopReceivingUpdates() {}

func (f *fakeAPI) sentTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []string
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m.Text)
		}
	}
	return out
}

func (f *fakeAPI) lastSent() tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sent[len(f.sent)-1].(tgbotapi.MessageConfig)
}

func newTestBot(t *testing.T, cfg config.TelegramConfig, advice string) (*Bot, *fakeAPI, *chat.Service) {
	t.Helper()
	store := memory.NewStore(domain.Message{ID: "welcome", Role: domain.RoleAssistant, Content: "Hello!"})
	svc := chat.NewService(store, domain.AdvisorFunc(func(context.Context, string) (string, error) {
		return advice, nil
	}))
	api := &fakeAPI{}
	return newBot(api, cfg, svc), api, svc
}

func textMessage(userID, chatID int64, messageID int, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: messageID,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: chatID},
		Text:      text,
	}
}

func TestMessageRoundTripDeliversReplyWithButtons(t *testing.T) {
	bot, api, svc := newTestBot(t, config.TelegramConfig{}, "Eat more fiber")

	bot.handleMessage(context.Background(), textMessage(1, 77, 5, "what should I eat?"))
	svc.Wait()

	msgs := svc.Messages()
	require.Len(t, msgs, 3)
	reply := msgs[2]
	bot.handleEvent(domain.Event{Type: domain.EventMessageAppended, Message: &reply})

	sent := api.lastSent()
	assert.Equal(t, int64(77), sent.ChatID)
	assert.Equal(t, "Eat more fiber", sent.Text)
	assert.Equal(t, 5, sent.ReplyToMessageID)
	require.IsType(t, tgbotapi.InlineKeyboardMarkup{}, sent.ReplyMarkup)

	// replaying the event does not resend
	bot.handleEvent(domain.Event{Type: domain.EventMessageAppended, Message: &reply})
	assert.Len(t, api.sentTexts(), 1)
}

func TestLongReplyIsSentAsDocument(t *testing.T) {
	advice := strings.Repeat("kale ", chunkSize)
	bot, api, svc := newTestBot(t, config.TelegramConfig{}, advice)

	bot.handleMessage(context.Background(), textMessage(1, 77, 5, "give me everything"))
	svc.Wait()
	reply := svc.Messages()[2]
	bot.handleEvent(domain.Event{Type: domain.EventMessageAppended, Message: &reply})

	api.mu.Lock()
	require.Len(t, api.sent, 1)
	doc, ok := api.sent[0].(tgbotapi.DocumentConfig)
	api.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, int64(77), doc.ChatID)
	assert.Equal(t, 5, doc.ReplyToMessageID)
	file, ok := doc.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, documentName, file.Name)
	assert.Equal(t, advice, string(file.Bytes))
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, doc.ReplyMarkup)

	// the document carries the buttons, so feedback edits target it
	bot.handleCallback(&tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 1}, Data: callbackData(actionLike, reply.ID)})
	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.requests, 2)
	edit, ok := api.requests[0].(tgbotapi.EditMessageReplyMarkupConfig)
	require.True(t, ok)
	assert.Equal(t, 1001, edit.MessageID)
}

func TestLongReplyFallsBackToTextWhenUploadFails(t *testing.T) {
	bot, api, _ := newTestBot(t, config.TelegramConfig{}, "ok")
	api.failDocuments = true
	bot.bindChat(77)
	long := domain.Message{ID: "a1", Role: domain.RoleAssistant, Content: strings.Repeat("x", chunkSize+10)}

	bot.deliver(long)

	texts := api.sentTexts()
	require.Len(t, texts, 2)
	assert.Equal(t, long.Content, strings.Join(texts, ""))
	assert.IsType(t, tgbotapi.InlineKeyboardMarkup{}, api.lastSent().ReplyMarkup)
}

func TestUserMessagesAreNotEchoed(t *testing.T) {
	bot, api, _ := newTestBot(t, config.TelegramConfig{}, "ok")
	bot.bindChat(77)
	user := domain.Message{ID: "u1", Role: domain.RoleUser, Content: "hi"}
	bot.handleEvent(domain.Event{Type: domain.EventMessageAppended, Message: &user})
	assert.Empty(t, api.sentTexts())
}

func TestCallbackTogglesFeedbackAndRedrawsButtons(t *testing.T) {
	bot, api, svc := newTestBot(t, config.TelegramConfig{}, "ok")
	bot.bindChat(77)
	welcome, _ := svc.Message("welcome")
	bot.deliver(welcome)

	bot.handleCallback(&tgbotapi.CallbackQuery{ID: "cb1", From: &tgbotapi.User{ID: 1}, Data: "like:welcome"})

	m, _ := svc.Message("welcome")
	assert.True(t, m.Liked)

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.requests, 2)
	edit, ok := api.requests[0].(tgbotapi.EditMessageReplyMarkupConfig)
	require.True(t, ok)
	assert.Equal(t, 1001, edit.MessageID)
	assert.Equal(t, "👍 ✓", edit.ReplyMarkup.InlineKeyboard[0][0].Text)
	answer, ok := api.requests[1].(tgbotapi.CallbackConfig)
	require.True(t, ok)
	assert.Equal(t, "cb1", answer.CallbackQueryID)
}

func TestCallbackForUnknownMessage(t *testing.T) {
	bot, api, _ := newTestBot(t, config.TelegramConfig{}, "ok")

	bot.handleCallback(&tgbotapi.CallbackQuery{ID: "cb", From: &tgbotapi.User{ID: 1}, Data: "dislike:nope"})

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.requests, 1)
	assert.Equal(t, unknownFeedback, api.requests[0].(tgbotapi.CallbackConfig).Text)
}

func TestAccessControl(t *testing.T) {
	cfg := config.TelegramConfig{AdminUserIDs: []int64{1}, AllowedUserIDs: []int64{2}}
	assert.True(t, isAllowedUser(1, cfg))
	assert.True(t, isAllowedUser(2, cfg))
	assert.False(t, isAllowedUser(3, cfg))
	assert.True(t, isAllowedUser(3, config.TelegramConfig{}))

	bot, api, svc := newTestBot(t, cfg, "ok")
	bot.handleMessage(context.Background(), textMessage(3, 77, 1, "hi"))
	assert.Equal(t, []string{accessDenied}, api.sentTexts())
	assert.Len(t, svc.Messages(), 1)
}

func TestSessionBindsToFirstChat(t *testing.T) {
	bot, api, svc := newTestBot(t, config.TelegramConfig{}, "ok")

	bot.handleMessage(context.Background(), textMessage(1, 77, 1, "hi"))
	svc.Wait()
	bot.handleMessage(context.Background(), textMessage(2, 88, 1, "me too"))

	assert.Equal(t, []string{otherChatText}, api.sentTexts())
	assert.Len(t, svc.Messages(), 3)
}

func TestBusyWhilePending(t *testing.T) {
	release := make(chan struct{})
	store := memory.NewStore(domain.Message{ID: "welcome", Role: domain.RoleAssistant, Content: "Hello!"})
	svc := chat.NewService(store, domain.AdvisorFunc(func(context.Context, string) (string, error) {
		<-release
		return "ok", nil
	}))
	api := &fakeAPI{}
	bot := newBot(api, config.TelegramConfig{}, svc)

	bot.handleMessage(context.Background(), textMessage(1, 77, 1, "first"))
	bot.handleMessage(context.Background(), textMessage(1, 77, 2, "second"))
	close(release)
	svc.Wait()

	assert.Equal(t, []string{busyText}, api.sentTexts())
	assert.Len(t, svc.Messages(), 3)
}

func TestStartSendsWelcomeWithSuggestions(t *testing.T) {
	bot, api, _ := newTestBot(t, config.TelegramConfig{}, "ok")
	msg := textMessage(1, 77, 1, "/start")
	msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len("/start")}}

	bot.handleMessage(context.Background(), msg)

	sent := api.lastSent()
	assert.Equal(t, "Hello!", sent.Text)
	keyboard, ok := sent.ReplyMarkup.(tgbotapi.ReplyKeyboardMarkup)
	require.True(t, ok)
	assert.Len(t, keyboard.Keyboard, len(chat.QuickSuggestions))
}

func TestPendingEventSendsTyping(t *testing.T) {
	release := make(chan struct{})
	store := memory.NewStore()
	svc := chat.NewService(store, domain.AdvisorFunc(func(context.Context, string) (string, error) {
		<-release
		return "ok", nil
	}))
	api := &fakeAPI{}
	bot := newBot(api, config.TelegramConfig{}, svc)

	bot.handleMessage(context.Background(), textMessage(1, 77, 1, "hi"))
	bot.handleEvent(domain.Event{Type: domain.EventPendingChanged, Pending: true})
	close(release)
	svc.Wait()
	bot.handleEvent(domain.Event{Type: domain.EventPendingChanged})

	api.mu.Lock()
	defer api.mu.Unlock()
	require.Len(t, api.requests, 1)
	action, ok := api.requests[0].(tgbotapi.ChatActionConfig)
	require.True(t, ok)
	assert.Equal(t, tgbotapi.ChatTyping, action.Action)
}

func TestParseCallbackData(t *testing.T) {
	action, id, ok := parseCallbackData(callbackData(actionDislike, "0190-abc"))
	require.True(t, ok)
	assert.Equal(t, actionDislike, action)
	assert.Equal(t, "0190-abc", id)

	for _, bad := range []string{"", "like", "like:", "share:x"} {
		_, _, ok := parseCallbackData(bad)
		assert.False(t, ok, bad)
	}
	assert.LessOrEqual(t, len(callbackData(actionDislike, chat.NewMessageID())), 64)
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))

	long := strings.Repeat("é", 25)
	chunks := splitText(long, 10)
	require.Len(t, chunks, 3)
	assert.Equal(t, long, strings.Join(chunks, ""))
}
