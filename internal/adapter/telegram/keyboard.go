package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"nutribot/internal/domain"
)

const (
	actionLike    = "like"
	actionDislike = "dislike"
)

func feedbackKeyboard(m domain.Message) tgbotapi.InlineKeyboardMarkup {
	like, dislike := "👍", "👎"
	if m.Liked {
		like = "👍 ✓"
	}
	if m.Disliked {
		dislike = "👎 ✓"
	}
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(like, callbackData(actionLike, m.ID)),
		tgbotapi.NewInlineKeyboardButtonData(dislike, callbackData(actionDislike, m.ID)),
	))
}

// callbackData must stay within telegram's 64 byte limit, which holds for
// uuid message ids.
func callbackData(action, id string) string {
	return action + ":" + id
}

func parseCallbackData(data string) (action, id string, ok bool) {
	action, id, found := strings.Cut(data, ":")
	if !found || id == "" {
		return "", "", false
	}
	switch action {
	case actionLike, actionDislike:
		return action, id, true
	}
	return "", "", false
}
