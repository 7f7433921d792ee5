package bot

import (
	"FunnelRouter/entity"
	"FunnelRouter/internal/lib/sl"
	"fmt"
	tgbotapi "github.com/PaulSonOfLars/gotgbot/v2"
	"log/slog"
	"strings"
)

// TgBot delivers operator alerts about messages that could not be routed
type TgBot struct {
	log         *slog.Logger
	api         *tgbotapi.Bot
	botUsername string
	adminId     int64
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

// Alert reports a terminal pipeline failure to the admin chat.
func (t *TgBot) Alert(ev entity.PipelineEvent, cause error) {
	if t.adminId == 0 {
		return
	}
	t.plainResponse(t.adminId, alertText(ev, cause))
}

func (t *TgBot) SendMessage(msg string) {
	t.plainResponse(t.adminId, msg)
}

func alertText(ev entity.PipelineEvent, cause error) string {
	var b strings.Builder
	b.WriteString("*Message dropped*\n")
	fmt.Fprintf(&b, "kind: %s\n", ev.Kind)
	fmt.Fprintf(&b, "platform: %s\n", ev.Platform)
	if ev.ChannelID != "" {
		fmt.Fprintf(&b, "channel: %s\n", ev.ChannelID)
	}
	if ev.UserID != "" {
		fmt.Fprintf(&b, "user: %s\n", ev.UserID)
	}
	if ev.Key != "" {
		fmt.Fprintf(&b, "key: %s\n", ev.Key)
	}
	if cause != nil {
		fmt.Fprintf(&b, "error: %s", cause.Error())
	}
	return strings.TrimRight(b.String(), "\n")
}

func (t *TgBot) plainResponse(chatId int64, text string) {

	text = strings.ReplaceAll(text, "**", "*")

	sanitized := sanitize(text, false)

	if sanitized != "" {
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
				).Error("sending safe message", sl.Err(err))
			}
		}
	} else {
		t.log.With(
			slog.Int64("id", chatId),
		).Debug("empty message")
	}
}

func sanitize(input string, preserveLinks bool) string {
	// MarkdownV2 reserved characters; '*' is kept for bold
	reservedChars := "\\`_{}#+-.!|()[]=>~"
	if preserveLinks {
		reservedChars = "\\`_{}#+-.!|=>~"
	}

	var sanitized strings.Builder
	for _, char := range input {
		if strings.ContainsRune(reservedChars, char) {
			sanitized.WriteRune('\\')
		}
		sanitized.WriteRune(char)
	}

	return sanitized.String()
}
