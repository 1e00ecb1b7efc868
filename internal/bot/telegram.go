package bot

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram is the messaging surface the handler drives. It is an
// interface so tests can capture outgoing traffic without a live bot.
type Telegram interface {
	SendMessage(chatID int64, text string) error
	SendMarkdown(chatID int64, text string) error
	SendMarkdownWithKeyboard(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error)
	EditMarkdown(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error
	EditKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error
	SendDocument(chatID int64, fileName string, data []byte, caption string) error
	DeleteMessage(chatID int64, messageID int) error
	AnswerCallback(callbackID, text string) error
	AnswerInline(queryID string, results []interface{}) error
	FileReader(ctx context.Context, fileID string) (io.ReadCloser, error)
}

// Client wraps the Telegram Bot API.
type Client struct {
	api        *tgbotapi.BotAPI
	fileClient *http.Client
}

var _ Telegram = (*Client)(nil)

// NewClient creates a new Telegram client with the given bot token.
func NewClient(token string) (*Client, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot API: %w", err)
	}

	return &Client{
		api: api,
		// Video downloads can be large, so this client gets a much
		// longer timeout than ordinary API calls.
		fileClient: &http.Client{Timeout: 2 * time.Minute},
	}, nil
}

// Username returns the bot's own username as reported by Telegram.
func (c *Client) Username() string {
	return c.api.Self.UserName
}

// GetUpdates returns a channel of updates from Telegram.
func (c *Client) GetUpdates() tgbotapi.UpdatesChannel {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	return c.api.GetUpdatesChan(u)
}

// StopReceivingUpdates stops the update polling loop.
func (c *Client) StopReceivingUpdates() {
	c.api.StopReceivingUpdates()
}

// SendMessage sends a plain text message to the given chat.
func (c *Client) SendMessage(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send message: %w", err)
	}
	return nil
}

// SendMarkdown sends a MarkdownV2-formatted message to the given chat.
func (c *Client) SendMarkdown(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if _, err := c.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send markdown message: %w", err)
	}
	return nil
}

// SendMarkdownWithKeyboard sends a MarkdownV2 message with an optional
// inline keyboard and returns the id of the sent message so it can be
// edited later.
func (c *Client) SendMarkdownWithKeyboard(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdownV2
	msg.DisableWebPagePreview = true
	if keyboard != nil {
		msg.ReplyMarkup = *keyboard
	}
	sent, err := c.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("failed to send markdown message: %w", err)
	}
	return sent.MessageID, nil
}

// EditMarkdown replaces the text (and optionally the keyboard) of a
// previously sent message.
func (c *Client) EditMarkdown(chatID int64, messageID int, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	edit.ParseMode = tgbotapi.ModeMarkdownV2
	edit.DisableWebPagePreview = true
	edit.ReplyMarkup = keyboard
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit message: %w", err)
	}
	return nil
}

// EditKeyboard replaces only the inline keyboard of a previously sent
// message, leaving its text untouched.
func (c *Client) EditKeyboard(chatID int64, messageID int, keyboard tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, keyboard)
	if _, err := c.api.Send(edit); err != nil {
		return fmt.Errorf("failed to edit keyboard: %w", err)
	}
	return nil
}

// SendDocument uploads a file from memory as a document attachment.
func (c *Client) SendDocument(chatID int64, fileName string, data []byte, caption string) error {
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: fileName, Bytes: data})
	doc.Caption = caption
	if _, err := c.api.Send(doc); err != nil {
		return fmt.Errorf("failed to send document: %w", err)
	}
	return nil
}

// DeleteMessage removes a message from a chat. Used to scrub messages
// containing credentials.
func (c *Client) DeleteMessage(chatID int64, messageID int) error {
	del := tgbotapi.NewDeleteMessage(chatID, messageID)
	if _, err := c.api.Request(del); err != nil {
		return fmt.Errorf("failed to delete message: %w", err)
	}
	return nil
}

// AnswerCallback acknowledges a callback query with a short toast.
func (c *Client) AnswerCallback(callbackID, text string) error {
	cb := tgbotapi.NewCallback(callbackID, text)
	if _, err := c.api.Request(cb); err != nil {
		return fmt.Errorf("failed to answer callback: %w", err)
	}
	return nil
}

// AnswerInline responds to an inline query with the given results.
func (c *Client) AnswerInline(queryID string, results []interface{}) error {
	answer := tgbotapi.InlineConfig{
		InlineQueryID: queryID,
		Results:       results,
		CacheTime:     1,
		IsPersonal:    true,
	}
	if _, err := c.api.Request(answer); err != nil {
		return fmt.Errorf("failed to answer inline query: %w", err)
	}
	return nil
}

// FileReader opens a download stream for a file previously sent to the
// bot. The caller must close the returned reader.
func (c *Client) FileReader(ctx context.Context, fileID string) (io.ReadCloser, error) {
	url, err := c.api.GetFileDirectURL(fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve file URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create download request: %w", err)
	}

	resp, err := c.fileClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download file: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("failed to download file: unexpected status %d", resp.StatusCode)
	}

	return resp.Body, nil
}
