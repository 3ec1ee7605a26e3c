package telegram

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lomik/zapwriter"
	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/pysal/release2news/db"
	"github.com/pysal/release2news/endpoints"
	"github.com/pysal/release2news/types"
)

const (
	TelegramEndpointName = "telegram"
)

type TelegramEndpoint struct {
	api     *telego.Bot
	chatIDs []int64
	db      db.Database

	logger   *zap.Logger
	tgLogger *tgLogger

	apiServer string
	timeout   time.Duration
}

func WithAPIServer(url string) *endpoints.ConfigParams {
	return &endpoints.ConfigParams{
		Name:  "api_server",
		Value: url,
	}
}

func WithTimeout(timeout time.Duration) *endpoints.ConfigParams {
	return &endpoints.ConfigParams{
		Name:  "timeout",
		Value: timeout.String(),
	}
}

func InitializeTelegramEndpoint(token string, chatIDs []int64, database db.Database, configParams ...*endpoints.ConfigParams) (*TelegramEndpoint, error) {
	logger := zapwriter.Logger(TelegramEndpointName)
	tgEndpointLogger, err := newTgLogger(logger, []string{token, "<TOKEN REDACTED>"})
	if err != nil {
		return nil, err
	}

	e := &TelegramEndpoint{
		chatIDs:  chatIDs,
		logger:   logger,
		db:       database,
		tgLogger: tgEndpointLogger,
		timeout:  30 * time.Second,
	}

	for _, param := range configParams {
		switch param.Name {
		case "api_server":
			if len(param.Value) > 0 {
				e.apiServer = param.Value
			}
		case "timeout":
			if len(param.Value) > 0 {
				e.timeout, err = time.ParseDuration(param.Value)
				if err != nil {
					return nil, errors.Wrap(err, "invalid timeout")
				}
			}
		default:
			return nil, fmt.Errorf("unknown config param %s", param.Name)
		}
	}

	opts := []telego.BotOption{
		telego.WithLogger(tgEndpointLogger),
		telego.WithHTTPClient(&http.Client{Timeout: e.timeout}),
	}
	if e.apiServer != "" {
		opts = append(opts, telego.WithAPIServer(e.apiServer))
	}

	e.api, err = telego.NewBot(token, opts...)
	if err != nil {
		return nil, errors.Wrap(err, "error initializing telegram bot")
	}

	return e, nil
}

// Process resends messages that were not delivered during previous runs
func (e *TelegramEndpoint) Process() error {
	logger := e.logger.With(zap.String("function", "processResendQueue"))
	messages, err := e.db.GetMessagesFromResendQueue()
	if err != nil {
		return errors.Wrap(err, "failed to get messages from resend queue")
	}
	if len(messages) == 0 {
		return nil
	}

	logger.Info("resending queued messages",
		zap.Int("messages", len(messages)),
	)

	var failed []*types.NotificationMessage
	for _, msg := range messages {
		err = e.sendMessage(msg.ChatID, msg.Message)
		if err != nil && e.checkError(err) {
			failed = append(failed, msg)
		}
	}

	return e.enqueue(failed)
}

func (e *TelegramEndpoint) Send(message string) error {
	logger := e.logger.With(zap.String("handler", "send"))

	var failed []*types.NotificationMessage
	var errs error
	for _, id := range e.chatIDs {
		err := e.sendMessage(id, message)
		if err == nil {
			continue
		}
		if !e.checkError(err) {
			logger.Warn("dropping message for chat",
				zap.Int64("ChatID", id),
				zap.String("reason", err.Error()),
			)
			errs = multierr.Append(errs, errors.Wrapf(err, "chat %d", id))
			continue
		}
		failed = append(failed, &types.NotificationMessage{ChatID: id, Message: message})
	}

	return multierr.Append(errs, e.enqueue(failed))
}

func (e *TelegramEndpoint) enqueue(messages []*types.NotificationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	err := e.db.AddMessagesToResendQueue(messages)
	if err != nil {
		e.logger.Error("failed to add messages to resend queue",
			zap.Error(err),
			zap.Any("messages_in_queue", messages),
		)
		return err
	}
	e.logger.Info("messages queued for resend",
		zap.Int("messages", len(messages)),
	)
	return nil
}

func (e *TelegramEndpoint) sendMessage(chatID int64, message string) error {
	msg := tu.Message(
		tu.ID(chatID),
		message,
	).WithParseMode(telego.ModeMarkdownV2)

	_, err := e.api.SendMessage(msg)
	if err != nil {
		e.logger.Error("failed to send Message",
			zap.Int64("chat_id", chatID),
			zap.Error(err),
		)
	}
	return err
}

// checkError returns false if message can never be delivered to the chat
func (e *TelegramEndpoint) checkError(err error) bool {
	if strings.Contains(err.Error(), "chat not found") ||
		strings.Contains(err.Error(), "bot was kicked") ||
		strings.Contains(err.Error(), "not enough rights to send text messages") {
		return false
	}

	return true
}

func (e *TelegramEndpoint) Announce(pkg string, release types.Release, link string) error {
	return e.Send(FormatRelease(pkg, release, link))
}

func (e *TelegramEndpoint) Close() error {
	return nil
}

// FormatRelease returns MarkdownV2 announcement for the release
func FormatRelease(pkg string, release types.Release, link string) string {
	title := types.MdReplacer.Replace(pkg + " " + release.Version() + " released")
	link = strings.NewReplacer("\\", "\\\\", ")", "\\)").Replace(link)
	return "*" + title + "*\n[Release notes](" + link + ")"
}
