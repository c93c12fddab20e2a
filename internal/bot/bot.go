// Package bot sends planned operations through the Telegram Bot API.
package bot

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/xaenox/notegram/internal/formatter"
	"github.com/xaenox/notegram/internal/models"
	"github.com/xaenox/notegram/internal/plan"
	"go.uber.org/zap"
)

type Config struct {
	// APIEndpoint is a format string taking the token and the method, as
	// tgbotapi.APIEndpoint. Empty means the public Bot API.
	APIEndpoint string
	Timeout     time.Duration
	// MaxBots bounds the number of authorized bots kept between sends.
	MaxBots int
}

const defaultMaxBots = 16

// Client keeps one BotAPI per bot token, evicting the least recently used.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *zap.Logger

	mu   sync.Mutex
	apis *lru.Cache[string, *tgbotapi.BotAPI]
}

func New(cfg Config, logger *zap.Logger) *Client {
	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxBots := cfg.MaxBots
	if maxBots <= 0 {
		maxBots = defaultMaxBots
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	// lru.New only fails on a non-positive size.
	apis, _ := lru.New[string, *tgbotapi.BotAPI](maxBots)

	return &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
		apis:       apis,
	}
}

// Send performs the single API call for op. files holds the bytes of
// op.Files() in the same order.
func (c *Client) Send(ctx context.Context, creds models.Credentials, op plan.Operation, files []models.FileData) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if want := len(op.Files()); want != len(files) {
		return fmt.Errorf("operation needs %d files, got %d", want, len(files))
	}

	api, err := c.api(creds.BotToken)
	if err != nil {
		return err
	}

	switch o := op.(type) {
	case plan.TextMessage:
		err = c.sendText(api, creds.ChatID, o)
	case plan.SingleMedia:
		err = c.sendSingle(api, creds.ChatID, o, files[0])
	case plan.MediaGroup:
		err = c.sendGroup(api, creds.ChatID, o, files)
	default:
		return fmt.Errorf("unsupported operation %T", op)
	}
	if err != nil {
		return transportError(err)
	}

	return nil
}

func (c *Client) api(token string) (*tgbotapi.BotAPI, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if api, ok := c.apis.Get(token); ok {
		return api, nil
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, c.endpoint, c.httpClient)
	if err != nil {
		return nil, transportError(fmt.Errorf("failed to create bot: %w", err))
	}
	c.logger.Debug("Authorized bot", zap.String("username", api.Self.UserName))

	c.apis.Add(token, api)
	return api, nil
}

func (c *Client) sendText(api *tgbotapi.BotAPI, chatID string, msg plan.TextMessage) error {
	params := tgbotapi.Params{"chat_id": chatID}
	params.AddNonEmpty("text", msg.Text)
	params.AddNonEmpty("parse_mode", formatter.ParseMode)
	params.AddBool("disable_notification", msg.Silent)

	_, err := api.MakeRequest("sendMessage", params)
	return err
}

func (c *Client) sendSingle(api *tgbotapi.BotAPI, chatID string, media plan.SingleMedia, file models.FileData) error {
	params := tgbotapi.Params{"chat_id": chatID}
	if media.Caption != "" {
		params.AddNonEmpty("caption", media.Caption)
		params.AddNonEmpty("parse_mode", formatter.ParseMode)
		// Only photos can show the caption above the media.
		params.AddBool("show_caption_above_media", media.CaptionAbove && media.Kind == plan.Photo)
	}
	params.AddBool("disable_notification", media.Silent)

	method, field := "sendDocument", "document"
	if media.Kind == plan.Photo {
		method, field = "sendPhoto", "photo"
	}

	_, err := api.UploadFiles(method, params, []tgbotapi.RequestFile{{
		Name: field,
		Data: tgbotapi.FileBytes{Name: file.Name, Bytes: file.Bytes},
	}})
	return err
}

// inputMedia is one element of the sendMediaGroup media array.
type inputMedia struct {
	Type                  string `json:"type"`
	Media                 string `json:"media"`
	Caption               string `json:"caption,omitempty"`
	ParseMode             string `json:"parse_mode,omitempty"`
	ShowCaptionAboveMedia bool   `json:"show_caption_above_media,omitempty"`
}

func (c *Client) sendGroup(api *tgbotapi.BotAPI, chatID string, group plan.MediaGroup, files []models.FileData) error {
	media := make([]inputMedia, len(files))
	uploads := make([]tgbotapi.RequestFile, len(files))

	for i, file := range files {
		name := fmt.Sprintf("file-%d", i)
		media[i] = inputMedia{Type: string(group.Kind), Media: "attach://" + name}
		uploads[i] = tgbotapi.RequestFile{
			Name: name,
			Data: tgbotapi.FileBytes{Name: file.Name, Bytes: file.Bytes},
		}
	}
	if group.Caption != "" {
		media[0].Caption = group.Caption
		media[0].ParseMode = formatter.ParseMode
		media[0].ShowCaptionAboveMedia = group.CaptionAbove && group.Kind == plan.Photo
	}

	params := tgbotapi.Params{"chat_id": chatID}
	params.AddBool("disable_notification", group.Silent)
	if err := params.AddInterface("media", media); err != nil {
		return err
	}

	_, err := api.UploadFiles("sendMediaGroup", params, uploads)
	return err
}

// transportError keeps the description the Bot API returned.
func transportError(err error) error {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return &models.TransportError{Code: apiErr.Code, Description: apiErr.Message, Err: err}
	}
	var te *models.TransportError
	if errors.As(err, &te) {
		return err
	}
	return &models.TransportError{Err: err}
}
