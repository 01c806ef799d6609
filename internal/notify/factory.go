package notify

import (
	"fmt"
	"strings"

	"github.com/stacklok/catalog-watcher/internal/config"
	"github.com/stacklok/catalog-watcher/internal/httpclient"
)

// NewSink creates the sink selected by notification.type
func NewSink(cfg *config.Config, httpClient httpclient.Client) (Sink, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	switch cfg.Notification.Type {
	case config.NotificationTypeLog:
		return NewLogSink(nil), nil
	case config.NotificationTypeDiscord:
		d := cfg.Notification.Discord
		if d == nil || strings.TrimSpace(d.WebhookURL) == "" {
			return nil, ErrNoWebhook
		}
		if httpClient == nil {
			httpClient = httpclient.NewDefaultClient(0)
		}
		return NewDiscordSink(httpClient, d.WebhookURL, WithDiscordIdentity(d.Username, d.AvatarURL)), nil
	default:
		return nil, fmt.Errorf("unsupported notification type: %s", cfg.Notification.Type)
	}
}
