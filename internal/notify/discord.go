package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/stacklok/catalog-watcher/internal/httpclient"
)

const (
	// DefaultDiscordAttempts is the number of delivery attempts per event
	DefaultDiscordAttempts = 3

	maxDiscordRetryAfter = 60 * time.Second
)

// discordPayload is the webhook execute body
type discordPayload struct {
	Username  string         `json:"username,omitempty"`
	AvatarURL string         `json:"avatar_url,omitempty"`
	Embeds    []discordEmbed `json:"embeds"`
}

type discordEmbed struct {
	Title       string            `json:"title"`
	URL         string            `json:"url,omitempty"`
	Description string            `json:"description,omitempty"`
	Color       int               `json:"color"`
	Thumbnail   *discordThumbnail `json:"thumbnail,omitempty"`
	Fields      []embedField      `json:"fields,omitempty"`
	Timestamp   string            `json:"timestamp"`
}

type discordThumbnail struct {
	URL string `json:"url"`
}

// discordRateLimit is the body of a 429 response
type discordRateLimit struct {
	Message    string  `json:"message"`
	RetryAfter float64 `json:"retry_after"`
	Global     bool    `json:"global"`
}

// DiscordSink posts one embed per event to a Discord webhook
type DiscordSink struct {
	httpClient  httpclient.Client
	webhookURL  string
	username    string
	avatarURL   string
	maxAttempts int
	newBackOff  func() backoff.BackOff
	now         func() time.Time
}

// DiscordOption configures a DiscordSink
type DiscordOption func(*DiscordSink)

// WithDiscordIdentity overrides the username and avatar shown on messages
func WithDiscordIdentity(username, avatarURL string) DiscordOption {
	return func(s *DiscordSink) {
		s.username = username
		s.avatarURL = avatarURL
	}
}

// WithDiscordAttempts sets the number of delivery attempts per event
func WithDiscordAttempts(n int) DiscordOption {
	return func(s *DiscordSink) {
		s.maxAttempts = max(1, n)
	}
}

// WithDiscordBackOff overrides the retry backoff policy
func WithDiscordBackOff(fn func() backoff.BackOff) DiscordOption {
	return func(s *DiscordSink) {
		s.newBackOff = fn
	}
}

// WithDiscordClock overrides the clock used for embed timestamps
func WithDiscordClock(now func() time.Time) DiscordOption {
	return func(s *DiscordSink) {
		s.now = now
	}
}

// NewDiscordSink creates a sink that posts to webhookURL
func NewDiscordSink(httpClient httpclient.Client, webhookURL string, opts ...DiscordOption) *DiscordSink {
	s := &DiscordSink{
		httpClient:  httpClient,
		webhookURL:  webhookURL,
		maxAttempts: DefaultDiscordAttempts,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 10 * time.Second
			return b
		},
		now: time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Notify delivers the event, retrying on rate limits and server errors
func (s *DiscordSink) Notify(ctx context.Context, event Event) error {
	payload := s.buildPayload(event)

	_, err := backoff.Retry(ctx, func() (struct{}, error) {
		return struct{}{}, s.post(ctx, event, payload)
	}, backoff.WithBackOff(s.newBackOff()), backoff.WithMaxTries(uint(s.maxAttempts)))
	if err != nil {
		return fmt.Errorf("failed to deliver %s event for item %s: %w", event.Kind, event.Identity, err)
	}

	slog.Debug("Delivered notification",
		"event_id", event.ID.String(),
		"item_id", event.Identity,
		"kind", string(event.Kind))
	return nil
}

func (s *DiscordSink) post(ctx context.Context, event Event, payload discordPayload) error {
	resp, err := s.httpClient.PostJSON(ctx, s.webhookURL, payload)
	if err != nil {
		return err
	}
	if resp.OK() {
		return nil
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		wait := rateLimitWait(resp)
		slog.Warn("Discord rate limited notification",
			"item_id", event.Identity,
			"retry_after", wait.String())
		if wait >= time.Second {
			return backoff.RetryAfter(int(math.Ceil(wait.Seconds())))
		}
		return resp.Err()
	case resp.StatusCode >= http.StatusInternalServerError:
		return resp.Err()
	default:
		return backoff.Permanent(fmt.Errorf("%w: %s", resp.Err(), strings.TrimSpace(string(resp.Body))))
	}
}

// rateLimitWait reads retry_after from the body, falling back to the Retry-After header
func rateLimitWait(resp *httpclient.Response) time.Duration {
	var rl discordRateLimit
	if err := json.Unmarshal(resp.Body, &rl); err == nil && rl.RetryAfter > 0 {
		return min(time.Duration(rl.RetryAfter*float64(time.Second)), maxDiscordRetryAfter)
	}
	if secs, err := strconv.ParseFloat(resp.Header.Get("Retry-After"), 64); err == nil && secs > 0 {
		return min(time.Duration(secs*float64(time.Second)), maxDiscordRetryAfter)
	}
	return 0
}

func (s *DiscordSink) buildPayload(event Event) discordPayload {
	embed := discordEmbed{
		Title:       Title(event),
		URL:         event.Item.URL,
		Description: synopsis(event.Item),
		Color:       embedColor,
		Fields:      eventFields(event),
		Timestamp:   s.now().UTC().Format(time.RFC3339),
	}
	if poster := event.Item.PosterURL(); poster != "" {
		embed.Thumbnail = &discordThumbnail{URL: poster}
	}
	return discordPayload{
		Username:  s.username,
		AvatarURL: s.avatarURL,
		Embeds:    []discordEmbed{embed},
	}
}

// ErrNoWebhook is returned when a Discord sink is requested without a webhook URL
var ErrNoWebhook = errors.New("discord webhook URL is required")
