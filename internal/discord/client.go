// Package discord is a narrow REST facade over discordgo covering the four
// calls the thread lifecycle needs. It never opens a gateway connection.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
)

// AutoArchiveMinutes is the auto-archive duration given to new threads (7 days).
const AutoArchiveMinutes = 10080

// MaxPageSize is the largest page ChannelMessages accepts.
const MaxPageSize = 100

var ErrMissingToken = errors.New("discord bot token is required")

type Config struct {
	Token string
	// APIBase overrides the scheme and host of REST calls; used for tests and proxies.
	APIBase     string
	CallTimeout time.Duration
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Client performs one REST call per method. Every call runs on a fresh
// session sharing only the pooled HTTP client, so no state leaks between
// requests.
type Client struct {
	token       string
	httpClient  *http.Client
	callTimeout time.Duration
	logger      *slog.Logger
}

func NewClient(cfg Config) (*Client, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, ErrMissingToken
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.CallTimeout + 5*time.Second}
	}
	if base := strings.TrimSpace(cfg.APIBase); base != "" {
		target, err := url.Parse(base)
		if err != nil || target.Host == "" {
			return nil, fmt.Errorf("parse discord api base %q: invalid url", base)
		}
		next := httpClient.Transport
		if next == nil {
			next = http.DefaultTransport
		}
		rewritten := *httpClient
		rewritten.Transport = &rewriteTransport{target: target, next: next}
		httpClient = &rewritten
	}

	return &Client{
		token:       token,
		httpClient:  httpClient,
		callTimeout: cfg.CallTimeout,
		logger:      cfg.Logger,
	}, nil
}

func (c *Client) session() (*discordgo.Session, error) {
	session, err := discordgo.New("Bot " + c.token)
	if err != nil {
		return nil, fmt.Errorf("discord session: %w", err)
	}
	session.Client = c.httpClient
	session.MaxRestRetries = 0
	session.ShouldRetryOnRateLimit = false
	return session, nil
}

func (c *Client) call(ctx context.Context) (*discordgo.Session, context.Context, context.CancelFunc, error) {
	session, err := c.session()
	if err != nil {
		return nil, nil, nil, err
	}
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout)
	return session, callCtx, cancel, nil
}

// CreateThread opens a forum post under parentID with name as its title and
// seed as its first message.
func (c *Client) CreateThread(ctx context.Context, parentID, name, seed string) (ThreadRef, error) {
	session, callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return ThreadRef{}, err
	}
	defer cancel()

	started := time.Now()
	ch, err := session.ForumThreadStartComplex(parentID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: AutoArchiveMinutes,
	}, &discordgo.MessageSend{Content: seed}, discordgo.WithContext(callCtx))
	if err != nil {
		return ThreadRef{}, fmt.Errorf("create thread in %s: %w", parentID, err)
	}
	c.logger.Debug("discord_thread_created",
		"thread_id", ch.ID,
		"parent_id", parentID,
		"duration_ms", time.Since(started).Milliseconds(),
	)
	return ThreadRef{ID: ch.ID, GuildID: ch.GuildID, ParentID: ch.ParentID}, nil
}

func (c *Client) GetChannel(ctx context.Context, channelID string) (ChannelMeta, error) {
	session, callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return ChannelMeta{}, err
	}
	defer cancel()

	ch, err := session.Channel(channelID, discordgo.WithContext(callCtx))
	if err != nil {
		return ChannelMeta{}, fmt.Errorf("get channel %s: %w", channelID, err)
	}
	return channelMeta(ch), nil
}

func (c *Client) SetArchived(ctx context.Context, channelID string, archived bool) error {
	session, callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return err
	}
	defer cancel()

	if _, err := session.ChannelEdit(channelID, &discordgo.ChannelEdit{Archived: &archived}, discordgo.WithContext(callCtx)); err != nil {
		return fmt.Errorf("set archived=%t on %s: %w", archived, channelID, err)
	}
	return nil
}

// ListMessages returns at most limit messages in the order the platform
// returned them. limit is clamped to [1, MaxPageSize].
func (c *Client) ListMessages(ctx context.Context, channelID string, limit int) ([]RawMessage, error) {
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}
	session, callCtx, cancel, err := c.call(ctx)
	if err != nil {
		return nil, err
	}
	defer cancel()

	msgs, err := session.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(callCtx))
	if err != nil {
		return nil, fmt.Errorf("list messages in %s: %w", channelID, err)
	}
	out := make([]RawMessage, 0, len(msgs))
	for _, m := range msgs {
		if m == nil {
			continue
		}
		out = append(out, rawMessage(m))
	}
	return out, nil
}

// StatusCode reports the HTTP status of a failed REST call, or 0 when err did
// not come from a Discord response.
func StatusCode(err error) int {
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) && restErr.Response != nil {
		return restErr.Response.StatusCode
	}
	return 0
}

type rewriteTransport struct {
	target *url.URL
	next   http.RoundTripper
}

func (t *rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.URL.Scheme = t.target.Scheme
	clone.URL.Host = t.target.Host
	clone.Host = t.target.Host
	return t.next.RoundTrip(clone)
}
