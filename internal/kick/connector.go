package kick

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	kickchat "github.com/johanvandegriff/kick-chat-wrapper"

	"github.com/john/emoterain/internal/message"
)

const defaultAPIBase = "https://kick.com/api/v2"

// KickChannelResponse represents the API response from Kick
type KickChannelResponse struct {
	ID       int    `json:"id"`
	Slug     string `json:"slug"`
	Chatroom struct {
		ID int `json:"id"`
	} `json:"chatroom"`
}

// ChannelConfig represents a Kick channel with optional pre-configured chatroom ID
type ChannelConfig struct {
	Slug       string `yaml:"slug"`
	ChatroomID int    `yaml:"chatroom_id"` // 0 means not pre-configured, needs resolution
}

// Connector manages Kick chat connections
type Connector struct {
	channels   []ChannelConfig
	channelIDs map[string]int // channel slug -> chatroom ID
	idToSlug   map[int]string // chatroom ID -> channel slug (for reverse lookup)
	client     *kickchat.Client
	httpClient *http.Client
	apiBase    string
	logger     *slog.Logger
}

// New creates a new Kick connector
func New(channels []ChannelConfig, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		channels:   channels,
		channelIDs: make(map[string]int),
		idToSlug:   make(map[int]string),
		httpClient: &http.Client{Timeout: 10 * time.Second},
		apiBase:    defaultAPIBase,
		logger:     logger.With("platform", "kick"),
	}
}

// Start begins listening to Kick chat
func (c *Connector) Start(ctx context.Context, messageChan chan<- message.Message) error {
	c.logger.Info("resolving Kick channel IDs")
	for _, channel := range c.channels {
		chatroomID, slug := channel.ChatroomID, channel.Slug
		if chatroomID <= 0 {
			var err error
			chatroomID, slug, err = c.resolveChannelID(ctx, channel.Slug)
			if err != nil {
				c.logger.Warn("failed to resolve Kick channel, skipping", "channel", channel.Slug, "error", err)
				continue
			}
		}
		c.logger.Info("Kick channel ready", "channel", slug, "chatroom_id", chatroomID)

		c.channelIDs[slug] = chatroomID
		c.idToSlug[chatroomID] = slug
	}

	if len(c.channelIDs) == 0 {
		return fmt.Errorf("no valid Kick channels could be resolved")
	}

	client, err := kickchat.NewClient()
	if err != nil {
		return fmt.Errorf("failed to create Kick client: %w", err)
	}
	c.client = client
	c.logger.Info("connected to Kick WebSocket")

	for slug, chatroomID := range c.channelIDs {
		if err := c.client.JoinChannelByID(chatroomID); err != nil {
			c.logger.Warn("failed to join Kick channel", "channel", slug, "chatroom_id", chatroomID, "error", err)
			continue
		}
		c.logger.Info("joined channel", "channel", slug)
	}

	messages := c.client.ListenForMessages()

	go func() {
		for {
			select {
			case msg, ok := <-messages:
				if !ok {
					c.logger.Info("Kick message channel closed")
					return
				}

				chatMessage := c.convertMessage(msg)
				if chatMessage == nil {
					continue
				}

				select {
				case messageChan <- *chatMessage:
				case <-ctx.Done():
					return
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	<-ctx.Done()

	c.logger.Info("disconnecting from Kick chat")
	c.client.Close()

	return ctx.Err()
}

// resolveChannelID fetches channel information from Kick API
func (c *Connector) resolveChannelID(ctx context.Context, channelName string) (int, string, error) {
	url := fmt.Sprintf("%s/channels/%s", c.apiBase, channelName)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, "", fmt.Errorf("failed to create request: %w", err)
	}

	// Kick's CDN rejects requests that do not look like a browser
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/143.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Referer", "https://kick.com/")
	req.Header.Set("Origin", "https://kick.com")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, "", fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, "", fmt.Errorf("API returned status %d: %s", resp.StatusCode, string(body))
	}

	var channelInfo KickChannelResponse
	if err := json.NewDecoder(resp.Body).Decode(&channelInfo); err != nil {
		return 0, "", fmt.Errorf("JSON decode failed: %w", err)
	}

	return channelInfo.Chatroom.ID, channelInfo.Slug, nil
}

// convertMessage converts a Kick ChatMessage to our generic message.Message
func (c *Connector) convertMessage(msg kickchat.ChatMessage) *message.Message {
	slug, ok := c.idToSlug[msg.ChatroomID]
	if !ok {
		c.logger.Warn("message from unknown chatroom", "chatroom_id", msg.ChatroomID)
		return nil
	}

	text, emotes := ExtractEmotes(msg.Content)

	subscriber := false
	for _, badge := range msg.Sender.Identity.Badges {
		if badge.Type == "subscriber" {
			subscriber = true
			break
		}
	}

	return &message.Message{
		Platform:   "kick",
		Timestamp:  msg.CreatedAt.UTC().Format(time.RFC3339),
		Channel:    slug,
		Username:   msg.Sender.Username,
		UserID:     strconv.Itoa(msg.Sender.ID),
		Message:    text,
		Badges:     c.formatBadges(msg.Sender.Identity.Badges),
		Subscriber: subscriber,
		Emotes:     emotes,
	}
}

// formatBadges converts Kick badges to a comma-separated string
func (c *Connector) formatBadges(badges []kickchat.Badge) string {
	if len(badges) == 0 {
		return ""
	}

	var parts []string
	for _, badge := range badges {
		if badge.Text != "" {
			parts = append(parts, fmt.Sprintf("%s:%s", badge.Type, badge.Text))
		} else {
			parts = append(parts, badge.Type)
		}
	}

	return strings.Join(parts, ",")
}
