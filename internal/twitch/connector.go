package twitch

import (
	"context"
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/gempir/go-twitch-irc/v4"

	"github.com/john/emoterain/internal/message"
)

// Connector manages Twitch chat connections
type Connector struct {
	username string
	oauth    string
	channels []string
	client   *twitch.Client
	logger   *slog.Logger
}

// New creates a new Twitch connector. Empty credentials join anonymously,
// which is enough to read chat.
func New(username, oauth string, channels []string, logger *slog.Logger) *Connector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Connector{
		username: username,
		oauth:    oauth,
		channels: channels,
		logger:   logger.With("platform", "twitch"),
	}
}

// Start begins listening to Twitch chat
func (c *Connector) Start(ctx context.Context, messageChan chan<- message.Message) error {
	if c.username == "" && c.oauth == "" {
		c.client = twitch.NewAnonymousClient()
	} else {
		c.client = twitch.NewClient(c.username, c.oauth)
	}

	c.client.OnPrivateMessage(func(msg twitch.PrivateMessage) {
		select {
		case messageChan <- toMessage(msg):
		case <-ctx.Done():
			return
		}
	})

	c.client.OnConnect(func() {
		c.logger.Info("connected to Twitch IRC")
	})

	c.client.OnReconnectMessage(func(msg twitch.ReconnectMessage) {
		c.logger.Info("reconnecting to Twitch IRC")
	})

	for _, channel := range c.channels {
		c.client.Join(channel)
		c.logger.Info("joined channel", "channel", channel)
	}

	go func() {
		if err := c.client.Connect(); err != nil {
			c.logger.Error("Twitch IRC connection error", "error", err)
		}
	}()

	<-ctx.Done()

	c.logger.Info("disconnecting from Twitch IRC")
	c.client.Disconnect()

	return ctx.Err()
}

func toMessage(msg twitch.PrivateMessage) message.Message {
	sentAt := msg.Time
	if sentAt.IsZero() {
		sentAt = time.Now()
	}

	// tmi reports "subscriber/0" for first month subs, so presence is what counts.
	_, subscriber := msg.User.Badges["subscriber"]

	return message.Message{
		Platform:   "twitch",
		Timestamp:  sentAt.UTC().Format(time.RFC3339),
		Channel:    strings.TrimPrefix(msg.Channel, "#"),
		Username:   msg.User.DisplayName,
		UserID:     msg.User.ID,
		Message:    msg.Message,
		Badges:     formatBadges(msg.User.Badges),
		Subscriber: subscriber,
		Emotes:     ParseEmotesTag(msg.Tags["emotes"]),
	}
}

// ParseEmotesTag decodes the IRCv3 emotes tag, e.g. "25:0-4,12-16/1902:6-10".
// An empty tag yields nil. Offsets that are not numbers become -1.
func ParseEmotesTag(tag string) message.EmotePositions {
	if tag == "" {
		return nil
	}

	positions := make(message.EmotePositions)
	for _, entry := range strings.Split(tag, "/") {
		id, ranges, ok := strings.Cut(entry, ":")
		if !ok || id == "" {
			continue
		}
		for _, r := range strings.Split(ranges, ",") {
			start, end, _ := strings.Cut(r, "-")
			positions[id] = append(positions[id], message.Span{
				Start: parseOffset(start),
				End:   parseOffset(end),
			})
		}
	}

	if len(positions) == 0 {
		return nil
	}
	return positions
}

func parseOffset(s string) int {
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || n < 0 {
		return -1
	}
	return n
}

// formatBadges converts the badges map to a comma-separated string
func formatBadges(badges map[string]int) string {
	if len(badges) == 0 {
		return ""
	}

	var parts []string
	for badge := range badges {
		parts = append(parts, badge)
	}
	sort.Strings(parts)

	return strings.Join(parts, ",")
}
