// Package emote turns a chat message into an emote appearance batch.
//
// A message is split on single spaces and every token is checked against the
// platform emote positions the transport reported and against the channel's
// community catalog. Per-message quotas depend on whether the sender is a
// subscriber: a token stops producing emotes once it has matched
// DuplicateLimit times, and the final list is cut to MaxEmotes entries.
package emote

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
	"strings"
	"unicode/utf16"

	"github.com/john/emoterain/internal/asset"
	"github.com/john/emoterain/internal/message"
)

// Platform emote image locations, keyed by message platform.
var PlatformURLTemplates = map[string]string{
	"twitch": "https://static-cdn.jtvnw.net/emoticons/v1/%s/3.0",
	"kick":   "https://files.kick.com/emotes/%s/fullsize",
}

// DefaultCatalogURLTemplate locates community emote images by asset id.
const DefaultCatalogURLTemplate = "https://cdn.betterttv.net/emote/%s/3x"

// Descriptor is one emote appearance.
type Descriptor struct {
	Asset  asset.Handle `json:"asset"`
	ID     string       `json:"id"`
	Sprite any          `json:"sprite"` // Filled in by the renderer
}

// Batch is every emote produced by one message, plus placement hints for the renderer.
type Batch struct {
	Platform string       `json:"platform"`
	Channel  string       `json:"channel"`
	Progress float64      `json:"progress"`
	X        float64      `json:"x"`
	Y        float64      `json:"y"`
	Emotes   []Descriptor `json:"emotes"`
}

// Tier limits. A MaxEmotes of zero disables the cap.
type Tier struct {
	MaxEmotes      int
	DuplicateLimit int
}

// Limits selects a Tier by subscriber status.
type Limits struct {
	Subscriber Tier
	Pleb       Tier
}

func (l Limits) tier(subscriber bool) Tier {
	if subscriber {
		return l.Subscriber
	}
	return l.Pleb
}

// Catalog is the community emote lookup used by the resolver.
type Catalog interface {
	Lookup(channel, token string) (string, bool)
}

// Assets resolves image URLs to shared handles.
type Assets interface {
	Resolve(url string) asset.Handle
}

// Options configures a Resolver.
type Options struct {
	Limits             Limits
	CatalogURLTemplate string
	// PlatformEmotes are names reserved for platform emotes; catalog entries
	// under these names are ignored.
	PlatformEmotes []string
	// Random draws batch placement; defaults to math/rand/v2.
	Random func() float64
}

// Resolver implements the message to batch algorithm.
type Resolver struct {
	limits      Limits
	catalog     Catalog
	assets      Assets
	catalogURL  string
	platformSet map[string]struct{}
	random      func() float64
}

// NewResolver creates a resolver reading community emotes from catalog and
// image handles from assets.
func NewResolver(catalog Catalog, assets Assets, opts Options) *Resolver {
	r := &Resolver{
		limits:      opts.Limits,
		catalog:     catalog,
		assets:      assets,
		catalogURL:  opts.CatalogURLTemplate,
		platformSet: make(map[string]struct{}, len(opts.PlatformEmotes)),
		random:      opts.Random,
	}
	if r.catalogURL == "" {
		r.catalogURL = DefaultCatalogURLTemplate
	}
	if r.random == nil {
		r.random = rand.Float64
	}
	for _, name := range opts.PlatformEmotes {
		r.platformSet[name] = struct{}{}
	}
	return r
}

// Resolve returns the batch for msg, or false when it contains no emotes.
func (r *Resolver) Resolve(msg message.Message) (Batch, bool) {
	emotes := r.Emotes(msg.Platform, msg.Channel, msg.Message, msg.Emotes, msg.Subscriber)
	if len(emotes) == 0 {
		return Batch{}, false
	}
	return Batch{
		Platform: msg.Platform,
		Channel:  msg.Channel,
		Progress: 0,
		X:        r.random(),
		Y:        r.random(),
		Emotes:   emotes,
	}, true
}

// Emotes returns the capped, token-ordered descriptors found in text.
func (r *Resolver) Emotes(platform, channel, text string, positions message.EmotePositions, subscriber bool) []Descriptor {
	tier := r.limits.tier(subscriber)

	// Platform ids are scanned in a fixed order so overlapping reports match deterministically.
	var ids []string
	if positions != nil {
		ids = slices.Sorted(maps.Keys(positions))
	}

	var (
		output  []Descriptor
		seen    = make(map[string]int)
		counter = 0
	)
	for _, token := range strings.Split(text, " ") {
		start := counter
		counter += utf16Len(token) + 1

		if seen[token] >= tier.DuplicateLimit {
			continue
		}

		if id, ok := matchAt(ids, positions, start); ok {
			output = append(output, Descriptor{
				Asset: r.assets.Resolve(r.platformURL(platform, id)),
				ID:    id,
			})
			seen[token]++
		}

		if id, ok := r.catalogMatch(channel, token); ok {
			output = append(output, Descriptor{
				Asset: r.assets.Resolve(fmt.Sprintf(r.catalogURL, id)),
				ID:    token,
			})
			seen[token]++
		}
	}

	if tier.MaxEmotes > 0 && len(output) > tier.MaxEmotes {
		output = output[:tier.MaxEmotes]
	}
	return output
}

func (r *Resolver) catalogMatch(channel, token string) (string, bool) {
	if r.catalog == nil {
		return "", false
	}
	if _, reserved := r.platformSet[token]; reserved {
		return "", false
	}
	return r.catalog.Lookup(channel, token)
}

func (r *Resolver) platformURL(platform, id string) string {
	tmpl, ok := PlatformURLTemplates[platform]
	if !ok {
		tmpl = PlatformURLTemplates["twitch"]
	}
	return fmt.Sprintf(tmpl, id)
}

// matchAt returns the first id, in ids order, with a span starting at offset.
func matchAt(ids []string, positions message.EmotePositions, offset int) (string, bool) {
	for _, id := range ids {
		for _, span := range positions[id] {
			if span.Start == offset {
				return id, true
			}
		}
	}
	return "", false
}

// utf16Len counts s in UTF-16 code units, the unit chat transports report offsets in.
func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
