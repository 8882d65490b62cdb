package kick

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"github.com/john/emoterain/internal/message"
)

var emoteMarkup = regexp.MustCompile(`\[emote:(\d+):([^\]\s]+)\]`)

// ExtractEmotes replaces Kick's inline "[emote:<id>:<name>]" markup with the
// bare emote name and reports where each name landed, in UTF-16 offsets.
// Content without markup returns nil positions.
func ExtractEmotes(content string) (string, message.EmotePositions) {
	matches := emoteMarkup.FindAllStringSubmatchIndex(content, -1)
	if len(matches) == 0 {
		return content, nil
	}

	var (
		b         strings.Builder
		positions = make(message.EmotePositions)
		offset    = 0 // UTF-16 length of b
		last      = 0
	)
	for _, m := range matches {
		before := content[last:m[0]]
		b.WriteString(before)
		offset += utf16Len(before)

		id, name := content[m[2]:m[3]], content[m[4]:m[5]]
		n := utf16Len(name)
		positions[id] = append(positions[id], message.Span{Start: offset, End: offset + n - 1})
		b.WriteString(name)
		offset += n

		last = m[1]
	}
	b.WriteString(content[last:])

	return b.String(), positions
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n += utf16.RuneLen(r)
	}
	return n
}
