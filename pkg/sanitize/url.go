package sanitize

import (
	"slices"
	"strings"

	"github.com/recera/mdxlite/pkg/hast"
)

// URLTransform rewrites the value of a URL-carrying attribute. key is the
// attribute name and el the element that carries it. Returning false marks
// the attribute removed.
type URLTransform func(value, key string, el *hast.Element) (string, bool)

var safeSchemes = []string{"http", "https", "irc", "ircs", "mailto", "xmpp"}

// DefaultURLTransform keeps relative URLs and URLs with a safe scheme and
// empties everything else. Values are never percent-encoded.
//
// A value is relative when it has no colon, or when its first colon comes
// after a '?', '#' or '/'.
func DefaultURLTransform(value, _ string, _ *hast.Element) (string, bool) {
	colon := strings.IndexByte(value, ':')
	if colon < 0 {
		return value, true
	}
	for _, marker := range []byte{'?', '#', '/'} {
		if i := strings.IndexByte(value, marker); i >= 0 && colon > i {
			return value, true
		}
	}
	if slices.Contains(safeSchemes, strings.ToLower(value[:colon])) {
		return value, true
	}
	return "", true
}

// urlAttributes maps each attribute known to hold a URL to the tags it
// applies to. A nil list means every tag.
var urlAttributes = map[string][]string{
	"action":     {"form"},
	"cite":       {"blockquote", "del", "ins", "q"},
	"data":       {"object"},
	"formAction": {"button", "input"},
	"formaction": {"button", "input"},
	"href":       {"a", "area", "base", "link"},
	"icon":       {"menuitem"},
	"itemId":     nil,
	"itemid":     nil,
	"manifest":   {"html"},
	"ping":       {"a", "area"},
	"poster":     {"video"},
	"src":        {"audio", "embed", "iframe", "img", "input", "script", "source", "track", "video"},
}

// IsURLAttribute reports whether the attribute name holds a URL on the tag.
func IsURLAttribute(tag, name string) bool {
	tags, ok := urlAttributes[name]
	if !ok {
		return false
	}
	return tags == nil || slices.Contains(tags, tag)
}
