package tags

import (
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	separatorPattern  = regexp.MustCompile(`[,;]\s*`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// ParseTags splits free text on commas or semicolons into clean tags.
// Pieces are trimmed, inner whitespace runs collapse to one space, empty
// pieces are dropped and the input order is kept.
func ParseTags(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}

	var tags []string
	for _, piece := range separatorPattern.Split(text, -1) {
		if tag := cleanTag(piece); tag != "" {
			tags = append(tags, tag)
		}
	}
	return tags
}

// HasSeparator reports whether tag contains a character ParseTags splits on
func HasSeparator(tag string) bool {
	return strings.ContainsAny(tag, ",;")
}

// splitTags runs every entry of list through ParseTags so no stored tag
// holds a separator
func splitTags(list []string) []string {
	out := make([]string, 0, len(list))
	for _, entry := range list {
		out = append(out, ParseTags(entry)...)
	}
	return out
}

// cleanTag normalizes a single tag; returns "" for blank input
func cleanTag(tag string) string {
	tag = strings.TrimSpace(tag)
	if tag == "" {
		return ""
	}
	tag = whitespacePattern.ReplaceAllString(tag, " ")
	return norm.NFC.String(tag)
}

// JoinTags renders tags the way they appear in a description
func JoinTags(tags []string) string {
	return strings.Join(tags, ", ")
}
