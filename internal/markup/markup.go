// Package markup splits block content into highlightable segments and extracts
// [[links]], [tag::x] tags and {kind::value} markers.
package markup

import (
	"regexp"
	"strings"
)

var tokenRe = regexp.MustCompile(`\[\[.*?\]\]|\[.*?\]|\{.*?\}`)

// Kind classifies a segment.
type Kind string

// Segment kinds.
const (
	KindText   Kind = "text"
	KindLink   Kind = "link"
	KindTag    Kind = "tag"
	KindMarker Kind = "marker"
)

// Segment is a contiguous run of content.
type Segment struct {
	Kind Kind   `json:"kind"`
	Text string `json:"text"`
}

// Result holds the output of parsing block content.
type Result struct {
	Segments []Segment
	Links    []string
	Tags     []string
	Markers  []string
}

// Parse tokenizes content. Concatenating the segment texts yields content.
func Parse(content string) *Result {
	res := &Result{Segments: Segments(content)}

	seenLink := map[string]struct{}{}
	seenTag := map[string]struct{}{}
	seenMarker := map[string]struct{}{}

	for _, seg := range res.Segments {
		switch seg.Kind {
		case KindLink:
			target := strings.TrimSpace(strings.TrimSuffix(strings.TrimPrefix(seg.Text, "[["), "]]"))
			if i := strings.Index(target, "|"); i >= 0 {
				target = strings.TrimSpace(target[:i])
			}
			res.Links = appendUnique(res.Links, seenLink, target)
		case KindTag:
			key, value, ok := strings.Cut(strings.Trim(seg.Text, "[]"), "::")
			if !ok {
				continue
			}
			switch strings.TrimSpace(key) {
			case "tag":
				res.Tags = appendUnique(res.Tags, seenTag, strings.TrimSpace(value))
			case "marker":
				if v := strings.TrimSpace(value); v != "null" {
					res.Markers = appendUnique(res.Markers, seenMarker, v)
				}
			}
		case KindMarker:
			res.Markers = appendUnique(res.Markers, seenMarker, seg.Text)
		}
	}
	return res
}

// Segments splits content into text, link, tag and marker runs.
func Segments(content string) []Segment {
	var out []Segment
	last := 0
	for _, loc := range tokenRe.FindAllStringIndex(content, -1) {
		if loc[0] > last {
			out = append(out, Segment{Kind: KindText, Text: content[last:loc[0]]})
		}
		tok := content[loc[0]:loc[1]]
		out = append(out, Segment{Kind: kindOf(tok), Text: tok})
		last = loc[1]
	}
	if last < len(content) {
		out = append(out, Segment{Kind: KindText, Text: content[last:]})
	}
	return out
}

func kindOf(tok string) Kind {
	switch {
	case strings.HasPrefix(tok, "[["):
		return KindLink
	case strings.HasPrefix(tok, "["):
		return KindTag
	default:
		return KindMarker
	}
}

func appendUnique(dst []string, seen map[string]struct{}, v string) []string {
	if v == "" {
		return dst
	}
	if _, dup := seen[v]; dup {
		return dst
	}
	seen[v] = struct{}{}
	return append(dst, v)
}
