// Package tagger picks hashtags to append to a published note.
package tagger

import (
	"context"
	"regexp"
	"strings"
	"unicode"

	"github.com/xaenox/notegram/internal/models"
)

type Tagger interface {
	Tags(ctx context.Context, note models.Note) []string
}

var inlineTagPattern = regexp.MustCompile(`(?:^|\s)#([\p{L}\p{N}_/-]+)`)

// FrontmatterTagger returns the frontmatter tags that the body does not
// already mention as inline #tags.
type FrontmatterTagger struct {
	maxTags int
}

func NewFrontmatterTagger(maxTags int) *FrontmatterTagger {
	return &FrontmatterTagger{maxTags: maxTags}
}

func (t *FrontmatterTagger) Tags(ctx context.Context, note models.Note) []string {
	return limit(exclude(note.Tags, InlineTags(note.RawText)), t.maxTags)
}

// InlineTags extracts #tags written in the text, lower-cased.
func InlineTags(text string) []string {
	var tags []string
	for _, m := range inlineTagPattern.FindAllStringSubmatch(text, -1) {
		tags = append(tags, strings.ToLower(m[1]))
	}
	return tags
}

// Hashtags renders tags as a space separated line of #words. Characters
// that would end a hashtag become underscores.
func Hashtags(tags []string) string {
	words := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, tag := range tags {
		word := normalize(tag)
		if word == "" {
			continue
		}
		key := strings.ToLower(word)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		words = append(words, "#"+word)
	}
	return strings.Join(words, " ")
}

func normalize(tag string) string {
	tag = strings.TrimPrefix(strings.TrimSpace(tag), "#")
	var b strings.Builder
	for _, r := range tag {
		if r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}
	return strings.Trim(b.String(), "_")
}

func exclude(tags, present []string) []string {
	skip := make(map[string]struct{}, len(present))
	for _, p := range present {
		skip[strings.ToLower(p)] = struct{}{}
	}

	var out []string
	for _, tag := range tags {
		if _, ok := skip[strings.ToLower(tag)]; ok {
			continue
		}
		out = append(out, tag)
	}
	return out
}

func limit(tags []string, maxTags int) []string {
	if maxTags > 0 && len(tags) > maxTags {
		return tags[:maxTags]
	}
	return tags
}
