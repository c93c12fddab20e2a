package vault

import (
	"regexp"
	"strings"

	"github.com/xaenox/notegram/internal/models"
)

var (
	// ![[image.png]], ![[image.png|300]], ![[doc.pdf#page=2]]
	wikiEmbedPattern = regexp.MustCompile(`!\[\[([^\]]+)\]\]`)
	// ![alt](path/to/file.png), ![alt](<path with spaces.png>)
	markdownEmbedPattern = regexp.MustCompile(`!\[[^\]]*\]\((?:<([^>]+)>|([^)\s]+))(?:\s+"[^"]*")?\)`)
	// [[note]], [[note|alias]], [[note#heading]]
	wikiLinkPattern = regexp.MustCompile(`\[\[([^\]|]+)(?:\|([^\]]+))?\]\]`)
	blankRunPattern = regexp.MustCompile(`\n{3,}`)
)

// parseBody extracts local embeds from a note body and returns the body with
// the embed syntax removed and wikilinks reduced to their display text.
// Fenced code blocks are left untouched.
func parseBody(body string) (string, []models.EmbedRef) {
	lines := strings.Split(body, "\n")
	var embeds []models.EmbedRef
	inFence := false

	for i, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "```") {
			inFence = !inFence
			continue
		}
		if inFence {
			continue
		}

		line = wikiEmbedPattern.ReplaceAllStringFunc(line, func(m string) string {
			target := wikiEmbedPattern.FindStringSubmatch(m)[1]
			embeds = append(embeds, models.EmbedRef{LinkTarget: target})
			return ""
		})

		line = markdownEmbedPattern.ReplaceAllStringFunc(line, func(m string) string {
			sub := markdownEmbedPattern.FindStringSubmatch(m)
			target := sub[1]
			if target == "" {
				target = sub[2]
			}
			if isRemote(target) {
				return m
			}
			embeds = append(embeds, models.EmbedRef{LinkTarget: target})
			return ""
		})

		line = wikiLinkPattern.ReplaceAllStringFunc(line, func(m string) string {
			sub := wikiLinkPattern.FindStringSubmatch(m)
			if alias := strings.TrimSpace(sub[2]); alias != "" {
				return alias
			}
			target := sub[1]
			if hash := strings.IndexByte(target, '#'); hash >= 0 {
				target = target[:hash]
			}
			return strings.TrimSpace(target)
		})

		lines[i] = strings.TrimRight(line, " \t")
	}

	text := blankRunPattern.ReplaceAllString(strings.Join(lines, "\n"), "\n\n")
	return strings.Trim(text, "\n"), embeds
}

func isRemote(target string) bool {
	return strings.Contains(target, "://") || strings.HasPrefix(target, "data:") || strings.HasPrefix(target, "mailto:")
}
