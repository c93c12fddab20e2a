package vault

import (
	"strings"

	"gopkg.in/yaml.v3"
)

// splitFrontmatter separates a leading YAML block from the note body. Content
// whose frontmatter does not parse is returned unchanged.
func splitFrontmatter(content string) (map[string]any, string) {
	if !strings.HasPrefix(content, "---\n") {
		return nil, content
	}

	var yamlContent, body string
	if end := strings.Index(content[4:], "\n---\n"); end >= 0 {
		yamlContent = content[4 : 4+end]
		body = content[4+end+5:]
	} else if strings.HasSuffix(content, "\n---") {
		yamlContent = content[4 : len(content)-4]
	} else {
		return nil, content
	}

	var frontmatter map[string]any
	if err := yaml.Unmarshal([]byte(yamlContent), &frontmatter); err != nil {
		return nil, content
	}
	if frontmatter == nil {
		frontmatter = make(map[string]any)
	}

	return frontmatter, body
}

// frontmatterTags reads `tags` (or `tag`) as a YAML list or as a string
// separated by commas or spaces.
func frontmatterTags(frontmatter map[string]any) []string {
	raw, ok := frontmatter["tags"]
	if !ok {
		raw, ok = frontmatter["tag"]
	}
	if !ok || raw == nil {
		return nil
	}

	var values []string
	switch v := raw.(type) {
	case string:
		values = strings.FieldsFunc(v, func(r rune) bool { return r == ',' || r == ' ' })
	case []any:
		for _, item := range v {
			if s, ok := item.(string); ok {
				values = append(values, s)
			}
		}
	}

	var tags []string
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		tag := strings.TrimPrefix(strings.TrimSpace(value), "#")
		if tag == "" {
			continue
		}
		if _, dup := seen[tag]; dup {
			continue
		}
		seen[tag] = struct{}{}
		tags = append(tags, tag)
	}
	return tags
}
