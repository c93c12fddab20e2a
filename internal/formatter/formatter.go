// Package formatter converts note Markdown into Telegram MarkdownV2.
//
// Conversion is line oriented: fenced code blocks, headings, block quotes and
// list items are recognised per line, everything else goes through a single
// left-to-right inline pass. Markers that do not pair up are escaped and kept
// as literal text, so Convert never fails.
package formatter

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ParseMode is the Bot API parse_mode value matching the output of Convert.
const ParseMode = "MarkdownV2"

// specialChars must be escaped everywhere outside of entities.
var specialChars = []string{"\\", "_", "*", "[", "]", "(", ")", "~", "`", ">", "#", "+", "-", "=", "|", "{", "}", ".", "!"}

var (
	escaper     = newEscaper(specialChars...)
	codeEscaper = newEscaper("\\", "`")
	urlEscaper  = newEscaper("\\", ")")
)

func newEscaper(chars ...string) *strings.Replacer {
	pairs := make([]string, 0, len(chars)*2)
	for _, char := range chars {
		pairs = append(pairs, char, "\\"+char)
	}
	return strings.NewReplacer(pairs...)
}

// Escape escapes every reserved character in text.
func Escape(text string) string {
	return escaper.Replace(text)
}

// EscapeCode escapes text placed inside a code span or a pre block.
func EscapeCode(text string) string {
	return codeEscaper.Replace(text)
}

// EscapeLinkURL escapes the url part of an inline link.
func EscapeLinkURL(link string) string {
	return urlEscaper.Replace(link)
}

func isSpecial(c byte) bool {
	return strings.IndexByte("\\_*[]()~`>#+-=|{}.!", c) >= 0
}

var (
	headingPattern = regexp.MustCompile(`^ {0,3}#{1,6}[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)
	quotePattern   = regexp.MustCompile(`^ {0,3}>[ \t]?(.*)$`)
	listPattern    = regexp.MustCompile(`^([ \t]*)[-*+][ \t]+(.*)$`)
	langPattern    = regexp.MustCompile(`^[A-Za-z0-9_+#.-]+$`)
)

// Convert translates markdown into MarkdownV2. The empty string converts to
// the empty string.
func Convert(markdown string) string {
	if markdown == "" {
		return ""
	}

	lines := strings.Split(strings.ReplaceAll(markdown, "\r\n", "\n"), "\n")
	out := make([]string, 0, len(lines))

	for i := 0; i < len(lines); i++ {
		fence, lang, ok := openFence(lines[i])
		if !ok {
			out = append(out, convertLine(lines[i]))
			continue
		}

		end := i + 1
		for end < len(lines) && !closesFence(lines[end], fence) {
			end++
		}
		out = append(out, renderFence(lang, lines[i+1:end]))
		// An unterminated fence runs to the end of the note.
		i = end
	}

	return strings.Join(out, "\n")
}

// openFence reports whether line opens a fenced block and returns the fence
// character and the language tag.
func openFence(line string) (byte, string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return 0, "", false
	}
	var fence byte
	switch {
	case strings.HasPrefix(trimmed, "```"):
		fence = '`'
	case strings.HasPrefix(trimmed, "~~~"):
		fence = '~'
	default:
		return 0, "", false
	}
	info := strings.TrimSpace(strings.TrimLeft(trimmed, string(fence)))
	if fence == '`' && strings.Contains(info, "`") {
		return 0, "", false
	}
	if fields := strings.Fields(info); len(fields) > 0 && langPattern.MatchString(fields[0]) {
		return fence, fields[0], true
	}
	return fence, "", true
}

func closesFence(line string, fence byte) bool {
	trimmed := strings.TrimSpace(line)
	return len(trimmed) >= 3 && strings.Trim(trimmed, string(fence)) == ""
}

func renderFence(lang string, body []string) string {
	var b strings.Builder
	b.WriteString("```")
	b.WriteString(lang)
	b.WriteByte('\n')
	b.WriteString(EscapeCode(strings.Join(body, "\n")))
	b.WriteString("\n```")
	return b.String()
}

func convertLine(line string) string {
	if m := headingPattern.FindStringSubmatch(line); m != nil {
		text := renderInline(m[1], styleBold)
		if text == "" {
			return ""
		}
		return "*" + text + "*"
	}

	if m := quotePattern.FindStringSubmatch(line); m != nil {
		if m[1] == "" {
			return ">"
		}
		return "> " + renderInline(m[1], 0)
	}

	if m := listPattern.FindStringSubmatch(line); m != nil {
		return m[1] + "• " + renderInline(m[2], 0)
	}

	return renderInline(line, 0)
}

// style is the set of entities enclosing the text being rendered.
type style uint8

const (
	styleBold style = 1 << iota
	styleItalic
	styleUnderline
	styleStrike
	styleSpoiler
)

// renderInline converts the inline constructs of s. MarkdownV2 cannot nest an
// entity in itself, so markers of a style already in active are dropped and
// only their content is kept.
func renderInline(s string, active style) string {
	var b strings.Builder
	b.Grow(len(s) + len(s)/4)

	for i := 0; i < len(s); {
		if next, ok := renderToken(&b, s, i, active); ok {
			i = next
			continue
		}
		if isSpecial(s[i]) {
			b.WriteByte('\\')
		}
		b.WriteByte(s[i])
		i++
	}

	return b.String()
}

// renderToken writes the construct starting at s[i], if any, and returns the
// index just past it.
func renderToken(b *strings.Builder, s string, i int, active style) (int, bool) {
	rest := s[i:]

	switch {
	case rest[0] == '\\':
		if len(rest) < 2 || !isASCIIPunct(rest[1]) {
			return 0, false
		}
		if isSpecial(rest[1]) {
			b.WriteByte('\\')
		}
		b.WriteByte(rest[1])
		return i + 2, true

	case rest[0] == '`':
		end := strings.IndexByte(rest[1:], '`')
		if end <= 0 {
			return 0, false
		}
		b.WriteByte('`')
		b.WriteString(EscapeCode(rest[1 : end+1]))
		b.WriteByte('`')
		return i + end + 2, true

	case strings.HasPrefix(rest, "<u>"):
		return wrapTag(b, s, i, "<u>", "</u>", "__", styleUnderline, active)

	case strings.HasPrefix(rest, `<span class="tg-spoiler">`):
		return wrapTag(b, s, i, `<span class="tg-spoiler">`, "</span>", "||", styleSpoiler, active)

	case strings.HasPrefix(rest, "||"):
		return wrapDelimited(b, s, i, "||", "||", false, styleSpoiler, active)

	case strings.HasPrefix(rest, "**"):
		return wrapDelimited(b, s, i, "**", "*", false, styleBold, active)

	case strings.HasPrefix(rest, "__"):
		return wrapDelimited(b, s, i, "__", "*", true, styleBold, active)

	case strings.HasPrefix(rest, "~~"):
		return wrapDelimited(b, s, i, "~~", "~", false, styleStrike, active)

	case rest[0] == '*':
		return wrapDelimited(b, s, i, "*", "_", false, styleItalic, active)

	case rest[0] == '_':
		return wrapDelimited(b, s, i, "_", "_", true, styleItalic, active)

	case rest[0] == '[':
		return renderLink(b, s, i, active)
	}

	return 0, false
}

// wrapDelimited renders a symmetric emphasis construct. An opener without a
// closer is written as escaped literal text in one go so that its characters
// are not reconsidered as shorter markers.
func wrapDelimited(b *strings.Builder, s string, i int, delim, marker string, wordBound bool, st, active style) (int, bool) {
	content, next, ok := delimited(s, i, delim, wordBound)
	if !ok {
		if len(delim) > 1 {
			b.WriteString(Escape(delim))
			return i + len(delim), true
		}
		return 0, false
	}
	wrap(b, content, marker, st, active)
	return next, true
}

func wrapTag(b *strings.Builder, s string, i int, open, close, marker string, st, active style) (int, bool) {
	start := i + len(open)
	end := strings.Index(s[start:], close)
	if end <= 0 {
		return 0, false
	}
	wrap(b, s[start:start+end], marker, st, active)
	return start + end + len(close), true
}

func wrap(b *strings.Builder, content, marker string, st, active style) {
	if active&st != 0 {
		appendPart(b, renderInline(content, active))
		return
	}
	appendPart(b, marker)
	appendPart(b, renderInline(content, active|st))
	appendPart(b, marker)
}

// appendPart writes part, separating underscore markers that would otherwise
// touch. Telegram reads "___" greedily as an underline marker first, so an
// italic and an underline marker next to each other get a \r between them,
// which Telegram ignores.
func appendPart(b *strings.Builder, part string) {
	if part == "" {
		return
	}
	if part[0] == '_' && endsWithMarkerUnderscore(b.String()) {
		b.WriteByte('\r')
	}
	b.WriteString(part)
}

// endsWithMarkerUnderscore reports whether s ends with an unescaped '_'.
func endsWithMarkerUnderscore(s string) bool {
	if !strings.HasSuffix(s, "_") {
		return false
	}
	backslashes := 0
	for j := len(s) - 2; j >= 0 && s[j] == '\\'; j-- {
		backslashes++
	}
	return backslashes%2 == 0
}

// delimited finds the nearest closer for the opener delim at s[i]. Openers
// must be followed and closers preceded by a non-space character; with
// wordBound the opener may not follow and the closer may not precede a
// letter or digit.
func delimited(s string, i int, delim string, wordBound bool) (string, int, bool) {
	start := i + len(delim)
	if start >= len(s) || isSpace(s[start]) {
		return "", 0, false
	}
	if wordBound && i > 0 {
		if r, _ := utf8.DecodeLastRuneInString(s[:i]); isWord(r) {
			return "", 0, false
		}
	}

	for j := start + 1; j+len(delim) <= len(s); j++ {
		if !strings.HasPrefix(s[j:], delim) {
			continue
		}
		if len(delim) == 1 && j+1 < len(s) && s[j+1] == delim[0] {
			// Part of a doubled marker, skip the pair.
			j++
			continue
		}
		if isSpace(s[j-1]) || s[j-1] == '\\' {
			continue
		}
		after := j + len(delim)
		if wordBound && after < len(s) {
			if r, _ := utf8.DecodeRuneInString(s[after:]); isWord(r) {
				continue
			}
		}
		return s[start:j], after, true
	}

	return "", 0, false
}

var linkSchemes = map[string]bool{
	"http":   true,
	"https":  true,
	"tg":     true,
	"mailto": true,
	"ftp":    true,
}

func renderLink(b *strings.Builder, s string, i int, active style) (int, bool) {
	closeText := strings.IndexByte(s[i+1:], ']')
	if closeText <= 0 {
		return 0, false
	}
	textEnd := i + 1 + closeText
	if textEnd+1 >= len(s) || s[textEnd+1] != '(' {
		return 0, false
	}
	closeURL := closingParen(s[textEnd+2:])
	if closeURL <= 0 {
		return 0, false
	}

	target := strings.TrimSpace(s[textEnd+2 : textEnd+2+closeURL])
	// Drop an optional link title: [text](url "title")
	if fields := strings.Fields(target); len(fields) > 0 {
		target = fields[0]
	}
	if !validLink(target) {
		return 0, false
	}

	b.WriteByte('[')
	b.WriteString(renderInline(s[i+1:textEnd], active))
	b.WriteString("](")
	b.WriteString(EscapeLinkURL(target))
	b.WriteByte(')')
	return textEnd + 2 + closeURL + 1, true
}

// closingParen returns the index of the ')' that closes a link target,
// skipping balanced pairs such as in /wiki/Go_(language).
func closingParen(s string) int {
	depth := 0
	for j := 0; j < len(s); j++ {
		switch s[j] {
		case '(':
			depth++
		case ')':
			if depth == 0 {
				return j
			}
			depth--
		case ' ', '\t':
			if depth > 0 {
				return -1
			}
		}
	}
	return -1
}

func validLink(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	if !linkSchemes[strings.ToLower(u.Scheme)] {
		return false
	}
	return u.Host != "" || u.Opaque != ""
}

func isASCIIPunct(c byte) bool {
	return c < utf8.RuneSelf && (unicode.IsPunct(rune(c)) || unicode.IsSymbol(rune(c)))
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n'
}

func isWord(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}
