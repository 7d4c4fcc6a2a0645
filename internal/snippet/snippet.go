// Package snippet converts forum post HTML into Telegram-safe HTML
// fragments with a bounded visible length.
//
// The transformer understands exactly two pieces of forum markup: the
// first top-level <blockquote> (a quoted reply, kept as a quote block)
// and <a> elements (mentions, rendered as italic text instead of
// links). Everything else is flattened to escaped plain text.
package snippet

import (
	"strconv"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
)

// Telegram HTML parse mode needs &, < and > neutralized; quotes are fine.
var escaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")

// Escape escapes text for Telegram HTML parse mode.
func Escape(s string) string {
	return escaper.Replace(s)
}

// Render converts post HTML into a Telegram HTML snippet whose visible
// length (markup excluded) does not exceed maxVisible. When the rich
// rendering would not fit, the whole snippet degrades to escaped plain
// text truncated to maxVisible runes with a trailing ellipsis. Render is
// a pure function.
func Render(src string, maxVisible int) string {
	quote, body, anchors := tokenize(src)

	richQuote, lenQuote := renderRich(quote, anchors)
	richBody, lenBody := renderRich(body, anchors)

	total := lenQuote + lenBody
	if lenQuote > 0 && lenBody > 0 {
		total++ // separator between quote block and reply body
	}

	if total > maxVisible {
		parts := make([]string, 0, 2)
		if p := plainText(quote, anchors); p != "" {
			parts = append(parts, p)
		}
		if p := plainText(body, anchors); p != "" {
			parts = append(parts, p)
		}
		plain := strings.Join(parts, " ")
		if r := []rune(plain); len(r) > maxVisible {
			plain = string(r[:maxVisible]) + "…"
		}
		return Escape(plain)
	}

	switch {
	case lenQuote == 0:
		return richBody
	case lenBody == 0:
		return "<blockquote>" + richQuote + "</blockquote>"
	default:
		return "<blockquote>" + richQuote + "</blockquote>\n" + richBody
	}
}

// tokenize splits src into the first top-level blockquote's content and
// everything else. Anchor contents are pulled out into the anchors slice
// and referenced from the streams by NUL-delimited placeholders, so that
// whitespace collapsing cannot disturb them.
func tokenize(src string) (quote, body string, anchors []string) {
	var quoteBuf, bodyBuf, anchorBuf strings.Builder
	inAnchor := false
	quoteDepth := 0
	quoteDone := false

	// sink returns the builder that plain text and tag separators
	// currently flow into.
	sink := func() *strings.Builder {
		if inAnchor {
			return &anchorBuf
		}
		if quoteDepth > 0 {
			return &quoteBuf
		}
		return &bodyBuf
	}

	z := html.NewTokenizer(strings.NewReader(src))
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			if inAnchor {
				// Unclosed anchor: keep its text as plain content.
				inAnchor = false
				sink().WriteString(anchorBuf.String())
			}
			return quoteBuf.String(), bodyBuf.String(), anchors
		case html.TextToken:
			// Literal NUL bytes in the source would collide with the
			// anchor placeholder markers.
			sink().WriteString(strings.ReplaceAll(string(z.Text()), "\x00", " "))
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			name, _ := z.TagName()
			tag := string(name)
			switch {
			case tag == "a" && tt == html.StartTagToken && !inAnchor:
				inAnchor = true
				anchorBuf.Reset()
			case tag == "a" && tt == html.EndTagToken && inAnchor:
				inAnchor = false
				inner := collapse(anchorBuf.String())
				if inner != "" {
					anchors = append(anchors, inner)
					out := sink()
					out.WriteByte(0)
					out.WriteString(strconv.Itoa(len(anchors) - 1))
					out.WriteByte(0)
				}
			case tag == "blockquote" && tt == html.StartTagToken && !inAnchor:
				if quoteDepth > 0 || !quoteDone {
					quoteDepth++
					if quoteDepth > 1 {
						quoteBuf.WriteByte(' ')
					}
				} else {
					bodyBuf.WriteByte(' ')
				}
			case tag == "blockquote" && tt == html.EndTagToken && !inAnchor:
				if quoteDepth > 0 {
					quoteDepth--
					if quoteDepth == 0 {
						quoteDone = true
					} else {
						quoteBuf.WriteByte(' ')
					}
				} else {
					bodyBuf.WriteByte(' ')
				}
			default:
				// Any other tag contributes a word boundary.
				sink().WriteByte(' ')
			}
		}
	}
}

// renderRich turns a token stream into escaped Telegram HTML with anchor
// placeholders expanded to <i>…</i>, returning the rendered string and
// its visible rune length.
func renderRich(raw string, anchors []string) (string, int) {
	s := collapse(raw)
	var b strings.Builder
	visible := 0
	for {
		i := strings.IndexByte(s, 0)
		if i < 0 {
			esc := Escape(s)
			b.WriteString(esc)
			visible += utf8.RuneCountInString(esc)
			return b.String(), visible
		}
		esc := Escape(s[:i])
		b.WriteString(esc)
		visible += utf8.RuneCountInString(esc)

		rest := s[i+1:]
		j := strings.IndexByte(rest, 0)
		if j < 0 {
			s = rest
			continue
		}
		idx, err := strconv.Atoi(rest[:j])
		s = rest[j+1:]
		if err != nil || idx < 0 || idx >= len(anchors) {
			continue
		}
		inner := Escape(anchors[idx])
		b.WriteString("<i>")
		b.WriteString(inner)
		b.WriteString("</i>")
		visible += utf8.RuneCountInString(inner)
	}
}

// plainText flattens a token stream to unescaped plain text with anchor
// contents inlined.
func plainText(raw string, anchors []string) string {
	var b strings.Builder
	s := raw
	for {
		i := strings.IndexByte(s, 0)
		if i < 0 {
			b.WriteString(s)
			break
		}
		b.WriteString(s[:i])
		rest := s[i+1:]
		j := strings.IndexByte(rest, 0)
		if j < 0 {
			s = rest
			continue
		}
		idx, err := strconv.Atoi(rest[:j])
		s = rest[j+1:]
		if err != nil || idx < 0 || idx >= len(anchors) {
			continue
		}
		b.WriteString(" " + anchors[idx] + " ")
	}
	return collapse(b.String())
}

// collapse trims s and squeezes runs of whitespace (including NBSP from
// decoded &nbsp; entities) into single spaces.
func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
