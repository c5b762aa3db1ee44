// Package sanitize holds the input cleaners applied to update-meta parameters
// before they reach the service: plain text, URLs and integer ids.
package sanitize

import (
	"bytes"
	"regexp"
	"strings"
	"unicode/utf8"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

var (
	whitespaceRun = regexp.MustCompile(`[\r\n\t ]+`)
	percentOctet  = regexp.MustCompile(`%[a-fA-F0-9]{2}`)
)

// TextField reduces s to a single line of plain text. Invalid UTF-8 yields
// "". A "<" that never reaches a ">" is escaped along with the text up to the
// next "<" or the end, so "Price<Value" survives as "Price&lt;Value". Tags are
// removed, as are closed script and style elements with their content.
// Whitespace runs collapse to one space and percent-encoded octets are dropped.
func TextField(s string) string {
	if !utf8.ValidString(s) {
		return ""
	}
	if strings.Contains(s, "<") {
		s = stripTags(escapeUnclosedLessThan(s))
	}
	s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))

	if percentOctet.MatchString(s) {
		for percentOctet.MatchString(s) {
			s = percentOctet.ReplaceAllString(s, "")
		}
		s = strings.TrimSpace(whitespaceRun.ReplaceAllString(s, " "))
	}
	return s
}

func stripTags(s string) string {
	z := html.NewTokenizer(strings.NewReader(s))
	var out, pending bytes.Buffer
	inRawText := false
	for {
		switch z.Next() {
		case html.ErrorToken:
			// An unclosed script or style keeps its text.
			out.Write(pending.Bytes())
			return out.String()
		case html.StartTagToken:
			if !inRawText && isRawTextElement(z) {
				inRawText = true
				pending.Reset()
			}
		case html.EndTagToken:
			if inRawText && isRawTextElement(z) {
				inRawText = false
				pending.Reset()
			}
		case html.TextToken:
			text := strings.ReplaceAll(string(z.Raw()), "<", "&lt;")
			if inRawText {
				pending.WriteString(text)
			} else {
				out.WriteString(text)
			}
		}
	}
}

// escapeUnclosedLessThan HTML-escapes every run that starts at "<" and ends
// before the next "<" (or at the end) without passing a ">".
func escapeUnclosedLessThan(s string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '<')
		if i < 0 {
			b.WriteString(s)
			return b.String()
		}
		b.WriteString(s[:i])
		rest := s[i:]
		j := strings.IndexAny(rest[1:], "<>")
		if j >= 0 && rest[1+j] == '>' {
			b.WriteString(rest[:j+2])
			s = rest[j+2:]
			continue
		}
		end := len(rest)
		if j >= 0 {
			end = 1 + j
		}
		b.WriteString(escapeChunk(rest[:end]))
		s = rest[end:]
	}
}

var (
	entityRef     = regexp.MustCompile(`^&(#[0-9]+|#[xX][0-9a-fA-F]+|[a-zA-Z][a-zA-Z0-9]*);`)
	chunkReplacer = strings.NewReplacer("<", "&lt;", ">", "&gt;", `"`, "&quot;", "'", "&#039;")
)

// escapeChunk escapes markup characters without double-encoding existing
// entity references.
func escapeChunk(s string) string {
	var b strings.Builder
	for {
		i := strings.IndexByte(s, '&')
		if i < 0 {
			b.WriteString(chunkReplacer.Replace(s))
			return b.String()
		}
		b.WriteString(chunkReplacer.Replace(s[:i]))
		if ref := entityRef.FindString(s[i:]); ref != "" {
			b.WriteString(ref)
			s = s[i+len(ref):]
			continue
		}
		b.WriteString("&amp;")
		s = s[i+1:]
	}
}

func isRawTextElement(z *html.Tokenizer) bool {
	name, _ := z.TagName()
	switch atom.Lookup(name) {
	case atom.Script, atom.Style:
		return true
	default:
		return false
	}
}
