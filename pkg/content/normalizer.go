package content

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Mode selects how far Normalize goes
type Mode int

const (
	// ModeDisplay keeps inline markup supported by telegram HTML parse mode
	ModeDisplay Mode = iota
	// ModeStrict removes all markup, line breaks and quote markers, used for classification only
	ModeStrict
)

// maxStrictPasses bounds the strip loop, stripping may expose new tags in crafted input
const maxStrictPasses = 8

type substitution struct {
	re   *regexp.Regexp
	repl string
}

// Normalizer converts board comment markup to telegram-compatible markup.
// Both modes share the same ordered substitution table.
type Normalizer struct {
	table  []substitution
	policy *bluemonday.Policy
}

// NewNormalizer makes a normalizer rewriting host-relative links against baseURL
func NewNormalizer(baseURL string) *Normalizer {
	baseURL = strings.TrimSuffix(baseURL, "/")

	// order matters, later patterns expect earlier ones already applied
	table := []substitution{
		{re: regexp.MustCompile(`(?i)<\s*/?\s*br\s*/?\s*>`), repl: "\n"},
		{re: regexp.MustCompile(`(?i)<(/?)strong>`), repl: "<${1}b>"},
		{re: regexp.MustCompile(`(?i)<(/?)em>`), repl: "<${1}i>"},
		{re: regexp.MustCompile(`(?i)<a\s[^>]*?href\s*=\s*"([^"]*)"[^>]*>`), repl: `<a href="$1">`},
		{re: regexp.MustCompile(`<a href="/`), repl: `<a href="` + strings.ReplaceAll(baseURL, "$", "$$") + `/`},
	}

	policy := bluemonday.NewPolicy()
	policy.AllowElements("b", "i", "u", "s", "code", "pre")
	policy.AllowNoAttrs().OnElements("tg-spoiler")
	policy.AllowAttrs("href").OnElements("a")
	policy.AllowURLSchemes("http", "https")
	policy.RequireParseableURLs(true)

	return &Normalizer{table: table, policy: policy}
}

// Normalize applies the substitution table and the mode-specific cleanup
func (n *Normalizer) Normalize(raw string, mode Mode) string {
	res := n.substitute(raw)
	if mode == ModeDisplay {
		return strings.TrimSpace(n.policy.Sanitize(res))
	}

	for range maxStrictPasses {
		stripped := strip(res)
		if stripped == res {
			break
		}
		res = stripped
	}
	return res
}

func (n *Normalizer) substitute(s string) string {
	for _, sub := range n.table {
		s = sub.re.ReplaceAllString(s, sub.repl)
	}
	return mapSpans(s)
}

// spanTags maps board span classes to telegram tags
var spanTags = map[string]string{
	"unkfunc": "i",
	"spoiler": "tg-spoiler",
	"s":       "s",
	"u":       "u",
}

// mapSpans rewrites classed spans to telegram tags and drops other spans, sup and sub.
// Each closing span closes the tag its own opener was mapped to, unclosed tags are closed at the end.
func mapSpans(s string) string {
	var buf strings.Builder
	var stack []string
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		raw := string(z.Raw()) // TagName lowercases the buffer in place
		name, hasAttr := z.TagName()
		switch tag := string(name); {
		case tt == html.TextToken || (tag != "span" && tag != "sup" && tag != "sub"):
			buf.WriteString(raw)
		case tag != "span" || tt == html.SelfClosingTagToken:
		case tt == html.StartTagToken:
			mapped := ""
			for hasAttr && mapped == "" {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				if string(key) == "class" {
					mapped = spanClass(string(val))
				}
			}
			stack = append(stack, mapped)
			if mapped != "" {
				buf.WriteString("<" + mapped + ">")
			}
		case tt == html.EndTagToken && len(stack) > 0:
			mapped := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if mapped != "" {
				buf.WriteString("</" + mapped + ">")
			}
		}
	}
	for i := len(stack) - 1; i >= 0; i-- {
		if stack[i] != "" {
			buf.WriteString("</" + stack[i] + ">")
		}
	}
	return buf.String()
}

func spanClass(class string) string {
	for _, c := range strings.Fields(class) {
		if tag, ok := spanTags[c]; ok {
			return tag
		}
	}
	return ""
}

// strip drops all tags keeping raw text, then removes line breaks and encoded quote markers
func strip(s string) string {
	var buf bytes.Buffer
	z := html.NewTokenizer(strings.NewReader(s))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}
		if tt == html.TextToken {
			buf.Write(z.Raw())
		}
	}
	res := buf.String()
	res = strings.NewReplacer("\r", "", "\n", "", "&gt;", "").Replace(res)
	return res
}
