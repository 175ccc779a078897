package gateway

import (
	"bytes"
	"encoding/json"
	"strings"

	"golang.org/x/net/html"
)

// errorDetail extracts a short human-readable cause from an error response
// body. Flask-style backends answer with {"error": "..."} JSON, but a dev
// server crash or a misconfigured proxy usually produces an HTML error page.
func errorDetail(contentType string, body []byte) string {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return "unknown error"
	}

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(trimmed, &payload); err == nil && payload.Error != "" {
		return payload.Error
	}

	if strings.Contains(contentType, "html") || bytes.HasPrefix(trimmed, []byte("<")) {
		if title := htmlTitle(trimmed); title != "" {
			return title
		}
	}

	return truncate(string(trimmed), 120)
}

// htmlTitle returns the text of the first <title> element, if any.
func htmlTitle(body []byte) string {
	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		return ""
	}

	var title string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if title != "" {
			return
		}
		if n.Type == html.ElementNode && n.Data == "title" {
			var sb strings.Builder
			for c := n.FirstChild; c != nil; c = c.NextSibling {
				if c.Type == html.TextNode {
					sb.WriteString(c.Data)
				}
			}
			title = strings.TrimSpace(sb.String())
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return title
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
