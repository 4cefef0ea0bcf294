package export

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"
)

// Block is one entry of an item body.
type Block struct {
	Type    string   `json:"type"`
	Level   int      `json:"level,omitempty"`
	Text    string   `json:"text,omitempty"`
	Items   []string `json:"items,omitempty"`
	Ordered bool     `json:"ordered,omitempty"`
	Prompt  string   `json:"prompt,omitempty"`
	Options []string `json:"options,omitempty"`
}

// BlocksToHTML renders an item body. Bodies that are not a block array
// render as empty; unknown block types fall back to their text.
func BlocksToHTML(body json.RawMessage) string {
	if len(body) == 0 {
		return ""
	}
	var blocks []Block
	if err := json.Unmarshal(body, &blocks); err != nil {
		return ""
	}
	var out strings.Builder
	question := 0
	for _, block := range blocks {
		if block.Type == "question" {
			question++
		}
		out.WriteString(renderBlock(block, question))
	}
	return out.String()
}

func renderBlock(block Block, question int) string {
	switch block.Type {
	case "heading":
		level := block.Level
		if level < 1 || level > 6 {
			level = 2
		}
		return fmt.Sprintf("<h%d>%s</h%d>\n", level, html.EscapeString(block.Text), level)
	case "paragraph":
		return fmt.Sprintf("<p>%s</p>\n", html.EscapeString(block.Text))
	case "list":
		tag := "ul"
		if block.Ordered {
			tag = "ol"
		}
		return fmt.Sprintf("<%s>\n%s</%s>\n", tag, listItems(block.Items), tag)
	case "code":
		return fmt.Sprintf("<pre><code>%s</code></pre>\n", html.EscapeString(block.Text))
	case "quote":
		return fmt.Sprintf("<blockquote>\n<p>%s</p>\n</blockquote>\n", html.EscapeString(block.Text))
	case "question":
		return fmt.Sprintf("<div class=\"question\">\n<p><strong>%d.</strong> %s</p>\n<ol type=\"a\">\n%s</ol>\n</div>\n",
			question, html.EscapeString(block.Prompt), listItems(block.Options))
	case "divider":
		return "<hr>\n"
	default:
		if block.Text == "" {
			return ""
		}
		return fmt.Sprintf("<p>%s</p>\n", html.EscapeString(block.Text))
	}
}

func listItems(items []string) string {
	var out strings.Builder
	for _, item := range items {
		out.WriteString("<li>")
		out.WriteString(html.EscapeString(item))
		out.WriteString("</li>\n")
	}
	return out.String()
}
