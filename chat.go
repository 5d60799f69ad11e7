package main

import (
	"html/template"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

const thinkingText = "..."

// Author identifies who wrote a chat message.
type Author int

const (
	AuthorUser Author = iota
	AuthorBot
)

func (a Author) String() string {
	if a == AuthorUser {
		return "user"
	}
	return "bot"
}

// BotContent is either PlainText or RichMarkup. Only the card builder
// produces RichMarkup.
type BotContent interface {
	botContent()
}

// PlainText is escaped when rendered.
type PlainText string

// RichMarkup is inserted into the log verbatim.
type RichMarkup template.HTML

func (PlainText) botContent()  {}
func (RichMarkup) botContent() {}

// ChatMessage is one bubble in the log.
type ChatMessage struct {
	Author  Author
	Content BotContent
}

func (m ChatMessage) IsUser() bool { return m.Author == AuthorUser }

// Text is the escaped-text body, empty for markup messages.
func (m ChatMessage) Text() string {
	if t, ok := m.Content.(PlainText); ok {
		return string(t)
	}
	return ""
}

// Markup is the verbatim body, empty for text messages.
func (m ChatMessage) Markup() template.HTML {
	if h, ok := m.Content.(RichMarkup); ok {
		return template.HTML(h)
	}
	return ""
}

func (m ChatMessage) Thinking() bool {
	return !m.IsUser() && strings.TrimSpace(m.Text()) == thinkingText
}

// HasCards reports whether the bubble holds a card group; those bubbles drop
// the default padding and background.
func (m ChatMessage) HasCards() bool {
	return strings.Contains(string(m.Markup()), `class="jewelry-cards-in-chat"`)
}

// visibleText is what a reader would see in the bubble.
func (m ChatMessage) visibleText() string {
	switch c := m.Content.(type) {
	case PlainText:
		return string(c)
	case RichMarkup:
		return markupText(string(c))
	}
	return ""
}

func markupText(fragment string) string {
	nodes, err := html.ParseFragment(strings.NewReader(fragment), &html.Node{
		Type:     html.ElementNode,
		Data:     "div",
		DataAtom: atom.Div,
	})
	if err != nil {
		return fragment
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range nodes {
		walk(n)
	}
	return b.String()
}

// chatLog is the ordered, append-only message log of one session.
type chatLog struct {
	messages []ChatMessage
}

// AppendUser adds a user bubble. User text is never treated as markup.
func (l *chatLog) AppendUser(text string) {
	l.messages = append(l.messages, ChatMessage{Author: AuthorUser, Content: PlainText(text)})
}

func (l *chatLog) AppendBot(content BotContent) {
	if content == nil {
		content = PlainText("")
	}
	l.messages = append(l.messages, ChatMessage{Author: AuthorBot, Content: content})
}

func (l *chatLog) AppendThinking() {
	l.AppendBot(PlainText(thinkingText))
}

// RemoveThinkingPlaceholder drops the newest message when it is a bot
// placeholder. Calling it with no placeholder present changes nothing.
func (l *chatLog) RemoveThinkingPlaceholder() bool {
	n := len(l.messages)
	if n == 0 {
		return false
	}
	last := l.messages[n-1]
	if last.IsUser() || strings.TrimSpace(last.visibleText()) != thinkingText {
		return false
	}
	l.messages = l.messages[:n-1]
	return true
}

func (l *chatLog) Messages() []ChatMessage {
	out := make([]ChatMessage, len(l.messages))
	copy(out, l.messages)
	return out
}

func (l *chatLog) Len() int { return len(l.messages) }

// statusBar is the single-line search summary above the log.
type statusBar struct {
	text string
}

func (s *statusBar) Update(text string) { s.text = text }

func (s *statusBar) Text() string { return s.text }

func (s *statusBar) Visible() bool { return s.text != "" }
