package main

import (
	"encoding/json"
	"fmt"
	"html/template"
	"log"
)

const (
	noResultsStatus  = "No similar jewelry found."
	noResultsMessage = "Sorry, I couldn't find any similar items based on that image."
	analyzedMessage  = "I analyzed the image."
)

type cardView struct {
	Title       string
	Alt         string
	Price       string
	ImageURL    string
	Placeholder string
	// Record is the JSON form of the full record; html/template escapes it
	// for the data-record attribute.
	Record string
}

// buildResults reports a successful search into the log and status bar.
func buildResults(l *chatLog, status *statusBar, resp SearchResponse, placeholder string) {
	if len(resp.Data) == 0 {
		status.Update(noResultsStatus)
		l.AppendBot(PlainText(noResultsMessage))
		return
	}

	sourcePass := resp.SourcePass
	if sourcePass == "" {
		sourcePass = "N/A"
	}
	status.Update(fmt.Sprintf("Found %d similar item(s). (Results from: %s)", resp.TotalFound, sourcePass))

	if resp.GeneratedCaption != "" {
		l.AppendBot(PlainText(`Okay, I see: "` + resp.GeneratedCaption + `"`))
	} else {
		l.AppendBot(PlainText(analyzedMessage))
	}

	cards, err := renderCards(resp.Data, placeholder)
	if err != nil {
		log.Printf("render cards: %v", err)
		return
	}
	l.AppendBot(RichMarkup(cards))
}

// renderCards builds one card group. Records that cannot be serialized are
// logged and left out.
func renderCards(records []SearchResult, placeholder string) (template.HTML, error) {
	views := make([]cardView, 0, len(records))
	for i, rec := range records {
		data, err := json.Marshal(rec)
		if err != nil {
			log.Printf("skipping result %d (%q): %v", i, rec.Title, err)
			continue
		}
		image := rec.ImageURL
		if image == "" {
			image = placeholder
		}
		alt := rec.Title
		if alt == "" {
			alt = "Jewelry Item"
		}
		title := rec.Title
		if title == "" {
			title = "Untitled Jewelry"
		}
		views = append(views, cardView{
			Title:       title,
			Alt:         alt,
			Price:       recordPrice(rec),
			ImageURL:    image,
			Placeholder: placeholder,
			Record:      string(data),
		})
	}
	return renderFragment("cards", views)
}

// parseCardRecord recovers the record a card carries in data-record.
func parseCardRecord(data string) (*SearchResult, error) {
	if data == "" || data == "null" {
		return nil, fmt.Errorf("empty record")
	}
	var rec SearchResult
	if err := json.Unmarshal([]byte(data), &rec); err != nil {
		return nil, fmt.Errorf("parse record: %w", err)
	}
	return &rec, nil
}
