package feed

import (
	"encoding/xml"
	"fmt"
	"io"
	"strings"
	"time"

	"emergency-dispatch/internal/models"
)

// Channel is the document-level metadata of the feed.
type Channel struct {
	Title       string
	Link        string
	Description string
	Generator   string
}

// DefaultChannel is used for any Channel field left empty.
var DefaultChannel = Channel{
	Title:       "緊急出動情報",
	Link:        "https://github.com/oageo/emergency-dispatch",
	Description: "各地の消防本部が公開している現在の災害出動情報をまとめたフィードです。",
	Generator:   "emergency-dispatch",
}

const language = "ja"

type rssDoc struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate"`
	Generator     string    `xml:"generator"`
	Language      string    `xml:"language"`
	Items         []rssItem `xml:"item"`
}

type rssItem struct {
	Title       string  `xml:"title"`
	Description string  `xml:"description"`
	Link        string  `xml:"link"`
	PubDate     string  `xml:"pubDate"`
	GUID        rssGUID `xml:"guid"`
}

type rssGUID struct {
	IsPermaLink string `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

func (c Channel) withDefaults() Channel {
	if c.Title == "" {
		c.Title = DefaultChannel.Title
	}
	if c.Link == "" {
		c.Link = DefaultChannel.Link
	}
	if c.Description == "" {
		c.Description = DefaultChannel.Description
	}
	if c.Generator == "" {
		c.Generator = DefaultChannel.Generator
	}
	return c
}

// Render writes events as an RSS 2.0 document. Apart from lastBuildDate,
// the output is a pure function of events and ch.
func Render(w io.Writer, events []models.Event, ch Channel, now time.Time) error {
	ch = ch.withDefaults()
	doc := rssDoc{
		Version: "2.0",
		Channel: rssChannel{
			Title:         ch.Title,
			Link:          ch.Link,
			Description:   ch.Description,
			LastBuildDate: now.Format(time.RFC1123Z),
			Generator:     ch.Generator,
			Language:      language,
			Items:         make([]rssItem, 0, len(events)),
		},
	}
	for _, e := range events {
		doc.Channel.Items = append(doc.Channel.Items, rssItem{
			Title:       e.Title,
			Description: e.Description,
			Link:        e.Link,
			PubDate:     e.OccurredAt.Format(time.RFC3339),
			GUID:        rssGUID{IsPermaLink: "false", Value: e.GUID},
		})
	}

	if _, err := io.WriteString(w, xml.Header); err != nil {
		return err
	}
	enc := xml.NewEncoder(w)
	enc.Indent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("encode rss: %w", err)
	}
	if err := enc.Close(); err != nil {
		return err
	}
	_, err := io.WriteString(w, "\n")
	return err
}

// ParseIdentities recovers the essence-to-identity map from a feed
// previously written by Render. The dispatch type is taken from the item
// title, the address from its description.
func ParseIdentities(r io.Reader) (Identities, error) {
	var doc rssDoc
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode rss: %w", err)
	}
	if doc.Version != "2.0" {
		return nil, fmt.Errorf("unsupported rss version %q", doc.Version)
	}
	ids := make(Identities, len(doc.Channel.Items))
	for _, it := range doc.Channel.Items {
		guid := strings.TrimSpace(it.GUID.Value)
		typ, ok := typeFromTitle(it.Title)
		if guid == "" || !ok {
			continue
		}
		key := models.Essence{Address: it.Description, Type: typ}
		if _, exists := ids[key]; !exists {
			ids[key] = guid
		}
	}
	return ids, nil
}

// typeFromTitle reverses Title.
func typeFromTitle(title string) (string, bool) {
	if !strings.HasSuffix(title, "）") {
		return "", false
	}
	i := strings.LastIndex(title, "（")
	if i <= 0 {
		return "", false
	}
	return title[:i], true
}
