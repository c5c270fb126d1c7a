// Package slackdom holds what the engine knows about the Slack web client's
// markup: selectors, URL shapes, and HTML extraction of result items.
package slackdom

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/pkg/utils"
)

var (
	ErrMissingMessage   = errors.New("result item has no message text")
	ErrMissingPermalink = errors.New("result item has no permalink")
)

// lookup is one best-effort extraction step. ok is false when the source is
// absent or empty.
type lookup func(doc *goquery.Selection) (value string, ok bool)

func firstOf(doc *goquery.Selection, steps ...lookup) (string, bool) {
	for _, step := range steps {
		if v, ok := step(doc); ok {
			return v, true
		}
	}
	return "", false
}

func textOf(selector string) lookup {
	return func(doc *goquery.Selection) (string, bool) {
		v := normalize(doc.Find(selector).First().Text())
		return v, v != ""
	}
}

func attrOf(selector, name string) lookup {
	return func(doc *goquery.Selection) (string, bool) {
		v, ok := doc.Find(selector).First().Attr(name)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}
}

func normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func parse(html string) (*goquery.Selection, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse item html: %w", err)
	}
	return doc.Selection, nil
}

// ItemTimestamp reads the Unix timestamp carried by the item's permalink
// element. Slack renders it as "seconds.micros".
func ItemTimestamp(html string) (int64, bool) {
	doc, err := parse(html)
	if err != nil {
		return 0, false
	}
	return timestampOf(doc)
}

func timestampOf(doc *goquery.Selection) (int64, bool) {
	raw, ok := firstOf(doc, attrOf(permalinkElement, "data-ts"), attrOf("[data-ts]", "data-ts"))
	if !ok {
		return 0, false
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return int64(f), true
}

// ExtractItem builds a SearchResultItem from the outer HTML of one expanded
// result. Relative permalinks are resolved against workspaceURL.
func ExtractItem(html, workspaceURL string) (entity.SearchResultItem, error) {
	var item entity.SearchResultItem

	doc, err := parse(html)
	if err != nil {
		return item, err
	}

	item.Message, _ = firstOf(doc, textOf(messageText))
	if item.Message == "" {
		return item, ErrMissingMessage
	}

	channel, _ := firstOf(doc, textOf(channelName))
	item.Channel = strings.TrimPrefix(channel, "#")
	item.Sender, _ = firstOf(doc, textOf(senderName))

	if ts, ok := timestampOf(doc); ok {
		item.TimestampUnix = &ts
	}
	item.Timestamp, _ = firstOf(doc,
		textOf(timestampLabel),
		attrOf(permalinkElement, "aria-label"),
		func(*goquery.Selection) (string, bool) {
			if item.TimestampUnix == nil {
				return "", false
			}
			return time.Unix(*item.TimestampUnix, 0).UTC().Format("Jan 2, 2006 3:04 PM"), true
		},
	)

	link, ok := firstOf(doc,
		attrOf(permalinkElement, "href"),
		attrOf(archiveLink, "href"),
		attrOf(permalinkData, "data-permalink"),
	)
	if !ok {
		return item, ErrMissingPermalink
	}
	item.Permalink = resolve(workspaceURL, link)

	return item, nil
}

func resolve(base, link string) string {
	b, err := url.Parse(base)
	if err != nil || b.Host == "" {
		return link
	}
	abs, err := utils.ToAbsoluteURL(b, link)
	if err != nil {
		return link
	}
	return abs
}

// WorkspaceListEntry reads the display name and link of one entry in the
// workspace picker. Either value may be empty.
func WorkspaceListEntry(html string) (name, href string) {
	doc, err := parse(html)
	if err != nil {
		return "", ""
	}
	name, _ = firstOf(doc,
		textOf(workspaceListName),
		attrOf("a", "aria-label"),
		textOf("a"),
	)
	href, _ = firstOf(doc, attrOf("a", "href"))
	return name, href
}

// IsEmptyState reports whether the empty-state marker text is the known
// "no results" phrase.
func IsEmptyState(text string) bool {
	return strings.Contains(strings.ToLower(text), EmptyStatePhrase)
}
