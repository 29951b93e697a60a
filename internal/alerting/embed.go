package alerting

import (
	"fmt"
	"strings"
	"time"
)

type webhookPayload struct {
	Username string  `json:"username"`
	Content  string  `json:"content,omitempty"`
	Embeds   []embed `json:"embeds"`
}

type embed struct {
	Title       string       `json:"title"`
	URL         string       `json:"url,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Image       *embedImage  `json:"image,omitempty"`
	Timestamp   string       `json:"timestamp"`
	Footer      embedFooter  `json:"footer"`
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embedImage struct {
	URL string `json:"url"`
}

type embedFooter struct {
	Text string `json:"text"`
}

func buildPayload(username string, alert Alert, ping bool) webhookPayload {
	fields := []embedField{{Name: "Price", Value: formatPrice(alert), Inline: true}}

	if alert.EndsAt != nil {
		unix := alert.EndsAt.Unix()
		fields = append(fields, embedField{
			Name:   "Ends",
			Value:  fmt.Sprintf("<t:%d:F>\n<t:%d:R>", unix, unix),
			Inline: true,
		})
	}
	if alert.LastChangeAt != nil {
		fields = append(fields, embedField{
			Name:   "Last change",
			Value:  fmt.Sprintf("<t:%d:R>", alert.LastChangeAt.Unix()),
			Inline: true,
		})
	}

	color := colorTracking
	if withinClosingWindow(alert.EndsAt, alert.Now) {
		color = colorClosingSoon
	}

	title := alert.Title
	if title == "" {
		title = "Auction lot"
	}

	e := embed{
		Title:     title,
		URL:       alert.URL,
		Color:     color,
		Fields:    fields,
		Timestamp: alert.Now.UTC().Format(time.RFC3339),
		Footer:    embedFooter{Text: "Live updates via Auction Tracker"},
	}
	if alert.DisplayName != "" {
		e.Description = "**" + alert.DisplayName + "**"
	}
	if alert.Image != "" {
		e.Image = &embedImage{URL: alert.Image}
	}

	payload := webhookPayload{Username: username, Embeds: []embed{e}}
	if ping {
		payload.Content = "@everyone"
	}
	return payload
}

func formatPrice(alert Alert) string {
	if alert.Price == nil {
		return "—"
	}
	symbol := currencySymbol(alert.Currency)
	// Dutch-style decimal comma, matching the source site.
	return symbol + " " + strings.ReplaceAll(alert.Price.StringFixed(2), ".", ",")
}

func currencySymbol(currency string) string {
	switch strings.ToUpper(currency) {
	case "", "EUR":
		return "€"
	case "USD":
		return "$"
	case "GBP":
		return "£"
	default:
		return currency
	}
}

func withinClosingWindow(endsAt *time.Time, now time.Time) bool {
	if endsAt == nil {
		return false
	}
	left := endsAt.Sub(now)
	return left > 0 && left <= closingWindow
}
