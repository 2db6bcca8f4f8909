package render

import (
	"bytes"
	"embed"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"station_watch/internal/domain"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

var (
	subjectTmpl  = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/rollup_subject.txt.tmpl"))
	bodyTextTmpl = texttemplate.Must(texttemplate.ParseFS(templateFS, "templates/rollup_body.txt.tmpl"))
	bodyHTMLTmpl = htmltemplate.Must(htmltemplate.ParseFS(templateFS, "templates/rollup_body.html.tmpl"))
)

// Site identifies the public site notifications link back to.
type Site struct {
	Name    string
	BaseURL string
}

// RollupResult is one station update rendered for a roll-up email.
type RollupResult struct {
	StationName string
	Address     string
	Network     string
	IsNew       bool
	Timestamp   time.Time
	URL         string
	Changes     []Change
}

type rollupContext struct {
	SearchName  string
	Period      string
	ResultCount int
	Site        Site
	Results     []RollupResult
}

// RollupEmail renders the subject, text body and HTML body summarizing the
// given unread results for one search.
func RollupEmail(search *domain.Search, items []domain.RollupItem, period domain.Cadence, site Site) (domain.NotificationMessage, error) {
	ctx := rollupContext{
		SearchName:  search.Name,
		Period:      string(period),
		ResultCount: len(items),
		Site:        site,
		Results:     make([]RollupResult, 0, len(items)),
	}

	for i := range items {
		upd := &items[i].Update
		snap := &upd.Current
		name := snap.BeaconName
		if snap.StationName != nil && *snap.StationName != "" {
			name = *snap.StationName
		}
		ctx.Results = append(ctx.Results, RollupResult{
			StationName: name,
			Address:     snap.FullAddress(),
			Network:     NetworkLabel(strOrEmpty(snap.EVNetwork)),
			IsNew:       upd.IsCreation,
			Timestamp:   upd.CreatedAt,
			URL:         fmt.Sprintf("%s/stations/%s#update-%d", site.BaseURL, snap.BeaconName, upd.ID),
			Changes:     Changes(upd),
		})
	}

	var msg domain.NotificationMessage

	var subject bytes.Buffer
	if err := subjectTmpl.Execute(&subject, ctx); err != nil {
		return msg, fmt.Errorf("render subject: %w", err)
	}
	var body bytes.Buffer
	if err := bodyTextTmpl.Execute(&body, ctx); err != nil {
		return msg, fmt.Errorf("render text body: %w", err)
	}
	var bodyHTML bytes.Buffer
	if err := bodyHTMLTmpl.Execute(&bodyHTML, ctx); err != nil {
		return msg, fmt.Errorf("render html body: %w", err)
	}

	msg.Subject = strings.TrimSpace(subject.String())
	msg.Body = body.String()
	msg.BodyHTML = bodyHTML.String()
	msg.Recipient = search.UserEmail
	return msg, nil
}

func strOrEmpty(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
