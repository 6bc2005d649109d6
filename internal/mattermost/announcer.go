package mattermost

import (
	"context"
	"time"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/model"
)

const (
	colorClockIn  = "#2e7d32"
	colorClockOut = "#757575"
)

// Announcer posts clock events to a channel in the server's default locale.
type Announcer struct {
	client    *Client
	channelID string
	loc       *time.Location
}

func NewAnnouncer(client *Client, channelID string, loc *time.Location) *Announcer {
	if loc == nil {
		loc = time.Local
	}
	return &Announcer{client: client, channelID: channelID, loc: loc}
}

func (a *Announcer) Announce(ctx context.Context, event model.AttendanceEvent) error {
	// The request locale is not the channel's audience.
	ctx = i18n.WithLocale(ctx, "")

	msgID, color := "announce.clock_out", colorClockOut
	if event.Type == model.EventClockIn {
		msgID, color = "announce.clock_in", colorClockIn
	}
	at := time.Now()
	if event.Timestamp != nil {
		at = *event.Timestamp
	}

	return a.client.CreatePost(ctx, Post{
		ChannelID: a.channelID,
		Message:   i18n.T(ctx, msgID, map[string]any{"Name": event.StaffName}),
		Props: Props{Attachments: []Attachment{{
			Color: color,
			Fields: []Field{{
				Title: i18n.T(ctx, "export.header.time"),
				Value: at.In(a.loc).Format("2006-01-02 15:04"),
				Short: true,
			}},
		}}},
	})
}
