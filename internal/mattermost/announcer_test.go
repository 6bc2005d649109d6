package mattermost

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Horth168/staff-attendance-app/internal/i18n"
	"github.com/Horth168/staff-attendance-app/internal/model"
)

func TestAnnouncer_Announce(t *testing.T) {
	require.NoError(t, i18n.Init("en"))

	var got Post
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v4/posts", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ts := time.Date(2025, 1, 6, 9, 0, 0, 0, time.UTC)
	a := NewAnnouncer(NewClient(srv.URL, "secret"), "town-square", time.UTC)
	ctx := i18n.WithLocale(context.Background(), "km")

	err := a.Announce(ctx, model.AttendanceEvent{StaffName: "Tom", Type: model.EventClockIn, Timestamp: &ts})
	require.NoError(t, err)

	assert.Equal(t, "town-square", got.ChannelID)
	assert.Equal(t, "@Tom clocked in", got.Message)
	require.Len(t, got.Props.Attachments, 1)
	assert.Equal(t, colorClockIn, got.Props.Attachments[0].Color)
	require.Len(t, got.Props.Attachments[0].Fields, 1)
	assert.Equal(t, Field{Title: "Time", Value: "2025-01-06 09:00", Short: true}, got.Props.Attachments[0].Fields[0])
}

func TestAnnouncer_ClockOutWireFormat(t *testing.T) {
	require.NoError(t, i18n.Init("en"))

	var raw map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&raw))
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	ts := time.Date(2025, 1, 6, 17, 30, 0, 0, time.UTC)
	a := NewAnnouncer(NewClient(srv.URL+"/", "secret"), "town-square", time.UTC)
	require.NoError(t, a.Announce(context.Background(), model.AttendanceEvent{StaffName: "Tom", Type: model.EventClockOut, Timestamp: &ts}))

	// Only what the announcement fills in goes over the wire.
	assert.ElementsMatch(t, []string{"channel_id", "message", "props"}, keys(raw))
	attachment := raw["props"].(map[string]any)["attachments"].([]any)[0].(map[string]any)
	assert.ElementsMatch(t, []string{"color", "fields"}, keys(attachment))
	assert.Equal(t, colorClockOut, attachment["color"])
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

func TestClient_CreatePost_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"channel not found"}`, http.StatusNotFound)
	}))
	defer srv.Close()

	err := NewClient(srv.URL, "secret").CreatePost(context.Background(), Post{ChannelID: "x", Message: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api error 404")
	assert.Contains(t, err.Error(), "channel not found")
}
