package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/text/language"

	"github.com/Horth168/staff-attendance-app/internal/config"
	"github.com/Horth168/staff-attendance-app/internal/handler"
	"github.com/Horth168/staff-attendance-app/internal/mattermost"
)

func memoryConfig() *config.Config {
	return &config.Config{
		StoreDriver:   config.DriverMemory,
		DefaultLocale: "en",
		Collation:     language.English,
		Location:      time.UTC,
	}
}

func TestApp_MemoryDriver(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var (
		mu    sync.Mutex
		posts []mattermost.Post
	)
	mm := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p mattermost.Post
		_ = json.NewDecoder(r.Body).Decode(&p)
		mu.Lock()
		posts = append(posts, p)
		mu.Unlock()
		_ = json.NewEncoder(w).Encode(p)
	}))
	defer mm.Close()

	cfg := memoryConfig()
	cfg.MattermostURL = mm.URL
	cfg.AttendanceBotToken = "tok"
	cfg.AnnounceChannelID = "attendance"

	a, err := New(ctx, cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Start(ctx))
	defer a.Close(context.Background())

	srv := httptest.NewServer(a.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/staff", "application/json", strings.NewReader(`{"name":"Tom"}`))
	require.NoError(t, err)
	var tom handler.StaffView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&tom))
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	require.Eventually(t, func() bool { return len(a.Cache.Staff()) == 1 }, time.Second, 5*time.Millisecond)

	resp, err = http.Post(srv.URL+"/api/staff/"+tom.ID+"/clock-in", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, posts, 1)
	assert.Equal(t, "attendance", posts[0].ChannelID)
	assert.Equal(t, "@Tom clocked in", posts[0].Message)
}

func TestApp_Close(t *testing.T) {
	a, err := New(context.Background(), memoryConfig(), zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, a.Start(context.Background()))
	require.NoError(t, a.Close(context.Background()))
	assert.Error(t, a.Cache.WaitReady(context.Background()))
}
