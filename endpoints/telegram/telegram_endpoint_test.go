package telegram

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/lomik/zapwriter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pysal/release2news/db"
	"github.com/pysal/release2news/endpoints"
	"github.com/pysal/release2news/types"
)

var testToken = "123456789:" + strings.Repeat("a", 35)

type fakeTelegram struct {
	sync.Mutex
	sent     map[int64][]string
	failures map[int64]string
}

func (f *fakeTelegram) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !strings.HasSuffix(r.URL.Path, "/sendMessage") {
		w.WriteHeader(http.StatusNotFound)
		return
	}

	var req struct {
		ChatID    int64  `json:"chat_id"`
		Text      string `json:"text"`
		ParseMode string `json:"parse_mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	f.Lock()
	defer f.Unlock()
	w.Header().Set("Content-Type", "application/json")
	if desc, ok := f.failures[req.ChatID]; ok {
		_, _ = w.Write([]byte(`{"ok":false,"error_code":400,"description":"` + desc + `"}`))
		return
	}
	f.sent[req.ChatID] = append(f.sent[req.ChatID], req.Text)
	_, _ = w.Write([]byte(`{"ok":true,"result":{"message_id":1,"date":0,"chat":{"id":1,"type":"private"}}}`))
}

func newFakeTelegram(t *testing.T) (*fakeTelegram, *httptest.Server) {
	f := &fakeTelegram{
		sent:     make(map[int64][]string),
		failures: make(map[int64]string),
	}
	server := httptest.NewServer(f)
	t.Cleanup(server.Close)
	return f, server
}

func newTestDB(t *testing.T) db.Database {
	d, err := db.NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestFormatRelease(t *testing.T) {
	msg := FormatRelease("esda", types.Release{Tag: "v2.5.0", PublishedAt: "2023-11-07T10:22:31Z"},
		"https://github.com/pysal/esda/releases/tag/v2.5.0")
	assert.Equal(t, "*esda 2\\.5\\.0 released*\n[Release notes](https://github.com/pysal/esda/releases/tag/v2.5.0)", msg)
}

func TestNewTgLoggerOddReplaces(t *testing.T) {
	_, err := newTgLogger(zapwriter.Logger("test"), []string{"only-one"})
	require.Error(t, err)
}

func TestInitializeUnknownParam(t *testing.T) {
	_, err := InitializeTelegramEndpoint(testToken, nil, newTestDB(t), &endpoints.ConfigParams{Name: "webhook_url", Value: "x"})
	require.Error(t, err)
}

func TestAnnounce(t *testing.T) {
	f, server := newFakeTelegram(t)
	f.failures[2] = "Bad Request: chat not found"
	f.failures[3] = "Too Many Requests: retry after 5"

	database := newTestDB(t)
	e, err := InitializeTelegramEndpoint(testToken, []int64{1, 2, 3}, database,
		WithAPIServer(server.URL),
		WithTimeout(5*time.Second),
	)
	require.NoError(t, err)

	release := types.Release{Tag: "v2.5.0", PublishedAt: "2023-11-07T10:22:31Z"}
	err = e.Announce("esda", release, "https://github.com/pysal/esda/releases/tag/v2.5.0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat 2")

	f.Lock()
	assert.Len(t, f.sent[1], 1)
	assert.Empty(t, f.sent[2])
	f.Unlock()

	// chat 3 failed with recoverable error and must be resent by next Process
	f.Lock()
	delete(f.failures, 3)
	f.Unlock()
	require.NoError(t, e.Process())

	f.Lock()
	require.Len(t, f.sent[3], 1)
	assert.Equal(t, f.sent[1][0], f.sent[3][0])
	f.Unlock()

	queued, err := database.GetMessagesFromResendQueue()
	require.NoError(t, err)
	assert.Empty(t, queued)
}

func TestProcessKeepsUndelivered(t *testing.T) {
	f, server := newFakeTelegram(t)
	f.failures[5] = "Internal Server Error"

	database := newTestDB(t)
	require.NoError(t, database.AddMessagesToResendQueue([]*types.NotificationMessage{
		{ChatID: 4, Message: "first"},
		{ChatID: 5, Message: "second"},
	}))

	e, err := InitializeTelegramEndpoint(testToken, nil, database, WithAPIServer(server.URL))
	require.NoError(t, err)
	require.NoError(t, e.Process())

	f.Lock()
	assert.Equal(t, []string{"first"}, f.sent[4])
	f.Unlock()

	queued, err := database.GetMessagesFromResendQueue()
	require.NoError(t, err)
	assert.Equal(t, []*types.NotificationMessage{{ChatID: 5, Message: "second"}}, queued)
}
