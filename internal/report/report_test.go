package report

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSink_EmptyURL(t *testing.T) {
	assert.Nil(t, NewSink("", slog.New(slog.NewTextHandler(io.Discard, nil))))
}

func TestSink_Send(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
	}))
	defer srv.Close()

	s := NewSink(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, s.Send(context.Background(), "2 owners re-acquired coupons", "user1\nuser3"))

	assert.Equal(t, "2 owners re-acquired coupons", got["title"])
	assert.Equal(t, "user1\nuser3", got["content"])
	// the push service expects these fields present and null
	for _, k := range []string{"date", "time", "type"} {
		v, ok := got[k]
		assert.True(t, ok)
		assert.Nil(t, v)
	}
}

func TestSink_Send_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	s := NewSink(srv.URL, slog.New(slog.NewTextHandler(io.Discard, nil)))
	assert.Error(t, s.Send(context.Background(), "t", "c"))
}
