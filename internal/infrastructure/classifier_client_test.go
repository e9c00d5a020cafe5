package infrastructure

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"gartenconnect/internal/entities"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClassifierClientSuccess(t *testing.T) {
	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/process", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"name":"A","price":1,"link":"l","images":[]}]`))
	}))
	defer srv.Close()

	client := NewClassifierClient(srv.URL+"/", 5*time.Second, zerolog.Nop())
	msg := "hola"
	reply := client.Process(context.Background(), entities.ClassifierRequest{UID: "1@s.whatsapp.net", Timestamp: 42, Message: &msg})

	assert.False(t, reply.Failed)
	assert.JSONEq(t, `[{"name":"A","price":1,"link":"l","images":[]}]`, string(reply.Payload))
	assert.Equal(t, map[string]interface{}{"uid": "1@s.whatsapp.net", "timestamp": float64(42), "message": "hola"}, got)
}

func TestClassifierClientHTTPErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{name: "detail string", status: http.StatusInternalServerError, body: `{"detail":"rate limited"}`, want: "rate limited"},
		{name: "detail object", status: http.StatusUnprocessableEntity, body: `{"detail":[{"msg":"field required"}]}`, want: `[{"msg":"field required"}]`},
		{name: "plain body", status: http.StatusBadGateway, body: "upstream down\n", want: "upstream down"},
		{name: "empty body", status: http.StatusServiceUnavailable, body: "", want: "503 Service Unavailable"},
		{name: "json without detail", status: http.StatusBadRequest, body: `{"error":"x"}`, want: `{"error":"x"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			reply := NewClassifierClient(srv.URL, time.Second, zerolog.Nop()).
				Process(context.Background(), entities.ClassifierRequest{UID: "u"})

			assert.True(t, reply.Failed)
			assert.Equal(t, tt.want, reply.Diagnostic)
		})
	}
}

func TestClassifierClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	reply := NewClassifierClient(url, time.Second, zerolog.Nop()).Process(context.Background(), entities.ClassifierRequest{UID: "u"})

	assert.True(t, reply.Failed)
	assert.Equal(t, UnreachableReply, reply.Diagnostic)
}

func TestClassifierClientNotConfigured(t *testing.T) {
	reply := NewClassifierClient("", time.Second, zerolog.Nop()).Process(context.Background(), entities.ClassifierRequest{UID: "u"})

	require.True(t, reply.Failed)
	assert.Equal(t, UnreachableReply, reply.Diagnostic)
}

func TestClassifierClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(time.Second):
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()

	reply := NewClassifierClient(srv.URL, 50*time.Millisecond, zerolog.Nop()).Process(context.Background(), entities.ClassifierRequest{UID: "u"})

	assert.True(t, reply.Failed)
	assert.Equal(t, UnreachableReply, reply.Diagnostic)
}
