package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/user/lead-scraper/internal/entity"
	"github.com/user/lead-scraper/internal/repository"
)

const creds = entity.Credentials("session=abc123")

func TestClient_ListConnectionsSendsCredential(t *testing.T) {
	checked := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/api/connections", r.URL.Path)
		assert.Equal(t, "session=abc123", r.Header.Get("Cookie"))
		_ = json.NewEncoder(w).Encode([]entity.Connection{{
			ID:            "c1",
			Platform:      entity.PlatformSlack,
			LastCheckedAt: &checked,
			Metadata:      entity.ConnectionMetadata{WorkspaceURL: "https://acme.slack.com"},
		}})
	}))
	defer srv.Close()

	c := NewClient(srv.URL + "/api/")
	conns, err := c.ListConnections(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, conns, 1)
	assert.Equal(t, "c1", conns[0].ID)
	require.NotNil(t, conns[0].HighWaterMark())
	assert.Equal(t, checked.Unix(), *conns[0].HighWaterMark())
}

func TestClient_ScrapeLogLifecycle(t *testing.T) {
	var patched entity.ScrapeLog
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/scrape-logs":
			var in entity.ScrapeLog
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&in))
			assert.Equal(t, entity.ScrapeLogRunning, in.Status)
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"log-7"}`))
		case r.Method == http.MethodPatch && r.URL.Path == "/scrape-logs/log-7":
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&patched))
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	id, err := c.CreateScrapeLog(context.Background(), creds, entity.ScrapeLog{Platform: entity.PlatformSlack, Status: entity.ScrapeLogRunning})
	require.NoError(t, err)
	assert.Equal(t, "log-7", id)

	err = c.UpdateScrapeLog(context.Background(), creds, id, entity.ScrapeLog{Status: entity.ScrapeLogCompleted, LeadsCreated: 4})
	require.NoError(t, err)
	assert.Equal(t, entity.ScrapeLogCompleted, patched.Status)
	assert.Equal(t, 4, patched.LeadsCreated)
}

func TestClient_CreateLeadConflictIsDuplicate(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "exists", http.StatusConflict)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).CreateLead(context.Background(), creds, entity.Lead{Permalink: "https://acme.slack.com/archives/C1/p1"})
	assert.ErrorIs(t, err, repository.ErrDuplicateLead)
}

func TestClient_ServerErrorIsStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewClient(srv.URL).ReportError(context.Background(), creds, entity.HealthReport{Platform: entity.PlatformSlack, Error: "x"})
	var se *StatusError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.Equal(t, "/scraper/error", se.Path)
	assert.Contains(t, se.Body, "maintenance")
}

func TestClient_ListKeywords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/keywords", r.URL.Path)
		_, _ = w.Write([]byte(`[{"id":"1","keyword":"hiring"},{"id":"2","keyword":"contract","active":false}]`))
	}))
	defer srv.Close()

	kws, err := NewClient(srv.URL).ListKeywords(context.Background(), creds)
	require.NoError(t, err)
	require.Len(t, kws, 2)
	assert.True(t, kws[0].IsActive())
	assert.False(t, kws[1].IsActive())
}

func TestClient_WithTimeoutLeavesSharedClientAlone(t *testing.T) {
	shared := &http.Client{Timeout: time.Minute}

	c := NewClient("http://api.local", WithHTTPClient(shared), WithTimeout(3*time.Second))

	assert.Equal(t, time.Minute, shared.Timeout)
	assert.NotSame(t, shared, c.http)
	assert.Equal(t, 3*time.Second, c.http.Timeout)
}
