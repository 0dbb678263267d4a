package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schoolhub/discipline-core/internal/domain/actor"
	"github.com/schoolhub/discipline-core/internal/domain/notification"
)

func sampleNotice() *notification.Notice {
	return &notification.Notice{
		ID:         "notice-1",
		GuardianID: "guardian-1",
		StudentID:  "student-1",
		IncidentID: "inc-1",
		Subject:    "Disciplinary incident reported",
		Body:       "Please check the parent portal for details.",
		CreatedAt:  time.Now().UTC(),
	}
}

func sampleGuardian() *actor.Guardian {
	return &actor.Guardian{ID: "guardian-1", StudentID: "student-1", PortalAccess: true}
}

func TestPortalDispatcher_Delivers(t *testing.T) {
	var gotAuth string
	var gotPayload portalPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotPayload))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	dispatcher := NewPortalDispatcher(PortalConfig{
		BaseURL: server.URL,
		APIKey:  "secret",
	}, nil)

	result := dispatcher.Dispatch(context.Background(), sampleGuardian(), sampleNotice())

	assert.True(t, result.Delivered)
	assert.Empty(t, result.Error)
	assert.Equal(t, "Bearer secret", gotAuth)
	assert.Equal(t, "guardian-1", gotPayload.GuardianID)
	assert.Equal(t, "inc-1", gotPayload.IncidentID)
}

func TestPortalDispatcher_RetriesServerErrors(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	dispatcher := NewPortalDispatcher(PortalConfig{BaseURL: server.URL}, nil)

	result := dispatcher.Dispatch(context.Background(), sampleGuardian(), sampleNotice())

	assert.True(t, result.Delivered)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestPortalDispatcher_ClientErrorNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer server.Close()

	dispatcher := NewPortalDispatcher(PortalConfig{BaseURL: server.URL}, nil)

	result := dispatcher.Dispatch(context.Background(), sampleGuardian(), sampleNotice())

	assert.False(t, result.Delivered)
	assert.Contains(t, result.Error, "422")
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestPortalDispatcher_ExhaustedRetriesReported(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	dispatcher := NewPortalDispatcher(PortalConfig{BaseURL: server.URL}, nil)

	result := dispatcher.Dispatch(context.Background(), sampleGuardian(), sampleNotice())

	assert.False(t, result.Delivered)
	assert.NotEmpty(t, result.Error)
	assert.Equal(t, "notice-1", result.NoticeID)
}

func TestLogDispatcher_AlwaysDelivers(t *testing.T) {
	dispatcher := NewLogDispatcher(nil)

	result := dispatcher.Dispatch(context.Background(), sampleGuardian(), sampleNotice())

	assert.True(t, result.Delivered)
	assert.Equal(t, "notice-1", result.NoticeID)
	assert.False(t, result.AttemptedAt.IsZero())
}
