package cluster

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeReturnsStreamIDAndBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/scheduler", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		w.Header().Set(streamIDHeader, "stream-123")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("11\nhello world"))
	}))
	defer srv.Close()

	body, streamID, err := Subscribe(srv.Client(), srv.URL)
	require.NoError(t, err)
	defer body.Close()
	assert.Equal(t, "stream-123", streamID)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "11\nhello world", string(data))
}

func TestSubscribeMissingStreamIDErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	_, _, err := Subscribe(srv.Client(), srv.URL)
	assert.Error(t, err)
}

func TestPostCallSendsStreamIDHeader(t *testing.T) {
	var gotStreamID string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotStreamID = r.Header.Get(streamIDHeader)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	call := NewTeardownCall("fw-1")
	err := PostCall(srv.Client(), srv.URL, "stream-123", call)
	require.NoError(t, err)
	assert.Equal(t, "stream-123", gotStreamID)
}

func TestPostCallNonSuccessStatusErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := PostCall(srv.Client(), srv.URL, "stream-123", NewTeardownCall("fw-1"))
	assert.Error(t, err)
}

func TestAgentWorkDirReadsFlagsWorkDir(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/state", r.URL.Path)
		w.Write([]byte(`{"flags":{"work_dir":"/custom/mesos"}}`))
	}))
	defer srv.Close()

	workDir, err := AgentWorkDir(srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "/custom/mesos", workDir)
}

func TestAgentWorkDirDefaultsWhenAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"flags":{}}`))
	}))
	defer srv.Close()

	workDir, err := AgentWorkDir(srv.Client(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, defaultWorkDir, workDir)
}

func TestSandboxPathFormat(t *testing.T) {
	path := SandboxPath("/var/lib/mesos", "agent-1", "fw-1", "exec-1", "container-1")
	assert.Equal(t, "/var/lib/mesos/slaves/agent-1/frameworks/fw-1/executors/exec-1/runs/container-1", path)
}
