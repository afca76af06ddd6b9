package scheduler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skytix/rexe/pkg/cluster"
	"github.com/skytix/rexe/pkg/types"
)

// frame encodes v as one RecordIO record: a decimal length, a newline, then
// the JSON payload, matching what the master writes on the SUBSCRIBE stream.
func frame(t *testing.T, v interface{}) string {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return fmt.Sprintf("%d\n%s", len(b), b)
}

// callLog records every call the fake master receives, in arrival order,
// classifying ACCEPT-with-no-operations as a decline (spec P2: a decline is
// an ACCEPT call with zero operations, not a distinct wire type).
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) record(kind string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, kind)
}

func (l *callLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.calls))
	copy(out, l.calls)
	return out
}

// newTestMaster serves one SUBSCRIBE response carrying the given pre-framed
// event stream, then classifies and records every subsequent call.
func newTestMaster(t *testing.T, events string) (*httptest.Server, *callLog) {
	t.Helper()
	log := &callLog{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := readAll(r)
		require.NoError(t, err)

		var call cluster.Call
		require.NoError(t, json.Unmarshal(body, &call))

		switch call.Type {
		case "SUBSCRIBE":
			log.record("SUBSCRIBE")
			w.Header().Set("Mesos-Stream-Id", "stream-1")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(events))
		case "ACCEPT":
			if call.Accept != nil && len(call.Accept.Operations) > 0 {
				log.record("ACCEPT")
			} else {
				log.record("DECLINE")
			}
			w.WriteHeader(http.StatusAccepted)
		default:
			log.record(call.Type)
			w.WriteHeader(http.StatusAccepted)
		}
	}))
	return srv, log
}

func readAll(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	buf := &bytes.Buffer{}
	_, err := buf.ReadFrom(r.Body)
	return buf.Bytes(), err
}

// newTestAgent fakes an agent that only ever needs to answer
// ATTACH_CONTAINER_OUTPUT with an immediately-closed, empty stream: enough
// for interactiveConsole to start and stop cleanly without any output.
func newTestAgent(t *testing.T) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func splitHostPort(t *testing.T, rawURL string) (string, int) {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	port, err := strconv.Atoi(u.Port())
	require.NoError(t, err)
	return u.Hostname(), port
}

func subscribedRecord(t *testing.T) string {
	return frame(t, map[string]interface{}{
		"type": "SUBSCRIBED",
		"subscribed": map[string]interface{}{
			"framework_id":               map[string]string{"value": "F1"},
			"heartbeat_interval_seconds": 15,
		},
	})
}

func offersRecord(t *testing.T, offerID, agentHost string, agentPort int, cpus, mem float64) string {
	return frame(t, map[string]interface{}{
		"type": "OFFERS",
		"offers": map[string]interface{}{
			"offers": []map[string]interface{}{
				{
					"id":           map[string]string{"value": offerID},
					"framework_id": map[string]string{"value": "F1"},
					"agent_id":     map[string]string{"value": "agent-1"},
					"hostname":     agentHost,
					"url": map[string]interface{}{
						"scheme": "http",
						"address": map[string]interface{}{
							"hostname": agentHost,
							"ip":       agentHost,
							"port":     agentPort,
						},
					},
					"resources": []map[string]interface{}{
						{"name": "cpus", "type": "SCALAR", "scalar": map[string]float64{"value": cpus}},
						{"name": "mem", "type": "SCALAR", "scalar": map[string]float64{"value": mem}},
					},
					"attributes": []interface{}{},
				},
			},
		},
	})
}

func updateRecord(t *testing.T, taskID, state, uuid string) string {
	return frame(t, map[string]interface{}{
		"type": "UPDATE",
		"update": map[string]interface{}{
			"status": map[string]interface{}{
				"task_id": map[string]string{"value": taskID},
				"state":   state,
				"uuid":    uuid,
			},
		},
	})
}

func runningRecord(t *testing.T, taskID, uuid string) string {
	return frame(t, map[string]interface{}{
		"type": "UPDATE",
		"update": map[string]interface{}{
			"status": map[string]interface{}{
				"task_id":     map[string]string{"value": taskID},
				"state":       "TASK_RUNNING",
				"uuid":        uuid,
				"agent_id":    map[string]string{"value": "agent-1"},
				"executor_id": map[string]string{"value": "exec-1"},
				"container_status": map[string]interface{}{
					"container_id": map[string]string{"value": "container-1"},
				},
			},
		},
	})
}

func baseContainerRequest() types.RequestedTaskInfo {
	return types.RequestedTaskInfo{
		Executor:  types.ExecutorContainer,
		ImageName: "alpine:3",
		Args:      "echo hello",
		CPUs:      1,
		MemMiB:    256,
		TTYMode:   types.Interactive,
	}
}

// TestRunSubscribeAcceptRunFinish exercises spec scenario S1: a single
// sufficient offer is accepted, both status updates are acknowledged, and
// the run tears down and exits 0 once the task finishes.
func TestRunSubscribeAcceptRunFinish(t *testing.T) {
	agent := newTestAgent(t)
	defer agent.Close()
	agentHost, agentPort := splitHostPort(t, agent.URL)

	events := strings.Join([]string{
		subscribedRecord(t),
		offersRecord(t, "offer-1", agentHost, agentPort, 2, 512),
		updateRecord(t, "task-1", "TASK_STARTING", "U1"),
		runningRecord(t, "task-1", "U2"),
		updateRecord(t, "task-1", "TASK_FINISHED", ""),
	}, "")

	master, log := newTestMaster(t, events)
	defer master.Close()

	s := New(zerolog.Nop())
	code := s.Run(context.Background(), master.URL, baseContainerRequest(), cluster.WindowSize{}, discardWriter{}, discardWriter{})

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{"SUBSCRIBE", "ACCEPT", "ACKNOWLEDGE", "ACKNOWLEDGE", "TEARDOWN"}, log.snapshot())
}

// TestRunDeclinesInsufficientThenAcceptsSufficient exercises spec scenario
// S2: the first offer can't satisfy cpus/mem and is declined; the second
// one can and is accepted.
func TestRunDeclinesInsufficientThenAcceptsSufficient(t *testing.T) {
	agent := newTestAgent(t)
	defer agent.Close()
	agentHost, agentPort := splitHostPort(t, agent.URL)

	events := strings.Join([]string{
		subscribedRecord(t),
		offersRecord(t, "offer-1", agentHost, agentPort, 0.1, 64),
		offersRecord(t, "offer-2", agentHost, agentPort, 4, 1024),
		updateRecord(t, "task-1", "TASK_STARTING", "U1"),
		runningRecord(t, "task-1", "U2"),
		updateRecord(t, "task-1", "TASK_FINISHED", ""),
	}, "")

	master, log := newTestMaster(t, events)
	defer master.Close()

	req := baseContainerRequest()
	req.CPUs = 2
	req.MemMiB = 512

	s := New(zerolog.Nop())
	code := s.Run(context.Background(), master.URL, req, cluster.WindowSize{}, discardWriter{}, discardWriter{})

	assert.Equal(t, ExitSuccess, code)
	assert.Equal(t, []string{"SUBSCRIBE", "DECLINE", "ACCEPT", "ACKNOWLEDGE", "ACKNOWLEDGE", "TEARDOWN"}, log.snapshot())
}

// TestRunTaskFailedTearsDownAndExits1 exercises spec scenario S5: a
// TASK_FAILED update after TASK_RUNNING drains the console, tears down, and
// exits 1.
func TestRunTaskFailedTearsDownAndExits1(t *testing.T) {
	agent := newTestAgent(t)
	defer agent.Close()
	agentHost, agentPort := splitHostPort(t, agent.URL)

	events := strings.Join([]string{
		subscribedRecord(t),
		offersRecord(t, "offer-1", agentHost, agentPort, 2, 512),
		updateRecord(t, "task-1", "TASK_STARTING", "U1"),
		runningRecord(t, "task-1", "U2"),
		frame(t, map[string]interface{}{
			"type": "UPDATE",
			"update": map[string]interface{}{
				"status": map[string]interface{}{
					"task_id": map[string]string{"value": "task-1"},
					"state":   "TASK_FAILED",
					"reason":  "REASON_COMMAND_EXECUTOR_FAILED",
					"message": "container exited 1",
				},
			},
		}),
	}, "")

	master, log := newTestMaster(t, events)
	defer master.Close()

	s := New(zerolog.Nop())
	code := s.Run(context.Background(), master.URL, baseContainerRequest(), cluster.WindowSize{}, discardWriter{}, discardWriter{})

	assert.Equal(t, ExitFailed, code)
	assert.Equal(t, []string{"SUBSCRIBE", "ACCEPT", "ACKNOWLEDGE", "ACKNOWLEDGE", "TEARDOWN"}, log.snapshot())
}

// TestCheckDeadlineNoopWhenAlreadyScheduled covers the side of the
// wait-deadline timer that doesn't call os.Exit: when the main loop already
// pushed Scheduled onto deadlineCh before the timer fired, checkDeadline
// must return without tearing anything down. The opposite branch (timeout)
// calls os.Exit directly and can't be exercised in-process.
func TestCheckDeadlineNoopWhenAlreadyScheduled(t *testing.T) {
	s := New(zerolog.Nop())
	s.deadlineCh <- types.Scheduled
	s.checkDeadline()
}

func TestIsFailureState(t *testing.T) {
	assert.True(t, isFailureState(cluster.TaskStatus{State: "TASK_FAILED"}))
	assert.True(t, isFailureState(cluster.TaskStatus{State: "TASK_KILLED"}))
	assert.False(t, isFailureState(cluster.TaskStatus{State: "TASK_RUNNING"}))
	assert.False(t, isFailureState(cluster.TaskStatus{State: "TASK_FINISHED"}))
}

// discardWriter is a zero-cost io.Writer sink.
type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
