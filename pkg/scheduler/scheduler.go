package scheduler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/skytix/rexe/pkg/cluster"
	"github.com/skytix/rexe/pkg/console"
	"github.com/skytix/rexe/pkg/locator"
	"github.com/skytix/rexe/pkg/metrics"
	"github.com/skytix/rexe/pkg/recordio"
	"github.com/skytix/rexe/pkg/types"
)

// Exit codes returned by Run (spec §8). The CLI adapter passes these
// straight to os.Exit.
const (
	ExitSuccess         = 0
	ExitFailed          = 1
	ExitTimeout         = 10
	ExitUnexpectedState = 20
)

// callTimeout bounds every individual call against the master or an
// agent, matching the teacher's pkg/client 10-second-per-call convention.
const callTimeout = 10 * time.Second

// Scheduler drives one synchronous run against the cluster. Field shape
// mirrors the teacher's pkg/scheduler.Scheduler: a logger, an http
// client factory, a mutex-guarded piece of shared state, and a channel
// used to coordinate a background goroutine with the main loop — here
// the wait-deadline timer rather than a reconcile ticker.
type Scheduler struct {
	logger zerolog.Logger

	mu    sync.Mutex
	state types.SchedulerState

	frameworkID string
	streamID    string
	baseURL     string
	selected    types.Selection
	console     *console.Console

	// deadlineCh has capacity 1: the main loop sends Scheduled into it the
	// moment an offer is accepted; the wait-deadline timer polls it
	// non-blockingly when it fires.
	deadlineCh chan types.SchedulerState
}

// New builds a Scheduler ready to Run once.
func New(logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		logger:     logger,
		state:      types.Started,
		deadlineCh: make(chan types.SchedulerState, 1),
	}
}

// Run resolves the master, subscribes, and processes events to
// completion, returning the process exit code.
func (s *Scheduler) Run(ctx context.Context, masterEndpoint string, req types.RequestedTaskInfo, windowSize cluster.WindowSize, stdout, stderr io.Writer) int {
	baseURL, err := locator.Locate(masterEndpoint)
	if err != nil {
		s.logger.Error().Err(err).Msg("locating master")
		return ExitFailed
	}
	s.baseURL = baseURL

	// The subscribe response body is read for the lifetime of the run, so
	// the client that opens it carries no timeout of its own.
	body, streamID, err := cluster.Subscribe(&http.Client{}, baseURL)
	if err != nil {
		s.logger.Error().Err(err).Msg("subscribing to master")
		return ExitFailed
	}
	defer body.Close()
	s.streamID = streamID

	reader := recordio.NewReader(body)

	for {
		if ctx.Err() != nil {
			s.logger.Warn().Msg("context cancelled, tearing down")
			return s.teardownAndExit(ExitFailed)
		}

		readTimer := metrics.NewTimer()
		raw, err := reader.ReadRecord()
		readTimer.ObserveDuration(metrics.RecordReadLatency)
		if err != nil {
			s.logger.Error().Err(err).Msg("reading event stream")
			return s.teardownAndExit(ExitFailed)
		}

		var event cluster.Event
		if err := json.Unmarshal(raw, &event); err != nil {
			s.logger.Error().Err(err).Msg("parsing event")
			return s.teardownAndExit(ExitFailed)
		}

		switch event.Type {
		case "SUBSCRIBED":
			s.handleSubscribed(event, req)
		case "OFFERS":
			if code, done := s.handleOffers(event, req, windowSize); done {
				return code
			}
		case "HEARTBEAT":
		case "UPDATE":
			if code, done := s.handleUpdate(event, req, windowSize, stdout, stderr); done {
				return code
			}
		default:
			s.logger.Debug().Str("type", event.Type).Msg("ignoring unrecognized event type")
		}
	}
}

func (s *Scheduler) callClient() *http.Client {
	return &http.Client{Timeout: callTimeout}
}

func (s *Scheduler) handleSubscribed(event cluster.Event, req types.RequestedTaskInfo) {
	s.mu.Lock()
	s.frameworkID = event.Subscribed.FrameworkID.Value
	s.state = types.Subscribed
	s.mu.Unlock()

	s.logger.Info().Str("framework_id", s.frameworkID).Msg("subscribed")

	if req.WaitTimeout > 0 {
		deadline := time.Duration(req.WaitTimeout * float64(time.Second))
		time.AfterFunc(deadline, s.checkDeadline)
	}
}

// checkDeadline runs on its own goroutine when the wait-deadline timer
// fires. It never blocks: a non-blocking channel poll tells it whether
// the main loop already scheduled the task.
func (s *Scheduler) checkDeadline() {
	select {
	case v := <-s.deadlineCh:
		if v != types.Scheduled {
			s.logger.Error().Msg("wait-deadline timer observed an unexpected state")
			os.Exit(s.teardownAndExit(ExitUnexpectedState))
		}
	default:
		s.logger.Error().Msg("timed out waiting for an acceptable resource offer")
		os.Exit(s.teardownAndExit(ExitTimeout))
	}
}

func (s *Scheduler) handleOffers(event cluster.Event, req types.RequestedTaskInfo, windowSize cluster.WindowSize) (int, bool) {
	if event.Offers == nil {
		return 0, false
	}

	offers := cluster.ParseOffers(*event.Offers)
	for _, offer := range offers {
		metrics.OffersReceived.Inc()

		s.mu.Lock()
		alreadyScheduled := s.state >= types.Scheduled
		s.mu.Unlock()

		if !alreadyScheduled && cluster.IsUsable(offer, req) {
			if code, done := s.acceptOffer(offer, req, windowSize); done {
				return code, true
			}
			continue
		}

		refuseSeconds := 5.0
		if alreadyScheduled {
			refuseSeconds = 600.0
		}
		s.decline(offer, refuseSeconds)
	}

	return 0, false
}

func (s *Scheduler) acceptOffer(offer types.Offer, req types.RequestedTaskInfo, windowSize cluster.WindowSize) (int, bool) {
	timer := metrics.NewTimer()

	taskID := uuid.New().String()
	task, err := cluster.BuildTaskInfo(req, offer, taskID, windowSize)
	if err != nil {
		s.logger.Error().Err(err).Msg("building task info")
		return s.teardownAndExit(ExitFailed), true
	}

	s.mu.Lock()
	frameworkID := s.frameworkID
	s.mu.Unlock()

	call := cluster.NewAcceptCall(frameworkID, offer.OfferID, task)
	if err := cluster.PostCall(s.callClient(), s.baseURL, s.streamID, call); err != nil {
		metrics.CallsTotal.WithLabelValues("ACCEPT", "error").Inc()
		s.logger.Error().Err(err).Msg("sending accept")
		return s.teardownAndExit(ExitFailed), true
	}
	metrics.CallsTotal.WithLabelValues("ACCEPT", "ok").Inc()
	metrics.OffersAccepted.Inc()
	timer.ObserveDuration(metrics.SchedulingLatency)

	s.mu.Lock()
	s.state = types.Scheduled
	s.selected = types.Selection{
		AgentID:       offer.AgentID,
		AgentScheme:   offer.AgentScheme,
		AgentHostname: offer.AgentHostname,
		AgentPort:     offer.AgentPort,
		TaskID:        taskID,
		FrameworkID:   frameworkID,
	}
	s.mu.Unlock()

	select {
	case s.deadlineCh <- types.Scheduled:
	default:
	}

	s.logger.Info().Str("offer_id", offer.OfferID).Str("task_id", taskID).Msg("accepted offer")
	return 0, false
}

func (s *Scheduler) decline(offer types.Offer, refuseSeconds float64) {
	metrics.OffersDeclined.Inc()

	s.mu.Lock()
	frameworkID := s.frameworkID
	s.mu.Unlock()

	call := cluster.NewDeclineCall(frameworkID, offer.OfferID, refuseSeconds)
	if err := cluster.PostCall(s.callClient(), s.baseURL, s.streamID, call); err != nil {
		metrics.CallsTotal.WithLabelValues("DECLINE", "error").Inc()
		s.logger.Warn().Err(err).Msg("declining offer")
		return
	}
	metrics.CallsTotal.WithLabelValues("DECLINE", "ok").Inc()
}

func (s *Scheduler) handleUpdate(event cluster.Event, req types.RequestedTaskInfo, windowSize cluster.WindowSize, stdout, stderr io.Writer) (int, bool) {
	if event.Update == nil {
		return 0, false
	}
	status := event.Update.Status

	if isFailureState(status) {
		s.logger.Error().Str("state", status.State).Str("reason", status.Reason).Str("message", status.Message).Msg("task entered a failure state")

		s.mu.Lock()
		c := s.console
		s.mu.Unlock()

		if c != nil {
			c.Finish()
		}
		return s.teardownAndExit(ExitFailed), true
	}

	if status.UUID != "" {
		s.acknowledge(status)
	}

	switch status.State {
	case "TASK_RUNNING":
		s.mu.Lock()
		shouldStart := s.state == types.Scheduled
		if shouldStart {
			s.state = types.Running
		}
		s.mu.Unlock()

		if shouldStart {
			if err := s.startConsole(req, status, windowSize, stdout, stderr); err != nil {
				s.logger.Error().Err(err).Msg("starting console")
			}
		}
	case "TASK_FINISHED":
		s.mu.Lock()
		running := s.state == types.Running
		c := s.console
		s.mu.Unlock()

		if !running {
			s.logger.Warn().Msg("task finished without having been observed running")
		}
		if c != nil {
			c.Finish()
		}
		return s.teardownAndExit(ExitSuccess), true
	default:
		s.logger.Debug().Str("state", status.State).Msg("status update")
	}

	return 0, false
}

func isFailureState(status cluster.TaskStatus) bool {
	return cluster.FailureStates[status.State] || cluster.FailureStates[status.Reason]
}

func (s *Scheduler) acknowledge(status cluster.TaskStatus) {
	s.mu.Lock()
	ready := s.state >= types.Scheduled
	frameworkID := s.frameworkID
	s.mu.Unlock()

	if !ready {
		return
	}

	var agentID string
	if status.AgentID != nil {
		agentID = status.AgentID.Value
	}

	call := cluster.NewAcknowledgeCall(frameworkID, agentID, status.TaskID.Value, status.UUID)
	if err := cluster.PostCall(s.callClient(), s.baseURL, s.streamID, call); err != nil {
		metrics.CallsTotal.WithLabelValues("ACKNOWLEDGE", "error").Inc()
		s.logger.Warn().Err(err).Msg("acknowledging status update")
		return
	}
	metrics.CallsTotal.WithLabelValues("ACKNOWLEDGE", "ok").Inc()
}

// startConsole creates the console on the Scheduled -> Running
// transition (invariant I4). Headless derives the sandbox path from the
// agent's own /state; Interactive attaches directly to the container.
func (s *Scheduler) startConsole(req types.RequestedTaskInfo, status cluster.TaskStatus, windowSize cluster.WindowSize, stdout, stderr io.Writer) error {
	s.mu.Lock()
	sel := s.selected
	frameworkID := s.frameworkID
	s.mu.Unlock()

	agentBaseURL := fmt.Sprintf("%s://%s:%d", sel.AgentScheme, sel.AgentHostname, sel.AgentPort)
	client := s.callClient()

	var stderrWriter io.Writer
	if req.CaptureErr {
		stderrWriter = stderr
	}

	if req.TTYMode == types.Interactive {
		var containerID string
		if status.ContainerStatus != nil && status.ContainerStatus.ContainerID != nil {
			containerID = status.ContainerStatus.ContainerID.Value
		}

		c, err := console.NewInteractive(console.InteractiveOptions{
			Client:       client,
			AgentBaseURL: agentBaseURL,
			ContainerID:  containerID,
			Stdout:       stdout,
			Stderr:       stderrWriter,
			Logger:       s.logger,
		})
		if err != nil {
			return fmt.Errorf("attaching console: %w", err)
		}
		s.mu.Lock()
		s.console = c
		s.mu.Unlock()
		return nil
	}

	workDir, err := cluster.AgentWorkDir(client, agentBaseURL)
	if err != nil {
		return fmt.Errorf("resolving agent work dir: %w", err)
	}

	var executorID, containerID string
	if status.ExecutorID != nil {
		executorID = status.ExecutorID.Value
	}
	if status.ContainerStatus != nil && status.ContainerStatus.ContainerID != nil {
		containerID = status.ContainerStatus.ContainerID.Value
	}

	sandboxPath := cluster.SandboxPath(workDir, sel.AgentID, frameworkID, executorID, containerID)

	c := console.NewHeadless(console.HeadlessOptions{
		Client:        client,
		AgentBaseURL:  agentBaseURL,
		SandboxPath:   sandboxPath,
		CaptureStderr: req.CaptureErr,
		Stdout:        stdout,
		Stderr:        stderrWriter,
		Logger:        s.logger,
	})
	s.mu.Lock()
	s.console = c
	s.mu.Unlock()
	return nil
}

// teardownAndExit is the single exit path (invariant I5): it always
// attempts a TEARDOWN, logging failure without letting it block exit.
func (s *Scheduler) teardownAndExit(code int) int {
	s.mu.Lock()
	frameworkID := s.frameworkID
	s.mu.Unlock()

	if frameworkID == "" {
		return code
	}

	call := cluster.NewTeardownCall(frameworkID)
	if err := cluster.PostCall(s.callClient(), s.baseURL, s.streamID, call); err != nil {
		metrics.CallsTotal.WithLabelValues("TEARDOWN", "error").Inc()
		s.logger.Warn().Err(err).Msg("sending teardown")
		return code
	}
	metrics.CallsTotal.WithLabelValues("TEARDOWN", "ok").Inc()
	return code
}
