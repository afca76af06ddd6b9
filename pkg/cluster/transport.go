package cluster

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const (
	schedulerPath  = "/api/v1/scheduler"
	agentPath      = "/api/v1"
	streamIDHeader = "Mesos-Stream-Id"
	defaultWorkDir = "/var/lib/mesos"
)

// Subscribe POSTs the SUBSCRIBE call and returns the still-open streaming
// response body together with the Mesos-Stream-Id header. The caller owns
// the returned body and must close it.
func Subscribe(client *http.Client, baseURL string) (io.ReadCloser, string, error) {
	resp, err := postJSON(client, baseURL+schedulerPath, NewSubscribeCall(), "")
	if err != nil {
		return nil, "", fmt.Errorf("cluster: subscribe: %w", err)
	}

	streamID := resp.Header.Get(streamIDHeader)
	if streamID == "" {
		resp.Body.Close()
		return nil, "", fmt.Errorf("cluster: subscribe response missing %s header", streamIDHeader)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, "", fmt.Errorf("cluster: subscribe returned status %d", resp.StatusCode)
	}

	return resp.Body, streamID, nil
}

// PostCall sends a non-subscribe call to the scheduler endpoint and
// discards its body. Every call after subscribe must carry the stream id.
func PostCall(client *http.Client, baseURL, streamID string, call Call) error {
	resp, err := postJSON(client, baseURL+schedulerPath, call, streamID)
	if err != nil {
		return fmt.Errorf("cluster: %s call: %w", call.Type, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("cluster: %s call returned status %d", call.Type, resp.StatusCode)
	}
	return nil
}

func postJSON(client *http.Client, url string, payload interface{}, streamID string) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if streamID != "" {
		req.Header.Set(streamIDHeader, streamID)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	return resp, nil
}

type agentStateResponse struct {
	Flags struct {
		WorkDir string `json:"work_dir"`
	} `json:"flags"`
}

// AgentWorkDir queries the agent's /state endpoint for flags.work_dir,
// defaulting to /var/lib/mesos when the field is absent.
func AgentWorkDir(client *http.Client, agentBaseURL string) (string, error) {
	resp, err := client.Get(agentBaseURL + "/state")
	if err != nil {
		return "", fmt.Errorf("cluster: agent /state: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("cluster: agent /state returned status %d", resp.StatusCode)
	}

	var state agentStateResponse
	if err := json.NewDecoder(resp.Body).Decode(&state); err != nil {
		return "", fmt.Errorf("cluster: decoding agent /state: %w", err)
	}

	if state.Flags.WorkDir == "" {
		return defaultWorkDir, nil
	}
	return state.Flags.WorkDir, nil
}

// ReadFile issues a READ_FILE operator call against an agent and decodes
// its JSON response.
func ReadFile(client *http.Client, agentBaseURL string, call AgentCall) (ReadFileResponse, error) {
	resp, err := postJSON(client, agentBaseURL+agentPath, call, "")
	if err != nil {
		return ReadFileResponse{}, fmt.Errorf("cluster: read_file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return ReadFileResponse{}, fmt.Errorf("cluster: read_file returned status %d", resp.StatusCode)
	}

	var out ReadFileResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return ReadFileResponse{}, fmt.Errorf("cluster: decoding read_file response: %w", err)
	}
	return out, nil
}

// AttachContainerOutput opens an ATTACH_CONTAINER_OUTPUT stream against an
// agent. The caller owns the returned body and must close it.
func AttachContainerOutput(client *http.Client, agentBaseURL, containerID string) (io.ReadCloser, error) {
	resp, err := postJSON(client, agentBaseURL+agentPath, NewAttachContainerOutputCall(containerID), "")
	if err != nil {
		return nil, fmt.Errorf("cluster: attach_container_output: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("cluster: attach_container_output returned status %d", resp.StatusCode)
	}
	return resp.Body, nil
}

// SandboxPath composes the sandbox directory path for a Headless console
// from the agent's work_dir and the run's framework/agent/executor/container
// identifiers (spec §6.5 step 6).
func SandboxPath(workDir, agentID, frameworkID, executorID, containerID string) string {
	return fmt.Sprintf("%s/slaves/%s/frameworks/%s/executors/%s/runs/%s",
		workDir, agentID, frameworkID, executorID, containerID)
}
