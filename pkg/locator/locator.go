package locator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/samuel/go-zookeeper/zk"

	"github.com/skytix/rexe/pkg/log"
)

const (
	sessionTimeout = 15 * time.Second
	probeTimeout   = 5 * time.Second
	leaderPrefix   = "json.info_"
)

// httpGet abstracts the one call the scheme probe needs, so tests can
// substitute a fake without opening a real socket.
var httpGet = func(url string) (*http.Response, error) {
	client := &http.Client{Timeout: probeTimeout}
	return client.Get(url)
}

// zkDial abstracts ZooKeeper session setup for tests.
var zkDial = func(servers []string) (zkConn, <-chan zk.Event, error) {
	return zk.Connect(servers, sessionTimeout)
}

// zkConn is the subset of *zk.Conn the locator needs.
type zkConn interface {
	Children(path string) ([]string, *zk.Stat, error)
	Get(path string) ([]byte, *zk.Stat, error)
	State() zk.State
	Close()
}

type leaderInfo struct {
	Hostname string `json:"hostname"`
	Port     int    `json:"port"`
}

// Locate resolves endpoint to a base URL of the form <scheme>://<host>:<port>.
func Locate(endpoint string) (string, error) {
	if strings.HasPrefix(endpoint, "http://") || strings.HasPrefix(endpoint, "https://") {
		return strings.TrimSuffix(endpoint, "/"), nil
	}

	host, port, err := resolveViaZK(endpoint)
	if err != nil {
		return "", err
	}

	scheme := probeScheme(host, port)
	return fmt.Sprintf("%s://%s:%d", scheme, host, port), nil
}

func resolveViaZK(connectString string) (string, int, error) {
	servers := strings.Split(connectString, ",")
	conn, events, err := zkDial(servers)
	if err != nil {
		return "", 0, fmt.Errorf("locator: connecting to zookeeper ensemble: %w", err)
	}
	defer func() {
		// Only close a session whose current state is connected; an
		// already-dead session may panic or block on Close.
		if conn.State() == zk.StateHasSession || conn.State() == zk.StateConnected {
			conn.Close()
		}
	}()
	drainEvents(events)

	children, _, err := conn.Children("/")
	if err != nil {
		return "", 0, fmt.Errorf("locator: listing zookeeper children: %w", err)
	}

	sort.Strings(children)

	for _, child := range children {
		if !strings.HasPrefix(child, leaderPrefix) {
			continue
		}

		data, _, err := conn.Get("/" + child)
		if err != nil {
			return "", 0, fmt.Errorf("locator: reading %s: %w", child, err)
		}

		var info leaderInfo
		if err := json.Unmarshal(data, &info); err != nil {
			return "", 0, fmt.Errorf("locator: parsing %s: %w", child, err)
		}

		log.Debug(fmt.Sprintf("locator: resolved leader %s -> %s:%d", child, info.Hostname, info.Port))
		return info.Hostname, info.Port, nil
	}

	return "", 0, fmt.Errorf("locator: no leader found (no %s* child under /)", leaderPrefix)
}

// drainEvents consumes the initial connection events ZooKeeper delivers
// asynchronously, without blocking if none arrive quickly; Connect has
// already returned a usable conn by the time we get here.
func drainEvents(events <-chan zk.Event) {
	select {
	case <-events:
	case <-time.After(100 * time.Millisecond):
	}
}

func probeScheme(host string, port int) string {
	url := fmt.Sprintf("https://%s:%d/version", host, port)
	if _, err := httpGet(url); err == nil {
		return "https"
	}
	return "http"
}
