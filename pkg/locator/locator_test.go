package locator

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/samuel/go-zookeeper/zk"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocateAbsoluteURL(t *testing.T) {
	got, err := Locate("http://10.0.0.1:5050")
	require.NoError(t, err)
	assert.Equal(t, "http://10.0.0.1:5050", got)

	got, err = Locate("https://master.example.com:5050/")
	require.NoError(t, err)
	assert.Equal(t, "https://master.example.com:5050", got)
}

type fakeZKConn struct {
	children map[string][]byte
	state    zk.State
}

func (f *fakeZKConn) Children(path string) ([]string, *zk.Stat, error) {
	names := make([]string, 0, len(f.children))
	for name := range f.children {
		names = append(names, name)
	}
	return names, nil, nil
}

func (f *fakeZKConn) Get(path string) ([]byte, *zk.Stat, error) {
	name := path[1:] // strip leading "/"
	data, ok := f.children[name]
	if !ok {
		return nil, nil, fmt.Errorf("no such node: %s", path)
	}
	return data, nil, nil
}

func (f *fakeZKConn) State() zk.State { return f.state }
func (f *fakeZKConn) Close()          {}

// TestLeaderChoice is property P7: given children json.info_0000000005,
// json.info_0000000003, json.info_0000000010, the locator picks the one
// that sorts first lexicographically (...003).
func TestLeaderChoice(t *testing.T) {
	info003, _ := json.Marshal(leaderInfo{Hostname: "master-003", Port: 5050})
	info005, _ := json.Marshal(leaderInfo{Hostname: "master-005", Port: 5050})
	info010, _ := json.Marshal(leaderInfo{Hostname: "master-010", Port: 5050})

	conn := &fakeZKConn{
		state: zk.StateHasSession,
		children: map[string][]byte{
			"json.info_0000000005": info005,
			"json.info_0000000003": info003,
			"json.info_0000000010": info010,
			"other-node":           []byte("ignored"),
		},
	}

	origDial := zkDial
	defer func() { zkDial = origDial }()
	zkDial = func(servers []string) (zkConn, <-chan zk.Event, error) {
		return conn, make(chan zk.Event), nil
	}

	host, port, err := resolveViaZK("zk1:2181,zk2:2181/mesos")
	require.NoError(t, err)
	assert.Equal(t, "master-003", host)
	assert.Equal(t, 5050, port)
}

func TestResolveViaZKNoLeader(t *testing.T) {
	conn := &fakeZKConn{state: zk.StateHasSession, children: map[string][]byte{}}

	origDial := zkDial
	defer func() { zkDial = origDial }()
	zkDial = func(servers []string) (zkConn, <-chan zk.Event, error) {
		return conn, make(chan zk.Event), nil
	}

	_, _, err := resolveViaZK("zk1:2181")
	assert.Error(t, err)
}

func TestProbeSchemeFallsBackToHTTP(t *testing.T) {
	origGet := httpGet
	defer func() { httpGet = origGet }()
	httpGet = func(url string) (*http.Response, error) {
		return nil, fmt.Errorf("connection refused")
	}

	assert.Equal(t, "http", probeScheme("10.0.0.1", 5050))
}

func TestProbeSchemePrefersHTTPS(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	origGet := httpGet
	defer func() { httpGet = origGet }()
	httpGet = func(url string) (*http.Response, error) {
		return http.Get(srv.URL)
	}

	assert.Equal(t, "https", probeScheme("ignored", 0))
}
