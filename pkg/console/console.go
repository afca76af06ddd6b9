package console

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skytix/rexe/pkg/cluster"
	"github.com/skytix/rexe/pkg/metrics"
	"github.com/skytix/rexe/pkg/recordio"
)

func decodeDataRecord(raw []byte, out *cluster.DataRecord) error {
	return json.Unmarshal(raw, out)
}

const readChunkLength = 102400

// idlePollDelay rate-limits the headless tail's idle polling; overridden in
// tests to keep them fast.
var idlePollDelay = 1000 * time.Millisecond

type consoleKind int

const (
	kindHeadless consoleKind = iota
	kindInteractive
)

// Console is a tagged union over the two streaming backends. The
// scheduler only ever needs to start one and, at the end of the run,
// Finish it.
type Console struct {
	kind        consoleKind
	headless    *headlessConsole
	interactive *interactiveConsole
}

// Finish signals every worker to stop and blocks until they have exited.
// Headless workers first drain the remaining output; the interactive
// stream is closed without being drained.
func (c *Console) Finish() {
	switch c.kind {
	case kindHeadless:
		c.headless.stop()
	case kindInteractive:
		c.interactive.stop()
	}
}

// HeadlessOptions configures a file-tail console.
type HeadlessOptions struct {
	Client        *http.Client
	AgentBaseURL  string
	SandboxPath   string
	CaptureStderr bool
	Stdout        io.Writer
	Stderr        io.Writer
	Logger        zerolog.Logger
}

// NewHeadless starts the stdout tail worker (and the stderr worker, iff
// CaptureStderr) and returns a Console wrapping them.
func NewHeadless(opts HeadlessOptions) *Console {
	hc := &headlessConsole{opts: opts}
	hc.start()
	return &Console{kind: kindHeadless, headless: hc}
}

type headlessConsole struct {
	opts    HeadlessOptions
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func (h *headlessConsole) start() {
	h.running = true
	h.wg.Add(1)
	go h.tail("stdout", h.opts.SandboxPath+"/stdout", h.opts.Stdout)

	if h.opts.CaptureStderr {
		h.wg.Add(1)
		go h.tail("stderr", h.opts.SandboxPath+"/stderr", h.opts.Stderr)
	}
}

func (h *headlessConsole) stop() {
	h.mu.Lock()
	h.running = false
	h.mu.Unlock()
	h.wg.Wait()
}

func (h *headlessConsole) isRunning() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// tail polls READ_FILE for one stream, advancing offset by the number of
// bytes actually returned. Shutdown discipline: once running goes false
// the worker keeps reading until a read returns zero bytes, so no tail
// output is lost after the task completes.
func (h *headlessConsole) tail(stream, path string, w io.Writer) {
	defer h.wg.Done()

	if w == nil {
		return
	}

	var offset uint32
	for {
		running := h.isRunning()

		resp, err := cluster.ReadFile(h.opts.Client, h.opts.AgentBaseURL, cluster.NewReadFileCall(path, offset, readChunkLength))
		if err != nil {
			h.opts.Logger.Warn().Err(err).Str("stream", stream).Msg("console read_file failed, retrying")
			time.Sleep(idlePollDelay)
			continue
		}

		data, err := base64.StdEncoding.DecodeString(resp.ReadFile.Data)
		if err != nil {
			h.opts.Logger.Warn().Err(err).Str("stream", stream).Msg("console read_file returned invalid base64")
			if !running {
				return
			}
			time.Sleep(idlePollDelay)
			continue
		}

		if len(data) > 0 {
			w.Write(data)
			metrics.ConsoleBytesStreamed.WithLabelValues(stream).Add(float64(len(data)))
			offset += uint32(len(data))
			continue
		}

		// Zero-byte read: if we were already shutting down, the tail is
		// fully drained.
		if !running {
			return
		}
		time.Sleep(idlePollDelay)
	}
}

// InteractiveOptions configures an attach-container-output console.
type InteractiveOptions struct {
	Client       *http.Client
	AgentBaseURL string
	ContainerID  string
	Stdout       io.Writer
	Stderr       io.Writer
	Logger       zerolog.Logger
}

// NewInteractive opens the ATTACH_CONTAINER_OUTPUT stream and starts a
// single reader goroutine routing STDOUT/STDERR records to their writers.
func NewInteractive(opts InteractiveOptions) (*Console, error) {
	body, err := cluster.AttachContainerOutput(opts.Client, opts.AgentBaseURL, opts.ContainerID)
	if err != nil {
		return nil, err
	}

	ic := &interactiveConsole{opts: opts, body: body}
	ic.start()
	return &Console{kind: kindInteractive, interactive: ic}, nil
}

type interactiveConsole struct {
	opts    InteractiveOptions
	body    io.ReadCloser
	mu      sync.Mutex
	running bool
	wg      sync.WaitGroup
}

func (ic *interactiveConsole) start() {
	ic.running = true
	ic.wg.Add(1)
	go ic.stream()
}

// stop abandons the stream: the response body is closed, not drained,
// per spec.
func (ic *interactiveConsole) stop() {
	ic.mu.Lock()
	ic.running = false
	ic.mu.Unlock()
	ic.body.Close()
	ic.wg.Wait()
}

func (ic *interactiveConsole) isRunning() bool {
	ic.mu.Lock()
	defer ic.mu.Unlock()
	return ic.running
}

func (ic *interactiveConsole) stream() {
	defer ic.wg.Done()

	reader := recordio.NewReader(ic.body)
	for ic.isRunning() {
		record, err := reader.ReadRecord()
		if err != nil {
			if ic.isRunning() {
				ic.opts.Logger.Debug().Err(err).Msg("console attach stream ended")
			}
			return
		}

		var rec cluster.DataRecord
		if err := decodeDataRecord(record, &rec); err != nil {
			ic.opts.Logger.Warn().Err(err).Msg("console attach record decode failed")
			continue
		}

		if rec.Type != "DATA" {
			ic.opts.Logger.Debug().Str("type", rec.Type).Msg("console attach ignoring non-data record")
			continue
		}

		ic.route(rec)
	}
}

func (ic *interactiveConsole) route(rec cluster.DataRecord) {
	data, err := base64.StdEncoding.DecodeString(rec.Data.Data)
	if err != nil {
		ic.opts.Logger.Warn().Err(err).Msg("console attach payload decode failed")
		return
	}

	switch rec.Data.Type {
	case "STDOUT":
		if ic.opts.Stdout != nil {
			ic.opts.Stdout.Write(data)
			metrics.ConsoleBytesStreamed.WithLabelValues("stdout").Add(float64(len(data)))
		}
	case "STDERR":
		if ic.opts.Stderr != nil {
			ic.opts.Stderr.Write(data)
			metrics.ConsoleBytesStreamed.WithLabelValues("stderr").Add(float64(len(data)))
		}
	default:
		ic.opts.Logger.Debug().Str("type", rec.Data.Type).Msg("console attach ignoring unknown stream")
	}
}
