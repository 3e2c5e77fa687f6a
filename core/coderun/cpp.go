package coderun

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/gorilla/websocket"
	"github.com/pkg/errors"

	"github.com/trezcool/pogil/core"
)

type (
	newSessionRequest struct {
		Code  string            `json:"code"`
		Files map[string]string `json:"files,omitempty"`
	}

	newSessionResponse struct {
		OK           bool   `json:"ok"`
		SessionID    string `json:"sessionId"`
		CompileError string `json:"compile_error"`
	}
)

// CppRunner compiles and runs C++ cells on a remote service: the code is
// posted to {base}/session/new, then the program is driven over a websocket
// at {base}/session/ws/{sessionId}.
type CppRunner struct {
	baseURL        string
	client         *http.Client
	dialer         *websocket.Dialer
	clock          clock.Clock
	compileTimeout time.Duration
	runTimeout     time.Duration
	grace          time.Duration
	log            core.Logger
}

var _ Runner = (*CppRunner)(nil)

type CppOption func(r *CppRunner)

func WithHTTPClient(c *http.Client) CppOption {
	return func(r *CppRunner) { r.client = c }
}

func WithRunnerClock(clk clock.Clock) CppOption {
	return func(r *CppRunner) { r.clock = clk }
}

// NewCppRunner returns a runner talking to conf.CxxBaseURL. log may be nil.
func NewCppRunner(conf core.RunnerConfig, log core.Logger, opts ...CppOption) *CppRunner {
	r := &CppRunner{
		baseURL:        strings.TrimRight(conf.CxxBaseURL, "/"),
		client:         http.DefaultClient,
		dialer:         websocket.DefaultDialer,
		clock:          clock.New(),
		compileTimeout: conf.CompileTimeout,
		runTimeout:     conf.RunTimeout,
		grace:          conf.InterruptGrace,
		log:            log,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *CppRunner) Run(ctx context.Context, job Job) Result {
	capture := NewCapture(job.Key, job.Terminal)
	res := Result{OutputKey: capture.OutputKey()}
	guard := new(Guard)
	defer guard.Close()

	files := job.files()
	snapshot, base := files.Snapshot()

	capture.Println("⏳ Compiling...")
	sid, err := r.compile(ctx, job.Code, SelectFiles(snapshot, job.Include))
	if err != nil {
		res.Err = err
		var compileErr *CompileError
		switch {
		case errors.As(err, &compileErr):
			capture.Println("❌ Compile error:\n")
			out := compileErr.Output
			if out == "" {
				out = "(no details)"
			}
			capture.Println(out)
		default:
			r.logError("coderun.CppRunner.compile", err)
			capture.Println("❌ Error: " + err.Error())
		}
		res.Output = capture.String()
		return res
	}

	res.Err = r.session(ctx, guard, sid, job, capture, files, base)
	res.Output = capture.String()
	return res
}

func (r *CppRunner) compile(ctx context.Context, code string, files map[string]string) (string, error) {
	if r.compileTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.compileTimeout)
		defer cancel()
	}

	body, err := json.Marshal(newSessionRequest{Code: code, Files: files})
	if err != nil {
		return "", errors.Wrap(err, "encoding session request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/session/new", bytes.NewReader(body))
	if err != nil {
		return "", &TransportError{Op: "compile", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return "", ErrCompileTimeout
		}
		return "", &TransportError{Op: "compile", Err: err}
	}
	defer resp.Body.Close()

	if !strings.Contains(resp.Header.Get("Content-Type"), "application/json") {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 400))
		return "", &TransportError{Op: "compile", Err: fmt.Errorf("non-JSON response (%d): %s", resp.StatusCode, text)}
	}
	var data newSessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", &TransportError{Op: "compile", Err: errors.Wrap(err, "decoding session response")}
	}
	if !data.OK {
		return "", &CompileError{Output: data.CompileError}
	}
	if data.SessionID == "" {
		return "", &TransportError{Op: "compile", Err: errors.New("missing session id")}
	}
	return data.SessionID, nil
}

// wsURL maps the service base URL to the session's websocket URL.
func (r *CppRunner) wsURL(sid string) (string, error) {
	u, err := url.Parse(r.baseURL + "/session/ws/" + url.PathEscape(sid))
	if err != nil {
		return "", err
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
	return u.String(), nil
}

func (r *CppRunner) session(ctx context.Context, guard *Guard, sid string, job Job, capture *Capture, files *FileStore, base map[string]uint64) error {
	u, err := r.wsURL(sid)
	if err != nil {
		return r.transportError(capture, "connect", err)
	}
	conn, _, err := r.dialer.DialContext(ctx, u, nil)
	if err != nil {
		return r.transportError(capture, "connect", err)
	}
	guard.Add(conn)

	var wmu sync.Mutex
	send := func(data string) error {
		wmu.Lock()
		defer wmu.Unlock()
		return conn.WriteMessage(websocket.TextMessage, []byte(data))
	}

	out := newSentinelWriter(FileUpdatePrefix, capture, func(payload string) {
		var updates map[string]string
		if err := json.Unmarshal([]byte(payload), &updates); err != nil {
			r.logError("coderun.CppRunner.fileUpdate", err)
			return
		}
		if skipped := files.Merge(updates, base); len(skipped) > 0 && r.log != nil {
			r.log.Warn("coderun.CppRunner.fileUpdate", map[string]interface{}{"key": job.Key, "skipped": skipped})
		}
	})

	capture.Println("▶ Program started. Type input here; press Enter to send.")

	done := make(chan error, 1)
	go func() {
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				done <- err
				return
			}
			if _, err := out.Write(data); err != nil {
				done <- err
				return
			}
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	guard.Defer(func() error { cancel(); return nil })
	if job.Keys != nil {
		le := NewLineEditor(job.Terminal, send)
		if c, ok := job.Keys.(io.Closer); ok {
			guard.Add(c) // unblocks the pending Read
		}
		go pumpKeys(runCtx, job.Keys, le)
	}
	if job.Stdin != nil {
		go pumpLines(runCtx, job.Stdin, send)
	}

	var timeout <-chan time.Time
	if r.runTimeout > 0 {
		t := r.clock.Timer(r.runTimeout)
		guard.Defer(func() error { t.Stop(); return nil })
		timeout = t.C
	}

	var result error
	select {
	case err = <-done:
		result = readError(err)
	case <-timeout:
		capture.Println("\r\n⏱ Time limit exceeded, interrupting...")
		result = ErrTimeLimit
		r.interrupt(send, guard, done)
	case <-ctx.Done():
		result = ctx.Err()
		_ = send(Interrupt)
		_ = guard.Close()
		<-done
	}
	_ = out.Flush()

	if result != nil {
		var te *TransportError
		if errors.As(result, &te) {
			r.logError("coderun.CppRunner.session", result)
			capture.Println("\r\n❌ [WebSocket error] " + te.Error())
		}
	}
	capture.Println("\r\n💡 [Program finished]")
	return result
}

// interrupt sends Ctrl-C, waits for the program to end on its own for the
// grace period, then force-closes the session.
func (r *CppRunner) interrupt(send func(string) error, guard *Guard, done <-chan error) {
	_ = send(Interrupt)
	grace := r.clock.Timer(r.grace)
	defer grace.Stop()
	select {
	case <-done:
		return
	case <-grace.C:
	}
	_ = guard.Close()
	<-done
}

func (r *CppRunner) transportError(capture *Capture, op string, err error) error {
	te := &TransportError{Op: op, Err: err}
	r.logError("coderun.CppRunner."+op, te)
	capture.Println("❌ Error: " + te.Error())
	return te
}

func (r *CppRunner) logError(msg string, err error) {
	if r.log != nil {
		r.log.Error(msg, err)
	}
}

// readError maps the error ending the read loop: a close handshake ends the
// program normally.
func readError(err error) error {
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil
	}
	return &TransportError{Op: "read", Err: err}
}

// pumpKeys feeds keystrokes to le until keys ends or ctx is done. Keys read
// after the run ended are not sent.
func pumpKeys(ctx context.Context, keys io.Reader, le *LineEditor) {
	buf := make([]byte, 256)
	for {
		n, err := keys.Read(buf)
		if ctx.Err() != nil {
			return
		}
		if n > 0 {
			if ferr := le.Feed(string(buf[:n])); ferr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func pumpLines(ctx context.Context, in LineReader, send func(string) error) {
	for {
		line, err := in.ReadLine(ctx)
		if err != nil {
			return
		}
		if err := send(line + "\n"); err != nil {
			return
		}
	}
}
