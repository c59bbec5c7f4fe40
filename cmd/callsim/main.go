// Command callsim plays the phone side against a running call assistant: it
// connects as the platform shim, places an AI call and walks it through its
// states, then runs reply-now turns and prints the latencies it saw.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ent0n29/callassist/internal/protocol"
)

type options struct {
	baseURL     string
	number      string
	purpose     string
	voiceStyle  string
	turns       int
	callHold    time.Duration
	turnTimeout time.Duration
	verbose     bool
}

type wsEnvelope struct {
	Type       string `json:"type"`
	Of         string `json:"of,omitempty"`
	Number     string `json:"number,omitempty"`
	Code       string `json:"code,omitempty"`
	Detail     string `json:"detail,omitempty"`
	Text       string `json:"text,omitempty"`
	Transcript string `json:"transcript,omitempty"`
	Reply      string `json:"reply,omitempty"`
	ReplyPath  string `json:"reply_path,omitempty"`
}

func main() {
	cfg, err := parseFlags()
	if err != nil {
		fmt.Fprintf(os.Stderr, "callsim: %v\n", err)
		os.Exit(2)
	}
	if err := run(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "callsim: %v\n", err)
		os.Exit(1)
	}
}

func parseFlags() (options, error) {
	var cfg options
	var holdMS, turnTimeoutMS int

	flag.StringVar(&cfg.baseURL, "base-url", "http://127.0.0.1:8080", "call assistant base URL")
	flag.StringVar(&cfg.number, "number", "+201000000000", "number to place the AI call to")
	flag.StringVar(&cfg.purpose, "purpose", "حجز موعد", "purpose of the AI call")
	flag.StringVar(&cfg.voiceStyle, "voice-style", "", "optional voice style for the call")
	flag.IntVar(&cfg.turns, "turns", 3, "number of reply-now turns to run after the call")
	flag.IntVar(&holdMS, "hold-ms", 1500, "time the simulated call stays offhook")
	flag.IntVar(&turnTimeoutMS, "turn-timeout-ms", 30000, "timeout per reply-now turn")
	flag.BoolVar(&cfg.verbose, "verbose", true, "print progress")
	flag.Parse()

	cfg.baseURL = strings.TrimRight(strings.TrimSpace(cfg.baseURL), "/")
	if cfg.baseURL == "" {
		return options{}, fmt.Errorf("base-url is required")
	}
	if strings.TrimSpace(cfg.number) == "" {
		return options{}, fmt.Errorf("number is required")
	}
	if cfg.turns < 0 {
		return options{}, fmt.Errorf("turns must be >= 0")
	}
	if holdMS < 0 {
		holdMS = 0
	}
	if turnTimeoutMS < 1000 {
		turnTimeoutMS = 1000
	}
	cfg.callHold = time.Duration(holdMS) * time.Millisecond
	cfg.turnTimeout = time.Duration(turnTimeoutMS) * time.Millisecond
	return cfg, nil
}

func run(cfg options) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	httpClient := &http.Client{Timeout: 45 * time.Second}

	shimURL, err := wsURLFor(cfg.baseURL, "/v1/calls/events/ws")
	if err != nil {
		return fmt.Errorf("build shim URL: %w", err)
	}
	shim, _, err := websocket.DefaultDialer.DialContext(ctx, shimURL, nil)
	if err != nil {
		return fmt.Errorf("open shim websocket: %w", err)
	}
	defer shim.Close()

	start := time.Now()
	body := map[string]string{"number": cfg.number, "purpose": cfg.purpose, "voice_style": cfg.voiceStyle}
	if err := postJSON(ctx, httpClient, cfg.baseURL+"/v1/calls/outgoing", body, http.StatusAccepted); err != nil {
		return fmt.Errorf("place call: %w", err)
	}
	dial, err := awaitType(shim, string(protocol.TypeDialCommand), 10*time.Second)
	if err != nil {
		return fmt.Errorf("await dial_command: %w", err)
	}
	if cfg.verbose {
		fmt.Printf("callsim: dial_command number=%s after %s\n", dial.Number, time.Since(start).Round(time.Millisecond))
	}

	for _, state := range []string{"dialing", "offhook", "ended"} {
		if state == "ended" && cfg.callHold > 0 {
			time.Sleep(cfg.callHold)
		}
		sent := time.Now()
		if err := shim.WriteJSON(protocol.CallEvent{
			Type:         protocol.TypeCallEvent,
			Direction:    "outgoing",
			State:        state,
			RemoteNumber: dial.Number,
		}); err != nil {
			return fmt.Errorf("send %s: %w", state, err)
		}
		if _, err := awaitType(shim, string(protocol.TypeAck), 5*time.Second); err != nil {
			return fmt.Errorf("await ack for %s: %w", state, err)
		}
		if cfg.verbose {
			fmt.Printf("callsim: %s acked in %s\n", state, time.Since(sent).Round(time.Millisecond))
		}
	}

	if cfg.turns > 0 {
		latencies, err := runTurns(ctx, cfg)
		if err != nil {
			return err
		}
		fmt.Printf("callsim: reply-now turns=%d p50=%s p95=%s\n", len(latencies), percentile(latencies, 0.50), percentile(latencies, 0.95))
	}

	if cfg.verbose {
		if raw, err := getBody(ctx, httpClient, cfg.baseURL+"/v1/perf/latency"); err == nil {
			fmt.Printf("callsim: server stages %s\n", strings.TrimSpace(string(raw)))
		}
	}
	return nil
}

func runTurns(ctx context.Context, cfg options) ([]time.Duration, error) {
	wsURL, err := wsURLFor(cfg.baseURL, "/v1/assistant/ws")
	if err != nil {
		return nil, err
	}
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("open assistant websocket: %w", err)
	}
	defer conn.Close()

	out := make([]time.Duration, 0, cfg.turns)
	for i := 0; i < cfg.turns; i++ {
		start := time.Now()
		if err := conn.WriteJSON(protocol.AssistantControl{Type: protocol.TypeAssistantControl, Action: protocol.ActionReplyNow}); err != nil {
			return nil, fmt.Errorf("turn %d send: %w", i+1, err)
		}
		reply, err := awaitType(conn, string(protocol.TypeAssistantReply), cfg.turnTimeout)
		if err != nil {
			return nil, fmt.Errorf("turn %d: %w", i+1, err)
		}
		d := time.Since(start)
		out = append(out, d)
		if cfg.verbose {
			fmt.Printf("callsim: turn %d/%d path=%s transcript=%q reply=%q in %s\n",
				i+1, cfg.turns, reply.ReplyPath, reply.Transcript, reply.Reply, d.Round(time.Millisecond))
		}
	}
	return out, nil
}

// awaitType reads until a message of the wanted type arrives. An error_event
// ends the wait.
func awaitType(conn *websocket.Conn, want string, timeout time.Duration) (wsEnvelope, error) {
	deadline := time.Now().Add(timeout)
	_ = conn.SetReadDeadline(deadline)
	defer conn.SetReadDeadline(time.Time{})
	for {
		var env wsEnvelope
		if err := conn.ReadJSON(&env); err != nil {
			return wsEnvelope{}, err
		}
		switch env.Type {
		case want:
			return env, nil
		case string(protocol.TypeErrorEvent):
			return wsEnvelope{}, fmt.Errorf("server error %s: %s", env.Code, env.Detail)
		}
	}
}

func postJSON(ctx context.Context, client *http.Client, target string, body any, wantStatus int) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	res, err := client.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	raw, _ := io.ReadAll(io.LimitReader(res.Body, 1<<20))
	if res.StatusCode != wantStatus {
		return fmt.Errorf("HTTP %d: %s", res.StatusCode, strings.TrimSpace(string(raw)))
	}
	return nil
}

func getBody(ctx context.Context, client *http.Client, target string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	res, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d", res.StatusCode)
	}
	return io.ReadAll(io.LimitReader(res.Body, 1<<20))
}

func wsURLFor(baseURL, path string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(baseURL))
	if err != nil {
		return "", err
	}
	switch strings.ToLower(u.Scheme) {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("unsupported base-url scheme %q", u.Scheme)
	}
	if strings.TrimSpace(u.Host) == "" {
		return "", errors.New("base-url host is required")
	}
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String(), nil
}

// percentile uses nearest-rank on a sorted copy.
func percentile(values []time.Duration, p float64) time.Duration {
	if len(values) == 0 {
		return 0
	}
	sorted := append([]time.Duration(nil), values...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	idx := int(p*float64(len(sorted))+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx].Round(time.Millisecond)
}
