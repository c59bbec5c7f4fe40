package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

// frameDuration is the block size handed to the recognizer per Read.
const frameDuration = 100 * time.Millisecond

// ExecSource records raw PCM from an external capture tool (arecord by
// default) reading its stdout.
type ExecSource struct {
	cmdPath    string
	sampleRate int

	mu      sync.Mutex
	cmd     *exec.Cmd
	stdout  io.ReadCloser
	stderr  bytes.Buffer
	stopped bool

	waitOnce sync.Once
}

// NewExecSource resolves the capture tool on PATH.
func NewExecSource(cmd string, sampleRate int) (*ExecSource, error) {
	cmd = strings.TrimSpace(cmd)
	if cmd == "" {
		cmd = "arecord"
	}
	path, err := exec.LookPath(cmd)
	if err != nil {
		return nil, fmt.Errorf("audio capture tool not found (%s): %w", cmd, err)
	}
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	return &ExecSource{cmdPath: path, sampleRate: sampleRate}, nil
}

func (s *ExecSource) Name() string    { return "exec" }
func (s *ExecSource) SampleRate() int { return s.sampleRate }

func (s *ExecSource) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cmd != nil {
		return errors.New("audio source already started")
	}
	args := []string{"-q", "-f", "S16_LE", "-c", "1", "-r", strconv.Itoa(s.sampleRate), "-t", "raw"}
	cmd := exec.CommandContext(ctx, s.cmdPath, args...)
	cmd.Stderr = &s.stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("capture stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start capture: %w", err)
	}
	s.cmd = cmd
	s.stdout = stdout
	return nil
}

func (s *ExecSource) Read(ctx context.Context) (Frame, error) {
	s.mu.Lock()
	stdout := s.stdout
	stopped := s.stopped
	s.mu.Unlock()
	if stopped {
		return Frame{}, ErrSourceStopped
	}
	if stdout == nil {
		return Frame{}, errors.New("audio source not started")
	}
	if err := ctx.Err(); err != nil {
		return Frame{}, err
	}

	buf := make([]byte, BytesForDuration(s.sampleRate, frameDuration))
	n, err := io.ReadFull(stdout, buf)
	if n > 0 {
		return Frame{PCM: buf[:n], SampleRate: s.sampleRate}, nil
	}
	if err != nil {
		// stderr is only complete, and safe to read, once the tool has exited.
		s.wait()
		if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
			return Frame{}, fmt.Errorf("capture read: %w: %s", err, detail)
		}
		return Frame{}, fmt.Errorf("capture read: %w", err)
	}
	return Frame{}, io.ErrUnexpectedEOF
}

func (s *ExecSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return nil
	}
	s.stopped = true
	if s.cmd == nil || s.cmd.Process == nil {
		return nil
	}
	_ = s.cmd.Process.Kill()
	s.wait()
	return nil
}

func (s *ExecSource) wait() {
	s.waitOnce.Do(func() { _ = s.cmd.Wait() })
}
