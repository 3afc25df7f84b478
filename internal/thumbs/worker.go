package thumbs

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// execCommand allows tests to mock exec.Command.
var execCommand = exec.Command

// ProcessWorker runs the thumbnail generator as a child process and
// exchanges newline-delimited JSON over stdio.
type ProcessWorker struct {
	command string
	args    []string

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser
}

// NewProcessWorker creates a worker for the given thumbnailer command line.
func NewProcessWorker(command string, args ...string) *ProcessWorker {
	return &ProcessWorker{command: command, args: args}
}

// Start spawns the process and begins dispatching its replies.
func (w *ProcessWorker) Start(onReply func(Reply), onFatal func(error)) error {
	cmd := execCommand(w.command, w.args...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("failed to create stdout pipe: %w", err)
	}

	// Drain stderr in background so a chatty worker cannot fill the pipe
	// buffer and stall its own stdout.
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return fmt.Errorf("failed to create stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start thumbnail worker: %w", err)
	}

	go func() {
		io.Copy(io.Discard, stderr)
	}()

	w.mu.Lock()
	w.cmd = cmd
	w.stdin = stdin
	w.mu.Unlock()

	go w.readReplies(bufio.NewReader(stdout), onReply, onFatal)

	return nil
}

// Post sends one request to the worker.
func (w *ProcessWorker) Post(req Request) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.stdin == nil {
		return fmt.Errorf("thumbnail worker not running")
	}

	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("failed to encode thumbnail request: %w", err)
	}
	data = append(data, '\n')

	if _, err := w.stdin.Write(data); err != nil {
		return fmt.Errorf("failed to send thumbnail request: %w", err)
	}
	return nil
}

// Terminate shuts the process down: close stdin as the graceful signal,
// wait briefly, then force kill.
func (w *ProcessWorker) Terminate() {
	w.mu.Lock()
	cmd := w.cmd
	stdin := w.stdin
	w.cmd = nil
	w.stdin = nil
	w.mu.Unlock()

	if cmd == nil {
		return
	}

	if stdin != nil {
		if err := stdin.Close(); err != nil {
			log.Printf("Warning: failed to close thumbnail worker stdin: %v", err)
		}
	}

	done := make(chan error, 1)
	go func() {
		done <- cmd.Wait()
	}()

	select {
	case err := <-done:
		if err != nil && !strings.Contains(err.Error(), "signal: killed") {
			log.Printf("Warning: thumbnail worker exited with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		log.Printf("Thumbnail worker did not exit gracefully, force killing")
		if cmd.Process != nil {
			cmd.Process.Kill()
		}
	}
}

// readReplies dispatches worker replies until the pipe closes.
func (w *ProcessWorker) readReplies(r *bufio.Reader, onReply func(Reply), onFatal func(error)) {
	for {
		line, err := r.ReadBytes('\n')
		if err != nil {
			// EOF after Terminate is the normal shutdown path; the broker
			// only reacts if requests are still pending.
			onFatal(fmt.Errorf("thumbnail worker pipe closed: %w", err))
			return
		}

		var reply Reply
		if err := json.Unmarshal(line, &reply); err != nil {
			log.Printf("Warning: discarding malformed thumbnail reply: %v", err)
			continue
		}
		onReply(reply)
	}
}
