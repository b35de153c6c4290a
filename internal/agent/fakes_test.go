package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	iexec "github.com/ShayCichocki/relay/internal/exec"
)

// fakeRunner replays canned stdout/stderr lines for Stream.
type fakeRunner struct {
	stdout   []string
	stderr   []string
	err      error
	runErr   error
	lookErr  error
	requests []iexec.StreamRequest
	runs     [][]string
}

func (f *fakeRunner) Run(ctx context.Context, workDir, name string, args ...string) ([]byte, error) {
	f.runs = append(f.runs, append([]string{name}, args...))
	return nil, f.runErr
}

func (f *fakeRunner) RunShell(ctx context.Context, workDir, command string) ([]byte, error) {
	return f.Run(ctx, workDir, "bash", "-c", command)
}

func (f *fakeRunner) Stream(ctx context.Context, req iexec.StreamRequest) error {
	f.requests = append(f.requests, req)
	for _, line := range f.stdout {
		if req.OnStdout != nil {
			req.OnStdout(line)
		}
	}
	for _, line := range f.stderr {
		if req.OnStderr != nil {
			req.OnStderr(line)
		}
	}
	return f.err
}

func (f *fakeRunner) LookPath(name string) (string, error) {
	if f.lookErr != nil {
		return "", f.lookErr
	}
	return "/usr/bin/" + name, nil
}

var _ iexec.CommandRunner = (*fakeRunner)(nil)

// chunkLog collects stream chunks.
type chunkLog struct {
	mu     sync.Mutex
	chunks []StreamChunk
}

func (c *chunkLog) sink(ch StreamChunk) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.chunks = append(c.chunks, ch)
}

func (c *chunkLog) texts() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.chunks))
	for _, ch := range c.chunks {
		out = append(out, ch.Text)
	}
	return out
}

// cannedMessages answers Messages.New from a queue of raw JSON messages.
type cannedMessages struct {
	responses []string
}

func (c *cannedMessages) New(ctx context.Context, body anthropic.MessageNewParams, opts ...option.RequestOption) (*anthropic.Message, error) {
	if len(c.responses) == 0 {
		return nil, errors.New("no canned response")
	}
	raw := c.responses[0]
	c.responses = c.responses[1:]
	var msg anthropic.Message
	if err := json.Unmarshal([]byte(raw), &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

func endTurn(text string) string {
	b, _ := json.Marshal(map[string]any{
		"id": "m", "type": "message", "role": "assistant", "model": "claude",
		"stop_reason": "end_turn",
		"content":     []map[string]any{{"type": "text", "text": text}},
		"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
	})
	return string(b)
}

func toolCall(id, name string, input map[string]any) string {
	b, _ := json.Marshal(map[string]any{
		"id": "m", "type": "message", "role": "assistant", "model": "claude",
		"stop_reason": "tool_use",
		"content":     []map[string]any{{"type": "tool_use", "id": id, "name": name, "input": input}},
		"usage":       map[string]any{"input_tokens": 1, "output_tokens": 1},
	})
	return string(b)
}
