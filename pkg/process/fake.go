package process

import (
	"context"
	"strings"
	"sync"
)

// FakeCall records one invocation made through a FakeRunner
type FakeCall struct {
	Executable string
	Args       []string
}

// Line renders the call the way it would appear on a shell prompt
func (c FakeCall) Line() string {
	if len(c.Args) == 0 {
		return c.Executable
	}
	return c.Executable + " " + strings.Join(c.Args, " ")
}

// FakeResponse scripts the outcome of a FakeRunner call
type FakeResponse struct {
	Stdout   []string
	Stderr   []string
	ExitCode int
	Err      error
	// BlockUntilCancelled holds the call open until ctx is done, like a follow-mode command
	BlockUntilCancelled bool
}

// FakeRunner is a Runner that never spawns a process. It records every call
// and answers from Respond, or with exit code 0 when Respond is nil.
type FakeRunner struct {
	Respond func(call FakeCall) FakeResponse

	mu    sync.Mutex
	calls []FakeCall
}

func NewFakeRunner(respond func(call FakeCall) FakeResponse) *FakeRunner {
	return &FakeRunner{Respond: respond}
}

func (f *FakeRunner) Run(ctx context.Context, executable string, args []string, onStdout, onStderr LineHandler) (int, error) {
	call := FakeCall{
		Executable: executable,
		Args:       append([]string(nil), args...),
	}

	f.mu.Lock()
	f.calls = append(f.calls, call)
	respond := f.Respond
	f.mu.Unlock()

	response := FakeResponse{}
	if respond != nil {
		response = respond(call)
	}
	if response.Err != nil {
		return 0, response.Err
	}

	for _, line := range response.Stdout {
		if onStdout != nil && line != "" {
			onStdout(line + "\n")
		}
	}
	for _, line := range response.Stderr {
		if onStderr != nil && line != "" {
			onStderr(line + "\n")
		}
	}

	if response.BlockUntilCancelled {
		<-ctx.Done()
		return ExitCodeCancelled, nil
	}
	if ctx.Err() != nil {
		return ExitCodeCancelled, nil
	}
	return response.ExitCode, nil
}

// Calls returns a copy of the recorded calls in invocation order
func (f *FakeRunner) Calls() []FakeCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]FakeCall(nil), f.calls...)
}

// Lines returns the recorded calls rendered with FakeCall.Line
func (f *FakeRunner) Lines() []string {
	calls := f.Calls()
	lines := make([]string, len(calls))
	for i, call := range calls {
		lines[i] = call.Line()
	}
	return lines
}

// Reset forgets the recorded calls
func (f *FakeRunner) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}
