package sandbox

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/google/uuid"

	"autograder/internal/logging"
)

const workDir = "/app"

// containerSandbox is the Docker-SDK-backed Sandbox implementation. One
// instance owns exactly one running container, kept alive with
// "sleep infinity" so the pool can exec into it repeatedly instead of
// paying container-creation cost per command.
type containerSandbox struct {
	mu sync.Mutex

	id          string
	containerID string
	language    string
	port        int // 0 means no exposed port

	client dockerAPI

	state           State
	createdAt       time.Time
	lastPickedAt    time.Time
	workdirPrepared bool
}

var _ Sandbox = (*containerSandbox)(nil)

func (c *containerSandbox) Language() string          { return c.language }
func (c *containerSandbox) ID() string                { return c.id }
func (c *containerSandbox) State() State              { return c.state }
func (c *containerSandbox) CreatedAt() time.Time       { return c.createdAt }
func (c *containerSandbox) LastPickedAt() time.Time    { return c.lastPickedAt }
func (c *containerSandbox) WorkdirPrepared() bool      { return c.workdirPrepared }

func (c *containerSandbox) pickup() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateBusy
	c.lastPickedAt = time.Now()
}

// PrepareWorkdir stages each file at its relative path under /app,
// base64-encoding content to transit the shell boundary safely.
func (c *containerSandbox) PrepareWorkdir(ctx context.Context, files map[string]string) error {
	if len(files) == 0 {
		return nil
	}

	for filename, content := range files {
		dir := path.Dir(filename)
		if dir != "." && dir != "" {
			fullDir := path.Join(workDir, dir)
			res, err := c.exec(ctx, []string{"/bin/sh", "-c", "mkdir -p " + fullDir})
			if err != nil || res.ExitCode != 0 {
				return fmt.Errorf("sandbox: create directory %s: %v (exit=%d)", fullDir, err, res.ExitCode)
			}
		}

		encoded := base64.StdEncoding.EncodeToString([]byte(content))
		fullPath := path.Join(workDir, filename)
		cmd := fmt.Sprintf("echo '%s' | base64 -d > %s", encoded, fullPath)
		res, err := c.exec(ctx, []string{"/bin/sh", "-c", cmd})
		if err != nil || res.ExitCode != 0 {
			return fmt.Errorf("sandbox: write file %s: %v (stderr=%s)", fullPath, err, res.Stderr)
		}
	}

	c.mu.Lock()
	c.workdirPrepared = true
	c.mu.Unlock()
	return nil
}

// RunCommand executes a single shell command as the sandbox's non-root
// user and classifies the outcome.
func (c *containerSandbox) RunCommand(ctx context.Context, cmd string, timeout time.Duration) (CommandResult, error) {
	execCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		execCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	start := time.Now()
	res, err := c.exec(execCtx, []string{"/bin/sh", "-c", cmd})
	elapsed := time.Since(start)
	if err != nil {
		return CommandResult{
			Stdout:   "",
			Stderr:   "command execution failed: " + err.Error(),
			ExitCode: -1,
			Elapsed:  elapsed,
			Category: CategorySystemError,
		}, nil
	}

	res.Elapsed = elapsed
	res.Category = Classify(res.Stdout, res.Stderr, res.ExitCode, c.language)
	return res, nil
}

// RunCommands feeds inputs, joined by newlines, into programCommand's
// stdin via a single shell invocation (echo | program).
func (c *containerSandbox) RunCommands(ctx context.Context, inputs []string, programCommand string, timeout time.Duration) (CommandResult, error) {
	stdin := strings.Join(inputs, "\n")
	escaped := strings.ReplaceAll(stdin, "'", `'\''`)

	var shellCmd string
	if programCommand != "" {
		shellCmd = fmt.Sprintf("echo '%s' | %s", escaped, programCommand)
	} else {
		shellCmd = fmt.Sprintf("echo '%s'", escaped)
	}

	return c.RunCommand(ctx, shellCmd, timeout)
}

// MakeRequest performs an HTTP request against the sandbox's exposed
// port, if any.
func (c *containerSandbox) MakeRequest(ctx context.Context, method, reqPath string, body []byte, headers map[string]string, timeout time.Duration) (HTTPResult, error) {
	if c.port == 0 {
		return HTTPResult{}, ErrNoPortConfigured{}
	}

	url := "http://localhost:" + strconv.Itoa(c.port) + reqPath
	reqCtx := ctx
	var cancel context.CancelFunc
	if timeout > 0 {
		reqCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(reqCtx, strings.ToUpper(method), url, bytes.NewReader(body))
	if err != nil {
		return HTTPResult{}, err
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return HTTPResult{}, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return HTTPResult{}, err
	}

	return HTTPResult{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       respBody,
	}, nil
}

// Destroy stops and removes the underlying container. Never reused
// afterward.
func (c *containerSandbox) Destroy(ctx context.Context) error {
	timeoutSec := 1
	if err := c.client.ContainerStop(ctx, c.containerID, container.StopOptions{Timeout: &timeoutSec}); err != nil {
		logging.S().Warnw("sandbox stop failed, forcing remove", "container", c.containerID, "error", err)
	}
	if err := c.client.ContainerRemove(ctx, c.containerID, container.RemoveOptions{Force: true}); err != nil {
		return fmt.Errorf("sandbox: remove container %s: %w", c.containerID, err)
	}
	return nil
}

// exec runs cmd inside the container as the non-root "sandbox" user and
// demultiplexes stdout/stderr.
func (c *containerSandbox) exec(ctx context.Context, cmd []string) (CommandResult, error) {
	created, err := c.client.ContainerExecCreate(ctx, c.containerID, container.ExecOptions{
		Cmd:          cmd,
		WorkingDir:   workDir,
		User:         "sandbox",
		AttachStdout: true,
		AttachStderr: true,
	})
	if err != nil {
		return CommandResult{}, fmt.Errorf("exec create: %w", err)
	}

	attach, err := c.client.ContainerExecAttach(ctx, created.ID, container.ExecAttachOptions{})
	if err != nil {
		return CommandResult{}, fmt.Errorf("exec attach: %w", err)
	}
	defer attach.Close()

	var stdout, stderr bytes.Buffer
	if _, err := stdcopy.StdCopy(&stdout, &stderr, attach.Reader); err != nil && err != io.EOF {
		return CommandResult{}, fmt.Errorf("exec read: %w", err)
	}

	inspect, err := c.client.ContainerExecInspect(ctx, created.ID)
	if err != nil {
		return CommandResult{}, fmt.Errorf("exec inspect: %w", err)
	}

	return CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		ExitCode: inspect.ExitCode,
	}, nil
}

func newSandboxID() string { return uuid.New().String() }
