package sandbox

import (
	"bufio"
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	dockerimage "github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedExec is one pre-programmed exec outcome the fake daemon plays
// back, in FIFO order.
type scriptedExec struct {
	stdout   string
	stderr   string
	exitCode int
}

// fakeDockerAPI is an in-memory dockerAPI double. Exec output is framed
// exactly the way the daemon multiplexes it, so the production stdcopy
// demux path is exercised too.
type fakeDockerAPI struct {
	mu sync.Mutex

	script   []scriptedExec
	results  map[string]scriptedExec
	commands []string
	nextID   int

	createdRuntimes []string
	failRuntimes    map[string]bool
	started         []string
	stopped         []string
	removed         []string
	containers      []types.Container

	imageExists bool
	pulled      []string
	inspect     types.ContainerJSON
}

func newFakeDockerAPI() *fakeDockerAPI {
	return &fakeDockerAPI{results: make(map[string]scriptedExec), imageExists: true}
}

func (f *fakeDockerAPI) enqueue(execs ...scriptedExec) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.script = append(f.script, execs...)
}

func (f *fakeDockerAPI) ContainerCreate(ctx context.Context, config *container.Config, hostConfig *container.HostConfig, networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (container.CreateResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.createdRuntimes = append(f.createdRuntimes, hostConfig.Runtime)
	if f.failRuntimes[hostConfig.Runtime] {
		return container.CreateResponse{}, fmt.Errorf("unknown runtime %q", hostConfig.Runtime)
	}
	f.nextID++
	return container.CreateResponse{ID: fmt.Sprintf("ctr-%d", f.nextID)}, nil
}

func (f *fakeDockerAPI) ContainerStart(ctx context.Context, containerID string, options container.StartOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = append(f.started, containerID)
	return nil
}

func (f *fakeDockerAPI) ContainerStop(ctx context.Context, containerID string, options container.StopOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, containerID)
	return nil
}

func (f *fakeDockerAPI) ContainerRemove(ctx context.Context, containerID string, options container.RemoveOptions) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.removed = append(f.removed, containerID)
	return nil
}

func (f *fakeDockerAPI) ContainerList(ctx context.Context, options container.ListOptions) ([]types.Container, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.containers, nil
}

func (f *fakeDockerAPI) ContainerInspect(ctx context.Context, containerID string) (types.ContainerJSON, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.inspect, nil
}

func (f *fakeDockerAPI) ContainerExecCreate(ctx context.Context, containerID string, config container.ExecOptions) (types.IDResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commands = append(f.commands, strings.Join(config.Cmd, " "))
	f.nextID++
	id := fmt.Sprintf("exec-%d", f.nextID)
	var beh scriptedExec
	if len(f.script) > 0 {
		beh, f.script = f.script[0], f.script[1:]
	}
	f.results[id] = beh
	return types.IDResponse{ID: id}, nil
}

func (f *fakeDockerAPI) ContainerExecAttach(ctx context.Context, execID string, config container.ExecAttachOptions) (types.HijackedResponse, error) {
	f.mu.Lock()
	beh := f.results[execID]
	f.mu.Unlock()

	var buf bytes.Buffer
	writeStreamFrame(&buf, 1, beh.stdout)
	writeStreamFrame(&buf, 2, beh.stderr)

	conn, peer := net.Pipe()
	go func() { _, _ = io.Copy(io.Discard, peer) }()
	return types.HijackedResponse{Conn: conn, Reader: bufio.NewReader(&buf)}, nil
}

func (f *fakeDockerAPI) ContainerExecInspect(ctx context.Context, execID string) (container.ExecInspect, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return container.ExecInspect{ExitCode: f.results[execID].exitCode}, nil
}

func (f *fakeDockerAPI) ImageInspectWithRaw(ctx context.Context, imageID string) (types.ImageInspect, []byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.imageExists {
		return types.ImageInspect{}, nil, nil
	}
	return types.ImageInspect{}, nil, errors.New("no such image")
}

func (f *fakeDockerAPI) ImagePull(ctx context.Context, refStr string, options dockerimage.PullOptions) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pulled = append(f.pulled, refStr)
	f.imageExists = true
	return io.NopCloser(strings.NewReader("{}")), nil
}

func (f *fakeDockerAPI) Close() error { return nil }

// writeStreamFrame emits one daemon-multiplexed output frame: a stream
// byte, three zero bytes, a big-endian payload length, then the payload.
func writeStreamFrame(buf *bytes.Buffer, stream byte, payload string) {
	if payload == "" {
		return
	}
	var header [8]byte
	header[0] = stream
	binary.BigEndian.PutUint32(header[4:], uint32(len(payload)))
	buf.Write(header[:])
	buf.WriteString(payload)
}

func newTestContainerSandbox(api *fakeDockerAPI, language string) *containerSandbox {
	now := time.Now()
	return &containerSandbox{
		id:           newSandboxID(),
		containerID:  "ctr-test",
		language:     language,
		client:       api,
		state:        StateIdle,
		createdAt:    now,
		lastPickedAt: now,
	}
}

func TestRunCommandClassifiesSuccess(t *testing.T) {
	api := newFakeDockerAPI()
	api.enqueue(scriptedExec{stdout: "42\n", exitCode: 0})
	sb := newTestContainerSandbox(api, "python")

	res, err := sb.RunCommand(context.Background(), "python3 main.py", time.Second)
	require.NoError(t, err)
	assert.Equal(t, "42\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, CategorySuccess, res.Category)
}

func TestRunCommandClassifiesPythonTraceback(t *testing.T) {
	api := newFakeDockerAPI()
	api.enqueue(scriptedExec{stderr: "Traceback (most recent call last):\n  ...", exitCode: 1})
	sb := newTestContainerSandbox(api, "python")

	res, err := sb.RunCommand(context.Background(), "python3 main.py", time.Second)
	require.NoError(t, err)
	assert.Equal(t, CategoryRuntimeError, res.Category)
	assert.Contains(t, res.Stderr, "Traceback")
}

func TestRunCommandsPipesInputsIntoProgram(t *testing.T) {
	api := newFakeDockerAPI()
	api.enqueue(scriptedExec{stdout: "done", exitCode: 0})
	sb := newTestContainerSandbox(api, "python")

	_, err := sb.RunCommands(context.Background(), []string{"alice", "42"}, "python3 main.py", time.Second)
	require.NoError(t, err)

	require.Len(t, api.commands, 1)
	assert.Contains(t, api.commands[0], "alice\n42")
	assert.Contains(t, api.commands[0], "| python3 main.py")
}

func TestPrepareWorkdirStagesNestedFiles(t *testing.T) {
	api := newFakeDockerAPI()
	// mkdir for the nested path, then one base64 write per file.
	api.enqueue(scriptedExec{}, scriptedExec{}, scriptedExec{})
	sb := newTestContainerSandbox(api, "python")

	err := sb.PrepareWorkdir(context.Background(), map[string]string{
		"pkg/util.py": "def f(): pass",
	})
	require.NoError(t, err)
	assert.True(t, sb.WorkdirPrepared())

	joined := strings.Join(api.commands, "\n")
	assert.Contains(t, joined, "mkdir -p /app/pkg")
	assert.Contains(t, joined, "base64 -d > /app/pkg/util.py")
}

func TestPrepareWorkdirFailedWriteIsStagingError(t *testing.T) {
	api := newFakeDockerAPI()
	api.enqueue(scriptedExec{stderr: "read-only file system", exitCode: 1})
	sb := newTestContainerSandbox(api, "python")

	err := sb.PrepareWorkdir(context.Background(), map[string]string{"main.py": "print(1)"})
	require.Error(t, err)
	assert.False(t, sb.WorkdirPrepared())
}

func TestMakeRequestWithoutPortFails(t *testing.T) {
	sb := newTestContainerSandbox(newFakeDockerAPI(), "node")

	_, err := sb.MakeRequest(context.Background(), "GET", "/health", nil, nil, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoPortConfigured{})
}

func TestDestroyStopsAndRemovesContainer(t *testing.T) {
	api := newFakeDockerAPI()
	sb := newTestContainerSandbox(api, "python")

	require.NoError(t, sb.Destroy(context.Background()))
	assert.Equal(t, []string{"ctr-test"}, api.stopped)
	assert.Equal(t, []string{"ctr-test"}, api.removed)
}

func TestCreateSandboxFallsBackWhenGvisorUnavailable(t *testing.T) {
	api := newFakeDockerAPI()
	api.failRuntimes = map[string]bool{gvisorRuntime: true}
	rt := &dockerRuntime{client: api}

	sb, err := rt.CreateSandbox(context.Background(), "python", "python:3.12-slim-bookworm", "pool-1", 0)
	require.NoError(t, err)
	assert.Equal(t, "python", sb.Language())

	// First attempt asked for gVisor, second fell back to the default
	// runtime, and the fallback container was started.
	assert.Equal(t, []string{gvisorRuntime, ""}, api.createdRuntimes)
	assert.Len(t, api.started, 1)
}

func TestCreateSandboxResolvesPublishedHostPort(t *testing.T) {
	api := newFakeDockerAPI()
	api.inspect = types.ContainerJSON{
		NetworkSettings: &types.NetworkSettings{
			NetworkSettingsBase: types.NetworkSettingsBase{
				Ports: nat.PortMap{
					"8080/tcp": []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: "49153"}},
				},
			},
		},
	}
	rt := &dockerRuntime{client: api}

	sb, err := rt.CreateSandbox(context.Background(), "node", "node:22-slim", "pool-1", 8080)
	require.NoError(t, err)
	assert.Equal(t, 49153, sb.(*containerSandbox).port)
}

func TestMakeRequestHitsExposedPort(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	_, portStr, err := net.SplitHostPort(strings.TrimPrefix(srv.URL, "http://"))
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	sb := newTestContainerSandbox(newFakeDockerAPI(), "node")
	sb.port = port

	res, err := sb.MakeRequest(context.Background(), "GET", "/health", nil, nil, time.Second)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, `{"ok":true}`, string(res.Body))
}

func TestCreateSandboxPullsMissingImage(t *testing.T) {
	api := newFakeDockerAPI()
	api.imageExists = false
	rt := &dockerRuntime{client: api}

	_, err := rt.CreateSandbox(context.Background(), "node", "node:22-slim", "pool-1", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"node:22-slim"}, api.pulled)
}

func TestListLabeledFiltersByLabelKey(t *testing.T) {
	api := newFakeDockerAPI()
	api.containers = []types.Container{
		{ID: "ours", Labels: map[string]string{LabelApp: "autograder-sandbox"}},
		{ID: "theirs", Labels: map[string]string{"some.other.label": "x"}},
	}
	rt := &dockerRuntime{client: api}

	ids, err := rt.ListLabeled(context.Background(), LabelApp)
	require.NoError(t, err)
	assert.Equal(t, []string{"ours"}, ids)
}
