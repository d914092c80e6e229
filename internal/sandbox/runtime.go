package sandbox

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	dockerimage "github.com/docker/docker/api/types/image"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"

	"autograder/internal/logging"
)

// Container label constants, used for orphan sweep at manager startup.
const (
	LabelApp       = "autograder.sandbox.app"
	LabelVersion   = "autograder.sandbox.version"
	LabelLanguage  = "autograder.sandbox.language"
	LabelPoolID    = "autograder.sandbox.pool_id"
	LabelCreatedAt = "autograder.sandbox.created_at"
	sandboxVersion = "1.0"

	// gvisorRuntime is the container runtime used for stronger kernel
	// isolation when available; creation falls back to the default
	// runtime if the daemon rejects it.
	gvisorRuntime = "runsc"
)

// Runtime creates and destroys the containers backing sandboxes. It is
// the seam between a LanguagePool and the container engine, so pools can
// be tested against a fake without a real Docker daemon.
type Runtime interface {
	// CreateSandbox stands up a container for language from image. A
	// non-zero exposePort publishes that container port on a host port
	// the returned sandbox's MakeRequest targets.
	CreateSandbox(ctx context.Context, language, image, poolID string, exposePort int) (Sandbox, error)
	ListLabeled(ctx context.Context, label string) ([]string, error)
	RemoveByID(ctx context.Context, containerID string) error
	Close() error
}

// dockerRuntime is the production Runtime, backed by the Docker SDK.
type dockerRuntime struct {
	client dockerAPI
}

// NewDockerRuntime constructs a Docker-SDK-backed Runtime using the
// ambient Docker host configuration (DOCKER_HOST and friends).
func NewDockerRuntime() (Runtime, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("docker sdk client init failed: %w", err)
	}
	return &dockerRuntime{client: cli}, nil
}

// CreateSandbox starts a long-lived, resource-capped container kept alive
// with "sleep infinity" so the pool can exec into it repeatedly. It tries
// the gVisor runtime first and falls back to the default runtime if the
// daemon rejects it, matching the language pool's documented fallback
// path.
func (r *dockerRuntime) CreateSandbox(ctx context.Context, language, image, poolID string, exposePort int) (Sandbox, error) {
	if err := r.ensureImage(ctx, image); err != nil {
		return nil, fmt.Errorf("ensure sandbox image %s: %w", image, err)
	}

	labels := map[string]string{
		LabelApp:       "autograder-sandbox",
		LabelVersion:   sandboxVersion,
		LabelLanguage:  language,
		LabelPoolID:    poolID,
		LabelCreatedAt: time.Now().Format(time.RFC3339),
	}

	containerID, err := r.createWithRuntime(ctx, image, labels, gvisorRuntime, exposePort)
	if err != nil {
		logging.S().Warnw("gVisor runtime unavailable, falling back to default runtime", "language", language, "error", err)
		containerID, err = r.createWithRuntime(ctx, image, labels, "", exposePort)
		if err != nil {
			return nil, fmt.Errorf("create sandbox container: %w", err)
		}
	}

	if err := r.client.ContainerStart(ctx, containerID, container.StartOptions{}); err != nil {
		_ = r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
		return nil, fmt.Errorf("start sandbox container: %w", err)
	}

	hostPort := 0
	if exposePort > 0 {
		hostPort, err = r.publishedHostPort(ctx, containerID, exposePort)
		if err != nil {
			_ = r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
			return nil, fmt.Errorf("resolve published port for sandbox container: %w", err)
		}
	}

	now := time.Now()
	return &containerSandbox{
		id:              newSandboxID(),
		containerID:     containerID,
		language:        language,
		port:            hostPort,
		client:          r.client,
		state:           StateIdle,
		createdAt:       now,
		lastPickedAt:    now,
		workdirPrepared: false,
	}, nil
}

// publishedHostPort reads back which loopback host port the daemon
// assigned to the container's exposed port.
func (r *dockerRuntime) publishedHostPort(ctx context.Context, containerID string, exposePort int) (int, error) {
	inspect, err := r.client.ContainerInspect(ctx, containerID)
	if err != nil {
		return 0, err
	}
	if inspect.NetworkSettings == nil {
		return 0, fmt.Errorf("container %s has no network settings", containerID)
	}

	bindings := inspect.NetworkSettings.Ports[nat.Port(fmt.Sprintf("%d/tcp", exposePort))]
	if len(bindings) == 0 {
		return 0, fmt.Errorf("container %s published no binding for port %d", containerID, exposePort)
	}
	hostPort, err := strconv.Atoi(bindings[0].HostPort)
	if err != nil {
		return 0, fmt.Errorf("container %s has malformed host port %q", containerID, bindings[0].HostPort)
	}
	return hostPort, nil
}

// ensureImage pulls image if the daemon doesn't already have it cached,
// so a freshly provisioned host doesn't fail CreateSandbox on a cold
// image cache.
func (r *dockerRuntime) ensureImage(ctx context.Context, image string) error {
	_, _, err := r.client.ImageInspectWithRaw(ctx, image)
	if err == nil {
		return nil
	}
	rc, pullErr := r.client.ImagePull(ctx, image, dockerimage.PullOptions{})
	if pullErr != nil {
		return fmt.Errorf("pull image %s: %w (inspect err: %v)", image, pullErr, err)
	}
	defer rc.Close()
	_, _ = io.Copy(io.Discard, rc)
	return nil
}

func (r *dockerRuntime) createWithRuntime(ctx context.Context, image string, labels map[string]string, runtimeName string, exposePort int) (string, error) {
	pidsLimit := int64(64)
	memBytes := int64(128 * 1024 * 1024)

	hostCfg := &container.HostConfig{
		Runtime:        runtimeName,
		NetworkMode:    "none",
		CapDrop:        []string{"ALL"},
		SecurityOpt:    []string{"no-new-privileges:true"},
		ReadonlyRootfs: true,
		Tmpfs: map[string]string{
			"/tmp": "rw,noexec,nosuid,size=32m",
			"/app": "rw,exec,size=64m",
		},
		Resources: container.Resources{
			Memory:     memBytes,
			MemorySwap: memBytes,
			NanoCPUs:   500_000_000,
			PidsLimit:  &pidsLimit,
		},
	}

	cfg := &container.Config{
		Image:  image,
		Cmd:    []string{"sleep", "infinity"},
		Labels: labels,
	}

	// A sandbox that must serve HTTP (web-server assignments) trades the
	// no-network default for the bridge network with a single container
	// port published on a daemon-assigned loopback host port.
	if exposePort > 0 {
		port := nat.Port(fmt.Sprintf("%d/tcp", exposePort))
		cfg.ExposedPorts = nat.PortSet{port: struct{}{}}
		hostCfg.NetworkMode = "bridge"
		hostCfg.PortBindings = nat.PortMap{
			port: []nat.PortBinding{{HostIP: "127.0.0.1", HostPort: ""}},
		}
	}

	created, err := r.client.ContainerCreate(ctx, cfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return "", err
	}
	return created.ID, nil
}

// ListLabeled returns container IDs carrying the given label key,
// regardless of value, for orphan-sweep purposes.
func (r *dockerRuntime) ListLabeled(ctx context.Context, label string) ([]string, error) {
	containers, err := r.client.ContainerList(ctx, container.ListOptions{All: true})
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, c := range containers {
		if _, ok := c.Labels[label]; ok {
			ids = append(ids, c.ID)
		}
	}
	return ids, nil
}

func (r *dockerRuntime) RemoveByID(ctx context.Context, containerID string) error {
	_ = r.client.ContainerStop(ctx, containerID, container.StopOptions{})
	return r.client.ContainerRemove(ctx, containerID, container.RemoveOptions{Force: true})
}

func (r *dockerRuntime) Close() error { return r.client.Close() }
