package docker

import (
	"context"
	"fmt"
	"io"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/google/uuid"

	"github.com/signflowhq/signflow/internal/core/ports"
)

const (
	managedLabel  = "signflow.managed"
	workerPrefix  = "signflow-worker-"
	containerUser = "signflow"
)

// Spawner runs signing workers as containers. Each worker consumes the
// shared job queue; the supervisor only asks this adapter to start N more
// and to count how many are alive.
type Spawner struct {
	cli   *client.Client
	image string
	env   []string
}

var _ ports.ProcessSpawner = (*Spawner)(nil)

// NewSpawner creates a container spawner for the given worker image.
// env entries are passed verbatim to every worker container.
func NewSpawner(workerImage string, env []string) (*Spawner, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Spawner{cli: cli, image: workerImage, env: env}, nil
}

// Start launches count worker containers. The call returns as soon as the
// container starts are issued; worker readiness is nobody's business here.
func (s *Spawner) Start(ctx context.Context, count int) error {
	for i := 0; i < count; i++ {
		if err := s.startOne(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (s *Spawner) startOne(ctx context.Context) error {
	id := uuid.New().String()

	cfg := &container.Config{
		Image: s.image,
		Env:   s.env,
		User:  containerUser,
		Labels: map[string]string{
			managedLabel: "true",
		},
	}
	hostCfg := &container.HostConfig{
		AutoRemove: true,
	}

	resp, err := s.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, workerPrefix+id)
	if client.IsErrNotFound(err) {
		reader, pullErr := s.cli.ImagePull(ctx, s.image, image.PullOptions{})
		if pullErr != nil {
			return fmt.Errorf("failed to pull image %s: %w", s.image, pullErr)
		}
		io.Copy(io.Discard, reader)
		reader.Close()
		resp, err = s.cli.ContainerCreate(ctx, cfg, hostCfg, nil, nil, workerPrefix+id)
	}
	if err != nil {
		return fmt.Errorf("failed to create worker container: %w", err)
	}

	if err := s.cli.ContainerStart(ctx, resp.ID, container.StartOptions{}); err != nil {
		_ = s.cli.ContainerRemove(ctx, resp.ID, container.RemoveOptions{Force: true})
		return fmt.Errorf("failed to start worker container: %w", err)
	}
	return nil
}

// Running counts live managed worker containers.
func (s *Spawner) Running(ctx context.Context) (int, error) {
	args := filters.NewArgs()
	args.Add("label", managedLabel+"=true")
	args.Add("status", "running")

	containers, err := s.cli.ContainerList(ctx, container.ListOptions{Filters: args})
	if err != nil {
		return 0, fmt.Errorf("failed to list worker containers: %w", err)
	}
	return len(containers), nil
}
