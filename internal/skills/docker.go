package skills

import (
	"fmt"
	"math/rand"
)

// Docker simulates container housekeeping.
type Docker struct {
	username string
	rng      *rand.Rand
}

// NewDocker builds the docker skill for a persona.
func NewDocker(username, homeDir string, rng *rand.Rand) Skill {
	return &Docker{username: username, rng: rng}
}

// GenerateActivity returns one docker session's worth of commands.
func (d *Docker) GenerateActivity() []string {
	switch roll := d.rng.Float64(); {
	case roll < 0.2:
		return d.cleanup()
	case roll < 0.6:
		return d.buildRun()
	default:
		return d.inspect()
	}
}

func (d *Docker) buildRun() []string {
	images := []string{"nginx:latest", "python:3.9-slim", "node:16-alpine", "postgres:13"}
	img := images[d.rng.Intn(len(images))]
	container := fmt.Sprintf("test-%d", 1000+d.rng.Intn(9000))
	return []string{
		"docker ps",
		fmt.Sprintf("docker pull %s", img),
		fmt.Sprintf("docker run -d --name %s %s", container, img),
		fmt.Sprintf("docker logs %s", container),
	}
}

func (d *Docker) cleanup() []string {
	return []string{"docker ps -a", "docker system prune -f"}
}

func (d *Docker) inspect() []string {
	return []string{"docker ps", "docker images", "docker stats --no-stream"}
}
