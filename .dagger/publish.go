package main

import (
	"context"
	"fmt"

	"dagger/chatrelay/internal/dagger"
)

// Publish builds the relay image for every release platform and pushes it
// as one multi-platform manifest. It returns the pushed image reference.
func (c *Chatrelay) Publish(
	ctx context.Context,

	// Image repository, e.g. "ghcr.io/papercomputeco/chatrelay"
	repository string,

	// Version string of build, also used as the image tag
	version string,

	// Git commit SHA of build
	commit string,

	// Registry username
	// +optional
	username string,

	// Registry password or token
	// +optional
	password *dagger.Secret,
) (string, error) {
	variants := make([]*dagger.Container, 0, len(releasePlatforms))
	for _, platform := range releasePlatforms {
		variants = append(variants, c.Image(platform, version, commit))
	}

	ctr := dag.Container()
	if password != nil {
		ctr = ctr.WithRegistryAuth(repository, username, password)
	}

	ref, err := ctr.Publish(ctx, fmt.Sprintf("%s:%s", repository, version), dagger.ContainerPublishOpts{
		PlatformVariants: variants,
	})
	if err != nil {
		return "", fmt.Errorf("failed to publish image: %w", err)
	}
	return ref, nil
}
