package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"dagger/chatrelay/internal/dagger"
)

// releasePlatforms are the platforms chatrelay ships binaries and images for.
var releasePlatforms = []dagger.Platform{"linux/amd64", "linux/arm64"}

// relayPort matches the default listen address of "chatrelay serve".
const relayPort = 3001

// Build returns a directory holding a chatrelay binary per release
// platform, laid out as <os>/<arch>/chatrelay.
func (c *Chatrelay) Build(
	ctx context.Context,

	// Linker flags for go build
	// +optional
	// +default="-s -w"
	ldflags string,
) *dagger.Directory {
	outputs := dag.Directory()
	for _, platform := range releasePlatforms {
		outputs = outputs.WithFile(
			fmt.Sprintf("%s/chatrelay", platform),
			c.binary(platform, ldflags),
		)
	}
	return outputs
}

// BuildRelease compiles versioned release binaries with embedded version info
func (c *Chatrelay) BuildRelease(
	ctx context.Context,

	// Version string of build
	version string,

	// Git commit SHA of build
	commit string,
) *dagger.Directory {
	return c.Build(ctx, releaseLdflags(version, commit))
}

// Image packages the relay for one platform on a slim Debian base that
// carries the sqlite runtime and CA roots.
func (c *Chatrelay) Image(
	// Target platform
	// +optional
	// +default="linux/amd64"
	platform dagger.Platform,

	// Version string of build
	// +optional
	// +default="dev"
	version string,

	// Git commit SHA of build
	// +optional
	// +default="unknown"
	commit string,
) *dagger.Container {
	return dag.Container(dagger.ContainerOpts{Platform: platform}).
		From("debian:bookworm-slim").
		WithExec([]string{"apt-get", "update"}).
		WithExec([]string{"apt-get", "install", "-y", "--no-install-recommends", "ca-certificates", "libsqlite3-0"}).
		WithExec([]string{"rm", "-rf", "/var/lib/apt/lists"}).
		WithFile("/usr/local/bin/chatrelay", c.binary(platform, releaseLdflags(version, commit))).
		WithEnvVariable("CHATRELAY_SERVER_LISTEN", fmt.Sprintf(":%d", relayPort)).
		WithExposedPort(relayPort).
		WithEntrypoint([]string{"/usr/local/bin/chatrelay"}).
		WithDefaultArgs([]string{"serve"})
}

// binary builds ./cli/chatrelay natively for platform.
func (c *Chatrelay) binary(platform dagger.Platform, ldflags string) *dagger.File {
	return c.goContainerFor(platform).
		WithExec([]string{"go", "build", "-ldflags", ldflags, "-o", "/out/chatrelay", "./cli/chatrelay"}).
		File("/out/chatrelay")
}

func releaseLdflags(version, commit string) string {
	pkg := "github.com/papercomputeco/chatrelay/pkg/utils"
	return strings.Join([]string{
		"-s",
		"-w",
		fmt.Sprintf("-X '%s.Version=%s'", pkg, version),
		fmt.Sprintf("-X '%s.Sha=%s'", pkg, commit),
		fmt.Sprintf("-X '%s.Buildtime=%s'", pkg, time.Now()),
	}, " ")
}
