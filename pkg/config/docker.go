package config

import (
	"net"
	"os"
	"strings"
	"sync"
)

// DockerHostAlias is how a container reaches services published on its host.
const DockerHostAlias = "host.docker.internal"

// dockerMarker exists in every Docker container's root filesystem.
var dockerMarker = "/.dockerenv"

var inContainer = sync.OnceValue(func() bool {
	_, err := os.Stat(dockerMarker)
	return err == nil
})

// IsRunningInDocker reports whether the engine runs inside a Docker container.
func IsRunningInDocker() bool {
	return inContainer()
}

// ResolveHostForDocker rewrites a loopback datasource host to DockerHostAlias
// when the engine is containerized. A warehouse configured as "localhost" on a
// developer machine then stays reachable from the container.
func ResolveHostForDocker(host string) string {
	return resolveDatasourceHost(host, IsRunningInDocker())
}

func resolveDatasourceHost(host string, containerized bool) string {
	if !containerized || !isLoopback(host) {
		return host
	}
	return DockerHostAlias
}

func isLoopback(host string) bool {
	h := strings.Trim(host, "[]")
	if strings.EqualFold(h, "localhost") {
		return true
	}
	ip := net.ParseIP(h)
	return ip != nil && ip.IsLoopback()
}
