package stun

import (
	_ "embed"
	"math/rand"
	"strings"
	"sync"
)

//go:embed stun-servers.txt
var stunServersTxtFile string

var (
	stunServerMu      = sync.Mutex{}
	stunServers       = []string{}
	currentStunServer = 0
)

func init() {
	SetServers(parseServers(stunServersTxtFile))
}

func parseServers(text string) []string {
	var servers []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" && !strings.HasPrefix(line, "#") {
			servers = append(servers, line)
		}
	}
	return servers
}

// SetServers replaces the public STUN server rotation.
func SetServers(servers []string) {
	stunServerMu.Lock()
	defer stunServerMu.Unlock()
	stunServers = append([]string(nil), servers...)
	// #nosec G404
	rand.Shuffle(len(stunServers), func(i, j int) {
		stunServers[i], stunServers[j] = stunServers[j], stunServers[i]
	})
	currentStunServer = 0
}

// NextServer returns the next server of the rotation, or an empty string
// when the rotation is empty.
func NextServer() string {
	stunServerMu.Lock()
	defer stunServerMu.Unlock()
	if len(stunServers) == 0 {
		return ""
	}
	currentStunServer = (currentStunServer + 1) % len(stunServers)
	return stunServers[currentStunServer]
}
