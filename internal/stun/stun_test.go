package stun

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextStunServer(t *testing.T) {
	assert := assert.New(t)

	serverCounts := make(map[string]int)

	// Call NextServer len(stunServers)*2 times to ensure that we cycle through the servers at least once.
	for i := 0; i < len(stunServers)*2; i++ {
		server := NextServer()
		assert.NotEmpty(server)
		serverCounts[server]++
	}

	for _, server := range stunServers {
		count, exists := serverCounts[server]
		assert.True(exists, "Server was not returned by NextServer: %s", server)
		assert.GreaterOrEqual(count, 1, "Server was returned less than once: %s", server)
	}
}

func TestParseServers(t *testing.T) {
	servers := parseServers("a:1\n\n  b:2  \n# comment\n")
	assert.Equal(t, []string{"a:1", "b:2"}, servers)
}
