package kdbxdb

import (
	"testing"

	"github.com/alecthomas/assert"
)

func TestMetaAliasRoundTrip(t *testing.T) {
	var m Meta
	m.addAlias("example.com", "real-example.com")

	aliases := m.getAliases()
	assert.Equal(t, "real-example.com", aliases["example.com"])

	m.removeAlias("example.com")
	assert.Equal(t, 0, len(m.getAliases()))
}

func TestMetaAliasFollowsExistingChain(t *testing.T) {
	var m Meta
	m.addAlias("a.com", "b.com")
	m.addAlias("b.com", "c.com")

	aliases := m.getAliases()
	assert.Equal(t, "c.com", resolveHostname(aliases, "a.com"))
}

func TestMetaAliasRefusesCycle(t *testing.T) {
	var m Meta
	m.addAlias("a.com", "b.com")
	m.addAlias("b.com", "a.com")

	aliases := m.getAliases()
	_, present := aliases["b.com"]
	assert.False(t, present)
}

func TestResolveHostnamePassesThroughUnaliased(t *testing.T) {
	aliases := map[string]string{"a.com": "b.com"}
	assert.Equal(t, "b.com", resolveHostname(aliases, "a.com"))
	assert.Equal(t, "c.com", resolveHostname(aliases, "c.com"))
}

func TestMetaSetAliasesReplacesExistingItem(t *testing.T) {
	var m Meta
	m.CustomData = []CustomDataItem{{Key: "SomeOtherKey", Value: "keep-me"}}
	m.setAliases(map[string]string{"a.com": "b.com"})
	m.setAliases(map[string]string{"c.com": "d.com"})

	aliases := m.getAliases()
	assert.Equal(t, 1, len(aliases))
	assert.Equal(t, "d.com", aliases["c.com"])

	found := false
	for _, item := range m.CustomData {
		if item.Key == "SomeOtherKey" {
			found = true
		}
	}
	assert.True(t, found)
}
