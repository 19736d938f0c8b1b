package kdbxdb

import (
	"strings"

	"github.com/samber/lo"
)

// aliasCustomDataKey is the Meta/CustomData item key this module reserves
// for its hostname alias table; every other Item is left untouched.
const aliasCustomDataKey = "PFP_ALIASES"

// maxAliasDepth bounds alias chain resolution (see resolveHostname) against a
// cycle that add_alias itself refuses to create but an imported or
// hand-edited database might still contain.
const maxAliasDepth = 10

func (m *Meta) getAliases() map[string]string {
	result := make(map[string]string)
	for _, item := range m.CustomData {
		if item.Key != aliasCustomDataKey {
			continue
		}
		parts := strings.Split(item.Value, "\n")
		for i := 0; i+1 < len(parts); i += 2 {
			result[parts[i]] = parts[i+1]
		}
		break
	}
	return result
}

func (m *Meta) setAliases(aliases map[string]string) {
	pairs := lo.FlatMap(lo.Keys(aliases), func(alias string, _ int) []string {
		return []string{alias, aliases[alias]}
	})
	value := strings.Join(pairs, "\n")

	kept := lo.Filter(m.CustomData, func(item CustomDataItem, _ int) bool {
		return item.Key != aliasCustomDataKey
	})
	m.CustomData = append(kept, CustomDataItem{Key: aliasCustomDataKey, Value: value})
}

// addAlias records that alias resolves to hostname, following any existing
// alias chain starting at hostname to its final real hostname first. If
// following that chain would cycle back to alias itself, or exceeds
// maxAliasDepth, the call is silently dropped, matching the original.
func (m *Meta) addAlias(alias, hostname string) {
	aliases := m.getAliases()
	real := hostname
	for depth := 0; ; depth++ {
		next, ok := aliases[real]
		if !ok {
			break
		}
		if next == alias || depth >= maxAliasDepth {
			return
		}
		real = next
	}
	aliases[alias] = real
	m.setAliases(aliases)
}

func (m *Meta) removeAlias(alias string) {
	aliases := m.getAliases()
	if _, ok := aliases[alias]; ok {
		delete(aliases, alias)
		m.setAliases(aliases)
	}
}

// resolveHostname returns what hostname ultimately resolves to through the
// alias table, following at most maxAliasDepth alias steps, or hostname
// itself if it names no alias.
func resolveHostname(aliases map[string]string, hostname string) string {
	for depth := 0; depth < maxAliasDepth; depth++ {
		real, ok := aliases[hostname]
		if !ok {
			break
		}
		hostname = real
	}
	return hostname
}
