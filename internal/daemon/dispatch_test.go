package daemon

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/spectralops/kdbx-native-host/internal/hostconfig"
	"github.com/spectralops/kdbx-native-host/internal/kdbxdb"
	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

const fixturePassword = "correct horse battery staple"

// newFixtureDatabase creates a fresh .kdbx file in a temp dir, sets HOME to
// another temp dir and points hostconfig at the file, returning the two
// opaque key strings the wire protocol passes back and forth after unlock.
func newFixtureDatabase(t *testing.T) []string {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	db, err := kdbxdb.Empty()
	assert.NoError(t, err)
	keys, err := db.Derive(fixturePassword)
	assert.NoError(t, err)

	path := filepath.Join(t.TempDir(), "fixture.kdbx")
	f, err := os.Create(path)
	assert.NoError(t, err)
	assert.NoError(t, db.Save(f, keys))
	assert.NoError(t, f.Close())

	assert.NoError(t, hostconfig.SetDatabasePath(path))

	encryption, hmacBase := keys.ToString()
	return []string{encryption, hmacBase}
}

func request(t *testing.T, action string, params interface{}) []byte {
	t.Helper()
	raw, err := json.Marshal(params)
	assert.NoError(t, err)
	message, err := json.Marshal(wireAction{RequestID: "req-1", Action: action, Request: raw})
	assert.NoError(t, err)
	return message
}

func TestHandleGetProtocolDefaultsToCompatibleWithNoRequest(t *testing.T) {
	requestID, response, err := Handle(request(t, actionGetProtocol, nil))
	assert.NoError(t, err)
	assert.Equal(t, "req-1", requestID)
	assert.Equal(t, compatibleProtocol, response)
}

func TestHandleGetProtocolRejectsTooOldVersion(t *testing.T) {
	_, response, err := Handle(request(t, actionGetProtocol, "0.5"))
	assert.NoError(t, err)
	assert.Equal(t, currentProtocol, response)
}

func TestHandleUnknownActionIsInvalidMessage(t *testing.T) {
	_, _, err := Handle(request(t, "not-a-real-action", nil))
	assert.Equal(t, kdbxerr.ErrInvalidMessage, err)
}

func TestHandleMalformedEnvelopeIsInvalidMessage(t *testing.T) {
	_, _, err := Handle([]byte("not json"))
	assert.Equal(t, kdbxerr.ErrInvalidMessage, err)
}

func TestHandleUnlockWithoutConfiguredDatabase(t *testing.T) {
	t.Setenv("HOME", t.TempDir())
	_, _, err := Handle(request(t, actionUnlock, unlockParams{Password: fixturePassword}))
	assert.Equal(t, kdbxerr.ErrUnconfigured, err)
}

func TestHandleUnlockAddEntryAndGetEntriesRoundTrip(t *testing.T) {
	newFixtureDatabase(t)
	_, response, err := Handle(request(t, actionUnlock, unlockParams{Password: fixturePassword}))
	assert.NoError(t, err)
	keyPair, ok := response.([]string)
	assert.True(t, ok)
	assert.Equal(t, 2, len(keyPair))

	_, addResponse, err := Handle(request(t, actionAddEntry, addEntryParams{
		Keys:     keyPair,
		Hostname: "example.com",
		Title:    "mail",
		Username: "alice",
		Password: "hunter2",
	}))
	assert.NoError(t, err)
	uuid, ok := addResponse.(string)
	assert.True(t, ok)
	assert.True(t, len(uuid) > 0)

	_, siteResponse, err := Handle(request(t, actionGetEntries, getEntriesParams{
		Keys:     keyPair,
		Hostname: "example.com",
	}))
	assert.NoError(t, err)
	site, ok := siteResponse.(SiteEntriesResponse)
	assert.True(t, ok)
	assert.Equal(t, "example.com", site.Hostname)
	assert.Equal(t, 1, len(site.Entries))
	assert.Equal(t, "alice", site.Entries[0].Username)
	assert.Equal(t, "hunter2", site.Entries[0].Password)
}

func TestHandleAddEntryDuplicateTitleIsRejected(t *testing.T) {
	newFixtureDatabase(t)
	_, response, err := Handle(request(t, actionUnlock, unlockParams{Password: fixturePassword}))
	assert.NoError(t, err)
	keyPair := response.([]string)

	params := addEntryParams{Keys: keyPair, Hostname: "example.com", Title: "mail", Username: "a", Password: "pw"}
	_, _, err = Handle(request(t, actionAddEntry, params))
	assert.NoError(t, err)

	_, _, err = Handle(request(t, actionAddEntry, params))
	assert.Equal(t, kdbxerr.ErrEntryExists, err)
}

func TestHandleAddAliasThenGetEntriesResolvesHostname(t *testing.T) {
	newFixtureDatabase(t)
	_, response, err := Handle(request(t, actionUnlock, unlockParams{Password: fixturePassword}))
	assert.NoError(t, err)
	keyPair := response.([]string)

	_, _, err = Handle(request(t, actionAddEntry, addEntryParams{
		Keys: keyPair, Hostname: "example.com", Title: "mail", Username: "a", Password: "pw",
	}))
	assert.NoError(t, err)

	_, _, err = Handle(request(t, actionAddAlias, addAliasParams{
		Keys: keyPair, Alias: "alias.example.com", Hostname: "example.com",
	}))
	assert.NoError(t, err)

	_, siteResponse, err := Handle(request(t, actionGetEntries, getEntriesParams{
		Keys: keyPair, Hostname: "alias.example.com",
	}))
	assert.NoError(t, err)
	site := siteResponse.(SiteEntriesResponse)
	assert.Equal(t, "example.com", site.Hostname)
	assert.Equal(t, 1, len(site.Entries))
}

func TestHandleDeriveKeyIsDeterministic(t *testing.T) {
	db, err := kdbxdb.Empty()
	assert.NoError(t, err)
	encoded, err := db.DuplicateKdfParameters()
	assert.NoError(t, err)

	_, first, err := Handle(request(t, actionDeriveKey, deriveKeyParams{Password: "hunter2", KdfParameters: encoded}))
	assert.NoError(t, err)
	_, second, err := Handle(request(t, actionDeriveKey, deriveKeyParams{Password: "hunter2", KdfParameters: encoded}))
	assert.NoError(t, err)
	assert.Equal(t, first.(DeriveKeyResponse).Key, second.(DeriveKeyResponse).Key)
}
