package kdbxdb

import (
	"bytes"
	"testing"

	"github.com/alecthomas/assert"
)

func TestDatabaseSaveUnlockRoundTrip(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)

	keys, err := db.Derive("correct horse battery staple")
	assert.NoError(t, err)

	pf := db.GetProtectedFields()
	entry, err := NewEntry("example", "alice", "hunter2", pf)
	assert.NoError(t, err)
	entry.SetHostname("example.com", pf)
	_, err = db.AddEntry(entry)
	assert.NoError(t, err)

	var buf bytes.Buffer
	assert.NoError(t, db.Save(&buf, keys))

	r := bytes.NewReader(buf.Bytes())
	envelope, err := Deserialize(r)
	assert.NoError(t, err)

	unlocked, _, err := Unlock(envelope, r, "correct horse battery staple")
	assert.NoError(t, err)

	entries, err := unlocked.GetEntries()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries))
	assert.Equal(t, "example", entries[0].Title())
	assert.Equal(t, "alice", entries[0].Username())
	assert.Equal(t, "hunter2", entries[0].Password())
	assert.Equal(t, "example.com", entries[0].Hostname())
}

func TestDatabaseAddEntryThenRemoveEntry(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)
	pf := db.GetProtectedFields()
	entry, err := NewEntry("site", "bob", "pw", pf)
	assert.NoError(t, err)
	uuid, err := db.AddEntry(entry)
	assert.NoError(t, err)

	_, err = db.GetEntry(uuid)
	assert.NoError(t, err)

	assert.NoError(t, db.RemoveEntry(uuid))
	_, err = db.GetEntry(uuid)
	assert.Error(t, err)
}

func TestDatabaseRemoveEntryNoSuchEntry(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)
	uuid, err := NewUUID()
	assert.NoError(t, err)
	err = db.RemoveEntry(uuid.String())
	assert.Error(t, err)
}

func TestDatabaseHasConflictingTitle(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)
	pf := db.GetProtectedFields()

	e1, err := NewEntry("mail", "a", "pw", pf)
	assert.NoError(t, err)
	e1.SetHostname("example.com", pf)
	uuid1, err := db.AddEntry(e1)
	assert.NoError(t, err)

	conflict, err := db.HasConflictingTitle("example.com", "mail", "")
	assert.NoError(t, err)
	assert.True(t, conflict)

	noConflict, err := db.HasConflictingTitle("example.com", "mail", uuid1)
	assert.NoError(t, err)
	assert.False(t, noConflict)
}

func TestDatabaseImportAddsEntriesAndAliases(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)

	err = db.Import([]ImportEntry{
		{Hostname: "example.com", Title: "site", Username: "carol", Password: "pw"},
	}, map[string]string{"alias.com": "example.com"})
	assert.NoError(t, err)

	entries, err := db.GetEntries()
	assert.NoError(t, err)
	assert.Equal(t, 1, len(entries))
	assert.Equal(t, "example.com", entries[0].Hostname())
	assert.Equal(t, "example.com", db.ResolveHostname("alias.com"))
}

func TestDatabaseAliasOperations(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)

	db.AddAlias("alias.com", "real.com")
	assert.Equal(t, "real.com", db.ResolveHostname("alias.com"))

	db.RemoveAlias("alias.com")
	assert.Equal(t, "alias.com", db.ResolveHostname("alias.com"))
}

func TestDatabaseDuplicateKdfParameters(t *testing.T) {
	db, err := Empty()
	assert.NoError(t, err)
	encoded, err := db.DuplicateKdfParameters()
	assert.NoError(t, err)
	assert.True(t, len(encoded) > 0)
}
