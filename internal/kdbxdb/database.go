package kdbxdb

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"

	"github.com/spectralops/kdbx-native-host/internal/kdbx"
	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// Database pairs the binary KDBX envelope (package kdbx) with the decoded
// KeePass XML document it carries: the entry/group tree, memory protection
// settings, and the alias table. It is the unit package daemon operates on
// for every request that touches a password entry.
type Database struct {
	envelope *kdbx.Database
	inner    *kdbx.InnerHeader
	file     *KeePassFile
}

const generatorName = "kdbx-native-host"

// Empty builds a brand new, empty database: a single Root group holding no
// entries, with password values protected by default and everything else
// stored in the clear, matching the original's own defaults.
func Empty() (*Database, error) {
	envelope, err := kdbx.New()
	if err != nil {
		return nil, err
	}
	inner := &kdbx.InnerHeader{}
	if err := inner.ResetCipher(kdbx.CryptoRand); err != nil {
		return nil, err
	}
	rootUUID, err := NewUUID()
	if err != nil {
		return nil, err
	}
	file := &KeePassFile{
		Meta: Meta{
			Generator:           generatorName,
			DatabaseName:        "Passwords",
			DatabaseDescription: "",
			MemoryProtection: MemoryProtection{
				ProtectTitle:    false,
				ProtectUserName: false,
				ProtectPassword: true,
				ProtectURL:      false,
				ProtectNotes:    false,
			},
		},
		Root: Root{
			Group: Group{
				UUID:            rootUUID,
				Name:            "Root",
				IsExpanded:      newNullableBool(true),
				EnableSearching: nullableBool{},
			},
		},
	}
	return &Database{envelope: envelope, inner: inner, file: file}, nil
}

// Deserialize reads a KDBX 4 file's outer envelope only; the caller must
// still call Unlock with the user's password (or keys recovered from a
// prior Unlock) before Decrypt can recover the XML document.
func Deserialize(r io.Reader) (*kdbx.Database, error) {
	return kdbx.Deserialize(r)
}

// Unlock verifies password against envelope's header HMAC and, on success,
// decrypts and parses the XML document it carries.
func Unlock(envelope *kdbx.Database, r io.Reader, password string) (*Database, *kdbx.Keys, error) {
	keys, err := envelope.Unlock(password)
	if err != nil {
		return nil, nil, err
	}
	db, err := decrypt(envelope, r, keys)
	if err != nil {
		return nil, nil, err
	}
	return db, keys, nil
}

// Decrypt is Unlock's counterpart for a caller that already holds keys
// recovered from a prior Unlock (the daemon's client sends them with every
// request so the user isn't prompted for their password each time).
func Decrypt(envelope *kdbx.Database, r io.Reader, keys *kdbx.Keys) (*Database, error) {
	return decrypt(envelope, r, keys)
}

func decrypt(envelope *kdbx.Database, r io.Reader, keys *kdbx.Keys) (*Database, error) {
	plaintext, err := envelope.Decrypt(r, keys)
	if err != nil {
		return nil, err
	}
	buf := bytes.NewReader(plaintext)
	inner, err := kdbx.DeserializeInnerHeader(buf)
	if err != nil {
		return nil, err
	}
	var file KeePassFile
	if err := xml.NewDecoder(buf).Decode(&file); err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeXMLParsing, err)
	}

	cipher, err := inner.NewProtectedCipher()
	if err != nil {
		return nil, err
	}
	if err := unprotectGroup(&file.Root.Group, cipher); err != nil {
		return nil, err
	}

	return &Database{envelope: envelope, inner: inner, file: &file}, nil
}

// Derive runs this database's key derivation function against password,
// yielding the keys Save (or a subsequent Unlock) needs. Exposed for
// whatever creates a database in the first place (the setup wizard this
// module doesn't implement, and this package's own tests); the unlock path
// itself always goes through package-level Unlock instead.
func (d *Database) Derive(password string) (*kdbx.Keys, error) {
	return kdbx.Derive(password, d.envelope.Header)
}

// Save masks every protected field with a freshly reset inner-header
// cipher, marshals the XML document, and writes the complete KDBX 4 file.
// The in-memory tree is left unprotected (usable) afterward, matching the
// original's protect-then-immediately-unprotect dance around the write.
func (d *Database) Save(w io.Writer, keys *kdbx.Keys) error {
	if err := d.inner.ResetCipher(kdbx.CryptoRand); err != nil {
		return err
	}
	cipher, err := d.inner.NewProtectedCipher()
	if err != nil {
		return err
	}
	protectGroup(&d.file.Root.Group, cipher)

	var payload bytes.Buffer
	if err := d.inner.Serialize(&payload); err != nil {
		d.unprotectAfterSave()
		return err
	}
	xmlBytes, err := xml.Marshal(d.file)
	if err != nil {
		d.unprotectAfterSave()
		return kdbxerr.Wrap(kdbxerr.CodeXMLSerialization, err)
	}
	payload.Write(xmlBytes)

	saveErr := d.envelope.Save(w, keys, payload.Bytes())
	d.unprotectAfterSave()
	return saveErr
}

// unprotectAfterSave restores the in-memory tree to its unprotected form
// once a Save attempt (successful or not) has consumed the protected
// encoding, so the Database remains usable for further operations either
// way. It builds a fresh cipher from the same, now-fixed, inner-header key
// rather than reusing protectGroup's already-advanced keystream instance.
func (d *Database) unprotectAfterSave() {
	cipher, err := d.inner.NewProtectedCipher()
	if err != nil {
		return
	}
	_ = unprotectGroup(&d.file.Root.Group, cipher)
}

func (d *Database) getRootGroup() (*Group, error) {
	group := &d.file.Root.Group
	if !group.searchable() {
		return nil, kdbxerr.ErrMissingRootGroup
	}
	return group, nil
}

// GetProtectedFields reports which standard field names this database's
// Meta/MemoryProtection settings mark for masking.
func (d *Database) GetProtectedFields() protectedFields {
	return d.file.Meta.MemoryProtection.protectedFields()
}

// GetEntries returns every entry reachable from the root group, recursing
// into child groups but skipping (along with their descendants) any group
// whose EnableSearching is explicitly false.
func (d *Database) GetEntries() ([]*Entry, error) {
	root, err := d.getRootGroup()
	if err != nil {
		return nil, err
	}
	var entries []*Entry
	collectEntries(root, &entries)
	return entries, nil
}

func collectEntries(g *Group, out *[]*Entry) {
	for i := range g.Entries {
		*out = append(*out, &g.Entries[i])
	}
	for i := range g.Groups {
		if g.Groups[i].searchable() {
			collectEntries(&g.Groups[i], out)
		}
	}
}

// GetEntry looks up a single entry by its UUID's base64 text form.
func (d *Database) GetEntry(uuid string) (*Entry, error) {
	entries, err := d.GetEntries()
	if err != nil {
		return nil, err
	}
	for _, e := range entries {
		if e.UUID.String() == uuid {
			return e, nil
		}
	}
	return nil, kdbxerr.ErrNoSuchEntry
}

// AddEntry appends entry as a new child of the root group and returns its
// UUID.
func (d *Database) AddEntry(entry *Entry) (string, error) {
	root, err := d.getRootGroup()
	if err != nil {
		return "", err
	}
	root.Entries = append(root.Entries, *entry)
	return entry.UUID.String(), nil
}

// RemoveEntry deletes the entry with the given UUID from wherever in the
// tree it lives.
func (d *Database) RemoveEntry(uuid string) error {
	root, err := d.getRootGroup()
	if err != nil {
		return err
	}
	if !removeEntryFrom(root, uuid) {
		return kdbxerr.ErrNoSuchEntry
	}
	return nil
}

func removeEntryFrom(g *Group, uuid string) bool {
	for i := range g.Entries {
		if g.Entries[i].UUID.String() == uuid {
			g.Entries = append(g.Entries[:i], g.Entries[i+1:]...)
			return true
		}
	}
	for i := range g.Groups {
		if removeEntryFrom(&g.Groups[i], uuid) {
			return true
		}
	}
	return false
}

// ReplaceEntry overwrites the stored entry sharing updated's UUID with
// updated in place, preserving its position in the tree.
func (d *Database) ReplaceEntry(updated *Entry) error {
	root, err := d.getRootGroup()
	if err != nil {
		return err
	}
	if !replaceEntryIn(root, updated) {
		return kdbxerr.ErrNoSuchEntry
	}
	return nil
}

func replaceEntryIn(g *Group, updated *Entry) bool {
	for i := range g.Entries {
		if g.Entries[i].UUID.String() == updated.UUID.String() {
			g.Entries[i] = *updated
			return true
		}
	}
	for i := range g.Groups {
		if replaceEntryIn(&g.Groups[i], updated) {
			return true
		}
	}
	return false
}

// HasConflictingTitle reports whether another entry at the same hostname
// (case-insensitively) already has this title, excluding the entry named
// by excludeUUID (used when updating an entry against its own prior
// title).
func (d *Database) HasConflictingTitle(hostname, title, excludeUUID string) (bool, error) {
	entries, err := d.GetEntries()
	if err != nil {
		return false, err
	}
	for _, e := range entries {
		if excludeUUID != "" && e.UUID.String() == excludeUUID {
			continue
		}
		if strings.EqualFold(e.Hostname(), hostname) && strings.EqualFold(e.Title(), title) {
			return true, nil
		}
	}
	return false, nil
}

// GetAliases returns the alias-to-hostname table stored in this database's
// custom data.
func (d *Database) GetAliases() map[string]string {
	return d.file.Meta.getAliases()
}

// SetAliases replaces the entire alias table.
func (d *Database) SetAliases(aliases map[string]string) {
	d.file.Meta.setAliases(aliases)
}

// AddAlias records alias -> hostname, resolving through any existing chain
// first (see Meta.addAlias for the cycle-avoidance rule).
func (d *Database) AddAlias(alias, hostname string) {
	d.file.Meta.addAlias(alias, hostname)
}

// RemoveAlias deletes a single alias, if present.
func (d *Database) RemoveAlias(alias string) {
	d.file.Meta.removeAlias(alias)
}

// ResolveHostname returns what hostname ultimately resolves to through the
// alias table.
func (d *Database) ResolveHostname(hostname string) string {
	return resolveHostname(d.GetAliases(), hostname)
}

// ImportEntry is one record of a batch Import call: a hostname (bare, no
// scheme), not yet normalized into a URL.
type ImportEntry struct {
	Hostname string
	Title    string
	Username string
	Password string
	Notes    string
}

// Import adds a batch of entries and merges a batch of aliases into this
// database in one pass, used by the daemon's bulk-import action. Unlike
// AddEntry it performs no title-collision check, matching an import's
// bulk, best-effort nature.
func (d *Database) Import(entries []ImportEntry, aliases map[string]string) error {
	root, err := d.getRootGroup()
	if err != nil {
		return err
	}
	pf := d.GetProtectedFields()
	for _, imp := range entries {
		entry, err := NewEntry(imp.Title, imp.Username, imp.Password, pf)
		if err != nil {
			return err
		}
		entry.SetHostname(imp.Hostname, pf)
		entry.SetNotes(imp.Notes, pf)
		root.Entries = append(root.Entries, *entry)
	}
	if len(aliases) > 0 {
		merged := d.GetAliases()
		for alias, hostname := range aliases {
			merged[alias] = hostname
		}
		d.SetAliases(merged)
	}
	return nil
}

// DuplicateKdfParameters is a pass-through to the underlying envelope's KDF
// parameter duplication. The daemon's duplicate-kdf-parameters action does
// not go through it; it calls the envelope's method directly, without
// decrypting the XML document.
func (d *Database) DuplicateKdfParameters() (string, error) {
	return d.envelope.DuplicateKdfParameters()
}
