package kdbxdb

import (
	"net/url"
	"strings"
)

// invalidHostnameSentinel is a placeholder hostname some KeePass-family
// tools write for an entry whose URL has never been set; as a bare host it
// normalizes to the empty string, the same as a genuinely absent URL.
const invalidHostnameSentinel = "invalid.pfp"

// normalizeHostname extracts a bare hostname from a stored URL field: the
// scheme, path and port are stripped, then any "www." prefix. The sentinel
// above only ever matches a host with no "www." prefix to strip -
// "www.invalid.pfp" normalizes to "invalid.pfp", not "", matching the
// original's order of operations. Anything that fails to parse as a URL
// becomes the empty string too, meaning "no hostname set" to every caller.
func normalizeHostname(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	host := parsed.Hostname()
	if host == "" {
		return ""
	}
	trimmed := strings.TrimPrefix(host, "www.")
	if trimmed == host && host == invalidHostnameSentinel {
		return ""
	}
	return trimmed
}

// protectedFields is the set of standard field names ("Title", "Password",
// ...) that Meta/MemoryProtection marks for masking under the inner
// header's stream cipher.
type protectedFields map[string]bool

func (mp MemoryProtection) protectedFields() protectedFields {
	pf := protectedFields{}
	if bool(mp.ProtectTitle) {
		pf[fieldTitle] = true
	}
	if bool(mp.ProtectUserName) {
		pf[fieldUserName] = true
	}
	if bool(mp.ProtectPassword) {
		pf[fieldPassword] = true
	}
	if bool(mp.ProtectURL) {
		pf[fieldURL] = true
	}
	if bool(mp.ProtectNotes) {
		pf[fieldNotes] = true
	}
	return pf
}

func (pf protectedFields) has(key string) bool { return pf[key] }

// GetField returns a String child's value by key, or "" if absent.
func (e *Entry) GetField(key string) string {
	for i := range e.Values {
		if e.Values[i].Key == key {
			return e.Values[i].Value.Content
		}
	}
	return ""
}

func (e *Entry) setField(key, value string, protected bool) {
	for i := range e.Values {
		if e.Values[i].Key == key {
			e.Values[i].Value = Value{Content: value, Protected: boolValue(protected)}
			return
		}
	}
	e.Values = append(e.Values, StringField{Key: key, Value: Value{Content: value, Protected: boolValue(protected)}})
}

func isStandardFieldName(key string) bool {
	for _, f := range standardFields {
		if f == key {
			return true
		}
	}
	return false
}

// updateFields applies the original's update_xml behavior exactly: every
// standard-field String child is dropped unconditionally first, then a
// fresh one is appended only for the keys present (and non-nil) in
// updates. Non-standard String children (e.g. from an import this module
// didn't originate) are left untouched. A pre-existing Tags element is
// never touched here; see SetTagList.
func (e *Entry) updateFields(updates map[string]*string, pf protectedFields) {
	kept := make([]StringField, 0, len(e.Values))
	for _, v := range e.Values {
		if !isStandardFieldName(v.Key) {
			kept = append(kept, v)
		}
	}
	e.Values = kept

	for _, key := range standardFields {
		if value, ok := updates[key]; ok && value != nil {
			e.setField(key, *value, pf.has(key))
		}
	}
}

// NewEntry creates a password record with an empty URL; call SetHostname
// afterward, matching the original's two-step construction.
func NewEntry(title, username, password string, pf protectedFields) (*Entry, error) {
	uuid, err := NewUUID()
	if err != nil {
		return nil, err
	}
	e := &Entry{UUID: uuid}
	empty := ""
	e.updateFields(map[string]*string{
		fieldURL:      &empty,
		fieldTitle:    &title,
		fieldUserName: &username,
		fieldPassword: &password,
	}, pf)
	return e, nil
}

// SetTitle, SetUsername and SetPassword let callers outside this package
// update one standard field at a time (the daemon's UpdateEntry action
// only ever touches the fields the caller actually supplied).
func (e *Entry) SetTitle(title string, pf protectedFields)       { e.setField(fieldTitle, title, pf.has(fieldTitle)) }
func (e *Entry) SetUsername(username string, pf protectedFields) { e.setField(fieldUserName, username, pf.has(fieldUserName)) }
func (e *Entry) SetPassword(password string, pf protectedFields) { e.setField(fieldPassword, password, pf.has(fieldPassword)) }

func (e *Entry) Title() string    { return e.GetField(fieldTitle) }
func (e *Entry) Username() string { return e.GetField(fieldUserName) }
func (e *Entry) Password() string { return e.GetField(fieldPassword) }
func (e *Entry) Notes() string    { return e.GetField(fieldNotes) }

// Hostname returns this entry's normalized hostname, derived from its URL.
func (e *Entry) Hostname() string {
	return normalizeHostname(e.GetField(fieldURL))
}

// SetHostname rewrites the URL field from a bare hostname, prepending
// "https://" (matching the original; this module never stores a scheme
// the user picked). An empty hostname clears the URL entirely.
func (e *Entry) SetHostname(hostname string, pf protectedFields) {
	value := ""
	if hostname != "" {
		value = "https://" + hostname
	}
	e.setField(fieldURL, value, pf.has(fieldURL))
}

// SetNotes sets or clears the Notes field, matching the original's
// Option<String> (an empty string normalizes to "not set").
func (e *Entry) SetNotes(notes string, pf protectedFields) {
	if notes == "" {
		e.removeField(fieldNotes)
		return
	}
	e.setField(fieldNotes, notes, pf.has(fieldNotes))
}

func (e *Entry) removeField(key string) {
	kept := e.Values[:0]
	for _, v := range e.Values {
		if v.Key != key {
			kept = append(kept, v)
		}
	}
	e.Values = kept
}

// TagList splits the comma-joined Tags element back into individual tags;
// a nil or empty Tags element yields an empty list.
func (e *Entry) TagList() []string {
	if e.Tags == nil || *e.Tags == "" {
		return nil
	}
	return strings.Split(*e.Tags, ",")
}

// SetTagList joins tags with commas into the Tags element. An empty list
// clears it. Matching the original's update_xml exactly, this never
// removes an already-present Tags element before conditionally replacing
// it with an identical one, so it is idempotent in practice even though it
// mutates the same pointer in place rather than appending a duplicate.
func (e *Entry) SetTagList(tags []string) {
	if len(tags) == 0 {
		e.Tags = nil
		return
	}
	joined := strings.Join(tags, ",")
	e.Tags = &joined
}
