package kdbxdb

import "encoding/xml"

// KeePassFile mirrors the root element of the decrypted KDBX 4 XML
// document, the payload carried inside the binary envelope package kdbx
// decrypts and decompresses.
type KeePassFile struct {
	XMLName xml.Name `xml:"KeePassFile"`
	Meta    Meta      `xml:"Meta"`
	Root    Root      `xml:"Root"`
}

// MemoryProtection declares which standard entry fields are masked with
// the inner header's stream cipher before being written to disk.
type MemoryProtection struct {
	ProtectTitle    boolValue `xml:"ProtectTitle"`
	ProtectUserName boolValue `xml:"ProtectUserName"`
	ProtectPassword boolValue `xml:"ProtectPassword"`
	ProtectURL      boolValue `xml:"ProtectURL"`
	ProtectNotes    boolValue `xml:"ProtectNotes"`
}

// CustomDataItem is one key/value pair of a Meta or Group's CustomData
// block; this module uses exactly one, the alias table keyed aliasCustomDataKey.
type CustomDataItem struct {
	XMLName xml.Name `xml:"Item"`
	Key     string   `xml:"Key"`
	Value   string   `xml:"Value"`
}

// Meta carries database-wide settings: its name, which fields are
// protected, and any custom data (the alias table lives here).
type Meta struct {
	Generator           string           `xml:"Generator"`
	DatabaseName         string           `xml:"DatabaseName"`
	DatabaseDescription  string           `xml:"DatabaseDescription"`
	MemoryProtection     MemoryProtection `xml:"MemoryProtection"`
	CustomData           []CustomDataItem `xml:"CustomData>Item"`
}

// Root holds the single top-level group every KeePass database has.
type Root struct {
	Group Group `xml:"Group"`
}

// Group is a node of the entry tree. EnableSearching, when present and
// false, excludes a group (and everything under it) from lookups; absent
// or true means searchable, matching KeePass's own default.
type Group struct {
	UUID            UUID         `xml:"UUID"`
	Name            string       `xml:"Name"`
	IsExpanded      nullableBool `xml:"IsExpanded"`
	EnableSearching nullableBool `xml:"EnableSearching"`
	Entries         []Entry      `xml:"Entry,omitempty"`
	Groups          []Group      `xml:"Group,omitempty"`
}

// searchable reports whether this group (not its descendants) should be
// considered when looking up entries: absent or "null" EnableSearching
// defaults to true, matching KeePass. Any other text that parseBoolValue
// does not read as true counts as false.
func (g *Group) searchable() bool {
	return !g.EnableSearching.Valid || g.EnableSearching.Bool
}

// StringField is one <String> child of an entry: a named value, optionally
// masked under the protected-stream cipher.
type StringField struct {
	Key   string `xml:"Key"`
	Value Value  `xml:"Value"`
}

// Value is a String field's payload; Protected is checked case-insensitively
// against "true" by the protect/unprotect pass, matching the original's
// tolerance for KeePass variants that write "True" vs. lowercase "true".
type Value struct {
	Content   string    `xml:",chardata"`
	Protected boolValue `xml:"Protected,attr,omitempty"`
}

// Entry is one password record. Tags is a pointer so a never-set Tags
// element round-trips as absent rather than an empty string, matching the
// original's Option<String>.
type Entry struct {
	UUID   UUID          `xml:"UUID"`
	Values []StringField `xml:"String,omitempty"`
	Tags   *string       `xml:"Tags"`
}

const (
	fieldURL      = "URL"
	fieldTitle    = "Title"
	fieldUserName = "UserName"
	fieldPassword = "Password"
	fieldNotes    = "Notes"
)

// standardFields lists every String key update/import/new entry creation
// touches, in the order they're written for a freshly created entry.
var standardFields = []string{fieldURL, fieldTitle, fieldUserName, fieldPassword, fieldNotes}
