package daemon

import "encoding/json"

// wireAction is the envelope every incoming message decodes into first:
// requestId plus a kebab-case action name that selects which shape request
// decodes to next. This replaces the original's custom map-visitor
// Deserialize (which re-dispatches {requestId, action, request} into a
// Rust #[serde(rename_all = "kebab-case")] enum) with the idiomatic Go
// equivalent: decode the tag, then decode the matching params type out of
// the raw request bytes.
type wireAction struct {
	RequestID string          `json:"requestId"`
	Action    string          `json:"action"`
	Request   json.RawMessage `json:"request"`
}

// Action names, matching the original's kebab-case Request variants
// exactly (the wire protocol browser extensions already speak).
const (
	actionGetProtocol           = "get-protocol"
	actionUnlock                = "unlock"
	actionGetEntries            = "get-entries"
	actionGetAllEntries         = "get-all-entries"
	actionGetSites              = "get-sites"
	actionAddEntry              = "add-entry"
	actionUpdateEntry           = "update-entry"
	actionDuplicateEntry        = "duplicate-entry"
	actionRemoveEntry           = "remove-entry"
	actionDuplicateKdfParams    = "duplicate-kdf-parameters"
	actionDeriveKey             = "derive-key"
	actionAddAlias              = "add-alias"
	actionRemoveAlias           = "remove-alias"
	actionSetAliases            = "set-aliases"
	actionImport                = "import"
)

type unlockParams struct {
	Password string `json:"password"`
}

type getEntriesParams struct {
	Keys     []string `json:"keys"`
	Hostname string   `json:"hostname"`
}

type getAllEntriesParams struct {
	Keys []string `json:"keys"`
}

type getSitesParams struct {
	Keys []string `json:"keys"`
}

type addEntryParams struct {
	Keys            []string `json:"keys"`
	Hostname        string   `json:"hostname"`
	Title           string   `json:"title"`
	Username        string   `json:"username"`
	Password        string   `json:"password"`
	Notes           *string  `json:"notes"`
	Tags            []string `json:"tags"`
}

type updateEntryParams struct {
	Keys     []string `json:"keys"`
	UUID     string   `json:"uuid"`
	Hostname *string  `json:"hostname"`
	Title    *string  `json:"title"`
	Username *string  `json:"username"`
	Password *string  `json:"password"`
	Notes    *string  `json:"notes"`
	Tags     []string `json:"tags"`
}

type duplicateEntryParams struct {
	Keys []string `json:"keys"`
	UUID string   `json:"uuid"`
}

type removeEntryParams struct {
	Keys []string `json:"keys"`
	UUID string   `json:"uuid"`
}

type deriveKeyParams struct {
	Password      string `json:"password"`
	KdfParameters string `json:"kdfParameters"`
}

type addAliasParams struct {
	Keys     []string `json:"keys"`
	Alias    string   `json:"alias"`
	Hostname string   `json:"hostname"`
}

type removeAliasParams struct {
	Keys  []string `json:"keys"`
	Alias string   `json:"alias"`
}

type setAliasesParams struct {
	Keys    []string          `json:"keys"`
	Aliases map[string]string `json:"aliases"`
}

type importEntryParams struct {
	Hostname string  `json:"hostname"`
	Title    string  `json:"title"`
	Username string  `json:"username"`
	Password string  `json:"password"`
	Notes    *string `json:"notes"`
}

type importParams struct {
	Keys    []string            `json:"keys"`
	Aliases map[string]string   `json:"aliases"`
	Entries []importEntryParams `json:"entries"`
}
