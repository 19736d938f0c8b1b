package daemon

// EntryView is the wire shape of one password entry: a deliberately
// narrower view than kdbxdb.Entry, matching the original's own
// serialize_hostname-derived Entry DTO rather than the raw XML model.
type EntryView struct {
	UUID     string   `json:"uuid"`
	Title    string   `json:"title"`
	Hostname string   `json:"hostname"`
	Username string   `json:"username"`
	Password string   `json:"password"`
	Notes    *string  `json:"notes,omitempty"`
	Tags     []string `json:"tags,omitempty"`
}

// ActionResponse is the envelope every request gets back, win or lose.
// Response holds whichever concrete payload the action produced; encoding/json
// marshals it to whatever shape that value naturally has (an object, an
// array, a bare string, or null), mirroring the original's #[serde(untagged)]
// Response enum without needing a matching Go enum of its own.
type ActionResponse struct {
	RequestID string      `json:"requestId"`
	Success   bool        `json:"success"`
	Response  interface{} `json:"response"`
}

// ErrorResponse is the Response payload on failure.
type ErrorResponse struct {
	Error     string `json:"error"`
	ErrorCode string `json:"errorCode"`
}

// SiteEntriesResponse answers get-entries: hostname is the alias-resolved
// hostname actually matched against, which may differ from the hostname
// the caller asked about.
type SiteEntriesResponse struct {
	Hostname string      `json:"hostname"`
	Entries  []EntryView `json:"entries"`
}

// AllEntriesResponse answers get-all-entries.
type AllEntriesResponse struct {
	Aliases map[string]string `json:"aliases"`
	Entries []EntryView       `json:"entries"`
}

// DeriveKeyResponse answers derive-key.
type DeriveKeyResponse struct {
	Key           string `json:"key"`
	BytesConsumed uint32 `json:"bytesConsumed"`
}
