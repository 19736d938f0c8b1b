package daemon

import (
	"encoding/base64"
	"encoding/json"
	"os"
	"strconv"
	"strings"

	"github.com/spectralops/kdbx-native-host/internal/hostconfig"
	"github.com/spectralops/kdbx-native-host/internal/kdbx"
	"github.com/spectralops/kdbx-native-host/internal/kdbxdb"
	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

const (
	compatibleProtocol = "1.0"
	currentProtocol    = "1.1"
)

// Handle decodes one framed message's body and runs its action, returning
// the response payload to wrap in an ActionResponse, or a kdbxerr.Error on
// failure. requestID is always returned so the caller can build an error
// response even when message itself failed to parse.
func Handle(message []byte) (requestID string, response interface{}, err error) {
	var action wireAction
	if jsonErr := json.Unmarshal(message, &action); jsonErr != nil {
		return "", nil, kdbxerr.ErrInvalidMessage
	}
	response, err = dispatch(action.Action, action.Request)
	return action.RequestID, response, err
}

func dispatch(action string, raw json.RawMessage) (interface{}, error) {
	switch action {
	case actionGetProtocol:
		return handleGetProtocol(raw)
	case actionUnlock:
		return handleUnlock(raw)
	case actionGetEntries:
		return handleGetEntries(raw)
	case actionGetAllEntries:
		return handleGetAllEntries(raw)
	case actionGetSites:
		return handleGetSites(raw)
	case actionAddEntry:
		return handleAddEntry(raw)
	case actionUpdateEntry:
		return handleUpdateEntry(raw)
	case actionDuplicateEntry:
		return handleDuplicateEntry(raw)
	case actionRemoveEntry:
		return handleRemoveEntry(raw)
	case actionDuplicateKdfParams:
		return handleDuplicateKdfParameters()
	case actionDeriveKey:
		return handleDeriveKey(raw)
	case actionAddAlias:
		return handleAddAlias(raw)
	case actionRemoveAlias:
		return handleRemoveAlias(raw)
	case actionSetAliases:
		return handleSetAliases(raw)
	case actionImport:
		return handleImport(raw)
	default:
		return nil, kdbxerr.ErrInvalidMessage
	}
}

func unmarshalParams(raw json.RawMessage, v interface{}) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return kdbxerr.ErrInvalidMessage
	}
	return nil
}

// compareVersions mirrors the original's dotted-component comparison: each
// "."-separated component is compared numerically, missing components on
// the shorter side count as zero. The sign of the result (like strcmp)
// tells the caller which version is newer; ok is false if either version
// has a non-numeric component.
func compareVersions(v1, v2 string) (result int, ok bool) {
	parts1 := strings.Split(v1, ".")
	parts2 := strings.Split(v2, ".")
	n := len(parts1)
	if len(parts2) > n {
		n = len(parts2)
	}
	for i := 0; i < n; i++ {
		var a, b int
		var err error
		if i < len(parts1) {
			if a, err = strconv.Atoi(parts1[i]); err != nil {
				return 0, false
			}
		}
		if i < len(parts2) {
			if b, err = strconv.Atoi(parts2[i]); err != nil {
				return 0, false
			}
		}
		if a != b {
			return a - b, true
		}
	}
	return 0, true
}

func handleGetProtocol(raw json.RawMessage) (interface{}, error) {
	remoteVersion := compatibleProtocol
	if len(raw) > 0 && string(raw) != "null" {
		if err := unmarshalParams(raw, &remoteVersion); err != nil {
			return nil, err
		}
	}
	lower, lowOK := compareVersions(remoteVersion, compatibleProtocol)
	upper, upOK := compareVersions(currentProtocol, remoteVersion)
	if lowOK && upOK && lower >= 0 && upper >= 0 {
		return remoteVersion, nil
	}
	return currentProtocol, nil
}

func openConfiguredDatabase() (*os.File, error) {
	path := hostconfig.GetDatabasePath()
	if path == "" {
		return nil, kdbxerr.ErrUnconfigured
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, kdbxerr.Wrap(kdbxerr.CodeIO, err)
	}
	return f, nil
}

func keysFromStrings(keys []string) (*kdbx.Keys, error) {
	if len(keys) != 2 {
		return nil, kdbxerr.ErrInvalidMessage
	}
	return kdbx.KeysFromString(keys[0], keys[1])
}

// openUnlocked opens the configured database and decrypts it with
// previously-derived keys, returning the decoded database alongside those
// keys so the caller can pass them straight to saveDatabase afterward.
func openUnlocked(keyStrings []string) (*kdbxdb.Database, *kdbx.Keys, error) {
	keys, err := keysFromStrings(keyStrings)
	if err != nil {
		return nil, nil, err
	}
	f, err := openConfiguredDatabase()
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()

	envelope, err := kdbxdb.Deserialize(f)
	if err != nil {
		return nil, nil, err
	}
	db, err := kdbxdb.Decrypt(envelope, f, keys)
	if err != nil {
		return nil, nil, err
	}
	return db, keys, nil
}

func saveDatabase(db *kdbxdb.Database, keys *kdbx.Keys) error {
	path := hostconfig.GetDatabasePath()
	if path == "" {
		return kdbxerr.ErrUnconfigured
	}
	f, err := os.Create(path)
	if err != nil {
		return kdbxerr.Wrap(kdbxerr.CodeIO, err)
	}
	defer f.Close()
	return db.Save(f, keys)
}

func handleUnlock(raw json.RawMessage) (interface{}, error) {
	var params unlockParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	f, err := openConfiguredDatabase()
	if err != nil {
		return nil, err
	}
	defer f.Close()

	envelope, err := kdbxdb.Deserialize(f)
	if err != nil {
		return nil, err
	}
	_, keys, err := kdbxdb.Unlock(envelope, f, params.Password)
	if err != nil {
		return nil, err
	}
	encryption, hmacBase := keys.ToString()
	return []string{encryption, hmacBase}, nil
}

func entryToView(e *kdbxdb.Entry) EntryView {
	view := EntryView{
		UUID:     e.UUID.String(),
		Title:    e.Title(),
		Hostname: e.Hostname(),
		Username: e.Username(),
		Password: e.Password(),
	}
	if notes := e.Notes(); notes != "" {
		view.Notes = &notes
	}
	if tags := e.TagList(); len(tags) > 0 {
		view.Tags = tags
	}
	return view
}

func handleGetEntries(raw json.RawMessage) (interface{}, error) {
	var params getEntriesParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, _, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	hostname := db.ResolveHostname(params.Hostname)
	entries, err := db.GetEntries()
	if err != nil {
		return nil, err
	}
	var views []EntryView
	for _, e := range entries {
		if strings.EqualFold(e.Hostname(), hostname) {
			views = append(views, entryToView(e))
		}
	}
	return SiteEntriesResponse{Hostname: hostname, Entries: views}, nil
}

func handleGetAllEntries(raw json.RawMessage) (interface{}, error) {
	var params getAllEntriesParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, _, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	entries, err := db.GetEntries()
	if err != nil {
		return nil, err
	}
	views := make([]EntryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryToView(e))
	}
	return AllEntriesResponse{Aliases: db.GetAliases(), Entries: views}, nil
}

func handleGetSites(raw json.RawMessage) (interface{}, error) {
	var params getSitesParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, _, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	entries, err := db.GetEntries()
	if err != nil {
		return nil, err
	}
	seen := map[string]bool{}
	var sites []string
	for _, e := range entries {
		h := e.Hostname()
		if !seen[h] {
			seen[h] = true
			sites = append(sites, h)
		}
	}
	return sites, nil
}

func handleAddEntry(raw json.RawMessage) (interface{}, error) {
	var params addEntryParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	conflict, err := db.HasConflictingTitle(params.Hostname, params.Title, "")
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, kdbxerr.ErrEntryExists
	}

	pf := db.GetProtectedFields()
	entry, err := kdbxdb.NewEntry(params.Title, params.Username, params.Password, pf)
	if err != nil {
		return nil, err
	}
	entry.SetHostname(params.Hostname, pf)
	if params.Notes != nil {
		entry.SetNotes(*params.Notes, pf)
	}
	if params.Tags != nil {
		entry.SetTagList(params.Tags)
	}

	uuid, err := db.AddEntry(entry)
	if err != nil {
		return nil, err
	}
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return uuid, nil
}

func handleUpdateEntry(raw json.RawMessage) (interface{}, error) {
	var params updateEntryParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	entry, err := db.GetEntry(params.UUID)
	if err != nil {
		return nil, err
	}

	pf := db.GetProtectedFields()
	if params.Hostname != nil {
		entry.SetHostname(*params.Hostname, pf)
	}
	if params.Title != nil {
		entry.SetTitle(*params.Title, pf)
	}
	if params.Username != nil {
		entry.SetUsername(*params.Username, pf)
	}
	if params.Password != nil {
		entry.SetPassword(*params.Password, pf)
	}
	if params.Notes != nil {
		entry.SetNotes(*params.Notes, pf)
	}
	if params.Tags != nil {
		entry.SetTagList(params.Tags)
	}

	conflict, err := db.HasConflictingTitle(entry.Hostname(), entry.Title(), entry.UUID.String())
	if err != nil {
		return nil, err
	}
	if conflict {
		return nil, kdbxerr.ErrEntryExists
	}

	if err := db.ReplaceEntry(entry); err != nil {
		return nil, err
	}
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleDuplicateEntry(raw json.RawMessage) (interface{}, error) {
	var params duplicateEntryParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	original, err := db.GetEntry(params.UUID)
	if err != nil {
		return nil, err
	}
	// Work on a copy so the original entry keeps its UUID and title.
	copied := *original
	copied.Values = append([]kdbxdb.StringField(nil), original.Values...)
	entry := &copied

	hostname := entry.Hostname()
	existingEntries, err := db.GetEntries()
	if err != nil {
		return nil, err
	}
	existingTitles := map[string]bool{}
	for _, e := range existingEntries {
		if e.Hostname() == hostname {
			existingTitles[e.Title()] = true
		}
	}

	newUUID, err := kdbxdb.NewUUID()
	if err != nil {
		return nil, err
	}
	entry.UUID = newUUID
	baseName, index := titleBase(entry.Title())
	index++
	var newTitle string
	for {
		newTitle = baseName + " #" + strconv.FormatUint(uint64(index), 10)
		if !existingTitles[newTitle] {
			break
		}
		index++
	}
	pf := db.GetProtectedFields()
	entry.SetTitle(newTitle, pf)

	uuid, err := db.AddEntry(entry)
	if err != nil {
		return nil, err
	}
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return uuid, nil
}

// titleBase splits a title ending in " #N" into its base name and N,
// matching the original's get_title_base exactly: a title with no such
// suffix (or a non-numeric one) is its own base with an implicit index
// of 1.
func titleBase(title string) (string, uint32) {
	idx := strings.LastIndex(title, " #")
	if idx < 0 {
		return title, 1
	}
	n, err := strconv.ParseUint(title[idx+2:], 10, 32)
	if err != nil {
		return title, 1
	}
	return title[:idx], uint32(n)
}

func handleRemoveEntry(raw json.RawMessage) (interface{}, error) {
	var params removeEntryParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	if err := db.RemoveEntry(params.UUID); err != nil {
		return nil, err
	}
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleDuplicateKdfParameters() (interface{}, error) {
	f, err := openConfiguredDatabase()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	envelope, err := kdbx.Deserialize(f)
	if err != nil {
		return nil, err
	}
	return envelope.DuplicateKdfParameters()
}

func handleDeriveKey(raw json.RawMessage) (interface{}, error) {
	var params deriveKeyParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	key, consumed, err := kdbx.DeriveKeyFromCompact(params.KdfParameters, params.Password)
	if err != nil {
		return nil, err
	}
	return DeriveKeyResponse{
		Key:           base64.StdEncoding.EncodeToString(key),
		BytesConsumed: uint32(consumed),
	}, nil
}

func handleAddAlias(raw json.RawMessage) (interface{}, error) {
	var params addAliasParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	db.AddAlias(params.Alias, params.Hostname)
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleRemoveAlias(raw json.RawMessage) (interface{}, error) {
	var params removeAliasParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	db.RemoveAlias(params.Alias)
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleSetAliases(raw json.RawMessage) (interface{}, error) {
	var params setAliasesParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}
	db.SetAliases(params.Aliases)
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return nil, nil
}

func handleImport(raw json.RawMessage) (interface{}, error) {
	var params importParams
	if err := unmarshalParams(raw, &params); err != nil {
		return nil, err
	}
	db, keys, err := openUnlocked(params.Keys)
	if err != nil {
		return nil, err
	}

	entries := make([]kdbxdb.ImportEntry, 0, len(params.Entries))
	for _, e := range params.Entries {
		notes := ""
		if e.Notes != nil {
			notes = *e.Notes
		}
		entries = append(entries, kdbxdb.ImportEntry{
			Hostname: e.Hostname,
			Title:    e.Title,
			Username: e.Username,
			Password: e.Password,
			Notes:    notes,
		})
	}
	if err := db.Import(entries, params.Aliases); err != nil {
		return nil, err
	}
	if err := saveDatabase(db, keys); err != nil {
		return nil, err
	}
	return nil, nil
}
