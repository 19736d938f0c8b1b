package kdbxdb

import (
	"encoding/base64"

	"github.com/spectralops/kdbx-native-host/internal/kdbx"
	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// unprotectGroup walks a group and its descendants depth-first, replacing
// every protected field's base64-encoded ciphertext with its plaintext.
// cipher is a single stream instance shared across the whole walk: the
// protected-value keystream continues from one field to the next in
// document order, it does not restart per field. Mirrors gokeepasslib's
// crypto.go UnlockProtectedGroup/UnlockProtectedEntries.
func unprotectGroup(g *Group, cipher kdbx.ProtectedCipher) error {
	if err := unprotectEntries(g.Entries, cipher); err != nil {
		return err
	}
	for i := range g.Groups {
		if err := unprotectGroup(&g.Groups[i], cipher); err != nil {
			return err
		}
	}
	return nil
}

func unprotectEntries(entries []Entry, cipher kdbx.ProtectedCipher) error {
	for i := range entries {
		values := entries[i].Values
		for j := range values {
			v := &values[j].Value
			if !bool(v.Protected) {
				continue
			}
			ciphertext, err := base64.StdEncoding.DecodeString(v.Content)
			if err != nil {
				return kdbxerr.Wrap(kdbxerr.CodeXMLParsing, err)
			}
			plaintext := make([]byte, len(ciphertext))
			cipher.XORKeyStream(plaintext, ciphertext)
			v.Content = string(plaintext)
		}
	}
	return nil
}

// protectGroup is unprotectGroup's inverse, run just before an entry tree
// is marshaled to XML and saved: every field still marked Protected is
// masked with a fresh keystream and base64 encoded. cipher must be newly
// built from a freshly reset InnerHeader (see Database.Save) so a saved
// file never reuses the keystream bytes a previous save already spent.
func protectGroup(g *Group, cipher kdbx.ProtectedCipher) {
	protectEntries(g.Entries, cipher)
	for i := range g.Groups {
		protectGroup(&g.Groups[i], cipher)
	}
}

func protectEntries(entries []Entry, cipher kdbx.ProtectedCipher) {
	for i := range entries {
		values := entries[i].Values
		for j := range values {
			v := &values[j].Value
			if !bool(v.Protected) {
				continue
			}
			ciphertext := make([]byte, len(v.Content))
			cipher.XORKeyStream(ciphertext, []byte(v.Content))
			v.Content = base64.StdEncoding.EncodeToString(ciphertext)
		}
	}
}
