package kdbxdb

import (
	"encoding/base64"
	"testing"

	"github.com/alecthomas/assert"
	"github.com/spectralops/kdbx-native-host/internal/kdbx"
)

type fixedCipher struct{ offset int }

func (c *fixedCipher) XORKeyStream(dst, src []byte) {
	for i := range src {
		dst[i] = src[i] ^ byte(c.offset+i)
	}
	c.offset += len(src)
}

func TestProtectUnprotectGroupRoundTrip(t *testing.T) {
	entryUUID, err := NewUUID()
	assert.NoError(t, err)
	childUUID, err := NewUUID()
	assert.NoError(t, err)

	entry := Entry{
		UUID: entryUUID,
		Values: []StringField{
			{Key: fieldTitle, Value: Value{Content: "site", Protected: false}},
			{Key: fieldPassword, Value: Value{Content: "hunter2", Protected: true}},
		},
	}
	group := Group{
		Name:    "Root",
		Entries: []Entry{entry},
		Groups: []Group{
			{Name: "Child", Entries: []Entry{
				{UUID: childUUID, Values: []StringField{
					{Key: fieldPassword, Value: Value{Content: "nested-secret", Protected: true}},
				}},
			}},
		},
	}

	var cipher kdbx.ProtectedCipher = &fixedCipher{}
	protectGroup(&group, cipher)

	assert.Equal(t, "site", group.Entries[0].Values[0].Value.Content)
	_, err = base64.StdEncoding.DecodeString(group.Entries[0].Values[1].Value.Content)
	assert.NoError(t, err)
	assert.NotEqual(t, "hunter2", group.Entries[0].Values[1].Value.Content)

	cipher = &fixedCipher{}
	assert.NoError(t, unprotectGroup(&group, cipher))

	assert.Equal(t, "hunter2", group.Entries[0].Values[1].Value.Content)
	assert.Equal(t, "nested-secret", group.Groups[0].Entries[0].Values[0].Value.Content)
}

func TestUnprotectGroupRejectsInvalidBase64(t *testing.T) {
	group := Group{
		Entries: []Entry{{
			Values: []StringField{
				{Key: fieldPassword, Value: Value{Content: "not valid base64!!", Protected: true}},
			},
		}},
	}
	cipher := &fixedCipher{}
	err := unprotectGroup(&group, cipher)
	assert.Error(t, err)
}
