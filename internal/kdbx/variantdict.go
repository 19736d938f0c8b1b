package kdbx

import (
	"io"

	"github.com/spectralops/kdbx-native-host/internal/kdbxerr"
)

// variantType tags the wire representation of a variantValue, matching
// KeePass's VariantDictionary byte values exactly.
type variantType uint8

const (
	variantEndOfList variantType = 0x00
	variantU32       variantType = 0x04
	variantU64       variantType = 0x05
	variantBool      variantType = 0x08
	variantI32       variantType = 0x0C
	variantI64       variantType = 0x0D
	variantString    variantType = 0x18
	variantBytes     variantType = 0x42
)

const variantListVersion uint16 = 0x0100

// variantValue holds one typed value out of U32/U64/Bool/I32/I64/String/
// Bytes, the type set KeePass's variant dictionary format supports.
type variantValue struct {
	kind  variantType
	u32   uint32
	u64   uint64
	b     bool
	i32   int32
	i64   int64
	str   string
	bytes []byte
}

func variantValueU32(v uint32) variantValue  { return variantValue{kind: variantU32, u32: v} }
func variantValueU64(v uint64) variantValue  { return variantValue{kind: variantU64, u64: v} }
func variantValueBool(v bool) variantValue   { return variantValue{kind: variantBool, b: v} }
func variantValueI32(v int32) variantValue   { return variantValue{kind: variantI32, i32: v} }
func variantValueI64(v int64) variantValue   { return variantValue{kind: variantI64, i64: v} }
func variantValueString(v string) variantValue {
	return variantValue{kind: variantString, str: v}
}
func variantValueBytes(v []byte) variantValue {
	return variantValue{kind: variantBytes, bytes: v}
}

func (v variantValue) len() int {
	switch v.kind {
	case variantU32:
		return 4
	case variantU64:
		return 8
	case variantBool:
		return 1
	case variantI32:
		return 4
	case variantI64:
		return 8
	case variantString:
		return len(v.str)
	case variantBytes:
		return len(v.bytes)
	default:
		return 0
	}
}

type variantField struct {
	key   string
	value variantValue
}

func (f variantField) len() int {
	if f.value.kind == variantEndOfList {
		return 1
	}
	return 1 + 4 + len(f.key) + 4 + f.value.len()
}

func (f variantField) serialize(w io.Writer) error {
	if f.value.kind == variantEndOfList {
		return writeByte(w, byte(variantEndOfList))
	}
	if err := writeByte(w, byte(f.value.kind)); err != nil {
		return err
	}
	if err := writeUint32(w, uint32(len(f.key))); err != nil {
		return err
	}
	if _, err := io.WriteString(w, f.key); err != nil {
		return kdbxerr.IO(err)
	}

	switch f.value.kind {
	case variantU32:
		if err := writeUint32(w, 4); err != nil {
			return err
		}
		return writeUint32(w, f.value.u32)
	case variantU64:
		if err := writeUint32(w, 8); err != nil {
			return err
		}
		return writeUint64(w, f.value.u64)
	case variantBool:
		if err := writeUint32(w, 1); err != nil {
			return err
		}
		b := byte(0)
		if f.value.b {
			b = 1
		}
		return writeByte(w, b)
	case variantI32:
		if err := writeUint32(w, 4); err != nil {
			return err
		}
		return writeInt32(w, f.value.i32)
	case variantI64:
		if err := writeUint32(w, 8); err != nil {
			return err
		}
		return writeInt64(w, f.value.i64)
	case variantString:
		if err := writeUint32(w, uint32(len(f.value.str))); err != nil {
			return err
		}
		_, err := io.WriteString(w, f.value.str)
		return kdbxerr.IO(err)
	case variantBytes:
		if err := writeUint32(w, uint32(len(f.value.bytes))); err != nil {
			return err
		}
		_, err := w.Write(f.value.bytes)
		return kdbxerr.IO(err)
	default:
		return kdbxerr.UnsupportedVariantType(byte(f.value.kind))
	}
}

func deserializeVariantField(r io.Reader) (variantField, error) {
	typeByte, err := readByte(r)
	if err != nil {
		return variantField{}, err
	}
	vt := variantType(typeByte)
	if vt == variantEndOfList {
		return variantField{value: variantValue{kind: variantEndOfList}}, nil
	}

	keySize, err := readUint32(r)
	if err != nil {
		return variantField{}, err
	}
	key, err := readString(r, int(keySize))
	if err != nil {
		return variantField{}, err
	}
	size, err := readUint32(r)
	if err != nil {
		return variantField{}, err
	}

	var value variantValue
	switch vt {
	case variantU32:
		if size != 4 {
			return variantField{}, kdbxerr.ErrInvalidFieldSize
		}
		v, err := readUint32(r)
		if err != nil {
			return variantField{}, err
		}
		value = variantValueU32(v)
	case variantU64:
		if size != 8 {
			return variantField{}, kdbxerr.ErrInvalidFieldSize
		}
		v, err := readUint64(r)
		if err != nil {
			return variantField{}, err
		}
		value = variantValueU64(v)
	case variantBool:
		if size != 1 {
			return variantField{}, kdbxerr.ErrInvalidFieldSize
		}
		v, err := readByte(r)
		if err != nil {
			return variantField{}, err
		}
		value = variantValueBool(v != 0)
	case variantI32:
		if size != 4 {
			return variantField{}, kdbxerr.ErrInvalidFieldSize
		}
		v, err := readInt32(r)
		if err != nil {
			return variantField{}, err
		}
		value = variantValueI32(v)
	case variantI64:
		if size != 8 {
			return variantField{}, kdbxerr.ErrInvalidFieldSize
		}
		v, err := readInt64(r)
		if err != nil {
			return variantField{}, err
		}
		value = variantValueI64(v)
	case variantString:
		v, err := readString(r, int(size))
		if err != nil {
			return variantField{}, err
		}
		value = variantValueString(v)
	case variantBytes:
		v, err := readBytes(r, int(size))
		if err != nil {
			return variantField{}, err
		}
		value = variantValueBytes(v)
	default:
		return variantField{}, kdbxerr.UnsupportedVariantType(typeByte)
	}

	return variantField{key: key, value: value}, nil
}

// variantList is KeePass's typed key/value dictionary, used to encode KDF
// parameters and plugin custom data in the outer header.
type variantList struct {
	fields []variantField
}

func newVariantList() *variantList { return &variantList{} }

func (l *variantList) add(key string, value variantValue) {
	l.fields = append(l.fields, variantField{key: key, value: value})
}

func (l *variantList) get(key string) (variantValue, bool) {
	for _, f := range l.fields {
		if f.key == key {
			return f.value, true
		}
	}
	return variantValue{}, false
}

func (l *variantList) len() int {
	n := 2 // version
	for _, f := range l.fields {
		n += f.len()
	}
	n++ // EndOfList
	return n
}

func (l *variantList) serialize(w io.Writer) error {
	if err := writeUint16(w, variantListVersion); err != nil {
		return err
	}
	for _, f := range l.fields {
		if err := f.serialize(w); err != nil {
			return err
		}
	}
	return variantField{value: variantValue{kind: variantEndOfList}}.serialize(w)
}

func deserializeVariantList(r io.Reader) (*variantList, error) {
	version, err := readUint16(r)
	if err != nil {
		return nil, err
	}
	if version&0xFF00 > variantListVersion {
		return nil, kdbxerr.UnsupportedVariantListVersion(version)
	}

	list := newVariantList()
	for {
		field, err := deserializeVariantField(r)
		if err != nil {
			return nil, err
		}
		if field.value.kind == variantEndOfList {
			return list, nil
		}
		list.fields = append(list.fields, field)
	}
}
