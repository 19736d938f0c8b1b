package kdbxdb

import (
	"encoding/xml"
	"strings"
)

func parseBoolValue(val string) bool {
	switch strings.ToLower(val) {
	case "true", "yes", "1", "enabled", "checked":
		return true
	default:
		return false
	}
}

// boolValue marshals as the capitalized "True"/"False" text KeePass writes,
// rather than Go's lowercase default, and parses case-insensitively on the
// way back in since different KeePass-family tools disagree on casing.
type boolValue bool

func (b boolValue) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	val := "False"
	if b {
		val = "True"
	}
	return e.EncodeElement(val, start)
}

func (b *boolValue) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var val string
	if err := d.DecodeElement(&val, &start); err != nil {
		return err
	}
	*b = boolValue(parseBoolValue(val))
	return nil
}

func (b boolValue) MarshalXMLAttr(name xml.Name) (xml.Attr, error) {
	val := "False"
	if b {
		val = "True"
	}
	return xml.Attr{Name: name, Value: val}, nil
}

func (b *boolValue) UnmarshalXMLAttr(attr xml.Attr) error {
	*b = boolValue(parseBoolValue(attr.Value))
	return nil
}

// nullableBool is IsExpanded/EnableSearching's type: KeePass writes the
// literal text "null" for "not set", distinct from both True and False.
type nullableBool struct {
	Bool  bool
	Valid bool
}

func newNullableBool(v bool) nullableBool { return nullableBool{Bool: v, Valid: true} }

func (b nullableBool) MarshalXML(e *xml.Encoder, start xml.StartElement) error {
	val := "null"
	if b.Valid {
		val = "False"
		if b.Bool {
			val = "True"
		}
	}
	return e.EncodeElement(val, start)
}

func (b *nullableBool) UnmarshalXML(d *xml.Decoder, start xml.StartElement) error {
	var val string
	if err := d.DecodeElement(&val, &start); err != nil {
		return err
	}
	if strings.ToLower(val) == "null" {
		*b = nullableBool{}
		return nil
	}
	*b = nullableBool{Bool: parseBoolValue(val), Valid: true}
	return nil
}
