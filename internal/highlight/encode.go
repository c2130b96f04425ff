package highlight

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when the Document layout changes.
const documentSchemaVersion uint16 = 1

// Document is the token stream of one file as sent to editor clients.
type Document struct {
	Schema   uint16  `json:"schema" msgpack:"schema"`
	Path     string  `json:"path" msgpack:"path"`
	Language string  `json:"language" msgpack:"language"`
	Tokens   []Token `json:"tokens" msgpack:"tokens"`
}

// NewDocument wraps tokens for encoding.
func NewDocument(path, language string, tokens []Token) Document {
	if tokens == nil {
		tokens = []Token{}
	}
	return Document{Schema: documentSchemaVersion, Path: path, Language: language, Tokens: tokens}
}

// EncodeJSON writes doc as indented JSON.
func EncodeJSON(w io.Writer, doc Document) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(doc)
}

// EncodeMsgpack writes doc in msgpack form.
func EncodeMsgpack(w io.Writer, doc Document) error {
	enc := msgpack.NewEncoder(w)
	return enc.Encode(&doc)
}

// DecodeMsgpack reads a Document written by EncodeMsgpack.
func DecodeMsgpack(r io.Reader) (Document, error) {
	var doc Document
	dec := msgpack.NewDecoder(r)
	if err := dec.Decode(&doc); err != nil {
		return Document{}, fmt.Errorf("highlight: decode msgpack: %w", err)
	}
	if doc.Schema != documentSchemaVersion {
		return Document{}, fmt.Errorf("highlight: document schema %d, want %d", doc.Schema, documentSchemaVersion)
	}
	return doc, nil
}
