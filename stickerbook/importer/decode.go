package importer

import (
	"bytes"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DecodeError marks input that is not decodable text. Parse-level issues
// (bad rows) never produce it; only undecodable bytes do.
type DecodeError struct {
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("file is not valid text: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// DecodeText decodes raw file bytes into a string. Decoding is explicit:
// UTF-8 by default, with UTF-8/UTF-16 byte order marks honored when
// present. Exports from Hebrew spreadsheet tools regularly arrive as
// UTF-16 or BOM-prefixed UTF-8, and platform-default decoding garbles
// them silently.
func DecodeText(raw []byte) (string, error) {
	decoder := unicode.BOMOverride(unicode.UTF8.NewDecoder())
	decoded, _, err := transform.Bytes(decoder, raw)
	if err != nil {
		return "", &DecodeError{Err: err}
	}
	if !utf8.Valid(decoded) {
		return "", &DecodeError{Err: fmt.Errorf("invalid UTF-8 after decoding")}
	}
	// The decoder substitutes rather than fails, so binary input slips
	// through as text full of NULs. Reject it here.
	if bytes.ContainsRune(decoded, 0) {
		return "", &DecodeError{Err: fmt.Errorf("input contains binary data")}
	}
	return string(decoded), nil
}
