package scoreconfig

import (
	"crypto/md5"
	"encoding/json"
	"fmt"

	"github.com/rotisserie/eris"
)

// MergeOver applies a stored payload over built-in defaults field by field.
// The defaults value is copied, then the stored JSON is unmarshalled into
// the copy so that only keys present in the stored document override;
// nested fields the document omits inherit the defaults.
func MergeOver[T any](defaults T, stored json.RawMessage) (T, error) {
	merged := defaults
	if len(stored) == 0 {
		return merged, nil
	}
	if err := json.Unmarshal(stored, &merged); err != nil {
		return defaults, eris.Wrap(err, "scoreconfig: merge stored payload")
	}
	return merged, nil
}

// CanonicalJSON renders v as JSON with all object keys sorted, independent
// of struct field order, so the hash is stable across shape refactors.
func CanonicalJSON(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, eris.Wrap(err, "scoreconfig: marshal for canonical form")
	}
	var generic any
	if err := json.Unmarshal(b, &generic); err != nil {
		return nil, eris.Wrap(err, "scoreconfig: reparse for canonical form")
	}
	// encoding/json sorts map keys on marshal.
	out, err := json.Marshal(generic)
	if err != nil {
		return nil, eris.Wrap(err, "scoreconfig: remarshal canonical form")
	}
	return out, nil
}

// Hash returns the hex MD5 digest of the canonical JSON of the effective
// config. Stamped on every output row; consumers compare hashes to detect
// rows produced under stale configuration.
func Hash(effective any) (string, error) {
	canonical, err := CanonicalJSON(effective)
	if err != nil {
		return "", err
	}
	sum := md5.Sum(canonical)
	return fmt.Sprintf("%x", sum), nil
}
