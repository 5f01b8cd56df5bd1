package yamlutil

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// UnmarshalStrict unmarshals YAML data with strict field checking enabled.
// Unknown fields in the YAML will cause an error, helping catch typos in
// the server's source table, endpoint toggles, and imaging limits.
func UnmarshalStrict(data []byte, v interface{}) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Enable strict mode to reject unknown fields

	err := decoder.Decode(v)
	if err != nil {
		// Enhance error message for unknown field errors
		errStr := err.Error()
		if strings.Contains(errStr, "field") && strings.Contains(errStr, "not found") {
			return fmt.Errorf("unknown configuration field (check for typos, e.g. under a source entry or the imaging/client_cache blocks): %w", err)
		}
		return err
	}

	return nil
}

// UnmarshalStrictFile reads path and strictly unmarshals it into v, folding
// the read and decode into the single error-reporting call every config
// loader needs. It returns the raw bytes too, since callers sometimes want
// to hash or log the document that was just applied.
func UnmarshalStrictFile(path string, v interface{}) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := UnmarshalStrict(data, v); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return data, nil
}
