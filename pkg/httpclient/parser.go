package httpclient

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// DecodeObject parses a JSON object body. Numbers are kept as json.Number so large ids survive.
func DecodeObject(resp *Response) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader(resp.Body))
	dec.UseNumber()

	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to parse JSON: %w", err)
	}

	object, ok := result.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("expected a JSON object, got %T", result)
	}
	return object, nil
}
