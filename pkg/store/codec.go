package store

import (
	"encoding/json"
	"fmt"
)

// EncodeFields serializes a document body for backends that store it as JSON text.
func EncodeFields(fields map[string]interface{}) ([]byte, error) {
	if fields == nil {
		fields = map[string]interface{}{}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return nil, fmt.Errorf("encode fields: %w", err)
	}
	return data, nil
}

// DecodeFields is the inverse of EncodeFields. Numbers come back as float64.
func DecodeFields(data []byte) (map[string]interface{}, error) {
	fields := make(map[string]interface{})
	if len(data) == 0 {
		return fields, nil
	}
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, fmt.Errorf("decode fields: %w", err)
	}
	return fields, nil
}
