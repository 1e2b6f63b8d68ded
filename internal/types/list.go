package types

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Page is the paginated list envelope used by the API.
type Page[T any] struct {
	Items []T `json:"items"`
	Total int `json:"total"`
	Page  int `json:"page"`
	Size  int `json:"size"`
	Pages int `json:"pages"`
}

// DecodeList decodes either a bare JSON array or a paginated envelope.
func DecodeList[T any](data []byte) ([]T, error) {
	page, err := DecodePage[T](data)
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// DecodePage decodes one page of a list. A bare array is the whole
// collection: page 1 of 1.
func DecodePage[T any](data []byte) (Page[T], error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Page[T]{}, fmt.Errorf("empty list response")
	}

	switch trimmed[0] {
	case '[':
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return Page[T]{}, fmt.Errorf("failed to decode list: %w", err)
		}
		return Page[T]{Items: items, Total: len(items), Page: 1, Size: len(items), Pages: 1}, nil
	case '{':
		var page Page[T]
		if err := json.Unmarshal(trimmed, &page); err != nil {
			return Page[T]{}, fmt.Errorf("failed to decode paginated list: %w", err)
		}
		if page.Items == nil {
			page.Items = []T{}
		}
		return page, nil
	default:
		return Page[T]{}, fmt.Errorf("unexpected list response starting with %q", trimmed[0])
	}
}
