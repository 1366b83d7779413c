// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"bytes"
	"testing"
)

func TestMarshalIsDeterministic(t *testing.T) {
	t.Parallel()

	value := map[string]any{
		"zeta":  "last",
		"alpha": 1,
		"mid":   []string{"a", "b"},
	}

	first, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	second, err := Marshal(value)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	if !bytes.Equal(first, second) {
		t.Error("two encodings of the same value differ")
	}
}

func TestUnmarshalIgnoresUnknownFields(t *testing.T) {
	t.Parallel()

	type wide struct {
		Value string `cbor:"value"`
		Extra int    `cbor:"extra"`
	}
	type narrow struct {
		Value string `cbor:"value"`
	}

	encoded, err := Marshal(wide{Value: "kept", Extra: 7})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded narrow
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if decoded.Value != "kept" {
		t.Errorf("got %q, want %q", decoded.Value, "kept")
	}
}

func TestAnyTargetDecodesToStringKeyedMap(t *testing.T) {
	t.Parallel()

	encoded, err := Marshal(map[string]any{"key": "value"})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var decoded any
	if err := Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	asMap, ok := decoded.(map[string]any)
	if !ok {
		t.Fatalf("decoded type: got %T, want map[string]any", decoded)
	}
	if asMap["key"] != "value" {
		t.Errorf("got %v, want %q", asMap["key"], "value")
	}
}
