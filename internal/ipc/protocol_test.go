// Jellyfin MPV Session Runtime
// SPDX-License-Identifier: AGPL-3.0-or-later

package ipc

import (
	"testing"

	"github.com/goccy/go-json"
)

func TestParsePropertyValue(t *testing.T) {
	cases := []struct {
		name string
		raw  string
		kind PropertyKind
	}{
		{"null", `null`, PropertyNull},
		{"empty", ``, PropertyNull},
		{"bool", `true`, PropertyBool},
		{"number", `12.5`, PropertyNumber},
		{"string", `"hello"`, PropertyString},
		{"object", `{"w":1,"h":2}`, PropertyJSON},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := ParsePropertyValue(json.RawMessage(tc.raw))
			if err != nil {
				t.Fatalf("ParsePropertyValue(%q): %v", tc.raw, err)
			}
			if got.Kind != tc.kind {
				t.Errorf("Kind = %v, want %v", got.Kind, tc.kind)
			}
		})
	}
}

func TestParsePropertyValueExtractsTypedFields(t *testing.T) {
	v, err := ParsePropertyValue(json.RawMessage(`42.5`))
	if err != nil {
		t.Fatalf("ParsePropertyValue: %v", err)
	}
	if v.Number != 42.5 {
		t.Errorf("Number = %v, want 42.5", v.Number)
	}

	v, err = ParsePropertyValue(json.RawMessage(`"paused"`))
	if err != nil {
		t.Fatalf("ParsePropertyValue: %v", err)
	}
	if v.String != "paused" {
		t.Errorf("String = %q, want paused", v.String)
	}

	v, err = ParsePropertyValue(json.RawMessage(`false`))
	if err != nil {
		t.Fatalf("ParsePropertyValue: %v", err)
	}
	if v.Bool != false {
		t.Errorf("Bool = %v, want false", v.Bool)
	}
}

func TestResponseIsSuccess(t *testing.T) {
	if !(&Response{Error: "success"}).IsSuccess() {
		t.Error("IsSuccess() = false for error=success")
	}
	if (&Response{Error: "invalid parameter"}).IsSuccess() {
		t.Error("IsSuccess() = true for a non-success error")
	}
}

func TestCommandFailedErrorMessage(t *testing.T) {
	err := &CommandFailedError{Message: "property not found"}
	if err.Error() != "mpv command failed: property not found" {
		t.Errorf("Error() = %q", err.Error())
	}
}
