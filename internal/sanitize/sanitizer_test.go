// Haguard - Security Hardening Engine for LLM-Assisted Home Automation
// Copyright 2026 Haguard Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/haguard/haguard

package sanitize

import (
	"reflect"
	"testing"
)

func TestIsSensitiveKey(t *testing.T) {
	s := NewSanitizer()

	tests := []struct {
		key  string
		want bool
	}{
		{"api_key", true},
		{"API_KEY", true},
		{"AccessToken", true},
		{"password", true},
		{"user_password_hash", true},
		{"client_secret", true},
		{"credentials", true},
		{"authorization", true},
		{"username", false},
		{"device_id", false},
		{"temperature", false},
	}

	for _, tt := range tests {
		if got := s.IsSensitiveKey(tt.key); got != tt.want {
			t.Errorf("IsSensitiveKey(%q) = %v, want %v", tt.key, got, tt.want)
		}
	}
}

func TestSanitizeNestedRedaction(t *testing.T) {
	s := NewSanitizer()

	input := map[string]any{
		"device": "thermostat",
		"config": map[string]any{
			"api_key":  "sk-12345",
			"endpoint": "https://api.example.com",
			"nested": map[string]any{
				"refresh_token": "tok-999",
				"interval":      30,
			},
		},
		"tags": []any{
			map[string]any{"password": "hunter2", "label": "primary"},
			"plain-tag",
		},
	}

	got, ok := s.Sanitize(input).(map[string]any)
	if !ok {
		t.Fatal("Sanitize did not return a map")
	}

	config := got["config"].(map[string]any)
	if config["api_key"] != RedactionMarker {
		t.Errorf("api_key = %v, want %s", config["api_key"], RedactionMarker)
	}
	if config["endpoint"] != "https://api.example.com" {
		t.Errorf("endpoint = %v, want original value", config["endpoint"])
	}

	nested := config["nested"].(map[string]any)
	if nested["refresh_token"] != RedactionMarker {
		t.Errorf("refresh_token = %v, want %s", nested["refresh_token"], RedactionMarker)
	}
	if nested["interval"] != 30 {
		t.Errorf("interval = %v, want 30", nested["interval"])
	}

	tags := got["tags"].([]any)
	first := tags[0].(map[string]any)
	if first["password"] != RedactionMarker {
		t.Errorf("password in slice element = %v, want %s", first["password"], RedactionMarker)
	}
	if first["label"] != "primary" {
		t.Errorf("label = %v, want primary", first["label"])
	}
	if tags[1] != "plain-tag" {
		t.Errorf("tags[1] = %v, want plain-tag", tags[1])
	}
}

func TestSanitizeDoesNotMutateInput(t *testing.T) {
	s := NewSanitizer()

	input := map[string]any{
		"token": "original",
		"inner": map[string]any{"secret": "keep"},
	}

	_ = s.Sanitize(input)

	if input["token"] != "original" {
		t.Error("Sanitize mutated the input map")
	}
	if input["inner"].(map[string]any)["secret"] != "keep" {
		t.Error("Sanitize mutated a nested input map")
	}
}

func TestSanitizeIdempotent(t *testing.T) {
	s := NewSanitizer()

	input := map[string]any{
		"auth_header": "Bearer xyz",
		"payload":     map[string]any{"key": "value"},
	}

	once := s.Sanitize(input)
	twice := s.Sanitize(once)

	if !reflect.DeepEqual(once, twice) {
		t.Errorf("Sanitize is not idempotent: %v != %v", once, twice)
	}
}

func TestSanitizeDepthLimit(t *testing.T) {
	s := NewSanitizer(WithMaxDepth(3))

	deep := map[string]any{
		"l1": map[string]any{
			"l2": map[string]any{
				"l3": map[string]any{
					"l4": "unreachable",
				},
			},
		},
	}

	got := s.Sanitize(deep).(map[string]any)
	l2 := got["l1"].(map[string]any)["l2"].(map[string]any)

	if l2["l3"] != TruncationMarker {
		t.Errorf("value beyond depth limit = %v, want %s", l2["l3"], TruncationMarker)
	}
}

func TestSanitizeStringMapAndSlice(t *testing.T) {
	s := NewSanitizer()

	input := map[string]any{
		"headers": map[string]string{
			"Authorization": "Bearer abc",
			"Accept":        "application/json",
		},
		"names": []string{"kitchen", "hallway"},
	}

	got := s.Sanitize(input).(map[string]any)

	headers := got["headers"].(map[string]any)
	if headers["Authorization"] != RedactionMarker {
		t.Errorf("Authorization = %v, want %s", headers["Authorization"], RedactionMarker)
	}
	if headers["Accept"] != "application/json" {
		t.Errorf("Accept = %v, want original value", headers["Accept"])
	}

	names := got["names"].([]any)
	if len(names) != 2 || names[0] != "kitchen" {
		t.Errorf("names = %v, want original values", names)
	}
}

func TestSanitizeExtraSubstrings(t *testing.T) {
	s := NewSanitizer(WithExtraSubstrings("pin"))

	got := s.SanitizeMap(map[string]any{
		"alarm_pin": "0000",
		"room":      "garage",
	})

	if got["alarm_pin"] != RedactionMarker {
		t.Errorf("alarm_pin = %v, want %s", got["alarm_pin"], RedactionMarker)
	}
	if got["room"] != "garage" {
		t.Errorf("room = %v, want garage", got["room"])
	}
}

func TestSanitizeScalarPassthrough(t *testing.T) {
	s := NewSanitizer()

	for _, v := range []any{"text", 42, 3.14, true, nil} {
		if got := s.Sanitize(v); !reflect.DeepEqual(got, v) {
			t.Errorf("Sanitize(%v) = %v, want unchanged", v, got)
		}
	}
}
