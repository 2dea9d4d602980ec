package model

import "testing"

func TestMessageRef_IsZero(t *testing.T) {
	if !(MessageRef{}).IsZero() {
		t.Error("zero value should report IsZero")
	}
	if (MessageRef{ChatID: 1, MessageID: 2}).IsZero() {
		t.Error("populated ref should not report IsZero")
	}
	if got := (MessageRef{ChatID: -100, MessageID: 5}).String(); got != "-100:5" {
		t.Errorf("unexpected String(): %s", got)
	}
}

func TestCallbackData_RoundTrip(t *testing.T) {
	data := CallbackData(ActionConfirm, "0190a1b2-token")
	if data != "confirm:0190a1b2-token" {
		t.Fatalf("unexpected callback data: %s", data)
	}

	action, token, err := ParseCallbackData(data)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if action != ActionConfirm || token != "0190a1b2-token" {
		t.Errorf("got action=%s token=%s", action, token)
	}
}

func TestParseCallbackData_Invalid(t *testing.T) {
	for _, data := range []string{"", "confirm", "confirm:", "delete:abc", ":abc"} {
		if _, _, err := ParseCallbackData(data); err == nil {
			t.Errorf("Expected error for %q", data)
		}
	}
}
