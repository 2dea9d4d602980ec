package bot

import (
	"strings"
	"testing"

	"github.com/ytget/yt-downloader-bot/internal/model"
)

func TestNewTexts_Language(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"pt", LanguagePortuguese},
		{"en", LanguageEnglish},
		{"", DefaultLanguage},
		{"klingon", DefaultLanguage},
	}

	for _, test := range tests {
		if got := NewTexts(test.input).Language(); got != test.expected {
			t.Errorf("NewTexts(%q).Language() = %q, expected %q", test.input, got, test.expected)
		}
	}
}

func TestTexts_AllKeysTranslated(t *testing.T) {
	texts := NewTexts(DefaultLanguage)
	for lang, table := range texts.texts {
		for key := range texts.texts[DefaultLanguage] {
			if _, ok := table[key]; !ok {
				t.Errorf("language %s is missing key %s", lang, key)
			}
		}
	}
}

func TestGetText_FallbackToKey(t *testing.T) {
	texts := NewTexts(LanguageEnglish)
	if got := texts.GetText("no_such_key"); got != "no_such_key" {
		t.Errorf("Expected key fallback, got %q", got)
	}
}

func TestTexts_Formatting(t *testing.T) {
	texts := NewTexts(LanguageEnglish)

	if got := texts.ConfirmPrompt("https://x.test/v"); !strings.Contains(got, "https://x.test/v") {
		t.Errorf("prompt does not contain url: %q", got)
	}
	if got := texts.FetchFailed("boom"); !strings.HasSuffix(got, "boom") {
		t.Errorf("unexpected failure text: %q", got)
	}
	if got := texts.Completed(1); got != "✅ Video sent successfully!" {
		t.Errorf("unexpected single completion text: %q", got)
	}
	if got := texts.Completed(3); !strings.Contains(got, "3 parts") {
		t.Errorf("unexpected parts completion text: %q", got)
	}
}

func TestTexts_Progress(t *testing.T) {
	texts := NewTexts(LanguageEnglish)

	got := texts.Progress(45, model.PhaseDownloading)
	if !strings.HasPrefix(got, "⬇️ Downloading...\n45% [") {
		t.Errorf("unexpected progress text: %q", got)
	}

	got = texts.Progress(100, model.PhaseFinished)
	if !strings.HasPrefix(got, "⚙️ Processing...\n100% [") {
		t.Errorf("unexpected final progress text: %q", got)
	}
}
