package intel

import (
	"strings"
	"testing"

	"github.com/nexshop/storebot/internal/config"
	"github.com/nexshop/storebot/internal/store"
)

func TestParseIntent(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{"greeting", "greeting"},
		{"  greeting \n", "greeting"},
		{`"greeting"`, "greeting"},
		{"'greeting'", "greeting"},
		{"NONE", ""},
		{"none", ""},
		{"", ""},
		{"   ", ""},
		{"greeting is the best match", "greeting"},
		{"shipping_status", "shipping_status"},
		{"Shipping", "shipping"},
		{"GREETING", "greeting"},
	}
	for _, tc := range cases {
		if got := parseIntent(tc.raw); got != tc.want {
			t.Errorf("parseIntent(%q) = %q, want %q", tc.raw, got, tc.want)
		}
	}
}

func TestNew_ProviderSelection(t *testing.T) {
	if _, err := New(config.ProviderConfig{Type: "openai", APIKey: "k"}); err != nil {
		t.Errorf("openai: %v", err)
	}
	if _, err := New(config.ProviderConfig{Type: "anthropic", APIKey: "k"}); err != nil {
		t.Errorf("anthropic: %v", err)
	}
	if _, err := New(config.ProviderConfig{APIKey: "k"}); err != nil {
		t.Errorf("empty type must default to openai: %v", err)
	}
	if _, err := New(config.ProviderConfig{Type: "oracle"}); err == nil {
		t.Error("unknown provider type must be rejected")
	}
}

func TestBuildClassifyPrompt(t *testing.T) {
	examples := []store.TrainingExample{
		{Intent: "greeting", Examples: []string{"hi", "hello"}},
		{Intent: "hours", Examples: []string{"when are you open?"}},
	}
	prompt := buildClassifyPrompt("are you open on sunday?", examples)

	for _, want := range []string{"greeting", "hours", `"hi"`, `"when are you open?"`, `"are you open on sunday?"`} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestBuildGeneratePrompt(t *testing.T) {
	prompt := buildGeneratePrompt("do you ship abroad?", "Shipping: worldwide")
	if !strings.Contains(prompt, "Store information:") {
		t.Errorf("prompt missing context section:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Shipping: worldwide") {
		t.Errorf("prompt missing context body:\n%s", prompt)
	}

	// No context renders no empty section header.
	prompt = buildGeneratePrompt("do you ship abroad?", "  ")
	if strings.Contains(prompt, "Store information:") {
		t.Errorf("empty context must omit the section:\n%s", prompt)
	}
}
