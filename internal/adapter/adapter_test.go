package adapter

import "testing"

func TestNew_KnownProviders(t *testing.T) {
	for _, provider := range []string{ProviderOpenAI, ProviderAnthropic} {
		c, err := New(provider, "", "test-key", "")
		if err != nil {
			t.Errorf("New(%q): %v", provider, err)
		}
		if c == nil {
			t.Errorf("New(%q): nil client", provider)
		}
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	if _, err := New("palm", "", "", ""); err == nil {
		t.Error("expected error for unknown provider")
	}
}
