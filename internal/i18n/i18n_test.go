package i18n

import "testing"

func TestLoadKnownLocale(t *testing.T) {
	b, err := Load("en")
	if err != nil {
		t.Fatalf("Load(en): %v", err)
	}
	if b.Locale() != "en" {
		t.Errorf("Locale() = %q, want en", b.Locale())
	}
	if got := b.Get("panel_title"); got != "Comment filters" {
		t.Errorf("Get(panel_title) = %q", got)
	}
	if !b.Has("toggle_on") {
		t.Error("Has(toggle_on) should be true")
	}
}

func TestMissingKeyReturnsKey(t *testing.T) {
	b, err := Load("en")
	if err != nil {
		t.Fatalf("Load(en): %v", err)
	}
	if got := b.Get("no_such_key"); got != "no_such_key" {
		t.Errorf("missing key should echo itself, got %q", got)
	}
	if b.Has("no_such_key") {
		t.Error("Has should be false for unknown keys")
	}
}

func TestUnknownLocaleFallsBack(t *testing.T) {
	b, err := Load("xx")
	if err != nil {
		t.Fatalf("Load(xx): %v", err)
	}
	if b.Locale() != "en" {
		t.Errorf("fallback locale = %q, want en", b.Locale())
	}
}

func TestEmptyLocaleUsesDefault(t *testing.T) {
	b, err := Load("")
	if err != nil {
		t.Fatalf("Load(\"\"): %v", err)
	}
	if b.Locale() != "en" {
		t.Errorf("default locale = %q, want en", b.Locale())
	}
}

func TestBundledLocalesStayInSync(t *testing.T) {
	locales := Locales()
	if len(locales) < 2 {
		t.Fatalf("expected at least en and de, got %v", locales)
	}

	en, err := Load("en")
	if err != nil {
		t.Fatalf("Load(en): %v", err)
	}
	for _, code := range locales {
		b, err := Load(code)
		if err != nil {
			t.Fatalf("Load(%s): %v", code, err)
		}
		for key := range en.messages {
			if !b.Has(key) {
				t.Errorf("locale %s is missing key %q", code, key)
			}
		}
	}
}
