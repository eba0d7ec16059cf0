package domain_test

import (
	"testing"

	"github.com/veloztours/booking-engine/internal/domain"
)

func TestLanguageSet(t *testing.T) {
	base := domain.NewLanguageSet("en", " ES ", "")

	if !base.IsBase("en") {
		t.Error("expected en to be base")
	}
	if !base.IsBase("ES") {
		t.Error("expected base check to be case-insensitive")
	}
	if !base.IsBase(" es ") {
		t.Error("expected base check to trim whitespace")
	}
	if base.IsBase("fr") {
		t.Error("expected fr to not be base")
	}
	if base.IsBase("") {
		t.Error("expected empty string to not be base")
	}
}

func TestEqualLang(t *testing.T) {
	if !domain.EqualLang("FR", " fr ") {
		t.Error("expected case- and space-insensitive match")
	}
	if domain.EqualLang("fr", "de") {
		t.Error("expected different languages to not match")
	}
}
