package pages

import (
	"strings"
	"testing"
)

func TestSuccess(t *testing.T) {
	html := Success("en")
	if !strings.Contains(html, "window.close()") {
		t.Error("success page does not attempt to close itself")
	}
	if !strings.Contains(html, "<!DOCTYPE html>") {
		t.Error("success page is not a full document")
	}
}

func TestErrorLocalized(t *testing.T) {
	en := Error("en")
	it := Error("it")
	if en == it {
		t.Error("error page identical across locales")
	}
	if !strings.Contains(en, "<!DOCTYPE html>") {
		t.Error("error page is not a full document")
	}
}
