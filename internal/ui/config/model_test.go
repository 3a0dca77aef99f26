package config

import (
	"path/filepath"
	"testing"

	"github.com/schoolone/portal/internal/keys"
	"github.com/schoolone/portal/internal/model"
)

func TestValidateURL(t *testing.T) {
	for _, s := range []string{"", "   ", "school.test", "/api/v1"} {
		if validateURL(s) == nil {
			t.Errorf("validateURL(%q) accepted", s)
		}
	}
	if err := validateURL("http://127.0.0.1:8000/api/v1"); err != nil {
		t.Errorf("valid URL rejected: %v", err)
	}
}

func TestValidateSeconds(t *testing.T) {
	for _, s := range []string{"", "abc", "0", "-5", "3601"} {
		if validateSeconds(s) == nil {
			t.Errorf("validateSeconds(%q) accepted", s)
		}
	}
	if err := validateSeconds(" 30 "); err != nil {
		t.Errorf("30 rejected: %v", err)
	}
}

func TestApplyAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg, err := model.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}

	m := New(path, *cfg, keys.DefaultKeyMap(), 80, 24)
	if m.fields.badgeInterval != "30" || m.fields.listInterval != "10" {
		t.Fatalf("fields not seeded from config: %+v", *m.fields)
	}

	m.fields.baseURL = "http://school.test/api/v1/"
	m.fields.badgeInterval = "60"
	m.fields.listInterval = "15"

	msg := m.save()()
	saved, ok := msg.(savedInternalMsg)
	if !ok {
		t.Fatalf("save returned %T", msg)
	}
	if saved.err != nil {
		t.Fatalf("save: %v", saved.err)
	}

	got, err := model.LoadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if got.API.BaseURL != "http://school.test/api/v1" {
		t.Errorf("BaseURL = %q", got.API.BaseURL)
	}
	if got.Polling.BadgeIntervalSec != 60 || got.Polling.ListIntervalSec != 15 {
		t.Errorf("intervals = %d / %d", got.Polling.BadgeIntervalSec, got.Polling.ListIntervalSec)
	}
}
