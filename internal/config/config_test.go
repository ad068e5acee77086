package config

import (
	"os"
	"testing"
)

func setRequiredEnv(t *testing.T) {
	t.Helper()
	t.Setenv("FEEDGEN_PUBLISHER_DID", "did:plc:publisher")
	t.Setenv("APP_HANDLE", "feedgen.example.com")
	t.Setenv("APP_PASSWORD", "app-password")
}

func TestLoad_MissingRequiredVarFails(t *testing.T) {
	os.Unsetenv("FEEDGEN_PUBLISHER_DID")
	os.Unsetenv("APP_HANDLE")
	os.Unsetenv("APP_PASSWORD")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail without FEEDGEN_PUBLISHER_DID/APP_HANDLE/APP_PASSWORD")
	}
}

func TestLoad_Defaults(t *testing.T) {
	setRequiredEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 3000 {
		t.Errorf("Port = %d, want 3000", cfg.Port)
	}
	if cfg.Hostname != "localhost" {
		t.Errorf("Hostname = %q, want localhost", cfg.Hostname)
	}
	if !cfg.EnableJetstream {
		t.Error("EnableJetstream should default to true")
	}
	if cfg.HelloworldPinnedURI == "" {
		t.Error("HelloworldPinnedURI should have a default")
	}
	if cfg.PrivatelistPinnedURI == "" {
		t.Error("PrivatelistPinnedURI should have a default")
	}
	if got, want := cfg.ServiceDID(), "did:web:localhost"; got != want {
		t.Errorf("ServiceDID() = %q, want %q", got, want)
	}
}

func TestLoad_PortOverride(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "8080")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
}

func TestLoad_InvalidPortFails(t *testing.T) {
	setRequiredEnv(t)
	t.Setenv("PORT", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("expected Load to fail on an invalid PORT")
	}
}
