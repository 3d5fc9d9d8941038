package app

import (
	"path/filepath"
	"testing"
)

func TestGetDefaults(t *testing.T) {
	t.Run("env vars override the defaults", func(t *testing.T) {
		t.Setenv("RECVAULT_CONFIG_PATH", "/custom/recvault.toml")
		t.Setenv("RECVAULT_HOME", "/custom/data")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() unexpected error: %v", err)
		}

		if defaults["config_path"] != "/custom/recvault.toml" {
			t.Errorf("config_path = %q, want /custom/recvault.toml", defaults["config_path"])
		}
		if defaults["base_dir"] != "/custom/data" {
			t.Errorf("base_dir = %q, want /custom/data", defaults["base_dir"])
		}
		if defaults["log_dir"] != filepath.Join("/custom/data", "log") {
			t.Errorf("log_dir = %q, want it under base_dir", defaults["log_dir"])
		}
	})

	t.Run("falls back to XDG paths", func(t *testing.T) {
		t.Setenv("RECVAULT_CONFIG_PATH", "")
		t.Setenv("RECVAULT_HOME", "")
		t.Setenv("HOME", "/home/tester")

		defaults, err := GetDefaults()
		if err != nil {
			t.Fatalf("GetDefaults() unexpected error: %v", err)
		}

		if defaults["config_path"] != "/home/tester/.config/recvault.toml" {
			t.Errorf("config_path = %q, want ~/.config/recvault.toml", defaults["config_path"])
		}
		if defaults["base_dir"] != "/home/tester/.local/share/recvault" {
			t.Errorf("base_dir = %q, want ~/.local/share/recvault", defaults["base_dir"])
		}
	})
}
