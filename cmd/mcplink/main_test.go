package main

import (
	"testing"

	"github.com/mcplink/mcplink/pkg/config"
)

func TestOverlayFlags(t *testing.T) {
	defer func() {
		serverURL, clientID, logDir, agentMode = "", "", "", ""
	}()

	cfg := config.Default()
	cfg.ServerURL = "ws://from-file:3001"
	cfg.ClientID = "from-file"

	serverURL = "ws://from-flag:3001"
	agentMode = "echo"
	overlayFlags(&cfg)

	if cfg.ServerURL != "ws://from-flag:3001" {
		t.Errorf("ServerURL = %q, want flag value", cfg.ServerURL)
	}
	if cfg.ClientID != "from-file" {
		t.Errorf("ClientID = %q, want file value preserved", cfg.ClientID)
	}
	if cfg.Agent.Mode != "echo" {
		t.Errorf("Agent.Mode = %q, want echo", cfg.Agent.Mode)
	}
}

func TestOverlayFlagsNoFlagsSet(t *testing.T) {
	cfg := config.Default()
	cfg.ServerURL = "ws://from-file:3001"
	before := cfg

	overlayFlags(&cfg)
	if cfg != before {
		t.Errorf("overlayFlags changed config with no flags set: %+v", cfg)
	}
}
