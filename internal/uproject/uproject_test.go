package uproject

import (
	"errors"
	"testing"

	"github.com/dreamunreal/ueman/internal/errs"
	"github.com/spf13/afero"
)

const sample = `{
	"FileVersion": 3,
	"EngineAssociation": "5.4",
	"Category": "Games",
	"Description": "Third person shooter",
	"Modules": [
		{"Name": "Shooter", "Type": "Runtime", "LoadingPhase": "Default"},
		"not-an-object",
		{"Type": "Editor"},
		{"Name": "ShooterEditor", "Type": "Editor", "LoadingPhase": "PostEngineInit"}
	],
	"Plugins": [
		{"Name": "ModelingToolsEditorMode", "Enabled": true, "TargetAllowList": ["Editor"]},
		{"Name": "OnlineSubsystemSteam", "Enabled": false, "SupportedTargetPlatforms": ["Win64", "Linux"]},
		42,
		{"Name": "Legacy", "Enabled": true, "WhitelistTargets": ["Game"]}
	],
	"TargetPlatforms": ["Windows", 7]
}`

func TestParse(t *testing.T) {
	md := Parse([]byte(sample))

	if md.Degraded {
		t.Fatal("valid descriptor must not be degraded")
	}
	if md.EngineAssociation != "5.4" {
		t.Errorf("expected association 5.4, got %q", md.EngineAssociation)
	}
	if md.Category != "Games" || md.Description != "Third person shooter" {
		t.Errorf("unexpected category/description: %q / %q", md.Category, md.Description)
	}

	if len(md.Modules) != 2 {
		t.Fatalf("expected 2 well-formed modules, got %d: %+v", len(md.Modules), md.Modules)
	}
	if md.Modules[1].Name != "ShooterEditor" || md.Modules[1].LoadingPhase != "PostEngineInit" {
		t.Errorf("unexpected module %+v", md.Modules[1])
	}

	if len(md.Plugins) != 3 {
		t.Fatalf("expected 3 well-formed plugins, got %d", len(md.Plugins))
	}
	if !md.Plugins[0].Enabled || len(md.Plugins[0].TargetAllowList) != 1 {
		t.Errorf("unexpected first plugin %+v", md.Plugins[0])
	}
	if md.Plugins[1].Enabled || len(md.Plugins[1].SupportedTargetPlatforms) != 2 {
		t.Errorf("unexpected second plugin %+v", md.Plugins[1])
	}
	if md.Plugins[2].TargetAllowList[0] != "Game" {
		t.Errorf("expected legacy allow list to be read, got %+v", md.Plugins[2])
	}

	if len(md.TargetPlatforms) != 1 || md.TargetPlatforms[0] != "Windows" {
		t.Errorf("expected string platforms only, got %v", md.TargetPlatforms)
	}
}

func TestParseMissingFields(t *testing.T) {
	md := Parse([]byte(`{"EngineAssociation": "{A1B2C3D4-E5F6-4789-ABCD-0123456789AB}"}`))
	if md.Degraded {
		t.Fatal("minimal descriptor must not be degraded")
	}
	if md.Description != "" || md.Category != "" {
		t.Errorf("missing fields should be empty strings")
	}
	if md.Modules == nil || md.Plugins == nil || md.TargetPlatforms == nil {
		t.Error("missing arrays should be empty, not nil")
	}
}

func TestParseMalformed(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"truncated", `{"EngineAssociation": "5.4", "Modules": [`},
		{"empty", ``},
		{"array root", `[1, 2, 3]`},
		{"garbage", `hello world`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			md := Parse([]byte(tt.content))
			if !md.Degraded {
				t.Fatal("expected degraded metadata")
			}
			if md.EngineAssociation != UnknownAssociation {
				t.Errorf("expected %q, got %q", UnknownAssociation, md.EngineAssociation)
			}
			if md.Description != UnreadableDesc {
				t.Errorf("expected %q, got %q", UnreadableDesc, md.Description)
			}
		})
	}
}

func TestRead(t *testing.T) {
	fs := afero.NewMemMapFs()
	_ = afero.WriteFile(fs, "/p/Game.uproject", []byte(sample), 0o644)

	md, err := Read(fs, "/p/Game.uproject")
	if err != nil {
		t.Fatal(err)
	}
	if md.EngineAssociation != "5.4" {
		t.Errorf("unexpected association %q", md.EngineAssociation)
	}

	if _, err := Read(fs, "/p/Missing.uproject"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestParseByteOrderMark(t *testing.T) {
	md := Parse(append([]byte("\xef\xbb\xbf"), sample...))
	if md.Degraded {
		t.Fatal("descriptor with a byte order mark must not be degraded")
	}
	if md.EngineAssociation != "5.4" || md.Description != "Third person shooter" {
		t.Errorf("unexpected metadata: %q / %q", md.EngineAssociation, md.Description)
	}
}
