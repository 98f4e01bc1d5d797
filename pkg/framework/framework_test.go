package framework

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile(%s) error = %v", name, err)
	}
}

func TestLoadFromManifest(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "framework.toml", `
name = "example"
type = "custom"
version = "2.0.0"
description = "an example framework"

[files]
model = ["data.ttl"]
rules = ["rules.rules"]
`)
	writeFile(t, dir, "data.ttl", `<urn:a> <urn:p> <urn:b> .`)
	writeFile(t, dir, "rules.rules", `[r1: (?x ?p ?y) -> (?x ?p ?y)]`)

	fw, err := LoadFromManifest(dir)
	if err != nil {
		t.Fatalf("LoadFromManifest() error = %v", err)
	}
	if fw.Name != "example" {
		t.Errorf("Name = %q, want %q", fw.Name, "example")
	}
	if fw.Tier != Custom {
		t.Errorf("Tier = %v, want Custom", fw.Tier)
	}
	if len(fw.Files[KindTTLData]) != 1 {
		t.Fatalf("len(Files[KindTTLData]) = %d, want 1", len(fw.Files[KindTTLData]))
	}
	if len(fw.Files[KindRules]) != 1 {
		t.Fatalf("len(Files[KindRules]) = %d, want 1", len(fw.Files[KindRules]))
	}
	if len(fw.Files[KindRules][0].CompiledRules) != 1 {
		t.Errorf("expected rules file to be compiled")
	}
}

func TestLoadFromManifestMissingFallsBackToDirectory(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "data.ttl", `<urn:a> <urn:p> <urn:b> .`)

	fw, err := LoadFromManifest(dir)
	if err != nil {
		t.Fatalf("LoadFromManifest() error = %v", err)
	}
	if len(fw.Files[KindTTLData]) != 1 {
		t.Fatalf("expected directory-inferred framework to pick up data.ttl")
	}
}

func TestLoadExternalRejectsInternalTier(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "framework.toml", `
name = "sneaky"
type = "internal"
`)

	if _, err := LoadExternal(dir); err == nil {
		t.Fatal("expected an error loading an externally-declared internal framework")
	}
}

func TestValidateDependenciesDetectsMissing(t *testing.T) {
	loaded := []*Framework{
		{Name: "a", DependsOn: []string{"b"}},
	}
	if err := ValidateDependencies(loaded); err == nil {
		t.Fatal("expected a missing-dependency error")
	}
}

func TestValidateDependenciesPassesWhenSatisfied(t *testing.T) {
	loaded := []*Framework{
		{Name: "a", DependsOn: []string{"b"}},
		{Name: "b"},
	}
	if err := ValidateDependencies(loaded); err != nil {
		t.Errorf("ValidateDependencies() error = %v, want nil", err)
	}
}

func TestOrderedRespectsTierOrder(t *testing.T) {
	loaded := []*Framework{
		{Name: "custom1", Tier: Custom},
		{Name: "internal1", Tier: Internal},
		{Name: "core1", Tier: Core},
		{Name: "privacy1", Tier: Privacy},
	}
	ordered := Ordered(loaded)
	want := []string{"internal1", "core1", "privacy1", "custom1"}
	for i, fw := range ordered {
		if fw.Name != want[i] {
			t.Errorf("ordered[%d] = %q, want %q", i, fw.Name, want[i])
		}
	}
}

func TestTruncateDisplayPathShort(t *testing.T) {
	short := "fw:a.ttl"
	if got := truncateDisplayPath(short); got != short {
		t.Errorf("truncateDisplayPath(short) = %q, want unchanged %q", got, short)
	}
}

func TestTruncateDisplayPathLongWithFramework(t *testing.T) {
	long := "framework-name:deeply/nested/path/to/a/very/long/file/that/exceeds/sixty/chars.ttl"
	got := truncateDisplayPath(long)
	if len(got) > len(long) {
		t.Errorf("truncateDisplayPath should shorten, got %q", got)
	}
	if got == long {
		t.Error("expected truncation for a path over 60 characters")
	}
}
