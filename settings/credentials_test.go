package settings

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDataDirAndFilePathUseXDGDataHome(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	dir, err := DataDir()
	if err != nil {
		t.Fatalf("DataDir() error: %v", err)
	}
	if want := filepath.Join(tmp, "plugloc"); dir != want {
		t.Fatalf("DataDir() = %q, want %q", dir, want)
	}
	if got, want := FilePath(), filepath.Join(tmp, "plugloc", "auth.json"); got != want {
		t.Fatalf("FilePath() = %q, want %q", got, want)
	}
}

func TestSaveLoadRemoveLifecycle(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	store := Store{
		ServiceDeepL:      {Type: TypeAPI, Key: "deepl-key:fx"},
		ServiceConfluence: {Type: TypeBearer, Key: "tok", BaseURL: "https://wiki.example.com"},
	}
	if err := Save(store); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	path := filepath.Join(tmp, "plugloc", "auth.json")
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat auth.json: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Fatalf("auth.json mode = %o, want 600", info.Mode().Perm())
	}

	if got := GetKey(ServiceDeepL); got != "deepl-key:fx" {
		t.Fatalf("GetKey(deepl) = %q", got)
	}
	if got := Get(ServiceConfluence); got == nil || got.BaseURL != "https://wiki.example.com" {
		t.Fatalf("Get(confluence) = %#v", got)
	}

	if err := Remove(ServiceDeepL); err != nil {
		t.Fatalf("Remove(deepl) error: %v", err)
	}
	if got := GetKey(ServiceDeepL); got != "" {
		t.Fatalf("GetKey after remove = %q, want empty", got)
	}
	if Get(ServiceConfluence) == nil {
		t.Fatal("confluence entry should remain after removing deepl")
	}
	if err := Remove("missing"); err != nil {
		t.Fatalf("Remove(missing) should be no-op, got: %v", err)
	}

	if err := RemoveAll(); err != nil {
		t.Fatalf("RemoveAll() error: %v", err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("auth.json should be removed, stat err=%v", err)
	}
	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() after RemoveAll should be empty, got=%#v", got)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)
	path := filepath.Join(tmp, "plugloc", "auth.json")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0600); err != nil {
		t.Fatal(err)
	}
	if got := Load(); len(got) != 0 {
		t.Fatalf("Load() of invalid file = %#v, want empty", got)
	}
}

func TestSetServiceAccount(t *testing.T) {
	tmp := t.TempDir()
	t.Setenv("XDG_DATA_HOME", tmp)

	if err := SetServiceAccount(filepath.Join(tmp, "missing.json"), "p"); err == nil {
		t.Fatal("expected error for missing file")
	}

	sa := filepath.Join(tmp, "sa.json")
	if err := os.WriteFile(sa, []byte("{}"), 0600); err != nil {
		t.Fatal(err)
	}
	if err := SetServiceAccount(sa, "my-project"); err != nil {
		t.Fatalf("SetServiceAccount: %v", err)
	}
	got := Get(ServiceGoogle)
	if got == nil || got.Type != TypeServiceAccount || got.CredentialsFile != sa || got.ProjectID != "my-project" {
		t.Fatalf("Get(google) = %#v", got)
	}
}

func TestResolveKeyPriority(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())
	if err := SetAPIKey(ServiceDeepL, "stored-key"); err != nil {
		t.Fatalf("SetAPIKey() error: %v", err)
	}

	if got := ResolveKey(ServiceDeepL, "flag-key", "env-key"); got != "flag-key" {
		t.Fatalf("flag should win, got %q", got)
	}
	if got := ResolveKey(ServiceDeepL, "", "env-key"); got != "env-key" {
		t.Fatalf("env should win over store, got %q", got)
	}
	if got := ResolveKey(ServiceDeepL, "", ""); got != "stored-key" {
		t.Fatalf("stored key expected, got %q", got)
	}
}

func TestEnvVarForServiceAndMaskKey(t *testing.T) {
	cases := map[string]string{
		ServiceDeepL:      "DEEPL_API_KEY",
		ServiceGoogle:     "GOOGLE_API_KEY",
		ServiceConfluence: "CONFLUENCE_BEARER_TOKEN",
		"unknown":         "",
	}
	for service, want := range cases {
		if got := EnvVarForService(service); got != want {
			t.Fatalf("EnvVarForService(%q) = %q, want %q", service, got, want)
		}
	}

	if got := MaskKey("short"); got != "****" {
		t.Fatalf("MaskKey(short) = %q, want ****", got)
	}
	if got := MaskKey("123456789"); got != "1234...6789" {
		t.Fatalf("MaskKey(9 chars) = %q, want 1234...6789", got)
	}
}
