package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/andreyvit/infolist"
	"github.com/andreyvit/infolist/upgrade"
	"github.com/andreyvit/infolist/upgrade/upgradetest"
)

func save(t *testing.T, dir, name string) {
	reg := infolist.NewRegistry()
	l, err := reg.New(infolist.NoOwner)
	if err != nil {
		t.Fatal(err)
	}
	it := l.NewItem()
	if err := it.NewVarString("name", "libera"); err != nil {
		t.Fatal(err)
	}
	if err := it.NewVarInteger("port", 6697); err != nil {
		t.Fatal(err)
	}
	err = upgrade.Save(dir, name, upgradetest.Options(t), func(w *upgrade.Writer) error {
		return w.WriteObject(1, l)
	})
	if err != nil {
		t.Fatal(err)
	}
}

func runCmd(t *testing.T, args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr)
	t.Logf("stderr:\n%s", stderr.String())
	return code, stdout.String(), stderr.String()
}

func TestRun_text(t *testing.T) {
	dir := t.TempDir()
	save(t, dir, "irc")

	code, out, _ := runCmd(t, "-data-dir", dir, "irc")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	e := "# " + upgrade.FileName(dir, "irc") + "\n" +
		"object 1 (2 vars)\n" +
		"  string name = \"libera\"\n" +
		"  integer port = 6697\n"
	if out != e {
		t.Fatalf("stdout = %q, wanted %q", out, e)
	}
}

func TestRun_jsonWithMmap(t *testing.T) {
	dir := t.TempDir()
	save(t, dir, "core")

	code, out, _ := runCmd(t, "-format", "json", "-mmap", "-data-dir", dir)
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	e := `{"kind":1,"vars":[{"name":"name","type":"string","value":"libera"},{"name":"port","type":"integer","value":6697}]}` + "\n"
	if out != e {
		t.Fatalf("stdout = %q, wanted %q", out, e)
	}
}

func TestRun_badFile(t *testing.T) {
	dir := t.TempDir()
	fn := upgradetest.Put(t, dir, "bad.upgrade", "$nope")

	code, _, errOut := runCmd(t, fn)
	if code != 1 || !strings.Contains(errOut, "signature mismatch") {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut)
	}
}

func TestRun_archiveAndRemove(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "archive.db")
	save(t, dir, "core")
	save(t, dir, "irc")

	code, _, _ := runCmd(t, "-data-dir", dir, "-archive", db, "-remove", "core", "irc")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, name := range []string{"core", "irc"} {
		if _, err := os.Stat(upgrade.FileName(dir, name)); !os.IsNotExist(err) {
			t.Fatalf("%s not removed: %v", name, err)
		}
	}

	code, out, _ := runCmd(t, "-archive", db, "-list")
	if code != 0 {
		t.Fatalf("-list exit code = %d", code)
	}
	lines := strings.Split(strings.TrimSpace(out), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "#1 core.upgrade") || !strings.HasPrefix(lines[1], "#2 irc.upgrade") {
		t.Fatalf("-list output = %q", out)
	}
}

func TestRun_missingFileIsNotArchived(t *testing.T) {
	dir := t.TempDir()
	db := filepath.Join(t.TempDir(), "archive.db")

	code, _, errOut := runCmd(t, "-data-dir", dir, "-archive", db, "nope")
	if code != 1 || !strings.Contains(errOut, "no such file") {
		t.Fatalf("exit code = %d, stderr = %q", code, errOut)
	}
	if strings.Contains(errOut, "upgradedump: archive:") {
		t.Fatalf("missing file was archived: %q", errOut)
	}

	code, out, _ := runCmd(t, "-archive", db, "-list")
	if code != 0 || out != "" {
		t.Fatalf("-list exit code = %d, stdout = %q", code, out)
	}
}

func TestRun_configFile(t *testing.T) {
	dir := t.TempDir()
	save(t, dir, "relay")
	cfg := filepath.Join(t.TempDir(), "upgrade.yaml")
	if err := os.WriteFile(cfg, []byte("data-dir: "+dir+"\nname: relay\nlog:\n  level: debug\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	code, out, _ := runCmd(t, "-config", cfg)
	if code != 0 || !strings.Contains(out, `string name = "libera"`) {
		t.Fatalf("exit code = %d, stdout = %q", code, out)
	}
}

func TestRun_usageErrors(t *testing.T) {
	for _, args := range [][]string{
		{"-nope"},
		{"-format", "xml"},
		{"-list"},
		{"-config", "missing.toml"},
	} {
		if code, _, _ := runCmd(t, args...); code != 2 {
			t.Errorf("run(%q) = %d, wanted 2", args, code)
		}
	}
}

func TestResolve(t *testing.T) {
	tests := []struct{ name, e string }{
		{"core", filepath.Join("data", "core.upgrade")},
		{"x.upgrade", "x.upgrade"},
		{"other/x", "other/x"},
	}
	for _, tt := range tests {
		if a := resolve("data", tt.name); a != tt.e {
			t.Errorf("resolve(%q) = %q, wanted %q", tt.name, a, tt.e)
		}
	}
}
