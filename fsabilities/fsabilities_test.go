package fsabilities_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/hostbridge/mcp-adapter/abilities"
	"github.com/hostbridge/mcp-adapter/fsabilities"
	"github.com/hostbridge/mcp-adapter/mcp"
)

func writeFile(t *testing.T, dir, name string, data []byte) {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func TestSyncRegistersFiles(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", []byte("# hello"))
	writeFile(t, dir, "sub/notes.txt", []byte("notes"))
	writeFile(t, dir, ".hidden", []byte("skip me"))

	reg := abilities.NewRegistry()
	p, err := fsabilities.New(reg, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	registered := p.Registered()
	if len(registered) != 2 {
		t.Fatalf("registered = %v, want 2 entries", registered)
	}
	if _, ok := registered[".hidden"]; ok {
		t.Error("hidden file registered")
	}

	name, ok := registered["readme.md"]
	if !ok {
		t.Fatal("readme.md not registered")
	}
	a, ok := reg.Get(name)
	if !ok {
		t.Fatalf("ability %q missing from registry", name)
	}
	meta := a.Meta()
	if meta.Type != abilities.TypeResource || !meta.Public {
		t.Errorf("meta = %+v", meta)
	}
	if meta.URI != "file://docs/readme.md" {
		t.Errorf("uri = %q", meta.URI)
	}
}

func TestExecuteReturnsTextForUTF8(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", []byte("# hello"))

	reg := abilities.NewRegistry()
	p, err := fsabilities.New(reg, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	a, _ := reg.Get(p.Registered()["readme.md"])
	result, err := a.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	contents, ok := result.(mcp.ResourceContents)
	if !ok {
		t.Fatalf("result type %T", result)
	}
	if contents.Text != "# hello" || contents.Blob != "" {
		t.Errorf("contents = %+v", contents)
	}
}

func TestExecuteReturnsBytesForBinary(t *testing.T) {
	dir := t.TempDir()
	binary := []byte{0xff, 0xfe, 0x00, 0x01}
	writeFile(t, dir, "blob.bin", binary)

	reg := abilities.NewRegistry()
	p, err := fsabilities.New(reg, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}

	a, _ := reg.Get(p.Registered()["blob.bin"])
	result, err := a.Execute(context.Background(), nil)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	b, ok := result.([]byte)
	if !ok {
		t.Fatalf("result type %T, want []byte", result)
	}
	if string(b) != string(binary) {
		t.Errorf("bytes = %v", b)
	}
}

func TestSyncIsIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", []byte("a"))

	reg := abilities.NewRegistry()
	p, err := fsabilities.New(reg, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	for i := 0; i < 3; i++ {
		if err := p.Sync(context.Background()); err != nil {
			t.Fatalf("Sync %d: %v", i, err)
		}
	}
	if got := len(p.Registered()); got != 1 {
		t.Errorf("registered = %d, want 1", got)
	}
	if got := len(reg.Names()); got != 1 {
		t.Errorf("abilities = %d, want 1", got)
	}
}

func TestNewRejectsMissingRoot(t *testing.T) {
	if _, err := fsabilities.New(abilities.NewRegistry(), filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestOnChangeNotifiesOnSync(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "readme.md", []byte("# hello"))
	writeFile(t, dir, "sub/notes.txt", []byte("notes"))

	reg := abilities.NewRegistry()
	p, err := fsabilities.New(reg, dir)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	added := make(map[string]bool)
	p.SetOnChange(func(_ context.Context, name string, isAdd bool) {
		if isAdd {
			added[name] = true
		} else {
			delete(added, name)
		}
	})

	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(added) != 2 {
		t.Fatalf("notified names = %v, want 2", added)
	}
	for _, name := range p.Registered() {
		if !added[name] {
			t.Errorf("registered ability %q never notified", name)
		}
	}

	// A repeated sync registers nothing new and must stay silent.
	before := len(added)
	if err := p.Sync(context.Background()); err != nil {
		t.Fatalf("Sync: %v", err)
	}
	if len(added) != before {
		t.Errorf("repeat sync changed notifications: %v", added)
	}
}
