package cli

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/yash-srivastava19/canopy/internal/bucket"
	"github.com/yash-srivastava19/canopy/internal/command"
	"github.com/yash-srivastava19/canopy/internal/notes"
)

// sandbox points config at a temp data dir and returns it.
func sandbox(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(dir, "config"))
	t.Setenv("CANOPY_CONFIG", "")
	t.Setenv("CANOPY_DATA_DIR", filepath.Join(dir, "data"))
	t.Setenv("CANOPY_EDITOR", "true")
	return filepath.Join(dir, "data")
}

func run(t *testing.T, args ...string) error {
	t.Helper()
	root := NewRoot(BuildInfo{Version: "test", Commit: "none", Date: "unknown"})
	root.SetArgs(args)
	root.SetOut(os.Stderr)
	return root.ExecuteContext(context.Background())
}

func listNotes(t *testing.T, data string) []notes.Note {
	t.Helper()
	f, err := bucket.NewFiles(filepath.Join(data, "notes"), nil)
	if err != nil {
		t.Fatal(err)
	}
	list, err := f.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return list
}

func TestBuildPayload(t *testing.T) {
	tests := []struct {
		args    []string
		want    string
		wantErr bool
	}{
		{[]string{"toggleNavigation"}, `{"action":"toggleNavigation"}`, false},
		{[]string{"search", "query=todo"}, `{"action":"search","query":"todo"}`, false},
		{[]string{"selectTag", `tag="work"`}, `{"action":"selectTag","tag":"work"}`, false},
		{[]string{"setFontSize", "size=18"}, `{"action":"setFontSize","size":18}`, false},
		{[]string{`{"action":"search","query":"x"}`}, `{"action":"search","query":"x"}`, false},
		{[]string{"search", "query"}, "", true},
		{[]string{"search", "=x"}, "", true},
		{[]string{`{"query":"x"}`}, "", true},
	}
	for _, tt := range tests {
		got, err := buildPayload(tt.args)
		if tt.wantErr {
			if err == nil {
				t.Errorf("buildPayload(%q): expected error", tt.args)
			}
			continue
		}
		if err != nil {
			t.Errorf("buildPayload(%q): %v", tt.args, err)
			continue
		}
		if _, err := command.Parse(got); err != nil {
			t.Errorf("buildPayload(%q) does not parse: %v", tt.args, err)
		}
		var a, b any
		_ = json.Unmarshal(got, &a)
		_ = json.Unmarshal([]byte(tt.want), &b)
		aj, _ := json.Marshal(a)
		bj, _ := json.Marshal(b)
		if string(aj) != string(bj) {
			t.Errorf("buildPayload(%q) = %s, want %s", tt.args, got, tt.want)
		}
	}
}

func TestShortID(t *testing.T) {
	if got := shortID("0b6f3c1e-4a2d-4e8f-9c3a-1d2e3f4a5b6c"); got != "0b6f3c1e" {
		t.Errorf("uuid: got %q", got)
	}
	if got := shortID("daily-2024-01-15"); got != "daily-2024-01-15" {
		t.Errorf("daily: got %q", got)
	}
}

func TestNewCreatesNoteAndTags(t *testing.T) {
	data := sandbox(t)
	if err := run(t, "new", "--no-edit", "--template", "meeting", "--tag", "work", "Sprint", "planning"); err != nil {
		t.Fatal(err)
	}
	list := listNotes(t, data)
	if len(list) != 1 {
		t.Fatalf("expected 1 note, got %d", len(list))
	}
	n := list[0]
	if !strings.HasPrefix(n.Content, "# Sprint planning") {
		t.Errorf("content = %q", n.Content)
	}
	if !n.HasTag("work") {
		t.Errorf("tags = %v", n.Tags)
	}

	tags, err := bucket.NewTagDisk(filepath.Join(data, "tags")).List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := notes.FindTag(tags, "work"); !ok {
		t.Errorf("tag record missing: %v", tags)
	}

	if err := run(t, "edit", n.ID[:8]); err != nil {
		t.Errorf("edit by prefix: %v", err)
	}
	if err := run(t, "show", "--raw", n.ID); err != nil {
		t.Errorf("show: %v", err)
	}
}

func TestAppendToToday(t *testing.T) {
	data := sandbox(t)
	if err := run(t, "add", "buy", "milk"); err != nil {
		t.Fatal(err)
	}
	if err := run(t, "add", "call", "mom"); err != nil {
		t.Fatal(err)
	}
	list := listNotes(t, data)
	if len(list) != 1 {
		t.Fatalf("expected one daily note, got %d", len(list))
	}
	n := list[0]
	if n.ID != dailyID(time.Now()) {
		t.Errorf("id = %q", n.ID)
	}
	if !strings.Contains(n.Content, "buy milk\n") || !strings.Contains(n.Content, "call mom\n") {
		t.Errorf("content = %q", n.Content)
	}
	if strings.Index(n.Content, "buy milk") > strings.Index(n.Content, "call mom") {
		t.Error("entries out of order")
	}
	if !n.HasTag("daily") {
		t.Errorf("tags = %v", n.Tags)
	}
}

func TestTrashRestoreRemove(t *testing.T) {
	data := sandbox(t)
	if err := run(t, "new", "--no-edit", "Doomed"); err != nil {
		t.Fatal(err)
	}
	id := listNotes(t, data)[0].ID

	if err := run(t, "rm", id); err == nil {
		t.Error("rm of a live note should need --force")
	}
	if err := run(t, "trash", id); err != nil {
		t.Fatal(err)
	}
	if !listNotes(t, data)[0].Deleted {
		t.Error("note not trashed")
	}
	if err := run(t, "restore", id); err != nil {
		t.Fatal(err)
	}
	if listNotes(t, data)[0].Deleted {
		t.Error("note not restored")
	}
	if err := run(t, "history", id); err != nil {
		t.Errorf("history: %v", err)
	}
	if err := run(t, "rm", "--force", id); err != nil {
		t.Fatal(err)
	}
	if got := listNotes(t, data); len(got) != 0 {
		t.Errorf("expected no notes, got %d", len(got))
	}
	if err := run(t, "show", id); err == nil {
		t.Error("show of a removed note should fail")
	}
}

func TestListSearchExport(t *testing.T) {
	sandbox(t)
	for _, title := range []string{"Alpha release", "Beta notes"} {
		if err := run(t, "new", "--no-edit", "--tag", "work", title); err != nil {
			t.Fatal(err)
		}
	}
	for _, args := range [][]string{
		{"list"},
		{"list", "--sort", "alphabetical", "-r"},
		{"list", "--trash"},
		{"search", "release"},
		{"tags"},
		{"stats"},
		{"version", "-s"},
	} {
		if err := run(t, args...); err != nil {
			t.Errorf("%v: %v", args, err)
		}
	}
	if err := run(t, "search", "nothing-matches-this"); err == nil {
		t.Error("search without matches should fail")
	}

	out := filepath.Join(t.TempDir(), "out.zip")
	if err := run(t, "export", out); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(out)
	if err != nil || info.Size() == 0 {
		t.Errorf("archive missing: %v", err)
	}
}

func TestEnsureWelcome(t *testing.T) {
	data := sandbox(t)
	r, err := openRuntime(&rootOptions{}, logOneShot)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	ctx := context.Background()
	ensureWelcome(ctx, r)
	ensureWelcome(ctx, r)
	list := listNotes(t, data)
	if len(list) != 1 {
		t.Fatalf("expected one welcome note, got %d", len(list))
	}
	if !list[0].Pinned() || !list[0].Markdown() {
		t.Errorf("system tags = %v", list[0].SystemTags)
	}
}

func TestAuthClient(t *testing.T) {
	sandbox(t)
	t.Setenv("USER", "ada")
	r, err := openRuntime(&rootOptions{}, logOneShot)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	client, local, err := r.authClient()
	if err != nil {
		t.Fatal(err)
	}
	if local != nil || client.Account() != "ada" {
		t.Errorf("without an account: client=%v local=%v", client, local)
	}
	if ok, _ := client.IsAuthorized(); !ok {
		t.Error("open client should be authorized")
	}
}
