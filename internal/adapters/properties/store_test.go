package properties

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/craftplane/craftplane/internal/core/domain"
)

const sampleDoc = `#Minecraft server properties
#Mon Jan 06 12:00:00 UTC 2025
allow-flight=false
difficulty=easy
gamemode=survival
level-name=world
max-players=20
motd=A Minecraft Server
some-modded-key=keepme
rcon.port=25575
this line is malformed
view-distance=10
`

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return s
}

func TestRoundTripIsByteIdentical(t *testing.T) {
	doc := ParseDocument(sampleDoc)
	if got := doc.String(); got != sampleDoc {
		t.Errorf("round trip changed document:\n got: %q\nwant: %q", got, sampleDoc)
	}
}

func TestWriteThenRead(t *testing.T) {
	s := newTestStore(t)
	doc := ParseDocument(sampleDoc)
	if err := s.Write("inst-1", doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := s.Read("inst-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got.String() != sampleDoc {
		t.Errorf("Read after Write = %q, want %q", got.String(), sampleDoc)
	}
}

func TestReadMissingInstance(t *testing.T) {
	s := newTestStore(t)
	if _, err := s.Read("nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

func TestMergeUpdateEmptyIsNoOp(t *testing.T) {
	s := newTestStore(t)
	doc := ParseDocument(sampleDoc)
	if err := s.MergeUpdate(doc, nil); err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}
	if doc.String() != sampleDoc {
		t.Error("empty MergeUpdate changed the document")
	}
}

func TestMergeUpdatePreservesUnknownKeys(t *testing.T) {
	s := newTestStore(t)
	doc := ParseDocument(sampleDoc)

	err := s.MergeUpdate(doc, map[string]string{
		"difficulty":  "hard",
		"max_players": "40",
	})
	if err != nil {
		t.Fatalf("MergeUpdate: %v", err)
	}

	if v, _ := doc.Get("difficulty"); v != "hard" {
		t.Errorf("difficulty = %q, want %q", v, "hard")
	}
	if v, _ := doc.Get("max-players"); v != "40" {
		t.Errorf("max-players = %q, want %q", v, "40")
	}
	// Untouched and unrecognized content survives, in order.
	if v, _ := doc.Get("some-modded-key"); v != "keepme" {
		t.Errorf("some-modded-key = %q, want %q", v, "keepme")
	}
	if v, _ := doc.Get("rcon.port"); v != "25575" {
		t.Errorf("rcon.port = %q, want %q", v, "25575")
	}
	if !strings.Contains(doc.String(), "this line is malformed\n") {
		t.Error("malformed line was dropped")
	}
	if !strings.HasPrefix(doc.String(), "#Minecraft server properties\n") {
		t.Error("leading comment was dropped")
	}
}

func TestMergeUpdateRejectsUnknownField(t *testing.T) {
	s := newTestStore(t)
	doc := ParseDocument(sampleDoc)
	if err := s.MergeUpdate(doc, map[string]string{"server_port": "25565"}); err == nil {
		t.Error("unmapped field was silently accepted")
	}
}

func TestFieldValuesTranslation(t *testing.T) {
	s := newTestStore(t)
	doc := ParseDocument(sampleDoc)
	vals := s.FieldValues(doc)
	if vals["max_players"] != "20" {
		t.Errorf("max_players = %q, want %q", vals["max_players"], "20")
	}
	if vals["level_name"] != "world" {
		t.Errorf("level_name = %q, want %q", vals["level_name"], "world")
	}
	if _, leaked := vals["some-modded-key"]; leaked {
		t.Error("unmapped key leaked into field values")
	}
}

func TestWriteIsAtomicReplacement(t *testing.T) {
	s := newTestStore(t)
	doc := ParseDocument("motd=first\n")
	if err := s.Write("inst-1", doc); err != nil {
		t.Fatalf("Write: %v", err)
	}
	doc.Set("motd", "second")
	if err := s.Write("inst-1", doc); err != nil {
		t.Fatalf("second Write: %v", err)
	}

	got, err := s.Read("inst-1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if v, _ := got.Get("motd"); v != "second" {
		t.Errorf("motd = %q, want %q", v, "second")
	}

	// No temp files left behind.
	entries, err := os.ReadDir(filepath.Join(s.root, "inst-1"))
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, e := range entries {
		if e.Name() != fileName {
			t.Errorf("stray file %q in instance dir", e.Name())
		}
	}
}

func TestValidateFieldsRejectsDuplicates(t *testing.T) {
	_, err := validateFields([]Field{
		{"motd", "motd"},
		{"motd", "level-name"},
	})
	if err == nil {
		t.Error("duplicate field name accepted")
	}
	_, err = validateFields([]Field{
		{"a", "motd"},
		{"b", "motd"},
	})
	if err == nil {
		t.Error("duplicate properties key accepted")
	}
}
