package envfile

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestRead(t *testing.T) {
	path := filepath.Join(t.TempDir(), "appsettings.dev.env")
	content := `# gateway settings
GATEWAY_MODE=weighted

AZURE_OPENAI_ENDPOINT_0=https://one.example
malformed line
AZURE_OPENAI_ENDPOINT_0=https://override.example
EMPTY=
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	pairs, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	want := []Pair{
		{"GATEWAY_MODE", "weighted"},
		{"AZURE_OPENAI_ENDPOINT_0", "https://one.example"},
		{"AZURE_OPENAI_ENDPOINT_0", "https://override.example"},
		{"EMPTY", ""},
	}
	if !reflect.DeepEqual(pairs, want) {
		t.Fatalf("Read = %v, want %v", pairs, want)
	}

	m := ToMap(pairs)
	if m["AZURE_OPENAI_ENDPOINT_0"] != "https://override.example" {
		t.Fatalf("ToMap: later duplicate must win, got %q", m["AZURE_OPENAI_ENDPOINT_0"])
	}
}
