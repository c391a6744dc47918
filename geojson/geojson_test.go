package geojson

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestWrite(t *testing.T) {
	features := []Feature{
		NewFeature(Point(-122.419, 37.74), map[string]interface{}{"mac": "aa:bb:cc:dd:ee:ff"}),
	}

	var buf bytes.Buffer
	if err := Write(&buf, features); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	want := `{
  "type": "FeatureCollection",
  "features": [
    {
      "type": "Feature",
      "geometry": {
        "type": "Point",
        "coordinates": [
          -122.419,
          37.74
        ]
      },
      "properties": {
        "mac": "aa:bb:cc:dd:ee:ff"
      }
    }
  ]
}
`
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWrite_Empty(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, nil); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	want := map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestWriteFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.geojson")
	if err := WriteFile(path, []Feature{NewFeature(Point(1, 2), nil)}); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"properties": null`) {
		t.Errorf("unexpected file content: %s", data)
	}
}

func TestWriteFile_BadPath(t *testing.T) {
	err := WriteFile(filepath.Join(t.TempDir(), "missing", "out.geojson"), nil)
	if err == nil {
		t.Fatal("Expected error for missing directory")
	}
}
