package payload

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

type body struct {
	Kind   string         `json:"kind" msgpack:"kind"`
	At     time.Time      `json:"at" msgpack:"at"`
	Fields map[string]any `json:"fields" msgpack:"fields"`
}

func TestCodecsKeepIntegers(t *testing.T) {
	in := body{
		Kind:   "temp_room_created",
		At:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
		Fields: map[string]any{"owner_id": int64(1234567890123456789)},
	}

	for _, codec := range []Codec{JSON{}, MsgPack{}} {
		t.Run(codec.ContentType(), func(t *testing.T) {
			data, err := codec.Encode(in)
			if err != nil {
				t.Fatal(err)
			}
			var out body
			if err := codec.Decode(data, &out); err != nil {
				t.Fatal(err)
			}
			if out.Kind != in.Kind || !out.At.Equal(in.At) {
				t.Errorf("got %+v", out)
			}

			var id int64
			switch v := out.Fields["owner_id"].(type) {
			case json.Number:
				id, err = v.Int64()
			case int64:
				id = v
			case uint64:
				id = int64(v)
			default:
				t.Fatalf("owner_id decoded as %T", v)
			}
			if err != nil || id != 1234567890123456789 {
				t.Errorf("owner_id = %d, %v", id, err)
			}
		})
	}
}

func TestRegistry(t *testing.T) {
	if diff := cmp.Diff(MsgPack{}, MustGet("application/msgpack")); diff != "" {
		t.Errorf("msgpack lookup (-want +got):\n%s", diff)
	}
	if _, ok := MustGet("text/plain").(JSON); !ok {
		t.Error("unknown content type did not fall back to JSON")
	}
	if _, ok := Get("text/plain"); ok {
		t.Error("unknown content type reported as registered")
	}
}
