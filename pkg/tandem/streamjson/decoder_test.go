package streamjson_test

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/tandem-dev/tandem/pkg/tandem/streamjson"
	"github.com/tandem-dev/tandem/pkg/tandemerrs"
)

func readAll(t *testing.T, d *streamjson.Decoder) ([]map[string]any, error) {
	t.Helper()

	var out []map[string]any
	for {
		msg, err := d.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, msg)
	}
}

func TestDecoderValidInput(t *testing.T) {
	input := `{"type":"user","session_id":"s","message":{"role":"user","content":[{"type":"text","text":"hi"}]},"parent_tool_use_id":null}` + "\n"

	d := streamjson.NewDecoder(strings.NewReader(input))
	msgs, err := readAll(t, d)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("yielded %d messages, want 1", len(msgs))
	}
	if msgs[0]["type"] != "user" {
		t.Errorf("type = %v, want user", msgs[0]["type"])
	}
	if msgs[0]["session_id"] != "s" {
		t.Errorf("session_id = %v, want s", msgs[0]["session_id"])
	}
	if v, ok := msgs[0]["parent_tool_use_id"]; !ok || v != nil {
		t.Errorf("parent_tool_use_id = %v, want explicit null", v)
	}
}

func TestDecoderWhitespaceTolerance(t *testing.T) {
	plain := `{"type":"a"}` + "\n" + `{"type":"b"}` + "\n"
	noisy := "\n   \n\t\t\n  " + `{"type":"a"}` + "  \n\n" + "\t" + `{"type":"b"}` + "\t\n   \n"

	parse := func(input string) []string {
		d := streamjson.NewDecoder(strings.NewReader(input))
		msgs, err := readAll(t, d)
		if err != nil {
			t.Fatalf("Read() error = %v", err)
		}
		types := make([]string, len(msgs))
		for i, m := range msgs {
			types[i] = m["type"].(string)
		}

		return types
	}

	got, want := parse(noisy), parse(plain)
	if len(got) != len(want) {
		t.Fatalf("yielded %d messages, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("message %d type = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestDecoderRejectsNonObjects(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		wantCode tandemerrs.ErrorCode
	}{
		{
			name:     "bare string",
			input:    `"just a string"` + "\n",
			wantCode: tandemerrs.ErrCodeNotAnObject,
		},
		{
			name:     "null",
			input:    "null\n",
			wantCode: tandemerrs.ErrCodeNotAnObject,
		},
		{
			name:     "array reports missing type field",
			input:    "[1,2,3]\n",
			wantCode: tandemerrs.ErrCodeMissingType,
		},
		{
			name:     "malformed JSON",
			input:    "{not json}\n",
			wantCode: tandemerrs.ErrCodeMalformedJSON,
		},
		{
			name:     "numeric type field",
			input:    `{"type":42}` + "\n",
			wantCode: tandemerrs.ErrCodeMissingType,
		},
		{
			name:     "missing type field",
			input:    `{"id":1}` + "\n",
			wantCode: tandemerrs.ErrCodeMissingType,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := streamjson.NewDecoder(strings.NewReader(tt.input))
			_, err := d.Read()
			if err == nil {
				t.Fatal("Read() succeeded, want parse error")
			}
			if !tandemerrs.HasCode(err, tt.wantCode) {
				t.Errorf("error = %v, want code %s", err, tt.wantCode)
			}
		})
	}
}

func TestDecoderFailFast(t *testing.T) {
	input := `{"type":"a"}` + "\nnot json\n" + `{"type":"b"}` + "\n"

	d := streamjson.NewDecoder(strings.NewReader(input))

	if _, err := d.Read(); err != nil {
		t.Fatalf("first Read() error = %v", err)
	}

	_, err := d.Read()
	if err == nil {
		t.Fatal("second Read() succeeded, want parse error")
	}

	// The stream is dead: the line after the bad one is never
	// consumed and the same error repeats.
	_, again := d.Read()
	if !errors.Is(again, err) && again.Error() != err.Error() {
		t.Errorf("third Read() error = %v, want repeat of %v", again, err)
	}
}

func TestDecoderParseErrorCarriesLine(t *testing.T) {
	d := streamjson.NewDecoder(strings.NewReader("  [1,2,3]  \n"))

	_, err := d.Read()
	if err == nil {
		t.Fatal("Read() succeeded, want parse error")
	}

	var pe *streamjson.ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("error %v does not wrap a ParseError", err)
	}
	if pe.Line != "[1,2,3]" {
		t.Errorf("offending line = %q, want trimmed [1,2,3]", pe.Line)
	}
}

func TestDecoderStream(t *testing.T) {
	input := `{"type":"a"}` + "\n" + `{"type":"b"}` + "\n"

	d := streamjson.NewDecoder(strings.NewReader(input))
	msgCh, errCh := d.Stream(context.Background())

	var types []string
	for msg := range msgCh {
		types = append(types, msg["type"].(string))
	}
	if err := <-errCh; err != nil {
		t.Fatalf("stream error = %v", err)
	}
	if len(types) != 2 || types[0] != "a" || types[1] != "b" {
		t.Errorf("types = %v, want [a b]", types)
	}
}
