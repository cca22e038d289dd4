package loader_test

import (
	"bytes"
	"strings"
	"testing"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/testutil"
)

// Run with: go test -fuzz=FuzzParseTrace -fuzztime=1m ./pkg/loader/

var quiet = loader.ParseOptions{WarningHandler: func(string) {}}

func FuzzParseTrace(f *testing.F) {
	seeds := []string{
		`[]`,
		`[{"workgroup_id":1,"wavefront_id":2,"simd_id":3,"asm":"s_nop 0","events":[{"stage":1,"time":0}]}]`,
		`[{"asm":"s_endpgm"}]`,
		`[{"asm":"x","events":null}]`,
		`[{"asm":"x","events":"oops"}]`,
		`[1, "two", null, {}]`,
		`[{"events":[{"stage":99,"time":-1},{"stage":2,"time":1e308}]}]`,
		"\xef\xbb\xbf[]",
		`{"not":"an array"}`,
		`[{"asm":"` + strings.Repeat("v", 4096) + `"}]`,
		``,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		raw, err := loader.ParseTrace(strings.NewReader(input), quiet)
		if err != nil {
			return
		}

		var buf bytes.Buffer
		if err := loader.EncodeTrace(&buf, raw); err != nil {
			t.Fatalf("encode parsed trace: %v", err)
		}
		again, err := loader.ParseTrace(&buf, quiet)
		if err != nil {
			t.Fatalf("re-parse encoded trace: %v", err)
		}
		if len(again) != len(raw) {
			t.Fatalf("round trip changed instruction count: %d -> %d", len(raw), len(again))
		}
	})
}

func FuzzParseTraceLines(f *testing.F) {
	seeds := []string{
		"",
		"\n\n",
		`{"asm":"s_nop 0","events":[{"stage":1,"time":0}]}` + "\n" + `{BAD}` + "\n",
		`{"asm":"x","events":{}}`,
		"\xef\xbb\xbf" + `{"asm":"bom"}`,
		"   \t  \n" + `{"asm":"y"}`,
	}
	for _, s := range seeds {
		f.Add(s)
	}

	f.Fuzz(func(t *testing.T, input string) {
		raw, err := loader.ParseTraceLines(strings.NewReader(input), quiet)
		if err != nil {
			t.Fatalf("in-memory input should never fail: %v", err)
		}
		if lines := strings.Count(input, "\n") + 1; len(raw) > lines {
			t.Fatalf("%d instructions from %d lines", len(raw), lines)
		}
	})
}

func FuzzParseMsgpack(f *testing.F) {
	var valid bytes.Buffer
	if err := loader.EncodeMsgpack(&valid, testutil.Fixed()); err != nil {
		f.Fatal(err)
	}
	f.Add(valid.Bytes())
	f.Add([]byte{})
	f.Add([]byte{4, 0, 0, 0, 0xc1, 0xc1, 0xc1, 0xc1})
	f.Add([]byte{0xff, 0xff, 0xff, 0xff})
	f.Add(valid.Bytes()[:valid.Len()-1])

	f.Fuzz(func(t *testing.T, data []byte) {
		raw, err := loader.ParseMsgpack(bytes.NewReader(data), quiet)
		if err != nil {
			return
		}

		var buf bytes.Buffer
		if err := loader.EncodeMsgpack(&buf, raw); err != nil {
			t.Fatalf("encode parsed trace: %v", err)
		}
		again, err := loader.ParseMsgpack(&buf, quiet)
		if err != nil {
			t.Fatalf("re-parse encoded trace: %v", err)
		}
		if len(again) != len(raw) {
			t.Fatalf("round trip changed instruction count: %d -> %d", len(raw), len(again))
		}
	})
}
