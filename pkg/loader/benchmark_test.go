package loader_test

import (
	"bytes"
	"fmt"
	"io"
	"testing"

	"github.com/vanderheijden86/pipetrace/pkg/loader"
	"github.com/vanderheijden86/pipetrace/pkg/model"
	"github.com/vanderheijden86/pipetrace/pkg/testutil"
)

type codec struct {
	name   string
	encode func(io.Writer, []model.RawInstruction) error
	parse  func(io.Reader, loader.ParseOptions) ([]model.RawInstruction, error)
}

var codecs = []codec{
	{"json", loader.EncodeTrace, loader.ParseTrace},
	{"jsonl", loader.EncodeTraceLines, loader.ParseTraceLines},
	{"msgpack", loader.EncodeMsgpack, loader.ParseMsgpack},
}

func BenchmarkParse(b *testing.B) {
	for _, c := range codecs {
		for _, size := range []int{100, 1000, 10000} {
			b.Run(fmt.Sprintf("%s/instructions=%d", c.name, size), func(b *testing.B) {
				raw := testutil.New(testutil.GeneratorConfig{Seed: 1, Instructions: size}).Trace()
				var buf bytes.Buffer
				if err := c.encode(&buf, raw); err != nil {
					b.Fatal(err)
				}
				data := buf.Bytes()

				b.SetBytes(int64(len(data)))
				b.ReportAllocs()
				b.ResetTimer()
				for i := 0; i < b.N; i++ {
					got, err := c.parse(bytes.NewReader(data), quiet)
					if err != nil {
						b.Fatal(err)
					}
					if len(got) != len(raw) {
						b.Fatalf("got %d instructions, want %d", len(got), len(raw))
					}
				}
			})
		}
	}
}

func BenchmarkSelect(b *testing.B) {
	raw := testutil.New(testutil.GeneratorConfig{Seed: 1, Instructions: 10000}).Trace()
	r := model.Range{Start: 0, End: 5e-6}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		loader.Select(raw, r)
	}
}
