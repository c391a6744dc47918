package wloc

import (
	"fmt"
	"testing"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/dynamicpb"
)

func benchmarkMACs(n int) []string {
	macs := make([]string, n)
	for i := range macs {
		macs[i] = fmt.Sprintf("02:00:00:00:%02x:%02x", i>>8&0xff, i&0xff)
	}
	return macs
}

func benchmarkResponse(tb testing.TB, n int) ([]ResponseWifi, []byte) {
	wifis := make([]ResponseWifi, n)
	for i, mac := range benchmarkMACs(n) {
		wifis[i] = ResponseWifi{
			MAC:      mac,
			Channel:  int32(i%165 + 1),
			Location: Location{Latitude: 4852000000 + int64(i), Longitude: 235000000 - int64(i), Accuracy: 30},
		}
	}
	raw, err := EncodeResponse(&Response{Wifis: wifis})
	if err != nil {
		tb.Fatalf("EncodeResponse failed: %v", err)
	}
	return wifis, raw
}

func BenchmarkEncodeRequest_Codec(b *testing.B) {
	macs := benchmarkMACs(100)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		if _, err := EncodeRequest(macs); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkEncodeRequest_DynamicPB(b *testing.B) {
	macs := benchmarkMACs(100)
	md := referenceMessage(b, "Request")
	fields := md.Fields()
	macField := md.Messages().ByName("RequestWifi").Fields().ByName("mac")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg := dynamicpb.NewMessage(md)
		wifis := msg.Mutable(fields.ByName("wifis")).List()
		for _, mac := range macs {
			entry := wifis.NewElement()
			entry.Message().Set(macField, protoreflect.ValueOfString(mac))
			wifis.Append(entry)
		}
		msg.Set(fields.ByName("noise"), protoreflect.ValueOfInt32(DefaultNoise))
		msg.Set(fields.ByName("signal"), protoreflect.ValueOfInt32(DefaultSignal))
		if _, err := proto.Marshal(msg); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeResponse_Codec(b *testing.B) {
	_, raw := benchmarkResponse(b, 100)
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := DecodeResponse(raw); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkDecodeResponse_DynamicPB(b *testing.B) {
	_, raw := benchmarkResponse(b, 100)
	offset, err := PayloadOffset(raw)
	if err != nil {
		b.Fatal(err)
	}
	md := referenceMessage(b, "Response")

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		msg := dynamicpb.NewMessage(md)
		if err := proto.Unmarshal(raw[offset:], msg); err != nil {
			b.Fatal(err)
		}
	}
}

// TestBenchmarkFixtures checks both sides of the benchmarks decode the same data.
func TestBenchmarkFixtures(t *testing.T) {
	want, raw := benchmarkResponse(t, 300)

	got, err := DecodeResponse(raw)
	if err != nil {
		t.Fatalf("DecodeResponse failed: %v", err)
	}
	if len(got) != len(want) {
		t.Fatalf("decoded %d records, want %d", len(got), len(want))
	}
	if got[299] != want[299] {
		t.Errorf("last record = %+v, want %+v", got[299], want[299])
	}

	offset, err := PayloadOffset(raw)
	if err != nil {
		t.Fatal(err)
	}
	md := referenceMessage(t, "Response")
	msg := dynamicpb.NewMessage(md)
	if err := proto.Unmarshal(raw[offset:], msg); err != nil {
		t.Fatalf("reference decode failed: %v", err)
	}
	if n := msg.Get(md.Fields().ByName("wifis")).List().Len(); n != len(want) {
		t.Errorf("reference decoded %d records, want %d", n, len(want))
	}
}
