package shutterlink

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestDecoderSingleFrame(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("<ACK>"))
	if diff := cmp.Diff([]string{"ACK"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderDiscardsBytesOutsideFrames(t *testing.T) {
	var d Decoder
	got := d.Feed([]byte("garbage?!<OPEN>junk<CLOSED>trailing"))
	if diff := cmp.Diff([]string{"OPEN", "CLOSED"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderFrameSplitAcrossFeeds(t *testing.T) {
	var d Decoder
	if got := d.Feed([]byte("<AC")); len(got) != 0 {
		t.Fatalf("incomplete frame yielded %v", got)
	}
	got := d.Feed([]byte("K>"))
	if diff := cmp.Diff([]string{"ACK"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderBytePerByte(t *testing.T) {
	var d Decoder
	var got []string
	for _, b := range []byte("<STATUS>") {
		got = append(got, d.Feed([]byte{b})...)
	}
	if diff := cmp.Diff([]string{"STATUS"}, got); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderOverflowDropsExcessBytes(t *testing.T) {
	var d Decoder
	long := "<" + strings.Repeat("A", maxPayload+40) + ">"
	got := d.Feed([]byte(long))
	if len(got) != 1 {
		t.Fatalf("got %d payloads, want 1", len(got))
	}
	if len(got[0]) != maxPayload {
		t.Errorf("payload length = %d, want %d", len(got[0]), maxPayload)
	}
	// The decoder must be usable again after an oversized frame.
	next := d.Feed([]byte("<ACK>"))
	if diff := cmp.Diff([]string{"ACK"}, next); diff != "" {
		t.Errorf("post-overflow payload mismatch (-want +got):\n%s", diff)
	}
}

func TestDecoderResyncAfterNoise(t *testing.T) {
	var d Decoder
	// A start delimiter followed by noise and a stray end delimiter produces
	// one garbage payload, then clean traffic decodes normally.
	got := d.Feed([]byte("<no\x00ise>"))
	if len(got) != 1 {
		t.Fatalf("got %d payloads, want 1", len(got))
	}
	if _, known := ParseReply(got[0]); known {
		t.Errorf("noise payload %q parsed as a reply", got[0])
	}
	clean := d.Feed([]byte("<CLOSED>"))
	if diff := cmp.Diff([]string{"CLOSED"}, clean); diff != "" {
		t.Errorf("payload mismatch (-want +got):\n%s", diff)
	}
}

func TestFrameRoundTrip(t *testing.T) {
	var d Decoder
	for _, cmd := range []Command{CmdOpen, CmdClose, CmdStatus, CmdReset} {
		got := d.Feed(Frame(cmd))
		if len(got) != 1 {
			t.Fatalf("%s: got %d payloads, want 1", cmd, len(got))
		}
		parsed, ok := ParseCommand(got[0])
		if !ok || parsed != cmd {
			t.Errorf("round trip of %s gave %q (known=%v)", cmd, got[0], ok)
		}
	}
}

func TestParseReplyUnknown(t *testing.T) {
	if _, ok := ParseReply("BOGUS"); ok {
		t.Error("ParseReply accepted an unknown payload")
	}
}
