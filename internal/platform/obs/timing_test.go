package obs

import (
	"context"
	"errors"
	"testing"
)

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	if got := RequestID(ctx); got != "abc" {
		t.Fatalf("RequestID = %q, want %q", got, "abc")
	}
	if got := RequestID(context.Background()); got != "" {
		t.Fatalf("RequestID on empty ctx = %q, want empty", got)
	}
}

func TestTimeAcceptsNilAndError(t *testing.T) {
	done := Time(context.Background(), "test.op")
	done(nil)

	err := errors.New("boom")
	Time(context.Background(), "test.op")(&err)
}
