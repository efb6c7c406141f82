package logger

import (
	"context"
	"testing"
)

func TestContextWithLogger(t *testing.T) {
	ctx, rlog := ContextWithLogger(context.Background())
	if rlog == nil {
		t.Fatal("no logger created")
	}
	id := RequestIDFromContext(ctx)
	if id == "" {
		t.Fatal("no request id assigned")
	}

	// a context that already carries a logger keeps it
	ctx2, rlog2 := ContextWithLogger(ctx)
	if ctx2 != ctx || rlog2 != rlog {
		t.Fatal("existing logger should be reused")
	}
	if RequestIDFromContext(ctx2) != id {
		t.Fatal("request id changed")
	}
}

func TestFromContext(t *testing.T) {
	if FromContext(nil) == nil {
		t.Fatal("nil context should yield the default logger")
	}
	if FromContext(context.Background()) == nil {
		t.Fatal("plain context should yield the default logger")
	}
	if RequestIDFromContext(context.Background()) != "" {
		t.Fatal("plain context should have no request id")
	}
}
