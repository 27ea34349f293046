package main

import (
	"log/slog"
	"testing"

	"solaire/config"
	"solaire/core/events"
	"solaire/observability/logging"
)

func TestEventAttrsSortsAndMasks(t *testing.T) {
	evt := events.IBANRegistered{Token: "EURS", Account: [20]byte{1}, IBAN: "DE89370400440532013000"}
	attrs := eventAttrs(evt)
	if len(attrs) < 2 {
		t.Fatalf("expected attributes, got %v", attrs)
	}
	first, ok := attrs[0].(slog.Attr)
	if !ok || first.Key != "type" || first.Value.String() != events.TypeIBANRegistered {
		t.Fatalf("unexpected first attribute %v", attrs[0])
	}
	prev := ""
	for _, raw := range attrs[1:] {
		attr := raw.(slog.Attr)
		if attr.Key < prev {
			t.Fatalf("attributes not sorted: %q after %q", attr.Key, prev)
		}
		prev = attr.Key
		if attr.Key == "iban" && attr.Value.String() != logging.MaskIBAN("DE89370400440532013000") {
			t.Fatalf("iban not masked: %s", attr.Value.String())
		}
	}
}

func TestEventAttrsUntypedEvent(t *testing.T) {
	attrs := eventAttrs(untyped{})
	if len(attrs) != 1 {
		t.Fatalf("expected only the type attribute, got %v", attrs)
	}
}

type untyped struct{}

func (untyped) EventType() string { return "test.untyped" }

func TestLoggingOptions(t *testing.T) {
	opts := loggingOptions(config.Logging{Level: "debug"})
	if opts.Level != slog.LevelDebug || opts.File != nil {
		t.Fatalf("unexpected options %+v", opts)
	}
	opts = loggingOptions(config.Logging{File: "/tmp/solaired.log", MaxSizeMB: 5})
	if opts.File == nil || opts.File.MaxSizeMB != 5 {
		t.Fatalf("expected rotating file options, got %+v", opts.File)
	}
}
