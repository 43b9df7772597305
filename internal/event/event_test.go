package event

import "testing"

func TestParseTypeRoundTrip(t *testing.T) {
	for _, typ := range []Type{TypeCreated, TypeDeleted, TypeMetadataUpdated, TypePropertiesUpdated, TypeRenamed} {
		if got := ParseType(typ.String()); got != typ {
			t.Fatalf("ParseType(%q) = %v, want %v", typ.String(), got, typ)
		}
	}
}

func TestParseTypeUnknownTag(t *testing.T) {
	for _, raw := range []string{"", "BlobTierChanged", "blobcreated"} {
		if got := ParseType(raw); got != TypeUnknown {
			t.Fatalf("ParseType(%q) = %v, want TypeUnknown", raw, got)
		}
	}
	if got := TypeUnknown.String(); got != "Unknown" {
		t.Fatalf("TypeUnknown.String() = %q", got)
	}
}

func TestSubjectSplit(t *testing.T) {
	cases := []struct {
		subject   string
		container string
		path      string
	}{
		{"/containers/pics/blobs/2024/cat.jpg", "pics", "2024/cat.jpg"},
		{"/subscriptions/x/containers/logs/blobs/a", "logs", "a"},
		{"/containers/pics", "pics", ""},
		{"not a subject", "", ""},
		{"", "", ""},
	}
	for _, c := range cases {
		ev := Event{Subject: c.subject}
		if ev.Container() != c.container || ev.Path() != c.path {
			t.Fatalf("subject %q: container=%q path=%q, want %q/%q",
				c.subject, ev.Container(), ev.Path(), c.container, c.path)
		}
	}
}
