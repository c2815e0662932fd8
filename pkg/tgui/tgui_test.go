package tgui

import "testing"

func TestDataSplitDataRoundTrip(t *testing.T) {
	t.Parallel()
	tests := []struct {
		scope, action, payload string
	}{
		{"post", "approve", "ab12cd34ef56"},
		{"post", "quick_edit", "ab12cd34ef56|shorter"},
		{"post", "back_to_post", ""},
	}
	for _, tt := range tests {
		data := Data(tt.scope, tt.action, tt.payload)
		s, a, p, ok := SplitData(data)
		if !ok || s != tt.scope || a != tt.action || p != tt.payload {
			t.Errorf("SplitData(%q) = (%q, %q, %q, %v)", data, s, a, p, ok)
		}
	}
}

func TestSplitDataPayloadKeepsColons(t *testing.T) {
	t.Parallel()
	_, _, p, ok := SplitData("post:open:a:b:c")
	if !ok || p != "a:b:c" {
		t.Fatalf("payload = %q, ok = %v", p, ok)
	}
}

func TestSplitDataMalformed(t *testing.T) {
	t.Parallel()
	for _, data := range []string{"", "post", ":action:x"} {
		if _, _, _, ok := SplitData(data); ok {
			t.Errorf("SplitData(%q) accepted", data)
		}
	}
}

func TestEscaping(t *testing.T) {
	t.Parallel()
	if got := B(`<x> & "y"`).String(); got != "<b>&lt;x&gt; &amp; &#34;y&#34;</b>" {
		t.Fatalf("B = %q", got)
	}
	if got := Code("a<b").String(); got != "<code>a&lt;b</code>" {
		t.Fatalf("Code = %q", got)
	}
	if got := JoinH(" ", Esc("a"), Raw("<b>x</b>")).String(); got != "a <b>x</b>" {
		t.Fatalf("JoinH = %q", got)
	}
}
