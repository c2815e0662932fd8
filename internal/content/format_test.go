package content

import (
	"strings"
	"testing"
)

func TestRenderHTMLBasicMarkdown(t *testing.T) {
	t.Parallel()
	got, err := RenderHTML("**Go 1.26** is _out_ with `go fix` updates.")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	for _, want := range []string{"<b>Go 1.26</b>", "<i>out</i>", "<code>go fix</code>"} {
		if !strings.Contains(got, want) {
			t.Errorf("output %q missing %q", got, want)
		}
	}
	if strings.Contains(got, "<p>") || strings.Contains(got, "</p>") {
		t.Errorf("paragraph tags leaked: %q", got)
	}
}

func TestRenderHTMLHeadingsBecomeBold(t *testing.T) {
	t.Parallel()
	got, err := RenderHTML("# Release notes\n\nBody text.")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(got, "<b>Release notes</b>") {
		t.Fatalf("heading not bolded: %q", got)
	}
	if strings.Contains(got, "<h1>") || strings.Contains(got, "</h1>") {
		t.Fatalf("heading tags leaked: %q", got)
	}
}

func TestRenderHTMLListsBecomeBullets(t *testing.T) {
	t.Parallel()
	got, err := RenderHTML("- faster builds\n- smaller binaries")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if strings.Count(got, "• ") != 2 {
		t.Fatalf("bullets = %q", got)
	}
	if strings.Contains(got, "<li>") || strings.Contains(got, "<ul>") {
		t.Fatalf("list tags leaked: %q", got)
	}
}

func TestRenderHTMLLinksSurvive(t *testing.T) {
	t.Parallel()
	got, err := RenderHTML("See [the notes](https://go.dev/doc/go1.26).")
	if err != nil {
		t.Fatalf("RenderHTML: %v", err)
	}
	if !strings.Contains(got, `<a href="https://go.dev/doc/go1.26">the notes</a>`) {
		t.Fatalf("link mangled: %q", got)
	}
}

func TestSanitizeDropsUnknownTags(t *testing.T) {
	t.Parallel()
	got := sanitizeHTML(`<div class="x"><span>hello</span></div> <b>keep</b> <script>alert(1)</script>`)
	for _, banned := range []string{"<div", "<span", "<script"} {
		if strings.Contains(got, banned) {
			t.Errorf("banned tag survived: %q", got)
		}
	}
	if !strings.Contains(got, "<b>keep</b>") {
		t.Errorf("allowed tag dropped: %q", got)
	}
	// Inner text of dropped tags stays.
	if !strings.Contains(got, "hello") {
		t.Errorf("text content lost: %q", got)
	}
}

func TestSanitizeCollapsesBlankRuns(t *testing.T) {
	t.Parallel()
	got := sanitizeHTML("a\n\n\n\n\nb")
	if strings.Contains(got, "\n\n\n") {
		t.Fatalf("blank runs not collapsed: %q", got)
	}
}

func TestParseEditKind(t *testing.T) {
	t.Parallel()
	for _, k := range EditKinds() {
		got, ok := ParseEditKind(string(k))
		if !ok || got != k {
			t.Errorf("ParseEditKind(%q) = %q, %v", k, got, ok)
		}
		if InstructionFor(k) == "" {
			t.Errorf("kind %q has no instruction", k)
		}
		if k.Label() == string(k) {
			t.Errorf("kind %q has no human label", k)
		}
	}
	if _, ok := ParseEditKind("sarcastic"); ok {
		t.Error("unknown kind accepted")
	}
}
