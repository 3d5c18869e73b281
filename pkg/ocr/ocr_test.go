package ocr

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/codeGROOVE-dev/sockpuppet/pkg/profile"
	"github.com/google/go-cmp/cmp"
)

func intPtr(n int) *int { return &n }

func TestParse(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Signals
	}{
		{
			name: "counts and few posts",
			text: "150 followers 2000 following 0 posts",
			want: Signals{FewPosts: true, Followers: intPtr(150), Following: intPtr(2000), BioPresent: true},
		},
		{
			name: "upper case text is lowered before matching",
			text: "12 FOLLOWERS\n1 POST",
			want: Signals{FewPosts: true, Followers: intPtr(12)},
		},
		{
			name: "no whitespace between digits and label",
			text: "35followers 900following",
			want: Signals{Followers: intPtr(35), Following: intPtr(900)},
		},
		{
			name: "nothing found stays unset",
			text: "jane doe",
			want: Signals{},
		},
		{
			name: "ten posts still matches the zero posts pattern",
			text: "10 posts",
			want: Signals{FewPosts: true},
		},
		{
			name: "first match wins",
			text: "bio 12 followers 400 followers",
			want: Signals{Followers: intPtr(12), BioPresent: true},
		},
		{
			name: "zero followers is distinct from unset",
			text: "0 followers",
			want: Signals{Followers: intPtr(0)},
		},
		{
			name: "digit run too long for int is clamped",
			text: "99999999999999999999999 followers",
			want: Signals{Followers: intPtr(math.MaxInt), BioPresent: true},
		},
		{
			name: "largest int is not clamped",
			text: strconv.Itoa(math.MaxInt) + " following",
			want: Signals{Following: intPtr(math.MaxInt)},
		},
		{
			name: "arabic indic digits",
			text: "٣ followers ١٢٠٠ following",
			want: Signals{Followers: intPtr(3), Following: intPtr(1200)},
		},
		{
			name: "fullwidth digits and no-break space",
			text: "４２\u00a0followers",
			want: Signals{Followers: intPtr(42)},
		},
		{
			name: "vertical tab between digits and label",
			text: "7\vfollowers",
			want: Signals{Followers: intPtr(7)},
		},
		{
			name: "bio keyword",
			text: "Bio",
			want: Signals{BioPresent: true},
		},
		{
			name: "thirty characters count as a bio",
			text: "  " + strings.Repeat("x", 30) + "  ",
			want: Signals{BioPresent: true},
		},
		{
			name: "twenty nine characters do not",
			text: strings.Repeat("x", 29),
			want: Signals{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Parse(tt.text)
			tt.want.RawText = tt.text
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Parse(%q) mismatch (-want +got):\n%s", tt.text, diff)
			}
		})
	}
}

// fakeTesseract writes a shell script that drains stdin and prints output.
func fakeTesseract(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake requires a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "tesseract")
	script := "#!/bin/sh\ncat >/dev/null\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil { //nolint:gosec // test binary must be executable
		t.Fatalf("write fake tesseract: %v", err)
	}
	return path
}

func TestExtract(t *testing.T) {
	ctx := context.Background()
	bin := fakeTesseract(t, `echo "12 followers 3000 following"; echo "args: $*" >&2`)

	e := New(WithBinary(bin))
	if !e.Available() {
		t.Fatalf("Available() = false for %s", bin)
	}

	got, err := e.Extract(ctx, strings.NewReader("not really a png"))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if want := "12 followers 3000 following\n"; got != want {
		t.Errorf("Extract() = %q, want %q", got, want)
	}
}

func TestExtractLanguageArgs(t *testing.T) {
	bin := fakeTesseract(t, `echo "$@"`)

	got, err := New(WithBinary(bin), WithLanguage("eng")).Extract(context.Background(), strings.NewReader(""))
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if want := "stdin stdout -l eng\n"; got != want {
		t.Errorf("Extract() args = %q, want %q", got, want)
	}
}

func TestExtractUnavailable(t *testing.T) {
	e := New(WithBinary(filepath.Join(t.TempDir(), "no-such-tesseract")))
	if e.Available() {
		t.Fatal("Available() = true for missing binary")
	}
	if e.Binary() != "" {
		t.Errorf("Binary() = %q, want empty", e.Binary())
	}

	got, err := e.Extract(context.Background(), strings.NewReader("img"))
	if !errors.Is(err, profile.ErrExtractionUnavailable) {
		t.Fatalf("Extract() error = %v, want ErrExtractionUnavailable", err)
	}
	if got != "" {
		t.Errorf("Extract() = %q, want empty text", got)
	}
}

func TestExtractFailure(t *testing.T) {
	bin := fakeTesseract(t, `echo "Error in pixReadStream" >&2; exit 1`)

	got, err := New(WithBinary(bin)).Extract(context.Background(), strings.NewReader("img"))
	if !errors.Is(err, profile.ErrExtractionUnavailable) {
		t.Fatalf("Extract() error = %v, want ErrExtractionUnavailable", err)
	}
	if got != "" {
		t.Errorf("Extract() = %q, want empty text", got)
	}
}

func TestExtractTimeout(t *testing.T) {
	bin := fakeTesseract(t, `exec sleep 5`)

	start := time.Now()
	_, err := New(WithBinary(bin), WithTimeout(100*time.Millisecond)).Extract(context.Background(), strings.NewReader(""))
	if !errors.Is(err, profile.ErrExtractionUnavailable) {
		t.Fatalf("Extract() error = %v, want ErrExtractionUnavailable", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Extract() took %s, want it bounded by the timeout", elapsed)
	}
}
