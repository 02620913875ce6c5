package textnorm

import (
	"strings"
	"testing"
)

func TestNormalize_Masking(t *testing.T) {
	n := New(DefaultOptions())

	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "url is masked before case folding",
			in:   "Click HTTP link http://evil.example/win",
			want: "click http link url",
		},
		{
			name: "www url is masked",
			in:   "visit www.prizes.example today",
			want: "visit url today",
		},
		{
			name: "email is masked",
			in:   "contact winner@prizes.example immediately",
			want: "contact email immediately",
		},
		{
			name: "phone number is masked",
			in:   "Call +44 7700 900123 to claim",
			want: "call phone claim",
		},
		{
			name: "html tags are stripped",
			in:   "<b>WINNER</b> announced",
			want: "winner announced",
		},
		{
			name: "emoji and punctuation are stripped",
			in:   "Congrats!!! 🎉 You won",
			want: "congrats won",
		},
		{
			name: "whitespace collapses to single line",
			in:   "line one\n\nline   two\r\n",
			want: "line one line two",
		},
		{
			name: "empty input yields empty output",
			in:   "",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := n.Normalize(tt.in); got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalize_Idempotent(t *testing.T) {
	n := New(DefaultOptions())

	inputs := []string{
		"Free entry!!! Call 0800 123 4567 or visit http://spam.example NOW 🎉",
		"reply to offers@deals.example for a FREE prize",
		"<a href='http://x.example'>click</a> +1 (555) 234-9876",
		"Hey, are we still on for lunch at noon?",
		"WINNER winner 😀😀 chicken dinner",
	}

	for _, in := range inputs {
		once := n.Normalize(in)
		twice := n.Normalize(once)
		if once != twice {
			t.Errorf("not idempotent for %q:\n once: %q\ntwice: %q", in, once, twice)
		}
	}
}

func TestNormalize_OptionToggles(t *testing.T) {
	t.Run("digit removal", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RemoveDigits = true
		opts.MaskPhones = false
		n := New(opts)
		got := n.Normalize("won 42 times")
		if strings.ContainsAny(got, "0123456789") {
			t.Errorf("digits not removed: %q", got)
		}
	})

	t.Run("stopwords kept when disabled", func(t *testing.T) {
		opts := DefaultOptions()
		opts.RemoveStopwords = false
		n := New(opts)
		got := n.Normalize("this is the prize")
		if got != "this is the prize" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("case preserved when lowercase disabled", func(t *testing.T) {
		opts := DefaultOptions()
		opts.Lowercase = false
		opts.RemoveStopwords = false
		n := New(opts)
		got := n.Normalize("Hello World")
		if got != "Hello World" {
			t.Errorf("got %q", got)
		}
	})
}

func TestMaskPII_PreservesCaseAndPunctuation(t *testing.T) {
	n := New(DefaultOptions())
	got := n.MaskPII("WIN!!! call 0800 123 4567 now")
	if !strings.Contains(got, SentinelPhone) {
		t.Errorf("expected %s sentinel in %q", SentinelPhone, got)
	}
	if !strings.Contains(got, "WIN!!!") {
		t.Errorf("case/punctuation not preserved in %q", got)
	}
}
