package memory

import "testing"

func TestRedact(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "email",
			in:   "reach me at seller.one+promo@shop-mail.io today",
			want: "reach me at [REDACTED_EMAIL] today",
		},
		{
			name: "phone dashed",
			in:   "call 415-555-0133 about returns",
			want: "call [REDACTED_PHONE] about returns",
		},
		{
			name: "phone with country code",
			in:   "call +1 (415) 555-0133",
			want: "call [REDACTED_PHONE]",
		},
		{
			name: "card",
			in:   "charged to 4111 1111 1111 1111 yesterday",
			want: "charged to [REDACTED_CARD] yesterday",
		},
		{
			name: "card dashed",
			in:   "card 5500-0000-0000-0004 on file",
			want: "card [REDACTED_CARD] on file",
		},
		{
			name: "clean text untouched",
			in:   "top 10 products last month by sales",
			want: "top 10 products last month by sales",
		},
		{
			name: "dates survive",
			in:   "range 2026-01-01 to 2026-01-31",
			want: "range 2026-01-01 to 2026-01-31",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Redact(tc.in); got != tc.want {
				t.Errorf("got %q, want %q", got, tc.want)
			}
		})
	}
}
