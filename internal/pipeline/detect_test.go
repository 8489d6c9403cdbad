package pipeline

import "testing"

func TestDetectLookupRequest(t *testing.T) {
	cases := []struct {
		name        string
		subject     string
		text        string
		html        string
		attachments []string
		identifiers int
		want        bool
		reason      string
	}{
		{name: "sim request", subject: "SIM info", text: "please share owner details", identifiers: 2, want: true, reason: "rules_positive"},
		{name: "spreadsheet only", subject: "fwd", attachments: []string{"Numbers.XLSX"}, identifiers: 5, want: true, reason: "rules_positive"},
		{name: "newsletter", subject: "Weekly digest", text: "call us at 02134567890", identifiers: 1, want: false, reason: "rules_negative"},
		{name: "keywords but nothing to look up", subject: "SIM info lookup", text: "cnic owner details", want: false, reason: "no_identifiers"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := DetectLookupRequest(tc.subject, tc.text, tc.html, tc.attachments, tc.identifiers, 0)
			if got.IsLookup != tc.want || got.Reason != tc.reason {
				t.Fatalf("got %+v", got)
			}
			if got.Score < 0 || got.Score > 1 {
				t.Fatalf("score out of range: %v", got.Score)
			}
		})
	}
}
