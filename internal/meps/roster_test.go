package meps

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
)

func TestFlexStringForms(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want string
	}{
		{`"Ana García Pérez"`, "Ana García Pérez"},
		{`{"value": "Jens Jensen"}`, "Jens Jensen"},
		{`{"@value": "Maria Rossi"}`, "Maria Rossi"},
		{`["First", "Second"]`, "First"},
		{`{"lang": "en"}`, ""},
		{`42`, ""},
	}
	for _, tc := range cases {
		var f flexString
		if err := json.Unmarshal([]byte(tc.in), &f); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.in, err)
		}
		if string(f) != tc.want {
			t.Fatalf("input %s: expected %q, got %q", tc.in, tc.want, f)
		}
	}
}

func TestParseMemberID(t *testing.T) {
	t.Parallel()

	if id, ok := parseMemberID("124936", ""); !ok || id != 124936 {
		t.Fatalf("identifier parse failed: %d %v", id, ok)
	}
	if id, ok := parseMemberID("", "https://data.example.eu/person/96870"); !ok || id != 96870 {
		t.Fatalf("uri parse failed: %d %v", id, ok)
	}
	if _, ok := parseMemberID("", "https://data.example.eu/person/"); ok {
		t.Fatal("expected failure for empty path segment")
	}
	if _, ok := parseMemberID("abc", "not-a-uri"); ok {
		t.Fatal("expected failure for non-numeric forms")
	}
}

func TestCurrentMembersPaginates(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meps/show-current" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if ua := r.Header.Get("User-Agent"); ua != rosterUserAgent {
			t.Errorf("unexpected user agent %q", ua)
		}
		if r.URL.Query().Get("limit") != "500" {
			t.Errorf("unexpected limit %q", r.URL.Query().Get("limit"))
		}

		offset := r.URL.Query().Get("offset")
		w.Header().Set("Content-Type", "application/ld+json")
		if offset == "0" {
			// A full first page forces a second request.
			fmt.Fprint(w, `{"data": [`)
			for i := 0; i < 500; i++ {
				if i > 0 {
					fmt.Fprint(w, ",")
				}
				fmt.Fprintf(w, `{"identifier": "%d", "label": "Member %d", "api:country-of-representation": "SE"}`, i+1, i+1)
			}
			fmt.Fprint(w, `]}`)
			return
		}
		fmt.Fprint(w, `{"data": [{"identifier": "501", "label": {"value": "Last Member"}, "givenName": "Last", "familyName": "Member"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	members, err := client.CurrentMembers(context.Background())
	if err != nil {
		t.Fatalf("CurrentMembers: %v", err)
	}
	if len(members) != 501 {
		t.Fatalf("expected 501 members, got %d", len(members))
	}
	if members[0].ID != 1 || members[0].Country != "SE" {
		t.Fatalf("unexpected first member: %+v", members[0])
	}
	last := members[500]
	if last.ID != 501 || last.Label != "Last Member" || last.GivenName != "Last" {
		t.Fatalf("unexpected last member: %+v", last)
	}
}

func TestTermMembersSendsTermParam(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/meps" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("parliamentary-term"); got != "9" {
			t.Errorf("unexpected term %q", got)
		}
		fmt.Fprint(w, `{"data": [{"identifier": "7", "label": "Old Member"}]}`)
	}))
	defer server.Close()

	client := NewClient(server.URL, zerolog.Nop())
	members, err := client.TermMembers(context.Background(), 9)
	if err != nil {
		t.Fatalf("TermMembers: %v", err)
	}
	if len(members) != 1 || members[0].Label != "Old Member" {
		t.Fatalf("unexpected members: %+v", members)
	}
}

func TestReverseWords(t *testing.T) {
	t.Parallel()

	if got := reverseWords("García Pérez Ana"); got != "Ana Pérez García" {
		t.Fatalf("unexpected reversal: %q", got)
	}
	if got := reverseWords("Single"); got != "Single" {
		t.Fatalf("unexpected reversal: %q", got)
	}
}
