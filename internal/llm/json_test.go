package llm

import "testing"

func TestExtractJSONArrayInFence(t *testing.T) {
	t.Parallel()

	response := "Here is the classification:\n```json\n[\"Agriculture\", \"Trade\"]\n```\nDone."
	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `["Agriculture", "Trade"]` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONObjectWithNesting(t *testing.T) {
	t.Parallel()

	response := `prefix {"topics": ["A", "B"], "meta": {"count": 2}} suffix`
	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != `{"topics": ["A", "B"], "meta": {"count": 2}}` {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONBracketsInsideStrings(t *testing.T) {
	t.Parallel()

	response := `["Budget [2024]", "Rule {7}"]`
	got, err := ExtractJSON(response)
	if err != nil {
		t.Fatalf("ExtractJSON: %v", err)
	}
	if got != response {
		t.Fatalf("unexpected extraction: %q", got)
	}
}

func TestExtractJSONNoValidJSON(t *testing.T) {
	t.Parallel()

	if _, err := ExtractJSON("I could not classify these items."); err == nil {
		t.Fatal("expected error for non-JSON response")
	}
}

func TestParseJSONResponse(t *testing.T) {
	t.Parallel()

	got, err := ParseJSONResponse[[]string]("result: [\"Fisheries\", \"Energy\"]")
	if err != nil {
		t.Fatalf("ParseJSONResponse: %v", err)
	}
	if len(got) != 2 || got[0] != "Fisheries" || got[1] != "Energy" {
		t.Fatalf("unexpected parse result: %#v", got)
	}
}
