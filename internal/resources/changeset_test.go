package resources

import (
	"encoding/json"
	"net/url"
	"reflect"
	"testing"
)

func TestOptTriState(t *testing.T) {
	var body struct {
		Title    Opt `json:"title"`
		Body     Opt `json:"body"`
		ImageURL Opt `json:"image_url"`
	}
	if err := json.Unmarshal([]byte(`{"title":"Hello","image_url":null}`), &body); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if !body.Title.Present() || body.Title.String() != "Hello" {
		t.Fatalf("expected title present, got %+v", body.Title)
	}
	if body.Body.Present() {
		t.Fatalf("expected absent body, got %+v", body.Body)
	}
	if !body.ImageURL.Cleared() {
		t.Fatalf("expected cleared image_url, got %+v", body.ImageURL)
	}
}

func TestOptRejectsNonString(t *testing.T) {
	var body struct {
		Title Opt `json:"title"`
	}
	if err := json.Unmarshal([]byte(`{"title":12}`), &body); err == nil {
		t.Fatalf("expected error for non-string value")
	}
}

func TestFormOptTriState(t *testing.T) {
	form := url.Values{"name": {"Ana"}, "avatar_url": {""}}

	if got := FormOpt(form, "name"); !got.Present() || got.String() != "Ana" {
		t.Fatalf("expected present name, got %+v", got)
	}
	if got := FormOpt(form, "avatar_url"); !got.Cleared() {
		t.Fatalf("expected cleared avatar_url, got %+v", got)
	}
	if got := FormOpt(form, "email"); got.Present() {
		t.Fatalf("expected absent email, got %+v", got)
	}
}

func TestCompareRecordsOnlyChangedFields(t *testing.T) {
	cs := &ChangeSet{}
	cs.Compare("title", Opt{Set: true, Value: "Same"}, "Same")
	cs.Compare("body", Opt{}, "kept")
	cs.Compare("summary", Opt{Set: true, Value: "New"}, "Old")
	cs.Compare("image_url", Opt{Set: true}, "uploads/1-a.png")

	want := []Assignment{
		{Column: "summary", Value: "New"},
		{Column: "image_url", Value: nil},
	}
	if !reflect.DeepEqual(cs.Assignments(), want) {
		t.Fatalf("expected %+v, got %+v", want, cs.Assignments())
	}
}

func TestEmptyChangeSet(t *testing.T) {
	cs := &ChangeSet{}
	cs.Compare("title", Opt{Set: true, Value: "Same"}, "Same")
	cs.Compare("body", Opt{}, "kept")

	if !cs.Empty() {
		t.Fatalf("expected empty change set, got %+v", cs.Assignments())
	}
}

func TestForceReplacesEarlierAssignment(t *testing.T) {
	cs := &ChangeSet{}
	cs.Force("image_url", "uploads/1-a.png")
	cs.Force("image_url", nil)

	if len(cs.Assignments()) != 1 || cs.Assignments()[0].Value != nil {
		t.Fatalf("expected single nil assignment, got %+v", cs.Assignments())
	}
}

func TestSetClausePlaceholders(t *testing.T) {
	cs := &ChangeSet{}
	cs.Force("title", "Hello")
	cs.Force("image_url", nil)

	clause, args := cs.SetClause(2)
	if clause != "title = $2, image_url = $3" {
		t.Fatalf("unexpected clause %q", clause)
	}
	if len(args) != 2 || args[0] != "Hello" || args[1] != nil {
		t.Fatalf("unexpected args %+v", args)
	}
}
