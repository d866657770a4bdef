package entities

import (
	"testing"
)

func TestAutocompleteEntity_IsPrimary(t *testing.T) {
	cases := map[string]bool{"true": true, "1": true, "false": false, "": false, "yes": false}
	for raw, want := range cases {
		e := &AutocompleteEntity{ID: "f1", Attributes: map[string]string{AttrPrimary: raw}}
		if got := e.IsPrimary(); got != want {
			t.Errorf("IsPrimary(%q) = %v, want %v", raw, got, want)
		}
	}

	var missing *AutocompleteEntity
	if missing.Attr(AttrStoreID) != "" {
		t.Error("expected empty attribute on nil entity")
	}
}

func TestSearchKeywordEvent_IsClick(t *testing.T) {
	empty := ""
	clicked := "f-1"

	if (&SearchKeywordEvent{}).IsClick() {
		t.Error("search without clicked entity reported as click")
	}
	if (&SearchKeywordEvent{ClickedEntityID: &empty}).IsClick() {
		t.Error("empty clicked entity reported as click")
	}
	if !(&SearchKeywordEvent{ClickedEntityID: &clicked}).IsClick() {
		t.Error("click-through not reported as click")
	}
}

func TestParseDomain(t *testing.T) {
	for _, name := range []string{"food", " Store ", "GROUP"} {
		if _, err := ParseDomain(name); err != nil {
			t.Errorf("ParseDomain(%q) failed: %v", name, err)
		}
	}
	if _, err := ParseDomain("menu"); err == nil {
		t.Error("expected error for unknown domain")
	}
}
