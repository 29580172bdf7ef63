package query

import (
	"errors"
	"testing"
)

func TestResolveField(t *testing.T) {
	tests := []struct {
		alias string
		want  []string
	}{
		{"ti", []string{FieldTitle}},
		{"tiab", []string{FieldTitle, FieldAbstract}},
		{"Title/Abstract", []string{FieldTitle, FieldAbstract}},
		{"mh", []string{FieldMeSHHeadings}},
		{"MeSH Terms", []string{FieldMeSHHeadings}},
		{"dp", []string{FieldDate}},
		{"pmid", []string{FieldID}},
		{"All Fields", []string{FieldAllFields}},
	}
	for _, tt := range tests {
		got, err := ResolveField(tt.alias)
		if err != nil {
			t.Fatalf("ResolveField(%q) failed: %v", tt.alias, err)
		}
		if len(got) != len(tt.want) {
			t.Fatalf("ResolveField(%q) = %v, want %v", tt.alias, got, tt.want)
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("ResolveField(%q)[%d] = %q, want %q", tt.alias, i, got[i], tt.want[i])
			}
		}
	}
}

func TestResolveFieldUnknown(t *testing.T) {
	_, err := ResolveField("bogus")
	var fe *UnknownFieldError
	if !errors.As(err, &fe) {
		t.Fatalf("expected UnknownFieldError, got %v", err)
	}
}

func TestResolveFieldIsCaseSensitive(t *testing.T) {
	if _, err := ResolveField("TI"); err == nil {
		t.Errorf("alias lookup should be exact, TI is not a mapped alias")
	}
}

func TestFieldFamilies(t *testing.T) {
	if !IsMeSHField("mh") || !IsMeSHField("majr") || !IsMeSHField("sh") || !IsMeSHField("nm") {
		t.Errorf("MeSH family aliases should report as MeSH fields")
	}
	if IsMeSHField("ti") || IsMeSHField("bogus") {
		t.Errorf("non-MeSH aliases should not report as MeSH fields")
	}
	if !IsDateField("dp") || !IsDateField("Publication Date") {
		t.Errorf("date aliases should report as date fields")
	}
	if IsDateField("ti") {
		t.Errorf("title is not a date field")
	}
}
