package ember

import "testing"

func TestHeadersCaseInsensitiveGet(t *testing.T) {
	h := NewHeaders()
	if err := h.Add("Content-Type", "text/plain"); err != nil {
		t.Fatalf("Add: %v", err)
	}
	for _, name := range []string{"content-type", "CONTENT-TYPE", "Content-Type", "cOnTeNt-TyPe"} {
		v, ok := h.Get(name)
		if !ok || v != "text/plain" {
			t.Errorf("Get(%q) = %q, %v, want text/plain, true", name, v, ok)
		}
	}
	if !h.Contains("content-type") {
		t.Error("Contains(\"content-type\") = false, want true")
	}
}

func TestHeadersAddRejectsInvalid(t *testing.T) {
	h := NewHeaders()
	if err := h.Add("", "v"); err == nil {
		t.Error("expected error for empty name")
	}
	if err := h.Add("X-Bad\x00Name", "v"); err == nil {
		t.Error("expected error for invalid name bytes")
	}
}

func TestHeadersValuesPreservesOrder(t *testing.T) {
	h := NewHeaders()
	h.AddRaw("X-Tag", "one")
	h.AddRaw("x-tag", "two")
	h.AddRaw("X-TAG", "three")
	got := h.Values("X-tag")
	want := []string{"one", "two", "three"}
	if len(got) != len(want) {
		t.Fatalf("Values = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Values[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestHeadersReplaceFirstKeepsPosition(t *testing.T) {
	h := NewHeaders()
	h.AddRaw("A", "1")
	h.AddRaw("B", "2")
	h.AddRaw("A", "3")

	prev, ok := h.ReplaceFirst("a", "replaced")
	if !ok || prev != "1" {
		t.Fatalf("ReplaceFirst = %q, %v, want 1, true", prev, ok)
	}
	all := h.All()
	if all[0].Value != "replaced" || all[1].Value != "2" || all[2].Value != "3" {
		t.Errorf("unexpected order after ReplaceFirst: %+v", all)
	}
}

func TestHeadersReplaceFirstAppendsWhenAbsent(t *testing.T) {
	h := NewHeaders()
	_, ok := h.ReplaceFirst("X-New", "v")
	if ok {
		t.Error("ReplaceFirst on absent header reported ok=true")
	}
	if v, found := h.Get("X-New"); !found || v != "v" {
		t.Errorf("Get(X-New) = %q, %v", v, found)
	}
}

func TestHeadersSetCollapsesDuplicates(t *testing.T) {
	h := NewHeaders()
	h.AddRaw("X-Dup", "1")
	h.AddRaw("X-Dup", "2")
	h.Set("x-dup", "3")

	if got := h.Values("X-Dup"); len(got) != 1 || got[0] != "3" {
		t.Errorf("Values after Set = %v, want [3]", got)
	}
}

func TestHeadersRemoveAll(t *testing.T) {
	h := NewHeaders()
	h.AddRaw("X-Gone", "1")
	h.AddRaw("X-Stay", "2")
	h.AddRaw("x-gone", "3")
	h.RemoveAll("X-GONE")

	if h.Contains("X-Gone") {
		t.Error("X-Gone still present after RemoveAll")
	}
	if !h.Contains("X-Stay") {
		t.Error("X-Stay removed unexpectedly")
	}
}

func TestHeadersGetDate(t *testing.T) {
	h := NewHeaders()
	h.AddRaw("Last-Modified", "Sun, 06 Nov 1994 08:49:37 GMT")
	tm, ok := h.GetDate("last-modified")
	if !ok {
		t.Fatal("GetDate failed to parse a valid RFC 1123 date")
	}
	if tm.Year() != 1994 || tm.Month() != 11 || tm.Day() != 6 {
		t.Errorf("parsed date = %v", tm)
	}
}

func TestParseParams(t *testing.T) {
	got := ParseParams(`multipart/form-data; boundary="abc123"; charset=utf-8`)
	if len(got) != 3 {
		t.Fatalf("ParseParams returned %d entries, want 3: %+v", len(got), got)
	}
	if got[0].Key != "" || got[0].Value != "multipart/form-data" {
		t.Errorf("bare value entry = %+v", got[0])
	}
	if got[1].Key != "boundary" || got[1].Value != "abc123" {
		t.Errorf("boundary entry = %+v, want quotes stripped", got[1])
	}
	if got[2].Key != "charset" || got[2].Value != "utf-8" {
		t.Errorf("charset entry = %+v", got[2])
	}
}
