package htmldom

import (
	"strings"
	"testing"
)

func TestCompileSelector(t *testing.T) {
	tests := []struct {
		name     string
		selector string
		scoped   bool
		want     string
		wantErr  bool
	}{
		{"bare tag", "p", false, "//p", false},
		{"bare id", "#comments", false, "//*[@id='comments']", false},
		{"tag with id", "ytd-comments#comments", false, "//ytd-comments[@id='comments']", false},
		{"bare class", ".author", false, "//*[contains(concat(' ', normalize-space(@class), ' '), ' author ')]", false},
		{"tag with class", "span.author", false, "//span[contains(concat(' ', normalize-space(@class), ' '), ' author ')]", false},
		{"descendants", "section p", false, "//section//p", false},
		{"attribute presence", "[data-hidden]", false, "//*[@data-hidden]", false},
		{"attribute equality", "input[type=checkbox]", false, "//input[@type='checkbox']", false},
		{"quoted attribute value", `a[target="_blank"]`, false, "//a[@target='_blank']", false},
		{"compound", "div#x.y[z=1]", false, "//div[@id='x'][contains(concat(' ', normalize-space(@class), ' '), ' y ')][@z='1']", false},
		{"group", "a, b", false, "//a | //b", false},
		{"scoped tag", "p", true, ".//p", false},
		{"scoped descendants", "div span", true, ".//div//span", false},
		{"universal", "*", false, "//*", false},
		{"empty", "", false, "", true},
		{"empty group", "a,,b", false, "", true},
		{"child combinator unsupported", "ul > li", false, "", true},
		{"pseudo class unsupported", "a:hover", false, "", true},
		{"dangling hash", "div#", false, "", true},
		{"dangling dot", ".", false, "", true},
		{"unterminated attribute", "a[href", false, "", true},
		{"mixed quotes in value", `a[title=it's "x"]`, false, "", true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := compileSelector(tc.selector, tc.scoped)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("compileSelector(%q) = %q, want error", tc.selector, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("compileSelector(%q) failed: %v", tc.selector, err)
			}
			if got != tc.want {
				t.Errorf("compileSelector(%q)\n got %q\nwant %q", tc.selector, got, tc.want)
			}
		})
	}
}

func TestCompiledSelectorsMatchRealTrees(t *testing.T) {
	doc, err := ParseString(`<!DOCTYPE html>
<html><body>
  <ytd-comments id="comments">
    <div class="thread highlight" data-author="ada"><p>alpha</p></div>
    <div class="thread" data-author="brin"><p>beta</p></div>
  </ytd-comments>
  <input type="checkbox" id="opt">
  <a target="_blank" href="/c/ada">ada</a>
</body></html>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	tests := []struct {
		selector string
		want     int
	}{
		{"ytd-comments#comments", 1},
		{".thread", 2},
		{".highlight", 1},
		{"ytd-comments .thread", 2},
		{"[data-author]", 2},
		{"[data-author=ada]", 1},
		{"input[type=checkbox]", 1},
		{`a[target="_blank"]`, 1},
		{".thread p, a", 3},
		{".missing", 0},
	}

	for _, tc := range tests {
		t.Run(tc.selector, func(t *testing.T) {
			els, err := doc.QuerySelectorAll(tc.selector)
			if err != nil {
				t.Fatalf("QuerySelectorAll(%q): %v", tc.selector, err)
			}
			if len(els) != tc.want {
				t.Errorf("QuerySelectorAll(%q) = %d matches, want %d", tc.selector, len(els), tc.want)
			}
		})
	}
}

func TestUnsupportedSelectorSurfacesError(t *testing.T) {
	doc, err := ParseString(`<p>x</p>`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	_, err = doc.QuerySelector("p:first-child")
	if err == nil {
		t.Fatal("expected an error for unsupported selector syntax, got none")
	}
	if !strings.Contains(err.Error(), "unsupported") {
		t.Errorf("error should name the unsupported syntax, got %v", err)
	}
}
