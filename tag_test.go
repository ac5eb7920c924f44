// Copyright 2024 The Skein Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package skein

import (
	"sort"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/text/language"
)

const untaggedSource = `title: Start
tags: intro
---
Narrator: Welcome to the garden.
// A comment that must stay untouched.
<<set $visited to true>>
Narrator: Mind the weeds.
-> Pull the weeds
-> Leave them be
Narrator: Suit yourself.
===
title: Shed
---
Narrator: The shed is locked.
===
`

func TestAddLineTagsTagsEveryStatement(t *testing.T) {
	tagged, changed := AddLineTags(untaggedSource, nil)
	if !changed {
		t.Fatal("AddLineTags = unchanged, want changed")
	}

	for i, line := range strings.Split(tagged, "\n") {
		trimmed := strings.TrimSpace(line)
		wantTag := statementBearing(trimmed) && trimmed != "---" && trimmed != "===" &&
			!strings.HasPrefix(trimmed, "title:") && !strings.HasPrefix(trimmed, "tags:")
		hasTag := lineTagPattern.MatchString(line)
		if wantTag != hasTag {
			t.Errorf("line %d %q: tagged = %t, want %t", i+1, line, hasTag, wantTag)
		}
	}

	// Six statements, six distinct tags.
	tags := CollectLineTags(tagged)
	if len(tags) != 6 {
		t.Errorf("CollectLineTags: %d tags, want 6", len(tags))
	}
}

func TestAddLineTagsIdempotent(t *testing.T) {
	once, changed := AddLineTags(untaggedSource, nil)
	if !changed {
		t.Fatal("first AddLineTags = unchanged, want changed")
	}
	twice, changed := AddLineTags(once, nil)
	if changed {
		t.Error("second AddLineTags = changed, want unchanged")
	}
	if twice != once {
		t.Error("second AddLineTags altered the source")
	}
}

func TestAddLineTagsDeterministic(t *testing.T) {
	a, _ := AddLineTags(untaggedSource, nil)
	b, _ := AddLineTags(untaggedSource, nil)
	if a != b {
		t.Error("AddLineTags is not deterministic")
	}
}

func TestAddLineTagsPreservesExisting(t *testing.T) {
	src := "title: Start\n---\nKeep me. #line:keepme1\nTag me.\n===\n"
	tagged, changed := AddLineTags(src, nil)
	if !changed {
		t.Fatal("AddLineTags = unchanged, want changed")
	}
	if !strings.Contains(tagged, "Keep me. #line:keepme1\n") {
		t.Errorf("existing tag line altered:\n%s", tagged)
	}
	tags := CollectLineTags(tagged)
	if !tags["line:keepme1"] {
		t.Error("existing tag missing from output")
	}
	if len(tags) != 2 {
		t.Errorf("got %d tags, want 2", len(tags))
	}
}

func TestAddLineTagsAvoidsExistingIDs(t *testing.T) {
	// Tag once to learn the ID it would pick, then forbid that ID.
	tagged, _ := AddLineTags("title: A\n---\nHello.\n===\n", nil)
	ids := CollectLineTags(tagged)
	if len(ids) != 1 {
		t.Fatalf("got %d tags, want 1", len(ids))
	}

	retagged, _ := AddLineTags("title: A\n---\nHello.\n===\n", ids)
	for id := range CollectLineTags(retagged) {
		if ids[id] {
			t.Errorf("generated ID %q collides with the existing set", id)
		}
	}
}

func TestAddLineTagsCommentPlacement(t *testing.T) {
	src := "title: A\n---\nHello. // trailing comment\n===\n"
	tagged, _ := AddLineTags(src, nil)
	line := strings.Split(tagged, "\n")[2]
	tagAt := strings.Index(line, "#line:")
	commentAt := strings.Index(line, "//")
	if tagAt < 0 || commentAt < 0 || tagAt > commentAt {
		t.Errorf("tag not placed before the comment: %q", line)
	}
}

func TestAddLineTagsPreservesLineEndings(t *testing.T) {
	src := "title: A\r\n---\r\nHello.\r\n===\r\n"
	tagged, _ := AddLineTags(src, nil)
	if !strings.Contains(tagged, "\r\n===") {
		t.Errorf("CRLF endings not preserved:\n%q", tagged)
	}
}

func TestExtractStrings(t *testing.T) {
	st := NewStringTable(language.English)
	ExtractStrings("a.yarn", untaggedSource, st)

	if st.Len() != 6 {
		t.Fatalf("Len() = %d, want 6", st.Len())
	}
	si, ok := st.Lookup("line:a.yarn-Start-0")
	if !ok {
		t.Fatal("Lookup(line:a.yarn-Start-0) not found")
	}
	want := StringInfo{
		Text:          "Narrator: Welcome to the garden.",
		NodeName:      "Start",
		FileName:      "a.yarn",
		LineNumber:    4,
		IsImplicitTag: true,
	}
	if diff := cmp.Diff(want, si); diff != "" {
		t.Errorf("StringInfo diff (-want +got):\n%s", diff)
	}

	// Options are stored without the arrow marker.
	texts := map[string]bool{}
	st.All(func(_ LineID, si StringInfo) bool {
		texts[si.Text] = true
		return true
	})
	if !texts["Pull the weeds"] {
		t.Errorf("option text not extracted, got %v", texts)
	}
}

// Option conditions are control flow, not display text: translators must
// never see the <<if ...>> group.
func TestExtractStringsInlineCondition(t *testing.T) {
	const src = `title: Gate
---
-> Go north <<if $has_key>>
-> Go south <<if $visited>> #line:south #mood:wistful
-> Stay put
===
`
	st := NewStringTable(language.English)
	ExtractStrings("gate.yarn", src, st)

	if st.Len() != 3 {
		t.Fatalf("Len() = %d, want 3", st.Len())
	}
	texts := map[string]bool{}
	st.All(func(_ LineID, si StringInfo) bool {
		texts[si.Text] = true
		return true
	})
	for _, want := range []string{"Go north", "Go south", "Stay put"} {
		if !texts[want] {
			t.Errorf("text %q not extracted, got %v", want, texts)
		}
	}

	// The tagged option keeps its id and non-id metadata.
	si, ok := st.Lookup("line:south")
	if !ok {
		t.Fatal("Lookup(line:south) not found")
	}
	if si.Text != "Go south" {
		t.Errorf("Text = %q, want %q", si.Text, "Go south")
	}
	if len(si.Metadata) != 2 || si.Metadata[1] != "#mood:wistful" {
		t.Errorf("Metadata = %v, want the two hashtags", si.Metadata)
	}
}

// Injecting tags must not change the extracted text, only make every entry
// explicit.
func TestInjectThenExtractParity(t *testing.T) {
	const source = `title: Market
---
Vendor: Fresh bread, still warm!
Vendor: Or perhaps some cheese?
-> Buy the bread
-> Buy the cheese
-> Walk away
Vendor: A fine choice.
Vendor: Anything else?
-> No, thank you
Vendor: Then good day to you.
Vendor: Come again soon.
===
`
	plain := NewStringTable(language.English)
	ExtractStrings("market.yarn", source, plain)
	if plain.Len() != 10 {
		t.Fatalf("Len() = %d, want 10", plain.Len())
	}

	tagged, _ := AddLineTags(source, nil)
	injected := NewStringTable(language.English)
	ExtractStrings("market.yarn", tagged, injected)

	if plain.Len() != injected.Len() {
		t.Fatalf("entry counts differ: %d vs %d", plain.Len(), injected.Len())
	}
	if injected.ContainsImplicit() {
		t.Error("injected table still contains implicit entries")
	}

	textsOf := func(st *StringTable) []string {
		var out []string
		st.All(func(_ LineID, si StringInfo) bool {
			out = append(out, si.Text)
			return true
		})
		sort.Strings(out)
		return out
	}
	if diff := cmp.Diff(textsOf(plain), textsOf(injected)); diff != "" {
		t.Errorf("text diff (-plain +injected):\n%s", diff)
	}
}
