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

func TestImplicitIDGeneration(t *testing.T) {
	st := NewStringTable(language.English)
	var got []LineID
	for i, text := range []string{"first", "second", "third"} {
		id := st.InsertImplicit(StringInfo{
			Text:       text,
			FileName:   "a.yarn",
			NodeName:   "Start",
			LineNumber: i + 1,
		})
		got = append(got, id)
	}
	want := []LineID{"line:a.yarn-Start-0", "line:a.yarn-Start-1", "line:a.yarn-Start-2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("implicit ID diff (-want +got):\n%s", diff)
	}
	for _, id := range got {
		si, ok := st.Lookup(id)
		if !ok {
			t.Errorf("Lookup(%q) not found", id)
			continue
		}
		if !si.IsImplicitTag {
			t.Errorf("Lookup(%q).IsImplicitTag = false, want true", id)
		}
	}
	if !st.ContainsImplicit() {
		t.Error("ContainsImplicit() = false, want true")
	}
}

func TestExplicitInsertReplaces(t *testing.T) {
	st := NewStringTable(language.English)
	st.Insert("line:x", StringInfo{Text: "old"})
	st.Insert("line:x", StringInfo{Text: "new"})
	si, ok := st.Lookup("line:x")
	if !ok {
		t.Fatal("Lookup(line:x) not found")
	}
	if si.Text != "new" {
		t.Errorf("Text = %q, want %q (last insert wins)", si.Text, "new")
	}
	if si.IsImplicitTag {
		t.Error("IsImplicitTag = true, want false")
	}
	if st.Len() != 1 {
		t.Errorf("Len() = %d, want 1", st.Len())
	}
}

func TestMergeDuplicateExplicitIDs(t *testing.T) {
	a := NewStringTable(language.English)
	a.Insert("line:dup", StringInfo{Text: "from a", FileName: "a.skein"})
	b := NewStringTable(language.English)
	b.Insert("line:dup", StringInfo{Text: "from b", FileName: "b.skein"})
	if err := a.Merge(b); err == nil {
		t.Error("Merge with duplicate explicit ID = nil error, want integrity error")
	}

	c := NewStringTable(language.English)
	c.Insert("line:other", StringInfo{Text: "fine"})
	if err := a.Merge(c); err != nil {
		t.Errorf("Merge without duplicates = %v", err)
	}
	if a.Len() != 2 {
		t.Errorf("Len() after merge = %d, want 2", a.Len())
	}
}

func TestAuthorTags(t *testing.T) {
	si := StringInfo{Metadata: []string{"#line:abc", "#shouting", "#speaker:alice"}}
	want := []string{"#shouting", "#speaker:alice"}
	if diff := cmp.Diff(want, si.AuthorTags()); diff != "" {
		t.Errorf("AuthorTags diff (-want +got):\n%s", diff)
	}
}

func TestReadStringTable(t *testing.T) {
	const csv = `id,text,file,node,lineNumber
line:a,"Hello, world",a.skein,Start,3
line:b,Goodbye,a.skein,Start,4
`
	st, err := ReadStringTable(strings.NewReader(csv), "en")
	if err != nil {
		t.Fatalf("ReadStringTable = %v", err)
	}
	if st.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", st.Len())
	}
	si, ok := st.Lookup("line:a")
	if !ok {
		t.Fatal("Lookup(line:a) not found")
	}
	want := StringInfo{Text: "Hello, world", FileName: "a.skein", NodeName: "Start", LineNumber: 3}
	if diff := cmp.Diff(want, si); diff != "" {
		t.Errorf("StringInfo diff (-want +got):\n%s", diff)
	}

	if _, err := ReadStringTable(strings.NewReader(csv), "not a language"); err == nil {
		t.Error("ReadStringTable with bad language = nil error")
	}
}

func TestReadMetadataTable(t *testing.T) {
	st := NewStringTable(language.English)
	st.Insert("line:a", StringInfo{Text: "Hello"})
	const meta = `id,node,lineNumber,tags
line:a,Start,3,#shouting
line:unknown,Start,9,#ignored
`
	if err := ReadMetadataTable(strings.NewReader(meta), st); err != nil {
		t.Fatalf("ReadMetadataTable = %v", err)
	}
	si, _ := st.Lookup("line:a")
	if diff := cmp.Diff([]string{"#shouting"}, si.Metadata); diff != "" {
		t.Errorf("Metadata diff (-want +got):\n%s", diff)
	}
}

func TestIDsAndAll(t *testing.T) {
	st := NewStringTable(language.English)
	st.Insert("line:b", StringInfo{Text: "b"})
	st.Insert("line:a", StringInfo{Text: "a"})
	ids := st.IDs()
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	if diff := cmp.Diff([]LineID{"line:a", "line:b"}, ids); diff != "" {
		t.Errorf("IDs diff (-want +got):\n%s", diff)
	}

	n := 0
	st.All(func(LineID, StringInfo) bool {
		n++
		return n < 1 // stop after the first
	})
	if n != 1 {
		t.Errorf("All visited %d entries after early stop, want 1", n)
	}
}
