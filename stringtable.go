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
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/samber/oops"
	"golang.org/x/text/language"
)

// LineID identifies a single line of narrative text. The canonical form is
// "line:<token>" where token is either author-chosen or generated.
type LineID string

func (id LineID) String() string { return string(id) }

// LineIDPrefix starts every line ID tag.
const LineIDPrefix = "line:"

// StringInfo is the metadata the string table holds for one line.
type StringInfo struct {
	// Text of the line, in the base language.
	Text string

	// NodeName is the node the line appears in.
	NodeName string

	// FileName is the source file the line appears in.
	FileName string

	// LineNumber is the 1-based line number in FileName.
	LineNumber int

	// IsImplicitTag marks entries whose ID was generated at insertion time
	// rather than written by the author. Implicit IDs are order-sensitive
	// and unstable across source edits, so shipping projects should run the
	// line-ID injector to make all tags explicit.
	IsImplicitTag bool

	// Metadata holds the line's raw hashtag tokens, including the line ID
	// tag if the author wrote one.
	Metadata []string
}

// AuthorTags returns the metadata tokens other than the line ID tag.
func (si StringInfo) AuthorTags() []string {
	var tags []string
	for _, m := range si.Metadata {
		if !strings.HasPrefix(m, LineIDPrefix) {
			tags = append(tags, m)
		}
	}
	return tags
}

// StringTable maps line IDs to line metadata for one language. It is built
// at compile time and read-only at runtime; only the compile step and the
// line-ID injector mutate it.
type StringTable struct {
	// Language the table's text is written in.
	Language language.Tag

	table map[LineID]StringInfo
}

// NewStringTable returns an empty string table for the given language.
func NewStringTable(lang language.Tag) *StringTable {
	return &StringTable{
		Language: lang,
		table:    make(map[LineID]StringInfo),
	}
}

// Insert adds an entry under an author-supplied ID. The entry is marked
// explicit. Inserting an ID that already exists replaces the previous entry
// (last wins); detecting accidental duplicates across files is the loader's
// job, see Merge.
func (t *StringTable) Insert(id LineID, info StringInfo) {
	info.IsImplicitTag = false
	t.table[id] = info
}

// InsertImplicit adds an entry without an author-supplied ID, generating an
// implicit ID of the shape "line:<file>-<node>-<n>" where n is the current
// table size. The compiler must therefore visit source in a fixed order for
// these IDs to be stable.
func (t *StringTable) InsertImplicit(info StringInfo) LineID {
	id := LineID(fmt.Sprintf("%s%s-%s-%d", LineIDPrefix, info.FileName, info.NodeName, len(t.table)))
	info.IsImplicitTag = true
	t.table[id] = info
	return id
}

// Lookup fetches the entry for an ID.
func (t *StringTable) Lookup(id LineID) (StringInfo, bool) {
	si, ok := t.table[id]
	return si, ok
}

// Len returns the number of entries.
func (t *StringTable) Len() int { return len(t.table) }

// IDs returns all line IDs, in no particular order.
func (t *StringTable) IDs() []LineID {
	ids := make([]LineID, 0, len(t.table))
	for id := range t.table {
		ids = append(ids, id)
	}
	return ids
}

// All iterates the table, in no particular order.
func (t *StringTable) All(f func(LineID, StringInfo) bool) {
	for id, si := range t.table {
		if !f(id, si) {
			return
		}
	}
}

// ContainsImplicit reports whether any entry has a generated ID.
func (t *StringTable) ContainsImplicit() bool {
	for _, si := range t.table {
		if si.IsImplicitTag {
			return true
		}
	}
	return false
}

// Merge adds all entries of other into t. Two explicit entries sharing an ID
// is an integrity error: merging distinct authored lines under one ID would
// silently corrupt translations.
func (t *StringTable) Merge(other *StringTable) error {
	for id, si := range other.table {
		if prev, exists := t.table[id]; exists && !prev.IsImplicitTag && !si.IsImplicitTag {
			return oops.Code("DUPLICATE_LINE_ID").
				With("id", string(id)).
				With("first_file", prev.FileName).
				With("second_file", si.FileName).
				Errorf("duplicate explicit line ID %q", id)
		}
		t.table[id] = si
	}
	return nil
}

// LoadStringTableFile is a convenient function for loading a CSV string
// table given a file path. It assumes the first row is a header. langCode
// must be a valid BCP 47 language tag.
func LoadStringTableFile(stringTablePath, langCode string) (*StringTable, error) {
	f, err := os.Open(stringTablePath)
	if err != nil {
		return nil, fmt.Errorf("opening string table file: %w", err)
	}
	defer f.Close()
	st, err := ReadStringTable(f, langCode)
	if err != nil {
		return nil, fmt.Errorf("reading string table: %w", err)
	}
	return st, nil
}

// ReadStringTable reads a compiled CSV string table (columns id, text, file,
// node, lineNumber) from the reader. It assumes the first row is a header.
// langCode must be a valid BCP 47 language tag.
func ReadStringTable(r io.Reader, langCode string) (*StringTable, error) {
	lang, err := language.Parse(langCode)
	if err != nil {
		return nil, fmt.Errorf("invalid lang code: %w", err)
	}

	st := NewStringTable(lang)
	header := true
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = 5
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("csv read: %w", err)
		}
		if header {
			header = false
			continue
		}
		ln, err := strconv.Atoi(rec[4])
		if err != nil {
			return nil, fmt.Errorf("atoi: %w", err)
		}
		st.Insert(LineID(rec[0]), StringInfo{
			Text:       rec[1],
			FileName:   rec[2],
			NodeName:   rec[3],
			LineNumber: ln,
		})
	}
	return st, nil
}

// ReadMetadataTable reads a compiled metadata CSV (columns id, node,
// lineNumber, tags...) and attaches the tags to entries of st. Unknown IDs
// are ignored.
func ReadMetadataTable(r io.Reader, st *StringTable) error {
	header := true
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1 // variable number of tag columns
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("csv read: %w", err)
		}
		if header {
			header = false
			continue
		}
		if len(rec) < 3 {
			continue
		}
		id := LineID(rec[0])
		si, ok := st.table[id]
		if !ok {
			continue
		}
		si.Metadata = append(si.Metadata, rec[3:]...)
		st.table[id] = si
	}
}
