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
	"hash/fnv"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/samber/oops"
	"golang.org/x/text/language"
)

// Lock is a short hash of a line's base-language text, stored per row of a
// strings file. When the base text changes, the lock in a regenerated file
// no longer matches the one a translator saw, flagging the translation as
// possibly stale. It is for visual drift detection by humans, not
// integrity; hence a short non-cryptographic hash.
type Lock string

// lockDigits is the number of hex digits kept: enough to make accidental
// collisions unlikely, short enough to be human-scannable.
const lockDigits = 8

// ComputeLock returns the lock for a piece of base-language text.
func ComputeLock(text string) Lock {
	h := fnv.New64a()
	h.Write([]byte(text))
	return Lock(fmt.Sprintf("%016x", h.Sum64())[:lockDigits])
}

// stringsFileColumns is the header row of a strings file.
var stringsFileColumns = []string{"language", "id", "text", "file", "node", "lineNumber", "lock", "comment"}

// StringsFileRecord is one row of a strings file.
type StringsFileRecord struct {
	Language   language.Tag
	ID         LineID
	Text       string
	File       string
	Node       string
	LineNumber int
	Lock       Lock
	Comment    string
}

// StringsFile is one language's translation table, loaded from or destined
// for a CSV on disk.
type StringsFile struct {
	// Language declared by the file's rows.
	Language language.Tag

	// Records sorted by (file, line number).
	Records []StringsFileRecord
}

// RecordsFromTable builds the rows of a strings file for lang from the
// base-language string table. Only explicit entries are included: implicit
// IDs are unstable across edits, so translating them would be wasted work -
// run the line-ID injector first. Rows are sorted by (file, line number);
// locks are computed from the base text.
func RecordsFromTable(lang language.Tag, table *StringTable) []StringsFileRecord {
	var records []StringsFileRecord
	table.All(func(id LineID, si StringInfo) bool {
		if si.IsImplicitTag {
			return true
		}
		records = append(records, StringsFileRecord{
			Language:   lang,
			ID:         id,
			Text:       si.Text,
			File:       si.FileName,
			Node:       si.NodeName,
			LineNumber: si.LineNumber,
			Lock:       ComputeLock(si.Text),
			Comment:    readComments(si.Metadata),
		})
		return true
	})
	sort.Slice(records, func(i, j int) bool {
		if records[i].File != records[j].File {
			return records[i].File < records[j].File
		}
		return records[i].LineNumber < records[j].LineNumber
	})
	return records
}

// readComments generates the "comment" column for a line: its metadata
// tokens other than the line ID, prefixed with "Line metadata: ", or empty
// if only the ID is present.
func readComments(metadata []string) string {
	var cleaned []string
	for _, m := range metadata {
		if len(m) < len(LineIDPrefix) || m[:len(LineIDPrefix)] != LineIDPrefix {
			cleaned = append(cleaned, m)
		}
	}
	if len(cleaned) == 0 {
		return ""
	}
	out := "Line metadata: " + cleaned[0]
	for _, m := range cleaned[1:] {
		out += " " + m
	}
	return out
}

// WriteStringsFile writes records as CSV to w, header row first. Encoding
// is UTF-8 without a BOM; quoting follows standard CSV rules.
func WriteStringsFile(w io.Writer, records []StringsFileRecord) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(stringsFileColumns); err != nil {
		return err
	}
	for _, rec := range records {
		row := []string{
			rec.Language.String(),
			string(rec.ID),
			rec.Text,
			rec.File,
			rec.Node,
			strconv.Itoa(rec.LineNumber),
			string(rec.Lock),
			rec.Comment,
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// SaveStringsFile writes records to path via a temporary file in the same
// directory, renaming into place on success. A failed write never replaces
// a prior file.
func SaveStringsFile(path string, records []StringsFileRecord) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp*")
	if err != nil {
		return fmt.Errorf("creating temp strings file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if err := WriteStringsFile(tmp, records); err != nil {
		tmp.Close()
		return fmt.Errorf("writing strings file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("renaming strings file into place: %w", err)
	}
	return nil
}

// ReadStringsFile reads a strings CSV from r. All rows must declare the
// same language.
func ReadStringsFile(r io.Reader) (*StringsFile, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(stringsFileColumns)
	header := true
	sf := new(StringsFile)
	for {
		row, err := cr.Read()
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
		lang, err := language.Parse(row[0])
		if err != nil {
			return nil, fmt.Errorf("invalid language %q: %w", row[0], err)
		}
		if sf.Language == (language.Tag{}) {
			sf.Language = lang
		} else if lang != sf.Language {
			return nil, oops.Code("STRINGS_FILE_MIXED_LANGUAGES").
				With("first", sf.Language.String()).
				With("second", lang.String()).
				Errorf("strings file mixes languages %v and %v", sf.Language, lang)
		}
		ln, err := strconv.Atoi(row[5])
		if err != nil {
			return nil, fmt.Errorf("invalid line number %q: %w", row[5], err)
		}
		sf.Records = append(sf.Records, StringsFileRecord{
			Language:   lang,
			ID:         LineID(row[1]),
			Text:       row[2],
			File:       row[3],
			Node:       row[4],
			LineNumber: ln,
			Lock:       Lock(row[6]),
			Comment:    row[7],
		})
	}
	return sf, nil
}

// LoadStringsFile loads the strings file at path and checks that the
// language its rows declare agrees with the language it is registered
// under. Disagreement is an integrity error.
func LoadStringsFile(path string, expect language.Tag) (*StringsFile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening strings file: %w", err)
	}
	defer f.Close()
	sf, err := ReadStringsFile(f)
	if err != nil {
		return nil, fmt.Errorf("reading strings file %q: %w", path, err)
	}
	if sf.Language != (language.Tag{}) && sf.Language != expect {
		return nil, oops.Code("STRINGS_FILE_WRONG_LANGUAGE").
			With("path", path).
			With("registered", expect.String()).
			With("declared", sf.Language.String()).
			Errorf("strings file registered for language %q actually contains language %q", expect, sf.Language)
	}
	return sf, nil
}

// Table converts the file's rows into a string table for its language.
func (sf *StringsFile) Table() *StringTable {
	st := NewStringTable(sf.Language)
	for _, rec := range sf.Records {
		st.Insert(rec.ID, StringInfo{
			Text:       rec.Text,
			FileName:   rec.File,
			NodeName:   rec.Node,
			LineNumber: rec.LineNumber,
		})
	}
	return st
}

// Upgrade merges rows for base-table entries that are missing from the
// file, keeping existing translations untouched, and re-sorts. It returns
// the number of rows added. Stale rows (mismatched locks) are a matter for
// the translator, not for code, and are left alone.
func (sf *StringsFile) Upgrade(base []StringsFileRecord) int {
	have := make(map[LineID]bool, len(sf.Records))
	for _, rec := range sf.Records {
		have[rec.ID] = true
	}
	added := 0
	for _, rec := range base {
		if have[rec.ID] {
			continue
		}
		rec.Language = sf.Language
		sf.Records = append(sf.Records, rec)
		added++
	}
	if added > 0 {
		sort.Slice(sf.Records, func(i, j int) bool {
			if sf.Records[i].File != sf.Records[j].File {
				return sf.Records[i].File < sf.Records[j].File
			}
			return sf.Records[i].LineNumber < sf.Records[j].LineNumber
		})
	}
	return added
}

// CreateStringsFiles materializes a strings file for every configured
// translation language, rooted at assetsDir. Existing files are loaded and
// validated. Missing files are generated from the base-language table in
// Development mode, and are a fatal error in Production mode. No file is
// ever generated for the base language itself.
func CreateStringsFiles(loc *Localizations, table *StringTable, assetsDir string, logger *slog.Logger) (map[language.Tag]*StringsFile, error) {
	if err := loc.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	out := make(map[language.Tag]*StringsFile, len(loc.Translations))
	for _, tr := range loc.Translations {
		rel := tr.StringsFile
		if rel == "" {
			rel = DefaultStringsFilePath(tr.Language)
		}
		path := filepath.Join(assetsDir, rel)
		if _, err := os.Stat(path); err == nil {
			sf, err := LoadStringsFile(path, tr.Language)
			if err != nil {
				return nil, err
			}
			out[tr.Language] = sf
			continue
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("checking strings file %q: %w", path, err)
		}
		if loc.FileGenerationMode != FileGenerationDevelopment {
			return nil, oops.Code("STRINGS_FILE_MISSING").
				With("path", path).
				With("language", tr.Language.String()).
				Errorf("strings file %q does not exist on disk, and the file generation mode is not Development", path)
		}
		records := RecordsFromTable(tr.Language, table)
		if err := SaveStringsFile(path, records); err != nil {
			return nil, err
		}
		logger.Info("generated strings file",
			"path", path,
			"language", tr.Language.String(),
			"rows", len(records))
		out[tr.Language] = &StringsFile{Language: tr.Language, Records: records}
	}
	return out, nil
}
