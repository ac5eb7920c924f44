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
	"fmt"

	"github.com/samber/oops"
	"golang.org/x/text/language"
)

// FileGenerationMode controls whether missing strings files are generated
// or treated as errors.
type FileGenerationMode int

const (
	// FileGenerationDevelopment generates missing strings files from the
	// base-language string table. Existing files are validated, never
	// overwritten.
	FileGenerationDevelopment FileGenerationMode = iota

	// FileGenerationProduction treats a missing strings file as a fatal
	// configuration error. No disk writes occur.
	FileGenerationProduction
)

func (m FileGenerationMode) String() string {
	switch m {
	case FileGenerationDevelopment:
		return "Development"
	case FileGenerationProduction:
		return "Production"
	}
	return fmt.Sprintf("(invalid FileGenerationMode %d)", int(m))
}

// ParseFileGenerationMode parses "Development" or "Production"
// (case-sensitively: the mode is an enum, not a free-form flag).
func ParseFileGenerationMode(s string) (FileGenerationMode, error) {
	switch s {
	case "Development":
		return FileGenerationDevelopment, nil
	case "Production":
		return FileGenerationProduction, nil
	}
	return 0, oops.Code("BAD_FILE_GENERATION_MODE").
		With("value", s).
		Errorf("file generation mode must be Development or Production")
}

// Translation configures one target language.
type Translation struct {
	// Language of the translation.
	Language language.Tag

	// StringsFile is the path of the language's strings CSV, relative to
	// the assets directory.
	StringsFile string
}

// DefaultStringsFilePath returns the conventional strings-file path for a
// language: "<lang>.strings.csv".
func DefaultStringsFilePath(lang language.Tag) string {
	return lang.String() + ".strings.csv"
}

// Localizations configures the languages of a project: the single base
// language the source is written in, plus the set of translation languages.
type Localizations struct {
	BaseLanguage       language.Tag
	Translations       []Translation
	FileGenerationMode FileGenerationMode
}

// Validate checks the configuration invariants: a base language is set, the
// translation set is disjoint from it, and no language is listed twice.
func (l *Localizations) Validate() error {
	if l.BaseLanguage == (language.Tag{}) {
		return oops.Code("NO_BASE_LANGUAGE").Errorf("no base language configured")
	}
	seen := make(map[language.Tag]bool)
	for _, tr := range l.Translations {
		if tr.Language == l.BaseLanguage {
			return oops.Code("BASE_LANGUAGE_IN_TRANSLATIONS").
				With("language", tr.Language.String()).
				Errorf("base language %v cannot also be a translation", tr.Language)
		}
		if seen[tr.Language] {
			return oops.Code("DUPLICATE_TRANSLATION").
				With("language", tr.Language.String()).
				Errorf("translation language %v listed twice", tr.Language)
		}
		seen[tr.Language] = true
	}
	return nil
}

// SupportsLanguage reports whether lang is the base language or one of the
// translations.
func (l *Localizations) SupportsLanguage(lang language.Tag) bool {
	return lang == l.BaseLanguage || l.SupportsTranslation(lang)
}

// SupportsTranslation reports whether lang is one of the translations.
func (l *Localizations) SupportsTranslation(lang language.Tag) bool {
	_, ok := l.Translation(lang)
	return ok
}

// Translation returns the configuration for a translation language.
func (l *Localizations) Translation(lang language.Tag) (Translation, bool) {
	for _, tr := range l.Translations {
		if tr.Language == lang {
			return tr, true
		}
	}
	return Translation{}, false
}
