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

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"golang.org/x/text/language"
)

// DefaultProjectFile is the conventional project config filename.
const DefaultProjectFile = "skein.yaml"

// ProjectConfig is the on-disk project configuration: which source files
// belong to the project and how it is localized.
//
//	source_files:
//	  - dialogue/*.skein
//	base_language: en
//	file_generation_mode: Development
//	localizations:
//	  de:
//	    strings_file: locale/de.strings.csv
//	  ja: {}
type ProjectConfig struct {
	// SourceFiles are glob patterns selecting the project's narrative
	// source files.
	SourceFiles []string `koanf:"source_files"`

	// BaseLanguage is the BCP 47 tag of the language the source is written
	// in.
	BaseLanguage string `koanf:"base_language"`

	// FileGenerationMode controls whether missing strings files are
	// generated (Development) or an error (Production).
	FileGenerationMode string `koanf:"file_generation_mode"`

	// Localizations maps translation language tags to their settings.
	Localizations map[string]TranslationConfig `koanf:"localizations"`
}

// TranslationConfig is the per-language section of a project config.
type TranslationConfig struct {
	// StringsFile is the path of the language's strings CSV. Empty means
	// the conventional "<lang>.strings.csv".
	StringsFile string `koanf:"strings_file"`
}

// LoadProjectConfig reads and parses a YAML project config.
func LoadProjectConfig(path string) (*ProjectConfig, error) {
	errb := oops.In("config").With("path", path)
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, errb.Code("CONFIG_UNREADABLE").Wrap(err)
	}
	var pc ProjectConfig
	if err := k.Unmarshal("", &pc); err != nil {
		return nil, errb.Code("CONFIG_MALFORMED").Wrap(err)
	}
	return &pc, nil
}

// BuildLocalizations converts the raw config into a validated
// Localizations.
func (c *ProjectConfig) BuildLocalizations() (*Localizations, error) {
	errb := oops.In("config")
	base, err := language.Parse(c.BaseLanguage)
	if err != nil {
		return nil, errb.Code("BAD_LANGUAGE").
			With("language", c.BaseLanguage).
			Wrapf(err, "parsing base language")
	}

	loc := &Localizations{BaseLanguage: base}
	if c.FileGenerationMode != "" {
		mode, err := ParseFileGenerationMode(c.FileGenerationMode)
		if err != nil {
			return nil, err
		}
		loc.FileGenerationMode = mode
	}

	tags := make([]string, 0, len(c.Localizations))
	for tag := range c.Localizations {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		tc := c.Localizations[tag]
		lang, err := language.Parse(tag)
		if err != nil {
			return nil, errb.Code("BAD_LANGUAGE").
				With("language", tag).
				Wrapf(err, "parsing translation language")
		}
		sf := tc.StringsFile
		if sf == "" {
			sf = DefaultStringsFilePath(lang)
		}
		loc.Translations = append(loc.Translations, Translation{
			Language:    lang,
			StringsFile: sf,
		})
	}

	if err := loc.Validate(); err != nil {
		return nil, err
	}
	return loc, nil
}
