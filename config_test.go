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
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/text/language"
)

func writeProjectFile(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), DefaultProjectFile)
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadProjectConfig(t *testing.T) {
	path := writeProjectFile(t, `
source_files:
  - dialogue/*.skein
  - extras/intro.skein
base_language: en-US
file_generation_mode: Development
localizations:
  de-CH:
    strings_file: locale/de.strings.csv
  ja: {}
`)

	pc, err := LoadProjectConfig(path)
	if err != nil {
		t.Fatalf("LoadProjectConfig: %v", err)
	}
	want := &ProjectConfig{
		SourceFiles:        []string{"dialogue/*.skein", "extras/intro.skein"},
		BaseLanguage:       "en-US",
		FileGenerationMode: "Development",
		Localizations: map[string]TranslationConfig{
			"de-CH": {StringsFile: "locale/de.strings.csv"},
			"ja":    {},
		},
	}
	if diff := cmp.Diff(want, pc); diff != "" {
		t.Errorf("config diff (-want +got):\n%s", diff)
	}

	loc, err := pc.BuildLocalizations()
	if err != nil {
		t.Fatalf("BuildLocalizations: %v", err)
	}
	if loc.BaseLanguage != language.AmericanEnglish {
		t.Errorf("BaseLanguage = %v, want en-US", loc.BaseLanguage)
	}
	if loc.FileGenerationMode != FileGenerationDevelopment {
		t.Errorf("FileGenerationMode = %v, want Development", loc.FileGenerationMode)
	}
	// Translations are sorted by tag; ja falls back to the default path.
	wantTr := []Translation{
		{Language: language.MustParse("de-CH"), StringsFile: "locale/de.strings.csv"},
		{Language: language.Japanese, StringsFile: "ja.strings.csv"},
	}
	if diff := cmp.Diff(wantTr, loc.Translations, cmpopts.EquateComparable(language.Tag{})); diff != "" {
		t.Errorf("translations diff (-want +got):\n%s", diff)
	}
}

func TestLoadProjectConfigUnreadable(t *testing.T) {
	_, err := LoadProjectConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Error("LoadProjectConfig(missing file) = nil error, want error")
	}
}

func TestLoadProjectConfigMalformedYAML(t *testing.T) {
	path := writeProjectFile(t, "source_files: [unclosed\n")
	if _, err := LoadProjectConfig(path); err == nil {
		t.Error("LoadProjectConfig(bad YAML) = nil error, want error")
	}
}

func TestBuildLocalizationsErrors(t *testing.T) {
	tests := []struct {
		name string
		pc   ProjectConfig
	}{
		{
			name: "bad base language",
			pc:   ProjectConfig{BaseLanguage: "not a tag!"},
		},
		{
			name: "bad translation language",
			pc: ProjectConfig{
				BaseLanguage:  "en",
				Localizations: map[string]TranslationConfig{"???": {}},
			},
		},
		{
			name: "bad file generation mode",
			pc: ProjectConfig{
				BaseLanguage:       "en",
				FileGenerationMode: "sometimes",
			},
		},
		{
			name: "base language among translations",
			pc: ProjectConfig{
				BaseLanguage:  "en-US",
				Localizations: map[string]TranslationConfig{"en-US": {}},
			},
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if _, err := test.pc.BuildLocalizations(); err == nil {
				t.Error("BuildLocalizations = nil error, want error")
			}
		})
	}
}
