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
	"sync"

	"github.com/samber/oops"
	"golang.org/x/text/language"
)

// TextProvider resolves line IDs to display text for the current language.
// Implementations that fetch text asynchronously report readiness through
// LinesAvailable; the dialogue will not deliver lines until the provider is
// ready.
type TextProvider interface {
	// PrepareForLines hints lines that may be delivered soon, so the
	// provider can prefetch. Not every hinted line ends up delivered.
	PrepareForLines(ids []LineID)

	// Line resolves a line to localized display text with substitutions
	// interpolated and format functions applied.
	Line(line Line) (LocalizedLine, error)

	// SetLanguage switches the provider to another language.
	SetLanguage(lang language.Tag) error

	// Language reports the language text is currently resolved in.
	Language() language.Tag

	// LinesAvailable reports whether the provider is ready to resolve text.
	LinesAvailable() bool
}

// AssetProvider supplies per-line localized assets, such as voice-over
// clips or character portraits.
type AssetProvider interface {
	// PrepareForLines hints lines that may be delivered soon.
	PrepareForLines(ids []LineID)

	// Assets returns the provider's assets for a line, if any.
	Assets(id LineID) []Asset

	// SetLanguage switches the provider to another language.
	SetLanguage(lang language.Tag) error

	// AssetsAvailable reports whether the provider is ready to supply
	// assets.
	AssetsAvailable() bool
}

// StringTableTextProvider is a TextProvider backed by in-memory string
// tables: the base-language table from compilation, plus any translation
// tables loaded from strings files. Lines missing from a translation fall
// back to the base language. Safe for concurrent use.
type StringTableTextProvider struct {
	mu           sync.RWMutex
	base         *StringTable
	translations map[language.Tag]*StringTable
	current      *StringTable
}

// NewStringTableTextProvider returns a provider serving the base table's
// language.
func NewStringTableTextProvider(base *StringTable) *StringTableTextProvider {
	return &StringTableTextProvider{
		base:         base,
		translations: make(map[language.Tag]*StringTable),
		current:      base,
	}
}

// AddTranslation registers a translation table, keyed by its language.
func (p *StringTableTextProvider) AddTranslation(table *StringTable) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.translations[table.Language] = table
}

// PrepareForLines is a no-op: all tables are already in memory.
func (p *StringTableTextProvider) PrepareForLines([]LineID) {}

// Line renders the line from the current table. If a translation is active
// but has no row for the ID, the base language text is used instead. Line
// metadata always comes from the base table.
func (p *StringTableTextProvider) Line(line Line) (LocalizedLine, error) {
	p.mu.RLock()
	cur, base := p.current, p.base
	p.mu.RUnlock()

	text, err := cur.Render(line)
	if err != nil && cur != base {
		text, err = base.Render(line)
	}
	if err != nil {
		return LocalizedLine{}, err
	}
	ll := LocalizedLine{
		ID:   line.ID,
		Text: text,
	}
	if row, ok := base.Lookup(line.ID); ok {
		ll.Metadata = row.AuthorTags()
	}
	return ll, nil
}

// SetLanguage switches to the base language or a registered translation.
func (p *StringTableTextProvider) SetLanguage(lang language.Tag) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lang == p.base.Language {
		p.current = p.base
		return nil
	}
	t, ok := p.translations[lang]
	if !ok {
		return oops.
			Code("UNSUPPORTED_LANGUAGE").
			With("language", lang.String()).
			Errorf("no translation for language %q", lang)
	}
	p.current = t
	return nil
}

// Language reports the language of the active table.
func (p *StringTableTextProvider) Language() language.Tag {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.current.Language
}

// LinesAvailable always reports true: the tables are in memory.
func (p *StringTableTextProvider) LinesAvailable() bool { return true }
