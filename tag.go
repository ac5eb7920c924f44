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
	"hash/fnv"
	"regexp"
	"strings"
)

var lineTagPattern = regexp.MustCompile(`#line:[A-Za-z0-9_]+`)

// AddLineTags rewrites narrative source so that every statement-bearing
// line carries an explicit #line: tag. Lines that already have one, blank
// lines, comments, commands and node delimiters are left alone. Generated
// IDs avoid collision with the IDs in existing and with each other.
//
// The rewrite is deterministic: IDs are derived from the containing node
// and the line's content, so two invocations on the same input produce
// byte-identical output, and running the output through AddLineTags again
// changes nothing. Newlines, indentation, and surrounding tags are
// preserved.
//
// It returns the new source and whether anything changed.
func AddLineTags(source string, existing map[LineID]bool) (string, bool) {
	used := make(map[LineID]bool, len(existing))
	for id := range existing {
		used[id] = true
	}
	// IDs already written in this source also count as taken.
	for _, tag := range lineTagPattern.FindAllString(source, -1) {
		used[LineID(tag[1:])] = true
	}

	lines := strings.SplitAfter(source, "\n")
	changed := false
	inBody := false
	nodeName := ""
	for i, raw := range lines {
		line, eol := splitLineEnding(raw)
		trimmed := strings.TrimSpace(line)
		if !inBody {
			if name, ok := strings.CutPrefix(trimmed, "title:"); ok {
				nodeName = strings.TrimSpace(name)
			}
			if trimmed == "---" {
				inBody = true
			}
			continue
		}
		if trimmed == "===" {
			inBody = false
			nodeName = ""
			continue
		}
		if !statementBearing(trimmed) || lineTagPattern.MatchString(line) {
			continue
		}
		id := generateLineID(nodeName, trimmed, used)
		lines[i] = insertLineTag(line, id) + eol
		changed = true
	}
	if !changed {
		return source, false
	}
	return strings.Join(lines, ""), true
}

// statementBearing reports whether a (trimmed) body line delivers text to
// the player: dialogue lines and options do; blanks, comments, and
// command-only lines (<<...>>) do not.
func statementBearing(trimmed string) bool {
	if trimmed == "" || strings.HasPrefix(trimmed, "//") {
		return false
	}
	if strings.HasPrefix(trimmed, "<<") && strings.HasSuffix(trimmed, ">>") {
		return false
	}
	return true
}

// insertLineTag appends " #<id>" to the line's content, before any trailing
// comment.
func insertLineTag(line string, id LineID) string {
	if ci := strings.Index(line, "//"); ci >= 0 {
		content := strings.TrimRight(line[:ci], " \t")
		return content + " #" + string(id) + " " + line[ci:]
	}
	return strings.TrimRight(line, " \t") + " #" + string(id)
}

// generateLineID derives an ID from the node and line content, probing with
// a salt until it finds one not already taken. The chosen ID is recorded in
// used.
func generateLineID(nodeName, content string, used map[LineID]bool) LineID {
	for salt := 0; ; salt++ {
		h := fnv.New64a()
		fmt.Fprintf(h, "%s\x00%s\x00%d", nodeName, content, salt)
		id := LineID(fmt.Sprintf("%s%08x", LineIDPrefix, uint32(h.Sum64())))
		if !used[id] {
			used[id] = true
			return id
		}
	}
}

func splitLineEnding(raw string) (line, eol string) {
	if strings.HasSuffix(raw, "\n") {
		line, eol = raw[:len(raw)-1], "\n"
		if strings.HasSuffix(line, "\r") {
			line, eol = line[:len(line)-1], "\r\n"
		}
	} else {
		line = raw
	}
	return line, eol
}

// ExtractStrings scans narrative source and inserts one string table row
// per statement-bearing line: explicit when the line carries a #line: tag,
// implicit otherwise. Lines are visited top to bottom, so implicit ordinals
// are stable for unchanged source.
func ExtractStrings(fileName, source string, st *StringTable) {
	inBody := false
	nodeName := ""
	for i, raw := range strings.Split(source, "\n") {
		line := strings.TrimSuffix(raw, "\r")
		trimmed := strings.TrimSpace(line)
		if !inBody {
			if name, ok := strings.CutPrefix(trimmed, "title:"); ok {
				nodeName = strings.TrimSpace(name)
			}
			if trimmed == "---" {
				inBody = true
			}
			continue
		}
		if trimmed == "===" {
			inBody = false
			nodeName = ""
			continue
		}
		if !statementBearing(trimmed) {
			continue
		}
		text, tags := splitLineText(trimmed)
		si := StringInfo{
			Text:       text,
			NodeName:   nodeName,
			FileName:   fileName,
			LineNumber: i + 1,
			Metadata:   tags,
		}
		if id, ok := lineIDTag(tags); ok {
			st.Insert(id, si)
		} else {
			st.InsertImplicit(si)
		}
	}
}

// splitLineText separates a statement's display text from its trailing
// hashtags, dropping any trailing comment, inline condition (an option's
// <<if ...>> group), and the option marker.
func splitLineText(s string) (text string, tags []string) {
	if ci := strings.Index(s, "//"); ci >= 0 {
		s = s[:ci]
	}
	for {
		s = strings.TrimRight(s, " \t")
		i := strings.LastIndexAny(s, " \t")
		if tok := s[i+1:]; i >= 0 && strings.HasPrefix(tok, "#") {
			tags = append([]string{tok}, tags...)
			s = s[:i]
			continue
		}
		break
	}
	if strings.HasSuffix(s, ">>") {
		if ci := strings.LastIndex(s, "<<"); ci >= 0 {
			s = s[:ci]
		}
	}
	text = strings.TrimSpace(strings.TrimPrefix(s, "->"))
	return text, tags
}

// lineIDTag finds the line ID among a line's hashtags.
func lineIDTag(tags []string) (LineID, bool) {
	for _, tag := range tags {
		if strings.HasPrefix(tag, "#"+LineIDPrefix) {
			return LineID(tag[1:]), true
		}
	}
	return "", false
}

// CollectLineTags returns every line ID tag written in the source.
func CollectLineTags(source string) map[LineID]bool {
	ids := make(map[LineID]bool)
	for _, tag := range lineTagPattern.FindAllString(source, -1) {
		ids[LineID(tag[1:])] = true
	}
	return ids
}

// ExplicitLineIDs collects the explicitly tagged IDs of a string table, the
// set AddLineTags must not collide with.
func ExplicitLineIDs(st *StringTable) map[LineID]bool {
	ids := make(map[LineID]bool)
	st.All(func(id LineID, si StringInfo) bool {
		if !si.IsImplicitTag {
			ids[id] = true
		}
		return true
	})
	return ids
}
