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
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/tangleworks/skein/bytecode"
)

// LoadFiles is a convenient way of loading a compiled program and its string
// table from files in one call. When passing a programPath named
// foo/bar/file.skeinc, LoadFiles expects a file named foo/bar/file-Lines.csv
// next to it; a foo/bar/file-Metadata.csv is attached when present.
// langCode should be a valid BCP 47 language tag for the base language.
func LoadFiles(programPath, langCode string) (*bytecode.Program, *StringTable, error) {
	prog, err := LoadProgramFile(programPath)
	if err != nil {
		return nil, nil, err
	}
	st, err := LoadStringTableFile(stringTablePath(programPath), langCode)
	if err != nil {
		return nil, nil, err
	}
	if err := attachMetadataFile(metadataTablePath(programPath), st); err != nil {
		return nil, nil, err
	}
	return prog, st, nil
}

// LoadFilesFS loads compiled files from the provided fs.FS. See LoadFiles
// for more information.
func LoadFilesFS(fsys fs.FS, programPath, langCode string) (*bytecode.Program, *StringTable, error) {
	raw, err := fs.ReadFile(fsys, programPath)
	if err != nil {
		return nil, nil, fmt.Errorf("reading program file: %w", err)
	}
	prog, err := bytecode.Unmarshal(raw)
	if err != nil {
		return nil, nil, fmt.Errorf("unmarshaling program: %w", err)
	}

	csvRaw, err := fs.ReadFile(fsys, stringTablePath(programPath))
	if err != nil {
		return nil, nil, fmt.Errorf("reading string table file: %w", err)
	}
	st, err := ReadStringTable(bytes.NewReader(csvRaw), langCode)
	if err != nil {
		return nil, nil, fmt.Errorf("reading string table: %w", err)
	}

	metaRaw, err := fs.ReadFile(fsys, metadataTablePath(programPath))
	switch {
	case errors.Is(err, fs.ErrNotExist):
		// Metadata is optional.
	case err != nil:
		return nil, nil, fmt.Errorf("reading metadata table file: %w", err)
	default:
		if err := ReadMetadataTable(bytes.NewReader(metaRaw), st); err != nil {
			return nil, nil, fmt.Errorf("reading metadata table: %w", err)
		}
	}
	return prog, st, nil
}

// LoadProgramFile loads a compiled program given a file path.
func LoadProgramFile(programPath string) (*bytecode.Program, error) {
	raw, err := os.ReadFile(programPath)
	if err != nil {
		return nil, fmt.Errorf("reading program file: %w", err)
	}
	prog, err := bytecode.Unmarshal(raw)
	if err != nil {
		return nil, fmt.Errorf("unmarshaling program: %w", err)
	}
	return prog, nil
}

// attachMetadataFile reads a metadata CSV into st, if the file exists.
func attachMetadataFile(path string, st *StringTable) error {
	f, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening metadata table file: %w", err)
	}
	defer f.Close()
	if err := ReadMetadataTable(f, st); err != nil {
		return fmt.Errorf("reading metadata table: %w", err)
	}
	return nil
}

// ProgramFileExtension is the conventional extension for compiled programs.
const ProgramFileExtension = ".skeinc"

func stringTablePath(programPath string) string {
	base := strings.TrimSuffix(programPath, ProgramFileExtension)
	return fmt.Sprintf("%s-Lines.csv", base)
}

func metadataTablePath(programPath string) string {
	base := strings.TrimSuffix(programPath, ProgramFileExtension)
	return fmt.Sprintf("%s-Metadata.csv", base)
}
