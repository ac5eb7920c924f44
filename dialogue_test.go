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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/text/language"

	"github.com/tangleworks/skein/bytecode"
)

// eventLog collects facade events for assertions.
type eventLog struct {
	events []Event
}

func (l *eventLog) sink() EventFunc {
	return func(ev Event) { l.events = append(l.events, ev) }
}

func (l *eventLog) kinds() []EventKind {
	ks := make([]EventKind, len(l.events))
	for i, ev := range l.events {
		ks[i] = ev.Kind
	}
	return ks
}

func (l *eventLog) ofKind(k EventKind) []Event {
	var out []Event
	for _, ev := range l.events {
		if ev.Kind == k {
			out = append(out, ev)
		}
	}
	return out
}

func testTable(t *testing.T) *StringTable {
	t.Helper()
	st := NewStringTable(language.AmericanEnglish)
	st.Insert("line:hello", StringInfo{Text: "Hello there.", FileName: "a.skein", NodeName: "Start", LineNumber: 3})
	st.Insert("line:after", StringInfo{Text: "All done waiting.", FileName: "a.skein", NodeName: "Start", LineNumber: 5})
	st.Insert("line:optA", StringInfo{Text: "Take the high road", FileName: "a.skein", NodeName: "Start", LineNumber: 7})
	st.Insert("line:optB", StringInfo{Text: "Take the low road", FileName: "a.skein", NodeName: "Start", LineNumber: 8})
	st.Insert("line:tookA", StringInfo{Text: "High it is.", FileName: "a.skein", NodeName: "Start", LineNumber: 10})
	st.Insert("line:tookB", StringInfo{Text: "Low it is.", FileName: "a.skein", NodeName: "Start", LineNumber: 12})
	return st
}

func lineProgram() *bytecode.Program {
	return &bytecode.Program{
		Nodes: map[string]*bytecode.Node{
			"Start": {
				Name: "Start",
				Tags: []string{"intro"},
				Instructions: []*bytecode.Instruction{
					instr(bytecode.OpRunLine, bytecode.StringOperand("line:hello")),
				},
			},
		},
	}
}

func newTestDialogue(t *testing.T, prog *bytecode.Program, log *eventLog, cmds *CommandRegistry) *Dialogue {
	t.Helper()
	d, err := NewDialogue(DialogueConfig{
		Program:      prog,
		TextProvider: NewStringTableTextProvider(testTable(t)),
		Events:       log.sink(),
		Commands:     cmds,
	})
	require.NoError(t, err)
	return d
}

func TestDialogueLineFlow(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, lineProgram(), log, nil)

	require.NoError(t, d.Start())
	assert.True(t, d.IsRunning())

	// Nothing happens until the update tick.
	require.NoError(t, d.Update())

	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "Hello there.", lines[0].Line.Text)
	assert.Equal(t, LineID("line:hello"), lines[0].Line.ID)

	// The dialogue holds until the host asks for more.
	require.NoError(t, d.Update())
	require.Len(t, log.ofKind(EventPresentLine), 1)

	d.ContinueInNextUpdate()
	require.NoError(t, d.Update())
	assert.False(t, d.IsRunning())

	want := []EventKind{
		EventDialogueStart,
		EventNodeStart,
		EventLineHints,
		EventPresentLine,
		EventNodeComplete,
		EventDialogueComplete,
	}
	assert.Equal(t, want, log.kinds())
}

func TestDialogueStartWhileRunning(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, lineProgram(), log, nil)
	require.NoError(t, d.Start())
	assert.ErrorIs(t, d.Start(), ErrAlreadyRunning)
}

func TestDialogueOptionFlow(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, optionProgram(), log, nil)

	require.NoError(t, d.Start())
	require.NoError(t, d.Update())
	require.True(t, d.IsWaitingForOptionSelection())

	presented := log.ofKind(EventPresentOptions)
	require.Len(t, presented, 1)
	opts := presented[0].Options
	require.Len(t, opts, 2)
	assert.Equal(t, "Take the high road", opts[0].Line.Text)
	assert.Equal(t, "Take the low road", opts[1].Line.Text)
	assert.True(t, opts[0].IsAvailable)

	require.NoError(t, d.SelectOption(1))
	require.NoError(t, d.Update())

	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "Low it is.", lines[0].Line.Text)
}

func TestDialogueCommandWait(t *testing.T) {
	cmds := NewCommandRegistry()
	cmds.MustRegister("wait3", func() Task { return &tickTask{remaining: 3} })

	prog := &bytecode.Program{
		Nodes: map[string]*bytecode.Node{
			"Start": {
				Name: "Start",
				Instructions: []*bytecode.Instruction{
					instr(bytecode.OpRunCommand, bytecode.StringOperand("wait3")),
					instr(bytecode.OpRunLine, bytecode.StringOperand("line:after")),
				},
			},
		},
	}
	log := &eventLog{}
	d := newTestDialogue(t, prog, log, cmds)

	require.NoError(t, d.Start())
	require.NoError(t, d.Update()) // runs the command, starts the task

	require.Len(t, log.ofKind(EventExecuteCommand), 1)
	assert.Equal(t, "wait3", log.ofKind(EventExecuteCommand)[0].CommandName)

	// The task finishes after three ticks; until then the dialogue sits in
	// the command wait without re-running the command.
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Update())
		assert.Empty(t, log.ofKind(EventPresentLine), "tick %d advanced early", i)
	}
	require.NoError(t, d.Update())

	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "All done waiting.", lines[0].Line.Text)
	require.Len(t, log.ofKind(EventExecuteCommand), 1)
}

func TestDialogueUnknownCommandIsFault(t *testing.T) {
	prog := &bytecode.Program{
		Nodes: map[string]*bytecode.Node{
			"Start": {
				Name: "Start",
				Instructions: []*bytecode.Instruction{
					instr(bytecode.OpRunCommand, bytecode.StringOperand("no_such_command")),
				},
			},
		},
	}
	log := &eventLog{}
	d := newTestDialogue(t, prog, log, nil)

	require.NoError(t, d.Start())
	err := d.Update()
	require.ErrorIs(t, err, ErrUnknownCommand)

	completes := log.ofKind(EventDialogueComplete)
	require.Len(t, completes, 1)
	assert.ErrorIs(t, completes[0].Fault, ErrUnknownCommand)
	assert.False(t, d.IsRunning())
}

func TestDialogueUpdateWhileWaitingOnOptions(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, optionProgram(), log, nil)

	require.NoError(t, d.Start())
	require.NoError(t, d.Update())
	require.True(t, d.IsWaitingForOptionSelection())

	// A queued advance while options are pending has no effect: no error,
	// no fault, no completion event, options still pending.
	d.ContinueInNextUpdate()
	require.NoError(t, d.Update())
	assert.True(t, d.IsWaitingForOptionSelection())
	assert.Empty(t, log.ofKind(EventDialogueComplete))
	assert.False(t, d.WillContinueInNextUpdate())

	// The dialogue still works normally afterwards.
	require.NoError(t, d.SelectOption(0))
	require.NoError(t, d.Update())
	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "High it is.", lines[0].Line.Text)
}

func TestDialogueUpdateWhileStopped(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, lineProgram(), log, nil)

	// Never started: a queued advance is dropped silently.
	d.ContinueInNextUpdate()
	require.NoError(t, d.Update())
	assert.Empty(t, log.events)

	// Same after a completed run.
	require.NoError(t, d.Start())
	require.NoError(t, d.Update())
	d.ContinueInNextUpdate()
	require.NoError(t, d.Update())
	require.False(t, d.IsRunning())
	before := len(log.events)
	d.ContinueInNextUpdate()
	require.NoError(t, d.Update())
	assert.Equal(t, before, len(log.events))
	require.Len(t, log.ofKind(EventDialogueComplete), 1)
	assert.NoError(t, log.ofKind(EventDialogueComplete)[0].Fault)
}

// gatedTextProvider reports not-ready for a fixed number of availability
// checks before resolving text normally.
type gatedTextProvider struct {
	*StringTableTextProvider
	notReady int
}

func (p *gatedTextProvider) LinesAvailable() bool {
	if p.notReady > 0 {
		p.notReady--
		return false
	}
	return true
}

// stubAssetProvider serves a fixed asset map once its ready flag is set.
type stubAssetProvider struct {
	ready  bool
	lang   language.Tag
	assets map[LineID][]Asset
}

func (p *stubAssetProvider) PrepareForLines([]LineID) {}

func (p *stubAssetProvider) Assets(id LineID) []Asset { return p.assets[id] }

func (p *stubAssetProvider) SetLanguage(lang language.Tag) error {
	p.lang = lang
	return nil
}

func (p *stubAssetProvider) AssetsAvailable() bool { return p.ready }

func TestDialogueWaitsForTextProvider(t *testing.T) {
	tp := &gatedTextProvider{
		StringTableTextProvider: NewStringTableTextProvider(testTable(t)),
		notReady:                3,
	}
	log := &eventLog{}
	d, err := NewDialogue(DialogueConfig{
		Program:      lineProgram(),
		TextProvider: tp,
		Events:       log.sink(),
	})
	require.NoError(t, err)

	require.NoError(t, d.Start())
	for i := 0; i < 3; i++ {
		require.NoError(t, d.Update())
		assert.Empty(t, log.ofKind(EventPresentLine), "tick %d delivered early", i)
		assert.True(t, d.WillContinueInNextUpdate())
	}
	require.NoError(t, d.Update())
	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "Hello there.", lines[0].Line.Text)
}

func TestDialogueWaitsForAssetProvider(t *testing.T) {
	ap := &stubAssetProvider{
		assets: map[LineID][]Asset{
			"line:hello": {{Name: "voice", Path: "vo/hello.ogg"}},
		},
	}
	log := &eventLog{}
	d, err := NewDialogue(DialogueConfig{
		Program:        lineProgram(),
		TextProvider:   NewStringTableTextProvider(testTable(t)),
		AssetProviders: []AssetProvider{ap},
		Events:         log.sink(),
	})
	require.NoError(t, err)

	require.NoError(t, d.Start())
	require.NoError(t, d.Update())
	assert.Empty(t, log.ofKind(EventPresentLine), "delivered before assets were ready")

	ap.ready = true
	require.NoError(t, d.Update())
	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, []Asset{{Name: "voice", Path: "vo/hello.ogg"}}, lines[0].Line.Assets)

	require.NoError(t, d.SetAssetLanguage(language.German))
	assert.Equal(t, language.German, ap.lang)
}

func TestDialogueLanguages(t *testing.T) {
	tp := NewStringTableTextProvider(testTable(t))
	de := NewStringTable(language.German)
	de.Insert("line:hello", StringInfo{Text: "Hallo."})
	tp.AddTranslation(de)

	loc := &Localizations{
		BaseLanguage: language.AmericanEnglish,
		Translations: []Translation{{Language: language.German}},
	}
	log := &eventLog{}
	d, err := NewDialogue(DialogueConfig{
		Program:       lineProgram(),
		TextProvider:  tp,
		Events:        log.sink(),
		Localizations: loc,
	})
	require.NoError(t, err)

	require.NoError(t, d.SetLanguage(language.German))
	assert.Error(t, d.SetLanguage(language.French), "French is not in the project")

	require.NoError(t, d.Start())
	require.NoError(t, d.Update())

	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "Hallo.", lines[0].Line.Text)
}

func TestDialogueTranslationFallback(t *testing.T) {
	tp := NewStringTableTextProvider(testTable(t))
	// German table with no row for line:hello.
	tp.AddTranslation(NewStringTable(language.German))

	log := &eventLog{}
	d, err := NewDialogue(DialogueConfig{
		Program:      lineProgram(),
		TextProvider: tp,
		Events:       log.sink(),
	})
	require.NoError(t, err)

	require.NoError(t, d.SetTextLanguage(language.German))
	require.NoError(t, d.Start())
	require.NoError(t, d.Update())

	lines := log.ofKind(EventPresentLine)
	require.Len(t, lines, 1)
	assert.Equal(t, "Hello there.", lines[0].Line.Text)
}

func TestDialogueNodeIntrospection(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, lineProgram(), log, nil)

	assert.True(t, d.NodeExists("Start"))
	assert.False(t, d.NodeExists("Missing"))

	tags, ok := d.TagsForNode("Start")
	require.True(t, ok)
	assert.Equal(t, []string{"intro"}, tags)

	_, ok = d.CurrentNode()
	assert.False(t, ok)
	require.NoError(t, d.Start())
	node, ok := d.CurrentNode()
	require.True(t, ok)
	assert.Equal(t, "Start", node)
}

func TestDialogueStopAndClear(t *testing.T) {
	log := &eventLog{}
	d := newTestDialogue(t, lineProgram(), log, nil)

	require.NoError(t, d.Start())
	require.NoError(t, d.Stop())
	assert.False(t, d.IsRunning())
	require.NotEmpty(t, log.ofKind(EventDialogueComplete))

	// Clear is silent.
	before := len(log.events)
	require.NoError(t, d.Start())
	d.Clear()
	assert.False(t, d.IsRunning())
	assert.Equal(t, before+1, len(log.events), "Clear should only add the DialogueStart from the restart")
}
