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
	"errors"
	"log/slog"

	"github.com/samber/oops"
	"github.com/tangleworks/skein/bytecode"
	"golang.org/x/text/language"
)

// DefaultStartNode is the node Start runs when no node is named.
const DefaultStartNode = "Start"

// ErrAlreadyRunning indicates Start was called while a dialogue was in
// progress.
var ErrAlreadyRunning = errors.New("dialogue already running")

// DialogueConfig configures a Dialogue. Program, TextProvider and Events
// are required; everything else has a usable default.
type DialogueConfig struct {
	// Program is the compiled program to execute.
	Program *bytecode.Program

	// TextProvider resolves line IDs to display text.
	TextProvider TextProvider

	// Events receives the dialogue's structured events.
	Events EventFunc

	// AssetProviders supply per-line localized assets. Optional.
	AssetProviders []AssetProvider

	// Vars stores script variables. Defaults to a fresh MapVariableStorage.
	Vars VariableStorage

	// Library holds script-callable functions. Defaults to DefaultLibrary.
	// Game functions registered on it are available to scripts.
	Library *Library

	// Commands holds script-runnable commands. Defaults to an empty
	// registry.
	Commands *CommandRegistry

	// Localizations, if set, declares the languages the project supports;
	// SetLanguage rejects languages outside it. Optional.
	Localizations *Localizations

	// Logger receives operational logging. Defaults to slog.Default.
	Logger *slog.Logger

	// TraceLogf, if set, receives a line per VM instruction executed.
	TraceLogf func(string, ...interface{})
}

// Dialogue drives a virtual machine on behalf of a game. It turns the VM's
// handler callbacks into localized events, runs commands through a
// registry, tracks in-flight command tasks, and advances the VM from an
// Update tick the game calls once per frame.
//
// A Dialogue is not safe for concurrent use; drive it from one goroutine.
type Dialogue struct {
	vm       *VirtualMachine
	vars     VariableStorage
	library  *Library
	commands *CommandRegistry
	text     TextProvider
	assets   []AssetProvider
	loc      *Localizations
	events   EventFunc
	log      *slog.Logger

	// continuePending is set when the VM should advance on the next Update
	// that finds all tasks done and all providers ready.
	continuePending bool
	tasks           []Task
}

// NewDialogue builds a Dialogue from cfg, filling in defaults.
func NewDialogue(cfg DialogueConfig) (*Dialogue, error) {
	errb := oops.In("dialogue")
	if cfg.Program == nil || len(cfg.Program.Nodes) == 0 {
		return nil, errb.Code("MISSING_PROGRAM").Wrap(ErrMissingProgram)
	}
	if cfg.TextProvider == nil {
		return nil, errb.Code("MISSING_TEXT_PROVIDER").Errorf("no text provider")
	}
	if cfg.Events == nil {
		return nil, errb.Code("MISSING_EVENT_SINK").Errorf("no event sink")
	}
	if cfg.Localizations != nil {
		if err := cfg.Localizations.Validate(); err != nil {
			return nil, err
		}
	}

	d := &Dialogue{
		vars:     cfg.Vars,
		library:  cfg.Library,
		commands: cfg.Commands,
		text:     cfg.TextProvider,
		assets:   cfg.AssetProviders,
		loc:      cfg.Localizations,
		events:   cfg.Events,
		log:      cfg.Logger,
	}
	if d.vars == nil {
		d.vars = NewMapVariableStorage()
	}
	if d.library == nil {
		d.library = DefaultLibrary()
	}
	if d.commands == nil {
		d.commands = NewCommandRegistry()
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	d.vm = &VirtualMachine{
		Program:   cfg.Program,
		Handler:   &dialogueHandler{d},
		Vars:      d.vars,
		Library:   d.library,
		TraceLogf: cfg.TraceLogf,
	}
	return d, nil
}

// Vars returns the dialogue's variable storage.
func (d *Dialogue) Vars() VariableStorage { return d.vars }

// Library returns the dialogue's function library.
func (d *Dialogue) Library() *Library { return d.library }

// Commands returns the dialogue's command registry.
func (d *Dialogue) Commands() *CommandRegistry { return d.commands }

// IsRunning reports whether a dialogue is in progress.
func (d *Dialogue) IsRunning() bool {
	return d.vm.ExecutionState() != ExecutionStopped
}

// IsWaitingForOptionSelection reports whether the dialogue has presented
// options and is waiting for SelectOption.
func (d *Dialogue) IsWaitingForOptionSelection() bool {
	return d.vm.ExecutionState() == ExecutionWaitingOnOptionSelection
}

// CurrentNode returns the name of the executing node, if there is one.
func (d *Dialogue) CurrentNode() (string, bool) { return d.vm.CurrentNode() }

// NodeExists reports whether the program contains the named node.
func (d *Dialogue) NodeExists(name string) bool {
	_, ok := d.vm.Program.Nodes[name]
	return ok
}

// NodeNames returns the names of every node in the program, in no
// particular order.
func (d *Dialogue) NodeNames() []string {
	names := make([]string, 0, len(d.vm.Program.Nodes))
	for n := range d.vm.Program.Nodes {
		names = append(names, n)
	}
	return names
}

// TagsForNode returns the hashtags on the named node's header.
func (d *Dialogue) TagsForNode(name string) ([]string, bool) {
	node, ok := d.vm.Program.Nodes[name]
	if !ok {
		return nil, false
	}
	return node.Tags, true
}

// Start begins the dialogue at the default start node.
func (d *Dialogue) Start() error { return d.StartAtNode(DefaultStartNode) }

// StartAtNode begins the dialogue at the named node. The node's first
// content is delivered on the next Update.
func (d *Dialogue) StartAtNode(name string) error {
	if d.IsRunning() {
		return oops.In("dialogue").Code("ALREADY_RUNNING").Wrap(ErrAlreadyRunning)
	}
	d.tasks = nil
	if err := d.vm.Start(name); err != nil {
		return oops.In("dialogue").With("node", name).Wrap(err)
	}
	d.log.Debug("dialogue started", "node", name)
	d.events(Event{Kind: EventDialogueStart, NodeName: name})
	d.continuePending = true
	return nil
}

// Stop ends the dialogue immediately. NodeComplete and DialogueComplete
// events are still delivered.
func (d *Dialogue) Stop() error {
	d.continuePending = false
	d.tasks = nil
	return d.vm.Stop()
}

// Clear silently resets the dialogue to the stopped state: no completion
// events are delivered and variable storage is untouched.
func (d *Dialogue) Clear() {
	d.continuePending = false
	d.tasks = nil
	d.vm.Reset()
}

// ContinueInNextUpdate asks the dialogue to advance past the current line
// or command on the next Update that finds it ready. Calling it while
// options are pending has no effect; use SelectOption.
func (d *Dialogue) ContinueInNextUpdate() {
	d.continuePending = true
}

// WillContinueInNextUpdate reports whether an advance is queued.
func (d *Dialogue) WillContinueInNextUpdate() bool { return d.continuePending }

// SelectOption chooses one of the presented options. The chosen branch runs
// on the next Update.
func (d *Dialogue) SelectOption(id int) error {
	if err := d.vm.SetSelectedOption(id); err != nil {
		return oops.In("dialogue").With("option", id).Wrap(err)
	}
	d.continuePending = true
	return nil
}

// Update is the dialogue's tick; call it once per frame. If an advance is
// queued it runs once every in-flight command task is done and every
// provider is ready. An advance queued while the dialogue is stopped or
// waiting on an option selection is dropped. A fatal script error stops
// the dialogue, is reported on the DialogueComplete event as a Fault, and
// is returned.
func (d *Dialogue) Update() error {
	if !d.continuePending {
		return nil
	}
	switch d.vm.ExecutionState() {
	case ExecutionStopped, ExecutionWaitingOnOptionSelection:
		// A queued advance is meaningless here; Start and SelectOption
		// own the next transition.
		d.continuePending = false
		return nil
	}
	if !d.pollTasks() {
		return nil
	}
	if !d.AreLinesAvailable() {
		return nil
	}
	d.continuePending = false
	if err := d.vm.Continue(); err != nil {
		if isStateError(err) {
			return oops.In("dialogue").Wrap(err)
		}
		d.log.Error("dialogue fault", "error", err)
		d.events(Event{Kind: EventDialogueComplete, Fault: err})
		return oops.In("dialogue").Code("SCRIPT_FAULT").Wrap(err)
	}
	return nil
}

// isStateError reports whether err is a recoverable state error rather than
// a script fault. State errors leave the VM unchanged and must never be
// reported as dialogue completion.
func isStateError(err error) bool {
	var sme StateMismatchErr
	return errors.Is(err, ErrStopped) ||
		errors.Is(err, ErrWaitingOnOptionSelection) ||
		errors.Is(err, ErrNotWaitingOnOptions) ||
		errors.As(err, &sme)
}

// pollTasks drops finished command tasks and reports whether all are done.
func (d *Dialogue) pollTasks() bool {
	live := d.tasks[:0]
	for _, t := range d.tasks {
		if !t.Done() {
			live = append(live, t)
		}
	}
	d.tasks = live
	return len(d.tasks) == 0
}

// AreLinesAvailable reports whether the text provider and every asset
// provider are ready to deliver content.
func (d *Dialogue) AreLinesAvailable() bool {
	if !d.text.LinesAvailable() {
		return false
	}
	for _, ap := range d.assets {
		if !ap.AssetsAvailable() {
			return false
		}
	}
	return true
}

// SetLanguage switches both text and assets to the given language.
func (d *Dialogue) SetLanguage(lang language.Tag) error {
	if err := d.SetTextLanguage(lang); err != nil {
		return err
	}
	return d.SetAssetLanguage(lang)
}

// SetTextLanguage switches the text provider's language. With
// Localizations configured, languages outside the project are rejected.
func (d *Dialogue) SetTextLanguage(lang language.Tag) error {
	if d.loc != nil && !d.loc.SupportsLanguage(lang) {
		return oops.
			In("dialogue").
			Code("UNSUPPORTED_LANGUAGE").
			With("language", lang.String()).
			Errorf("language %q is not in the project's localizations", lang)
	}
	if err := d.text.SetLanguage(lang); err != nil {
		return err
	}
	d.log.Debug("text language changed", "language", lang.String())
	return nil
}

// SetAssetLanguage switches every asset provider's language.
func (d *Dialogue) SetAssetLanguage(lang language.Tag) error {
	if d.loc != nil && !d.loc.SupportsLanguage(lang) {
		return oops.
			In("dialogue").
			Code("UNSUPPORTED_LANGUAGE").
			With("language", lang.String()).
			Errorf("language %q is not in the project's localizations", lang)
	}
	for _, ap := range d.assets {
		if err := ap.SetLanguage(lang); err != nil {
			return err
		}
	}
	return nil
}

// localizeLine resolves a VM line into display text plus assets.
func (d *Dialogue) localizeLine(line Line) (LocalizedLine, error) {
	ll, err := d.text.Line(line)
	if err != nil {
		return LocalizedLine{}, err
	}
	for _, ap := range d.assets {
		ll.Assets = append(ll.Assets, ap.Assets(line.ID)...)
	}
	return ll, nil
}

// dialogueHandler adapts VM handler callbacks into dialogue events. Kept
// off the Dialogue type so its methods don't crowd the public API.
type dialogueHandler struct {
	d *Dialogue
}

func (h *dialogueHandler) NodeStart(nodeName string) error {
	h.d.events(Event{Kind: EventNodeStart, NodeName: nodeName})
	return nil
}

func (h *dialogueHandler) PrepareForLines(lineIDs []LineID) error {
	h.d.text.PrepareForLines(lineIDs)
	for _, ap := range h.d.assets {
		ap.PrepareForLines(lineIDs)
	}
	h.d.events(Event{Kind: EventLineHints, LineIDs: lineIDs})
	return nil
}

func (h *dialogueHandler) Line(line Line) error {
	ll, err := h.d.localizeLine(line)
	if err != nil {
		return err
	}
	h.d.events(Event{Kind: EventPresentLine, Line: &ll})
	return nil
}

func (h *dialogueHandler) Options(options []Option) error {
	los := make([]LocalizedOption, len(options))
	for i, opt := range options {
		ll, err := h.d.localizeLine(opt.Line)
		if err != nil {
			return err
		}
		los[i] = LocalizedOption{
			ID:          opt.ID,
			Line:        ll,
			IsAvailable: opt.IsAvailable,
		}
	}
	h.d.events(Event{Kind: EventPresentOptions, Options: los})
	return nil
}

func (h *dialogueHandler) Command(command string) error {
	tokens := splitCommandText(command)
	task, err := h.d.commands.Dispatch(command)
	if err != nil {
		return err
	}
	if task != nil {
		h.d.tasks = append(h.d.tasks, task)
	}
	ev := Event{Kind: EventExecuteCommand}
	if len(tokens) > 0 {
		ev.CommandName = tokens[0]
		ev.CommandArgs = tokens[1:]
	}
	h.d.log.Debug("command dispatched", "command", ev.CommandName, "args", ev.CommandArgs)
	h.d.events(ev)
	// Commands resume on their own once their tasks finish.
	h.d.continuePending = true
	return nil
}

func (h *dialogueHandler) NodeComplete(nodeName string) error {
	h.d.events(Event{Kind: EventNodeComplete, NodeName: nodeName})
	return nil
}

func (h *dialogueHandler) DialogueComplete() error {
	h.d.continuePending = false
	h.d.events(Event{Kind: EventDialogueComplete})
	return nil
}
