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

// Line represents a line of dialogue as the VM sees it: an identifier plus
// raw substitution values. Resolved text is the text provider's business.
type Line struct {
	// The string ID for the line.
	ID LineID

	// Values that should be interpolated into the user-facing text, already
	// converted to display form. Substitution i binds to placeholder {i}.
	Substitutions []string
}

// Option represents one option (among others) that the player could choose.
type Option struct {
	// A number identifying this option. If this option is selected, pass
	// this number back to the dialogue system.
	ID int

	// The line that should be presented for this option.
	Line Line

	// Name of the label to jump to if this option is selected.
	DestinationLabel string

	// Indicates whether the player should be permitted to select the option,
	// e.g. for an option that the player _could_ have taken if they had
	// satisfied some prerequisite earlier on. Unavailable options are still
	// presented; selecting one is an error.
	IsAvailable bool
}

// DialogueHandler receives events from the VM. Calls are synchronous and
// must not block: after Line, Options, or Command return, the VM parks in
// the corresponding waiting state until it is resumed.
type DialogueHandler interface {
	// NodeStart is called when a node has begun executing. It is passed the
	// name of the node.
	NodeStart(nodeName string) error

	// PrepareForLines is called when the dialogue system anticipates that it
	// will deliver some lines, so providers may prefetch. Note that not
	// every line prepared may end up being run.
	PrepareForLines(lineIDs []LineID) error

	// Line is called when the dialogue system runs a line of dialogue. The
	// VM then waits on line delivery; resume with Continue.
	Line(line Line) error

	// Options is called to deliver a set of options to the game. The VM
	// then waits on option selection; resume with SetSelectedOption followed
	// by Continue.
	Options(options []Option) error

	// Command is called when the dialogue system runs a command. The VM
	// then waits on command completion; resume with Continue.
	Command(command string) error

	// NodeComplete is called when a node has completed execution. It is
	// passed the name of the node.
	NodeComplete(nodeName string) error

	// DialogueComplete is called when the dialogue as a whole is complete.
	DialogueComplete() error
}

// EventKind enumerates the structured events the Dialogue facade emits to
// the host.
type EventKind int

const (
	EventDialogueStart EventKind = iota
	EventNodeStart
	EventLineHints
	EventPresentLine
	EventPresentOptions
	EventExecuteCommand
	EventNodeComplete
	EventDialogueComplete
)

func (k EventKind) String() string {
	switch k {
	case EventDialogueStart:
		return "DialogueStart"
	case EventNodeStart:
		return "NodeStart"
	case EventLineHints:
		return "LineHints"
	case EventPresentLine:
		return "PresentLine"
	case EventPresentOptions:
		return "PresentOptions"
	case EventExecuteCommand:
		return "ExecuteCommand"
	case EventNodeComplete:
		return "NodeComplete"
	case EventDialogueComplete:
		return "DialogueComplete"
	}
	return "(invalid event)"
}

// Event is one structured event from a Dialogue to its host. Only the
// fields relevant to the Kind are set. Events for a single dialogue are
// delivered synchronously, in the order the VM produced them.
type Event struct {
	Kind EventKind

	// NodeName is set for NodeStart and NodeComplete.
	NodeName string

	// LineIDs is set for LineHints: every line ID reachable in the node.
	LineIDs []LineID

	// Line is set for PresentLine: the resolved line with localized text
	// and any assets.
	Line *LocalizedLine

	// Options is set for PresentOptions, with availability flags, in source
	// order.
	Options []LocalizedOption

	// CommandName and CommandArgs are set for ExecuteCommand.
	CommandName string
	CommandArgs []string

	// Fault is set on DialogueComplete when the dialogue ended because of a
	// script-authoring error rather than normal completion.
	Fault error
}

// EventFunc receives facade events. It is the host's event sink.
type EventFunc func(Event)

// LocalizedLine is a line with its text resolved for the current language.
type LocalizedLine struct {
	ID LineID

	// Text with substitutions interpolated and format functions applied.
	Text string

	// Assets for the line from every registered asset provider.
	Assets []Asset

	// Metadata holds the line's raw hashtags other than the line ID.
	Metadata []string
}

// LocalizedOption is an option with its line resolved for the current
// language.
type LocalizedOption struct {
	ID          int
	Line        LocalizedLine
	IsAvailable bool
}

// Asset is an opaque handle to a localized asset (voice-over clip, portrait,
// ...) supplied by an AssetProvider.
type Asset struct {
	// Name distinguishes asset types from one provider.
	Name string

	// Path locates the asset in host storage.
	Path string
}
