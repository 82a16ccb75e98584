// Package command implements the serial command surface: SCPI-style
// mnemonics, an optional trailing channel index, and get/set accessor pairs
// that read or write the schedule table. Malformed or unrecognized input is
// dropped with no response; the protocol has no concept of a NACK.
package command

import "strings"

// Accessor is the get/set pair behind one named operation. ch is the parsed
// channel index, or -1 for channel-less operations.
//
// Get returns ok=false to suppress the response (out-of-range index). Set
// receives the raw value token and is expected to ignore anything it cannot
// parse; setters never report errors on the wire.
type Accessor struct {
	Get func(ch int) (string, bool)
	Set func(ch int, value string)
}

type entry struct {
	subsystem  string // SCPI mnemonic, empty when the command has no subsystem
	item       string
	hasChannel bool
	acc        Accessor
}

// Dispatcher routes one command line to its accessor.
type Dispatcher struct {
	idn     string
	entries []entry
}

// NewDispatcher creates a dispatcher answering *IDN? with idn.
func NewDispatcher(idn string) *Dispatcher {
	return &Dispatcher{idn: idn}
}

// Register adds an operation. Mnemonics are given in SCPI long form with the
// required head upper-case, e.g. ("DELay", "CHannel", true) accepts
// DEL:CH3, DELAY:CHANNEL3 and anything in between. An empty subsystem
// registers a bare command such as REPrate.
func (d *Dispatcher) Register(subsystem, item string, hasChannel bool, acc Accessor) {
	d.entries = append(d.entries, entry{
		subsystem:  subsystem,
		item:       item,
		hasChannel: hasChannel,
		acc:        acc,
	})
}

// Execute runs one command line and returns the response to write back.
// ok=false means the line produces no output: sets, malformed input, unknown
// commands, and out-of-range channel indices all fall silently.
func (d *Dispatcher) Execute(line string) (string, bool) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", false
	}

	fields := strings.Fields(line)
	head := fields[0]

	if strings.EqualFold(head, "*IDN?") {
		return d.idn, true
	}

	query := strings.HasSuffix(head, "?")
	head = strings.TrimSuffix(head, "?")

	var subsystem, item string
	switch parts := strings.Split(head, ":"); len(parts) {
	case 1:
		item = parts[0]
	case 2:
		subsystem, item = parts[0], parts[1]
	default:
		return "", false
	}

	for i := range d.entries {
		e := &d.entries[i]
		if (e.subsystem == "") != (subsystem == "") {
			continue
		}
		if e.subsystem != "" && !MatchMnemonic(subsystem, e.subsystem) {
			continue
		}

		ch := -1
		tok := item
		if e.hasChannel {
			base, idx, ok := SplitIndex(item)
			if !ok {
				continue
			}
			tok = base
			ch = idx
		}
		if !MatchMnemonic(tok, e.item) {
			continue
		}

		if query {
			if e.acc.Get == nil {
				return "", false
			}
			return e.acc.Get(ch)
		}
		// A set consumes exactly one value token.
		if len(fields) != 2 || e.acc.Set == nil {
			return "", false
		}
		e.acc.Set(ch, fields[1])
		return "", false
	}
	return "", false
}

// MatchMnemonic reports whether token matches a SCPI-style mnemonic: the
// upper-case head is required, the lower-case tail optional, comparison is
// case-insensitive. MatchMnemonic("del", "DELay") and
// MatchMnemonic("DELAY", "DELay") are both true.
func MatchMnemonic(token, mnemonic string) bool {
	required := len(strings.TrimRight(mnemonic, "abcdefghijklmnopqrstuvwxyz"))
	full := strings.ToUpper(mnemonic)
	tok := strings.ToUpper(token)
	if len(tok) < required || len(tok) > len(full) {
		return false
	}
	return strings.HasPrefix(full, tok)
}

// SplitIndex splits a trailing unsigned integer off a token, returning the
// alpha head and the index. ok=false when the token carries no index.
func SplitIndex(token string) (string, int, bool) {
	i := len(token)
	for i > 0 && token[i-1] >= '0' && token[i-1] <= '9' {
		i--
	}
	if i == len(token) {
		return token, 0, false
	}
	idx := 0
	for _, c := range token[i:] {
		idx = idx*10 + int(c-'0')
		if idx > 1<<20 {
			return token, 0, false
		}
	}
	return token[:i], idx, true
}
