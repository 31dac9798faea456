// Package intent classifies raw command text into a typed Command.
//
// Classification is a pure function of the input text: it never consults
// runtime state, so the same phrase always classifies identically regardless
// of the current mode. Matching runs through an ordered rule list where the
// first match wins; specific phrasings are listed before generic catch-alls
// on purpose, so reordering rules changes behavior.
package intent

import (
	"regexp"
	"strings"
)

// Intent is the classified purpose of a user input.
type Intent string

const (
	Greeting      Intent = "greeting"
	Help          Intent = "help"
	SystemStatus  Intent = "system_status"
	ModeSwitch    Intent = "mode_switch"
	DeviceCommand Intent = "device_command"
	EmergencyStop Intent = "emergency_stop"
	Unknown       Intent = "unknown"
)

// Command is an immutable classified command. Params carries intent-specific
// parameters: "mode" for ModeSwitch, "device" and "action" for DeviceCommand,
// "text" for Unknown.
type Command struct {
	Intent  Intent
	RawText string
	Params  map[string]string
}

type rule struct {
	re      *regexp.Regexp
	intent  Intent
	extract func(text string) map[string]string
}

var (
	trinetraActionRe = regexp.MustCompile(`\b(forward|backward|left|right|stop|patrol|status)\b`)
	krait3ActionRe   = regexp.MustCompile(`\b(launch|takeoff|take off|land|hover|return|stop|status)\b`)
	modeRe           = regexp.MustCompile(`\b(home|defense|night|manual)\b`)
)

// Rule order is load-bearing: emergency phrases outrank everything, explicit
// mode-switch phrasing outranks bare mode words, and device vocabulary
// outranks the generic motion words it shares with other rules.
var rules = []rule{
	{
		re:     regexp.MustCompile(`\b(emergency stop|stop all|abort all|emergency)\b`),
		intent: EmergencyStop,
	},
	{
		re:      regexp.MustCompile(`\b(switch|change|go|set|enter)\b.*\b(home|defense|night|manual)\b`),
		intent:  ModeSwitch,
		extract: extractMode,
	},
	{
		re:      regexp.MustCompile(`\b(trinetra|ground unit|ground bot|ugv)\b`),
		intent:  DeviceCommand,
		extract: extractTrinetra,
	},
	{
		re:      regexp.MustCompile(`\b(krait-?3|krait|uav|drone)\b`),
		intent:  DeviceCommand,
		extract: extractKrait3,
	},
	{
		re:     regexp.MustCompile(`\b(status|health|diagnostics?)\b`),
		intent: SystemStatus,
	},
	{
		re:     regexp.MustCompile(`^(hello|hi|hey|greetings)\b`),
		intent: Greeting,
	},
	{
		re:     regexp.MustCompile(`\b(help|commands|assist)\b`),
		intent: Help,
	},
	{
		// Bare mode word, e.g. a "defense" button shortcut. Listed after the
		// device rules so shared vocabulary cannot shadow them.
		re:      regexp.MustCompile(`^(home|defense|night|manual)( mode)?$`),
		intent:  ModeSwitch,
		extract: extractMode,
	},
}

// Classify maps raw text to a Command. Unmatched input yields Unknown with
// the normalized text preserved for fallback handling; that is not an error.
func Classify(raw string) Command {
	text := normalize(raw)
	for _, r := range rules {
		if !r.re.MatchString(text) {
			continue
		}
		cmd := Command{Intent: r.intent, RawText: text}
		if r.extract != nil {
			cmd.Params = r.extract(text)
		}
		return cmd
	}
	return Command{
		Intent:  Unknown,
		RawText: text,
		Params:  map[string]string{"text": text},
	}
}

// normalize lower-cases and collapses whitespace before matching.
func normalize(raw string) string {
	return strings.Join(strings.Fields(strings.ToLower(raw)), " ")
}

func extractMode(text string) map[string]string {
	m := modeRe.FindString(text)
	return map[string]string{"mode": m}
}

func extractTrinetra(text string) map[string]string {
	return map[string]string{
		"device": "trinetra",
		"action": deviceAction(trinetraActionRe, text),
	}
}

func extractKrait3(text string) map[string]string {
	action := deviceAction(krait3ActionRe, text)
	if action == "takeoff" || action == "take off" {
		action = "launch"
	}
	return map[string]string{
		"device": "krait3",
		"action": action,
	}
}

func deviceAction(re *regexp.Regexp, text string) string {
	if a := re.FindString(text); a != "" {
		return a
	}
	// Device named without a recognizable verb: report readiness.
	return "status"
}
