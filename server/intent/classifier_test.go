package intent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		intent Intent
		params map[string]string
	}{
		{
			name:   "greeting",
			input:  "hello lyra",
			intent: Greeting,
		},
		{
			name:   "system status",
			input:  "system status",
			intent: SystemStatus,
		},
		{
			name:   "mode switch phrase",
			input:  "switch to defense mode",
			intent: ModeSwitch,
			params: map[string]string{"mode": "defense"},
		},
		{
			name:   "trinetra movement",
			input:  "trinetra move forward",
			intent: DeviceCommand,
			params: map[string]string{"device": "trinetra", "action": "forward"},
		},
		{
			name:   "gibberish",
			input:  "asdkjhaskjdh",
			intent: Unknown,
			params: map[string]string{"text": "asdkjhaskjdh"},
		},
		{
			name:   "emergency stop",
			input:  "emergency stop",
			intent: EmergencyStop,
		},
		{
			name:   "stop all outranks device vocabulary",
			input:  "stop all units now",
			intent: EmergencyStop,
		},
		{
			name:   "krait launch",
			input:  "krait-3 launch",
			intent: DeviceCommand,
			params: map[string]string{"device": "krait3", "action": "launch"},
		},
		{
			name:   "takeoff normalizes to launch",
			input:  "drone takeoff",
			intent: DeviceCommand,
			params: map[string]string{"device": "krait3", "action": "launch"},
		},
		{
			name:   "trinetra stop is a device command, not an emergency",
			input:  "trinetra stop",
			intent: DeviceCommand,
			params: map[string]string{"device": "trinetra", "action": "stop"},
		},
		{
			name:   "device without verb defaults to status",
			input:  "trinetra",
			intent: DeviceCommand,
			params: map[string]string{"device": "trinetra", "action": "status"},
		},
		{
			name:   "bare mode word",
			input:  "defense",
			intent: ModeSwitch,
			params: map[string]string{"mode": "defense"},
		},
		{
			name:   "night mode button",
			input:  "night mode",
			intent: ModeSwitch,
			params: map[string]string{"mode": "night"},
		},
		{
			name:   "help",
			input:  "help",
			intent: Help,
		},
		{
			name:   "whitespace and case are normalized",
			input:  "  SWITCH   to Night    MODE ",
			intent: ModeSwitch,
			params: map[string]string{"mode": "night"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cmd := Classify(tc.input)
			assert.Equal(t, tc.intent, cmd.Intent)
			for k, v := range tc.params {
				assert.Equal(t, v, cmd.Params[k], "param %s", k)
			}
		})
	}
}

func TestClassifyIsDeterministic(t *testing.T) {
	// Classification is a pure function of the text; repeated calls agree.
	for i := 0; i < 5; i++ {
		cmd := Classify("switch to manual mode")
		assert.Equal(t, ModeSwitch, cmd.Intent)
		assert.Equal(t, "manual", cmd.Params["mode"])
	}
}

func TestUnknownPreservesText(t *testing.T) {
	cmd := Classify("  Make Me a SANDWICH  ")
	assert.Equal(t, Unknown, cmd.Intent)
	assert.Equal(t, "make me a sandwich", cmd.Params["text"])
	assert.Equal(t, "make me a sandwich", cmd.RawText)
}
