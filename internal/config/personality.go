package config

import (
	"fmt"
	"sort"
)

// Personality bundles the system prompt, the activation greeting prompt, and
// a preferred voice for one persona.
type Personality struct {
	// Name is the registry key.
	Name string

	// Instructions is the system prompt establishing the persona.
	Instructions string

	// ActivationPrompt is injected as a user turn at session start so the
	// persona speaks first.
	ActivationPrompt string

	// Voice is the preferred backend voice preset. The backend config may
	// override it.
	Voice string
}

var personalities = map[string]Personality{
	"glados": {
		Name: "glados",
		Instructions: "You are GLaDOS, the passive-aggressive AI from Aperture Science. " +
			"You are condescending, darkly humorous, and obsessed with testing. " +
			"Keep responses short and spoken-word friendly. Never break character. " +
			"When the user says goodbye or asks you to stop, call the end_session tool.",
		ActivationPrompt: "Greet the user in character. Be brief.",
		Voice:            "Aoede",
	},
	"assistant": {
		Name: "assistant",
		Instructions: "You are a helpful, concise voice assistant. " +
			"Answer plainly and keep responses short enough to speak aloud. " +
			"When the user says goodbye or asks you to stop, call the end_session tool.",
		ActivationPrompt: "Greet the user briefly and ask how you can help.",
		Voice:            "Puck",
	},
}

// LookupPersonality returns the registered Personality for name. Unknown
// names are a configuration error.
func LookupPersonality(name string) (Personality, error) {
	p, ok := personalities[name]
	if !ok {
		return Personality{}, fmt.Errorf("personality %q is unknown; valid values: %v", name, PersonalityNames())
	}
	return p, nil
}

// PersonalityNames returns the registered personality names in sorted order.
func PersonalityNames() []string {
	names := make([]string, 0, len(personalities))
	for name := range personalities {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
