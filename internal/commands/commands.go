// Package commands answers utterances Jarvis can handle locally,
// before any completion backend is involved: clock, arithmetic, help,
// jokes, and the persistent user profile. Anything unrecognized falls
// through to the model.
package commands

import (
	"fmt"
	"strings"
	"time"

	"jarvis/internal/profile"
)

// Dispatcher matches an utterance against the built-in commands.
type Dispatcher struct {
	profile *profile.Store
	now     func() time.Time
	jokes   int
}

// NewDispatcher creates a dispatcher. The profile store may be nil, in
// which case the profile commands report that no profile is available.
func NewDispatcher(p *profile.Store) *Dispatcher {
	return &Dispatcher{
		profile: p,
		now:     time.Now,
	}
}

// Handle answers text locally when it matches a built-in command.
// The second return reports whether the utterance was handled; when it
// is false the caller should fall through to the completion backend.
//
// Triggers are deliberately narrower than bare substrings so that
// ordinary model questions ("tell me about screen time") are not
// hijacked by the clock.
func (d *Dispatcher) Handle(text string) (string, bool, error) {
	q := strings.ToLower(strings.TrimSpace(text))

	switch {
	case q == "help" || q == "what can you do":
		return helpText, true, nil

	case q == "time" || q == "what time is it" || strings.HasPrefix(q, "what is the time"):
		return d.now().Format("It is 15:04:05."), true, nil

	case strings.HasPrefix(q, "calculate "):
		return evaluate(strings.TrimPrefix(q, "calculate ")), true, nil

	case strings.Contains(q, "joke"):
		return d.nextJoke(), true, nil

	case strings.HasPrefix(q, "set my name to "):
		return d.setName(strings.TrimSpace(strings.TrimPrefix(q, "set my name to ")))

	case q == "who am i":
		return d.whoAmI()

	case strings.HasPrefix(q, "remember that "):
		return d.remember(strings.TrimSpace(strings.TrimPrefix(q, "remember that ")))

	case q == "what do you know about me":
		return d.knownFacts()
	}

	return "", false, nil
}

const helpText = "I can tell the time, calculate expressions, tell a joke, " +
	"and remember things about you: say \"set my name to ...\", \"who am i\", " +
	"\"remember that ...\", or \"what do you know about me\". Anything else goes to the AI."

var jokes = []string{
	"Why do programmers prefer dark mode? Because light attracts bugs.",
	"I would tell you a UDP joke, but you might not get it.",
	"There are only two hard things in computer science: cache invalidation, naming things, and off-by-one errors.",
	"A SQL query walks into a bar, goes up to two tables and asks: may I join you?",
}

func (d *Dispatcher) nextJoke() string {
	j := jokes[d.jokes%len(jokes)]
	d.jokes++
	return j
}

func (d *Dispatcher) setName(name string) (string, bool, error) {
	if d.profile == nil {
		return "I have nowhere to keep a profile right now.", true, nil
	}
	if name == "" {
		return "Set your name to what?", true, nil
	}
	if err := d.profile.SetName(name); err != nil {
		return "", true, fmt.Errorf("save name: %w", err)
	}
	return fmt.Sprintf("Okay, I will call you %s.", name), true, nil
}

func (d *Dispatcher) whoAmI() (string, bool, error) {
	if d.profile == nil {
		return "I have nowhere to keep a profile right now.", true, nil
	}
	name, err := d.profile.Name()
	if err != nil {
		return "", true, fmt.Errorf("load name: %w", err)
	}
	if name == "" {
		return "I don't know your name yet. Say \"set my name to ...\" and I'll remember it.", true, nil
	}
	return fmt.Sprintf("You are %s.", name), true, nil
}

func (d *Dispatcher) remember(fact string) (string, bool, error) {
	if d.profile == nil {
		return "I have nowhere to keep a profile right now.", true, nil
	}
	if fact == "" {
		return "Remember what?", true, nil
	}
	if err := d.profile.AddNote(fact); err != nil {
		return "", true, fmt.Errorf("save note: %w", err)
	}
	return "Noted. I'll remember that.", true, nil
}

func (d *Dispatcher) knownFacts() (string, bool, error) {
	if d.profile == nil {
		return "I have nowhere to keep a profile right now.", true, nil
	}
	name, err := d.profile.Name()
	if err != nil {
		return "", true, fmt.Errorf("load name: %w", err)
	}
	notes, err := d.profile.Notes()
	if err != nil {
		return "", true, fmt.Errorf("load notes: %w", err)
	}

	if name == "" && len(notes) == 0 {
		return "Nothing yet. Tell me your name or ask me to remember something.", true, nil
	}

	var b strings.Builder
	if name != "" {
		fmt.Fprintf(&b, "Your name is %s.", name)
	}
	if len(notes) > 0 {
		if b.Len() > 0 {
			b.WriteString(" ")
		}
		b.WriteString("I also know: ")
		b.WriteString(strings.Join(notes, "; "))
		b.WriteString(".")
	}
	return b.String(), true, nil
}
