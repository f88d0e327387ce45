// Package script loads timed message scripts from YAML.
package script

import (
	"embed"
	"os"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/TheLazyLemur/gatherbot/internal/core"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

//go:embed builtin/*.yaml
var builtinFS embed.FS

// GatherName is the builtin script played by the gather command.
const GatherName = "gather"

type file struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description"`
	Steps       []step `yaml:"steps"`
}

// step sets exactly one of Wait or Send. React is only valid with Send.
type step struct {
	Wait  string `yaml:"wait,omitempty"`
	Send  string `yaml:"send,omitempty"`
	React string `yaml:"react,omitempty"`
}

// Builtin returns the script bundled under builtin/<name>.yaml.
func Builtin(name string) (core.Script, error) {
	data, err := builtinFS.ReadFile("builtin/" + name + ".yaml")
	if err != nil {
		return nil, errors.Wrapf(err, "reading builtin script %s", name)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing builtin script %s", name)
	}
	return s, nil
}

// LoadFile reads a script from disk.
func LoadFile(path string) (core.Script, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("script path is required")
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "reading script %s", path)
	}
	s, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing script %s", path)
	}
	return s, nil
}

// Parse decodes a YAML script.
func Parse(data []byte) (core.Script, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrap(err, "invalid yaml")
	}
	if len(f.Steps) == 0 {
		return nil, errors.New("script steps are required")
	}

	s := make(core.Script, 0, len(f.Steps))
	for i, st := range f.Steps {
		action, err := st.action()
		if err != nil {
			return nil, errors.Wrapf(err, "step %d", i+1)
		}
		s = append(s, action)
	}
	return s, nil
}

func (st step) action() (core.Action, error) {
	wait := strings.TrimSpace(st.Wait)
	hasSend := strings.TrimSpace(st.Send) != ""

	switch {
	case wait != "" && hasSend:
		return core.Action{}, errors.New("wait and send are mutually exclusive")

	case wait != "":
		if st.React != "" {
			return core.Action{}, errors.New("react requires send")
		}
		d, err := time.ParseDuration(wait)
		if err != nil {
			return core.Action{}, errors.Wrap(err, "invalid wait duration")
		}
		if d <= 0 {
			return core.Action{}, errors.New("wait duration must be greater than 0")
		}
		if d%time.Millisecond != 0 {
			return core.Action{}, errors.New("wait duration must be whole milliseconds")
		}
		return core.Wait(uint(d / time.Millisecond)), nil

	case hasSend:
		if st.React == "" {
			return core.Send(st.Send), nil
		}
		if utf8.RuneCountInString(st.React) != 1 {
			return core.Action{}, errors.Errorf("react must be a single character, got %q", st.React)
		}
		emoji, _ := utf8.DecodeRuneInString(st.React)
		return core.SendAndReact(st.Send, emoji), nil

	default:
		return core.Action{}, errors.New("one of wait or send is required")
	}
}
