package cli

import (
	"os"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/usecase/annotate"
	"github.com/m-mizutani/lectern/pkg/usecase/lecture"
	"github.com/m-mizutani/lectern/pkg/usecase/note"
	"github.com/m-mizutani/lectern/pkg/utils/retry"
	"gopkg.in/yaml.v3"
)

// settings is the optional YAML file tuning prompts and external calls:
//
//	annotation:
//	  instruction: "Explain this part of the lecture in 4 sentences."
//	  call:
//	    timeout: 30s
//	    max_retries: 2
//	note:
//	  prompt: "..."
//	persistence:
//	  call:
//	    timeout: 10s
type settings struct {
	Annotation struct {
		Instruction string       `yaml:"instruction"`
		Call        callSettings `yaml:"call"`
	} `yaml:"annotation"`

	Note struct {
		Prompt string       `yaml:"prompt"`
		Call   callSettings `yaml:"call"`
	} `yaml:"note"`

	Persistence struct {
		Call callSettings `yaml:"call"`
	} `yaml:"persistence"`
}

type callSettings struct {
	Timeout    time.Duration `yaml:"timeout"`
	MaxRetries *int          `yaml:"max_retries"`
	Backoff    time.Duration `yaml:"backoff"`
}

// policy overlays configured values on retry.Default
func (c callSettings) policy() retry.Policy {
	p := retry.Default
	if c.Timeout > 0 {
		p.Timeout = c.Timeout
	}
	if c.MaxRetries != nil && *c.MaxRetries >= 0 {
		p.MaxRetries = *c.MaxRetries
	}
	if c.Backoff > 0 {
		p.Initial = c.Backoff
	}
	return p
}

// loadSettings reads the settings file. An empty path yields defaults.
func loadSettings(path string) (*settings, error) {
	var s settings
	if path == "" {
		return &s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read settings file", goerr.V("path", path))
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, goerr.Wrap(err, "failed to parse settings file", goerr.V("path", path))
	}
	return &s, nil
}

func (s *settings) recorderOptions() []lecture.Option {
	return []lecture.Option{
		lecture.WithAnnotateOptions(
			annotate.WithInstruction(s.Annotation.Instruction),
			annotate.WithRetryPolicy(s.Annotation.Call.policy()),
		),
		lecture.WithNoteOptions(s.noteOptions()...),
		lecture.WithPersistPolicy(s.Persistence.Call.policy()),
	}
}

func (s *settings) noteOptions() []note.Option {
	return []note.Option{
		note.WithPrompt(s.Note.Prompt),
		note.WithRetryPolicy(s.Note.Call.policy()),
	}
}
