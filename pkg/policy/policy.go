// Package policy evaluates the optional Rego line admission policy. A policy
// in package "line" decides whether a transcribed line enters the session
// and may rewrite its text:
//
//	package line
//
//	default accept := true
//	accept := false if { count(trim_space(input.text)) < 3 }
//	text := replace(input.text, "um ", "") if { contains(input.text, "um ") }
package policy

import (
	"context"
	"os"
	"path/filepath"

	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/lectern/pkg/utils/logging"
	"github.com/open-policy-agent/opa/v1/rego"
	"github.com/open-policy-agent/opa/v1/topdown/print"
)

const lineQuery = "data.line"

// Input is passed to the policy as `input`
type Input struct {
	Text  string `json:"text"`
	Index int    `json:"index"`
	Epoch uint64 `json:"epoch"`
}

// LineFilter admits or rewrites lines. The zero value and a nil *LineFilter
// admit every line unchanged.
type LineFilter struct {
	query *rego.PreparedEvalQuery
}

type printHook struct {
	ctx context.Context
}

func (h *printHook) Print(pctx print.Context, message string) error {
	logging.From(h.ctx).Debug("rego print", "message", message, "location", pctx.Location)
	return nil
}

// Load reads all .rego files in dir. An empty dir or a dir without policy
// files yields a filter that admits everything.
func Load(ctx context.Context, dir string) (*LineFilter, error) {
	if dir == "" {
		return &LineFilter{}, nil
	}

	files, err := filepath.Glob(filepath.Join(dir, "*.rego"))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to glob policy files", goerr.V("dir", dir))
	}
	if len(files) == 0 {
		logging.From(ctx).Debug("no line policy found", "dir", dir)
		return &LineFilter{}, nil
	}

	options := make([]func(*rego.Rego), 0, len(files)+2)
	options = append(options, rego.Query(lineQuery), rego.EnablePrintStatements(true))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read policy file", goerr.V("path", file))
		}
		options = append(options, rego.Module(file, string(data)))
	}

	prepared, err := rego.New(options...).PrepareForEval(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to prepare line policy", goerr.V("dir", dir))
	}

	logging.From(ctx).Info("line policy loaded", "dir", dir, "files", len(files))
	return &LineFilter{query: &prepared}, nil
}

// Apply evaluates the policy for one line. It returns the text to ingest
// and whether the line is accepted.
func (f *LineFilter) Apply(ctx context.Context, in Input) (string, bool, error) {
	if f == nil || f.query == nil {
		return in.Text, true, nil
	}

	rs, err := f.query.Eval(ctx, rego.EvalInput(in), rego.EvalPrintHook(&printHook{ctx: ctx}))
	if err != nil {
		return "", false, goerr.Wrap(err, "failed to evaluate line policy", goerr.V("text", in.Text))
	}
	if len(rs) == 0 || len(rs[0].Expressions) == 0 {
		return in.Text, true, nil
	}

	data, ok := rs[0].Expressions[0].Value.(map[string]any)
	if !ok {
		return "", false, goerr.New("unexpected line policy result",
			goerr.V("value", rs[0].Expressions[0].Value))
	}

	if accept, ok := data["accept"].(bool); ok && !accept {
		return "", false, nil
	}

	text := in.Text
	if rewritten, ok := data["text"].(string); ok {
		text = rewritten
	}
	return text, true, nil
}
