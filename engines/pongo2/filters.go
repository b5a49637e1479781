package pongo2

import (
	"errors"
	"strings"
	"sync"

	p2 "github.com/flosch/pongo2/v6"

	"github.com/skosovsky/tmplkit"
)

const (
	escapeModeTag = "tmplkit_escape_mode"
	escapeModeKey = "tmplkit_escape_mode"
)

// escapePrelude is prepended to every template. It records the template's
// own mode, which applies whenever the render context carries no mode (for
// example inside {% include ... only %}).
func escapePrelude(on bool) string {
	if on {
		return `{% ` + escapeModeTag + ` "on" %}`
	}
	return `{% ` + escapeModeTag + ` "off" %}`
}

// pongo2 keeps tags and filters in process-wide registries; they are
// installed once, on first Compile.
var register = sync.OnceValue(func() error {
	return errors.Join(
		p2.ReplaceFilter("escape", filterEscape),
		p2.ReplaceFilter("e", filterEscape),
		p2.RegisterTag(escapeModeTag, tagEscapeModeParser),
		registerFilter("sanitize", filterSanitize),
		registerFilter("truncate_chars", filterTruncateChars),
	)
})

func registerFilter(name string, fn p2.FilterFunction) error {
	if p2.FilterExists(name) {
		return p2.ReplaceFilter(name, fn)
	}
	return p2.RegisterFilter(name, fn)
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#x27;",
	"/", "&#x2F;",
)

// filterEscape is used both for |escape and for auto-escaping.
func filterEscape(in *p2.Value, _ *p2.Value) (*p2.Value, *p2.Error) {
	return p2.AsSafeValue(htmlEscaper.Replace(in.String())), nil
}

func filterSanitize(in *p2.Value, _ *p2.Value) (*p2.Value, *p2.Error) {
	return p2.AsSafeValue(tmplkit.Sanitize(in.String())), nil
}

func filterTruncateChars(in *p2.Value, param *p2.Value) (*p2.Value, *p2.Error) {
	return p2.AsValue(tmplkit.TruncateChars(in.String(), param.Integer())), nil
}

// escapeModeNode switches auto-escaping for the rest of the execution.
// The mode the handle put into the render context wins; the template's own
// mode is the fallback.
type escapeModeNode struct {
	fallback bool
}

func (n escapeModeNode) Execute(ctx *p2.ExecutionContext, _ p2.TemplateWriter) *p2.Error {
	on := n.fallback
	if v, ok := ctx.Public[escapeModeKey].(bool); ok {
		on = v
	}
	ctx.Autoescape = on
	return nil
}

func tagEscapeModeParser(_ *p2.Parser, start *p2.Token, arguments *p2.Parser) (p2.INodeTag, *p2.Error) {
	mode := arguments.MatchType(p2.TokenString)
	if mode == nil || (mode.Val != "on" && mode.Val != "off") || arguments.Remaining() > 0 {
		return nil, arguments.Error("Tag '"+escapeModeTag+"' takes one argument, \"on\" or \"off\".", start)
	}
	return escapeModeNode{fallback: mode.Val == "on"}, nil
}
