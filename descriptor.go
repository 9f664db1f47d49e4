package action

import (
	"context"
	"strings"
	"text/template"
)

// Descriptor pairs a Matcher with something to do when it matches. The two
// variants are *CallbackDescriptor and *MessageDescriptor. Descriptors are
// immutable once built.
type Descriptor interface {
	Matcher() *Matcher
	Phase() Phase
}

type descriptor struct {
	matcher *Matcher
	phase   Phase
}

func (d descriptor) Matcher() *Matcher { return d.matcher }
func (d descriptor) Phase() Phase      { return d.phase }

// Callback is a side effect run for a matching event: logging, metrics,
// scheduling a retry.
type Callback func(ctx context.Context, e Event) error

// CallbackOptions declares a callback descriptor.
type CallbackOptions struct {
	If     func(Event) bool
	Unless func(Event) bool
	From   []any

	// Name identifies the callback in fault reports.
	Name string
	Do   Callback
}

// CallbackDescriptor runs a Callback for matching events.
type CallbackDescriptor struct {
	descriptor
	name string
	fn   Callback
}

// Name returns the callback name, which may be empty.
func (d *CallbackDescriptor) Name() string { return d.name }

// Invoke runs the callback.
func (d *CallbackDescriptor) Invoke(ctx context.Context, e Event) error {
	return d.fn(ctx, e)
}

func newCallbackDescriptor(phase Phase, opts CallbackOptions, registry *TypeRegistry) (*CallbackDescriptor, error) {
	if opts.Do == nil {
		return nil, configErrorf("", "do", "callback %q has no function", opts.Name)
	}
	m, err := NewMatcher(MatchOptions{If: opts.If, Unless: opts.Unless, From: opts.From}, registry)
	if err != nil {
		return nil, err
	}
	return &CallbackDescriptor{
		descriptor: descriptor{matcher: m, phase: phase},
		name:       opts.Name,
		fn:         opts.Do,
	}, nil
}

// MessageOptions declares a message descriptor. Text is a text/template
// executed against the event (fields .Action, .Error, .Fields); Render takes
// precedence over Text when both are set. With neither, the event error's
// own text is used. A template referring to a field the event lacks fails to
// render, and dispatch moves on to the next matching descriptor.
type MessageOptions struct {
	If     func(Event) bool
	Unless func(Event) bool
	From   []any

	Prefix string
	Text   string
	Render func(Event) string
}

// MessageDescriptor renders a user-facing message for matching events.
type MessageDescriptor struct {
	descriptor
	prefix string
	tmpl   *template.Template
	render func(Event) string
}

// Prefix returns the configured prefix.
func (d *MessageDescriptor) Prefix() string { return d.prefix }

type messageData struct {
	Action string
	Error  string
	Fields map[string]any
}

// Render produces the message for e. A prefix is joined as "prefix: body".
func (d *MessageDescriptor) Render(e Event) (string, error) {
	var body string
	switch {
	case d.render != nil:
		body = d.render(e)
	case d.tmpl != nil:
		data := messageData{Action: e.Action, Fields: e.Fields}
		if e.Err != nil {
			data.Error = e.Err.Error()
		}
		var b strings.Builder
		if err := d.tmpl.Execute(&b, data); err != nil {
			return "", err
		}
		body = b.String()
	}
	if body == "" && e.Err != nil {
		body = e.Err.Error()
	}
	switch {
	case d.prefix == "":
		return body, nil
	case body == "":
		return d.prefix, nil
	}
	return d.prefix + ": " + body, nil
}

func newMessageDescriptor(phase Phase, opts MessageOptions, registry *TypeRegistry) (*MessageDescriptor, error) {
	if opts.Text == "" && opts.Render == nil && opts.Prefix == "" && phase == PhaseSuccess {
		return nil, configErrorf("", "text", "success message needs text, render or prefix")
	}
	m, err := NewMatcher(MatchOptions{If: opts.If, Unless: opts.Unless, From: opts.From}, registry)
	if err != nil {
		return nil, err
	}
	d := &MessageDescriptor{
		descriptor: descriptor{matcher: m, phase: phase},
		prefix:     opts.Prefix,
		render:     opts.Render,
	}
	if opts.Text != "" && opts.Render == nil {
		tmpl, err := template.New("message").Option("missingkey=error").Parse(opts.Text)
		if err != nil {
			return nil, configErrorf("", "text", "parse template: %v", err)
		}
		d.tmpl = tmpl
	}
	return d, nil
}
