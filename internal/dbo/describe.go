package dbo

import (
	"bytes"
	"fmt"
	"log/slog"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/muesli/reflow/wordwrap"
)

const (
	describeWidth    = 80
	describeMaxDepth = 2
	describeLabel    = 17
)

var describeTemplate = template.Must(template.New("describe").Funcs(sprig.TxtFuncMap()).Parse(
	`{{ range . }}{{ repeat .Indent " " }}{{ printf "%-17s" (print .Name ":") }}{{ .Value }}
{{ end }}`))

type describeLine struct {
	Indent int
	Name   string
	Value  string
}

// Describe renders the object's metafields and fields for administrators.
// Embedded objects are expanded two levels deep.
func (o *Object) Describe() string {
	var lines []describeLine
	o.describe(&lines, 0)

	var buf bytes.Buffer
	if err := describeTemplate.Execute(&buf, lines); err != nil {
		slog.Error("describing object", "key", o.Key(), "error", err)
		return ""
	}
	return buf.String()
}

func (o *Object) describe(lines *[]describeLine, level int) {
	indent := 4 * level
	add := func(name string, v any) {
		text := wordwrap.String(fmt.Sprint(v), describeWidth-indent-describeLabel)
		text = strings.ReplaceAll(text, "\n", "\n"+strings.Repeat(" ", indent+describeLabel))
		*lines = append(*lines, describeLine{Indent: indent, Name: name, Value: text})
	}

	add("type_id", o.typ.id)
	if o.typ.Keyed() {
		add("key_type", o.typ.keyType)
		add("object_id", o.id)
	}
	if o.templateKey != "" {
		add("template_key", o.templateKey)
	}

	s := newSerializer(modeTransfer)
	for _, name := range o.typ.fieldNames {
		f := o.typ.fields[name]
		if f.Kind == KindTemplate {
			continue
		}
		cur := o.peek(f)
		if embedded, ok := cur.(*Object); ok && embedded != nil && !embedded.typ.Keyed() && level < describeMaxDepth {
			add(name, "")
			embedded.describe(lines, level+1)
			continue
		}
		v, _ := s.field(o, f)
		add(name, v)
	}
}
