package tmplkit

import (
	"fmt"
	"reflect"
	"sync"
)

type contextField struct {
	index int
	key   string
}

type contextSchema struct {
	fields []contextField
}

var contextCache sync.Map // reflect.Type -> *contextSchema

// NewContext converts v into a render Context.
//
// Accepted values: nil (empty context), Context, map[string]any,
// map[string]string, and structs or pointers to structs. Struct fields are
// keyed by their `tmpl:"name"` tag, or by the field name when untagged;
// `tmpl:"-"` and unexported fields are skipped. Anything else wraps
// ErrInvalidContext.
//
// The result is always a fresh map; mutating it never touches v.
func NewContext(v any) (Context, error) {
	switch data := v.(type) {
	case nil:
		return Context{}, nil
	case Context:
		return copyContext(data), nil
	case map[string]any:
		return copyContext(data), nil
	case map[string]string:
		out := make(Context, len(data))
		for k, s := range data {
			out[k] = s
		}
		return out, nil
	}

	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("%w: nil %T", ErrInvalidContext, v)
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil, fmt.Errorf("%w: %T", ErrInvalidContext, v)
	}
	schema := contextSchemaFor(rv.Type())
	out := make(Context, len(schema.fields))
	for _, f := range schema.fields {
		out[f.key] = rv.Field(f.index).Interface()
	}
	return out, nil
}

func contextSchemaFor(typ reflect.Type) *contextSchema {
	if cached, ok := contextCache.Load(typ); ok {
		return cached.(*contextSchema)
	}
	schema := &contextSchema{}
	for i := range typ.NumField() {
		f := typ.Field(i)
		if !f.IsExported() {
			continue
		}
		key := f.Tag.Get("tmpl")
		if key == "-" {
			continue
		}
		if key == "" {
			key = f.Name
		}
		schema.fields = append(schema.fields, contextField{index: i, key: key})
	}
	actual, _ := contextCache.LoadOrStore(typ, schema)
	return actual.(*contextSchema)
}

func copyContext(m map[string]any) Context {
	out := make(Context, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
