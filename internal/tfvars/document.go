// File: internal/tfvars/document.go
// Brief: Ordered tfvars document: HCL parsing and deterministic rendering.

// Package tfvars loads, merges, and renders per-environment terraform
// variable documents. Documents are ordered key/value maps; merging an
// update set preserves every untouched key, and rendering is deterministic
// and semantically round-trippable rather than byte-identical to
// hand-authored files.
package tfvars

import (
	"fmt"
	"math/big"
	"sort"
	"strconv"
	"strings"

	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/hashicorp/hcl/v2/hclsyntax"
	"github.com/zclconf/go-cty/cty"
)

// Document is an ordered key/value mapping parsed from a tfvars file.
// Values are bools, strings, int64/float64 numbers, []any lists, or
// map[string]any nested maps.
type Document struct {
	keys   []string
	values map[string]any
}

// NewDocument returns an empty document.
func NewDocument() *Document {
	return &Document{values: map[string]any{}}
}

// Set assigns a key, appending it to the order when new.
func (d *Document) Set(key string, value any) {
	if _, ok := d.values[key]; !ok {
		d.keys = append(d.keys, key)
	}
	d.values[key] = value
}

// Get returns the value for key.
func (d *Document) Get(key string) (any, bool) {
	v, ok := d.values[key]
	return v, ok
}

// Has reports whether key is present.
func (d *Document) Has(key string) bool {
	_, ok := d.values[key]
	return ok
}

// Keys returns the keys in document order.
func (d *Document) Keys() []string {
	return append([]string(nil), d.keys...)
}

// Len returns the number of keys.
func (d *Document) Len() int {
	return len(d.keys)
}

// Merge applies updates in sorted key order. Nil values are explicit
// no-ops: the existing key is left untouched.
func (d *Document) Merge(updates map[string]any) {
	keys := make([]string, 0, len(updates))
	for k := range updates {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if updates[k] == nil {
			continue
		}
		d.Set(k, updates[k])
	}
}

// Parse decodes tfvars source into a document, preserving the file's
// attribute order.
func Parse(src []byte, filename string) (*Document, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(src, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("parse %s: %s", filename, diags.Error())
	}
	body, ok := file.Body.(*hclsyntax.Body)
	if !ok {
		return nil, fmt.Errorf("parse %s: unexpected body type", filename)
	}

	attrs := make([]*hclsyntax.Attribute, 0, len(body.Attributes))
	for _, attr := range body.Attributes {
		attrs = append(attrs, attr)
	}
	sort.Slice(attrs, func(i, j int) bool {
		return attrs[i].SrcRange.Start.Byte < attrs[j].SrcRange.Start.Byte
	})

	doc := NewDocument()
	for _, attr := range attrs {
		val, valDiags := attr.Expr.Value(nil)
		if valDiags.HasErrors() {
			return nil, fmt.Errorf("parse %s: attribute %q: %s", filename, attr.Name, valDiags.Error())
		}
		converted, err := fromCty(val)
		if err != nil {
			return nil, fmt.Errorf("parse %s: attribute %q: %w", filename, attr.Name, err)
		}
		doc.Set(attr.Name, converted)
	}
	return doc, nil
}

// Render produces the document's canonical text form: booleans bare,
// numbers literal, strings quoted, lists bracketed, nested maps as brace
// blocks indented two spaces per level.
func Render(d *Document) string {
	var b strings.Builder
	for _, key := range d.keys {
		b.WriteString(key)
		b.WriteString(" = ")
		b.WriteString(formatValue(d.values[key], 0))
		b.WriteString("\n")
	}
	return b.String()
}

func formatValue(value any, indent int) string {
	pad := strings.Repeat("  ", indent)
	switch typed := value.(type) {
	case nil:
		return "null"
	case bool:
		if typed {
			return "true"
		}
		return "false"
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	case float64:
		return strconv.FormatFloat(typed, 'g', -1, 64)
	case string:
		return strconv.Quote(typed)
	case []any:
		parts := make([]string, 0, len(typed))
		for _, item := range typed {
			parts = append(parts, formatValue(item, indent))
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case map[string]any:
		keys := make([]string, 0, len(typed))
		for k := range typed {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		lines := []string{"{"}
		for _, k := range keys {
			lines = append(lines, fmt.Sprintf("%s  %s = %s", pad, k, formatValue(typed[k], indent+1)))
		}
		lines = append(lines, pad+"}")
		return strings.Join(lines, "\n")
	default:
		return strconv.Quote(fmt.Sprint(value))
	}
}

func fromCty(v cty.Value) (any, error) {
	if v.IsNull() {
		return nil, nil
	}
	ty := v.Type()
	switch {
	case ty.Equals(cty.Bool):
		return v.True(), nil
	case ty.Equals(cty.String):
		return v.AsString(), nil
	case ty.Equals(cty.Number):
		return numberFromCty(v.AsBigFloat()), nil
	case ty.IsTupleType() || ty.IsListType() || ty.IsSetType():
		items := v.AsValueSlice()
		out := make([]any, 0, len(items))
		for _, item := range items {
			converted, err := fromCty(item)
			if err != nil {
				return nil, err
			}
			out = append(out, converted)
		}
		return out, nil
	case ty.IsObjectType() || ty.IsMapType():
		entries := v.AsValueMap()
		out := make(map[string]any, len(entries))
		for k, item := range entries {
			converted, err := fromCty(item)
			if err != nil {
				return nil, err
			}
			out[k] = converted
		}
		return out, nil
	default:
		return nil, fmt.Errorf("unsupported value type %s", ty.FriendlyName())
	}
}

func numberFromCty(f *big.Float) any {
	if f.IsInt() {
		if i, acc := f.Int64(); acc == big.Exact {
			return i
		}
	}
	out, _ := f.Float64()
	return out
}
