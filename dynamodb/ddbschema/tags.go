package ddbschema

import (
	"fmt"
	"reflect"
	"strings"
)

// TagName is the struct tag read for field configuration. When absent, the name
// part of the dynamodbav tag is honoured so existing attributevalue types keep
// their attribute names.
const TagName = "dynamo"

type fieldTag struct {
	name      string
	skip      bool
	pk        bool
	sk        bool
	indexPK   []string
	indexSK   []string
	converter string
	flatten   bool
	optional  bool
	set       bool
}

func parseFieldTag(field reflect.StructField) (fieldTag, error) {
	var ft fieldTag
	tag, ok := field.Tag.Lookup(TagName)
	if !ok {
		tag, ok = field.Tag.Lookup("dynamodbav")
		if !ok {
			return ft, nil
		}
		ft.name = parseTagName(tag)
		ft.skip = ft.name == "-"
		return ft, nil
	}
	parts := strings.Split(tag, ",")
	ft.name = strings.TrimSpace(parts[0])
	if ft.name == "-" && len(parts) == 1 {
		ft.skip = true
		return ft, nil
	}
	for _, opt := range parts[1:] {
		opt = strings.TrimSpace(opt)
		key, value, hasValue := strings.Cut(opt, "=")
		switch key {
		case "":
		case "pk":
			ft.pk = true
		case "sk":
			ft.sk = true
		case "index-pk", "index-sk":
			names := splitIndexNames(value)
			if len(names) == 0 {
				return ft, fmt.Errorf("option %s requires index names", key)
			}
			if key == "index-pk" {
				ft.indexPK = append(ft.indexPK, names...)
			} else {
				ft.indexSK = append(ft.indexSK, names...)
			}
		case "converter":
			if value == "" {
				return ft, fmt.Errorf("option converter requires a name")
			}
			ft.converter = value
		case "flatten":
			ft.flatten = true
		case "default":
			ft.optional = true
		case "set":
			ft.set = true
		case "omitempty":
		default:
			return ft, fmt.Errorf("unknown option %q", opt)
		}
		if hasValue && key != "index-pk" && key != "index-sk" && key != "converter" {
			return ft, fmt.Errorf("option %s takes no value", key)
		}
	}
	return ft, nil
}

func splitIndexNames(v string) []string {
	var out []string
	for _, name := range strings.Split(v, "|") {
		if name = strings.TrimSpace(name); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// parseTagName extracts the name part from a tag value like "name,omitempty".
func parseTagName(tag string) string {
	if idx := strings.Index(tag, ","); idx != -1 {
		return tag[:idx]
	}
	return tag
}
