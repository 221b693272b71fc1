package ddbschema

import (
	"fmt"
	"reflect"
	"sync/atomic"
)

// CollisionPolicy decides what happens when two fields, usually one of them
// spliced in by flatten, share a storage name.
type CollisionPolicy int

const (
	// CollisionOverwrite keeps both fields; the later field wins on output.
	CollisionOverwrite CollisionPolicy = iota
	// CollisionReject fails derivation.
	CollisionReject
)

// schemaRef points at a schema that may still be under derivation.
// Converters holding a ref must not dereference it before conversion time.
type schemaRef struct {
	typ reflect.Type
	p   atomic.Pointer[recordSchema]
}

func resolvedRef(rs *recordSchema) *schemaRef {
	r := &schemaRef{typ: rs.typ}
	r.p.Store(rs)
	return r
}

func (r *schemaRef) get() *recordSchema {
	rs := r.p.Load()
	if rs == nil {
		panic(fmt.Sprintf("ddbschema: schema for %s used before derivation finished", r.typ))
	}
	return rs
}

// session derives one requested type plus every type it reaches that is not
// cached yet. Nothing derived in a session is visible outside it until the
// whole session succeeds.
type session struct {
	cache      *Cache
	refs       map[reflect.Type]*schemaRef
	derived    []*recordSchema
	flattening map[reflect.Type]bool
}

func newSession(c *Cache) *session {
	return &session{
		cache:      c,
		refs:       make(map[reflect.Type]*schemaRef),
		flattening: make(map[reflect.Type]bool),
	}
}

func (s *session) ref(t reflect.Type) (*schemaRef, error) {
	if rs := s.cache.lookup(t); rs != nil {
		return resolvedRef(rs), nil
	}
	if r, ok := s.refs[t]; ok {
		return r, nil
	}
	r := &schemaRef{typ: t}
	s.refs[t] = r
	rs, err := s.derive(t)
	if err != nil {
		return nil, err
	}
	r.p.Store(rs)
	s.derived = append(s.derived, rs)
	return r, nil
}

func (s *session) derive(t reflect.Type) (*recordSchema, error) {
	if t.Kind() != reflect.Struct {
		return nil, &InvalidRecordTypeError{Type: t, Reason: fmt.Sprintf("record types must be structs, got %s", t.Kind())}
	}
	// Flatten cycles are tracked per record; document fields start a new record.
	outer := s.flattening
	s.flattening = map[reflect.Type]bool{t: true}
	defer func() { s.flattening = outer }()

	plan, err := s.compileStruct(t, "")
	if err != nil {
		return nil, err
	}
	rs := &recordSchema{
		typ:           t,
		plan:          plan,
		fields:        plan.leaves,
		byName:        make(map[string]*fieldDescriptor, len(plan.leaves)),
		preserveEmpty: preservesEmpty(t),
	}
	for _, f := range plan.leaves {
		if prev, ok := rs.byName[f.StorageName]; ok {
			if s.cache.collisions == CollisionReject {
				return nil, &InvalidRecordTypeError{Type: t, Reason: fmt.Sprintf("attribute %q is used by both %s and %s", f.StorageName, prev.Path, f.Path)}
			}
		} else {
			rs.names = append(rs.names, f.StorageName)
		}
		rs.byName[f.StorageName] = f
	}
	rs.index, err = buildIndexMetadata(t, rs.fields)
	if err != nil {
		return nil, err
	}
	return rs, nil
}

// compileStruct walks the fields of t. prefix is the dotted path of t inside
// the record being derived when t is flattened.
func (s *session) compileStruct(t reflect.Type, prefix string) (*structPlan, error) {
	plan := &structPlan{typ: t, defaults: defaultsFunc(t)}
	var defaults reflect.Value
	if plan.defaults != nil {
		defaults = plan.defaults()
	}
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		tag, err := parseFieldTag(sf)
		if err != nil {
			return nil, &InvalidRecordTypeError{Type: t, Reason: fmt.Sprintf("field %s: %v", sf.Name, err)}
		}
		if tag.skip {
			continue
		}
		if !sf.IsExported() {
			return nil, &InvalidRecordTypeError{Type: t, Reason: fmt.Sprintf("unexported field %s cannot be set by the record builder, tag it %s:\"-\"", sf.Name, TagName)}
		}
		path := prefix + sf.Name
		optional := tag.optional || defaults.IsValid() && !defaults.Field(i).IsZero()
		mem := member{name: sf.Name, index: i, typ: sf.Type, optional: optional}

		if tag.flatten || sf.Anonymous && tag.name == "" && s.embeddedRecord(sf.Type) {
			nested, err := s.flatten(t, sf, tag, path)
			if err != nil {
				return nil, err
			}
			mem.flat = nested
			for _, leaf := range nested.leaves {
				d := *leaf
				d.get = flattenedGetter(i, leaf.get)
				d.Flattened = true
				plan.leaves = append(plan.leaves, &d)
			}
			plan.members = append(plan.members, mem)
			continue
		}

		conv, err := s.fieldConverter(sf.Type, path, tag)
		if err != nil {
			return nil, err
		}
		name := tag.name
		if name == "" {
			name = sf.Name
		}
		mem.leaf = &fieldDescriptor{
			Field: Field{
				StorageName: name,
				NativeName:  sf.Name,
				Path:        path,
				Type:        sf.Type,
				Kind:        conv.kind(),
				Required:    !optional && !nillable(sf.Type),
				KeyRoles:    keyRoles(tag),
			},
			conv: conv,
			get:  fieldGetter(i),
		}
		plan.members = append(plan.members, mem)
		plan.leaves = append(plan.leaves, mem.leaf)
	}
	return plan, nil
}

func (s *session) flatten(parent reflect.Type, sf reflect.StructField, tag fieldTag, path string) (*structPlan, error) {
	st := sf.Type
	if st.Kind() == reflect.Pointer {
		st = st.Elem()
	}
	if st.Kind() != reflect.Struct {
		return nil, &InvalidRecordTypeError{Type: parent, Reason: fmt.Sprintf("flattened field %s must be a struct, got %s", sf.Name, sf.Type)}
	}
	if tag.name != "" || tag.pk || tag.sk || len(tag.indexPK) > 0 || len(tag.indexSK) > 0 || tag.converter != "" || tag.set {
		return nil, &InvalidRecordTypeError{Type: parent, Reason: fmt.Sprintf("flattened field %s cannot carry name, key or converter options", sf.Name)}
	}
	if s.flattening[st] {
		return nil, &InvalidRecordTypeError{Type: parent, Reason: fmt.Sprintf("flattened field %s recursively contains %s", sf.Name, st)}
	}
	s.flattening[st] = true
	defer delete(s.flattening, st)
	return s.compileStruct(st, path+".")
}

func (s *session) fieldConverter(t reflect.Type, path string, tag fieldTag) (converter, error) {
	switch {
	case tag.converter != "":
		return s.cache.registry.instantiate(tag.converter, path, t)
	case tag.set:
		return newSetConverter(t, path)
	}
	return s.resolve(t, path)
}

// resolve picks the default converter for t: a registered converter first,
// then attributevalue marshalers, then one derived from the shape of t.
func (s *session) resolve(t reflect.Type, path string) (converter, error) {
	if c, ok := s.cache.registry.lookup(t); ok {
		return c, nil
	}
	if isMarshaler(t) {
		return marshalerConverter{typ: t}, nil
	}
	switch t.Kind() {
	case reflect.String:
		return stringConverter{typ: t}, nil
	case reflect.Bool:
		return boolConverter{typ: t}, nil
	case reflect.Pointer:
		elem, err := s.resolve(t.Elem(), path)
		if err != nil {
			return nil, err
		}
		return pointerConverter{typ: t, elem: elem}, nil
	case reflect.Slice, reflect.Array:
		if t.Kind() == reflect.Slice && t.Elem().Kind() == reflect.Uint8 {
			return bytesConverter{typ: t}, nil
		}
		elem, err := s.resolve(t.Elem(), path+"[]")
		if err != nil {
			return nil, err
		}
		return listConverter{typ: t, elem: elem}, nil
	case reflect.Map:
		if t.Elem() == emptyStructType {
			return newSetConverter(t, path)
		}
		if t.Key().Kind() != reflect.String {
			return nil, &UnsupportedTypeError{Type: t, Field: path, Reason: "map keys must be string-kinded"}
		}
		elem, err := s.resolve(t.Elem(), path+"{}")
		if err != nil {
			return nil, err
		}
		return mapConverter{typ: t, elem: elem}, nil
	case reflect.Struct:
		ref, err := s.ref(t)
		if err != nil {
			return nil, err
		}
		return documentConverter{ref: ref}, nil
	}
	if isNumberKind(t.Kind()) {
		return numberConverter{typ: t}, nil
	}
	return nil, &UnsupportedTypeError{Type: t, Field: path, Reason: fmt.Sprintf("no converter for kind %s", t.Kind())}
}

// embeddedRecord reports whether an embedded field of type t is flattened
// implicitly. Embedded types with their own converter are stored as one attribute.
func (s *session) embeddedRecord(t reflect.Type) bool {
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if _, ok := s.cache.registry.lookup(t); ok || isMarshaler(t) {
		return false
	}
	return t.Kind() == reflect.Struct
}

// defaultsFunc returns a constructor for the default value of t when t, or *t,
// has a method Defaults() t.
func defaultsFunc(t reflect.Type) func() reflect.Value {
	m, ok := reflect.PointerTo(t).MethodByName("Defaults")
	if !ok || m.Type.NumIn() != 1 || m.Type.NumOut() != 1 || m.Type.Out(0) != t {
		return nil
	}
	return func() reflect.Value {
		return reflect.New(t).MethodByName("Defaults").Call(nil)[0]
	}
}

type emptyObjectPreserver interface {
	PreserveEmptyObject() bool
}

func preservesEmpty(t reflect.Type) bool {
	p, ok := reflect.New(t).Interface().(emptyObjectPreserver)
	return ok && p.PreserveEmptyObject()
}
