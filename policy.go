package replica

import (
	"cmp"
	"reflect"
	"slices"

	"github.com/zoobzio/sentinel"
)

// tagKey is the struct tag carrying a member's copy policy.
const tagKey = "clone"

func init() {
	sentinel.Tag(tagKey)
}

// Policy controls how a struct member is treated during a copy.
// Declare it with a struct tag:
//
//	type Document struct {
//	    Body   *Section                // deep copy (default)
//	    Owner  *User   `clone:"shallow"` // copy shares the source reference
//	    Cache  []byte  `clone:"ignore"`  // copy holds the zero value
//	}
type Policy int

const (
	// PolicyDuplicate replaces the member with a recursively produced copy.
	PolicyDuplicate Policy = iota

	// PolicyShare leaves the shallow-copied reference untouched.
	PolicyShare

	// PolicySuppress overwrites the member with its zero value.
	PolicySuppress
)

// String returns the tag value that declares the policy.
func (p Policy) String() string {
	switch p {
	case PolicyShare:
		return "shallow"
	case PolicySuppress:
		return "ignore"
	default:
		return "deep"
	}
}

// policies maps tag values to policies.
var policies = map[string]Policy{
	"deep":    PolicyDuplicate,
	"shallow": PolicyShare,
	"ignore":  PolicySuppress,
}

// member describes one field of a composite record.
type member struct {
	index    int          // reflect.Value.Field access index
	name     string       // field name for errors and lookups
	typ      reflect.Type // declared field type
	policy   Policy       // resolved copy policy
	writable bool         // false for unexported and promoted fields
}

// resolvePolicy returns the declared policy for a field, defaulting to PolicyDuplicate.
func resolvePolicy(owner reflect.Type, field sentinel.FieldMetadata) (Policy, error) {
	val, ok := field.Tags[tagKey]
	if !ok || val == "" {
		return PolicyDuplicate, nil
	}
	p, ok := policies[val]
	if !ok {
		return PolicyDuplicate, newConfigError(ErrInvalidTag, owner, field.Name, val)
	}
	return p, nil
}

// buildMembers resolves the ordered member list of a struct type.
func buildMembers(rt reflect.Type) ([]member, error) {
	spec := scanComposite(rt)
	members := make([]member, 0, len(spec.Fields))

	for _, field := range spec.Fields {
		policy, err := resolvePolicy(rt, field)
		if err != nil {
			return nil, err
		}

		// Promoted fields are reached through their embedding member.
		if len(field.Index) != 1 || field.Index[0] >= rt.NumField() {
			continue
		}

		sf := rt.Field(field.Index[0])
		if sf.Name != field.Name {
			continue
		}
		members = append(members, member{
			index:    field.Index[0],
			name:     field.Name,
			typ:      sf.Type,
			policy:   policy,
			writable: sf.IsExported(),
		})
	}

	slices.SortFunc(members, func(a, b member) int {
		return cmp.Compare(a.index, b.index)
	})
	return members, nil
}

// scanComposite returns sentinel metadata for a struct type.
// Types scanned through Register or already in sentinel's cache are served
// from there, with any top-level exported field sentinel left out filled in
// from reflection. Anything else is described directly from reflection.
func scanComposite(rt reflect.Type) sentinel.Metadata {
	spec, ok := scannedMetadata(rt)
	if !ok {
		spec, ok = sentinel.Lookup(rt.String())
		ok = ok && spec.PackageName == rt.PkgPath()
	}

	described := describeComposite(rt)
	if !ok {
		return described
	}

	known := make(map[string]bool, len(spec.Fields))
	for _, field := range spec.Fields {
		known[field.Name] = true
	}
	for _, field := range described.Fields {
		if !known[field.Name] {
			spec.Fields = append(spec.Fields, field)
		}
	}
	return spec
}

// describeComposite builds sentinel metadata for a struct type by reflection.
func describeComposite(rt reflect.Type) sentinel.Metadata {
	spec := sentinel.Metadata{
		TypeName:    rt.Name(),
		PackageName: rt.PkgPath(),
		Fields:      make([]sentinel.FieldMetadata, 0, rt.NumField()),
	}

	for i := 0; i < rt.NumField(); i++ {
		sf := rt.Field(i)
		if !sf.IsExported() {
			continue
		}

		fm := sentinel.FieldMetadata{
			Name:        sf.Name,
			Type:        sf.Type.String(),
			ReflectType: sf.Type,
			Index:       sf.Index,
			Tags:        parseCloneTag(sf.Tag),
		}

		switch sf.Type.Kind() {
		case reflect.Struct:
			fm.Kind = sentinel.KindStruct
		case reflect.Ptr:
			fm.Kind = sentinel.KindPointer
		case reflect.Slice, reflect.Array:
			fm.Kind = sentinel.KindSlice
		case reflect.Map:
			fm.Kind = sentinel.KindMap
		case reflect.Interface:
			fm.Kind = sentinel.KindInterface
		default:
			fm.Kind = sentinel.KindScalar
		}

		spec.Fields = append(spec.Fields, fm)
	}

	return spec
}

// parseCloneTag extracts the clone tag from a struct tag.
func parseCloneTag(tag reflect.StructTag) map[string]string {
	tags := make(map[string]string, 1)
	if val, ok := tag.Lookup(tagKey); ok {
		tags[tagKey] = val
	}
	return tags
}

// PolicyOf reports the resolved policy of a named field of a struct type,
// or of the struct a pointer type points to. The second result is false
// when the type has no such writable field.
func PolicyOf(t reflect.Type, field string) (Policy, bool, error) {
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	p, err := planFor(t)
	if err != nil {
		return PolicyDuplicate, false, err
	}
	for _, m := range p.members {
		if m.name == field && m.writable {
			return m.policy, true, nil
		}
	}
	return PolicyDuplicate, false, nil
}
