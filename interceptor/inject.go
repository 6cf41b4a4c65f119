package interceptor

import (
	"reflect"

	"github.com/m-lab/authgate/auth"
)

var (
	claimsType    = reflect.TypeOf(auth.Claims{})
	claimsPtrType = reflect.TypeOf(&auth.Claims{})
)

// inject writes cl into the target declared for the method and returns the
// arguments to call it with.
func inject(recv interface{}, args []interface{}, t Target, cl *auth.Claims) ([]interface{}, error) {
	switch t.kind {
	case fieldTarget:
		return args, mergeField(recv, t.field, cl)
	case argTarget:
		if t.index >= len(args) {
			return nil, configErr("argument %d is out of range for %d arguments", t.index, len(args))
		}
		out := make([]interface{}, len(args))
		copy(out, args)
		out[t.index] = cl
		return out, nil
	}
	return args, nil
}

// mergeField overlays cl onto the named field of recv. The field keeps its
// identity: a *auth.Claims field still points at the same value afterwards.
// Every property is replaced, so nothing from earlier claims survives.
func mergeField(recv interface{}, name string, cl *auth.Claims) error {
	v := reflect.ValueOf(recv)
	if v.Kind() != reflect.Ptr || v.IsNil() || v.Elem().Kind() != reflect.Struct {
		return configErr("receiver %T must be a pointer to a struct to inject field %q", recv, name)
	}
	f := v.Elem().FieldByName(name)
	if !f.IsValid() || !f.CanSet() {
		return configErr("receiver %T has no settable field %q", recv, name)
	}

	var dst *auth.Claims
	switch f.Type() {
	case claimsPtrType:
		if f.IsNil() {
			f.Set(reflect.ValueOf(&auth.Claims{}))
		}
		dst = f.Interface().(*auth.Claims)
	case claimsType:
		dst = f.Addr().Interface().(*auth.Claims)
	default:
		return configErr("field %q of %T has type %s, want %s", name, recv, f.Type(), claimsPtrType)
	}

	*dst = *cl.Clone()
	return nil
}

func isNil(i interface{}) bool {
	if i == nil {
		return true
	}
	v := reflect.ValueOf(i)
	switch v.Kind() {
	case reflect.Ptr, reflect.Func, reflect.Interface:
		return v.IsNil()
	}
	return false
}
