package metal

// Get reads a key or a dotted path. Paths stop at the first nil, non-object
// or destroyed intermediate and return nil.
func Get(obj *Object, path string) any {
	if obj == nil || path == "" {
		return nil
	}
	p := obj.sys.path(path)
	if !p.isPath() {
		return getKey(obj, path)
	}
	return getSegments(obj, p.segments)
}

func getSegments(root any, segments []string) any {
	cur := root
	for _, seg := range segments {
		cur = getValue(cur, seg)
		if cur == nil {
			return nil
		}
		if o, ok := cur.(*Object); ok && o.destroyed {
			return nil
		}
	}
	return cur
}

// getValue reads key from anything that can hold keys.
func getValue(v any, key string) any {
	switch t := v.(type) {
	case *Object:
		if t == nil {
			return nil
		}
		return getKey(t, key)
	case map[string]any:
		return t[key]
	case Props:
		return t[key]
	}
	return nil
}

func getKey(obj *Object, key string) any {
	v, ok := obj.lookup(key)
	if d, isDesc := v.(Descriptor); isDesc {
		return d.get(obj, key)
	}
	if !ok || v == nil {
		if unknown := obj.unknownGetter(); unknown != nil {
			return unknown(obj, key)
		}
	}
	return v
}

// GetWithDefault returns def when the path resolves to nil.
func GetWithDefault(obj *Object, path string, def any) any {
	if v := Get(obj, path); v != nil {
		return v
	}
	return def
}

func GetProperties(obj *Object, keys ...string) Props {
	out := make(Props, len(keys))
	for _, k := range keys {
		out[k] = Get(obj, k)
	}
	return out
}
