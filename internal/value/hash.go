package value

// maybeUpgradeHash converts a listpack-encoded hash into a real Go map
// once the field count or any field/value length crosses threshold.
func (v *Value) maybeUpgradeHash(t Thresholds) {
	if v.Encoding != EncListpack {
		return
	}
	if v.LP.Len()/2 > t.HashMaxListpackEntries || v.LP.MaxElementSize() > t.HashMaxListpackValue {
		ht := make(map[string]string, v.LP.Len()/2)
		all := v.LP.All()
		for i := 0; i+1 < len(all); i += 2 {
			ht[all[i]] = all[i+1]
		}
		v.HT = ht
		v.LP = nil
		v.Encoding = EncHashtable
	}
}

// HashSet sets field to val, returning true if field was newly created.
func (v *Value) HashSet(field, val string, t Thresholds) bool {
	if v.Encoding == EncHashtable {
		_, existed := v.HT[field]
		v.HT[field] = val
		return !existed
	}
	all := v.LP.All()
	for i := 0; i+1 < len(all); i += 2 {
		if all[i] == field {
			v.LP.Set(i+1, val)
			v.maybeUpgradeHash(t)
			return false
		}
	}
	v.LP.PushBack(field)
	v.LP.PushBack(val)
	v.maybeUpgradeHash(t)
	return true
}

func (v *Value) HashGet(field string) (string, bool) {
	if v.Encoding == EncHashtable {
		s, ok := v.HT[field]
		return s, ok
	}
	all := v.LP.All()
	for i := 0; i+1 < len(all); i += 2 {
		if all[i] == field {
			return all[i+1], true
		}
	}
	return "", false
}

func (v *Value) HashDel(field string) bool {
	if v.Encoding == EncHashtable {
		if _, ok := v.HT[field]; !ok {
			return false
		}
		delete(v.HT, field)
		return true
	}
	all := v.LP.All()
	for i := 0; i+1 < len(all); i += 2 {
		if all[i] == field {
			rebuilt := buildListpack(append(append([]string{}, all[:i]...), all[i+2:]...))
			v.LP = rebuilt
			return true
		}
	}
	return false
}

func (v *Value) HashLen() int {
	if v.Encoding == EncHashtable {
		return len(v.HT)
	}
	return v.LP.Len() / 2
}

func (v *Value) HashFields() []string {
	if v.Encoding == EncHashtable {
		out := make([]string, 0, len(v.HT))
		for f := range v.HT {
			out = append(out, f)
		}
		return out
	}
	all := v.LP.All()
	out := make([]string, 0, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		out = append(out, all[i])
	}
	return out
}

func (v *Value) HashValues() []string {
	if v.Encoding == EncHashtable {
		out := make([]string, 0, len(v.HT))
		for _, val := range v.HT {
			out = append(out, val)
		}
		return out
	}
	all := v.LP.All()
	out := make([]string, 0, len(all)/2)
	for i := 0; i+1 < len(all); i += 2 {
		out = append(out, all[i+1])
	}
	return out
}

// HashAll returns field/value pairs as a flat slice in field,value,... order.
func (v *Value) HashAll() []string {
	if v.Encoding == EncHashtable {
		out := make([]string, 0, 2*len(v.HT))
		for f, val := range v.HT {
			out = append(out, f, val)
		}
		return out
	}
	return append([]string(nil), v.LP.All()...)
}
