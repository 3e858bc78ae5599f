package value

import "strconv"

// maybeUpgradeSetFromIntset moves an intset to a hashtable set once the
// intset's entry count exceeds SetMaxIntsetEntries. A non-integer member
// is handled by SetAdd instead, which converts the intset to a listpack
// (then to a hashtable past SetMaxListpackEntries), matching how Redis
// treats small non-integer sets.
func (v *Value) maybeUpgradeSetFromIntset(t Thresholds) {
	if v.Encoding != EncIntset {
		return
	}
	if v.IS.Len() > t.SetMaxIntsetEntries {
		v.convertIntsetToHashtable()
	}
}

func (v *Value) convertIntsetToHashtable() {
	ht := make(map[string]struct{}, v.IS.Len())
	for _, m := range v.IS.Members() {
		ht[strconv.FormatInt(m, 10)] = struct{}{}
	}
	v.SetHT = ht
	v.IS = nil
	v.Encoding = EncHashtable
}

func (v *Value) maybeUpgradeSet(t Thresholds) {
	if v.Encoding == EncListpack && v.LP.Len() > t.SetMaxListpackEntries {
		v.convertListpackSetToHashtable()
	}
}

func (v *Value) convertListpackSetToHashtable() {
	ht := make(map[string]struct{}, v.LP.Len())
	for _, m := range v.LP.All() {
		ht[m] = struct{}{}
	}
	v.SetHT = ht
	v.LP = nil
	v.Encoding = EncHashtable
}

// SetAdd inserts member, returning true if it was newly added.
func (v *Value) SetAdd(member string, t Thresholds) bool {
	switch v.Encoding {
	case EncIntset:
		if n, err := strconv.ParseInt(member, 10, 64); err == nil {
			added := v.IS.Add(n)
			v.maybeUpgradeSetFromIntset(t)
			return added
		}
		// a non-integer forces conversion straight to listpack (or
		// hashtable, if already past the listpack threshold).
		elems := make([]string, 0, v.IS.Len())
		for _, m := range v.IS.Members() {
			elems = append(elems, strconv.FormatInt(m, 10))
		}
		v.LP = buildListpack(elems)
		v.IS = nil
		v.Encoding = EncListpack
		added := v.addToListpackSet(member)
		v.maybeUpgradeSet(t)
		return added
	case EncListpack:
		added := v.addToListpackSet(member)
		v.maybeUpgradeSet(t)
		return added
	default: // EncHashtable
		if _, ok := v.SetHT[member]; ok {
			return false
		}
		v.SetHT[member] = struct{}{}
		return true
	}
}

func (v *Value) addToListpackSet(member string) bool {
	for _, m := range v.LP.All() {
		if m == member {
			return false
		}
	}
	v.LP.PushBack(member)
	return true
}

func (v *Value) SetIsMember(member string) bool {
	switch v.Encoding {
	case EncIntset:
		n, err := strconv.ParseInt(member, 10, 64)
		return err == nil && v.IS.Contains(n)
	case EncListpack:
		for _, m := range v.LP.All() {
			if m == member {
				return true
			}
		}
		return false
	default:
		_, ok := v.SetHT[member]
		return ok
	}
}

func (v *Value) SetRemove(member string) bool {
	switch v.Encoding {
	case EncIntset:
		n, err := strconv.ParseInt(member, 10, 64)
		return err == nil && v.IS.Remove(n)
	case EncListpack:
		all := v.LP.All()
		for i, m := range all {
			if m == member {
				v.LP = buildListpack(append(append([]string{}, all[:i]...), all[i+1:]...))
				return true
			}
		}
		return false
	default:
		if _, ok := v.SetHT[member]; !ok {
			return false
		}
		delete(v.SetHT, member)
		return true
	}
}

func (v *Value) SetCard() int {
	switch v.Encoding {
	case EncIntset:
		return v.IS.Len()
	case EncListpack:
		return v.LP.Len()
	default:
		return len(v.SetHT)
	}
}

// SetMembers returns every member as strings regardless of encoding.
func (v *Value) SetMembers() []string {
	switch v.Encoding {
	case EncIntset:
		ms := v.IS.Members()
		out := make([]string, len(ms))
		for i, m := range ms {
			out[i] = strconv.FormatInt(m, 10)
		}
		return out
	case EncListpack:
		return append([]string(nil), v.LP.All()...)
	default:
		out := make([]string, 0, len(v.SetHT))
		for m := range v.SetHT {
			out = append(out, m)
		}
		return out
	}
}

// SetRandomMember returns a random member using rnd(n) to pick an index
// into an n-length sequence (Dict.sample is the analogous
// primitive for hashtable-encoded sets).
func (v *Value) SetRandomMember(rnd func(n int) int) (string, bool) {
	members := v.SetMembers()
	if len(members) == 0 {
		return "", false
	}
	return members[rnd(len(members))], true
}
