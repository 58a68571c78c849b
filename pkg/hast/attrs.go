package hast

// Attribute is one name/value pair on an element.
type Attribute struct {
	Name  string
	Value string

	// Removed marks an attribute the sanitizer dropped. Renderers skip it.
	Removed bool
}

// Attributes is the ordered attribute list of an element. Names are unique.
type Attributes []Attribute

// Attrs builds an attribute list from name/value pairs. A trailing name
// without a value gets the empty string.
func Attrs(pairs ...string) Attributes {
	var a Attributes
	for i := 0; i < len(pairs); i += 2 {
		value := ""
		if i+1 < len(pairs) {
			value = pairs[i+1]
		}
		a.Set(pairs[i], value)
	}
	return a
}

// Get returns the value of a live attribute.
func (a Attributes) Get(name string) (string, bool) {
	if i := a.index(name); i >= 0 && !a[i].Removed {
		return a[i].Value, true
	}
	return "", false
}

// Has reports whether a live attribute with the name exists.
func (a Attributes) Has(name string) bool {
	_, ok := a.Get(name)
	return ok
}

// Set assigns name, replacing an existing entry in place so order is kept.
func (a *Attributes) Set(name, value string) {
	if i := a.index(name); i >= 0 {
		(*a)[i] = Attribute{Name: name, Value: value}
		return
	}
	*a = append(*a, Attribute{Name: name, Value: value})
}

// Remove marks name as removed. The entry keeps its position.
func (a Attributes) Remove(name string) {
	if i := a.index(name); i >= 0 {
		a[i].Removed = true
		a[i].Value = ""
	}
}

// Live returns the attributes that are not marked removed, in order.
func (a Attributes) Live() []Attribute {
	out := make([]Attribute, 0, len(a))
	for _, attr := range a {
		if !attr.Removed {
			out = append(out, attr)
		}
	}
	return out
}

func (a Attributes) index(name string) int {
	for i, attr := range a {
		if attr.Name == name {
			return i
		}
	}
	return -1
}
