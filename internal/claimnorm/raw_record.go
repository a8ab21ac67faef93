package claimnorm

// RawRecord is one decoded source record: an ordered mapping of
// source-specific field names to string or null values.
type RawRecord struct {
	keys   []string
	values map[string]*string
}

// NewRawRecord returns an empty record sized for n fields.
func NewRawRecord(n int) RawRecord {
	return RawRecord{
		keys:   make([]string, 0, n),
		values: make(map[string]*string, n),
	}
}

// Set stores a value; a nil value records an explicit null.
// Setting an existing key keeps its original position.
func (r *RawRecord) Set(key string, val *string) {
	if r.values == nil {
		r.values = make(map[string]*string)
	}
	if _, ok := r.values[key]; !ok {
		r.keys = append(r.keys, key)
	}
	r.values[key] = val
}

// SetString stores a non-null value.
func (r *RawRecord) SetString(key, val string) {
	r.Set(key, &val)
}

// Lookup returns the value for key. ok is false when the field is
// missing or null.
func (r RawRecord) Lookup(key string) (string, bool) {
	v, present := r.values[key]
	if !present || v == nil {
		return "", false
	}
	return *v, true
}

// Keys returns field names in decode order.
func (r RawRecord) Keys() []string { return r.keys }

// Len returns the number of fields.
func (r RawRecord) Len() int { return len(r.keys) }
