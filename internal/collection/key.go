package collection

// Key identifies one cached collection or record.
type Key struct {
	Resource string
	// ID is empty for the list key.
	ID string
}

// ListKey is the key of the full collection for resource.
func ListKey(resource string) Key {
	return Key{Resource: resource}
}

// DetailKey is the key of one record.
func DetailKey(resource, id string) Key {
	return Key{Resource: resource, ID: id}
}

// IsList reports whether k names a whole collection.
func (k Key) IsList() bool { return k.ID == "" }

func (k Key) String() string {
	if k.IsList() {
		return k.Resource + "/list"
	}
	return k.Resource + "/detail/" + k.ID
}
