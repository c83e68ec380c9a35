// Package addritem defines the nodes kept in an address cache: persons,
// e-mail addresses, folders and groups.
//
// Owned children (a person's addresses, a folder's contents) are held by
// pointer. Everything that does not own its target (an item's parent, a
// group's members) is held by UID and resolved through the cache that
// holds the items, so removing an item can never leave a live pointer
// behind.
package addritem

// ItemType tags every node. It is fixed when the node is created.
type ItemType int

const (
	TypeNone ItemType = iota
	TypePerson
	TypeEMail
	TypeFolder
	TypeGroup
)

func (t ItemType) String() string {
	switch t {
	case TypePerson:
		return "person"
	case TypeEMail:
		return "email"
	case TypeFolder:
		return "folder"
	case TypeGroup:
		return "group"
	}
	return "none"
}

// Item is the identity every node shares.
type Item interface {
	Type() ItemType
	UID() string
	Name() string
	ParentUID() string
}

// Object is the base identity embedded by every node kind.
type Object struct {
	typ    ItemType
	uid    string
	name   string
	parent string
}

func newObject(t ItemType) Object {
	return Object{typ: t}
}

func (o *Object) Type() ItemType { return o.typ }

func (o *Object) UID() string { return o.uid }

func (o *Object) SetUID(uid string) { o.uid = uid }

func (o *Object) Name() string { return o.name }

func (o *Object) SetName(name string) { o.name = name }

// ParentUID returns the UID of the owning node, empty for a root folder
// or a detached node.
func (o *Object) ParentUID() string { return o.parent }

func (o *Object) SetParentUID(uid string) { o.parent = uid }

// indexOf returns the position of v in list or -1.
func indexOf[T comparable](list []T, v T) int {
	for i, x := range list {
		if x == v {
			return i
		}
	}
	return -1
}

func removeAt[T any](list []T, i int) []T {
	return append(list[:i], list[i+1:]...)
}

func insertAt[T any](list []T, i int, v T) []T {
	list = append(list, v)
	copy(list[i+1:], list[i:])
	list[i] = v
	return list
}
