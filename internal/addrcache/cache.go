// Package addrcache holds one data source's folder/person/e-mail/group tree.
//
// Every node registered with a Cache is also kept in a UID keyed arena. Weak
// references (parents, group membership) are UIDs looked up in that arena;
// removing a node takes it out of the arena and out of every group, so a
// stale UID resolves to nothing instead of to a freed node.
package addrcache

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/sonroyaalmerol/addrindex/internal/addritem"
)

// RootUID is the UID of every cache's root folder. It is never produced by
// the id counter.
const RootUID = "root"

var (
	ErrNilItem      = errors.New("nil item")
	ErrNotFound     = errors.New("item not in cache")
	ErrDuplicateUID = errors.New("duplicate uid")
	ErrRootFolder   = errors.New("cannot remove root folder")
)

type Cache struct {
	name       string
	root       *addritem.Folder
	items      map[string]addritem.Item
	nextID     int64
	modified   bool
	dataRead   bool
	accessFlag bool
}

func New() *Cache {
	c := &Cache{}
	c.reset()
	return c
}

func (c *Cache) reset() {
	c.root = addritem.NewRootFolder()
	c.root.SetUID(RootUID)
	c.items = map[string]addritem.Item{RootUID: c.root}
}

func (c *Cache) Name() string { return c.name }

func (c *Cache) SetName(name string) { c.name = name }

func (c *Cache) Root() *addritem.Folder { return c.root }

// NextID advances the counter and returns its new value as a UID.
func (c *Cache) NextID() string {
	c.nextID++
	return strconv.FormatInt(c.nextID, 10)
}

// LastID returns the last value handed out or observed.
func (c *Cache) LastID() int64 { return c.nextID }

// ReserveThrough makes sure the counter never hands out n or anything below.
func (c *Cache) ReserveThrough(n int64) {
	if n > c.nextID {
		c.nextID = n
	}
}

// observeID raises the counter to uid when uid is numeric and larger, so
// UIDs loaded from storage are never handed out again.
func (c *Cache) observeID(uid string) {
	n, err := strconv.ParseInt(uid, 10, 64)
	if err == nil && n > c.nextID {
		c.nextID = n
	}
}

func (c *Cache) Modified() bool { return c.modified }

func (c *Cache) SetModified(v bool) { c.modified = v }

func (c *Cache) DataRead() bool { return c.dataRead }

func (c *Cache) SetDataRead(v bool) { c.dataRead = v }

func (c *Cache) AccessFlag() bool { return c.accessFlag }

func (c *Cache) SetAccessFlag(v bool) { c.accessFlag = v }

// Len is the number of registered nodes, the root folder included.
func (c *Cache) Len() int { return len(c.items) }

// Clear drops the whole tree and resets the flags. The id counter is kept
// so UIDs are not reused while the owner is open.
func (c *Cache) Clear() {
	c.reset()
	c.modified = false
	c.dataRead = false
}

func (c *Cache) Find(uid string) addritem.Item {
	return c.items[uid]
}

func (c *Cache) FindPerson(uid string) *addritem.Person {
	p, _ := c.items[uid].(*addritem.Person)
	return p
}

func (c *Cache) FindEMail(uid string) *addritem.EMail {
	e, _ := c.items[uid].(*addritem.EMail)
	return e
}

func (c *Cache) FindFolder(uid string) *addritem.Folder {
	f, _ := c.items[uid].(*addritem.Folder)
	return f
}

func (c *Cache) FindGroup(uid string) *addritem.Group {
	g, _ := c.items[uid].(*addritem.Group)
	return g
}

// FindEMailByAddress returns every registered address equal to addr,
// ignoring case.
func (c *Cache) FindEMailByAddress(addr string) []*addritem.EMail {
	addr = strings.TrimSpace(addr)
	var out []*addritem.EMail
	for _, p := range c.AllPersons() {
		for _, e := range p.EMails() {
			if strings.EqualFold(e.Address, addr) {
				out = append(out, e)
			}
		}
	}
	return out
}

// Owner returns the person an address belongs to.
func (c *Cache) Owner(e *addritem.EMail) *addritem.Person {
	if e == nil {
		return nil
	}
	return c.FindPerson(e.ParentUID())
}

// ParentFolder returns the folder holding a person, group or folder.
func (c *Cache) ParentFolder(item addritem.Item) *addritem.Folder {
	if item == nil {
		return nil
	}
	return c.FindFolder(item.ParentUID())
}

func (c *Cache) contains(item addritem.Item) bool {
	if item == nil {
		return false
	}
	return c.items[item.UID()] == item
}

func (c *Cache) folderOrRoot(f *addritem.Folder) (*addritem.Folder, error) {
	if f == nil {
		return c.root, nil
	}
	if !c.contains(f) {
		return nil, fmt.Errorf("folder %q: %w", f.Name(), ErrNotFound)
	}
	return f, nil
}

// collect returns item and everything it owns, parents first.
func collect(item addritem.Item) []addritem.Item {
	out := []addritem.Item{item}
	switch v := item.(type) {
	case *addritem.Person:
		for _, e := range v.EMails() {
			out = append(out, e)
		}
	case *addritem.Folder:
		for _, p := range v.Persons() {
			out = append(out, collect(p)...)
		}
		for _, g := range v.Groups() {
			out = append(out, g)
		}
		for _, sub := range v.Folders() {
			out = append(out, collect(sub)...)
		}
	}
	return out
}

func setUID(item addritem.Item, uid string) {
	switch v := item.(type) {
	case *addritem.Person:
		v.SetUID(uid)
	case *addritem.EMail:
		v.SetUID(uid)
	case *addritem.Folder:
		v.SetUID(uid)
	case *addritem.Group:
		v.SetUID(uid)
	}
}

// claim registers a batch of new nodes. Preset UIDs must be unique both in
// the batch and in the cache; empty UIDs get fresh ids. Nothing is
// registered when any check fails.
func (c *Cache) claim(items []addritem.Item) error {
	seen := make(map[string]bool, len(items))
	for _, it := range items {
		uid := it.UID()
		if uid == "" {
			continue
		}
		if _, ok := c.items[uid]; ok || seen[uid] {
			return fmt.Errorf("%s %q: %w", it.Type(), uid, ErrDuplicateUID)
		}
		seen[uid] = true
	}
	for _, it := range items {
		if it.UID() == "" {
			setUID(it, c.NextID())
		} else {
			c.observeID(it.UID())
		}
		if p, ok := it.(*addritem.Person); ok {
			for _, a := range p.Attributes() {
				if a != nil {
					c.observeID(a.UID)
				}
			}
		}
		c.items[it.UID()] = it
	}
	return nil
}

// release removes every node under item from the arena and from every
// group that references one of its addresses.
func (c *Cache) release(item addritem.Item) {
	for _, it := range collect(item) {
		if e, ok := it.(*addritem.EMail); ok {
			c.detachFromGroups(e.UID())
		}
		delete(c.items, it.UID())
	}
}

func (c *Cache) detachFromGroups(uid string) {
	for _, g := range c.AllGroups() {
		g.RemoveMember(uid)
	}
}
