package addrcache

import (
	"fmt"

	"github.com/sonroyaalmerol/addrindex/internal/addritem"
)

// AddFolder registers sub (and anything it already holds) under parent. A
// nil parent means the root folder.
func (c *Cache) AddFolder(parent, sub *addritem.Folder) error {
	if sub == nil {
		return ErrNilItem
	}
	parent, err := c.folderOrRoot(parent)
	if err != nil {
		return err
	}
	for _, it := range collect(sub) {
		if it == parent {
			return fmt.Errorf("folder %q contains its own parent: %w", sub.Name(), ErrDuplicateUID)
		}
	}
	if err := c.claim(collect(sub)); err != nil {
		return err
	}
	parent.AddFolder(sub)
	c.pruneGroups(sub)
	c.modified = true
	return nil
}

// AddPerson registers p and its addresses in folder.
func (c *Cache) AddPerson(folder *addritem.Folder, p *addritem.Person) error {
	if p == nil {
		return ErrNilItem
	}
	folder, err := c.folderOrRoot(folder)
	if err != nil {
		return err
	}
	if err := c.claim(collect(p)); err != nil {
		return err
	}
	folder.AddPerson(p)
	c.modified = true
	return nil
}

// AddEMail appends e to a registered person.
func (c *Cache) AddEMail(p *addritem.Person, e *addritem.EMail) error {
	if p == nil || e == nil {
		return ErrNilItem
	}
	if !c.contains(p) {
		return fmt.Errorf("person %q: %w", p.Name(), ErrNotFound)
	}
	if err := c.claim([]addritem.Item{e}); err != nil {
		return err
	}
	p.AddEMail(e)
	c.modified = true
	return nil
}

// UpdateEMails replaces p's address list with list. Addresses that are
// dropped leave every group; new ones are registered.
func (c *Cache) UpdateEMails(p *addritem.Person, list []*addritem.EMail) error {
	if p == nil {
		return ErrNilItem
	}
	if !c.contains(p) {
		return fmt.Errorf("person %q: %w", p.Name(), ErrNotFound)
	}
	old := make(map[string]*addritem.EMail)
	for _, e := range p.EMails() {
		old[e.UID()] = e
	}
	keep := make(map[*addritem.EMail]bool, len(list))
	replaced := make(map[string]bool)
	for _, e := range list {
		if e == nil {
			return ErrNilItem
		}
		if keep[e] {
			return fmt.Errorf("email %q listed twice: %w", e.Address, ErrDuplicateUID)
		}
		keep[e] = true
	}
	claimed := make(map[string]bool)
	var fresh []addritem.Item
	for _, e := range list {
		if c.contains(e) {
			if c.Owner(e) != p {
				return fmt.Errorf("email %q owned by another person: %w", e.Address, ErrDuplicateUID)
			}
			continue
		}
		if uid := e.UID(); uid != "" {
			// a copy of one of p's own addresses takes over its UID and
			// its group memberships
			prev, own := old[uid]
			_, taken := c.items[uid]
			switch {
			case own && !keep[prev] && !replaced[uid]:
				replaced[uid] = true
			case taken || replaced[uid] || claimed[uid]:
				return fmt.Errorf("email %q: %w", uid, ErrDuplicateUID)
			}
			claimed[uid] = true
		}
		fresh = append(fresh, e)
	}
	for _, e := range p.EMails() {
		switch {
		case keep[e]:
		case replaced[e.UID()]:
			delete(c.items, e.UID())
		default:
			c.release(e)
		}
	}
	if err := c.claim(fresh); err != nil {
		return err
	}
	p.SetEMails(list)
	c.modified = true
	return nil
}

// UpdateAttributes replaces p's attributes, giving new ones an id.
func (c *Cache) UpdateAttributes(p *addritem.Person, list []*addritem.UserAttribute) error {
	if p == nil {
		return ErrNilItem
	}
	if !c.contains(p) {
		return fmt.Errorf("person %q: %w", p.Name(), ErrNotFound)
	}
	for _, a := range list {
		if a == nil {
			return ErrNilItem
		}
	}
	for _, a := range list {
		if a.UID == "" {
			a.UID = c.NextID()
		} else {
			c.observeID(a.UID)
		}
	}
	p.SetAttributes(list)
	c.modified = true
	return nil
}

// AddGroup registers g in folder. Members that are not registered addresses
// are dropped.
func (c *Cache) AddGroup(folder *addritem.Folder, g *addritem.Group) error {
	if g == nil {
		return ErrNilItem
	}
	folder, err := c.folderOrRoot(folder)
	if err != nil {
		return err
	}
	if err := c.claim([]addritem.Item{g}); err != nil {
		return err
	}
	folder.AddGroup(g)
	c.pruneGroup(g)
	c.modified = true
	return nil
}

// AddGroupEMail makes e a member of g. Both must be registered.
func (c *Cache) AddGroupEMail(g *addritem.Group, e *addritem.EMail) error {
	if g == nil || e == nil {
		return ErrNilItem
	}
	if !c.contains(g) || !c.contains(e) {
		return ErrNotFound
	}
	if g.AddMember(e.UID()) {
		c.modified = true
	}
	return nil
}

// SetGroupEMails replaces g's membership with list.
func (c *Cache) SetGroupEMails(g *addritem.Group, list []*addritem.EMail) error {
	if g == nil {
		return ErrNilItem
	}
	if !c.contains(g) {
		return ErrNotFound
	}
	uids := make([]string, 0, len(list))
	for _, e := range list {
		if c.contains(e) {
			uids = append(uids, e.UID())
		}
	}
	g.SetMembers(uids)
	c.modified = true
	return nil
}

func (c *Cache) RemoveGroupEMail(g *addritem.Group, e *addritem.EMail) bool {
	if g == nil || e == nil {
		return false
	}
	if g.RemoveMember(e.UID()) {
		c.modified = true
		return true
	}
	return false
}

func (c *Cache) pruneGroup(g *addritem.Group) {
	var keep []string
	for _, uid := range g.Members() {
		if c.FindEMail(uid) != nil {
			keep = append(keep, uid)
		}
	}
	g.SetMembers(keep)
}

func (c *Cache) pruneGroups(f *addritem.Folder) {
	f.Walk(func(sub *addritem.Folder) {
		for _, g := range sub.Groups() {
			c.pruneGroup(g)
		}
	})
}

// RemovePerson takes p out of the tree. Its addresses leave every group
// that referenced them.
func (c *Cache) RemovePerson(p *addritem.Person) (*addritem.Person, error) {
	if p == nil {
		return nil, ErrNilItem
	}
	if !c.contains(p) {
		return nil, fmt.Errorf("person %q: %w", p.Name(), ErrNotFound)
	}
	if parent := c.ParentFolder(p); parent != nil {
		parent.RemovePerson(p)
	}
	c.release(p)
	c.modified = true
	return p, nil
}

// RemoveEMail takes e away from its person and from every group.
func (c *Cache) RemoveEMail(p *addritem.Person, e *addritem.EMail) (*addritem.EMail, error) {
	if p == nil || e == nil {
		return nil, ErrNilItem
	}
	if !c.contains(p) || !c.contains(e) || p.RemoveEMail(e) == nil {
		return nil, ErrNotFound
	}
	c.release(e)
	c.modified = true
	return e, nil
}

// RemoveGroup takes g out of the tree. Its member addresses are untouched.
func (c *Cache) RemoveGroup(g *addritem.Group) (*addritem.Group, error) {
	if g == nil {
		return nil, ErrNilItem
	}
	if !c.contains(g) {
		return nil, fmt.Errorf("group %q: %w", g.Name(), ErrNotFound)
	}
	if parent := c.ParentFolder(g); parent != nil {
		parent.RemoveGroup(g)
	}
	delete(c.items, g.UID())
	c.modified = true
	return g, nil
}

// RemoveFolder removes f and moves its contents to f's parent.
func (c *Cache) RemoveFolder(f *addritem.Folder) (*addritem.Folder, error) {
	parent, err := c.detachFolder(f)
	if err != nil {
		return nil, err
	}
	for _, sub := range f.Folders() {
		f.RemoveFolder(sub)
		parent.AddFolder(sub)
	}
	for _, p := range f.Persons() {
		f.RemovePerson(p)
		parent.AddPerson(p)
	}
	for _, g := range f.Groups() {
		f.RemoveGroup(g)
		parent.AddGroup(g)
	}
	delete(c.items, f.UID())
	c.modified = true
	return f, nil
}

// RemoveFolderDelete removes f together with everything below it.
func (c *Cache) RemoveFolderDelete(f *addritem.Folder) (*addritem.Folder, error) {
	if _, err := c.detachFolder(f); err != nil {
		return nil, err
	}
	c.release(f)
	c.modified = true
	return f, nil
}

func (c *Cache) detachFolder(f *addritem.Folder) (*addritem.Folder, error) {
	if f == nil {
		return nil, ErrNilItem
	}
	if f == c.root {
		return nil, ErrRootFolder
	}
	if !c.contains(f) {
		return nil, fmt.Errorf("folder %q: %w", f.Name(), ErrNotFound)
	}
	parent := c.ParentFolder(f)
	if parent == nil {
		parent = c.root
	}
	parent.RemoveFolder(f)
	return parent, nil
}

// MoveEMailBefore reorders e in front of target within p's list.
func (c *Cache) MoveEMailBefore(p *addritem.Person, e, target *addritem.EMail) bool {
	if p == nil || !c.contains(p) || !p.MoveEMailBefore(e, target) {
		return false
	}
	c.modified = true
	return true
}

// MoveEMailAfter reorders e behind target within p's list.
func (c *Cache) MoveEMailAfter(p *addritem.Person, e, target *addritem.EMail) bool {
	if p == nil || !c.contains(p) || !p.MoveEMailAfter(e, target) {
		return false
	}
	c.modified = true
	return true
}

// ListFolder returns the direct sub-folders of f (root when nil).
func (c *Cache) ListFolder(f *addritem.Folder) []*addritem.Folder {
	if f == nil {
		f = c.root
	}
	return f.Folders()
}

// ListPerson returns the persons directly in f (root when nil).
func (c *Cache) ListPerson(f *addritem.Folder) []*addritem.Person {
	if f == nil {
		f = c.root
	}
	return f.Persons()
}

func (c *Cache) ListGroup(f *addritem.Folder) []*addritem.Group {
	if f == nil {
		f = c.root
	}
	return f.Groups()
}

// AllFolders returns every folder below the root, depth first.
func (c *Cache) AllFolders() []*addritem.Folder {
	var out []*addritem.Folder
	c.root.Walk(func(f *addritem.Folder) {
		if f != c.root {
			out = append(out, f)
		}
	})
	return out
}

// AllPersons returns every person in the tree.
func (c *Cache) AllPersons() []*addritem.Person {
	var out []*addritem.Person
	c.root.Walk(func(f *addritem.Folder) {
		out = append(out, f.Persons()...)
	})
	return out
}

// AllGroups returns every group in the tree.
func (c *Cache) AllGroups() []*addritem.Group {
	var out []*addritem.Group
	c.root.Walk(func(f *addritem.Folder) {
		out = append(out, f.Groups()...)
	})
	return out
}

// GroupEMails resolves g's membership. UIDs that no longer name an address
// are skipped.
func (c *Cache) GroupEMails(g *addritem.Group) []*addritem.EMail {
	if g == nil {
		return nil
	}
	var out []*addritem.EMail
	for _, uid := range g.Members() {
		if e := c.FindEMail(uid); e != nil {
			out = append(out, e)
		}
	}
	return out
}

// AvailableEMails lists every address in the cache that is not yet a
// member of g, in tree order. A nil group yields every address.
func (c *Cache) AvailableEMails(g *addritem.Group) []*addritem.EMail {
	var out []*addritem.EMail
	for _, p := range c.AllPersons() {
		for _, e := range p.EMails() {
			if g != nil && g.Contains(e.UID()) {
				continue
			}
			out = append(out, e)
		}
	}
	return out
}
