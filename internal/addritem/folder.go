package addritem

// Folder owns sub-folders, persons and groups. A root folder has no parent.
type Folder struct {
	Object
	Remarks string

	root    bool
	folders []*Folder
	persons []*Person
	groups  []*Group
}

func NewFolder(name string) *Folder {
	f := &Folder{Object: newObject(TypeFolder)}
	f.SetName(name)
	return f
}

func NewRootFolder() *Folder {
	f := NewFolder("")
	f.root = true
	return f
}

func (f *Folder) IsRoot() bool { return f.root }

// SetUID changes the folder's UID and relinks its direct children.
func (f *Folder) SetUID(uid string) {
	f.Object.SetUID(uid)
	for _, c := range f.folders {
		c.SetParentUID(uid)
	}
	for _, p := range f.persons {
		p.SetParentUID(uid)
	}
	for _, g := range f.groups {
		g.SetParentUID(uid)
	}
}

func (f *Folder) Folders() []*Folder {
	out := make([]*Folder, len(f.folders))
	copy(out, f.folders)
	return out
}

func (f *Folder) Persons() []*Person {
	out := make([]*Person, len(f.persons))
	copy(out, f.persons)
	return out
}

func (f *Folder) Groups() []*Group {
	out := make([]*Group, len(f.groups))
	copy(out, f.groups)
	return out
}

func (f *Folder) AddFolder(c *Folder) {
	if c == nil || c == f {
		return
	}
	c.SetParentUID(f.UID())
	f.folders = append(f.folders, c)
}

func (f *Folder) AddPerson(p *Person) {
	if p == nil {
		return
	}
	p.SetParentUID(f.UID())
	f.persons = append(f.persons, p)
}

func (f *Folder) AddGroup(g *Group) {
	if g == nil {
		return
	}
	g.SetParentUID(f.UID())
	f.groups = append(f.groups, g)
}

func (f *Folder) RemoveFolder(c *Folder) bool {
	i := indexOf(f.folders, c)
	if i < 0 {
		return false
	}
	f.folders = removeAt(f.folders, i)
	c.SetParentUID("")
	return true
}

func (f *Folder) RemovePerson(p *Person) bool {
	i := indexOf(f.persons, p)
	if i < 0 {
		return false
	}
	f.persons = removeAt(f.persons, i)
	p.SetParentUID("")
	return true
}

func (f *Folder) RemoveGroup(g *Group) bool {
	i := indexOf(f.groups, g)
	if i < 0 {
		return false
	}
	f.groups = removeAt(f.groups, i)
	g.SetParentUID("")
	return true
}

// Walk visits f and every folder below it, depth first.
func (f *Folder) Walk(fn func(*Folder)) {
	fn(f)
	for _, c := range f.folders {
		c.Walk(fn)
	}
}

// Group is a named subset of e-mail addresses. It references addresses by
// UID and never owns them.
type Group struct {
	Object
	Remarks string

	members []string
}

func NewGroup(name string) *Group {
	g := &Group{Object: newObject(TypeGroup)}
	g.SetName(name)
	return g
}

// Members returns the member e-mail UIDs in order.
func (g *Group) Members() []string {
	return append([]string(nil), g.members...)
}

func (g *Group) Contains(uid string) bool {
	return indexOf(g.members, uid) >= 0
}

// AddMember appends uid unless it is already a member.
func (g *Group) AddMember(uid string) bool {
	if uid == "" || g.Contains(uid) {
		return false
	}
	g.members = append(g.members, uid)
	return true
}

func (g *Group) RemoveMember(uid string) bool {
	i := indexOf(g.members, uid)
	if i < 0 {
		return false
	}
	g.members = removeAt(g.members, i)
	return true
}

// SetMembers replaces the membership, dropping empty and repeated UIDs.
func (g *Group) SetMembers(uids []string) {
	g.members = nil
	for _, uid := range uids {
		g.AddMember(uid)
	}
}
