package addrbook

import (
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
)

// AddContact creates a person holding a single address in folder (root
// when nil). This is the entry point used to auto-register senders.
func (b *Book) AddContact(folder *addritem.Folder, name, address, remarks string) *addritem.Person {
	p := addritem.NewPerson(name)
	p.AddEMail(addritem.NewEMail("", address, remarks))
	if err := b.cache.AddPerson(folder, p); err != nil {
		b.logger.Debug().Err(err).Str("book", b.name).Msg("add contact failed")
		return nil
	}
	return p
}

// AddPerson registers an already built person in folder.
func (b *Book) AddPerson(folder *addritem.Folder, p *addritem.Person) error {
	return b.cache.AddPerson(folder, p)
}

// AddNewFolder creates a folder called name under parent (root when nil).
func (b *Book) AddNewFolder(parent *addritem.Folder, name string) *addritem.Folder {
	f := addritem.NewFolder(name)
	if err := b.cache.AddFolder(parent, f); err != nil {
		b.logger.Debug().Err(err).Str("book", b.name).Msg("add folder failed")
		return nil
	}
	return f
}

// AddGroup creates a group in folder holding the given addresses.
func (b *Book) AddGroup(folder *addritem.Folder, name string, emails []*addritem.EMail) *addritem.Group {
	g := addritem.NewGroup(name)
	if err := b.cache.AddGroup(folder, g); err != nil {
		b.logger.Debug().Err(err).Str("book", b.name).Msg("add group failed")
		return nil
	}
	for _, e := range emails {
		_ = b.cache.AddGroupEMail(g, e)
	}
	return g
}

// UpdateGroup replaces a group's membership.
func (b *Book) UpdateGroup(g *addritem.Group, emails []*addritem.EMail) error {
	return b.cache.SetGroupEMails(g, emails)
}

// UpdateAddress replaces a person's address list. Addresses that disappear
// are removed from every group.
func (b *Book) UpdateAddress(p *addritem.Person, emails []*addritem.EMail) error {
	return b.cache.UpdateEMails(p, emails)
}

// UpdateAttributes replaces a person's attribute list.
func (b *Book) UpdateAttributes(p *addritem.Person, attrs []*addritem.UserAttribute) error {
	return b.cache.UpdateAttributes(p, attrs)
}

// AddEMail appends an address to p.
func (b *Book) AddEMail(p *addritem.Person, e *addritem.EMail) error {
	return b.cache.AddEMail(p, e)
}

func (b *Book) RemovePerson(p *addritem.Person) *addritem.Person {
	out, err := b.cache.RemovePerson(p)
	if err != nil {
		return nil
	}
	return out
}

func (b *Book) RemoveGroup(g *addritem.Group) *addritem.Group {
	out, err := b.cache.RemoveGroup(g)
	if err != nil {
		return nil
	}
	return out
}

func (b *Book) RemoveEMail(p *addritem.Person, e *addritem.EMail) *addritem.EMail {
	out, err := b.cache.RemoveEMail(p, e)
	if err != nil {
		return nil
	}
	return out
}

// RemoveFolder removes f, keeping its contents in f's parent.
func (b *Book) RemoveFolder(f *addritem.Folder) *addritem.Folder {
	out, err := b.cache.RemoveFolder(f)
	if err != nil {
		return nil
	}
	return out
}

// RemoveFolderDelete removes f and everything in it.
func (b *Book) RemoveFolderDelete(f *addritem.Folder) *addritem.Folder {
	out, err := b.cache.RemoveFolderDelete(f)
	if err != nil {
		return nil
	}
	return out
}

func (b *Book) MoveEMailBefore(p *addritem.Person, e, target *addritem.EMail) bool {
	return b.cache.MoveEMailBefore(p, e, target)
}

func (b *Book) MoveEMailAfter(p *addritem.Person, e, target *addritem.EMail) bool {
	return b.cache.MoveEMailAfter(p, e, target)
}

// GroupEMails resolves a group's members.
func (b *Book) GroupEMails(g *addritem.Group) []*addritem.EMail {
	return b.cache.GroupEMails(g)
}

// AvailableEMails lists the addresses that could still join g.
func (b *Book) AvailableEMails(g *addritem.Group) []*addritem.EMail {
	return b.cache.AvailableEMails(g)
}
