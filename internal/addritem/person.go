package addritem

import "strings"

// EMail is one address belonging to exactly one person. The object name is
// the alias.
type EMail struct {
	Object
	Address string
	Remarks string
}

func NewEMail(alias, address, remarks string) *EMail {
	e := &EMail{
		Object:  newObject(TypeEMail),
		Address: strings.TrimSpace(address),
		Remarks: remarks,
	}
	e.SetName(alias)
	return e
}

// Alias is the e-mail's display name.
func (e *EMail) Alias() string { return e.Name() }

func (e *EMail) SetAlias(alias string) { e.SetName(alias) }

// Copy returns a detached copy carrying the same UID.
func (e *EMail) Copy() *EMail {
	c := *e
	c.parent = ""
	return &c
}

// UserAttribute is a free-form name/value pair stored on a person.
type UserAttribute struct {
	UID   string
	Name  string
	Value string
}

func (a *UserAttribute) Copy() *UserAttribute {
	c := *a
	return &c
}

// Person is a contact. The order of its addresses is significant.
type Person struct {
	Object
	FirstName  string
	LastName   string
	NickName   string
	ExternalID string
	Opened     bool

	emails []*EMail
	attrs  []*UserAttribute
}

func NewPerson(name string) *Person {
	p := &Person{Object: newObject(TypePerson)}
	p.SetName(name)
	return p
}

// SetUID changes the person's UID and relinks its addresses.
func (p *Person) SetUID(uid string) {
	p.Object.SetUID(uid)
	for _, e := range p.emails {
		e.SetParentUID(uid)
	}
}

// EMails returns the addresses in order. The slice is a copy.
func (p *Person) EMails() []*EMail {
	out := make([]*EMail, len(p.emails))
	copy(out, p.emails)
	return out
}

func (p *Person) AddEMail(e *EMail) {
	if e == nil {
		return
	}
	e.SetParentUID(p.UID())
	p.emails = append(p.emails, e)
}

// RemoveEMail detaches e and returns it, or nil if e is not one of p's addresses.
func (p *Person) RemoveEMail(e *EMail) *EMail {
	i := indexOf(p.emails, e)
	if i < 0 {
		return nil
	}
	p.emails = removeAt(p.emails, i)
	e.SetParentUID("")
	return e
}

// SetEMails replaces the address list and returns the old one.
func (p *Person) SetEMails(list []*EMail) []*EMail {
	old := p.emails
	for _, e := range old {
		e.SetParentUID("")
	}
	p.emails = nil
	for _, e := range list {
		p.AddEMail(e)
	}
	return old
}

func (p *Person) FindEMail(uid string) *EMail {
	for _, e := range p.emails {
		if e.UID() == uid {
			return e
		}
	}
	return nil
}

// MoveEMailBefore moves e so that it directly precedes target. Both must
// belong to p. Ownership never changes, only order.
func (p *Person) MoveEMailBefore(e, target *EMail) bool {
	return p.moveEMail(e, target, 0)
}

// MoveEMailAfter moves e so that it directly follows target.
func (p *Person) MoveEMailAfter(e, target *EMail) bool {
	return p.moveEMail(e, target, 1)
}

func (p *Person) moveEMail(e, target *EMail, offset int) bool {
	if e == nil || target == nil || e == target {
		return false
	}
	from := indexOf(p.emails, e)
	if from < 0 || indexOf(p.emails, target) < 0 {
		return false
	}
	p.emails = removeAt(p.emails, from)
	to := indexOf(p.emails, target) + offset
	p.emails = insertAt(p.emails, to, e)
	return true
}

func (p *Person) Attributes() []*UserAttribute {
	out := make([]*UserAttribute, len(p.attrs))
	copy(out, p.attrs)
	return out
}

func (p *Person) AddAttribute(a *UserAttribute) {
	if a == nil {
		return
	}
	p.attrs = append(p.attrs, a)
}

func (p *Person) RemoveAttribute(a *UserAttribute) *UserAttribute {
	i := indexOf(p.attrs, a)
	if i < 0 {
		return nil
	}
	p.attrs = removeAt(p.attrs, i)
	return a
}

// SetAttributes replaces the attribute list and returns the old one.
func (p *Person) SetAttributes(list []*UserAttribute) []*UserAttribute {
	old := p.attrs
	p.attrs = append([]*UserAttribute(nil), list...)
	return old
}

// Attribute returns the value of the first attribute called name.
func (p *Person) Attribute(name string) string {
	for _, a := range p.attrs {
		if strings.EqualFold(a.Name, name) {
			return a.Value
		}
	}
	return ""
}
