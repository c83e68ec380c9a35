package addrbook

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/sonroyaalmerol/addrindex/internal/addrcache"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

// On disk a book is flat: every person, group and folder is a direct child
// of <address-book>. Folders list the UIDs of what they hold; anything no
// folder claims belongs to the root folder.

type xmlBook struct {
	XMLName xml.Name    `xml:"address-book"`
	Name    string      `xml:"name,attr"`
	Persons []xmlPerson `xml:"person"`
	Groups  []xmlGroup  `xml:"group"`
	Folders []xmlFolder `xml:"folder"`
}

type xmlPerson struct {
	UID        string         `xml:"uid,attr"`
	FirstName  string         `xml:"first-name,attr"`
	LastName   string         `xml:"last-name,attr"`
	NickName   string         `xml:"nick-name,attr"`
	CN         string         `xml:"cn,attr"`
	ExternalID string         `xml:"external-id,attr,omitempty"`
	Addresses  []xmlAddress   `xml:"address-list>address"`
	Attributes []xmlAttribute `xml:"attribute-list>attribute"`
}

type xmlAddress struct {
	UID     string `xml:"uid,attr"`
	Alias   string `xml:"alias,attr"`
	EMail   string `xml:"email,attr"`
	Remarks string `xml:"remarks,attr"`
}

type xmlAttribute struct {
	UID   string `xml:"uid,attr"`
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

type xmlGroup struct {
	UID     string      `xml:"uid,attr"`
	Name    string      `xml:"name,attr"`
	Remarks string      `xml:"remarks,attr"`
	Members []xmlMember `xml:"member-list>member"`
}

type xmlMember struct {
	PID string `xml:"pid,attr"`
	EID string `xml:"eid,attr"`
}

type xmlFolder struct {
	UID     string       `xml:"uid,attr"`
	Name    string       `xml:"name,attr"`
	Remarks string       `xml:"remarks,attr"`
	Items   []xmlItemRef `xml:"item-list>item"`
}

type xmlItemRef struct {
	Type string `xml:"type,attr"`
	UID  string `xml:"uid,attr"`
}

// parseError aborts a parse and carries the code it should end with.
type parseError struct {
	code status.Code
	msg  string
}

func (e *parseError) Error() string { return fmt.Sprintf("%s: %s", e.code, e.msg) }

func badFormat(format string, args ...any) error {
	return &parseError{code: status.BadFormat, msg: fmt.Sprintf(format, args...)}
}

func codeOf(err error) status.Code {
	var pe *parseError
	if errors.As(err, &pe) {
		return pe.code
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return status.ReadError
	}
	return status.BadFormat
}

// parse reads a whole book into a fresh cache. hash collects every UID
// seen so far; a repeated UID stops the parse.
func parse(ctx context.Context, r io.Reader, hash map[string]addritem.Item) (*addrcache.Cache, string, status.Code) {
	var doc xmlBook
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, "", status.EOF
		}
		return nil, "", status.BadFormat
	}
	c, err := build(ctx, &doc, hash)
	if err != nil {
		return nil, "", codeOf(err)
	}
	return c, doc.Name, status.Success
}

func hashAdd(hash map[string]addritem.Item, item addritem.Item) error {
	uid := item.UID()
	if uid == "" {
		return nil
	}
	if _, ok := hash[uid]; ok {
		return badFormat("duplicate uid %q", uid)
	}
	hash[uid] = item
	return nil
}

func build(ctx context.Context, doc *xmlBook, hash map[string]addritem.Item) (*addrcache.Cache, error) {
	var persons []*addritem.Person
	// attributes are not cache items but share the id counter
	var attrIDs []string
	for _, xp := range doc.Persons {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		p := addritem.NewPerson(xp.CN)
		p.SetUID(xp.UID)
		p.FirstName = xp.FirstName
		p.LastName = xp.LastName
		p.NickName = xp.NickName
		p.ExternalID = xp.ExternalID
		if err := hashAdd(hash, p); err != nil {
			return nil, err
		}
		for _, xa := range xp.Addresses {
			e := addritem.NewEMail(xa.Alias, xa.EMail, xa.Remarks)
			e.SetUID(xa.UID)
			if err := hashAdd(hash, e); err != nil {
				return nil, err
			}
			p.AddEMail(e)
		}
		for _, xa := range xp.Attributes {
			p.AddAttribute(&addritem.UserAttribute{UID: xa.UID, Name: xa.Name, Value: xa.Value})
			attrIDs = append(attrIDs, xa.UID)
		}
		persons = append(persons, p)
	}

	var groups []*addritem.Group
	members := make(map[*addritem.Group][]string)
	for _, xg := range doc.Groups {
		g := addritem.NewGroup(xg.Name)
		g.SetUID(xg.UID)
		g.Remarks = xg.Remarks
		if err := hashAdd(hash, g); err != nil {
			return nil, err
		}
		for _, m := range xg.Members {
			members[g] = append(members[g], m.EID)
		}
		groups = append(groups, g)
	}

	var folders []*addritem.Folder
	for _, xf := range doc.Folders {
		f := addritem.NewFolder(xf.Name)
		f.SetUID(xf.UID)
		f.Remarks = xf.Remarks
		if err := hashAdd(hash, f); err != nil {
			return nil, err
		}
		folders = append(folders, f)
	}

	// place every item into the folder that lists it
	placed := make(map[addritem.Item]bool)
	groupHome := make(map[*addritem.Group]*addritem.Folder)
	for i, xf := range doc.Folders {
		f := folders[i]
		for _, ref := range xf.Items {
			item, ok := hash[ref.UID]
			if !ok || item == addritem.Item(f) {
				continue
			}
			if placed[item] {
				return nil, badFormat("item %q listed by more than one folder", ref.UID)
			}
			switch v := item.(type) {
			case *addritem.Person:
				f.AddPerson(v)
			case *addritem.Folder:
				f.AddFolder(v)
			case *addritem.Group:
				groupHome[v] = f
			default:
				continue
			}
			placed[item] = true
		}
	}

	c := addrcache.New()
	for uid := range hash {
		reserveUID(c, uid)
	}
	for _, uid := range attrIDs {
		reserveUID(c, uid)
	}
	for _, f := range folders {
		if placed[f] {
			continue
		}
		if err := c.AddFolder(nil, f); err != nil {
			return nil, badFormat("folder %q: %v", f.UID(), err)
		}
	}
	for _, f := range folders {
		if c.FindFolder(f.UID()) != f {
			// only reachable through a cycle of folders
			return nil, badFormat("folder %q is not reachable from the root", f.UID())
		}
	}
	for _, p := range persons {
		if placed[p] {
			continue
		}
		if err := c.AddPerson(nil, p); err != nil {
			return nil, badFormat("person %q: %v", p.UID(), err)
		}
	}
	for _, g := range groups {
		// members that do not name an address are dropped by the cache
		g.SetMembers(members[g])
		if err := c.AddGroup(groupHome[g], g); err != nil {
			return nil, badFormat("group %q: %v", g.UID(), err)
		}
	}
	c.SetModified(false)
	c.SetDataRead(true)
	return c, nil
}

func reserveUID(c *addrcache.Cache, uid string) {
	if n, err := strconv.ParseInt(uid, 10, 64); err == nil {
		c.ReserveThrough(n)
	}
}

func encode(name string, c *addrcache.Cache) ([]byte, error) {
	doc := xmlBook{Name: name}
	for _, p := range c.AllPersons() {
		xp := xmlPerson{
			UID:        p.UID(),
			FirstName:  p.FirstName,
			LastName:   p.LastName,
			NickName:   p.NickName,
			CN:         p.Name(),
			ExternalID: p.ExternalID,
		}
		for _, e := range p.EMails() {
			xp.Addresses = append(xp.Addresses, xmlAddress{
				UID:     e.UID(),
				Alias:   e.Alias(),
				EMail:   e.Address,
				Remarks: e.Remarks,
			})
		}
		for _, a := range p.Attributes() {
			xp.Attributes = append(xp.Attributes, xmlAttribute{UID: a.UID, Name: a.Name, Value: a.Value})
		}
		doc.Persons = append(doc.Persons, xp)
	}
	for _, g := range c.AllGroups() {
		xg := xmlGroup{UID: g.UID(), Name: g.Name(), Remarks: g.Remarks}
		for _, e := range c.GroupEMails(g) {
			xg.Members = append(xg.Members, xmlMember{PID: e.ParentUID(), EID: e.UID()})
		}
		doc.Groups = append(doc.Groups, xg)
	}
	for _, f := range c.AllFolders() {
		xf := xmlFolder{UID: f.UID(), Name: f.Name(), Remarks: f.Remarks}
		for _, sub := range f.Folders() {
			xf.Items = append(xf.Items, xmlItemRef{Type: "folder", UID: sub.UID()})
		}
		for _, p := range f.Persons() {
			xf.Items = append(xf.Items, xmlItemRef{Type: "person", UID: p.UID()})
		}
		for _, g := range f.Groups() {
			xf.Items = append(xf.Items, xmlItemRef{Type: "group", UID: g.UID()})
		}
		doc.Folders = append(doc.Folders, xf)
	}
	out, err := xml.MarshalIndent(&doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), append(out, '\n')...), nil
}
