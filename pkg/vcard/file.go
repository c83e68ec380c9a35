package vcard

import (
	"context"
	"os"
	"strings"
	"time"

	govcard "github.com/emersion/go-vcard"
	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/addrindex/internal/addrcache"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

// attributeFields are copied onto a person as user attributes.
var attributeFields = []string{
	govcard.FieldTelephone,
	govcard.FieldOrganization,
	govcard.FieldTitle,
	govcard.FieldURL,
	govcard.FieldNote,
}

// File is a read-only data source backed by one vCard file.
type File struct {
	name    string
	path    string
	cache   *addrcache.Cache
	status  status.Code
	modTime time.Time
	logger  zerolog.Logger
}

func NewFile(logger zerolog.Logger) *File {
	return &File{cache: addrcache.New(), logger: logger}
}

func (v *File) Name() string { return v.name }

func (v *File) SetName(name string) {
	v.name = name
	v.cache.SetName(name)
}

func (v *File) Path() string { return v.path }

func (v *File) SetPath(path string) {
	if path != v.path {
		v.cache.SetDataRead(false)
	}
	v.path = path
}

func (v *File) Status() status.Code { return v.status }

func (v *File) ReadFlag() bool { return v.cache.DataRead() }

// ModifyFlag is always false: vCard sources are never written.
func (v *File) ModifyFlag() bool { return false }

func (v *File) AccessFlag() bool { return v.cache.AccessFlag() }

func (v *File) SetAccessFlag(b bool) { v.cache.SetAccessFlag(b) }

func (v *File) RootFolder() *addritem.Folder { return v.cache.Root() }

func (v *File) ListFolder(f *addritem.Folder) []*addritem.Folder { return v.cache.ListFolder(f) }

func (v *File) ListPerson(f *addritem.Folder) []*addritem.Person { return v.cache.ListPerson(f) }

func (v *File) AllPersons() []*addritem.Person { return v.cache.AllPersons() }

func (v *File) AllGroups() []*addritem.Group { return v.cache.AllGroups() }

// ReadData parses the file unless it was already read and has not changed
// on disk since.
func (v *File) ReadData(ctx context.Context) status.Code {
	v.status = v.read(ctx)
	return v.status
}

func (v *File) read(ctx context.Context) status.Code {
	if v.path == "" {
		return status.NoFile
	}
	fi, err := os.Stat(v.path)
	if err != nil {
		return status.OpenFile
	}
	if v.cache.DataRead() && fi.ModTime().Equal(v.modTime) {
		return status.Success
	}
	raw, err := os.ReadFile(v.path)
	if err != nil {
		return status.OpenFile
	}
	cards, err := parseAll(raw)
	if err != nil {
		v.logger.Warn().Err(err).Str("file", v.path).Msg("vcard file not loaded")
		return status.BadFormat
	}

	c := addrcache.New()
	c.ReserveThrough(v.cache.LastID())
	c.SetName(v.name)
	for _, card := range cards {
		if err := ctx.Err(); err != nil {
			return status.ReadError
		}
		if err := normalizeCard(card); err != nil {
			v.logger.Debug().Err(err).Str("file", v.path).Msg("skipping card")
			continue
		}
		if err := c.AddPerson(nil, toPerson(card)); err != nil {
			return status.BadFormat
		}
	}
	c.SetModified(false)
	c.SetDataRead(true)
	c.SetAccessFlag(v.cache.AccessFlag())
	v.cache = c
	v.modTime = fi.ModTime()
	return status.Success
}

func toPerson(card govcard.Card) *addritem.Person {
	p := addritem.NewPerson(card.Value(govcard.FieldFormattedName))
	if n := card.Name(); n != nil {
		p.FirstName = n.GivenName
		p.LastName = n.FamilyName
	}
	p.NickName = card.Value(govcard.FieldNickname)
	p.ExternalID = card.Value(govcard.FieldUID)
	for _, f := range card[govcard.FieldEmail] {
		if strings.TrimSpace(f.Value) == "" {
			continue
		}
		remarks := strings.Join(f.Params[govcard.ParamType], ",")
		p.AddEMail(addritem.NewEMail("", f.Value, remarks))
	}
	for _, name := range attributeFields {
		for _, f := range card[name] {
			if strings.TrimSpace(f.Value) == "" {
				continue
			}
			p.AddAttribute(&addritem.UserAttribute{Name: name, Value: f.Value})
		}
	}
	return p
}

// FromPerson renders a person of any data source as a vCard 3.0 card.
func FromPerson(p *addritem.Person) govcard.Card {
	card := make(govcard.Card)
	card.SetValue(govcard.FieldVersion, "3.0")
	fn := p.Name()
	if fn == "" {
		fn = strings.TrimSpace(p.FirstName + " " + p.LastName)
	}
	card.SetValue(govcard.FieldFormattedName, fn)
	if p.FirstName != "" || p.LastName != "" {
		card.SetName(&govcard.Name{GivenName: p.FirstName, FamilyName: p.LastName})
	}
	if p.NickName != "" {
		card.SetValue(govcard.FieldNickname, p.NickName)
	}
	if p.ExternalID != "" {
		card.SetValue(govcard.FieldUID, p.ExternalID)
	}
	for _, e := range p.EMails() {
		f := &govcard.Field{Value: e.Address, Params: make(govcard.Params)}
		if e.Remarks != "" {
			f.Params[govcard.ParamType] = strings.Split(e.Remarks, ",")
		}
		card.Add(govcard.FieldEmail, f)
	}
	for _, a := range p.Attributes() {
		if a.Name == "" || strings.ContainsAny(a.Name, " :;") {
			continue
		}
		card.AddValue(strings.ToUpper(a.Name), a.Value)
	}
	return card
}
