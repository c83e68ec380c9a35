// Package jpilot reads Palm address databases (AddressDB.pdb) as exported
// by J-Pilot. The data source is read-only.
package jpilot

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/addrindex/internal/addrcache"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

const (
	dbType    = "DATA"
	dbCreator = "addr"

	// MaxCustomLabels is the number of custom fields a Palm record has.
	MaxCustomLabels = 4
)

// Text fields copied onto a person as user attributes.
var attrFields = map[int]string{
	fieldCompany: "company",
	fieldAddress: "address",
	fieldCity:    "city",
	fieldState:   "state",
	fieldZip:     "zip",
	fieldCountry: "country",
	fieldTitle:   "title",
	fieldNote:    "note",
}

type File struct {
	name         string
	path         string
	customLabels []string
	cache        *addrcache.Cache
	status       status.Code
	modTime      time.Time
	logger       zerolog.Logger
}

func New(logger zerolog.Logger) *File {
	return &File{cache: addrcache.New(), logger: logger}
}

func (j *File) Name() string { return j.name }

func (j *File) SetName(name string) {
	j.name = name
	j.cache.SetName(name)
}

func (j *File) Path() string { return j.path }

func (j *File) SetPath(path string) {
	if path != j.path {
		j.cache.SetDataRead(false)
	}
	j.path = path
}

// CustomLabels returns the custom field labels whose values are read as
// e-mail addresses.
func (j *File) CustomLabels() []string {
	return append([]string(nil), j.customLabels...)
}

// AddCustomLabel marks a custom field, by its label, as holding e-mail
// addresses. At most MaxCustomLabels are kept.
func (j *File) AddCustomLabel(label string) bool {
	label = strings.TrimSpace(label)
	if label == "" || len(j.customLabels) >= MaxCustomLabels {
		return false
	}
	for _, l := range j.customLabels {
		if strings.EqualFold(l, label) {
			return false
		}
	}
	j.customLabels = append(j.customLabels, label)
	j.cache.SetDataRead(false)
	return true
}

func (j *File) ClearCustomLabels() {
	j.customLabels = nil
	j.cache.SetDataRead(false)
}

func (j *File) Status() status.Code { return j.status }

func (j *File) ReadFlag() bool { return j.cache.DataRead() }

func (j *File) ModifyFlag() bool { return false }

func (j *File) AccessFlag() bool { return j.cache.AccessFlag() }

func (j *File) SetAccessFlag(v bool) { j.cache.SetAccessFlag(v) }

func (j *File) RootFolder() *addritem.Folder { return j.cache.Root() }

func (j *File) ListFolder(f *addritem.Folder) []*addritem.Folder { return j.cache.ListFolder(f) }

func (j *File) ListPerson(f *addritem.Folder) []*addritem.Person { return j.cache.ListPerson(f) }

func (j *File) AllPersons() []*addritem.Person { return j.cache.AllPersons() }

func (j *File) AllGroups() []*addritem.Group { return j.cache.AllGroups() }

// Probe checks that path is a Palm address database.
func Probe(path string) status.Code {
	if path == "" {
		return status.NoFile
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return status.OpenFile
	}
	db, err := parsePDB(raw)
	if err != nil {
		return status.BadFormat
	}
	if db.Header.Type != dbType || db.Header.Creator != dbCreator {
		return status.BadFormat
	}
	return status.Success
}

// ReadData loads the database unless it was already read and the file has
// not changed since.
func (j *File) ReadData(ctx context.Context) status.Code {
	j.status = j.read(ctx)
	return j.status
}

func (j *File) read(ctx context.Context) status.Code {
	if j.path == "" {
		return status.NoFile
	}
	fi, err := os.Stat(j.path)
	if err != nil {
		return status.OpenFile
	}
	if j.cache.DataRead() && fi.ModTime().Equal(j.modTime) {
		return status.Success
	}
	raw, err := os.ReadFile(j.path)
	if err != nil {
		return status.ReadError
	}
	db, err := parsePDB(raw)
	if err != nil {
		j.logger.Warn().Err(err).Str("file", j.path).Msg("not a palm database")
		return status.BadFormat
	}
	if db.Header.Type != dbType || db.Header.Creator != dbCreator {
		j.logger.Warn().Str("file", j.path).Str("type", db.Header.Type).Str("creator", db.Header.Creator).Msg("not an address database")
		return status.BadFormat
	}
	info, err := parseAppInfo(db.AppInfo)
	if err != nil {
		return status.BadFormat
	}

	c := addrcache.New()
	c.ReserveThrough(j.cache.LastID())
	c.SetName(j.name)
	folders := make(map[int]*addritem.Folder)
	for i, rec := range db.Records {
		if err := ctx.Err(); err != nil {
			return status.ReadError
		}
		if rec.Deleted() {
			continue
		}
		addr, err := parseAddress(rec.Data)
		if err != nil {
			j.logger.Debug().Err(err).Int("record", i).Msg("skipping record")
			continue
		}
		folder := categoryFolder(c, folders, &info, rec.Category())
		if err := c.AddPerson(folder, j.toPerson(&info, addr, rec.UniqueID)); err != nil {
			return status.BadFormat
		}
	}
	c.SetModified(false)
	c.SetDataRead(true)
	c.SetAccessFlag(j.cache.AccessFlag())
	j.cache = c
	j.modTime = fi.ModTime()
	j.logger.Debug().Str("file", j.path).Int("records", len(db.Records)).Msg("palm database read")
	return status.Success
}

// categoryFolder returns the folder for category cat, creating it the first
// time. Unfiled records (category 0) stay in the root folder.
func categoryFolder(c *addrcache.Cache, folders map[int]*addritem.Folder, info *appInfo, cat int) *addritem.Folder {
	if cat == 0 || info.Categories[cat] == "" {
		return nil
	}
	if f, ok := folders[cat]; ok {
		return f
	}
	f := addritem.NewFolder(info.Categories[cat])
	if err := c.AddFolder(nil, f); err != nil {
		return nil
	}
	folders[cat] = f
	return f
}

func (j *File) toPerson(info *appInfo, a address, uniqueID uint32) *addritem.Person {
	first := a.Fields[fieldFirstName]
	last := a.Fields[fieldLastName]
	name := strings.TrimSpace(first + " " + last)
	if name == "" {
		name = a.Fields[fieldCompany]
	}
	p := addritem.NewPerson(name)
	p.FirstName = first
	p.LastName = last
	p.ExternalID = formatUniqueID(uniqueID)

	for i := 0; i < 5; i++ {
		val := strings.TrimSpace(a.Fields[fieldPhone1+i])
		if val == "" {
			continue
		}
		if a.PhoneLabels[i] == phoneLabelEMail {
			p.AddEMail(addritem.NewEMail("", val, ""))
			continue
		}
		p.AddAttribute(&addritem.UserAttribute{Name: phoneLabelName(info, a.PhoneLabels[i]), Value: val})
	}
	for i := 0; i < MaxCustomLabels; i++ {
		val := strings.TrimSpace(a.Fields[fieldCustom1+i])
		if val == "" {
			continue
		}
		label := info.Labels[fieldCustom1+i]
		if label == "" {
			label = fmt.Sprintf("custom%d", i+1)
		}
		if j.isCustomEMail(label) {
			for _, addr := range strings.FieldsFunc(val, func(r rune) bool { return r == ',' || r == ';' || r == ' ' }) {
				p.AddEMail(addritem.NewEMail(label, addr, ""))
			}
			continue
		}
		p.AddAttribute(&addritem.UserAttribute{Name: label, Value: val})
	}
	for idx := fieldCompany; idx < fieldCount; idx++ {
		name, ok := attrFields[idx]
		if !ok || a.Fields[idx] == "" {
			continue
		}
		p.AddAttribute(&addritem.UserAttribute{Name: name, Value: a.Fields[idx]})
	}
	return p
}

func (j *File) isCustomEMail(label string) bool {
	for _, l := range j.customLabels {
		if strings.EqualFold(l, label) {
			return true
		}
	}
	return false
}

// phoneLabelName maps a phone label index to its name. The app block keeps
// the first five phone labels at positions 3-7 and the last three at 19-21.
func phoneLabelName(info *appInfo, idx int) string {
	var name string
	switch {
	case idx >= 0 && idx < 5:
		name = info.Labels[fieldPhone1+idx]
	case idx >= 5 && idx < 8:
		name = info.Labels[19+idx-5]
	}
	if name == "" {
		return "phone"
	}
	return strings.ToLower(name)
}

func formatUniqueID(id uint32) string {
	return fmt.Sprintf("%06x", id)
}
