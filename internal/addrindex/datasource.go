package addrindex

import (
	"context"

	"github.com/sonroyaalmerol/addrindex/internal/addrbook"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/directory"
	"github.com/sonroyaalmerol/addrindex/internal/jpilot"
	"github.com/sonroyaalmerol/addrindex/internal/status"
	"github.com/sonroyaalmerol/addrindex/pkg/vcard"
)

// DataSource binds one backend instance to the interface of its type.
// Every call is forwarded to the backend only while that interface is
// usable.
type DataSource struct {
	iface *Interface
	raw   Backend
}

func (ds *DataSource) Interface() *Interface { return ds.iface }

func (ds *DataSource) Type() Type { return ds.iface.Type }

// Raw returns the backend the handle wraps.
func (ds *DataSource) Raw() Backend { return ds.raw }

// Book returns the backend as a local address book, or nil.
func (ds *DataSource) Book() *addrbook.Book {
	b, _ := ds.raw.(*addrbook.Book)
	return b
}

func (ds *DataSource) VCard() *vcard.File {
	v, _ := ds.raw.(*vcard.File)
	return v
}

func (ds *DataSource) JPilot() *jpilot.File {
	j, _ := ds.raw.(*jpilot.File)
	return j
}

func (ds *DataSource) LDAP() *directory.Server {
	s, _ := ds.raw.(*directory.Server)
	return s
}

func (ds *DataSource) usable() bool {
	return ds != nil && ds.raw != nil && ds.iface.Usable()
}

func (ds *DataSource) Name() string {
	if !ds.usable() {
		return ""
	}
	return ds.raw.Name()
}

func (ds *DataSource) ModifyFlag() bool {
	return ds.usable() && ds.raw.ModifyFlag()
}

func (ds *DataSource) AccessFlag() bool {
	return ds.usable() && ds.raw.AccessFlag()
}

func (ds *DataSource) SetAccessFlag(v bool) {
	if ds.usable() {
		ds.raw.SetAccessFlag(v)
	}
}

func (ds *DataSource) ReadFlag() bool {
	return ds.usable() && ds.raw.ReadFlag()
}

func (ds *DataSource) Status() status.Code {
	if !ds.usable() {
		return status.BadArgs
	}
	return ds.raw.Status()
}

// ReadData asks the backend to load its data.
func (ds *DataSource) ReadData(ctx context.Context) status.Code {
	if !ds.usable() {
		return status.BadArgs
	}
	return ds.raw.ReadData(ctx)
}

// Load reads the backend only if it has not been read yet.
func (ds *DataSource) Load(ctx context.Context) status.Code {
	if !ds.usable() {
		return status.BadArgs
	}
	if ds.raw.ReadFlag() {
		return status.Success
	}
	return ds.raw.ReadData(ctx)
}

func (ds *DataSource) RootFolder() *addritem.Folder {
	if !ds.usable() {
		return nil
	}
	return ds.raw.RootFolder()
}

func (ds *DataSource) ListFolder(f *addritem.Folder) []*addritem.Folder {
	if !ds.usable() {
		return nil
	}
	return ds.raw.ListFolder(f)
}

func (ds *DataSource) ListPerson(f *addritem.Folder) []*addritem.Person {
	if !ds.usable() {
		return nil
	}
	return ds.raw.ListPerson(f)
}

func (ds *DataSource) AllPersons() []*addritem.Person {
	if !ds.usable() {
		return nil
	}
	return ds.raw.AllPersons()
}

func (ds *DataSource) AllGroups() []*addritem.Group {
	if !ds.usable() {
		return nil
	}
	return ds.raw.AllGroups()
}

// Save writes a dirty local book. Read-only sources report success without
// doing anything.
func (ds *DataSource) Save() status.Code {
	if !ds.usable() {
		return status.BadArgs
	}
	if b := ds.Book(); b != nil {
		return b.Save()
	}
	return status.Success
}

// Free releases whatever the backend holds in memory. The handle is
// unusable afterwards.
func (ds *DataSource) Free() {
	if b, ok := ds.raw.(*addrbook.Book); ok {
		b.Free()
	}
	ds.raw = nil
}
