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

// Type identifies a backend technology.
type Type int

const (
	TypeNone Type = iota
	TypeBook
	TypeVCard
	TypeJPilot
	TypeLDAP
)

func (t Type) String() string {
	switch t {
	case TypeBook:
		return "book"
	case TypeVCard:
		return "vcard"
	case TypeJPilot:
		return "jpilot"
	case TypeLDAP:
		return "ldap"
	}
	return "none"
}

// ParseType is the inverse of Type.String.
func ParseType(s string) Type {
	for _, t := range []Type{TypeBook, TypeVCard, TypeJPilot, TypeLDAP} {
		if t.String() == s {
			return t
		}
	}
	return TypeNone
}

// Backend is what every concrete data source provides. The index never
// calls it directly; calls go through the DataSource that owns it.
type Backend interface {
	Name() string
	Status() status.Code
	ReadFlag() bool
	ModifyFlag() bool
	AccessFlag() bool
	SetAccessFlag(bool)
	ReadData(ctx context.Context) status.Code
	RootFolder() *addritem.Folder
	ListFolder(*addritem.Folder) []*addritem.Folder
	ListPerson(*addritem.Folder) []*addritem.Person
	AllPersons() []*addritem.Person
	AllGroups() []*addritem.Group
}

var (
	_ Backend = (*addrbook.Book)(nil)
	_ Backend = (*vcard.File)(nil)
	_ Backend = (*jpilot.File)(nil)
	_ Backend = (*directory.Server)(nil)
)

// kindOf maps a concrete backend to its type. The set of backends is
// closed; anything else, including a nil pointer, is TypeNone.
func kindOf(b Backend) Type {
	switch v := b.(type) {
	case *addrbook.Book:
		if v != nil {
			return TypeBook
		}
	case *vcard.File:
		if v != nil {
			return TypeVCard
		}
	case *jpilot.File:
		if v != nil {
			return TypeJPilot
		}
	case *directory.Server:
		if v != nil {
			return TypeLDAP
		}
	}
	return TypeNone
}

// Interface describes one backend type and holds the data sources of that
// type.
type Interface struct {
	Type Type
	Name string

	// ReadOnly sources never accept mutations or saves.
	ReadOnly bool
	// HaveLibrary is false when the backend cannot work in this build or
	// environment.
	HaveLibrary bool
	// UseInterface lets the user switch a backend type off.
	UseInterface bool
	// ExternalQuery marks backends that are searched on demand rather than
	// browsed.
	ExternalQuery bool

	sources []*DataSource
}

func newInterface(t Type, name string, readOnly bool) *Interface {
	return &Interface{
		Type:         t,
		Name:         name,
		ReadOnly:     readOnly,
		HaveLibrary:  true,
		UseInterface: true,
	}
}

// Usable reports whether data sources of this type may be read.
func (i *Interface) Usable() bool {
	return i != nil && i.HaveLibrary && i.UseInterface
}

// DataSources returns the registered sources in order.
func (i *Interface) DataSources() []*DataSource {
	return append([]*DataSource(nil), i.sources...)
}

func (i *Interface) indexOf(ds *DataSource) int {
	for n, s := range i.sources {
		if s == ds {
			return n
		}
	}
	return -1
}
