// Package addrindex is the registry of every configured address data source.
//
// An Index owns one Interface per backend type. Each Interface holds the
// DataSources of its type, and each DataSource wraps one concrete backend
// (a local book, a vCard file, a J-Pilot database or an LDAP server). Code
// that only needs to browse contacts works through DataSource and never
// looks at the backend's concrete type.
package addrindex

import (
	"context"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sonroyaalmerol/addrindex/internal/addrbook"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/config"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

// MaxInterfaces bounds the number of backend types an index holds.
const MaxInterfaces = 8

// Names of the books created for a brand new index.
const (
	CommonBookName   = "Common addresses"
	PersonalBookName = "Personal addresses"
)

type Index struct {
	filePath string
	fileName string

	interfaces []*Interface

	dirty           bool
	needsConversion bool
	conversionError bool
	status          status.Code

	logger zerolog.Logger
}

// New creates an index with an interface for every known backend type and
// no data sources.
func New(logger zerolog.Logger) *Index {
	ix := &Index{
		fileName: config.DefaultIndexFile,
		logger:   logger,
	}
	ix.register(newInterface(TypeBook, "Address Book", false))
	ix.register(newInterface(TypeVCard, "vCard", true))
	ix.register(newInterface(TypeJPilot, "J-Pilot", true))
	ldap := newInterface(TypeLDAP, "LDAP", true)
	ldap.ExternalQuery = true
	ix.register(ldap)
	return ix
}

func (ix *Index) register(i *Interface) bool {
	if len(ix.interfaces) >= MaxInterfaces || ix.Interface(i.Type) != nil {
		return false
	}
	ix.interfaces = append(ix.interfaces, i)
	return true
}

// SetFilePath sets the directory holding the index and its books.
func (ix *Index) SetFilePath(path string) { ix.filePath = path }

func (ix *Index) FilePath() string { return ix.filePath }

func (ix *Index) SetFileName(name string) { ix.fileName = name }

func (ix *Index) FileName() string { return ix.fileName }

// FullPath is the index file location.
func (ix *Index) FullPath() string {
	return filepath.Join(ix.filePath, ix.fileName)
}

func (ix *Index) Dirty() bool { return ix.dirty }

// NeedsConversion is set when no index file was found on read, meaning the
// caller should create default books or import older settings.
func (ix *Index) NeedsConversion() bool { return ix.needsConversion }

func (ix *Index) ConversionError() bool { return ix.conversionError }

func (ix *Index) Status() status.Code { return ix.status }

// Interfaces returns the registered interfaces in order.
func (ix *Index) Interfaces() []*Interface {
	return append([]*Interface(nil), ix.interfaces...)
}

// Interface returns the interface for t, or nil. The same pointer comes
// back on every call.
func (ix *Index) Interface(t Type) *Interface {
	for _, i := range ix.interfaces {
		if i.Type == t {
			return i
		}
	}
	return nil
}

// AddDataSource wraps raw in a new handle and appends it to the interface
// of type t. It returns nil when no such interface exists or raw is not a
// backend of type t.
func (ix *Index) AddDataSource(t Type, raw Backend) *DataSource {
	iface := ix.Interface(t)
	if iface == nil || raw == nil || kindOf(raw) != t {
		return nil
	}
	ds := &DataSource{iface: iface, raw: raw}
	iface.sources = append(iface.sources, ds)
	ix.dirty = true
	return ds
}

// RemoveDataSource detaches ds from its interface and hands it back to the
// caller, who decides whether to Free it. It returns nil if ds is not
// registered.
func (ix *Index) RemoveDataSource(ds *DataSource) *DataSource {
	if ds == nil || ds.iface == nil {
		return nil
	}
	iface := ix.Interface(ds.iface.Type)
	if iface != ds.iface {
		return nil
	}
	n := iface.indexOf(ds)
	if n < 0 {
		return nil
	}
	iface.sources = append(iface.sources[:n], iface.sources[n+1:]...)
	ix.dirty = true
	return ds
}

// DataSources returns every registered source, interface by interface.
func (ix *Index) DataSources() []*DataSource {
	var out []*DataSource
	for _, i := range ix.interfaces {
		out = append(out, i.sources...)
	}
	return out
}

// FindDataSource returns the first source called name.
func (ix *Index) FindDataSource(name string) *DataSource {
	for _, ds := range ix.DataSources() {
		if ds.raw != nil && ds.raw.Name() == name {
			return ds
		}
	}
	return nil
}

// Free drops every data source and the trees they hold.
func (ix *Index) Free() {
	for _, i := range ix.interfaces {
		for _, ds := range i.sources {
			ds.Free()
		}
		i.sources = nil
	}
	ix.dirty = false
}

// SaveAllBooks saves every local book with unsaved changes. It returns the
// first failure but still tries every book.
func (ix *Index) SaveAllBooks() status.Code {
	result := status.Success
	iface := ix.Interface(TypeBook)
	if iface == nil {
		return result
	}
	for _, ds := range iface.sources {
		if !ds.ModifyFlag() {
			continue
		}
		if code := ds.Save(); code != status.Success {
			ix.logger.Error().Str("book", ds.Name()).Str("status", code.String()).Msg("cannot save address book")
			if result == status.Success {
				result = code
			}
		}
	}
	return result
}

// CreateDefaultBooks adds the two books a fresh index starts with and
// writes their (empty) files next to the index.
func (ix *Index) CreateDefaultBooks() status.Code {
	if ix.filePath != "" {
		if err := os.MkdirAll(ix.filePath, 0o755); err != nil {
			ix.conversionError = true
			return status.NoPath
		}
	}
	for _, name := range []string{CommonBookName, PersonalBookName} {
		b := addrbook.New(ix.logger)
		b.SetName(name)
		b.SetPath(ix.filePath)
		file, err := b.GuessNextFile()
		if err != nil {
			ix.conversionError = true
			return status.OpenDirectory
		}
		b.SetFile(file)
		b.Cache().SetModified(true)
		if code := b.Save(); code != status.Success {
			ix.conversionError = true
			return code
		}
		b.Cache().SetDataRead(true)
		ix.AddDataSource(TypeBook, b)
	}
	ix.needsConversion = false
	return status.Success
}

// AddContact adds a person with one address to the local book called
// dsName, reading the book first if needed. It is how senders are
// registered automatically.
func (ix *Index) AddContact(ctx context.Context, dsName, name, address, remarks string) (*addritem.Person, status.Code) {
	ds := ix.FindDataSource(dsName)
	if ds == nil || ds.Book() == nil {
		return nil, status.BadArgs
	}
	if code := ds.Load(ctx); code != status.Success {
		return nil, code
	}
	p := ds.Book().AddContact(nil, name, address, remarks)
	if p == nil {
		return nil, status.BadArgs
	}
	return p, status.Success
}

// ReadResult pairs a data source with the outcome of reading it.
type ReadResult struct {
	DataSource *DataSource
	Status     status.Code
}

// ReadAll loads every usable source that has not been read yet. Sources
// are read concurrently, each by exactly one goroutine, so no cache ever
// has more than one writer.
func (ix *Index) ReadAll(ctx context.Context) []ReadResult {
	sources := ix.DataSources()
	results := make([]ReadResult, len(sources))
	var g errgroup.Group
	for n, ds := range sources {
		results[n].DataSource = ds
		if !ds.usable() {
			results[n].Status = status.BadArgs
			continue
		}
		n, ds := n, ds
		g.Go(func() error {
			results[n].Status = ds.Load(ctx)
			return nil
		})
	}
	_ = g.Wait()
	for _, r := range results {
		if r.Status != status.Success && r.Status != status.LDAPNoEntries {
			ix.logger.Warn().Str("source", r.DataSource.Name()).Str("type", r.DataSource.Type().String()).
				Str("status", r.Status.String()).Msg("data source not read")
		}
	}
	return results
}
