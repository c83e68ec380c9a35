// Package addrbook implements the local, file backed address book.
//
// A Book is created empty, named and pointed at a file, then filled by
// ReadData. Every mutation marks the book dirty; Save writes it back only
// when something changed.
package addrbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/sonroyaalmerol/addrindex/internal/addrcache"
	"github.com/sonroyaalmerol/addrindex/internal/addritem"
	"github.com/sonroyaalmerol/addrindex/internal/status"
)

const (
	filePrefix = "addrbook-"
	fileSuffix = ".xml"
	fileDigits = 6
)

var fileNameRe = regexp.MustCompile(`^` + filePrefix + `(\d{` + strconv.Itoa(fileDigits) + `})` + regexp.QuoteMeta(fileSuffix) + `$`)

// FileName returns the book file name for sequence number n.
func FileName(n int) string {
	return fmt.Sprintf("%s%0*d%s", filePrefix, fileDigits, n, fileSuffix)
}

type Book struct {
	name     string
	path     string
	fileName string

	cache    *addrcache.Cache
	tempHash map[string]addritem.Item
	status   status.Code

	logger zerolog.Logger
}

func New(logger zerolog.Logger) *Book {
	return &Book{
		cache:  addrcache.New(),
		logger: logger,
	}
}

func (b *Book) Name() string { return b.name }

func (b *Book) SetName(name string) {
	b.name = name
	b.cache.SetName(name)
}

func (b *Book) Path() string { return b.path }

func (b *Book) SetPath(path string) { b.path = path }

func (b *Book) File() string { return b.fileName }

func (b *Book) SetFile(fileName string) { b.fileName = fileName }

// FullPath joins the book's path and file name.
func (b *Book) FullPath() string {
	if b.fileName == "" {
		return ""
	}
	return filepath.Join(b.path, b.fileName)
}

// Cache exposes the underlying tree.
func (b *Book) Cache() *addrcache.Cache { return b.cache }

func (b *Book) Status() status.Code { return b.status }

// ReadFlag reports whether the file has been loaded.
func (b *Book) ReadFlag() bool { return b.cache.DataRead() }

// ModifyFlag reports unsaved changes.
func (b *Book) ModifyFlag() bool { return b.cache.Modified() }

// Dirty is ModifyFlag under the name callers of Save expect.
func (b *Book) Dirty() bool { return b.cache.Modified() }

func (b *Book) AccessFlag() bool { return b.cache.AccessFlag() }

func (b *Book) SetAccessFlag(v bool) { b.cache.SetAccessFlag(v) }

func (b *Book) RootFolder() *addritem.Folder { return b.cache.Root() }

func (b *Book) ListFolder(f *addritem.Folder) []*addritem.Folder { return b.cache.ListFolder(f) }

func (b *Book) ListPerson(f *addritem.Folder) []*addritem.Person { return b.cache.ListPerson(f) }

func (b *Book) AllPersons() []*addritem.Person { return b.cache.AllPersons() }

func (b *Book) AllGroups() []*addritem.Group { return b.cache.AllGroups() }

// GuessNextFile scans the book's directory for existing book files and
// returns the name following the highest sequence number found.
func (b *Book) GuessNextFile() (string, error) {
	dir := b.path
	if dir == "" {
		dir = "."
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	last := 0
	for _, ent := range entries {
		if ent.IsDir() {
			continue
		}
		m := fileNameRe.FindStringSubmatch(ent.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil && n > last {
			last = n
		}
	}
	return FileName(last + 1), nil
}

// ReadData loads the book file into the cache. The cache is replaced only
// when the whole file parses; on failure it is left as it was.
func (b *Book) ReadData(ctx context.Context) status.Code {
	b.status = b.read(ctx)
	return b.status
}

func (b *Book) read(ctx context.Context) status.Code {
	path := b.FullPath()
	if path == "" {
		return status.NoFile
	}
	f, err := os.Open(path)
	if err != nil {
		b.logger.Debug().Err(err).Str("file", path).Msg("cannot open address book")
		return status.OpenFile
	}
	defer f.Close()

	b.tempHash = make(map[string]addritem.Item)
	defer func() { b.tempHash = nil }()

	cache, name, code := parse(ctx, f, b.tempHash)
	if code != status.Success {
		b.logger.Warn().Str("file", path).Str("status", code.String()).Msg("address book not loaded")
		return code
	}

	cache.ReserveThrough(b.cache.LastID())
	cache.SetAccessFlag(b.cache.AccessFlag())
	if b.name == "" {
		b.name = name
	}
	cache.SetName(b.name)
	b.cache = cache
	b.logger.Debug().Str("file", path).Int("persons", len(cache.AllPersons())).Msg("address book read")
	return status.Success
}

// Save writes the book when it has unsaved changes.
func (b *Book) Save() status.Code {
	if !b.cache.Modified() {
		return status.Success
	}
	b.status = b.write()
	if b.status == status.Success {
		b.cache.SetModified(false)
	}
	return b.status
}

func (b *Book) write() status.Code {
	path := b.FullPath()
	if path == "" {
		return status.NoFile
	}
	if b.path != "" {
		if err := os.MkdirAll(b.path, 0o755); err != nil {
			return status.NoPath
		}
	}
	data, err := encode(b.name, b.cache)
	if err != nil {
		b.logger.Error().Err(err).Str("file", path).Msg("cannot encode address book")
		return status.WriteError
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		b.logger.Error().Err(err).Str("file", tmp).Msg("cannot write address book")
		return status.WriteError
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		b.logger.Error().Err(err).Str("file", path).Msg("cannot replace address book")
		return status.WriteError
	}
	b.logger.Debug().Str("file", path).Msg("address book saved")
	return status.Success
}

// Probe parses the file at path without touching any live cache. It is
// what a "check file" action runs before a book is registered.
func Probe(ctx context.Context, path string) status.Code {
	if path == "" {
		return status.NoFile
	}
	f, err := os.Open(path)
	if err != nil {
		return status.OpenFile
	}
	defer f.Close()
	_, _, code := parse(ctx, f, make(map[string]addritem.Item))
	return code
}

// Free releases the tree. The book can be read again afterwards.
func (b *Book) Free() {
	b.cache.Clear()
	b.tempHash = nil
	b.status = status.Success
}
