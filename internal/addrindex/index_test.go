package addrindex

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/addrindex/internal/addrbook"
	"github.com/sonroyaalmerol/addrindex/internal/config"
	"github.com/sonroyaalmerol/addrindex/internal/directory"
	"github.com/sonroyaalmerol/addrindex/internal/jpilot"
	"github.com/sonroyaalmerol/addrindex/internal/status"
	"github.com/sonroyaalmerol/addrindex/pkg/vcard"
)

func newIndex(t *testing.T) (*Index, string) {
	t.Helper()
	dir := t.TempDir()
	ix := New(zerolog.Nop())
	ix.SetFilePath(dir)
	return ix, dir
}

func newBook(ix *Index, name string) *addrbook.Book {
	b := addrbook.New(zerolog.Nop())
	b.SetName(name)
	b.SetPath(ix.FilePath())
	b.SetFile(addrbook.FileName(1))
	return b
}

func TestInterfaces(t *testing.T) {
	ix := New(zerolog.Nop())
	require.Len(t, ix.Interfaces(), 4)
	for _, typ := range []Type{TypeBook, TypeVCard, TypeJPilot, TypeLDAP} {
		i := ix.Interface(typ)
		require.NotNil(t, i, typ.String())
		assert.Same(t, i, ix.Interface(typ))
		assert.Equal(t, typ, ParseType(typ.String()))
		assert.True(t, i.Usable())
	}
	assert.Nil(t, ix.Interface(TypeNone))
	assert.False(t, ix.Interface(TypeBook).ReadOnly)
	assert.True(t, ix.Interface(TypeVCard).ReadOnly)
	assert.True(t, ix.Interface(TypeLDAP).ExternalQuery)
	assert.Equal(t, TypeNone, ParseType("palm"))
	assert.False(t, ix.register(newInterface(TypeBook, "again", false)))
}

func TestAddDataSource(t *testing.T) {
	ix, _ := newIndex(t)
	b := newBook(ix, "Personal")

	assert.Nil(t, ix.AddDataSource(TypeVCard, b), "type mismatch")
	assert.Nil(t, ix.AddDataSource(TypeNone, b))
	assert.Nil(t, ix.AddDataSource(TypeBook, nil))
	assert.Nil(t, ix.AddDataSource(TypeBook, (*addrbook.Book)(nil)), "nil book pointer")
	assert.Nil(t, ix.AddDataSource(TypeLDAP, (*directory.Server)(nil)))
	assert.Empty(t, ix.DataSources())
	assert.NotPanics(t, func() { ix.FindDataSource("x") })
	assert.False(t, ix.Dirty())

	ds := ix.AddDataSource(TypeBook, b)
	require.NotNil(t, ds)
	assert.True(t, ix.Dirty())
	assert.Equal(t, TypeBook, ds.Type())
	assert.Same(t, b, ds.Book())
	assert.Nil(t, ds.VCard())
	assert.Nil(t, ds.JPilot())
	assert.Nil(t, ds.LDAP())
	assert.Same(t, ds, ix.FindDataSource("Personal"))
	assert.Nil(t, ix.FindDataSource("Other"))
}

func TestAddThenRemoveLeavesListUnchanged(t *testing.T) {
	ix, _ := newIndex(t)
	first := ix.AddDataSource(TypeBook, newBook(ix, "first"))
	before := ix.Interface(TypeBook).DataSources()

	b := newBook(ix, "second")
	p := b.AddContact(nil, "Alice", "alice@x.com", "")
	ds := ix.AddDataSource(TypeBook, b)
	require.NotNil(t, ds)

	removed := ix.RemoveDataSource(ds)
	require.Same(t, ds, removed)
	assert.Equal(t, before, ix.Interface(TypeBook).DataSources())
	assert.Equal(t, []*DataSource{first}, ix.DataSources())

	// the handle is detached but not freed
	assert.Equal(t, "second", removed.Name())
	assert.Equal(t, []string{"Alice"}, names(removed))
	assert.Same(t, p, b.Cache().FindPerson(p.UID()))

	assert.Nil(t, ix.RemoveDataSource(ds), "already removed")
	assert.Nil(t, ix.RemoveDataSource(nil))

	removed.Free()
	assert.Nil(t, removed.Raw())
	assert.Empty(t, removed.AllPersons())
	assert.Equal(t, status.BadArgs, removed.Status())
}

func names(ds *DataSource) []string {
	var out []string
	for _, p := range ds.AllPersons() {
		out = append(out, p.Name())
	}
	return out
}

func TestDataSourceUnusable(t *testing.T) {
	ix, _ := newIndex(t)
	b := newBook(ix, "Personal")
	b.AddContact(nil, "Alice", "alice@x.com", "")
	ds := ix.AddDataSource(TypeBook, b)

	ix.Interface(TypeBook).UseInterface = false
	assert.Empty(t, ds.Name())
	assert.Nil(t, ds.RootFolder())
	assert.Nil(t, ds.AllPersons())
	assert.Equal(t, status.BadArgs, ds.ReadData(context.Background()))
	assert.Equal(t, status.BadArgs, ds.Save())
	assert.False(t, ds.ModifyFlag())

	ix.Interface(TypeBook).UseInterface = true
	assert.True(t, ds.ModifyFlag())
	ds.SetAccessFlag(true)
	assert.True(t, ds.AccessFlag())
}

func TestReadMissingIndex(t *testing.T) {
	ix, _ := newIndex(t)
	assert.Equal(t, status.NoFile, ix.Read())
	assert.True(t, ix.NeedsConversion())
	assert.Equal(t, status.NoFile, ix.Status())
}

func TestCreateDefaultBooks(t *testing.T) {
	ix, dir := newIndex(t)
	require.Equal(t, status.NoFile, ix.Read())
	require.Equal(t, status.Success, ix.CreateDefaultBooks())
	assert.False(t, ix.NeedsConversion())
	assert.False(t, ix.ConversionError())

	sources := ix.DataSources()
	require.Len(t, sources, 2)
	assert.Equal(t, CommonBookName, sources[0].Name())
	assert.Equal(t, PersonalBookName, sources[1].Name())
	assert.Equal(t, addrbook.FileName(1), sources[0].Book().File())
	assert.Equal(t, addrbook.FileName(2), sources[1].Book().File())
	for _, ds := range sources {
		assert.True(t, ds.ReadFlag())
		assert.FileExists(t, ds.Book().FullPath())
	}

	require.Equal(t, status.Success, ix.Save())
	assert.FileExists(t, filepath.Join(dir, config.DefaultIndexFile))
	assert.False(t, ix.Dirty())
}

func TestIndexFileRoundTrip(t *testing.T) {
	ix, dir := newIndex(t)
	ix.AddDataSource(TypeBook, newBook(ix, "Personal"))

	v := vcard.NewFile(zerolog.Nop())
	v.SetName("Phone")
	v.SetPath("/data/phone.vcf")
	ix.AddDataSource(TypeVCard, v)

	j := jpilot.New(zerolog.Nop())
	j.SetName("Palm")
	j.SetPath("/data/AddressDB.pdb")
	j.AddCustomLabel("E-Mail 2")
	j.AddCustomLabel("Home mail")
	ix.AddDataSource(TypeJPilot, j)

	cfg := config.DefaultLDAP()
	cfg.URL = "ldaps://ldap.example.com"
	cfg.BaseDN = "dc=example,dc=com"
	cfg.BindDN = "cn=reader,dc=example,dc=com"
	cfg.BindPassword = "secret"
	cfg.MaxEntries = 50
	cfg.RequireTLS = true
	s := directory.NewServer(cfg, zerolog.Nop())
	s.SetName("Corporate")
	ix.AddDataSource(TypeLDAP, s)

	var buf bytes.Buffer
	n, err := ix.WriteTo(&buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)
	assert.Contains(t, buf.String(), `<addressbook>`)

	require.Equal(t, status.Success, ix.Save())
	assert.False(t, ix.Dirty())

	again := New(zerolog.Nop())
	again.SetFilePath(dir)
	require.Equal(t, status.Success, again.Read())
	assert.False(t, again.Dirty())
	require.Len(t, again.DataSources(), 4)

	book := again.FindDataSource("Personal").Book()
	require.NotNil(t, book)
	assert.Equal(t, dir, book.Path())
	assert.Equal(t, addrbook.FileName(1), book.File())
	assert.False(t, book.ReadFlag(), "source data is not read with the index")

	vc := again.FindDataSource("Phone").VCard()
	require.NotNil(t, vc)
	assert.Equal(t, "/data/phone.vcf", vc.Path())

	palm := again.FindDataSource("Palm").JPilot()
	require.NotNil(t, palm)
	assert.Equal(t, "/data/AddressDB.pdb", palm.Path())
	assert.Equal(t, []string{"E-Mail 2", "Home mail"}, palm.CustomLabels())

	srv := again.FindDataSource("Corporate").LDAP()
	require.NotNil(t, srv)
	assert.Equal(t, cfg, srv.Config())
}

func TestReadBadIndex(t *testing.T) {
	ix, dir := newIndex(t)
	ix.AddDataSource(TypeBook, newBook(ix, "keep"))
	require.NoError(t, os.WriteFile(filepath.Join(dir, config.DefaultIndexFile), []byte("<addressbook><book"), 0o600))
	assert.Equal(t, status.BadFormat, ix.Read())
	assert.NotNil(t, ix.FindDataSource("keep"), "a bad file leaves the sources alone")
}

func TestReadWarnsAboutUnsavedBooks(t *testing.T) {
	var logs bytes.Buffer
	ix := New(zerolog.New(&logs))
	ix.SetFilePath(t.TempDir())
	require.Equal(t, status.Success, ix.CreateDefaultBooks())
	require.Equal(t, status.Success, ix.Save())

	_, code := ix.AddContact(context.Background(), PersonalBookName, "Alice", "alice@x.com", "")
	require.Equal(t, status.Success, code)
	require.True(t, ix.FindDataSource(PersonalBookName).ModifyFlag())

	require.Equal(t, status.Success, ix.Read())
	assert.Contains(t, logs.String(), "discarding unsaved changes")
	assert.Contains(t, logs.String(), PersonalBookName)
	assert.NotContains(t, logs.String(), CommonBookName)
}

func TestAddContact(t *testing.T) {
	ix, _ := newIndex(t)
	require.Equal(t, status.Success, ix.CreateDefaultBooks())
	ctx := context.Background()

	p, code := ix.AddContact(ctx, PersonalBookName, "Alice", "alice@x.com", "")
	require.Equal(t, status.Success, code)
	require.NotNil(t, p)
	assert.Equal(t, "alice@x.com", p.EMails()[0].Address)

	_, code = ix.AddContact(ctx, "nope", "Bob", "bob@x.com", "")
	assert.Equal(t, status.BadArgs, code)

	v := vcard.NewFile(zerolog.Nop())
	v.SetName("Phone")
	ix.AddDataSource(TypeVCard, v)
	_, code = ix.AddContact(ctx, "Phone", "Bob", "bob@x.com", "")
	assert.Equal(t, status.BadArgs, code, "read-only sources take no contacts")

	require.Equal(t, status.Success, ix.SaveAllBooks())
	assert.False(t, ix.FindDataSource(PersonalBookName).ModifyFlag())
}

func TestReadAll(t *testing.T) {
	ix, dir := newIndex(t)
	require.Equal(t, status.Success, ix.CreateDefaultBooks())
	_, code := ix.AddContact(context.Background(), CommonBookName, "Alice", "alice@x.com", "")
	require.Equal(t, status.Success, code)
	require.Equal(t, status.Success, ix.SaveAllBooks())
	require.Equal(t, status.Success, ix.Save())

	vcf := filepath.Join(dir, "phone.vcf")
	require.NoError(t, os.WriteFile(vcf, []byte("BEGIN:VCARD\nVERSION:3.0\nFN:Bob\nEMAIL:bob@x.com\nEND:VCARD\n"), 0o600))
	v := vcard.NewFile(zerolog.Nop())
	v.SetName("Phone")
	v.SetPath(vcf)
	ix.AddDataSource(TypeVCard, v)

	j := jpilot.New(zerolog.Nop())
	j.SetName("Palm")
	j.SetPath(filepath.Join(dir, "missing.pdb"))
	ix.AddDataSource(TypeJPilot, j)

	fresh := New(zerolog.Nop())
	fresh.SetFilePath(dir)
	require.Equal(t, status.Success, fresh.Read())
	fresh.AddDataSource(TypeVCard, v)
	fresh.AddDataSource(TypeJPilot, j)

	results := fresh.ReadAll(context.Background())
	require.Len(t, results, 4)
	got := make(map[string]status.Code)
	for _, r := range results {
		got[r.DataSource.Name()] = r.Status
	}
	assert.Equal(t, status.Success, got[CommonBookName])
	assert.Equal(t, status.Success, got[PersonalBookName])
	assert.Equal(t, status.Success, got["Phone"])
	assert.Equal(t, status.OpenFile, got["Palm"])

	assert.Equal(t, []string{"Alice"}, names(fresh.FindDataSource(CommonBookName)))
	assert.Equal(t, []string{"Bob"}, names(fresh.FindDataSource("Phone")))
}

func TestBookSurvivesNewIndex(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "t")
	ctx := context.Background()

	ix := New(zerolog.Nop())
	ix.SetFilePath(dir)
	b := addrbook.New(zerolog.Nop())
	b.SetName("Test")
	b.SetPath(dir)
	b.SetFile(addrbook.FileName(1))
	ds := ix.AddDataSource(TypeBook, b)
	require.NotNil(t, ds)
	require.NotNil(t, b.AddContact(nil, "Alice", "alice@x.com", ""))
	require.Equal(t, status.Success, ds.Save())
	ix.Free()
	assert.Empty(t, ix.DataSources())

	ix2 := New(zerolog.Nop())
	ix2.SetFilePath(dir)
	b2 := addrbook.New(zerolog.Nop())
	b2.SetPath(dir)
	b2.SetFile(addrbook.FileName(1))
	ds2 := ix2.AddDataSource(TypeBook, b2)
	require.Equal(t, status.Success, ds2.ReadData(ctx))

	assert.Empty(t, ds2.ListFolder(nil))
	persons := ds2.ListPerson(nil)
	require.Len(t, persons, 1)
	assert.Equal(t, "Alice", persons[0].Name())
	require.Len(t, persons[0].EMails(), 1)
	assert.Equal(t, "alice@x.com", persons[0].EMails()[0].Address)
}
