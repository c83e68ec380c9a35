package jpilot

import (
	"context"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sonroyaalmerol/addrindex/internal/status"
)

type testRecord struct {
	attrib byte
	uid    uint32
	data   []byte
}

func buildAppInfo(categories, labels map[int]string) []byte {
	b := make([]byte, categoryBlockSize+4+addressLabelCount*labelSize)
	for i, name := range categories {
		copy(b[2+i*categoryNameSize:], name)
	}
	rest := b[categoryBlockSize+4:]
	for i, l := range labels {
		copy(rest[i*labelSize:], l)
	}
	return b
}

func buildAddress(phoneLabels [5]int, fields map[int]string) []byte {
	var flags, contents uint32
	for i, l := range phoneLabels {
		flags |= uint32(l) << (uint(i) * 4)
	}
	var body []byte
	for i := 0; i < fieldCount; i++ {
		v, ok := fields[i]
		if !ok {
			continue
		}
		contents |= 1 << uint(i)
		body = append(body, v...)
		body = append(body, 0)
	}
	b := make([]byte, 9, 9+len(body))
	binary.BigEndian.PutUint32(b[0:4], flags)
	binary.BigEndian.PutUint32(b[4:8], contents)
	return append(b, body...)
}

func buildPDB(typ, creator string, appInfo []byte, recs []testRecord) []byte {
	listEnd := headerSize + len(recs)*recordEntrySize
	out := make([]byte, listEnd)
	copy(out, "AddressDB")
	copy(out[60:64], typ)
	copy(out[64:68], creator)
	binary.BigEndian.PutUint16(out[76:78], uint16(len(recs)))

	off := listEnd
	if appInfo != nil {
		binary.BigEndian.PutUint32(out[52:56], uint32(off))
		off += len(appInfo)
	}
	for i, r := range recs {
		e := out[headerSize+i*recordEntrySize:]
		binary.BigEndian.PutUint32(e[0:4], uint32(off))
		e[4] = r.attrib
		e[5], e[6], e[7] = byte(r.uid>>16), byte(r.uid>>8), byte(r.uid)
		off += len(r.data)
	}
	out = append(out, appInfo...)
	for _, r := range recs {
		out = append(out, r.data...)
	}
	return out
}

func samplePDB() []byte {
	info := buildAppInfo(
		map[int]string{0: "Unfiled", 1: "Business"},
		map[int]string{fieldPhone1: "Work", fieldPhone1 + 4: "E-mail", fieldCustom1: "E-Mail 2"},
	)
	recs := []testRecord{
		{attrib: 0, uid: 0x000101, data: buildAddress([5]int{phoneLabelEMail, 0}, map[int]string{
			fieldFirstName: "Alice",
			fieldLastName:  "Liddell",
			fieldCompany:   "Wonderland",
			fieldPhone1:    "alice@x.com",
			fieldPhone2:    "555-0100",
			fieldCustom1:   "alice@alt.example, a2@alt.example",
		})},
		{attrib: 1, uid: 0x000102, data: buildAddress([5]int{phoneLabelEMail}, map[int]string{
			fieldFirstName: "Bob",
			fieldPhone1:    "bob@x.com",
		})},
		{attrib: recordDeleted, uid: 0x000103, data: buildAddress([5]int{}, map[int]string{
			fieldFirstName: "Gone",
		})},
		{attrib: 1, uid: 0x000104, data: buildAddress([5]int{}, map[int]string{
			fieldFirstName: "Ren\xe9e",
		})},
	}
	return buildPDB(dbType, dbCreator, info, recs)
}

func writePDB(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "AddressDB.pdb")
	require.NoError(t, os.WriteFile(path, data, 0o600))
	return path
}

func TestProbe(t *testing.T) {
	assert.Equal(t, status.Success, Probe(writePDB(t, samplePDB())))
	assert.Equal(t, status.BadFormat, Probe(writePDB(t, buildPDB("DATA", "memo", nil, nil))))
	assert.Equal(t, status.BadFormat, Probe(writePDB(t, []byte("short"))))
	assert.Equal(t, status.OpenFile, Probe(filepath.Join(t.TempDir(), "none.pdb")))
	assert.Equal(t, status.NoFile, Probe(""))
}

func TestReadData(t *testing.T) {
	j := New(zerolog.Nop())
	j.SetName("palm")
	j.SetPath(writePDB(t, samplePDB()))
	require.Equal(t, status.Success, j.ReadData(context.Background()))
	assert.True(t, j.ReadFlag())
	assert.False(t, j.ModifyFlag())

	root := j.ListPerson(nil)
	require.Len(t, root, 1)
	alice := root[0]
	assert.Equal(t, "Alice Liddell", alice.Name())
	assert.Equal(t, "000101", alice.ExternalID)
	require.Len(t, alice.EMails(), 1)
	assert.Equal(t, "alice@x.com", alice.EMails()[0].Address)
	assert.Equal(t, "555-0100", alice.Attribute("work"))
	assert.Equal(t, "Wonderland", alice.Attribute("company"))
	assert.Equal(t, "alice@alt.example, a2@alt.example", alice.Attribute("E-Mail 2"))

	folders := j.ListFolder(nil)
	require.Len(t, folders, 1)
	assert.Equal(t, "Business", folders[0].Name())
	var names []string
	for _, p := range j.ListPerson(folders[0]) {
		names = append(names, p.Name())
	}
	assert.Equal(t, []string{"Bob", "Renée"}, names)
	assert.Len(t, j.AllPersons(), 3, "deleted records are skipped")
	assert.Empty(t, j.AllGroups())
}

func TestCustomLabels(t *testing.T) {
	j := New(zerolog.Nop())
	j.SetPath(writePDB(t, samplePDB()))
	require.Equal(t, status.Success, j.ReadData(context.Background()))

	require.True(t, j.AddCustomLabel("e-mail 2"))
	assert.False(t, j.AddCustomLabel("E-MAIL 2"))
	assert.False(t, j.AddCustomLabel(" "))
	assert.False(t, j.ReadFlag(), "changing labels forces a reread")

	require.Equal(t, status.Success, j.ReadData(context.Background()))
	alice := j.ListPerson(nil)[0]
	var addrs []string
	for _, e := range alice.EMails() {
		addrs = append(addrs, e.Address)
	}
	assert.Equal(t, []string{"alice@x.com", "alice@alt.example", "a2@alt.example"}, addrs)
	assert.Equal(t, "E-Mail 2", alice.EMails()[1].Alias())

	for _, l := range []string{"a", "b", "c", "d"} {
		j.AddCustomLabel(l)
	}
	assert.Len(t, j.CustomLabels(), MaxCustomLabels)
	j.ClearCustomLabels()
	assert.Empty(t, j.CustomLabels())
}

func TestReadDataErrors(t *testing.T) {
	ctx := context.Background()
	j := New(zerolog.Nop())
	assert.Equal(t, status.NoFile, j.ReadData(ctx))

	j.SetPath(writePDB(t, buildPDB("DATA", "memo", buildAppInfo(nil, nil), nil)))
	assert.Equal(t, status.BadFormat, j.ReadData(ctx))

	j.SetPath(writePDB(t, buildPDB(dbType, dbCreator, nil, nil)))
	assert.Equal(t, status.BadFormat, j.ReadData(ctx), "missing app info block")

	j.SetPath(writePDB(t, samplePDB()))
	require.Equal(t, status.Success, j.ReadData(ctx))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	j.SetPath(writePDB(t, samplePDB()))
	assert.Equal(t, status.ReadError, j.ReadData(cctx))
	assert.Len(t, j.AllPersons(), 3, "failed read keeps the previous data")
}

func TestParseAddressTruncated(t *testing.T) {
	_, err := parseAddress([]byte{0, 0})
	assert.ErrorIs(t, err, errShort)

	raw := buildAddress([5]int{}, map[int]string{fieldFirstName: "x"})
	_, err = parseAddress(raw[:len(raw)-1])
	assert.ErrorIs(t, err, errShort)
}
