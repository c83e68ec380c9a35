package addrindex

import (
	"bytes"
	"encoding/xml"
	"errors"
	"io"
	"io/fs"
	"os"
	"time"

	"github.com/sonroyaalmerol/addrindex/internal/addrbook"
	"github.com/sonroyaalmerol/addrindex/internal/config"
	"github.com/sonroyaalmerol/addrindex/internal/directory"
	"github.com/sonroyaalmerol/addrindex/internal/jpilot"
	"github.com/sonroyaalmerol/addrindex/internal/status"
	"github.com/sonroyaalmerol/addrindex/pkg/vcard"
)

// The index file records which sources exist and where their data lives,
// never the data itself.

type xmlIndex struct {
	XMLName xml.Name     `xml:"addressbook"`
	Books   []xmlFileRef `xml:"book_list>book"`
	VCards  []xmlFileRef `xml:"vcard_list>vcard"`
	JPilots []xmlJPilot  `xml:"jpilot_list>jpilot"`
	Servers []xmlServer  `xml:"ldap_list>server"`
}

type xmlFileRef struct {
	Name string `xml:"name,attr"`
	File string `xml:"file,attr"`
}

type xmlJPilot struct {
	Name    string `xml:"name,attr"`
	File    string `xml:"file,attr"`
	Custom1 string `xml:"custom-1,attr,omitempty"`
	Custom2 string `xml:"custom-2,attr,omitempty"`
	Custom3 string `xml:"custom-3,attr,omitempty"`
	Custom4 string `xml:"custom-4,attr,omitempty"`
}

type xmlServer struct {
	Name       string `xml:"name,attr"`
	URL        string `xml:"url,attr"`
	BaseDN     string `xml:"base-dn,attr"`
	BindDN     string `xml:"bind-dn,attr,omitempty"`
	BindPass   string `xml:"bind-pass,attr,omitempty"`
	Criteria   string `xml:"criteria,attr,omitempty"`
	MaxEntry   int    `xml:"max-entry,attr,omitempty"`
	Timeout    int    `xml:"timeout,attr,omitempty"`
	CacheTTL   int    `xml:"cache-ttl,attr,omitempty"`
	SkipVerify bool   `xml:"skip-verify,attr,omitempty"`
	RequireTLS bool   `xml:"require-tls,attr,omitempty"`
}

func (j xmlJPilot) labels() []string {
	return []string{j.Custom1, j.Custom2, j.Custom3, j.Custom4}
}

func (j *xmlJPilot) setLabels(labels []string) {
	slots := []*string{&j.Custom1, &j.Custom2, &j.Custom3, &j.Custom4}
	for n, l := range labels {
		if n < len(slots) {
			*slots[n] = l
		}
	}
}

// Read loads the index file, replacing the current data sources. The
// sources' own data is not read. A missing file yields NoFile and sets
// NeedsConversion.
func (ix *Index) Read() status.Code {
	ix.status = ix.read()
	return ix.status
}

func (ix *Index) read() status.Code {
	f, err := os.Open(ix.FullPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			ix.needsConversion = true
			return status.NoFile
		}
		return status.OpenFile
	}
	defer f.Close()

	var doc xmlIndex
	if err := xml.NewDecoder(f).Decode(&doc); err != nil {
		ix.logger.Warn().Err(err).Str("file", ix.FullPath()).Msg("cannot parse address index")
		return status.BadFormat
	}

	for _, ds := range ix.DataSources() {
		if ds.ModifyFlag() {
			ix.logger.Warn().Str("book", ds.Name()).Msg("discarding unsaved changes")
		}
	}
	ix.Free()
	for _, r := range doc.Books {
		b := addrbook.New(ix.logger)
		b.SetName(r.Name)
		b.SetPath(ix.filePath)
		b.SetFile(r.File)
		ix.AddDataSource(TypeBook, b)
	}
	for _, r := range doc.VCards {
		v := vcard.NewFile(ix.logger)
		v.SetName(r.Name)
		v.SetPath(r.File)
		ix.AddDataSource(TypeVCard, v)
	}
	for _, r := range doc.JPilots {
		j := jpilot.New(ix.logger)
		j.SetName(r.Name)
		j.SetPath(r.File)
		for _, l := range r.labels() {
			j.AddCustomLabel(l)
		}
		ix.AddDataSource(TypeJPilot, j)
	}
	for _, r := range doc.Servers {
		cfg := config.DefaultLDAP()
		cfg.URL = r.URL
		cfg.BaseDN = r.BaseDN
		cfg.BindDN = r.BindDN
		cfg.BindPassword = r.BindPass
		if r.Criteria != "" {
			cfg.Criteria = r.Criteria
		}
		if r.MaxEntry > 0 {
			cfg.MaxEntries = r.MaxEntry
		}
		if r.Timeout > 0 {
			cfg.Timeout = time.Duration(r.Timeout) * time.Second
		}
		if r.CacheTTL > 0 {
			cfg.CacheTTL = time.Duration(r.CacheTTL) * time.Second
		}
		cfg.InsecureSkipVerify = r.SkipVerify
		cfg.RequireTLS = r.RequireTLS
		s := directory.NewServer(cfg, ix.logger)
		s.SetName(r.Name)
		ix.AddDataSource(TypeLDAP, s)
	}
	ix.dirty = false
	ix.needsConversion = false
	ix.logger.Debug().Str("file", ix.FullPath()).Int("sources", len(ix.DataSources())).Msg("address index read")
	return status.Success
}

func (ix *Index) document() *xmlIndex {
	doc := &xmlIndex{}
	for _, ds := range ix.DataSources() {
		switch v := ds.raw.(type) {
		case *addrbook.Book:
			doc.Books = append(doc.Books, xmlFileRef{Name: v.Name(), File: v.File()})
		case *vcard.File:
			doc.VCards = append(doc.VCards, xmlFileRef{Name: v.Name(), File: v.Path()})
		case *jpilot.File:
			r := xmlJPilot{Name: v.Name(), File: v.Path()}
			r.setLabels(v.CustomLabels())
			doc.JPilots = append(doc.JPilots, r)
		case *directory.Server:
			cfg := v.Config()
			doc.Servers = append(doc.Servers, xmlServer{
				Name:       v.Name(),
				URL:        cfg.URL,
				BaseDN:     cfg.BaseDN,
				BindDN:     cfg.BindDN,
				BindPass:   cfg.BindPassword,
				Criteria:   cfg.Criteria,
				MaxEntry:   cfg.MaxEntries,
				Timeout:    int(cfg.Timeout / time.Second),
				CacheTTL:   int(cfg.CacheTTL / time.Second),
				SkipVerify: cfg.InsecureSkipVerify,
				RequireTLS: cfg.RequireTLS,
			})
		}
	}
	return doc
}

// WriteTo writes the index document to w.
func (ix *Index) WriteTo(w io.Writer) (int64, error) {
	out, err := xml.MarshalIndent(ix.document(), "", "  ")
	if err != nil {
		return 0, err
	}
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.Write(out)
	buf.WriteByte('\n')
	return buf.WriteTo(w)
}

// Save writes the index file and clears the dirty flag.
func (ix *Index) Save() status.Code {
	if ix.filePath != "" {
		if err := os.MkdirAll(ix.filePath, 0o755); err != nil {
			ix.status = status.NoPath
			return ix.status
		}
	}
	ix.status = ix.WriteFile(ix.FullPath())
	if ix.status == status.Success {
		ix.dirty = false
	}
	return ix.status
}

// WriteFile writes the index to path through a temporary file.
func (ix *Index) WriteFile(path string) status.Code {
	if path == "" {
		return status.NoFile
	}
	tmp := path + ".tmp"
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		ix.logger.Error().Err(err).Str("file", tmp).Msg("cannot create address index")
		return status.OpenFile
	}
	if _, err := ix.WriteTo(f); err != nil {
		f.Close()
		_ = os.Remove(tmp)
		return status.WriteError
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return status.WriteError
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		ix.logger.Error().Err(err).Str("file", path).Msg("cannot replace address index")
		return status.WriteError
	}
	return status.Success
}
