package jpilot

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"golang.org/x/text/encoding/charmap"
)

// Palm database layout, big endian throughout.
const (
	headerSize      = 78
	recordEntrySize = 8
	dbNameSize      = 32

	categoryCount     = 16
	categoryNameSize  = 16
	categoryBlockSize = 2 + categoryCount*categoryNameSize + categoryCount + 2

	addressLabelCount = 22
	labelSize         = 16

	recordDeleted = 0x80
	categoryMask  = 0x0F
)

// Address record field positions.
const (
	fieldLastName = iota
	fieldFirstName
	fieldCompany
	fieldPhone1
	fieldPhone2
	fieldPhone3
	fieldPhone4
	fieldPhone5
	fieldAddress
	fieldCity
	fieldState
	fieldZip
	fieldCountry
	fieldTitle
	fieldCustom1
	fieldCustom2
	fieldCustom3
	fieldCustom4
	fieldNote
	fieldCount
)

// phoneLabelEMail is the phone label index Palm uses for "E-mail".
const phoneLabelEMail = 4

var errShort = errors.New("truncated database")

type pdbHeader struct {
	Name          string
	Attributes    uint16
	Version       uint16
	AppInfoOffset uint32
	Type          string
	Creator       string
	NumRecords    uint16
}

type pdbRecord struct {
	Attrib   byte
	UniqueID uint32
	Data     []byte
}

func (r pdbRecord) Deleted() bool { return r.Attrib&recordDeleted != 0 }

func (r pdbRecord) Category() int { return int(r.Attrib & categoryMask) }

type pdbFile struct {
	Header  pdbHeader
	AppInfo []byte
	Records []pdbRecord
}

func parsePDB(raw []byte) (*pdbFile, error) {
	if len(raw) < headerSize {
		return nil, errShort
	}
	h := pdbHeader{
		Name:          cString(raw[:dbNameSize]),
		Attributes:    binary.BigEndian.Uint16(raw[32:34]),
		Version:       binary.BigEndian.Uint16(raw[34:36]),
		AppInfoOffset: binary.BigEndian.Uint32(raw[52:56]),
		Type:          string(raw[60:64]),
		Creator:       string(raw[64:68]),
		NumRecords:    binary.BigEndian.Uint16(raw[76:78]),
	}
	listEnd := headerSize + int(h.NumRecords)*recordEntrySize
	if len(raw) < listEnd {
		return nil, errShort
	}

	offsets := make([]int, h.NumRecords)
	records := make([]pdbRecord, h.NumRecords)
	for i := range records {
		e := raw[headerSize+i*recordEntrySize:]
		offsets[i] = int(binary.BigEndian.Uint32(e[0:4]))
		records[i].Attrib = e[4]
		records[i].UniqueID = uint32(e[5])<<16 | uint32(e[6])<<8 | uint32(e[7])
	}
	for i := range records {
		start := offsets[i]
		end := len(raw)
		if i+1 < len(offsets) {
			end = offsets[i+1]
		}
		if start < listEnd || start > end || end > len(raw) {
			return nil, fmt.Errorf("record %d: bad offset %d", i, start)
		}
		records[i].Data = raw[start:end]
	}

	var appInfo []byte
	if h.AppInfoOffset != 0 {
		start := int(h.AppInfoOffset)
		end := len(raw)
		if len(offsets) > 0 {
			end = offsets[0]
		}
		if start < listEnd || start > end {
			return nil, fmt.Errorf("bad app info offset %d", start)
		}
		appInfo = raw[start:end]
	}
	return &pdbFile{Header: h, AppInfo: appInfo, Records: records}, nil
}

// appInfo is the part of the address book's application block that names
// categories and labels.
type appInfo struct {
	Categories [categoryCount]string
	Labels     [addressLabelCount]string
}

func parseAppInfo(raw []byte) (appInfo, error) {
	var ai appInfo
	if len(raw) < categoryBlockSize {
		return ai, errShort
	}
	for i := 0; i < categoryCount; i++ {
		off := 2 + i*categoryNameSize
		ai.Categories[i] = decode(raw[off : off+categoryNameSize])
	}
	// after the category block: a 4 byte dirty mask, then the labels
	rest := raw[categoryBlockSize:]
	if len(rest) >= 4+addressLabelCount*labelSize {
		rest = rest[4:]
		for i := 0; i < addressLabelCount; i++ {
			ai.Labels[i] = decode(rest[i*labelSize : (i+1)*labelSize])
		}
	}
	return ai, nil
}

// address is one decoded record.
type address struct {
	PhoneLabels [5]int
	ShowPhone   int
	Fields      [fieldCount]string
}

func parseAddress(raw []byte) (address, error) {
	var a address
	if len(raw) < 9 {
		return a, errShort
	}
	flags := binary.BigEndian.Uint32(raw[0:4])
	for i := range a.PhoneLabels {
		a.PhoneLabels[i] = int(flags>>(uint(i)*4)) & 0xF
	}
	a.ShowPhone = int(flags>>20) & 0xF
	contents := binary.BigEndian.Uint32(raw[4:8])
	// raw[8] is the company field offset, unused here
	buf := raw[9:]
	for i := 0; i < fieldCount; i++ {
		if contents&(1<<uint(i)) == 0 {
			continue
		}
		n := bytes.IndexByte(buf, 0)
		if n < 0 {
			return a, errShort
		}
		a.Fields[i] = decode(buf[:n])
		buf = buf[n+1:]
	}
	return a, nil
}

func cString(b []byte) string {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	return string(b)
}

// decode converts Palm (Windows-1252) text to UTF-8.
func decode(b []byte) string {
	if n := bytes.IndexByte(b, 0); n >= 0 {
		b = b[:n]
	}
	out, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(out)
}
