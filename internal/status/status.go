// Package status holds the result codes shared by every address data source.
package status

// Code is the outcome of a backend operation. Success is the zero value.
type Code int

const (
	Success Code = iota
	BadArgs
	NoFile
	OpenFile
	ReadError
	EOF
	BadFormat
	WriteError
	OpenDirectory
	NoPath
	LDAPConnect
	LDAPInit
	LDAPBind
	LDAPSearch
	LDAPTimeout
	LDAPCriteria
	LDAPNoEntries
)

var messages = map[Code]string{
	Success:       "success",
	BadArgs:       "bad arguments",
	NoFile:        "file not specified",
	OpenFile:      "error opening file",
	ReadError:     "error reading file",
	EOF:           "end of file encountered",
	BadFormat:     "bad file format",
	WriteError:    "error writing to file",
	OpenDirectory: "error opening directory",
	NoPath:        "no path specified",
	LDAPConnect:   "error connecting to LDAP server",
	LDAPInit:      "error initializing LDAP",
	LDAPBind:      "error binding to LDAP server",
	LDAPSearch:    "error searching LDAP database",
	LDAPTimeout:   "timeout performing LDAP operation",
	LDAPCriteria:  "error in LDAP search criteria",
	LDAPNoEntries: "no LDAP entries found for search criteria",
}

func (c Code) String() string {
	if m, ok := messages[c]; ok {
		return m
	}
	return "unknown error"
}

// Error lets a Code travel as an error value.
func (c Code) Error() string { return c.String() }
