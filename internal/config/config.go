package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// DefaultIndexFile is the index file name inside the address book directory.
const DefaultIndexFile = "addrbook--index.xml"

// LDAPConfig describes one LDAP server data source.
type LDAPConfig struct {
	URL                string
	BaseDN             string
	BindDN             string
	BindPassword       string
	Criteria           string
	MaxEntries         int
	Timeout            time.Duration
	CacheTTL           time.Duration
	InsecureSkipVerify bool
	RequireTLS         bool
}

type IndexConfig struct {
	Dir  string
	File string
}

type Config struct {
	Index    IndexConfig
	LDAP     LDAPConfig
	LogLevel string
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getint(key string, def int) int {
	n, err := strconv.Atoi(getenv(key, ""))
	if err != nil {
		return def
	}
	return n
}

func getduration(key string, def time.Duration) time.Duration {
	d, err := time.ParseDuration(getenv(key, ""))
	if err != nil {
		return def
	}
	return d
}

func getbool(key string, def bool) bool {
	v := strings.ToLower(getenv(key, ""))
	if v == "" {
		return def
	}
	return v == "true" || v == "1" || v == "yes"
}

func defaultDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "addrbook")
	}
	return ".addrbook"
}

// DefaultLDAP returns the LDAP settings new servers start from.
func DefaultLDAP() LDAPConfig {
	return LDAPConfig{
		URL:        "ldap://localhost:389",
		Criteria:   "(mail=*)",
		MaxEntries: 500,
		Timeout:    30 * time.Second,
		CacheTTL:   60 * time.Second,
	}
}

func Load() (*Config, error) {
	ldapDefaults := DefaultLDAP()
	return &Config{
		Index: IndexConfig{
			Dir:  getenv("ADDRBOOK_DIR", defaultDir()),
			File: getenv("ADDRBOOK_INDEX_FILE", DefaultIndexFile),
		},
		LDAP: LDAPConfig{
			URL:                getenv("LDAP_URL", ldapDefaults.URL),
			BaseDN:             getenv("LDAP_BASE_DN", ""),
			BindDN:             getenv("LDAP_BIND_DN", ""),
			BindPassword:       getenv("LDAP_BIND_PASSWORD", ""),
			Criteria:           getenv("LDAP_CRITERIA", ldapDefaults.Criteria),
			MaxEntries:         getint("LDAP_MAX_ENTRIES", ldapDefaults.MaxEntries),
			Timeout:            getduration("LDAP_TIMEOUT", ldapDefaults.Timeout),
			CacheTTL:           getduration("LDAP_CACHE_TTL", ldapDefaults.CacheTTL),
			InsecureSkipVerify: getbool("LDAP_SKIP_VERIFY", false),
			RequireTLS:         getbool("LDAP_REQUIRE_TLS", false),
		},
		LogLevel: getenv("LOG_LEVEL", "info"),
	}, nil
}
