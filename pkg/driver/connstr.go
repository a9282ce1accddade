package driver

import (
	"strings"

	"github.com/ha1tch/odbcbridge/pkg/errors"
)

// Connection string keywords Connect understands. Dotted keywords such as
// conversion.max_depth are passed to the configuration unchanged.
const (
	KeyDriver   = "DRIVER"   // read by the Driver Manager, ignored here
	KeyDSN      = "DSN"      // database/sql data source name
	KeyDatabase = "DATABASE" // same as DSN, wins over it
	KeySource   = "SOURCE"   // database/sql driver name
	KeyConfig   = "CONFIG"   // YAML configuration file
	KeyLogLevel = "LOGLEVEL"
	KeyLogFile  = "LOGFILE"
)

// ParseConnString splits an ODBC connection string into keyword/value
// pairs. Keywords are upper-cased. A value wrapped in braces may contain
// semicolons, and "}}" inside braces is a literal brace. When a keyword
// repeats, its first value is kept.
func ParseConnString(s string) (map[string]string, error) {
	attrs := make(map[string]string)
	i := 0
	for i < len(s) {
		for i < len(s) && (s[i] == ';' || s[i] == ' ' || s[i] == '\t') {
			i++
		}
		if i >= len(s) {
			break
		}

		eq := strings.IndexByte(s[i:], '=')
		if eq < 0 {
			return nil, errors.Newf(errors.ErrCodeConnString,
				"connection string attribute %q has no value", strings.TrimSpace(s[i:])).Err()
		}
		key := strings.ToUpper(strings.TrimSpace(s[i : i+eq]))
		if key == "" || strings.ContainsRune(key, ';') {
			return nil, errors.Newf(errors.ErrCodeConnString,
				"malformed connection string near %q", s[i:i+eq]).Err()
		}
		i += eq + 1
		for i < len(s) && s[i] == ' ' {
			i++
		}

		var val string
		if i < len(s) && s[i] == '{' {
			var b strings.Builder
			closed := false
			for i++; i < len(s); i++ {
				if s[i] != '}' {
					b.WriteByte(s[i])
					continue
				}
				if i+1 < len(s) && s[i+1] == '}' {
					b.WriteByte('}')
					i++
					continue
				}
				closed = true
				i++
				break
			}
			if !closed {
				return nil, errors.Newf(errors.ErrCodeConnString,
					"unterminated brace in value of %s", key).Err()
			}
			for ; i < len(s) && s[i] != ';'; i++ {
				if s[i] != ' ' && s[i] != '\t' {
					return nil, errors.Newf(errors.ErrCodeConnString,
						"unexpected text after braced value of %s", key).Err()
				}
			}
			val = b.String()
		} else {
			end := strings.IndexByte(s[i:], ';')
			if end < 0 {
				end = len(s) - i
			}
			val = strings.TrimSpace(s[i : i+end])
			i += end
		}

		if _, seen := attrs[key]; !seen {
			attrs[key] = val
		}
	}
	return attrs, nil
}

// settings maps connection string attributes onto configuration keys and
// returns the config file named by CONFIG, if any.
func settings(attrs map[string]string) (file string, kv map[string]string) {
	kv = make(map[string]string)
	for k, v := range attrs {
		if strings.Contains(k, ".") {
			kv[strings.ToLower(k)] = v
		}
	}
	if v, ok := attrs[KeySource]; ok {
		kv["source.driver"] = v
	}
	if v, ok := attrs[KeyDSN]; ok {
		kv["source.dsn"] = v
	}
	if v, ok := attrs[KeyDatabase]; ok {
		kv["source.dsn"] = v
	}
	if v, ok := attrs[KeyLogLevel]; ok {
		kv["log.level"] = v
	}
	if v, ok := attrs[KeyLogFile]; ok {
		kv["log.file"] = v
	}
	return attrs[KeyConfig], kv
}
