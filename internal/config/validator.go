// internal/config/validator.go
//
// Thin wrapper around go-playground/validator.
//
// Context
// -------
// `internal/config/loader.go` calls `validateStruct` immediately after it
// unmarshals the merged Koanf tree into a `Config` instance.  Any tag
// mismatch or validation error aborts startup, ensuring the binary never
// runs with partial, malformed, or missing configuration.
//
// Field names in errors are the koanf keys (`listen_addr`, not
// `ListenAddr`) so operators can find the offending line in YAML.  One
// custom rule is registered:
//
//   • dsn_password – the database DSN carries a `{password}` placeholder
//     whenever a password is configured, so the secret has somewhere to go.
//
// Notes
// -----
//   • Oxford commas, two spaces after periods.

package config

import (
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

//
// validator instance (package-level singleton)
//

var v = newValidator()

func newValidator() *validator.Validate {
	val := validator.New(validator.WithRequiredStructEnabled())
	val.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("koanf"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	val.RegisterStructValidation(dsnPassword, Database{})
	return val
}

func dsnPassword(sl validator.StructLevel) {
	db := sl.Current().Interface().(Database)
	if db.Password != "" && !strings.Contains(db.DSN, "{password}") {
		sl.ReportError(db.DSN, "dsn", "DSN", "dsn_password", "")
	}
}

//
// public API
//

// validateStruct returns the validation errors, or nil on success.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
