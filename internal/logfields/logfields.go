// Package logfields holds the canonical structured-log attribute names.
package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPath       = "path"
	KeyKind       = "kind"
	KeyStage      = "stage"
	KeyCount      = "count"
	KeyRoot       = "root"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Helpers returning slog.Attr, one per field so callers can compose.
func Path(p string) slog.Attr { return slog.String(KeyPath, p) }
func Kind(k string) slog.Attr { return slog.String(KeyKind, k) }
func Stage(name string) slog.Attr { return slog.String(KeyStage, name) }
func Count(n int) slog.Attr { return slog.Int(KeyCount, n) }
func Root(r string) slog.Attr { return slog.String(KeyRoot, r) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
