package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyStage          = "stage"
	KeyDurationMS     = "duration_ms"
	KeyPath           = "path"
	KeyKey            = "key"
	KeyKind           = "kind"
	KeyMode           = "mode"
	KeyCount          = "count"
	KeyRuntime        = "runtime"
	KeyCommand        = "command"
	KeyPackageManager = "package_manager"
	KeyRevision       = "revision"
	KeyError          = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func Stage(name string) slog.Attr        { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr    { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr            { return slog.String(KeyPath, p) }
func Key(k string) slog.Attr             { return slog.String(KeyKey, k) }
func Kind(k string) slog.Attr            { return slog.String(KeyKind, k) }
func Mode(m string) slog.Attr            { return slog.String(KeyMode, m) }
func Count(n int) slog.Attr              { return slog.Int(KeyCount, n) }
func Runtime(r string) slog.Attr         { return slog.String(KeyRuntime, r) }
func Command(c string) slog.Attr         { return slog.String(KeyCommand, c) }
func PackageManager(pm string) slog.Attr { return slog.String(KeyPackageManager, pm) }
func Revision(rev string) slog.Attr      { return slog.String(KeyRevision, rev) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
