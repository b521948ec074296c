package installer

import (
	"errors"
	"fmt"

	"github.com/embydev/embytools/internal/release"
)

// Kind classifies installer failures and warnings.
type Kind int

const (
	KindUnknown Kind = iota
	KindUnsupportedPlatform
	KindNetworkError
	KindMetadataError
	KindNotFound
	KindDownloadError
	KindUnsupportedFormat
	KindExtractError
	KindLocked

	// Non-fatal kinds, reported as warnings on the outcome.
	KindPermissionWarning
	KindCleanupWarning
	KindVerifyWarning
)

// String returns the string representation of the kind
func (k Kind) String() string {
	switch k {
	case KindUnsupportedPlatform:
		return "UnsupportedPlatform"
	case KindNetworkError:
		return "NetworkError"
	case KindMetadataError:
		return "MetadataError"
	case KindNotFound:
		return "NotFound"
	case KindDownloadError:
		return "DownloadError"
	case KindUnsupportedFormat:
		return "UnsupportedFormat"
	case KindExtractError:
		return "ExtractError"
	case KindLocked:
		return "Locked"
	case KindPermissionWarning:
		return "PermissionWarning"
	case KindCleanupWarning:
		return "CleanupWarning"
	case KindVerifyWarning:
		return "VerifyWarning"
	default:
		return "Unknown"
	}
}

// Fatal reports whether the kind aborts an installation.
func (k Kind) Fatal() bool {
	switch k {
	case KindPermissionWarning, KindCleanupWarning, KindVerifyWarning:
		return false
	default:
		return true
	}
}

var (
	// ErrUnsupportedFormat is wrapped when an asset is neither .gz nor .zip.
	ErrUnsupportedFormat = errors.New("unsupported archive format")
	// ErrIllegalPath is wrapped when an archive entry escapes the target.
	ErrIllegalPath = errors.New("illegal path in archive")
	// ErrLocked is wrapped when another process holds the tool's lock.
	ErrLocked = errors.New("installation lock held by another process")
)

// Error is a fatal installation failure. Stage is where it happened.
type Error struct {
	Kind  Kind
	Stage Stage
	Tool  string
	Err   error
}

func (e *Error) Error() string {
	return fmt.Sprintf("install %s: %s during %s: %v", e.Tool, e.Kind, e.Stage, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Warning is a non-fatal problem recorded on an Outcome.
type Warning struct {
	Kind Kind
	Path string
	Err  error
}

func (w Warning) String() string {
	if w.Path == "" {
		return fmt.Sprintf("%s: %v", w.Kind, w.Err)
	}
	return fmt.Sprintf("%s: %s: %v", w.Kind, w.Path, w.Err)
}

// IsKind reports whether err is an *Error of kind k.
func IsKind(err error, k Kind) bool {
	var ierr *Error
	return errors.As(err, &ierr) && ierr.Kind == k
}

// classify maps resolver and pipeline sentinels onto kinds. fallback is used
// for anything unrecognised.
func classify(err error, fallback Kind) Kind {
	switch {
	case errors.Is(err, release.ErrUnsupportedPlatform):
		return KindUnsupportedPlatform
	case errors.Is(err, release.ErrNotFound):
		return KindNotFound
	case errors.Is(err, release.ErrMetadata):
		return KindMetadataError
	case errors.Is(err, release.ErrNetwork):
		return KindNetworkError
	case errors.Is(err, ErrUnsupportedFormat):
		return KindUnsupportedFormat
	case errors.Is(err, ErrIllegalPath):
		return KindExtractError
	case errors.Is(err, ErrLocked):
		return KindLocked
	default:
		return fallback
	}
}
