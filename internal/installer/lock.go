package installer

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute
)

// Lock guards one tool's subdirectory against a concurrent installer process.
type Lock struct {
	path  string
	token string
	file  *os.File
}

// LockPath returns the lock file for tool under root.
func LockPath(root, tool string) string {
	return filepath.Join(root, "."+tool+".lock")
}

// AcquireLock creates the tool's lock file with O_CREATE|O_EXCL. A lock
// older than StaleLockThreshold is replaced once; a live one fails with
// ErrLocked.
func AcquireLock(root, tool string) (*Lock, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("create install root: %w", err)
	}

	lockPath := LockPath(root, tool)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrLocked, lockPath)
		}
	}

	token := uuid.NewString()
	lockData := fmt.Sprintf("pid=%d\ntoken=%s\ntimestamp=%s\n", os.Getpid(), token, time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	return &Lock{
		path:  lockPath,
		token: token,
		file:  file,
	}, nil
}

// Token identifies this holder in the lock file.
func (l *Lock) Token() string {
	return l.token
}

// Release releases the lock.
func (l *Lock) Release() error {
	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
		l.path = ""
	}

	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}
