package records

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

const (
	MachineListFile = "customer_machine_list.json"
	UsersFile       = "users.json"
	inboxFilePrefix = "staff_inbox_"
)

// FileRoster reads the roster files on every call so edits are picked up without a restart.
type FileRoster struct {
	dir string
}

func NewFileRoster(dir string) *FileRoster {
	return &FileRoster{dir: dir}
}

func (r *FileRoster) Companies(ctx context.Context) ([]Company, error) {
	var out []Company
	if err := readJSONFile(filepath.Join(r.dir, MachineListFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *FileRoster) Users(ctx context.Context) ([]User, error) {
	var out []User
	if err := readJSONFile(filepath.Join(r.dir, UsersFile), &out); err != nil {
		return nil, err
	}
	return out, nil
}

// FileInbox keeps one staff_inbox_<id>.json per recipient.
type FileInbox struct {
	dir   string
	now   func() time.Time
	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewFileInbox(dir string) *FileInbox {
	return &FileInbox{
		dir:   dir,
		now:   time.Now,
		locks: make(map[string]*sync.Mutex),
	}
}

func (b *FileInbox) Append(ctx context.Context, staffID string, msg InboxMessage) (InboxMessage, error) {
	path, err := b.path(staffID)
	if err != nil {
		return InboxMessage{}, err
	}

	lock := b.lockFor(staffID)
	lock.Lock()
	defer lock.Unlock()

	var current []InboxMessage
	if err := readJSONFile(path, &current); err != nil {
		return InboxMessage{}, err
	}

	var last time.Time
	if n := len(current); n > 0 {
		last = current[n-1].Timestamp
	}
	msg.Timestamp = nextTimestamp(b.now(), last)
	current = append(current, msg)

	if err := writeJSONFile(path, current); err != nil {
		return InboxMessage{}, err
	}
	return msg, nil
}

func (b *FileInbox) List(ctx context.Context, staffID string) ([]InboxMessage, error) {
	path, err := b.path(staffID)
	if err != nil {
		return nil, err
	}

	lock := b.lockFor(staffID)
	lock.Lock()
	defer lock.Unlock()

	var out []InboxMessage
	if err := readJSONFile(path, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (b *FileInbox) path(staffID string) (string, error) {
	id := strings.TrimSpace(staffID)
	if id == "" || id != staffID || strings.ContainsAny(id, `/\`) || strings.Contains(id, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidStaffID, staffID)
	}
	return filepath.Join(b.dir, inboxFilePrefix+id+".json"), nil
}

func (b *FileInbox) lockFor(staffID string) *sync.Mutex {
	b.mu.Lock()
	defer b.mu.Unlock()
	l, ok := b.locks[staffID]
	if !ok {
		l = &sync.Mutex{}
		b.locks[staffID] = l
	}
	return l
}

// readJSONFile leaves dst untouched when the file does not exist.
func readJSONFile(path string, dst any) error {
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return nil
}

func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp for %s: %w", filepath.Base(path), err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		return fmt.Errorf("write %s: %w", filepath.Base(path), err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", filepath.Base(path), err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace %s: %w", filepath.Base(path), err)
	}
	return nil
}
