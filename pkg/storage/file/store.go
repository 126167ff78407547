package file

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/boostedhh/condorcheck/pkg/storage"
)

// Store implements storage.Store for locally mounted filesystem paths,
// i.e. the /eos/uscms and /ceph/cms fuse mounts at the T2 sites.
//
// Keys are treated as slash-separated paths relative to BaseDir.
type Store struct {
	baseDir string
}

var (
	_ storage.Store           = (*Store)(nil)
	_ storage.PrefixChecker   = (*Store)(nil)
	_ storage.DelimiterLister = (*Store)(nil)
)

type Config struct {
	BaseDir string
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.BaseDir) == "" {
		return fmt.Errorf("base dir is required")
	}
	return nil
}

func New(cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Store{baseDir: filepath.Clean(cfg.BaseDir)}, nil
}

// Type identifies this store as a local filesystem backend.
func (s *Store) Type() storage.StoreType { return storage.StoreFile }

func (s *Store) Close() error { return nil }

func (s *Store) List(ctx context.Context, opts storage.ListOptions) (*storage.ListResult, error) {
	_ = ctx
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = 1000
	}

	prefix := strings.TrimPrefix(opts.Prefix, "/")
	keys, err := s.collectKeys(prefix)
	if err != nil {
		return nil, s.wrapError("List", opts.Prefix, err)
	}
	sort.Strings(keys)

	start := 0
	if opts.ContinuationToken != "" {
		// Start strictly after the last returned key.
		idx := sort.SearchStrings(keys, opts.ContinuationToken)
		for idx < len(keys) && keys[idx] <= opts.ContinuationToken {
			idx++
		}
		start = idx
	}

	end := start + maxKeys
	if end > len(keys) {
		end = len(keys)
	}

	objects := make([]storage.ObjectSummary, 0, end-start)
	for _, k := range keys[start:end] {
		full, err := s.fullPath(k)
		if err != nil {
			continue
		}
		st, err := os.Stat(full)
		if err != nil || st.IsDir() {
			continue
		}
		objects = append(objects, storage.ObjectSummary{Key: k, Size: st.Size(), LastModified: st.ModTime()})
	}

	res := &storage.ListResult{Objects: objects}
	if end < len(keys) {
		res.IsTruncated = true
		res.ContinuationToken = keys[end-1]
	}
	return res, nil
}

func (s *Store) Head(ctx context.Context, key string) (*storage.ObjectMeta, error) {
	_ = ctx
	full, err := s.fullPath(key)
	if err != nil {
		return nil, s.wrapError("Head", key, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		return nil, s.wrapError("Head", key, err)
	}
	if st.IsDir() {
		return nil, &storage.StoreError{Op: "Head", Store: storage.StoreFile, Key: key, Err: storage.ErrNotFound}
	}

	return &storage.ObjectMeta{
		ObjectSummary: storage.ObjectSummary{Key: strings.TrimPrefix(key, "/"), Size: st.Size(), LastModified: st.ModTime()},
	}, nil
}

// PrefixExists reports whether the directory named by prefix exists.
//
// A missing directory is a modeled condition for the reconciler, so it is
// reported as (false, nil) rather than an error. Permission failures still
// surface as ErrAccessDenied and abort the run.
func (s *Store) PrefixExists(ctx context.Context, prefix string) (bool, error) {
	_ = ctx
	full, err := s.fullPath(strings.TrimSuffix(prefix, "/"))
	if err != nil {
		return false, s.wrapError("PrefixExists", prefix, err)
	}
	st, err := os.Stat(full)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, s.wrapError("PrefixExists", prefix, err)
	}
	return st.IsDir(), nil
}

// ListWithDelimiter lists the immediate children of a directory-like prefix.
//
// Files become Objects, subdirectories become CommonPrefixes. The local
// backend reads the whole directory in one page; continuation tokens are
// accepted for interface parity but never produced.
func (s *Store) ListWithDelimiter(ctx context.Context, opts storage.ListWithDelimiterOptions) (*storage.ListWithDelimiterResult, error) {
	_ = ctx
	prefix := strings.TrimSuffix(strings.TrimPrefix(opts.Prefix, "/"), "/")
	root, err := s.fullPath(prefix)
	if err != nil {
		return nil, s.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return &storage.ListWithDelimiterResult{}, nil
		}
		return nil, s.wrapError("ListWithDelimiter", opts.Prefix, err)
	}

	res := &storage.ListWithDelimiterResult{}
	for _, entry := range entries {
		child := entry.Name()
		if prefix != "" {
			child = prefix + "/" + child
		}
		if entry.IsDir() {
			res.CommonPrefixes = append(res.CommonPrefixes, child+"/")
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		res.Objects = append(res.Objects, storage.ObjectSummary{Key: child, Size: info.Size(), LastModified: info.ModTime()})
	}

	sort.Strings(res.CommonPrefixes)
	sort.Slice(res.Objects, func(i, j int) bool { return res.Objects[i].Key < res.Objects[j].Key })
	return res, nil
}

func (s *Store) fullPath(key string) (string, error) {
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "/")
	// Prevent path traversal.
	clean := filepath.Clean("/" + key)
	clean = strings.TrimPrefix(clean, "/")
	if clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("invalid key path")
	}
	return filepath.Join(s.baseDir, filepath.FromSlash(clean)), nil
}

func (s *Store) collectKeys(prefix string) ([]string, error) {
	root, err := s.fullPath(prefix)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(root); err != nil {
		if os.IsNotExist(err) {
			return []string{}, nil
		}
		return nil, err
	}

	var keys []string
	walkErr := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			// Unreadable subtrees abort the scan; the tool treats
			// permission faults as fatal rather than under-reporting.
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return nil
		}
		keys = append(keys, filepath.ToSlash(rel))
		return nil
	})
	if walkErr != nil {
		return nil, walkErr
	}
	return keys, nil
}

func (s *Store) wrapError(op, key string, err error) error {
	wrapped := &storage.StoreError{Op: op, Store: storage.StoreFile, Root: s.baseDir, Key: key, Err: err}
	if err == nil {
		wrapped.Err = fmt.Errorf("unknown error")
	}
	// Normalize common filesystem errors to storage sentinels.
	if os.IsNotExist(err) {
		wrapped.Err = storage.ErrNotFound
	}
	if os.IsPermission(err) {
		wrapped.Err = storage.ErrAccessDenied
	}
	return wrapped
}
