package storefs

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/goliatone/go-certificate/certificate"
)

// SignedURLInput describes a signed URL request.
type SignedURLInput struct {
	BaseURL   string
	Key       string
	ExpiresAt time.Time
}

// SignedURLSigner signs artifact URLs.
type SignedURLSigner interface {
	SignURL(input SignedURLInput) (string, error)
}

// Store keeps rendered certificates on the local filesystem. Each artifact
// has a sidecar .meta.json with its content type and filename.
type Store struct {
	Root    string
	BaseURL string
	Signer  SignedURLSigner
	Now     func() time.Time
}

var _ certificate.ArtifactStore = (*Store)(nil)

// NewStore creates a filesystem-backed artifact store.
func NewStore(root string) *Store {
	return &Store{Root: root, Now: time.Now}
}

// Put writes the artifact atomically through a temp file and rename.
func (s *Store) Put(ctx context.Context, key string, r io.Reader, meta certificate.ArtifactMeta) (certificate.ArtifactRef, error) {
	target, err := s.locate(ctx, key)
	if err != nil {
		return certificate.ArtifactRef{}, err
	}
	if r == nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindValidation, "artifact reader is required", nil)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindInternal, "create artifact dir", err)
	}

	size, err := writeAtomic(target, ".certificate-*", func(w io.Writer) (int64, error) {
		return io.Copy(w, r)
	})
	if err != nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindInternal, "write artifact", err)
	}

	meta.Size = size
	if meta.CreatedAt.IsZero() {
		meta.CreatedAt = s.now()
	}
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	if meta.Filename == "" {
		meta.Filename = filepath.Base(target)
	}

	payload, err := json.Marshal(meta)
	if err != nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindInternal, "encode artifact meta", err)
	}
	if _, err := writeAtomic(metaPath(target), ".meta-*", func(w io.Writer) (int64, error) {
		n, err := w.Write(payload)
		return int64(n), err
	}); err != nil {
		return certificate.ArtifactRef{}, certificate.NewError(certificate.KindInternal, "write artifact meta", err)
	}

	return certificate.ArtifactRef{Key: key, Meta: meta}, nil
}

// Open reads an artifact from disk.
func (s *Store) Open(ctx context.Context, key string) (io.ReadCloser, certificate.ArtifactMeta, error) {
	target, err := s.locate(ctx, key)
	if err != nil {
		return nil, certificate.ArtifactMeta{}, err
	}

	file, err := os.Open(target)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, certificate.ArtifactMeta{}, certificate.NewError(certificate.KindNotFound, fmt.Sprintf("artifact %q not found", key), err)
		}
		return nil, certificate.ArtifactMeta{}, certificate.NewError(certificate.KindInternal, "open artifact", err)
	}

	meta := readMeta(target)
	if meta.ContentType == "" {
		meta.ContentType = mime.TypeByExtension(filepath.Ext(target))
	}
	if meta.Size == 0 {
		if info, err := file.Stat(); err == nil {
			meta.Size = info.Size()
			if meta.CreatedAt.IsZero() {
				meta.CreatedAt = info.ModTime()
			}
		}
	}
	return file, meta, nil
}

// Delete removes an artifact and its sidecar. Missing files are ignored.
func (s *Store) Delete(ctx context.Context, key string) error {
	target, err := s.locate(ctx, key)
	if err != nil {
		return err
	}
	_ = os.Remove(target)
	_ = os.Remove(metaPath(target))
	return nil
}

// SignedURL generates a signed URL when a signer and base URL are configured.
func (s *Store) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if _, err := s.locate(ctx, key); err != nil {
		return "", err
	}
	if s.Signer == nil || s.BaseURL == "" {
		return "", certificate.NewError(certificate.KindNotImpl, "signed URLs not configured", nil)
	}
	if ttl <= 0 {
		return "", certificate.NewError(certificate.KindValidation, "signed URL TTL is required", nil)
	}
	return s.Signer.SignURL(SignedURLInput{
		BaseURL:   strings.TrimRight(s.BaseURL, "/"),
		Key:       key,
		ExpiresAt: s.now().Add(ttl),
	})
}

// locate validates the store and key and resolves the on-disk path. Keys may
// not escape Root.
func (s *Store) locate(ctx context.Context, key string) (string, error) {
	if s == nil {
		return "", certificate.NewError(certificate.KindInternal, "store is nil", nil)
	}
	if ctx != nil {
		if err := ctx.Err(); err != nil {
			return "", err
		}
	}
	if s.Root == "" {
		return "", certificate.NewError(certificate.KindValidation, "store root is required", nil)
	}
	if key == "" {
		return "", certificate.NewError(certificate.KindValidation, "artifact key is required", nil)
	}

	rel := strings.TrimPrefix(path.Clean("/"+key), "/")
	if rel == "" || rel == "." {
		return "", certificate.NewError(certificate.KindValidation, "invalid artifact key", nil)
	}
	root, err := filepath.Abs(s.Root)
	if err != nil {
		return "", certificate.NewError(certificate.KindInternal, "resolve store root", err)
	}
	target := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(target, root+string(os.PathSeparator)) {
		return "", certificate.NewError(certificate.KindValidation, "artifact key escapes root", nil)
	}
	return target, nil
}

func (s *Store) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func writeAtomic(target, pattern string, write func(io.Writer) (int64, error)) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(target), pattern)
	if err != nil {
		return 0, err
	}
	defer func() {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
	}()

	n, err := write(tmp)
	if err != nil {
		return 0, err
	}
	if err := tmp.Sync(); err != nil {
		return 0, err
	}
	if err := tmp.Close(); err != nil {
		return 0, err
	}
	return n, os.Rename(tmp.Name(), target)
}

func readMeta(target string) certificate.ArtifactMeta {
	data, err := os.ReadFile(metaPath(target))
	if err != nil {
		return certificate.ArtifactMeta{}
	}
	var meta certificate.ArtifactMeta
	if err := json.Unmarshal(data, &meta); err != nil {
		return certificate.ArtifactMeta{}
	}
	return meta
}

func metaPath(target string) string {
	return target + ".meta.json"
}
