package deviceagent

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/httprunner/DeviceAgent/internal/storage"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// HashRecord pairs a path with its content hash. Host and device records
// are compared by hash, never by absolute path; the path roots differ.
type HashRecord struct {
	Path string
	Hash string
}

var md5HexRe = regexp.MustCompile(`^[0-9a-f]{32}$`)

// hostHashes computes content hashes for every regular file under each of
// the given host paths (single files or recursive trees), in traversal
// order. Unchanged files are served from the persistent host hash cache.
func hostHashes(hostPaths []string) ([]HashRecord, error) {
	cache := storage.AcquireHashCache()
	var records []HashRecord
	for _, root := range hostPaths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, errors.Wrapf(err, "stat host path %s", root)
		}
		if !info.IsDir() {
			hash, err := hostFileHash(cache, root, info)
			if err != nil {
				return nil, err
			}
			records = append(records, HashRecord{Path: root, Hash: hash})
			continue
		}
		walkErr := filepath.WalkDir(root, func(p string, entry fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !entry.Type().IsRegular() {
				return nil
			}
			fi, err := entry.Info()
			if err != nil {
				return err
			}
			hash, err := hostFileHash(cache, p, fi)
			if err != nil {
				return err
			}
			records = append(records, HashRecord{Path: p, Hash: hash})
			return nil
		})
		if walkErr != nil {
			return nil, errors.Wrapf(walkErr, "walk host path %s", root)
		}
	}
	return records, nil
}

func hostFileHash(cache *storage.HashCache, path string, info os.FileInfo) (string, error) {
	size := info.Size()
	mtime := info.ModTime().UnixNano()
	if cache != nil {
		if hash, ok := cache.Lookup(path, size, mtime); ok {
			return hash, nil
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrapf(err, "open %s for hashing", path)
	}
	defer f.Close()
	h := md5.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrapf(err, "hash %s", path)
	}
	hash := hex.EncodeToString(h.Sum(nil))

	if cache != nil {
		if err := cache.Store(path, size, mtime, hash); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("host hash cache store failed")
		}
	}
	return hash, nil
}

// deviceHashes fetches content hashes for the given device paths in one
// batched shell call. Paths that do not exist on the device are simply
// absent from the result; a partially failing md5sum run is expected.
func (d *Device) deviceHashes(devicePaths []string) ([]HashRecord, error) {
	if len(devicePaths) == 0 {
		return nil, nil
	}
	args := append([]string{"md5sum"}, devicePaths...)
	lines, err := d.RunShellCommand(Argv(args...), ShellOptions{})
	if err != nil {
		return nil, err
	}
	var records []HashRecord
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) < 2 || !md5HexRe.MatchString(fields[0]) {
			continue
		}
		records = append(records, HashRecord{Path: fields[len(fields)-1], Hash: fields[0]})
	}
	return records, nil
}
