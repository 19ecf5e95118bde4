// Package stimulus discovers reference and candidate audio files and
// assembles them into ordered comparison sets.
package stimulus

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/okian/listeval/internal/domain/model"
)

// Sentinel errors for discovery.
var (
	ErrNoSystems       = errors.New("no candidate systems configured")
	ErrDuplicateSystem = errors.New("duplicate system name")
	ErrTooFewSystems   = errors.New("too few candidate systems")
	ErrEmptyExtension  = errors.New("audio extension must not be empty")
)

// Requirement decides how many systems must provide a rendering for a
// reference file to become an item.
type Requirement int

const (
	// RequireAll keeps a reference file only if every system has it (ABX).
	RequireAll Requirement = iota
	// RequireAny keeps it if at least one system has it (MOS).
	RequireAny
)

func (r Requirement) String() string {
	if r == RequireAll {
		return "all"
	}
	return "any"
}

// Root is a directory tree of audio files owned by one named system (or by
// the reference set). FS is read for discovery while Path prefixes the
// paths stored in items.
type Root struct {
	Name string
	Path string
	FS   fs.FS
}

// NewRoot returns a Root over dir on the local filesystem. An empty name
// defaults to the directory's base name.
func NewRoot(name, dir string) Root {
	if name == "" {
		name = filepath.Base(filepath.Clean(dir))
	}
	return Root{Name: name, Path: dir, FS: os.DirFS(dir)}
}

func (r Root) fsys() fs.FS {
	if r.FS == nil {
		return os.DirFS(r.Path)
	}
	return r.FS
}

func (r Root) join(rel string) string {
	return filepath.Join(r.Path, filepath.FromSlash(rel))
}

func (r Root) hasFile(rel string) bool {
	info, err := fs.Stat(r.fsys(), rel)
	return err == nil && !info.IsDir()
}

// BuildABX returns the items whose reference file exists under every system
// root. At least two systems are required.
func BuildABX(ref Root, ext string, systems []Root) ([]model.ComparisonItem, error) {
	if len(systems) < 2 {
		return nil, fmt.Errorf("abx needs two systems, got %d: %w", len(systems), ErrTooFewSystems)
	}
	return Build(ref, ext, systems, RequireAll)
}

// BuildMOS returns the items whose reference file exists under at least one
// system root; only the systems that have it become candidates.
func BuildMOS(ref Root, ext string, systems []Root) ([]model.ComparisonItem, error) {
	return Build(ref, ext, systems, RequireAny)
}

// Build scans the top level of the reference root for files ending in ext
// and pairs each with the same-named file in the system roots.
// Reference files that fail the requirement are skipped, not reported.
func Build(ref Root, ext string, systems []Root, req Requirement) ([]model.ComparisonItem, error) {
	ext, err := checkInputs(ref, ext, systems)
	if err != nil {
		return nil, err
	}
	return collect(ref, ".", "", ext, systems, req)
}

// BuildNested runs discovery once per sub-folder (speaker/group) of the
// reference root, matching each against the same sub-folder of every system
// root. Item ids are "group/stem".
func BuildNested(ref Root, ext string, systems []Root, req Requirement) ([]model.ComparisonItem, error) {
	ext, err := checkInputs(ref, ext, systems)
	if err != nil {
		return nil, err
	}
	entries, err := fs.ReadDir(ref.fsys(), ".")
	if err != nil {
		return nil, fmt.Errorf("read reference root %s: %w", ref.Path, err)
	}

	var items []model.ComparisonItem
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		group, err := collect(ref, e.Name(), e.Name(), ext, systems, req)
		if err != nil {
			return nil, err
		}
		items = append(items, group...)
	}
	sortItems(items)
	return items, nil
}

// checkInputs normalises ext and requires unique names across the
// reference and system roots; they become score columns.
func checkInputs(ref Root, ext string, systems []Root) (string, error) {
	ext = strings.TrimSpace(ext)
	if ext == "" {
		return "", ErrEmptyExtension
	}
	if !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	if len(systems) == 0 {
		return "", ErrNoSystems
	}
	seen := make(map[string]struct{}, len(systems)+1)
	seen[ref.Name] = struct{}{}
	for _, s := range systems {
		if _, dup := seen[s.Name]; dup {
			return "", fmt.Errorf("%q: %w", s.Name, ErrDuplicateSystem)
		}
		seen[s.Name] = struct{}{}
	}
	return ext, nil
}

func collect(ref Root, dir, group, ext string, systems []Root, req Requirement) ([]model.ComparisonItem, error) {
	entries, err := fs.ReadDir(ref.fsys(), dir)
	if err != nil {
		return nil, fmt.Errorf("read reference dir %s: %w", ref.join(dir), err)
	}

	var items []model.ComparisonItem
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ext) {
			continue
		}
		rel := path.Join(dir, name)

		var cands []model.Candidate
		for _, sys := range systems {
			if sys.hasFile(rel) {
				cands = append(cands, model.Candidate{System: sys.Name, Path: sys.join(rel)})
			}
		}
		if len(cands) == 0 || (req == RequireAll && len(cands) != len(systems)) {
			continue
		}

		id := strings.TrimSuffix(name, ext)
		if group != "" {
			id = group + "/" + id
		}
		items = append(items, model.ComparisonItem{
			ID:         id,
			Group:      group,
			Reference:  &model.Candidate{System: ref.Name, Path: ref.join(rel)},
			Candidates: cands,
		})
	}
	sortItems(items)
	return items, nil
}

func sortItems(items []model.ComparisonItem) {
	sort.SliceStable(items, func(i, j int) bool { return items[i].ID < items[j].ID })
}

// Paginate splits items into ceil(len/pageSize) pages of nearly equal size;
// the first len%pages pages carry one extra item. A non-positive pageSize
// yields a single page.
func Paginate(items []model.ComparisonItem, pageSize int) [][]model.ComparisonItem {
	n := len(items)
	if n == 0 {
		return nil
	}
	if pageSize <= 0 || pageSize >= n {
		return [][]model.ComparisonItem{items}
	}

	pages := (n + pageSize - 1) / pageSize
	base, extra := n/pages, n%pages
	out := make([][]model.ComparisonItem, 0, pages)
	start := 0
	for p := range pages {
		size := base
		if p < extra {
			size++
		}
		out = append(out, items[start:start+size])
		start += size
	}
	return out
}
