package ingest

import (
	"context"
	"errors"
	"io/fs"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"scantab/constants"
)

// DirStats aggregates the outcome of a directory scan.
type DirStats struct {
	Scanned uint32
	Matched uint32
	Skipped uint32
	Failed  uint32
}

// EnumerateDirectory walks root, filters by includeExts (or the defaults),
// skips hidden entries if requested, and returns matched paths in natural
// order (page_2 before page_10) plus aggregate stats.
func EnumerateDirectory(ctx context.Context, root string, includeExts []string, skipHidden bool) ([]string, DirStats, error) {
	if strings.TrimSpace(root) == "" {
		return nil, DirStats{}, errors.New("root path is required")
	}

	exts := map[string]struct{}{}
	if len(includeExts) == 0 {
		exts = constants.AllowedExtensions
	} else {
		for _, e := range includeExts {
			e = constants.NormalizeExt(strings.TrimSpace(e))
			if e != "" {
				exts[e] = struct{}{}
			}
		}
	}

	var matched []string
	var stats DirStats

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Scanned++
		if walkErr != nil {
			stats.Failed++
			return nil // continue walking
		}
		if skipHidden && isHidden(path, root) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			stats.Skipped++
			return nil
		}
		if d.IsDir() {
			return nil
		}
		ext := constants.NormalizeExt(filepath.Ext(path))
		if _, ok := exts[ext]; !ok {
			stats.Skipped++
			return nil
		}
		stats.Matched++
		matched = append(matched, path)
		return nil
	})
	if err != nil {
		return nil, stats, err
	}

	sort.Slice(matched, func(i, j int) bool {
		return NaturalLess(matched[i], matched[j])
	})
	return matched, stats, nil
}

func isHidden(path, root string) bool {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return false
	}
	for _, part := range strings.Split(rel, string(filepath.Separator)) {
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

var naturalChunks = regexp.MustCompile(`(\d+|\D+)`)

// NaturalLess orders strings so embedded numbers compare numerically:
// page_2 < page_10, unlike plain lexicographic order.
func NaturalLess(a, b string) bool {
	as := naturalChunks.FindAllString(a, -1)
	bs := naturalChunks.FindAllString(b, -1)
	for i := 0; i < len(as) && i < len(bs); i++ {
		if as[i] == bs[i] {
			continue
		}
		an, aerr := strconv.Atoi(as[i])
		bn, berr := strconv.Atoi(bs[i])
		if aerr == nil && berr == nil {
			if an != bn {
				return an < bn
			}
			continue
		}
		return as[i] < bs[i]
	}
	return len(as) < len(bs)
}
