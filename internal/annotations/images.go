package annotations

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"

	mapeval "github.com/jamesainslie/go-mapeval"
)

var framePattern = regexp.MustCompile(`^img(.*)\.jpg$`)

// ImageRef locates the image of one frame.
type ImageRef struct {
	Path string
	Key  mapeval.FrameKey
}

// ScanImages lists root/seq*/img*.jpg. The sequence id is the last three
// characters of the sequence directory name; the frame id is whatever sits
// between "img" and ".jpg". Results are sorted by frame key.
func ScanImages(root string) ([]ImageRef, error) {
	seqDirs, err := filepath.Glob(filepath.Join(root, "seq*"))
	if err != nil {
		return nil, fmt.Errorf("glob sequences: %w", err)
	}

	var refs []ImageRef
	for _, dir := range seqDirs {
		info, err := os.Stat(dir)
		if err != nil {
			return nil, fmt.Errorf("stat %s: %w", dir, err)
		}
		if !info.IsDir() {
			continue
		}

		name := filepath.Base(dir)
		seq := name
		if len(seq) > 3 {
			seq = seq[len(seq)-3:]
		}

		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read dir: %w", err)
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			m := framePattern.FindStringSubmatch(entry.Name())
			if m == nil {
				continue
			}
			refs = append(refs, ImageRef{
				Path: filepath.Join(dir, entry.Name()),
				Key:  mapeval.FrameKey{Sequence: seq, Frame: m[1]},
			})
		}
	}

	slices.SortFunc(refs, func(a, b ImageRef) int {
		return a.Key.Compare(b.Key)
	})
	return refs, nil
}

// ImagePath returns where the dataset layout keeps the image of key.
func ImagePath(root string, key mapeval.FrameKey) string {
	return filepath.Join(root, "seq"+key.Sequence, "img"+key.Frame+".jpg")
}
