package util

import (
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"golang.org/x/exp/constraints"
)

// GatherPaths walks path and returns files ending in one of exts, at most
// maxNum of them unless maxNum is 0.
func GatherPaths(path string, exts []string, maxNum int) ([]string, error) {
	var res []string
	walk := func(s string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		lower := strings.ToLower(s)
		for _, ext := range exts {
			if strings.HasSuffix(lower, ext) {
				if maxNum == 0 || len(res) < maxNum {
					res = append(res, s)
				}
				break
			}
		}
		return nil
	}
	if err := filepath.WalkDir(path, walk); err != nil {
		return nil, err
	}
	return res, nil
}

func GetKeys[A constraints.Ordered, B any](m map[A]B) []A {
	keys := make([]A, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	return keys
}

// SortedKeys is GetKeys in ascending order.
func SortedKeys[A constraints.Ordered, B any](m map[A]B) []A {
	keys := GetKeys(m)
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

func Min[A constraints.Ordered](num1 A, num2 A) A {
	if num1 > num2 {
		return num2
	}
	return num1
}

func Max[A constraints.Ordered](num1 A, num2 A) A {
	if num1 < num2 {
		return num2
	}
	return num1
}

func Clamp[A constraints.Ordered](v, lo, hi A) A {
	return Max(lo, Min(v, hi))
}

func Sum[A constraints.Integer](nums []A) uint64 {
	var total uint64
	for _, v := range nums {
		total += uint64(v)
	}
	return total
}
