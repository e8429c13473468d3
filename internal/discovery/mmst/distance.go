package mmst

import (
	"bytes"
	"slices"
)

// Distance 返回 a 与 b 的 XOR 距离，较短的一方在末尾补零
func Distance(a, b []byte) []byte {
	n := max(len(a), len(b))
	d := make([]byte, n)
	for i := 0; i < n; i++ {
		var x, y byte
		if i < len(a) {
			x = a[i]
		}
		if i < len(b) {
			y = b[i]
		}
		d[i] = x ^ y
	}
	return d
}

// CompareDistance 比较 a、b 到 target 的距离
func CompareDistance(target, a, b []byte) int {
	return bytes.Compare(Distance(target, a), Distance(target, b))
}

// SortByDistance 按到 target 的距离从近到远原地排序，距离相同时保持原顺序
func SortByDistance(target []byte, ids [][]byte) {
	slices.SortStableFunc(ids, func(a, b []byte) int {
		return CompareDistance(target, a, b)
	})
}
